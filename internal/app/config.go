package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
)

const defaultAddr = "0.0.0.0:8080"

// Config holds the complete application configuration, loadable from
// environment variables (STOREFRONT_ prefix), flags, or YAML config files.
type Config struct {
	Addr        string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL string `usage:"PostgreSQL URL for the cleanup log; in-memory when empty" flag:"database-url"`
	Upstream    UpstreamConfig
	Session     SessionConfig
	Cleanup     CleanupConfig
	Kafka       KafkaConfig
	RateLimit   RateLimitConfig
	CORS        CORSConfig
	Graceful    GracefulConfig
}

// UpstreamConfig points at the REST API holding products, carts and orders.
type UpstreamConfig struct {
	URL     string        `usage:"Base URL of the storefront REST API" flag:"upstream-url"`
	Timeout time.Duration `default:"10s" usage:"Per-request upstream timeout" flag:"upstream-timeout"`
}

// SessionConfig controls session tokens.
type SessionConfig struct {
	Pepper        string        `usage:"HMAC pepper for session token hashing (STOREFRONT_SESSION_PEPPER)" flag:"session-pepper"`
	TTL           time.Duration `default:"24h" usage:"Session lifetime" flag:"session-ttl"`
	SweepInterval time.Duration `default:"1m" usage:"Interval for dropping expired sessions" flag:"session-sweep-interval"`
}

// CleanupConfig controls the background retry of failed cart line removals.
type CleanupConfig struct {
	Interval    time.Duration `default:"30s" usage:"Retry interval for failed cleanup tasks" flag:"cleanup-interval"`
	MaxAttempts int           `default:"5"   usage:"Attempts before a cleanup task is abandoned" flag:"cleanup-max-attempts"`
	Batch       int           `default:"100" usage:"Cleanup tasks retried per tick" flag:"cleanup-batch"`
}

// KafkaConfig enables order-placed events when Brokers is set.
type KafkaConfig struct {
	Brokers string `usage:"Comma-separated Kafka brokers; events are disabled when empty" flag:"kafka-brokers"`
	Topic   string `default:"storefront.orders" usage:"Topic for order-placed events" flag:"kafka-topic"`
}

// RateLimitConfig controls the per-client sliding window rate limiter.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Max requests per window"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed CORS origins"`
	AllowCredentials bool     `default:"false" usage:"Allow credentials (cookies, auth headers)" flag:"cors-credentials"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables, YAML config files,
// and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	return loadConfig(aconfig.Config{
		EnvPrefix: "STOREFRONT",
		Files:     []string{"config.yaml", "/etc/storefront/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
}

func loadConfig(acfg aconfig.Config) (*Config, error) {
	var cfg Config
	if err := aconfig.LoaderFor(&cfg, acfg).Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch {
	case c.Upstream.URL == "":
		return errors.New("upstream URL is required: set STOREFRONT_UPSTREAM_URL")
	case c.Session.Pepper == "":
		return errors.New("session pepper is required: set STOREFRONT_SESSION_PEPPER")
	case c.Upstream.Timeout <= 0:
		return errors.Errorf("upstream timeout must be positive, got %s", c.Upstream.Timeout)
	case c.Cleanup.MaxAttempts < 1:
		return errors.Errorf("cleanup max attempts must be at least 1, got %d", c.Cleanup.MaxAttempts)
	case c.Cleanup.Interval <= 0:
		return errors.Errorf("cleanup interval must be positive, got %s", c.Cleanup.Interval)
	case c.RateLimit.Window <= 0:
		return errors.Errorf("rate limit window must be positive, got %s", c.RateLimit.Window)
	case c.Session.SweepInterval <= 0:
		return errors.Errorf("session sweep interval must be positive, got %s", c.Session.SweepInterval)
	}
	return nil
}

// applyPlatformDefaults maps platform-provided environment variables (Railway,
// Render, etc.) that use standard names like DATABASE_URL and PORT to the
// application's STOREFRONT_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		if v := os.Getenv("DATABASE_URL"); v != "" {
			c.DatabaseURL = v
		}
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == defaultAddr {
		c.Addr = "0.0.0.0:" + port
	}
}
