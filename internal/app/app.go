package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/domain/cleanup"
	"github.com/xenking/storefront/internal/domain/session"
	"github.com/xenking/storefront/internal/handler"
	"github.com/xenking/storefront/internal/messaging/kafka"
	"github.com/xenking/storefront/internal/storage/memory"
	"github.com/xenking/storefront/internal/storage/postgres"
	"github.com/xenking/storefront/internal/storage/rest"
	"github.com/xenking/storefront/pkg/health"
	"github.com/xenking/storefront/pkg/httpmiddleware"
)

// Telemetry provides the tracer and meter providers, as *app.Telemetry does.
type Telemetry interface {
	TracerProvider() trace.TracerProvider
	MeterProvider() metric.MeterProvider
}

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m Telemetry, cfg *Config) error {
	lg.Info("Initializing",
		zap.String("addr", cfg.Addr),
		zap.String("upstream", cfg.Upstream.URL),
	)

	svc, err := build(ctx, lg, m, cfg)
	if err != nil {
		return err
	}
	defer svc.close()
	healthSvc := svc.health

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      cfg.Upstream.Timeout + 10*time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler:           svc.handler,
	}

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}

// service is the wired application behind the HTTP server.
type service struct {
	handler http.Handler
	health  *health.Health
	closers []func()
}

func (s *service) close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

// build wires every dependency and returns the root HTTP handler. Background
// workers stop when ctx is done.
func build(ctx context.Context, lg *zap.Logger, m Telemetry, cfg *Config) (_ *service, rerr error) {
	svc := &service{health: health.New()}
	defer func() {
		if rerr != nil {
			svc.close()
		}
	}()
	healthSvc := svc.health

	// Upstream REST API: products, carts and orders.
	client, err := rest.NewClient(cfg.Upstream.URL,
		rest.WithTimeout(cfg.Upstream.Timeout),
		rest.WithTracerProvider(m.TracerProvider()),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create upstream client")
	}
	healthSvc.AddReadinessCheck("upstream", 5*time.Second, health.PingCheck(client))

	// Cleanup log: PostgreSQL when configured, otherwise process memory.
	var cleanupLog cleanup.Log = memory.NewCleanupLog()
	if cfg.DatabaseURL != "" {
		pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, errors.Wrap(err, "create db pool")
		}
		svc.closers = append(svc.closers, pool.Close)

		if err := postgres.RunMigrations(ctx, pool); err != nil {
			return nil, errors.Wrap(err, "run migrations")
		}
		healthSvc.AddReadinessCheck("postgres", 5*time.Second, health.PingCheck(pool))
		cleanupLog = postgres.NewCleanupLog(pool)
	} else {
		lg.Warn("No database configured, cleanup log is not durable")
	}

	runner, err := cleanup.NewRunner(client, cleanupLog,
		cleanup.WithGone(cart.ErrLineNotFound),
		cleanup.WithMaxAttempts(cfg.Cleanup.MaxAttempts),
		cleanup.WithMeterProvider(m.MeterProvider()),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create cleanup runner")
	}
	go runner.Start(ctx, cfg.Cleanup.Interval, cfg.Cleanup.Batch)

	// Order-placed events.
	var events cart.Publisher
	switch pub, err := kafka.NewPublisher(kafka.ParseBrokers(cfg.Kafka.Brokers), cfg.Kafka.Topic); {
	case errors.Is(err, kafka.ErrDisabled):
		lg.Info("Kafka brokers not configured, order events disabled")
	case err != nil:
		return nil, errors.Wrap(err, "create kafka publisher")
	default:
		svc.closers = append(svc.closers, func() {
			if err := pub.Close(); err != nil {
				lg.Error("Close kafka publisher", zap.Error(err))
			}
		})
		events = pub
	}

	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.Start(ctx, 10*time.Second)
	svc.closers = append(svc.closers, healthSvc.Stop)
	healthSvc.SetReady(true)

	sessions := memory.NewSessionStore()
	go sessions.StartSweeper(ctx, cfg.Session.SweepInterval)

	h := handler.NewHandler(handler.Deps{
		Sessions: session.NewManager(sessions, []byte(cfg.Session.Pepper), cfg.Session.TTL),
		Catalog:  client,
		Cart:     client,
		Orders:   client,
		Cleaner:  runner,
		Cleanups: runner,
		Events:   events,
	})

	mux := http.NewServeMux()
	mux.HandleFunc("GET /livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("GET /readyz", healthSvc.ReadyEndpoint)
	h.Register(mux)
	routeFinder := httpmiddleware.MakeRouteFinder(mux)

	svc.handler = httpmiddleware.Wrap(mux,
		httpmiddleware.Recovery(),
		httpmiddleware.CORS(httpmiddleware.CORSConfig{
			AllowOrigins:     cfg.CORS.Origins,
			AllowHeaders:     []string{"Content-Type", handler.SessionHeader},
			AllowCredentials: cfg.CORS.AllowCredentials,
			MaxAge:           86400,
		}),
		httpmiddleware.RateLimitWithCleanup(ctx, httpmiddleware.RateLimitConfig{
			Max:     cfg.RateLimit.Max,
			Window:  cfg.RateLimit.Window,
		}),
		httpmiddleware.RequestID(),
		httpmiddleware.InjectLogger(lg),
		httpmiddleware.Instrument("storefront", routeFinder, m),
		httpmiddleware.LogRequests(routeFinder),
		httpmiddleware.Labeler(routeFinder),
	)
	return svc, nil
}
