package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/go-faster/errors"

	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/domain/session"
	"github.com/xenking/storefront/internal/storage/rest"
)

type lineJSON struct {
	ProductName string `json:"productName"`
	ShopID      string `json:"shopId"`
	ShopName    string `json:"shopName"`
	Quantity    int    `json:"quantity"`
}

func main() {
	var (
		upstreamURL string
		cartFile    string
		email       string
		timeout     time.Duration
	)

	flag.StringVar(&upstreamURL, "upstream-url", "", "storefront REST API base URL (or STOREFRONT_UPSTREAM_URL env)")
	flag.StringVar(&cartFile, "cart-file", "db/seed/cart.json", "path to cart lines JSON file")
	flag.StringVar(&email, "email", "", "customer email owning the cart")
	flag.DurationVar(&timeout, "timeout", 10*time.Second, "per-request upstream timeout")
	flag.Parse()

	if upstreamURL == "" {
		upstreamURL = os.Getenv("STOREFRONT_UPSTREAM_URL")
	}
	if upstreamURL == "" {
		slog.Error("upstream URL is required: set --upstream-url or STOREFRONT_UPSTREAM_URL")
		os.Exit(1)
	}
	if email == "" {
		slog.Error("customer email is required: set --email")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, upstreamURL, cartFile, email, timeout); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, upstreamURL, cartFile, email string, timeout time.Duration) error {
	slog.Info("reading cart file", slog.String("path", cartFile))

	data, err := os.ReadFile(cartFile)
	if err != nil {
		return errors.Wrap(err, "read cart file")
	}

	var lines []lineJSON
	if err := json.Unmarshal(data, &lines); err != nil {
		return errors.Wrap(err, "parse cart JSON")
	}

	client, err := rest.NewClient(upstreamURL, rest.WithTimeout(timeout))
	if err != nil {
		return errors.Wrap(err, "create upstream client")
	}

	sess := session.Session{UserEmail: email, Role: session.RoleCustomer}
	if err := sess.Validate(); err != nil {
		return err
	}

	// Lines are priced from the live catalog and checked against its stock.
	eng := cart.NewEngine(sess, client, client, nil, nil, nil)
	if err := eng.Load(ctx); err != nil {
		return errors.Wrap(err, "load cart")
	}

	slog.Info("adding cart lines", slog.Int("count", len(lines)), slog.String("email", email))

	for _, l := range lines {
		created, err := eng.AddLine(ctx, cart.AddRequest{
			ProductName: l.ProductName,
			ShopID:      l.ShopID,
			ShopName:    l.ShopName,
			Quantity:    l.Quantity,
		})
		if err != nil {
			return errors.Wrapf(err, "add %s from shop %s", l.ProductName, l.ShopID)
		}

		slog.Info("added cart line",
			slog.String("id", created.ID),
			slog.String("product", created.ProductName),
			slog.String("total_bill", created.TotalBill.StringFixed(2)),
		)
	}

	totals := eng.Totals()
	slog.Info("cart seeded",
		slog.Int("total_quantity", totals.Quantity),
		slog.String("total_bill", totals.Bill.StringFixed(2)),
	)

	return nil
}
