package main

import (
	"bufio"
	"context"
	"flag"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	pgzip "github.com/klauspost/pgzip"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/storage/rest"
)

// maxConcurrentShops bounds parallel upstream listings.
const maxConcurrentShops = 4

func main() {
	var (
		upstreamURL string
		shops       string
		outDir      string
		timeout     time.Duration
	)

	flag.StringVar(&upstreamURL, "upstream-url", "", "storefront REST API base URL (or STOREFRONT_UPSTREAM_URL env)")
	flag.StringVar(&shops, "shops", "", "comma-separated shop names to export")
	flag.StringVar(&outDir, "out-dir", "export", "directory receiving one <shop>.jsonl.gz per shop")
	flag.DurationVar(&timeout, "timeout", 30*time.Second, "per-request upstream timeout")
	flag.Parse()

	if upstreamURL == "" {
		upstreamURL = os.Getenv("STOREFRONT_UPSTREAM_URL")
	}
	if upstreamURL == "" {
		slog.Error("upstream URL is required: set --upstream-url or STOREFRONT_UPSTREAM_URL")
		os.Exit(1)
	}
	names := splitShops(shops)
	if len(names) == 0 {
		slog.Error("at least one shop is required: set --shops")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, upstreamURL, names, outDir, timeout); err != nil {
		slog.Error("order export failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("order export completed successfully")
}

func splitShops(csv string) []string {
	var names []string
	for _, s := range strings.Split(csv, ",") {
		if s = strings.TrimSpace(s); s != "" {
			names = append(names, s)
		}
	}
	return names
}

func run(ctx context.Context, upstreamURL string, shops []string, outDir string, timeout time.Duration) error {
	shops, err := uniqueShops(shops)
	if err != nil {
		return err
	}
	client, err := rest.NewClient(upstreamURL, rest.WithTimeout(timeout))
	if err != nil {
		return errors.Wrap(err, "create upstream client")
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return errors.Wrap(err, "create output directory")
	}

	desk := order.NewDesk(client)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentShops)
	for _, shop := range shops {
		g.Go(func() error {
			return exportShop(ctx, desk, shop, outDir)
		})
	}
	return g.Wait()
}

func exportShop(ctx context.Context, desk *order.Desk, shop, outDir string) error {
	orders, err := desk.ForShop(ctx, shop)
	if err != nil {
		return errors.Wrapf(err, "list orders of %s", shop)
	}

	path := filepath.Join(outDir, archiveName(shop))
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "create %s", path)
	}
	defer func() { _ = f.Close() }()

	if err := writeArchive(f, orders); err != nil {
		return errors.Wrapf(err, "write %s", path)
	}
	if err := f.Close(); err != nil {
		return errors.Wrapf(err, "close %s", path)
	}

	n, err := countLines(ctx, path)
	if err != nil {
		return errors.Wrapf(err, "verify %s", path)
	}
	if n != len(orders) {
		return errors.Errorf("verify %s: wrote %d orders, read back %d", path, len(orders), n)
	}

	slog.Info("exported shop orders",
		slog.String("shop", shop),
		slog.String("path", path),
		slog.Int("orders", n),
	)
	return nil
}

// uniqueShops drops repeated shop names and rejects distinct names that
// share an archive file.
func uniqueShops(shops []string) ([]string, error) {
	owner := make(map[string]string, len(shops))
	out := make([]string, 0, len(shops))
	for _, shop := range shops {
		name := archiveName(shop)
		prev, ok := owner[name]
		switch {
		case !ok:
			owner[name] = shop
			out = append(out, shop)
		case prev != shop:
			return nil, errors.Errorf("shops %q and %q both export to %s", prev, shop, name)
		}
	}
	return out, nil
}

// archiveName turns a shop name into a file name.
func archiveName(shop string) string {
	name := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		case r >= 'A' && r <= 'Z':
			return r + ('a' - 'A')
		default:
			return '-'
		}
	}, shop)
	return name + ".jsonl.gz"
}

// writeArchive writes orders as gzip-compressed JSON lines.
func writeArchive(w io.Writer, orders []order.Order) error {
	gz := pgzip.NewWriter(w)
	bw := bufio.NewWriter(gz)

	e := jx.GetEncoder()
	defer jx.PutEncoder(e)
	for _, o := range orders {
		e.Reset()
		encodeOrder(e, o)
		if _, err := bw.Write(e.Bytes()); err != nil {
			return err
		}
		if err := bw.WriteByte('\n'); err != nil {
			return err
		}
	}
	if err := bw.Flush(); err != nil {
		return err
	}
	return gz.Close()
}

func encodeOrder(e *jx.Encoder, o order.Order) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(o.ID)
	e.FieldStart("shopId")
	e.Str(o.ShopID)
	e.FieldStart("shopName")
	e.Str(o.ShopName)
	e.FieldStart("email")
	e.Str(o.Email)
	e.FieldStart("mobileNo")
	e.Str(o.MobileNo)
	e.FieldStart("address")
	e.Str(o.Address)
	e.FieldStart("status")
	e.Str(string(o.Status))
	if !o.CreatedAt.IsZero() {
		e.FieldStart("createdAt")
		e.Str(o.CreatedAt.UTC().Format(time.RFC3339))
	}
	e.FieldStart("products")
	e.ArrStart()
	for _, it := range o.Products {
		e.ObjStart()
		e.FieldStart("productName")
		e.Str(it.ProductName)
		e.FieldStart("quantity")
		e.Int(it.Quantity)
		e.FieldStart("price")
		e.Str(it.Price.StringFixed(2))
		e.ObjEnd()
	}
	e.ArrEnd()
	e.FieldStart("total")
	e.Str(o.Total().StringFixed(2))
	e.ObjEnd()
}

// countLines streams a gzip archive and counts its non-empty lines.
func countLines(ctx context.Context, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return 0, errors.Wrapf(err, "create gzip reader for %s", path)
	}
	defer func() { _ = gz.Close() }()

	var n int
	scanner := bufio.NewScanner(gz)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		if len(scanner.Bytes()) > 0 {
			n++
		}
	}
	if err := scanner.Err(); err != nil {
		return 0, errors.Wrapf(err, "scan %s", path)
	}
	return n, nil
}
