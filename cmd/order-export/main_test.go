package main

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/storefront/internal/domain/order"
)

func TestWriteArchive(t *testing.T) {
	orders := []order.Order{
		{
			ID: "o1", ShopID: "s1", ShopName: "Stationery", Email: "a@b.c", Status: order.StatusPending,
			CreatedAt: time.Date(2024, 3, 1, 10, 15, 0, 0, time.UTC),
			Products: []order.Item{{ProductName: "Pen", Quantity: 2, Price: decimal.RequireFromString("3.34")}},
		},
		{ID: "o2", ShopID: "s1", ShopName: "Stationery", Email: "d@e.f", Status: order.StatusComplete},
	}

	var buf bytes.Buffer
	require.NoError(t, writeArchive(&buf, orders))

	gz, err := pgzip.NewReader(&buf)
	require.NoError(t, err)
	raw, err := io.ReadAll(gz)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], `"id":"o1"`)
	assert.Contains(t, lines[0], `"price":"3.34"`)
	assert.Contains(t, lines[0], `"total":"6.68"`)
	assert.Contains(t, lines[0], `"createdAt":"2024-03-01T10:15:00Z"`)
	assert.NotContains(t, lines[1], `"createdAt"`)
	assert.Contains(t, lines[1], `"status":"Complete"`)
}

func TestArchiveName(t *testing.T) {
	assert.Equal(t, "corner-bakery.jsonl.gz", archiveName("Corner Bakery"))
	assert.Equal(t, "a-b.jsonl.gz", archiveName("a/b"))
}

func TestSplitShops(t *testing.T) {
	assert.Equal(t, []string{"A", "B c"}, splitShops(" A, ,B c,"))
	assert.Empty(t, splitShops(""))
}

func TestUniqueShops(t *testing.T) {
	got, err := uniqueShops([]string{"Bakery", "Corner Shop", "Bakery"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Bakery", "Corner Shop"}, got)

	_, err = uniqueShops([]string{"Corner Shop", "corner-shop"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "corner-shop.jsonl.gz")
}

func TestRunArchiveCollision(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		_, _ = io.WriteString(w, `[]`)
	}))
	t.Cleanup(srv.Close)

	dir := t.TempDir()
	err := run(context.Background(), srv.URL, []string{"Corner Shop", "corner-shop"}, dir, time.Second)
	require.Error(t, err)
	assert.Zero(t, calls.Load())

	require.NoError(t, run(context.Background(), srv.URL, []string{"Bakery", "Bakery"}, dir, time.Second))
	assert.EqualValues(t, 1, calls.Load())
	n, err := countLines(context.Background(), filepath.Join(dir, "bakery.jsonl.gz"))
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRun(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/orders", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Query().Get("shopName") {
		case "Bakery":
			_, _ = io.WriteString(w, `[{"_id":"o1","shopId":"s2","shopName":"Bakery","email":"a@b.c",`+
				`"products":[{"productName":"Bun","quantity":3,"price":1.5}],"received":"Pending"}]`)
		default:
			_, _ = io.WriteString(w, `[]`)
		}
	}))
	t.Cleanup(srv.Close)

	dir := t.TempDir()
	require.NoError(t, run(context.Background(), srv.URL, []string{"Bakery", "Empty Shop"}, dir, time.Second))

	n, err := countLines(context.Background(), filepath.Join(dir, "bakery.jsonl.gz"))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = countLines(context.Background(), filepath.Join(dir, "empty-shop.jsonl.gz"))
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRunUpstreamFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)

	dir := t.TempDir()
	err := run(context.Background(), srv.URL, []string{"Bakery"}, dir, time.Second)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "list orders of Bakery")

	_, statErr := os.Stat(filepath.Join(dir, "bakery.jsonl.gz"))
	assert.True(t, os.IsNotExist(statErr))
}
