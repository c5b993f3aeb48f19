package rpc

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/time/rate"
)

func TestLatestBlockHeightParsesResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","result":{"sync_info":{"latest_block_height":123456}}}`))
	}))
	defer srv.Close()

	c, err := New(srv.URL, srv.Client(), rate.NewLimiter(rate.Inf, 1), time.Millisecond)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	height, err := c.LatestBlockHeight(context.Background())
	if err != nil {
		t.Fatalf("LatestBlockHeight: %v", err)
	}
	if height != 123456 {
		t.Fatalf("expected height 123456, got %d", height)
	}
}

func TestLatestBlockHeightCachesWithinTTL(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","result":{"sync_info":{"latest_block_height":1}}}`))
	}))
	defer srv.Close()

	c, err := New(srv.URL, srv.Client(), rate.NewLimiter(rate.Inf, 1), time.Hour)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	for i := 0; i < 3; i++ {
		if _, err := c.LatestBlockHeight(context.Background()); err != nil {
			t.Fatalf("LatestBlockHeight: %v", err)
		}
	}
	if got := calls.Load(); got != 1 {
		t.Fatalf("expected exactly 1 upstream call, got %d", got)
	}
}

func TestLatestBlockHeightPropagatesRPCError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","error":{"message":"node unavailable"}}`))
	}))
	defer srv.Close()

	c, err := New(srv.URL, srv.Client(), rate.NewLimiter(rate.Inf, 1), time.Millisecond)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := c.LatestBlockHeight(context.Background()); err == nil {
		t.Fatalf("expected an error when upstream returns an rpc error")
	}
}

func TestLatestBlockHeightPropagatesNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c, err := New(srv.URL, srv.Client(), rate.NewLimiter(rate.Inf, 1), time.Millisecond)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := c.LatestBlockHeight(context.Background()); err == nil {
		t.Fatalf("expected an error for a 503 response")
	}
}
