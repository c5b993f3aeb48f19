// Package rpc talks to the upstream node's JSON-RPC status endpoint, used
// by the progress reporter to learn the chain's current head height
// (spec.md §4.6, §6).
package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/time/rate"

	"github.com/nearindexer/streamer/internal/errs"
)

// statusRequest is the JSON-RPC 2.0 envelope for the "status" method.
type statusRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      string `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type statusResponse struct {
	Result *struct {
		SyncInfo struct {
			LatestBlockHeight uint64 `json:"latest_block_height"`
		} `json:"sync_info"`
	} `json:"result"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// StatusClient reports the upstream chain's current head height.
type StatusClient interface {
	LatestBlockHeight(ctx context.Context) (uint64, error)
}

// cacheEntry is the short-lived memoized answer to a status call, so a
// burst of progress-reporter ticks inside the same second doesn't issue
// redundant RPC round-trips.
type cacheEntry struct {
	height    uint64
	fetchedAt time.Time
}

// client is the real StatusClient, grounded on the driver's own
// HTTP-client-plus-rate-limiter shape (core's virtual machine host-call
// rate limiter) and a small LRU memo to smooth bursty callers.
type client struct {
	url        string
	httpClient *http.Client
	limiter    *rate.Limiter
	cache      *lru.Cache[string, cacheEntry]
	cacheTTL   time.Duration
}

const cacheKey = "status"

// New builds a StatusClient against the given RPC endpoint. limiter
// bounds how often this client will actually hit the network; a cached
// answer younger than cacheTTL is returned without a round-trip.
func New(url string, httpClient *http.Client, limiter *rate.Limiter, cacheTTL time.Duration) (StatusClient, error) {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if limiter == nil {
		limiter = rate.NewLimiter(rate.Limit(5), 1)
	}
	if cacheTTL <= 0 {
		cacheTTL = time.Second
	}
	cache, err := lru.New[string, cacheEntry](1)
	if err != nil {
		return nil, &errs.Config{Field: "rpc status cache", Err: err}
	}
	return &client{
		url:        url,
		httpClient: httpClient,
		limiter:    limiter,
		cache:      cache,
		cacheTTL:   cacheTTL,
	}, nil
}

func (c *client) LatestBlockHeight(ctx context.Context) (uint64, error) {
	if entry, ok := c.cache.Get(cacheKey); ok && time.Since(entry.fetchedAt) < c.cacheTTL {
		return entry.height, nil
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return 0, &errs.Rpc{Op: "status: rate limit wait", Err: err}
	}

	height, err := c.fetch(ctx)
	if err != nil {
		return 0, err
	}

	c.cache.Add(cacheKey, cacheEntry{height: height, fetchedAt: time.Now()})
	return height, nil
}

func (c *client) fetch(ctx context.Context) (uint64, error) {
	body, err := json.Marshal(statusRequest{
		JSONRPC: "2.0",
		ID:      "near-indexer",
		Method:  "status",
		Params:  []any{},
	})
	if err != nil {
		return 0, &errs.Rpc{Op: "status: encode request", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return 0, &errs.Rpc{Op: "status: build request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, &errs.Rpc{Op: "status: do request", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return 0, &errs.Rpc{Op: "status", Err: fmt.Errorf("unexpected status %d: %s", resp.StatusCode, b)}
	}

	var parsed statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return 0, &errs.Rpc{Op: "status: decode response", Err: err}
	}
	if parsed.Error != nil {
		return 0, &errs.Rpc{Op: "status", Err: fmt.Errorf("rpc error: %s", parsed.Error.Message)}
	}
	if parsed.Result == nil {
		return 0, &errs.Rpc{Op: "status", Err: fmt.Errorf("empty result")}
	}

	return parsed.Result.SyncInfo.LatestBlockHeight, nil
}
