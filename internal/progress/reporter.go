// Package progress reports blocks-per-millisecond and estimated time to
// chain head on a rolling window, per spec.md §4.6. The timer state is
// guarded independently of the RPC round-trip so a slow status call
// never blocks a concurrent Tick from reading the window (the same
// lock-then-release-then-blocking-IO discipline as the connection
// pool's reaper in core/connection_pool.go).
package progress

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/nearindexer/streamer/internal/errs"
	"github.com/nearindexer/streamer/internal/rpc"
)

// windowSize bounds the rolling window of (elapsed, height) samples used
// to compute blocks-per-millisecond, per spec.md §4.6.
const windowSize = 5

// MinInterval is how often Tick actually performs work; calls inside
// the interval are no-ops, per spec.md §4.6's "every ≥10 real-time
// seconds" cadence.
const MinInterval = 10 * time.Second

type sample struct {
	at     time.Time
	height uint64
}

// Reporter periodically queries the upstream RPC's status endpoint and
// logs height, blocks-per-millisecond, miss count, and an ETA to chain
// head.
type Reporter struct {
	mu          sync.Mutex
	lastTick    time.Time
	window      []sample
	minInterval time.Duration

	status rpc.StatusClient
	log    logrus.FieldLogger
	misses func() uint64
}

// New builds a Reporter. misses supplies the current provenance miss
// count for the log line; minInterval falls back to MinInterval when
// zero.
func New(status rpc.StatusClient, log logrus.FieldLogger, misses func() uint64, minInterval time.Duration) *Reporter {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if minInterval <= 0 {
		minInterval = MinInterval
	}
	return &Reporter{status: status, log: log, misses: misses, minInterval: minInterval}
}

// Tick is called once per processed block. If at least minInterval has
// elapsed since the last report, it queries the upstream head height,
// appends a sample to the rolling window, and logs one progress line.
// It is a no-op otherwise.
func (r *Reporter) Tick(ctx context.Context, currentBlockHeight uint64) {
	r.mu.Lock()
	now := time.Now()
	if !r.lastTick.IsZero() && now.Sub(r.lastTick) < r.minInterval {
		r.mu.Unlock()
		return
	}
	r.lastTick = now
	r.mu.Unlock()

	headHeight, err := r.status.LatestBlockHeight(ctx)
	if err != nil {
		r.log.WithError(err).Warn("progress: status rpc failed")
		return
	}

	r.mu.Lock()
	r.window = append(r.window, sample{at: now, height: currentBlockHeight})
	if len(r.window) > windowSize {
		r.window = r.window[len(r.window)-windowSize:]
	}
	bps := r.blocksPerMillisecond()
	r.mu.Unlock()

	r.log.WithFields(logrus.Fields{
		"height":        currentBlockHeight,
		"head_height":   headHeight,
		"bps":           bps,
		errs.Provenance: r.misses(),
		"eta":           eta(bps, currentBlockHeight, headHeight),
	}).Info("indexer progress")
}

// blocksPerMillisecond computes the window's height delta over its time
// span. Callers must hold r.mu.
func (r *Reporter) blocksPerMillisecond() float64 {
	if len(r.window) < 2 {
		return 0
	}
	first, last := r.window[0], r.window[len(r.window)-1]
	elapsedMs := last.at.Sub(first.at).Milliseconds()
	if elapsedMs <= 0 {
		return 0
	}
	if last.height <= first.height {
		return 0
	}
	return float64(last.height-first.height) / float64(elapsedMs)
}

// eta estimates time to chain head from the current blocks-per-
// millisecond rate. A zero or unknown rate, or a current height at or
// past head, reports a zero ETA.
func eta(bps float64, current, head uint64) time.Duration {
	if bps <= 0 || head <= current {
		return 0
	}
	remaining := float64(head - current)
	return time.Duration(remaining/bps) * time.Millisecond
}
