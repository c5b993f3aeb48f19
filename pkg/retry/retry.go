// Package retry provides bounded exponential backoff for the egress
// client's downstream POSTs, per SPEC_FULL.md §4.4's decision
// to add retry on top of the source's ignore-and-continue behavior for
// transport and 5xx failures (spec.md §9's "HTTP egress fault
// tolerance" design note). The backoff shape mirrors the interval/EWMA
// style of the teacher's peer health checker (core/fault_tolerance.go),
// adapted from a ping loop to a bounded call-and-retry helper.
package retry

import (
	"context"
	"time"
)

// Policy bounds a sequence of retry attempts.
type Policy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

// DefaultPolicy makes up to 5 attempts (4 retries), starting at 200ms and
// doubling up to a 10s ceiling.
var DefaultPolicy = Policy{
	MaxAttempts:  5,
	InitialDelay: 200 * time.Millisecond,
	MaxDelay:     10 * time.Second,
	Multiplier:   2,
}

// Retryable is implemented by errors that carry their own opinion on
// whether another attempt is worth making (e.g. a 5xx remote response).
// Errors that don't implement it are always considered retryable, so
// that transport-level failures (which have no Retryable method) retry
// by default per spec.md §9.
type Retryable interface {
	Retryable() bool
}

// Do calls fn until it succeeds, p is exhausted, or ctx is canceled.
// fn's error is consulted via the Retryable interface when present;
// an error that reports Retryable() == false aborts immediately.
func Do(ctx context.Context, p Policy, fn func(ctx context.Context) error) error {
	if p.MaxAttempts <= 0 {
		p = DefaultPolicy
	}
	delay := p.InitialDelay
	if delay <= 0 {
		delay = DefaultPolicy.InitialDelay
	}

	var lastErr error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if r, ok := lastErr.(Retryable); ok && !r.Retryable() {
			return lastErr
		}
		if attempt == p.MaxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}

		delay = time.Duration(float64(delay) * p.Multiplier)
		if p.MaxDelay > 0 && delay > p.MaxDelay {
			delay = p.MaxDelay
		}
	}
	return lastErr
}
