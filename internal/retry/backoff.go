// Package retry implements the bounded exponential backoff used to absorb
// transient and provider failures per spec §7, grounded on the token-bucket
// style rate control in PedroCLI's pkg/webscrape/ratelimit.go (same domain
// concern: bound retries of a flaky external call).
package retry

import (
	"context"
	"math/rand"
	"time"
)

// Policy parameterizes exponential backoff with jitter.
type Policy struct {
	Base       time.Duration
	Factor     float64
	Jitter     float64 // fraction, e.g. 0.2 for ±20%
	Max        time.Duration
	MaxRetries int
}

// DefaultPolicy matches spec §7: base 500ms, factor 2, jitter ±20%, cap 30s.
func DefaultPolicy(maxRetries int) Policy {
	return Policy{
		Base:       500 * time.Millisecond,
		Factor:     2,
		Jitter:     0.2,
		Max:        30 * time.Second,
		MaxRetries: maxRetries,
	}
}

// Delay returns the backoff delay before retry attempt n (1-indexed).
func (p Policy) Delay(attempt int) time.Duration {
	d := float64(p.Base)
	for i := 1; i < attempt; i++ {
		d *= p.Factor
	}
	if cap := float64(p.Max); d > cap {
		d = cap
	}
	jitter := d * p.Jitter
	delta := (rand.Float64()*2 - 1) * jitter
	d += delta
	if d < 0 {
		d = 0
	}
	return time.Duration(d)
}

// Do runs fn up to p.MaxRetries+1 times, retrying only while shouldRetry(err)
// is true and the context remains live. It returns the last error otherwise.
func Do(ctx context.Context, p Policy, shouldRetry func(error) bool, fn func(ctx context.Context, attempt int) error) error {
	var lastErr error
	for attempt := 1; attempt <= p.MaxRetries+1; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := fn(ctx, attempt)
		if err == nil {
			return nil
		}
		lastErr = err
		if attempt > p.MaxRetries || !shouldRetry(err) {
			return lastErr
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.Delay(attempt)):
		}
	}
	return lastErr
}
