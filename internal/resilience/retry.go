// Package resilience retries transient failures when fetching remote inputs.
package resilience

import (
	"context"
	"math"
	"math/rand/v2"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Policy controls retries with exponential backoff and jitter.
type Policy struct {
	// Attempts is the total number of tries, the first included. Default 3.
	Attempts int
	// Backoff is the delay before the first retry; it doubles per attempt.
	// Default 500ms.
	Backoff time.Duration
	// MaxBackoff caps a single delay. Default 30s.
	MaxBackoff time.Duration
	// Jitter adds up to this fraction of the delay at random. Default 0.5.
	Jitter float64
	// Operation names the call in retry logs.
	Operation string
}

func (p Policy) withDefaults() Policy {
	if p.Attempts <= 0 {
		p.Attempts = 3
	}
	if p.Backoff <= 0 {
		p.Backoff = 500 * time.Millisecond
	}
	if p.MaxBackoff <= 0 {
		p.MaxBackoff = 30 * time.Second
	}
	if p.Jitter <= 0 {
		p.Jitter = 0.5
	}
	return p
}

// ErrExhausted wraps the last error once every attempt has failed.
var ErrExhausted = eris.New("all retries exhausted")

// Do calls fn until it succeeds, returns an error that is not transient, the
// attempts run out or ctx is done.
func Do[T any](ctx context.Context, p Policy, fn func(ctx context.Context) (T, error)) (T, error) {
	p = p.withDefaults()

	var zero T
	var lastErr error
	for attempt := 0; attempt < p.Attempts; attempt++ {
		val, err := fn(ctx)
		if err == nil {
			return val, nil
		}
		lastErr = err

		if ctx.Err() != nil || !IsTransient(err) {
			return zero, err
		}
		if attempt == p.Attempts-1 {
			break
		}

		zap.L().Warn("retrying",
			zap.String("operation", p.Operation),
			zap.Int("attempt", attempt+1),
			zap.Error(err),
		)

		timer := time.NewTimer(p.delay(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, lastErr
		case <-timer.C:
		}
	}

	return zero, eris.Wrapf(ErrExhausted, "%s after %d attempts: %v", p.Operation, p.Attempts, lastErr)
}

func (p Policy) delay(attempt int) time.Duration {
	d := float64(p.Backoff) * math.Pow(2, float64(attempt))
	if d > float64(p.MaxBackoff) {
		d = float64(p.MaxBackoff)
	}
	d += d * p.Jitter * rand.Float64()
	return time.Duration(d)
}
