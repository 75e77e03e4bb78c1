// Package resilience retries startup operations against the PostGIS area
// store with exponential backoff.
package resilience

import (
	"context"
	"math"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"
)

// Backoff controls how often and how patiently an operation is retried.
type Backoff struct {
	// Attempts is the total number of tries, including the first.
	Attempts int

	// Initial is the delay before the first retry.
	Initial time.Duration

	// Max caps a single delay.
	Max time.Duration

	// Multiplier scales the delay after each attempt.
	Multiplier float64

	// Jitter spreads each delay by up to this fraction in either direction.
	Jitter float64
}

// DefaultBackoff returns the backoff used for store connections.
func DefaultBackoff() Backoff {
	return Backoff{
		Attempts:   5,
		Initial:    500 * time.Millisecond,
		Max:        10 * time.Second,
		Multiplier: 2.0,
		Jitter:     0.2,
	}
}

// WithAttempts returns b with the attempt count and initial delay replaced
// where they are positive.
func (b Backoff) WithAttempts(attempts int, initial time.Duration) Backoff {
	if attempts > 0 {
		b.Attempts = attempts
	}
	if initial > 0 {
		b.Initial = initial
	}
	return b
}

func (b Backoff) normalized() Backoff {
	d := DefaultBackoff()
	if b.Attempts <= 0 {
		b.Attempts = d.Attempts
	}
	if b.Initial <= 0 {
		b.Initial = d.Initial
	}
	if b.Max <= 0 {
		b.Max = d.Max
	}
	if b.Multiplier < 1 {
		b.Multiplier = d.Multiplier
	}
	if b.Jitter < 0 {
		b.Jitter = 0
	}
	return b
}

// Delay returns the wait after the given zero-based failed attempt. unit
// supplies a value in [0, 1) for jitter.
func (b Backoff) Delay(attempt int, unit func() float64) time.Duration {
	b = b.normalized()
	delay := float64(b.Initial) * math.Pow(b.Multiplier, float64(attempt))
	if delay > float64(b.Max) {
		delay = float64(b.Max)
	}
	if b.Jitter > 0 && unit != nil {
		delay += (unit()*2 - 1) * delay * b.Jitter
	}
	if delay < 0 {
		delay = 0
	}
	return time.Duration(delay)
}

// Retry calls fn until it succeeds, returns an error IsTransient rejects,
// the attempts run out, or ctx is done. The last error is returned as is.
func Retry[T any](ctx context.Context, b Backoff, op string, fn func(context.Context) (T, error)) (T, error) {
	b = b.normalized()

	var zero T
	var lastErr error
	for attempt := 0; attempt < b.Attempts; attempt++ {
		val, err := fn(ctx)
		if err == nil {
			return val, nil
		}
		lastErr = err

		if ctx.Err() != nil || !IsTransient(err) || attempt == b.Attempts-1 {
			break
		}

		delay := b.Delay(attempt, rand.Float64)
		zap.L().Warn("retrying store operation",
			zap.String("operation", op),
			zap.Int("attempt", attempt+1),
			zap.Duration("delay", delay),
			zap.Error(err),
		)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, lastErr
		case <-timer.C:
		}
	}
	return zero, lastErr
}
