// internal/retry/retry.go
package retry

import (
	"context"
	"errors"
	"math"
	"net/http"
	"slices"
	"time"

	"github.com/rs/zerolog/log"
)

// Policy defines retry behavior with exponential backoff
type Policy struct {
	MaxAttempts          int           // Total attempts, including the first
	InitialBackoff       time.Duration // Wait before the second attempt
	MaxBackoff           time.Duration // Upper bound for any single wait
	Multiplier           float64       // Backoff growth per attempt
	RetryableStatusCodes []int         // HTTP statuses worth another try

	// Retryable classifies errors. When nil every error except a context
	// error is retried.
	Retryable func(error) bool
}

// DefaultPolicy returns a sensible default retry configuration
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:    3,
		InitialBackoff: 1 * time.Second,
		MaxBackoff:     30 * time.Second,
		Multiplier:     2.0,
		RetryableStatusCodes: []int{
			http.StatusTooManyRequests,     // 429
			http.StatusInternalServerError, // 500
			http.StatusBadGateway,          // 502
			http.StatusServiceUnavailable,  // 503
			http.StatusGatewayTimeout,      // 504
		},
	}
}

// RetryableStatus reports whether code is listed in RetryableStatusCodes.
func (p Policy) RetryableStatus(code int) bool {
	return slices.Contains(p.RetryableStatusCodes, code)
}

// Permanent marks an error that must not be retried. Do returns the
// wrapped error.
type Permanent struct{ Err error }

func (p *Permanent) Error() string { return p.Err.Error() }
func (p *Permanent) Unwrap() error { return p.Err }

// Do runs fn until it succeeds, returns a non-retryable error, ctx ends, or
// the policy runs out of attempts. attempt counts from 0. The last error is
// returned unwrapped so callers can still classify it.
func Do(ctx context.Context, p Policy, fn func(ctx context.Context, attempt int) error) error {
	attempts := max(p.MaxAttempts, 1)

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		err := fn(ctx, attempt)
		if err == nil {
			if attempt > 0 {
				log.Debug().Int("attempts", attempt+1).Msg("Retry succeeded")
			}
			return nil
		}
		lastErr = err

		var perm *Permanent
		if errors.As(err, &perm) {
			return perm.Err
		}
		if !p.shouldRetry(ctx, err) {
			log.Debug().Err(err).Msg("Error is not retryable")
			return err
		}
		if attempt == attempts-1 {
			break
		}

		backoff := p.backoff(attempt)
		log.Debug().
			Int("attempt", attempt+1).
			Int("max_attempts", attempts).
			Dur("backoff", backoff).
			Err(err).
			Msg("Retrying after backoff")

		timer := time.NewTimer(backoff)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return lastErr
		}
	}

	if attempts > 1 {
		log.Warn().Int("attempts", attempts).Err(lastErr).Msg("Max retry attempts exceeded")
	}
	return lastErr
}

// backoff is InitialBackoff * Multiplier^attempt, capped at MaxBackoff.
func (p Policy) backoff(attempt int) time.Duration {
	mult := p.Multiplier
	if mult <= 0 {
		mult = 1
	}
	d := float64(p.InitialBackoff) * math.Pow(mult, float64(attempt))
	if p.MaxBackoff > 0 && d > float64(p.MaxBackoff) {
		d = float64(p.MaxBackoff)
	}
	return time.Duration(d)
}

func (p Policy) shouldRetry(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	if p.Retryable != nil {
		return p.Retryable(err)
	}
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}
