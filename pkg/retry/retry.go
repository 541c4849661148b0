// Package retry wraps calls to external AI services with exponential
// backoff. Index building uses it for embedding requests; the live dialogue
// path never retries, it degrades to the fallback reply instead.
package retry

import (
	"context"
	"fmt"
	"math/rand"
	"time"
)

type Config struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	Jitter       bool
}

// DefaultConfig suits embedding-service rate limits: short first pause,
// capped growth.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:  3,
		InitialDelay: 200 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		Multiplier:   2.0,
		Jitter:       true,
	}
}

// Do runs fn until it succeeds, attempts are exhausted, or ctx is done.
func Do(ctx context.Context, config Config, fn func() error) error {
	delay := config.InitialDelay
	var lastErr error

	for attempt := 1; attempt <= config.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if attempt == config.MaxAttempts {
			break
		}

		wait := delay
		if config.Jitter {
			// Up to 20% extra so synchronized clients spread out.
			wait += time.Duration(rand.Float64() * 0.2 * float64(delay))
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}

		delay = time.Duration(float64(delay) * config.Multiplier)
		if delay > config.MaxDelay {
			delay = config.MaxDelay
		}
	}

	return fmt.Errorf("retry failed after %d attempts: %w", config.MaxAttempts, lastErr)
}
