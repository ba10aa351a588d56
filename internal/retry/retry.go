// Package retry implements exponential backoff with jitter for
// transient failures against external systems.
package retry

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"
)

var (
	ErrMaxRetriesExceeded = errors.New("max retries exceeded")
	ErrContextCanceled    = errors.New("context canceled during retry")
)

// Config contains retry configuration
type Config struct {
	// MaxRetries is the maximum number of retry attempts (0 = no retries)
	MaxRetries int
	// InitialInterval is the initial backoff interval (default: 1s)
	InitialInterval time.Duration
	// MaxInterval is the maximum backoff interval (default: 30s)
	MaxInterval time.Duration
	// Multiplier is the backoff growth factor (default: 2.0)
	Multiplier float64
	// JitterFactor is the random jitter fraction 0-1 (default: 0.1)
	JitterFactor float64
}

// DefaultConfig returns default retry configuration
func DefaultConfig() *Config {
	return &Config{
		MaxRetries:      5,
		InitialInterval: 1 * time.Second,
		MaxInterval:     30 * time.Second,
		Multiplier:      2.0,
		JitterFactor:    0.1,
	}
}

// Operation is the function to be retried
type Operation func(ctx context.Context) error

// PermanentError wraps an error indicating it should NOT be retried
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

// Permanent marks an error as permanent (not retryable)
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// Do executes the operation with exponential backoff. The returned
// error is the last attempt's error, wrapped when retries ran out.
func Do(ctx context.Context, cfg *Config, op Operation) error {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.InitialInterval <= 0 {
		cfg.InitialInterval = time.Second
	}
	if cfg.MaxInterval <= 0 {
		cfg.MaxInterval = 30 * time.Second
	}
	if cfg.Multiplier <= 0 {
		cfg.Multiplier = 2.0
	}

	var lastErr error
	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		if ctx.Err() != nil {
			return errors.Join(ErrContextCanceled, lastErr)
		}

		err := op(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		var permErr *PermanentError
		if errors.As(err, &permErr) {
			return permErr.Err
		}

		if attempt == cfg.MaxRetries {
			break
		}

		select {
		case <-ctx.Done():
			return errors.Join(ErrContextCanceled, lastErr)
		case <-time.After(interval(cfg, attempt)):
		}
	}

	return errors.Join(ErrMaxRetriesExceeded, lastErr)
}

func interval(cfg *Config, attempt int) time.Duration {
	d := float64(cfg.InitialInterval) * math.Pow(cfg.Multiplier, float64(attempt))

	// Jitter to avoid thundering herd
	if cfg.JitterFactor > 0 {
		jitter := d * cfg.JitterFactor
		d = d + (rand.Float64()*2-1)*jitter
	}

	if d > float64(cfg.MaxInterval) {
		d = float64(cfg.MaxInterval)
	}
	if d < 0 {
		d = float64(cfg.InitialInterval)
	}
	return time.Duration(d)
}
