// internal/retry/retry.go
package retry

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/rs/zerolog/log"
)

// ErrExhausted is matched by the error returned when every attempt failed.
var ErrExhausted = errors.New("retries exhausted")

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Config defines retry behavior with a jittered delay between attempts
type Config struct {
	MaxAttempts int           // Maximum number of attempts, including the first
	MinDelay    time.Duration // Lower bound of the inter-attempt delay
	MaxDelay    time.Duration // Upper bound of the inter-attempt delay
	Sleep       SleepFunc     // Defaults to a context-aware timer
}

// DefaultConfig returns three attempts separated by 1-3s of jitter
func DefaultConfig() Config {
	return Config{
		MaxAttempts: 3,
		MinDelay:    1 * time.Second,
		MaxDelay:    3 * time.Second,
	}
}

// WithRetry runs fn until it succeeds, returns a permanent error, or the
// attempt ceiling is reached. fn receives the 1-based attempt number.
// Attempts are strictly sequential and no delay follows the final attempt.
func WithRetry(ctx context.Context, cfg Config, fn func(attempt int) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	sleep := cfg.Sleep
	if sleep == nil {
		sleep = Sleep
	}

	var lastErr error

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := fn(attempt)
		if err == nil {
			if attempt > 1 {
				log.Debug().
					Int("attempts", attempt).
					Msg("Retry succeeded")
			}
			return nil
		}

		lastErr = err

		// The caller went away; attempt errors are a symptom, not the cause.
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		var perm *permanentError
		if errors.As(err, &perm) {
			log.Debug().
				Err(err).
				Msg("Error is not retryable")
			return perm.err
		}

		if attempt < cfg.MaxAttempts {
			delay := Jitter(cfg.MinDelay, cfg.MaxDelay)

			log.Debug().
				Int("attempt", attempt).
				Int("max_attempts", cfg.MaxAttempts).
				Dur("backoff", delay).
				Err(err).
				Msg("Retrying after backoff")

			if err := sleep(ctx, delay); err != nil {
				return err
			}
		}
	}

	log.Warn().
		Int("attempts", cfg.MaxAttempts).
		Err(lastErr).
		Msg("Max retry attempts exceeded")

	return &exhaustedError{attempts: cfg.MaxAttempts, last: lastErr}
}

// Jitter returns a duration drawn uniformly from [min, max].
func Jitter(min, max time.Duration) time.Duration {
	if min < 0 {
		min = 0
	}
	if max <= min {
		return min
	}
	return min + rand.N(max-min+1)
}

// Sleep blocks for d or until ctx is done, whichever comes first.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

type exhaustedError struct {
	attempts int
	last     error
}

func (e *exhaustedError) Error() string {
	return fmt.Sprintf("operation failed after %d attempts: %v", e.attempts, e.last)
}

func (e *exhaustedError) Unwrap() []error { return []error{ErrExhausted, e.last} }

// HTTPError represents a non-2xx HTTP response
type HTTPError struct {
	StatusCode int
	Status     string
	URL        string
}

// StatusCoder is an interface for errors that provide an HTTP status code
type StatusCoder interface {
	GetStatusCode() int
}

func (e HTTPError) Error() string {
	if e.URL != "" {
		return fmt.Sprintf("HTTP %d: %s (%s)", e.StatusCode, e.Status, e.URL)
	}
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Status)
}

func (e HTTPError) GetStatusCode() int {
	return e.StatusCode
}

// NewHTTPError creates a new HTTPError
func NewHTTPError(statusCode int, status string, url string) HTTPError {
	return HTTPError{
		StatusCode: statusCode,
		Status:     status,
		URL:        url,
	}
}

// StatusCode extracts an HTTP status from err, or 0 if it carries none.
func StatusCode(err error) int {
	var sc StatusCoder
	if errors.As(err, &sc) {
		return sc.GetStatusCode()
	}
	return 0
}
