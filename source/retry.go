package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// baseRetryDelay is the first backoff step; tests shorten it.
var baseRetryDelay = 100 * time.Millisecond

// RetryWithBackoff executes fn until it succeeds or maxRetries attempts have
// been made, with exponential backoff between attempts.
// Backoff schedule: 100ms, 200ms, 400ms, 800ms, 1.6s, 3.2s, capped at 5s.
func RetryWithBackoff(ctx context.Context, maxRetries int, fn func() error) error {
	if maxRetries < 1 {
		maxRetries = 1
	}
	var err error
	for i := 0; i < maxRetries; i++ {
		err = fn()
		if err == nil {
			return nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		if i == maxRetries-1 {
			break
		}

		delay := baseRetryDelay << uint(i)
		if delay > 5*time.Second {
			delay = 5 * time.Second
		}
		slog.Warn("Attempt failed, retrying.", "attempt", i+1, "max_attempts", maxRetries, "delay", delay, "error", err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return fmt.Errorf("after %d attempts: %w", maxRetries, err)
}
