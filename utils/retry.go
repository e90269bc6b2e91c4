package utils

import (
	"context"
	"time"
)

// Retry runs fn up to maxAttempts times with exponential backoff, starting
// from initialDelay. The retryable predicate decides whether a failure is
// worth another attempt; non-retryable errors are returned immediately.
// Context cancellation stops the wait between attempts.
func Retry(ctx context.Context, maxAttempts int, initialDelay time.Duration, retryable func(error) bool, fn func() error) error {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	delay := initialDelay
	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err = fn()
		if err == nil {
			return nil
		}
		if retryable != nil && !retryable(err) {
			return err
		}
		if attempt == maxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
	return err
}
