package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"salesbridge/internal/constants"
)

// retryableWrite executes a write with bounded retries against transient
// sqlite failures. Constraint violations and schema errors fail fast.
func retryableWrite(ctx context.Context, operationName string, operation func() error) error {
	maxAttempts := constants.DefaultDatabaseRetryAttempts
	step := time.Duration(constants.DefaultRetryBackoffMs) * time.Millisecond
	maxBackoff := time.Duration(constants.DefaultMaxBackoffMs) * time.Millisecond

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = operation()
		if lastErr == nil {
			return nil
		}
		if !isRetryableDBError(lastErr) {
			return fmt.Errorf("%s failed (non-retryable): %w", operationName, lastErr)
		}
		if attempt == maxAttempts {
			break
		}

		// Linear backoff, capped. Contention on a single sqlite file clears
		// quickly so there is no need for an exponential curve here.
		backoff := min(time.Duration(attempt)*step, maxBackoff)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxAttempts, lastErr)
}

// isRetryableDBError reports whether a sqlite error is transient. Only lock
// contention and disk I/O hiccups qualify; everything else fails fast.
func isRetryableDBError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	msg := err.Error()
	return strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "disk I/O error")
}
