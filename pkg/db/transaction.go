package db

import (
	"context"
	"time"

	"gorm.io/gorm"
)

const DefaultTxAttempts = 3

// Transaction runs fn in a database transaction and retries the whole unit
// when the store reports a serialization failure or deadlock.
func Transaction(ctx context.Context, conn *gorm.DB, attempts int, fn func(tx *gorm.DB) error) error {
	return WithRetry(ctx, attempts, func() error {
		return conn.WithContext(ctx).Transaction(fn)
	})
}

// WithRetry calls fn up to attempts times while it returns a retryable error.
func WithRetry(ctx context.Context, attempts int, fn func() error) error {
	if attempts < 1 {
		attempts = DefaultTxAttempts
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = fn()
		if err == nil || !IsRetryable(err) {
			return err
		}
		if attempt == attempts {
			break
		}

		backoff := time.Duration(attempt*attempt) * 10 * time.Millisecond
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
	return err
}
