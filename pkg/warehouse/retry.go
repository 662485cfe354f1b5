package warehouse

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/smartsales/smartsales/pkg/metrics"
)

const (
	maxRetries        = 8
	initialRetryDelay = 50 * time.Millisecond
	maxRetryDelay     = 5 * time.Second
)

// isTransactionConflictError reports whether a whole transaction may succeed if retried.
func isTransactionConflictError(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// serialization_failure, deadlock_detected
		return pgErr.Code == "40001" || pgErr.Code == "40P01"
	}
	errStr := err.Error()
	return strings.Contains(errStr, "Transaction conflict") ||
		strings.Contains(errStr, "database is locked") ||
		strings.Contains(errStr, "SQLITE_BUSY")
}

// retryWithBackoff retries fn with exponential backoff while it fails with a
// transaction conflict. Any other error is returned immediately.
func retryWithBackoff(ctx context.Context, log *slog.Logger, operation string, fn func() error) error {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = initialRetryDelay
	eb.MaxInterval = maxRetryDelay
	b := backoff.WithContext(backoff.WithMaxRetries(eb, maxRetries-1), ctx)

	attempt := 0
	err := backoff.RetryNotify(func() error {
		attempt++
		err := fn()
		if err != nil && !isTransactionConflictError(err) {
			return backoff.Permanent(err)
		}
		return err
	}, b, func(err error, delay time.Duration) {
		metrics.LoadRetries.Inc()
		log.Warn("warehouse: transaction conflict detected, retrying", "operation", operation, "attempt", attempt, "max_attempts", maxRetries, "delay", delay, "error", err)
	})
	if err == nil && attempt > 1 {
		log.Info("warehouse: operation succeeded after retries", "operation", operation, "attempts", attempt)
	}
	return err
}
