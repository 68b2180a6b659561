// Package retryutil provides the generic exponential-backoff-with-
// jitter retry loop used by the Performance Client (spec §4.4: "2
// retries with exponential backoff"). Grounded on rohmanhakim/docs-crawler's
// generic pkg/retry.Retry[T] (retryable-error check, attempt loop,
// exponential-backoff-with-jitter delay), adapted to use
// context.Context for cancellable sleeps (spec §5: "every... call" is
// a suspension point cancellable via the audit's context) and
// pkg/errs.Retryable instead of docs-crawler's failure.ClassifiedError
// interface.
package retryutil

import (
	"context"
	"math/rand"
	"time"

	"github.com/geoauditlabs/geo-audit-core/pkg/errs"
)

// Do runs fn up to maxAttempts times, retrying only when the returned
// error is retryable per errs.Retryable, sleeping between attempts
// with exponential backoff (base, doubling, capped at max) plus up to
// 20% jitter. The sleep is cancellable via ctx.
func Do[T any](ctx context.Context, maxAttempts int, base, max time.Duration, fn func() (T, error)) (T, error) {
	var zero T
	var lastErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if ctx.Err() != nil {
			return zero, errs.Wrap(errs.KindCanceled, "retry aborted", ctx.Err())
		}

		result, err := fn()
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !errs.Retryable(err) {
			return zero, err
		}
		if attempt == maxAttempts {
			break
		}

		delay := backoffDelay(attempt, base, max)
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, errs.Wrap(errs.KindCanceled, "retry aborted", ctx.Err())
		case <-timer.C:
		}
	}

	return zero, lastErr
}

// backoffDelay computes base * 2^(attempt-1), capped at max, with up
// to 20% positive jitter so that concurrent retries don't synchronize.
func backoffDelay(attempt int, base, max time.Duration) time.Duration {
	delay := base
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay > max {
			delay = max
			break
		}
	}
	jitter := time.Duration(rand.Int63n(int64(delay)/5 + 1))
	total := delay + jitter
	if total > max {
		total = max
	}
	return total
}
