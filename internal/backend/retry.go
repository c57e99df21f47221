package backend

import (
	"context"
	"errors"
	"time"

	"github.com/qdsearch/search-core/internal/device"
	"github.com/qdsearch/search-core/internal/structure"
	"github.com/qdsearch/search-core/pkg/logger"
	"github.com/qdsearch/search-core/pkg/utils"
)

type retryEvaluator struct {
	inner   Evaluator
	limit   int
	backoff utils.BackoffStrategy
}

// WithRetry retries retryable evaluation errors up to limit additional
// attempts, sleeping per the backoff strategy between attempts.
// Non-retryable errors pass through immediately.
func WithRetry(inner Evaluator, limit int, backoff utils.BackoffStrategy) Evaluator {
	if limit <= 0 {
		return inner
	}
	return &retryEvaluator{inner: inner, limit: limit, backoff: backoff}
}

func (r *retryEvaluator) Name() string {
	return r.inner.Name()
}

func (r *retryEvaluator) Evaluate(ctx context.Context, spec *structure.Spec) (*device.Metrics, error) {
	var lastErr error
	for attempt := 0; attempt <= r.limit; attempt++ {
		if attempt > 0 {
			delay := r.backoff.NextDelay(attempt)
			logger.Warn("retrying evaluation",
				"backend", r.inner.Name(),
				"attempt", attempt,
				"delay", delay.String(),
				"error", lastErr)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		metrics, err := r.inner.Evaluate(ctx, spec)
		if err == nil {
			return metrics, nil
		}
		lastErr = err

		var evalErr *EvalError
		if !errors.As(err, &evalErr) || !evalErr.Retryable {
			return nil, err
		}
	}
	return nil, lastErr
}
