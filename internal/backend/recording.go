package backend

import (
	"context"
	"fmt"
	"time"

	"github.com/qdsearch/search-core/internal/device"
	"github.com/qdsearch/search-core/internal/explog"
	"github.com/qdsearch/search-core/internal/structure"
)

type recordingEvaluator struct {
	inner Evaluator
	store explog.Store
}

// WithRecording appends every successful evaluation to the experience log.
// Records written here carry no reward: they come from evaluations outside
// a decision loop (the loop writes its own full records).
func WithRecording(inner Evaluator, store explog.Store) Evaluator {
	return &recordingEvaluator{inner: inner, store: store}
}

func (r *recordingEvaluator) Name() string {
	return r.inner.Name()
}

func (r *recordingEvaluator) Evaluate(ctx context.Context, spec *structure.Spec) (*device.Metrics, error) {
	metrics, err := r.inner.Evaluate(ctx, spec)
	if err != nil {
		return nil, err
	}
	rec := explog.Record{
		Timestamp: time.Now().UTC(),
		Backend:   r.inner.Name(),
		Spec:      spec.Clone(),
		Metrics:   metrics,
	}
	if _, err := r.store.Append(ctx, rec); err != nil {
		return nil, fmt.Errorf("evaluation succeeded but could not be recorded: %w", err)
	}
	return metrics, nil
}
