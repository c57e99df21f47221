package loop

import (
	"context"
	"sync"

	"github.com/qdsearch/search-core/internal/backend"
	"github.com/qdsearch/search-core/internal/device"
	"github.com/qdsearch/search-core/internal/reward"
	"github.com/qdsearch/search-core/internal/structure"
)

// BatchResult is the outcome of evaluating one proposal in a batch. Index
// matches the proposal's position in the input slice.
type BatchResult struct {
	Index   int
	Spec    *structure.Spec
	Metrics *device.Metrics
	Reward  reward.Result
	Err     error
}

// EvaluateBatch evaluates proposals with at most workers concurrent
// evaluations. Results always come back indexed by proposal order, whatever
// order the evaluations complete in. Per-proposal errors are reported in
// the result, not returned.
func EvaluateBatch(ctx context.Context, ev backend.Evaluator, engine *reward.Engine, specs []*structure.Spec, workers int) []BatchResult {
	if workers <= 0 {
		workers = 1
	}

	semaphore := make(chan struct{}, workers)
	var wg sync.WaitGroup
	results := make([]BatchResult, len(specs))

	for i, spec := range specs {
		wg.Add(1)
		go func(idx int, sp *structure.Spec) {
			defer wg.Done()

			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			metrics, err := ev.Evaluate(ctx, sp)
			if err != nil {
				results[idx] = BatchResult{Index: idx, Spec: sp, Err: err}
				return
			}
			results[idx] = BatchResult{
				Index:   idx,
				Spec:    sp,
				Metrics: metrics,
				Reward:  engine.Compute(sp, metrics),
			}
		}(i, spec)
	}

	wg.Wait()
	return results
}
