// Package loop runs the sequential design-search loop: a policy proposes
// bounded moves in normalized design space, the environment decodes them
// into candidate structures, evaluates them through the configured backend
// and scores them with the reward engine.
package loop

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/qdsearch/search-core/internal/backend"
	"github.com/qdsearch/search-core/internal/device"
	"github.com/qdsearch/search-core/internal/explog"
	"github.com/qdsearch/search-core/internal/reward"
	"github.com/qdsearch/search-core/internal/structure"
	"github.com/qdsearch/search-core/pkg/config"
	"github.com/qdsearch/search-core/pkg/logger"
	"github.com/qdsearch/search-core/pkg/utils"
)

// StepResult is what one environment step produced.
type StepResult struct {
	// Observation is the encoded design after the step.
	Observation []float64
	// Spec is the evaluated candidate.
	Spec *structure.Spec
	// Metrics is nil when the evaluation failed after retries.
	Metrics *device.Metrics
	// Reward is the scored (or penalized) result.
	Reward reward.Result
	// Failed marks a step that exhausted its evaluation retries.
	Failed bool
}

// Env owns the interaction between policy actions and the design space. It
// never mutates the schema or the backend; all step state is the current
// observation.
type Env struct {
	space         *structure.Space
	evaluator     backend.Evaluator
	engine        *reward.Engine
	store         explog.Store
	rng           *utils.RandSource
	actionScale   float64
	invalidAction string

	current []float64
}

// NewEnv wires an environment from its parts. store may be nil to disable
// persistence.
func NewEnv(cfg *config.Config, space *structure.Space, ev backend.Evaluator, engine *reward.Engine, store explog.Store, rng *utils.RandSource) *Env {
	return &Env{
		space:         space,
		evaluator:     ev,
		engine:        engine,
		store:         store,
		rng:           rng,
		actionScale:   cfg.ActionScale,
		invalidAction: cfg.InvalidAction,
	}
}

// Reset samples a fresh design and returns its encoding as the initial
// observation.
func (e *Env) Reset(ctx context.Context) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	spec := e.space.Sample(e.rng)
	obs, err := e.space.Encode(spec)
	if err != nil {
		return nil, fmt.Errorf("failed to encode sampled design: %w", err)
	}
	e.current = obs
	return append([]float64(nil), obs...), nil
}

// Step applies the action to the current observation, decodes and evaluates
// the candidate, and records the outcome. Recoverable evaluation failures
// produce a penalized result and the episode continues; anything else is
// returned as an error.
func (e *Env) Step(ctx context.Context, action []float64) (*StepResult, error) {
	if e.current == nil {
		return nil, fmt.Errorf("environment must be reset before stepping")
	}
	if len(action) != e.space.EncodedDim() {
		return nil, fmt.Errorf("action dimension mismatch: space has %d, action has %d", e.space.EncodedDim(), len(action))
	}

	candidate := make([]float64, len(e.current))
	for i := range candidate {
		candidate[i] = e.current[i] + action[i]*e.actionScale
	}

	spec, err := e.space.Decode(candidate)
	if err != nil {
		return nil, fmt.Errorf("failed to decode action: %w", err)
	}

	if spec.Infeasible() && e.invalidAction == config.InvalidActionReject {
		// Rejected moves are replaced by a fresh in-bounds sample; the
		// penalize mode instead lets the clamped design through and lets the
		// feasibility term do the punishing.
		logger.Debug("rejecting out-of-bounds move", "clamped", spec.Clamped)
		spec = e.space.Sample(e.rng)
	}
	obs, err := e.space.Encode(spec)
	if err != nil {
		return nil, fmt.Errorf("failed to encode stepped design: %w", err)
	}

	result := &StepResult{Spec: spec}
	metrics, err := e.evaluator.Evaluate(ctx, spec)
	switch {
	case err == nil:
		result.Metrics = metrics
		result.Reward = e.engine.Compute(spec, metrics)
	case isRecoverable(err):
		logger.Warn("evaluation failed, penalizing step", "backend", e.evaluator.Name(), "error", err)
		result.Reward = e.engine.Penalized()
		result.Failed = true
	default:
		return nil, err
	}

	if e.store != nil {
		rec := explog.Record{
			Timestamp: time.Now().UTC(),
			Backend:   e.evaluator.Name(),
			Spec:      spec.Clone(),
			Metrics:   result.Metrics,
			Reward:    &result.Reward,
		}
		if _, err := e.store.Append(ctx, rec); err != nil {
			return nil, fmt.Errorf("failed to record step: %w", err)
		}
	}

	e.current = obs
	result.Observation = append([]float64(nil), obs...)
	return result, nil
}

// isRecoverable reports whether an evaluation error should penalize the
// step rather than abort the run. Malformed exports and untrained models
// are configuration-level problems and stay fatal.
func isRecoverable(err error) bool {
	var evalErr *backend.EvalError
	if !errors.As(err, &evalErr) {
		return false
	}
	var malformed *backend.MalformedExportError
	if errors.As(err, &malformed) {
		return false
	}
	return true
}
