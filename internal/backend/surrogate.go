package backend

import (
	"context"
	"sync/atomic"

	"github.com/qdsearch/search-core/internal/device"
	"github.com/qdsearch/search-core/internal/structure"
	"github.com/qdsearch/search-core/internal/surrogate"
	"github.com/qdsearch/search-core/pkg/config"
)

// Surrogate serves predictions from a fitted model. The model pointer is
// swapped atomically, so a trainer can install a refit mid-run without
// pausing evaluation workers.
type Surrogate struct {
	space         *structure.Space
	flagThreshold float64
	model         atomic.Pointer[surrogate.Model]
}

// NewSurrogate builds the surrogate backend. It serves ErrModelNotTrained
// until SetModel installs a fit.
func NewSurrogate(space *structure.Space, flagThreshold float64) *Surrogate {
	return &Surrogate{space: space, flagThreshold: flagThreshold}
}

// Name returns the backend identifier.
func (s *Surrogate) Name() string {
	return config.BackendSurrogate
}

// SetModel installs (or replaces) the served model.
func (s *Surrogate) SetModel(m *surrogate.Model) {
	s.model.Store(m)
}

// Model returns the currently served model, nil before training.
func (s *Surrogate) Model() *surrogate.Model {
	return s.model.Load()
}

// Evaluate predicts scalar metrics for the design. Predictions carry no
// spatial profile; the train_distance diagnostic always reports how far the
// query sits from the training set, and queries beyond the flag threshold
// get an extrapolation marker.
func (s *Surrogate) Evaluate(ctx context.Context, spec *structure.Spec) (*device.Metrics, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	model := s.model.Load()
	if model == nil {
		return nil, ErrModelNotTrained
	}

	features, err := s.space.Encode(spec)
	if err != nil {
		return nil, &EvalError{Backend: config.BackendSurrogate, Reason: "failed to encode design", Err: err}
	}
	pred, err := model.Predict(features)
	if err != nil {
		return nil, &EvalError{Backend: config.BackendSurrogate, Reason: "prediction failed", Err: err}
	}

	dist := model.DistanceToTraining(features)
	diagnostics := map[string]float64{"train_distance": dist}
	threshold := s.flagThreshold
	if threshold <= 0 {
		threshold = model.FlagThreshold
	}
	if threshold > 0 && dist > threshold {
		diagnostics["extrapolation"] = 1
	}

	return &device.Metrics{
		EQE:           pred.EQE,
		Voltage:       pred.Voltage,
		ChargeBalance: pred.ChargeBalance,
		Diagnostics:   diagnostics,
	}, nil
}
