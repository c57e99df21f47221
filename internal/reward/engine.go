// Package reward maps raw device metrics to the scalar training signal.
// Compute is a pure function: identical (spec, metrics) input always yields
// an identical Result, with every contributing term reported pre-weight so
// the signal stays auditable.
package reward

import (
	"fmt"
	"math"

	"github.com/qdsearch/search-core/internal/device"
	"github.com/qdsearch/search-core/internal/structure"
	"github.com/qdsearch/search-core/pkg/config"
	"github.com/qdsearch/search-core/pkg/utils"
)

// Flags attached to a Result.
const (
	// FlagSpatialUnavailable marks the overlap and uniformity terms as zero
	// because the backend produced no spatial fields.
	FlagSpatialUnavailable = "spatial_unavailable"
	// FlagInfeasible marks a spec that required clamping or failed validation.
	FlagInfeasible = "infeasible"
	// FlagEvaluationFailed marks a step whose backend call exhausted retries.
	FlagEvaluationFailed = "evaluation_failed"
)

const eps = 1e-12

// Result is the scalar reward plus the named pre-weight term values and the
// weights applied to them. Immutable once computed.
type Result struct {
	Reward  float64            `json:"reward"`
	Terms   map[string]float64 `json:"terms"`
	Weights map[string]float64 `json:"weights"`
	Flags   []string           `json:"flags,omitempty"`
}

// Engine combines the weighted reward terms. It holds no mutable state and
// performs no I/O.
type Engine struct {
	weights          map[string]float64
	voltageThreshold float64
	voltageSoftness  float64
}

// NewEngine builds a reward engine from named weights and the operating-cost
// shape parameters. Missing weight names default to zero contribution.
func NewEngine(weights map[string]float64, voltageThreshold, voltageSoftness float64) (*Engine, error) {
	if len(weights) == 0 {
		return nil, fmt.Errorf("reward weights are required")
	}
	if voltageSoftness <= 0 {
		return nil, fmt.Errorf("voltage softness must be positive, got %f", voltageSoftness)
	}
	w := make(map[string]float64, len(weights))
	for name, v := range weights {
		w[name] = v
	}
	return &Engine{
		weights:          w,
		voltageThreshold: voltageThreshold,
		voltageSoftness:  voltageSoftness,
	}, nil
}

// FromConfig builds the engine from a run configuration.
func FromConfig(cfg *config.Config) (*Engine, error) {
	return NewEngine(cfg.RewardWeights, cfg.VoltageThreshold, cfg.VoltageSoftness)
}

// Compute maps (spec, metrics) to a Result. The sign convention is fixed:
// efficiency and overlap contribute positively, uniformity, operating cost
// and feasibility are penalties.
func (e *Engine) Compute(spec *structure.Spec, m *device.Metrics) Result {
	terms := map[string]float64{
		config.TermEfficiency:    m.EQE,
		config.TermOverlap:       0,
		config.TermUniformity:    0,
		config.TermOperatingCost: e.operatingCost(m.Voltage),
		config.TermFeasibility:   0,
	}
	var flags []string

	if m.Spatial != nil {
		terms[config.TermOverlap] = carrierOverlap(m.Spatial)
		terms[config.TermUniformity] = recombinationSpikiness(m.Spatial)
	} else {
		flags = append(flags, FlagSpatialUnavailable)
	}

	if spec != nil && spec.Infeasible() {
		terms[config.TermFeasibility] = 1
		flags = append(flags, FlagInfeasible)
	}

	reward := e.weights[config.TermEfficiency]*terms[config.TermEfficiency] +
		e.weights[config.TermOverlap]*terms[config.TermOverlap] -
		e.weights[config.TermUniformity]*terms[config.TermUniformity] -
		e.weights[config.TermOperatingCost]*terms[config.TermOperatingCost] -
		e.weights[config.TermFeasibility]*terms[config.TermFeasibility]

	return Result{
		Reward:  reward,
		Terms:   terms,
		Weights: e.weightsCopy(),
		Flags:   flags,
	}
}

// Penalized returns the result recorded for a step whose evaluation failed
// after exhausting its retries: the full feasibility penalty and no positive
// terms.
func (e *Engine) Penalized() Result {
	terms := map[string]float64{
		config.TermEfficiency:    0,
		config.TermOverlap:       0,
		config.TermUniformity:    0,
		config.TermOperatingCost: 0,
		config.TermFeasibility:   1,
	}
	return Result{
		Reward:  -e.weights[config.TermFeasibility],
		Terms:   terms,
		Weights: e.weightsCopy(),
		Flags:   []string{FlagEvaluationFailed},
	}
}

// operatingCost penalizes voltage above the threshold with a softplus ramp,
// keeping the reward surface smooth instead of a hard cutoff.
func (e *Engine) operatingCost(voltage float64) float64 {
	x := (voltage - e.voltageThreshold) / e.voltageSoftness
	// Guard the exp against overflow for extreme inputs.
	if x > 30 {
		return x
	}
	return math.Log1p(math.Exp(x))
}

// carrierOverlap is the normalized inner product of the electron and hole
// density fields over the shared grid: 1 for perfectly co-located carriers,
// 0 for disjoint ones.
func carrierOverlap(p *device.SpatialProfile) float64 {
	num := utils.Dot(p.Electron, p.Hole)
	den := utils.Norm(p.Electron)*utils.Norm(p.Hole) + eps
	return num / den
}

// recombinationSpikiness is the coefficient of variation of the total
// recombination rate across the grid. High values mean localized hotspots.
func recombinationSpikiness(p *device.SpatialProfile) float64 {
	total := make([]float64, p.Len())
	for i := range total {
		total[i] = p.Radiative[i] + p.NonRadiative[i]
	}
	mean := utils.Mean(total)
	if mean <= eps {
		return 0
	}
	return utils.StdDev(total) / mean
}

func (e *Engine) weightsCopy() map[string]float64 {
	out := make(map[string]float64, len(e.weights))
	for name, v := range e.weights {
		out[name] = v
	}
	return out
}
