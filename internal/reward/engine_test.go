package reward

import (
	"math"
	"reflect"
	"testing"

	"github.com/qdsearch/search-core/internal/device"
	"github.com/qdsearch/search-core/internal/structure"
	"github.com/qdsearch/search-core/pkg/config"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := FromConfig(config.Default())
	if err != nil {
		t.Fatalf("FromConfig: %v", err)
	}
	return e
}

func scalarMetrics(eqe, voltage float64) *device.Metrics {
	return &device.Metrics{EQE: eqe, Voltage: voltage, ChargeBalance: 0.9}
}

func spatialMetrics() *device.Metrics {
	m := scalarMetrics(10, 4)
	m.Spatial = &device.SpatialProfile{
		Position:     []float64{0, 1, 2, 3},
		Electron:     []float64{0.1, 0.8, 0.7, 0.1},
		Hole:         []float64{0.2, 0.7, 0.8, 0.1},
		Radiative:    []float64{0.1, 0.5, 0.5, 0.1},
		NonRadiative: []float64{0.05, 0.1, 0.1, 0.05},
	}
	return m
}

func TestComputeIsPure(t *testing.T) {
	e := newTestEngine(t)
	spec := &structure.Spec{Params: map[string]float64{"t_eml_nm": 20}}
	m := spatialMetrics()

	r1 := e.Compute(spec, m)
	r2 := e.Compute(spec, m)
	if !reflect.DeepEqual(r1, r2) {
		t.Fatalf("compute is not deterministic:\n%+v\n%+v", r1, r2)
	}
}

func TestEfficiencyMonotone(t *testing.T) {
	e := newTestEngine(t)
	spec := &structure.Spec{}

	low := e.Compute(spec, scalarMetrics(5, 4))
	high := e.Compute(spec, scalarMetrics(15, 4))
	if high.Reward <= low.Reward {
		t.Fatalf("reward should increase with EQE: %f vs %f", low.Reward, high.Reward)
	}
}

func TestOverlapZeroWithoutSpatialFields(t *testing.T) {
	e := newTestEngine(t)
	r := e.Compute(&structure.Spec{}, scalarMetrics(10, 4))

	if r.Terms[config.TermOverlap] != 0 {
		t.Fatalf("overlap term should be zero without spatial fields, got %f", r.Terms[config.TermOverlap])
	}
	found := false
	for _, f := range r.Flags {
		if f == FlagSpatialUnavailable {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected %s flag, got %v", FlagSpatialUnavailable, r.Flags)
	}
}

func TestOverlapRewardsColocation(t *testing.T) {
	e := newTestEngine(t)
	spec := &structure.Spec{}

	colocated := spatialMetrics()
	separated := spatialMetrics()
	separated.Spatial.Hole = []float64{0.8, 0.1, 0.1, 0.9}

	rc := e.Compute(spec, colocated)
	rs := e.Compute(spec, separated)
	if rc.Terms[config.TermOverlap] <= rs.Terms[config.TermOverlap] {
		t.Fatalf("co-located carriers should score higher overlap: %f vs %f",
			rc.Terms[config.TermOverlap], rs.Terms[config.TermOverlap])
	}
}

func TestUniformityPenalizesHotspots(t *testing.T) {
	e := newTestEngine(t)
	spec := &structure.Spec{}

	uniform := spatialMetrics()
	uniform.Spatial.Radiative = []float64{0.5, 0.5, 0.5, 0.5}
	uniform.Spatial.NonRadiative = []float64{0.1, 0.1, 0.1, 0.1}

	spiky := spatialMetrics()
	spiky.Spatial.Radiative = []float64{0.01, 2.3, 0.01, 0.01}
	spiky.Spatial.NonRadiative = []float64{0.01, 0.05, 0.01, 0.01}

	ru := e.Compute(spec, uniform)
	rs := e.Compute(spec, spiky)
	if rs.Terms[config.TermUniformity] <= ru.Terms[config.TermUniformity] {
		t.Fatalf("hotspots should raise the uniformity penalty: %f vs %f",
			ru.Terms[config.TermUniformity], rs.Terms[config.TermUniformity])
	}
	if rs.Reward >= ru.Reward {
		t.Fatalf("spiky profile should yield lower reward: %f vs %f", ru.Reward, rs.Reward)
	}
}

func TestOperatingCostSmooth(t *testing.T) {
	e := newTestEngine(t)
	spec := &structure.Spec{}

	// below threshold: cost small but not a hard zero
	below := e.Compute(spec, scalarMetrics(10, 4))
	at := e.Compute(spec, scalarMetrics(10, 5.5))
	above := e.Compute(spec, scalarMetrics(10, 6))

	cb := below.Terms[config.TermOperatingCost]
	ca := at.Terms[config.TermOperatingCost]
	cx := above.Terms[config.TermOperatingCost]
	if !(cb < ca && ca < cx) {
		t.Fatalf("operating cost should increase smoothly: %f, %f, %f", cb, ca, cx)
	}
	if math.Abs(ca-math.Ln2) > 1e-9 {
		t.Fatalf("softplus at threshold should be ln 2, got %f", ca)
	}
}

func TestFeasibilityPenaltyDominates(t *testing.T) {
	e := newTestEngine(t)
	m := spatialMetrics()

	feasible := &structure.Spec{Params: map[string]float64{"t_eml_nm": 20}}
	flagged := feasible.Clone()
	flagged.Clamped = []string{"t_eml_nm"}

	rf := e.Compute(feasible, m)
	ri := e.Compute(flagged, m)
	if ri.Reward >= rf.Reward {
		t.Fatalf("flagged-infeasible spec must score strictly lower: %f vs %f", ri.Reward, rf.Reward)
	}
	if ri.Terms[config.TermFeasibility] != 1 {
		t.Fatalf("expected unit feasibility term, got %f", ri.Terms[config.TermFeasibility])
	}
	found := false
	for _, f := range ri.Flags {
		if f == FlagInfeasible {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected %s flag, got %v", FlagInfeasible, ri.Flags)
	}
}

func TestWeightsEchoedInResult(t *testing.T) {
	cfg := config.Default()
	cfg.RewardWeights[config.TermOverlap] = 0.75
	e, err := FromConfig(cfg)
	if err != nil {
		t.Fatalf("FromConfig: %v", err)
	}

	r := e.Compute(&structure.Spec{}, scalarMetrics(10, 4))
	if r.Weights[config.TermOverlap] != 0.75 {
		t.Fatalf("result should echo configured weights, got %f", r.Weights[config.TermOverlap])
	}
}

func TestPenalized(t *testing.T) {
	e := newTestEngine(t)
	r := e.Penalized()

	if r.Reward != -config.Default().RewardWeights[config.TermFeasibility] {
		t.Fatalf("penalized reward should equal negative feasibility weight, got %f", r.Reward)
	}
	if len(r.Flags) != 1 || r.Flags[0] != FlagEvaluationFailed {
		t.Fatalf("expected %s flag, got %v", FlagEvaluationFailed, r.Flags)
	}
}

func TestNewEngineValidation(t *testing.T) {
	if _, err := NewEngine(nil, 5.5, 0.5); err == nil {
		t.Fatalf("expected error for empty weights")
	}
	if _, err := NewEngine(map[string]float64{"efficiency": 1}, 5.5, 0); err == nil {
		t.Fatalf("expected error for zero softness")
	}
}
