package backend

import (
	"context"
	"math"

	"github.com/qdsearch/search-core/internal/device"
	"github.com/qdsearch/search-core/internal/structure"
	"github.com/qdsearch/search-core/pkg/config"
	"github.com/qdsearch/search-core/pkg/utils"
)

// Mock is an analytic device model. It is deterministic for a given
// (run seed, spec) pair: all randomness is drawn from a generator seeded by
// the spec fingerprint mixed with the run seed, so repeated evaluations of
// the same design are bit-identical.
type Mock struct {
	seed       int64
	gridPoints int
}

// NewMock builds the analytic backend. gridPoints sets the spatial profile
// resolution.
func NewMock(seed int64, gridPoints int) *Mock {
	if gridPoints <= 1 {
		gridPoints = 64
	}
	return &Mock{seed: seed, gridPoints: gridPoints}
}

// Name returns the backend identifier.
func (m *Mock) Name() string {
	return config.BackendMock
}

// Evaluate computes metrics from closed-form proxies: injection balance
// from the transport-layer barrier mismatch, emission-zone overlap versus
// EML thickness, outcoupling gains gated by the EML pattern, and voltage
// droop. A synthetic carrier profile over the layer stack feeds the
// spatially-resolved reward terms.
func (m *Mock) Evaluate(ctx context.Context, spec *structure.Spec) (*device.Metrics, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	tHTL := param(spec, "t_htl_nm", 30)
	tEML := param(spec, "t_eml_nm", 20)
	tETL := param(spec, "t_etl_nm", 30)
	phiH := param(spec, "phi_htl_ev", 5.2)
	phiE := param(spec, "phi_etl_ev", 4.1)
	pDope := param(spec, "p_doping_htl", 0.1)
	nDope := param(spec, "n_doping_etl", 0.1)
	psRadius := param(spec, "ps_radius_nm", 120)
	psFill := param(spec, "ps_fill_frac", 0.2)
	slThick := param(spec, "sl_thickness_nm", 15)
	slGap := param(spec, "sl_gap_um", 1.2)
	qdCov := param(spec, "qd_coverage", 0.8)
	vDrive := param(spec, "v_drive", 4.0)
	pattern := spec.Choices["eml_pattern"]
	sublayers := spec.Repeats["qd_sublayers"]
	if sublayers < 1 {
		sublayers = 1
	}

	// Carrier injection: balanced transport barriers inject symmetric
	// electron and hole currents.
	barrierMismatch := math.Abs((phiH - 5.2) - (4.1 - phiE))
	injBalance := math.Exp(-(barrierMismatch * barrierMismatch) / 0.05)
	injBoost := sigmoid(8.0 * (pDope + nDope - 0.15))

	// Emission-zone confinement peaks near 18 nm EML thickness.
	overlap := math.Exp(-((tEML - 18.0) * (tEML - 18.0)) / (2 * 7.0 * 7.0))

	// Outcoupling: the photonic gains only act when the matching pattern is
	// selected; the quantum-dot coverage gain applies to every pattern.
	outcoupling := 0.6 + 0.4*qdCov
	switch pattern {
	case "microsphere":
		mieGain := 1.0 + 0.6*math.Exp(-((psRadius-120.0)*(psRadius-120.0))/(2*50.0*50.0))
		covGain := 1.0 + 0.8*utils.ClampFloat64(psFill/0.30, 0.0, 1.0)
		outcoupling *= mieGain * covGain
	case "superlattice":
		slGain := 1.0 + 0.4*math.Exp(-((slThick-15.0)*(slThick-15.0))/(2*6.0*6.0))
		gapGain := 1.0 + 0.3*math.Exp(-((slGap-1.2)*(slGap-1.2))/(2*0.8*0.8))
		outcoupling *= slGain * gapGain
	}
	// Stacked emissive sublayers add a saturating gain.
	outcoupling *= 1.0 + 0.15*(1.0-math.Exp(-float64(sublayers-1)/2.0))

	droop := math.Exp(-math.Max(0, vDrive-4.0) / 1.0)

	eqe := 20.0 * injBalance * (0.5 + 0.5*injBoost) * overlap * outcoupling * droop

	// Per-spec deterministic measurement noise.
	rng := utils.NewRandSource(spec.Seed(m.seed))
	eqe *= 1.0 + 0.01*rng.NormFloat64(0, 1)
	eqe = math.Max(0, eqe)

	brightness := 1000.0 * (0.3 + 0.7*injBoost) * (0.5 + 0.5*overlap) * droop
	leakage := math.Max(0, 1.0-injBalance) * (0.5 + pDope + nDope) * (1.0 + math.Max(0, psFill-0.30))
	auger := math.Pow(math.Max(0, vDrive-4.0), 2) * (0.5 + 0.5*injBoost) * (0.5 + 0.5*brightness/1000.0)
	lifetime := 2000.0 / (1.0 + 3.0*leakage + 5.0*auger + math.Max(0, vDrive-4.0))

	metrics := &device.Metrics{
		EQE:           eqe,
		Voltage:       vDrive,
		ChargeBalance: injBalance,
		Spatial:       m.profile(tHTL, tEML, tETL, injBalance, droop),
		Diagnostics: map[string]float64{
			"outcoupling": outcoupling,
			"droop":       droop,
			"brightness":  brightness,
			"leakage":     leakage,
			"auger_rate":  auger,
			"lifetime_h":  lifetime,
		},
	}
	return metrics, nil
}

// profile builds Gaussian carrier densities across the HTL/EML/ETL stack.
// Imbalanced injection pulls the electron and hole clouds apart, which the
// overlap reward term then penalizes.
func (m *Mock) profile(tHTL, tEML, tETL, injBalance, droop float64) *device.SpatialProfile {
	total := tHTL + tEML + tETL
	mid := tHTL + tEML/2
	shift := (1.0 - injBalance) * tEML * 0.3
	sigma := math.Max(tEML/4, 1.0)

	p := &device.SpatialProfile{
		Position:     make([]float64, m.gridPoints),
		Electron:     make([]float64, m.gridPoints),
		Hole:         make([]float64, m.gridPoints),
		Radiative:    make([]float64, m.gridPoints),
		NonRadiative: make([]float64, m.gridPoints),
	}
	step := total / float64(m.gridPoints-1)
	for i := 0; i < m.gridPoints; i++ {
		x := float64(i) * step
		ne := gaussian(x, mid+shift/2, sigma)
		nh := gaussian(x, mid-shift/2, sigma)
		p.Position[i] = x
		p.Electron[i] = ne
		p.Hole[i] = nh
		p.Radiative[i] = injBalance * droop * ne * nh
		p.NonRadiative[i] = (1.0-injBalance*droop)*ne*nh + 1e-6
	}
	return p
}

func param(spec *structure.Spec, name string, fallback float64) float64 {
	if v, ok := spec.Params[name]; ok {
		return v
	}
	return fallback
}

func gaussian(x, center, sigma float64) float64 {
	d := (x - center) / sigma
	return math.Exp(-d * d / 2)
}

func sigmoid(x float64) float64 {
	return 1.0 / (1.0 + math.Exp(-x))
}
