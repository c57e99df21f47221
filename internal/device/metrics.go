// Package device defines the backend-agnostic record of device-level
// metrics produced by one evaluation, whichever backend produced it.
package device

import "fmt"

// Metrics holds the raw output of one evaluation. Scalar fields are always
// present; the spatial profile is optional (surrogate predictions omit it).
// Instances are immutable once produced and consumed exactly once by the
// reward engine before being archived.
type Metrics struct {
	// EQE is the external quantum efficiency in percent.
	EQE float64 `json:"eqe" yaml:"eqe"`
	// Voltage is the operating voltage in volts.
	Voltage float64 `json:"voltage" yaml:"voltage"`
	// ChargeBalance is the electron/hole injection balance factor in [0, 1].
	ChargeBalance float64 `json:"charge_balance" yaml:"charge_balance"`

	// Spatial carries position-resolved quantities when the backend provides
	// them. Nil for backends that only predict scalars.
	Spatial *SpatialProfile `json:"spatial,omitempty" yaml:"spatial,omitempty"`

	// Diagnostics carries backend-side auxiliary values (e.g. the surrogate's
	// distance-to-training-set). Never consumed by the reward terms.
	Diagnostics map[string]float64 `json:"diagnostics,omitempty" yaml:"diagnostics,omitempty"`
}

// SpatialProfile holds position-resolved carrier and recombination fields.
// All slices share one coordinate grid and therefore one length.
type SpatialProfile struct {
	Position     []float64 `json:"position" yaml:"position"`
	Electron     []float64 `json:"electron" yaml:"electron"`
	Hole         []float64 `json:"hole" yaml:"hole"`
	Radiative    []float64 `json:"radiative" yaml:"radiative"`
	NonRadiative []float64 `json:"non_radiative" yaml:"non_radiative"`
}

// Validate enforces the shared-grid invariant.
func (p *SpatialProfile) Validate() error {
	n := len(p.Position)
	if n == 0 {
		return fmt.Errorf("spatial profile has empty position grid")
	}
	fields := map[string]int{
		"electron":      len(p.Electron),
		"hole":          len(p.Hole),
		"radiative":     len(p.Radiative),
		"non_radiative": len(p.NonRadiative),
	}
	for name, length := range fields {
		if length != n {
			return fmt.Errorf("spatial field %s has %d points, position grid has %d", name, length, n)
		}
	}
	return nil
}

// Len returns the number of grid points.
func (p *SpatialProfile) Len() int {
	return len(p.Position)
}

// Validate checks the metrics invariants: scalars finite-by-construction are
// left to backends; the spatial profile, when present, must be consistent.
func (m *Metrics) Validate() error {
	if m.Spatial != nil {
		if err := m.Spatial.Validate(); err != nil {
			return fmt.Errorf("invalid metrics: %w", err)
		}
	}
	return nil
}
