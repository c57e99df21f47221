package backend

import (
	"context"
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/qdsearch/search-core/internal/device"
	"github.com/qdsearch/search-core/internal/structure"
	"github.com/qdsearch/search-core/pkg/config"
)

// Required export columns. charge_balance is optional and derived from the
// carrier densities when the export omits it.
var requiredColumns = []string{
	"position",
	"electron_density",
	"hole_density",
	"recomb_radiative",
	"recomb_nonradiative",
	"eqe",
	"voltage",
}

const pollInterval = 100 * time.Millisecond

// Export reads device metrics from CSV files an external simulator drops
// into a directory. The file for a design is named by the design's
// fingerprint, so producer and consumer need no channel beyond the
// filesystem.
type Export struct {
	dir        string
	gridPoints int
	timeout    time.Duration
}

// NewExport builds the export-directory backend.
func NewExport(dir string, gridPoints int, timeout time.Duration) *Export {
	if gridPoints <= 1 {
		gridPoints = 64
	}
	return &Export{dir: dir, gridPoints: gridPoints, timeout: timeout}
}

// Name returns the backend identifier.
func (e *Export) Name() string {
	return config.BackendSimulator
}

// Evaluate polls for the export file up to the configured timeout, then
// parses it. A timeout is retryable: the simulator may simply still be
// running.
func (e *Export) Evaluate(ctx context.Context, spec *structure.Spec) (*device.Metrics, error) {
	path := filepath.Join(e.dir, spec.Fingerprint()+".csv")

	deadline := time.Now().Add(e.timeout)
	for {
		if _, err := os.Stat(path); err == nil {
			break
		}
		if time.Now().After(deadline) {
			return nil, &EvalError{
				Backend:   config.BackendSimulator,
				Reason:    fmt.Sprintf("export %s not produced within %s", filepath.Base(path), e.timeout),
				Timeout:   true,
				Retryable: true,
			}
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(pollInterval):
		}
	}

	return parseExport(path, e.gridPoints)
}

// parseExport ingests one simulator CSV. Any missing required column or
// unparsable cell aborts ingestion with a *MalformedExportError naming the
// column; no defaults are ever substituted.
func parseExport(path string, gridPoints int) (*device.Metrics, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &EvalError{Backend: config.BackendSimulator, Reason: "failed to open export", Retryable: true, Err: err}
	}
	defer f.Close()

	r := csv.NewReader(f)
	rows, err := r.ReadAll()
	if err != nil {
		return nil, &MalformedExportError{Path: path, Detail: err.Error()}
	}
	if len(rows) < 2 {
		return nil, &MalformedExportError{Path: path, Detail: "no data rows"}
	}

	colIdx := make(map[string]int, len(rows[0]))
	for i, name := range rows[0] {
		colIdx[name] = i
	}
	for _, name := range requiredColumns {
		if _, ok := colIdx[name]; !ok {
			return nil, &MalformedExportError{Path: path, Column: name}
		}
	}

	data := rows[1:]
	n := len(data)
	cols := map[string][]float64{}
	names := append([]string(nil), requiredColumns...)
	_, hasBalance := colIdx["charge_balance"]
	if hasBalance {
		names = append(names, "charge_balance")
	}
	for _, name := range names {
		idx := colIdx[name]
		values := make([]float64, n)
		for row, record := range data {
			v, err := strconv.ParseFloat(record[idx], 64)
			if err != nil {
				return nil, &MalformedExportError{
					Path:   path,
					Column: name,
					Detail: fmt.Sprintf("row %d: %q is not a number", row+2, record[idx]),
				}
			}
			values[row] = v
		}
		cols[name] = values
	}

	profile := &device.SpatialProfile{
		Position:     cols["position"],
		Electron:     cols["electron_density"],
		Hole:         cols["hole_density"],
		Radiative:    cols["recomb_radiative"],
		NonRadiative: cols["recomb_nonradiative"],
	}
	sortByPosition(profile)
	if profile.Len() != gridPoints {
		profile = regrid(profile, gridPoints)
	}

	balance := 0.0
	if hasBalance {
		balance = cols["charge_balance"][0]
	} else {
		balance = derivedBalance(profile.Electron, profile.Hole)
	}

	return &device.Metrics{
		EQE:           cols["eqe"][0],
		Voltage:       cols["voltage"][0],
		ChargeBalance: balance,
		Spatial:       profile,
	}, nil
}

// derivedBalance measures injection symmetry as the ratio of the smaller to
// the larger integrated carrier density.
func derivedBalance(electron, hole []float64) float64 {
	var se, sh float64
	for i := range electron {
		se += electron[i]
		sh += hole[i]
	}
	lo, hi := math.Min(se, sh), math.Max(se, sh)
	if hi == 0 {
		return 0
	}
	return lo / hi
}

func sortByPosition(p *device.SpatialProfile) {
	idx := make([]int, p.Len())
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(a, b int) bool { return p.Position[idx[a]] < p.Position[idx[b]] })

	reorder := func(values []float64) []float64 {
		out := make([]float64, len(values))
		for i, j := range idx {
			out[i] = values[j]
		}
		return out
	}
	p.Position = reorder(p.Position)
	p.Electron = reorder(p.Electron)
	p.Hole = reorder(p.Hole)
	p.Radiative = reorder(p.Radiative)
	p.NonRadiative = reorder(p.NonRadiative)
}

// regrid linearly interpolates every spatial quantity onto a uniform grid
// spanning the export's position range.
func regrid(p *device.SpatialProfile, gridPoints int) *device.SpatialProfile {
	lo := p.Position[0]
	hi := p.Position[p.Len()-1]
	step := (hi - lo) / float64(gridPoints-1)

	out := &device.SpatialProfile{
		Position:     make([]float64, gridPoints),
		Electron:     make([]float64, gridPoints),
		Hole:         make([]float64, gridPoints),
		Radiative:    make([]float64, gridPoints),
		NonRadiative: make([]float64, gridPoints),
	}
	for i := 0; i < gridPoints; i++ {
		x := lo + float64(i)*step
		out.Position[i] = x
		out.Electron[i] = interp(p.Position, p.Electron, x)
		out.Hole[i] = interp(p.Position, p.Hole, x)
		out.Radiative[i] = interp(p.Position, p.Radiative, x)
		out.NonRadiative[i] = interp(p.Position, p.NonRadiative, x)
	}
	return out
}

func interp(xs, ys []float64, x float64) float64 {
	n := len(xs)
	if x <= xs[0] {
		return ys[0]
	}
	if x >= xs[n-1] {
		return ys[n-1]
	}
	j := sort.SearchFloat64s(xs, x)
	if xs[j] == x {
		return ys[j]
	}
	x0, x1 := xs[j-1], xs[j]
	y0, y1 := ys[j-1], ys[j]
	if x1 == x0 {
		return y0
	}
	return y0 + (y1-y0)*(x-x0)/(x1-x0)
}
