package surrogate

import (
	"fmt"
	"math"
	"time"

	"github.com/qdsearch/search-core/internal/explog"
	"github.com/qdsearch/search-core/internal/structure"
	"github.com/qdsearch/search-core/pkg/utils"
)

// InsufficientDataError is returned when the experience log holds fewer
// usable records than the trainer requires.
type InsufficientDataError struct {
	Have int
	Need int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient training data: have %d records, need %d", e.Have, e.Need)
}

// Options controls one training run.
type Options struct {
	// MinRecords is the minimum number of usable records.
	MinRecords int
	// ValidationFraction of records held out for RMSE reporting.
	ValidationFraction float64
	// RidgeLambda is the L2 regularization strength (intercept excluded).
	RidgeLambda float64
	// Seed drives the train/validation shuffle.
	Seed int64
	// DistanceFlagThreshold is copied into the model for serving-time
	// extrapolation flagging.
	DistanceFlagThreshold float64
}

// Fit trains per-target ridge regressions over the encoded designs in the
// given records. Records missing a spec or metrics are skipped; clamped
// specs are kept, their encoded coordinates are valid after clamping.
func Fit(space *structure.Space, records []explog.Record, opts Options) (*Model, error) {
	if opts.ValidationFraction < 0 || opts.ValidationFraction >= 1 {
		return nil, fmt.Errorf("validation fraction must be in [0, 1), got %g", opts.ValidationFraction)
	}
	if opts.RidgeLambda < 0 {
		return nil, fmt.Errorf("ridge lambda must be non-negative, got %g", opts.RidgeLambda)
	}

	var features [][]float64
	targets := map[string][]float64{
		TargetEQE:           nil,
		TargetVoltage:       nil,
		TargetChargeBalance: nil,
	}
	for _, rec := range records {
		if rec.Spec == nil || rec.Metrics == nil {
			continue
		}
		vec, err := space.Encode(rec.Spec)
		if err != nil {
			continue
		}
		features = append(features, vec)
		targets[TargetEQE] = append(targets[TargetEQE], rec.Metrics.EQE)
		targets[TargetVoltage] = append(targets[TargetVoltage], rec.Metrics.Voltage)
		targets[TargetChargeBalance] = append(targets[TargetChargeBalance], rec.Metrics.ChargeBalance)
	}
	if len(features) < opts.MinRecords {
		return nil, &InsufficientDataError{Have: len(features), Need: opts.MinRecords}
	}

	n := len(features)
	perm := utils.NewRandSource(opts.Seed).Perm(n)
	nVal := int(float64(n) * opts.ValidationFraction)
	valIdx := perm[:nVal]
	trainIdx := perm[nVal:]

	dim := space.EncodedDim()
	model := &Model{
		Dim:            dim,
		Coefficients:   make(map[string][]float64, len(targets)),
		ValidationRMSE: make(map[string]float64, len(targets)),
		FlagThreshold:  opts.DistanceFlagThreshold,
		TrainedAt:      time.Now().UTC(),
		Records:        n,
	}
	for _, i := range trainIdx {
		model.Training = append(model.Training, features[i])
	}

	for target, ys := range targets {
		coef, err := ridgeFit(features, ys, trainIdx, dim, opts.RidgeLambda)
		if err != nil {
			return nil, fmt.Errorf("failed to fit target %s: %w", target, err)
		}
		model.Coefficients[target] = coef
		model.ValidationRMSE[target] = rmse(coef, features, ys, valIdx)
	}
	return model, nil
}

// ridgeFit solves (XᵀX + λI)w = Xᵀy over the selected rows, with an
// intercept column that is not regularized.
func ridgeFit(features [][]float64, ys []float64, idx []int, dim int, lambda float64) ([]float64, error) {
	p := dim + 1
	a := make([][]float64, p)
	for i := range a {
		a[i] = make([]float64, p)
	}
	b := make([]float64, p)

	row := make([]float64, p)
	for _, r := range idx {
		row[0] = 1
		copy(row[1:], features[r])
		for i := 0; i < p; i++ {
			for j := 0; j < p; j++ {
				a[i][j] += row[i] * row[j]
			}
			b[i] += row[i] * ys[r]
		}
	}
	for i := 1; i < p; i++ {
		a[i][i] += lambda
	}
	return solveLinear(a, b)
}

// solveLinear runs Gaussian elimination with partial pivoting on a copy-free
// augmented system. The matrix is symmetric positive definite for any
// positive lambda, so a singular pivot indicates degenerate input.
func solveLinear(a [][]float64, b []float64) ([]float64, error) {
	p := len(b)
	for col := 0; col < p; col++ {
		pivot := col
		for r := col + 1; r < p; r++ {
			if math.Abs(a[r][col]) > math.Abs(a[pivot][col]) {
				pivot = r
			}
		}
		if math.Abs(a[pivot][col]) < 1e-12 {
			return nil, fmt.Errorf("singular normal equations at column %d", col)
		}
		a[col], a[pivot] = a[pivot], a[col]
		b[col], b[pivot] = b[pivot], b[col]

		for r := col + 1; r < p; r++ {
			f := a[r][col] / a[col][col]
			if f == 0 {
				continue
			}
			for c := col; c < p; c++ {
				a[r][c] -= f * a[col][c]
			}
			b[r] -= f * b[col]
		}
	}

	x := make([]float64, p)
	for r := p - 1; r >= 0; r-- {
		sum := b[r]
		for c := r + 1; c < p; c++ {
			sum -= a[r][c] * x[c]
		}
		x[r] = sum / a[r][r]
	}
	return x, nil
}

func rmse(coef []float64, features [][]float64, ys []float64, idx []int) float64 {
	if len(idx) == 0 {
		return 0
	}
	var sum float64
	for _, r := range idx {
		pred := coef[0]
		for i, x := range features[r] {
			pred += coef[i+1] * x
		}
		diff := pred - ys[r]
		sum += diff * diff
	}
	return math.Sqrt(sum / float64(len(idx)))
}
