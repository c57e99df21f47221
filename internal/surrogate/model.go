// Package surrogate fits and serves a ridge-regression model over the
// experience log, so the decision loop can run cheap evaluations between
// expensive simulator batches.
package surrogate

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"time"
)

// Target names. Every model predicts all three.
const (
	TargetEQE           = "eqe"
	TargetVoltage       = "voltage"
	TargetChargeBalance = "charge_balance"
)

// Model is a fitted per-target linear map over encoded design features.
// Coefficient vectors carry the intercept in position zero. Training rows
// are retained so serving code can measure how far a query sits from the
// data the model has seen; the log is small relative to simulator cost, so
// the memory price is negligible.
type Model struct {
	Dim          int                  `json:"dim"`
	Coefficients map[string][]float64 `json:"coefficients"`

	Training [][]float64 `json:"training"`

	// ValidationRMSE records per-target holdout error so callers can reject
	// a poor fit before swapping the model in.
	ValidationRMSE map[string]float64 `json:"validation_rmse"`

	// FlagThreshold is the training-set distance beyond which a prediction
	// is marked as extrapolation.
	FlagThreshold float64 `json:"flag_threshold"`

	TrainedAt time.Time `json:"trained_at"`
	Records   int       `json:"records"`
}

// Prediction holds the scalar metrics a model predicts for one design.
type Prediction struct {
	EQE           float64
	Voltage       float64
	ChargeBalance float64
}

// Predict evaluates the model for one encoded feature vector.
func (m *Model) Predict(features []float64) (Prediction, error) {
	if len(features) != m.Dim {
		return Prediction{}, fmt.Errorf("feature dimension mismatch: model expects %d, got %d", m.Dim, len(features))
	}
	return Prediction{
		EQE:           m.apply(TargetEQE, features),
		Voltage:       m.apply(TargetVoltage, features),
		ChargeBalance: m.apply(TargetChargeBalance, features),
	}, nil
}

func (m *Model) apply(target string, features []float64) float64 {
	coef := m.Coefficients[target]
	if len(coef) != m.Dim+1 {
		return 0
	}
	y := coef[0]
	for i, x := range features {
		y += coef[i+1] * x
	}
	return y
}

// DistanceToTraining returns the minimum Euclidean distance from the query
// to any retained training row. Infinite when no rows are retained.
func (m *Model) DistanceToTraining(features []float64) float64 {
	best := math.Inf(1)
	for _, row := range m.Training {
		if len(row) != len(features) {
			continue
		}
		var d2 float64
		for i := range row {
			diff := row[i] - features[i]
			d2 += diff * diff
		}
		if d2 < best {
			best = d2
		}
	}
	if math.IsInf(best, 1) {
		return best
	}
	return math.Sqrt(best)
}

// Save writes the model as JSON.
func (m *Model) Save(path string) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal surrogate model: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write surrogate model %s: %w", path, err)
	}
	return nil
}

// Load reads a model previously written with Save.
func Load(path string) (*Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read surrogate model %s: %w", path, err)
	}
	var m Model
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse surrogate model %s: %w", path, err)
	}
	if m.Dim <= 0 {
		return nil, fmt.Errorf("surrogate model %s has invalid dimension %d", path, m.Dim)
	}
	for _, target := range []string{TargetEQE, TargetVoltage, TargetChargeBalance} {
		if len(m.Coefficients[target]) != m.Dim+1 {
			return nil, fmt.Errorf("surrogate model %s is missing coefficients for target %s", path, target)
		}
	}
	return &m, nil
}
