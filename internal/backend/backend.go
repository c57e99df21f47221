// Package backend abstracts how a candidate design gets its device metrics:
// an analytic mock, a directory of external simulator exports, or a fitted
// surrogate model. The decision loop only sees the Evaluator interface.
package backend

import (
	"context"
	"os"

	"github.com/qdsearch/search-core/internal/device"
	"github.com/qdsearch/search-core/internal/structure"
	"github.com/qdsearch/search-core/pkg/config"
)

// Evaluator produces device metrics for one design. Implementations must be
// safe for concurrent use; the loop may evaluate a batch of proposals in
// parallel.
type Evaluator interface {
	Evaluate(ctx context.Context, spec *structure.Spec) (*device.Metrics, error)
	Name() string
}

// New builds the evaluator the configuration names. The backend set is
// closed; an unknown name is a *ConfigError.
func New(cfg *config.Config, space *structure.Space) (Evaluator, error) {
	switch cfg.Backend {
	case config.BackendMock:
		return NewMock(cfg.Seed, cfg.GridPoints), nil
	case config.BackendSimulator:
		if cfg.SimulatorExportDir == "" {
			return nil, &ConfigError{Field: "simulator_export_dir", Detail: "required for the simulator backend"}
		}
		info, err := os.Stat(cfg.SimulatorExportDir)
		if err != nil {
			return nil, &ConfigError{Field: "simulator_export_dir", Detail: "not accessible: " + err.Error()}
		}
		if !info.IsDir() {
			return nil, &ConfigError{Field: "simulator_export_dir", Detail: cfg.SimulatorExportDir + " is not a directory"}
		}
		return NewExport(cfg.SimulatorExportDir, cfg.GridPoints, cfg.EvalTimeout()), nil
	case config.BackendSurrogate:
		return NewSurrogate(space, cfg.Surrogate.DistanceFlagThreshold), nil
	default:
		return nil, &ConfigError{Field: "backend", Detail: "unknown backend " + cfg.Backend}
	}
}
