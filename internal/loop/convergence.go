package loop

import (
	"fmt"

	"github.com/qdsearch/search-core/pkg/config"
)

// ConvergenceStrategy decides whether a run should stop early based on the
// per-episode best-reward history.
type ConvergenceStrategy interface {
	// Check inspects the history (one entry per finished episode) and
	// reports convergence with a human-readable reason.
	Check(history []float64) (bool, string)
	// Name returns the strategy identifier.
	Name() string
}

// ConvergenceConfig tunes the strategies.
type ConvergenceConfig struct {
	// Window is the number of trailing episodes inspected.
	Window int
	// Tolerance is the absolute reward range treated as a plateau.
	Tolerance float64
	// MinEpisodes gates convergence detection entirely.
	MinEpisodes int
}

// DefaultConvergenceConfig returns the defaults used when the run
// configuration leaves convergence unset.
func DefaultConvergenceConfig() *ConvergenceConfig {
	return &ConvergenceConfig{Window: 5, Tolerance: 1e-3, MinEpisodes: 3}
}

// StrategyFromConfig builds the configured strategy. A nil convergence
// section disables early stopping.
func StrategyFromConfig(cc *config.Convergence) (ConvergenceStrategy, error) {
	if cc == nil {
		return nil, nil
	}
	conv := &ConvergenceConfig{
		Window:      cc.Window,
		Tolerance:   cc.Tolerance,
		MinEpisodes: cc.MinEpisodes,
	}
	switch cc.Strategy {
	case "no_improvement":
		return NewNoImprovementStrategy(conv), nil
	case "plateau":
		return NewPlateauStrategy(conv), nil
	case "combined":
		return NewCombinedStrategy(conv), nil
	default:
		return nil, fmt.Errorf("unknown convergence strategy %q", cc.Strategy)
	}
}

// NoImprovementStrategy stops when the best reward has not improved for a
// full window of episodes.
type NoImprovementStrategy struct {
	config *ConvergenceConfig
}

// NewNoImprovementStrategy creates the strategy with the given config.
func NewNoImprovementStrategy(config *ConvergenceConfig) *NoImprovementStrategy {
	if config == nil {
		config = DefaultConvergenceConfig()
	}
	return &NoImprovementStrategy{config: config}
}

func (s *NoImprovementStrategy) Name() string {
	return "no_improvement"
}

func (s *NoImprovementStrategy) Check(history []float64) (bool, string) {
	if len(history) < s.config.MinEpisodes {
		return false, ""
	}

	bestIdx := 0
	for i, r := range history {
		if r > history[bestIdx] {
			bestIdx = i
		}
	}

	sinceBest := len(history) - 1 - bestIdx
	if sinceBest >= s.config.Window {
		return true, fmt.Sprintf("no improvement for %d episodes (best at episode %d)", sinceBest, bestIdx+1)
	}
	return false, ""
}

// PlateauStrategy stops when the trailing window of episode rewards spans
// less than the tolerance.
type PlateauStrategy struct {
	config *ConvergenceConfig
}

// NewPlateauStrategy creates the strategy with the given config.
func NewPlateauStrategy(config *ConvergenceConfig) *PlateauStrategy {
	if config == nil {
		config = DefaultConvergenceConfig()
	}
	return &PlateauStrategy{config: config}
}

func (s *PlateauStrategy) Name() string {
	return "plateau"
}

func (s *PlateauStrategy) Check(history []float64) (bool, string) {
	if len(history) < s.config.MinEpisodes || len(history) < s.config.Window {
		return false, ""
	}

	recent := history[len(history)-s.config.Window:]
	lo, hi := recent[0], recent[0]
	for _, r := range recent {
		if r < lo {
			lo = r
		}
		if r > hi {
			hi = r
		}
	}

	if hi-lo <= s.config.Tolerance {
		return true, fmt.Sprintf("reward plateaued for %d episodes (range %.6f)", s.config.Window, hi-lo)
	}
	return false, ""
}

// CombinedStrategy converges as soon as any member strategy does.
type CombinedStrategy struct {
	strategies []ConvergenceStrategy
}

// NewCombinedStrategy combines the no-improvement and plateau strategies.
func NewCombinedStrategy(config *ConvergenceConfig) *CombinedStrategy {
	if config == nil {
		config = DefaultConvergenceConfig()
	}
	return &CombinedStrategy{
		strategies: []ConvergenceStrategy{
			NewNoImprovementStrategy(config),
			NewPlateauStrategy(config),
		},
	}
}

func (s *CombinedStrategy) Name() string {
	return "combined"
}

func (s *CombinedStrategy) Check(history []float64) (bool, string) {
	for _, strategy := range s.strategies {
		if converged, reason := strategy.Check(history); converged {
			return true, fmt.Sprintf("%s: %s", strategy.Name(), reason)
		}
	}
	return false, ""
}
