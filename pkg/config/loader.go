package config

import (
	"fmt"
	"os"
)

// Load reads and parses a configuration file, layering it over Default().
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	cfg, err := ParseYAML(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return cfg, nil
}

// Validate performs strict validation on the configuration. Configuration
// errors are fatal at startup: a run never proceeds on a degraded config.
func Validate(cfg *Config) error {
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[cfg.LogLevel] {
		return fmt.Errorf("invalid log_level: %s (must be debug, info, warn, or error)", cfg.LogLevel)
	}

	switch cfg.Backend {
	case BackendMock, BackendSimulator, BackendSurrogate:
	default:
		return fmt.Errorf("unknown backend: %s (must be %s, %s, or %s)",
			cfg.Backend, BackendMock, BackendSimulator, BackendSurrogate)
	}

	if cfg.Backend == BackendSimulator && cfg.SimulatorExportDir == "" {
		return fmt.Errorf("backend %s requires simulator_export_dir", BackendSimulator)
	}
	if cfg.Backend == BackendSurrogate && cfg.SurrogateModelPath == "" {
		return fmt.Errorf("backend %s requires surrogate_model_path", BackendSurrogate)
	}

	if cfg.Episodes <= 0 {
		return fmt.Errorf("episodes must be positive, got %d", cfg.Episodes)
	}
	if cfg.StepBudget <= 0 {
		return fmt.Errorf("step_budget must be positive, got %d", cfg.StepBudget)
	}
	if cfg.ActionScale <= 0 || cfg.ActionScale > 1 {
		return fmt.Errorf("action_scale must be in (0, 1], got %f", cfg.ActionScale)
	}

	switch cfg.InvalidAction {
	case InvalidActionReject, InvalidActionPenalize:
	default:
		return fmt.Errorf("invalid invalid_action: %s (must be %s or %s)",
			cfg.InvalidAction, InvalidActionReject, InvalidActionPenalize)
	}

	if cfg.GridPoints < 2 {
		return fmt.Errorf("grid_points must be at least 2, got %d", cfg.GridPoints)
	}
	if cfg.ParallelEvaluations < 1 {
		return fmt.Errorf("parallel_evaluations must be at least 1, got %d", cfg.ParallelEvaluations)
	}

	if err := validateRewardWeights(cfg.RewardWeights); err != nil {
		return err
	}
	if cfg.VoltageSoftness <= 0 {
		return fmt.Errorf("voltage_softness must be positive, got %f", cfg.VoltageSoftness)
	}

	if cfg.RetryLimit < 0 {
		return fmt.Errorf("retry_limit cannot be negative, got %d", cfg.RetryLimit)
	}
	validBackoffs := map[string]bool{
		"exponential": true,
		"linear":      true,
		"constant":    true,
	}
	if !validBackoffs[cfg.RetryBackoff] {
		return fmt.Errorf("invalid retry_backoff: %s (must be exponential, linear, or constant)", cfg.RetryBackoff)
	}
	if cfg.RetryBaseMs < 0 {
		return fmt.Errorf("retry_base_ms cannot be negative, got %d", cfg.RetryBaseMs)
	}
	if cfg.EvalTimeoutSeconds <= 0 {
		return fmt.Errorf("eval_timeout_seconds must be positive, got %f", cfg.EvalTimeoutSeconds)
	}

	if cfg.Policy.Noise <= 0 {
		return fmt.Errorf("policy noise must be positive, got %f", cfg.Policy.Noise)
	}
	if cfg.Policy.Epsilon < 0 || cfg.Policy.Epsilon > 1 {
		return fmt.Errorf("policy epsilon must be in [0, 1], got %f", cfg.Policy.Epsilon)
	}

	if cfg.Convergence != nil {
		if err := validateConvergence(cfg.Convergence); err != nil {
			return fmt.Errorf("convergence validation failed: %w", err)
		}
	}

	if err := validateSurrogateTraining(&cfg.Surrogate); err != nil {
		return fmt.Errorf("surrogate_training validation failed: %w", err)
	}

	return nil
}

func validateRewardWeights(weights map[string]float64) error {
	if len(weights) == 0 {
		return fmt.Errorf("reward_weights must define at least one term weight")
	}
	known := map[string]bool{
		TermEfficiency:    true,
		TermOverlap:       true,
		TermUniformity:    true,
		TermOperatingCost: true,
		TermFeasibility:   true,
	}
	for name, w := range weights {
		if !known[name] {
			return fmt.Errorf("unknown reward weight: %s", name)
		}
		if w < 0 {
			return fmt.Errorf("reward weight %s cannot be negative, got %f", name, w)
		}
	}
	return nil
}

func validateConvergence(c *Convergence) error {
	validStrategies := map[string]bool{
		"no_improvement": true,
		"plateau":        true,
		"combined":       true,
	}
	if !validStrategies[c.Strategy] {
		return fmt.Errorf("invalid strategy: %s (must be no_improvement, plateau, or combined)", c.Strategy)
	}
	if c.Window <= 0 {
		return fmt.Errorf("window must be positive, got %d", c.Window)
	}
	if c.Tolerance < 0 {
		return fmt.Errorf("tolerance cannot be negative, got %f", c.Tolerance)
	}
	if c.MinEpisodes < 0 {
		return fmt.Errorf("min_episodes cannot be negative, got %d", c.MinEpisodes)
	}
	return nil
}

func validateSurrogateTraining(s *SurrogateTraining) error {
	if s.MinRecords <= 0 {
		return fmt.Errorf("min_records must be positive, got %d", s.MinRecords)
	}
	if s.ValidationFraction <= 0 || s.ValidationFraction >= 1 {
		return fmt.Errorf("validation_fraction must be in (0, 1), got %f", s.ValidationFraction)
	}
	if s.RidgeLambda < 0 {
		return fmt.Errorf("ridge_lambda cannot be negative, got %f", s.RidgeLambda)
	}
	if s.DistanceFlagThreshold <= 0 {
		return fmt.Errorf("distance_flag_threshold must be positive, got %f", s.DistanceFlagThreshold)
	}
	return nil
}
