package config

import "time"

// Backend names form the closed set of evaluation backend variants.
const (
	BackendMock      = "mock"
	BackendSimulator = "simulator"
	BackendSurrogate = "surrogate"
)

// Invalid-action policies for the decision loop.
const (
	InvalidActionReject   = "reject"
	InvalidActionPenalize = "penalize"
)

// Reward term names. Weights are always addressed by these names so the
// reward breakdown stays auditable end to end.
const (
	TermEfficiency    = "efficiency"
	TermOverlap       = "overlap"
	TermUniformity    = "uniformity"
	TermOperatingCost = "operating_cost"
	TermFeasibility   = "feasibility"
)

// Config is the top-level run configuration. Fields carry both yaml tags
// (library use, ParseYAML) and mapstructure tags (CLI use via viper).
type Config struct {
	LogLevel string `yaml:"log_level" mapstructure:"log_level"`
	Seed     int64  `yaml:"seed" mapstructure:"seed"`

	Backend    string `yaml:"backend" mapstructure:"backend"`
	Episodes   int    `yaml:"episodes" mapstructure:"episodes"`
	StepBudget int    `yaml:"step_budget" mapstructure:"step_budget"`

	// ActionScale bounds how far a single action moves the design in
	// normalized parameter space.
	ActionScale   float64 `yaml:"action_scale" mapstructure:"action_scale"`
	InvalidAction string  `yaml:"invalid_action" mapstructure:"invalid_action"`

	GridPoints          int `yaml:"grid_points" mapstructure:"grid_points"`
	ParallelEvaluations int `yaml:"parallel_evaluations" mapstructure:"parallel_evaluations"`

	RewardWeights    map[string]float64 `yaml:"reward_weights" mapstructure:"reward_weights"`
	VoltageThreshold float64            `yaml:"voltage_threshold" mapstructure:"voltage_threshold"`
	VoltageSoftness  float64            `yaml:"voltage_softness" mapstructure:"voltage_softness"`

	ParameterSchemaPath string `yaml:"parameter_schema_path" mapstructure:"parameter_schema_path"`
	SimulatorExportDir  string `yaml:"simulator_export_dir" mapstructure:"simulator_export_dir"`
	SurrogateModelPath  string `yaml:"surrogate_model_path" mapstructure:"surrogate_model_path"`
	ExperienceLogPath   string `yaml:"experience_log_path" mapstructure:"experience_log_path"`

	RecordEvaluations  bool    `yaml:"record_evaluations" mapstructure:"record_evaluations"`
	RetryLimit         int     `yaml:"retry_limit" mapstructure:"retry_limit"`
	RetryBackoff       string  `yaml:"retry_backoff" mapstructure:"retry_backoff"`
	RetryBaseMs        int     `yaml:"retry_base_ms" mapstructure:"retry_base_ms"`
	EvalTimeoutSeconds float64 `yaml:"eval_timeout_seconds" mapstructure:"eval_timeout_seconds"`

	Policy      Policy            `yaml:"policy" mapstructure:"policy"`
	Convergence *Convergence      `yaml:"convergence,omitempty" mapstructure:"convergence"`
	Surrogate   SurrogateTraining `yaml:"surrogate_training" mapstructure:"surrogate_training"`
}

// Policy holds the exploration hyperparameters of the search policy.
type Policy struct {
	// Noise is the standard deviation of the Gaussian perturbation applied
	// to the best-so-far observation, in normalized action units.
	Noise float64 `yaml:"noise" mapstructure:"noise"`
	// Epsilon is the probability of taking a uniform random action instead
	// of perturbing the best-so-far observation.
	Epsilon float64 `yaml:"epsilon" mapstructure:"epsilon"`
}

// Convergence controls early stopping of the decision loop.
type Convergence struct {
	Strategy    string  `yaml:"strategy" mapstructure:"strategy"` // no_improvement, plateau, combined
	Window      int     `yaml:"window" mapstructure:"window"`
	Tolerance   float64 `yaml:"tolerance" mapstructure:"tolerance"`
	MinEpisodes int     `yaml:"min_episodes" mapstructure:"min_episodes"`
}

// SurrogateTraining holds the offline trainer options.
type SurrogateTraining struct {
	MinRecords            int     `yaml:"min_records" mapstructure:"min_records"`
	ValidationFraction    float64 `yaml:"validation_fraction" mapstructure:"validation_fraction"`
	RidgeLambda           float64 `yaml:"ridge_lambda" mapstructure:"ridge_lambda"`
	DistanceFlagThreshold float64 `yaml:"distance_flag_threshold" mapstructure:"distance_flag_threshold"`
}

// Default returns a fully populated configuration for a mock-backend run.
// All weights and thresholds here are illustrative starting points, not
// physically calibrated constants; real runs override them from file.
func Default() *Config {
	return &Config{
		LogLevel:      "info",
		Seed:          0,
		Backend:       BackendMock,
		Episodes:      50,
		StepBudget:    30,
		ActionScale:   0.05,
		InvalidAction: InvalidActionPenalize,
		GridPoints:    64,

		ParallelEvaluations: 1,

		RewardWeights: map[string]float64{
			TermEfficiency:    1.0,
			TermOverlap:       0.2,
			TermUniformity:    0.1,
			TermOperatingCost: 0.5,
			TermFeasibility:   10.0,
		},
		VoltageThreshold: 5.5,
		VoltageSoftness:  0.5,

		ExperienceLogPath: "experience.jsonl",
		RecordEvaluations: true,

		RetryLimit:         2,
		RetryBackoff:       "exponential",
		RetryBaseMs:        100,
		EvalTimeoutSeconds: 5.0,

		Policy: Policy{
			Noise:   0.3,
			Epsilon: 0.1,
		},
		Convergence: &Convergence{
			Strategy:    "combined",
			Window:      5,
			Tolerance:   1e-3,
			MinEpisodes: 3,
		},
		Surrogate: SurrogateTraining{
			MinRecords:            50,
			ValidationFraction:    0.2,
			RidgeLambda:           1.0,
			DistanceFlagThreshold: 2.0,
		},
	}
}

// EvalTimeout returns the per-evaluation timeout as a duration.
func (c *Config) EvalTimeout() time.Duration {
	return time.Duration(c.EvalTimeoutSeconds * float64(time.Second))
}
