package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/qdsearch/search-core/internal/backend"
	"github.com/qdsearch/search-core/internal/explog"
	"github.com/qdsearch/search-core/internal/loop"
	"github.com/qdsearch/search-core/internal/reward"
	"github.com/qdsearch/search-core/internal/structure"
	"github.com/qdsearch/search-core/internal/surrogate"
	"github.com/qdsearch/search-core/pkg/config"
	"github.com/qdsearch/search-core/pkg/logger"
	"github.com/qdsearch/search-core/pkg/utils"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run an optimization search over the design space",
	RunE:  runSearch,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	space, err := buildSpace(cfg)
	if err != nil {
		return err
	}
	ev, err := buildEvaluator(cfg, space)
	if err != nil {
		return err
	}
	engine, err := reward.FromConfig(cfg)
	if err != nil {
		return err
	}

	var store explog.Store
	if cfg.RecordEvaluations {
		store, err = explog.Open(cfg.ExperienceLogPath)
		if err != nil {
			return err
		}
		defer store.Close()
	}

	strategy, err := loop.StrategyFromConfig(cfg.Convergence)
	if err != nil {
		return err
	}

	rng := utils.NewRandSource(cfg.Seed)
	// The policy draws from a derived stream so its exploration noise does
	// not perturb the environment's sampling sequence.
	policyRNG := utils.NewRandSource(rng.Int63())
	policy := loop.NewEpsilonGreedyPolicy(policyRNG, space.EncodedDim(), cfg.Policy.Noise, cfg.Policy.Epsilon)
	env := loop.NewEnv(cfg, space, ev, engine, store, rng)
	runner := loop.NewRunner(cfg, env, policy, strategy, logger.Default)

	report, err := runner.Run(cmd.Context())
	if err != nil {
		return err
	}
	printReport(report)
	return nil
}

func printReport(report *loop.Report) {
	header := color.New(color.FgCyan, color.Bold)
	good := color.New(color.FgGreen)

	header.Printf("run %s\n", report.RunID)
	header.Println("episode   steps   best        mean        p95")
	for _, s := range report.EpisodeSummaries {
		fmt.Printf("%-9d %-7d %-11.4f %-11.4f %-11.4f\n", s.Episode, s.Steps, s.Best, s.Mean, s.P95)
	}

	fmt.Println()
	if report.Converged {
		good.Printf("converged after %d episodes: %s\n", report.Episodes, report.ConvergenceReason)
	} else {
		fmt.Printf("finished %d episodes (budget exhausted)\n", report.Episodes)
	}
	good.Printf("best reward %.4f at episode %d step %d\n", report.BestReward, report.BestEpisode, report.BestStep)

	if report.BestSpec != nil {
		fmt.Println()
		header.Println("best design:")
		printSpec(report.BestSpec)
	}
}

func printSpec(spec *structure.Spec) {
	out, err := yaml.Marshal(spec)
	if err != nil {
		fmt.Printf("%+v\n", spec)
		return
	}
	fmt.Print(string(out))
}

// buildSpace loads the configured parameter schema, falling back to the
// built-in device stack.
func buildSpace(cfg *config.Config) (*structure.Space, error) {
	schema := structure.DefaultSchema()
	if cfg.ParameterSchemaPath != "" {
		loaded, err := structure.LoadSchema(cfg.ParameterSchemaPath)
		if err != nil {
			return nil, err
		}
		schema = loaded
	}
	return structure.NewSpace(schema)
}

// buildEvaluator dispatches the backend and wraps it with the retry policy.
// A surrogate backend additionally needs its model loaded up front.
func buildEvaluator(cfg *config.Config, space *structure.Space) (backend.Evaluator, error) {
	ev, err := backend.New(cfg, space)
	if err != nil {
		return nil, err
	}
	if sg, ok := ev.(*backend.Surrogate); ok {
		model, err := surrogate.Load(cfg.SurrogateModelPath)
		if err != nil {
			return nil, err
		}
		sg.SetModel(model)
	}
	if cfg.RetryLimit > 0 {
		ev = backend.WithRetry(ev, cfg.RetryLimit, utils.BackoffFromConfig(cfg.RetryBackoff, cfg.RetryBaseMs, 0))
	}
	return ev, nil
}
