package cli

import (
	"fmt"
	"os"
	"sort"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/qdsearch/search-core/internal/backend"
	"github.com/qdsearch/search-core/internal/explog"
	"github.com/qdsearch/search-core/internal/reward"
	"github.com/qdsearch/search-core/internal/structure"
	"github.com/qdsearch/search-core/pkg/utils"
)

var (
	evaluateSpecFile string
	evaluateSample   bool
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Evaluate a single design and print its metrics and reward breakdown",
	RunE:  runEvaluate,
}

func init() {
	evaluateCmd.Flags().StringVar(&evaluateSpecFile, "spec", "", "design file (YAML); defaults to the schema baseline")
	evaluateCmd.Flags().BoolVar(&evaluateSample, "sample", false, "evaluate a random design instead of the baseline")
	rootCmd.AddCommand(evaluateCmd)
}

func runEvaluate(cmd *cobra.Command, args []string) error {
	space, err := buildSpace(cfg)
	if err != nil {
		return err
	}

	var spec *structure.Spec
	switch {
	case evaluateSpecFile != "":
		spec, err = loadSpec(evaluateSpecFile)
		if err != nil {
			return err
		}
		if err := space.Validate(spec); err != nil {
			return err
		}
	case evaluateSample:
		spec = space.Sample(utils.NewRandSource(cfg.Seed))
	default:
		spec = space.Baseline()
	}

	ev, err := buildEvaluator(cfg, space)
	if err != nil {
		return err
	}
	if cfg.RecordEvaluations && cfg.ExperienceLogPath != "" {
		store, err := explog.Open(cfg.ExperienceLogPath)
		if err != nil {
			return err
		}
		defer store.Close()
		ev = backend.WithRecording(ev, store)
	}

	engine, err := reward.FromConfig(cfg)
	if err != nil {
		return err
	}

	metrics, err := ev.Evaluate(cmd.Context(), spec)
	if err != nil {
		return err
	}
	result := engine.Compute(spec, metrics)

	header := color.New(color.FgCyan, color.Bold)
	header.Println("design:")
	printSpec(spec)

	fmt.Println()
	header.Println("metrics:")
	fmt.Printf("  eqe:            %.4f\n", metrics.EQE)
	fmt.Printf("  voltage:        %.4f\n", metrics.Voltage)
	fmt.Printf("  charge_balance: %.4f\n", metrics.ChargeBalance)
	if len(metrics.Diagnostics) > 0 {
		names := make([]string, 0, len(metrics.Diagnostics))
		for name := range metrics.Diagnostics {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Printf("  %s: %.4f\n", name, metrics.Diagnostics[name])
		}
	}

	fmt.Println()
	header.Println("reward:")
	names := make([]string, 0, len(result.Terms))
	for name := range result.Terms {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Printf("  %-15s term %-10.4f weight %-8.2f\n", name, result.Terms[name], result.Weights[name])
	}
	color.New(color.FgGreen, color.Bold).Printf("  total: %.4f\n", result.Reward)
	if len(result.Flags) > 0 {
		color.New(color.FgYellow).Printf("  flags: %v\n", result.Flags)
	}
	return nil
}

func loadSpec(path string) (*structure.Spec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read design file %s: %w", path, err)
	}
	var spec structure.Spec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("failed to parse design file %s: %w", path, err)
	}
	return &spec, nil
}
