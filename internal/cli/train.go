package cli

import (
	"fmt"
	"sort"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/qdsearch/search-core/internal/explog"
	"github.com/qdsearch/search-core/internal/surrogate"
	"github.com/qdsearch/search-core/pkg/logger"
)

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Fit a surrogate model from the experience log",
	RunE:  runTrain,
}

func init() {
	rootCmd.AddCommand(trainCmd)
}

func runTrain(cmd *cobra.Command, args []string) error {
	if cfg.ExperienceLogPath == "" {
		return fmt.Errorf("experience_log_path is required for training")
	}
	if cfg.SurrogateModelPath == "" {
		return fmt.Errorf("surrogate_model_path is required for training")
	}

	space, err := buildSpace(cfg)
	if err != nil {
		return err
	}

	store, err := explog.Open(cfg.ExperienceLogPath)
	if err != nil {
		return err
	}
	defer store.Close()

	records, err := store.List(cmd.Context())
	if err != nil {
		return err
	}
	logger.Info("training surrogate", "records", len(records), "source", cfg.ExperienceLogPath)

	model, err := surrogate.Fit(space, records, surrogate.Options{
		MinRecords:            cfg.Surrogate.MinRecords,
		ValidationFraction:    cfg.Surrogate.ValidationFraction,
		RidgeLambda:           cfg.Surrogate.RidgeLambda,
		Seed:                  cfg.Seed,
		DistanceFlagThreshold: cfg.Surrogate.DistanceFlagThreshold,
	})
	if err != nil {
		return err
	}
	if err := model.Save(cfg.SurrogateModelPath); err != nil {
		return err
	}

	header := color.New(color.FgCyan, color.Bold)
	header.Printf("model fitted from %d records\n", model.Records)

	targets := make([]string, 0, len(model.ValidationRMSE))
	for target := range model.ValidationRMSE {
		targets = append(targets, target)
	}
	sort.Strings(targets)
	for _, target := range targets {
		fmt.Printf("  %-15s validation RMSE %.6f\n", target, model.ValidationRMSE[target])
	}
	color.New(color.FgGreen).Printf("model written to %s\n", cfg.SurrogateModelPath)
	return nil
}
