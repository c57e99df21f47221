package cli

import (
	"fmt"
	"sort"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/qdsearch/search-core/internal/explog"
	"github.com/qdsearch/search-core/internal/loop"
	"github.com/qdsearch/search-core/internal/reward"
	"github.com/qdsearch/search-core/internal/structure"
	"github.com/qdsearch/search-core/pkg/logger"
	"github.com/qdsearch/search-core/pkg/utils"
)

var (
	screenCount int
	screenTop   int
)

var screenCmd = &cobra.Command{
	Use:   "screen",
	Short: "Evaluate a batch of random designs in parallel and rank them",
	RunE:  runScreen,
}

func init() {
	screenCmd.Flags().IntVar(&screenCount, "count", 32, "number of random designs to screen")
	screenCmd.Flags().IntVar(&screenTop, "top", 10, "number of top designs to print")
	rootCmd.AddCommand(screenCmd)
}

func runScreen(cmd *cobra.Command, args []string) error {
	if screenCount <= 0 {
		return fmt.Errorf("count must be positive, got %d", screenCount)
	}

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

	rng := utils.NewRandSource(cfg.Seed)
	specs := make([]*structure.Spec, screenCount)
	for i := range specs {
		specs[i] = space.Sample(rng)
	}

	logger.Info("screening designs", "count", screenCount, "workers", cfg.ParallelEvaluations, "backend", ev.Name())
	results := loop.EvaluateBatch(cmd.Context(), ev, engine, specs, cfg.ParallelEvaluations)

	if cfg.RecordEvaluations && cfg.ExperienceLogPath != "" {
		store, err := explog.Open(cfg.ExperienceLogPath)
		if err != nil {
			return err
		}
		defer store.Close()
		for _, res := range results {
			if res.Err != nil {
				continue
			}
			rew := res.Reward
			rec := explog.Record{
				Timestamp: time.Now().UTC(),
				Backend:   ev.Name(),
				Spec:      res.Spec,
				Metrics:   res.Metrics,
				Reward:    &rew,
			}
			if _, err := store.Append(cmd.Context(), rec); err != nil {
				return err
			}
		}
	}

	failed := 0
	ranked := make([]loop.BatchResult, 0, len(results))
	for _, res := range results {
		if res.Err != nil {
			failed++
			logger.Warn("screen evaluation failed", "index", res.Index, "error", res.Err)
			continue
		}
		ranked = append(ranked, res)
	}
	sort.Slice(ranked, func(a, b int) bool { return ranked[a].Reward.Reward > ranked[b].Reward.Reward })

	header := color.New(color.FgCyan, color.Bold)
	header.Printf("screened %d designs (%d failed)\n", len(results), failed)
	top := screenTop
	if top > len(ranked) {
		top = len(ranked)
	}
	for i := 0; i < top; i++ {
		res := ranked[i]
		fmt.Printf("%2d. reward %-10.4f eqe %-8.4f fingerprint %s\n",
			i+1, res.Reward.Reward, res.Metrics.EQE, res.Spec.Fingerprint())
	}
	if top > 0 {
		fmt.Println()
		header.Println("best design:")
		printSpec(ranked[0].Spec)
	}
	return nil
}
