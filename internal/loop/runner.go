package loop

import (
	"context"
	"log/slog"

	"github.com/qdsearch/search-core/internal/stats"
	"github.com/qdsearch/search-core/internal/structure"
	"github.com/qdsearch/search-core/pkg/config"
	"github.com/qdsearch/search-core/pkg/utils"
)

// Report is the final outcome of a run.
type Report struct {
	RunID             string                 `json:"run_id"`
	Episodes          int                    `json:"episodes"`
	Steps             int                    `json:"steps"`
	BestReward        float64                `json:"best_reward"`
	BestSpec          *structure.Spec        `json:"best_spec,omitempty"`
	BestEpisode       int                    `json:"best_episode"`
	BestStep          int                    `json:"best_step"`
	Converged         bool                   `json:"converged"`
	ConvergenceReason string                 `json:"convergence_reason,omitempty"`
	EpisodeSummaries  []stats.EpisodeSummary `json:"episode_summaries"`
}

// Runner drives episodes of the search loop and applies early stopping.
// Every runner carries a generated run ID that tags its log lines and the
// final report, so concurrent or archived runs stay distinguishable.
type Runner struct {
	cfg      *config.Config
	env      *Env
	policy   Policy
	strategy ConvergenceStrategy
	tracker  *stats.Tracker
	runID    string
	log      *slog.Logger
}

// NewRunner wires a runner. strategy may be nil to disable early stopping.
func NewRunner(cfg *config.Config, env *Env, policy Policy, strategy ConvergenceStrategy, log *slog.Logger) *Runner {
	runID := utils.GenerateRunID()
	return &Runner{
		cfg:      cfg,
		env:      env,
		policy:   policy,
		strategy: strategy,
		tracker:  stats.NewTracker(),
		runID:    runID,
		log:      log.With("run_id", runID),
	}
}

// RunID returns the generated identifier for this run.
func (r *Runner) RunID() string {
	return r.runID
}

// Tracker exposes the run statistics, useful for progress reporting while
// the run is live.
func (r *Runner) Tracker() *stats.Tracker {
	return r.tracker
}

// Run executes episodes × step-budget steps, stopping early on convergence
// or context cancellation.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	var history []float64
	converged := false
	reason := ""
	episodesRun := 0

	for episode := 1; episode <= r.cfg.Episodes; episode++ {
		obs, err := r.env.Reset(ctx)
		if err != nil {
			return nil, err
		}

		for step := 1; step <= r.cfg.StepBudget; step++ {
			if err := ctx.Err(); err != nil {
				return nil, err
			}

			action := r.policy.Act(obs)
			result, err := r.env.Step(ctx, action)
			if err != nil {
				return nil, err
			}

			r.policy.Learn(Transition{
				Observation: obs,
				Action:      action,
				Reward:      result.Reward.Reward,
				Next:        result.Observation,
				Done:        step == r.cfg.StepBudget,
			})
			r.tracker.RecordStep(episode, step, result.Reward.Reward, result.Spec)
			obs = result.Observation
		}

		summary := r.tracker.EndEpisode(episode)
		episodesRun = episode
		r.log.Info("episode finished",
			"episode", summary.Episode,
			"steps", summary.Steps,
			"best", summary.Best,
			"mean", summary.Mean,
			"stddev", summary.StdDev,
			"p95", summary.P95)

		history = append(history, summary.Best)
		if r.strategy != nil {
			if stop, why := r.strategy.Check(history); stop {
				converged = true
				reason = why
				r.log.Info("run converged", "episode", episode, "reason", why)
				break
			}
		}
	}

	report := &Report{
		RunID:             r.runID,
		Episodes:          episodesRun,
		Steps:             r.tracker.TotalSteps(),
		Converged:         converged,
		ConvergenceReason: reason,
		EpisodeSummaries:  r.tracker.Episodes(),
	}
	if best, spec, ok := r.tracker.Best(); ok {
		report.BestReward = best
		report.BestSpec = spec
		report.BestEpisode, report.BestStep = r.tracker.BestLocation()
	}
	return report, nil
}
