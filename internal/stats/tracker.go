// Package stats tracks per-episode reward history during a search run and
// produces the summaries the runner logs and the final report prints.
package stats

import (
	"math"
	"sync"

	"github.com/qdsearch/search-core/internal/structure"
	"github.com/qdsearch/search-core/pkg/utils"
)

// EpisodeSummary aggregates the rewards observed during one episode.
type EpisodeSummary struct {
	Episode int     `json:"episode"`
	Steps   int     `json:"steps"`
	Best    float64 `json:"best"`
	Mean    float64 `json:"mean"`
	StdDev  float64 `json:"stddev"`
	P95     float64 `json:"p95"`
}

// Tracker accumulates step rewards and remembers the best design seen
// across the whole run. Safe for concurrent use.
type Tracker struct {
	mu sync.RWMutex

	current   []float64
	episodes  []EpisodeSummary
	bestSeen  bool
	best      float64
	bestSpec  *structure.Spec
	bestEP    int
	bestStep  int
	stepCount int
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{}
}

// RecordStep adds one step's reward and updates the best-design tracking.
func (t *Tracker) RecordStep(episode, step int, reward float64, spec *structure.Spec) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.current = append(t.current, reward)
	t.stepCount++

	if !t.bestSeen || reward > t.best {
		t.bestSeen = true
		t.best = reward
		t.bestEP = episode
		t.bestStep = step
		if spec != nil {
			t.bestSpec = spec.Clone()
		}
	}
}

// EndEpisode closes the current episode and returns its summary.
func (t *Tracker) EndEpisode(episode int) EpisodeSummary {
	t.mu.Lock()
	defer t.mu.Unlock()

	summary := EpisodeSummary{
		Episode: episode,
		Steps:   len(t.current),
		Best:    math.Inf(-1),
		Mean:    utils.Mean(t.current),
		StdDev:  utils.StdDev(t.current),
		P95:     utils.P95(t.current),
	}
	for _, r := range t.current {
		if r > summary.Best {
			summary.Best = r
		}
	}
	if len(t.current) == 0 {
		summary.Best = 0
	}

	t.episodes = append(t.episodes, summary)
	t.current = t.current[:0]
	return summary
}

// Best returns the best reward seen so far and the design that produced it.
func (t *Tracker) Best() (float64, *structure.Spec, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if !t.bestSeen {
		return 0, nil, false
	}
	var spec *structure.Spec
	if t.bestSpec != nil {
		spec = t.bestSpec.Clone()
	}
	return t.best, spec, true
}

// BestLocation returns the episode and step of the best reward.
func (t *Tracker) BestLocation() (episode, step int) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.bestEP, t.bestStep
}

// Episodes returns the summaries recorded so far.
func (t *Tracker) Episodes() []EpisodeSummary {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]EpisodeSummary, len(t.episodes))
	copy(out, t.episodes)
	return out
}

// TotalSteps returns the number of recorded steps across all episodes.
func (t *Tracker) TotalSteps() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.stepCount
}
