package loop

import (
	"github.com/qdsearch/search-core/pkg/utils"
)

// Transition is one (observation, action, reward, next) tuple fed back to
// the policy after a step.
type Transition struct {
	Observation []float64
	Action      []float64
	Reward      float64
	Next        []float64
	Done        bool
}

// Policy proposes actions in [-1, 1]^dim and learns from transitions.
// Policies are used from a single goroutine.
type Policy interface {
	Act(obs []float64) []float64
	Learn(t Transition)
}

// RandomPolicy proposes uniform random actions. The exploration baseline
// every other policy is measured against.
type RandomPolicy struct {
	rng *utils.RandSource
	dim int
}

// NewRandomPolicy creates a seeded random policy for a dim-dimensional
// action space.
func NewRandomPolicy(rng *utils.RandSource, dim int) *RandomPolicy {
	return &RandomPolicy{rng: rng, dim: dim}
}

func (p *RandomPolicy) Act(obs []float64) []float64 {
	action := make([]float64, p.dim)
	for i := range action {
		action[i] = p.rng.UniformFloat64(-1, 1)
	}
	return action
}

func (p *RandomPolicy) Learn(t Transition) {}

// HillClimbPolicy remembers the best observation seen and steers toward it,
// with Gaussian exploration noise. At the best point it proposes pure
// perturbations.
type HillClimbPolicy struct {
	rng   *utils.RandSource
	dim   int
	noise float64

	hasBest    bool
	bestObs    []float64
	bestReward float64
}

// NewHillClimbPolicy creates a hill-climbing policy. noise scales the
// exploration perturbation added to each proposal.
func NewHillClimbPolicy(rng *utils.RandSource, dim int, noise float64) *HillClimbPolicy {
	if noise <= 0 {
		noise = 0.3
	}
	return &HillClimbPolicy{rng: rng, dim: dim, noise: noise}
}

func (p *HillClimbPolicy) Act(obs []float64) []float64 {
	action := make([]float64, p.dim)
	for i := range action {
		var pull float64
		if p.hasBest && i < len(p.bestObs) && i < len(obs) {
			pull = p.bestObs[i] - obs[i]
		}
		action[i] = utils.ClampFloat64(pull+p.rng.NormFloat64(0, p.noise), -1, 1)
	}
	return action
}

func (p *HillClimbPolicy) Learn(t Transition) {
	if !p.hasBest || t.Reward > p.bestReward {
		p.hasBest = true
		p.bestReward = t.Reward
		p.bestObs = append(p.bestObs[:0], t.Next...)
	}
}

// Best returns the best observation and reward the policy has accepted.
func (p *HillClimbPolicy) Best() ([]float64, float64, bool) {
	if !p.hasBest {
		return nil, 0, false
	}
	return append([]float64(nil), p.bestObs...), p.bestReward, true
}

// EpsilonGreedyPolicy behaves like HillClimbPolicy but takes a uniform
// random action with probability epsilon, restarting exploration away from
// local optima.
type EpsilonGreedyPolicy struct {
	hill    *HillClimbPolicy
	random  *RandomPolicy
	rng     *utils.RandSource
	epsilon float64
}

// NewEpsilonGreedyPolicy wraps hill climbing with epsilon-random restarts.
func NewEpsilonGreedyPolicy(rng *utils.RandSource, dim int, noise, epsilon float64) *EpsilonGreedyPolicy {
	return &EpsilonGreedyPolicy{
		hill:    NewHillClimbPolicy(rng, dim, noise),
		random:  NewRandomPolicy(rng, dim),
		rng:     rng,
		epsilon: epsilon,
	}
}

func (p *EpsilonGreedyPolicy) Act(obs []float64) []float64 {
	if p.rng.Float64() < p.epsilon {
		return p.random.Act(obs)
	}
	return p.hill.Act(obs)
}

func (p *EpsilonGreedyPolicy) Learn(t Transition) {
	p.hill.Learn(t)
}
