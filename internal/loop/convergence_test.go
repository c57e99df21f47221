package loop

import (
	"testing"

	"github.com/qdsearch/search-core/pkg/config"
)

func TestNoImprovementStrategy(t *testing.T) {
	s := NewNoImprovementStrategy(&ConvergenceConfig{Window: 3, Tolerance: 1e-3, MinEpisodes: 2})

	if stop, _ := s.Check([]float64{1.0}); stop {
		t.Fatal("must not converge below min episodes")
	}
	// Best is last: still improving.
	if stop, _ := s.Check([]float64{1.0, 2.0, 3.0, 4.0}); stop {
		t.Fatal("improving history must not converge")
	}
	// Best at episode 2, then 3 stale episodes.
	stop, reason := s.Check([]float64{1.0, 5.0, 4.0, 4.5, 3.0})
	if !stop {
		t.Fatal("expected convergence after a full stale window")
	}
	if reason == "" {
		t.Fatal("expected a reason")
	}
}

func TestPlateauStrategy(t *testing.T) {
	s := NewPlateauStrategy(&ConvergenceConfig{Window: 3, Tolerance: 0.01, MinEpisodes: 2})

	if stop, _ := s.Check([]float64{1.0, 1.5, 2.2}); stop {
		t.Fatal("spread rewards must not plateau")
	}
	stop, _ := s.Check([]float64{1.0, 2.0, 2.001, 2.002, 1.999})
	if !stop {
		t.Fatal("expected plateau within tolerance")
	}
}

func TestCombinedStrategy(t *testing.T) {
	s := NewCombinedStrategy(&ConvergenceConfig{Window: 3, Tolerance: 0.01, MinEpisodes: 2})
	stop, reason := s.Check([]float64{1.0, 2.0, 2.001, 2.002, 1.999})
	if !stop {
		t.Fatal("combined strategy should inherit plateau detection")
	}
	if reason == "" {
		t.Fatal("expected the member strategy named in the reason")
	}
}

func TestStrategyFromConfig(t *testing.T) {
	s, err := StrategyFromConfig(nil)
	if err != nil || s != nil {
		t.Fatalf("nil section should disable early stopping, got %v/%v", s, err)
	}

	for _, name := range []string{"no_improvement", "plateau", "combined"} {
		s, err := StrategyFromConfig(&config.Convergence{Strategy: name, Window: 5, Tolerance: 1e-3, MinEpisodes: 3})
		if err != nil {
			t.Fatalf("strategy %s failed: %v", name, err)
		}
		if s.Name() != name {
			t.Fatalf("expected strategy %s, got %s", name, s.Name())
		}
	}

	if _, err := StrategyFromConfig(&config.Convergence{Strategy: "oracle"}); err == nil {
		t.Fatal("expected error for unknown strategy")
	}
}
