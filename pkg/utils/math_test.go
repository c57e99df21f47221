package utils

import (
	"math"
	"testing"
)

func TestMeanVarianceStdDev(t *testing.T) {
	values := []float64{2, 4, 4, 4, 5, 5, 7, 9}

	if got := Mean(values); got != 5.0 {
		t.Fatalf("expected mean 5.0, got %f", got)
	}
	if got := Variance(values); got != 4.0 {
		t.Fatalf("expected variance 4.0, got %f", got)
	}
	if got := StdDev(values); got != 2.0 {
		t.Fatalf("expected stddev 2.0, got %f", got)
	}
}

func TestMeanEmpty(t *testing.T) {
	if got := Mean(nil); got != 0 {
		t.Fatalf("expected 0 for empty slice, got %f", got)
	}
	if got := Variance(nil); got != 0 {
		t.Fatalf("expected 0 variance for empty slice, got %f", got)
	}
}

func TestClampFloat64(t *testing.T) {
	tests := []struct {
		value, min, max, want float64
	}{
		{0.5, 0, 1, 0.5},
		{-0.1, 0, 1, 0},
		{1.5, 0, 1, 1},
		{0, 0, 1, 0},
		{1, 0, 1, 1},
	}
	for _, tt := range tests {
		if got := ClampFloat64(tt.value, tt.min, tt.max); got != tt.want {
			t.Errorf("ClampFloat64(%f, %f, %f) = %f, want %f", tt.value, tt.min, tt.max, got, tt.want)
		}
	}
}

func TestDotAndNorm(t *testing.T) {
	a := []float64{1, 2, 3}
	b := []float64{4, 5, 6}

	if got := Dot(a, b); got != 32 {
		t.Fatalf("expected dot 32, got %f", got)
	}
	if got := Norm([]float64{3, 4}); got != 5 {
		t.Fatalf("expected norm 5, got %f", got)
	}
}

func TestPercentile(t *testing.T) {
	values := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}

	if got := Percentile(values, 50); got != 5.5 {
		t.Fatalf("expected p50 5.5, got %f", got)
	}
	if got := Percentile(values, 100); got != 10 {
		t.Fatalf("expected p100 10, got %f", got)
	}
	if got := Percentile(values, 0); got != 1 {
		t.Fatalf("expected p0 1, got %f", got)
	}
	if got := P95(values); math.Abs(got-9.55) > 1e-9 {
		t.Fatalf("expected p95 9.55, got %f", got)
	}
	if got := Percentile(nil, 50); got != 0 {
		t.Fatalf("expected 0 for empty slice, got %f", got)
	}
}
