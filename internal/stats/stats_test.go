package stats

import (
	"math"
	"testing"
)

// TestWelfordMatchesDirectComputation feeds a fixed sample through the
// incremental path and compares against the two-pass textbook formulas.
func TestWelfordMatchesDirectComputation(t *testing.T) {
	sample := []float64{2, 4, 4, 4, 5, 5, 7, 9}

	var w Welford
	for _, v := range sample {
		w.Add(v)
	}

	if w.Count != len(sample) {
		t.Fatalf("count = %d, want %d", w.Count, len(sample))
	}
	if math.Abs(w.Mean-5.0) > 1e-9 {
		t.Errorf("mean = %v, want 5.0", w.Mean)
	}
	// Population stddev of the classic sample above is exactly 2.
	if math.Abs(w.StdDev()-2.0) > 1e-9 {
		t.Errorf("stddev = %v, want 2.0", w.StdDev())
	}
}

func TestWelfordFewObservations(t *testing.T) {
	var w Welford
	if got := w.StdDev(); got != 0 {
		t.Errorf("empty stddev = %v, want 0", got)
	}
	w.Add(3.5)
	if got := w.StdDev(); got != 0 {
		t.Errorf("single-observation stddev = %v, want 0", got)
	}
	if w.Mean != 3.5 {
		t.Errorf("mean = %v, want 3.5", w.Mean)
	}
}

func TestQuantile(t *testing.T) {
	values := []float64{9, 1, 8, 2, 7, 3, 6, 4, 5, 10}

	cases := []struct {
		name string
		p    float64
		want float64
	}{
		{"min", 0, 1},
		{"median", 0.5, 5.5},
		{"p90", 0.9, 9.1},
		{"max", 1, 10},
	}
	for _, tc := range cases {
		if got := Quantile(values, tc.p); math.Abs(got-tc.want) > 1e-9 {
			t.Errorf("%s: Quantile(p=%v) = %v, want %v", tc.name, tc.p, got, tc.want)
		}
	}

	// Input must not be reordered by the call.
	if values[0] != 9 || values[9] != 10 {
		t.Errorf("input slice was mutated: %v", values)
	}

	if got := Quantile(nil, 0.5); got != 0 {
		t.Errorf("empty input = %v, want 0", got)
	}
}
