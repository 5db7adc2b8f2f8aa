package stats

import "math"

// Welford holds running statistics using Welford's online algorithm.
// Mean and standard deviation are updated incrementally in O(1) time
// and space, without storing the individual observations.
type Welford struct {
	Count int     // n - number of observations
	Mean  float64 // running mean
	M2    float64 // sum of squared differences from mean (for variance)
}

// Add folds a new observation into the running statistics.
// Reference: https://en.wikipedia.org/wiki/Algorithms_for_calculating_variance#Welford's_online_algorithm
func (w *Welford) Add(value float64) {
	w.Count++
	delta := value - w.Mean
	w.Mean += delta / float64(w.Count)
	delta2 := value - w.Mean
	w.M2 += delta * delta2
}

// StdDev returns the population standard deviation.
// Returns 0 if fewer than 2 observations.
func (w *Welford) StdDev() float64 {
	if w.Count < 2 {
		return 0
	}
	return math.Sqrt(w.M2 / float64(w.Count))
}
