// Package distance provides vector similarity scoring.
//
// Scores are similarity-oriented: higher is always better, for every
// metric. L2 contributes the negated squared distance, so callers can
// merge and rank results from mixed segments with a single descending
// sort, without branching on the metric.
package distance

import (
	"fmt"
	"math"
)

// Dot calculates the dot product of two vectors.
// Assumes vectors are the same length (caller's responsibility).
func Dot(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

// SquaredL2 calculates the squared L2 (Euclidean) distance between two vectors.
// Assumes vectors are the same length (caller's responsibility).
func SquaredL2(a, b []float32) float32 {
	var sum float32
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}

// Cosine calculates the cosine similarity of two vectors.
// Returns 0 when either vector has zero norm.
func Cosine(a, b []float32) float32 {
	dot := Dot(a, b)
	na := Dot(a, a)
	nb := Dot(b, b)
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / float32(math.Sqrt(float64(na))*math.Sqrt(float64(nb)))
}

// Metric represents the similarity metric used for vector comparison.
type Metric int

const (
	// MetricCosine scores by cosine similarity.
	MetricCosine Metric = iota
	// MetricL2 scores by negated squared euclidean distance.
	MetricL2
	// MetricDot scores by dot product.
	MetricDot
)

func (m Metric) String() string {
	switch m {
	case MetricCosine:
		return "Cosine"
	case MetricL2:
		return "L2"
	case MetricDot:
		return "Dot"
	default:
		return fmt.Sprintf("Unknown(%d)", int(m))
	}
}

// Func is a function type for score calculation. Higher is better.
type Func func(a, b []float32) float32

// Provider returns the scoring function for the given metric.
func Provider(m Metric) (Func, error) {
	switch m {
	case MetricCosine:
		return Cosine, nil
	case MetricL2:
		return func(a, b []float32) float32 { return -SquaredL2(a, b) }, nil
	case MetricDot:
		return Dot, nil
	default:
		return nil, fmt.Errorf("unknown metric: %d", int(m))
	}
}
