// Package stats provides the order statistics used by heatmap normalization.
package stats

import (
	"math"
	"sort"
)

// Sorted is an ascending copy of a sample, so repeated percentile
// queries sort only once.
type Sorted []float64

// NewSorted copies and sorts values.
func NewSorted(values []float64) Sorted {
	s := make(Sorted, len(values))
	copy(s, values)
	sort.Float64s(s)
	return s
}

// Percentile returns the p-th percentile (0-100) using linear interpolation
// between closest ranks, index = p/100 * (n-1). Returns NaN for an empty sample.
func (s Sorted) Percentile(p float64) float64 {
	if len(s) == 0 {
		return math.NaN()
	}
	if p < 0 {
		p = 0
	}
	if p > 100 {
		p = 100
	}

	index := p / 100.0 * float64(len(s)-1)
	lower := int(math.Floor(index))
	upper := int(math.Ceil(index))
	if lower == upper {
		return s[lower]
	}
	weight := index - float64(lower)
	return s[lower]*(1-weight) + s[upper]*weight
}

// Percentile is a convenience wrapper for a single query on an unsorted sample.
func Percentile(values []float64, p float64) float64 {
	return NewSorted(values).Percentile(p)
}
