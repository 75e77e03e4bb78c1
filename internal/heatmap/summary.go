package heatmap

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/sells-group/coverage-cli/internal/stats"
)

// Summary describes the distribution of heatmap values.
type Summary struct {
	Count int     `json:"count"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Mean  float64 `json:"mean"`
	P75   float64 `json:"p75"`
	P90   float64 `json:"p90"`
	P95   float64 `json:"p95"`
}

// Summarize returns value statistics, or false for an empty heatmap.
func Summarize(points []Point) (Summary, bool) {
	if len(points) == 0 {
		return Summary{}, false
	}
	v := make([]float64, len(points))
	for i, p := range points {
		v[i] = p.Value
	}
	s := stats.NewSorted(v)
	return Summary{
		Count: len(v),
		Min:   floats.Min(v),
		Max:   floats.Max(v),
		Mean:  stat.Mean(v, nil),
		P75:   s.Percentile(75),
		P90:   s.Percentile(90),
		P95:   s.Percentile(95),
	}, true
}
