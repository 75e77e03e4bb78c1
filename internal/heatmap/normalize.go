package heatmap

import (
	"math"

	"github.com/rotisserie/eris"
	"gonum.org/v1/gonum/stat"

	"github.com/sells-group/coverage-cli/internal/stats"
)

// Method selects the outlier filter applied before rescaling.
type Method string

// Outlier filters.
const (
	MethodRobust Method = "robust"
	MethodZScore Method = "zscore"
)

// DegenerateIntensity is assigned to every cell when the value spread is zero.
const DegenerateIntensity = 50.0

const (
	iqrFactor       = 1.5
	zScoreThreshold = 3.0
)

// Normalized is a cell with its intensity in [0, 100]. Intensity is rescaled
// from ln(1+Value); RawIntensity is rescaled from Value directly.
type Normalized struct {
	Cell
	Intensity    float64 `json:"intensity"`
	RawIntensity float64 `json:"raw_intensity"`
}

// ParseMethod validates a method name; empty selects MethodRobust.
func ParseMethod(s string) (Method, error) {
	switch Method(s) {
	case "", MethodRobust:
		return MethodRobust, nil
	case MethodZScore:
		return MethodZScore, nil
	}
	return "", eris.Errorf("heatmap: unknown normalization method %q", s)
}

// Normalize drops non-positive and non-finite values, filters outliers with
// method, then rescales ln(1+v) by its 5th-95th percentile range into
// [0, 100]. Output order follows input order.
func Normalize(cells []Cell, method Method) ([]Normalized, error) {
	kept := make([]Cell, 0, len(cells))
	for _, c := range cells {
		if c.Value > 0 && !math.IsInf(c.Value, 0) {
			kept = append(kept, c)
		}
	}
	if len(kept) == 0 {
		return nil, nil
	}

	switch method {
	case MethodRobust, "":
		kept = filterIQR(kept)
	case MethodZScore:
		kept = filterZScore(kept)
	default:
		return nil, eris.Errorf("heatmap: unknown normalization method %q", method)
	}
	if len(kept) == 0 {
		return nil, nil
	}

	raw := make([]float64, len(kept))
	logs := make([]float64, len(kept))
	for i, c := range kept {
		raw[i] = c.Value
		logs[i] = math.Log1p(c.Value)
	}
	logScale := newScaler(logs)
	rawScale := newScaler(raw)

	out := make([]Normalized, len(kept))
	for i, c := range kept {
		out[i] = Normalized{
			Cell:         c,
			Intensity:    logScale.scale(logs[i]),
			RawIntensity: rawScale.scale(raw[i]),
		}
	}
	return out, nil
}

func values(cells []Cell) []float64 {
	out := make([]float64, len(cells))
	for i, c := range cells {
		out[i] = c.Value
	}
	return out
}

// filterIQR keeps values within [Q1-1.5*IQR, Q3+1.5*IQR], tightened to the
// 1st-99th percentile range. Both bounds are inclusive.
func filterIQR(cells []Cell) []Cell {
	s := stats.NewSorted(values(cells))
	q1, q3 := s.Percentile(25), s.Percentile(75)
	iqr := q3 - q1
	lower := math.Max(q1-iqrFactor*iqr, s.Percentile(1))
	upper := math.Min(q3+iqrFactor*iqr, s.Percentile(99))

	out := cells[:0]
	for _, c := range cells {
		if c.Value >= lower && c.Value <= upper {
			out = append(out, c)
		}
	}
	return out
}

// filterZScore drops values at least three population standard deviations
// from the mean. A zero deviation keeps everything.
func filterZScore(cells []Cell) []Cell {
	mean, std := stat.PopMeanStdDev(values(cells), nil)
	if std == 0 || math.IsNaN(std) {
		return cells
	}
	out := cells[:0]
	for _, c := range cells {
		if math.Abs(c.Value-mean)/std < zScoreThreshold {
			out = append(out, c)
		}
	}
	return out
}

// scaler maps values linearly from the sample's [p5, p95] onto [0, 100].
type scaler struct {
	lo, hi float64
}

func newScaler(v []float64) scaler {
	s := stats.NewSorted(v)
	return scaler{lo: s.Percentile(5), hi: s.Percentile(95)}
}

func (s scaler) scale(v float64) float64 {
	if !(s.hi > s.lo) {
		return DegenerateIntensity
	}
	return clamp((v-s.lo)/(s.hi-s.lo)*100, 0, 100)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
