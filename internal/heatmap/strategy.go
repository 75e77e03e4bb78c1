package heatmap

import (
	"github.com/rotisserie/eris"

	"github.com/sells-group/coverage-cli/internal/model"
)

// Kind names a heatmap type.
type Kind string

// Heatmap kinds.
const (
	KindOrderDensity           Kind = "order_density"
	KindOrderDensityOrganic    Kind = "order_density_organic"
	KindOrderDensityNonOrganic Kind = "order_density_non_organic"
	KindUserDensity            Kind = "user_density"
	KindPopulation             Kind = "population"
)

// EventKind reports whether k is generated from order events.
func (k Kind) EventKind() bool {
	switch k {
	case KindOrderDensity, KindOrderDensityOrganic, KindOrderDensityNonOrganic, KindUserDensity:
		return true
	}
	return false
}

// Point is one heatmap output sample.
type Point struct {
	Lat   float64 `json:"lat"`
	Lng   float64 `json:"lng"`
	Value float64 `json:"value"`
}

// Strategy produces heatmap points for an event kind.
type Strategy interface {
	Name() string
	Generate(kind Kind, orders []model.Order, zoom float64) ([]Point, error)
}

// selectOrders applies the kind's organic filter. Orders with an unknown
// organic flag match neither organic kind.
func selectOrders(kind Kind, orders []model.Order) ([]model.Order, error) {
	var want bool
	switch kind {
	case KindOrderDensity, KindUserDensity:
		return orders, nil
	case KindOrderDensityOrganic:
		want = true
	case KindOrderDensityNonOrganic:
		want = false
	default:
		return nil, eris.Errorf("heatmap: unsupported kind %q", kind)
	}
	out := make([]model.Order, 0, len(orders))
	for _, o := range orders {
		if o.Organic != nil && *o.Organic == want {
			out = append(out, o)
		}
	}
	return out, nil
}

// AdaptiveStrategy buckets at a zoom-dependent precision and normalizes with
// outlier filtering and a log-percentile rescale.
type AdaptiveStrategy struct {
	Method Method
}

// Name implements Strategy.
func (s AdaptiveStrategy) Name() string { return "adaptive" }

// Generate implements Strategy.
func (s AdaptiveStrategy) Generate(kind Kind, orders []model.Order, zoom float64) ([]Point, error) {
	selected, err := selectOrders(kind, orders)
	if err != nil {
		return nil, err
	}
	if len(selected) == 0 {
		return nil, nil
	}

	var cells []Cell
	if kind == KindUserDensity {
		cells = AggregateUsers(selected, zoom)
	} else {
		cells = AggregateOrders(selected, zoom)
	}
	if len(cells) == 0 {
		return nil, nil
	}

	normalized, err := Normalize(cells, s.Method)
	if err != nil {
		return nil, err
	}
	out := make([]Point, len(normalized))
	for i, n := range normalized {
		out[i] = Point{Lat: n.Lat, Lng: n.Lng, Value: n.Intensity}
	}
	return out, nil
}

// DefaultFallbackPrecision is the bucket precision of FixedPrecisionStrategy.
const DefaultFallbackPrecision = 4

// FixedPrecisionStrategy buckets at a fixed precision and min-max rescales
// raw counts (orders) or distinct users into [0, 100].
type FixedPrecisionStrategy struct {
	Precision int
}

// Name implements Strategy.
func (s FixedPrecisionStrategy) Name() string { return "fixed_precision" }

// Generate implements Strategy.
func (s FixedPrecisionStrategy) Generate(kind Kind, orders []model.Order, _ float64) ([]Point, error) {
	selected, err := selectOrders(kind, orders)
	if err != nil {
		return nil, err
	}
	if len(selected) == 0 {
		return nil, nil
	}

	precision := s.Precision
	if precision <= 0 {
		precision = DefaultFallbackPrecision
	}

	var cells []Cell
	if kind == KindUserDensity {
		cells = CountUsers(selected, precision)
	} else {
		cells = CountOrders(selected, precision)
	}
	if len(cells) == 0 {
		return nil, nil
	}

	lo, hi := cells[0].Value, cells[0].Value
	for _, c := range cells[1:] {
		lo = min(lo, c.Value)
		hi = max(hi, c.Value)
	}

	out := make([]Point, len(cells))
	for i, c := range cells {
		v := DegenerateIntensity
		if hi > lo {
			v = (c.Value - lo) / (hi - lo) * 100
		}
		out[i] = Point{Lat: c.Lat, Lng: c.Lng, Value: v}
	}
	return out, nil
}
