package heatmap

import (
	"math"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/coverage-cli/internal/model"
	"github.com/sells-group/coverage-cli/internal/monitoring"
)

type stubStrategy struct {
	points []Point
	err    error
	panics bool
	calls  int
}

func (s *stubStrategy) Name() string { return "stub" }

func (s *stubStrategy) Generate(Kind, []model.Order, float64) ([]Point, error) {
	s.calls++
	if s.panics {
		panic("boom")
	}
	return s.points, s.err
}

func organic(lat, lng float64, v *bool) model.Order {
	o := at(lat, lng)
	o.Organic = v
	return o
}

func TestPipeline_TenOrdersOneCell(t *testing.T) {
	var orders []model.Order
	for i := range 10 {
		orders = append(orders, at(35.7001+float64(i)*0.0001, 51.4001))
	}

	p := NewPipeline(MethodRobust, DefaultFallbackPrecision, nil)
	points := p.Generate(KindOrderDensity, orders, 11)
	require.Len(t, points, 1)
	assert.Equal(t, 50.0, points[0].Value)
	assert.Equal(t, 35.70, points[0].Lat)
	assert.Equal(t, 51.40, points[0].Lng)
}

func TestPipeline_EmptyInputs(t *testing.T) {
	p := NewPipeline(MethodRobust, 4, nil)
	assert.Empty(t, p.Generate(KindOrderDensity, nil, 11))
	assert.Empty(t, p.Generate(KindUserDensity, []model.Order{{UserID: "u1"}}, 11))
	assert.Empty(t, p.Generate(KindPopulation, []model.Order{at(1, 1)}, 11))
	assert.Empty(t, p.Generate(Kind("bogus"), []model.Order{at(1, 1)}, 11))
}

func TestPipeline_OrganicFilters(t *testing.T) {
	orders := []model.Order{
		organic(35.70, 51.40, model.Bool(true)),
		organic(35.80, 51.50, model.Bool(false)),
		organic(35.90, 51.60, nil),
	}
	p := NewPipeline(MethodRobust, 4, nil)

	got := p.Generate(KindOrderDensityOrganic, orders, 11)
	require.Len(t, got, 1)
	assert.Equal(t, 35.70, got[0].Lat)

	got = p.Generate(KindOrderDensityNonOrganic, orders, 11)
	require.Len(t, got, 1)
	assert.Equal(t, 35.80, got[0].Lat)

	assert.Len(t, p.Generate(KindOrderDensity, orders, 11), 3)
}

func TestPipeline_Fallback(t *testing.T) {
	fallbackPoints := []Point{{Lat: 1, Lng: 2, Value: 50}}

	tests := []struct {
		name    string
		primary *stubStrategy
	}{
		{name: "error", primary: &stubStrategy{err: eris.New("broken")}},
		{name: "panic", primary: &stubStrategy{panics: true}},
		{name: "nan", primary: &stubStrategy{points: []Point{{Lat: 1, Lng: 1, Value: math.NaN()}}}},
		{name: "inf", primary: &stubStrategy{points: []Point{{Lat: math.Inf(1), Lng: 1, Value: 1}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := monitoring.NewMetrics(prometheus.NewRegistry())
			fallback := &stubStrategy{points: fallbackPoints}
			p := &Pipeline{Primary: tt.primary, Fallback: fallback, Metrics: m}

			got := p.Generate(KindOrderDensity, []model.Order{at(1, 1)}, 11)
			assert.Equal(t, fallbackPoints, got)
			assert.Equal(t, 1, fallback.calls)
			assert.Equal(t, 1.0, testutil.ToFloat64(m.HeatmapFallbacks.WithLabelValues("order_density")))
		})
	}
}

func TestPipeline_PrimarySuccessSkipsFallback(t *testing.T) {
	primary := &stubStrategy{points: []Point{{Lat: 1, Lng: 1, Value: 10}}}
	fallback := &stubStrategy{}
	p := &Pipeline{Primary: primary, Fallback: fallback}

	assert.Len(t, p.Generate(KindUserDensity, nil, 11), 1)
	assert.Equal(t, 0, fallback.calls)
}

func TestPipeline_FallbackFailsIsEmpty(t *testing.T) {
	p := &Pipeline{
		Primary:  &stubStrategy{err: eris.New("primary")},
		Fallback: &stubStrategy{panics: true},
	}
	assert.Empty(t, p.Generate(KindOrderDensity, []model.Order{at(1, 1)}, 11))

	p.Fallback = nil
	assert.Empty(t, p.Generate(KindOrderDensity, []model.Order{at(1, 1)}, 11))
}

func TestFixedPrecisionStrategy_MinMax(t *testing.T) {
	orders := []model.Order{
		at(35.70001, 51.40001),
		at(35.71001, 51.40001), at(35.71001, 51.40001),
		at(35.72001, 51.40001), at(35.72001, 51.40001), at(35.72001, 51.40001),
	}
	got, err := FixedPrecisionStrategy{}.Generate(KindOrderDensity, orders, 11)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, 0.0, got[0].Value)
	assert.Equal(t, 50.0, got[1].Value)
	assert.Equal(t, 100.0, got[2].Value)
	assert.Equal(t, 35.7, got[0].Lat)
}

func TestFixedPrecisionStrategy_UsersEqualIsMidpoint(t *testing.T) {
	orders := []model.Order{
		user(35.70001, 51.40001, "u1"),
		user(35.71001, 51.40001, "u2"),
	}
	got, err := FixedPrecisionStrategy{Precision: 4}.Generate(KindUserDensity, orders, 11)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 50.0, got[0].Value)
	assert.Equal(t, 50.0, got[1].Value)
}

func TestAdaptiveStrategy_UnknownKind(t *testing.T) {
	_, err := AdaptiveStrategy{}.Generate(KindPopulation, []model.Order{at(1, 1)}, 11)
	assert.Error(t, err)
}
