package coverage

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/coverage-cli/internal/model"
)

func str(s string) *string { return &s }

func tehranAreas() []model.Area {
	return []model.Area{
		{ID: "tehran_0", Name: "Vanak", City: "tehran"},
		{ID: "tehran_1", Name: " Tajrish ", City: "tehran"},
	}
}

func TestBuildTargetLookup(t *testing.T) {
	rows := []model.TargetRow{
		{MarketingArea: "Vanak", Values: map[string]*float64{"Restaurant": model.Float(4), "Cafe": nil}},
		{MarketingArea: "Tajrish ", Values: map[string]*float64{"Restaurant": model.Float(0)}},
		{MarketingArea: "Nowhere", Values: map[string]*float64{"Restaurant": model.Float(9)}},
		{MarketingArea: "Vanak", Values: map[string]*float64{"Grocery": model.Float(math.Inf(1)), "Pharmacy": model.Float(math.NaN())}},
	}

	lookup := BuildTargetLookup(rows, tehranAreas())
	assert.Len(t, lookup, 2)

	v, ok := lookup.Target("tehran_0", "Restaurant")
	assert.True(t, ok)
	assert.Equal(t, 4.0, v)

	_, ok = lookup.Target("tehran_0", "Cafe")
	assert.False(t, ok)
	_, ok = lookup.Target("tehran_0", "Grocery")
	assert.False(t, ok, "non-finite targets are dropped")

	v, ok = lookup.Target("tehran_1", "Restaurant")
	assert.True(t, ok)
	assert.Equal(t, 0.0, v)
}

func TestTargetLine(t *testing.T) {
	lookup := TargetLookup{{AreaID: "tehran_0", BusinessLine: "Restaurant"}: 4}

	tests := []struct {
		name   string
		city   string
		lines  []string
		lookup TargetLookup
		want   bool
	}{
		{name: "active", city: "tehran", lines: []string{"Restaurant"}, lookup: lookup, want: true},
		{name: "other city", city: "shiraz", lines: []string{"Restaurant"}, lookup: lookup},
		{name: "no line", city: "tehran", lookup: lookup},
		{name: "two lines", city: "tehran", lines: []string{"Restaurant", "Cafe"}, lookup: lookup},
		{name: "empty lookup", city: "tehran", lines: []string{"Restaurant"}, lookup: TargetLookup{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			line, ok := TargetLine(tt.city, "tehran", tt.lines, tt.lookup)
			assert.Equal(t, tt.want, ok)
			if tt.want {
				assert.Equal(t, "Restaurant", line)
			}
		})
	}
}

func TestCompareTargets(t *testing.T) {
	lookup := TargetLookup{
		{AreaID: "tehran_0", BusinessLine: "Restaurant"}: 4,
		{AreaID: "tehran_1", BusinessLine: "Restaurant"}: 0,
	}
	sample := func(n int) model.CoverageSample {
		return model.CoverageSample{TotalVendors: n, ByBusinessLine: map[string]int{"Restaurant": n}}
	}

	points := []model.CoveragePoint{
		{Coverage: sample(2), AreaID: str("tehran_0")},
		{Coverage: sample(3), AreaID: str("tehran_1")},
		{Coverage: sample(1), AreaID: str("tehran_9")},
		{Coverage: sample(1)},
	}
	CompareTargets(points, "Restaurant", lookup)

	require.NotNil(t, points[0].PerformanceRatio)
	assert.Equal(t, "Restaurant", *points[0].TargetBusinessLine)
	assert.Equal(t, 4.0, *points[0].TargetValue)
	assert.Equal(t, 2, *points[0].ActualValue)
	assert.InDelta(t, 0.5, *points[0].PerformanceRatio, 1e-12)

	require.NotNil(t, points[1].PerformanceRatio)
	assert.Equal(t, ZeroTargetRatio, *points[1].PerformanceRatio)
	assert.Equal(t, 3, *points[1].ActualValue)

	assert.Nil(t, points[2].PerformanceRatio)
	assert.Nil(t, points[2].TargetValue)
	assert.Nil(t, points[3].PerformanceRatio)
}

func TestCompareTargets_MissingLineCountsZero(t *testing.T) {
	lookup := TargetLookup{{AreaID: "tehran_0", BusinessLine: "Cafe"}: 2}
	points := []model.CoveragePoint{{
		Coverage: model.CoverageSample{TotalVendors: 1, ByBusinessLine: map[string]int{"Restaurant": 1}},
		AreaID:   str("tehran_0"),
	}}
	CompareTargets(points, "Cafe", lookup)

	require.NotNil(t, points[0].ActualValue)
	assert.Equal(t, 0, *points[0].ActualValue)
	assert.Equal(t, 0.0, *points[0].PerformanceRatio)
}

func TestCompareTargets_InfiniteTargetOmitsValue(t *testing.T) {
	lookup := TargetLookup{{AreaID: "tehran_0", BusinessLine: "Restaurant"}: math.Inf(1)}
	points := []model.CoveragePoint{{
		Coverage: model.CoverageSample{TotalVendors: 2, ByBusinessLine: map[string]int{"Restaurant": 2}},
		AreaID:   str("tehran_0"),
	}}
	CompareTargets(points, "Restaurant", lookup)

	assert.Nil(t, points[0].TargetValue)
	require.NotNil(t, points[0].PerformanceRatio)
	assert.Equal(t, 0.0, *points[0].PerformanceRatio)
}
