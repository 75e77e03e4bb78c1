package coverage

import (
	"math"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/coverage-cli/internal/config"
	"github.com/sells-group/coverage-cli/internal/model"
	"github.com/sells-group/coverage-cli/internal/monitoring"
)

// halfResolver puts every point west of lng into area "tehran_0".
type halfResolver struct {
	lng   float64
	calls atomic.Int32
}

func (r *halfResolver) Resolve(points []model.GridPoint) []model.AreaRef {
	r.calls.Add(1)
	out := make([]model.AreaRef, len(points))
	for i, p := range points {
		if p.Lng < r.lng {
			out[i] = model.AreaRef{ID: str("tehran_0"), Name: str("West")}
		}
	}
	return out
}

func planarMeters(lat1, lng1, lat2, lng2 float64) float64 {
	dx := (lat1 - lat2) * MetersPerDegree
	dy := (lng1 - lng2) * MetersPerDegree * math.Cos(lat1*math.Pi/180)
	return math.Sqrt(dx*dx + dy*dy)
}

func TestEngine_SingleVendorTehran(t *testing.T) {
	cities := config.DefaultCities()
	e := NewEngine(EngineOptions{Cities: cities, TargetCity: "tehran"})

	req := Request{
		City:    "tehran",
		Vendors: []model.Vendor{vendor("v1", 35.70, 51.40, 2, "Restaurant", "A")},
		Radius:  model.RadiusModifier{Mode: model.RadiusPercentage, Modifier: 1, Fixed: 3},
	}
	points, err := e.CoverageGrid(req)
	require.NoError(t, err)
	require.NotEmpty(t, points)

	covered := make(map[model.GridPoint]bool, len(points))
	for _, p := range points {
		assert.Equal(t, 1, p.Coverage.TotalVendors)
		assert.LessOrEqual(t, planarMeters(p.Lat, p.Lng, 35.70, 51.40), 2000.0)
		assert.Nil(t, p.MarketingArea)
		covered[model.GridPoint{Lat: p.Lat, Lng: p.Lng}] = true
	}

	// Every grid point inside the radius is present.
	var inside int
	for _, g := range GenerateGrid(cities, "tehran", DefaultCellMeters) {
		if planarMeters(g.Lat, g.Lng, 35.70, 51.40) <= 2000 {
			inside++
			assert.True(t, covered[g], "missing %v", g)
		}
	}
	assert.Equal(t, inside, len(points))

	// Roughly pi*r^2 over the cell area; longitude cells shrink by cos(lat).
	expected := math.Pi * 2000 * 2000 / (DefaultCellMeters * DefaultCellMeters * math.Cos(35.70*math.Pi/180))
	assert.InDelta(t, expected, float64(len(points)), expected*0.1)
}

func TestEngine_CacheHitAndSingleflight(t *testing.T) {
	m := monitoring.NewMetrics(prometheus.NewRegistry())
	r := &halfResolver{lng: 51.40}
	e := NewEngine(EngineOptions{
		Cities:    config.DefaultCities(),
		Resolvers: map[string]AreaResolver{"tehran": r},
		Metrics:   m,
	})

	req := Request{
		City:    "tehran",
		Vendors: []model.Vendor{vendor("v1", 35.70, 51.40, 1, "Restaurant", "A")},
	}

	var wg sync.WaitGroup
	results := make([][]model.CoveragePoint, 8)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			pts, err := e.CoverageGrid(req)
			assert.NoError(t, err)
			results[i] = pts
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), r.calls.Load())
	for _, pts := range results {
		assert.Equal(t, results[0], pts)
	}
	assert.Equal(t, 1, e.Cache().Len())

	// An equivalent request is a hit.
	req.BusinessLines = []string{}
	_, err := e.CoverageGrid(req)
	require.NoError(t, err)
	assert.Equal(t, int32(1), r.calls.Load())
	assert.GreaterOrEqual(t, testutil.ToFloat64(m.CacheHits), 1.0)
}

func TestEngine_AreasAndTargets(t *testing.T) {
	r := &halfResolver{lng: 51.40}
	e := NewEngine(EngineOptions{
		Cities:     config.DefaultCities(),
		Resolvers:  map[string]AreaResolver{"tehran": r},
		Targets:    TargetLookup{{AreaID: "tehran_0", BusinessLine: "Restaurant"}: 2},
		TargetCity: "tehran",
	})

	points, err := e.CoverageGrid(Request{
		City:          "tehran",
		Vendors:       []model.Vendor{vendor("v1", 35.70, 51.40, 0.5, "Restaurant", "A")},
		BusinessLines: []string{"Restaurant"},
	})
	require.NoError(t, err)
	require.NotEmpty(t, points)

	var west, east int
	for _, p := range points {
		if p.Lng < 51.40 {
			west++
			require.NotNil(t, p.MarketingArea)
			assert.Equal(t, "West", *p.MarketingArea)
			require.NotNil(t, p.PerformanceRatio)
			assert.InDelta(t, 0.5, *p.PerformanceRatio, 1e-12)
		} else {
			east++
			assert.Nil(t, p.MarketingArea)
			assert.Nil(t, p.PerformanceRatio)
		}
	}
	assert.Positive(t, west)
	assert.Positive(t, east)
}

func TestEngine_TargetsInactiveForMultipleLines(t *testing.T) {
	e := NewEngine(EngineOptions{
		Cities:     config.DefaultCities(),
		Resolvers:  map[string]AreaResolver{"tehran": &halfResolver{lng: 60}},
		Targets:    TargetLookup{{AreaID: "tehran_0", BusinessLine: "Restaurant"}: 2},
		TargetCity: "tehran",
	})

	points, err := e.CoverageGrid(Request{
		City:          "tehran",
		Vendors:       []model.Vendor{vendor("v1", 35.70, 51.40, 0.5, "Restaurant", "A")},
		BusinessLines: []string{"Restaurant", "Cafe"},
	})
	require.NoError(t, err)
	for _, p := range points {
		assert.NotNil(t, p.MarketingArea)
		assert.Nil(t, p.PerformanceRatio)
	}
}

func TestEngine_UnknownCityAndNoVendors(t *testing.T) {
	e := NewEngine(EngineOptions{Cities: config.DefaultCities()})

	points, err := e.CoverageGrid(Request{City: "atlantis", Vendors: []model.Vendor{vendor("v1", 0, 0, 1, "", "")}})
	require.NoError(t, err)
	assert.Empty(t, points)

	points, err = e.CoverageGrid(Request{City: "tehran"})
	require.NoError(t, err)
	assert.Empty(t, points)
}

func TestEngine_FingerprintError(t *testing.T) {
	e := NewEngine(EngineOptions{Cities: config.DefaultCities()})
	_, err := e.CoverageGrid(Request{City: "tehran", Radius: model.RadiusModifier{Modifier: math.NaN()}})
	assert.Error(t, err)
}
