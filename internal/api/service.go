package api

import (
	"math/rand/v2"
	"slices"
	"strconv"
	"time"

	"github.com/twpayne/go-geom/encoding/geojson"
	"go.uber.org/zap"

	"github.com/sells-group/coverage-cli/internal/coverage"
	"github.com/sells-group/coverage-cli/internal/dataset"
	"github.com/sells-group/coverage-cli/internal/geo"
	"github.com/sells-group/coverage-cli/internal/heatmap"
	"github.com/sells-group/coverage-cli/internal/model"
	"github.com/sells-group/coverage-cli/internal/monitoring"
)

// Options configures a Service.
type Options struct {
	Snapshot   *dataset.Snapshot
	Engine     *coverage.Engine
	Heatmaps   *heatmap.Pipeline
	CityIDs    map[string]string // city_id -> city name
	CellMeters float64
	Zoom       float64 // default zoom level
	Metrics    *monitoring.Metrics
}

// Service answers map queries over a loaded snapshot. It is safe for
// concurrent use.
type Service struct {
	snap       *dataset.Snapshot
	engine     *coverage.Engine
	heatmaps   *heatmap.Pipeline
	cityIDs    map[string]string
	cellMeters float64
	zoom       float64
	metrics    *monitoring.Metrics
	newRand    func() *rand.Rand
}

// NewService creates a Service.
func NewService(opts Options) *Service {
	zoom := opts.Zoom
	if zoom <= 0 {
		zoom = 11
	}
	return &Service{
		snap:       opts.Snapshot,
		engine:     opts.Engine,
		heatmaps:   opts.Heatmaps,
		cityIDs:    opts.CityIDs,
		cellMeters: opts.CellMeters,
		zoom:       zoom,
		metrics:    opts.Metrics,
		newRand: func() *rand.Rand {
			return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
		},
	}
}

// DefaultZoom is the zoom level used when a query omits one.
func (s *Service) DefaultZoom() float64 { return s.zoom }

// City is an entry of the city catalog.
type City struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// InitialData is the catalog the map UI loads once.
type InitialData struct {
	Cities         []City                         `json:"cities"`
	BusinessLines  []string                       `json:"business_lines"`
	MarketingAreas map[string][]string            `json:"marketing_areas_by_city"`
	Layers         map[string]map[string][]string `json:"layers"`
	VendorStatuses []int                          `json:"vendor_statuses"`
	VendorGrades   []string                       `json:"vendor_grades"`
}

// InitialData returns the filter catalog: cities, business lines, area names
// per layer and city, vendor statuses and grades.
func (s *Service) InitialData() InitialData {
	out := InitialData{
		Cities:         make([]City, 0, len(s.cityIDs)),
		BusinessLines:  orEmpty(s.snap.BusinessLines()),
		MarketingAreas: make(map[string][]string),
		Layers:         make(map[string]map[string][]string),
		VendorStatuses: orEmpty(s.snap.StatusIDs()),
		VendorGrades:   orEmpty(s.snap.Grades()),
	}
	for id, name := range s.cityIDs {
		out.Cities = append(out.Cities, City{ID: id, Name: name})
	}
	out.Cities = sortedCities(out.Cities)

	for k := range s.snap.Areas {
		names := orEmpty(s.snap.AreaNames(k.Layer, k.City))
		if k.Layer == s.snap.MarketingLayer {
			out.MarketingAreas[k.City] = names
			continue
		}
		if out.Layers[k.Layer] == nil {
			out.Layers[k.Layer] = make(map[string][]string)
		}
		out.Layers[k.Layer][k.City] = names
	}
	return out
}

// Vendors returns the vendors selected by q with effective radii applied.
func (s *Service) Vendors(q Query) []model.Vendor {
	return orEmpty(s.snap.FilterVendors(q.VendorFilter()))
}

// CoverageGrid returns the covered grid points for the vendors selected by q.
func (s *Service) CoverageGrid(q Query) ([]model.CoveragePoint, error) {
	return s.coverageGrid(q, s.Vendors(q))
}

func (s *Service) coverageGrid(q Query, vendors []model.Vendor) ([]model.CoveragePoint, error) {
	points, err := s.engine.CoverageGrid(coverage.Request{
		City:          q.City,
		Vendors:       vendors,
		Radius:        q.Radius,
		BusinessLines: q.BusinessLines,
		CellMeters:    s.cellMeters,
	})
	if err != nil {
		return nil, err
	}
	return orEmpty(points), nil
}

// Heatmap is a generated heatmap with its value statistics.
type Heatmap struct {
	Kind    string           `json:"heatmap_type"`
	Zoom    float64          `json:"zoom_level"`
	Points  []heatmap.Point  `json:"heatmap_data"`
	Summary *heatmap.Summary `json:"summary,omitempty"`
}

// Heatmap generates the heatmap of q.HeatmapKind. Event kinds use the
// orders selected by q; the population kind scatters points over the
// populated areas of the displayed layer. Unknown kinds are empty.
func (s *Service) Heatmap(q Query) Heatmap {
	filtered, _ := s.snap.FilterOrders(q.OrderFilter())
	return s.heatmap(q, filtered)
}

func (s *Service) heatmap(q Query, orders []model.Order) Heatmap {
	out := Heatmap{Kind: q.HeatmapKind, Zoom: q.Zoom}

	kind := heatmap.Kind(q.HeatmapKind)
	switch {
	case kind.EventKind():
		out.Points = s.heatmaps.Generate(kind, orders, q.Zoom)
	case kind == heatmap.KindPopulation:
		out.Points = s.populationHeatmap(q)
	}

	out.Points = orEmpty(out.Points)
	if sum, ok := heatmap.Summarize(out.Points); ok {
		out.Summary = &sum
	}
	return out
}

func (s *Service) populationHeatmap(q Query) []heatmap.Point {
	start := time.Now()
	defer func() { s.metrics.ObserveHeatmap(string(heatmap.KindPopulation), time.Since(start)) }()

	var areas []model.Area
	for _, layer := range s.displayLayers(q) {
		areas = s.snap.Layer(layer, q.City)
		if hasPopulation(areas) {
			break
		}
	}
	areas = byName(areas, q.AreaNames)
	return heatmap.PopulationPoints(areas, q.Zoom, s.newRand())
}

// Polygons returns the displayed layer as a GeoJSON feature collection. Layer
// displays carry per-area vendor and user statistics; the coverage-grid
// display carries the plain marketing areas.
func (s *Service) Polygons(q Query) *geojson.FeatureCollection {
	vendors := s.Vendors(q)
	filtered, cityAll := s.snap.FilterOrders(q.OrderFilter())
	return s.polygons(q, vendors, filtered, cityAll)
}

func (s *Service) polygons(q Query, vendors []model.Vendor, filtered, cityAll []model.Order) *geojson.FeatureCollection {
	fc := &geojson.FeatureCollection{Features: []*geojson.Feature{}}

	if q.AreaDisplay == DisplayCoverageGrid {
		for _, a := range byName(s.snap.Layer(s.snap.MarketingLayer, q.City), q.AreaNames) {
			fc.Features = append(fc.Features, areaFeature(a))
		}
		return fc
	}

	for _, layer := range s.displayLayers(q) {
		r := s.snap.Resolver(layer, q.City)
		if r == nil {
			continue
		}
		for _, st := range geo.Enrich(r, vendors, filtered, cityAll) {
			if len(q.AreaNames) > 0 && !slices.Contains(q.AreaNames, st.Name) {
				continue
			}
			fc.Features = append(fc.Features, statsFeature(st))
		}
	}
	return fc
}

// displayLayers returns the layers q.AreaDisplay names.
func (s *Service) displayLayers(q Query) []string {
	switch q.AreaDisplay {
	case "", DisplayNone, DisplayCoverageGrid:
		return nil
	case DisplayAllDistricts:
		var out []string
		for _, name := range s.snap.LayerNames() {
			if name != s.snap.MarketingLayer && s.snap.Resolver(name, q.City) != nil {
				out = append(out, name)
			}
		}
		return out
	default:
		return []string{q.AreaDisplay}
	}
}

// MapData is the combined response of one map refresh.
type MapData struct {
	Vendors        []model.Vendor             `json:"vendors"`
	HeatmapData    []heatmap.Point            `json:"heatmap_data"`
	HeatmapSummary *heatmap.Summary           `json:"heatmap_summary,omitempty"`
	Polygons       *geojson.FeatureCollection `json:"polygons"`
	CoverageGrid   []model.CoveragePoint      `json:"coverage_grid"`
	ProcessingTime float64                    `json:"processing_time"`
	Zoom           float64                    `json:"zoom_level"`
	HeatmapType    string                     `json:"heatmap_type"`
}

// MapData answers a full map refresh: filtered vendors, the requested
// heatmap, the displayed polygons, and the coverage grid when the display
// is the coverage grid.
func (s *Service) MapData(q Query) (*MapData, error) {
	start := time.Now()

	vendors := s.Vendors(q)
	filtered, cityAll := s.snap.FilterOrders(q.OrderFilter())

	hm := s.heatmap(q, filtered)
	out := &MapData{
		Vendors:        vendors,
		HeatmapData:    hm.Points,
		HeatmapSummary: hm.Summary,
		Polygons:       s.polygons(q, vendors, filtered, cityAll),
		CoverageGrid:   []model.CoveragePoint{},
		Zoom:           q.Zoom,
		HeatmapType:    q.HeatmapKind,
	}

	if q.AreaDisplay == DisplayCoverageGrid {
		grid, err := s.coverageGrid(q, vendors)
		if err != nil {
			return nil, err
		}
		out.CoverageGrid = grid
	}

	out.ProcessingTime = time.Since(start).Seconds()
	zap.L().Debug("api: map data",
		zap.String("city", q.City),
		zap.Int("vendors", len(out.Vendors)),
		zap.Int("heatmap_points", len(out.HeatmapData)),
		zap.Int("polygons", len(out.Polygons.Features)),
		zap.Int("coverage_points", len(out.CoverageGrid)),
		zap.Float64("seconds", out.ProcessingTime),
	)
	return out, nil
}

func areaFeature(a model.Area) *geojson.Feature {
	return &geojson.Feature{
		ID:       a.ID,
		Geometry: a.Geometry,
		Properties: map[string]any{
			"area_id":            a.ID,
			"name":               a.Name,
			"city":               a.City,
			"layer":              a.Layer,
			"population":         model.FiniteOrNil(a.Population),
			"population_density": model.FiniteOrNil(a.PopulationDensity),
		},
	}
}

func statsFeature(st geo.AreaStats) *geojson.Feature {
	f := areaFeature(st.Area)
	f.Properties["vendor_count"] = st.VendorCount
	f.Properties["grade_counts"] = st.GradeCounts
	f.Properties["unique_user_count"] = st.UniqueUserCount
	f.Properties["total_unique_user_count"] = st.TotalUniqueUserCount
	f.Properties["vendor_per_10k_pop"] = model.FiniteOrNil(st.VendorPer10kPop)
	return f
}

func byName(areas []model.Area, names []string) []model.Area {
	if len(names) == 0 {
		return areas
	}
	var out []model.Area
	for _, a := range areas {
		if slices.Contains(names, a.Name) {
			out = append(out, a)
		}
	}
	return out
}

func hasPopulation(areas []model.Area) bool {
	return slices.ContainsFunc(areas, func(a model.Area) bool { return a.Population != nil })
}

func sortedCities(cities []City) []City {
	slices.SortFunc(cities, func(a, b City) int { return compareIDs(a.ID, b.ID) })
	return cities
}

// compareIDs orders numeric IDs numerically and everything else lexically
// after them.
func compareIDs(a, b string) int {
	na, errA := strconv.Atoi(a)
	nb, errB := strconv.Atoi(b)
	switch {
	case errA == nil && errB == nil:
		return na - nb
	case errA == nil:
		return -1
	case errB == nil:
		return 1
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func orEmpty[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
