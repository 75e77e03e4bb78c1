package coverage

import (
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/sells-group/coverage-cli/internal/config"
	"github.com/sells-group/coverage-cli/internal/model"
	"github.com/sells-group/coverage-cli/internal/monitoring"
)

// AreaResolver maps points to the area containing each one.
type AreaResolver interface {
	Resolve(points []model.GridPoint) []model.AreaRef
}

// Request is everything that determines a coverage grid. Vendors is the
// request's filtered working set with effective radii already applied.
type Request struct {
	City          string
	Vendors       []model.Vendor
	Radius        model.RadiusModifier
	BusinessLines []string
	CellMeters    float64
}

// EngineOptions configures an Engine.
type EngineOptions struct {
	Cities     map[string]config.CityBounds
	Resolvers  map[string]AreaResolver // keyed by city
	Targets    TargetLookup
	TargetCity string
	BatchSize  int
	CacheSize  int
	Metrics    *monitoring.Metrics
}

// Engine computes coverage grids and memoizes them by request fingerprint.
type Engine struct {
	cities     map[string]config.CityBounds
	resolvers  map[string]AreaResolver
	targets    TargetLookup
	targetCity string
	calc       *Calculator
	cache      *Cache
	group      singleflight.Group
	metrics    *monitoring.Metrics
}

// NewEngine creates an Engine.
func NewEngine(opts EngineOptions) *Engine {
	return &Engine{
		cities:     opts.Cities,
		resolvers:  opts.Resolvers,
		targets:    opts.Targets,
		targetCity: opts.TargetCity,
		calc:       &Calculator{BatchSize: opts.BatchSize, Metrics: opts.Metrics},
		cache:      NewCache(opts.CacheSize, opts.Metrics),
		metrics:    opts.Metrics,
	}
}

// Cache exposes the engine's grid cache.
func (e *Engine) Cache() *Cache { return e.cache }

// CoverageGrid returns the covered points of the request's grid, with area
// names and, when applicable, target comparison fields. Points no vendor
// covers are omitted. Concurrent identical requests share one computation.
func (e *Engine) CoverageGrid(req Request) ([]model.CoveragePoint, error) {
	key, err := Fingerprint(req)
	if err != nil {
		return nil, err
	}
	if points, ok := e.cache.Get(key); ok {
		return points, nil
	}

	v, err, _ := e.group.Do(key, func() (any, error) {
		if points, ok := e.cache.peek(key); ok {
			return points, nil
		}
		points := e.compute(req)
		e.cache.Put(key, points)
		return points, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]model.CoveragePoint), nil
}

func (e *Engine) compute(req Request) []model.CoveragePoint {
	start := time.Now()
	log := zap.L().With(zap.String("city", req.City))

	grid := GenerateGrid(e.cities, req.City, req.CellMeters)
	samples := e.calc.Calculate(grid, req.Vendors)

	points := make([]model.CoveragePoint, 0)
	covered := make([]model.GridPoint, 0)
	for _, s := range samples {
		if s.TotalVendors == 0 {
			continue
		}
		points = append(points, model.CoveragePoint{Lat: s.Lat, Lng: s.Lng, Coverage: s})
		covered = append(covered, model.GridPoint{Lat: s.Lat, Lng: s.Lng})
	}

	if r := e.resolvers[req.City]; r != nil && len(covered) > 0 {
		refs := r.Resolve(covered)
		for i := range points {
			if i < len(refs) {
				points[i].AreaID = refs[i].ID
				points[i].MarketingArea = refs[i].Name
			}
		}
	}

	if line, ok := TargetLine(req.City, e.targetCity, req.BusinessLines, e.targets); ok {
		log.Debug("coverage: comparing against targets", zap.String("business_line", line))
		CompareTargets(points, line, e.targets)
	}

	e.metrics.ObserveCoverage(time.Since(start), len(points))
	log.Debug("coverage: computed grid",
		zap.Int("grid_points", len(grid)),
		zap.Int("vendors", len(req.Vendors)),
		zap.Int("covered_points", len(points)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return points
}
