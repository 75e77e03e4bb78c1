package heatmap

import (
	"math"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/coverage-cli/internal/model"
	"github.com/sells-group/coverage-cli/internal/monitoring"
)

// Pipeline generates event heatmaps with a primary strategy and falls back
// to a second strategy when the primary fails.
type Pipeline struct {
	Primary  Strategy
	Fallback Strategy
	Metrics  *monitoring.Metrics
}

// NewPipeline returns the adaptive pipeline with a fixed-precision fallback.
func NewPipeline(method Method, fallbackPrecision int, metrics *monitoring.Metrics) *Pipeline {
	return &Pipeline{
		Primary:  AdaptiveStrategy{Method: method},
		Fallback: FixedPrecisionStrategy{Precision: fallbackPrecision},
		Metrics:  metrics,
	}
}

// Generate never fails: a primary error, panic or non-finite output triggers
// the fallback, and a failing fallback yields an empty heatmap. Kinds that
// are not event kinds yield an empty heatmap.
func (p *Pipeline) Generate(kind Kind, orders []model.Order, zoom float64) []Point {
	if !kind.EventKind() {
		return nil
	}
	start := time.Now()
	defer func() { p.Metrics.ObserveHeatmap(string(kind), time.Since(start)) }()

	log := zap.L().With(zap.String("kind", string(kind)), zap.Float64("zoom", zoom))

	points, err := run(p.Primary, kind, orders, zoom)
	if err == nil {
		log.Debug("heatmap: generated", zap.String("strategy", p.Primary.Name()), zap.Int("points", len(points)))
		return points
	}

	log.Warn("heatmap: primary strategy failed, using fallback",
		zap.String("strategy", p.Primary.Name()),
		zap.Error(err),
	)
	p.Metrics.HeatmapFallback(string(kind))

	if p.Fallback == nil {
		return nil
	}
	points, err = run(p.Fallback, kind, orders, zoom)
	if err != nil {
		log.Error("heatmap: fallback strategy failed", zap.String("strategy", p.Fallback.Name()), zap.Error(err))
		return nil
	}
	return points
}

// run invokes s, converting panics and non-finite output into errors.
func run(s Strategy, kind Kind, orders []model.Order, zoom float64) (points []Point, err error) {
	defer func() {
		if r := recover(); r != nil {
			points = nil
			err = eris.Errorf("heatmap: %s strategy panicked: %v", s.Name(), r)
		}
	}()

	points, err = s.Generate(kind, orders, zoom)
	if err != nil {
		return nil, err
	}
	for _, pt := range points {
		if !finite(pt.Lat) || !finite(pt.Lng) || !finite(pt.Value) {
			return nil, eris.Errorf("heatmap: %s strategy produced a non-finite point", s.Name())
		}
	}
	return points, nil
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
