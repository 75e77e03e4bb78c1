package heatmap

import (
	"math/rand/v2"

	"go.uber.org/zap"

	"github.com/sells-group/coverage-cli/internal/geo"
	"github.com/sells-group/coverage-cli/internal/model"
)

// basePopulationPerPoint is the population represented by one point at the
// reference zoom of 11.
const basePopulationPerPoint = 1000.0

// maxSampleAttemptsPerPoint bounds rejection sampling for slivers whose
// bounding box is mostly outside the polygon.
const maxSampleAttemptsPerPoint = 1000

// PopulationDivisor returns the population each generated point stands for
// at zoom. Higher zoom produces more points, within a factor of 10 down and
// 2 up from zoom 11.
func PopulationDivisor(zoom float64) float64 {
	return basePopulationPerPoint / clamp(zoom/11, 0.1, 2.0)
}

// PopulationPoints scatters points uniformly inside each area in proportion
// to its population. Every point has value 1.
func PopulationPoints(areas []model.Area, zoom float64, rng *rand.Rand) []Point {
	divisor := PopulationDivisor(zoom)

	var out []Point
	for _, a := range areas {
		if a.Population == nil || *a.Population <= 0 {
			continue
		}
		n := int(*a.Population / divisor)
		if n <= 0 {
			continue
		}
		shape, ok := geo.NewShape(a.Geometry)
		if !ok {
			continue
		}
		b := shape.Bounds()
		minX, minY, maxX, maxY := b.Min(0), b.Min(1), b.Max(0), b.Max(1)

		placed := 0
		for attempts := 0; placed < n && attempts < n*maxSampleAttemptsPerPoint; attempts++ {
			x := minX + rng.Float64()*(maxX-minX)
			y := minY + rng.Float64()*(maxY-minY)
			if shape.Contains(x, y) {
				out = append(out, Point{Lat: y, Lng: x, Value: 1})
				placed++
			}
		}
		if placed < n {
			zap.L().Debug("heatmap: population sampling gave up",
				zap.String("area", a.ID),
				zap.Int("wanted", n),
				zap.Int("placed", placed),
			)
		}
	}
	return out
}
