// Package coverage computes vendor coverage over a sampling grid and keeps a
// bounded in-memory cache of computed grids.
package coverage

import (
	"math"

	"github.com/sells-group/coverage-cli/internal/config"
	"github.com/sells-group/coverage-cli/internal/model"
)

// MetersPerDegree is the fixed-latitude approximation used for both grid
// spacing and planar distance: 1 degree is about 111 km.
const MetersPerDegree = 111000.0

// DefaultCellMeters is the grid spacing used when none is given.
const DefaultCellMeters = 200.0

// StepCount returns the number of samples needed to step from lo to hi
// inclusive with the given step.
func StepCount(lo, hi, step float64) int {
	if step <= 0 || hi < lo {
		return 0
	}
	// The epsilon keeps an exact multiple of step from gaining a sample to
	// float noise.
	return int(math.Ceil((hi-lo)/step-1e-9)) + 1
}

// GenerateGrid returns a lat-major lattice of points covering the city's
// bounding box. An unknown city yields an empty grid.
func GenerateGrid(cities map[string]config.CityBounds, city string, cellMeters float64) []model.GridPoint {
	b, ok := cities[city]
	if !ok {
		return nil
	}
	if cellMeters <= 0 {
		cellMeters = DefaultCellMeters
	}
	step := cellMeters / MetersPerDegree

	lats := axis(b.MinLat, b.MaxLat, step)
	lngs := axis(b.MinLng, b.MaxLng, step)

	points := make([]model.GridPoint, 0, len(lats)*len(lngs))
	for _, lat := range lats {
		for _, lng := range lngs {
			points = append(points, model.GridPoint{Lat: lat, Lng: lng})
		}
	}
	return points
}

// axis steps from lo to hi; the final sample is pinned to hi.
func axis(lo, hi, step float64) []float64 {
	n := StepCount(lo, hi, step)
	out := make([]float64, n)
	for i := range n {
		out[i] = lo + float64(i)*step
	}
	if n > 1 {
		out[n-1] = hi
	}
	return out
}
