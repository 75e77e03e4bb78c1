package heatmap

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/twpayne/go-geom"

	"github.com/sells-group/coverage-cli/internal/geo"
	"github.com/sells-group/coverage-cli/internal/model"
)

func triangleArea(pop *float64) model.Area {
	return model.Area{
		ID:         "tehran_0",
		Geometry:   geom.NewPolygon(geom.XY).MustSetCoords([][]geom.Coord{{{51.0, 35.0}, {52.0, 35.0}, {51.0, 36.0}, {51.0, 35.0}}}),
		Population: pop,
	}
}

func TestPopulationDivisor(t *testing.T) {
	assert.InDelta(t, 1000.0, PopulationDivisor(11), 1e-9)
	assert.InDelta(t, 500.0, PopulationDivisor(22), 1e-9)
	assert.InDelta(t, 500.0, PopulationDivisor(30), 1e-9)
	assert.InDelta(t, 10000.0, PopulationDivisor(0), 1e-9)
}

func TestPopulationPoints(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	areas := []model.Area{
		triangleArea(model.Float(5500)),
		triangleArea(nil),
		triangleArea(model.Float(0)),
		triangleArea(model.Float(999)),
	}

	points := PopulationPoints(areas, 11, rng)
	assert.Len(t, points, 5)
	for _, p := range points {
		assert.Equal(t, 1.0, p.Value)
		assert.True(t, geo.Contains(areas[0].Geometry, p.Lng, p.Lat))
	}

	assert.Len(t, PopulationPoints(areas[:1], 22, rand.New(rand.NewPCG(1, 2))), 11)
}

func TestPopulationPoints_Deterministic(t *testing.T) {
	areas := []model.Area{triangleArea(model.Float(3000))}
	a := PopulationPoints(areas, 11, rand.New(rand.NewPCG(7, 7)))
	b := PopulationPoints(areas, 11, rand.New(rand.NewPCG(7, 7)))
	assert.Equal(t, a, b)
}

func TestPopulationPoints_DegenerateGeometryTerminates(t *testing.T) {
	line := model.Area{
		ID:         "flat",
		Geometry:   geom.NewPolygon(geom.XY).MustSetCoords([][]geom.Coord{{{51.0, 35.0}, {52.0, 35.0}, {51.0, 35.0}}}),
		Population: model.Float(2000),
	}
	assert.Empty(t, PopulationPoints([]model.Area{line}, 11, rand.New(rand.NewPCG(1, 1))))
}
