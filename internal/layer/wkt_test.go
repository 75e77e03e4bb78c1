package layer

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/sells-group/coverage-cli/internal/geo"
)

const polygonsCSV = `WKT,name,Pop,PopDensity
"POLYGON ((51.0 35.0, 51.5 35.0, 51.5 36.0, 51.0 36.0, 51.0 35.0))", North ,12000,85.5
,Nowhere,10,
"POINT (51.2 35.2)",Dot,,
"MULTIPOLYGON (((51.5 35.0, 52.0 35.0, 52.0 36.0, 51.5 36.0, 51.5 35.0)))",,,
not wkt,Broken,,
`

func TestLoadWKTCSV(t *testing.T) {
	areas, err := LoadWKTCSV(context.Background(), strings.NewReader(polygonsCSV), "tehran", "tapsifood_marketing_areas")
	require.NoError(t, err)
	require.Len(t, areas, 2)

	north := areas[0]
	assert.Equal(t, "tehran_0", north.ID)
	assert.Equal(t, "North", north.Name)
	assert.Equal(t, "tehran", north.City)
	assert.Equal(t, "tapsifood_marketing_areas", north.Layer)
	assert.InDelta(t, 12000.0, *north.Population, 1e-9)
	assert.InDelta(t, 85.5, *north.PopulationDensity, 1e-9)
	assert.IsType(t, &geom.Polygon{}, north.Geometry)
	assert.True(t, geo.Contains(north.Geometry, 51.2, 35.5))

	unnamed := areas[1]
	assert.Equal(t, "tehran_3", unnamed.ID, "IDs keep the source row")
	assert.Equal(t, "tehran_area_4", unnamed.Name)
	assert.Nil(t, unnamed.Population)
	assert.IsType(t, &geom.MultiPolygon{}, unnamed.Geometry)
}

func TestLoadWKTCSV_NoWKTColumn(t *testing.T) {
	_, err := LoadWKTCSV(context.Background(), strings.NewReader("name\nx\n"), "tehran", "l")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no WKT column")
}

func TestParseWKT(t *testing.T) {
	_, err := ParseWKT("POLYGON EMPTY")
	assert.Error(t, err)
	_, err = ParseWKT("LINESTRING (0 0, 1 1)")
	assert.Error(t, err)
	g, err := ParseWKT("POLYGON ((0 0, 1 0, 1 1, 0 0))")
	require.NoError(t, err)
	assert.NotNil(t, g)
}
