package store

import (
	"context"
	"fmt"
	"regexp"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/sells-group/coverage-cli/internal/model"
)

var areaCols = []string{"id", "name", "st_astext", "population", "population_density"}

func TestNewAreaStore_DefaultTable(t *testing.T) {
	s := NewAreaStore(nil, "")
	assert.Equal(t, DefaultAreaTable, s.table)
}

func TestMigrate(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec(regexp.QuoteMeta(`CREATE EXTENSION IF NOT EXISTS postgis`)).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectExec(regexp.QuoteMeta(`CREATE TABLE IF NOT EXISTS "geo"."areas"`)).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectExec(regexp.QuoteMeta(`CREATE INDEX IF NOT EXISTS "areas_geom_idx" ON "geo"."areas" USING GIST (geom)`)).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, NewAreaStore(mock, "geo.areas").Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrate_Error(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec(`CREATE EXTENSION`).WillReturnError(fmt.Errorf("permission denied"))

	err = NewAreaStore(mock, "areas").Migrate(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store: migrate areas")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAreas(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	pop := 52000.0
	rows := pgxmock.NewRows(areaCols).
		AddRow("tehran_0", "Region 1", "MULTIPOLYGON (((51 35, 52 35, 52 36, 51 36, 51 35)))", &pop, (*float64)(nil)).
		AddRow("tehran_1", "Broken", "POINT (51 35)", (*float64)(nil), (*float64)(nil)).
		AddRow("tehran_2", "Region 2", "POLYGON ((50 35, 51 35, 51 36, 50 35))", (*float64)(nil), (*float64)(nil))
	mock.ExpectQuery(regexp.QuoteMeta(`FROM "geo"."areas" WHERE city = $1 AND layer = $2 ORDER BY id`)).
		WithArgs("tehran", "districts").
		WillReturnRows(rows)

	areas, err := NewAreaStore(mock, "geo.areas").Areas(context.Background(), "tehran", "districts")
	require.NoError(t, err)
	require.Len(t, areas, 2)

	assert.Equal(t, "tehran_0", areas[0].ID)
	assert.Equal(t, "Region 1", areas[0].Name)
	assert.Equal(t, "tehran", areas[0].City)
	assert.Equal(t, "districts", areas[0].Layer)
	require.NotNil(t, areas[0].Population)
	assert.InDelta(t, 52000.0, *areas[0].Population, 1e-9)
	assert.Nil(t, areas[0].PopulationDensity)
	assert.IsType(t, &geom.MultiPolygon{}, areas[0].Geometry)

	assert.Equal(t, "tehran_2", areas[1].ID)
	assert.IsType(t, &geom.Polygon{}, areas[1].Geometry)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAreas_QueryError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`SELECT id, name`).WithArgs("tehran", "districts").
		WillReturnError(fmt.Errorf("relation does not exist"))

	_, err = NewAreaStore(mock, "").Areas(context.Background(), "tehran", "districts")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "query areas districts/tehran")
}

func TestImport(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	poly := geom.NewPolygon(geom.XY).MustSetCoords([][]geom.Coord{{{51, 35}, {52, 35}, {52, 36}, {51, 35}}})
	pop := 1200.0
	areas := []model.Area{
		{ID: "tehran_0", Name: "North", City: "tehran", Layer: "districts", Geometry: poly, Population: &pop},
		{ID: "tehran_1", Name: "Empty", City: "tehran", Layer: "districts"},
	}

	cols := []string{"id", "name", "city", "layer", "geom", "population", "population_density"}
	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE "_tmp_upsert_geo_areas"`).WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_geo_areas"}, cols).WillReturnResult(1)
	mock.ExpectExec(regexp.QuoteMeta(`ST_Multi(ST_GeomFromText("geom", 4326))`)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	n, err := NewAreaStore(mock, "geo.areas").Import(context.Background(), areas)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestImport_Nothing(t *testing.T) {
	n, err := NewAreaStore(nil, "").Import(context.Background(), []model.Area{{ID: "x"}})
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestIndexName(t *testing.T) {
	assert.Equal(t, `"marketing_areas_geom_idx"`, indexName("geo.marketing_areas"))
	assert.Equal(t, `"areas_geom_idx"`, indexName("areas"))
}
