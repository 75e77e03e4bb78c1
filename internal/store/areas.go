// Package store persists polygon layers in PostGIS.
package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom/encoding/wkt"
	"go.uber.org/zap"

	"github.com/sells-group/coverage-cli/internal/db"
	"github.com/sells-group/coverage-cli/internal/layer"
	"github.com/sells-group/coverage-cli/internal/model"
)

// DefaultAreaTable is used when no table is configured.
const DefaultAreaTable = "geo.marketing_areas"

// AreaStore reads and writes areas in a PostGIS table keyed by
// (layer, city, id).
type AreaStore struct {
	pool  db.Pool
	table string
}

// NewAreaStore creates an AreaStore over table, which may be schema-qualified.
func NewAreaStore(pool db.Pool, table string) *AreaStore {
	if table == "" {
		table = DefaultAreaTable
	}
	return &AreaStore{pool: pool, table: table}
}

// Migrate creates the area table and its spatial index when missing.
func (s *AreaStore) Migrate(ctx context.Context) error {
	table := quoted(s.table)
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS postgis`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id                 TEXT NOT NULL,
	name               TEXT NOT NULL,
	city               TEXT NOT NULL,
	layer              TEXT NOT NULL,
	geom               geometry(MultiPolygon, 4326) NOT NULL,
	population         DOUBLE PRECISION,
	population_density DOUBLE PRECISION,
	PRIMARY KEY (layer, city, id)
)`, table),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s USING GIST (geom)`, indexName(s.table), table),
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return eris.Wrapf(err, "store: migrate %s", s.table)
		}
	}
	return nil
}

// Areas returns the areas of one layer and city ordered by id. Rows whose
// geometry cannot be decoded are skipped.
func (s *AreaStore) Areas(ctx context.Context, city, layerName string) ([]model.Area, error) {
	query := fmt.Sprintf(`SELECT id, name, ST_AsText(geom), population, population_density
FROM %s WHERE city = $1 AND layer = $2 ORDER BY id`, quoted(s.table))

	rows, err := s.pool.Query(ctx, query, city, layerName)
	if err != nil {
		return nil, eris.Wrapf(err, "store: query areas %s/%s", layerName, city)
	}
	defer rows.Close()

	var (
		areas   []model.Area
		skipped int
	)
	for rows.Next() {
		var (
			a       model.Area
			geomWKT string
		)
		if err := rows.Scan(&a.ID, &a.Name, &geomWKT, &a.Population, &a.PopulationDensity); err != nil {
			return nil, eris.Wrap(err, "store: scan area")
		}
		g, err := layer.ParseWKT(geomWKT)
		if err != nil {
			skipped++
			continue
		}
		a.City, a.Layer, a.Geometry = city, layerName, g
		areas = append(areas, a)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "store: iterate areas")
	}

	if skipped > 0 {
		zap.L().Debug("store: skipped areas with unreadable geometry",
			zap.String("layer", layerName),
			zap.String("city", city),
			zap.Int("skipped", skipped),
		)
	}
	return areas, nil
}

// Import upserts areas, replacing the name, geometry and population of
// existing rows.
func (s *AreaStore) Import(ctx context.Context, areas []model.Area) (int64, error) {
	rows := make([][]any, 0, len(areas))
	for _, a := range areas {
		if a.Geometry == nil {
			continue
		}
		text, err := wkt.Marshal(a.Geometry)
		if err != nil {
			return 0, eris.Wrapf(err, "store: encode geometry of %s", a.ID)
		}
		rows = append(rows, []any{a.ID, a.Name, a.City, a.Layer, text, a.Population, a.PopulationDensity})
	}

	n, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table: s.table,
		Columns: []db.Column{
			{Name: "id", Type: "text"},
			{Name: "name", Type: "text"},
			{Name: "city", Type: "text"},
			{Name: "layer", Type: "text"},
			{Name: "geom", Type: "text", Expr: "ST_Multi(ST_GeomFromText(%s, 4326))"},
			{Name: "population", Type: "double precision"},
			{Name: "population_density", Type: "double precision"},
		},
		ConflictKeys: []string{"layer", "city", "id"},
	}, rows)
	if err != nil {
		return 0, eris.Wrap(err, "store: import areas")
	}
	return n, nil
}

func quoted(table string) string {
	return db.QuoteTable(table)
}

// indexName derives the GiST index name from the table's unqualified name.
func indexName(table string) string {
	if i := strings.LastIndexByte(table, '.'); i >= 0 {
		table = table[i+1:]
	}
	return pgx.Identifier{table + "_geom_idx"}.Sanitize()
}
