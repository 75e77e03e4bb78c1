// Package layer loads polygon layers from WKT tables, shapefiles and PostGIS.
package layer

import (
	"context"
	"fmt"
	"io"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/wkt"
	"go.uber.org/zap"

	"github.com/sells-group/coverage-cli/internal/model"
	"github.com/sells-group/coverage-cli/internal/tabular"
)

// Attribute columns shared by every source format.
const (
	PopulationField        = "Pop"
	PopulationDensityField = "PopDensity"
)

// LoadWKTCSV reads a polygon table with a WKT geometry column and optional
// name, Pop and PopDensity columns. Area IDs are "<city>_<row>" with 0-based
// data rows; unnamed areas become "<city>_area_<row+1>". Rows whose geometry
// is missing or unparseable are dropped.
func LoadWKTCSV(ctx context.Context, r io.Reader, city, layerName string) ([]model.Area, error) {
	var (
		areas   []model.Area
		dropped int
	)
	h, err := tabular.Each(ctx, r, func(row tabular.Row) error {
		i := row.Line - 1
		g, err := ParseWKT(row.Get("WKT"))
		if err != nil {
			dropped++
			return nil
		}
		name := row.Get("name")
		if name == "" {
			name = defaultName(city, i)
		}
		areas = append(areas, model.Area{
			ID:                fmt.Sprintf("%s_%d", city, i),
			Name:              name,
			City:              city,
			Layer:             layerName,
			Geometry:          g,
			Population:        row.FloatPtr(PopulationField),
			PopulationDensity: row.FloatPtr(PopulationDensityField),
		})
		return nil
	})
	if err != nil {
		return nil, eris.Wrapf(err, "layer: read %s/%s", layerName, city)
	}
	if !h.Has("WKT") {
		return nil, eris.Errorf("layer: %s/%s has no WKT column", layerName, city)
	}
	if dropped > 0 {
		zap.L().Debug("layer: dropped rows without usable geometry",
			zap.String("layer", layerName),
			zap.String("city", city),
			zap.Int("dropped", dropped),
		)
	}
	return areas, nil
}

// ParseWKT decodes a polygonal WKT geometry. Only Polygon and MultiPolygon
// values are accepted.
func ParseWKT(s string) (geom.T, error) {
	if s == "" {
		return nil, eris.New("layer: empty geometry")
	}
	g, err := wkt.Unmarshal(s)
	if err != nil {
		return nil, eris.Wrap(err, "layer: parse WKT")
	}
	switch p := g.(type) {
	case *geom.Polygon:
		if p.NumLinearRings() == 0 {
			return nil, eris.New("layer: empty polygon")
		}
	case *geom.MultiPolygon:
		if p.NumPolygons() == 0 {
			return nil, eris.New("layer: empty multipolygon")
		}
	default:
		return nil, eris.Errorf("layer: unsupported geometry %T", p)
	}
	return g, nil
}

func defaultName(city string, i int) string {
	return fmt.Sprintf("%s_area_%d", city, i+1)
}
