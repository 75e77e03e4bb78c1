package layer

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"
	"go.uber.org/zap"
	"golang.org/x/text/encoding/charmap"

	"github.com/sells-group/coverage-cli/internal/model"
)

// DefaultNameFields are tried, in order, when a layer names no columns.
var DefaultNameFields = []string{"Name", "name", "NAME", "Region", "REGION_N", "NAME_MAHAL", "NAME_1", "NAME_2", "district"}

// LoadShapefile reads the polygons of a shapefile. The first of nameFields
// (or DefaultNameFields) present in the attribute table names each area.
// Attribute text that is not valid UTF-8 is decoded as Windows-1256.
// Records without polygon geometry are skipped.
func LoadShapefile(path, city, layerName string, nameFields []string) ([]model.Area, error) {
	reader, err := shp.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "layer: open shapefile %s", path)
	}
	defer func() { _ = reader.Close() }()

	if len(nameFields) == 0 {
		nameFields = DefaultNameFields
	}
	nameIdx := -1
	for _, f := range nameFields {
		if nameIdx = fieldIndex(reader, f); nameIdx >= 0 {
			break
		}
	}
	popIdx := fieldIndex(reader, PopulationField)
	densityIdx := fieldIndex(reader, PopulationDensityField)

	var (
		areas   []model.Area
		skipped int
	)
	for reader.Next() {
		n, shape := reader.Shape()
		g := shapeToGeom(shape)
		if g == nil {
			skipped++
			continue
		}

		name := ""
		if nameIdx >= 0 {
			name = attribute(reader, nameIdx)
		}
		if name == "" {
			name = defaultName(city, n)
		}
		areas = append(areas, model.Area{
			ID:                fmt.Sprintf("%s_%d", city, n),
			Name:              name,
			City:              city,
			Layer:             layerName,
			Geometry:          g,
			Population:        numeric(reader, popIdx),
			PopulationDensity: numeric(reader, densityIdx),
		})
	}

	if skipped > 0 {
		zap.L().Debug("layer: skipped shapefile records",
			zap.String("layer", layerName),
			zap.Int("skipped", skipped),
		)
	}
	return areas, nil
}

// fieldIndex returns the index of a named field in the shapefile, or -1 if
// not found. Names compare case-sensitively first, then case-insensitively.
func fieldIndex(reader *shp.Reader, name string) int {
	fields := reader.Fields()
	for i, f := range fields {
		if strings.TrimRight(f.String(), "\x00") == name {
			return i
		}
	}
	for i, f := range fields {
		if strings.EqualFold(strings.TrimRight(f.String(), "\x00"), name) {
			return i
		}
	}
	return -1
}

func attribute(reader *shp.Reader, idx int) string {
	return decodeText(strings.TrimSpace(strings.TrimRight(reader.Attribute(idx), "\x00")))
}

func numeric(reader *shp.Reader, idx int) *float64 {
	if idx < 0 {
		return nil
	}
	f, err := strconv.ParseFloat(attribute(reader, idx), 64)
	if err != nil {
		return nil
	}
	return &f
}

// decodeText returns s unchanged when it is valid UTF-8, otherwise decodes
// it as Windows-1256.
func decodeText(s string) string {
	if utf8.ValidString(s) {
		return s
	}
	out, err := charmap.Windows1256.NewDecoder().String(s)
	if err != nil {
		return s
	}
	return out
}

// shapeToGeom converts a shapefile polygon to a go-geom MultiPolygon.
// Clockwise rings start a new polygon and counter-clockwise rings are holes
// of the polygon before them. Returns nil for other shapes.
func shapeToGeom(shape shp.Shape) geom.T {
	p, ok := shape.(*shp.Polygon)
	if !ok || p == nil || p.NumParts == 0 || len(p.Points) == 0 {
		return nil
	}

	mp := geom.NewMultiPolygon(geom.XY)
	var current *geom.Polygon
	flush := func() {
		if current == nil {
			return
		}
		if err := mp.Push(current); err != nil {
			zap.L().Debug("layer: skipping malformed polygon part", zap.Error(err))
		}
		current = nil
	}

	for i := int32(0); i < p.NumParts; i++ {
		start := p.Parts[i]
		end := int32(len(p.Points))
		if i+1 < p.NumParts {
			end = p.Parts[i+1]
		}
		if start < 0 || end > int32(len(p.Points)) || end-start < 4 {
			continue
		}

		flat := make([]float64, 0, 2*(end-start))
		for j := start; j < end; j++ {
			flat = append(flat, p.Points[j].X, p.Points[j].Y)
		}
		ring := geom.NewLinearRingFlat(geom.XY, flat)

		if isShell(flat) || current == nil {
			flush()
			current = geom.NewPolygon(geom.XY)
		}
		if err := current.Push(ring); err != nil {
			zap.L().Debug("layer: skipping malformed polygon ring", zap.Int32("part", i), zap.Error(err))
		}
	}
	flush()

	if mp.NumPolygons() == 0 {
		return nil
	}
	return mp
}

// isShell reports whether a flat XY ring is an outer ring. Shapefiles wind
// shells clockwise and holes counter-clockwise.
func isShell(flat []float64) bool {
	return !xy.IsRingCounterClockwise(geom.XY, flat)
}
