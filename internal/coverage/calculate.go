package coverage

import (
	"math"

	"go.uber.org/zap"

	"github.com/sells-group/coverage-cli/internal/model"
	"github.com/sells-group/coverage-cli/internal/monitoring"
)

// DefaultBatchSize bounds the number of grid points per distance matrix.
const DefaultBatchSize = 100

// Calculator counts the vendors covering each grid point.
type Calculator struct {
	BatchSize int
	Metrics   *monitoring.Metrics
}

// vendorColumns is the column-major projection of the servable vendors.
type vendorColumns struct {
	lats, lngs, radii []float64 // radii in meters
	lines, grades     []string
}

func projectVendors(vendors []model.Vendor) vendorColumns {
	var c vendorColumns
	for _, v := range vendors {
		if !v.Servable() {
			continue
		}
		c.lats = append(c.lats, v.Latitude)
		c.lngs = append(c.lngs, v.Longitude)
		c.radii = append(c.radii, *v.Radius*1000)
		c.lines = append(c.lines, orUnknown(v.BusinessLine))
		c.grades = append(c.grades, orUnknown(v.Grade))
	}
	return c
}

func orUnknown(s string) string {
	if s == "" {
		return model.UnknownCategory
	}
	return s
}

// Calculate returns one sample per grid point, in input order. Vendors
// without finite coordinates and radius are ignored. An empty grid or an
// empty servable vendor set yields an empty result.
func (c *Calculator) Calculate(points []model.GridPoint, vendors []model.Vendor) []model.CoverageSample {
	if len(points) == 0 || len(vendors) == 0 {
		return nil
	}

	cols := projectVendors(vendors)
	if dropped := len(vendors) - len(cols.lats); dropped > 0 {
		zap.L().Debug("coverage: dropped unservable vendors", zap.Int("count", dropped))
		c.Metrics.Dropped("vendors", dropped)
	}
	m := len(cols.lats)
	if m == 0 {
		return nil
	}

	batch := c.BatchSize
	if batch <= 0 {
		batch = DefaultBatchSize
	}

	out := make([]model.CoverageSample, 0, len(points))
	dist := make([]float64, batch*m)
	for start := 0; start < len(points); start += batch {
		end := min(start+batch, len(points))
		chunk := points[start:end]

		distanceMatrix(dist, chunk, cols)

		for i, p := range chunk {
			out = append(out, rollup(p, dist[i*m:(i+1)*m], cols))
		}
	}
	return out
}

// distanceMatrix fills dist row-major with the equirectangular distance in
// meters from each chunk point to each vendor.
func distanceMatrix(dist []float64, chunk []model.GridPoint, cols vendorColumns) {
	m := len(cols.lats)
	for i, p := range chunk {
		cosLat := math.Cos(p.Lat * math.Pi / 180)
		row := dist[i*m : (i+1)*m]
		for j := range row {
			dx := (p.Lat - cols.lats[j]) * MetersPerDegree
			dy := (p.Lng - cols.lngs[j]) * MetersPerDegree * cosLat
			row[j] = math.Sqrt(dx*dx + dy*dy)
		}
	}
}

func rollup(p model.GridPoint, row []float64, cols vendorColumns) model.CoverageSample {
	s := model.CoverageSample{
		Lat:            p.Lat,
		Lng:            p.Lng,
		ByBusinessLine: map[string]int{},
		ByGrade:        map[string]int{},
	}
	for j, d := range row {
		if d <= cols.radii[j] {
			s.TotalVendors++
			s.ByBusinessLine[cols.lines[j]]++
			s.ByGrade[cols.grades[j]]++
		}
	}
	return s
}
