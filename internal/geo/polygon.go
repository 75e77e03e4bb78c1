// Package geo resolves points to administrative and marketing polygons and
// derives per-polygon statistics.
package geo

import (
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"
	"github.com/twpayne/go-geom/xy/location"
)

// shape is an area geometry prepared for repeated containment tests.
type shape struct {
	bounds *geom.Bounds
	polys  []*geom.Polygon
}

// prepare flattens a Polygon or MultiPolygon. Other geometry types and empty
// geometries are rejected.
func prepare(g geom.T) (shape, bool) {
	var polys []*geom.Polygon
	switch t := g.(type) {
	case *geom.Polygon:
		if t != nil && t.NumLinearRings() > 0 {
			polys = append(polys, t)
		}
	case *geom.MultiPolygon:
		if t == nil {
			return shape{}, false
		}
		for i := range t.NumPolygons() {
			if p := t.Polygon(i); p.NumLinearRings() > 0 {
				polys = append(polys, p)
			}
		}
	}
	if len(polys) == 0 {
		return shape{}, false
	}
	return shape{bounds: g.Bounds(), polys: polys}, true
}

func (s shape) contains(x, y float64) bool {
	if x < s.bounds.Min(0) || x > s.bounds.Max(0) || y < s.bounds.Min(1) || y > s.bounds.Max(1) {
		return false
	}
	for _, p := range s.polys {
		if polygonContains(p, x, y) {
			return true
		}
	}
	return false
}

// polygonContains reports whether (x, y) is strictly inside p: interior to
// the shell and neither inside nor on any hole. Boundary points are outside.
func polygonContains(p *geom.Polygon, x, y float64) bool {
	layout := p.Layout()
	flat := p.FlatCoords()
	pt := geom.Coord{x, y}
	start := 0
	for i, end := range p.Ends() {
		loc := xy.LocatePointInRing(layout, pt, flat[start:end])
		if i == 0 && loc != location.Interior {
			return false
		}
		if i > 0 && loc != location.Exterior {
			return false
		}
		start = end
	}
	return true
}

// Contains reports whether the point (lng, lat) lies strictly inside g; points
// on an edge or vertex are not contained. Only Polygon and MultiPolygon
// geometries can contain points.
func Contains(g geom.T, lng, lat float64) bool {
	s, ok := prepare(g)
	return ok && s.contains(lng, lat)
}

// Shape is a polygonal geometry prepared for repeated containment tests.
type Shape struct {
	s shape
}

// NewShape prepares g. It returns false for non-polygonal or empty geometry.
func NewShape(g geom.T) (Shape, bool) {
	s, ok := prepare(g)
	return Shape{s: s}, ok
}

// Contains reports whether (lng, lat) lies inside the shape.
func (s Shape) Contains(lng, lat float64) bool { return s.s.contains(lng, lat) }

// Bounds returns the shape's bounding box.
func (s Shape) Bounds() *geom.Bounds { return s.s.bounds }
