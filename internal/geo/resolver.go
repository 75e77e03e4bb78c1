package geo

import (
	"github.com/twpayne/go-geom"

	"github.com/sells-group/coverage-cli/internal/model"
)

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithoutIndex makes the Resolver scan every area for each point instead of
// querying the R-tree. Results are identical.
func WithoutIndex() ResolverOption {
	return func(r *Resolver) {
		r.indexed = false
	}
}

// Resolver assigns points to the areas of one polygon layer. It is immutable
// after construction and safe for concurrent use.
type Resolver struct {
	areas   []model.Area
	shapes  []shape
	valid   []bool
	ids     []*string
	names   []*string
	index   *Index
	indexed bool
}

// NewResolver prepares areas for point resolution. Areas without a polygonal
// geometry are kept for bookkeeping but never match.
func NewResolver(areas []model.Area, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		areas:   areas,
		shapes:  make([]shape, len(areas)),
		valid:   make([]bool, len(areas)),
		ids:     make([]*string, len(areas)),
		names:   make([]*string, len(areas)),
		indexed: true,
	}
	for _, opt := range opts {
		opt(r)
	}

	bounds := make([]*geom.Bounds, len(areas))
	for i := range areas {
		id, name := areas[i].ID, areas[i].Name
		r.ids[i], r.names[i] = &id, &name
		if s, ok := prepare(areas[i].Geometry); ok {
			r.shapes[i], r.valid[i] = s, true
			bounds[i] = s.bounds
		}
	}
	if r.indexed {
		r.index = NewIndex(bounds)
	}
	return r
}

// Areas returns the layer's areas in layer order.
func (r *Resolver) Areas() []model.Area { return r.areas }

// Len returns the number of areas in the layer.
func (r *Resolver) Len() int { return len(r.areas) }

// candidates returns area positions worth an exact test, in layer order.
func (r *Resolver) candidates(x, y float64) []int {
	if r.index != nil {
		return r.index.Candidates(x, y)
	}
	out := make([]int, 0, len(r.areas))
	for i, ok := range r.valid {
		if ok {
			out = append(out, i)
		}
	}
	return out
}

// Locate returns the position of the first area in layer order containing
// (lat, lng), or -1.
func (r *Resolver) Locate(lat, lng float64) int {
	for _, i := range r.candidates(lng, lat) {
		if r.valid[i] && r.shapes[i].contains(lng, lat) {
			return i
		}
	}
	return -1
}

// ResolveAll returns the positions of every area containing (lat, lng).
func (r *Resolver) ResolveAll(lat, lng float64) []int {
	var out []int
	for _, i := range r.candidates(lng, lat) {
		if r.valid[i] && r.shapes[i].contains(lng, lat) {
			out = append(out, i)
		}
	}
	return out
}

// Resolve maps each point to the first containing area. Uncovered points
// get a zero AreaRef.
func (r *Resolver) Resolve(points []model.GridPoint) []model.AreaRef {
	out := make([]model.AreaRef, len(points))
	if len(r.areas) == 0 {
		return out
	}
	for k, p := range points {
		if i := r.Locate(p.Lat, p.Lng); i >= 0 {
			out[k] = model.AreaRef{ID: r.ids[i], Name: r.names[i]}
		}
	}
	return out
}
