package geo

import (
	"sort"

	ctgeom "github.com/ctessum/geom"
	"github.com/ctessum/geom/index/rtree"
	"github.com/twpayne/go-geom"
)

// Index is a bounding-box R-tree over a layer's areas.
type Index struct {
	tree *rtree.Rtree
	size int
}

// entry stores an area's bounding box as a rectangle along with its position
// in the layer.
type entry struct {
	ctgeom.Polygon
	pos int
}

// NewIndex indexes the given bounds; nil bounds are skipped. Positions
// returned by Candidates refer to the bounds slice.
func NewIndex(bounds []*geom.Bounds) *Index {
	ix := &Index{tree: rtree.NewTree(25, 50)}
	for i, b := range bounds {
		if b == nil || b.IsEmpty() {
			continue
		}
		ix.tree.Insert(entry{Polygon: rectangle(b), pos: i})
		ix.size++
	}
	return ix
}

func rectangle(b *geom.Bounds) ctgeom.Polygon {
	x0, y0, x1, y1 := b.Min(0), b.Min(1), b.Max(0), b.Max(1)
	return ctgeom.Polygon{{
		{X: x0, Y: y0}, {X: x1, Y: y0}, {X: x1, Y: y1}, {X: x0, Y: y1}, {X: x0, Y: y0},
	}}
}

// queryPad widens a point query so points on a box edge still match.
const queryPad = 1e-12

// Candidates returns, in ascending layer order, the positions of every area
// whose bounding box contains (x, y).
func (ix *Index) Candidates(x, y float64) []int {
	q := &ctgeom.Bounds{
		Min: ctgeom.Point{X: x - queryPad, Y: y - queryPad},
		Max: ctgeom.Point{X: x + queryPad, Y: y + queryPad},
	}
	hits := ix.tree.SearchIntersect(q)
	if len(hits) == 0 {
		return nil
	}
	out := make([]int, 0, len(hits))
	for _, h := range hits {
		out = append(out, h.(entry).pos)
	}
	sort.Ints(out)
	return out
}

// Len returns the number of indexed areas.
func (ix *Index) Len() int { return ix.size }
