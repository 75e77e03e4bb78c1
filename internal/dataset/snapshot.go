// Package dataset holds the in-memory working set and builds the per-request
// vendor and order selections the engines operate on.
package dataset

import (
	"slices"

	"github.com/sells-group/coverage-cli/internal/config"
	"github.com/sells-group/coverage-cli/internal/coverage"
	"github.com/sells-group/coverage-cli/internal/geo"
	"github.com/sells-group/coverage-cli/internal/model"
)

// LayerKey addresses one loaded polygon layer.
type LayerKey struct {
	Layer string
	City  string
}

// Snapshot is the read-only working set built once at startup. Every request
// derives filtered copies from it and never mutates it.
type Snapshot struct {
	Vendors        []model.Vendor
	Orders         []model.Order
	Areas          map[LayerKey][]model.Area
	Targets        coverage.TargetLookup
	MarketingLayer string

	resolvers map[LayerKey]*geo.Resolver
}

// NewSnapshot indexes every layer for point lookups. An empty marketingLayer
// selects config.MarketingLayer.
func NewSnapshot(vendors []model.Vendor, orders []model.Order, areas map[LayerKey][]model.Area, targets coverage.TargetLookup, marketingLayer string) *Snapshot {
	if marketingLayer == "" {
		marketingLayer = config.MarketingLayer
	}
	if areas == nil {
		areas = make(map[LayerKey][]model.Area)
	}
	s := &Snapshot{
		Vendors:        vendors,
		Orders:         orders,
		Areas:          areas,
		Targets:        targets,
		MarketingLayer: marketingLayer,
		resolvers:      make(map[LayerKey]*geo.Resolver, len(areas)),
	}
	for k, layer := range areas {
		s.resolvers[k] = geo.NewResolver(layer)
	}
	return s
}

// Layer returns the areas of a layer, or nil when it was not loaded.
func (s *Snapshot) Layer(layer, city string) []model.Area {
	return s.Areas[LayerKey{Layer: layer, City: city}]
}

// Resolver returns the point resolver of a layer, or nil when it was not
// loaded.
func (s *Snapshot) Resolver(layer, city string) *geo.Resolver {
	return s.resolvers[LayerKey{Layer: layer, City: city}]
}

// CoverageResolvers returns the marketing-area resolver of every city that
// has one, keyed by city.
func (s *Snapshot) CoverageResolvers() map[string]coverage.AreaResolver {
	out := make(map[string]coverage.AreaResolver)
	for k, r := range s.resolvers {
		if k.Layer == s.MarketingLayer {
			out[k.City] = r
		}
	}
	return out
}

// LayerNames returns the distinct loaded layer names, sorted.
func (s *Snapshot) LayerNames() []string {
	seen := make(map[string]struct{})
	for k := range s.Areas {
		seen[k.Layer] = struct{}{}
	}
	return sortedKeys(seen)
}

// AreaNames returns the sorted distinct area names of a layer.
func (s *Snapshot) AreaNames(layer, city string) []string {
	seen := make(map[string]struct{})
	for _, a := range s.Layer(layer, city) {
		seen[a.Name] = struct{}{}
	}
	return sortedKeys(seen)
}

// BusinessLines returns the distinct non-empty order business lines in order of
// first appearance.
func (s *Snapshot) BusinessLines() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, o := range s.Orders {
		if o.BusinessLine == "" {
			continue
		}
		if _, ok := seen[o.BusinessLine]; ok {
			continue
		}
		seen[o.BusinessLine] = struct{}{}
		out = append(out, o.BusinessLine)
	}
	return out
}

// StatusIDs returns the distinct vendor status IDs, sorted.
func (s *Snapshot) StatusIDs() []int {
	seen := make(map[int]struct{})
	for _, v := range s.Vendors {
		if v.StatusID != nil {
			seen[*v.StatusID] = struct{}{}
		}
	}
	out := make([]int, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}

// Grades returns the distinct vendor grades, sorted.
func (s *Snapshot) Grades() []string {
	seen := make(map[string]struct{})
	for _, v := range s.Vendors {
		if v.Grade != "" {
			seen[v.Grade] = struct{}{}
		}
	}
	return sortedKeys(seen)
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}
