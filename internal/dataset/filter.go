package dataset

import (
	"math"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/coverage-cli/internal/model"
)

// All disables the city filter, and the area filter when used as its layer.
const All = "all"

// DefaultRadiusKM is the radius assumed for vendors without one when a
// percentage modifier is applied.
const DefaultRadiusKM = 3.0

var codeSeparators = regexp.MustCompile(`[\s,;]+`)

// ParseVendorCodes splits free-form input on whitespace, commas and
// semicolons, dropping empty tokens.
func ParseVendorCodes(s string) []string {
	var out []string
	for _, tok := range codeSeparators.Split(s, -1) {
		if tok = strings.TrimSpace(tok); tok != "" {
			out = append(out, tok)
		}
	}
	return out
}

// ParseFlag parses a tri-state filter value: "any" or "" matches everything,
// "1"/"true" and "0"/"false" select a state.
func ParseFlag(s string) (*bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "any":
		return nil, nil
	case "1", "true":
		return model.Bool(true), nil
	case "0", "false":
		return model.Bool(false), nil
	}
	return nil, eris.Errorf("dataset: invalid flag %q", s)
}

// ApplyRadius returns a copy of vendors with effective radii set by m. Fixed
// mode assigns m.Fixed to every vendor. Any other mode scales the original
// radius, or DefaultRadiusKM when it is missing, by m.Modifier.
func ApplyRadius(vendors []model.Vendor, m model.RadiusModifier) []model.Vendor {
	out := make([]model.Vendor, len(vendors))
	for i, v := range vendors {
		var r float64
		if m.Mode == model.RadiusFixed {
			r = m.Fixed
		} else {
			base := DefaultRadiusKM
			if v.OriginalRadius != nil && !math.IsNaN(*v.OriginalRadius) {
				base = *v.OriginalRadius
			}
			r = base * m.Modifier
		}
		v.Radius = &r
		out[i] = v
	}
	return out
}

// AreaFilter restricts vendors to the named areas of a layer.
type AreaFilter struct {
	Layer string
	Names []string
}

func (f AreaFilter) active() bool {
	return f.Layer != "" && f.Layer != All && len(f.Names) > 0
}

// VendorFilter selects the vendors of one request.
type VendorFilter struct {
	City          string
	Radius        model.RadiusModifier
	BusinessLines []string
	VendorCodes   []string
	Area          AreaFilter
	StatusIDs     []int
	Grades        []string
	Visible       *bool
	Open          *bool
}

// FilterVendors applies f to the snapshot's vendors. Filters run in a fixed
// order: radius, missing location or code, city, business lines, vendor
// codes, area, status, grade, visibility and open state. Empty filter fields
// match everything.
func (s *Snapshot) FilterVendors(f VendorFilter) []model.Vendor {
	log := zap.L().With(zap.String("city", f.City))
	vendors := ApplyRadius(s.Vendors, f.Radius)

	vendors = keep(vendors, func(v model.Vendor) bool { return v.HasLocation() && v.Code != "" })
	log.Debug("dataset: vendors with location", zap.Int("count", len(vendors)))

	if f.City != "" && f.City != All {
		vendors = keep(vendors, func(v model.Vendor) bool { return v.City == f.City })
	}
	if len(f.BusinessLines) > 0 {
		vendors = keep(vendors, func(v model.Vendor) bool { return slices.Contains(f.BusinessLines, v.BusinessLine) })
	}
	if len(f.VendorCodes) > 0 {
		codes := set(f.VendorCodes)
		vendors = keep(vendors, func(v model.Vendor) bool { _, ok := codes[v.Code]; return ok })
	}
	if f.Area.active() && len(vendors) > 0 {
		vendors = s.filterByArea(vendors, f.City, f.Area)
		log.Debug("dataset: vendors after area filter", zap.Int("count", len(vendors)))
	}
	if len(f.StatusIDs) > 0 {
		vendors = keep(vendors, func(v model.Vendor) bool { return v.StatusID != nil && slices.Contains(f.StatusIDs, *v.StatusID) })
	}
	if len(f.Grades) > 0 {
		vendors = keep(vendors, func(v model.Vendor) bool { return slices.Contains(f.Grades, v.Grade) })
	}
	if f.Visible != nil {
		vendors = keep(vendors, func(v model.Vendor) bool { return v.Visible != nil && *v.Visible == *f.Visible })
	}
	if f.Open != nil {
		vendors = keep(vendors, func(v model.Vendor) bool { return v.Open != nil && *v.Open == *f.Open })
	}

	log.Debug("dataset: filtered vendors", zap.Int("count", len(vendors)))
	return vendors
}

// filterByArea keeps vendors tied to the named areas. For the marketing
// layer a vendor is tied to an area when any order placed in that area names
// its code. For other layers the vendor's location must fall within one of
// the named polygons. A layer the city does not have leaves vendors as-is.
func (s *Snapshot) filterByArea(vendors []model.Vendor, city string, f AreaFilter) []model.Vendor {
	names := set(f.Names)

	if f.Layer == s.MarketingLayer {
		codes := make(map[string]struct{})
		for _, o := range s.Orders {
			if _, ok := names[o.MarketingArea]; ok && o.VendorCode != "" {
				codes[o.VendorCode] = struct{}{}
			}
		}
		return keep(vendors, func(v model.Vendor) bool { _, ok := codes[v.Code]; return ok })
	}

	r := s.Resolver(f.Layer, city)
	if r == nil || r.Len() == 0 {
		return vendors
	}
	areas := r.Areas()
	return keep(vendors, func(v model.Vendor) bool {
		for _, i := range r.ResolveAll(v.Latitude, v.Longitude) {
			if _, ok := names[areas[i].Name]; ok {
				return true
			}
		}
		return false
	})
}

// OrderFilter selects the orders of one request. Zero times disable the
// date bounds; End is inclusive through the end of its day.
type OrderFilter struct {
	City          string
	Start         time.Time
	End           time.Time
	BusinessLines []string
}

// FilterOrders returns the orders matching f, and the orders matching only
// its city. The second set feeds all-time statistics.
func (s *Snapshot) FilterOrders(f OrderFilter) (filtered, cityAll []model.Order) {
	cityAll = s.Orders
	if f.City != "" && f.City != All {
		cityAll = keep(s.Orders, func(o model.Order) bool { return o.City == f.City })
	}

	filtered = cityAll
	if !f.Start.IsZero() {
		filtered = keep(filtered, func(o model.Order) bool {
			return !o.CreatedAt.IsZero() && !o.CreatedAt.Before(f.Start)
		})
	}
	if !f.End.IsZero() {
		end := EndOfDay(f.End)
		filtered = keep(filtered, func(o model.Order) bool {
			return !o.CreatedAt.IsZero() && !o.CreatedAt.After(end)
		})
	}
	if len(f.BusinessLines) > 0 {
		filtered = keep(filtered, func(o model.Order) bool { return slices.Contains(f.BusinessLines, o.BusinessLine) })
	}

	zap.L().Debug("dataset: filtered orders",
		zap.String("city", f.City),
		zap.Int("city_orders", len(cityAll)),
		zap.Int("filtered", len(filtered)),
	)
	return filtered, cityAll
}

// EndOfDay returns 23:59:59 on t's calendar day.
func EndOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 23, 59, 59, 0, t.Location())
}

func keep[T any](in []T, pred func(T) bool) []T {
	out := make([]T, 0, len(in))
	for _, v := range in {
		if pred(v) {
			out = append(out, v)
		}
	}
	return out
}

func set(values []string) map[string]struct{} {
	m := make(map[string]struct{}, len(values))
	for _, v := range values {
		m[v] = struct{}{}
	}
	return m
}
