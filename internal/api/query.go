package api

import (
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/coverage-cli/internal/config"
	"github.com/sells-group/coverage-cli/internal/dataset"
	"github.com/sells-group/coverage-cli/internal/model"
)

// Area display modes that are not layer names.
const (
	DisplayNone         = "none"
	DisplayCoverageGrid = "coverage_grid"
	DisplayAllDistricts = "all_districts"
)

// HeatmapNone disables heatmap generation.
const HeatmapNone = "none"

// Query holds the parsed parameters shared by the map endpoints.
type Query struct {
	City          string
	Start         time.Time
	End           time.Time
	BusinessLines []string
	VendorCodes   []string
	StatusIDs     []int
	Grades        []string
	Visible       *bool
	Open          *bool
	VendorArea    dataset.AreaFilter
	HeatmapKind   string
	AreaDisplay   string
	AreaNames     []string
	Zoom          float64
	Radius        model.RadiusModifier
}

// ParseQuery reads the request parameters, applying the defaults of the
// map UI. Malformed values are errors; blank list entries are ignored.
func ParseQuery(v url.Values, defaultZoom float64) (Query, error) {
	q := Query{
		City:          stringOr(v, "city", "tehran"),
		BusinessLines: list(v, "business_lines"),
		VendorCodes:   dataset.ParseVendorCodes(v.Get("vendor_codes_filter")),
		Grades:        list(v, "vendor_grades"),
		VendorArea: dataset.AreaFilter{
			Layer: stringOr(v, "vendor_area_main_type", dataset.All),
			Names: list(v, "vendor_area_sub_type"),
		},
		HeatmapKind: stringOr(v, "heatmap_type_request", HeatmapNone),
		AreaDisplay: stringOr(v, "area_type_display", config.MarketingLayer),
		AreaNames:   list(v, "area_sub_type_filter"),
		Radius: model.RadiusModifier{
			Mode: stringOr(v, "radius_mode", model.RadiusPercentage),
		},
	}

	var err error
	if q.Start, err = date(v, "start_date"); err != nil {
		return Query{}, err
	}
	if q.End, err = date(v, "end_date"); err != nil {
		return Query{}, err
	}
	if q.Zoom, err = number(v, "zoom_level", defaultZoom); err != nil {
		return Query{}, err
	}
	if q.Radius.Modifier, err = number(v, "radius_modifier", 1); err != nil {
		return Query{}, err
	}
	if q.Radius.Fixed, err = number(v, "radius_fixed", dataset.DefaultRadiusKM); err != nil {
		return Query{}, err
	}
	switch q.Radius.Mode {
	case model.RadiusPercentage, model.RadiusFixed:
	default:
		return Query{}, eris.Errorf("api: unknown radius_mode %q", q.Radius.Mode)
	}
	if q.Visible, err = dataset.ParseFlag(v.Get("vendor_visible")); err != nil {
		return Query{}, eris.Wrap(err, "api: vendor_visible")
	}
	if q.Open, err = dataset.ParseFlag(v.Get("vendor_is_open")); err != nil {
		return Query{}, eris.Wrap(err, "api: vendor_is_open")
	}

	// Non-numeric status IDs are ignored.
	for _, s := range list(v, "vendor_status_ids") {
		if id, err := strconv.Atoi(s); err == nil {
			q.StatusIDs = append(q.StatusIDs, id)
		}
	}
	return q, nil
}

// VendorFilter returns the vendor selection of q.
func (q Query) VendorFilter() dataset.VendorFilter {
	return dataset.VendorFilter{
		City:          q.City,
		Radius:        q.Radius,
		BusinessLines: q.BusinessLines,
		VendorCodes:   q.VendorCodes,
		Area:          q.VendorArea,
		StatusIDs:     q.StatusIDs,
		Grades:        q.Grades,
		Visible:       q.Visible,
		Open:          q.Open,
	}
}

// OrderFilter returns the order selection of q.
func (q Query) OrderFilter() dataset.OrderFilter {
	return dataset.OrderFilter{
		City:          q.City,
		Start:         q.Start,
		End:           q.End,
		BusinessLines: q.BusinessLines,
	}
}

func stringOr(v url.Values, key, def string) string {
	if s := strings.TrimSpace(v.Get(key)); s != "" {
		return s
	}
	return def
}

func list(v url.Values, key string) []string {
	var out []string
	for _, s := range v[key] {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func number(v url.Values, key string, def float64) (float64, error) {
	s := strings.TrimSpace(v.Get(key))
	if s == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, eris.Errorf("api: %s must be a finite number, got %q", key, s)
	}
	return f, nil
}

func date(v url.Values, key string) (time.Time, error) {
	s := strings.TrimSpace(v.Get(key))
	if s == "" {
		return time.Time{}, nil
	}
	t, ok := dataset.ParseTime(s)
	if !ok {
		return time.Time{}, eris.Errorf("api: %s is not a date: %q", key, s)
	}
	return t, nil
}
