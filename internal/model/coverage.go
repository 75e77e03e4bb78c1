package model

import (
	"math"

	"github.com/twpayne/go-geom"
)

// GridPoint is a coverage sampling location.
type GridPoint struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// CoverageSample holds the vendors covering a single grid point.
// ByBusinessLine and ByGrade each sum to TotalVendors.
type CoverageSample struct {
	Lat            float64        `json:"lat"`
	Lng            float64        `json:"lng"`
	TotalVendors   int            `json:"total_vendors"`
	ByBusinessLine map[string]int `json:"by_business_line"`
	ByGrade        map[string]int `json:"by_grade"`
}

// CoveragePoint is one record of a coverage-grid result.
// Target fields are set only when a target comparison applied to the point.
type CoveragePoint struct {
	Lat                float64        `json:"lat"`
	Lng                float64        `json:"lng"`
	Coverage           CoverageSample `json:"coverage"`
	AreaID             *string        `json:"-"`
	MarketingArea      *string        `json:"marketing_area"`
	TargetBusinessLine *string        `json:"target_business_line,omitempty"`
	TargetValue        *float64       `json:"target_value,omitempty"`
	ActualValue        *int           `json:"actual_value,omitempty"`
	PerformanceRatio   *float64       `json:"performance_ratio,omitempty"`
}

// Area is a polygon from an administrative or marketing layer.
type Area struct {
	ID                string   `json:"area_id"`
	Name              string   `json:"name"`
	City              string   `json:"city"`
	Layer             string   `json:"layer"`
	Geometry          geom.T   `json:"-"`
	Population        *float64 `json:"population,omitempty"`
	PopulationDensity *float64 `json:"population_density,omitempty"`
}

// FiniteOrNil returns nil for NaN or infinite values.
func FiniteOrNil(f *float64) *float64 {
	if f == nil || math.IsNaN(*f) || math.IsInf(*f, 0) {
		return nil
	}
	return f
}

// TargetRow is one row of the wide coverage-target table: an area name and
// a target per business line. Empty or non-numeric cells are nil.
type TargetRow struct {
	MarketingArea string
	Values        map[string]*float64
}

// AreaRef identifies the area a point resolved to. Both fields are nil when
// the point is outside every polygon.
type AreaRef struct {
	ID   *string
	Name *string
}

// Radius modes accepted by RadiusModifier.
const (
	RadiusPercentage = "percentage"
	RadiusFixed      = "fixed"
)

// RadiusModifier overrides vendor radii for a single request.
type RadiusModifier struct {
	Mode     string  `json:"radius_mode"`
	Modifier float64 `json:"radius_modifier"`
	Fixed    float64 `json:"radius_fixed"`
}
