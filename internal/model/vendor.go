// Package model defines the typed records shared by the coverage and heatmap engines.
package model

import (
	"math"
	"time"

	"github.com/goccy/go-json"
)

// UnknownCategory is the bucket used when a vendor has no business line or grade.
const UnknownCategory = "Unknown"

// UngradedGrade is assigned at ingestion to vendors missing from the graded list.
const UngradedGrade = "Ungraded"

// Vendor is a point of service with a delivery radius.
type Vendor struct {
	Code           string   `json:"vendor_code"`
	Name           string   `json:"vendor_name,omitempty"`
	City           string   `json:"city_name,omitempty"`
	Latitude       float64  `json:"latitude"`
	Longitude      float64  `json:"longitude"`
	Radius         *float64 `json:"radius"`          // effective radius in km
	OriginalRadius *float64 `json:"original_radius"` // radius as loaded, km
	BusinessLine   string   `json:"business_line,omitempty"`
	Grade          string   `json:"grade,omitempty"`
	StatusID       *int     `json:"status_id,omitempty"`
	Visible        *bool    `json:"visible,omitempty"`
	Open           *bool    `json:"open,omitempty"`
}

// MarshalJSON writes non-finite radii as null.
func (v Vendor) MarshalJSON() ([]byte, error) {
	type plain Vendor
	p := plain(v)
	p.Radius = FiniteOrNil(p.Radius)
	p.OriginalRadius = FiniteOrNil(p.OriginalRadius)
	return json.Marshal(p)
}

// HasLocation reports whether the vendor has finite coordinates.
func (v Vendor) HasLocation() bool {
	return isFinite(v.Latitude) && isFinite(v.Longitude)
}

// Servable reports whether the vendor can take part in coverage computation:
// finite coordinates and a finite radius.
func (v Vendor) Servable() bool {
	return v.HasLocation() && v.Radius != nil && isFinite(*v.Radius)
}

// Order is a single delivery event.
type Order struct {
	Latitude      *float64  `json:"customer_latitude"`
	Longitude     *float64  `json:"customer_longitude"`
	City          string    `json:"city_name,omitempty"`
	BusinessLine  string    `json:"business_line,omitempty"`
	Organic       *bool     `json:"organic,omitempty"`
	UserID        string    `json:"user_id,omitempty"`
	VendorCode    string    `json:"vendor_code,omitempty"`
	MarketingArea string    `json:"marketing_area,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// Location returns the order's customer coordinates and whether both are present and finite.
func (o Order) Location() (lat, lng float64, ok bool) {
	if o.Latitude == nil || o.Longitude == nil {
		return 0, 0, false
	}
	lat, lng = *o.Latitude, *o.Longitude
	return lat, lng, isFinite(lat) && isFinite(lng)
}

// Float returns a pointer to v.
func Float(v float64) *float64 { return &v }

// Int returns a pointer to v.
func Int(v int) *int { return &v }

// Bool returns a pointer to v.
func Bool(v bool) *bool { return &v }

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
