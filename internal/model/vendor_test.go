package model

import (
	"math"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVendorServable(t *testing.T) {
	tests := []struct {
		name     string
		vendor   Vendor
		expected bool
	}{
		{name: "complete", vendor: Vendor{Latitude: 35.7, Longitude: 51.4, Radius: Float(2)}, expected: true},
		{name: "nil radius", vendor: Vendor{Latitude: 35.7, Longitude: 51.4}, expected: false},
		{name: "nan radius", vendor: Vendor{Latitude: 35.7, Longitude: 51.4, Radius: Float(math.NaN())}, expected: false},
		{name: "nan latitude", vendor: Vendor{Latitude: math.NaN(), Longitude: 51.4, Radius: Float(2)}, expected: false},
		{name: "inf longitude", vendor: Vendor{Latitude: 35.7, Longitude: math.Inf(1), Radius: Float(2)}, expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.vendor.Servable())
		})
	}
}

func TestOrderLocation(t *testing.T) {
	_, _, ok := Order{}.Location()
	assert.False(t, ok)

	_, _, ok = Order{Latitude: Float(35.7)}.Location()
	assert.False(t, ok)

	lat, lng, ok := Order{Latitude: Float(35.7), Longitude: Float(51.4)}.Location()
	assert.True(t, ok)
	assert.Equal(t, 35.7, lat)
	assert.Equal(t, 51.4, lng)
}

func TestFiniteOrNil(t *testing.T) {
	assert.Nil(t, FiniteOrNil(nil))
	assert.Nil(t, FiniteOrNil(Float(math.NaN())))
	assert.Nil(t, FiniteOrNil(Float(math.Inf(-1))))
	assert.Equal(t, 2.0, *FiniteOrNil(Float(2.0)))
}

func TestVendorMarshalJSON_NonFiniteRadius(t *testing.T) {
	body, err := json.Marshal([]Vendor{
		{Code: "a", Radius: Float(math.Inf(1)), OriginalRadius: Float(math.NaN())},
		{Code: "b", Radius: Float(2.5), OriginalRadius: Float(2.5)},
	})
	require.NoError(t, err)

	var out []map[string]any
	require.NoError(t, json.Unmarshal(body, &out))
	assert.Nil(t, out[0]["radius"])
	assert.Nil(t, out[0]["original_radius"])
	assert.Equal(t, "a", out[0]["vendor_code"])
	assert.Equal(t, 2.5, out[1]["radius"])
}
