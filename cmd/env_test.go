package main

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/coverage-cli/internal/config"
	"github.com/sells-group/coverage-cli/internal/dataset"
	"github.com/sells-group/coverage-cli/internal/model"
	"github.com/sells-group/coverage-cli/internal/monitoring"
)

func TestLoadSummary(t *testing.T) {
	prev := cfg
	t.Cleanup(func() { cfg = prev })
	cfg = &config.Config{Layers: []config.LayerConfig{
		{Name: config.MarketingLayer, City: "tehran"},
		{Name: "districts", City: "tehran"},
	}}

	tables := &dataset.Tables{
		Vendors: []model.Vendor{
			{Code: "a", Latitude: 35.7, Longitude: 51.4},
			{Code: "b", Latitude: math.NaN(), Longitude: 51.4},
		},
		Orders: []model.Order{
			{Latitude: model.Float(35.7), Longitude: model.Float(51.4)},
			{Latitude: model.Float(35.7)},
			{},
		},
		Targets: []model.TargetRow{{MarketingArea: "North"}},
	}
	areas := map[dataset.LayerKey][]model.Area{
		{Layer: config.MarketingLayer, City: "tehran"}: {{ID: "1"}, {ID: "2"}},
	}

	assert.Equal(t, monitoring.LoadSummary{
		Vendors:          2,
		Orders:           3,
		UnlocatedVendors: 1,
		UnlocatedOrders:  2,
		Layers: []monitoring.LayerCount{
			{Layer: config.MarketingLayer, City: "tehran", Areas: 2},
			{Layer: "districts", City: "tehran"},
		},
		TargetRows: 1,
		Targets:    1,
	}, loadSummary(tables, areas, 1))
}
