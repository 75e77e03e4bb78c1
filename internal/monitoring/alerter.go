package monitoring

import (
	"fmt"
	"slices"
	"time"

	"go.uber.org/zap"
)

// AlertType identifies the kind of data-quality alert.
type AlertType string

const (
	AlertNoVendors  AlertType = "no_vendors"
	AlertNoOrders   AlertType = "no_orders"
	AlertEmptyLayer AlertType = "empty_layer"
	AlertNoTargets  AlertType = "no_targets"
	AlertUnlocated  AlertType = "unlocated_rows"
)

// unlocatedThreshold is the share of rows without usable coordinates above
// which an alert is raised.
const unlocatedThreshold = 0.25

// Alert describes one problem found in the loaded input data.
type Alert struct {
	Type      AlertType      `json:"type"`
	Severity  string         `json:"severity"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// LayerCount is the number of areas loaded for one configured layer.
type LayerCount struct {
	Layer string
	City  string
	Areas int
}

// LoadSummary describes the outcome of a startup load.
type LoadSummary struct {
	Vendors int
	Orders  int
	// UnlocatedVendors and UnlocatedOrders count the rows of Vendors and
	// Orders that lack usable coordinates.
	UnlocatedVendors int
	UnlocatedOrders  int
	Layers           []LayerCount
	// TargetRows is the number of target rows read; Targets the number of
	// (area, business line) targets built from rows that matched an area.
	TargetRows int
	Targets    int
}

// Evaluate returns the data-quality alerts for s, ordered by type.
func Evaluate(s LoadSummary) []Alert {
	var alerts []Alert
	now := time.Now().UTC()

	if s.Vendors == 0 {
		alerts = append(alerts, Alert{
			Type:      AlertNoVendors,
			Severity:  "high",
			Message:   "no vendors loaded; coverage grids will be empty",
			Timestamp: now,
		})
	}
	if s.Orders == 0 {
		alerts = append(alerts, Alert{
			Type:      AlertNoOrders,
			Severity:  "high",
			Message:   "no orders loaded; order and user heatmaps will be empty",
			Timestamp: now,
		})
	}

	for _, src := range []struct {
		name             string
		unlocated, total int
	}{
		{"vendors", s.UnlocatedVendors, s.Vendors},
		{"orders", s.UnlocatedOrders, s.Orders},
	} {
		if src.total == 0 {
			continue
		}
		rate := float64(src.unlocated) / float64(src.total)
		if rate > unlocatedThreshold {
			alerts = append(alerts, Alert{
				Type:     AlertUnlocated,
				Severity: "medium",
				Message: fmt.Sprintf("%.1f%% of %s rows have no usable coordinates (%d of %d)",
					rate*100, src.name, src.unlocated, src.total),
				Details: map[string]any{
					"source":    src.name,
					"unlocated": src.unlocated,
					"total":     src.total,
				},
				Timestamp: now,
			})
		}
	}

	for _, l := range s.Layers {
		if l.Areas > 0 {
			continue
		}
		alerts = append(alerts, Alert{
			Type:     AlertEmptyLayer,
			Severity: "medium",
			Message:  fmt.Sprintf("layer %s has no areas for %s", l.Layer, l.City),
			Details: map[string]any{
				"layer": l.Layer,
				"city":  l.City,
			},
			Timestamp: now,
		})
	}

	if s.TargetRows > 0 && s.Targets == 0 {
		alerts = append(alerts, Alert{
			Type:     AlertNoTargets,
			Severity: "medium",
			Message:  fmt.Sprintf("none of %d target rows matched an area; target coverage is disabled", s.TargetRows),
			Details: map[string]any{
				"target_rows": s.TargetRows,
			},
			Timestamp: now,
		})
	}

	slices.SortStableFunc(alerts, func(a, b Alert) int {
		switch {
		case a.Type < b.Type:
			return -1
		case a.Type > b.Type:
			return 1
		}
		return 0
	})
	return alerts
}

// LogAlerts writes each alert as a warning.
func LogAlerts(alerts []Alert) {
	for _, a := range alerts {
		fields := []zap.Field{
			zap.String("type", string(a.Type)),
			zap.String("severity", a.Severity),
		}
		if len(a.Details) > 0 {
			fields = append(fields, zap.Any("details", a.Details))
		}
		zap.L().Warn("monitoring: "+a.Message, fields...)
	}
}
