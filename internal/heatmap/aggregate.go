// Package heatmap turns raw order events into normalized heatmap intensities.
package heatmap

import (
	"math"
	"sort"

	"github.com/sells-group/coverage-cli/internal/model"
)

// Cell is one rounded-coordinate bucket of events.
type Cell struct {
	Lat    float64 `json:"lat"`
	Lng    float64 `json:"lng"`
	Sum    float64 `json:"sum"`
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	Unique int     `json:"unique"`
	Value  float64 `json:"value"`
}

// OrderPrecision returns the coordinate decimals used to bucket orders at a
// map zoom level.
func OrderPrecision(zoom float64) int {
	switch {
	case zoom >= 16:
		return 5
	case zoom >= 14:
		return 4
	case zoom >= 12:
		return 3
	case zoom >= 10:
		return 2
	default:
		return 1
	}
}

// UserPrecision returns the coordinate decimals used to bucket users. It is
// never coarser than two decimals.
func UserPrecision(zoom float64) int {
	switch {
	case zoom >= 16:
		return 5
	case zoom >= 14:
		return 4
	case zoom >= 12:
		return 3
	default:
		return 2
	}
}

type cellKey struct{ lat, lng int64 }

// scaled rounds x half-to-even at the given decimals and returns it as an
// integer multiple of 10^-decimals.
func scaled(x float64, decimals int) int64 {
	return int64(math.RoundToEven(x * math.Pow10(decimals)))
}

type bucket struct {
	count int
	users map[string]struct{}
}

// group buckets located orders by rounded coordinates. Orders without
// coordinates are skipped. Keys are returned sorted by (lat, lng).
func group(orders []model.Order, decimals int, trackUsers bool) ([]cellKey, map[cellKey]*bucket) {
	buckets := make(map[cellKey]*bucket)
	for _, o := range orders {
		lat, lng, ok := o.Location()
		if !ok {
			continue
		}
		k := cellKey{lat: scaled(lat, decimals), lng: scaled(lng, decimals)}
		b, ok := buckets[k]
		if !ok {
			b = &bucket{}
			if trackUsers {
				b.users = make(map[string]struct{})
			}
			buckets[k] = b
		}
		b.count++
		if trackUsers && o.UserID != "" {
			b.users[o.UserID] = struct{}{}
		}
	}

	keys := make([]cellKey, 0, len(buckets))
	for k := range buckets {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].lat != keys[j].lat {
			return keys[i].lat < keys[j].lat
		}
		return keys[i].lng < keys[j].lng
	})
	return keys, buckets
}

func unscale(v int64, decimals int) float64 {
	return float64(v) / math.Pow10(decimals)
}

// CountOrders buckets orders at a fixed precision with a weight of one per
// order. Value is the raw order count.
func CountOrders(orders []model.Order, decimals int) []Cell {
	keys, buckets := group(orders, decimals, false)
	out := make([]Cell, 0, len(keys))
	for _, k := range keys {
		n := buckets[k].count
		out = append(out, Cell{
			Lat:   unscale(k.lat, decimals),
			Lng:   unscale(k.lng, decimals),
			Sum:   float64(n),
			Count: n,
			Mean:  1,
			Value: float64(n),
		})
	}
	return out
}

// CountUsers buckets orders at a fixed precision and counts distinct
// non-empty user IDs. Value is the raw distinct count.
func CountUsers(orders []model.Order, decimals int) []Cell {
	keys, buckets := group(orders, decimals, true)
	out := make([]Cell, 0, len(keys))
	for _, k := range keys {
		b := buckets[k]
		out = append(out, Cell{
			Lat:    unscale(k.lat, decimals),
			Lng:    unscale(k.lng, decimals),
			Count:  b.count,
			Unique: len(b.users),
			Value:  float64(len(b.users)),
		})
	}
	return out
}

// AggregateOrders buckets orders at the zoom's order precision. Multi-order
// cells are boosted over single-order cells: Value = Sum * (1 + 0.1*ln(1+Count)).
func AggregateOrders(orders []model.Order, zoom float64) []Cell {
	cells := CountOrders(orders, OrderPrecision(zoom))
	for i := range cells {
		c := &cells[i]
		c.Value = c.Sum * (1 + 0.1*math.Log1p(float64(c.Count)))
	}
	return cells
}

// AggregateUsers buckets orders at the zoom's user precision.
// Value = 10 * ln(1+distinct users).
func AggregateUsers(orders []model.Order, zoom float64) []Cell {
	cells := CountUsers(orders, UserPrecision(zoom))
	for i := range cells {
		cells[i].Value = math.Log1p(float64(cells[i].Unique)) * 10
	}
	return cells
}
