package geo

import (
	"github.com/sells-group/coverage-cli/internal/model"
)

// AreaStats is an area with the vendor and user statistics of a request.
type AreaStats struct {
	model.Area
	VendorCount          int            `json:"vendor_count"`
	GradeCounts          map[string]int `json:"grade_counts"`
	UniqueUserCount      int            `json:"unique_user_count"`
	TotalUniqueUserCount int            `json:"total_unique_user_count"`
	VendorPer10kPop      *float64       `json:"vendor_per_10k_pop,omitempty"`
}

// Enrich counts, per area, the vendors located inside it (total and by
// grade), the distinct users among filtered orders, and the distinct users
// among all of the city's orders. A point inside overlapping areas counts
// toward each of them. VendorPer10kPop is set for every area when any area of
// the layer has a population; a missing or non-positive population gives 0.
func Enrich(r *Resolver, vendors []model.Vendor, filtered, cityOrders []model.Order) []AreaStats {
	n := r.Len()
	out := make([]AreaStats, n)
	for i, a := range r.Areas() {
		out[i].Area = a
	}

	for _, v := range vendors {
		if !v.HasLocation() {
			continue
		}
		for _, i := range r.ResolveAll(v.Latitude, v.Longitude) {
			out[i].VendorCount++
			if v.Grade == "" {
				continue
			}
			if out[i].GradeCounts == nil {
				out[i].GradeCounts = make(map[string]int)
			}
			out[i].GradeCounts[v.Grade]++
		}
	}

	for i, c := range uniqueUsers(r, filtered) {
		out[i].UniqueUserCount = c
	}
	for i, c := range uniqueUsers(r, cityOrders) {
		out[i].TotalUniqueUserCount = c
	}

	if !hasPopulation(out) {
		return out
	}
	for i := range out {
		ratio := 0.0
		if pop := out[i].Population; pop != nil && *pop > 0 {
			ratio = float64(out[i].VendorCount) / *pop * 10000
		}
		out[i].VendorPer10kPop = &ratio
	}
	return out
}

func hasPopulation(stats []AreaStats) bool {
	for _, s := range stats {
		if s.Population != nil {
			return true
		}
	}
	return false
}

// uniqueUsers counts distinct non-empty user IDs per area position.
func uniqueUsers(r *Resolver, orders []model.Order) map[int]int {
	seen := make(map[int]map[string]struct{})
	for _, o := range orders {
		if o.UserID == "" {
			continue
		}
		lat, lng, ok := o.Location()
		if !ok {
			continue
		}
		for _, i := range r.ResolveAll(lat, lng) {
			users, ok := seen[i]
			if !ok {
				users = make(map[string]struct{})
				seen[i] = users
			}
			users[o.UserID] = struct{}{}
		}
	}
	counts := make(map[int]int, len(seen))
	for i, users := range seen {
		counts[i] = len(users)
	}
	return counts
}
