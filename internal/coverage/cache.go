package coverage

import (
	"sort"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"
	"github.com/goccy/go-json"
	"github.com/rotisserie/eris"

	"github.com/sells-group/coverage-cli/internal/model"
	"github.com/sells-group/coverage-cli/internal/monitoring"
)

// DefaultCacheSize is the number of grids kept before the cache is cleared.
const DefaultCacheSize = 100

// Cache is a concurrent-safe map of computed coverage grids. When an insert
// would exceed capacity the entire map is cleared first; there is no
// per-entry eviction. Stored slices are shared with every reader and must not
// be modified.
type Cache struct {
	mu       sync.RWMutex
	entries  map[string][]model.CoveragePoint
	capacity int
	hits     atomic.Int64
	misses   atomic.Int64
	clears   atomic.Int64
	metrics  *monitoring.Metrics
}

// CacheStats contains cache performance statistics.
type CacheStats struct {
	Entries  int     `json:"entries"`
	Capacity int     `json:"capacity"`
	Hits     int64   `json:"hits"`
	Misses   int64   `json:"misses"`
	Clears   int64   `json:"clears"`
	HitRate  float64 `json:"hit_rate"`
}

// NewCache creates a Cache holding at most capacity grids.
func NewCache(capacity int, metrics *monitoring.Metrics) *Cache {
	if capacity <= 0 {
		capacity = DefaultCacheSize
	}
	return &Cache{
		entries:  make(map[string][]model.CoveragePoint),
		capacity: capacity,
		metrics:  metrics,
	}
}

// Get returns the grid stored under key.
func (c *Cache) Get(key string) ([]model.CoveragePoint, bool) {
	v, ok := c.peek(key)
	if ok {
		c.hits.Add(1)
		c.metrics.CacheHit()
	} else {
		c.misses.Add(1)
		c.metrics.CacheMiss()
	}
	return v, ok
}

// peek reads without touching hit/miss counters.
func (c *Cache) peek(key string) ([]model.CoveragePoint, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.entries[key]
	return v, ok
}

// Put stores a grid, clearing the whole cache first if it is full.
func (c *Cache) Put(key string, value []model.CoveragePoint) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[key]; !ok && len(c.entries) >= c.capacity {
		clear(c.entries)
		c.clears.Add(1)
		c.metrics.CacheCleared()
	}
	c.entries[key] = value
}

// Len returns the number of stored grids.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Clear drops every entry.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.entries)
}

// Stats returns cache performance statistics.
func (c *Cache) Stats() CacheStats {
	entries := c.Len()
	hits := c.hits.Load()
	misses := c.misses.Load()

	var hitRate float64
	if total := hits + misses; total > 0 {
		hitRate = float64(hits) / float64(total)
	}

	return CacheStats{
		Entries:  entries,
		Capacity: c.capacity,
		Hits:     hits,
		Misses:   misses,
		Clears:   c.clears.Load(),
		HitRate:  hitRate,
	}
}

// fingerprintKey is the canonical form hashed by Fingerprint. Field order is
// fixed by the struct, and list fields are sorted before encoding.
type fingerprintKey struct {
	City           string   `json:"city"`
	VendorCodes    []string `json:"vendor_codes"`
	RadiusMode     string   `json:"radius_mode"`
	RadiusModifier float64  `json:"radius_modifier"`
	RadiusFixed    float64  `json:"radius_fixed"`
	BusinessLines  []string `json:"business_lines"`
	CellMeters     float64  `json:"cell_meters"`
}

// Fingerprint derives the cache key for a request. It is independent of the
// order of vendors and business lines.
func Fingerprint(req Request) (string, error) {
	codes := make([]string, 0, len(req.Vendors))
	for _, v := range req.Vendors {
		codes = append(codes, v.Code)
	}
	sort.Strings(codes)

	lines := make([]string, len(req.BusinessLines))
	copy(lines, req.BusinessLines)
	sort.Strings(lines)

	cell := req.CellMeters
	if cell <= 0 {
		cell = DefaultCellMeters
	}

	b, err := json.Marshal(fingerprintKey{
		City:           req.City,
		VendorCodes:    codes,
		RadiusMode:     req.Radius.Mode,
		RadiusModifier: req.Radius.Modifier,
		RadiusFixed:    req.Radius.Fixed,
		BusinessLines:  lines,
		CellMeters:     cell,
	})
	if err != nil {
		return "", eris.Wrap(err, "coverage: encode fingerprint")
	}
	return strconv.FormatUint(xxhash.Sum64(b), 16), nil
}
