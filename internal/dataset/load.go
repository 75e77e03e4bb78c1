package dataset

import (
	"context"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/coverage-cli/internal/config"
	"github.com/sells-group/coverage-cli/internal/model"
	"github.com/sells-group/coverage-cli/internal/monitoring"
	"github.com/sells-group/coverage-cli/internal/tabular"
)

// Loader reads the tabular inputs of a snapshot.
type Loader struct {
	CityIDs map[string]string // city_id -> city name
	Metrics *monitoring.Metrics
}

// Tables is the tabular part of a snapshot.
type Tables struct {
	Vendors []model.Vendor
	Orders  []model.Order
	Targets []model.TargetRow
}

// Load reads every configured file concurrently. A missing or unreadable
// file is logged and yields an empty table, and missing grades leave every
// vendor Ungraded; only context cancellation is returned as an error.
func (l *Loader) Load(ctx context.Context, paths config.DataConfig) (*Tables, error) {
	var (
		t      Tables
		grades map[string]string
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		t.Vendors, err = readFile(gctx, paths.VendorsPath, l.ReadVendors)
		return soft(gctx, "vendors", paths.VendorsPath, err)
	})
	g.Go(func() error {
		var err error
		t.Orders, err = readFile(gctx, paths.OrdersPath, l.ReadOrders)
		return soft(gctx, "orders", paths.OrdersPath, err)
	})
	g.Go(func() error {
		var err error
		grades, err = readFile(gctx, paths.GradedPath, ReadGrades)
		return soft(gctx, "grades", paths.GradedPath, err)
	})
	g.Go(func() error {
		var err error
		t.Targets, err = readFile(gctx, paths.TargetsPath, ReadTargets)
		return soft(gctx, "targets", paths.TargetsPath, err)
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	MergeGrades(t.Vendors, grades)
	zap.L().Info("dataset: loaded tables",
		zap.Int("vendors", len(t.Vendors)),
		zap.Int("orders", len(t.Orders)),
		zap.Int("graded", len(grades)),
		zap.Int("target_rows", len(t.Targets)),
	)
	return &t, nil
}

func readFile[T any](ctx context.Context, path string, read func(context.Context, io.Reader) (T, error)) (T, error) {
	var zero T
	if path == "" {
		return zero, eris.New("dataset: no path configured")
	}
	f, err := os.Open(path)
	if err != nil {
		return zero, eris.Wrapf(err, "dataset: open %s", path)
	}
	defer f.Close() //nolint:errcheck
	return read(ctx, f)
}

func soft(ctx context.Context, table, path string, err error) error {
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return eris.Wrap(ctx.Err(), "dataset: load cancelled")
	}
	zap.L().Warn("dataset: table unavailable, using empty table",
		zap.String("table", table),
		zap.String("path", path),
		zap.Error(err),
	)
	return nil
}

// ReadVendors parses the vendor table. The radius as loaded is kept as both
// the effective and the original radius.
func (l *Loader) ReadVendors(ctx context.Context, r io.Reader) ([]model.Vendor, error) {
	var out []model.Vendor
	_, err := tabular.Each(ctx, r, func(row tabular.Row) error {
		radius := row.FloatPtr("radius")
		v := model.Vendor{
			Code:           vendorCode(row.Get("vendor_code")),
			Name:           row.Get("vendor_name"),
			City:           l.city(row),
			Latitude:       row.Float("latitude"),
			Longitude:      row.Float("longitude"),
			Radius:         radius,
			OriginalRadius: copyFloat(radius),
			BusinessLine:   row.Get("business_line"),
			Grade:          row.Get("grade"),
			StatusID:       row.IntPtr("status_id"),
			Visible:        row.BoolPtr("visible"),
			Open:           row.BoolPtr("open"),
		}
		out = append(out, v)
		return nil
	})
	if err != nil {
		return nil, eris.Wrap(err, "dataset: read vendors")
	}
	return out, nil
}

// ReadOrders parses the order table. Rows with an unparseable timestamp keep
// a zero CreatedAt and are excluded by any date filter.
func (l *Loader) ReadOrders(ctx context.Context, r io.Reader) ([]model.Order, error) {
	var (
		out     []model.Order
		badTime int
	)
	_, err := tabular.Each(ctx, r, func(row tabular.Row) error {
		created, ok := ParseTime(row.Get("created_at"))
		if !ok {
			badTime++
		}
		out = append(out, model.Order{
			Latitude:      row.FloatPtr("customer_latitude"),
			Longitude:     row.FloatPtr("customer_longitude"),
			City:          l.city(row),
			BusinessLine:  row.Get("business_line"),
			Organic:       row.BoolPtr("organic"),
			UserID:        row.Get("user_id"),
			VendorCode:    vendorCode(row.Get("vendor_code")),
			MarketingArea: row.Get("marketing_area"),
			CreatedAt:     created,
		})
		return nil
	})
	if err != nil {
		return nil, eris.Wrap(err, "dataset: read orders")
	}
	if badTime > 0 {
		zap.L().Debug("dataset: orders without a valid created_at", zap.Int("count", badTime))
		l.Metrics.Dropped("order_timestamps", badTime)
	}
	return out, nil
}

// ReadGrades parses the vendor_code,grade table.
func ReadGrades(ctx context.Context, r io.Reader) (map[string]string, error) {
	out := make(map[string]string)
	h, err := tabular.Each(ctx, r, func(row tabular.Row) error {
		code := vendorCode(row.Get("vendor_code"))
		if code == "" {
			return nil
		}
		out[code] = row.Get("grade")
		return nil
	})
	if err != nil {
		return nil, eris.Wrap(err, "dataset: read grades")
	}
	if !h.Has("vendor_code") || !h.Has("grade") {
		return nil, eris.New("dataset: grades table needs vendor_code and grade columns")
	}
	return out, nil
}

// MergeGrades sets each vendor's grade from grades, in place. Vendors without
// a grade become model.UngradedGrade.
func MergeGrades(vendors []model.Vendor, grades map[string]string) {
	for i := range vendors {
		if g, ok := grades[vendors[i].Code]; ok && g != "" {
			vendors[i].Grade = g
		}
		if vendors[i].Grade == "" {
			vendors[i].Grade = model.UngradedGrade
		}
	}
}

// ReadTargets parses the wide target table: a marketing_area column and one
// column per business line.
func ReadTargets(ctx context.Context, r io.Reader) ([]model.TargetRow, error) {
	var out []model.TargetRow
	h, err := tabular.Each(ctx, r, func(row tabular.Row) error {
		tr := model.TargetRow{
			MarketingArea: row.Get("marketing_area"),
			Values:        make(map[string]*float64),
		}
		for _, col := range row.Header.Names {
			if col == "marketing_area" || col == "" {
				continue
			}
			tr.Values[col] = row.FloatPtr(col)
		}
		out = append(out, tr)
		return nil
	})
	if err != nil {
		return nil, eris.Wrap(err, "dataset: read targets")
	}
	if !h.Has("marketing_area") {
		return nil, eris.New("dataset: targets table has no marketing_area column")
	}
	return out, nil
}

func (l *Loader) city(row tabular.Row) string {
	if name := row.Get("city_name"); name != "" {
		return name
	}
	id := row.Get("city_id")
	if f, err := strconv.ParseFloat(id, 64); err == nil && f == math.Trunc(f) {
		id = strconv.FormatInt(int64(f), 10)
	}
	return l.CityIDs[id]
}

// vendorCode normalizes the text form of a code, treating the empty markers
// of exported tables as missing.
func vendorCode(s string) string {
	switch strings.ToLower(s) {
	case "", "nan", "none", "null", "<na>":
		return ""
	}
	return s
}

func copyFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04",
	"2006-01-02",
}

// ParseTime parses an order timestamp. Zone offsets are dropped, keeping the
// wall-clock time, so all timestamps compare as naive UTC times.
func ParseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timeLayouts {
		t, err := time.Parse(layout, s)
		if err != nil {
			continue
		}
		y, m, d := t.Date()
		hh, mm, ss := t.Clock()
		return time.Date(y, m, d, hh, mm, ss, t.Nanosecond(), time.UTC), true
	}
	return time.Time{}, false
}
