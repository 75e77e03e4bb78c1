package layer

import (
	"context"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/coverage-cli/internal/config"
	"github.com/sells-group/coverage-cli/internal/dataset"
	"github.com/sells-group/coverage-cli/internal/model"
)

// Format names accepted in layer configuration.
const (
	FormatWKTCSV    = "wkt_csv"
	FormatShapefile = "shapefile"
	FormatPostGIS   = "postgis"
)

// Source provides layers stored in a database.
type Source interface {
	Areas(ctx context.Context, city, layer string) ([]model.Area, error)
}

// Loader loads configured layers.
type Loader struct {
	Source      Source // required for postgis layers
	Concurrency int
}

// LoadAll loads every layer concurrently. A layer that fails to load is
// logged and registered empty, so lookups against it resolve nothing.
// Only context cancellation is returned as an error.
func (l *Loader) LoadAll(ctx context.Context, layers []config.LayerConfig) (map[dataset.LayerKey][]model.Area, error) {
	results := make([][]model.Area, len(layers))

	g, gctx := errgroup.WithContext(ctx)
	limit := l.Concurrency
	if limit <= 0 {
		limit = 4
	}
	g.SetLimit(limit)

	for i, lc := range layers {
		g.Go(func() error {
			log := zap.L().With(zap.String("layer", lc.Name), zap.String("city", lc.City))
			start := time.Now()

			areas, err := l.Load(gctx, lc)
			if err != nil {
				if gctx.Err() != nil {
					return eris.Wrap(gctx.Err(), "layer: load cancelled")
				}
				log.Warn("layer: failed to load, using empty layer", zap.String("path", lc.Path), zap.Error(err))
				areas = []model.Area{}
			}
			results[i] = areas
			log.Info("layer: loaded", zap.Int("areas", len(areas)), zap.Duration("elapsed", time.Since(start)))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make(map[dataset.LayerKey][]model.Area, len(layers))
	for i, lc := range layers {
		key := dataset.LayerKey{Layer: lc.Name, City: lc.City}
		out[key] = append(out[key], results[i]...)
	}
	return out, nil
}

// Load reads a single layer.
func (l *Loader) Load(ctx context.Context, lc config.LayerConfig) ([]model.Area, error) {
	switch lc.Format {
	case FormatWKTCSV, "":
		f, err := os.Open(lc.Path)
		if err != nil {
			return nil, eris.Wrapf(err, "layer: open %s", lc.Path)
		}
		defer f.Close() //nolint:errcheck
		return LoadWKTCSV(ctx, f, lc.City, lc.Name)
	case FormatShapefile:
		return LoadShapefile(lc.Path, lc.City, lc.Name, lc.NameFields)
	case FormatPostGIS:
		if l.Source == nil {
			return nil, eris.New("layer: postgis layer configured without a database")
		}
		return l.Source.Areas(ctx, lc.City, lc.Name)
	default:
		return nil, eris.Errorf("layer: unknown format %q", lc.Format)
	}
}
