package main

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/coverage-cli/internal/api"
	"github.com/sells-group/coverage-cli/internal/config"
	"github.com/sells-group/coverage-cli/internal/coverage"
	"github.com/sells-group/coverage-cli/internal/dataset"
	"github.com/sells-group/coverage-cli/internal/db"
	"github.com/sells-group/coverage-cli/internal/heatmap"
	"github.com/sells-group/coverage-cli/internal/layer"
	"github.com/sells-group/coverage-cli/internal/model"
	"github.com/sells-group/coverage-cli/internal/monitoring"
	"github.com/sells-group/coverage-cli/internal/resilience"
	"github.com/sells-group/coverage-cli/internal/store"
)

// engineEnv holds the loaded snapshot and the engines built over it, as
// needed by the serve/coverage/heatmap commands.
type engineEnv struct {
	Snapshot *dataset.Snapshot
	Service  *api.Service
	Metrics  *monitoring.Metrics
	Registry *prometheus.Registry
	Pool     *pgxpool.Pool // nil without a database
}

// Close releases resources held by the environment.
func (e *engineEnv) Close() {
	if e.Pool != nil {
		e.Pool.Close()
	}
}

// initEngine loads tables and layers, then builds the coverage engine, the
// heatmap pipeline and the query service. Callers should defer env.Close().
func initEngine(ctx context.Context) (*engineEnv, error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	env := &engineEnv{Registry: reg, Metrics: monitoring.NewMetrics(reg)}

	loader := &dataset.Loader{CityIDs: cfg.CityIDs, Metrics: env.Metrics}
	tables, err := loader.Load(ctx, cfg.Data)
	if err != nil {
		return nil, err
	}

	layers := &layer.Loader{}
	if cfg.Store.DatabaseURL != "" {
		pool, err := initPool(ctx)
		if err != nil {
			return nil, err
		}
		env.Pool = pool
		layers.Source = store.NewAreaStore(pool, cfg.Store.AreaTable)
	}
	areas, err := layers.LoadAll(ctx, cfg.Layers)
	if err != nil {
		env.Close()
		return nil, err
	}

	targetAreas := areas[dataset.LayerKey{Layer: cfg.Coverage.TargetLayer, City: cfg.Coverage.TargetCity}]
	targets := coverage.BuildTargetLookup(tables.Targets, targetAreas)

	env.Snapshot = dataset.NewSnapshot(tables.Vendors, tables.Orders, areas, targets, config.MarketingLayer)

	method, err := heatmap.ParseMethod(cfg.Heatmap.Method)
	if err != nil {
		env.Close()
		return nil, err
	}

	engine := coverage.NewEngine(coverage.EngineOptions{
		Cities:     cfg.Cities,
		Resolvers:  env.Snapshot.CoverageResolvers(),
		Targets:    targets,
		TargetCity: cfg.Coverage.TargetCity,
		BatchSize:  cfg.Coverage.BatchSize,
		CacheSize:  cfg.Coverage.CacheSize,
		Metrics:    env.Metrics,
	})

	env.Service = api.NewService(api.Options{
		Snapshot:   env.Snapshot,
		Engine:     engine,
		Heatmaps:   heatmap.NewPipeline(method, cfg.Heatmap.FallbackPrecision, env.Metrics),
		CityIDs:    cfg.CityIDs,
		CellMeters: cfg.Coverage.CellMeters,
		Zoom:       cfg.Heatmap.ZoomLevel,
		Metrics:    env.Metrics,
	})

	alerts := monitoring.Evaluate(loadSummary(tables, areas, len(targets)))
	monitoring.LogAlerts(alerts)
	env.Metrics.RecordAlerts(alerts)

	zap.L().Info("engine ready",
		zap.Int("vendors", len(tables.Vendors)),
		zap.Int("orders", len(tables.Orders)),
		zap.Int("layers", len(areas)),
		zap.Int("targets", len(targets)),
	)
	return env, nil
}

// initPool connects to the area store, retrying while the database is
// unreachable or still starting.
func initPool(ctx context.Context) (*pgxpool.Pool, error) {
	backoff := resilience.DefaultBackoff().WithAttempts(
		cfg.Store.ConnectAttempts,
		time.Duration(cfg.Store.ConnectBackoffMs)*time.Millisecond,
	)
	pool, err := resilience.Retry(ctx, backoff, "connect", func(ctx context.Context) (*pgxpool.Pool, error) {
		return db.Connect(ctx, cfg.Store.DatabaseURL, db.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	})
	if err != nil {
		return nil, eris.Wrap(err, "connect to area store")
	}
	return pool, nil
}

func loadSummary(tables *dataset.Tables, areas map[dataset.LayerKey][]model.Area, targets int) monitoring.LoadSummary {
	s := monitoring.LoadSummary{
		Vendors:    len(tables.Vendors),
		Orders:     len(tables.Orders),
		TargetRows: len(tables.Targets),
		Targets:    targets,
	}
	for _, v := range tables.Vendors {
		if !v.HasLocation() {
			s.UnlocatedVendors++
		}
	}
	for _, o := range tables.Orders {
		if _, _, ok := o.Location(); !ok {
			s.UnlocatedOrders++
		}
	}
	for _, l := range cfg.Layers {
		s.Layers = append(s.Layers, monitoring.LayerCount{
			Layer: l.Name,
			City:  l.City,
			Areas: len(areas[dataset.LayerKey{Layer: l.Name, City: l.City}]),
		})
	}
	return s
}
