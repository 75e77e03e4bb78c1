package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Log      LogConfig             `yaml:"log" mapstructure:"log"`
	Server   ServerConfig          `yaml:"server" mapstructure:"server"`
	Store    StoreConfig           `yaml:"store" mapstructure:"store"`
	Data     DataConfig            `yaml:"data" mapstructure:"data"`
	Cities   map[string]CityBounds `yaml:"cities" mapstructure:"cities"`
	CityIDs  map[string]string     `yaml:"city_ids" mapstructure:"city_ids"`
	Layers   []LayerConfig         `yaml:"layers" mapstructure:"layers"`
	Coverage CoverageConfig        `yaml:"coverage" mapstructure:"coverage"`
	Heatmap  HeatmapConfig         `yaml:"heatmap" mapstructure:"heatmap"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port            int      `yaml:"port" mapstructure:"port"`
	ReadTimeoutSecs int      `yaml:"read_timeout_secs" mapstructure:"read_timeout_secs"`
	CORSOrigins     []string `yaml:"cors_origins" mapstructure:"cors_origins"`
	// RateLimit caps /api requests per second across all clients; 0 disables it.
	RateLimit float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
	RateBurst int     `yaml:"rate_burst" mapstructure:"rate_burst"`
}

// StoreConfig configures the optional PostGIS polygon source.
type StoreConfig struct {
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	AreaTable   string `yaml:"area_table" mapstructure:"area_table"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`

	// ConnectAttempts bounds connection attempts at startup.
	ConnectAttempts  int `yaml:"connect_attempts" mapstructure:"connect_attempts"`
	ConnectBackoffMs int `yaml:"connect_backoff_ms" mapstructure:"connect_backoff_ms"`
}

// DataConfig points at the tabular inputs loaded at startup.
type DataConfig struct {
	VendorsPath string `yaml:"vendors_path" mapstructure:"vendors_path"`
	OrdersPath  string `yaml:"orders_path" mapstructure:"orders_path"`
	GradedPath  string `yaml:"graded_path" mapstructure:"graded_path"`
	TargetsPath string `yaml:"targets_path" mapstructure:"targets_path"`
}

// CityBounds is the approximate bounding box used for grid generation.
type CityBounds struct {
	MinLat float64 `yaml:"min_lat" mapstructure:"min_lat"`
	MaxLat float64 `yaml:"max_lat" mapstructure:"max_lat"`
	MinLng float64 `yaml:"min_lng" mapstructure:"min_lng"`
	MaxLng float64 `yaml:"max_lng" mapstructure:"max_lng"`
}

// LayerConfig describes one polygon layer to load.
type LayerConfig struct {
	Name       string   `yaml:"name" mapstructure:"name"`
	City       string   `yaml:"city" mapstructure:"city"`
	Format     string   `yaml:"format" mapstructure:"format"` // wkt_csv, shapefile, postgis
	Path       string   `yaml:"path" mapstructure:"path"`
	NameFields []string `yaml:"name_fields" mapstructure:"name_fields"`
}

// CoverageConfig tunes the coverage-grid engine.
type CoverageConfig struct {
	CellMeters      float64 `yaml:"cell_meters" mapstructure:"cell_meters"`
	BatchSize       int     `yaml:"batch_size" mapstructure:"batch_size"`
	CacheSize       int     `yaml:"cache_size" mapstructure:"cache_size"`
	TargetCity      string  `yaml:"target_city" mapstructure:"target_city"`
	TargetLayer     string  `yaml:"target_layer" mapstructure:"target_layer"`
	DefaultRadiusKM float64 `yaml:"default_radius_km" mapstructure:"default_radius_km"`
}

// HeatmapConfig tunes the heatmap pipeline.
type HeatmapConfig struct {
	ZoomLevel         float64 `yaml:"zoom_level" mapstructure:"zoom_level"`
	Method            string  `yaml:"method" mapstructure:"method"`
	FallbackPrecision int     `yaml:"fallback_precision" mapstructure:"fallback_precision"`
}

// MarketingLayer is the layer name shared by the per-city marketing areas.
const MarketingLayer = "tapsifood_marketing_areas"

// DefaultCities returns the built-in city bounding boxes.
func DefaultCities() map[string]CityBounds {
	return map[string]CityBounds{
		"tehran":  {MinLat: 35.5, MaxLat: 35.85, MinLng: 51.1, MaxLng: 51.7},
		"mashhad": {MinLat: 36.15, MaxLat: 36.45, MinLng: 59.35, MaxLng: 59.8},
		"shiraz":  {MinLat: 29.5, MaxLat: 29.75, MinLng: 52.4, MaxLng: 52.7},
	}
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("COVERAGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 5001)
	v.SetDefault("server.read_timeout_secs", 30)
	v.SetDefault("server.rate_burst", 20)
	v.SetDefault("store.area_table", "geo.marketing_areas")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 1)
	v.SetDefault("store.connect_attempts", 5)
	v.SetDefault("store.connect_backoff_ms", 500)
	v.SetDefault("data.vendors_path", "src/data/vendors.csv")
	v.SetDefault("data.orders_path", "src/data/orders.csv")
	v.SetDefault("data.graded_path", "src/data/graded.csv")
	v.SetDefault("data.targets_path", "src/targets/tehran_coverage.csv")
	v.SetDefault("cities", defaultCitiesMap())
	v.SetDefault("city_ids", map[string]string{"1": "mashhad", "2": "tehran", "5": "shiraz"})
	v.SetDefault("layers", defaultLayers())
	v.SetDefault("coverage.cell_meters", 200.0)
	v.SetDefault("coverage.batch_size", 100)
	v.SetDefault("coverage.cache_size", 100)
	v.SetDefault("coverage.target_city", "tehran")
	v.SetDefault("coverage.target_layer", MarketingLayer)
	v.SetDefault("coverage.default_radius_km", 3.0)
	v.SetDefault("heatmap.zoom_level", 11.0)
	v.SetDefault("heatmap.method", "robust")
	v.SetDefault("heatmap.fallback_precision", 4)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings the engines depend on.
func (c *Config) Validate() error {
	if c.Coverage.CellMeters <= 0 {
		return eris.New("config: coverage.cell_meters must be positive")
	}
	if c.Coverage.BatchSize <= 0 {
		return eris.New("config: coverage.batch_size must be positive")
	}
	if c.Coverage.CacheSize <= 0 {
		return eris.New("config: coverage.cache_size must be positive")
	}
	switch c.Heatmap.Method {
	case "robust", "zscore":
	default:
		return eris.Errorf("config: unknown heatmap.method %q", c.Heatmap.Method)
	}
	for name, b := range c.Cities {
		if b.MinLat >= b.MaxLat || b.MinLng >= b.MaxLng {
			return eris.Errorf("config: city %q has an empty bounding box", name)
		}
	}
	for _, l := range c.Layers {
		switch l.Format {
		case "wkt_csv", "shapefile", "postgis":
		default:
			return eris.Errorf("config: layer %q has unknown format %q", l.Name, l.Format)
		}
	}
	return nil
}

func defaultCitiesMap() map[string]any {
	out := make(map[string]any)
	for name, b := range DefaultCities() {
		out[name] = map[string]any{
			"min_lat": b.MinLat, "max_lat": b.MaxLat,
			"min_lng": b.MinLng, "max_lng": b.MaxLng,
		}
	}
	return out
}

func defaultLayers() []map[string]any {
	layers := []map[string]any{}
	for _, city := range []string{"mashhad", "tehran", "shiraz"} {
		layers = append(layers, map[string]any{
			"name":   MarketingLayer,
			"city":   city,
			"format": "wkt_csv",
			"path":   "src/polygons/tapsifood_marketing_areas/" + city + "_polygons.csv",
		})
	}
	layers = append(layers,
		map[string]any{
			"name":        "tehran_region_districts",
			"city":        "tehran",
			"format":      "shapefile",
			"path":        "src/polygons/tehran_districts/RegionTehran_WGS1984.shp",
			"name_fields": []string{"Name"},
		},
		map[string]any{
			"name":        "tehran_main_districts",
			"city":        "tehran",
			"format":      "shapefile",
			"path":        "src/polygons/tehran_districts/Tehran_WGS1984.shp",
			"name_fields": []string{"NAME_MAHAL"},
		},
	)
	return layers
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
