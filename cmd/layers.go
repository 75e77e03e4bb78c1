package main

import (
	"slices"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/coverage-cli/internal/config"
	"github.com/sells-group/coverage-cli/internal/dataset"
	"github.com/sells-group/coverage-cli/internal/layer"
	"github.com/sells-group/coverage-cli/internal/model"
	"github.com/sells-group/coverage-cli/internal/store"
)

var (
	layersOutput  string
	importMigrate bool
)

var layersCmd = &cobra.Command{
	Use:   "layers",
	Short: "Inspect and import polygon layers",
}

// layerSummary is one row of `layers list`.
type layerSummary struct {
	Layer     string `json:"layer"`
	City      string `json:"city"`
	Areas     int    `json:"areas"`
	Populated int    `json:"populated"`
}

var layersListCmd = &cobra.Command{
	Use:   "list",
	Short: "Load the configured layers and print their sizes",
	RunE: func(cmd *cobra.Command, args []string) error {
		loader := &layer.Loader{}
		if cfg.Store.DatabaseURL != "" {
			pool, err := initPool(cmd.Context())
			if err != nil {
				return err
			}
			defer pool.Close()
			loader.Source = store.NewAreaStore(pool, cfg.Store.AreaTable)
		}

		areas, err := loader.LoadAll(cmd.Context(), cfg.Layers)
		if err != nil {
			return err
		}
		return writeOutput(cmd.OutOrStdout(), layersOutput, summarize(areas))
	},
}

var layersImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Upsert the file-based layers into the PostGIS area table",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.Store.DatabaseURL == "" {
			return eris.New("layers import: store.database_url is not set")
		}
		ctx := cmd.Context()

		pool, err := initPool(ctx)
		if err != nil {
			return err
		}
		defer pool.Close()
		st := store.NewAreaStore(pool, cfg.Store.AreaTable)

		if importMigrate {
			if err := st.Migrate(ctx); err != nil {
				return err
			}
		}

		areas, err := (&layer.Loader{}).LoadAll(ctx, fileLayers(cfg.Layers))
		if err != nil {
			return err
		}

		var all []model.Area
		for _, s := range summarize(areas) {
			all = append(all, areas[dataset.LayerKey{Layer: s.Layer, City: s.City}]...)
		}
		n, err := st.Import(ctx, all)
		if err != nil {
			return err
		}

		zap.L().Info("layers imported",
			zap.String("table", cfg.Store.AreaTable),
			zap.Int("areas", len(all)),
			zap.Int64("rows_affected", n),
		)
		return nil
	},
}

// fileLayers drops layers that are already read from PostGIS.
func fileLayers(layers []config.LayerConfig) []config.LayerConfig {
	var out []config.LayerConfig
	for _, l := range layers {
		if l.Format != layer.FormatPostGIS {
			out = append(out, l)
		}
	}
	return out
}

// summarize returns one row per loaded layer and city, ordered by layer
// then city.
func summarize(areas map[dataset.LayerKey][]model.Area) []layerSummary {
	out := make([]layerSummary, 0, len(areas))
	for k, list := range areas {
		s := layerSummary{Layer: k.Layer, City: k.City, Areas: len(list)}
		for _, a := range list {
			if a.Population != nil {
				s.Populated++
			}
		}
		out = append(out, s)
	}
	slices.SortFunc(out, func(a, b layerSummary) int {
		if c := strings.Compare(a.Layer, b.Layer); c != 0 {
			return c
		}
		return strings.Compare(a.City, b.City)
	})
	return out
}

func init() {
	layersListCmd.Flags().StringVarP(&layersOutput, "output", "o", "yaml", "output format: json or yaml")
	layersImportCmd.Flags().BoolVar(&importMigrate, "migrate", true, "create the area table when missing")
	layersCmd.AddCommand(layersListCmd, layersImportCmd)
	rootCmd.AddCommand(layersCmd)
}
