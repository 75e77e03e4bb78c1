package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	heatmapFlags queryFlags
	heatmapKind  string
)

var heatmapCmd = &cobra.Command{
	Use:   "heatmap",
	Short: "Print an order, user or population heatmap",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initEngine(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		q, err := heatmapFlags.query(env.Service.DefaultZoom())
		if err != nil {
			return err
		}
		q.HeatmapKind = heatmapKind

		hm := env.Service.Heatmap(q)
		zap.L().Info("heatmap generated", zap.String("kind", hm.Kind), zap.Int("points", len(hm.Points)))
		return writeOutput(cmd.OutOrStdout(), heatmapFlags.output, hm)
	},
}

func init() {
	heatmapFlags.register(heatmapCmd)
	heatmapCmd.Flags().StringVar(&heatmapKind, "kind", "order_density",
		"order_density, order_density_organic, order_density_non_organic, user_density or population")
	rootCmd.AddCommand(heatmapCmd)
}
