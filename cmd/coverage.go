package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var coverageFlags queryFlags

var coverageCmd = &cobra.Command{
	Use:   "coverage",
	Short: "Print the coverage grid for a vendor selection",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initEngine(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		q, err := coverageFlags.query(env.Service.DefaultZoom())
		if err != nil {
			return err
		}
		points, err := env.Service.CoverageGrid(q)
		if err != nil {
			return err
		}

		zap.L().Info("coverage grid computed", zap.String("city", q.City), zap.Int("points", len(points)))
		return writeOutput(cmd.OutOrStdout(), coverageFlags.output, points)
	},
}

func init() {
	coverageFlags.register(coverageCmd)
	rootCmd.AddCommand(coverageCmd)
}
