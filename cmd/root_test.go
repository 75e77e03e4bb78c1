package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}

	for _, name := range []string{"serve", "coverage", "heatmap", "layers"} {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "coverage-cli", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestServeCommand_Flags(t *testing.T) {
	flag := serveCmd.Flags().Lookup("port")
	require.NotNil(t, flag, "serve command should have --port flag")
	assert.Equal(t, "0", flag.DefValue)
}

func TestQueryCommands_Flags(t *testing.T) {
	for _, name := range []string{"city", "start-date", "end-date", "business-line", "radius-mode", "area-display", "output"} {
		assert.NotNil(t, coverageCmd.Flags().Lookup(name), "coverage should have --%s flag", name)
		assert.NotNil(t, heatmapCmd.Flags().Lookup(name), "heatmap should have --%s flag", name)
	}

	kind := heatmapCmd.Flags().Lookup("kind")
	require.NotNil(t, kind)
	assert.Equal(t, "order_density", kind.DefValue)
}

func TestLayersCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range layersCmd.Commands() {
		names[c.Name()] = true
	}
	assert.True(t, names["list"])
	assert.True(t, names["import"])

	flag := layersImportCmd.Flags().Lookup("migrate")
	require.NotNil(t, flag)
	assert.Equal(t, "true", flag.DefValue)
}
