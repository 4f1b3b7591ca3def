package cliconfig

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bft-labs/flightrec/pkg/flightrec"
	"github.com/bft-labs/flightrec/pkg/link"
	"github.com/bft-labs/flightrec/pkg/log"
)

func buildConfig(t *testing.T) Config {
	t.Helper()
	cfg := DefaultConfig()
	cfg.StateDir = t.TempDir()
	require.NoError(t, cfg.Validate())
	return cfg
}

func TestOpenSinks(t *testing.T) {
	cfg := buildConfig(t)

	var closers []func() error
	sink, err := openSinks(cfg, log.NewNoopLogger(), &closers)
	require.NoError(t, err)
	assert.Equal(t, link.Discard{}, sink)
	assert.Empty(t, closers)

	cfg.Output = filepath.Join(t.TempDir(), "capture.bin")
	sink, err = openSinks(cfg, log.NewNoopLogger(), &closers)
	require.NoError(t, err)
	_, ok := sink.(*link.FileSink)
	assert.True(t, ok)
	require.Len(t, closers, 1)
	require.NoError(t, closers[0]())
	_, err = os.Stat(cfg.Output)
	assert.NoError(t, err)
}

func TestOpenSinks_BadOutput(t *testing.T) {
	cfg := buildConfig(t)
	cfg.Output = filepath.Join(t.TempDir(), "missing", "capture.bin")

	var closers []func() error
	_, err := openSinks(cfg, log.NewNoopLogger(), &closers)
	assert.Error(t, err)
}

func TestBuildRuntime_WithArchive(t *testing.T) {
	cfg := buildConfig(t)
	cfg.StorePath = filepath.Join(t.TempDir(), "archive.img")
	cfg.StoreSize = 4096

	rt, closeAll, err := Build(cfg, "")
	require.NoError(t, err)
	defer closeAll()

	assert.Equal(t, flightrec.StateStopped, rt.Status())
	info, err := os.Stat(cfg.StorePath)
	require.NoError(t, err)
	assert.Equal(t, int64(4096), info.Size())
}

func TestBuildRuntime_InvalidRuntimeConfig(t *testing.T) {
	cfg := buildConfig(t)
	cfg.BudgetStep = 100
	cfg.BudgetMax = 10

	_, _, err := Build(cfg, "")
	assert.Error(t, err)
}
