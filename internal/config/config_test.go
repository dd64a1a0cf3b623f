package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("ARGUS_DATA_DIR", t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, filepath.IsAbs(cfg.DataDir))
	assert.Equal(t, ModeAnalyze, cfg.Mode)
	assert.Equal(t, "min_variance", cfg.Objective)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.False(t, cfg.LogPretty)
	assert.Equal(t, 4, cfg.Workers)
	assert.Equal(t, 60, cfg.MinObservations)
	assert.Zero(t, cfg.HalfLifeDays)
	assert.Equal(t, "portfolio.yaml", cfg.PortfolioFile)
	assert.Empty(t, cfg.Cron)
}

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv("ARGUS_DATA_DIR", t.TempDir())
	t.Setenv("ARGUS_MODE", "optimize")
	t.Setenv("ARGUS_OBJECTIVE", "max_return")
	t.Setenv("ARGUS_WORKERS", "8")
	t.Setenv("ARGUS_MIN_OBSERVATIONS", "90")
	t.Setenv("ARGUS_HALF_LIFE_DAYS", "63.5")
	t.Setenv("ARGUS_CRON", "@hourly")
	t.Setenv("ARGUS_PORTFOLIO_FILE", "book.yaml")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_PRETTY", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ModeOptimize, cfg.Mode)
	assert.Equal(t, "max_return", cfg.Objective)
	assert.Equal(t, 8, cfg.Workers)
	assert.Equal(t, 90, cfg.MinObservations)
	assert.InDelta(t, 63.5, cfg.HalfLifeDays, 1e-12)
	assert.Equal(t, "@hourly", cfg.Cron)
	assert.Equal(t, "book.yaml", cfg.PortfolioFile)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.True(t, cfg.LogPretty)
}

func TestLoadRejectsUnknownMode(t *testing.T) {
	t.Setenv("ARGUS_DATA_DIR", t.TempDir())
	t.Setenv("ARGUS_MODE", "serve")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ARGUS_MODE")
}

func TestLoadRejectsUnknownObjective(t *testing.T) {
	t.Setenv("ARGUS_DATA_DIR", t.TempDir())
	t.Setenv("ARGUS_MODE", "optimize")
	t.Setenv("ARGUS_OBJECTIVE", "sharpe")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ARGUS_OBJECTIVE")
}

func TestScenarioModeRequiresName(t *testing.T) {
	t.Setenv("ARGUS_DATA_DIR", t.TempDir())
	t.Setenv("ARGUS_MODE", "scenario")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ARGUS_SCENARIO")
}

func TestMalformedNumbersKeepDefaults(t *testing.T) {
	t.Setenv("ARGUS_DATA_DIR", t.TempDir())
	t.Setenv("ARGUS_WORKERS", "lots")
	t.Setenv("ARGUS_HALF_LIFE_DAYS", "fast")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.Workers)
	assert.Zero(t, cfg.HalfLifeDays)
}
