package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(old) })
}

func TestLoadDefaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "2024-02-15-preview", cfg.Azure.APIVersion)
	assert.Equal(t, "prebuilt-layout", cfg.DocIntel.Model)
	assert.Equal(t, 60, cfg.Harvest.TimeoutSecs)
	assert.True(t, cfg.Harvest.Insecure)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "loan_docs", cfg.Paths.LoanDocs)
	assert.Equal(t, 5, cfg.LLM.MaxConcurrent)
	assert.Equal(t, 3, cfg.Batch.AnalysisRuns)
	assert.Equal(t, 5, cfg.Batch.MaxConcurrentLoans)
	assert.Equal(t, "info", cfg.Log.Level)

	// Aggregation knobs ship with the documented defaults.
	assert.InDelta(t, 1.0, cfg.Consistency.HighWeight, 1e-9)
	assert.InDelta(t, 0.7, cfg.Consistency.MediumWeight, 1e-9)
	assert.InDelta(t, 0.4, cfg.Consistency.LowWeight, 1e-9)
	assert.InDelta(t, 0.8, cfg.Consistency.HighThreshold, 1e-9)
	assert.InDelta(t, 0.5, cfg.Consistency.MediumThreshold, 1e-9)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	yaml := `
azure:
  endpoint: https://example.openai.azure.com
  deployment: gpt-4o
log:
  level: debug
  format: console
consistency:
  high_threshold: 0.9
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))
	chdir(t, dir)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://example.openai.azure.com", cfg.Azure.Endpoint)
	assert.Equal(t, "gpt-4o", cfg.Azure.Deployment)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.InDelta(t, 0.9, cfg.Consistency.HighThreshold, 1e-9)
	// Untouched defaults survive.
	assert.InDelta(t, 0.5, cfg.Consistency.MediumThreshold, 1e-9)
}

func TestLoadFromEnv(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("LOANPROC_AZURE_KEY", "secret")
	t.Setenv("LOANPROC_STORE_DRIVER", "postgres")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "secret", cfg.Azure.Key)
	assert.Equal(t, "postgres", cfg.Store.Driver)
}

func TestInitLogger(t *testing.T) {
	require.NoError(t, InitLogger(LogConfig{Level: "debug", Format: "console"}))
	require.NoError(t, InitLogger(LogConfig{Level: "info", Format: "json"}))
	assert.Error(t, InitLogger(LogConfig{Level: "nope", Format: "json"}))
}
