package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadOverlaysDefaults(t *testing.T) {
	path := writeConfig(t, `
[llm]
provider = "openai"
model = "gpt-4o-mini"

[discovery]
acceptance_threshold = 0.9
worker_pool_size = 4
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.InDelta(t, 0.9, cfg.Discovery.AcceptanceThreshold, 1e-9)
	assert.Equal(t, 4, cfg.Discovery.WorkerPoolSize)

	// untouched keys keep their defaults
	assert.InDelta(t, 0.2, cfg.Discovery.RejectionThreshold, 1e-9)
	assert.Equal(t, int64(10), cfg.Discovery.MinCountForEval)
	assert.Equal(t, "bolt://localhost:7687", cfg.Graph.URI)
}

func TestLoadRejectsInvertedThresholds(t *testing.T) {
	path := writeConfig(t, `
[discovery]
acceptance_threshold = 0.3
rejection_threshold = 0.7
`)

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}

func TestValidateWorkerPoolAndAlpha(t *testing.T) {
	cfg := Default()
	cfg.Discovery.WorkerPoolSize = 0
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Discovery.ScoreAlpha = 1.5
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Index.RebuildIntervalMins = 0
	assert.Error(t, cfg.Validate())

	assert.NoError(t, Default().Validate())
}

func TestDurationHelpers(t *testing.T) {
	cfg := Default()
	assert.Equal(t, 60*time.Second, cfg.JudgeTimeout())
	assert.Equal(t, 6*time.Hour, cfg.RunInterval())
	assert.Equal(t, time.Hour, cfg.RebuildInterval())
}
