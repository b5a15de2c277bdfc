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
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadAppliesDefaultsForMissingFields(t *testing.T) {
	path := writeConfig(t, "data_dir: /var/lib/medgenomics\n")
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.EqualValues(t, DefaultMaxInputBytes, cfg.MaxInputBytes)
	assert.Equal(t, DefaultQueueDepth, cfg.QueueDepth)
	assert.Equal(t, DefaultWorkers, cfg.Workers)
	assert.Equal(t, DefaultIDSThreshold, cfg.IDSThreshold)
	assert.Equal(t, "/var/lib/medgenomics", cfg.DataDir)
	assert.Equal(t, DefaultFormatDeadline, cfg.StageDeadlines.Format)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
queue_depth: 128
workers: 8
ids_threshold: 10
stage_deadlines_ms:
  format_ms: 500
  persist_ms: 60000
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 128, cfg.QueueDepth)
	assert.Equal(t, 8, cfg.Workers)
	assert.Equal(t, 10, cfg.IDSThreshold)
	assert.Equal(t, 500*time.Millisecond, cfg.StageDeadlines.Format)
	assert.Equal(t, 60*time.Second, cfg.StageDeadlines.Persist)
	assert.Equal(t, DefaultIDSDeadline, cfg.StageDeadlines.IDS)
}

func TestLoadIgnoresZeroWorkersOverride(t *testing.T) {
	path := writeConfig(t, "workers: 0\n")
	_, err := Load(path)
	require.NoError(t, err) // zero override is ignored, falls back to default
}

func TestLoadMissingFileErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestGAParametersOverlayAppliesWhenEnabled(t *testing.T) {
	path := writeConfig(t, `
ids_threshold: 5
aml_threshold: 0.1
ga_parameters:
  enabled: true
  ids_threshold: 20
  aml_threshold: 0.25
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 20, cfg.IDSThreshold)
	assert.Equal(t, 0.25, cfg.AMLThreshold)
}

func TestGAParametersOverlayIgnoredWhenDisabled(t *testing.T) {
	path := writeConfig(t, `
ids_threshold: 5
ga_parameters:
  enabled: false
  ids_threshold: 20
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.IDSThreshold)
}
