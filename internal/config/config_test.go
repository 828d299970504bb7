package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, 18, cfg.Proxy.MasterCRF)
	assert.Equal(t, "medium", cfg.Proxy.MasterPreset)
	assert.Equal(t, 25, cfg.Proxy.FPS)
	assert.Equal(t, 4, cfg.Selector.BatchSize)
	assert.Equal(t, 3, cfg.Selector.JobBatchSize)
	assert.Equal(t, 0.6, cfg.Selector.EarlyExitScore)
	assert.Equal(t, 24*time.Hour, cfg.Jobs.Retention)
	assert.True(t, cfg.Jobs.CleanupOnRun)
	assert.False(t, cfg.Vision.Enabled)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
logging:
  level: debug
proxy:
  crf: 20
selector:
  batch_size: 8
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, 20, cfg.Proxy.CRF)
	assert.Equal(t, 8, cfg.Selector.BatchSize)
	assert.Equal(t, "medium", cfg.Proxy.MasterPreset, "unset keys keep defaults")
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("REELSMITH_PROXY_MASTER_CRF", "16")
	t.Setenv("REELSMITH_LOGGING_FORMAT", "text")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 16, cfg.Proxy.MasterCRF)
	assert.Equal(t, "text", cfg.Logging.Format)
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("proxy:\n  crf: 99\n"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		cfg, err := Load("")
		require.NoError(t, err)
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }},
		{"crf out of range", func(c *Config) { c.Proxy.CRF = 52 }},
		{"master crf negative", func(c *Config) { c.Proxy.MasterCRF = -1 }},
		{"fps zero", func(c *Config) { c.Proxy.FPS = 0 }},
		{"batch size zero", func(c *Config) { c.Selector.BatchSize = 0 }},
		{"job batch size zero", func(c *Config) { c.Selector.JobBatchSize = 0 }},
		{"sample interval zero", func(c *Config) { c.Selector.SampleInterval = 0 }},
		{"retention zero", func(c *Config) { c.Jobs.Retention = 0 }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := base()
			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	assert.NoError(t, base().Validate())
}

func TestVisionActive(t *testing.T) {
	assert.False(t, (&VisionConfig{}).VisionActive())
	assert.False(t, (&VisionConfig{Enabled: true}).VisionActive(), "missing key disables")
	assert.False(t, (&VisionConfig{APIKey: "sk-x"}).VisionActive(), "disabled stays off")
	assert.True(t, (&VisionConfig{Enabled: true, APIKey: "sk-x"}).VisionActive())
}

func TestWorkspacePath(t *testing.T) {
	c := &StorageConfig{}
	assert.Equal(t, filepath.Join("/tmp", "run-1"), c.WorkspacePath("/tmp", "run-1"))

	c.TempRoot = "/scratch"
	assert.Equal(t, filepath.Join("/scratch", "run-1"), c.WorkspacePath("/tmp", "run-1"))
}
