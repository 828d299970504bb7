// Package config provides configuration management for reelsmith using Viper.
// It supports configuration from files, environment variables, and defaults.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Default configuration values.
const (
	defaultProxyPreset       = "veryfast"
	defaultProxyCRF          = 23
	defaultProxyAudioBitrate = "128k"
	defaultMasterCRF         = 18
	defaultMasterPreset      = "medium"
	defaultPreviewFPS        = 25
	defaultBatchSize         = 4
	defaultJobBatchSize      = 3
	defaultJobRetention      = 24 * time.Hour
	defaultDetectTimeout     = 10 * time.Second
	defaultVisionModel       = "gpt-4o-mini"
	defaultSampleInterval    = 1.5
)

// Config holds all configuration for the application.
type Config struct {
	FFmpeg   FFmpegConfig   `mapstructure:"ffmpeg"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Proxy    ProxyConfig    `mapstructure:"proxy"`
	Vision   VisionConfig   `mapstructure:"vision"`
	Selector SelectorConfig `mapstructure:"selector"`
	Jobs     JobsConfig     `mapstructure:"jobs"`
}

// FFmpegConfig holds FFmpeg binary configuration.
type FFmpegConfig struct {
	BinaryPath    string        `mapstructure:"binary_path"`    // Path to ffmpeg binary (empty = auto-detect)
	ProbePath     string        `mapstructure:"probe_path"`     // Path to ffprobe binary (empty = auto-detect)
	DetectTimeout time.Duration `mapstructure:"detect_timeout"` // Timeout for binary detection probes
}

// StorageConfig holds file storage configuration.
type StorageConfig struct {
	TempRoot string `mapstructure:"temp_root"` // Root for per-run workspaces (empty = os.TempDir)
	JobsDB   string `mapstructure:"jobs_db"`   // SQLite path for the job registry
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`  // debug, info, warn, error
	Format     string `mapstructure:"format"` // json, text
	AddSource  bool   `mapstructure:"add_source"`
	TimeFormat string `mapstructure:"time_format"`
}

// ProxyConfig holds proxy and master encoding parameters.
type ProxyConfig struct {
	Preset       string `mapstructure:"preset"`        // x264 preset for proxy encodes
	CRF          int    `mapstructure:"crf"`           // CRF for proxy encodes
	AudioBitrate string `mapstructure:"audio_bitrate"` // AAC bitrate for proxy encodes
	MasterPreset string `mapstructure:"master_preset"` // x264 preset for conform renders
	MasterCRF    int    `mapstructure:"master_crf"`    // CRF for conform renders
	FPS          int    `mapstructure:"fps"`           // Preview frame rate
}

// VisionConfig holds optional vision-enricher configuration.
// The enricher is active only when Enabled is true and APIKey is non-empty;
// a missing credential silently disables it.
type VisionConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
	Model   string `mapstructure:"model"`
}

// SelectorConfig holds content-selection configuration.
type SelectorConfig struct {
	BatchSize      int     `mapstructure:"batch_size"`       // Clips analyzed per batch interactively
	JobBatchSize   int     `mapstructure:"job_batch_size"`   // Clips analyzed per batch inside background jobs
	SampleInterval float64 `mapstructure:"sample_interval"`  // Seconds between analyzed frames
	EarlyExitScore float64 `mapstructure:"early_exit_score"` // Final-score threshold for early exit
}

// JobsConfig holds background-job configuration.
type JobsConfig struct {
	Retention    time.Duration `mapstructure:"retention"`     // Age after which terminal jobs are removed
	CleanupCron  string        `mapstructure:"cleanup_cron"`  // Cron expression for retention sweeps
	CleanupOnRun bool          `mapstructure:"cleanup_onrun"` // Sweep terminal jobs when the registry starts
}

// Load reads configuration from file and environment variables.
// Environment variables take precedence over file configuration.
// Environment variables are prefixed with REELSMITH_ and use underscores
// for nesting. Example: REELSMITH_PROXY_CRF=20.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	SetDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/reelsmith")
		v.AddConfigPath("$HOME/.reelsmith")
	}

	v.SetEnvPrefix("REELSMITH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Config file not found is OK - we'll use defaults and env vars
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// SetDefaults configures default values for all configuration options.
// This should be called before reading the config file so defaults are in place.
func SetDefaults(v *viper.Viper) {
	// FFmpeg defaults
	v.SetDefault("ffmpeg.binary_path", "")
	v.SetDefault("ffmpeg.probe_path", "")
	v.SetDefault("ffmpeg.detect_timeout", defaultDetectTimeout)

	// Storage defaults
	v.SetDefault("storage.temp_root", "")
	v.SetDefault("storage.jobs_db", "reelsmith-jobs.db")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.add_source", false)
	v.SetDefault("logging.time_format", time.RFC3339)

	// Proxy/master encode defaults
	v.SetDefault("proxy.preset", defaultProxyPreset)
	v.SetDefault("proxy.crf", defaultProxyCRF)
	v.SetDefault("proxy.audio_bitrate", defaultProxyAudioBitrate)
	v.SetDefault("proxy.master_preset", defaultMasterPreset)
	v.SetDefault("proxy.master_crf", defaultMasterCRF)
	v.SetDefault("proxy.fps", defaultPreviewFPS)

	// Vision enricher defaults
	v.SetDefault("vision.enabled", false)
	v.SetDefault("vision.api_key", "")
	v.SetDefault("vision.model", defaultVisionModel)

	// Selector defaults
	v.SetDefault("selector.batch_size", defaultBatchSize)
	v.SetDefault("selector.job_batch_size", defaultJobBatchSize)
	v.SetDefault("selector.sample_interval", defaultSampleInterval)
	v.SetDefault("selector.early_exit_score", 0.6)

	// Job defaults
	v.SetDefault("jobs.retention", defaultJobRetention)
	v.SetDefault("jobs.cleanup_cron", "0 0 * * * *") // hourly (6-field cron)
	v.SetDefault("jobs.cleanup_onrun", true)
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	if c.Proxy.CRF < 0 || c.Proxy.CRF > 51 {
		return fmt.Errorf("proxy.crf must be between 0 and 51")
	}
	if c.Proxy.MasterCRF < 0 || c.Proxy.MasterCRF > 51 {
		return fmt.Errorf("proxy.master_crf must be between 0 and 51")
	}
	if c.Proxy.FPS < 1 {
		return fmt.Errorf("proxy.fps must be at least 1")
	}

	if c.Selector.BatchSize < 1 {
		return fmt.Errorf("selector.batch_size must be at least 1")
	}
	if c.Selector.JobBatchSize < 1 {
		return fmt.Errorf("selector.job_batch_size must be at least 1")
	}
	if c.Selector.SampleInterval <= 0 {
		return fmt.Errorf("selector.sample_interval must be positive")
	}

	if c.Jobs.Retention <= 0 {
		return fmt.Errorf("jobs.retention must be positive")
	}

	return nil
}

// VisionActive reports whether the vision enricher should run.
// A missing credential disables it without error.
func (c *VisionConfig) VisionActive() bool {
	return c.Enabled && c.APIKey != ""
}

// WorkspacePath returns the path for a named per-run workspace directory
// under the configured temp root.
func (c *StorageConfig) WorkspacePath(tempDir, name string) string {
	root := c.TempRoot
	if root == "" {
		root = tempDir
	}
	return filepath.Join(root, name)
}
