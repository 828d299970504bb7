// Package cmd implements the CLI commands for reelsmith.
package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/reelsmith/reelsmith/internal/analysis/emotion"
	"github.com/reelsmith/reelsmith/internal/analysis/object"
	"github.com/reelsmith/reelsmith/internal/analysis/vision"
	"github.com/reelsmith/reelsmith/internal/config"
	"github.com/reelsmith/reelsmith/internal/ffmpeg"
	"github.com/reelsmith/reelsmith/internal/media"
	"github.com/reelsmith/reelsmith/internal/observability"
	"github.com/reelsmith/reelsmith/internal/selector"
	"github.com/reelsmith/reelsmith/internal/version"
)

// cfgFile holds the config file path from CLI flag.
var cfgFile string

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:     "reelsmith",
	Short:   "Wedding highlight video assembly",
	Version: version.Short(),
	Long: `reelsmith turns raw wedding footage and a music track into a
beat-aligned highlight video.

It analyzes the music for tempo and bar structure, scores each clip for
faces, motion, objects, and emotion, builds a story arc, trims the best
moments to the musical grid, and renders a preview plus a re-renderable
timeline for master-quality conform.`,
	// PersistentPreRunE is set in init() to avoid initialization cycle
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		return fmt.Errorf("executing root command: %w", err)
	}
	return nil
}

func init() {
	cobra.OnInitialize(initConfig)

	// Set PersistentPreRunE here to avoid initialization cycle
	// (initLogging references rootCmd.PersistentFlags)
	rootCmd.PersistentPreRunE = func(_ *cobra.Command, _ []string) error {
		return initLogging()
	}

	// Global flags
	// Note: These flags are NOT bound to viper. Instead, we check if they were
	// explicitly set using Changed() and only then override the config/env values.
	// This preserves the correct priority: CLI flag > env var > config > default
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.reelsmith.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "text", "log format (text, json)")
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	config.SetDefaults(viper.GetViper())

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		viper.AddConfigPath(home)
		viper.AddConfigPath(".")
		viper.AddConfigPath("/etc/reelsmith")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".reelsmith")
	}

	viper.SetEnvPrefix("REELSMITH")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// initLogging configures the slog logger based on configuration.
//
// Priority order (highest to lowest):
//  1. CLI flags (--log-level, --log-format) - only if explicitly provided
//  2. Environment variables (REELSMITH_LOGGING_LEVEL, REELSMITH_LOGGING_FORMAT)
//  3. Config file values
//  4. Built-in defaults (info, text)
func initLogging() error {
	level := viper.GetString("logging.level")
	format := viper.GetString("logging.format")

	// Override with CLI flags only if explicitly set by user.
	// We don't bind flags to viper because viper's flag layer would always
	// override env/config, even when using the flag's default value.
	if rootCmd.PersistentFlags().Changed("log-level") {
		level, _ = rootCmd.PersistentFlags().GetString("log-level")
	}
	if rootCmd.PersistentFlags().Changed("log-format") {
		format, _ = rootCmd.PersistentFlags().GetString("log-format")
	}

	if level == "" {
		level = "info"
	}
	if format == "" {
		format = "text"
	}

	logCfg := config.LoggingConfig{
		Level:  strings.ToLower(level),
		Format: strings.ToLower(format),
	}
	if logCfg.Level == "warning" {
		logCfg.Level = "warn"
	}

	logger := observability.NewLoggerWithWriter(logCfg, os.Stderr)
	observability.SetDefault(logger)

	return nil
}

// loadConfig loads the typed configuration honoring the --config flag.
func loadConfig() (*config.Config, error) {
	return config.Load(cfgFile)
}

// buildToolchain detects the external binaries and returns the runner and
// prober every media operation goes through.
func buildToolchain(ctx context.Context, cfg *config.Config) (*ffmpeg.Runner, *ffmpeg.Prober, error) {
	detector := ffmpeg.NewBinaryDetector(cfg.FFmpeg.BinaryPath, cfg.FFmpeg.ProbePath, cfg.FFmpeg.DetectTimeout)
	info, err := detector.Detect(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("detecting ffmpeg: %w", err)
	}
	runner := ffmpeg.NewRunner(info, nil)
	return runner, ffmpeg.NewProber(runner), nil
}

// buildSelector wires the full analysis chain behind a selector.
func buildSelector(cfg *config.Config, runner *ffmpeg.Runner, prober *ffmpeg.Prober, batchSize int) *selector.Selector {
	extractor := media.NewFrameExtractor(runner)
	objects := object.NewDetector(extractor, prober, cfg.Selector.SampleInterval, nil)
	emotions := emotion.NewAnalyzer(extractor, prober, nil)

	var enricher selector.Enricher
	if cfg.Vision.VisionActive() {
		if e := vision.NewEnricher(cfg.Vision.APIKey, cfg.Vision.Model, extractor, nil); e != nil {
			enricher = e
		}
	}
	return selector.New(objects, emotions, enricher, batchSize, nil)
}
