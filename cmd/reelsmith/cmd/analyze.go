package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/reelsmith/reelsmith/internal/analysis/emotion"
	"github.com/reelsmith/reelsmith/internal/analysis/music"
	"github.com/reelsmith/reelsmith/internal/analysis/object"
	"github.com/reelsmith/reelsmith/internal/analysis/visual"
	"github.com/reelsmith/reelsmith/internal/config"
	"github.com/reelsmith/reelsmith/internal/ffmpeg"
	"github.com/reelsmith/reelsmith/internal/media"
)

// audioExtensions identify inputs analyzed as music rather than footage.
var audioExtensions = map[string]bool{
	".mp3":  true,
	".wav":  true,
	".m4a":  true,
	".aac":  true,
	".flac": true,
	".ogg":  true,
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze [flags] FILE",
	Short: "Run the content analyzers on one file and print JSON",
	Long: `Analyze inspects a single file and prints the raw analyzer output as
JSON. Audio files get the music analysis (tempo, beat and bar grid,
music start); video files get the visual, object, and emotion analyses.

Use --type to force a single analyzer.`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

func init() {
	rootCmd.AddCommand(analyzeCmd)

	analyzeCmd.Flags().String("type", "auto", "analysis to run (auto, music, visual, objects, emotion)")
	analyzeCmd.Flags().Float64("target", 60, "music analysis window in seconds")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	path := args[0]
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("input not found: %s: %w", path, err)
	}

	kind, _ := cmd.Flags().GetString("type")
	target, _ := cmd.Flags().GetFloat64("target")
	if kind == "auto" {
		if audioExtensions[strings.ToLower(filepath.Ext(path))] {
			kind = "music"
		} else {
			kind = "all"
		}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runner, prober, err := buildToolchain(ctx, cfg)
	if err != nil {
		return err
	}

	report, err := analyzeFile(ctx, cfg, runner, prober, path, kind, target)
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("serializing analysis: %w", err)
	}
	fmt.Println(string(out))
	return nil
}

func analyzeFile(ctx context.Context, cfg *config.Config, runner *ffmpeg.Runner, prober *ffmpeg.Prober, path, kind string, target float64) (map[string]any, error) {
	extractor := media.NewFrameExtractor(runner)
	report := map[string]any{"path": path}

	if kind == "music" {
		analysis, err := music.NewAnalyzer(runner, nil).Analyze(ctx, path, target)
		if err != nil {
			return nil, fmt.Errorf("music analysis: %w", err)
		}
		report["music"] = analysis
		return report, nil
	}

	if kind == "all" || kind == "visual" {
		analysis, err := visual.NewAnalyzer(extractor, prober, nil).Analyze(ctx, path, visual.DefaultSampleRate)
		if err != nil {
			return nil, fmt.Errorf("visual analysis: %w", err)
		}
		report["visual"] = analysis
	}
	if kind == "all" || kind == "objects" {
		analysis, err := object.NewDetector(extractor, prober, cfg.Selector.SampleInterval, nil).Analyze(ctx, path)
		if err != nil {
			return nil, fmt.Errorf("object analysis: %w", err)
		}
		report["objects"] = analysis
	}
	if kind == "all" || kind == "emotion" {
		analysis, err := emotion.NewAnalyzer(extractor, prober, nil).Analyze(ctx, path)
		if err != nil {
			return nil, fmt.Errorf("emotion analysis: %w", err)
		}
		report["emotion"] = analysis
	}

	if len(report) == 1 {
		return nil, fmt.Errorf("unknown analysis type %q", kind)
	}
	return report, nil
}
