// Package conform re-renders a previously emitted timeline from the
// original sources at master quality, with an optional music overlay.
package conform

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/reelsmith/reelsmith/internal/config"
	"github.com/reelsmith/reelsmith/internal/ffmpeg"
	"github.com/reelsmith/reelsmith/internal/observability"
	"github.com/reelsmith/reelsmith/internal/timeline"
)

// MasterName is the default master artifact filename.
const MasterName = "highlight_master.mp4"

// loudnormFilter matches the preview mux: the master sounds identical.
const loudnormFilter = "loudnorm=I=-14:TP=-1.5:LRA=11"

// Options configures one conform run.
type Options struct {
	TimelinePath  string
	OutputPath    string // default: <workspace>/highlight_master.mp4
	MusicOverride string // replaces the timeline's music track
	NoAudio       bool
	TempDir       string // workspace override
}

// Conformer renders masters from timelines.
type Conformer struct {
	runner  *ffmpeg.Runner
	prober  *ffmpeg.Prober
	proxy   config.ProxyConfig
	storage config.StorageConfig
	logger  *slog.Logger
}

// New creates a conformer.
func New(runner *ffmpeg.Runner, prober *ffmpeg.Prober, proxy config.ProxyConfig, storage config.StorageConfig, logger *slog.Logger) *Conformer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Conformer{
		runner:  runner,
		prober:  prober,
		proxy:   proxy,
		storage: storage,
		logger:  logger.With("component", "conformer"),
	}
}

// Conform reads and validates the timeline, re-renders the edit from the
// original sources, and returns the master's path. Changed sources abort
// with timeline.ErrSourcesChanged.
func (c *Conformer) Conform(ctx context.Context, opts Options) (string, error) {
	tl, err := timeline.Read(opts.TimelinePath)
	if err != nil {
		return "", err
	}
	if err := timeline.Verify(tl); err != nil {
		return "", err
	}
	if err := timeline.ValidateSources(tl); err != nil {
		return "", err
	}

	done := observability.TimedOperation(ctx, c.logger, "conform")
	defer done()

	workspace := opts.TempDir
	if workspace == "" {
		workspace = c.storage.WorkspacePath(os.TempDir(), "reelsmith-conform-"+uuid.NewString())
	}
	if err := os.MkdirAll(workspace, 0o755); err != nil {
		return "", fmt.Errorf("creating workspace: %w", err)
	}

	output := opts.OutputPath
	if output == "" {
		output = filepath.Join(workspace, MasterName)
	}

	listPath := filepath.Join(workspace, "conform.txt")
	if err := writeConformList(listPath, tl.Clips); err != nil {
		return "", err
	}

	videoOnly := output
	withAudio := !opts.NoAudio
	if withAudio {
		videoOnly = filepath.Join(workspace, "conformed_video.mp4")
	}
	if _, err := c.runner.Run(ctx, renderArgs(listPath, videoOnly, tl.FPS, c.proxy)...); err != nil {
		return "", fmt.Errorf("rendering master video: %w", err)
	}

	if withAudio {
		musicPath := tl.Music
		if opts.MusicOverride != "" {
			musicPath = opts.MusicOverride
		}
		if _, err := os.Stat(musicPath); err != nil {
			return "", fmt.Errorf("music not found: %s: %w", musicPath, err)
		}
		if _, err := c.runner.Run(ctx, muxArgs(videoOnly, musicPath, output)...); err != nil {
			return "", fmt.Errorf("muxing master audio: %w", err)
		}
	}

	duration, err := c.prober.Duration(ctx, output)
	if err != nil {
		c.logger.Warn("probing master duration failed", "error", err)
	}

	c.logger.Info("master conformed",
		"timeline", opts.TimelinePath,
		"output", output,
		"clips", len(tl.Clips),
		"duration", duration,
		"audio", withAudio)
	return output, nil
}

// writeConformList emits a concat-demuxer list with precise inpoint and
// duration per clip, cutting from the originals.
func writeConformList(path string, clips []timeline.Clip) error {
	var b strings.Builder
	for _, clip := range clips {
		fmt.Fprintf(&b, "file '%s'\n", clip.Src)
		fmt.Fprintf(&b, "inpoint %s\n", formatSeconds(clip.In))
		fmt.Fprintf(&b, "duration %s\n", formatSeconds(clip.Out-clip.In))
	}
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("writing conform list: %w", err)
	}
	return nil
}

// renderArgs builds the master-quality video-only render.
func renderArgs(listPath, out string, fps int, cfg config.ProxyConfig) []string {
	if fps <= 0 {
		fps = timeline.DefaultFPS
	}
	return []string{
		"-v", "error",
		"-y",
		"-f", "concat",
		"-safe", "0",
		"-i", listPath,
		"-an",
		"-c:v", "libx264",
		"-preset", cfg.MasterPreset,
		"-crf", strconv.Itoa(cfg.MasterCRF),
		"-r", strconv.Itoa(fps),
		"-pix_fmt", "yuv420p",
		"-movflags", "+faststart",
		out,
	}
}

// muxArgs overlays the music onto the conformed video, stream-copying the
// video and normalizing loudness exactly like the preview mux.
func muxArgs(video, musicPath, out string) []string {
	return []string{
		"-v", "error",
		"-y",
		"-i", video,
		"-stream_loop", "-1",
		"-i", musicPath,
		"-map", "0:v:0",
		"-map", "1:a:0",
		"-c:v", "copy",
		"-af", loudnormFilter,
		"-ar", "48000",
		"-ac", "2",
		"-c:a", "aac",
		"-b:a", "192k",
		"-shortest",
		"-movflags", "+faststart",
		out,
	}
}

// formatSeconds renders a float without exponent notation for list files.
func formatSeconds(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
