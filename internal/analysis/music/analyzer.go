package music

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"

	"github.com/reelsmith/reelsmith/internal/ffmpeg"
	"github.com/reelsmith/reelsmith/internal/media"
)

// analysisSampleRate is the rate all input audio is normalized to before
// analysis.
const analysisSampleRate = 22050

const (
	// Music-start detection: first RMS window above 10% of the peak,
	// clamped to a sane lead-in range.
	startThresholdRatio = 0.10
	minMusicStart       = 0.1
	maxMusicStart       = 5.0
)

// Analyzer derives the musical grid of an audio file. It normalizes input
// to 22050 Hz mono PCM through the transcoder, then works on raw samples.
type Analyzer struct {
	runner *ffmpeg.Runner
	logger *slog.Logger
}

// NewAnalyzer creates a music analyzer.
func NewAnalyzer(runner *ffmpeg.Runner, logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{runner: runner, logger: logger.With("component", "music-analyzer")}
}

// Analyze normalizes the audio at path, detects music start and tempo, and
// builds the beat and bar grids. targetSeconds > 0 truncates the grids to
// that many seconds past music start. Estimation failures degrade to a
// regular 120 BPM grid rather than erroring; only decode failures surface.
func (a *Analyzer) Analyze(ctx context.Context, path string, targetSeconds float64) (*Analysis, error) {
	wavPath := tempWavPath()
	defer os.Remove(wavPath)

	_, err := a.runner.Run(ctx,
		"-v", "error",
		"-y",
		"-i", path,
		"-vn",
		"-acodec", "pcm_s16le",
		"-ac", "1",
		"-ar", fmt.Sprintf("%d", analysisSampleRate),
		wavPath,
	)
	if err != nil {
		return nil, fmt.Errorf("normalizing audio %s: %w", path, err)
	}

	wav, err := media.ReadWav(wavPath)
	if err != nil {
		return nil, fmt.Errorf("decoding normalized audio: %w", err)
	}

	analysis := AnalyzeSamples(wav.Samples, wav.SampleRate, targetSeconds)
	if analysis.Fallback {
		a.logger.Warn("tempo estimation degraded to fallback grid",
			"path", path, "duration", analysis.Duration)
	} else {
		a.logger.Debug("music analyzed",
			"path", path,
			"tempo", analysis.Tempo,
			"music_start", analysis.MusicStart,
			"beats", len(analysis.Beats),
			"bars", len(analysis.Bars))
	}
	return analysis, nil
}

// AnalyzeSamples is the pure analysis core: music-start detection, tempo
// estimation, and grid construction over mono samples.
func AnalyzeSamples(samples []float64, sampleRate int, targetSeconds float64) *Analysis {
	duration := float64(len(samples)) / float64(sampleRate)
	start := detectMusicStart(samples, sampleRate)

	trimmed := samples
	if idx := int(start * float64(sampleRate)); idx < len(samples) {
		trimmed = samples[idx:]
	}

	tempo, tempoConf := estimateTempo(trimmed, sampleRate)
	if tempo == 0 {
		return fallbackAnalysis(duration, start, targetSeconds)
	}

	analysis := &Analysis{
		Tempo:         tempo,
		BarsPerMinute: tempo / BeatsPerBar,
		BeatsPerBar:   BeatsPerBar,
		TimeSignature: "4/4",
		MusicStart:    start,
		Duration:      duration,
		Confidence: Confidence{
			Tempo:   tempoConf,
			Beats:   0.8,
			Overall: (tempoConf + 0.8) / 2,
		},
	}
	buildGrids(analysis, targetSeconds)
	return analysis
}

// detectMusicStart returns the first moment the short-window RMS energy
// exceeds 10% of the peak, clamped to [0.1s, 5.0s].
func detectMusicStart(samples []float64, sampleRate int) float64 {
	energies := media.RMSWindows(samples, tempoWindow)
	var peak float64
	for _, e := range energies {
		peak = math.Max(peak, e)
	}
	start := minMusicStart
	if peak > 0 {
		threshold := peak * startThresholdRatio
		for i, e := range energies {
			if e >= threshold {
				start = float64(i*tempoWindow) / float64(sampleRate)
				break
			}
		}
	}
	return clamp(start, minMusicStart, maxMusicStart)
}

// buildGrids fills Beats and Bars as regular grids anchored at MusicStart.
// Generating positions directly from the anchor avoids accumulated drift.
func buildGrids(a *Analysis, targetSeconds float64) {
	end := a.Duration
	if targetSeconds > 0 {
		end = math.Min(end, a.MusicStart+targetSeconds)
	}

	beatInterval := a.BeatInterval()
	for i := 0; ; i++ {
		t := a.MusicStart + float64(i)*beatInterval
		if t >= end {
			break
		}
		a.Beats = append(a.Beats, t)
	}
	barInterval := a.BarInterval()
	for i := 0; ; i++ {
		t := a.MusicStart + float64(i)*barInterval
		if t >= end {
			break
		}
		a.Bars = append(a.Bars, t)
	}
}

// fallbackAnalysis is the deterministic degraded result: 120 BPM, 4/4,
// regular grid from music start.
func fallbackAnalysis(duration, start, targetSeconds float64) *Analysis {
	a := &Analysis{
		Tempo:         FallbackTempo,
		BarsPerMinute: FallbackTempo / BeatsPerBar,
		BeatsPerBar:   BeatsPerBar,
		TimeSignature: "4/4",
		MusicStart:    start,
		Duration:      duration,
		Confidence:    Confidence{Tempo: 0.3, Beats: 0.3, Overall: 0.3},
		Fallback:      true,
	}
	buildGrids(a, targetSeconds)
	return a
}

// tempWavPath is deterministic per process so stale files from a crashed
// run are overwritten rather than accumulated.
func tempWavPath() string {
	return filepath.Join(os.TempDir(), fmt.Sprintf("reelsmith-music-%d.wav", os.Getpid()))
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
