// Package assembler orchestrates the preview pipeline: proxy transcodes,
// music-aligned trimming, segment encoding, concatenation, music overlay,
// and canonical timeline emission.
package assembler

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/reelsmith/reelsmith/internal/analysis/music"
	"github.com/reelsmith/reelsmith/internal/analysis/visual"
	"github.com/reelsmith/reelsmith/internal/config"
	"github.com/reelsmith/reelsmith/internal/ffmpeg"
	"github.com/reelsmith/reelsmith/internal/observability"
	"github.com/reelsmith/reelsmith/internal/selector"
	"github.com/reelsmith/reelsmith/internal/story"
	"github.com/reelsmith/reelsmith/internal/timeline"
)

// PreviewName is the final preview artifact filename.
const PreviewName = "highlight_proxy.mp4"

// defaultSecondsPerClip sizes the dynamic target when the caller passes
// target zero.
const defaultSecondsPerClip = 3

// Request describes one preview assembly run.
type Request struct {
	Clips         []string
	Music         string
	TargetSeconds int
	Workspace     string // optional; a fresh per-run directory is created when empty

	UseAISelection bool
	Style          string        // narrative style for AI selection
	StylePreset    string        // style preset name, default "traditional"
	Preset         *story.Preset // resolved preset; takes precedence over StylePreset
}

// SelectedClip is the per-clip metadata surfaced after AI selection.
type SelectedClip struct {
	Path     string         `json:"path"`
	Score    float64        `json:"score"`
	Scene    story.Scene    `json:"scene"`
	Tone     story.Tone     `json:"tone"`
	Position story.Position `json:"position"`
	Reason   string         `json:"reason"`
}

// StoryBreakdown counts the narrative composition of the selection.
type StoryBreakdown struct {
	Scenes    map[story.Scene]int    `json:"scenes"`
	Tones     map[story.Tone]int     `json:"tones"`
	Positions map[story.Position]int `json:"positions"`
}

// QualityMetrics summarizes the selection's score distribution.
type QualityMetrics struct {
	AvgScore         float64 `json:"avg_score"`
	MaxScore         float64 `json:"max_score"`
	MinScore         float64 `json:"min_score"`
	HighQualityCount int     `json:"high_quality_count"`
	AvgImportance    float64 `json:"avg_importance"`
}

// Result is the outcome of a successful assembly.
type Result struct {
	OutputPath    string          `json:"output_path"`
	TimelinePath  string          `json:"timeline_path"`
	TargetSeconds int             `json:"target_seconds"`
	Duration      float64         `json:"duration"`
	Selected      []SelectedClip  `json:"selected_clips,omitempty"`
	Breakdown     *StoryBreakdown `json:"story_breakdown,omitempty"`
	Metrics       *QualityMetrics `json:"quality_metrics,omitempty"`
}

// Assembler drives the preview pipeline.
type Assembler struct {
	runner  *ffmpeg.Runner
	prober  *ffmpeg.Prober
	music   *music.Analyzer
	visual  *visual.Analyzer
	sel     *selector.Selector // nil disables AI selection
	proxy   config.ProxyConfig
	storage config.StorageConfig
	logger  *slog.Logger
}

// New creates an assembler. sel may be nil when AI selection is unused.
func New(runner *ffmpeg.Runner, prober *ffmpeg.Prober, musicAnalyzer *music.Analyzer, visualAnalyzer *visual.Analyzer, sel *selector.Selector, proxy config.ProxyConfig, storage config.StorageConfig, logger *slog.Logger) *Assembler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Assembler{
		runner:  runner,
		prober:  prober,
		music:   musicAnalyzer,
		visual:  visualAnalyzer,
		sel:     sel,
		proxy:   proxy,
		storage: storage,
		logger:  logger.With("component", "assembler"),
	}
}

// Assemble runs the preview pipeline end to end and returns the preview
// path, timeline path, and selection metadata for AI runs.
func (a *Assembler) Assemble(ctx context.Context, req Request) (*Result, error) {
	if len(req.Clips) == 0 {
		return nil, fmt.Errorf("no clips provided")
	}
	for _, clip := range req.Clips {
		if _, err := os.Stat(clip); err != nil {
			return nil, fmt.Errorf("source not found: %s: %w", clip, err)
		}
	}
	if req.Music == "" {
		return nil, fmt.Errorf("no music track provided")
	}
	if _, err := os.Stat(req.Music); err != nil {
		return nil, fmt.Errorf("music not found: %s: %w", req.Music, err)
	}

	done := observability.TimedOperation(ctx, a.logger, "assemble")
	defer done()

	target := req.TargetSeconds
	if target == 0 {
		target = defaultSecondsPerClip * len(req.Clips)
	}

	result := &Result{TargetSeconds: target}
	clips := req.Clips
	if req.UseAISelection {
		selected, err := a.selectClips(ctx, req, target)
		if err != nil {
			return nil, err
		}
		clips = make([]string, len(selected))
		for i, r := range selected {
			clips[i] = r.Path
			result.Selected = append(result.Selected, SelectedClip{
				Path:     r.Path,
				Score:    r.FinalScore,
				Scene:    r.Arc.Scene,
				Tone:     r.Arc.Tone,
				Position: r.Arc.Position,
				Reason:   r.Reason,
			})
		}
		result.Breakdown = buildBreakdown(selected)
		result.Metrics = buildMetrics(selected)
	}

	workspace := req.Workspace
	if workspace == "" {
		workspace = a.storage.WorkspacePath(os.TempDir(), "reelsmith-"+uuid.NewString())
	}
	if err := os.MkdirAll(workspace, 0o755); err != nil {
		return nil, fmt.Errorf("creating workspace: %w", err)
	}

	analysis, err := a.music.Analyze(ctx, req.Music, float64(target))
	if err != nil {
		return nil, fmt.Errorf("analyzing music: %w", err)
	}

	durations := make([]float64, len(clips))
	for i, clip := range clips {
		d, err := a.prober.Duration(ctx, clip)
		if err != nil {
			return nil, err
		}
		durations[i] = d
	}

	proxies, err := a.createProxies(ctx, workspace, clips)
	if err != nil {
		return nil, err
	}

	plans := planSegments(analysis, durations, float64(target))
	a.refineBarStarts(ctx, plans, proxies, durations)

	segments, err := a.encodeSegments(ctx, workspace, proxies, plans)
	if err != nil {
		return nil, err
	}

	entries := make([]timeline.Clip, len(plans))
	segDurations := make([]float64, len(plans))
	for i, p := range plans {
		entries[i] = timeline.Clip{
			Src: clips[i],
			In:  roundMs(p.Start),
			Out: roundMs(p.Start + p.Duration),
		}
		segDurations[i] = p.Duration
	}

	// Loop-fill when the planned material runs short of target.
	appends, lastTrim := fillLoop(segDurations, float64(target))
	for pos, idx := range appends {
		seg := segments[idx]
		entry := entries[idx]
		if pos == len(appends)-1 && lastTrim > 0 {
			trimmed := filepath.Join(workspace, fmt.Sprintf("fill_%03d.mp4", pos))
			if _, err := a.runner.Run(ctx, trimArgs(seg, lastTrim, trimmed)...); err != nil {
				return nil, fmt.Errorf("trimming fill segment: %w", err)
			}
			seg = trimmed
			entry.Out = roundMs(entry.In + lastTrim)
		}
		segments = append(segments, seg)
		entries = append(entries, entry)
	}

	stitched := filepath.Join(workspace, "stitched.mp4")
	listPath := filepath.Join(workspace, "concat.txt")
	if err := writeConcatList(listPath, segments); err != nil {
		return nil, err
	}
	if _, err := a.runner.Run(ctx, concatArgs(listPath, stitched)...); err != nil {
		return nil, fmt.Errorf("concatenating segments: %w", err)
	}

	preview := filepath.Join(workspace, PreviewName)
	if _, err := a.runner.Run(ctx, muxArgs(stitched, req.Music, preview)...); err != nil {
		return nil, fmt.Errorf("muxing music: %w", err)
	}

	timelinePath := filepath.Join(workspace, "timeline.json")
	tl := &timeline.Timeline{
		Clips:            entries,
		Music:            req.Music,
		FPS:              a.proxy.FPS,
		TargetSeconds:    target,
		Tempo:            analysis.Tempo,
		TimeSignature:    analysis.TimeSignature,
		BarMarkers:       analysis.Bars,
		UsedBeatSnapping: true,
	}
	if err := timeline.Write(timelinePath, tl); err != nil {
		return nil, err
	}

	duration, err := a.prober.Duration(ctx, preview)
	if err != nil {
		a.logger.Warn("could not probe preview duration", "error", err)
	}

	result.OutputPath = preview
	result.TimelinePath = timelinePath
	result.Duration = duration

	a.logger.Info("preview assembled",
		"output", preview,
		"clips", len(entries),
		"target_seconds", target,
		"duration", duration)
	return result, nil
}

// selectClips reorders and filters the input clips through the content
// selector.
func (a *Assembler) selectClips(ctx context.Context, req Request, target int) ([]*selector.Result, error) {
	if a.sel == nil {
		return nil, fmt.Errorf("AI selection requested but no selector configured")
	}
	preset := req.Preset
	if preset == nil {
		var err error
		preset, err = story.PresetByName(req.StylePreset)
		if err != nil {
			return nil, err
		}
	}
	n := target / defaultSecondsPerClip
	if n < 1 {
		n = 1
	}
	if n > len(req.Clips) {
		n = len(req.Clips)
	}
	return a.sel.SelectBest(ctx, req.Clips, n, req.Style, preset, false)
}

// createProxies transcodes every clip into the workspace.
func (a *Assembler) createProxies(ctx context.Context, workspace string, clips []string) ([]string, error) {
	proxies := make([]string, len(clips))
	for i, clip := range clips {
		proxy := filepath.Join(workspace, fmt.Sprintf("proxy_%03d.mp4", i))
		if _, err := a.runner.Run(ctx, proxyArgs(clip, proxy, a.proxy)...); err != nil {
			return nil, fmt.Errorf("creating proxy for %s: %w", clip, err)
		}
		proxies[i] = proxy
	}
	return proxies, nil
}

// refineBarStarts searches around each bar-synced target start for the
// visually best moment. Failures keep the planned start.
func (a *Assembler) refineBarStarts(ctx context.Context, plans []segmentPlan, proxies []string, durations []float64) {
	if a.visual == nil {
		return
	}
	for i := range plans {
		p := &plans[i]
		if p.Strategy != StrategyBar {
			continue
		}
		window := searchWindowFor(durations[i])
		if window <= 0 {
			continue
		}
		winStart := math.Max(0, math.Min(p.Start-window/2, durations[i]-window))
		moments, err := a.visual.BestMomentsIn(ctx, proxies[i], winStart, window, 1.0)
		if err != nil || len(moments) == 0 {
			continue
		}
		p.Start = moments[0]
		*p = fitToClip(*p, durations[i])
	}
}

// encodeSegments renders each planned segment from its proxy.
func (a *Assembler) encodeSegments(ctx context.Context, workspace string, proxies []string, plans []segmentPlan) ([]string, error) {
	segments := make([]string, len(plans))
	for i, p := range plans {
		seg := filepath.Join(workspace, fmt.Sprintf("seg_%03d.mp4", i))
		if _, err := a.runner.Run(ctx, segmentArgs(proxies[i], p.Start, p.Duration, seg, a.proxy)...); err != nil {
			return nil, fmt.Errorf("encoding segment %d: %w", i, err)
		}
		segments[i] = seg
	}
	return segments, nil
}

// writeConcatList emits a concat-demuxer file list with absolute paths.
func writeConcatList(path string, segments []string) error {
	var b strings.Builder
	for _, seg := range segments {
		abs, err := filepath.Abs(seg)
		if err != nil {
			return fmt.Errorf("resolving segment path: %w", err)
		}
		fmt.Fprintf(&b, "file '%s'\n", abs)
	}
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("writing concat list: %w", err)
	}
	return nil
}

func buildBreakdown(results []*selector.Result) *StoryBreakdown {
	b := &StoryBreakdown{
		Scenes:    map[story.Scene]int{},
		Tones:     map[story.Tone]int{},
		Positions: map[story.Position]int{},
	}
	for _, r := range results {
		b.Scenes[r.Arc.Scene]++
		b.Tones[r.Arc.Tone]++
		b.Positions[r.Arc.Position]++
	}
	return b
}

func buildMetrics(results []*selector.Result) *QualityMetrics {
	if len(results) == 0 {
		return &QualityMetrics{}
	}
	m := &QualityMetrics{MinScore: 1}
	var scoreSum, importanceSum float64
	for _, r := range results {
		scoreSum += r.FinalScore
		importanceSum += r.Arc.Importance
		m.MaxScore = math.Max(m.MaxScore, r.FinalScore)
		m.MinScore = math.Min(m.MinScore, r.FinalScore)
		if r.FinalScore > 0.7 {
			m.HighQualityCount++
		}
	}
	m.AvgScore = scoreSum / float64(len(results))
	m.AvgImportance = importanceSum / float64(len(results))
	return m
}
