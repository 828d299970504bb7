// Package selector orchestrates per-clip content analysis, fuses the
// analyzer outputs into a final score, and picks the best clips for the
// edit. Analyses for one clip run in parallel; clips run in bounded
// batches with an early exit once enough strong candidates are known.
package selector

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/reelsmith/reelsmith/internal/analysis/emotion"
	"github.com/reelsmith/reelsmith/internal/analysis/object"
	"github.com/reelsmith/reelsmith/internal/story"
)

// Mode selects the analysis depth.
type Mode string

const (
	ModeFull Mode = "full"
	ModeFast Mode = "fast"
)

// scoreVersion keys the cache so scoring-rule changes invalidate old
// entries.
const scoreVersion = "v1"

const (
	// DefaultBatchSize bounds concurrent clip analyses interactively;
	// JobBatchSize applies inside background jobs.
	DefaultBatchSize = 4
	JobBatchSize     = 3

	// earlyExitScore is the "strong candidate" threshold for SelectBest.
	earlyExitScore = 0.6
)

// Result is the fused analysis of one clip.
type Result struct {
	Path       string            `json:"path"`
	Object     *object.Analysis  `json:"object"`
	Emotion    *emotion.Analysis `json:"emotion"`
	Arc        *story.Arc        `json:"story_arc"`
	Style      string            `json:"style"`
	FinalScore float64           `json:"final_score"`
	Reason     string            `json:"reason"`
	Mode       Mode              `json:"mode"`
}

// ObjectAnalyzer, EmotionAnalyzer and Enricher are the analyzer slices the
// selector drives. Concrete implementations live in internal/analysis.
type ObjectAnalyzer interface {
	Analyze(ctx context.Context, path string) (*object.Analysis, error)
}

type EmotionAnalyzer interface {
	Analyze(ctx context.Context, path string) (*emotion.Analysis, error)
}

type Enricher interface {
	Enrich(ctx context.Context, path string, obj *object.Analysis, emo *emotion.Analysis)
}

// Selector fuses analyzer outputs into ranked selection results.
type Selector struct {
	objects  ObjectAnalyzer
	emotions EmotionAnalyzer
	enricher Enricher
	logger   *slog.Logger

	batchSize int
	cache     *resultCache
}

// New creates a selector. enricher may be nil.
func New(objects ObjectAnalyzer, emotions EmotionAnalyzer, enricher Enricher, batchSize int, logger *slog.Logger) *Selector {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Selector{
		objects:   objects,
		emotions:  emotions,
		enricher:  enricher,
		logger:    logger.With("component", "selector"),
		batchSize: batchSize,
		cache:     newResultCache(),
	}
}

// ClearCache drops all cached results.
func (s *Selector) ClearCache() {
	s.cache.clear()
}

// Analyze runs the full analysis chain for one clip: object and emotion in
// parallel, optional vision enrichment, story arc, style scoring, fusion.
func (s *Selector) Analyze(ctx context.Context, path, style string, preset *story.Preset) (*Result, error) {
	return s.analyze(ctx, path, style, preset, ModeFull)
}

// AnalyzeFast skips the emotion analyzer, injecting a neutral default, and
// collapses the fusion weights accordingly.
func (s *Selector) AnalyzeFast(ctx context.Context, path, style string, preset *story.Preset) (*Result, error) {
	return s.analyze(ctx, path, style, preset, ModeFast)
}

func (s *Selector) analyze(ctx context.Context, path, style string, preset *story.Preset, mode Mode) (*Result, error) {
	key := cacheKey{path: path, style: style, preset: preset.Name, mode: mode, version: scoreVersion}
	if cached, ok := s.cache.get(key); ok {
		return cached, nil
	}

	var (
		obj *object.Analysis
		emo *emotion.Analysis
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		obj, err = s.objects.Analyze(gctx, path)
		if err != nil {
			return fmt.Errorf("object analysis: %w", err)
		}
		return nil
	})
	if mode == ModeFull {
		g.Go(func() error {
			var err error
			emo, err = s.emotions.Analyze(gctx, path)
			if err != nil {
				return fmt.Errorf("emotion analysis: %w", err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("analyzing %s: %w", path, err)
	}

	if emo == nil {
		emo = emotion.NeutralAnalysis(obj.Duration)
	}
	if s.enricher != nil {
		s.enricher.Enrich(ctx, path, obj, emo)
	}

	arc := story.Build(obj, emo)
	result := fuse(path, style, preset, mode, obj, emo, arc)
	s.cache.put(key, result)
	return result, nil
}

// fuse computes the final score and reason from the component analyses.
func fuse(path, style string, preset *story.Preset, mode Mode, obj *object.Analysis, emo *emotion.Analysis, arc *story.Arc) *Result {
	objScore := objectScore(obj)
	emoScore := emotionScore(emo)
	styleScore := preset.Score(arc, emo.Excitement)

	var final float64
	if mode == ModeFast {
		final = 0.5*objScore + 0.3*arc.Importance + 0.2*styleScore
	} else {
		final = 0.3*objScore + 0.25*emoScore + 0.25*arc.Importance + 0.2*styleScore
	}

	return &Result{
		Path:       path,
		Object:     obj,
		Emotion:    emo,
		Arc:        arc,
		Style:      style,
		FinalScore: clamp01(final),
		Reason:     composeReason(obj, emo, arc, preset, mode),
		Mode:       mode,
	}
}

// objectScore rates detection richness in [0, 1].
func objectScore(obj *object.Analysis) float64 {
	if obj == nil {
		return 0
	}
	var weighted float64
	weighted += 2.0 * float64(obj.Counts[object.KindRings])
	weighted += 1.5 * float64(obj.Counts[object.KindCeremony])
	weighted += 1.0 * float64(obj.Counts[object.KindCake])
	weighted += 0.8 * float64(obj.Counts[object.KindDancing])
	weighted += 0.8 * float64(obj.Counts[object.KindToast])
	weighted += 0.5 * float64(obj.Counts[object.KindBouquet])
	weighted += 0.2 * float64(obj.Counts[object.KindPeople])
	return clamp01(weighted/20.0 + math.Min(0.3, 0.03*float64(len(obj.KeyMoments))))
}

// emotionScore rates emotional warmth and energy in [0, 1].
func emotionScore(emo *emotion.Analysis) float64 {
	if emo == nil {
		return 0
	}
	warm := emo.Scores[emotion.Joy] + emo.Scores[emotion.Love] + emo.Scores[emotion.Celebration]
	score := 0.5*math.Min(1.0, warm/1.5) + 0.3*emo.Excitement
	if emo.Sentiment == emotion.SentimentPositive {
		score += 0.2
	}
	return clamp01(score)
}

// composeReason builds the human-readable selection explanation.
func composeReason(obj *object.Analysis, emo *emotion.Analysis, arc *story.Arc, preset *story.Preset, mode Mode) string {
	var parts []string
	parts = append(parts, fmt.Sprintf("%s scene at the %s", arc.Scene, arc.Position))

	var detected []string
	for _, kind := range object.Kinds() {
		if obj != nil && obj.Counts[kind] > 0 && kind != object.KindPeople {
			detected = append(detected, strings.ReplaceAll(string(kind), "_", " "))
		}
	}
	if len(detected) > 0 {
		parts = append(parts, "featuring "+strings.Join(detected, ", "))
	}
	if emo != nil && emo.Sentiment == emotion.SentimentPositive {
		parts = append(parts, fmt.Sprintf("%s tone", arc.Tone))
	}
	parts = append(parts, fmt.Sprintf("importance %.2f for the %s style", arc.Importance, preset.Name))
	if mode == ModeFast {
		parts = append(parts, "(fast analysis)")
	}
	return strings.Join(parts, ", ")
}

// SelectBest analyzes the clips in batches and returns up to n results
// ordered by final score descending. Per-clip failures are logged and the
// clip dropped. Once at least 2n clips are analyzed and at least n of them
// score above the strong-candidate threshold, remaining batches are
// skipped.
func (s *Selector) SelectBest(ctx context.Context, paths []string, n int, style string, preset *story.Preset, fast bool) ([]*Result, error) {
	if len(paths) == 0 {
		return nil, fmt.Errorf("no clips to select from")
	}
	if n <= 0 {
		n = len(paths)
	}

	var results []*Result
	for batchStart := 0; batchStart < len(paths); batchStart += s.batchSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		end := batchStart + s.batchSize
		if end > len(paths) {
			end = len(paths)
		}
		batch := paths[batchStart:end]

		batchResults := make([]*Result, len(batch))
		g, gctx := errgroup.WithContext(ctx)
		for i, path := range batch {
			i, path := i, path
			g.Go(func() error {
				var (
					r   *Result
					err error
				)
				if fast {
					r, err = s.AnalyzeFast(gctx, path, style, preset)
				} else {
					r, err = s.Analyze(gctx, path, style, preset)
				}
				if err != nil {
					s.logger.Warn("clip analysis failed, dropping clip", "path", path, "error", err)
					return nil
				}
				batchResults[i] = r
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
		for _, r := range batchResults {
			if r != nil {
				results = append(results, r)
			}
		}

		if shouldExitEarly(results, n) {
			s.logger.Debug("early exit: enough strong candidates",
				"analyzed", len(results), "wanted", n)
			break
		}
	}

	if len(results) == 0 {
		return nil, fmt.Errorf("all %d clips failed analysis", len(paths))
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].FinalScore > results[j].FinalScore
	})
	if len(results) > n {
		results = results[:n]
	}
	return results, nil
}

// shouldExitEarly applies the 2n-analyzed / n-strong rule.
func shouldExitEarly(results []*Result, n int) bool {
	if len(results) < 2*n {
		return false
	}
	strong := 0
	for _, r := range results {
		if r.FinalScore > earlyExitScore {
			strong++
		}
	}
	return strong >= n
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
