// Package visual scores sampled frames for faces, motion, brightness,
// contrast and stability, fuses them into a per-clip quality score, and
// ranks the most promising moments for trimming.
package visual

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"

	"github.com/reelsmith/reelsmith/internal/ffmpeg"
	"github.com/reelsmith/reelsmith/internal/media"
)

const (
	// DefaultSampleRate is the frames-per-second evaluated when the caller
	// does not choose one.
	DefaultSampleRate = 1.0

	maxBestMoments    = 10
	maxWindowMoments  = 5
	minSpacingFrac    = 0.1
	faceNormalization = 5.0

	// idealMotion is the motion level overall quality rewards most.
	// Tunable; calmer footage scores higher when lowered.
	idealMotion = 0.3

	// motionGain maps raw inter-frame pixel difference into a usable
	// [0, 1] score; raw differences above 1/motionGain saturate.
	motionGain = 4.0
)

// Moment is a single sampled frame's scores.
type Moment struct {
	Time       float64 `json:"time"`
	FaceScore  float64 `json:"face_score"`
	Motion     float64 `json:"motion"`
	Brightness float64 `json:"brightness"`
	Contrast   float64 `json:"contrast"`
	Stability  float64 `json:"stability"`
	Combined   float64 `json:"combined"`
}

// Analysis is the per-clip visual-quality summary.
type Analysis struct {
	Duration        float64   `json:"duration"`
	FaceCount       float64   `json:"face_count"` // mean faces per sampled frame
	FaceConfidence  float64   `json:"face_confidence"`
	MotionScore     float64   `json:"motion_score"`
	BrightnessScore float64   `json:"brightness_score"`
	ContrastScore   float64   `json:"contrast_score"`
	StabilityScore  float64   `json:"stability_score"`
	OverallQuality  float64   `json:"overall_quality"`
	BestMoments     []float64 `json:"best_moments"` // ascending seconds
}

// Analyzer samples frames through the transcoder and scores them.
type Analyzer struct {
	extractor *media.FrameExtractor
	prober    *ffmpeg.Prober
	logger    *slog.Logger
}

// NewAnalyzer creates a visual analyzer.
func NewAnalyzer(extractor *media.FrameExtractor, prober *ffmpeg.Prober, logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{
		extractor: extractor,
		prober:    prober,
		logger:    logger.With("component", "visual-analyzer"),
	}
}

// Analyze scores the whole clip at sampleRate frames per second.
func (a *Analyzer) Analyze(ctx context.Context, path string, sampleRate float64) (*Analysis, error) {
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}

	duration, err := a.prober.Duration(ctx, path)
	if err != nil {
		return nil, err
	}

	frames, err := a.extractor.RGBFrames(ctx, path, sampleRate)
	if err != nil {
		return nil, fmt.Errorf("sampling frames from %s: %w", path, err)
	}
	if len(frames) == 0 {
		return nil, fmt.Errorf("no decodable frames in %s", path)
	}

	moments, meanFaces := scoreFrames(frames)
	analysis := summarize(moments, meanFaces, duration)
	analysis.BestMoments = SelectBestMoments(moments, duration, maxBestMoments)

	a.logger.Debug("clip scored",
		"path", path,
		"frames", len(frames),
		"overall", analysis.OverallQuality,
		"best_moments", len(analysis.BestMoments))
	return analysis, nil
}

// BestMomentsIn restricts sampling to [start, start+window) and returns up
// to five absolute timestamps ranked best-first then reordered ascending.
func (a *Analyzer) BestMomentsIn(ctx context.Context, path string, start, window, sampleRate float64) ([]float64, error) {
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}
	frames, err := a.extractor.RGBFramesRange(ctx, path, sampleRate, start, window)
	if err != nil {
		return nil, fmt.Errorf("sampling window of %s: %w", path, err)
	}
	if len(frames) == 0 {
		return nil, nil
	}
	moments, _ := scoreFrames(frames)
	return SelectBestMoments(moments, window, maxWindowMoments), nil
}

// scoreFrames computes per-frame moments plus the mean face count.
func scoreFrames(frames []media.RGBFrame) ([]Moment, float64) {
	moments := make([]Moment, 0, len(frames))
	var prevGray media.GrayFrame
	var faceTotal float64

	for i, frame := range frames {
		gray := frame.Gray()

		faces := media.CountFaces(frame)
		faceTotal += float64(faces)
		faceScore := math.Min(1.0, float64(faces)/faceNormalization)

		var motion float64
		if i > 0 {
			motion = math.Min(1.0, media.MeanAbsDiff(prevGray, gray)*motionGain)
		}
		prevGray = gray

		brightness := 1.0 - 2.0*math.Abs(media.MeanGray(gray)-0.5)
		contrast := math.Min(1.0, media.StdDevGray(gray)*4.0)
		stability := 1.0 - motion

		moments = append(moments, Moment{
			Time:       frame.Time,
			FaceScore:  faceScore,
			Motion:     motion,
			Brightness: brightness,
			Contrast:   contrast,
			Stability:  stability,
			Combined:   0.4*faceScore + 0.3*motion + 0.3*brightness,
		})
	}
	return moments, faceTotal / float64(len(frames))
}

// summarize averages per-frame scores and fuses the overall quality.
func summarize(moments []Moment, meanFaces, duration float64) *Analysis {
	var face, motion, brightness, contrast, stability float64
	for _, m := range moments {
		face += m.FaceScore
		motion += m.Motion
		brightness += m.Brightness
		contrast += m.Contrast
		stability += m.Stability
	}
	n := float64(len(moments))
	face /= n
	motion /= n
	brightness /= n
	contrast /= n
	stability /= n

	// Overall quality rewards motion near the ideal level, not maximal motion.
	motionFit := 1.0 - math.Abs(motion-idealMotion)/(1.0-idealMotion)
	if motionFit < 0 {
		motionFit = 0
	}

	return &Analysis{
		Duration:        duration,
		FaceCount:       meanFaces,
		FaceConfidence:  math.Min(1.0, meanFaces/3.0),
		MotionScore:     motion,
		BrightnessScore: brightness,
		ContrastScore:   contrast,
		StabilityScore:  stability,
		OverallQuality: clamp01(0.3*face +
			0.2*motionFit +
			0.2*brightness +
			0.15*contrast +
			0.15*stability),
	}
}

// SelectBestMoments picks up to limit timestamps greedily by combined score,
// rejecting candidates closer than 10% of duration to an already-picked
// moment, and returns them in chronological order.
func SelectBestMoments(moments []Moment, duration float64, limit int) []float64 {
	if len(moments) == 0 || limit <= 0 {
		return nil
	}

	ranked := make([]Moment, len(moments))
	copy(ranked, moments)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Combined > ranked[j].Combined
	})

	minSpacing := minSpacingFrac * duration
	var picked []float64
	for _, m := range ranked {
		if len(picked) >= limit {
			break
		}
		ok := true
		for _, p := range picked {
			if math.Abs(m.Time-p) < minSpacing {
				ok = false
				break
			}
		}
		if ok {
			picked = append(picked, m.Time)
		}
	}
	sort.Float64s(picked)
	return picked
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
