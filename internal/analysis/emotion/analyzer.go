// Package emotion scores clips for emotional content by blending facial
// heuristics over sampled frames with audio energy features. Audio is an
// optional contribution: clips without an audio stream degrade to
// video-only scoring without failing.
package emotion

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"

	"github.com/reelsmith/reelsmith/internal/ffmpeg"
	"github.com/reelsmith/reelsmith/internal/media"
)

// Emotion enumerates the scored emotion categories.
type Emotion string

const (
	Joy         Emotion = "joy"
	Surprise    Emotion = "surprise"
	Love        Emotion = "love"
	Excitement  Emotion = "excitement"
	Tenderness  Emotion = "tenderness"
	Celebration Emotion = "celebration"
)

// Emotions lists all categories in stable order.
func Emotions() []Emotion {
	return []Emotion{Joy, Surprise, Love, Excitement, Tenderness, Celebration}
}

// Sentiment is the clip-level emotional polarity.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNeutral  Sentiment = "neutral"
	SentimentNegative Sentiment = "negative"
)

const (
	// videoWeight and audioWeight blend the two streams when audio exists.
	videoWeight = 0.7
	audioWeight = 0.3

	// momentConfidenceFloor filters weak per-frame detections.
	momentConfidenceFloor = 0.3
	maxMoments            = 10

	sampleInterval  = 1.5
	audioSampleRate = 22050
)

// Moment is one per-frame emotional detection.
type Moment struct {
	Time       float64 `json:"time"`
	Emotion    Emotion `json:"emotion"`
	Confidence float64 `json:"confidence"`
}

// Analysis is the per-clip emotional summary.
type Analysis struct {
	Duration   float64             `json:"duration"`
	Scores     map[Emotion]float64 `json:"emotions"`
	Moments    []Moment            `json:"emotional_moments"` // confidence-descending, ≤10
	Sentiment  Sentiment           `json:"overall_sentiment"`
	Excitement float64             `json:"excitement_level"`
	HadAudio   bool                `json:"had_audio"`
}

// NeutralAnalysis is the default injected when emotion analysis is skipped
// (fast selection mode) or when a clip yields no usable signal.
func NeutralAnalysis(duration float64) *Analysis {
	scores := map[Emotion]float64{}
	for _, e := range Emotions() {
		scores[e] = 0.3
	}
	return &Analysis{
		Duration:   duration,
		Scores:     scores,
		Sentiment:  SentimentNeutral,
		Excitement: 0.3,
	}
}

// Analyzer blends video and audio emotional heuristics.
type Analyzer struct {
	extractor *media.FrameExtractor
	prober    *ffmpeg.Prober
	logger    *slog.Logger
}

// NewAnalyzer creates an emotion analyzer.
func NewAnalyzer(extractor *media.FrameExtractor, prober *ffmpeg.Prober, logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{
		extractor: extractor,
		prober:    prober,
		logger:    logger.With("component", "emotion-analyzer"),
	}
}

// Analyze scores the clip. Audio decode failure is downgraded to
// video-only scoring, never an error.
func (a *Analyzer) Analyze(ctx context.Context, path string) (*Analysis, error) {
	duration, err := a.prober.Duration(ctx, path)
	if err != nil {
		return nil, err
	}

	frames, err := a.extractor.RGBFrames(ctx, path, 1.0/sampleInterval)
	if err != nil {
		return nil, fmt.Errorf("sampling frames from %s: %w", path, err)
	}
	if len(frames) == 0 {
		return NeutralAnalysis(duration), nil
	}

	videoScores, moments := scoreVideo(frames)

	audioScores := map[Emotion]float64{}
	hadAudio := false
	if samples, audioErr := a.extractor.PCM(ctx, path, audioSampleRate); audioErr == nil && len(samples) > 0 {
		audioScores = scoreAudio(samples, audioSampleRate)
		hadAudio = true
	} else if audioErr != nil {
		a.logger.Debug("audio unavailable, scoring video only", "path", path, "error", audioErr)
	}

	scores := blendScores(videoScores, audioScores, hadAudio)
	analysis := &Analysis{
		Duration:   duration,
		Scores:     scores,
		Moments:    topMoments(moments),
		Sentiment:  deriveSentiment(scores),
		Excitement: excitementLevel(scores),
		HadAudio:   hadAudio,
	}

	a.logger.Debug("emotions scored",
		"path", path,
		"sentiment", analysis.Sentiment,
		"excitement", analysis.Excitement,
		"had_audio", hadAudio)
	return analysis, nil
}

// scoreVideo averages per-frame emotion heuristics and collects moments.
func scoreVideo(frames []media.RGBFrame) (map[Emotion]float64, []Moment) {
	totals := map[Emotion]float64{}
	var moments []Moment
	var prevGray media.GrayFrame

	for i, frame := range frames {
		gray := frame.Gray()
		motion := 0.0
		if i > 0 {
			motion = math.Min(1.0, media.MeanAbsDiff(prevGray, gray)*4.0)
		}
		prevGray = gray

		frameScores := scoreFrame(frame, gray, motion)
		dominant, conf := dominantEmotion(frameScores)
		if conf > momentConfidenceFloor {
			moments = append(moments, Moment{Time: frame.Time, Emotion: dominant, Confidence: conf})
		}
		for e, v := range frameScores {
			totals[e] += v
		}
	}

	n := float64(len(frames))
	for e := range totals {
		totals[e] = clamp01(totals[e] / n)
	}
	return totals, moments
}

// scoreFrame maps pixel statistics of a single frame to emotion scores.
// Faces drive everything: a frame without people is emotionally flat.
func scoreFrame(frame media.RGBFrame, gray media.GrayFrame, motion float64) map[Emotion]float64 {
	faces := float64(media.CountFaces(frame))
	facePresence := math.Min(1.0, faces/3.0)
	brightness := media.MeanGray(gray)
	warmth := clamp01(media.MeanWarmth(frame)*4 + 0.2)
	saturation := media.MeanSaturation(frame)

	return map[Emotion]float64{
		Joy:         clamp01(facePresence * (0.4*brightness + 0.4*warmth + 0.2*saturation) * 1.5),
		Surprise:    clamp01(facePresence * motion * 0.8),
		Love:        clamp01(pairPresence(faces) * warmth),
		Excitement:  clamp01(facePresence * (0.6*motion + 0.4*saturation) * 1.3),
		Tenderness:  clamp01(facePresence * (1 - motion) * warmth * 0.9),
		Celebration: clamp01(math.Min(1.0, faces/5.0) * (0.5*motion + 0.3*brightness + 0.2*saturation) * 1.4),
	}
}

// pairPresence peaks when exactly two faces are in frame.
func pairPresence(faces float64) float64 {
	if faces < 1 {
		return 0
	}
	if faces == 2 {
		return 1
	}
	return 0.5
}

// scoreAudio derives emotion scores from energy, brightness (zero-crossing
// rate) and dynamics of the mono audio stream.
func scoreAudio(samples []float64, sampleRate int) map[Emotion]float64 {
	energies := media.RMSWindows(samples, sampleRate/10)
	if len(energies) == 0 {
		return map[Emotion]float64{}
	}
	var mean, peak float64
	for _, e := range energies {
		mean += e
		peak = math.Max(peak, e)
	}
	mean /= float64(len(energies))
	energy := math.Min(1.0, mean*4)
	dynamics := 0.0
	if peak > 0 {
		dynamics = clamp01(1 - mean/peak)
	}
	zcr := media.ZeroCrossingRate(samples)
	brightness := math.Min(1.0, zcr*8)

	return map[Emotion]float64{
		Joy:         clamp01(0.5*energy + 0.5*brightness),
		Surprise:    clamp01(dynamics * 0.8),
		Love:        clamp01((1 - brightness) * 0.6),
		Excitement:  clamp01(0.7*energy + 0.3*dynamics),
		Tenderness:  clamp01((1 - energy) * 0.7),
		Celebration: clamp01(0.6*energy + 0.4*brightness),
	}
}

// blendScores combines the two streams at 0.7 video / 0.3 audio when
// audio contributed.
func blendScores(video, audio map[Emotion]float64, hadAudio bool) map[Emotion]float64 {
	out := map[Emotion]float64{}
	for _, e := range Emotions() {
		if hadAudio {
			out[e] = clamp01(videoWeight*video[e] + audioWeight*audio[e])
		} else {
			out[e] = clamp01(video[e])
		}
	}
	return out
}

// deriveSentiment is positive when the warm emotions dominate. The
// heuristics have no negative detector, so the floor is neutral.
func deriveSentiment(scores map[Emotion]float64) Sentiment {
	if scores[Joy]+scores[Love]+scores[Celebration] > 0.5 {
		return SentimentPositive
	}
	return SentimentNeutral
}

// excitementLevel fuses the high-arousal scores.
func excitementLevel(scores map[Emotion]float64) float64 {
	return clamp01(0.5*scores[Excitement] + 0.3*scores[Celebration] + 0.2*scores[Joy])
}

// topMoments keeps the ten most confident moments, confidence descending.
func topMoments(moments []Moment) []Moment {
	sort.SliceStable(moments, func(i, j int) bool {
		return moments[i].Confidence > moments[j].Confidence
	})
	if len(moments) > maxMoments {
		moments = moments[:maxMoments]
	}
	return moments
}

func dominantEmotion(scores map[Emotion]float64) (Emotion, float64) {
	var bestEmotion Emotion
	bestScore := -1.0
	for _, e := range Emotions() {
		if scores[e] > bestScore {
			bestScore = scores[e]
			bestEmotion = e
		}
	}
	return bestEmotion, bestScore
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
