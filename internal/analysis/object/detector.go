// Package object counts wedding-domain objects per clip with per-frame
// heuristic detectors and classifies the clip's scene from the totals.
package object

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"

	"github.com/reelsmith/reelsmith/internal/ffmpeg"
	"github.com/reelsmith/reelsmith/internal/media"
)

// Kind enumerates the recognized wedding object categories.
type Kind string

const (
	KindRings    Kind = "wedding_rings"
	KindCake     Kind = "wedding_cake"
	KindDancing  Kind = "dancing"
	KindBouquet  Kind = "bouquet"
	KindCeremony Kind = "ceremony_moments"
	KindToast    Kind = "toast_moments"
	KindPeople   Kind = "people"
)

// Kinds lists all categories in stable order.
func Kinds() []Kind {
	return []Kind{KindRings, KindCake, KindDancing, KindBouquet, KindCeremony, KindToast, KindPeople}
}

// Scene classifies what part of the wedding a clip shows.
type Scene string

const (
	SceneCeremony    Scene = "ceremony"
	SceneReception   Scene = "reception"
	SceneParty       Scene = "party"
	ScenePreparation Scene = "preparation"
)

// Per-frame detection caps keep one busy frame from dominating clip totals.
var frameCaps = map[Kind]int{
	KindRings:    4,
	KindCake:     2,
	KindDancing:  10,
	KindBouquet:  3,
	KindCeremony: 8,
	KindToast:    6,
	KindPeople:   math.MaxInt32,
}

// baseConfidence is the heuristic trust per detector kind.
var baseConfidence = map[Kind]float64{
	KindRings:    0.45,
	KindCake:     0.55,
	KindDancing:  0.60,
	KindBouquet:  0.50,
	KindCeremony: 0.65,
	KindToast:    0.50,
	KindPeople:   0.70,
}

// DefaultSampleInterval is the seconds between sampled frames.
const DefaultSampleInterval = 1.5

// motionThreshold is the inter-frame difference above which faces are
// counted as dancing.
const motionThreshold = 0.1

// Analysis is the per-clip object summary.
type Analysis struct {
	Duration   float64          `json:"duration"`
	Counts     map[Kind]int     `json:"objects_detected"`
	Confidence map[Kind]float64 `json:"confidence"`
	KeyMoments []float64        `json:"key_moments"` // ascending seconds
	Scene      Scene            `json:"scene"`
}

// Total returns the count for a kind, zero when absent.
func (a *Analysis) Total(k Kind) int {
	return a.Counts[k]
}

// Detector samples frames and aggregates heuristic object counts.
type Detector struct {
	extractor      *media.FrameExtractor
	prober         *ffmpeg.Prober
	logger         *slog.Logger
	sampleInterval float64
}

// NewDetector creates an object detector sampling every interval seconds.
// A non-positive interval uses the default.
func NewDetector(extractor *media.FrameExtractor, prober *ffmpeg.Prober, interval float64, logger *slog.Logger) *Detector {
	if interval <= 0 {
		interval = DefaultSampleInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Detector{
		extractor:      extractor,
		prober:         prober,
		logger:         logger.With("component", "object-detector"),
		sampleInterval: interval,
	}
}

// Analyze runs all sub-detectors over the sampled frames and classifies
// the scene from the clip totals.
func (d *Detector) Analyze(ctx context.Context, path string) (*Analysis, error) {
	duration, err := d.prober.Duration(ctx, path)
	if err != nil {
		return nil, err
	}

	frames, err := d.extractor.RGBFrames(ctx, path, 1.0/d.sampleInterval)
	if err != nil {
		return nil, fmt.Errorf("sampling frames from %s: %w", path, err)
	}
	if len(frames) == 0 {
		return nil, fmt.Errorf("no decodable frames in %s", path)
	}

	analysis := &Analysis{
		Duration:   duration,
		Counts:     map[Kind]int{},
		Confidence: map[Kind]float64{},
	}

	var prevGray media.GrayFrame
	for i, frame := range frames {
		gray := frame.Gray()
		motion := 0.0
		if i > 0 {
			motion = media.MeanAbsDiff(prevGray, gray) * 4.0
		}
		prevGray = gray

		counts := DetectFrame(frame, motion)
		any := false
		for kind, n := range counts {
			if n == 0 {
				continue
			}
			any = true
			analysis.Counts[kind] += n
		}
		if any {
			analysis.KeyMoments = append(analysis.KeyMoments, frame.Time)
		}
	}

	for kind, n := range analysis.Counts {
		if n > 0 {
			analysis.Confidence[kind] = baseConfidence[kind]
		}
	}
	sort.Float64s(analysis.KeyMoments)
	analysis.Scene = ClassifyScene(analysis.Counts)

	d.logger.Debug("objects detected",
		"path", path,
		"scene", analysis.Scene,
		"key_moments", len(analysis.KeyMoments))
	return analysis, nil
}

// DetectFrame runs every sub-detector against one frame. motion is the
// normalized inter-frame difference against the previous sampled frame.
func DetectFrame(frame media.RGBFrame, motion float64) map[Kind]int {
	faces := media.CountFaces(frame)

	counts := map[Kind]int{
		KindRings:   detectRings(frame),
		KindCake:    detectCake(frame),
		KindBouquet: detectBouquet(frame),
		KindPeople:  faces,
	}

	// Dancing: people visibly in motion.
	if motion > motionThreshold {
		counts[KindDancing] = capCount(KindDancing, faces)
	}
	// Ceremony: a gathered group facing the camera.
	if faces >= 2 {
		counts[KindCeremony] = capCount(KindCeremony, faces)
	}
	// Toast: faces plus raised-glass highlights.
	if faces >= 1 && len(media.Regions(frame, media.MetallicMask, 1)) > 0 {
		counts[KindToast] = capCount(KindToast, faces)
	}
	return counts
}

// detectRings finds small metallic regions.
func detectRings(frame media.RGBFrame) int {
	n := 0
	for _, r := range media.Regions(frame, media.MetallicMask, 1) {
		if r.Blocks <= 4 {
			n++
		}
	}
	return capCount(KindRings, n)
}

// detectCake finds sizable white regions that are not narrow slivers.
func detectCake(frame media.RGBFrame) int {
	n := 0
	for _, r := range media.Regions(frame, media.WhiteMask, 2) {
		if r.AspectRatio() > 0.8 {
			n++
		}
	}
	return capCount(KindCake, n)
}

// detectBouquet finds roundish strongly colored regions.
func detectBouquet(frame media.RGBFrame) int {
	n := 0
	for _, r := range media.Regions(frame, media.ColorfulMask, 1) {
		ar := r.AspectRatio()
		if ar >= 0.5 && ar <= 2.0 && r.Blocks <= 12 {
			n++
		}
	}
	return capCount(KindBouquet, n)
}

// ClassifyScene applies the classification rules to clip totals, first
// match wins.
func ClassifyScene(counts map[Kind]int) Scene {
	switch {
	case counts[KindCeremony] > 3:
		return SceneCeremony
	case counts[KindDancing] > 2:
		return SceneParty
	case counts[KindCake] > 0 || counts[KindToast] > 0:
		return SceneReception
	default:
		return ScenePreparation
	}
}

func capCount(kind Kind, n int) int {
	if c := frameCaps[kind]; n > c {
		return c
	}
	return n
}
