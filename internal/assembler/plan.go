package assembler

import (
	"math"

	"github.com/reelsmith/reelsmith/internal/analysis/music"
)

// Strategy names the trimming rule applied to a clip.
type Strategy string

const (
	StrategyBar     Strategy = "bar"
	StrategyBeat    Strategy = "beat"
	StrategyUniform Strategy = "uniform"
)

// segmentPlan is the trim decision for one clip before best-moment
// refinement: where to cut and for how long.
type segmentPlan struct {
	Index    int
	Strategy Strategy
	Start    float64 // seconds into the clip
	Duration float64 // seconds
}

// searchWindowFor bounds the best-moment search around a bar-synced target
// start.
func searchWindowFor(clipDuration float64) float64 {
	return math.Min(10.0, 0.3*clipDuration)
}

// planSegments chooses the trimming strategy for the whole clip list.
// First rule that applies wins: bar-synced when there are at least as many
// bars as clips, beat-synced when there are enough beats, uniform
// otherwise.
func planSegments(analysis *music.Analysis, clipDurations []float64, target float64) []segmentPlan {
	n := len(clipDurations)
	if n == 0 {
		return nil
	}

	var bars, beats []float64
	if analysis != nil {
		bars, beats = analysis.Bars, analysis.Beats
	}

	plans := make([]segmentPlan, n)
	switch {
	case len(bars) >= n:
		for i := range plans {
			dur := intervalAt(bars, i)
			start := math.Mod(bars[i], clipDurations[i])
			plans[i] = segmentPlan{Index: i, Strategy: StrategyBar, Start: start, Duration: dur}
		}
	case len(beats) >= n:
		for i := range plans {
			dur := intervalAt(beats, i)
			start := clampStart(beats[i], dur, clipDurations[i])
			plans[i] = segmentPlan{Index: i, Strategy: StrategyBeat, Start: start, Duration: dur}
		}
	default:
		dur := target / float64(n)
		for i := range plans {
			plans[i] = segmentPlan{
				Index:    i,
				Strategy: StrategyUniform,
				Start:    middleStart(dur, clipDurations[i]),
				Duration: dur,
			}
		}
	}

	for i := range plans {
		plans[i] = fitToClip(plans[i], clipDurations[i])
	}
	return plans
}

// intervalAt returns the grid interval starting at index i, extending the
// last interval when the grid runs out.
func intervalAt(grid []float64, i int) float64 {
	if len(grid) < 2 {
		return 2.0
	}
	if i+1 < len(grid) {
		return grid[i+1] - grid[i]
	}
	return grid[len(grid)-1] - grid[len(grid)-2]
}

// fitToClip re-centers a segment that overruns its clip and caps the
// duration at the clip length.
func fitToClip(p segmentPlan, clipDuration float64) segmentPlan {
	if p.Duration <= 0 {
		p.Duration = 1.0
	}
	if p.Duration > clipDuration {
		p.Duration = clipDuration
		p.Start = 0
		return p
	}
	if p.Start < 0 {
		p.Start = 0
	}
	if p.Start+p.Duration > clipDuration {
		p.Start = middleStart(p.Duration, clipDuration)
	}
	return p
}

func middleStart(segDuration, clipDuration float64) float64 {
	return math.Max(0, (clipDuration-segDuration)/2)
}

func clampStart(start, segDuration, clipDuration float64) float64 {
	return math.Max(0, math.Min(start, clipDuration-segDuration))
}

// fillLoop returns the segment indexes to append (cycling from the start)
// so the summed duration reaches the target, plus the trim applied to the
// final appended segment. Filling only kicks in below 90% of target.
func fillLoop(segDurations []float64, target float64) (appends []int, lastTrim float64) {
	if len(segDurations) == 0 || target <= 0 {
		return nil, 0
	}
	var total float64
	for _, d := range segDurations {
		if d <= 0 {
			return nil, 0
		}
		total += d
	}
	if total >= 0.9*target {
		return nil, 0
	}

	for i := 0; total < target; i = (i + 1) % len(segDurations) {
		d := segDurations[i]
		if total+d >= target {
			return append(appends, i), target - total
		}
		appends = append(appends, i)
		total += d
	}
	return appends, 0
}

// roundMs rounds seconds to millisecond precision for timeline emission.
func roundMs(v float64) float64 {
	return math.Round(v*1000) / 1000
}
