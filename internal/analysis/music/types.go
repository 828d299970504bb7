// Package music derives a beat-and-bar grid from an audio file: tempo,
// music-start offset, beat timestamps, and bar timestamps. The grid drives
// bar- and beat-synced clip trimming downstream.
package music

const (
	// MinTempo and MaxTempo bound the estimator's search range. Estimates
	// outside are folded back in by doubling or halving.
	MinTempo = 60.0
	MaxTempo = 200.0

	// FallbackTempo is used when estimation cannot produce a usable grid.
	FallbackTempo = 120.0

	// BeatsPerBar is fixed: the pipeline assumes common time.
	BeatsPerBar = 4
)

// Confidence reports how trustworthy each part of an analysis is, in [0, 1].
type Confidence struct {
	Tempo   float64 `json:"tempo"`
	Beats   float64 `json:"beats"`
	Overall float64 `json:"overall"`
}

// Analysis is the derived musical structure of an audio file. Beat times
// are strictly increasing, bar times are a subsequence of the beat grid,
// and the first bar coincides with the music-start offset.
type Analysis struct {
	Tempo         float64    `json:"tempo"` // BPM
	BarsPerMinute float64    `json:"bars_per_minute"`
	BeatsPerBar   int        `json:"beats_per_bar"`
	TimeSignature string     `json:"time_signature"`
	MusicStart    float64    `json:"music_start"` // seconds
	Duration      float64    `json:"duration"`    // seconds analyzed
	Beats         []float64  `json:"beats"`       // absolute seconds
	Bars          []float64  `json:"bars"`        // absolute seconds
	Confidence    Confidence `json:"confidence"`
	Fallback      bool       `json:"fallback"`
}

// BeatInterval returns the seconds between consecutive beats.
func (a *Analysis) BeatInterval() float64 {
	if a.Tempo <= 0 {
		return 60.0 / FallbackTempo
	}
	return 60.0 / a.Tempo
}

// BarInterval returns the seconds between consecutive bars.
func (a *Analysis) BarInterval() float64 {
	return float64(a.BeatsPerBar) * a.BeatInterval()
}
