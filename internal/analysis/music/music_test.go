package music

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clickTrack synthesizes silence with short loud bursts at the given BPM.
func clickTrack(bpm float64, duration float64, sampleRate int, leadIn float64) []float64 {
	samples := make([]float64, int(duration*float64(sampleRate)))
	interval := 60.0 / bpm
	for t := leadIn; t < duration; t += interval {
		start := int(t * float64(sampleRate))
		for i := 0; i < 200 && start+i < len(samples); i++ {
			samples[start+i] = 0.9
		}
	}
	return samples
}

func TestAnalyzeSamplesClickTrack(t *testing.T) {
	samples := clickTrack(120, 30, analysisSampleRate, 0.2)

	analysis := AnalyzeSamples(samples, analysisSampleRate, 0)
	require.NotNil(t, analysis)

	assert.False(t, analysis.Fallback)
	assert.InDelta(t, 120.0, analysis.Tempo, 20.0)
	assert.GreaterOrEqual(t, analysis.Tempo, MinTempo)
	assert.LessOrEqual(t, analysis.Tempo, MaxTempo)
	assert.Equal(t, BeatsPerBar, analysis.BeatsPerBar)
	assert.Equal(t, "4/4", analysis.TimeSignature)
	assert.InDelta(t, 30.0, analysis.Duration, 0.01)
	assert.NotEmpty(t, analysis.Beats)
	assert.NotEmpty(t, analysis.Bars)
}

func TestBeatGridInvariants(t *testing.T) {
	samples := clickTrack(128, 25, analysisSampleRate, 0.3)
	analysis := AnalyzeSamples(samples, analysisSampleRate, 0)

	// Beats strictly increasing.
	for i := 1; i < len(analysis.Beats); i++ {
		assert.Greater(t, analysis.Beats[i], analysis.Beats[i-1])
	}

	// Bars are a subsequence aligned to every fourth beat.
	require.NotEmpty(t, analysis.Bars)
	for i, bar := range analysis.Bars {
		beatIdx := i * BeatsPerBar
		require.Less(t, beatIdx, len(analysis.Beats))
		assert.InDelta(t, analysis.Beats[beatIdx], bar, 1e-9)
	}

	// First bar sits at music start.
	assert.InDelta(t, analysis.MusicStart, analysis.Bars[0], 1e-9)
	assert.GreaterOrEqual(t, analysis.MusicStart, minMusicStart)
	assert.LessOrEqual(t, analysis.MusicStart, maxMusicStart)

	// Regular spacing.
	interval := analysis.BeatInterval()
	for i := 1; i < len(analysis.Beats); i++ {
		assert.InDelta(t, interval, analysis.Beats[i]-analysis.Beats[i-1], 1e-9)
	}
}

func TestAnalyzeSamplesSilenceFallsBack(t *testing.T) {
	samples := make([]float64, 20*analysisSampleRate)
	analysis := AnalyzeSamples(samples, analysisSampleRate, 0)

	assert.True(t, analysis.Fallback)
	assert.Equal(t, FallbackTempo, analysis.Tempo)
	assert.Equal(t, "4/4", analysis.TimeSignature)
	assert.NotEmpty(t, analysis.Beats, "fallback still produces a usable grid")
	assert.NotEmpty(t, analysis.Bars)
	assert.InDelta(t, 0.5, analysis.BeatInterval(), 1e-9)
}

func TestAnalyzeSamplesTargetTruncation(t *testing.T) {
	samples := clickTrack(120, 60, analysisSampleRate, 0.2)
	analysis := AnalyzeSamples(samples, analysisSampleRate, 10)

	limit := analysis.MusicStart + 10
	for _, b := range analysis.Beats {
		assert.Less(t, b, limit)
	}
	for _, b := range analysis.Bars {
		assert.Less(t, b, limit)
	}

	full := AnalyzeSamples(samples, analysisSampleRate, 0)
	assert.Greater(t, len(full.Beats), len(analysis.Beats))
}

func TestDetectMusicStart(t *testing.T) {
	tests := []struct {
		name    string
		leadIn  float64
		wantMin float64
		wantMax float64
	}{
		{"immediate onset clamps to floor", 0.0, minMusicStart, 0.2},
		{"two second lead-in", 2.0, 1.8, 2.2},
		{"long lead-in clamps to ceiling", 8.0, maxMusicStart, maxMusicStart},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			samples := clickTrack(120, 15, analysisSampleRate, tt.leadIn)
			start := detectMusicStart(samples, analysisSampleRate)
			assert.GreaterOrEqual(t, start, tt.wantMin)
			assert.LessOrEqual(t, start, tt.wantMax)
		})
	}
}

func TestFoldTempo(t *testing.T) {
	tests := []struct {
		in   float64
		want float64
	}{
		{120, 120},
		{30, 120},   // doubled twice
		{400, 100},  // halved twice
		{60, 60},
		{200, 200},
		{0, FallbackTempo},
	}
	for _, tt := range tests {
		got := foldTempo(tt.in)
		assert.InDelta(t, tt.want, got, 1e-9, "foldTempo(%v)", tt.in)
		assert.GreaterOrEqual(t, got, MinTempo)
		assert.LessOrEqual(t, got, MaxTempo)
	}
}

func TestEstimateTempoTooShort(t *testing.T) {
	tempo, conf := estimateTempo(make([]float64, 100), analysisSampleRate)
	assert.Zero(t, tempo)
	assert.Zero(t, conf)
}

func TestBarIntervalMatchesTempo(t *testing.T) {
	a := &Analysis{Tempo: 150, BeatsPerBar: BeatsPerBar}
	assert.InDelta(t, 0.4, a.BeatInterval(), 1e-9)
	assert.InDelta(t, 1.6, a.BarInterval(), 1e-9)

	zero := &Analysis{BeatsPerBar: BeatsPerBar}
	assert.InDelta(t, 60.0/FallbackTempo, zero.BeatInterval(), 1e-9)
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 0.1, clamp(0.05, 0.1, 5.0))
	assert.Equal(t, 5.0, clamp(7, 0.1, 5.0))
	assert.Equal(t, 2.5, clamp(2.5, 0.1, 5.0))
	assert.False(t, math.IsNaN(clamp(2.5, 0.1, 5.0)))
}
