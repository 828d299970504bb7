package music

import (
	"math"

	"github.com/reelsmith/reelsmith/internal/media"
)

// tempoWindow is the RMS window size in samples used for onset detection.
// At 22050 Hz this is ~46 ms per window.
const tempoWindow = 1024

// estimateTempo runs autocorrelation-based beat tracking over the onset
// envelope of the samples. It returns the tempo in BPM folded into
// [MinTempo, MaxTempo] and a confidence in [0, 1]. A zero tempo means the
// signal had no usable periodicity.
func estimateTempo(samples []float64, sampleRate int) (float64, float64) {
	energies := media.RMSWindows(samples, tempoWindow)
	if len(energies) < 8 {
		return 0, 0
	}

	// Half-wave rectified energy flux: rises mark onsets.
	flux := make([]float64, len(energies)-1)
	var fluxSum float64
	for i := 1; i < len(energies); i++ {
		d := energies[i] - energies[i-1]
		if d < 0 {
			d = 0
		}
		flux[i-1] = d
		fluxSum += d
	}
	if fluxSum == 0 {
		return 0, 0
	}

	windowDur := float64(tempoWindow) / float64(sampleRate)
	minLag := int(math.Floor(60.0 / MaxTempo / windowDur)) // shortest beat period
	maxLag := int(math.Ceil(60.0 / MinTempo / windowDur))  // longest beat period
	if minLag < 1 {
		minLag = 1
	}
	if maxLag >= len(flux) {
		maxLag = len(flux) - 1
	}
	if maxLag <= minLag {
		return 0, 0
	}

	var norm float64
	for _, v := range flux {
		norm += v * v
	}
	if norm == 0 {
		return 0, 0
	}

	bestLag, bestCorr := 0, 0.0
	for lag := minLag; lag <= maxLag; lag++ {
		var corr float64
		for i := lag; i < len(flux); i++ {
			corr += flux[i] * flux[i-lag]
		}
		corr /= norm
		if corr > bestCorr {
			bestCorr = corr
			bestLag = lag
		}
	}
	if bestLag == 0 {
		return 0, 0
	}

	tempo := foldTempo(60.0 / (float64(bestLag) * windowDur))
	confidence := math.Min(1.0, bestCorr*2)
	return tempo, confidence
}

// foldTempo maps a raw BPM estimate into [MinTempo, MaxTempo] by octave
// doubling or halving.
func foldTempo(bpm float64) float64 {
	if bpm <= 0 {
		return FallbackTempo
	}
	for bpm < MinTempo {
		bpm *= 2
	}
	for bpm > MaxTempo {
		bpm /= 2
	}
	if bpm < MinTempo {
		return MinTempo
	}
	return bpm
}
