// Package media provides low-level decoding helpers shared by the
// content analyzers: WAV parsing, raw-frame extraction, and pixel
// statistics. Everything here is deterministic for a given input.
package media

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"
)

// WavData holds decoded linear-PCM audio as mono float64 samples in [-1, 1].
type WavData struct {
	SampleRate int
	Samples    []float64
}

// Duration returns the audio duration in seconds.
func (w *WavData) Duration() float64 {
	if w.SampleRate == 0 {
		return 0
	}
	return float64(len(w.Samples)) / float64(w.SampleRate)
}

// ReadWav parses a RIFF/WAVE file containing 16-bit linear PCM and returns
// the samples downmixed to mono. Multi-channel input is averaged.
func ReadWav(path string) (*WavData, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading wav: %w", err)
	}
	return DecodeWav(raw)
}

// DecodeWav parses in-memory RIFF/WAVE bytes. See ReadWav.
func DecodeWav(raw []byte) (*WavData, error) {
	if len(raw) < 44 || string(raw[0:4]) != "RIFF" || string(raw[8:12]) != "WAVE" {
		return nil, fmt.Errorf("not a RIFF/WAVE file")
	}

	var (
		sampleRate    int
		channels      int
		bitsPerSample int
		data          []byte
	)

	// Walk chunks; fmt must precede data per spec but tolerate any order.
	offset := 12
	for offset+8 <= len(raw) {
		chunkID := string(raw[offset : offset+4])
		chunkSize := int(binary.LittleEndian.Uint32(raw[offset+4 : offset+8]))
		body := offset + 8
		if body+chunkSize > len(raw) {
			chunkSize = len(raw) - body
		}

		switch chunkID {
		case "fmt ":
			if chunkSize < 16 {
				return nil, fmt.Errorf("short fmt chunk")
			}
			audioFormat := binary.LittleEndian.Uint16(raw[body : body+2])
			if audioFormat != 1 {
				return nil, fmt.Errorf("unsupported wav format %d (want PCM)", audioFormat)
			}
			channels = int(binary.LittleEndian.Uint16(raw[body+2 : body+4]))
			sampleRate = int(binary.LittleEndian.Uint32(raw[body+4 : body+8]))
			bitsPerSample = int(binary.LittleEndian.Uint16(raw[body+14 : body+16]))
		case "data":
			data = raw[body : body+chunkSize]
		}

		// Chunks are word-aligned.
		offset = body + chunkSize
		if chunkSize%2 == 1 {
			offset++
		}
	}

	if sampleRate == 0 || channels == 0 {
		return nil, fmt.Errorf("missing fmt chunk")
	}
	if bitsPerSample != 16 {
		return nil, fmt.Errorf("unsupported bit depth %d (want 16)", bitsPerSample)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("missing data chunk")
	}

	return &WavData{
		SampleRate: sampleRate,
		Samples:    pcm16ToMono(data, channels),
	}, nil
}

// PCM16ToMono converts interleaved little-endian 16-bit PCM bytes to mono
// float64 samples in [-1, 1], averaging channels.
func PCM16ToMono(data []byte, channels int) []float64 {
	return pcm16ToMono(data, channels)
}

func pcm16ToMono(data []byte, channels int) []float64 {
	if channels < 1 {
		channels = 1
	}
	frameBytes := 2 * channels
	frames := len(data) / frameBytes
	mono := make([]float64, frames)
	for i := 0; i < frames; i++ {
		var sum float64
		base := i * frameBytes
		for ch := 0; ch < channels; ch++ {
			s := int16(binary.LittleEndian.Uint16(data[base+2*ch : base+2*ch+2]))
			sum += float64(s) / 32768.0
		}
		mono[i] = sum / float64(channels)
	}
	return mono
}

// RMSWindows computes the root-mean-square energy of consecutive windows
// of windowSize samples. The trailing partial window is dropped.
func RMSWindows(samples []float64, windowSize int) []float64 {
	if windowSize < 1 {
		return nil
	}
	n := len(samples) / windowSize
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		var sum float64
		for j := 0; j < windowSize; j++ {
			s := samples[i*windowSize+j]
			sum += s * s
		}
		out[i] = math.Sqrt(sum / float64(windowSize))
	}
	return out
}

// ZeroCrossingRate returns the fraction of adjacent sample pairs that
// change sign. A brightness proxy for audio content.
func ZeroCrossingRate(samples []float64) float64 {
	if len(samples) < 2 {
		return 0
	}
	crossings := 0
	for i := 1; i < len(samples); i++ {
		if (samples[i-1] >= 0) != (samples[i] >= 0) {
			crossings++
		}
	}
	return float64(crossings) / float64(len(samples)-1)
}
