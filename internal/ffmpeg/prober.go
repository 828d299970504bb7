package ffmpeg

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
)

// probeFormat is the subset of ffprobe's format block we consume.
type probeFormat struct {
	Filename   string `json:"filename"`
	FormatName string `json:"format_name"`
	Duration   string `json:"duration"`
	Size       string `json:"size"`
	BitRate    string `json:"bit_rate"`
}

// probeStream is the subset of ffprobe's stream block we consume.
type probeStream struct {
	Index      int    `json:"index"`
	CodecName  string `json:"codec_name"`
	CodecType  string `json:"codec_type"` // video, audio
	Width      int    `json:"width,omitempty"`
	Height     int    `json:"height,omitempty"`
	SampleRate string `json:"sample_rate,omitempty"`
	Channels   int    `json:"channels,omitempty"`
	Duration   string `json:"duration,omitempty"`
}

// probeResult is the parsed ffprobe JSON output.
type probeResult struct {
	Format  probeFormat   `json:"format"`
	Streams []probeStream `json:"streams"`
}

// MediaInfo is a simplified view of a probed media file.
type MediaInfo struct {
	Duration float64 `json:"duration"` // seconds
	HasVideo bool    `json:"has_video"`
	HasAudio bool    `json:"has_audio"`
	Width    int     `json:"width,omitempty"`
	Height   int     `json:"height,omitempty"`
}

// Prober answers duration and stream-layout questions about media files.
type Prober struct {
	runner *Runner
}

// NewProber creates a new media prober.
func NewProber(runner *Runner) *Prober {
	return &Prober{runner: runner}
}

// Duration returns the media duration in seconds as a positive double.
// Fails with ErrProbeFailed if the duration cannot be parsed.
func (p *Prober) Duration(ctx context.Context, path string) (float64, error) {
	info, err := p.Probe(ctx, path)
	if err != nil {
		return 0, err
	}
	return info.Duration, nil
}

// Probe runs ffprobe on the file and returns simplified stream information.
func (p *Prober) Probe(ctx context.Context, path string) (*MediaInfo, error) {
	result, err := p.runner.RunProbe(ctx,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProbeFailed, err)
	}

	var probed probeResult
	if err := json.Unmarshal(result.Stdout, &probed); err != nil {
		return nil, fmt.Errorf("%w: parsing ffprobe output: %v", ErrProbeFailed, err)
	}

	info := &MediaInfo{}
	if probed.Format.Duration != "" {
		if dur, err := strconv.ParseFloat(probed.Format.Duration, 64); err == nil {
			info.Duration = dur
		}
	}
	for _, stream := range probed.Streams {
		switch stream.CodecType {
		case "video":
			info.HasVideo = true
			if info.Width == 0 {
				info.Width = stream.Width
				info.Height = stream.Height
			}
		case "audio":
			info.HasAudio = true
		}
		// Fall back to stream duration when the container omits one.
		if info.Duration == 0 && stream.Duration != "" {
			if dur, err := strconv.ParseFloat(stream.Duration, 64); err == nil {
				info.Duration = dur
			}
		}
	}

	if info.Duration <= 0 {
		return nil, fmt.Errorf("%w: no parsable duration in %s", ErrProbeFailed, path)
	}

	return info, nil
}
