package media

import (
	"bytes"
	"context"
	"fmt"
	"strconv"

	"github.com/reelsmith/reelsmith/internal/ffmpeg"
)

// Analysis frames are decoded small: heuristics operate on coarse pixel
// statistics, not fine detail, and small frames keep decode cost flat.
const (
	FrameWidth  = 160
	FrameHeight = 90
)

// GrayFrame is a single grayscale analysis frame.
type GrayFrame struct {
	Time float64 // absolute seconds within the source
	W, H int
	Pix  []byte // len = W*H, row-major
}

// RGBFrame is a single RGB24 analysis frame.
type RGBFrame struct {
	Time float64
	W, H int
	Pix  []byte // len = W*H*3, row-major RGB triplets
}

// FrameExtractor pulls downscaled raw frames and raw PCM out of media
// files through the transcoder.
type FrameExtractor struct {
	runner *ffmpeg.Runner
}

// NewFrameExtractor creates a frame extractor.
func NewFrameExtractor(runner *ffmpeg.Runner) *FrameExtractor {
	return &FrameExtractor{runner: runner}
}

// GrayFrames decodes grayscale frames sampled at the given rate (frames
// per second) across the whole file.
func (e *FrameExtractor) GrayFrames(ctx context.Context, path string, rate float64) ([]GrayFrame, error) {
	return e.GrayFramesRange(ctx, path, rate, 0, 0)
}

// GrayFramesRange decodes grayscale frames restricted to [start, start+window).
// A zero window means "to end of file". Frame times are absolute.
func (e *FrameExtractor) GrayFramesRange(ctx context.Context, path string, rate, start, window float64) ([]GrayFrame, error) {
	raw, err := e.rawFrames(ctx, path, rate, start, window, "gray")
	if err != nil {
		return nil, err
	}

	frameSize := FrameWidth * FrameHeight
	count := len(raw) / frameSize
	frames := make([]GrayFrame, 0, count)
	for i := 0; i < count; i++ {
		frames = append(frames, GrayFrame{
			Time: start + float64(i)/rate,
			W:    FrameWidth,
			H:    FrameHeight,
			Pix:  raw[i*frameSize : (i+1)*frameSize],
		})
	}
	return frames, nil
}

// RGBFrames decodes RGB frames sampled at the given rate across the file.
func (e *FrameExtractor) RGBFrames(ctx context.Context, path string, rate float64) ([]RGBFrame, error) {
	return e.RGBFramesRange(ctx, path, rate, 0, 0)
}

// RGBFramesRange decodes RGB frames restricted to [start, start+window).
// A zero window means "to end of file". Frame times are absolute.
func (e *FrameExtractor) RGBFramesRange(ctx context.Context, path string, rate, start, window float64) ([]RGBFrame, error) {
	raw, err := e.rawFrames(ctx, path, rate, start, window, "rgb24")
	if err != nil {
		return nil, err
	}

	frameSize := FrameWidth * FrameHeight * 3
	count := len(raw) / frameSize
	frames := make([]RGBFrame, 0, count)
	for i := 0; i < count; i++ {
		frames = append(frames, RGBFrame{
			Time: start + float64(i)/rate,
			W:    FrameWidth,
			H:    FrameHeight,
			Pix:  raw[i*frameSize : (i+1)*frameSize],
		})
	}
	return frames, nil
}

func (e *FrameExtractor) rawFrames(ctx context.Context, path string, rate, start, window float64, pixFmt string) ([]byte, error) {
	if rate <= 0 {
		return nil, fmt.Errorf("frame rate must be positive, got %v", rate)
	}

	args := []string{"-v", "error"}
	if start > 0 {
		args = append(args, "-ss", formatSeconds(start))
	}
	if window > 0 {
		args = append(args, "-t", formatSeconds(window))
	}
	args = append(args,
		"-i", path,
		"-vf", fmt.Sprintf("fps=%s,scale=%d:%d", formatSeconds(rate), FrameWidth, FrameHeight),
		"-f", "rawvideo",
		"-pix_fmt", pixFmt,
		"-",
	)

	var buf bytes.Buffer
	if _, err := e.runner.RunToWriter(ctx, &buf, args...); err != nil {
		return nil, fmt.Errorf("decoding frames from %s: %w", path, err)
	}
	return buf.Bytes(), nil
}

// FirstFrameJPEG extracts the first frame of the file as JPEG bytes,
// suitable for thumbnailing.
func (e *FrameExtractor) FirstFrameJPEG(ctx context.Context, path string) ([]byte, error) {
	var buf bytes.Buffer
	_, err := e.runner.RunToWriter(ctx, &buf,
		"-v", "error",
		"-i", path,
		"-frames:v", "1",
		"-f", "image2",
		"-c:v", "mjpeg",
		"-",
	)
	if err != nil {
		return nil, fmt.Errorf("extracting thumbnail from %s: %w", path, err)
	}
	if buf.Len() == 0 {
		return nil, fmt.Errorf("no thumbnail data from %s", path)
	}
	return buf.Bytes(), nil
}

// PCM decodes the file's audio stream to mono 16-bit PCM at the given
// sample rate and returns float64 samples. Files without audio fail here;
// callers decide whether that is fatal.
func (e *FrameExtractor) PCM(ctx context.Context, path string, sampleRate int) ([]float64, error) {
	var buf bytes.Buffer
	_, err := e.runner.RunToWriter(ctx, &buf,
		"-v", "error",
		"-i", path,
		"-vn",
		"-f", "s16le",
		"-acodec", "pcm_s16le",
		"-ac", "1",
		"-ar", strconv.Itoa(sampleRate),
		"-",
	)
	if err != nil {
		return nil, fmt.Errorf("decoding audio from %s: %w", path, err)
	}
	if buf.Len() == 0 {
		return nil, fmt.Errorf("no audio stream in %s", path)
	}
	return PCM16ToMono(buf.Bytes(), 1), nil
}

// formatSeconds renders a float without exponent notation for ffmpeg args.
func formatSeconds(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
