package assembler

import (
	"fmt"
	"strconv"

	"github.com/reelsmith/reelsmith/internal/config"
)

// loudnormFilter is the EBU R128 normalization chain applied to every
// music mux: -14 LUFS integrated, -1.5 dBTP ceiling, LRA 11.
const loudnormFilter = "loudnorm=I=-14:TP=-1.5:LRA=11"

const (
	previewWidth  = 1280
	previewHeight = 720

	audioSampleRate = "48000"
	muxAudioBitrate = "192k"
)

// proxyArgs builds the transcode of one source into a 720p fast-start
// proxy.
func proxyArgs(src, out string, cfg config.ProxyConfig) []string {
	return []string{
		"-v", "error",
		"-y",
		"-i", src,
		"-vf", fmt.Sprintf("scale=-2:%d", previewHeight),
		"-c:v", "libx264",
		"-preset", cfg.Preset,
		"-crf", strconv.Itoa(cfg.CRF),
		"-c:a", "aac",
		"-b:a", cfg.AudioBitrate,
		"-movflags", "+faststart",
		out,
	}
}

// segmentArgs builds the trim-and-normalize encode of one segment into
// the uniform intermediate format used for concatenation.
func segmentArgs(proxy string, start, duration float64, out string, cfg config.ProxyConfig) []string {
	return []string{
		"-v", "error",
		"-y",
		"-ss", formatSeconds(start),
		"-i", proxy,
		"-t", formatSeconds(duration),
		"-vf", fmt.Sprintf("scale=%d:%d,fps=%d", previewWidth, previewHeight, cfg.FPS),
		"-c:v", "libx264",
		"-preset", cfg.Preset,
		"-crf", strconv.Itoa(cfg.CRF),
		"-pix_fmt", "yuv420p",
		"-c:a", "aac",
		"-b:a", cfg.AudioBitrate,
		"-ar", audioSampleRate,
		"-ac", "2",
		out,
	}
}

// trimArgs shortens an already-encoded segment without re-encoding.
func trimArgs(src string, duration float64, out string) []string {
	return []string{
		"-v", "error",
		"-y",
		"-i", src,
		"-t", formatSeconds(duration),
		"-c", "copy",
		out,
	}
}

// concatArgs stitches the segment list (concat demuxer file) into one
// stream-copied video.
func concatArgs(listPath, out string) []string {
	return []string{
		"-v", "error",
		"-y",
		"-f", "concat",
		"-safe", "0",
		"-i", listPath,
		"-c", "copy",
		out,
	}
}

// muxArgs overlays the looped music track onto the stitched video with
// loudness normalization, ending at the shorter stream.
func muxArgs(video, musicPath, out string) []string {
	return []string{
		"-v", "error",
		"-y",
		"-i", video,
		"-stream_loop", "-1",
		"-i", musicPath,
		"-map", "0:v:0",
		"-map", "1:a:0",
		"-c:v", "copy",
		"-af", loudnormFilter,
		"-ar", audioSampleRate,
		"-ac", "2",
		"-c:a", "aac",
		"-b:a", muxAudioBitrate,
		"-shortest",
		"-movflags", "+faststart",
		out,
	}
}

// formatSeconds renders a float without exponent notation for ffmpeg args.
func formatSeconds(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
