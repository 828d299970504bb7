// Package ffmpeg provides FFmpeg/FFprobe binary detection and invocation.
package ffmpeg

import (
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/reelsmith/reelsmith/internal/util"
)

// BinaryInfo contains information about the FFmpeg/FFprobe installation.
type BinaryInfo struct {
	FFmpegPath   string `json:"ffmpeg_path"`
	FFprobePath  string `json:"ffprobe_path"`
	Version      string `json:"version"`
	MajorVersion int    `json:"major_version"`
	MinorVersion int    `json:"minor_version"`
}

// BinaryDetector handles detection and caching of FFmpeg binaries.
// Detection runs once and the result is treated as immutable configuration.
type BinaryDetector struct {
	mu      sync.Mutex
	info    *BinaryInfo
	timeout time.Duration

	// Explicit binary paths override detection when non-empty.
	ffmpegPath  string
	ffprobePath string
}

// NewBinaryDetector creates a new binary detector. Probes time out after
// the given duration (10s if zero).
func NewBinaryDetector(ffmpegPath, ffprobePath string, timeout time.Duration) *BinaryDetector {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &BinaryDetector{
		timeout:     timeout,
		ffmpegPath:  ffmpegPath,
		ffprobePath: ffprobePath,
	}
}

// Detect locates ffmpeg and ffprobe and extracts version information.
// The first successful result is cached for the life of the process.
func (d *BinaryDetector) Detect(ctx context.Context) (*BinaryInfo, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.info != nil {
		return d.info, nil
	}

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	info := &BinaryInfo{}

	ffmpegPath := d.ffmpegPath
	if ffmpegPath == "" {
		// Search order: REELSMITH_FFMPEG_BINARY env var -> ./ffmpeg -> PATH -> well-known prefixes
		path, err := util.FindBinary("ffmpeg", "REELSMITH_FFMPEG_BINARY")
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrToolMissing, err)
		}
		ffmpegPath = path
	}
	info.FFmpegPath = ffmpegPath

	ffprobePath := d.ffprobePath
	if ffprobePath == "" {
		path, err := util.FindBinary("ffprobe", "REELSMITH_FFPROBE_BINARY")
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrProbeMissing, err)
		}
		ffprobePath = path
	}
	info.FFprobePath = ffprobePath

	version, err := getVersion(ctx, ffmpegPath)
	if err != nil {
		return nil, fmt.Errorf("getting ffmpeg version: %w", err)
	}
	info.Version = version.full
	info.MajorVersion = version.major
	info.MinorVersion = version.minor

	d.info = info
	return info, nil
}

// versionInfo holds parsed version information.
type versionInfo struct {
	full  string
	major int
	minor int
}

var versionRegex = regexp.MustCompile(`^n?(\d+)\.(\d+)`)

// getVersion extracts version information from ffmpeg.
func getVersion(ctx context.Context, ffmpegPath string) (*versionInfo, error) {
	cmd := exec.CommandContext(ctx, ffmpegPath, "-version")
	output, err := cmd.Output()
	if err != nil {
		return nil, err
	}

	for _, line := range strings.Split(string(output), "\n") {
		if !strings.HasPrefix(line, "ffmpeg version") {
			continue
		}
		// "ffmpeg version 6.0 Copyright..." or "ffmpeg version n6.0-2-g..."
		parts := strings.Fields(line)
		if len(parts) < 3 {
			continue
		}
		info := &versionInfo{full: parts[2]}
		if matches := versionRegex.FindStringSubmatch(parts[2]); len(matches) >= 3 {
			info.major, _ = strconv.Atoi(matches[1])
			info.minor, _ = strconv.Atoi(matches[2])
		}
		return info, nil
	}

	return nil, fmt.Errorf("failed to parse ffmpeg version")
}
