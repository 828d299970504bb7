package ffmpeg

import (
	"errors"
	"fmt"
)

// stderrTailLimit caps how much captured stderr is attached to errors.
const stderrTailLimit = 500

// Sentinel errors for precondition failures.
var (
	// ErrToolMissing indicates the ffmpeg executable could not be located.
	ErrToolMissing = errors.New("ffmpeg binary not found")

	// ErrProbeMissing indicates the ffprobe executable could not be located.
	ErrProbeMissing = errors.New("ffprobe binary not found")

	// ErrProbeFailed indicates a media duration could not be determined.
	ErrProbeFailed = errors.New("probing media duration failed")
)

// ToolError describes a non-zero exit from the external transcoder.
// StderrTail holds at most the last 500 characters of captured stderr.
type ToolError struct {
	ExitCode   int
	StderrTail string
}

// Error implements the error interface.
func (e *ToolError) Error() string {
	if e.StderrTail == "" {
		return fmt.Sprintf("ffmpeg exited with code %d", e.ExitCode)
	}
	return fmt.Sprintf("ffmpeg exited with code %d: %s", e.ExitCode, e.StderrTail)
}

// tailOf returns at most the last stderrTailLimit characters of s.
func tailOf(s string) string {
	if len(s) <= stderrTailLimit {
		return s
	}
	return s[len(s)-stderrTailLimit:]
}
