package ffmpeg

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"time"
)

// RunResult holds the captured output of a completed invocation.
type RunResult struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
	Duration time.Duration
}

// StderrTail returns at most the last 500 characters of captured stderr.
func (r *RunResult) StderrTail() string {
	return tailOf(string(bytes.TrimSpace(r.Stderr)))
}

// Runner invokes the external transcoder as a child process.
// Arguments are always passed as a list; there is no shell interpretation.
// Stderr is captured even on success for diagnostic logging.
type Runner struct {
	info    *BinaryInfo
	logger  *slog.Logger
	monitor bool
}

// NewRunner creates a runner bound to detected binaries.
func NewRunner(info *BinaryInfo, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{info: info, logger: logger, monitor: true}
}

// WithoutMonitoring disables child-process resource sampling.
func (r *Runner) WithoutMonitoring() *Runner {
	r.monitor = false
	return r
}

// Info returns the detected binary information.
func (r *Runner) Info() *BinaryInfo {
	return r.info
}

// Run executes ffmpeg with the given arguments and waits for completion.
// A non-zero exit returns a *ToolError carrying the exit code and the
// stderr tail; the RunResult is returned in both cases.
func (r *Runner) Run(ctx context.Context, args ...string) (*RunResult, error) {
	return r.run(ctx, r.info.FFmpegPath, args, nil)
}

// RunToWriter executes ffmpeg streaming stdout into w. Used for raw-frame
// and raw-sample extraction where output does not fit in memory comfortably.
func (r *Runner) RunToWriter(ctx context.Context, w io.Writer, args ...string) (*RunResult, error) {
	return r.run(ctx, r.info.FFmpegPath, args, w)
}

// RunProbe executes ffprobe with the given arguments.
func (r *Runner) RunProbe(ctx context.Context, args ...string) (*RunResult, error) {
	return r.run(ctx, r.info.FFprobePath, args, nil)
}

func (r *Runner) run(ctx context.Context, binary string, args []string, stdout io.Writer) (*RunResult, error) {
	started := time.Now()

	cmd := exec.CommandContext(ctx, binary, args...)

	var outBuf, errBuf bytes.Buffer
	if stdout != nil {
		cmd.Stdout = stdout
	} else {
		cmd.Stdout = &outBuf
	}
	cmd.Stderr = &errBuf

	r.logger.DebugContext(ctx, "running transcoder",
		slog.String("binary", binary),
		slog.Any("args", args),
	)

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting %s: %w", binary, err)
	}

	var mon *ProcessMonitor
	if r.monitor && cmd.Process != nil {
		mon = NewProcessMonitor(cmd.Process.Pid)
		mon.Start()
	}

	waitErr := cmd.Wait()

	if mon != nil {
		stats := mon.Stop()
		r.logger.DebugContext(ctx, "transcoder finished",
			slog.Int("pid", stats.PID),
			slog.Float64("cpu_percent", stats.CPUPercent),
			slog.Uint64("memory_rss_bytes", stats.MemoryRSSBytes),
			slog.Duration("duration", time.Since(started)),
		)
	}

	result := &RunResult{
		Stdout:   outBuf.Bytes(),
		Stderr:   errBuf.Bytes(),
		Duration: time.Since(started),
	}

	if waitErr != nil {
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
			return result, &ToolError{
				ExitCode:   result.ExitCode,
				StderrTail: result.StderrTail(),
			}
		}
		return result, fmt.Errorf("running %s: %w", binary, waitErr)
	}

	return result, nil
}
