package conform

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reelsmith/reelsmith/internal/config"
	"github.com/reelsmith/reelsmith/internal/timeline"
)

func writeSource(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(name+" payload"), 0o644))
	return path
}

func writeTestTimeline(t *testing.T, dir string) (string, []string) {
	t.Helper()
	srcA := writeSource(t, dir, "a.mp4")
	srcB := writeSource(t, dir, "b.mp4")
	music := writeSource(t, dir, "music.mp3")

	tl := &timeline.Timeline{
		Clips: []timeline.Clip{
			{Src: srcA, In: 1.0, Out: 3.5},
			{Src: srcB, In: 0.0, Out: 2.0},
		},
		FPS:           25,
		TargetSeconds: 4,
		Music:         music,
	}
	path := filepath.Join(dir, "timeline.json")
	require.NoError(t, timeline.Write(path, tl))
	return path, []string{srcA, srcB, music}
}

func TestWriteConformList(t *testing.T) {
	dir := t.TempDir()
	listPath := filepath.Join(dir, "conform.txt")
	require.NoError(t, writeConformList(listPath, []timeline.Clip{
		{Src: "/media/a.mp4", In: 1.5, Out: 3.75},
		{Src: "/media/b.mp4", In: 0, Out: 2},
	}))

	raw, err := os.ReadFile(listPath)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	require.Len(t, lines, 6)

	assert.Equal(t, "file '/media/a.mp4'", lines[0])
	assert.Equal(t, "inpoint 1.5", lines[1])
	assert.Equal(t, "duration 2.25", lines[2])
	assert.Equal(t, "file '/media/b.mp4'", lines[3])
	assert.Equal(t, "inpoint 0", lines[4])
	assert.Equal(t, "duration 2", lines[5])
}

func TestRenderArgs(t *testing.T) {
	cfg := config.ProxyConfig{MasterPreset: "medium", MasterCRF: 18}

	args := strings.Join(renderArgs("/ws/conform.txt", "/ws/out.mp4", 30, cfg), " ")
	assert.Contains(t, args, "-f concat")
	assert.Contains(t, args, "-safe 0")
	assert.Contains(t, args, "-an")
	assert.Contains(t, args, "-preset medium")
	assert.Contains(t, args, "-crf 18")
	assert.Contains(t, args, "-r 30")
	assert.Contains(t, args, "-pix_fmt yuv420p")

	// Missing fps falls back to the timeline default.
	args = strings.Join(renderArgs("/ws/conform.txt", "/ws/out.mp4", 0, cfg), " ")
	assert.Contains(t, args, "-r 25")
}

func TestMuxArgs(t *testing.T) {
	args := strings.Join(muxArgs("/ws/video.mp4", "/music.mp3", "/ws/master.mp4"), " ")
	assert.Contains(t, args, loudnormFilter)
	assert.Contains(t, args, "-stream_loop -1")
	assert.Contains(t, args, "-c:v copy")
	assert.Contains(t, args, "-b:a 192k")
	assert.Contains(t, args, "-shortest")
}

func TestConformRejectsMissingTimeline(t *testing.T) {
	c := New(nil, nil, config.ProxyConfig{}, config.StorageConfig{}, nil)
	_, err := c.Conform(context.Background(), Options{TimelinePath: filepath.Join(t.TempDir(), "nope.json")})
	require.Error(t, err)
}

func TestConformRejectsTamperedTimeline(t *testing.T) {
	dir := t.TempDir()
	path, _ := writeTestTimeline(t, dir)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	tampered := strings.Replace(string(raw), "\"target_seconds\": 4", "\"target_seconds\": 9", 1)
	require.NotEqual(t, string(raw), tampered)
	require.NoError(t, os.WriteFile(path, []byte(tampered), 0o644))

	c := New(nil, nil, config.ProxyConfig{}, config.StorageConfig{}, nil)
	_, err = c.Conform(context.Background(), Options{TimelinePath: path})
	require.ErrorIs(t, err, timeline.ErrInvalid)
}

func TestConformRejectsChangedSources(t *testing.T) {
	dir := t.TempDir()
	path, sources := writeTestTimeline(t, dir)

	// Touching a source invalidates its recorded fingerprint.
	future := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(sources[0], future, future))

	c := New(nil, nil, config.ProxyConfig{}, config.StorageConfig{}, nil)
	_, err := c.Conform(context.Background(), Options{TimelinePath: path})
	require.ErrorIs(t, err, timeline.ErrSourcesChanged)
}

func TestConformRejectsMissingSource(t *testing.T) {
	dir := t.TempDir()
	path, sources := writeTestTimeline(t, dir)
	require.NoError(t, os.Remove(sources[1]))

	c := New(nil, nil, config.ProxyConfig{}, config.StorageConfig{}, nil)
	_, err := c.Conform(context.Background(), Options{TimelinePath: path})
	require.ErrorIs(t, err, timeline.ErrSourcesChanged)
	assert.False(t, errors.Is(err, timeline.ErrInvalid))
}
