package timeline

import (
	"bytes"
	"encoding/xml"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exportSample() *Timeline {
	return &Timeline{
		Clips: []Clip{
			{Src: "/media/a.mp4", In: 1.0, Out: 3.0},
			{Src: "/media/b.mp4", In: 0.0, Out: 2.0},
		},
		Music:         "/media/music.mp3",
		FPS:           25,
		TargetSeconds: 4,
	}
}

func TestExportFCP7Sequence(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, ExportFCP7(&buf, exportSample()))

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, xml.Header), "XML declaration comes first")

	var doc xmeml
	require.NoError(t, xml.Unmarshal(buf.Bytes(), &doc))

	assert.Equal(t, "5", doc.Version)
	seq := doc.Sequence
	assert.Equal(t, "sequence-1", seq.ID)
	assert.Equal(t, 100, seq.Duration, "two 2s clips at 25fps")
	assert.Equal(t, 25, seq.Rate.Timebase)
	assert.Equal(t, "FALSE", seq.Rate.NTSC)
	assert.Equal(t, "01:00:00:00", seq.Timecode.String)
	assert.Equal(t, "NDF", seq.Timecode.DisplayFormat)

	vc := seq.Media.Video.Format.SampleCharacteristics
	assert.Equal(t, 1280, vc.Width)
	assert.Equal(t, 720, vc.Height)
	assert.Equal(t, "square", vc.PixelAspectRatio)
	assert.Equal(t, 24, vc.ColorDepth)
}

func TestExportFCP7VideoClips(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, ExportFCP7(&buf, exportSample()))

	var doc xmeml
	require.NoError(t, xml.Unmarshal(buf.Bytes(), &doc))

	clips := doc.Sequence.Media.Video.Track.ClipItems
	require.Len(t, clips, 2)

	first := clips[0]
	assert.Equal(t, "clipitem-1", first.ID)
	assert.Equal(t, "a.mp4", first.Name)
	assert.Equal(t, 50, first.Duration)
	assert.Equal(t, 0, first.Start)
	assert.Equal(t, 50, first.End)
	assert.Equal(t, 25, first.In, "source in at 1.0s")
	assert.Equal(t, 75, first.Out, "source out at 3.0s")
	assert.Equal(t, "file:///media/a.mp4", first.File.PathURL)
	assert.Equal(t, "video", first.SourceTrack.MediaType)

	second := clips[1]
	assert.Equal(t, 50, second.Start, "clips abut on the timeline")
	assert.Equal(t, 100, second.End)
	assert.Equal(t, 0, second.In)
	assert.Equal(t, 50, second.Out)
}

func TestExportFCP7MusicBed(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, ExportFCP7(&buf, exportSample()))

	var doc xmeml
	require.NoError(t, xml.Unmarshal(buf.Bytes(), &doc))

	audio := doc.Sequence.Media.Audio
	assert.Equal(t, 16, audio.Format.SampleCharacteristics.Depth)
	assert.Equal(t, 48000, audio.Format.SampleCharacteristics.SampleRate)

	require.Len(t, audio.Track.ClipItems, 1)
	music := audio.Track.ClipItems[0]
	assert.Equal(t, "Background Music", music.Name)
	assert.Equal(t, 0, music.Start)
	assert.Equal(t, 100, music.End, "music spans the whole sequence")
	assert.Equal(t, "file:///media/music.mp3", music.File.PathURL)
	assert.Equal(t, "audio", music.SourceTrack.MediaType)
}

func TestExportFCP7NoMusic(t *testing.T) {
	tl := exportSample()
	tl.Music = ""

	var buf bytes.Buffer
	require.NoError(t, ExportFCP7(&buf, tl))

	var doc xmeml
	require.NoError(t, xml.Unmarshal(buf.Bytes(), &doc))
	assert.Empty(t, doc.Sequence.Media.Audio.Track.ClipItems)
}

func TestExportFCP7EncodesPaths(t *testing.T) {
	tl := exportSample()
	tl.Clips[0].Src = "/media/our wedding.mp4"

	var buf bytes.Buffer
	require.NoError(t, ExportFCP7(&buf, tl))
	assert.Contains(t, buf.String(), "file:///media/our%20wedding.mp4")
}

func TestExportFCP7FallbackFPS(t *testing.T) {
	tl := exportSample()
	tl.FPS = 0

	var buf bytes.Buffer
	require.NoError(t, ExportFCP7(&buf, tl))

	var doc xmeml
	require.NoError(t, xml.Unmarshal(buf.Bytes(), &doc))
	assert.Equal(t, DefaultFPS, doc.Sequence.Rate.Timebase)
}

func TestExportFCP7RejectsEmptyTimeline(t *testing.T) {
	var buf bytes.Buffer
	err := ExportFCP7(&buf, &Timeline{})
	require.ErrorIs(t, err, ErrInvalid)
}

func TestWriteFCP7(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sequence.xml")
	require.NoError(t, WriteFCP7(path, exportSample()))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `<xmeml version="5">`)
	assert.Contains(t, string(raw), "<name>Reelsmith Highlight Sequence</name>")
}
