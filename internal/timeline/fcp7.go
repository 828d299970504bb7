package timeline

import (
	"encoding/xml"
	"fmt"
	"io"
	"math"
	"net/url"
	"os"
	"path/filepath"
)

// Sequence geometry for exported projects. FCP7 interchange XML carries
// the preview's 720p frame size; the NLE relinks to the originals.
const (
	sequenceName = "Reelsmith Highlight Sequence"
	exportWidth  = 1280
	exportHeight = 720
)

// xmeml is the FCP7 interchange root. Version 5 is the dialect Premiere
// imports directly.
type xmeml struct {
	XMLName  xml.Name `xml:"xmeml"`
	Version  string   `xml:"version,attr"`
	Sequence sequence `xml:"sequence"`
}

type sequence struct {
	ID       string      `xml:"id,attr"`
	Name     string      `xml:"name"`
	Duration int         `xml:"duration"`
	Rate     rate        `xml:"rate"`
	Timecode timecode    `xml:"timecode"`
	Media    mediaTracks `xml:"media"`
}

type rate struct {
	Timebase int    `xml:"timebase"`
	NTSC     string `xml:"ntsc"`
}

type timecode struct {
	Rate          rate   `xml:"rate"`
	String        string `xml:"string"`
	Frame         int    `xml:"frame"`
	DisplayFormat string `xml:"displayformat"`
}

type mediaTracks struct {
	Video videoMedia `xml:"video"`
	Audio audioMedia `xml:"audio"`
}

type videoMedia struct {
	Format videoFormat `xml:"format"`
	Track  track       `xml:"track"`
}

type videoFormat struct {
	SampleCharacteristics videoCharacteristics `xml:"samplecharacteristics"`
}

type videoCharacteristics struct {
	Rate             rate   `xml:"rate"`
	Width            int    `xml:"width"`
	Height           int    `xml:"height"`
	PixelAspectRatio string `xml:"pixelaspectratio"`
	FieldDominance   string `xml:"fielddominance"`
	ColorDepth       int    `xml:"colordepth"`
}

type audioMedia struct {
	Format audioFormat `xml:"format"`
	Track  track       `xml:"track"`
}

type audioFormat struct {
	SampleCharacteristics audioCharacteristics `xml:"samplecharacteristics"`
}

type audioCharacteristics struct {
	Depth      int `xml:"depth"`
	SampleRate int `xml:"samplerate"`
}

type track struct {
	ClipItems []clipItem `xml:"clipitem"`
}

type clipItem struct {
	ID          string      `xml:"id,attr"`
	Name        string      `xml:"name"`
	Duration    int         `xml:"duration"`
	Start       int         `xml:"start"`
	End         int         `xml:"end"`
	In          int         `xml:"in"`
	Out         int         `xml:"out"`
	File        fileRef     `xml:"file"`
	SourceTrack sourceTrack `xml:"sourcetrack"`
}

type fileRef struct {
	ID       string    `xml:"id,attr"`
	PathURL  string    `xml:"pathurl"`
	Duration int       `xml:"duration"`
	Rate     rate      `xml:"rate"`
	Media    fileMedia `xml:"media"`
}

type fileMedia struct {
	Video *fileVideo `xml:"video,omitempty"`
	Audio *fileAudio `xml:"audio,omitempty"`
}

type fileVideo struct {
	SampleCharacteristics fileVideoCharacteristics `xml:"samplecharacteristics"`
}

type fileVideoCharacteristics struct {
	Width            int    `xml:"width"`
	Height           int    `xml:"height"`
	PixelAspectRatio string `xml:"pixelaspectratio"`
	FieldDominance   string `xml:"fielddominance"`
}

type fileAudio struct {
	SampleCharacteristics audioCharacteristics `xml:"samplecharacteristics"`
}

type sourceTrack struct {
	MediaType  string `xml:"mediatype"`
	TrackIndex int    `xml:"trackindex"`
}

// ExportFCP7 writes the timeline as an FCP7 interchange sequence for
// import into Premiere or other NLEs. Clips land on one video track at
// their trimmed lengths; the music bed spans the whole sequence on one
// audio track.
func ExportFCP7(w io.Writer, t *Timeline) error {
	if len(t.Clips) == 0 {
		return fmt.Errorf("%w: no clips to export", ErrInvalid)
	}

	fps := t.FPS
	if fps <= 0 {
		fps = DefaultFPS
	}
	seqRate := rate{Timebase: fps, NTSC: "FALSE"}

	items := make([]clipItem, len(t.Clips))
	cursor := 0
	for i, c := range t.Clips {
		length := frames(c.Out-c.In, fps)
		items[i] = clipItem{
			ID:       fmt.Sprintf("clipitem-%d", i+1),
			Name:     filepath.Base(c.Src),
			Duration: length,
			Start:    cursor,
			End:      cursor + length,
			In:       frames(c.In, fps),
			Out:      frames(c.Out, fps),
			File: fileRef{
				ID:       fmt.Sprintf("file-%d", i+1),
				PathURL:  pathURL(c.Src),
				Duration: length,
				Rate:     seqRate,
				Media: fileMedia{Video: &fileVideo{
					SampleCharacteristics: fileVideoCharacteristics{
						Width:            exportWidth,
						Height:           exportHeight,
						PixelAspectRatio: "square",
						FieldDominance:   "none",
					},
				}},
			},
			SourceTrack: sourceTrack{MediaType: "video", TrackIndex: 1},
		}
		cursor += length
	}

	audio := audioMedia{
		Format: audioFormat{SampleCharacteristics: audioCharacteristics{Depth: 16, SampleRate: 48000}},
	}
	if t.Music != "" {
		audio.Track.ClipItems = []clipItem{{
			ID:       "music-clipitem",
			Name:     "Background Music",
			Duration: cursor,
			Start:    0,
			End:      cursor,
			In:       0,
			Out:      cursor,
			File: fileRef{
				ID:       "music-file",
				PathURL:  pathURL(t.Music),
				Duration: cursor,
				Rate:     seqRate,
				Media: fileMedia{Audio: &fileAudio{
					SampleCharacteristics: audioCharacteristics{Depth: 16, SampleRate: 48000},
				}},
			},
			SourceTrack: sourceTrack{MediaType: "audio", TrackIndex: 1},
		}}
	}

	doc := xmeml{
		Version: "5",
		Sequence: sequence{
			ID:       "sequence-1",
			Name:     sequenceName,
			Duration: cursor,
			Rate:     seqRate,
			Timecode: timecode{Rate: seqRate, String: "01:00:00:00", Frame: 0, DisplayFormat: "NDF"},
			Media: mediaTracks{
				Video: videoMedia{
					Format: videoFormat{SampleCharacteristics: videoCharacteristics{
						Rate:             seqRate,
						Width:            exportWidth,
						Height:           exportHeight,
						PixelAspectRatio: "square",
						FieldDominance:   "none",
						ColorDepth:       24,
					}},
					Track: track{ClipItems: items},
				},
				Audio: audio,
			},
		},
	}

	out, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding sequence: %w", err)
	}
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return fmt.Errorf("writing XML declaration: %w", err)
	}
	if _, err := w.Write(append(out, '\n')); err != nil {
		return fmt.Errorf("writing sequence: %w", err)
	}
	return nil
}

// WriteFCP7 exports the timeline to a file.
func WriteFCP7(path string, t *Timeline) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating export %s: %w", path, err)
	}
	if err := ExportFCP7(f, t); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// frames converts seconds to a whole frame count at the given rate.
func frames(seconds float64, fps int) int {
	return int(math.Round(seconds * float64(fps)))
}

// pathURL renders a source path as the percent-encoded file URL the
// interchange format expects.
func pathURL(path string) string {
	u := url.URL{Scheme: "file", Path: path}
	return u.String()
}
