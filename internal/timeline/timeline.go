// Package timeline defines the canonical on-disk edit descriptor. The
// serialization is deterministic: UTF-8 JSON, two-space indent, keys
// sorted, with a self-hash over the bytes as they would exist without the
// hash field. Conform re-renders an edit from this artifact alone.
package timeline

import (
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Version is the timeline schema version stamped into new artifacts.
const Version = "1.0"

// DefaultFPS is the frame rate used when the caller does not choose one.
const DefaultFPS = 25

var (
	// ErrInvalid marks a timeline that fails structural validation.
	ErrInvalid = errors.New("timeline invalid")

	// ErrSourcesChanged marks a timeline whose referenced sources no
	// longer match their recorded hashes.
	ErrSourcesChanged = errors.New("timeline sources changed")
)

// Clip is one edit entry: a source span in seconds.
type Clip struct {
	Src string  `json:"src"`
	In  float64 `json:"in"`
	Out float64 `json:"out"`
}

// Timeline is the canonical edit descriptor.
type Timeline struct {
	BarMarkers       []float64         `json:"bar_markers,omitempty"`
	Clips            []Clip            `json:"clips"`
	CreatedAt        string            `json:"created_at"`
	FPS              int               `json:"fps"`
	Music            string            `json:"music"`
	SourceHashes     map[string]string `json:"source_hashes"`
	TargetSeconds    int               `json:"target_seconds"`
	Tempo            float64           `json:"tempo,omitempty"`
	TimeSignature    string            `json:"time_signature,omitempty"`
	TimelineHash     string            `json:"timeline_hash"`
	UsedBeatSnapping bool              `json:"used_beat_snapping"`
	UsedSceneDetect  bool              `json:"used_scene_detect"`
	Version          string            `json:"version"`
}

// SourceHash fingerprints a source file as sha256 of "path:mtime:size".
// A touched or rewritten file changes the hash.
func SourceHash(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("hashing source %s: %w", path, err)
	}
	sum := sha256.Sum256(fmt.Appendf(nil, "%s:%d:%d", path, info.ModTime().Unix(), info.Size()))
	return fmt.Sprintf("%x", sum), nil
}

// canonicalMap lays the timeline out for deterministic serialization.
// encoding/json sorts map keys, which gives the canonical key order.
func canonicalMap(t *Timeline, includeHash bool) map[string]any {
	clips := make([]map[string]any, len(t.Clips))
	for i, c := range t.Clips {
		clips[i] = map[string]any{"src": c.Src, "in": c.In, "out": c.Out}
	}

	m := map[string]any{
		"clips":              clips,
		"created_at":         t.CreatedAt,
		"fps":                t.FPS,
		"music":              t.Music,
		"source_hashes":      t.SourceHashes,
		"target_seconds":     t.TargetSeconds,
		"used_beat_snapping": t.UsedBeatSnapping,
		"used_scene_detect":  t.UsedSceneDetect,
		"version":            t.Version,
	}
	if len(t.BarMarkers) > 0 {
		m["bar_markers"] = t.BarMarkers
	}
	if t.Tempo != 0 {
		m["tempo"] = t.Tempo
	}
	if t.TimeSignature != "" {
		m["time_signature"] = t.TimeSignature
	}
	if includeHash {
		m["timeline_hash"] = t.TimelineHash
	}
	return m
}

// Canonical renders the timeline's canonical bytes including the hash.
func Canonical(t *Timeline) ([]byte, error) {
	return json.MarshalIndent(canonicalMap(t, true), "", "  ")
}

// ComputeHash returns the sha256 over the canonical serialization with
// the hash field absent.
func ComputeHash(t *Timeline) (string, error) {
	raw, err := json.MarshalIndent(canonicalMap(t, false), "", "  ")
	if err != nil {
		return "", fmt.Errorf("serializing timeline for hashing: %w", err)
	}
	return fmt.Sprintf("%x", sha256.Sum256(raw)), nil
}

// Write finalizes and writes the timeline to path: paths are made
// absolute, source hashes computed, defaults stamped, the self-hash
// inserted, and the canonical bytes written.
func Write(path string, t *Timeline) error {
	if len(t.Clips) == 0 {
		return fmt.Errorf("%w: no clips", ErrInvalid)
	}
	for i := range t.Clips {
		abs, err := filepath.Abs(t.Clips[i].Src)
		if err != nil {
			return fmt.Errorf("resolving clip path %s: %w", t.Clips[i].Src, err)
		}
		t.Clips[i].Src = abs
	}
	if t.Music != "" {
		abs, err := filepath.Abs(t.Music)
		if err != nil {
			return fmt.Errorf("resolving music path %s: %w", t.Music, err)
		}
		t.Music = abs
	}

	if t.FPS == 0 {
		t.FPS = DefaultFPS
	}
	if t.Version == "" {
		t.Version = Version
	}
	if t.CreatedAt == "" {
		t.CreatedAt = time.Now().UTC().Format(time.RFC3339)
	}

	if t.SourceHashes == nil {
		t.SourceHashes = map[string]string{}
	}
	for _, c := range t.Clips {
		if _, ok := t.SourceHashes[c.Src]; ok {
			continue
		}
		h, err := SourceHash(c.Src)
		if err != nil {
			return err
		}
		t.SourceHashes[c.Src] = h
	}
	if t.Music != "" {
		if _, ok := t.SourceHashes[t.Music]; !ok {
			h, err := SourceHash(t.Music)
			if err != nil {
				return err
			}
			t.SourceHashes[t.Music] = h
		}
	}

	hash, err := ComputeHash(t)
	if err != nil {
		return err
	}
	t.TimelineHash = hash

	raw, err := Canonical(t)
	if err != nil {
		return fmt.Errorf("serializing timeline: %w", err)
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("writing timeline %s: %w", path, err)
	}
	return nil
}

// Read parses and structurally validates a timeline file. The recorded
// hash is returned as-is; use Verify for integrity and ValidateSources
// for source freshness.
func Read(path string) (*Timeline, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading timeline %s: %w", path, err)
	}

	var present map[string]json.RawMessage
	if err := json.Unmarshal(raw, &present); err != nil {
		return nil, fmt.Errorf("%w: not valid JSON: %v", ErrInvalid, err)
	}
	for _, field := range []string{"clips", "fps", "target_seconds", "music", "timeline_hash"} {
		if _, ok := present[field]; !ok {
			return nil, fmt.Errorf("%w: missing field %q", ErrInvalid, field)
		}
	}

	var t Timeline
	if err := json.Unmarshal(raw, &t); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if len(t.Clips) == 0 {
		return nil, fmt.Errorf("%w: no clips", ErrInvalid)
	}
	for i, c := range t.Clips {
		if c.Src == "" {
			return nil, fmt.Errorf("%w: clip %d has no src", ErrInvalid, i)
		}
		if c.In < 0 || c.In >= c.Out {
			return nil, fmt.Errorf("%w: clip %d has bad timecodes in=%v out=%v", ErrInvalid, i, c.In, c.Out)
		}
	}
	return &t, nil
}

// Verify recomputes the self-hash and compares it to the recorded one.
func Verify(t *Timeline) error {
	hash, err := ComputeHash(t)
	if err != nil {
		return err
	}
	if hash != t.TimelineHash {
		return fmt.Errorf("%w: hash mismatch: recorded %s, computed %s", ErrInvalid, t.TimelineHash, hash)
	}
	return nil
}

// ValidateSources checks every recorded source still exists with an
// unchanged fingerprint.
func ValidateSources(t *Timeline) error {
	for path, recorded := range t.SourceHashes {
		current, err := SourceHash(path)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrSourcesChanged, path, err)
		}
		if current != recorded {
			return fmt.Errorf("%w: %s was modified since the timeline was written", ErrSourcesChanged, path)
		}
	}
	return nil
}
