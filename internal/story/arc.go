// Package story maps analyzer outputs onto a narrative arc: a refined
// scene, a story importance, a position in the narrative, an emotional
// tone, and a recommended segment duration. Everything here is a pure
// function of the analyses.
package story

import (
	"fmt"
	"math"

	"github.com/reelsmith/reelsmith/internal/analysis/emotion"
	"github.com/reelsmith/reelsmith/internal/analysis/object"
)

// Scene is the refined scene classification. It extends the object
// detector's coarse classes with emotionally derived ones.
type Scene string

const (
	ScenePreparation Scene = "preparation"
	SceneCeremony    Scene = "ceremony"
	SceneReception   Scene = "reception"
	SceneParty       Scene = "party"
	SceneIntimate    Scene = "intimate_moments"
	SceneScenic      Scene = "scenic"
)

// Position locates a clip within the narrative.
type Position string

const (
	PositionOpening       Position = "opening"
	PositionRisingAction  Position = "rising_action"
	PositionClimax        Position = "climax"
	PositionFallingAction Position = "falling_action"
	PositionResolution    Position = "resolution"
)

// Tone is the dominant emotional register of a clip.
type Tone string

const (
	ToneRomantic    Tone = "romantic"
	ToneJoyful      Tone = "joyful"
	ToneDramatic    Tone = "dramatic"
	ToneIntimate    Tone = "intimate"
	ToneCelebratory Tone = "celebratory"
)

// Arc is the derived narrative profile of one clip.
type Arc struct {
	Scene               Scene    `json:"scene"`
	Importance          float64  `json:"importance"` // [0, 1]
	Position            Position `json:"narrative_position"`
	Tone                Tone     `json:"emotional_tone"`
	RecommendedDuration float64  `json:"recommended_duration"` // seconds, [1, 8]
	Notes               string   `json:"notes"`
}

// positionBy maps refined scenes to narrative positions. The ceremony is
// always the climax of a wedding edit.
var positionBy = map[Scene]Position{
	ScenePreparation: PositionOpening,
	SceneScenic:      PositionOpening,
	SceneParty:       PositionRisingAction,
	SceneCeremony:    PositionClimax,
	SceneReception:   PositionFallingAction,
	SceneIntimate:    PositionResolution,
}

// baseDuration is the per-scene starting recommendation in seconds.
var baseDuration = map[Scene]float64{
	ScenePreparation: 3,
	SceneCeremony:    5,
	SceneReception:   4,
	SceneParty:       3,
	SceneIntimate:    4,
	SceneScenic:      3,
}

// toneDurationMult stretches or tightens the recommendation per tone.
var toneDurationMult = map[Tone]float64{
	ToneRomantic:    1.2,
	ToneJoyful:      0.9,
	ToneDramatic:    1.3,
	ToneIntimate:    1.1,
	ToneCelebratory: 0.8,
}

const (
	minDuration = 1.0
	maxDuration = 8.0

	// highTenderness reclassifies calm affectionate footage as intimate.
	highTenderness = 0.6
)

// Build derives the narrative arc for one clip from its object and
// emotion analyses.
func Build(obj *object.Analysis, emo *emotion.Analysis) *Arc {
	scene := refineScene(obj, emo)
	tone := classifyTone(scene, emo)
	importance := storyImportance(obj, emo)

	arc := &Arc{
		Scene:               scene,
		Importance:          importance,
		Position:            positionBy[scene],
		Tone:                tone,
		RecommendedDuration: recommendDuration(scene, tone, importance),
	}
	arc.Notes = fmt.Sprintf("%s %s clip, importance %.2f", tone, scene, importance)
	return arc
}

// refineScene adjusts the object-derived scene with emotional context.
func refineScene(obj *object.Analysis, emo *emotion.Analysis) Scene {
	base := ScenePreparation
	if obj != nil {
		switch obj.Scene {
		case object.SceneCeremony:
			base = SceneCeremony
		case object.SceneReception:
			base = SceneReception
		case object.SceneParty:
			base = SceneParty
		}
	}

	if emo == nil {
		return base
	}

	// Tender, calm footage reads as an intimate moment regardless of the
	// party around it; the ceremony itself always stays the ceremony.
	if base != SceneCeremony && emo.Scores[emotion.Tenderness] > highTenderness && emo.Excitement < 0.4 {
		return SceneIntimate
	}
	// Empty frames with no people and no excitement are scenery.
	if obj != nil && obj.Counts[object.KindPeople] == 0 && base == ScenePreparation && emo.Excitement < 0.2 {
		return SceneScenic
	}
	return base
}

// storyImportance scores how essential the clip is to the edit.
func storyImportance(obj *object.Analysis, emo *emotion.Analysis) float64 {
	var score float64
	if obj != nil {
		if obj.Counts[object.KindRings] > 0 {
			score += 0.3
		}
		if obj.Counts[object.KindCake] > 0 {
			score += 0.2
		}
		if obj.Counts[object.KindCeremony] > 0 {
			score += 0.4
		}
		if obj.Counts[object.KindDancing] > 0 {
			score += 0.1
		}
		score += math.Min(0.2, 0.02*float64(len(obj.KeyMoments)))
	}
	if emo != nil {
		warm := emo.Scores[emotion.Joy] + emo.Scores[emotion.Love] + emo.Scores[emotion.Celebration]
		score += 0.15 * math.Min(1.0, warm/1.5)
	}
	return clamp01(score)
}

// classifyTone argmaxes five tone scores built from emotions, excitement
// and scene.
func classifyTone(scene Scene, emo *emotion.Analysis) Tone {
	scores := ToneScores(scene, emo)
	best, bestScore := ToneJoyful, -1.0
	for _, tone := range []Tone{ToneRomantic, ToneJoyful, ToneDramatic, ToneIntimate, ToneCelebratory} {
		if scores[tone] > bestScore {
			best, bestScore = tone, scores[tone]
		}
	}
	return best
}

// ToneScores exposes the tone classifier's raw scores.
func ToneScores(scene Scene, emo *emotion.Analysis) map[Tone]float64 {
	var love, joy, tender, excite, celebrate, excitement float64
	if emo != nil {
		love = emo.Scores[emotion.Love]
		joy = emo.Scores[emotion.Joy]
		tender = emo.Scores[emotion.Tenderness]
		excite = emo.Scores[emotion.Excitement]
		celebrate = emo.Scores[emotion.Celebration]
		excitement = emo.Excitement
	}

	scores := map[Tone]float64{
		ToneRomantic:    0.6*love + 0.4*tender,
		ToneJoyful:      0.7*joy + 0.3*excitement,
		ToneDramatic:    0.5*excite + 0.5*excitement,
		ToneIntimate:    0.7*tender + 0.3*love,
		ToneCelebratory: 0.6*celebrate + 0.4*excitement,
	}
	switch scene {
	case SceneCeremony:
		scores[ToneRomantic] += 0.2
		scores[ToneDramatic] += 0.1
	case SceneParty:
		scores[ToneCelebratory] += 0.2
	case SceneIntimate:
		scores[ToneIntimate] += 0.25
	case SceneReception:
		scores[ToneJoyful] += 0.1
	}
	return scores
}

// recommendDuration scales the scene's base duration by importance and
// tone, clamped to [1, 8] seconds.
func recommendDuration(scene Scene, tone Tone, importance float64) float64 {
	base := baseDuration[scene]
	if base == 0 {
		base = 3
	}
	importanceMult := 0.5 + 0.5*importance // [0.5, 1.0]
	toneMult := toneDurationMult[tone]
	if toneMult == 0 {
		toneMult = 1
	}
	d := base * importanceMult * toneMult
	return math.Max(minDuration, math.Min(maxDuration, d))
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
