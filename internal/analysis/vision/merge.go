package vision

import (
	"strings"

	"github.com/reelsmith/reelsmith/internal/analysis/emotion"
	"github.com/reelsmith/reelsmith/internal/analysis/object"
)

// minRaisedScore is the floor applied to the hinted emotion's score.
const minRaisedScore = 0.6

var sceneHints = map[string]object.Scene{
	"ceremony":    object.SceneCeremony,
	"reception":   object.SceneReception,
	"party":       object.SceneParty,
	"preparation": object.ScenePreparation,
}

// subjectKinds maps classifier subject terms to object kinds by substring.
var subjectKinds = []struct {
	term string
	kind object.Kind
}{
	{"ring", object.KindRings},
	{"cake", object.KindCake},
	{"danc", object.KindDancing},
	{"bouquet", object.KindBouquet},
	{"flower", object.KindBouquet},
	{"toast", object.KindToast},
	{"glass", object.KindToast},
	{"bride", object.KindPeople},
	{"groom", object.KindPeople},
	{"guest", object.KindPeople},
	{"people", object.KindPeople},
	{"couple", object.KindPeople},
}

var positiveEmotions = map[emotion.Emotion]bool{
	emotion.Joy:         true,
	emotion.Love:        true,
	emotion.Celebration: true,
	emotion.Excitement:  true,
}

// ApplyHints folds classifier hints into the analyses in place. Nil
// analyses and unrecognized hint values are ignored.
func ApplyHints(hints *Hints, obj *object.Analysis, emo *emotion.Analysis) {
	if hints == nil {
		return
	}

	if obj != nil {
		if scene, ok := sceneHints[strings.ToLower(hints.Scene)]; ok {
			obj.Scene = scene
		}
		for _, subject := range hints.Subjects {
			lower := strings.ToLower(subject)
			for _, m := range subjectKinds {
				if strings.Contains(lower, m.term) {
					if obj.Counts == nil {
						obj.Counts = map[object.Kind]int{}
					}
					obj.Counts[m.kind]++
					break
				}
			}
		}
	}

	if emo != nil {
		hinted := emotion.Emotion(strings.ToLower(hints.Emotion))
		if known(hinted) {
			if emo.Scores == nil {
				emo.Scores = map[emotion.Emotion]float64{}
			}
			if emo.Scores[hinted] < minRaisedScore {
				emo.Scores[hinted] = minRaisedScore
			}
			if positiveEmotions[hinted] {
				emo.Sentiment = emotion.SentimentPositive
				if emo.Excitement < 0.5 {
					emo.Excitement = 0.5
				}
			}
		}
	}
}

func known(e emotion.Emotion) bool {
	for _, candidate := range emotion.Emotions() {
		if candidate == e {
			return true
		}
	}
	return false
}
