package vision

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/reelsmith/reelsmith/internal/analysis/emotion"
	"github.com/reelsmith/reelsmith/internal/analysis/object"
)

func TestApplyHintsSceneOverride(t *testing.T) {
	obj := &object.Analysis{Scene: object.ScenePreparation, Counts: map[object.Kind]int{}}
	ApplyHints(&Hints{Scene: "Ceremony"}, obj, nil)
	assert.Equal(t, object.SceneCeremony, obj.Scene)

	// Unknown scenes leave the classification alone.
	ApplyHints(&Hints{Scene: "afterparty"}, obj, nil)
	assert.Equal(t, object.SceneCeremony, obj.Scene)
}

func TestApplyHintsSubjectCounts(t *testing.T) {
	obj := &object.Analysis{Counts: map[object.Kind]int{object.KindPeople: 2}}
	ApplyHints(&Hints{
		Subjects: []string{"wedding rings", "the bride", "champagne glasses", "a dog"},
	}, obj, nil)

	assert.Equal(t, 1, obj.Counts[object.KindRings])
	assert.Equal(t, 3, obj.Counts[object.KindPeople])
	assert.Equal(t, 1, obj.Counts[object.KindToast])
	assert.Zero(t, obj.Counts[object.KindCake])
}

func TestApplyHintsEmotionRaise(t *testing.T) {
	emo := &emotion.Analysis{
		Scores:     map[emotion.Emotion]float64{emotion.Love: 0.2},
		Sentiment:  emotion.SentimentNeutral,
		Excitement: 0.1,
	}
	ApplyHints(&Hints{Emotion: "love"}, nil, emo)

	assert.Equal(t, minRaisedScore, emo.Scores[emotion.Love])
	assert.Equal(t, emotion.SentimentPositive, emo.Sentiment)
	assert.Equal(t, 0.5, emo.Excitement)
}

func TestApplyHintsEmotionAlreadyHigh(t *testing.T) {
	emo := &emotion.Analysis{
		Scores:     map[emotion.Emotion]float64{emotion.Joy: 0.9},
		Sentiment:  emotion.SentimentPositive,
		Excitement: 0.8,
	}
	ApplyHints(&Hints{Emotion: "joy"}, nil, emo)

	assert.Equal(t, 0.9, emo.Scores[emotion.Joy], "scores above the floor are untouched")
	assert.Equal(t, 0.8, emo.Excitement)
}

func TestApplyHintsNonPositiveEmotion(t *testing.T) {
	emo := &emotion.Analysis{
		Scores:    map[emotion.Emotion]float64{},
		Sentiment: emotion.SentimentNeutral,
	}
	ApplyHints(&Hints{Emotion: "surprise"}, nil, emo)

	assert.Equal(t, minRaisedScore, emo.Scores[emotion.Surprise])
	assert.Equal(t, emotion.SentimentNeutral, emo.Sentiment, "surprise does not flip sentiment")
	assert.Zero(t, emo.Excitement)
}

func TestApplyHintsUnknownEmotion(t *testing.T) {
	emo := &emotion.Analysis{Scores: map[emotion.Emotion]float64{}}
	ApplyHints(&Hints{Emotion: "melancholy"}, nil, emo)
	assert.Empty(t, emo.Scores)
}

func TestApplyHintsNilTargets(t *testing.T) {
	assert.NotPanics(t, func() {
		ApplyHints(nil, nil, nil)
		ApplyHints(&Hints{Scene: "party", Emotion: "joy"}, nil, nil)
	})
}

func TestEnricherNilReceiverIsNoop(t *testing.T) {
	var e *Enricher
	assert.NotPanics(t, func() {
		e.Enrich(nil, "clip.mp4", nil, nil) //nolint:staticcheck
	})
}

func TestNewEnricherRequiresCredential(t *testing.T) {
	assert.Nil(t, NewEnricher("", "gpt-4o-mini", nil, nil))
	assert.NotNil(t, NewEnricher("sk-test", "gpt-4o-mini", nil, nil))
}
