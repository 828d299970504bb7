package selector

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reelsmith/reelsmith/internal/analysis/emotion"
	"github.com/reelsmith/reelsmith/internal/analysis/object"
	"github.com/reelsmith/reelsmith/internal/story"
)

type fakeObjects struct {
	mu      sync.Mutex
	calls   map[string]int
	results map[string]*object.Analysis
	errs    map[string]error
}

func newFakeObjects() *fakeObjects {
	return &fakeObjects{
		calls:   map[string]int{},
		results: map[string]*object.Analysis{},
		errs:    map[string]error{},
	}
}

func (f *fakeObjects) Analyze(_ context.Context, path string) (*object.Analysis, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[path]++
	if err := f.errs[path]; err != nil {
		return nil, err
	}
	if r, ok := f.results[path]; ok {
		return r, nil
	}
	return &object.Analysis{Duration: 10, Counts: map[object.Kind]int{}, Scene: object.ScenePreparation}, nil
}

func (f *fakeObjects) totalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

type fakeEmotions struct {
	mu    sync.Mutex
	calls int
}

func (f *fakeEmotions) Analyze(_ context.Context, _ string) (*emotion.Analysis, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return emotion.NeutralAnalysis(10), nil
}

func (f *fakeEmotions) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeEnricher struct {
	mu    sync.Mutex
	calls int
}

func (f *fakeEnricher) Enrich(_ context.Context, _ string, _ *object.Analysis, _ *emotion.Analysis) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
}

func strongClip() *object.Analysis {
	return &object.Analysis{
		Duration: 12,
		Scene:    object.SceneCeremony,
		Counts: map[object.Kind]int{
			object.KindRings:    5,
			object.KindCeremony: 8,
			object.KindPeople:   6,
		},
		KeyMoments: []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10},
	}
}

func mustPreset(t *testing.T) *story.Preset {
	t.Helper()
	p, err := story.PresetByName("traditional")
	require.NoError(t, err)
	return p
}

func TestAnalyzeFullRunsBothAnalyzers(t *testing.T) {
	objects := newFakeObjects()
	emotions := &fakeEmotions{}
	enricher := &fakeEnricher{}
	s := New(objects, emotions, enricher, DefaultBatchSize, nil)

	r, err := s.Analyze(context.Background(), "/clips/a.mp4", "traditional", mustPreset(t))
	require.NoError(t, err)

	assert.Equal(t, 1, objects.totalCalls())
	assert.Equal(t, 1, emotions.count())
	assert.Equal(t, 1, enricher.calls)
	assert.Equal(t, ModeFull, r.Mode)
	assert.NotNil(t, r.Arc)
	assert.NotEmpty(t, r.Reason)
	assert.GreaterOrEqual(t, r.FinalScore, 0.0)
	assert.LessOrEqual(t, r.FinalScore, 1.0)
}

func TestAnalyzeFastSkipsEmotion(t *testing.T) {
	objects := newFakeObjects()
	emotions := &fakeEmotions{}
	s := New(objects, emotions, nil, DefaultBatchSize, nil)

	r, err := s.AnalyzeFast(context.Background(), "/clips/a.mp4", "traditional", mustPreset(t))
	require.NoError(t, err)

	assert.Zero(t, emotions.count(), "fast mode never touches the emotion analyzer")
	assert.Equal(t, ModeFast, r.Mode)
	require.NotNil(t, r.Emotion, "a neutral default is injected")
	assert.Equal(t, emotion.SentimentNeutral, r.Emotion.Sentiment)
	assert.Contains(t, r.Reason, "fast analysis")
}

func TestAnalyzeCachesWholeResults(t *testing.T) {
	objects := newFakeObjects()
	s := New(objects, &fakeEmotions{}, nil, DefaultBatchSize, nil)
	preset := mustPreset(t)

	first, err := s.Analyze(context.Background(), "/clips/a.mp4", "traditional", preset)
	require.NoError(t, err)
	second, err := s.Analyze(context.Background(), "/clips/a.mp4", "traditional", preset)
	require.NoError(t, err)

	assert.Equal(t, 1, objects.totalCalls(), "second call is served from cache")
	assert.Same(t, first, second)
	assert.Equal(t, 1, s.cache.len())

	// Fast mode is a different cache entry.
	_, err = s.AnalyzeFast(context.Background(), "/clips/a.mp4", "traditional", preset)
	require.NoError(t, err)
	assert.Equal(t, 2, objects.totalCalls())
	assert.Equal(t, 2, s.cache.len())

	s.ClearCache()
	_, err = s.Analyze(context.Background(), "/clips/a.mp4", "traditional", preset)
	require.NoError(t, err)
	assert.Equal(t, 3, objects.totalCalls(), "clear forces re-analysis")
}

func TestAnalyzeDeterministicScores(t *testing.T) {
	preset := mustPreset(t)
	run := func() float64 {
		objects := newFakeObjects()
		objects.results["/clips/a.mp4"] = strongClip()
		s := New(objects, &fakeEmotions{}, nil, DefaultBatchSize, nil)
		r, err := s.Analyze(context.Background(), "/clips/a.mp4", "traditional", preset)
		require.NoError(t, err)
		return r.FinalScore
	}
	assert.Equal(t, run(), run())
}

func TestSelectBestOrdersByScore(t *testing.T) {
	objects := newFakeObjects()
	objects.results["/clips/strong.mp4"] = strongClip()
	s := New(objects, &fakeEmotions{}, nil, DefaultBatchSize, nil)

	results, err := s.SelectBest(context.Background(),
		[]string{"/clips/weak1.mp4", "/clips/strong.mp4", "/clips/weak2.mp4"},
		3, "traditional", mustPreset(t), false)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, "/clips/strong.mp4", results[0].Path)
	for i := 1; i < len(results); i++ {
		assert.GreaterOrEqual(t, results[i-1].FinalScore, results[i].FinalScore)
	}
}

func TestSelectBestDropsFailedClips(t *testing.T) {
	objects := newFakeObjects()
	objects.errs["/clips/broken.mp4"] = errors.New("decode failed")
	s := New(objects, &fakeEmotions{}, nil, DefaultBatchSize, nil)

	results, err := s.SelectBest(context.Background(),
		[]string{"/clips/ok.mp4", "/clips/broken.mp4"},
		5, "traditional", mustPreset(t), false)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "/clips/ok.mp4", results[0].Path)
}

func TestSelectBestAllFailed(t *testing.T) {
	objects := newFakeObjects()
	objects.errs["/clips/a.mp4"] = errors.New("boom")
	s := New(objects, &fakeEmotions{}, nil, DefaultBatchSize, nil)

	_, err := s.SelectBest(context.Background(), []string{"/clips/a.mp4"}, 1, "traditional", mustPreset(t), false)
	assert.Error(t, err)
}

func TestSelectBestEmptyInput(t *testing.T) {
	s := New(newFakeObjects(), &fakeEmotions{}, nil, DefaultBatchSize, nil)
	_, err := s.SelectBest(context.Background(), nil, 1, "traditional", mustPreset(t), false)
	assert.Error(t, err)
}

func TestSelectBestEarlyExit(t *testing.T) {
	objects := newFakeObjects()
	paths := []string{"/c/1.mp4", "/c/2.mp4", "/c/3.mp4", "/c/4.mp4", "/c/5.mp4", "/c/6.mp4"}
	for _, p := range paths {
		objects.results[p] = strongClip()
	}
	s := New(objects, &fakeEmotions{}, nil, 2, nil)

	results, err := s.SelectBest(context.Background(), paths, 1, "traditional", mustPreset(t), true)
	require.NoError(t, err)
	require.Len(t, results, 1)

	// One batch of two strong clips satisfies 2n analyzed with n strong;
	// the remaining batches are skipped.
	assert.Equal(t, 2, objects.totalCalls())
}

func TestShouldExitEarly(t *testing.T) {
	strong := &Result{FinalScore: 0.9}
	weak := &Result{FinalScore: 0.2}

	assert.False(t, shouldExitEarly([]*Result{strong}, 1), "needs 2n analyzed")
	assert.False(t, shouldExitEarly([]*Result{weak, weak}, 1), "needs n strong")
	assert.True(t, shouldExitEarly([]*Result{strong, weak}, 1))
	assert.True(t, shouldExitEarly([]*Result{strong, strong, weak, weak}, 2))
	assert.False(t, shouldExitEarly([]*Result{strong, weak, weak, weak}, 2))
}

func TestSelectBestRespectsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := New(newFakeObjects(), &fakeEmotions{}, nil, DefaultBatchSize, nil)
	_, err := s.SelectBest(ctx, []string{"/clips/a.mp4"}, 1, "traditional", mustPreset(t), false)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestObjectScoreBounds(t *testing.T) {
	assert.Zero(t, objectScore(nil))
	assert.Zero(t, objectScore(&object.Analysis{Counts: map[object.Kind]int{}}))
	assert.Equal(t, 1.0, objectScore(strongClip()))
}

func TestEmotionScorePositiveSentimentBonus(t *testing.T) {
	neutral := emotion.NeutralAnalysis(10)
	positive := emotion.NeutralAnalysis(10)
	positive.Sentiment = emotion.SentimentPositive
	assert.Greater(t, emotionScore(positive), emotionScore(neutral))
	assert.Zero(t, emotionScore(nil))
}
