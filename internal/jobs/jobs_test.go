package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reelsmith/reelsmith/internal/config"
	"github.com/reelsmith/reelsmith/internal/selector"
	"github.com/reelsmith/reelsmith/internal/story"
)

type fakeAnalyzer struct {
	mu     sync.Mutex
	scores map[string]float64
	fail   map[string]bool
	calls  int
}

func (f *fakeAnalyzer) AnalyzeFast(ctx context.Context, path, style string, preset *story.Preset) (*selector.Result, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.fail[path] {
		return nil, fmt.Errorf("decode failed: %s", path)
	}
	return &selector.Result{Path: path, FinalScore: f.scores[path], Reason: "scored"}, nil
}

func (f *fakeAnalyzer) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func newTestRegistry(t *testing.T, analyzer ClipAnalyzer) *Registry {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "jobs.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = Close(db) })

	r, err := NewRegistry(db, analyzer, config.JobsConfig{Retention: time.Hour}, nil)
	require.NoError(t, err)
	t.Cleanup(r.Close)
	return r
}

func clipPaths(n int) []string {
	paths := make([]string, n)
	for i := range paths {
		paths[i] = fmt.Sprintf("/media/clip_%02d.mp4", i)
	}
	return paths
}

func TestCreateAndGet(t *testing.T) {
	r := newTestRegistry(t, &fakeAnalyzer{})

	job, err := r.Create(Request{Clips: clipPaths(3), Style: "romantic"})
	require.NoError(t, err)
	assert.Len(t, job.ID, 26, "ULID identifier")
	assert.Equal(t, StatePending, job.State)

	loaded, err := r.Get(job.ID)
	require.NoError(t, err)
	var req Request
	require.NoError(t, json.Unmarshal([]byte(loaded.Config), &req))
	assert.Equal(t, "romantic", req.Style)
	assert.Len(t, req.Clips, 3)

	_, err = r.Get("01AN4Z07BY79KA1307SR9X4MV3")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = r.Create(Request{})
	assert.Error(t, err, "empty clip list rejected")
}

func TestRunCompletesWithOrderedSelection(t *testing.T) {
	paths := clipPaths(7)
	scores := map[string]float64{}
	for i, p := range paths {
		scores[p] = float64(i) / 10.0
	}
	analyzer := &fakeAnalyzer{scores: scores}
	r := newTestRegistry(t, analyzer)

	job, err := r.Create(Request{Clips: paths, TargetSeconds: 9})
	require.NoError(t, err)
	r.Run(context.Background(), job.ID)

	done, err := r.Get(job.ID)
	require.NoError(t, err)
	assert.Equal(t, StateCompleted, done.State)
	assert.Equal(t, 1.0, done.Progress)
	require.NotNil(t, done.StartedAt)
	require.NotNil(t, done.CompletedAt)
	assert.Equal(t, 7, analyzer.callCount(), "every clip analyzed once")

	var sel Selection
	require.NoError(t, json.Unmarshal([]byte(done.Result), &sel))
	require.Len(t, sel.Clips, 5, "selection floor applies")
	assert.Equal(t, paths[6], sel.Clips[0].Path, "best clip first")
	for i := 1; i < len(sel.Clips); i++ {
		assert.GreaterOrEqual(t, sel.Clips[i-1].Score, sel.Clips[i].Score)
	}
}

func TestRunDropsFailingClips(t *testing.T) {
	paths := clipPaths(4)
	analyzer := &fakeAnalyzer{
		scores: map[string]float64{paths[0]: 0.9, paths[2]: 0.4, paths[3]: 0.6},
		fail:   map[string]bool{paths[1]: true},
	}
	r := newTestRegistry(t, analyzer)

	job, err := r.Create(Request{Clips: paths})
	require.NoError(t, err)
	r.Run(context.Background(), job.ID)

	done, err := r.Get(job.ID)
	require.NoError(t, err)
	assert.Equal(t, StateCompleted, done.State)

	var sel Selection
	require.NoError(t, json.Unmarshal([]byte(done.Result), &sel))
	assert.Len(t, sel.Clips, 3, "the failing clip is dropped")
}

func TestRunFailsWhenAllClipsFail(t *testing.T) {
	paths := clipPaths(2)
	analyzer := &fakeAnalyzer{fail: map[string]bool{paths[0]: true, paths[1]: true}}
	r := newTestRegistry(t, analyzer)

	job, err := r.Create(Request{Clips: paths})
	require.NoError(t, err)
	r.Run(context.Background(), job.ID)

	done, err := r.Get(job.ID)
	require.NoError(t, err)
	assert.Equal(t, StateFailed, done.State)
	assert.NotEmpty(t, done.Error)
}

func TestRunFailsOnUnknownPreset(t *testing.T) {
	r := newTestRegistry(t, &fakeAnalyzer{})

	job, err := r.Create(Request{Clips: clipPaths(1), Preset: "baroque"})
	require.NoError(t, err)
	r.Run(context.Background(), job.ID)

	done, err := r.Get(job.ID)
	require.NoError(t, err)
	assert.Equal(t, StateFailed, done.State)
}

func TestRunObservesCancellation(t *testing.T) {
	analyzer := &fakeAnalyzer{scores: map[string]float64{}}
	r := newTestRegistry(t, analyzer)

	job, err := r.Create(Request{Clips: clipPaths(6)})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r.Run(ctx, job.ID)

	done, err := r.Get(job.ID)
	require.NoError(t, err)
	assert.Equal(t, StateCancelled, done.State)
	assert.Empty(t, done.Error)
	assert.Zero(t, analyzer.callCount(), "no batch started after cancellation")
}

func TestCancelPendingJob(t *testing.T) {
	r := newTestRegistry(t, &fakeAnalyzer{})

	job, err := r.Create(Request{Clips: clipPaths(2)})
	require.NoError(t, err)
	require.NoError(t, r.Cancel(job.ID))

	done, err := r.Get(job.ID)
	require.NoError(t, err)
	assert.Equal(t, StateCancelled, done.State)

	assert.Error(t, r.Cancel(job.ID), "terminal jobs cannot be cancelled again")
	assert.ErrorIs(t, r.Cancel("01AN4Z07BY79KA1307SR9X4MV3"), ErrNotFound)
}

func TestProgressNeverMovesBackwards(t *testing.T) {
	r := newTestRegistry(t, &fakeAnalyzer{})

	job, err := r.Create(Request{Clips: clipPaths(1)})
	require.NoError(t, err)

	r.setProgress(job.ID, 0.5, "halfway")
	r.setProgress(job.ID, 0.3, "rewind attempt")

	loaded, err := r.Get(job.ID)
	require.NoError(t, err)
	assert.Equal(t, 0.5, loaded.Progress)
	assert.Equal(t, "halfway", loaded.CurrentStep)

	r.setProgress(job.ID, 0.9, "almost")
	loaded, err = r.Get(job.ID)
	require.NoError(t, err)
	assert.Equal(t, 0.9, loaded.Progress)
}

func TestCleanupRemovesOnlyExpiredTerminalJobs(t *testing.T) {
	analyzer := &fakeAnalyzer{scores: map[string]float64{"/media/clip_00.mp4": 0.5}}
	r := newTestRegistry(t, analyzer)

	old, err := r.Create(Request{Clips: clipPaths(1)})
	require.NoError(t, err)
	r.Run(context.Background(), old.ID)
	stale := time.Now().Add(-2 * time.Hour)
	require.NoError(t, r.db.Model(&Job{}).Where("id = ?", old.ID).Update("completed_at", &stale).Error)

	fresh, err := r.Create(Request{Clips: clipPaths(1)})
	require.NoError(t, err)
	r.Run(context.Background(), fresh.ID)

	pending, err := r.Create(Request{Clips: clipPaths(1)})
	require.NoError(t, err)

	removed, err := r.Cleanup(time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	_, err = r.Get(old.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = r.Get(fresh.ID)
	assert.NoError(t, err)
	_, err = r.Get(pending.ID)
	assert.NoError(t, err, "pending jobs survive cleanup")
}

func TestBuildSelection(t *testing.T) {
	results := []*selector.Result{
		{Path: "/a", FinalScore: 0.2},
		{Path: "/b", FinalScore: 0.9},
		{Path: "/c", FinalScore: 0.5},
	}

	sel := buildSelection(results, Request{Clips: []string{"/a", "/b", "/c"}, TargetSeconds: 30})
	require.Len(t, sel.Clips, 3, "capped at the available results")
	assert.Equal(t, "/b", sel.Clips[0].Path)
	assert.Equal(t, 30.0, sel.Target)

	// Zero target derives one from the clip count.
	sel = buildSelection(results, Request{Clips: []string{"/a", "/b", "/c"}})
	assert.Equal(t, 9.0, sel.Target)
}

func TestNewRegistryRejectsBadSchedule(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "jobs.db"), nil)
	require.NoError(t, err)
	defer Close(db)

	_, err = NewRegistry(db, &fakeAnalyzer{}, config.JobsConfig{
		Retention:   time.Hour,
		CleanupCron: "not a schedule",
	}, nil)
	require.Error(t, err)
}

func TestStateTerminal(t *testing.T) {
	assert.True(t, StateCompleted.Terminal())
	assert.True(t, StateFailed.Terminal())
	assert.True(t, StateCancelled.Terminal())
	assert.False(t, StatePending.Terminal())
	assert.False(t, StateRunning.Terminal())
}
