package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/reelsmith/reelsmith/internal/config"
	"github.com/reelsmith/reelsmith/internal/selector"
	"github.com/reelsmith/reelsmith/internal/story"
)

// minSelection is the floor on how many clips a job keeps.
const minSelection = 5

// ErrNotFound is returned when a job id does not exist.
var ErrNotFound = errors.New("job not found")

// ClipAnalyzer scores a single clip. Jobs always use the fast path.
type ClipAnalyzer interface {
	AnalyzeFast(ctx context.Context, path, style string, preset *story.Preset) (*selector.Result, error)
}

// Registry owns the job store, the running executors, and the retention
// sweeps.
type Registry struct {
	db       *gorm.DB
	analyzer ClipAnalyzer
	cfg      config.JobsConfig
	logger   *slog.Logger
	cron     *cron.Cron

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

// NewRegistry creates a registry on an opened store and starts the
// retention schedule.
func NewRegistry(db *gorm.DB, analyzer ClipAnalyzer, cfg config.JobsConfig, logger *slog.Logger) (*Registry, error) {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Registry{
		db:       db,
		analyzer: analyzer,
		cfg:      cfg,
		logger:   logger.With("component", "jobs"),
		cancels:  map[string]context.CancelFunc{},
	}

	if cfg.CleanupOnRun {
		if n, err := r.Cleanup(cfg.Retention); err != nil {
			r.logger.Warn("startup cleanup failed", "error", err)
		} else if n > 0 {
			r.logger.Info("swept expired jobs on startup", "removed", n)
		}
	}

	if cfg.CleanupCron != "" {
		r.cron = cron.New(cron.WithSeconds())
		_, err := r.cron.AddFunc(cfg.CleanupCron, func() {
			if n, err := r.Cleanup(r.cfg.Retention); err != nil {
				r.logger.Warn("scheduled cleanup failed", "error", err)
			} else if n > 0 {
				r.logger.Info("swept expired jobs", "removed", n)
			}
		})
		if err != nil {
			return nil, fmt.Errorf("invalid cleanup schedule %q: %w", cfg.CleanupCron, err)
		}
		r.cron.Start()
	}
	return r, nil
}

// Close stops the retention schedule and cancels running jobs.
func (r *Registry) Close() {
	if r.cron != nil {
		r.cron.Stop()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, cancel := range r.cancels {
		cancel()
	}
}

// Create persists a new pending job for the request.
func (r *Registry) Create(req Request) (*Job, error) {
	if len(req.Clips) == 0 {
		return nil, fmt.Errorf("job needs at least one clip")
	}
	raw, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("serializing job config: %w", err)
	}
	job := &Job{
		State:       StatePending,
		CurrentStep: "queued",
		Config:      string(raw),
	}
	if err := r.db.Create(job).Error; err != nil {
		return nil, fmt.Errorf("creating job: %w", err)
	}
	r.logger.Info("job created", "job_id", job.ID, "clips", len(req.Clips))
	return job, nil
}

// Start launches the job's executor in the background.
func (r *Registry) Start(id string) error {
	job, err := r.Get(id)
	if err != nil {
		return err
	}
	if job.State != StatePending {
		return fmt.Errorf("job %s is %s, not pending", id, job.State)
	}

	ctx, cancel := context.WithCancel(context.Background())
	r.mu.Lock()
	r.cancels[id] = cancel
	r.mu.Unlock()

	go func() {
		defer func() {
			cancel()
			r.mu.Lock()
			delete(r.cancels, id)
			r.mu.Unlock()
		}()
		r.Run(ctx, id)
	}()
	return nil
}

// Cancel stops a running job or retires a pending one.
func (r *Registry) Cancel(id string) error {
	job, err := r.Get(id)
	if err != nil {
		return err
	}
	if job.State.Terminal() {
		return fmt.Errorf("job %s already %s", id, job.State)
	}

	r.mu.Lock()
	cancel, running := r.cancels[id]
	r.mu.Unlock()
	if running {
		cancel()
		return nil
	}
	return r.finish(id, StateCancelled, "", "")
}

// Get loads one job by id.
func (r *Registry) Get(id string) (*Job, error) {
	var job Job
	err := r.db.First(&job, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("loading job %s: %w", id, err)
	}
	return &job, nil
}

// List returns all jobs, newest first.
func (r *Registry) List() ([]Job, error) {
	var out []Job
	if err := r.db.Order("created_at DESC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("listing jobs: %w", err)
	}
	return out, nil
}

// Cleanup deletes terminal jobs older than maxAge and returns how many
// were removed.
func (r *Registry) Cleanup(maxAge time.Duration) (int64, error) {
	cutoff := time.Now().Add(-maxAge)
	res := r.db.
		Where("state IN ?", []State{StateCompleted, StateFailed, StateCancelled}).
		Where("completed_at IS NOT NULL AND completed_at < ?", cutoff).
		Delete(&Job{})
	if res.Error != nil {
		return 0, fmt.Errorf("cleaning up jobs: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// Run executes one job to a terminal state. Cancellation is observed at
// batch boundaries, so a cancelled job keeps the progress of the batches
// it finished.
func (r *Registry) Run(ctx context.Context, id string) {
	job, err := r.Get(id)
	if err != nil {
		r.logger.Error("job vanished before run", "job_id", id, "error", err)
		return
	}

	var req Request
	if err := json.Unmarshal([]byte(job.Config), &req); err != nil {
		r.fail(id, fmt.Errorf("parsing job config: %w", err))
		return
	}
	preset, err := story.PresetByName(req.Preset)
	if err != nil {
		r.fail(id, err)
		return
	}

	now := time.Now()
	r.db.Model(&Job{}).Where("id = ?", id).Updates(map[string]any{
		"state":        StateRunning,
		"current_step": "analyzing",
		"started_at":   &now,
	})

	results, err := r.analyzeBatches(ctx, id, req, preset)
	switch {
	case errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled):
		_ = r.finish(id, StateCancelled, "", "")
		return
	case err != nil:
		r.fail(id, err)
		return
	}

	selection := buildSelection(results, req)
	raw, err := json.Marshal(selection)
	if err != nil {
		r.fail(id, fmt.Errorf("serializing selection: %w", err))
		return
	}

	r.setProgress(id, 1.0, "done")
	if err := r.finish(id, StateCompleted, "", string(raw)); err != nil {
		r.logger.Error("finalizing job failed", "job_id", id, "error", err)
		return
	}
	r.logger.Info("job completed", "job_id", id, "selected", len(selection.Clips))
}

// analyzeBatches scores the clips in fixed-size batches, advancing the
// recorded progress after each one.
func (r *Registry) analyzeBatches(ctx context.Context, id string, req Request, preset *story.Preset) ([]*selector.Result, error) {
	paths := req.Clips
	var results []*selector.Result

	for start := 0; start < len(paths); start += selector.JobBatchSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		end := min(start+selector.JobBatchSize, len(paths))
		batch := paths[start:end]

		scored := make([]*selector.Result, len(batch))
		g, gctx := errgroup.WithContext(ctx)
		for i, path := range batch {
			i, path := i, path
			g.Go(func() error {
				res, err := r.analyzer.AnalyzeFast(gctx, path, req.Style, preset)
				if err != nil {
					r.logger.Warn("clip analysis failed, dropping", "job_id", id, "clip", path, "error", err)
					return nil
				}
				scored[i] = res
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
		for _, res := range scored {
			if res != nil {
				results = append(results, res)
			}
		}

		r.setProgress(id, float64(end)/float64(len(paths)),
			fmt.Sprintf("analyzed %d/%d", end, len(paths)))
	}

	if len(results) == 0 {
		return nil, fmt.Errorf("all %d clips failed analysis", len(paths))
	}
	return results, nil
}

// buildSelection keeps the top clips by final score.
func buildSelection(results []*selector.Result, req Request) Selection {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].FinalScore > results[j].FinalScore
	})

	target := req.TargetSeconds
	if target <= 0 {
		target = 3 * float64(len(req.Clips))
	}
	n := int(math.Max(minSelection, target/3))
	n = min(n, len(results))

	sel := Selection{Target: target}
	for _, res := range results[:n] {
		sel.Clips = append(sel.Clips, SelectedClip{
			Path:   res.Path,
			Score:  res.FinalScore,
			Reason: res.Reason,
		})
	}
	return sel
}

// setProgress records progress, never moving it backwards.
func (r *Registry) setProgress(id string, p float64, step string) {
	res := r.db.Model(&Job{}).
		Where("id = ? AND progress < ?", id, p).
		Updates(map[string]any{"progress": p, "current_step": step})
	if res.Error != nil {
		r.logger.Warn("progress update failed", "job_id", id, "error", res.Error)
	}
}

func (r *Registry) fail(id string, cause error) {
	r.logger.Error("job failed", "job_id", id, "error", cause)
	_ = r.finish(id, StateFailed, cause.Error(), "")
}

// finish moves a job to a terminal state exactly once.
func (r *Registry) finish(id string, state State, jobErr, result string) error {
	now := time.Now()
	updates := map[string]any{
		"state":        state,
		"completed_at": &now,
	}
	if jobErr != "" {
		updates["error"] = jobErr
	}
	if result != "" {
		updates["result"] = result
	}
	res := r.db.Model(&Job{}).
		Where("id = ? AND state IN ?", id, []State{StatePending, StateRunning}).
		Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("finalizing job %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("job %s already terminal", id)
	}
	return nil
}
