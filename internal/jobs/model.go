// Package jobs runs clip selection as persistent background jobs backed
// by SQLite, so long analyses survive process restarts and can be
// cancelled or inspected later.
package jobs

import (
	"crypto/rand"
	"time"

	"github.com/oklog/ulid/v2"
	"gorm.io/gorm"
)

// State is the lifecycle state of a job.
type State string

const (
	StatePending   State = "pending"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
	StateCancelled State = "cancelled"
)

// Terminal reports whether the state is final.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateCancelled
}

// NewID generates a sortable job identifier.
func NewID() string {
	return ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String()
}

// Job is the persisted record of one selection run.
type Job struct {
	ID          string  `gorm:"primarykey;type:varchar(26)" json:"id"`
	State       State   `gorm:"index" json:"state"`
	Progress    float64 `json:"progress"` // 0..1, only ever increases
	CurrentStep string  `json:"current_step"`
	Config      string  `gorm:"type:text" json:"config"` // request JSON
	Result      string  `gorm:"type:text" json:"result"` // selection JSON, set on completion
	Error       string  `json:"error"`

	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at"`
}

// BeforeCreate assigns an ID when none is set.
func (j *Job) BeforeCreate(tx *gorm.DB) error {
	if j.ID == "" {
		j.ID = NewID()
	}
	return nil
}

// Request is the job configuration captured at creation time.
type Request struct {
	Clips         []string `json:"clips"`
	Style         string   `json:"style"`
	Preset        string   `json:"preset"`
	TargetSeconds float64  `json:"target_seconds"`
}

// Selection is the job output: the chosen clips in score order.
type Selection struct {
	Clips  []SelectedClip `json:"clips"`
	Target float64        `json:"target_seconds"`
}

// SelectedClip is one chosen clip with its final score.
type SelectedClip struct {
	Path   string  `json:"path"`
	Score  float64 `json:"score"`
	Reason string  `json:"reason"`
}
