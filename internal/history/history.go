// Package history is the run journal: one row per agent run plus one row
// per iteration, kept outside the agent's own memory so past runs can be
// inspected after the fact.
package history

import (
	"time"

	"github.com/google/uuid"

	"github.com/mnemo-oss/mnemo/internal/config"
)

// Run statuses.
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusDeadlock  = "deadlock"
)

// Run records one agent run.
type Run struct {
	ID          string     `json:"id"`
	Identity    string     `json:"identity"`
	Status      string     `json:"status"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Iterations  uint64     `json:"iterations"`
	Error       string     `json:"error,omitempty"`
}

// NewRun creates a running Run with a fresh ID.
func NewRun(identity string) *Run {
	return &Run{
		ID:        uuid.New().String(),
		Identity:  identity,
		Status:    StatusRunning,
		StartedAt: time.Now().UTC(),
	}
}

// Complete marks the run finished with the given status.
func (r *Run) Complete(status string, iterations uint64, runErr error) {
	now := time.Now().UTC()
	r.Status = status
	r.CompletedAt = &now
	r.Iterations = iterations
	if runErr != nil {
		r.Error = runErr.Error()
	}
}

// IterationRecord captures one orchestrator loop for the journal.
type IterationRecord struct {
	RunID         string    `json:"run_id"`
	Iteration     uint64    `json:"iteration"`
	State         string    `json:"state"`
	Action        string    `json:"action,omitempty"`
	WorkingTokens uint64    `json:"working_tokens"`
	DurationMS    int64     `json:"duration_ms"`
	CreatedAt     time.Time `json:"created_at"`
}

// Journal persists runs and iterations.
type Journal interface {
	SaveRun(run *Run) error
	GetRun(id string) (*Run, error)
	ListRuns(limit int) ([]*Run, error)
	RecordIteration(rec *IterationRecord) error
	ListIterations(runID string, limit int) ([]*IterationRecord, error)
	Close() error
}

// Open builds the journal named by the config. Driver "none" yields a
// journal that discards everything.
func Open(cfg config.HistoryConfig) (Journal, error) {
	if cfg.Driver == "none" {
		return NopJournal{}, nil
	}
	return NewSQLiteJournal(cfg.Path)
}

// NopJournal discards all writes.
type NopJournal struct{}

func (NopJournal) SaveRun(*Run) error { return nil }
func (NopJournal) GetRun(string) (*Run, error) { return nil, nil }
func (NopJournal) ListRuns(int) ([]*Run, error) { return nil, nil }
func (NopJournal) RecordIteration(*IterationRecord) error { return nil }
func (NopJournal) ListIterations(string, int) ([]*IterationRecord, error) {
	return nil, nil
}
func (NopJournal) Close() error { return nil }
