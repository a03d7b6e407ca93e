package history

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/mnemo-oss/mnemo/internal/config"
)

func openJournal(t *testing.T) *SQLiteJournal {
	t.Helper()
	j, err := NewSQLiteJournal(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { j.Close() })
	return j
}

func TestRunLifecycle(t *testing.T) {
	j := openJournal(t)

	run := NewRun("a librarian")
	if run.ID == "" {
		t.Fatal("run must get an ID")
	}
	if run.Status != StatusRunning {
		t.Fatalf("new run status: got %q", run.Status)
	}
	if err := j.SaveRun(run); err != nil {
		t.Fatal(err)
	}

	run.Complete(StatusCompleted, 12, nil)
	if err := j.SaveRun(run); err != nil {
		t.Fatal(err)
	}

	got, err := j.GetRun(run.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != StatusCompleted {
		t.Errorf("status: got %q", got.Status)
	}
	if got.Iterations != 12 {
		t.Errorf("iterations: got %d", got.Iterations)
	}
	if got.CompletedAt == nil {
		t.Error("completed_at should be set")
	}
	if got.Identity != "a librarian" {
		t.Errorf("identity: got %q", got.Identity)
	}
}

func TestRunFailureKeepsError(t *testing.T) {
	j := openJournal(t)

	run := NewRun("x")
	run.Complete(StatusDeadlock, 7, errors.New("paging loop detected"))
	if err := j.SaveRun(run); err != nil {
		t.Fatal(err)
	}

	got, err := j.GetRun(run.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != StatusDeadlock {
		t.Errorf("status: got %q", got.Status)
	}
	if got.Error != "paging loop detected" {
		t.Errorf("error: got %q", got.Error)
	}
}

func TestGetRunNotFound(t *testing.T) {
	j := openJournal(t)
	if _, err := j.GetRun("nope"); err == nil {
		t.Fatal("expected error for unknown run")
	}
}

func TestListRunsNewestFirst(t *testing.T) {
	j := openJournal(t)

	old := NewRun("old")
	old.StartedAt = time.Now().UTC().Add(-time.Hour)
	recent := NewRun("recent")

	if err := j.SaveRun(old); err != nil {
		t.Fatal(err)
	}
	if err := j.SaveRun(recent); err != nil {
		t.Fatal(err)
	}

	runs, err := j.ListRuns(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
	if runs[0].Identity != "recent" || runs[1].Identity != "old" {
		t.Errorf("order: got %s, %s", runs[0].Identity, runs[1].Identity)
	}
}

func TestIterations(t *testing.T) {
	j := openJournal(t)
	run := NewRun("x")
	if err := j.SaveRun(run); err != nil {
		t.Fatal(err)
	}

	for i := uint64(1); i <= 3; i++ {
		rec := &IterationRecord{
			RunID:         run.ID,
			Iteration:     i,
			State:         "thinking",
			Action:        "storage_save",
			WorkingTokens: 100 * i,
			DurationMS:    5,
			CreatedAt:     time.Now().UTC(),
		}
		if err := j.RecordIteration(rec); err != nil {
			t.Fatal(err)
		}
	}

	recs, err := j.ListIterations(run.ID, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 3 {
		t.Fatalf("expected 3 iterations, got %d", len(recs))
	}
	for i, rec := range recs {
		if rec.Iteration != uint64(i+1) {
			t.Errorf("ordering: slot %d holds iteration %d", i, rec.Iteration)
		}
	}
	if recs[2].WorkingTokens != 300 {
		t.Errorf("working_tokens: got %d", recs[2].WorkingTokens)
	}
}

func TestOpenDrivers(t *testing.T) {
	j, err := Open(config.HistoryConfig{Driver: "none"})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := j.(NopJournal); !ok {
		t.Fatalf("driver none: got %T", j)
	}

	j2, err := Open(config.HistoryConfig{
		Driver: "sqlite",
		Path:   filepath.Join(t.TempDir(), "h.db"),
	})
	if err != nil {
		t.Fatal(err)
	}
	defer j2.Close()
	if _, ok := j2.(*SQLiteJournal); !ok {
		t.Fatalf("driver sqlite: got %T", j2)
	}
}
