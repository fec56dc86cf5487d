package automation

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// setupTestDB creates an in-memory SQLite database with the runs schema.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	db.SetMaxOpenConns(1)

	// Matches migrations/0001_create_runs.up.sql
	schema := `
		CREATE TABLE runs (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL DEFAULT '',
			state TEXT NOT NULL,
			total INTEGER NOT NULL DEFAULT 0,
			executed INTEGER NOT NULL DEFAULT 0,
			failed INTEGER NOT NULL DEFAULT 0,
			skipped INTEGER NOT NULL DEFAULT 0,
			errors TEXT,
			variables TEXT,
			started_at TEXT NOT NULL,
			completed_at TEXT,
			duration_ms INTEGER
		) STRICT;`

	if _, err := db.Exec(schema); err != nil {
		t.Fatalf("creating schema: %v", err)
	}

	t.Cleanup(func() { db.Close() })
	return db
}

func testRun(id string, started time.Time) *Result {
	return &Result{RunID: id, Name: "nightly", State: StateRunning, Total: 3, StartedAt: started}
}

func TestSQLiteRepository_CreateAndGet(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()
	started := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)

	if err := repo.CreateRun(ctx, testRun("r1", started)); err != nil {
		t.Fatalf("CreateRun() error = %v", err)
	}

	got, err := repo.GetRun(ctx, "r1")
	if err != nil {
		t.Fatalf("GetRun() error = %v", err)
	}
	if got.State != StateRunning || got.Total != 3 || got.Name != "nightly" {
		t.Errorf("GetRun() = %+v", got)
	}
	if !got.StartedAt.Equal(started) {
		t.Errorf("StartedAt = %v, want %v", got.StartedAt, started)
	}
	if got.CompletedAt != nil || got.DurationMS != nil || got.Errors != nil {
		t.Errorf("unfinished run has completion fields: %+v", got)
	}
}

func TestSQLiteRepository_GetNotFound(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))

	_, err := repo.GetRun(context.Background(), "nope")
	if !errors.Is(err, ErrRunNotFound) {
		t.Errorf("GetRun() error = %v, want ErrRunNotFound", err)
	}
}

func TestSQLiteRepository_Update(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()
	started := time.Now().UTC().Truncate(time.Millisecond)
	_ = repo.CreateRun(ctx, testRun("r1", started))

	done := started.Add(1500 * time.Millisecond)
	dur := int64(1500)
	final := &Result{
		RunID:       "r1",
		Name:        "nightly",
		State:       StateFaulted,
		Total:       3,
		Executed:    1,
		Failed:      1,
		Skipped:     1,
		Errors:      []RunError{{Index: 2, Kind: "throw_error", Message: "boom", Time: done}},
		Variables:   map[string]string{"x": "1"},
		StartedAt:   started,
		CompletedAt: &done,
		DurationMS:  &dur,
	}
	if err := repo.UpdateRun(ctx, final); err != nil {
		t.Fatalf("UpdateRun() error = %v", err)
	}

	got, err := repo.GetRun(ctx, "r1")
	if err != nil {
		t.Fatalf("GetRun() error = %v", err)
	}
	if got.State != StateFaulted || got.Executed != 1 || got.Failed != 1 || got.Skipped != 1 {
		t.Errorf("counts = %+v", got)
	}
	if len(got.Errors) != 1 || got.Errors[0].Message != "boom" || got.Errors[0].Index != 2 {
		t.Errorf("Errors = %+v", got.Errors)
	}
	if got.Variables["x"] != "1" {
		t.Errorf("Variables = %v", got.Variables)
	}
	if got.CompletedAt == nil || !got.CompletedAt.Equal(done) {
		t.Errorf("CompletedAt = %v", got.CompletedAt)
	}
	if got.DurationMS == nil || *got.DurationMS != 1500 {
		t.Errorf("DurationMS = %v", got.DurationMS)
	}
}

func TestSQLiteRepository_UpdateNotFound(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))

	err := repo.UpdateRun(context.Background(), &Result{RunID: "ghost", State: StateCompleted})
	if !errors.Is(err, ErrRunNotFound) {
		t.Errorf("UpdateRun() error = %v, want ErrRunNotFound", err)
	}
}

func TestSQLiteRepository_ListAndDelete(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, id := range []string{"a", "b", "c"} {
		if err := repo.CreateRun(ctx, testRun(id, base.Add(time.Duration(i)*time.Hour))); err != nil {
			t.Fatalf("CreateRun(%s) error = %v", id, err)
		}
	}

	runs, err := repo.ListRuns(ctx, 2)
	if err != nil {
		t.Fatalf("ListRuns() error = %v", err)
	}
	if len(runs) != 2 || runs[0].RunID != "c" || runs[1].RunID != "b" {
		t.Errorf("ListRuns() = %+v, want newest first", runs)
	}

	n, err := repo.DeleteRunsBefore(ctx, base.Add(90*time.Minute))
	if err != nil {
		t.Fatalf("DeleteRunsBefore() error = %v", err)
	}
	if n != 2 {
		t.Errorf("deleted %d runs, want 2", n)
	}

	runs, _ = repo.ListRuns(ctx, 0)
	if len(runs) != 1 || runs[0].RunID != "c" {
		t.Errorf("remaining = %+v", runs)
	}
}

func TestSQLiteRepository_AsEngineStore(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	e := NewEngine(DefaultSettings(), Options{Name: "stored", Store: repo})
	if _, err := e.Execute(ctx, []Command{okCommand()}, map[string]any{"v": "1"}); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	got, err := repo.GetRun(ctx, e.ID())
	if err != nil {
		t.Fatalf("GetRun() error = %v", err)
	}
	if got.State != StateCompleted || got.Executed != 1 || got.Variables["v"] != "1" {
		t.Errorf("stored run = %+v", got)
	}
}
