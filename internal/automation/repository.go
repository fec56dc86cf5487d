package automation

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Repository persists run history. It satisfies RunStore.
type Repository interface {
	RunStore
	GetRun(ctx context.Context, id string) (*Result, error)
	ListRuns(ctx context.Context, limit int) ([]Result, error)
	DeleteRunsBefore(ctx context.Context, before time.Time) (int64, error)
}

// runColumns is the SELECT column list for run queries.
const runColumns = `id, name, state, total, executed, failed, skipped,
			errors, variables, started_at, completed_at, duration_ms`

// timeLayout keeps a fixed width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000Z07:00"

// defaultListLimit caps ListRuns when no limit is given.
const defaultListLimit = 50

// SQLiteRepository implements Repository using the runs table.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// CreateRun inserts the initial record of a run.
func (r *SQLiteRepository) CreateRun(ctx context.Context, run *Result) error {
	errs, vars, err := marshalRunPayload(run)
	if err != nil {
		return err
	}

	startedAt := run.StartedAt
	if startedAt.IsZero() {
		startedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO runs (
			id, name, state, total, executed, failed, skipped,
			errors, variables, started_at, completed_at, duration_ms
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = r.db.ExecContext(ctx, query,
		run.RunID,
		run.Name,
		string(run.State),
		run.Total,
		run.Executed,
		run.Failed,
		run.Skipped,
		errs,
		vars,
		startedAt.UTC().Format(timeLayout),
		nullableTime(run.CompletedAt),
		nullableInt64(run.DurationMS),
	)
	if err != nil {
		return fmt.Errorf("inserting run: %w", err)
	}
	return nil
}

// UpdateRun stores the final state of a run.
func (r *SQLiteRepository) UpdateRun(ctx context.Context, run *Result) error {
	errs, vars, err := marshalRunPayload(run)
	if err != nil {
		return err
	}

	query := `
		UPDATE runs SET
			name = ?, state = ?, total = ?, executed = ?, failed = ?, skipped = ?,
			errors = ?, variables = ?, completed_at = ?, duration_ms = ?
		WHERE id = ?`

	result, err := r.db.ExecContext(ctx, query,
		run.Name,
		string(run.State),
		run.Total,
		run.Executed,
		run.Failed,
		run.Skipped,
		errs,
		vars,
		nullableTime(run.CompletedAt),
		nullableInt64(run.DurationMS),
		run.RunID,
	)
	if err != nil {
		return fmt.Errorf("updating run: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %q", ErrRunNotFound, run.RunID)
	}
	return nil
}

// GetRun retrieves a run by ID.
func (r *SQLiteRepository) GetRun(ctx context.Context, id string) (*Result, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %q", ErrRunNotFound, id)
		}
		return nil, fmt.Errorf("querying run: %w", err)
	}
	return run, nil
}

// ListRuns returns the most recent runs first.
func (r *SQLiteRepository) ListRuns(ctx context.Context, limit int) ([]Result, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs ORDER BY started_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var runs []Result
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		runs = append(runs, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating runs: %w", err)
	}
	return runs, nil
}

// DeleteRunsBefore removes runs started before the given time.
func (r *SQLiteRepository) DeleteRunsBefore(ctx context.Context, before time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM runs WHERE started_at < ?`, before.UTC().Format(timeLayout))
	if err != nil {
		return 0, fmt.Errorf("deleting runs: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking rows affected: %w", err)
	}
	return n, nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(scanner rowScanner) (*Result, error) {
	var run Result
	var state, startedAt string
	var errsJSON, varsJSON, completedAt sql.NullString
	var durationMS sql.NullInt64

	err := scanner.Scan(
		&run.RunID,
		&run.Name,
		&state,
		&run.Total,
		&run.Executed,
		&run.Failed,
		&run.Skipped,
		&errsJSON,
		&varsJSON,
		&startedAt,
		&completedAt,
		&durationMS,
	)
	if err != nil {
		return nil, err
	}

	run.State = State(state)
	if t, parseErr := time.Parse(time.RFC3339, startedAt); parseErr == nil {
		run.StartedAt = t
	}
	if completedAt.Valid {
		if t, parseErr := time.Parse(time.RFC3339, completedAt.String); parseErr == nil {
			run.CompletedAt = &t
		}
	}
	if durationMS.Valid {
		d := durationMS.Int64
		run.DurationMS = &d
	}

	if errsJSON.Valid && errsJSON.String != "" {
		if jsonErr := json.Unmarshal([]byte(errsJSON.String), &run.Errors); jsonErr != nil {
			return nil, fmt.Errorf("unmarshalling errors: %w", jsonErr)
		}
	}
	if varsJSON.Valid && varsJSON.String != "" {
		if jsonErr := json.Unmarshal([]byte(varsJSON.String), &run.Variables); jsonErr != nil {
			return nil, fmt.Errorf("unmarshalling variables: %w", jsonErr)
		}
	}

	return &run, nil
}

// ─── SQL Helpers ────────────────────────────────────────────────────────────

func marshalRunPayload(run *Result) (errs, vars sql.NullString, err error) {
	if len(run.Errors) > 0 {
		data, mErr := json.Marshal(run.Errors)
		if mErr != nil {
			return errs, vars, fmt.Errorf("marshalling errors: %w", mErr)
		}
		errs = sql.NullString{String: string(data), Valid: true}
	}
	if len(run.Variables) > 0 {
		data, mErr := json.Marshal(run.Variables)
		if mErr != nil {
			return errs, vars, fmt.Errorf("marshalling variables: %w", mErr)
		}
		vars = sql.NullString{String: string(data), Valid: true}
	}
	return errs, vars, nil
}

func nullableTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(timeLayout), Valid: true}
}

func nullableInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}
