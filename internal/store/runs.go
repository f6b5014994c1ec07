package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"passfuse/internal/pipeline"
)

// RunStatus tracks the lifecycle of a run.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// Run is one invocation of the pipeline.
type Run struct {
	ID         string    `json:"id"`
	Status     RunStatus `json:"status"`
	Targets    string    `json:"targets"`
	OutputDir  string    `json:"output_dir"`
	Budget     int       `json:"budget"`
	Generators []string  `json:"generators"`
	Identities int       `json:"identities"`
	Selected   int       `json:"selected"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitzero"`
}

const runColumns = "id, status, targets, output_dir, budget, generators, identities, selected, error, started_at, finished_at"

// BeginRun records a new run in the running state. StartedAt defaults to now.
func (s *Store) BeginRun(ctx context.Context, run Run) error {
	if strings.TrimSpace(run.ID) == "" {
		return errors.New("run id is required")
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}
	generators, err := json.Marshal(nonNil(run.Generators))
	if err != nil {
		return fmt.Errorf("encode generators: %w", err)
	}
	_, err = s.execWithRetry(ctx,
		`INSERT INTO runs (id, status, targets, output_dir, budget, generators, started_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.ID, RunRunning, run.Targets, run.OutputDir, run.Budget, string(generators), formatTime(run.StartedAt),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// FinishRun stores the summary and final status. A non-nil runErr marks the
// run failed.
func (s *Store) FinishRun(ctx context.Context, runID string, summary pipeline.Summary, runErr error) error {
	status := RunCompleted
	message := ""
	if runErr != nil {
		status = RunFailed
		message = runErr.Error()
	}
	res, err := s.execWithRetry(ctx,
		`UPDATE runs SET status = ?, identities = ?, selected = ?, error = ?, finished_at = ? WHERE id = ?`,
		status, summary.Identities, summary.Selected, message, formatTime(time.Now()), runID,
	)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("run %s: %w", runID, ErrNotFound)
	}
	return nil
}

// GetRun returns the run with id.
func (s *Store) GetRun(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+runColumns+" FROM runs WHERE id = ?", id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	return run, err
}

// LatestRun returns the most recently started run.
func (s *Store) LatestRun(ctx context.Context) (Run, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+runColumns+" FROM runs ORDER BY started_at DESC, rowid DESC LIMIT 1")
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("no runs recorded: %w", ErrNotFound)
	}
	return run, err
}

// ListRuns returns up to limit runs, newest first. limit <= 0 returns all.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	query := "SELECT " + runColumns + " FROM runs ORDER BY started_at DESC, rowid DESC"
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func scanRun(scanner interface{ Scan(dest ...any) error }) (Run, error) {
	var (
		run         Run
		status      string
		generators  string
		startedRaw  sql.NullString
		finishedRaw sql.NullString
	)
	if err := scanner.Scan(
		&run.ID,
		&status,
		&run.Targets,
		&run.OutputDir,
		&run.Budget,
		&generators,
		&run.Identities,
		&run.Selected,
		&run.Error,
		&startedRaw,
		&finishedRaw,
	); err != nil {
		return Run{}, err
	}
	run.Status = RunStatus(status)
	if err := json.Unmarshal([]byte(generators), &run.Generators); err != nil {
		return Run{}, fmt.Errorf("decode generators of run %s: %w", run.ID, err)
	}
	run.StartedAt = parseTime(startedRaw)
	run.FinishedAt = parseTime(finishedRaw)
	return run, nil
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
