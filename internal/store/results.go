package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"passfuse/internal/pipeline"
	"passfuse/internal/selector"
)

// IdentitySummary is the stored outcome of one identity.
type IdentitySummary struct {
	Identity string          `json:"identity"`
	Position int             `json:"position"`
	Status   pipeline.Status `json:"status"`
	Selected int             `json:"selected"`
	Duration int64           `json:"duration_ms"`
}

// SaveResult stores the selections and diagnostics of one identity in a
// single transaction.
func (s *Store) SaveResult(ctx context.Context, runID string, res pipeline.Result) error {
	return retryOnBusy(ctx, func() error { return s.saveResult(ctx, runID, res) })
}

func (s *Store) saveResult(ctx context.Context, runID string, res pipeline.Result) error {
	key := res.Identity.Key()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin result tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO identities (run_id, identity, position, status, selected, duration_ms) VALUES (?, ?, ?, ?, ?, ?)`,
		runID, key, res.Index, string(res.Status), len(res.Output.Selections), res.Duration.Milliseconds(),
	); err != nil {
		return fmt.Errorf("insert identity %s: %w", key, err)
	}

	if len(res.Output.Selections) > 0 {
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO outputs (run_id, identity, rank, password, sources, fused_rank, strength, credit) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("prepare outputs: %w", err)
		}
		defer stmt.Close()
		for _, sel := range res.Output.Selections {
			sources, err := json.Marshal(nonNil(sel.Sources))
			if err != nil {
				return fmt.Errorf("encode sources: %w", err)
			}
			if _, err := stmt.ExecContext(ctx, runID, key, sel.Rank, sel.Password, string(sources), sel.FusedRank, sel.Strength, sel.Credit); err != nil {
				return fmt.Errorf("insert output %s#%d: %w", key, sel.Rank, err)
			}
		}
	}

	for _, d := range res.Diagnostics {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO diagnostics (run_id, identity, generator, kind, severity, message) VALUES (?, ?, ?, ?, ?, ?)`,
			runID, key, d.Generator, d.Kind, string(d.Severity), d.Message,
		); err != nil {
			return fmt.Errorf("insert diagnostic for %s: %w", key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit result %s: %w", key, err)
	}
	return nil
}

// Sink returns a pipeline sink that saves every result under runID.
func (s *Store) Sink(runID string) pipeline.Sink {
	return pipeline.SinkFunc(func(ctx context.Context, res pipeline.Result) error {
		return s.SaveResult(ctx, runID, res)
	})
}

// Outputs returns the stored selections of one identity in rank order.
func (s *Store) Outputs(ctx context.Context, runID, identity string) ([]selector.Selection, error) {
	var exists int
	err := s.db.QueryRowContext(ctx,
		"SELECT 1 FROM identities WHERE run_id = ? AND identity = ?", runID, identity).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("identity %s in run %s: %w", identity, runID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("lookup identity: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT rank, password, sources, fused_rank, strength, credit FROM outputs
		 WHERE run_id = ? AND identity = ? ORDER BY rank`, runID, identity)
	if err != nil {
		return nil, fmt.Errorf("query outputs: %w", err)
	}
	defer rows.Close()

	var out []selector.Selection
	for rows.Next() {
		var (
			sel     selector.Selection
			sources string
		)
		if err := rows.Scan(&sel.Rank, &sel.Password, &sources, &sel.FusedRank, &sel.Strength, &sel.Credit); err != nil {
			return nil, fmt.Errorf("scan output: %w", err)
		}
		if err := json.Unmarshal([]byte(sources), &sel.Sources); err != nil {
			return nil, fmt.Errorf("decode sources: %w", err)
		}
		out = append(out, sel)
	}
	return out, rows.Err()
}

// Identities lists the stored identities of a run in input order.
func (s *Store) Identities(ctx context.Context, runID string) ([]IdentitySummary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT identity, position, status, selected, duration_ms FROM identities WHERE run_id = ? ORDER BY position`, runID)
	if err != nil {
		return nil, fmt.Errorf("query identities: %w", err)
	}
	defer rows.Close()

	var out []IdentitySummary
	for rows.Next() {
		var (
			item   IdentitySummary
			status string
		)
		if err := rows.Scan(&item.Identity, &item.Position, &status, &item.Selected, &item.Duration); err != nil {
			return nil, fmt.Errorf("scan identity: %w", err)
		}
		item.Status = pipeline.Status(status)
		out = append(out, item)
	}
	return out, rows.Err()
}

// Diagnostics returns every diagnostic of a run, grouped by identity in
// input order.
func (s *Store) Diagnostics(ctx context.Context, runID string) ([]pipeline.Diagnostic, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT d.identity, d.generator, d.kind, d.severity, d.message
		 FROM diagnostics d
		 JOIN identities i ON i.run_id = d.run_id AND i.identity = d.identity
		 WHERE d.run_id = ?
		 ORDER BY i.position, d.id`, runID)
	if err != nil {
		return nil, fmt.Errorf("query diagnostics: %w", err)
	}
	defer rows.Close()

	var out []pipeline.Diagnostic
	for rows.Next() {
		var (
			d        pipeline.Diagnostic
			severity string
		)
		if err := rows.Scan(&d.Identity, &d.Generator, &d.Kind, &severity, &d.Message); err != nil {
			return nil, fmt.Errorf("scan diagnostic: %w", err)
		}
		d.Severity = pipeline.Severity(severity)
		out = append(out, d)
	}
	return out, rows.Err()
}
