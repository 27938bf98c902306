// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package history persists run summaries to a local SQLite database so
// past runs can be listed and inspected after the process exits.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/EbramTawfik/mcp-evals/internal/runner"
)

// Store provides SQLite-backed storage for run summaries.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the history database at path and runs
// migrations. Special value ":memory:" creates an in-memory database.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	// WAL mode for concurrent readers while a run is being written.
	connStr := path
	if path != ":memory:" {
		connStr += "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL"
	}

	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	if path == ":memory:" {
		// Each pooled connection would otherwise open its own empty
		// in-memory database.
		db.SetMaxOpenConns(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

// migrate creates the database schema.
func (s *Store) migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		return fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	migrations := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			suite TEXT NOT NULL,
			started_at INTEGER NOT NULL,
			completed_at INTEGER NOT NULL,
			passed INTEGER NOT NULL,
			failed INTEGER NOT NULL,
			mean_score REAL NOT NULL,
			created_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at)`,

		`CREATE TABLE IF NOT EXISTS results (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			position INTEGER NOT NULL,
			name TEXT NOT NULL,
			description TEXT,
			prompt TEXT NOT NULL,
			response TEXT,
			success INTEGER NOT NULL,
			error TEXT,
			duration_ms INTEGER NOT NULL,
			plan_source TEXT,
			accuracy INTEGER NOT NULL,
			completeness INTEGER NOT NULL,
			relevance INTEGER NOT NULL,
			clarity INTEGER NOT NULL,
			reasoning INTEGER NOT NULL,
			comments TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_results_run ON results(run_id)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.ExecContext(ctx, migration); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	return nil
}

// SaveRun writes a summary and its results in one transaction.
func (s *Store) SaveRun(ctx context.Context, summary *runner.Summary) error {
	if summary == nil {
		return fmt.Errorf("summary is nil")
	}
	if summary.RunID == "" {
		return fmt.Errorf("summary run ID is required")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, suite, started_at, completed_at, passed, failed, mean_score, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		summary.RunID, summary.Suite,
		summary.StartedAt.UnixNano(), summary.CompletedAt.UnixNano(),
		summary.Passed, summary.Failed, summary.MeanScore,
		time.Now().UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to store run: %w", err)
	}

	for i, res := range summary.Results {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO results (run_id, position, name, description, prompt, response,
				success, error, duration_ms, plan_source,
				accuracy, completeness, relevance, clarity, reasoning, comments)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			summary.RunID, i, res.Name, res.Description, res.Prompt, res.Response,
			res.Success, res.Error, res.DurationMs, res.PlanSource,
			res.Score.Accuracy, res.Score.Completeness, res.Score.Relevance,
			res.Score.Clarity, res.Score.Reasoning, res.Score.Comments,
		)
		if err != nil {
			return fmt.Errorf("failed to store result %q: %w", res.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run: %w", err)
	}

	return nil
}

// RunRecord is a stored run's summary row.
type RunRecord struct {
	RunID       string
	Suite       string
	StartedAt   time.Time
	CompletedAt time.Time
	Passed      int
	Failed      int
	MeanScore   float64
}

// ListRuns returns stored runs, newest first. A limit <= 0 lists all.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	query := `
		SELECT id, suite, started_at, completed_at, passed, failed, mean_score
		FROM runs ORDER BY started_at DESC`
	args := []any{}

	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var records []RunRecord
	for rows.Next() {
		var rec RunRecord
		var startedAt, completedAt int64

		if err := rows.Scan(&rec.RunID, &rec.Suite, &startedAt, &completedAt,
			&rec.Passed, &rec.Failed, &rec.MeanScore); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}

		rec.StartedAt = time.Unix(0, startedAt)
		rec.CompletedAt = time.Unix(0, completedAt)
		records = append(records, rec)
	}

	return records, rows.Err()
}

// GetRun reconstructs a stored run by ID. A unique run-ID prefix works
// too, so CLI users can paste the short form.
func (s *Store) GetRun(ctx context.Context, id string) (*runner.Summary, error) {
	if id == "" {
		return nil, fmt.Errorf("run ID is required")
	}

	summary := &runner.Summary{}
	var startedAt, completedAt int64

	err := s.db.QueryRowContext(ctx, `
		SELECT id, suite, started_at, completed_at, passed, failed, mean_score
		FROM runs WHERE id = ?`, id).Scan(
		&summary.RunID, &summary.Suite, &startedAt, &completedAt,
		&summary.Passed, &summary.Failed, &summary.MeanScore,
	)
	if err == sql.ErrNoRows {
		summary, startedAt, completedAt, err = s.getRunByPrefix(ctx, id)
	}
	if err != nil {
		return nil, err
	}

	summary.StartedAt = time.Unix(0, startedAt)
	summary.CompletedAt = time.Unix(0, completedAt)

	rows, err := s.db.QueryContext(ctx, `
		SELECT name, description, prompt, response, success, error, duration_ms, plan_source,
			accuracy, completeness, relevance, clarity, reasoning, comments
		FROM results WHERE run_id = ? ORDER BY position ASC`, summary.RunID)
	if err != nil {
		return nil, fmt.Errorf("failed to query results: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var res runner.Result
		if err := rows.Scan(&res.Name, &res.Description, &res.Prompt, &res.Response,
			&res.Success, &res.Error, &res.DurationMs, &res.PlanSource,
			&res.Score.Accuracy, &res.Score.Completeness, &res.Score.Relevance,
			&res.Score.Clarity, &res.Score.Reasoning, &res.Score.Comments); err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		summary.Results = append(summary.Results, res)
	}

	return summary, rows.Err()
}

// getRunByPrefix resolves a short run ID; ambiguous prefixes are an error.
func (s *Store) getRunByPrefix(ctx context.Context, prefix string) (*runner.Summary, int64, int64, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, suite, started_at, completed_at, passed, failed, mean_score
		FROM runs WHERE id LIKE ? LIMIT 2`, prefix+"%")
	if err != nil {
		return nil, 0, 0, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var matches []*runner.Summary
	var starts, completes []int64
	for rows.Next() {
		summary := &runner.Summary{}
		var startedAt, completedAt int64
		if err := rows.Scan(&summary.RunID, &summary.Suite, &startedAt, &completedAt,
			&summary.Passed, &summary.Failed, &summary.MeanScore); err != nil {
			return nil, 0, 0, fmt.Errorf("failed to scan run: %w", err)
		}
		matches = append(matches, summary)
		starts = append(starts, startedAt)
		completes = append(completes, completedAt)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, 0, err
	}

	switch len(matches) {
	case 0:
		return nil, 0, 0, fmt.Errorf("run not found: %s", prefix)
	case 1:
		return matches[0], starts[0], completes[0], nil
	default:
		return nil, 0, 0, fmt.Errorf("run ID prefix %q is ambiguous", prefix)
	}
}

// DeleteRunsOlderThan deletes runs that started before the given time and
// returns how many were removed.
func (s *Store) DeleteRunsOlderThan(ctx context.Context, before time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		"DELETE FROM runs WHERE started_at < ?", before.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("failed to delete old runs: %w", err)
	}

	count, _ := result.RowsAffected()

	// Cascade should handle this, but be explicit for databases opened
	// without foreign keys.
	_, err = s.db.ExecContext(ctx,
		"DELETE FROM results WHERE run_id NOT IN (SELECT id FROM runs)")
	if err != nil {
		return count, fmt.Errorf("failed to delete orphaned results: %w", err)
	}

	return count, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
