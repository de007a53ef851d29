// Package db keeps a DuckDB history of load cycles.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/marcboeker/go-duckdb"

	"github.com/joeblew999/plat-flood/internal/layers"
)

// Config holds database configuration. An empty DataDir opens an in-memory
// database.
type Config struct {
	DataDir string
	DBName  string
}

const schema = `CREATE TABLE IF NOT EXISTS load_outcomes (
	cycle_id    VARCHAR NOT NULL,
	basemap     VARCHAR NOT NULL,
	started     TIMESTAMP NOT NULL,
	position    INTEGER NOT NULL,
	layer_id    VARCHAR NOT NULL,
	status      VARCHAR NOT NULL,
	kind        VARCHAR,
	reason      VARCHAR,
	sample      BOOLEAN NOT NULL,
	duration_ms BIGINT NOT NULL
)`

// Store records per-layer outcomes of every load cycle.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the history database.
func Open(cfg Config) (*Store, error) {
	dsn := ""
	if cfg.DataDir != "" {
		dir := filepath.Join(cfg.DataDir, "duckdb")
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create duckdb directory: %w", err)
		}
		name := cfg.DBName
		if name == "" {
			name = "history"
		}
		dsn = filepath.Join(dir, name+".duckdb")
	}

	db, err := sql.Open("duckdb", dsn)
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record stores one row per entry of result.
func (s *Store) Record(ctx context.Context, basemap string, result layers.AggregateResult) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO load_outcomes
		(cycle_id, basemap, started, position, layer_id, status, kind, reason, sample, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	for i, e := range result.Entries {
		var kind, reason sql.NullString
		if e.Failure != nil {
			kind = sql.NullString{String: string(e.Failure.Kind), Valid: true}
			reason = sql.NullString{String: e.Failure.Reason, Valid: true}
		}
		if _, err := stmt.ExecContext(ctx, result.CycleID, basemap, result.Started.UTC(), i,
			e.ID, string(e.Status), kind, reason, e.Sample, e.Duration.Milliseconds()); err != nil {
			return fmt.Errorf("insert %s: %w", e.ID, err)
		}
	}
	return tx.Commit()
}

// LayerOutcome is one stored entry.
type LayerOutcome struct {
	Layer      string `json:"layer" doc:"Layer ID"`
	Status     string `json:"status" enum:"success,failure" doc:"Outcome"`
	Kind       string `json:"kind,omitempty" doc:"Failure kind"`
	Reason     string `json:"reason,omitempty" doc:"Failure reason"`
	Sample     bool   `json:"sample,omitempty" doc:"Sample data was shown instead"`
	DurationMS int64  `json:"durationMs" doc:"Fetch and registration time"`
}

// Cycle is one stored load cycle.
type Cycle struct {
	ID       string         `json:"id" doc:"Cycle ID"`
	Basemap  string         `json:"basemap" doc:"Basemap active during the cycle"`
	Started  time.Time      `json:"started" doc:"When the cycle started"`
	Outcomes []LayerOutcome `json:"outcomes" doc:"Per-layer outcomes in catalog order"`
}

// Count returns the number of stored cycles.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT count(DISTINCT cycle_id) FROM load_outcomes`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count cycles: %w", err)
	}
	return n, nil
}

// Recent returns cycles newest first.
func (s *Store) Recent(ctx context.Context, offset, limit int) ([]Cycle, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT cycle_id, any_value(basemap), min(started) AS started
		FROM load_outcomes
		GROUP BY cycle_id
		ORDER BY started DESC, cycle_id DESC
		LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list cycles: %w", err)
	}
	var cycles []Cycle
	for rows.Next() {
		var c Cycle
		if err := rows.Scan(&c.ID, &c.Basemap, &c.Started); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan cycle: %w", err)
		}
		cycles = append(cycles, c)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range cycles {
		outcomes, err := s.outcomes(ctx, cycles[i].ID)
		if err != nil {
			return nil, err
		}
		cycles[i].Outcomes = outcomes
	}
	return cycles, nil
}

func (s *Store) outcomes(ctx context.Context, cycleID string) ([]LayerOutcome, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT layer_id, status, kind, reason, sample, duration_ms
		FROM load_outcomes WHERE cycle_id = ? ORDER BY position`, cycleID)
	if err != nil {
		return nil, fmt.Errorf("list outcomes: %w", err)
	}
	defer rows.Close()

	var out []LayerOutcome
	for rows.Next() {
		var o LayerOutcome
		var kind, reason sql.NullString
		if err := rows.Scan(&o.Layer, &o.Status, &kind, &reason, &o.Sample, &o.DurationMS); err != nil {
			return nil, fmt.Errorf("scan outcome: %w", err)
		}
		o.Kind, o.Reason = kind.String, reason.String
		out = append(out, o)
	}
	return out, rows.Err()
}
