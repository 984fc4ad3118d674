package pii

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/hannes/kiji-autolabel/pii/align"
	"github.com/hannes/kiji-autolabel/pii/dataset"
)

// Supported store drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverNone     = "none"
)

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Driver string // sqlite, postgres or none
	Path   string // Path to SQLite database file

	Host         string
	Port         int
	Database     string
	Username     string
	Password     string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  time.Duration
}

// Run describes one labeling or synthesis invocation.
type Run struct {
	ID        string
	Command   string // label, synth or split
	Source    string // input description, usually the rendered file path
	CreatedAt time.Time
	Pairs     int
	Examples  int
}

// NewRun creates a run with a fresh id.
func NewRun(command, source string) Run {
	return Run{
		ID:        uuid.NewString(),
		Command:   command,
		Source:    source,
		CreatedAt: time.Now().UTC(),
	}
}

// ExampleStore persists labeled examples so that runs can be inspected and
// compared after the JSONL files are gone.
type ExampleStore interface {
	// SaveRun inserts a run or updates its counters
	SaveRun(ctx context.Context, run Run) error

	// SaveExamples stores examples of a run. lines holds the input line of each
	// example; when nil the 1-based position in examples is used.
	SaveExamples(ctx context.Context, runID string, examples []dataset.Example, lines []int) error

	// LabelCounts returns how many entities of each label a run stored
	LabelCounts(ctx context.Context, runID string) (map[string]int, error)

	// CountExamples returns the number of examples stored for a run
	CountExamples(ctx context.Context, runID string) (int, error)

	// Close closes the database connection
	Close() error
}

// ErrUnknownDriver is returned by NewExampleStore for unsupported drivers.
var ErrUnknownDriver = errors.New("unknown database driver")

// NewExampleStore opens the store selected by config.Driver. The "none"
// driver, or an empty one, returns a store that discards everything.
func NewExampleStore(ctx context.Context, config DatabaseConfig) (ExampleStore, error) {
	switch config.Driver {
	case DriverSQLite:
		return NewSQLiteExampleStore(ctx, config)
	case DriverPostgres:
		return NewPostgresExampleStore(ctx, config)
	case DriverNone, "":
		return NopExampleStore{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, config.Driver)
	}
}

// NopExampleStore discards everything.
type NopExampleStore struct{}

func (NopExampleStore) SaveRun(context.Context, Run) error { return nil }
func (NopExampleStore) SaveExamples(context.Context, string, []dataset.Example, []int) error {
	return nil
}
func (NopExampleStore) LabelCounts(context.Context, string) (map[string]int, error) {
	return map[string]int{}, nil
}
func (NopExampleStore) CountExamples(context.Context, string) (int, error) { return 0, nil }
func (NopExampleStore) Close() error                                       { return nil }

// SQLiteExampleStore implements ExampleStore for SQLite
type SQLiteExampleStore struct {
	db *sql.DB
}

// NewSQLiteExampleStore creates a new SQLite example store
func NewSQLiteExampleStore(ctx context.Context, config DatabaseConfig) (*SQLiteExampleStore, error) {
	dbPath := config.Path
	if dbPath == "" {
		dbPath = "autolabel.db"
	}

	// Ensure the directory exists
	dir := filepath.Dir(dbPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(ON)", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	// SQLite works best with a single writer connection
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := createSQLiteTables(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return &SQLiteExampleStore{db: db}, nil
}

// createSQLiteTables creates the required tables if they don't exist
func createSQLiteTables(ctx context.Context, db *sql.DB) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			command TEXT NOT NULL,
			source TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL,
			pairs INTEGER NOT NULL DEFAULT 0,
			examples INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS examples (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			line INTEGER NOT NULL,
			text TEXT NOT NULL,
			entities TEXT NOT NULL DEFAULT '[]',
			meta TEXT NOT NULL DEFAULT '{}'
		)`,
		`CREATE INDEX IF NOT EXISTS idx_examples_run_id ON examples(run_id)`,

		`CREATE TABLE IF NOT EXISTS entities (
			example_id INTEGER NOT NULL REFERENCES examples(id) ON DELETE CASCADE,
			run_id TEXT NOT NULL,
			start_pos INTEGER NOT NULL,
			end_pos INTEGER NOT NULL,
			label TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_entities_run_label ON entities(run_id, label)`,
	}

	for _, query := range queries {
		if _, err := db.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to execute: %s: %w", query, err)
		}
	}

	return nil
}

// SaveRun inserts a run or updates its counters
func (s *SQLiteExampleStore) SaveRun(ctx context.Context, run Run) error {
	query := `
	INSERT INTO runs (id, command, source, created_at, pairs, examples)
	VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT (id)
	DO UPDATE SET
		pairs = excluded.pairs,
		examples = excluded.examples
	`

	_, err := s.db.ExecContext(ctx, query, run.ID, run.Command, run.Source,
		run.CreatedAt.UTC().Format(time.RFC3339), run.Pairs, run.Examples)
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}
	return nil
}

// SaveExamples stores examples and their entities in one transaction
func (s *SQLiteExampleStore) SaveExamples(ctx context.Context, runID string, examples []dataset.Example, lines []int) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	insertExample, err := tx.PrepareContext(ctx,
		`INSERT INTO examples (run_id, line, text, entities, meta) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer insertExample.Close()

	insertEntity, err := tx.PrepareContext(ctx,
		`INSERT INTO entities (example_id, run_id, start_pos, end_pos, label) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer insertEntity.Close()

	for i, ex := range examples {
		row, err := newExampleRow(ex, lineOf(lines, i))
		if err != nil {
			return err
		}

		result, err := insertExample.ExecContext(ctx, runID, row.line, ex.Text, row.entities, row.meta)
		if err != nil {
			return fmt.Errorf("failed to insert example: %w", err)
		}
		exampleID, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to read example id: %w", err)
		}

		for _, ent := range ex.Entities {
			if _, err := insertEntity.ExecContext(ctx, exampleID, runID, ent.Start, ent.End, ent.Label); err != nil {
				return fmt.Errorf("failed to insert entity: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit examples: %w", err)
	}
	return nil
}

// LabelCounts returns how many entities of each label a run stored
func (s *SQLiteExampleStore) LabelCounts(ctx context.Context, runID string) (map[string]int, error) {
	return queryLabelCounts(ctx, s.db, `SELECT label, COUNT(*) FROM entities WHERE run_id = ? GROUP BY label`, runID)
}

// CountExamples returns the number of examples stored for a run
func (s *SQLiteExampleStore) CountExamples(ctx context.Context, runID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM examples WHERE run_id = ?`, runID).Scan(&count)
	return count, err
}

// Close closes the database connection
func (s *SQLiteExampleStore) Close() error {
	return s.db.Close()
}

type exampleRow struct {
	line     int
	entities string
	meta     string
}

func newExampleRow(ex dataset.Example, line int) (exampleRow, error) {
	entities := ex.Entities
	if entities == nil {
		entities = []align.Span{}
	}
	entitiesJSON, err := json.Marshal(entities)
	if err != nil {
		return exampleRow{}, fmt.Errorf("failed to encode entities: %w", err)
	}

	meta := ex.Meta
	if meta == nil {
		meta = map[string]any{}
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return exampleRow{}, fmt.Errorf("failed to encode meta: %w", err)
	}

	return exampleRow{line: line, entities: string(entitiesJSON), meta: string(metaJSON)}, nil
}

func lineOf(lines []int, i int) int {
	if i < len(lines) {
		return lines[i]
	}
	return i + 1
}

func queryLabelCounts(ctx context.Context, db *sql.DB, query, runID string) (map[string]int, error) {
	rows, err := db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query label counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var label string
		var count int
		if err := rows.Scan(&label, &count); err != nil {
			return nil, fmt.Errorf("failed to scan label count: %w", err)
		}
		counts[label] = count
	}
	return counts, rows.Err()
}
