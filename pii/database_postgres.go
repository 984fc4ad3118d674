package pii

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/hannes/kiji-autolabel/pii/dataset"
)

// PostgresExampleStore implements ExampleStore for PostgreSQL
type PostgresExampleStore struct {
	db *sql.DB
}

// NewPostgresExampleStore creates a new PostgreSQL example store
func NewPostgresExampleStore(ctx context.Context, config DatabaseConfig) (*PostgresExampleStore, error) {
	sslMode := config.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	connStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		config.Host, config.Port, config.Username, config.Password, config.Database, sslMode)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxIdleConns)
	db.SetConnMaxLifetime(config.MaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := createPostgresTables(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return &PostgresExampleStore{db: db}, nil
}

// createPostgresTables creates the required tables if they don't exist
func createPostgresTables(ctx context.Context, db *sql.DB) error {
	query := `
	CREATE TABLE IF NOT EXISTS runs (
		id UUID PRIMARY KEY,
		command VARCHAR(32) NOT NULL,
		source TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
		pairs INTEGER NOT NULL DEFAULT 0,
		examples INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS examples (
		id BIGSERIAL PRIMARY KEY,
		run_id UUID NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		line INTEGER NOT NULL,
		text TEXT NOT NULL,
		entities JSONB NOT NULL DEFAULT '[]',
		meta JSONB NOT NULL DEFAULT '{}'
	);

	CREATE TABLE IF NOT EXISTS entities (
		example_id BIGINT NOT NULL REFERENCES examples(id) ON DELETE CASCADE,
		run_id UUID NOT NULL,
		start_pos INTEGER NOT NULL,
		end_pos INTEGER NOT NULL,
		label VARCHAR(64) NOT NULL
	);

	-- Create indexes for better performance
	CREATE INDEX IF NOT EXISTS idx_examples_run_id ON examples(run_id);
	CREATE INDEX IF NOT EXISTS idx_entities_run_label ON entities(run_id, label);
	`

	_, err := db.ExecContext(ctx, query)
	return err
}

// SaveRun inserts a run or updates its counters
func (p *PostgresExampleStore) SaveRun(ctx context.Context, run Run) error {
	query := `
	INSERT INTO runs (id, command, source, created_at, pairs, examples)
	VALUES ($1, $2, $3, $4, $5, $6)
	ON CONFLICT (id)
	DO UPDATE SET
		pairs = EXCLUDED.pairs,
		examples = EXCLUDED.examples
	`

	_, err := p.db.ExecContext(ctx, query, run.ID, run.Command, run.Source, run.CreatedAt, run.Pairs, run.Examples)
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}
	return nil
}

// SaveExamples stores examples and their entities in one transaction
func (p *PostgresExampleStore) SaveExamples(ctx context.Context, runID string, examples []dataset.Example, lines []int) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	insertExample, err := tx.PrepareContext(ctx,
		`INSERT INTO examples (run_id, line, text, entities, meta) VALUES ($1, $2, $3, $4, $5) RETURNING id`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer insertExample.Close()

	insertEntity, err := tx.PrepareContext(ctx,
		`INSERT INTO entities (example_id, run_id, start_pos, end_pos, label) VALUES ($1, $2, $3, $4, $5)`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer insertEntity.Close()

	for i, ex := range examples {
		row, err := newExampleRow(ex, lineOf(lines, i))
		if err != nil {
			return err
		}

		var exampleID int64
		if err := insertExample.QueryRowContext(ctx, runID, row.line, ex.Text, row.entities, row.meta).Scan(&exampleID); err != nil {
			return fmt.Errorf("failed to insert example: %w", err)
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
func (p *PostgresExampleStore) LabelCounts(ctx context.Context, runID string) (map[string]int, error) {
	return queryLabelCounts(ctx, p.db, `SELECT label, COUNT(*) FROM entities WHERE run_id = $1 GROUP BY label`, runID)
}

// CountExamples returns the number of examples stored for a run
func (p *PostgresExampleStore) CountExamples(ctx context.Context, runID string) (int, error) {
	var count int
	err := p.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM examples WHERE run_id = $1`, runID).Scan(&count)
	return count, err
}

// Close closes the database connection
func (p *PostgresExampleStore) Close() error {
	return p.db.Close()
}
