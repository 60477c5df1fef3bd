package priors

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/symptom-triage-mcp/internal/domain"
)

// SQLiteStore persists the base prior table in a SQLite database.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteStore opens (or creates) the SQLite database at dbPath and ensures the
// schema exists.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}

	if _, err := db.Exec(`
	CREATE TABLE IF NOT EXISTS base_priors (
		condition TEXT PRIMARY KEY,
		probability REAL NOT NULL,
		position INTEGER NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);`); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteStore{db: db, dbPath: dbPath}, nil
}

// Load returns the persisted table in its stored order, or nil if nothing is stored.
func (s *SQLiteStore) Load(ctx context.Context) ([]domain.ConditionProbability, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT condition, probability FROM base_priors ORDER BY position ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to query priors: %w", err)
	}
	defer rows.Close()

	var result []domain.ConditionProbability
	for rows.Next() {
		var p domain.ConditionProbability
		if err := rows.Scan(&p.Condition, &p.Probability); err != nil {
			return nil, fmt.Errorf("failed to scan prior: %w", err)
		}
		result = append(result, p)
	}
	return result, rows.Err()
}

// Save replaces the stored table in a single transaction.
func (s *SQLiteStore) Save(ctx context.Context, priors []domain.ConditionProbability) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM base_priors"); err != nil {
		return fmt.Errorf("failed to clear priors: %w", err)
	}

	now := time.Now()
	for i, p := range priors {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO base_priors (condition, probability, position, updated_at) VALUES (?, ?, ?, ?)",
			p.Condition, p.Probability, i, now,
		); err != nil {
			return fmt.Errorf("failed to insert prior %q: %w", p.Condition, err)
		}
	}

	return tx.Commit()
}

// Close closes the store and releases resources.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
