package priors

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/symptom-triage-mcp/internal/domain"
)

// PostgresStore persists the base prior table in PostgreSQL.
// It expects the base_priors table to exist (created via migrations).
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore wraps an open database handle.
func NewPostgresStore(db *sql.DB) (*PostgresStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	return &PostgresStore{db: db}, nil
}

// NewPostgresStoreFromURL opens a connection pool for databaseURL and verifies it.
func NewPostgresStoreFromURL(databaseURL string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return NewPostgresStore(db)
}

// Load returns the persisted table in its stored order, or nil if nothing is stored.
func (s *PostgresStore) Load(ctx context.Context) ([]domain.ConditionProbability, error) {
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
func (s *PostgresStore) Save(ctx context.Context, priors []domain.ConditionProbability) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM base_priors"); err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to clear priors: %w", err)
	}

	now := time.Now()
	for i, p := range priors {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO base_priors (condition, probability, position, updated_at) VALUES ($1, $2, $3, $4)",
			p.Condition, p.Probability, i, now,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to insert prior %q: %w", p.Condition, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit priors: %w", err)
	}
	return nil
}

// Close closes the store and releases resources.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
