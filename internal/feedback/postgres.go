package feedback

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"time"

	_ "github.com/lib/pq"
)

// PostgresStore implements the Store interface using PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL feedback store.
// It expects the schema to already exist (created via migrations).
func NewPostgresStore(db *sql.DB) (*PostgresStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

// NewPostgresStoreFromURL creates a new PostgreSQL feedback store from a connection URL.
func NewPostgresStoreFromURL(databaseURL string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	store, err := NewPostgresStore(db)
	if err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

// Save inserts a new entry.
func (s *PostgresStore) Save(ctx context.Context, entry *Entry) error {
	query := `
		INSERT INTO outcome_feedback (
			session_id, primary_symptom, top_condition, outcome,
			prior_before, prior_after, applied, notes, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at
	`

	err := s.db.QueryRowContext(ctx, query,
		nullableSession(entry.SessionID),
		entry.PrimarySymptom,
		entry.TopCondition,
		string(entry.Outcome),
		entry.PriorBefore,
		entry.PriorAfter,
		entry.Applied,
		entry.Notes,
		time.Now(),
	).Scan(&entry.ID, &entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save feedback: %w", err)
	}

	return nil
}

// GetBySession returns the entry recorded for a session.
func (s *PostgresStore) GetBySession(ctx context.Context, sessionID string) (*Entry, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+selectColumns+" FROM outcome_feedback WHERE session_id = $1 LIMIT 1",
		sessionID)

	e, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get feedback: %w", err)
	}
	return e, nil
}

// List returns all entries with pagination.
func (s *PostgresStore) List(ctx context.Context, limit, offset int) ([]*Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+selectColumns+" FROM outcome_feedback ORDER BY created_at DESC, id DESC LIMIT $1 OFFSET $2",
		limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list feedback: %w", err)
	}
	return collect(rows)
}

// ListByCondition returns entries for one condition.
func (s *PostgresStore) ListByCondition(ctx context.Context, condition string, limit int) ([]*Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+selectColumns+" FROM outcome_feedback WHERE top_condition = $1 ORDER BY created_at DESC, id DESC LIMIT $2",
		condition, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list feedback: %w", err)
	}
	return collect(rows)
}

// Count returns the total number of entries.
func (s *PostgresStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM outcome_feedback").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count feedback: %w", err)
	}
	return count, nil
}

// Delete removes an entry by ID.
func (s *PostgresStore) Delete(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM outcome_feedback WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete feedback: %w", err)
	}
	return nil
}

// ExportJSON exports all entries to a JSON writer.
func (s *PostgresStore) ExportJSON(ctx context.Context, writer io.Writer) error {
	all, err := s.List(ctx, maxExportLimit, 0)
	if err != nil {
		return fmt.Errorf("failed to list feedback: %w", err)
	}

	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(newExport(all))
}

// ImportJSON imports entries from a JSON reader.
func (s *PostgresStore) ImportJSON(ctx context.Context, reader io.Reader) (imported int, skipped int, err error) {
	return importEntries(ctx, s, reader)
}

// Close closes the store and releases resources.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
