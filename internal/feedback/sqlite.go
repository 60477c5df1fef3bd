package feedback

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/symptom-triage-mcp/internal/domain"
)

// SQLiteStore implements the Store interface using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteStore creates a new SQLite feedback store.
// It creates the database file and schema if they don't exist.
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

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteStore{
		db:     db,
		dbPath: dbPath,
	}, nil
}

// scanner is an interface for sql.Row and sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

const selectColumns = `id, session_id, primary_symptom, top_condition, outcome,
	prior_before, prior_after, applied, notes, created_at`

func scanEntry(s scanner) (*Entry, error) {
	e := &Entry{}
	var sessionID sql.NullString
	var outcome string

	err := s.Scan(
		&e.ID, &sessionID, &e.PrimarySymptom, &e.TopCondition, &outcome,
		&e.PriorBefore, &e.PriorAfter, &e.Applied, &e.Notes, &e.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	e.SessionID = sessionID.String
	e.Outcome = domain.Outcome(outcome)
	return e, nil
}

func nullableSession(sessionID string) sql.NullString {
	return sql.NullString{String: sessionID, Valid: sessionID != ""}
}

func createSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS outcome_feedback (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT UNIQUE,
		primary_symptom TEXT DEFAULT '',
		top_condition TEXT NOT NULL,
		outcome TEXT NOT NULL,
		prior_before REAL NOT NULL DEFAULT 0,
		prior_after REAL NOT NULL DEFAULT 0,
		applied INTEGER NOT NULL DEFAULT 0,
		notes TEXT DEFAULT '',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_outcome_feedback_condition ON outcome_feedback(top_condition);
	CREATE INDEX IF NOT EXISTS idx_outcome_feedback_created_at ON outcome_feedback(created_at);
	`

	_, err := db.Exec(schema)
	return err
}

// Save inserts a new entry.
func (s *SQLiteStore) Save(ctx context.Context, entry *Entry) error {
	now := time.Now()

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO outcome_feedback (
			session_id, primary_symptom, top_condition, outcome,
			prior_before, prior_after, applied, notes, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		nullableSession(entry.SessionID),
		entry.PrimarySymptom,
		entry.TopCondition,
		string(entry.Outcome),
		entry.PriorBefore,
		entry.PriorAfter,
		entry.Applied,
		entry.Notes,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to insert: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get insert ID: %w", err)
	}
	entry.ID = id
	entry.CreatedAt = now

	return nil
}

// GetBySession returns the entry recorded for a session.
func (s *SQLiteStore) GetBySession(ctx context.Context, sessionID string) (*Entry, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+selectColumns+" FROM outcome_feedback WHERE session_id = ? LIMIT 1",
		sessionID)

	e, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan: %w", err)
	}
	return e, nil
}

// List returns all entries with pagination.
func (s *SQLiteStore) List(ctx context.Context, limit, offset int) ([]*Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+selectColumns+" FROM outcome_feedback ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?",
		limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query: %w", err)
	}
	return collect(rows)
}

// ListByCondition returns entries for one condition.
func (s *SQLiteStore) ListByCondition(ctx context.Context, condition string, limit int) ([]*Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+selectColumns+" FROM outcome_feedback WHERE top_condition = ? ORDER BY created_at DESC, id DESC LIMIT ?",
		condition, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query: %w", err)
	}
	return collect(rows)
}

func collect(rows *sql.Rows) ([]*Entry, error) {
	defer rows.Close()

	var result []*Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		result = append(result, e)
	}
	return result, rows.Err()
}

// Count returns the total number of entries.
func (s *SQLiteStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM outcome_feedback").Scan(&count)
	return count, err
}

// Delete removes an entry by ID.
func (s *SQLiteStore) Delete(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM outcome_feedback WHERE id = ?", id)
	return err
}

// ExportJSON exports all entries to a JSON writer.
func (s *SQLiteStore) ExportJSON(ctx context.Context, writer io.Writer) error {
	all, err := s.List(ctx, maxExportLimit, 0)
	if err != nil {
		return fmt.Errorf("failed to list feedback: %w", err)
	}

	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(newExport(all))
}

// ImportJSON imports entries from a JSON reader.
func (s *SQLiteStore) ImportJSON(ctx context.Context, reader io.Reader) (imported int, skipped int, err error) {
	return importEntries(ctx, s, reader)
}

// Close closes the store and releases resources.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func importEntries(ctx context.Context, store Store, reader io.Reader) (imported int, skipped int, err error) {
	var export Export
	if err := json.NewDecoder(reader).Decode(&export); err != nil {
		return 0, 0, fmt.Errorf("failed to decode JSON: %w", err)
	}

	for _, e := range export.Entries {
		if e.SessionID != "" {
			existing, err := store.GetBySession(ctx, e.SessionID)
			if err != nil {
				return imported, skipped, fmt.Errorf("failed to check existing: %w", err)
			}
			if existing != nil {
				skipped++
				continue
			}
		}

		if err := store.Save(ctx, e); err != nil {
			return imported, skipped, fmt.Errorf("failed to save: %w", err)
		}
		imported++
	}

	return imported, skipped, nil
}
