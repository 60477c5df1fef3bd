package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"github.com/symptom-triage-mcp/internal/domain"
)

// SQLiteSessionRepository archives sessions in a local SQLite file for the lite server.
type SQLiteSessionRepository struct {
	db     *sql.DB
	dbPath string
	log    *logrus.Logger
}

// NewSQLiteSessionRepository opens (or creates) the database at dbPath.
func NewSQLiteSessionRepository(dbPath string, logger *logrus.Logger) (*SQLiteSessionRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}

	repo := &SQLiteSessionRepository{db: db, dbPath: dbPath, log: logger}
	if err := repo.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return repo, nil
}

func (r *SQLiteSessionRepository) initSchema() error {
	_, err := r.db.Exec(`
	CREATE TABLE IF NOT EXISTS triage_sessions (
		session_id TEXT PRIMARY KEY,
		primary_symptom TEXT NOT NULL,
		is_completed INTEGER NOT NULL DEFAULT 0,
		highest_risk_level TEXT,
		red_flag_reason TEXT,
		question_count INTEGER NOT NULL DEFAULT 0,
		payload TEXT NOT NULL,
		completed_at DATETIME,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_triage_sessions_completed_at ON triage_sessions(completed_at);
	`)
	return err
}

// SaveSession upserts the session keyed by its id.
func (r *SQLiteSessionRepository) SaveSession(ctx context.Context, session *domain.TriageSession) error {
	row, err := summarize(session)
	if err != nil {
		return err
	}

	var completedAt interface{}
	if row.summary.CompletedAt != nil {
		completedAt = row.summary.CompletedAt.UTC()
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO triage_sessions (
			session_id, primary_symptom, is_completed, highest_risk_level,
			red_flag_reason, question_count, payload, completed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET
			primary_symptom = excluded.primary_symptom,
			is_completed = excluded.is_completed,
			highest_risk_level = excluded.highest_risk_level,
			red_flag_reason = excluded.red_flag_reason,
			question_count = excluded.question_count,
			payload = excluded.payload,
			completed_at = excluded.completed_at,
			updated_at = ?`,
		row.summary.SessionID,
		row.summary.PrimarySymptom,
		row.summary.IsCompleted,
		nullable(row.summary.HighestRiskLevel),
		nullable(row.summary.RedFlagReason),
		row.summary.QuestionCount,
		string(row.payload),
		completedAt,
		time.Now().UTC(),
	)
	if err != nil {
		r.log.WithError(err).WithField("session_id", session.SessionID).Error("Failed to archive triage session")
		return fmt.Errorf("failed to archive session: %w", err)
	}
	return nil
}

// GetSession returns the archived session or domain.ErrNotFound.
func (r *SQLiteSessionRepository) GetSession(ctx context.Context, sessionID string) (*domain.TriageSession, error) {
	var payload string
	err := r.db.QueryRowContext(ctx,
		"SELECT payload FROM triage_sessions WHERE session_id = ?", sessionID,
	).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	var session domain.TriageSession
	if err := json.Unmarshal([]byte(payload), &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return &session, nil
}

// ListRecent returns summaries of completed sessions, newest first.
func (r *SQLiteSessionRepository) ListRecent(ctx context.Context, limit, offset int) ([]SessionSummary, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT session_id, primary_symptom, is_completed,
			COALESCE(highest_risk_level, ''), COALESCE(red_flag_reason, ''),
			question_count, payload
		FROM triage_sessions
		WHERE is_completed = 1
		ORDER BY completed_at DESC, session_id
		LIMIT ? OFFSET ?`, clampLimit(limit), offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var out []SessionSummary
	for rows.Next() {
		var s SessionSummary
		var payload string
		if err := rows.Scan(&s.SessionID, &s.PrimarySymptom, &s.IsCompleted,
			&s.HighestRiskLevel, &s.RedFlagReason, &s.QuestionCount, &payload); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		// completed_at is read back from the payload so timestamps keep their zone.
		var session domain.TriageSession
		if err := json.Unmarshal([]byte(payload), &session); err == nil {
			s.CompletedAt = session.CompletedAt
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// CountByRisk tallies completed sessions per highest risk level.
func (r *SQLiteSessionRepository) CountByRisk(ctx context.Context) (map[string]int, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT COALESCE(highest_risk_level, ''), COUNT(*)
		FROM triage_sessions
		WHERE is_completed = 1
		GROUP BY 1`)
	if err != nil {
		return nil, fmt.Errorf("failed to count sessions: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var level string
		var n int
		if err := rows.Scan(&level, &n); err != nil {
			return nil, fmt.Errorf("failed to scan count: %w", err)
		}
		counts[level] = n
	}
	return counts, rows.Err()
}

// Ping checks the database handle.
func (r *SQLiteSessionRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database
func (r *SQLiteSessionRepository) Close() error {
	return r.db.Close()
}
