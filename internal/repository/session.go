// Package repository archives triage sessions once they reach a terminal state.
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/symptom-triage-mcp/internal/domain"
)

// SessionSummary is the indexed projection of an archived session.
type SessionSummary struct {
	SessionID        string     `json:"session_id"`
	PrimarySymptom   string     `json:"primary_symptom"`
	IsCompleted      bool       `json:"is_completed"`
	HighestRiskLevel string     `json:"highest_risk_level,omitempty"`
	RedFlagReason    string     `json:"red_flag_reason,omitempty"`
	QuestionCount    int        `json:"question_count"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
}

// SessionRepository stores sessions in PostgreSQL. The full session is kept as JSONB
// next to a few indexed columns.
type SessionRepository struct {
	db  *pgxpool.Pool
	log *logrus.Logger
}

// NewSessionRepository creates a repository on an open pool
func NewSessionRepository(db *pgxpool.Pool, logger *logrus.Logger) *SessionRepository {
	return &SessionRepository{
		db:  db,
		log: logger,
	}
}

// SaveSession upserts the session keyed by its id.
func (r *SessionRepository) SaveSession(ctx context.Context, session *domain.TriageSession) error {
	row, err := summarize(session)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO triage_sessions (
			session_id, primary_symptom, is_completed, highest_risk_level,
			red_flag_reason, question_count, payload, completed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (session_id) DO UPDATE SET
			primary_symptom = EXCLUDED.primary_symptom,
			is_completed = EXCLUDED.is_completed,
			highest_risk_level = EXCLUDED.highest_risk_level,
			red_flag_reason = EXCLUDED.red_flag_reason,
			question_count = EXCLUDED.question_count,
			payload = EXCLUDED.payload,
			completed_at = EXCLUDED.completed_at,
			updated_at = NOW()`

	_, err = r.db.Exec(ctx, query,
		row.summary.SessionID,
		row.summary.PrimarySymptom,
		row.summary.IsCompleted,
		nullable(row.summary.HighestRiskLevel),
		nullable(row.summary.RedFlagReason),
		row.summary.QuestionCount,
		row.payload,
		row.summary.CompletedAt,
	)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"session_id": session.SessionID,
			"error":      err,
		}).Error("Failed to archive triage session")
		return fmt.Errorf("archiving session: %w", err)
	}

	r.log.WithFields(logrus.Fields{
		"session_id": session.SessionID,
		"risk_level": row.summary.HighestRiskLevel,
		"red_flag":   row.summary.RedFlagReason != "",
		"questions":  row.summary.QuestionCount,
	}).Debug("Triage session archived")

	return nil
}

// GetSession returns the archived session or domain.ErrNotFound.
func (r *SessionRepository) GetSession(ctx context.Context, sessionID string) (*domain.TriageSession, error) {
	var payload []byte
	err := r.db.QueryRow(ctx,
		`SELECT payload FROM triage_sessions WHERE session_id = $1`, sessionID,
	).Scan(&payload)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("getting session: %w", err)
	}

	var session domain.TriageSession
	if err := json.Unmarshal(payload, &session); err != nil {
		return nil, fmt.Errorf("unmarshaling session: %w", err)
	}
	return &session, nil
}

// ListRecent returns summaries of completed sessions, newest first.
func (r *SessionRepository) ListRecent(ctx context.Context, limit, offset int) ([]SessionSummary, error) {
	rows, err := r.db.Query(ctx, `
		SELECT session_id, primary_symptom, is_completed,
			COALESCE(highest_risk_level, ''), COALESCE(red_flag_reason, ''),
			question_count, completed_at
		FROM triage_sessions
		WHERE is_completed
		ORDER BY completed_at DESC NULLS LAST, session_id
		LIMIT $1 OFFSET $2`, clampLimit(limit), offset)
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	defer rows.Close()

	var out []SessionSummary
	for rows.Next() {
		var s SessionSummary
		if err := rows.Scan(&s.SessionID, &s.PrimarySymptom, &s.IsCompleted,
			&s.HighestRiskLevel, &s.RedFlagReason, &s.QuestionCount, &s.CompletedAt); err != nil {
			return nil, fmt.Errorf("scanning session summary: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// CountByRisk tallies completed sessions per highest risk level.
func (r *SessionRepository) CountByRisk(ctx context.Context) (map[string]int, error) {
	rows, err := r.db.Query(ctx, `
		SELECT COALESCE(highest_risk_level, ''), COUNT(*)
		FROM triage_sessions
		WHERE is_completed
		GROUP BY 1`)
	if err != nil {
		return nil, fmt.Errorf("counting sessions: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var level string
		var n int
		if err := rows.Scan(&level, &n); err != nil {
			return nil, fmt.Errorf("scanning risk count: %w", err)
		}
		counts[level] = n
	}
	return counts, rows.Err()
}

type archivedRow struct {
	summary SessionSummary
	payload []byte
}

func summarize(session *domain.TriageSession) (archivedRow, error) {
	if session == nil || session.SessionID == "" {
		return archivedRow{}, fmt.Errorf("session id is required")
	}

	payload, err := json.Marshal(session)
	if err != nil {
		return archivedRow{}, fmt.Errorf("marshaling session: %w", err)
	}

	s := SessionSummary{
		SessionID:      session.SessionID,
		PrimarySymptom: session.PrimarySymptom,
		IsCompleted:    session.IsCompleted,
		QuestionCount:  len(session.QuestionHistory),
		CompletedAt:    session.CompletedAt,
	}
	if session.HighestRiskLevel != nil {
		s.HighestRiskLevel = string(*session.HighestRiskLevel)
	}
	if session.RedFlag != nil {
		s.RedFlagReason = session.RedFlag.Reason
	}
	return archivedRow{summary: s, payload: payload}, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return 20
	}
	if limit > 500 {
		return 500
	}
	return limit
}
