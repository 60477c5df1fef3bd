package repository

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/symptom-triage-mcp/internal/domain"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel)
	return logger
}

func createTestRepository(t *testing.T) *SQLiteSessionRepository {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "triage-sessions-test-*")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(tmpDir) })

	repo, err := NewSQLiteSessionRepository(filepath.Join(tmpDir, "data", "sessions.db"), testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func completedSession(id string, risk domain.RiskLevel, completedAt time.Time) *domain.TriageSession {
	s := domain.NewTriageSession("sore throat")
	s.SessionID = id
	s.QuestionHistory = []string{"Are you having severe difficulty swallowing or breathing?"}
	s.Answers = []domain.Answer{domain.AnswerNo}
	s.ConditionProbabilities = []domain.ConditionProbability{
		{Condition: "Bacterial Infection", Probability: 0.7},
		{Condition: "Viral Infection", Probability: 0.3},
	}
	s.IsCompleted = true
	s.HighestRiskLevel = risk.Ptr()
	s.CompletedAt = &completedAt
	return s
}

func TestSQLiteSessionRepository_SaveAndGet(t *testing.T) {
	repo := createTestRepository(t)
	ctx := context.Background()

	completedAt := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	session := completedSession("s-1", domain.RiskYellow, completedAt)

	require.NoError(t, repo.SaveSession(ctx, session))

	got, err := repo.GetSession(ctx, "s-1")
	require.NoError(t, err)
	assert.Equal(t, session.QuestionHistory, got.QuestionHistory)
	assert.Equal(t, session.ConditionProbabilities, got.ConditionProbabilities)
	require.NotNil(t, got.CompletedAt)
	assert.True(t, completedAt.Equal(*got.CompletedAt))
	assert.Equal(t, domain.RiskYellow, *got.HighestRiskLevel)
}

func TestSQLiteSessionRepository_SaveUpserts(t *testing.T) {
	repo := createTestRepository(t)
	ctx := context.Background()

	session := completedSession("s-1", domain.RiskGreen, time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC))
	require.NoError(t, repo.SaveSession(ctx, session))

	session.RedFlag = &domain.RedFlag{Reason: "An unexpected system error occurred (system error)"}
	session.HighestRiskLevel = domain.RiskRed.Ptr()
	require.NoError(t, repo.SaveSession(ctx, session))

	got, err := repo.GetSession(ctx, "s-1")
	require.NoError(t, err)
	require.NotNil(t, got.RedFlag)
	assert.Equal(t, domain.RiskRed, *got.HighestRiskLevel)

	counts, err := repo.CountByRisk(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"RED": 1}, counts)
}

func TestSQLiteSessionRepository_GetMissing(t *testing.T) {
	repo := createTestRepository(t)

	_, err := repo.GetSession(context.Background(), "nope")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSQLiteSessionRepository_SaveRequiresID(t *testing.T) {
	repo := createTestRepository(t)

	err := repo.SaveSession(context.Background(), domain.NewTriageSession("fever"))
	assert.Error(t, err)
}

func TestSQLiteSessionRepository_ListRecent(t *testing.T) {
	repo := createTestRepository(t)
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, repo.SaveSession(ctx, completedSession("old", domain.RiskGreen, base)))
	require.NoError(t, repo.SaveSession(ctx, completedSession("new", domain.RiskYellow, base.Add(time.Hour))))

	open := domain.NewTriageSession("fever")
	open.SessionID = "open"
	require.NoError(t, repo.SaveSession(ctx, open))

	list, err := repo.ListRecent(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "new", list[0].SessionID)
	assert.Equal(t, "YELLOW", list[0].HighestRiskLevel)
	assert.Equal(t, 1, list[0].QuestionCount)
	assert.Equal(t, "old", list[1].SessionID)

	page, err := repo.ListRecent(ctx, 1, 1)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "old", page[0].SessionID)

	counts, err := repo.CountByRisk(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"GREEN": 1, "YELLOW": 1}, counts)
}
