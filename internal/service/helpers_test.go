package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/symptom-triage-mcp/internal/catalog"
	"github.com/symptom-triage-mcp/internal/domain"
)

var testNow = time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel)
	return logger
}

func sequentialIDs() func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("session-%d", n)
	}
}

func newTestEngine(t *testing.T, source PriorSource) *TriageEngine {
	t.Helper()
	return NewTriageEngine(catalog.Default(), source, testLogger(),
		WithClock(func() time.Time { return testNow }),
		WithIDGenerator(sequentialIDs()),
	)
}

// answer appends the live question and answer in lockstep, the caller's half of the
// step contract, and steps the session.
func answer(t *testing.T, e *TriageEngine, s *domain.TriageSession, a domain.Answer) *domain.TriageSession {
	t.Helper()
	next := s.Clone()
	require.NoError(t, next.RecordAnswer(a))
	return e.Step(next)
}

func sumOf(probs []domain.ConditionProbability) float64 {
	total := 0.0
	for _, p := range probs {
		total += p.Probability
	}
	return total
}

func probabilityOf(probs []domain.ConditionProbability, condition string) float64 {
	for _, p := range probs {
		if p.Condition == condition {
			return p.Probability
		}
	}
	return -1
}

// MockSessionRepository is a testify mock of domain.SessionRepository.
type MockSessionRepository struct {
	mock.Mock
}

func (m *MockSessionRepository) SaveSession(ctx context.Context, session *domain.TriageSession) error {
	return m.Called(ctx, session).Error(0)
}

func (m *MockSessionRepository) GetSession(ctx context.Context, sessionID string) (*domain.TriageSession, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.TriageSession), args.Error(1)
}

// MockPriorStore is a testify mock of priors.Persister.
type MockPriorStore struct {
	mock.Mock
}

func (m *MockPriorStore) Load(ctx context.Context) ([]domain.ConditionProbability, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.ConditionProbability), args.Error(1)
}

func (m *MockPriorStore) Save(ctx context.Context, priors []domain.ConditionProbability) error {
	return m.Called(ctx, priors).Error(0)
}

func (m *MockPriorStore) Close() error {
	return m.Called().Error(0)
}

// memoryCache is a map-backed domain.SessionCache.
type memoryCache struct {
	mu       sync.Mutex
	sessions map[string]*domain.TriageSession
}

func newMemoryCache() *memoryCache {
	return &memoryCache{sessions: make(map[string]*domain.TriageSession)}
}

func (c *memoryCache) Get(_ context.Context, sessionID string) (*domain.TriageSession, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.sessions[sessionID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return s.Clone(), nil
}

func (c *memoryCache) Put(_ context.Context, session *domain.TriageSession) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sessions[session.SessionID] = session.Clone()
	return nil
}

func (c *memoryCache) Delete(_ context.Context, sessionID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.sessions, sessionID)
	return nil
}
