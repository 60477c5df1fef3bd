package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/symptom-triage-mcp/internal/domain"
)

func TestSessionRecorder_Save(t *testing.T) {
	repo := new(MockSessionRepository)
	repo.On("SaveSession", mock.Anything, mock.AnythingOfType("*domain.TriageSession")).Return(nil)

	recorder := NewSessionRecorder(repo, domain.BreakerConfig{}, testLogger())
	session := &domain.TriageSession{SessionID: "s1", IsCompleted: true}

	require.NoError(t, recorder.Save(context.Background(), session))
	repo.AssertExpectations(t)
}

func TestSessionRecorder_BreakerOpensOnFailures(t *testing.T) {
	repo := new(MockSessionRepository)
	repo.On("SaveSession", mock.Anything, mock.Anything).Return(errors.New("connection refused"))

	recorder := NewSessionRecorder(repo, domain.BreakerConfig{
		MinRequests:  3,
		FailureRatio: 0.6,
		Timeout:      time.Minute,
	}, testLogger())
	session := &domain.TriageSession{SessionID: "s1"}

	for i := 0; i < 3; i++ {
		assert.Error(t, recorder.Save(context.Background(), session))
	}
	assert.Equal(t, gobreaker.StateOpen, recorder.State())

	err := recorder.Save(context.Background(), session)
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	repo.AssertNumberOfCalls(t, "SaveSession", 3)
}

func TestSessionRecorder_RecordIsFireAndForget(t *testing.T) {
	repo := new(MockSessionRepository)
	repo.On("SaveSession", mock.Anything, mock.Anything).Return(errors.New("unavailable"))

	recorder := NewSessionRecorder(repo, domain.BreakerConfig{}, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	session := &domain.TriageSession{SessionID: "s1", IsCompleted: true}
	recorder.Record(ctx, session)
	cancel()
	session.SessionID = "mutated after record"

	recorder.Wait()
	repo.AssertCalled(t, "SaveSession", mock.Anything, mock.MatchedBy(func(s *domain.TriageSession) bool {
		return s.SessionID == "s1"
	}))
}

func TestSessionRecorder_Lookup(t *testing.T) {
	repo := new(MockSessionRepository)
	archived := &domain.TriageSession{SessionID: "s1", IsCompleted: true}
	repo.On("GetSession", mock.Anything, "s1").Return(archived, nil)
	repo.On("GetSession", mock.Anything, "missing").Return(nil, domain.ErrNotFound)

	recorder := NewSessionRecorder(repo, domain.BreakerConfig{}, testLogger())

	got, err := recorder.Lookup(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, archived, got)

	_, err = recorder.Lookup(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
