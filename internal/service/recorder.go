package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/symptom-triage-mcp/internal/domain"
)

// SessionRecorder archives terminal sessions in the background. Archiving is at least
// once and fire-and-forget: failures are logged and never reach the interview. A
// circuit breaker stops hammering an unavailable repository.
type SessionRecorder struct {
	repo    domain.SessionRepository
	breaker *gobreaker.CircuitBreaker
	logger  *logrus.Logger
	timeout time.Duration
	wg      sync.WaitGroup
}

// NewSessionRecorder wraps repo with a circuit breaker configured from cfg.
func NewSessionRecorder(repo domain.SessionRepository, cfg domain.BreakerConfig, logger *logrus.Logger) *SessionRecorder {
	minRequests := cfg.MinRequests
	if minRequests == 0 {
		minRequests = 3
	}
	failureRatio := cfg.FailureRatio
	if failureRatio == 0 {
		failureRatio = 0.6
	}
	timeout := cfg.OperationTimeout
	if timeout == 0 {
		timeout = 5 * time.Second
	}

	settings := gobreaker.Settings{
		Name:        "SessionArchive",
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= minRequests && ratio >= failureRatio
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"circuit_breaker": name,
				"from_state":      from.String(),
				"to_state":        to.String(),
			}).Warn("Circuit breaker state changed")
		},
	}

	return &SessionRecorder{
		repo:    repo,
		breaker: gobreaker.NewCircuitBreaker(settings),
		logger:  logger,
		timeout: timeout,
	}
}

// Record archives a copy of session in the background. Cancellation of ctx does not
// abort the save.
func (r *SessionRecorder) Record(ctx context.Context, session *domain.TriageSession) {
	snapshot := session.Clone()
	saveCtx := context.WithoutCancel(ctx)

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()

		if err := r.Save(saveCtx, snapshot); err != nil {
			r.logger.WithFields(logrus.Fields{
				"session_id": snapshot.SessionID,
				"error":      err.Error(),
			}).Warn("Failed to archive triage session")
		}
	}()
}

// Save archives session synchronously through the circuit breaker.
func (r *SessionRecorder) Save(ctx context.Context, session *domain.TriageSession) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	_, err := r.breaker.Execute(func() (interface{}, error) {
		return nil, r.repo.SaveSession(ctx, session)
	})
	if err != nil {
		return fmt.Errorf("archive session %s: %w", session.SessionID, err)
	}
	return nil
}

// Lookup reads an archived session.
func (r *SessionRecorder) Lookup(ctx context.Context, sessionID string) (*domain.TriageSession, error) {
	return r.repo.GetSession(ctx, sessionID)
}

// State reports the breaker state.
func (r *SessionRecorder) State() gobreaker.State {
	return r.breaker.State()
}

// Wait blocks until all background saves have finished.
func (r *SessionRecorder) Wait() {
	r.wg.Wait()
}
