package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/symptom-triage-mcp/internal/domain"
)

// SystemErrorReason is the red-flag reason of a session that failed validation or
// could not be stepped.
const SystemErrorReason = "An unexpected system error occurred (system error)"

// TriageService wraps the engine for transports. It validates caller-held sessions,
// keeps server-held sessions in a cache and archives terminal sessions.
type TriageService struct {
	engine    *TriageEngine
	validator *SessionValidator
	cache     domain.SessionCache
	recorder  *SessionRecorder
	logger    *logrus.Logger
	locks     *sessionLocks
}

// NewTriageService creates a service. cache and recorder may be nil.
func NewTriageService(engine *TriageEngine, cache domain.SessionCache, recorder *SessionRecorder, logger *logrus.Logger) *TriageService {
	return &TriageService{
		engine:    engine,
		validator: NewSessionValidator(),
		cache:     cache,
		recorder:  recorder,
		logger:    logger,
		locks:     newSessionLocks(),
	}
}

// Engine returns the underlying state machine.
func (s *TriageService) Engine() *TriageEngine {
	return s.engine
}

// Start opens a server-held interview and returns it with its first question.
func (s *TriageService) Start(ctx context.Context, primarySymptom string) (*domain.TriageSession, error) {
	session := s.engine.Initialize(primarySymptom)

	if s.cache != nil {
		if err := s.cache.Put(ctx, session); err != nil {
			return nil, fmt.Errorf("failed to store session: %w", err)
		}
	}

	s.logger.WithFields(logrus.Fields{
		"session_id":      session.SessionID,
		"primary_symptom": primarySymptom,
	}).Info("Started triage session")
	return session, nil
}

// Advance performs one validated round trip of a caller-held session. It never fails:
// a malformed session or an engine fault yields a terminal system-error session.
func (s *TriageService) Advance(ctx context.Context, session *domain.TriageSession) *domain.TriageSession {
	if err := s.validator.Validate(session); err != nil {
		return s.fail(ctx, session, fmt.Errorf("invalid session: %w", err))
	}

	wasCompleted := session.IsCompleted
	next, err := s.step(session)
	if err != nil {
		return s.fail(ctx, session, err)
	}

	if err := s.validator.Validate(next); err != nil {
		return s.fail(ctx, session, fmt.Errorf("invalid step result: %w", err))
	}

	if next.IsCompleted && !wasCompleted {
		s.archive(ctx, next)
	}
	return next
}

// Answer records an answer to the current question of a server-held session and
// advances it.
func (s *TriageService) Answer(ctx context.Context, sessionID string, answer domain.Answer) (*domain.TriageSession, error) {
	unlock := s.locks.lock(sessionID)
	defer unlock()

	session, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if err := session.RecordAnswer(answer); err != nil {
		return nil, err
	}

	next := s.Advance(ctx, session)

	if s.cache != nil {
		if err := s.cache.Put(ctx, next); err != nil {
			return nil, fmt.Errorf("failed to store session: %w", err)
		}
	}
	return next, nil
}

// Get returns a server-held session, falling back to the archive.
func (s *TriageService) Get(ctx context.Context, sessionID string) (*domain.TriageSession, error) {
	session, err := s.load(ctx, sessionID)
	if err == nil {
		return session, nil
	}
	if !errors.Is(err, domain.ErrNotFound) || s.recorder == nil {
		return nil, err
	}

	archived, archiveErr := s.recorder.Lookup(ctx, sessionID)
	if archiveErr != nil {
		if errors.Is(archiveErr, domain.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to read archived session: %w", archiveErr)
	}
	return archived, nil
}

func (s *TriageService) load(ctx context.Context, sessionID string) (*domain.TriageSession, error) {
	if s.cache == nil {
		return nil, domain.ErrNotFound
	}
	session, err := s.cache.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	return session, nil
}

// step runs the engine, converting a panic into an error.
func (s *TriageService) step(session *domain.TriageSession) (next *domain.TriageSession, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("triage step panicked: %v", r)
		}
	}()
	return s.engine.Step(session), nil
}

// fail builds the terminal system-error state for session.
func (s *TriageService) fail(ctx context.Context, session *domain.TriageSession, cause error) *domain.TriageSession {
	var out *domain.TriageSession
	if session != nil {
		out = session.Clone()
	} else {
		out = domain.NewTriageSession("")
	}
	if out.SessionID == "" {
		out.SessionID = s.engine.newID()
	}

	now := s.engine.now()
	out.IsCompleted = true
	out.RedFlag = &domain.RedFlag{Reason: SystemErrorReason}
	out.CurrentQuestion = nil
	out.HighestRiskLevel = domain.RiskRed.Ptr()
	out.CompletedAt = &now

	s.logger.WithFields(logrus.Fields{
		"session_id": out.SessionID,
		"error":      cause.Error(),
	}).Error("Triage step failed, session terminated")

	s.archive(ctx, out)
	return out
}

func (s *TriageService) archive(ctx context.Context, session *domain.TriageSession) {
	if s.recorder != nil {
		s.recorder.Record(ctx, session)
	}
}

// sessionLocks serializes work on one server-held session.
type sessionLocks struct {
	mu    sync.Mutex
	locks map[string]*sessionLock
}

type sessionLock struct {
	mu   sync.Mutex
	refs int
}

func newSessionLocks() *sessionLocks {
	return &sessionLocks{locks: make(map[string]*sessionLock)}
}

func (l *sessionLocks) lock(key string) func() {
	l.mu.Lock()
	entry, ok := l.locks[key]
	if !ok {
		entry = &sessionLock{}
		l.locks[key] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()
	return func() {
		entry.mu.Unlock()

		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.locks, key)
		}
		l.mu.Unlock()
	}
}
