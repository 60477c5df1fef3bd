package service

import (
	"context"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sirupsen/logrus"

	"github.com/symptom-triage-mcp/internal/domain"
	"github.com/symptom-triage-mcp/internal/feedback"
)

// maxRememberedSubmissions bounds the in-process record of sessions whose outcome
// has already been applied.
const maxRememberedSubmissions = 10000

// SessionFinder looks up a session by id.
type SessionFinder interface {
	Get(ctx context.Context, sessionID string) (*domain.TriageSession, error)
}

// FeedbackOption configures a FeedbackService.
type FeedbackOption func(*FeedbackService)

// WithFeedbackClock overrides the time source used for the feedback window.
func WithFeedbackClock(now func() time.Time) FeedbackOption {
	return func(f *FeedbackService) {
		f.now = now
	}
}

// FeedbackService turns outcome reports into base prior adjustments and keeps a log
// of them.
type FeedbackService struct {
	adjuster *FeedbackAdjuster
	store    feedback.Store
	sessions SessionFinder
	cfg      domain.TriageConfig
	logger   *logrus.Logger
	now      func() time.Time
	locks    *sessionLocks

	// applied holds session ids that already moved the priors, so a session is never
	// applied twice when the feedback log is unavailable.
	applied *lru.Cache[string, struct{}]
}

// NewFeedbackService creates a feedback service. store and sessions may be nil; without
// sessions only condition-keyed adjustments are possible.
func NewFeedbackService(adjuster *FeedbackAdjuster, store feedback.Store, sessions SessionFinder, cfg domain.TriageConfig, logger *logrus.Logger, opts ...FeedbackOption) *FeedbackService {
	applied, _ := lru.New[string, struct{}](maxRememberedSubmissions)
	f := &FeedbackService{
		adjuster: adjuster,
		store:    store,
		sessions: sessions,
		cfg:      cfg,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
		locks:    newSessionLocks(),
		applied:  applied,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// FeedbackWindow returns when outcome feedback for a session completed at completedAt
// opens and closes.
func (f *FeedbackService) FeedbackWindow(completedAt time.Time) (opens, closes time.Time) {
	return completedAt.Add(f.cfg.FeedbackMinDelay), completedAt.Add(f.cfg.FeedbackMaxDelay)
}

// SubmitForSession applies an outcome report to the top condition of a completed
// session. Each session accepts one report, and only inside the feedback window when
// the window is enforced.
func (f *FeedbackService) SubmitForSession(ctx context.Context, sessionID string, outcome domain.Outcome, notes string) (*feedback.Entry, error) {
	if !outcome.IsValid() {
		return nil, domain.ErrInvalidOutcome
	}
	if f.sessions == nil {
		return nil, domain.ErrNotFound
	}

	unlock := f.locks.lock(sessionID)
	defer unlock()

	session, err := f.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if !session.IsCompleted || session.RedFlag != nil || session.CompletedAt == nil {
		return nil, domain.ErrNotEligibleForFeedback
	}
	topCondition, ok := TopCondition(session.ConditionProbabilities)
	if !ok {
		return nil, domain.ErrNotEligibleForFeedback
	}

	if f.cfg.EnforceFeedbackWindow {
		opens, closes := f.FeedbackWindow(*session.CompletedAt)
		now := f.now()
		if now.Before(opens) || now.After(closes) {
			return nil, domain.ErrOutsideFeedbackWindow
		}
	}

	if f.applied.Contains(sessionID) {
		return nil, domain.ErrFeedbackAlreadySubmitted
	}
	if f.store != nil {
		existing, err := f.store.GetBySession(ctx, sessionID)
		if err != nil {
			return nil, fmt.Errorf("failed to check existing feedback: %w", err)
		}
		if existing != nil {
			return nil, domain.ErrFeedbackAlreadySubmitted
		}
	}

	adjustment, err := f.adjuster.Adjust(ctx, topCondition, outcome)
	if err != nil {
		return nil, err
	}
	f.applied.Add(sessionID, struct{}{})

	entry := newEntry(adjustment, notes)
	entry.SessionID = session.SessionID
	entry.PrimarySymptom = session.PrimarySymptom
	f.record(ctx, entry)

	return entry, nil
}

// AdjustFeedback applies an outcome directly to a condition, with no session binding.
func (f *FeedbackService) AdjustFeedback(ctx context.Context, topCondition string, outcome domain.Outcome) (*Adjustment, error) {
	adjustment, err := f.adjuster.Adjust(ctx, topCondition, outcome)
	if err != nil {
		return nil, err
	}

	f.record(ctx, newEntry(adjustment, ""))
	return adjustment, nil
}

// Priors returns a snapshot of the current base prior table.
func (f *FeedbackService) Priors() []domain.ConditionProbability {
	return f.adjuster.Priors()
}

// List returns logged outcome reports, newest first.
func (f *FeedbackService) List(ctx context.Context, limit, offset int) ([]*feedback.Entry, error) {
	if f.store == nil {
		return []*feedback.Entry{}, nil
	}
	entries, err := f.store.List(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list feedback: %w", err)
	}
	return entries, nil
}

func (f *FeedbackService) record(ctx context.Context, entry *feedback.Entry) {
	if f.store == nil {
		return
	}
	if err := f.store.Save(ctx, entry); err != nil {
		f.logger.WithFields(logrus.Fields{
			"session_id": entry.SessionID,
			"condition":  entry.TopCondition,
			"error":      err.Error(),
		}).Warn("Failed to log outcome feedback")
	}
}

func newEntry(adjustment *Adjustment, notes string) *feedback.Entry {
	return &feedback.Entry{
		TopCondition: adjustment.Condition,
		Outcome:      adjustment.Outcome,
		PriorBefore:  adjustment.Before,
		PriorAfter:   adjustment.After,
		Applied:      adjustment.Applied,
		Notes:        notes,
	}
}
