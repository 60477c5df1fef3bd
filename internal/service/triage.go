package service

import (
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/symptom-triage-mcp/internal/catalog"
	"github.com/symptom-triage-mcp/internal/domain"
)

// MaxQuestions is the interview budget. A session never asks more questions than this.
const MaxQuestions = 5

// PriorSource supplies a private snapshot of the process-wide base prior table.
type PriorSource interface {
	Snapshot() []domain.ConditionProbability
}

// EngineOption configures a TriageEngine.
type EngineOption func(*TriageEngine)

// WithClock overrides the time source used for completion timestamps.
func WithClock(now func() time.Time) EngineOption {
	return func(e *TriageEngine) {
		e.now = now
	}
}

// WithIDGenerator overrides how new session ids are minted.
func WithIDGenerator(newID func() string) EngineOption {
	return func(e *TriageEngine) {
		e.newID = newID
	}
}

// TriageEngine is the interview state machine. It holds no per-session state: every
// call works on a copy of the session it is given and returns the next state.
type TriageEngine struct {
	catalog *catalog.Catalog
	priors  PriorSource
	logger  *logrus.Logger
	now     func() time.Time
	newID   func() string
}

// NewTriageEngine creates an engine over an immutable catalog. When priors is nil the
// catalog's initial base priors are used for every session.
func NewTriageEngine(cat *catalog.Catalog, priors PriorSource, logger *logrus.Logger, opts ...EngineOption) *TriageEngine {
	e := &TriageEngine{
		catalog: cat,
		priors:  priors,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
		newID:   func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Catalog returns the catalog the engine interviews from.
func (e *TriageEngine) Catalog() *catalog.Catalog {
	return e.catalog
}

// Initialize starts an interview for primarySymptom and returns the session holding
// the first question.
func (e *TriageEngine) Initialize(primarySymptom string) *domain.TriageSession {
	return e.Step(domain.NewTriageSession(primarySymptom))
}

// Step advances a session by one round. Before calling, the caller appends the
// answered question text and its answer in lockstep. The input session is not
// modified. Completed sessions are returned unchanged; callers must not step a
// session after a red flag.
func (e *TriageEngine) Step(session *domain.TriageSession) *domain.TriageSession {
	s := session.Clone()
	if s == nil {
		s = domain.NewTriageSession("")
	}
	if s.IsCompleted {
		return s
	}

	if len(s.QuestionHistory) == 0 {
		e.initialize(s)
	} else if e.applyLastAnswer(s) {
		return s
	}

	if len(s.QuestionHistory) >= MaxQuestions {
		s.IsCompleted = true
		s.CurrentQuestion = nil
	}

	next, found := e.nextQuestion(s)
	switch {
	case !found:
		s.IsCompleted = true
		s.CurrentQuestion = nil
	case !s.IsCompleted:
		s.CurrentQuestion = &next
	}

	if s.IsCompleted && s.RedFlag == nil {
		e.finalize(s)
	}

	return s
}

func (e *TriageEngine) initialize(s *domain.TriageSession) {
	if s.SessionID == "" {
		s.SessionID = e.newID()
	}
	if len(s.BasePriors) == 0 {
		s.BasePriors = e.basePriors()
	}
	s.ConditionProbabilities = append([]domain.ConditionProbability{}, s.BasePriors...)

	e.logger.WithFields(logrus.Fields{
		"session_id":      s.SessionID,
		"primary_symptom": s.PrimarySymptom,
		"catalogued":      e.catalog.HasSymptom(s.PrimarySymptom),
	}).Debug("Initialized triage session")
}

func (e *TriageEngine) basePriors() []domain.ConditionProbability {
	if e.priors != nil {
		if snapshot := e.priors.Snapshot(); len(snapshot) > 0 {
			return snapshot
		}
	}
	return e.catalog.BasePriors()
}

// applyLastAnswer runs the red-flag check and belief update for the previous round.
// It reports whether the session terminated on a red flag.
func (e *TriageEngine) applyLastAnswer(s *domain.TriageSession) bool {
	text, answer, ok := s.LastExchange()
	if !ok {
		e.logger.WithField("session_id", s.SessionID).Warn("Question history and answers are misaligned")
		return false
	}

	question, resolved := e.resolveQuestion(s, text)
	if !resolved {
		e.logger.WithFields(logrus.Fields{
			"session_id": s.SessionID,
			"question":   text,
		}).Warn("Could not resolve last question, skipping belief update")
		return false
	}

	if flag := DetectRedFlag(&question, &answer); flag != nil {
		now := e.now()
		s.IsCompleted = true
		s.RedFlag = flag
		s.CurrentQuestion = nil
		s.HighestRiskLevel = domain.RiskRed.Ptr()
		s.CompletedAt = &now

		e.logger.WithFields(logrus.Fields{
			"session_id":  s.SessionID,
			"question_id": question.ID,
		}).Info("Red flag raised, interview terminated")
		return true
	}

	likelihoods := s.Likelihoods
	if likelihoods == nil {
		likelihoods = e.catalog.Likelihoods()
	}
	s.ConditionProbabilities = UpdateProbabilities(s.ConditionProbabilities, question.ID, answer, likelihoods)
	return false
}

// resolveQuestion maps answered text back to a catalog question. The live question's
// id is preferred; text lookups cover callers that do not echo currentQuestion back.
func (e *TriageEngine) resolveQuestion(s *domain.TriageSession, text string) (domain.Question, bool) {
	if s.CurrentQuestion != nil && s.CurrentQuestion.Text == text {
		if q, ok := e.catalog.FindByID(s.CurrentQuestion.ID); ok && q.Text == text {
			return q, true
		}
	}
	if q, ok := e.catalog.FindInSet(s.PrimarySymptom, text); ok {
		return q, true
	}
	return e.catalog.FindByText(text)
}

func (e *TriageEngine) nextQuestion(s *domain.TriageSession) (domain.Question, bool) {
	for _, q := range e.catalog.QuestionsFor(s.PrimarySymptom) {
		if !s.HasAsked(q.Text) {
			return q, true
		}
	}
	return domain.Question{}, false
}

func (e *TriageEngine) finalize(s *domain.TriageSession) {
	if s.CompletedAt == nil {
		now := e.now()
		s.CompletedAt = &now
	}

	top, ok := TopCondition(s.ConditionProbabilities)
	if ok {
		s.HighestRiskLevel = ClassifyRisk(top, e.catalog.RiskTiers()).Ptr()
	}

	e.logger.WithFields(logrus.Fields{
		"session_id":    s.SessionID,
		"questions":     len(s.QuestionHistory),
		"top_condition": top,
	}).Info("Triage session completed")
}
