// Package domain contains the core entities shared by the triage engine and its
// collaborators: questions, answers, condition probabilities, risk tiers and the
// caller-held triage session.
package domain

import (
	"errors"
	"time"
)

// Answer is a user's reply to a triage question.
type Answer string

const (
	AnswerYes Answer = "Yes"
	AnswerNo  Answer = "No"
)

// IsValid reports whether the answer is one of Yes or No.
func (a Answer) IsValid() bool {
	return a == AnswerYes || a == AnswerNo
}

// RiskLevel is the coarse severity tier derived from the most probable condition.
type RiskLevel string

const (
	RiskGreen  RiskLevel = "GREEN"
	RiskYellow RiskLevel = "YELLOW"
	RiskRed    RiskLevel = "RED"
)

// IsValid reports whether the risk level is a known tier.
func (r RiskLevel) IsValid() bool {
	switch r {
	case RiskGreen, RiskYellow, RiskRed:
		return true
	default:
		return false
	}
}

// Ptr returns a pointer to a copy of r.
func (r RiskLevel) Ptr() *RiskLevel {
	return &r
}

// Outcome is the delayed, self-reported result of following a completed triage.
type Outcome string

const (
	OutcomeBetter      Outcome = "Better"
	OutcomeSame        Outcome = "Same"
	OutcomeWorse       Outcome = "Worse"
	OutcomeSideEffects Outcome = "Side Effects"
)

// IsValid reports whether the outcome is one of the four recognised signals.
func (o Outcome) IsValid() bool {
	switch o {
	case OutcomeBetter, OutcomeSame, OutcomeWorse, OutcomeSideEffects:
		return true
	default:
		return false
	}
}

// ParseOutcome accepts the canonical outcome names plus the compact "SideEffects" spelling.
func ParseOutcome(s string) (Outcome, error) {
	switch s {
	case "SideEffects", "side_effects":
		return OutcomeSideEffects, nil
	}
	o := Outcome(s)
	if !o.IsValid() {
		return "", ErrInvalidOutcome
	}
	return o, nil
}

// Question is a single catalog entry. Questions are immutable and catalog-owned.
type Question struct {
	ID        string `json:"id" yaml:"id" validate:"required"`
	Text      string `json:"text" yaml:"text" validate:"required"`
	IsRedFlag bool   `json:"is_red_flag" yaml:"red_flag"`
}

// RedFlag records why an interview was terminated as an emergency.
type RedFlag struct {
	Reason string `json:"reason" validate:"required"`
}

// ConditionProbability is one entry of a session's ordered belief distribution.
type ConditionProbability struct {
	Condition   string  `json:"condition" yaml:"condition" validate:"required"`
	Probability float64 `json:"probability" yaml:"probability" validate:"gte=0,lte=1"`
}

// Distribution maps a condition name to its probability.
type Distribution map[string]float64

// Clone returns an independent copy of the distribution.
func (d Distribution) Clone() Distribution {
	out := make(Distribution, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

// LikelihoodTable maps question id to condition to P(yes | condition).
type LikelihoodTable map[string]map[string]float64

// DefaultYesLikelihood is used when a question/condition pair has no entry. It is a
// weak-evidence floor rather than zero so one unmodelled question cannot annihilate a
// condition.
const DefaultYesLikelihood = 0.1

// YesLikelihood returns P(yes | condition) for the question, or DefaultYesLikelihood.
func (t LikelihoodTable) YesLikelihood(questionID, condition string) float64 {
	if byCondition, ok := t[questionID]; ok {
		if v, ok := byCondition[condition]; ok {
			return v
		}
	}
	return DefaultYesLikelihood
}

// Clone returns a deep copy of the table.
func (t LikelihoodTable) Clone() LikelihoodTable {
	if t == nil {
		return nil
	}
	out := make(LikelihoodTable, len(t))
	for q, byCondition := range t {
		inner := make(map[string]float64, len(byCondition))
		for c, v := range byCondition {
			inner[c] = v
		}
		out[q] = inner
	}
	return out
}

// TriageSession is the caller-held interview state. It is round-tripped through the
// state machine once per answer.
//
// QuestionHistory and Answers always have equal length. Once IsCompleted is true the
// session is terminal.
type TriageSession struct {
	SessionID              string                 `json:"session_id"`
	PrimarySymptom         string                 `json:"primary_symptom"`
	QuestionHistory        []string               `json:"question_history" validate:"dive,required"`
	Answers                []Answer               `json:"answers" validate:"dive,oneof=Yes No"`
	IsCompleted            bool                   `json:"is_completed"`
	RedFlag                *RedFlag               `json:"red_flag"`
	CurrentQuestion        *Question              `json:"current_question"`
	ConditionProbabilities []ConditionProbability `json:"condition_probabilities" validate:"dive"`
	HighestRiskLevel       *RiskLevel             `json:"highest_risk_level" validate:"omitempty,oneof=GREEN YELLOW RED"`
	CompletedAt            *time.Time             `json:"completed_at"`

	// BasePriors is the session's private copy of the base prior table, taken at
	// initialization. A caller may pre-populate it to override the process-wide table.
	BasePriors []ConditionProbability `json:"base_priors,omitempty" validate:"dive"`
	// Likelihoods optionally overrides the catalog likelihood table for this session.
	Likelihoods LikelihoodTable `json:"likelihoods,omitempty"`
}

// NewTriageSession returns an empty session for the given primary symptom.
func NewTriageSession(primarySymptom string) *TriageSession {
	return &TriageSession{
		PrimarySymptom:         primarySymptom,
		QuestionHistory:        []string{},
		Answers:                []Answer{},
		ConditionProbabilities: []ConditionProbability{},
	}
}

// Clone returns a deep copy of the session so the engine never aliases caller state.
func (s *TriageSession) Clone() *TriageSession {
	if s == nil {
		return nil
	}
	out := *s
	out.QuestionHistory = append([]string{}, s.QuestionHistory...)
	out.Answers = append([]Answer{}, s.Answers...)
	out.ConditionProbabilities = append([]ConditionProbability{}, s.ConditionProbabilities...)
	if s.BasePriors != nil {
		out.BasePriors = append([]ConditionProbability{}, s.BasePriors...)
	}
	out.Likelihoods = s.Likelihoods.Clone()
	if s.RedFlag != nil {
		rf := *s.RedFlag
		out.RedFlag = &rf
	}
	if s.CurrentQuestion != nil {
		q := *s.CurrentQuestion
		out.CurrentQuestion = &q
	}
	if s.HighestRiskLevel != nil {
		out.HighestRiskLevel = s.HighestRiskLevel.Ptr()
	}
	if s.CompletedAt != nil {
		t := *s.CompletedAt
		out.CompletedAt = &t
	}
	return &out
}

// LastExchange returns the most recently answered question text and its answer.
func (s *TriageSession) LastExchange() (string, Answer, bool) {
	n := len(s.QuestionHistory)
	if n == 0 || len(s.Answers) < n {
		return "", "", false
	}
	return s.QuestionHistory[n-1], s.Answers[n-1], true
}

// HasAsked reports whether the question text already appears in the history.
func (s *TriageSession) HasAsked(text string) bool {
	for _, asked := range s.QuestionHistory {
		if asked == text {
			return true
		}
	}
	return false
}

// RecordAnswer appends the current question and the answer in lockstep. It is the
// caller-side half of the step contract.
func (s *TriageSession) RecordAnswer(answer Answer) error {
	if s.IsCompleted {
		return ErrSessionCompleted
	}
	if s.CurrentQuestion == nil {
		return ErrNoCurrentQuestion
	}
	if !answer.IsValid() {
		return ErrInvalidAnswer
	}
	s.QuestionHistory = append(s.QuestionHistory, s.CurrentQuestion.Text)
	s.Answers = append(s.Answers, answer)
	return nil
}

// ToDistribution converts an ordered probability list into a map.
func ToDistribution(probs []ConditionProbability) Distribution {
	out := make(Distribution, len(probs))
	for _, p := range probs {
		out[p.Condition] = p.Probability
	}
	return out
}

// Validation errors for session integrity
var (
	ErrNotFound                 = errors.New("not found")
	ErrSessionCompleted         = errors.New("triage session already completed")
	ErrNoCurrentQuestion        = errors.New("triage session has no current question")
	ErrInvalidAnswer            = errors.New("answer must be Yes or No")
	ErrInvalidOutcome           = errors.New("invalid feedback outcome")
	ErrOutsideFeedbackWindow    = errors.New("feedback submitted outside the allowed window")
	ErrNotEligibleForFeedback   = errors.New("session is not eligible for outcome feedback")
	ErrFeedbackAlreadySubmitted = errors.New("feedback already submitted for session")
)
