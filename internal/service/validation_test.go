package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/symptom-triage-mcp/internal/domain"
)

func TestSessionValidator_AcceptsEngineOutput(t *testing.T) {
	v := NewSessionValidator()
	e := newTestEngine(t, nil)

	s := e.Initialize("fever")
	assert.NoError(t, v.Validate(s))
	assert.NoError(t, v.Validate(domain.NewTriageSession("fever")))

	s = answer(t, e, s, domain.AnswerYes)
	assert.NoError(t, v.Validate(s))
}

func TestSessionValidator_Rejects(t *testing.T) {
	e := newTestEngine(t, nil)
	base := e.Initialize("fever")

	tests := []struct {
		name   string
		mutate func(s *domain.TriageSession)
		field  string
	}{
		{
			name: "misaligned history",
			mutate: func(s *domain.TriageSession) {
				s.QuestionHistory = append(s.QuestionHistory, s.CurrentQuestion.Text)
			},
			field: "answers",
		},
		{
			name: "unknown answer",
			mutate: func(s *domain.TriageSession) {
				s.QuestionHistory = append(s.QuestionHistory, s.CurrentQuestion.Text)
				s.Answers = append(s.Answers, domain.Answer("Maybe"))
			},
			field: "Answers",
		},
		{
			name: "probabilities do not sum to one",
			mutate: func(s *domain.TriageSession) {
				s.ConditionProbabilities[0].Probability = 0.9
			},
			field: "condition_probabilities",
		},
		{
			name: "probability out of range",
			mutate: func(s *domain.TriageSession) {
				s.ConditionProbabilities[0].Probability = -0.1
			},
			field: "Probability",
		},
		{
			name: "duplicate condition",
			mutate: func(s *domain.TriageSession) {
				s.ConditionProbabilities[1].Condition = s.ConditionProbabilities[0].Condition
			},
			field: "condition_probabilities",
		},
		{
			name: "invalid risk level",
			mutate: func(s *domain.TriageSession) {
				s.HighestRiskLevel = domain.RiskLevel("BLUE").Ptr()
			},
			field: "HighestRiskLevel",
		},
		{
			name: "red flag on open session",
			mutate: func(s *domain.TriageSession) {
				s.RedFlag = &domain.RedFlag{Reason: "x"}
			},
			field: "red_flag",
		},
		{
			name: "likelihood out of range",
			mutate: func(s *domain.TriageSession) {
				s.Likelihoods = domain.LikelihoodTable{"fe4": {"A": 2}}
			},
			field: "likelihoods",
		},
		{
			name: "history over budget",
			mutate: func(s *domain.TriageSession) {
				for i := 0; i <= MaxQuestions; i++ {
					s.QuestionHistory = append(s.QuestionHistory, "q")
					s.Answers = append(s.Answers, domain.AnswerNo)
				}
			},
			field: "question_history",
		},
	}

	v := NewSessionValidator()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := base.Clone()
			tt.mutate(s)

			err := v.Validate(s)
			require.Error(t, err)
			var verr *domain.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Contains(t, verr.Field, tt.field)
		})
	}
}

func TestSessionValidator_Nil(t *testing.T) {
	assert.Error(t, NewSessionValidator().Validate(nil))
}
