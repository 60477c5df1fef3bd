package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnswerIsValid(t *testing.T) {
	assert.True(t, AnswerYes.IsValid())
	assert.True(t, AnswerNo.IsValid())
	assert.False(t, Answer("yes").IsValid())
	assert.False(t, Answer("").IsValid())
}

func TestRiskLevelIsValid(t *testing.T) {
	tests := []struct {
		value    RiskLevel
		expected bool
	}{
		{RiskGreen, true},
		{RiskYellow, true},
		{RiskRed, true},
		{RiskLevel("ORANGE"), false},
	}

	for _, tt := range tests {
		t.Run(string(tt.value), func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.value.IsValid())
		})
	}
}

func TestParseOutcome(t *testing.T) {
	tests := []struct {
		input    string
		expected Outcome
		wantErr  bool
	}{
		{"Better", OutcomeBetter, false},
		{"Same", OutcomeSame, false},
		{"Worse", OutcomeWorse, false},
		{"Side Effects", OutcomeSideEffects, false},
		{"SideEffects", OutcomeSideEffects, false},
		{"Fine", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseOutcome(tt.input)
			if tt.wantErr {
				assert.True(t, errors.Is(err, ErrInvalidOutcome))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestLikelihoodTable_YesLikelihood(t *testing.T) {
	table := LikelihoodTable{
		"q1": {"Stress": 0.6},
	}

	assert.Equal(t, 0.6, table.YesLikelihood("q1", "Stress"))
	assert.Equal(t, DefaultYesLikelihood, table.YesLikelihood("q1", "Allergies"))
	assert.Equal(t, DefaultYesLikelihood, table.YesLikelihood("missing", "Stress"))

	var empty LikelihoodTable
	assert.Equal(t, DefaultYesLikelihood, empty.YesLikelihood("q1", "Stress"))
}

func TestLikelihoodTable_CloneIsDeep(t *testing.T) {
	table := LikelihoodTable{"q1": {"Stress": 0.6}}
	clone := table.Clone()
	clone["q1"]["Stress"] = 0.9

	assert.Equal(t, 0.6, table["q1"]["Stress"])
}

func TestTriageSession_CloneIsDeep(t *testing.T) {
	now := time.Now()
	session := &TriageSession{
		SessionID:              "s-1",
		PrimarySymptom:         "headache",
		QuestionHistory:        []string{"Q1"},
		Answers:                []Answer{AnswerNo},
		RedFlag:                &RedFlag{Reason: "r"},
		CurrentQuestion:        &Question{ID: "h2", Text: "Q2"},
		ConditionProbabilities: []ConditionProbability{{Condition: "Stress", Probability: 1}},
		HighestRiskLevel:       RiskGreen.Ptr(),
		CompletedAt:            &now,
		BasePriors:             []ConditionProbability{{Condition: "Stress", Probability: 1}},
	}

	clone := session.Clone()
	clone.QuestionHistory[0] = "changed"
	clone.Answers[0] = AnswerYes
	clone.RedFlag.Reason = "changed"
	clone.CurrentQuestion.Text = "changed"
	clone.ConditionProbabilities[0].Probability = 0
	clone.BasePriors[0].Probability = 0
	*clone.HighestRiskLevel = RiskRed

	assert.Equal(t, "Q1", session.QuestionHistory[0])
	assert.Equal(t, AnswerNo, session.Answers[0])
	assert.Equal(t, "r", session.RedFlag.Reason)
	assert.Equal(t, "Q2", session.CurrentQuestion.Text)
	assert.Equal(t, 1.0, session.ConditionProbabilities[0].Probability)
	assert.Equal(t, 1.0, session.BasePriors[0].Probability)
	assert.Equal(t, RiskGreen, *session.HighestRiskLevel)
}

func TestTriageSession_RecordAnswer(t *testing.T) {
	session := NewTriageSession("fever")

	err := session.RecordAnswer(AnswerYes)
	assert.ErrorIs(t, err, ErrNoCurrentQuestion)

	session.CurrentQuestion = &Question{ID: "fe1", Text: "Is your temperature high?"}
	assert.ErrorIs(t, session.RecordAnswer(Answer("Maybe")), ErrInvalidAnswer)

	require.NoError(t, session.RecordAnswer(AnswerNo))
	assert.Equal(t, []string{"Is your temperature high?"}, session.QuestionHistory)
	assert.Equal(t, []Answer{AnswerNo}, session.Answers)

	text, answer, ok := session.LastExchange()
	assert.True(t, ok)
	assert.Equal(t, "Is your temperature high?", text)
	assert.Equal(t, AnswerNo, answer)
	assert.True(t, session.HasAsked("Is your temperature high?"))

	session.IsCompleted = true
	assert.ErrorIs(t, session.RecordAnswer(AnswerNo), ErrSessionCompleted)
}
