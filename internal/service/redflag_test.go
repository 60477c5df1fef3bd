package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/symptom-triage-mcp/internal/domain"
)

func TestDetectRedFlag(t *testing.T) {
	redFlag := &domain.Question{ID: "st2", Text: "Are you drooling?", IsRedFlag: true}
	ordinary := &domain.Question{ID: "st5", Text: "Do you also have a rash?"}
	yes := domain.AnswerYes
	no := domain.AnswerNo

	tests := []struct {
		name     string
		question *domain.Question
		answer   *domain.Answer
		want     bool
	}{
		{"red flag answered yes", redFlag, &yes, true},
		{"red flag answered no", redFlag, &no, false},
		{"ordinary answered yes", ordinary, &yes, false},
		{"ordinary answered no", ordinary, &no, false},
		{"no question", nil, &yes, false},
		{"no answer", redFlag, nil, false},
		{"nothing", nil, nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flag := DetectRedFlag(tt.question, tt.answer)
			assert.Equal(t, tt.want, flag != nil)
		})
	}
}

func TestDetectRedFlag_ReasonQuotesQuestion(t *testing.T) {
	yes := domain.AnswerYes
	q := &domain.Question{ID: "fe1", Text: "Is your temperature over 103°F (39.4°C)?", IsRedFlag: true}

	flag := DetectRedFlag(q, &yes)
	require.NotNil(t, flag)
	assert.Equal(t, `The user answered "Yes" to the question: "Is your temperature over 103°F (39.4°C)?"`, flag.Reason)
}
