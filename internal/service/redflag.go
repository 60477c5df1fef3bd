package service

import (
	"fmt"

	"github.com/symptom-triage-mcp/internal/domain"
)

// DetectRedFlag reports an emergency when the previous round's question is marked
// red-flag and was answered Yes. The reason quotes the question text verbatim.
func DetectRedFlag(lastQuestion *domain.Question, lastAnswer *domain.Answer) *domain.RedFlag {
	if lastQuestion == nil || lastAnswer == nil {
		return nil
	}
	if !lastQuestion.IsRedFlag || *lastAnswer != domain.AnswerYes {
		return nil
	}
	return &domain.RedFlag{
		Reason: fmt.Sprintf(`The user answered "%s" to the question: "%s"`, domain.AnswerYes, lastQuestion.Text),
	}
}
