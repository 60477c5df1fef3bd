package service

import (
	"errors"
	"fmt"
	"math"

	"github.com/go-playground/validator/v10"

	"github.com/symptom-triage-mcp/internal/domain"
)

// probabilityTolerance is the allowed drift of a distribution's sum from 1.
const probabilityTolerance = 1e-6

// SessionValidator checks the shape of a triage session round-tripped by a caller.
type SessionValidator struct {
	validate *validator.Validate
}

// NewSessionValidator creates a validator for triage sessions.
func NewSessionValidator() *SessionValidator {
	return &SessionValidator{validate: validator.New()}
}

// Validate returns a *domain.ValidationError describing the first problem found.
func (v *SessionValidator) Validate(s *domain.TriageSession) error {
	if s == nil {
		return domain.NewValidationError("session", "session is required", nil)
	}

	if err := v.validate.Struct(s); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			return domain.NewValidationError(fe.Namespace(), fmt.Sprintf("failed %q constraint", fe.Tag()), fe.Value())
		}
		return domain.NewValidationError("session", err.Error(), nil)
	}

	if len(s.QuestionHistory) != len(s.Answers) {
		return domain.NewValidationError("answers",
			fmt.Sprintf("%d answers for %d asked questions", len(s.Answers), len(s.QuestionHistory)),
			len(s.Answers))
	}

	if len(s.QuestionHistory) > MaxQuestions {
		return domain.NewValidationError("question_history", "question budget exceeded", len(s.QuestionHistory))
	}

	if err := validateDistribution("condition_probabilities", s.ConditionProbabilities); err != nil {
		return err
	}
	if err := validateDistribution("base_priors", s.BasePriors); err != nil {
		return err
	}

	for questionID, byCondition := range s.Likelihoods {
		for condition, p := range byCondition {
			if math.IsNaN(p) || p < 0 || p > 1 {
				return domain.NewValidationError("likelihoods",
					fmt.Sprintf("likelihood %s/%s out of range", questionID, condition), p)
			}
		}
	}

	if s.RedFlag != nil && !s.IsCompleted {
		return domain.NewValidationError("red_flag", "red flag set on an open session", s.RedFlag.Reason)
	}

	return nil
}

func validateDistribution(field string, probs []domain.ConditionProbability) error {
	if len(probs) == 0 {
		return nil
	}

	seen := make(map[string]bool, len(probs))
	sum := 0.0
	for _, p := range probs {
		if seen[p.Condition] {
			return domain.NewValidationError(field, "duplicate condition", p.Condition)
		}
		seen[p.Condition] = true
		if math.IsNaN(p.Probability) {
			return domain.NewValidationError(field, "probability is NaN", p.Condition)
		}
		sum += p.Probability
	}

	if math.Abs(sum-1) > probabilityTolerance {
		return domain.NewValidationError(field, "probabilities do not sum to 1", sum)
	}
	return nil
}
