package service

import (
	"github.com/symptom-triage-mcp/internal/domain"
)

// ClassifyRisk maps a condition to its risk tier. Conditions missing from tiers are
// YELLOW, never GREEN.
func ClassifyRisk(condition string, tiers map[string]domain.RiskLevel) domain.RiskLevel {
	if tier, ok := tiers[condition]; ok && tier.IsValid() {
		return tier
	}
	return domain.RiskYellow
}

// TopCondition returns the condition with the strictly highest probability. On a tie
// the earliest entry wins.
func TopCondition(probs []domain.ConditionProbability) (string, bool) {
	if len(probs) == 0 {
		return "", false
	}

	best := probs[0]
	for _, p := range probs[1:] {
		if p.Probability > best.Probability {
			best = p
		}
	}
	return best.Condition, true
}
