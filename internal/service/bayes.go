package service

import (
	"math"
	"sort"

	"github.com/symptom-triage-mcp/internal/domain"
)

// UpdatePosterior applies one answer as independent evidence (naive Bayes) to prior.
//
// Each condition's prior is scaled by P(answer | condition), taken from table with the
// 0.1 weak-evidence default, and the result is normalized. When every scaled value is
// zero the prior is returned unchanged. The prior is never modified.
func UpdatePosterior(prior domain.Distribution, questionID string, answer domain.Answer, table domain.LikelihoodTable) domain.Distribution {
	conditions := make([]string, 0, len(prior))
	for c := range prior {
		conditions = append(conditions, c)
	}
	sort.Strings(conditions)

	posterior := make(domain.Distribution, len(prior))
	sum := 0.0
	for _, c := range conditions {
		likelihood := table.YesLikelihood(questionID, c)
		if answer != domain.AnswerYes {
			likelihood = 1 - likelihood
		}
		posterior[c] = likelihood * prior[c]
		sum += posterior[c]
	}

	if sum == 0 || math.IsNaN(sum) || math.IsInf(sum, 0) {
		return prior.Clone()
	}

	for _, c := range conditions {
		posterior[c] /= sum
	}
	return posterior
}

// UpdateProbabilities is UpdatePosterior over a session's ordered probability list. The
// returned list keeps the input order.
func UpdateProbabilities(probs []domain.ConditionProbability, questionID string, answer domain.Answer, table domain.LikelihoodTable) []domain.ConditionProbability {
	posterior := UpdatePosterior(domain.ToDistribution(probs), questionID, answer, table)

	out := make([]domain.ConditionProbability, 0, len(probs))
	for _, p := range probs {
		out = append(out, domain.ConditionProbability{
			Condition:   p.Condition,
			Probability: posterior[p.Condition],
		})
	}
	return out
}
