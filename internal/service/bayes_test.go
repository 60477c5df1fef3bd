package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/symptom-triage-mcp/internal/catalog"
	"github.com/symptom-triage-mcp/internal/domain"
)

func defaultPrior() domain.Distribution {
	return domain.ToDistribution(catalog.Default().BasePriors())
}

func distributionSum(d domain.Distribution) float64 {
	total := 0.0
	for _, v := range d {
		total += v
	}
	return total
}

func TestUpdatePosterior_Normalizes(t *testing.T) {
	table := catalog.Default().Likelihoods()

	for _, questionID := range []string{"h1", "h4", "fe4", "pf3", "st4", "g4", "unmodelled"} {
		for _, a := range []domain.Answer{domain.AnswerYes, domain.AnswerNo} {
			posterior := UpdatePosterior(defaultPrior(), questionID, a, table)
			assert.InDelta(t, 1.0, distributionSum(posterior), 1e-9, "%s/%s", questionID, a)
			assert.Len(t, posterior, 4)
		}
	}
}

func TestUpdatePosterior_KnownValues(t *testing.T) {
	table := catalog.Default().Likelihoods()

	// fe4 Yes: Viral .8*.4=.32, Bacterial .6*.2=.12, Allergies .1*.25=.025, Stress .1*.15=.015
	posterior := UpdatePosterior(defaultPrior(), "fe4", domain.AnswerYes, table)
	assert.InDelta(t, 0.32/0.48, posterior[catalog.ConditionViralInfection], 1e-12)
	assert.InDelta(t, 0.12/0.48, posterior[catalog.ConditionBacterialInfection], 1e-12)
	assert.InDelta(t, 0.025/0.48, posterior[catalog.ConditionAllergies], 1e-12)
	assert.InDelta(t, 0.015/0.48, posterior[catalog.ConditionStress], 1e-12)
}

func TestUpdatePosterior_UnmodelledQuestionIsNeutral(t *testing.T) {
	prior := defaultPrior()
	posterior := UpdatePosterior(prior, "h1", domain.AnswerYes, catalog.Default().Likelihoods())

	for c, p := range prior {
		assert.InDelta(t, p, posterior[c], 1e-12)
	}
}

func TestUpdatePosterior_ZeroSumReturnsPrior(t *testing.T) {
	prior := domain.Distribution{"A": 1, "B": 0}
	table := domain.LikelihoodTable{"q": {"A": 1.0}}

	posterior := UpdatePosterior(prior, "q", domain.AnswerNo, table)
	assert.Equal(t, prior, posterior)

	posterior["A"] = 0.5
	assert.Equal(t, 1.0, prior["A"], "returned prior must be a copy")
}

func TestUpdatePosterior_DoesNotMutatePrior(t *testing.T) {
	prior := defaultPrior()
	before := prior.Clone()

	UpdatePosterior(prior, "pf3", domain.AnswerYes, catalog.Default().Likelihoods())
	assert.Equal(t, before, prior)
}

func TestUpdatePosterior_OrderInvariant(t *testing.T) {
	table := catalog.Default().Likelihoods()
	priors := catalog.Default().BasePriors()

	forward := domain.Distribution{}
	for _, p := range priors {
		forward[p.Condition] = p.Probability
	}
	backward := domain.Distribution{}
	for i := len(priors) - 1; i >= 0; i-- {
		backward[priors[i].Condition] = priors[i].Probability
	}

	assert.Equal(t,
		UpdatePosterior(forward, "st3", domain.AnswerYes, table),
		UpdatePosterior(backward, "st3", domain.AnswerYes, table))

	reversed := make([]domain.ConditionProbability, 0, len(priors))
	for i := len(priors) - 1; i >= 0; i-- {
		reversed = append(reversed, priors[i])
	}
	a := UpdateProbabilities(priors, "g4", domain.AnswerNo, table)
	b := UpdateProbabilities(reversed, "g4", domain.AnswerNo, table)
	for _, p := range a {
		assert.Equal(t, p.Probability, probabilityOf(b, p.Condition), p.Condition)
	}
}

func TestUpdatePosterior_DirectionalCorrectness(t *testing.T) {
	table := catalog.Default().Likelihoods()
	prior := defaultPrior()

	for questionID := range table {
		posterior := UpdatePosterior(prior, questionID, domain.AnswerYes, table)
		for c := range prior {
			for d := range prior {
				if table.YesLikelihood(questionID, c) <= table.YesLikelihood(questionID, d) {
					continue
				}
				before := prior[c] / prior[d]
				after := posterior[c] / posterior[d]
				assert.Greater(t, after, before, "%s: P(%s)/P(%s)", questionID, c, d)
			}
		}
	}
}

func TestUpdateProbabilities_KeepsOrder(t *testing.T) {
	priors := catalog.Default().BasePriors()
	updated := UpdateProbabilities(priors, "pf3", domain.AnswerYes, catalog.Default().Likelihoods())

	require.Len(t, updated, len(priors))
	for i := range priors {
		assert.Equal(t, priors[i].Condition, updated[i].Condition)
	}
	assert.InDelta(t, 1.0, sumOf(updated), 1e-9)
	top, _ := TopCondition(updated)
	assert.Equal(t, catalog.ConditionAllergies, top)
}
