// Package catalog holds the static interview data: question sets keyed by primary
// symptom, the likelihood table, risk tiers and the initial base priors. A Catalog is
// built once at process start and never mutated afterwards.
package catalog

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/symptom-triage-mcp/internal/domain"
)

// DefaultSymptomKey names the generic question set used for uncatalogued symptoms.
const DefaultSymptomKey = "default"

// Catalog is an immutable set of question sets plus the tables the engine consults.
type Catalog struct {
	questionSets map[string][]domain.Question
	symptomOrder []string
	likelihoods  domain.LikelihoodTable
	riskTiers    map[string]domain.RiskLevel
	basePriors   []domain.ConditionProbability
}

// Data is the raw, serializable content of a catalog.
type Data struct {
	QuestionSets map[string][]domain.Question  `yaml:"question_sets"`
	Likelihoods  domain.LikelihoodTable        `yaml:"likelihoods"`
	RiskTiers    map[string]domain.RiskLevel   `yaml:"risk_tiers"`
	BasePriors   []domain.ConditionProbability `yaml:"base_priors"`
}

// New validates data and builds an immutable catalog from a private copy of it.
func New(data Data) (*Catalog, error) {
	if err := validate(data); err != nil {
		return nil, err
	}

	c := &Catalog{
		questionSets: make(map[string][]domain.Question, len(data.QuestionSets)),
		likelihoods:  data.Likelihoods.Clone(),
		riskTiers:    make(map[string]domain.RiskLevel, len(data.RiskTiers)),
		basePriors:   append([]domain.ConditionProbability{}, data.BasePriors...),
	}
	if c.likelihoods == nil {
		c.likelihoods = domain.LikelihoodTable{}
	}

	for key, questions := range data.QuestionSets {
		normalized := NormalizeSymptom(key)
		c.questionSets[normalized] = append([]domain.Question{}, questions...)
		if normalized != DefaultSymptomKey {
			c.symptomOrder = append(c.symptomOrder, normalized)
		}
	}
	sort.Strings(c.symptomOrder)
	c.symptomOrder = append(c.symptomOrder, DefaultSymptomKey)

	for condition, tier := range data.RiskTiers {
		c.riskTiers[condition] = tier
	}

	return c, nil
}

// NormalizeSymptom case-folds and trims a primary symptom into a catalog key.
func NormalizeSymptom(symptom string) string {
	return strings.ToLower(strings.TrimSpace(symptom))
}

// QuestionsFor returns the ordered question set for a primary symptom, falling back
// to the default set when the symptom is not catalogued.
func (c *Catalog) QuestionsFor(symptom string) []domain.Question {
	questions, ok := c.questionSets[NormalizeSymptom(symptom)]
	if !ok {
		questions = c.questionSets[DefaultSymptomKey]
	}
	return append([]domain.Question{}, questions...)
}

// HasSymptom reports whether the symptom has its own question set.
func (c *Catalog) HasSymptom(symptom string) bool {
	key := NormalizeSymptom(symptom)
	if key == DefaultSymptomKey {
		return false
	}
	_, ok := c.questionSets[key]
	return ok
}

// Symptoms lists the catalogued symptom keys, excluding the default set.
func (c *Catalog) Symptoms() []string {
	return append([]string{}, c.symptomOrder[:len(c.symptomOrder)-1]...)
}

// FindByText scans every question set, in symptom order with the default set last,
// for a question with exactly this text.
func (c *Catalog) FindByText(text string) (domain.Question, bool) {
	for _, key := range c.symptomOrder {
		for _, q := range c.questionSets[key] {
			if q.Text == text {
				return q, true
			}
		}
	}
	return domain.Question{}, false
}

// FindInSet looks for a question by text within the set used for the given symptom.
func (c *Catalog) FindInSet(symptom, text string) (domain.Question, bool) {
	for _, q := range c.QuestionsFor(symptom) {
		if q.Text == text {
			return q, true
		}
	}
	return domain.Question{}, false
}

// FindByID returns the first question with the given id.
func (c *Catalog) FindByID(id string) (domain.Question, bool) {
	for _, key := range c.symptomOrder {
		for _, q := range c.questionSets[key] {
			if q.ID == id {
				return q, true
			}
		}
	}
	return domain.Question{}, false
}

// Likelihoods returns the shared likelihood table. Callers must treat it as read-only.
func (c *Catalog) Likelihoods() domain.LikelihoodTable {
	return c.likelihoods
}

// RiskTiers returns the shared condition risk table. Callers must treat it as read-only.
func (c *Catalog) RiskTiers() map[string]domain.RiskLevel {
	return c.riskTiers
}

// BasePriors returns a copy of the initial base prior distribution, in catalog order.
func (c *Catalog) BasePriors() []domain.ConditionProbability {
	return append([]domain.ConditionProbability{}, c.basePriors...)
}

func validate(data Data) error {
	if len(data.QuestionSets) == 0 {
		return fmt.Errorf("catalog has no question sets")
	}

	hasDefault := false
	keys := make(map[string]string, len(data.QuestionSets))
	for key, questions := range data.QuestionSets {
		normalized := NormalizeSymptom(key)
		if normalized == "" {
			return fmt.Errorf("question set has an empty symptom key")
		}
		if other, ok := keys[normalized]; ok {
			return fmt.Errorf("question sets %q and %q both normalize to %q", other, key, normalized)
		}
		keys[normalized] = key
		if normalized == DefaultSymptomKey {
			hasDefault = true
		}
		if len(questions) == 0 {
			return fmt.Errorf("question set %q is empty", key)
		}
		seen := make(map[string]bool, len(questions))
		for i, q := range questions {
			if q.ID == "" {
				return fmt.Errorf("question set %q: question %d has no id", key, i)
			}
			if strings.TrimSpace(q.Text) == "" {
				return fmt.Errorf("question set %q: question %s has no text", key, q.ID)
			}
			if seen[q.ID] {
				return fmt.Errorf("question set %q: duplicate question id %s", key, q.ID)
			}
			seen[q.ID] = true
		}
	}
	if !hasDefault {
		return fmt.Errorf("catalog is missing the %q question set", DefaultSymptomKey)
	}

	for questionID, byCondition := range data.Likelihoods {
		for condition, v := range byCondition {
			if math.IsNaN(v) || v < 0 || v > 1 {
				return fmt.Errorf("likelihood %s/%s out of range: %v", questionID, condition, v)
			}
		}
	}

	for condition, tier := range data.RiskTiers {
		if !tier.IsValid() {
			return fmt.Errorf("risk tier for %q is invalid: %q", condition, tier)
		}
	}

	if len(data.BasePriors) == 0 {
		return fmt.Errorf("catalog has no base priors")
	}
	sum := 0.0
	seen := make(map[string]bool, len(data.BasePriors))
	for _, p := range data.BasePriors {
		if p.Condition == "" {
			return fmt.Errorf("base prior with empty condition")
		}
		if seen[p.Condition] {
			return fmt.Errorf("duplicate base prior for %q", p.Condition)
		}
		seen[p.Condition] = true
		if math.IsNaN(p.Probability) || p.Probability < 0 || p.Probability > 1 {
			return fmt.Errorf("base prior for %q out of range: %v", p.Condition, p.Probability)
		}
		sum += p.Probability
	}
	if math.Abs(sum-1) > 1e-6 {
		return fmt.Errorf("base priors sum to %v, want 1", sum)
	}

	return nil
}
