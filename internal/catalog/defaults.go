package catalog

import (
	"github.com/symptom-triage-mcp/internal/domain"
)

// Condition names used by the built-in tables.
const (
	ConditionViralInfection     = "Viral Infection"
	ConditionBacterialInfection = "Bacterial Infection"
	ConditionAllergies          = "Allergies"
	ConditionStress             = "Stress"
)

// DefaultData returns a fresh copy of the built-in catalog content.
func DefaultData() Data {
	return Data{
		QuestionSets: map[string][]domain.Question{
			"headache": {
				{ID: "h1", Text: "Is your headache severe and sudden, like a thunderclap?", IsRedFlag: true},
				{ID: "h2", Text: "Are you also experiencing a stiff neck, fever, or confusion?", IsRedFlag: true},
				{ID: "h3", Text: "Have you recently had a head injury?", IsRedFlag: true},
				{ID: "h4", Text: "Is the headache accompanied by visual disturbances?"},
				{ID: "h5", Text: "Does the headache feel worse when you change position?"},
			},
			"fatigue": {
				{ID: "f1", Text: "Are you feeling so tired that you cannot manage your daily activities?", IsRedFlag: true},
				{ID: "f2", Text: "Are you also experiencing unexplained weight loss?", IsRedFlag: true},
				{ID: "f3", Text: "Do you feel persistently sad or hopeless?"},
				{ID: "f4", Text: "Are you having trouble sleeping or sleeping too much?"},
				{ID: "f5", Text: "Have you noticed any unusual swelling or lumps?"},
			},
			"fever": {
				{ID: "fe1", Text: "Is your temperature over 103°F (39.4°C)?", IsRedFlag: true},
				{ID: "fe2", Text: "Are you experiencing a severe headache or a stiff neck with your fever?", IsRedFlag: true},
				{ID: "fe3", Text: "Do you have a rash that is spreading rapidly?", IsRedFlag: true},
				{ID: "fe4", Text: "Are you also experiencing a sore throat or cough?"},
				{ID: "fe5", Text: "Have you been in contact with anyone who has been sick?"},
			},
			"puffy face": {
				{ID: "pf1", Text: "Are you having difficulty breathing or swallowing?", IsRedFlag: true},
				{ID: "pf2", Text: "Did the swelling appear suddenly and rapidly?", IsRedFlag: true},
				{ID: "pf3", Text: "Is the swelling accompanied by an itchy rash or hives?"},
				{ID: "pf4", Text: "Have you noticed swelling in other parts of your body, like your ankles?"},
				{ID: "pf5", Text: "Have you recently started any new medications or tried new foods?"},
			},
			"acidity": {
				{ID: "ac1", Text: "Are you experiencing severe chest pain, possibly spreading to your arm or jaw?", IsRedFlag: true},
				{ID: "ac2", Text: "Are you having difficulty or pain when swallowing?", IsRedFlag: true},
				{ID: "ac3", Text: "Have you noticed black, tarry stools?", IsRedFlag: true},
				{ID: "ac4", Text: "Does the discomfort get worse when you lie down or bend over?"},
				{ID: "ac5", Text: "Does an over-the-counter antacid provide any relief?"},
			},
			"sore throat": {
				{ID: "st1", Text: "Are you having severe difficulty swallowing or breathing?", IsRedFlag: true},
				{ID: "st2", Text: "Are you drooling?", IsRedFlag: true},
				{ID: "st3", Text: "Do you have a high fever accompanying the sore throat?"},
				{ID: "st4", Text: "Are your tonsils swollen or do they have white spots?"},
				{ID: "st5", Text: "Do you also have a rash?"},
			},
			DefaultSymptomKey: {
				{ID: "g1", Text: "Are you experiencing severe difficulty breathing?", IsRedFlag: true},
				{ID: "g2", Text: "Have you experienced any chest pain or pressure in the last 24 hours?", IsRedFlag: true},
				{ID: "g3", Text: "Do you have a fever over 101°F (38.3°C)?"},
				{ID: "g4", Text: "Are you feeling unusually fatigued or weak?"},
				{ID: "g5", Text: "Are you feeling confused or having trouble staying awake?", IsRedFlag: true},
			},
		},
		Likelihoods: domain.LikelihoodTable{
			"h4":  {ConditionStress: 0.6, ConditionViralInfection: 0.3},
			"h5":  {ConditionViralInfection: 0.5},
			"f3":  {ConditionStress: 0.8},
			"f4":  {ConditionStress: 0.7, ConditionViralInfection: 0.4},
			"fe4": {ConditionViralInfection: 0.8, ConditionBacterialInfection: 0.6},
			"fe5": {ConditionViralInfection: 0.7, ConditionBacterialInfection: 0.5},
			"pf3": {ConditionAllergies: 0.9},
			"pf5": {ConditionAllergies: 0.7},
			"st3": {ConditionViralInfection: 0.7, ConditionBacterialInfection: 0.8},
			"st4": {ConditionBacterialInfection: 0.8},
			"g3":  {ConditionViralInfection: 0.7, ConditionBacterialInfection: 0.8},
			"g4":  {ConditionViralInfection: 0.8, ConditionStress: 0.6},
		},
		RiskTiers: map[string]domain.RiskLevel{
			ConditionViralInfection:     domain.RiskGreen,
			ConditionAllergies:          domain.RiskGreen,
			ConditionStress:             domain.RiskGreen,
			ConditionBacterialInfection: domain.RiskYellow,
		},
		BasePriors: []domain.ConditionProbability{
			{Condition: ConditionViralInfection, Probability: 0.4},
			{Condition: ConditionBacterialInfection, Probability: 0.2},
			{Condition: ConditionAllergies, Probability: 0.25},
			{Condition: ConditionStress, Probability: 0.15},
		},
	}
}

// Default returns the built-in catalog.
func Default() *Catalog {
	c, err := New(DefaultData())
	if err != nil {
		panic("catalog: built-in data is invalid: " + err.Error())
	}
	return c
}
