package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/symptom-triage-mcp/internal/catalog"
	"github.com/symptom-triage-mcp/internal/domain"
	"github.com/symptom-triage-mcp/internal/priors"
)

func TestInitialize(t *testing.T) {
	e := newTestEngine(t, nil)

	s := e.Initialize("headache")

	assert.Equal(t, "session-1", s.SessionID)
	assert.Equal(t, "headache", s.PrimarySymptom)
	require.NotNil(t, s.CurrentQuestion)
	assert.Equal(t, "h1", s.CurrentQuestion.ID)
	assert.Contains(t, s.CurrentQuestion.Text, "thunderclap")
	assert.False(t, s.IsCompleted)
	assert.Nil(t, s.RedFlag)
	assert.Nil(t, s.HighestRiskLevel)
	assert.Nil(t, s.CompletedAt)
	assert.Empty(t, s.QuestionHistory)
	assert.Equal(t, catalog.Default().BasePriors(), s.ConditionProbabilities)
	assert.Equal(t, catalog.Default().BasePriors(), s.BasePriors)
}

func TestInitialize_UnknownSymptomUsesDefaultSet(t *testing.T) {
	e := newTestEngine(t, nil)

	s := e.Initialize("unknownxyz")

	require.NotNil(t, s.CurrentQuestion)
	assert.Equal(t, "g1", s.CurrentQuestion.ID)
	assert.Equal(t, catalog.Default().QuestionsFor("default")[0], *s.CurrentQuestion)
}

func TestInitialize_NormalizesSymptom(t *testing.T) {
	e := newTestEngine(t, nil)

	s := e.Initialize("  Sore Throat ")
	require.NotNil(t, s.CurrentQuestion)
	assert.Equal(t, "st1", s.CurrentQuestion.ID)
}

func TestInitialize_KeepsCallerSessionID(t *testing.T) {
	e := newTestEngine(t, nil)

	in := domain.NewTriageSession("fever")
	in.SessionID = "caller-chosen"

	out := e.Step(in)
	assert.Equal(t, "caller-chosen", out.SessionID)
}

func TestStep_RedFlagTerminatesInterview(t *testing.T) {
	e := newTestEngine(t, nil)

	s := e.Initialize("headache")
	h1 := s.CurrentQuestion.Text

	s = answer(t, e, s, domain.AnswerYes)

	assert.True(t, s.IsCompleted)
	require.NotNil(t, s.RedFlag)
	assert.Contains(t, s.RedFlag.Reason, h1)
	assert.Nil(t, s.CurrentQuestion)
	require.NotNil(t, s.HighestRiskLevel)
	assert.Equal(t, domain.RiskRed, *s.HighestRiskLevel)
	require.NotNil(t, s.CompletedAt)
	assert.Equal(t, testNow, *s.CompletedAt)
	assert.Equal(t, catalog.Default().BasePriors(), s.ConditionProbabilities, "no belief update after a red flag")
}

func TestStep_RedFlagOnLastQuestion(t *testing.T) {
	e := newTestEngine(t, nil)

	s := e.Initialize("unknownxyz")
	for i := 0; i < 4; i++ {
		s = answer(t, e, s, domain.AnswerNo)
	}
	require.Equal(t, "g5", s.CurrentQuestion.ID)

	s = answer(t, e, s, domain.AnswerYes)
	require.NotNil(t, s.RedFlag)
	assert.Equal(t, domain.RiskRed, *s.HighestRiskLevel)
}

func TestStep_AllNoCompletesAfterFiveAnswers(t *testing.T) {
	e := newTestEngine(t, nil)

	s := e.Initialize("headache")
	for i := 1; i <= 5; i++ {
		require.False(t, s.IsCompleted, "completed early before answer %d", i)
		s = answer(t, e, s, domain.AnswerNo)
	}

	assert.True(t, s.IsCompleted)
	assert.Nil(t, s.RedFlag)
	assert.Nil(t, s.CurrentQuestion)
	assert.Len(t, s.QuestionHistory, 5)
	require.NotNil(t, s.CompletedAt)
	assert.Equal(t, testNow, *s.CompletedAt)

	// h4 No then h5 No leaves Allergies on top.
	top, ok := TopCondition(s.ConditionProbabilities)
	require.True(t, ok)
	assert.Equal(t, catalog.ConditionAllergies, top)
	require.NotNil(t, s.HighestRiskLevel)
	assert.Equal(t, domain.RiskGreen, *s.HighestRiskLevel)
	assert.InDelta(t, 1.0, sumOf(s.ConditionProbabilities), 1e-9)
}

func TestStep_BacterialOutcomeIsYellow(t *testing.T) {
	e := newTestEngine(t, nil)

	s := e.Initialize("sore throat")
	for _, a := range []domain.Answer{domain.AnswerNo, domain.AnswerNo, domain.AnswerYes, domain.AnswerYes, domain.AnswerNo} {
		s = answer(t, e, s, a)
	}

	require.True(t, s.IsCompleted)
	top, _ := TopCondition(s.ConditionProbabilities)
	assert.Equal(t, catalog.ConditionBacterialInfection, top)
	assert.Equal(t, domain.RiskYellow, *s.HighestRiskLevel)
}

func TestStep_NeverRepeatsAndRespectsBudget(t *testing.T) {
	e := newTestEngine(t, nil)
	cat := catalog.Default()

	for _, symptom := range append(cat.Symptoms(), "unknownxyz") {
		t.Run(symptom, func(t *testing.T) {
			s := e.Initialize(symptom)
			asked := map[string]bool{}
			steps := 0
			for !s.IsCompleted {
				require.NotNil(t, s.CurrentQuestion)
				assert.False(t, asked[s.CurrentQuestion.Text], "question repeated: %s", s.CurrentQuestion.Text)
				asked[s.CurrentQuestion.Text] = true
				s = answer(t, e, s, domain.AnswerNo)
				steps++
				require.LessOrEqual(t, steps, MaxQuestions)
			}
			n := len(cat.QuestionsFor(symptom))
			if n > MaxQuestions {
				n = MaxQuestions
			}
			assert.Equal(t, n, steps)
		})
	}
}

func TestStep_ShortCatalogCompletesWhenExhausted(t *testing.T) {
	data := catalog.DefaultData()
	data.QuestionSets["rash"] = []domain.Question{
		{ID: "r1", Text: "Is the rash itchy?"},
		{ID: "r2", Text: "Did it start after a new soap?"},
	}
	cat, err := catalog.New(data)
	require.NoError(t, err)
	e := NewTriageEngine(cat, nil, testLogger())

	s := e.Initialize("rash")
	s = answer(t, e, s, domain.AnswerNo)
	require.False(t, s.IsCompleted)
	s = answer(t, e, s, domain.AnswerNo)

	assert.True(t, s.IsCompleted)
	assert.Nil(t, s.CurrentQuestion)
	assert.NotNil(t, s.HighestRiskLevel)
	assert.NotNil(t, s.CompletedAt)
}

func TestStep_LongCatalogStopsAtBudget(t *testing.T) {
	data := catalog.DefaultData()
	long := make([]domain.Question, 0, 8)
	for i := 1; i <= 8; i++ {
		long = append(long, domain.Question{ID: "l" + string(rune('0'+i)), Text: "Question " + string(rune('0'+i)) + "?"})
	}
	data.QuestionSets["long"] = long
	cat, err := catalog.New(data)
	require.NoError(t, err)
	e := NewTriageEngine(cat, nil, testLogger())

	s := e.Initialize("long")
	for i := 0; i < MaxQuestions; i++ {
		s = answer(t, e, s, domain.AnswerNo)
	}

	assert.True(t, s.IsCompleted)
	assert.Len(t, s.QuestionHistory, MaxQuestions)
	assert.Nil(t, s.CurrentQuestion)
}

func TestStep_DoesNotMutateInput(t *testing.T) {
	e := newTestEngine(t, nil)

	s := e.Initialize("fever")
	require.NoError(t, s.RecordAnswer(domain.AnswerNo))
	snapshot := s.Clone()

	e.Step(s)
	assert.Equal(t, snapshot, s)
}

func TestStep_CompletedSessionIsUnchanged(t *testing.T) {
	e := newTestEngine(t, nil)

	s := e.Initialize("headache")
	s = answer(t, e, s, domain.AnswerYes)
	require.True(t, s.IsCompleted)

	again := e.Step(s)
	assert.Equal(t, s, again)
}

func TestStep_ResolvesQuestionByTextWithoutCurrentQuestion(t *testing.T) {
	e := newTestEngine(t, nil)

	s := e.Initialize("puffy face")
	s.QuestionHistory = append(s.QuestionHistory, "Are you having difficulty breathing or swallowing?")
	s.Answers = append(s.Answers, domain.AnswerYes)
	s.CurrentQuestion = nil

	out := e.Step(s)
	require.NotNil(t, out.RedFlag)
	assert.Contains(t, out.RedFlag.Reason, "difficulty breathing or swallowing")
}

func TestStep_IgnoresTamperedRedFlagMarker(t *testing.T) {
	e := newTestEngine(t, nil)

	s := e.Initialize("headache")
	s.CurrentQuestion.IsRedFlag = false

	out := answer(t, e, s, domain.AnswerYes)
	assert.NotNil(t, out.RedFlag, "the catalog decides which questions are red flags")
}

func TestStep_UnresolvableQuestionSkipsUpdate(t *testing.T) {
	e := newTestEngine(t, nil)

	s := e.Initialize("fever")
	s.QuestionHistory = []string{"Something the catalog never asked?"}
	s.Answers = []domain.Answer{domain.AnswerYes}
	s.CurrentQuestion = nil

	out := e.Step(s)
	assert.Nil(t, out.RedFlag)
	assert.Equal(t, s.ConditionProbabilities, out.ConditionProbabilities)
	require.NotNil(t, out.CurrentQuestion)
	assert.Equal(t, "fe1", out.CurrentQuestion.ID)
}

func TestStep_SessionOverrides(t *testing.T) {
	e := newTestEngine(t, nil)

	in := domain.NewTriageSession("fever")
	in.BasePriors = []domain.ConditionProbability{
		{Condition: "A", Probability: 0.5},
		{Condition: "B", Probability: 0.5},
	}
	in.Likelihoods = domain.LikelihoodTable{"fe4": {"A": 0.9, "B": 0.1}}

	s := e.Step(in)
	assert.Equal(t, in.BasePriors, s.ConditionProbabilities)

	for s.CurrentQuestion.ID != "fe4" {
		s = answer(t, e, s, domain.AnswerNo)
	}
	s = answer(t, e, s, domain.AnswerYes)

	assert.InDelta(t, 0.9, probabilityOf(s.ConditionProbabilities, "A"), 1e-12)
	assert.InDelta(t, 0.1, probabilityOf(s.ConditionProbabilities, "B"), 1e-12)
}

func TestStep_InFlightSessionsKeepTheirSnapshot(t *testing.T) {
	table, err := priors.NewTable(catalog.Default().BasePriors())
	require.NoError(t, err)
	e := newTestEngine(t, table)
	adjuster := NewFeedbackAdjuster(table, nil, testLogger())

	inFlight := e.Initialize("fever")

	_, err = adjuster.Adjust(t.Context(), catalog.ConditionViralInfection, domain.OutcomeWorse)
	require.NoError(t, err)

	assert.Equal(t, 0.4, probabilityOf(inFlight.BasePriors, catalog.ConditionViralInfection))
	next := answer(t, e, inFlight, domain.AnswerNo)
	assert.Equal(t, inFlight.BasePriors, next.BasePriors)

	fresh := e.Initialize("fever")
	assert.InDelta(t, 0.3/0.9, probabilityOf(fresh.ConditionProbabilities, catalog.ConditionViralInfection), 1e-12)
}

func TestStep_NilSession(t *testing.T) {
	e := newTestEngine(t, nil)

	s := e.Step(nil)
	require.NotNil(t, s.CurrentQuestion)
	assert.Equal(t, "g1", s.CurrentQuestion.ID)
}
