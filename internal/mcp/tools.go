package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/symptom-triage-mcp/internal/domain"
	"github.com/symptom-triage-mcp/internal/feedback"
	"github.com/symptom-triage-mcp/internal/logging"
	"github.com/symptom-triage-mcp/internal/service"
)

var errMissingParameter = errors.New("missing required parameter")

// StartTriageParams defines parameters for the start_triage tool
type StartTriageParams struct {
	PrimarySymptom string `json:"primary_symptom" jsonschema:"the main complaint, for example headache or sore throat"`
}

// AnswerQuestionParams defines parameters for the answer_triage_question tool
type AnswerQuestionParams struct {
	SessionID string `json:"session_id" jsonschema:"id returned by start_triage"`
	Answer    string `json:"answer" jsonschema:"Yes or No"`
}

// GetSessionParams defines parameters for the get_triage_session tool
type GetSessionParams struct {
	SessionID string `json:"session_id" jsonschema:"id returned by start_triage"`
}

// SubmitOutcomeParams defines parameters for the submit_triage_outcome tool.
// Exactly one of SessionID or Condition identifies what the outcome is attributed to.
type SubmitOutcomeParams struct {
	SessionID string `json:"session_id,omitempty" jsonschema:"completed session the outcome refers to"`
	Condition string `json:"condition,omitempty" jsonschema:"condition to adjust directly when no session is known"`
	Outcome   string `json:"outcome" jsonschema:"one of Better, Same, Worse, Side Effects"`
	Notes     string `json:"notes,omitempty"`
}

// EmptyParams is used by tools that take no arguments.
type EmptyParams struct{}

// SessionResult is the structured result of the session tools.
type SessionResult struct {
	Summary string                `json:"summary"`
	Session *domain.TriageSession `json:"session"`
}

// OutcomeResult is the structured result of submit_triage_outcome.
type OutcomeResult struct {
	Feedback   *feedback.Entry               `json:"feedback,omitempty"`
	Adjustment *service.Adjustment           `json:"adjustment,omitempty"`
	Priors     []domain.ConditionProbability `json:"priors"`
}

// PriorsResult is the structured result of get_base_priors.
type PriorsResult struct {
	Priors []domain.ConditionProbability `json:"priors"`
}

// SymptomsResult is the structured result of list_triage_symptoms.
type SymptomsResult struct {
	Symptoms []string `json:"symptoms"`
}

func (s *Server) handleStartTriage(ctx context.Context, req *mcp.CallToolRequest, params StartTriageParams) (*mcp.CallToolResult, any, error) {
	op := s.startOperation(ctx, "start_triage")

	if strings.TrimSpace(params.PrimarySymptom) == "" {
		op.End(errMissingParameter)
		return s.createErrorResult(domain.ErrCodeInvalidInput, "primary_symptom is required", ""), nil, nil
	}

	session, err := s.triage.Start(ctx, params.PrimarySymptom)
	op.End(err)
	if err != nil {
		return s.errorResult(err, ""), nil, nil
	}
	return s.sessionResult(session)
}

func (s *Server) handleAnswerQuestion(ctx context.Context, req *mcp.CallToolRequest, params AnswerQuestionParams) (*mcp.CallToolResult, any, error) {
	op := s.startOperation(ctx, "answer_triage_question")

	if params.SessionID == "" {
		op.End(errMissingParameter)
		return s.createErrorResult(domain.ErrCodeInvalidInput, "session_id is required", ""), nil, nil
	}

	session, err := s.triage.Answer(ctx, params.SessionID, normalizeAnswer(params.Answer))
	op.End(err)
	if err != nil {
		return s.errorResult(err, params.SessionID), nil, nil
	}
	return s.sessionResult(session)
}

func (s *Server) handleGetSession(ctx context.Context, req *mcp.CallToolRequest, params GetSessionParams) (*mcp.CallToolResult, any, error) {
	op := s.startOperation(ctx, "get_triage_session")

	if params.SessionID == "" {
		op.End(errMissingParameter)
		return s.createErrorResult(domain.ErrCodeInvalidInput, "session_id is required", ""), nil, nil
	}

	session, err := s.triage.Get(ctx, params.SessionID)
	op.End(err)
	if err != nil {
		return s.errorResult(err, params.SessionID), nil, nil
	}
	return s.sessionResult(session)
}

func (s *Server) handleSubmitOutcome(ctx context.Context, req *mcp.CallToolRequest, params SubmitOutcomeParams) (*mcp.CallToolResult, any, error) {
	op := s.startOperation(ctx, "submit_triage_outcome")

	outcome, err := domain.ParseOutcome(params.Outcome)
	if err != nil {
		op.End(err)
		return s.createErrorResult(domain.ErrCodeInvalidInput,
			"outcome must be one of Better, Same, Worse, Side Effects", params.SessionID), nil, nil
	}

	var result OutcomeResult
	switch {
	case params.SessionID != "":
		entry, err := s.feedback.SubmitForSession(ctx, params.SessionID, outcome, params.Notes)
		op.End(err)
		if err != nil {
			return s.errorResult(err, params.SessionID), nil, nil
		}
		result.Feedback = entry
	case params.Condition != "":
		adjustment, err := s.feedback.AdjustFeedback(ctx, params.Condition, outcome)
		op.End(err)
		if err != nil {
			return s.errorResult(err, ""), nil, nil
		}
		result.Adjustment = adjustment
	default:
		op.End(errMissingParameter)
		return s.createErrorResult(domain.ErrCodeInvalidInput, "either session_id or condition is required", ""), nil, nil
	}
	result.Priors = s.feedback.Priors()

	return s.jsonResult(result)
}

func (s *Server) handleGetPriors(ctx context.Context, req *mcp.CallToolRequest, _ EmptyParams) (*mcp.CallToolResult, any, error) {
	op := s.startOperation(ctx, "get_base_priors")
	defer op.End(nil)

	return s.jsonResult(PriorsResult{Priors: s.feedback.Priors()})
}

func (s *Server) handleListSymptoms(ctx context.Context, req *mcp.CallToolRequest, _ EmptyParams) (*mcp.CallToolResult, any, error) {
	op := s.startOperation(ctx, "list_triage_symptoms")
	defer op.End(nil)

	return s.jsonResult(SymptomsResult{Symptoms: s.catalog.Symptoms()})
}

func (s *Server) startOperation(ctx context.Context, tool string) *logging.Operation {
	ctx, _ = logging.EnsureCorrelation(ctx)
	return logging.StartOperation(ctx, s.logger, "tool_call", tool)
}

// normalizeAnswer accepts the answer in any letter case.
func normalizeAnswer(answer string) domain.Answer {
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "yes":
		return domain.AnswerYes
	case "no":
		return domain.AnswerNo
	default:
		return domain.Answer(answer)
	}
}

func (s *Server) sessionResult(session *domain.TriageSession) (*mcp.CallToolResult, any, error) {
	return s.jsonResult(SessionResult{
		Summary: describeSession(session),
		Session: session,
	})
}

// describeSession renders the state a client should show next.
func describeSession(session *domain.TriageSession) string {
	switch {
	case session.RedFlag != nil:
		return "RED FLAG: " + session.RedFlag.Reason
	case session.IsCompleted:
		var b strings.Builder
		b.WriteString("Triage complete.")
		if session.HighestRiskLevel != nil {
			fmt.Fprintf(&b, " Risk level %s.", *session.HighestRiskLevel)
		}
		for _, p := range session.ConditionProbabilities {
			fmt.Fprintf(&b, "\n%s: %.1f%%", p.Condition, p.Probability*100)
		}
		return b.String()
	case session.CurrentQuestion != nil:
		return fmt.Sprintf("Question %d: %s", len(session.QuestionHistory)+1, session.CurrentQuestion.Text)
	default:
		return "Session has no pending question."
	}
}

func (s *Server) jsonResult(v any) (*mcp.CallToolResult, any, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return s.createErrorResult(domain.ErrCodeInternalServer, "failed to encode result", ""), nil, nil
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(data)},
		},
	}, v, nil
}

// errorResult maps a service error onto a tool error. Internal failures are logged
// and reported without detail.
func (s *Server) errorResult(err error, sessionID string) *mcp.CallToolResult {
	code := errorCode(err)
	if code == domain.ErrCodeInternalServer {
		s.logger.WithError(err).WithField("session_id", sessionID).Error("Tool call failed")
		return s.createErrorResult(code, "internal server error", sessionID)
	}
	return s.createErrorResult(code, err.Error(), sessionID)
}

func (s *Server) createErrorResult(code, message, sessionID string) *mcp.CallToolResult {
	data, _ := json.Marshal(domain.NewTriageError(code, message, "", sessionID))
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(data)},
		},
		IsError: true,
	}
}

func errorCode(err error) string {
	var validationErr *domain.ValidationError
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return domain.ErrCodeNotFound
	case errors.Is(err, domain.ErrInvalidAnswer), errors.Is(err, domain.ErrInvalidOutcome):
		return domain.ErrCodeInvalidInput
	case errors.As(err, &validationErr),
		errors.Is(err, domain.ErrSessionCompleted),
		errors.Is(err, domain.ErrNoCurrentQuestion),
		errors.Is(err, domain.ErrNotEligibleForFeedback),
		errors.Is(err, domain.ErrFeedbackAlreadySubmitted):
		return domain.ErrCodeValidation
	case errors.Is(err, domain.ErrOutsideFeedbackWindow):
		return domain.ErrCodeFeedbackWindow
	default:
		return domain.ErrCodeInternalServer
	}
}
