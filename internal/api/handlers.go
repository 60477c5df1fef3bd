package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/symptom-triage-mcp/internal/domain"
)

// StartTriageRequest opens a server-held interview.
type StartTriageRequest struct {
	PrimarySymptom string `json:"primary_symptom" binding:"required,max=200"`
}

// AnswerRequest answers the current question of a server-held interview.
type AnswerRequest struct {
	Answer domain.Answer `json:"answer" binding:"required,oneof=Yes No"`
}

// FeedbackRequest reports an outcome. Either SessionID or Condition must be set;
// SessionID wins when both are.
type FeedbackRequest struct {
	SessionID string `json:"session_id" binding:"omitempty,max=100"`
	Condition string `json:"condition" binding:"omitempty,max=200"`
	Outcome   string `json:"outcome" binding:"required"`
	Notes     string `json:"notes" binding:"max=2000"`
}

func (s *Server) handleStartTriage(c *gin.Context) {
	var req StartTriageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err.Error(), "")
		return
	}

	session, err := s.deps.Triage.Start(c.Request.Context(), req.PrimarySymptom)
	if err != nil {
		s.respondError(c, err, "")
		return
	}
	c.JSON(http.StatusCreated, session)
}

// handleStepTriage round-trips a caller-held session. Malformed sessions come back as
// terminal system-error sessions rather than HTTP errors.
func (s *Server) handleStepTriage(c *gin.Context) {
	var session domain.TriageSession
	if err := c.ShouldBindJSON(&session); err != nil {
		s.badRequest(c, err.Error(), "")
		return
	}

	c.JSON(http.StatusOK, s.deps.Triage.Advance(c.Request.Context(), &session))
}

func (s *Server) handleAnswer(c *gin.Context) {
	sessionID := c.Param("id")

	var req AnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err.Error(), sessionID)
		return
	}

	session, err := s.deps.Triage.Answer(c.Request.Context(), sessionID, req.Answer)
	if err != nil {
		s.respondError(c, err, sessionID)
		return
	}
	c.JSON(http.StatusOK, session)
}

func (s *Server) handleGetSession(c *gin.Context) {
	sessionID := c.Param("id")

	session, err := s.deps.Triage.Get(c.Request.Context(), sessionID)
	if err != nil {
		s.respondError(c, err, sessionID)
		return
	}
	c.JSON(http.StatusOK, session)
}

func (s *Server) handleSubmitFeedback(c *gin.Context) {
	var req FeedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err.Error(), req.SessionID)
		return
	}

	outcome, err := domain.ParseOutcome(req.Outcome)
	if err != nil {
		s.badRequest(c, "outcome must be one of Better, Same, Worse, Side Effects", req.SessionID)
		return
	}

	ctx := c.Request.Context()
	switch {
	case req.SessionID != "":
		entry, err := s.deps.Feedback.SubmitForSession(ctx, req.SessionID, outcome, req.Notes)
		if err != nil {
			s.respondError(c, err, req.SessionID)
			return
		}
		c.JSON(http.StatusCreated, gin.H{
			"feedback": entry,
			"priors":   s.deps.Feedback.Priors(),
		})
	case req.Condition != "":
		adjustment, err := s.deps.Feedback.AdjustFeedback(ctx, req.Condition, outcome)
		if err != nil {
			s.respondError(c, err, "")
			return
		}
		c.JSON(http.StatusOK, adjustment)
	default:
		s.badRequest(c, "either session_id or condition is required", "")
	}
}

func (s *Server) handleListFeedback(c *gin.Context) {
	limit, offset, err := pageParams(c)
	if err != nil {
		s.badRequest(c, err.Error(), "")
		return
	}

	entries, err := s.deps.Feedback.List(c.Request.Context(), limit, offset)
	if err != nil {
		s.respondError(c, err, "")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"entries": entries,
		"limit":   limit,
		"offset":  offset,
	})
}

func (s *Server) handleListSessions(c *gin.Context) {
	limit, offset, err := pageParams(c)
	if err != nil {
		s.badRequest(c, err.Error(), "")
		return
	}

	sessions, err := s.deps.Archive.ListRecent(c.Request.Context(), limit, offset)
	if err != nil {
		s.respondError(c, err, "")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"sessions": sessions,
		"limit":    limit,
		"offset":   offset,
	})
}

func (s *Server) handleRiskCounts(c *gin.Context) {
	counts, err := s.deps.Archive.CountByRisk(c.Request.Context())
	if err != nil {
		s.respondError(c, err, "")
		return
	}
	c.JSON(http.StatusOK, gin.H{"counts": counts})
}

func (s *Server) handleGetPriors(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"priors": s.deps.Feedback.Priors()})
}

func (s *Server) handleListSymptoms(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"symptoms": s.deps.Catalog.Symptoms()})
}

const (
	defaultPageSize = 50
	maxPageSize     = 500
)

// pageParams reads limit and offset. limit is clamped to [1, maxPageSize] and a
// negative offset reads as 0.
func pageParams(c *gin.Context) (limit, offset int, err error) {
	limit, err = strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultPageSize)))
	if err != nil {
		return 0, 0, fmt.Errorf("limit must be an integer")
	}
	offset, err = strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil {
		return 0, 0, fmt.Errorf("offset must be an integer")
	}

	limit = max(1, min(limit, maxPageSize))
	offset = max(0, offset)
	return limit, offset, nil
}

func (s *Server) badRequest(c *gin.Context, details, sessionID string) {
	c.JSON(http.StatusBadRequest, domain.NewTriageError(
		domain.ErrCodeInvalidInput, "invalid request", details, sessionID))
}

// respondError maps service errors onto HTTP statuses.
func (s *Server) respondError(c *gin.Context, err error, sessionID string) {
	status, code := classifyError(err)
	if status >= http.StatusInternalServerError {
		s.logger.WithError(err).WithField("session_id", sessionID).Error("Request failed")
		c.JSON(status, domain.NewTriageError(code, "internal server error", "", sessionID))
		return
	}
	c.JSON(status, domain.NewTriageError(code, err.Error(), "", sessionID))
}

func classifyError(err error) (int, string) {
	var validationErr *domain.ValidationError
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, domain.ErrCodeNotFound
	case errors.Is(err, domain.ErrInvalidAnswer), errors.Is(err, domain.ErrInvalidOutcome):
		return http.StatusBadRequest, domain.ErrCodeInvalidInput
	case errors.As(err, &validationErr):
		return http.StatusBadRequest, domain.ErrCodeValidation
	case errors.Is(err, domain.ErrSessionCompleted),
		errors.Is(err, domain.ErrNoCurrentQuestion),
		errors.Is(err, domain.ErrNotEligibleForFeedback),
		errors.Is(err, domain.ErrFeedbackAlreadySubmitted):
		return http.StatusConflict, domain.ErrCodeValidation
	case errors.Is(err, domain.ErrOutsideFeedbackWindow):
		return http.StatusUnprocessableEntity, domain.ErrCodeFeedbackWindow
	default:
		return http.StatusInternalServerError, domain.ErrCodeInternalServer
	}
}
