package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/symptom-triage-mcp/internal/domain"
	"github.com/symptom-triage-mcp/internal/logging"
)

// Interview frame types.
const (
	FrameStart   = "start"
	FrameAnswer  = "answer"
	FrameSession = "session"
	FrameError   = "error"
)

const (
	wsWriteWait      = 10 * time.Second
	wsPongWait       = 60 * time.Second
	wsPingPeriod     = (wsPongWait * 9) / 10
	wsMaxMessageSize = 64 * 1024
)

// InterviewFrame is one websocket message in either direction. Clients send start
// then answer frames; the server replies to each with a session or error frame and
// closes the connection once the session is completed.
type InterviewFrame struct {
	Type           string                `json:"type"`
	PrimarySymptom string                `json:"primary_symptom,omitempty"`
	Answer         domain.Answer         `json:"answer,omitempty"`
	Session        *domain.TriageSession `json:"session,omitempty"`
	Error          *domain.TriageError   `json:"error,omitempty"`
}

func (s *Server) handleInterview(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.WithError(err).Warn("Websocket upgrade failed")
		return
	}
	defer conn.Close()

	ctx := c.Request.Context()
	ctx, correlationID := logging.EnsureCorrelation(ctx)
	log := s.logger.WithField("correlation_id", correlationID)

	conn.SetReadLimit(wsMaxMessageSize)
	conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	done := make(chan struct{})
	defer close(done)
	go s.pingLoop(conn, done)

	interview := &interview{server: s, conn: conn}
	for {
		var frame InterviewFrame
		if err := conn.ReadJSON(&frame); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.WithError(err).Debug("Interview connection closed")
			}
			return
		}

		op := logging.StartOperation(ctx, s.logger, "ws_frame", frame.Type)
		finished, err := interview.handle(ctx, frame)
		op.End(err)
		if err != nil {
			return
		}
		if finished {
			interview.close(websocket.CloseNormalClosure, "interview completed")
			log.WithField("session_id", interview.sessionID).Info("Interview completed over websocket")
			return
		}
	}
}

func (s *Server) pingLoop(conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
				return
			}
		}
	}
}

// interview is the per-connection state: only the id of the server-held session.
type interview struct {
	server    *Server
	conn      *websocket.Conn
	sessionID string
}

// handle processes one client frame. It reports whether the interview is finished;
// an error means the connection is unusable.
func (iv *interview) handle(ctx context.Context, frame InterviewFrame) (bool, error) {
	var (
		session *domain.TriageSession
		err     error
	)

	switch frame.Type {
	case FrameStart:
		if iv.sessionID != "" {
			return false, iv.sendError(domain.ErrCodeInvalidInput, "interview already started")
		}
		if frame.PrimarySymptom == "" {
			return false, iv.sendError(domain.ErrCodeInvalidInput, "primary_symptom is required")
		}
		session, err = iv.server.deps.Triage.Start(ctx, frame.PrimarySymptom)
	case FrameAnswer:
		if iv.sessionID == "" {
			return false, iv.sendError(domain.ErrCodeInvalidInput, "send a start frame first")
		}
		session, err = iv.server.deps.Triage.Answer(ctx, iv.sessionID, frame.Answer)
	default:
		return false, iv.sendError(domain.ErrCodeInvalidInput, "unknown frame type: "+frame.Type)
	}

	if err != nil {
		status, code := classifyError(err)
		message := err.Error()
		if status >= http.StatusInternalServerError {
			iv.server.logger.WithFields(logrus.Fields{
				"session_id": iv.sessionID,
				"error":      err.Error(),
			}).Error("Interview step failed")
			message = "internal server error"
		}
		return false, iv.sendError(code, message)
	}

	iv.sessionID = session.SessionID
	if err := iv.write(InterviewFrame{Type: FrameSession, Session: session}); err != nil {
		return false, err
	}
	return session.IsCompleted, nil
}

func (iv *interview) sendError(code, message string) error {
	return iv.write(InterviewFrame{
		Type:  FrameError,
		Error: domain.NewTriageError(code, message, "", iv.sessionID),
	})
}

func (iv *interview) write(frame InterviewFrame) error {
	iv.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return iv.conn.WriteJSON(frame)
}

func (iv *interview) close(code int, reason string) {
	iv.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(code, reason), time.Now().Add(wsWriteWait))
}
