// Package logging builds the process logger and carries correlation ids through
// contexts so HTTP requests, websocket frames and MCP tool calls can be traced.
package logging

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/symptom-triage-mcp/internal/domain"
)

// NewLogger builds a logrus logger from configuration. Unknown levels fall back to
// info; Output is stdout, stderr or file (Filename required).
func NewLogger(cfg domain.LoggingConfig) (*logrus.Logger, error) {
	logger := logrus.New()

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if strings.EqualFold(cfg.Format, "text") {
		logger.SetFormatter(&logrus.TextFormatter{
			TimestampFormat: time.RFC3339,
			FullTimestamp:   true,
		})
	} else {
		logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339Nano,
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime:  "timestamp",
				logrus.FieldKeyLevel: "level",
				logrus.FieldKeyMsg:   "message",
			},
		})
	}

	out, err := openOutput(cfg)
	if err != nil {
		return nil, err
	}
	logger.SetOutput(out)

	return logger, nil
}

func openOutput(cfg domain.LoggingConfig) (io.Writer, error) {
	switch strings.ToLower(cfg.Output) {
	case "", "stdout":
		return os.Stdout, nil
	case "stderr":
		return os.Stderr, nil
	case "file":
		if cfg.Filename == "" {
			return nil, fmt.Errorf("logging output is file but no filename is set")
		}
		if err := os.MkdirAll(filepath.Dir(cfg.Filename), 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		f, err := os.OpenFile(cfg.Filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		return f, nil
	default:
		return nil, fmt.Errorf("unsupported logging output: %s", cfg.Output)
	}
}

type correlationKey struct{}

// WithCorrelation returns a context carrying the correlation id.
func WithCorrelation(ctx context.Context, correlationID string) context.Context {
	return context.WithValue(ctx, correlationKey{}, correlationID)
}

// CorrelationID extracts the correlation id from ctx, or "" if none is set.
func CorrelationID(ctx context.Context) string {
	if id, ok := ctx.Value(correlationKey{}).(string); ok {
		return id
	}
	return ""
}

// EnsureCorrelation returns ctx unchanged when it already has a correlation id and
// otherwise attaches a fresh one.
func EnsureCorrelation(ctx context.Context) (context.Context, string) {
	if id := CorrelationID(ctx); id != "" {
		return ctx, id
	}
	id := uuid.New().String()
	return WithCorrelation(ctx, id), id
}

// FromContext returns an entry tagged with the context's correlation id.
func FromContext(ctx context.Context, logger *logrus.Logger) *logrus.Entry {
	entry := logrus.NewEntry(logger)
	if id := CorrelationID(ctx); id != "" {
		entry = entry.WithField("correlation_id", id)
	}
	return entry
}

// Operation times a named unit of work and logs its outcome once on End.
type Operation struct {
	entry *logrus.Entry
	start time.Time
}

// StartOperation begins timing an operation of the given type ("tool_call",
// "http_request", "ws_frame").
func StartOperation(ctx context.Context, logger *logrus.Logger, operationType, name string) *Operation {
	return &Operation{
		entry: FromContext(ctx, logger).WithFields(logrus.Fields{
			"operation_type": operationType,
			"operation":      name,
		}),
		start: time.Now(),
	}
}

// End logs the duration and error, if any.
func (o *Operation) End(err error) {
	entry := o.entry.WithField("duration_ms", time.Since(o.start).Milliseconds())
	if err != nil {
		entry.WithError(err).Warn("Operation failed")
		return
	}
	entry.Debug("Operation completed")
}
