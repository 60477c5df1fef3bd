// Package mcp exposes the triage engine as Model Context Protocol tools.
package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"

	"github.com/symptom-triage-mcp/internal/catalog"
	"github.com/symptom-triage-mcp/internal/feedback"
	"github.com/symptom-triage-mcp/internal/service"
)

// ServerName is reported to clients during initialization.
const ServerName = "symptom-triage-mcp"

// Version of the tool surface.
const Version = "v0.1.0"

// Server is the MCP server wrapping the triage and feedback services.
type Server struct {
	mcpServer *mcp.Server
	triage    *service.TriageService
	feedback  *service.FeedbackService
	catalog   *catalog.Catalog
	store     feedback.Store
	exportDir string
	logger    *logrus.Logger
	toolNames []string
}

// Option configures optional Server dependencies.
type Option func(*Server)

// WithLogger sets the logger. The default logger writes to stderr so stdio frames
// stay clean.
func WithLogger(logger *logrus.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithCatalog enables the list_triage_symptoms tool.
func WithCatalog(c *catalog.Catalog) Option {
	return func(s *Server) {
		s.catalog = c
	}
}

// WithFeedbackStore enables the feedback export and import tools. Exports are
// written under exportDir.
func WithFeedbackStore(store feedback.Store, exportDir string) Option {
	return func(s *Server) {
		s.store = store
		s.exportDir = exportDir
	}
}

// NewServer creates the MCP server and registers every available tool.
func NewServer(triage *service.TriageService, fb *service.FeedbackService, opts ...Option) (*Server, error) {
	if triage == nil {
		return nil, fmt.Errorf("triage service is required")
	}
	if fb == nil {
		return nil, fmt.Errorf("feedback service is required")
	}

	s := &Server{
		triage:   triage,
		feedback: fb,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logrus.New()
	}

	s.mcpServer = mcp.NewServer(&mcp.Implementation{
		Name:    ServerName,
		Version: Version,
	}, nil)

	s.registerTools()

	s.logger.WithField("tool_count", len(s.toolNames)).Info("Registered MCP tools")
	return s, nil
}

func (s *Server) registerTools() {
	addTool(s, "start_triage",
		"Start a symptom interview for a primary symptom and return the session with its first yes/no question.",
		s.handleStartTriage)
	addTool(s, "answer_triage_question",
		"Answer the current question of a triage session with Yes or No. Returns the next question, a red flag, or the final condition probabilities.",
		s.handleAnswerQuestion)
	addTool(s, "get_triage_session",
		"Fetch a triage session by id, in flight or archived.",
		s.handleGetSession)
	addTool(s, "submit_triage_outcome",
		"Report how the user fared after a completed triage (Better, Same, Worse, SideEffects). Adjusts the base priors used by future sessions.",
		s.handleSubmitOutcome)
	addTool(s, "get_base_priors",
		"Return the current base prior distribution over conditions.",
		s.handleGetPriors)

	if s.catalog != nil {
		addTool(s, "list_triage_symptoms",
			"List the primary symptoms that have a dedicated question set.",
			s.handleListSymptoms)
	}

	if s.store != nil {
		addTool(s, "export_triage_feedback",
			"Export all outcome feedback to a JSON file for backup.",
			s.handleExportFeedback)
		addTool(s, "import_triage_feedback",
			"Import outcome feedback from a JSON backup file. Sessions that already have feedback are skipped.",
			s.handleImportFeedback)
	}
}

func addTool[In any](s *Server, name, description string, handler mcp.ToolHandlerFor[In, any]) {
	mcp.AddTool(s.mcpServer, &mcp.Tool{Name: name, Description: description}, handler)
	s.toolNames = append(s.toolNames, name)
	s.logger.WithField("tool_name", name).Debug("Registered MCP tool")
}

// Tools lists the registered tool names in registration order.
func (s *Server) Tools() []string {
	return append([]string{}, s.toolNames...)
}

// Run serves MCP over the given transport until the client disconnects or ctx ends.
func (s *Server) Run(ctx context.Context, transport mcp.Transport) error {
	s.logger.Info("Starting symptom triage MCP server")

	if err := s.mcpServer.Run(ctx, transport); err != nil {
		return fmt.Errorf("MCP server failed: %w", err)
	}
	return nil
}

// Start serves MCP over stdin/stdout.
func (s *Server) Start(ctx context.Context) error {
	return s.Run(ctx, &mcp.StdioTransport{})
}
