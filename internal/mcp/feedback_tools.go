package mcp

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/symptom-triage-mcp/internal/domain"
)

// ImportFeedbackParams defines parameters for the import_triage_feedback tool
type ImportFeedbackParams struct {
	FilePath string `json:"file_path" jsonschema:"path to a JSON file written by export_triage_feedback"`
}

// ExportFeedbackResult defines the result of export_triage_feedback
type ExportFeedbackResult struct {
	FilePath string `json:"file_path"`
	Count    int64  `json:"count"`
	Message  string `json:"message"`
}

// ImportFeedbackResult defines the result of import_triage_feedback
type ImportFeedbackResult struct {
	Imported int    `json:"imported"`
	Skipped  int    `json:"skipped"`
	Message  string `json:"message"`
}

func (s *Server) handleExportFeedback(ctx context.Context, req *mcp.CallToolRequest, _ EmptyParams) (*mcp.CallToolResult, any, error) {
	op := s.startOperation(ctx, "export_triage_feedback")

	result, err := s.exportFeedback(ctx)
	op.End(err)
	if err != nil {
		s.logger.WithError(err).Error("Failed to export feedback")
		return s.createErrorResult(domain.ErrCodeStorage, err.Error(), ""), nil, nil
	}
	return s.jsonResult(result)
}

func (s *Server) exportFeedback(ctx context.Context) (*ExportFeedbackResult, error) {
	if err := os.MkdirAll(s.exportDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create export directory: %w", err)
	}

	filename := fmt.Sprintf("triage_feedback_%s.json", time.Now().Format("20060102_150405"))
	filePath := filepath.Join(s.exportDir, filename)

	file, err := os.Create(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to create export file: %w", err)
	}
	defer file.Close()

	if err := s.store.ExportJSON(ctx, file); err != nil {
		return nil, fmt.Errorf("failed to export feedback: %w", err)
	}

	count, err := s.store.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count feedback: %w", err)
	}

	return &ExportFeedbackResult{
		FilePath: filePath,
		Count:    count,
		Message:  fmt.Sprintf("Exported %d feedback entries to %s", count, filePath),
	}, nil
}

func (s *Server) handleImportFeedback(ctx context.Context, req *mcp.CallToolRequest, params ImportFeedbackParams) (*mcp.CallToolResult, any, error) {
	op := s.startOperation(ctx, "import_triage_feedback")

	if params.FilePath == "" {
		op.End(errMissingParameter)
		return s.createErrorResult(domain.ErrCodeInvalidInput, "file_path is required", ""), nil, nil
	}

	file, err := os.Open(params.FilePath)
	if err != nil {
		op.End(err)
		return s.createErrorResult(domain.ErrCodeInvalidInput, fmt.Sprintf("failed to open file: %v", err), ""), nil, nil
	}
	defer file.Close()

	imported, skipped, err := s.store.ImportJSON(ctx, file)
	op.End(err)
	if err != nil {
		s.logger.WithError(err).Error("Failed to import feedback")
		return s.createErrorResult(domain.ErrCodeStorage, err.Error(), ""), nil, nil
	}

	return s.jsonResult(ImportFeedbackResult{
		Imported: imported,
		Skipped:  skipped,
		Message:  fmt.Sprintf("Imported %d entries, skipped %d duplicates", imported, skipped),
	})
}
