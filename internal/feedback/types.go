// Package feedback stores the delayed outcome reports users give after a completed
// triage. Each entry records the top condition it was attributed to and the base prior
// for that condition before and after the adjustment it caused.
package feedback

import (
	"context"
	"io"
	"time"

	"github.com/symptom-triage-mcp/internal/domain"
)

// Entry is one outcome report.
type Entry struct {
	ID             int64          `json:"id,omitempty"`
	SessionID      string         `json:"session_id,omitempty"`      // Empty for condition-keyed adjustments
	PrimarySymptom string         `json:"primary_symptom,omitempty"`
	TopCondition   string         `json:"top_condition"`
	Outcome        domain.Outcome `json:"outcome"`
	PriorBefore    float64        `json:"prior_before"`
	PriorAfter     float64        `json:"prior_after"`
	Applied        bool           `json:"applied"` // Did the report change the base priors?
	Notes          string         `json:"notes,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}

// Store defines the interface for outcome feedback storage.
type Store interface {
	// Save inserts a new entry and assigns its ID and CreatedAt.
	Save(ctx context.Context, entry *Entry) error

	// GetBySession returns the entry recorded for a session, or nil if none exists.
	GetBySession(ctx context.Context, sessionID string) (*Entry, error)

	// List returns entries newest first with pagination.
	List(ctx context.Context, limit, offset int) ([]*Entry, error)

	// ListByCondition returns entries attributed to one condition, newest first.
	ListByCondition(ctx context.Context, condition string, limit int) ([]*Entry, error)

	// Count returns the total number of entries.
	Count(ctx context.Context) (int64, error)

	// Delete removes an entry by ID.
	Delete(ctx context.Context, id int64) error

	// ExportJSON writes every entry to writer.
	ExportJSON(ctx context.Context, writer io.Writer) error

	// ImportJSON reads entries from reader. Session-bound entries whose session
	// already has feedback are skipped.
	ImportJSON(ctx context.Context, reader io.Reader) (imported int, skipped int, err error)

	// Close closes the store and releases resources.
	Close() error
}

// Export represents the JSON export format.
type Export struct {
	Version    string    `json:"version"`
	ExportedAt time.Time `json:"exported_at"`
	Count      int       `json:"count"`
	Entries    []*Entry  `json:"entries"`
}

// maxExportLimit is the maximum number of entries to export at once.
const maxExportLimit = 1000000

func newExport(entries []*Entry) *Export {
	return &Export{
		Version:    "1.0",
		ExportedAt: time.Now(),
		Count:      len(entries),
		Entries:    entries,
	}
}
