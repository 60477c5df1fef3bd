package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/symptom-triage-mcp/internal/domain"
	"github.com/symptom-triage-mcp/internal/priors"
)

// Bounds applied to the adjusted condition's prior before the table is renormalized.
const (
	MinAdjustedPrior = 0.05
	MaxAdjustedPrior = 0.95
)

// outcomeAdjustments is the signed nudge each outcome applies to the top condition.
var outcomeAdjustments = map[domain.Outcome]float64{
	domain.OutcomeBetter:      0.05,
	domain.OutcomeSame:        -0.02,
	domain.OutcomeWorse:       -0.10,
	domain.OutcomeSideEffects: -0.05,
}

var errUnknownCondition = errors.New("condition not in prior table")

// Adjustment describes one feedback-driven change to the base prior table.
type Adjustment struct {
	Condition string                        `json:"condition"`
	Outcome   domain.Outcome                `json:"outcome"`
	Applied   bool                          `json:"applied"`
	Before    float64                       `json:"before"`
	Clamped   float64                       `json:"clamped"` // Adjusted value before renormalization
	After     float64                       `json:"after"`
	Priors    []domain.ConditionProbability `json:"priors"`
	Version   int64                         `json:"version"`
}

// FeedbackAdjuster nudges the shared base prior table from delayed outcome reports.
// Only sessions initialized after an adjustment see its effect.
type FeedbackAdjuster struct {
	table     *priors.Table
	store     priors.Persister
	logger    *logrus.Logger
	persistMu sync.Mutex
}

// NewFeedbackAdjuster creates an adjuster. store may be nil.
func NewFeedbackAdjuster(table *priors.Table, store priors.Persister, logger *logrus.Logger) *FeedbackAdjuster {
	return &FeedbackAdjuster{
		table:  table,
		store:  store,
		logger: logger,
	}
}

// Adjust applies outcome to topCondition as one read-modify-normalize-write. An
// unknown condition is a no-op and not an error. Persisting the new table is best
// effort: a failed save is logged and the in-memory adjustment stands.
func (a *FeedbackAdjuster) Adjust(ctx context.Context, topCondition string, outcome domain.Outcome) (*Adjustment, error) {
	delta, ok := outcomeAdjustments[outcome]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidOutcome, outcome)
	}

	result := &Adjustment{Condition: topCondition, Outcome: outcome}
	snapshot, version, err := a.table.Update(func(values map[string]float64) error {
		p, ok := values[topCondition]
		if !ok {
			return errUnknownCondition
		}
		result.Before = p
		result.Clamped = clamp(p+delta, MinAdjustedPrior, MaxAdjustedPrior)
		values[topCondition] = result.Clamped
		return nil
	})
	result.Priors = snapshot
	result.Version = version

	if errors.Is(err, errUnknownCondition) {
		a.logger.WithFields(logrus.Fields{
			"condition": topCondition,
			"outcome":   outcome,
		}).Info("Feedback for unknown condition ignored")
		return result, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to adjust base priors: %w", err)
	}

	result.Applied = true
	for _, p := range snapshot {
		if p.Condition == topCondition {
			result.After = p.Probability
		}
	}

	a.logger.WithFields(logrus.Fields{
		"condition": topCondition,
		"outcome":   outcome,
		"before":    result.Before,
		"after":     result.After,
	}).Info("Adjusted base priors from feedback")

	a.persist(ctx)
	return result, nil
}

// Priors returns a snapshot of the current base prior table.
func (a *FeedbackAdjuster) Priors() []domain.ConditionProbability {
	return a.table.Snapshot()
}

// persist saves the latest table. Saves are serialized and always write the newest
// snapshot, so a slow save cannot overwrite a later adjustment.
func (a *FeedbackAdjuster) persist(ctx context.Context) {
	if a.store == nil {
		return
	}

	a.persistMu.Lock()
	defer a.persistMu.Unlock()

	if err := a.store.Save(ctx, a.table.Snapshot()); err != nil {
		a.logger.WithError(err).Warn("Failed to persist base priors")
	}
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
