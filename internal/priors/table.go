// Package priors holds the process-wide base prior table consulted when a triage
// session is initialized, and its persistence adapters.
package priors

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/symptom-triage-mcp/internal/domain"
)

// Persister loads and stores the base prior table. Implementations are collaborators
// outside the pure core; a failed Save must never fail the caller's operation.
type Persister interface {
	Load(ctx context.Context) ([]domain.ConditionProbability, error)
	Save(ctx context.Context, priors []domain.ConditionProbability) error
	Close() error
}

// Table is the shared, mutable base prior table. Reads return copies; all writes go
// through Update so a read-modify-normalize-write is a single critical section.
type Table struct {
	mu         sync.RWMutex
	conditions []string
	values     map[string]float64
	version    int64
}

// NewTable builds a table from an ordered prior list. The list must be non-empty,
// free of duplicates and sum to 1 within 1e-6.
func NewTable(priors []domain.ConditionProbability) (*Table, error) {
	conditions, values, err := fromList(priors)
	if err != nil {
		return nil, err
	}
	return &Table{conditions: conditions, values: values}, nil
}

// Snapshot returns a private, ordered copy of the current table.
func (t *Table) Snapshot() []domain.ConditionProbability {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return t.listLocked()
}

// Get returns the prior for a single condition.
func (t *Table) Get(condition string) (float64, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	v, ok := t.values[condition]
	return v, ok
}

// Version increments on every successful write.
func (t *Table) Version() int64 {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return t.version
}

// Update runs fn against a working copy of the table values while holding the write
// lock. If fn returns an error, or leaves the table unnormalizable, nothing is
// written. The returned snapshot and version reflect the table after the call.
func (t *Table) Update(fn func(values map[string]float64) error) ([]domain.ConditionProbability, int64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	working := make(map[string]float64, len(t.values))
	for k, v := range t.values {
		working[k] = v
	}

	if err := fn(working); err != nil {
		return t.listLocked(), t.version, err
	}

	sum := 0.0
	for _, c := range t.conditions {
		v, ok := working[c]
		if !ok || math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return t.listLocked(), t.version, fmt.Errorf("invalid prior for %q after update: %v", c, v)
		}
		sum += v
	}
	if len(working) != len(t.conditions) {
		return t.listLocked(), t.version, fmt.Errorf("update changed the condition set")
	}
	if sum <= 0 {
		return t.listLocked(), t.version, fmt.Errorf("prior table sums to %v after update", sum)
	}

	for _, c := range t.conditions {
		t.values[c] = working[c] / sum
	}
	t.version++

	return t.listLocked(), t.version, nil
}

// Replace swaps in a whole new table, typically one loaded from persistence.
func (t *Table) Replace(priors []domain.ConditionProbability) error {
	conditions, values, err := fromList(priors)
	if err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.conditions = conditions
	t.values = values
	t.version++
	return nil
}

func (t *Table) listLocked() []domain.ConditionProbability {
	out := make([]domain.ConditionProbability, 0, len(t.conditions))
	for _, c := range t.conditions {
		out = append(out, domain.ConditionProbability{Condition: c, Probability: t.values[c]})
	}
	return out
}

func fromList(priors []domain.ConditionProbability) ([]string, map[string]float64, error) {
	if len(priors) == 0 {
		return nil, nil, fmt.Errorf("prior table is empty")
	}

	conditions := make([]string, 0, len(priors))
	values := make(map[string]float64, len(priors))
	sum := 0.0
	for _, p := range priors {
		if p.Condition == "" {
			return nil, nil, fmt.Errorf("prior with empty condition")
		}
		if _, dup := values[p.Condition]; dup {
			return nil, nil, fmt.Errorf("duplicate prior for %q", p.Condition)
		}
		if math.IsNaN(p.Probability) || p.Probability < 0 || p.Probability > 1 {
			return nil, nil, fmt.Errorf("prior for %q out of range: %v", p.Condition, p.Probability)
		}
		conditions = append(conditions, p.Condition)
		values[p.Condition] = p.Probability
		sum += p.Probability
	}
	if math.Abs(sum-1) > 1e-6 {
		return nil, nil, fmt.Errorf("priors sum to %v, want 1", sum)
	}

	return conditions, values, nil
}
