package priors

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/symptom-triage-mcp/internal/domain"
)

// Bootstrap builds the process-wide table from persistence, seeding the store with
// defaults when it is empty. A store that cannot be read or holds an invalid table is
// logged and bypassed: the engine starts from defaults rather than failing.
func Bootstrap(ctx context.Context, store Persister, defaults []domain.ConditionProbability, logger *logrus.Logger) (*Table, error) {
	table, err := NewTable(defaults)
	if err != nil {
		return nil, err
	}
	if store == nil {
		return table, nil
	}

	stored, err := store.Load(ctx)
	if err != nil {
		logger.WithError(err).Warn("Failed to load base priors, starting from defaults")
		return table, nil
	}

	if len(stored) == 0 {
		if err := store.Save(ctx, table.Snapshot()); err != nil {
			logger.WithError(err).Warn("Failed to seed base priors")
		} else {
			logger.WithField("conditions", len(defaults)).Info("Seeded base prior table")
		}
		return table, nil
	}

	if err := table.Replace(stored); err != nil {
		logger.WithError(err).Warn("Stored base priors are invalid, starting from defaults")
		return table, nil
	}

	logger.WithField("conditions", len(stored)).Info("Loaded base prior table")
	return table, nil
}
