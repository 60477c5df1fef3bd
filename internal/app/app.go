// Package app assembles the triage services and their persistence collaborators for
// the server binaries.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/symptom-triage-mcp/internal/api"
	"github.com/symptom-triage-mcp/internal/cache"
	"github.com/symptom-triage-mcp/internal/catalog"
	"github.com/symptom-triage-mcp/internal/config"
	"github.com/symptom-triage-mcp/internal/database"
	"github.com/symptom-triage-mcp/internal/domain"
	"github.com/symptom-triage-mcp/internal/feedback"
	"github.com/symptom-triage-mcp/internal/priors"
	"github.com/symptom-triage-mcp/internal/repository"
	"github.com/symptom-triage-mcp/internal/service"
)

const (
	hotCacheSize = 512
	hotCacheTTL  = time.Minute
)

// Stack is a fully wired set of services. Close releases everything it opened, in
// reverse order.
type Stack struct {
	Catalog       *catalog.Catalog
	Priors        *priors.Table
	Triage        *service.TriageService
	Feedback      *service.FeedbackService
	FeedbackStore feedback.Store
	Health        *api.HealthChecker
	Archive       api.SessionArchive

	closers []func()
}

func (s *Stack) onClose(fn func()) {
	s.closers = append(s.closers, fn)
}

// Close waits for pending archive writes and closes every store.
func (s *Stack) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.closers = nil
}

// NewFullStack wires the services onto Postgres and Redis.
func NewFullStack(ctx context.Context, configManager *config.Manager, logger *logrus.Logger) (_ *Stack, err error) {
	cfg := configManager.GetConfig()
	stack := &Stack{Health: api.NewHealthChecker()}
	defer func() {
		if err != nil {
			stack.Close()
		}
	}()

	stack.Catalog, err = catalog.LoadOrDefault(cfg.Triage.CatalogFile)
	if err != nil {
		return nil, err
	}

	db, err := database.NewConnection(ctx, database.ConfigFrom(cfg.Database), logger)
	if err != nil {
		return nil, err
	}
	stack.onClose(db.Close)
	stack.Health.Register("database", db.Health)

	if err := migrate(ctx, configManager.GetDatabaseURL(), cfg.Database.MigrationsPath, logger); err != nil {
		return nil, err
	}

	priorStore, err := priors.NewPostgresStoreFromURL(configManager.GetDatabaseURL())
	if err != nil {
		return nil, err
	}
	stack.onClose(func() { priorStore.Close() })

	feedbackStore, err := feedback.NewPostgresStoreFromURL(configManager.GetDatabaseURL())
	if err != nil {
		return nil, err
	}
	stack.onClose(func() { feedbackStore.Close() })

	redisCache, err := cache.NewRedisCache(cfg.Cache, cfg.Triage.SessionTTL)
	if err != nil {
		return nil, err
	}
	stack.onClose(func() { redisCache.Close() })
	stack.Health.Register("cache", redisCache.Ping)

	sessionCache, err := cache.NewTieredCache(redisCache, hotCacheSize, hotCacheTTL)
	if err != nil {
		return nil, err
	}

	repo := repository.NewSessionRepository(db.Pool, logger)
	stack.Archive = repo
	if err := stack.build(ctx, priorStore, feedbackStore, sessionCache, repo, cfg.Triage, cfg.Breaker, logger); err != nil {
		return nil, err
	}
	return stack, nil
}

// NewLiteStack wires the services onto SQLite files under the data directory and an
// in-memory session cache.
func NewLiteStack(ctx context.Context, cfg *config.LiteConfig, logger *logrus.Logger) (_ *Stack, err error) {
	stack := &Stack{Health: api.NewHealthChecker()}
	defer func() {
		if err != nil {
			stack.Close()
		}
	}()

	if err := cfg.EnsureDataDir(); err != nil {
		return nil, err
	}

	stack.Catalog, err = catalog.LoadOrDefault(cfg.CatalogFile)
	if err != nil {
		return nil, err
	}

	priorStore, err := priors.NewSQLiteStore(cfg.PriorsDBPath())
	if err != nil {
		return nil, err
	}
	stack.onClose(func() { priorStore.Close() })

	feedbackStore, err := feedback.NewSQLiteStore(cfg.FeedbackDBPath())
	if err != nil {
		return nil, err
	}
	stack.onClose(func() { feedbackStore.Close() })

	repo, err := repository.NewSQLiteSessionRepository(cfg.SessionsDBPath(), logger)
	if err != nil {
		return nil, err
	}
	stack.onClose(func() { repo.Close() })
	stack.Health.Register("sessions", repo.Ping)
	stack.Archive = repo

	sessionCache := cache.NewMemoryCache(cfg.CacheMaxItems, cfg.SessionTTL)

	if err := stack.build(ctx, priorStore, feedbackStore, sessionCache, repo, cfg.TriageConfig(), domain.BreakerConfig{}, logger); err != nil {
		return nil, err
	}
	return stack, nil
}

func (s *Stack) build(
	ctx context.Context,
	priorStore priors.Persister,
	feedbackStore feedback.Store,
	sessionCache domain.SessionCache,
	repo domain.SessionRepository,
	triageCfg domain.TriageConfig,
	breakerCfg domain.BreakerConfig,
	logger *logrus.Logger,
) error {
	table, err := priors.Bootstrap(ctx, priorStore, s.Catalog.BasePriors(), logger)
	if err != nil {
		return fmt.Errorf("failed to initialize base priors: %w", err)
	}

	recorder := service.NewSessionRecorder(repo, breakerCfg, logger)
	s.onClose(recorder.Wait)

	engine := service.NewTriageEngine(s.Catalog, table, logger)
	s.Priors = table
	s.Triage = service.NewTriageService(engine, sessionCache, recorder, logger)
	s.FeedbackStore = feedbackStore
	s.Feedback = service.NewFeedbackService(
		service.NewFeedbackAdjuster(table, priorStore, logger),
		feedbackStore,
		s.Triage,
		triageCfg,
		logger,
	)
	return nil
}

func migrate(ctx context.Context, databaseURL, migrationsPath string, logger *logrus.Logger) error {
	runner, err := database.NewMigrationRunner(databaseURL, migrationsPath, logger)
	if err != nil {
		return err
	}
	defer runner.Close()

	return runner.Up(ctx)
}
