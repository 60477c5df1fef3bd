package database

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/sirupsen/logrus"
)

// SchemaVersion is the newest migration this build ships.
const SchemaVersion uint = 1

// ErrDirtySchema is returned when a previous migration failed half-way and the
// schema needs manual repair before the server can start.
var ErrDirtySchema = errors.New("triage schema is dirty")

// SchemaStatus describes the migration state of the triage tables.
type SchemaStatus struct {
	Version uint
	Dirty   bool
	Applied bool // false on a database that has never been migrated
}

// MigrationRunner applies the SQL files under migrations/ with golang-migrate.
type MigrationRunner struct {
	migrate *migrate.Migrate
	log     *logrus.Logger
}

// NewMigrationRunner opens the file source at migrationsPath against databaseURL.
func NewMigrationRunner(databaseURL, migrationsPath string, logger *logrus.Logger) (*MigrationRunner, error) {
	if migrationsPath == "" {
		migrationsPath = "migrations"
	}
	m, err := migrate.New("file://"+migrationsPath, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("creating migration instance: %w", err)
	}
	m.Log = migrateLogger{logger}

	return &MigrationRunner{
		migrate: m,
		log:     logger,
	}, nil
}

// Status reports the current schema version.
func (mr *MigrationRunner) Status() (SchemaStatus, error) {
	version, dirty, err := mr.migrate.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return SchemaStatus{}, nil
	}
	if err != nil {
		return SchemaStatus{}, fmt.Errorf("reading schema version: %w", err)
	}
	return SchemaStatus{Version: version, Dirty: dirty, Applied: true}, nil
}

// Up applies every pending migration. It refuses to run on a dirty schema or on a
// schema newer than SchemaVersion. Cancelling ctx stops after the migration in flight.
func (mr *MigrationRunner) Up(ctx context.Context) error {
	before, err := mr.Status()
	if err != nil {
		return err
	}
	if before.Dirty {
		return fmt.Errorf("%w at version %d", ErrDirtySchema, before.Version)
	}
	if before.Version > SchemaVersion {
		return fmt.Errorf("triage schema version %d is newer than supported version %d", before.Version, SchemaVersion)
	}

	return mr.run(ctx, "up", mr.migrate.Up)
}

// Down rolls back one migration.
func (mr *MigrationRunner) Down(ctx context.Context) error {
	return mr.run(ctx, "down", func() error { return mr.migrate.Steps(-1) })
}

func (mr *MigrationRunner) run(ctx context.Context, direction string, step func() error) error {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			mr.migrate.GracefulStop <- true
		case <-done:
		}
	}()

	err := step()
	if errors.Is(err, migrate.ErrNoChange) {
		mr.log.WithField("direction", direction).Debug("Triage schema unchanged")
		return nil
	}
	if err != nil {
		return fmt.Errorf("running migrations %s: %w", direction, err)
	}

	status, err := mr.Status()
	if err != nil {
		mr.log.WithError(err).Warn("Could not read schema version after migrating")
		return nil
	}
	mr.log.WithFields(logrus.Fields{
		"direction": direction,
		"version":   status.Version,
		"dirty":     status.Dirty,
	}).Info("Migrated triage schema")
	return nil
}

// Version returns the current migration version
func (mr *MigrationRunner) Version() (uint, bool, error) {
	return mr.migrate.Version()
}

// Close closes the migration runner
func (mr *MigrationRunner) Close() error {
	sourceErr, dbErr := mr.migrate.Close()
	if sourceErr != nil {
		return fmt.Errorf("closing migration source: %w", sourceErr)
	}
	if dbErr != nil {
		return fmt.Errorf("closing migration database: %w", dbErr)
	}
	return nil
}

// migrateLogger routes golang-migrate's progress output to logrus at debug level.
type migrateLogger struct {
	logger *logrus.Logger
}

func (l migrateLogger) Printf(format string, v ...interface{}) {
	l.logger.WithField("component", "migrate").Debug(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

func (l migrateLogger) Verbose() bool {
	return l.logger.IsLevelEnabled(logrus.DebugLevel)
}
