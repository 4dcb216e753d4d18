package migration

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"go.uber.org/zap"
)

// DefaultMigrationsTable is where applied schema versions are tracked
const DefaultMigrationsTable = "ledger_schema_migrations"

// Config selects the migration source and where the ledger schema lives
type Config struct {
	MigrationsPath  string
	SchemaName      string // empty uses the connection's search_path
	MigrationsTable string
}

// Migrator applies the ledger's SQL migrations with golang-migrate
type Migrator struct {
	migrate *migrate.Migrate
	path    string
	logger  *zap.Logger
}

// New creates a Migrator on an open database handle. The handle is owned by
// the caller but is closed together with the migrator.
func New(db *sql.DB, cfg Config, logger *zap.Logger) (*Migrator, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if strings.TrimSpace(cfg.MigrationsPath) == "" {
		return nil, errors.New("migrations path is required")
	}
	table := cfg.MigrationsTable
	if table == "" {
		table = DefaultMigrationsTable
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{
		MigrationsTable: table,
		SchemaName:      cfg.SchemaName,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance("file://"+cfg.MigrationsPath, "postgres", driver)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}
	m.Log = &zapMigrateLogger{logger: logger.Named("migrate")}

	return &Migrator{migrate: m, path: cfg.MigrationsPath, logger: logger}, nil
}

// Up applies every pending migration
func (m *Migrator) Up() error {
	m.logger.Info("Applying pending migrations", zap.String("path", m.path))
	if err := m.migrate.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			m.logger.Info("Schema is up to date")
			return nil
		}
		return fmt.Errorf("migration up failed: %w", err)
	}
	return m.logVersion("Migrations applied")
}

// Down rolls back every applied migration
func (m *Migrator) Down() error {
	m.logger.Warn("Rolling back all migrations")
	if err := m.migrate.Down(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			m.logger.Info("No migrations to roll back")
			return nil
		}
		return fmt.Errorf("migration down failed: %w", err)
	}
	m.logger.Info("All migrations rolled back")
	return nil
}

// Steps applies n migrations forward, or -n backward when n is negative
func (m *Migrator) Steps(n int) error {
	if n == 0 {
		return errors.New("step count must not be zero")
	}
	m.logger.Info("Running migration steps", zap.Int("steps", n))
	if err := m.migrate.Steps(n); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			m.logger.Info("No migrations to apply")
			return nil
		}
		return fmt.Errorf("migration steps failed: %w", err)
	}
	return m.logVersion("Migration steps completed")
}

// GoTo migrates up or down to the given version
func (m *Migrator) GoTo(version uint) error {
	m.logger.Info("Migrating to version", zap.Uint("target_version", version))
	if err := m.migrate.Migrate(version); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			m.logger.Info("Already at target version")
			return nil
		}
		return fmt.Errorf("migration to version %d failed: %w", version, err)
	}
	return m.logVersion("Migration to version completed")
}

// Version returns the applied version. Zero means nothing is applied.
func (m *Migrator) Version() (uint, bool, error) {
	version, dirty, err := m.migrate.Version()
	if err != nil {
		if errors.Is(err, migrate.ErrNilVersion) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("failed to get migration version: %w", err)
	}
	return version, dirty, nil
}

// Status reports the applied version together with the migrations on disk
// that are newer than it
func (m *Migrator) Status() (*Status, error) {
	version, dirty, err := m.Version()
	if err != nil {
		return nil, err
	}
	files, err := ListMigrations(m.path)
	if err != nil {
		return nil, err
	}
	return newStatus(version, dirty, files), nil
}

// Force records version as applied without running anything. It is the way
// out of a dirty state after a failed migration was repaired by hand.
func (m *Migrator) Force(version int) error {
	m.logger.Warn("Forcing migration version", zap.Int("version", version))
	if err := m.migrate.Force(version); err != nil {
		return fmt.Errorf("failed to force version %d: %w", version, err)
	}
	return nil
}

// Close releases the source and the database driver
func (m *Migrator) Close() error {
	sourceErr, dbErr := m.migrate.Close()
	if sourceErr != nil {
		return fmt.Errorf("failed to close source: %w", sourceErr)
	}
	if dbErr != nil {
		return fmt.Errorf("failed to close database: %w", dbErr)
	}
	return nil
}

func (m *Migrator) logVersion(msg string) error {
	version, dirty, err := m.Version()
	if err != nil {
		return err
	}
	m.logger.Info(msg, zap.Uint("version", version), zap.Bool("dirty", dirty))
	return nil
}

// Status summarizes the schema state
type Status struct {
	Version uint
	Dirty   bool
	Applied []MigrationInfo
	Pending []MigrationInfo
}

func newStatus(version uint, dirty bool, files []MigrationInfo) *Status {
	s := &Status{Version: version, Dirty: dirty, Applied: []MigrationInfo{}, Pending: []MigrationInfo{}}
	for _, f := range files {
		if f.Version <= uint64(version) {
			s.Applied = append(s.Applied, f)
		} else {
			s.Pending = append(s.Pending, f)
		}
	}
	return s
}

// zapMigrateLogger forwards golang-migrate progress output to zap
type zapMigrateLogger struct {
	logger *zap.Logger
}

func (l *zapMigrateLogger) Printf(format string, v ...any) {
	l.logger.Info(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

func (l *zapMigrateLogger) Verbose() bool {
	return l.logger.Core().Enabled(zap.DebugLevel)
}
