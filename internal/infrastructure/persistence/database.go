package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/erp/ledger/internal/infrastructure/config"
	"github.com/erp/ledger/internal/infrastructure/persistence/models"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Database holds the database connection and the storage mapping every
// repository resolves its tables through
type Database struct {
	DB      *gorm.DB
	Mapping *StorageMapping
}

// NewDatabase creates a new database connection with the given configuration
func NewDatabase(cfg *config.DatabaseConfig, storage config.StorageConfig) (*Database, error) {
	return NewDatabaseWithCustomLogger(cfg, storage, logger.Default.LogMode(logger.Silent))
}

// NewDatabaseWithCustomLogger creates a new database connection using the
// given GORM logger, typically the zap-backed one
func NewDatabaseWithCustomLogger(cfg *config.DatabaseConfig, storage config.StorageConfig, gormLogger logger.Interface) (*Database, error) {
	mapping, err := NewStorageMapping(storage.Schema, storage.Tables)
	if err != nil {
		return nil, fmt.Errorf("invalid storage mapping: %w", err)
	}

	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger:                 gormLogger,
		NamingStrategy:         mapping,
		SkipDefaultTransaction: true,
		PrepareStmt:            true,
		TranslateError:         true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Minute)
	sqlDB.SetConnMaxIdleTime(time.Duration(cfg.ConnMaxIdleTime) * time.Minute)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Database{DB: db, Mapping: mapping}, nil
}

// Close closes the database connection
func (d *Database) Close() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	return sqlDB.Close()
}

// Ping checks if the database connection is alive
func (d *Database) Ping(ctx context.Context) error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	return sqlDB.PingContext(ctx)
}

// Stats returns database connection pool statistics and an error if unable to retrieve
func (d *Database) Stats() (ConnectionStats, error) {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return ConnectionStats{}, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	stats := sqlDB.Stats()
	return ConnectionStats{
		MaxOpenConnections: stats.MaxOpenConnections,
		OpenConnections:    stats.OpenConnections,
		InUse:              stats.InUse,
		Idle:               stats.Idle,
		WaitCount:          stats.WaitCount,
		WaitDuration:       stats.WaitDuration,
	}, nil
}

// ConnectionStats holds database connection pool statistics
type ConnectionStats struct {
	MaxOpenConnections int
	OpenConnections    int
	InUse              int
	Idle               int
	WaitCount          int64
	WaitDuration       time.Duration
}

// Scope returns the unit-of-work scope bound to this database
func (d *Database) Scope() *GormScope {
	return NewGormScope(d.DB, d.Mapping)
}

// IdempotencyStore returns a store that commits outside any unit of work
func (d *Database) IdempotencyStore() *GormIdempotencyStore {
	return NewGormIdempotencyStore(d.DB)
}

// AutoMigrate creates or updates every mapped table. Production schemas are
// managed by the SQL migrations; this serves tests and local tooling.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(AllModels()...)
}

// AllModels lists every persisted model
func AllModels() []any {
	return []any{
		&models.AccountModel{},
		&models.JournalEntryModel{},
		&models.JournalLineModel{},
		&models.FiscalYearModel{},
		&models.AccountingPeriodModel{},
		&models.InvoiceModel{},
		&models.InvoiceItemModel{},
		&models.PaymentModel{},
		&models.PaymentAllocationModel{},
		&models.ReceivableModel{},
		&models.IdempotencyRecordModel{},
		&models.AuditEntryModel{},
		&models.CustomerRefModel{},
	}
}
