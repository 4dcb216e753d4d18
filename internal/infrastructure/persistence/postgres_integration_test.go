//go:build integration

package persistence

import (
	"context"
	"database/sql"
	"path/filepath"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/domain/shared/valueobject"
	"github.com/erp/ledger/internal/infrastructure/migration"
	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func migrationsDir(t *testing.T) string {
	t.Helper()
	_, file, _, ok := runtime.Caller(0)
	require.True(t, ok)
	return filepath.Join(filepath.Dir(file), "..", "..", "..", "migrations")
}

// startPostgres runs a throwaway Postgres, applies the SQL migrations and
// returns a GORM handle on the migrated schema.
func startPostgres(t *testing.T) *gorm.DB {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("ledger_test"),
		tcpostgres.WithUsername("postgres"),
		tcpostgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	sqlDB, err := sql.Open("postgres", dsn)
	require.NoError(t, err)
	m, err := migration.New(sqlDB, migration.Config{MigrationsPath: migrationsDir(t)}, nil)
	require.NoError(t, err)
	require.NoError(t, m.Up())
	status, err := m.Status()
	require.NoError(t, err)
	assert.False(t, status.Dirty)
	require.NoError(t, m.Close())

	db, err := gorm.Open(gormpostgres.Open(dsn), &gorm.Config{
		NamingStrategy: DefaultStorageMapping(),
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	return db
}

func TestPostgres_AccountsOnMigratedSchema(t *testing.T) {
	if testing.Short() {
		t.Skip("needs docker")
	}
	db := startPostgres(t)
	ctx := context.Background()
	repo := NewGormAccountRepository(db, nil)
	tenantID := uuid.New()

	cash, err := ledger.NewAccount(tenantID, "1010", "Cash", ledger.AccountTypeAsset, "", valueobject.DefaultCurrency)
	require.NoError(t, err)
	require.NoError(t, repo.Create(ctx, cash))

	t.Run("duplicate code is a conflict", func(t *testing.T) {
		dup, err := ledger.NewAccount(tenantID, "1010", "Cash again", ledger.AccountTypeAsset, "", valueobject.DefaultCurrency)
		require.NoError(t, err)
		err = repo.Create(ctx, dup)
		assert.ErrorIs(t, err, shared.ErrConflict)
	})

	t.Run("same code in another tenant", func(t *testing.T) {
		other, err := ledger.NewAccount(uuid.New(), "1010", "Cash", ledger.AccountTypeAsset, "", valueobject.DefaultCurrency)
		require.NoError(t, err)
		assert.NoError(t, repo.Create(ctx, other))
	})

	t.Run("concurrent balance deltas are not lost", func(t *testing.T) {
		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				assert.NoError(t, repo.ApplyBalanceDelta(ctx, tenantID, cash.ID, decimal.NewFromFloat(1.25)))
			}()
		}
		wg.Wait()

		found, err := repo.FindByID(ctx, tenantID, cash.ID)
		require.NoError(t, err)
		assert.True(t, decimal.NewFromInt(25).Equal(found.Balance), "balance %s", found.Balance)
	})
}
