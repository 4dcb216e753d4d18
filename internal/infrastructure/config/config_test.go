package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearLedgerEnv blanks every variable the tests touch. Empty values are
// ignored by viper, and t.Setenv restores the originals afterwards.
func clearLedgerEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"LEDGER_APP_NAME", "LEDGER_APP_ENV", "LEDGER_APP_PORT",
		"LEDGER_DATABASE_HOST", "LEDGER_DATABASE_PORT", "LEDGER_DATABASE_PASSWORD",
		"LEDGER_DATABASE_SSLMODE", "LEDGER_DATABASE_MAX_OPEN_CONNS", "LEDGER_DATABASE_MAX_IDLE_CONNS",
		"LEDGER_JWT_SECRET", "LEDGER_JWT_ALLOW_DEV_HEADERS",
		"LEDGER_EVENT_DEDUPE_BACKEND", "LEDGER_LEDGER_EPSILON", "LEDGER_LEDGER_POST_PAYMENTS", "LEDGER_LEDGER_BASE_CURRENCY",
		"LEDGER_IDEMPOTENCY_POLL_INTERVAL", "LEDGER_IDEMPOTENCY_WAIT_TIMEOUT",
		"LEDGER_CUSTOMERS_REQUIRE_REGISTERED",
		"LEDGER_PROFILING_ENABLED", "LEDGER_PROFILING_SERVER_ADDRESS", "LEDGER_PROFILING_APPLICATION_NAME",
	} {
		t.Setenv(k, "")
	}
}

func TestLoad(t *testing.T) {
	t.Run("loads default values when env vars not set", func(t *testing.T) {
		clearLedgerEnv(t)

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "ledger", cfg.App.Name)
		assert.Equal(t, "development", cfg.App.Env)
		assert.Equal(t, "8080", cfg.App.Port)
		assert.Equal(t, "localhost", cfg.Database.Host)
		assert.Equal(t, 5432, cfg.Database.Port)
		assert.Equal(t, "ledger", cfg.Database.DBName)
		assert.Equal(t, 25, cfg.Database.MaxOpenConns)
		assert.Equal(t, "memory", cfg.Event.DedupeBackend)
		assert.Equal(t, "0.005", cfg.Ledger.Epsilon.String())
		assert.Equal(t, "1200", cfg.Ledger.ReceivableAccount)
		assert.Equal(t, "4000", cfg.Ledger.RevenueAccount)
		assert.Equal(t, "USD", cfg.Ledger.BaseCurrency)
		assert.True(t, cfg.Ledger.PostPayments)
		assert.Equal(t, 30, cfg.Ledger.PaymentTermsDays)
		assert.Equal(t, 50*time.Millisecond, cfg.Idempotency.PollInterval)
		assert.Equal(t, 5*time.Second, cfg.Idempotency.WaitTimeout)
		assert.Equal(t, 24*time.Hour, cfg.Idempotency.Retention)
		assert.False(t, cfg.Customers.RequireRegistered)
		assert.Equal(t, "/metrics", cfg.Metrics.Path)
	})

	t.Run("loads values from environment variables with LEDGER prefix", func(t *testing.T) {
		clearLedgerEnv(t)
		t.Setenv("LEDGER_APP_PORT", "9000")
		t.Setenv("LEDGER_DATABASE_HOST", "testdb.local")
		t.Setenv("LEDGER_DATABASE_MAX_OPEN_CONNS", "50")
		t.Setenv("LEDGER_LEDGER_EPSILON", "0.001")
		t.Setenv("LEDGER_LEDGER_POST_PAYMENTS", "false")
		t.Setenv("LEDGER_EVENT_DEDUPE_BACKEND", "redis")
		t.Setenv("LEDGER_CUSTOMERS_REQUIRE_REGISTERED", "true")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "9000", cfg.App.Port)
		assert.Equal(t, "testdb.local", cfg.Database.Host)
		assert.Equal(t, 50, cfg.Database.MaxOpenConns)
		assert.Equal(t, "0.001", cfg.Ledger.Epsilon.String())
		assert.False(t, cfg.Ledger.PostPayments)
		assert.Equal(t, "redis", cfg.Event.DedupeBackend)
		assert.True(t, cfg.Customers.RequireRegistered)
	})

	t.Run("validates MaxIdleConns cannot exceed MaxOpenConns", func(t *testing.T) {
		clearLedgerEnv(t)
		t.Setenv("LEDGER_DATABASE_MAX_OPEN_CONNS", "10")
		t.Setenv("LEDGER_DATABASE_MAX_IDLE_CONNS", "20")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "cannot exceed")
	})

	t.Run("rejects a malformed epsilon", func(t *testing.T) {
		clearLedgerEnv(t)
		t.Setenv("LEDGER_LEDGER_EPSILON", "abc")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "ledger.epsilon")
	})

	t.Run("rejects an epsilon of one or more", func(t *testing.T) {
		clearLedgerEnv(t)
		t.Setenv("LEDGER_LEDGER_EPSILON", "1")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "ledger.epsilon must be in")
	})

	t.Run("normalizes and validates the base currency", func(t *testing.T) {
		clearLedgerEnv(t)
		t.Setenv("LEDGER_LEDGER_BASE_CURRENCY", " eur ")
		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, "EUR", cfg.Ledger.BaseCurrency)

		t.Setenv("LEDGER_LEDGER_BASE_CURRENCY", "EURO")
		_, err = Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "ledger.base_currency")
	})

	t.Run("profiling needs a server address", func(t *testing.T) {
		clearLedgerEnv(t)
		cfg, err := Load()
		require.NoError(t, err)
		assert.False(t, cfg.Profiling.Enabled)
		assert.Equal(t, "ledger", cfg.Profiling.ApplicationName)

		t.Setenv("LEDGER_PROFILING_ENABLED", "true")
		_, err = Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "profiling.server_address")

		t.Setenv("LEDGER_PROFILING_SERVER_ADDRESS", "http://pyroscope:4040")
		cfg, err = Load()
		require.NoError(t, err)
		assert.True(t, cfg.Profiling.Enabled)
	})

	t.Run("rejects an unknown dedupe backend", func(t *testing.T) {
		clearLedgerEnv(t)
		t.Setenv("LEDGER_EVENT_DEDUPE_BACKEND", "kafka")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "event.dedupe_backend")
	})

	t.Run("poll interval must be shorter than the wait timeout", func(t *testing.T) {
		clearLedgerEnv(t)
		t.Setenv("LEDGER_IDEMPOTENCY_POLL_INTERVAL", "2s")
		t.Setenv("LEDGER_IDEMPOTENCY_WAIT_TIMEOUT", "1s")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "idempotency.poll_interval")
	})
}

func TestLoadFile(t *testing.T) {
	clearLedgerEnv(t)
	path := filepath.Join(t.TempDir(), "ledger.toml")
	content := `
[storage]
schema = "finance"

[storage.tables]
invoice = "ar_invoices"

[ledger]
receivable_account = "1100"
tax_payable_account = "2100"

[ledger.cash_accounts]
cash = "1000"
bank_transfer = "1020"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "finance", cfg.Storage.Schema)
	assert.Equal(t, "ar_invoices", cfg.Storage.Tables["invoice"])
	assert.Equal(t, "1100", cfg.Ledger.ReceivableAccount)
	assert.Equal(t, "2100", cfg.Ledger.TaxPayableAccount)
	assert.Equal(t, "1020", cfg.Ledger.CashAccounts["bank_transfer"])

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}

func TestLoad_ProductionValidation(t *testing.T) {
	setValidProductionBase := func(t *testing.T) {
		clearLedgerEnv(t)
		t.Setenv("LEDGER_APP_ENV", "production")
		t.Setenv("LEDGER_JWT_SECRET", "this-is-a-very-secure-jwt-secret-key-32chars")
		t.Setenv("LEDGER_DATABASE_PASSWORD", "secure-password")
		t.Setenv("LEDGER_DATABASE_SSLMODE", "require")
	}

	t.Run("passes validation with valid production config", func(t *testing.T) {
		setValidProductionBase(t)

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, "production", cfg.App.Env)
	})

	tests := []struct {
		name    string
		key     string
		value   string
		wantErr string
	}{
		{"requires jwt.secret", "LEDGER_JWT_SECRET", "", "jwt.secret is required in production"},
		{"requires a long jwt.secret", "LEDGER_JWT_SECRET", "short-secret", "at least 32 characters"},
		{"requires database.password", "LEDGER_DATABASE_PASSWORD", "", "database.password is required"},
		{"requires SSL", "LEDGER_DATABASE_SSLMODE", "disable", "database.sslmode cannot be 'disable'"},
		{"forbids dev headers", "LEDGER_JWT_ALLOW_DEV_HEADERS", "true", "jwt.allow_dev_headers"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setValidProductionBase(t)
			t.Setenv(tt.key, tt.value)

			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestDatabaseConfig_DSN(t *testing.T) {
	t.Run("generates valid DSN", func(t *testing.T) {
		cfg := DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "testuser",
			Password: "testpass",
			DBName:   "testdb",
			SSLMode:  "disable",
		}

		dsn := cfg.DSN()
		assert.Contains(t, dsn, "localhost:5432")
		assert.Contains(t, dsn, "testuser")
		assert.Contains(t, dsn, "/testdb")
		assert.Contains(t, dsn, "sslmode=disable")
	})

	t.Run("escapes special characters in password", func(t *testing.T) {
		cfg := DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "user",
			Password: "pass@word#123",
			DBName:   "db",
			SSLMode:  "disable",
		}

		assert.Contains(t, cfg.DSN(), "pass%40word%23123")
	})
}

func TestRedisConfig_Addr(t *testing.T) {
	assert.Equal(t, "cache:6380", RedisConfig{Host: "cache", Port: 6380}.Addr())
}
