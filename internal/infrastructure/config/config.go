package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
	"golang.org/x/text/currency"
)

// Config holds all application configuration
type Config struct {
	App         AppConfig
	Database    DatabaseConfig
	Storage     StorageConfig
	Redis       RedisConfig
	JWT         JWTConfig
	Log         LogConfig
	Event       EventConfig
	HTTP        HTTPConfig
	Idempotency IdempotencyConfig
	Ledger      LedgerConfig
	Customers   CustomersConfig
	Metrics     MetricsConfig
	Telemetry   TelemetryConfig
	Profiling   ProfilingConfig
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
	Port string
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // in minutes
	ConnMaxIdleTime int // in minutes
}

// StorageConfig maps logical entities onto physical tables
type StorageConfig struct {
	Schema string            // optional schema prefix, e.g. "ledger"
	Tables map[string]string // entity name -> table name overrides
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// Addr returns host:port
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// JWTConfig holds bearer token verification settings
type JWTConfig struct {
	Secret string
	Issuer string
	// AllowDevHeaders accepts X-Tenant-ID / X-User-ID instead of a token.
	// Never honoured in production.
	AllowDevHeaders bool
}

// EventConfig holds in-process event dispatch settings
type EventConfig struct {
	DedupeBackend string        // memory or redis
	DedupeTTL     time.Duration // how long processed event ids are remembered
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
	IdleTimeout      time.Duration
	MaxHeaderBytes   int
	MaxBodySize      int64
	CORSAllowOrigins []string
	CORSAllowMethods []string
	CORSAllowHeaders []string
	TrustedProxies   []string
}

// IdempotencyConfig holds idempotency key settings
type IdempotencyConfig struct {
	PollInterval    time.Duration // how often a waiting request re-reads an in-flight key
	WaitTimeout     time.Duration // how long it waits before failing with a conflict
	Retention       time.Duration // how long completed keys are kept
	JanitorInterval time.Duration // how often expired keys are purged
}

// LedgerConfig holds posting rules and the chart-of-accounts codes used by
// invoice and payment postings
type LedgerConfig struct {
	Epsilon              decimal.Decimal
	BaseCurrency         string // ISO 4217 code the chart of accounts is kept in
	ReceivableAccount    string
	RevenueAccount       string
	TaxPayableAccount    string
	CashAccounts         map[string]string // payment method -> account code
	DefaultCashAccount   string
	PostPayments         bool
	PaymentTermsDays     int
	AgingRefreshInterval time.Duration
}

// CustomersConfig holds customer directory settings
type CustomersConfig struct {
	RequireRegistered bool
	CacheTTL          time.Duration
}

// MetricsConfig holds Prometheus settings
type MetricsConfig struct {
	Enabled bool
	Path    string
}

// TelemetryConfig holds OpenTelemetry configuration
type TelemetryConfig struct {
	Enabled           bool    // Whether to enable OpenTelemetry
	CollectorEndpoint string  // OTEL Collector endpoint (e.g., "localhost:4317")
	SamplingRatio     float64 // Sampling ratio (0.0-1.0, 1.0 = 100%)
	ServiceName       string  // Service name for traces
	Insecure          bool    // Use insecure (non-TLS) connection (development only)
	// Database tracing options
	DBTraceEnabled    bool          // Enable database query tracing (otelgorm)
	DBLogFullSQL      bool          // Log full SQL statements (dev only, disable in prod for security)
	DBSlowQueryThresh time.Duration // Slow query threshold for warnings (default: 200ms)
}

// ProfilingConfig holds Pyroscope continuous profiling settings
type ProfilingConfig struct {
	Enabled              bool
	ServerAddress        string // e.g. "http://pyroscope:4040"
	ApplicationName      string
	BasicAuthUser        string
	BasicAuthPassword    string
	SpanProfiles         bool // link CPU profiles to trace spans
	MutexProfileFraction int
	BlockProfileRate     int
}

// Load loads configuration from the default locations.
// Priority (highest to lowest):
// 1. Environment variables with LEDGER_ prefix (e.g., LEDGER_DATABASE_PASSWORD)
// 2. .env in the working directory (only fills variables that are not set)
// 3. config.toml
// 4. Built-in defaults
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile is Load with an explicit config file. An empty path searches the
// default locations.
func LoadFile(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("error reading .env file: %w", err)
	}

	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("toml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/ledger")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	v.SetEnvPrefix("LEDGER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	epsilon := decimal.Zero
	if raw := strings.TrimSpace(v.GetString("ledger.epsilon")); raw != "" {
		var err error
		if epsilon, err = decimal.NewFromString(raw); err != nil {
			return nil, fmt.Errorf("ledger.epsilon %q is not a decimal: %w", raw, err)
		}
	}

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		Database: DatabaseConfig{
			Host:            v.GetString("database.host"),
			Port:            v.GetInt("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			DBName:          v.GetString("database.dbname"),
			SSLMode:         v.GetString("database.sslmode"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetInt("database.conn_max_lifetime"),
			ConnMaxIdleTime: v.GetInt("database.conn_max_idle_time"),
		},
		Storage: StorageConfig{
			Schema: v.GetString("storage.schema"),
			Tables: v.GetStringMapString("storage.tables"),
		},
		Redis: RedisConfig{
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		JWT: JWTConfig{
			Secret:          v.GetString("jwt.secret"),
			Issuer:          v.GetString("jwt.issuer"),
			AllowDevHeaders: v.GetBool("jwt.allow_dev_headers"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		Event: EventConfig{
			DedupeBackend: v.GetString("event.dedupe_backend"),
			DedupeTTL:     v.GetDuration("event.dedupe_ttl"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:      v.GetDuration("http.read_timeout"),
			WriteTimeout:     v.GetDuration("http.write_timeout"),
			IdleTimeout:      v.GetDuration("http.idle_timeout"),
			MaxHeaderBytes:   v.GetInt("http.max_header_bytes"),
			MaxBodySize:      v.GetInt64("http.max_body_size"),
			CORSAllowOrigins: v.GetStringSlice("http.cors_allow_origins"),
			CORSAllowMethods: v.GetStringSlice("http.cors_allow_methods"),
			CORSAllowHeaders: v.GetStringSlice("http.cors_allow_headers"),
			TrustedProxies:   v.GetStringSlice("http.trusted_proxies"),
		},
		Idempotency: IdempotencyConfig{
			PollInterval:    v.GetDuration("idempotency.poll_interval"),
			WaitTimeout:     v.GetDuration("idempotency.wait_timeout"),
			Retention:       v.GetDuration("idempotency.retention"),
			JanitorInterval: v.GetDuration("idempotency.janitor_interval"),
		},
		Ledger: LedgerConfig{
			Epsilon:              epsilon,
			BaseCurrency:         strings.ToUpper(strings.TrimSpace(v.GetString("ledger.base_currency"))),
			ReceivableAccount:    v.GetString("ledger.receivable_account"),
			RevenueAccount:       v.GetString("ledger.revenue_account"),
			TaxPayableAccount:    v.GetString("ledger.tax_payable_account"),
			CashAccounts:         v.GetStringMapString("ledger.cash_accounts"),
			DefaultCashAccount:   v.GetString("ledger.default_cash_account"),
			PostPayments:         !v.IsSet("ledger.post_payments") || v.GetBool("ledger.post_payments"),
			PaymentTermsDays:     v.GetInt("ledger.payment_terms_days"),
			AgingRefreshInterval: v.GetDuration("ledger.aging_refresh_interval"),
		},
		Customers: CustomersConfig{
			RequireRegistered: v.GetBool("customers.require_registered"),
			CacheTTL:          v.GetDuration("customers.cache_ttl"),
		},
		Metrics: MetricsConfig{
			Enabled: !v.IsSet("metrics.enabled") || v.GetBool("metrics.enabled"),
			Path:    v.GetString("metrics.path"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           v.GetBool("telemetry.enabled"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			SamplingRatio:     v.GetFloat64("telemetry.sampling_ratio"),
			ServiceName:       v.GetString("telemetry.service_name"),
			Insecure:          v.GetBool("telemetry.insecure"),
			DBTraceEnabled:    v.GetBool("telemetry.db_trace_enabled"),
			DBLogFullSQL:      v.GetBool("telemetry.db_log_full_sql"),
			DBSlowQueryThresh: v.GetDuration("telemetry.db_slow_query_threshold"),
		},
		Profiling: ProfilingConfig{
			Enabled:              v.GetBool("profiling.enabled"),
			ServerAddress:        v.GetString("profiling.server_address"),
			ApplicationName:      v.GetString("profiling.application_name"),
			BasicAuthUser:        v.GetString("profiling.basic_auth_user"),
			BasicAuthPassword:    v.GetString("profiling.basic_auth_password"),
			SpanProfiles:         v.GetBool("profiling.span_profiles"),
			MutexProfileFraction: v.GetInt("profiling.mutex_profile_fraction"),
			BlockProfileRate:     v.GetInt("profiling.block_profile_rate"),
		},
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "ledger"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "8080"
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.User == "" {
		cfg.Database.User = "postgres"
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = "ledger"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 60
	}
	if cfg.Database.ConnMaxIdleTime == 0 {
		cfg.Database.ConnMaxIdleTime = 30
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.JWT.Issuer == "" {
		cfg.JWT.Issuer = "ledger"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
	if cfg.Event.DedupeBackend == "" {
		cfg.Event.DedupeBackend = "memory"
	}
	if cfg.Event.DedupeTTL == 0 {
		cfg.Event.DedupeTTL = 24 * time.Hour
	}
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 15 * time.Second
	}
	if cfg.HTTP.WriteTimeout == 0 {
		cfg.HTTP.WriteTimeout = 15 * time.Second
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if cfg.HTTP.MaxHeaderBytes == 0 {
		cfg.HTTP.MaxHeaderBytes = 1 << 20 // 1MB
	}
	if cfg.HTTP.MaxBodySize == 0 {
		cfg.HTTP.MaxBodySize = 1 << 20 // 1MB
	}
	if len(cfg.HTTP.CORSAllowMethods) == 0 {
		cfg.HTTP.CORSAllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	}
	if len(cfg.HTTP.CORSAllowHeaders) == 0 {
		cfg.HTTP.CORSAllowHeaders = []string{"Content-Type", "Authorization", "X-Request-ID", "X-Tenant-ID", "X-User-ID", "Idempotency-Key"}
	}
	if cfg.Idempotency.PollInterval == 0 {
		cfg.Idempotency.PollInterval = 50 * time.Millisecond
	}
	if cfg.Idempotency.WaitTimeout == 0 {
		cfg.Idempotency.WaitTimeout = 5 * time.Second
	}
	if cfg.Idempotency.Retention == 0 {
		cfg.Idempotency.Retention = 24 * time.Hour
	}
	if cfg.Idempotency.JanitorInterval == 0 {
		cfg.Idempotency.JanitorInterval = time.Hour
	}
	if cfg.Ledger.Epsilon.IsZero() {
		cfg.Ledger.Epsilon = decimal.RequireFromString("0.005")
	}
	if cfg.Ledger.BaseCurrency == "" {
		cfg.Ledger.BaseCurrency = "USD"
	}
	if cfg.Ledger.ReceivableAccount == "" {
		cfg.Ledger.ReceivableAccount = "1200"
	}
	if cfg.Ledger.RevenueAccount == "" {
		cfg.Ledger.RevenueAccount = "4000"
	}
	if cfg.Ledger.DefaultCashAccount == "" {
		cfg.Ledger.DefaultCashAccount = "1010"
	}
	if cfg.Ledger.PaymentTermsDays == 0 {
		cfg.Ledger.PaymentTermsDays = 30
	}
	if cfg.Ledger.AgingRefreshInterval == 0 {
		cfg.Ledger.AgingRefreshInterval = 6 * time.Hour
	}
	if cfg.Customers.CacheTTL == 0 {
		cfg.Customers.CacheTTL = 5 * time.Minute
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}
	if cfg.Telemetry.CollectorEndpoint == "" {
		cfg.Telemetry.CollectorEndpoint = "localhost:4317" // Default gRPC endpoint
	}
	if cfg.Telemetry.SamplingRatio == 0 {
		cfg.Telemetry.SamplingRatio = 1.0 // 100% in development
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "ledger"
	}
	if cfg.Telemetry.DBSlowQueryThresh == 0 {
		cfg.Telemetry.DBSlowQueryThresh = 200 * time.Millisecond
	}
	if cfg.Profiling.ApplicationName == "" {
		cfg.Profiling.ApplicationName = cfg.Telemetry.ServiceName
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be positive")
	}
	if c.Database.MaxIdleConns < 0 {
		return fmt.Errorf("database.max_idle_conns cannot be negative")
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}

	switch c.Event.DedupeBackend {
	case "memory", "redis":
	default:
		return fmt.Errorf("event.dedupe_backend must be memory or redis, got %q", c.Event.DedupeBackend)
	}

	if c.Ledger.Epsilon.IsNegative() || c.Ledger.Epsilon.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return fmt.Errorf("ledger.epsilon must be in [0, 1), got %s", c.Ledger.Epsilon)
	}
	if _, err := currency.ParseISO(c.Ledger.BaseCurrency); err != nil {
		return fmt.Errorf("ledger.base_currency %q is not an ISO 4217 code", c.Ledger.BaseCurrency)
	}
	if c.Ledger.PaymentTermsDays < 0 {
		return fmt.Errorf("ledger.payment_terms_days cannot be negative")
	}
	if c.Idempotency.PollInterval >= c.Idempotency.WaitTimeout {
		return fmt.Errorf("idempotency.poll_interval (%s) must be shorter than idempotency.wait_timeout (%s)",
			c.Idempotency.PollInterval, c.Idempotency.WaitTimeout)
	}

	if c.App.Env == "production" {
		if c.JWT.Secret == "" {
			return fmt.Errorf("jwt.secret is required in production")
		}
		if len(c.JWT.Secret) < 32 {
			return fmt.Errorf("jwt.secret must be at least 32 characters in production")
		}
		if c.JWT.AllowDevHeaders {
			return fmt.Errorf("jwt.allow_dev_headers must be false in production")
		}
		if c.Database.Password == "" {
			return fmt.Errorf("database.password is required in production")
		}
		if c.Database.SSLMode == "disable" {
			return fmt.Errorf("database.sslmode cannot be 'disable' in production")
		}
		for _, origin := range c.HTTP.CORSAllowOrigins {
			if origin == "*" {
				return fmt.Errorf("cors_allow_origins cannot be '*' in production (use specific origins)")
			}
		}
		if c.Telemetry.DBLogFullSQL {
			return fmt.Errorf("telemetry.db_log_full_sql must be false in production to prevent sensitive data exposure in traces")
		}
	}

	if c.Telemetry.SamplingRatio < 0.0 || c.Telemetry.SamplingRatio > 1.0 {
		return fmt.Errorf("telemetry.sampling_ratio must be between 0.0 and 1.0, got %f", c.Telemetry.SamplingRatio)
	}
	if c.Profiling.Enabled && c.Profiling.ServerAddress == "" {
		return fmt.Errorf("profiling.server_address is required when profiling is enabled")
	}

	return nil
}

// DSN returns the database connection string with properly escaped values
func (d *DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.DBName,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}
