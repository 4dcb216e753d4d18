package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	appaudit "github.com/erp/ledger/internal/application/audit"
	appfinance "github.com/erp/ledger/internal/application/finance"
	"github.com/erp/ledger/internal/application/idempotency"
	appledger "github.com/erp/ledger/internal/application/ledger"
	"github.com/erp/ledger/internal/domain/finance"
	"github.com/erp/ledger/internal/domain/shared/valueobject"
	"github.com/erp/ledger/internal/infrastructure/auth"
	"github.com/erp/ledger/internal/infrastructure/cache"
	"github.com/erp/ledger/internal/infrastructure/config"
	"github.com/erp/ledger/internal/infrastructure/event"
	"github.com/erp/ledger/internal/infrastructure/logger"
	"github.com/erp/ledger/internal/infrastructure/persistence"
	"github.com/erp/ledger/internal/infrastructure/scheduler"
	"github.com/erp/ledger/internal/infrastructure/telemetry"
	"github.com/erp/ledger/internal/interfaces/http/handler"
	"github.com/erp/ledger/internal/interfaces/http/middleware"
	"github.com/erp/ledger/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(logger.FromConfig(cfg.Log))
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = log.Sync()
	}()

	log.Info("Starting ledger service",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("version", version),
	)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Tracing
	tp, err := telemetry.NewTracerProvider(rootCtx, telemetry.FromConfig(cfg.Telemetry, version), log)
	if err != nil {
		log.Fatal("Failed to initialize tracer provider", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			log.Error("Error shutting down tracer provider", zap.Error(err))
		}
	}()

	// Continuous profiling
	profiler, err := telemetry.NewProfiler(telemetry.ProfilerFromConfig(cfg.Profiling), log)
	if err != nil {
		log.Fatal("Failed to start profiler", zap.Error(err))
	}
	defer func() {
		if err := profiler.Stop(); err != nil {
			log.Error("Error stopping profiler", zap.Error(err))
		}
	}()
	if profiler.IsEnabled() && cfg.Profiling.SpanProfiles {
		tp.EnableSpanProfiles()
	}

	// Database with the zap-backed GORM logger
	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level),
		logger.WithSlowThreshold(cfg.Telemetry.DBSlowQueryThresh))
	db, err := persistence.NewDatabaseWithCustomLogger(&cfg.Database, cfg.Storage, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	if err := telemetry.NewDBTracingPlugin(telemetry.DBTracingConfigFromConfig(cfg.Telemetry), log).Register(db.DB); err != nil {
		log.Fatal("Failed to register database tracing", zap.Error(err))
	}
	log.Info("Database connected successfully")

	var metrics *telemetry.Metrics
	if cfg.Metrics.Enabled {
		metrics = telemetry.NewMetrics()
	}

	// Unit of work, idempotency guard and posting engine
	scope := db.Scope()
	var guardOpts []idempotency.Option
	var postingOpts []appledger.PostingOption
	if metrics != nil {
		guardOpts = append(guardOpts, idempotency.WithMetricsRecorder(metrics))
		postingOpts = append(postingOpts, appledger.WithPostingMetrics(metrics))
	}
	guard := idempotency.NewGuard(scope, db.IdempotencyStore(), idempotency.Config{
		PollInterval: cfg.Idempotency.PollInterval,
		WaitTimeout:  cfg.Idempotency.WaitTimeout,
		Retention:    cfg.Idempotency.Retention,
	}, log, guardOpts...)

	customers := persistence.NewGormCustomerDirectory(db.DB, cache.NewCustomerRefCache(cfg.Customers.CacheTTL))

	// Event bus. Every subscriber is wrapped so a redelivered event id is
	// handled once.
	dedupeStore, err := cache.NewProcessedEventStoreFactory(cfg.Event, cfg.Redis,
		cache.WithLogger(log),
		cache.WithInMemoryFallback(cfg.App.Env != "production"),
	).CreateStore(rootCtx)
	if err != nil {
		log.Fatal("Failed to create processed event store", zap.Error(err))
	}
	defer func() {
		_ = dedupeStore.Close()
	}()
	eventBus := event.NewInMemoryEventBus(log)
	dedupeMetrics := &event.DedupeMetrics{}
	dedupeOpts := []event.IdempotentHandlerOption{
		event.WithDedupeConfig(event.DedupeConfig{Enabled: true, TTL: cfg.Event.DedupeTTL}),
		event.WithDedupeMetrics(dedupeMetrics),
	}

	financeCfg := financeConfig(cfg)
	reconciler := appfinance.NewReceivableReconciler(scope, nil, log)
	eventBus.Subscribe(event.NewIdempotentHandler(reconciler, dedupeStore, log, dedupeOpts...))
	trail := appaudit.NewTrailHandler(scope, log)
	eventBus.Subscribe(event.NewIdempotentHandler(trail, dedupeStore, log, dedupeOpts...))
	if metrics != nil {
		if err := metrics.RegisterDedupeStats(func() (int64, int64, int64) {
			s := dedupeMetrics.Stats()
			return s.EventsProcessed, s.EventsDuplicate, s.EventsFailed
		}); err != nil {
			log.Fatal("Failed to register dedupe metrics", zap.Error(err))
		}
	}

	// Application services
	gatekeeper := appledger.NewPeriodGatekeeper(log)
	posting := appledger.NewPostingService(scope, guard, gatekeeper, eventBus,
		appledger.PostingConfig{Epsilon: cfg.Ledger.Epsilon}, log, postingOpts...)
	accountService := appledger.NewAccountService(scope, log)
	periodService := appledger.NewPeriodService(scope, gatekeeper, log)
	invoiceService := appfinance.NewInvoiceService(scope, guard, posting, customers, eventBus, financeCfg, nil, log)
	paymentService := appfinance.NewPaymentService(scope, guard, posting, customers, eventBus, financeCfg, nil, log)
	receivableService := appfinance.NewReceivableService(scope, nil, log)
	customerService := appfinance.NewCustomerService(customers, log)
	auditService := appaudit.NewService(scope)

	// Background jobs
	jobs := scheduler.NewScheduler(scheduler.DefaultSchedulerConfig(), log)
	mustRegister(log, jobs, scheduler.Job{
		Name:     scheduler.JobIdempotencyPurge,
		Interval: cfg.Idempotency.JanitorInterval,
		Run:      scheduler.IdempotencyPurge(guard, log),
	})
	mustRegister(log, jobs, scheduler.Job{
		Name:       scheduler.JobAgingRefresh,
		Interval:   cfg.Ledger.AgingRefreshInterval,
		RunOnStart: true,
		Run:        scheduler.AgingRefresh(receivableService),
	})
	if err := jobs.Start(rootCtx); err != nil {
		log.Fatal("Failed to start scheduler", zap.Error(err))
	}

	// HTTP
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	middleware.SetupValidator()

	engine := gin.New()
	if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
		log.Fatal("Invalid trusted proxies", zap.Error(err))
	}
	engine.Use(
		logger.Recovery(log),
		middleware.RequestID(),
		logger.GinMiddleware(log),
		middleware.Tracing(middleware.TracingConfig{
			ServiceName: cfg.Telemetry.ServiceName,
			Enabled:     tp.IsEnabled(),
		}),
		middleware.SpanErrorMarker(),
		middleware.CORS(middleware.CORSConfigFromHTTP(cfg.HTTP)),
		middleware.Secure(),
		middleware.BodyLimit(cfg.HTTP.MaxBodySize),
	)
	if metrics != nil {
		engine.Use(metrics.GinMiddleware())
		path := cfg.Metrics.Path
		if path == "" {
			path = "/metrics"
		}
		engine.GET(path, gin.WrapH(metrics.Handler()))
	}

	systemHandler := handler.NewSystemHandler(cfg.App.Name, version, db, log)
	engine.GET("/health", systemHandler.Health)

	r := router.NewRouter(engine, router.WithMiddleware(
		middleware.Authenticate(middleware.AuthConfig{
			Verifier:        auth.NewVerifier(cfg.JWT),
			AllowDevHeaders: cfg.JWT.AllowDevHeaders && cfg.App.Env != "production",
			Logger:          log,
		}),
		middleware.OpAttributes(),
		middleware.ProfilingLabels(profiler.IsEnabled()),
	))
	router.Handlers{
		Accounts:    handler.NewAccountHandler(accountService, log),
		Journal:     handler.NewJournalHandler(posting, log),
		Periods:     handler.NewPeriodHandler(periodService, log),
		Invoices:    handler.NewInvoiceHandler(invoiceService, log),
		Payments:    handler.NewPaymentHandler(paymentService, log),
		Receivables: handler.NewReceivableHandler(receivableService, paymentService, customerService, log),
		Audit:       handler.NewAuditHandler(auditService, log),
	}.RegisterAll(r).Setup()

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	<-rootCtx.Done()
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	if err := jobs.Stop(ctx); err != nil {
		log.Error("Scheduler stop failed", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}

// financeConfig maps the ledger and customers sections onto the finance
// application settings
func financeConfig(cfg *config.Config) appfinance.Config {
	out := appfinance.DefaultConfig()
	l := cfg.Ledger
	if l.ReceivableAccount != "" {
		out.Accounts.Receivable = l.ReceivableAccount
	}
	if l.RevenueAccount != "" {
		out.Accounts.Revenue = l.RevenueAccount
	}
	out.Accounts.TaxPayable = l.TaxPayableAccount
	if l.DefaultCashAccount != "" {
		out.Accounts.Cash[finance.PaymentMethodCash] = l.DefaultCashAccount
	}
	for method, code := range l.CashAccounts {
		out.Accounts.Cash[finance.PaymentMethod(method)] = code
	}
	out.BaseCurrency = valueobject.Currency(l.BaseCurrency)
	out.PostPayments = l.PostPayments
	if l.PaymentTermsDays > 0 {
		out.PaymentTermsDays = l.PaymentTermsDays
	}
	out.RequireRegisteredCustomers = cfg.Customers.RequireRegistered
	return out
}

func mustRegister(log *zap.Logger, s *scheduler.Scheduler, job scheduler.Job) {
	if job.Interval <= 0 {
		log.Info("Job disabled", zap.String("job", job.Name))
		return
	}
	if err := s.Register(job); err != nil {
		log.Fatal("Failed to register job", zap.String("job", job.Name), zap.Error(err))
	}
}
