package main

import (
	"context"
	"fmt"

	appfinance "github.com/erp/ledger/internal/application/finance"
	"github.com/erp/ledger/internal/application/idempotency"
	"github.com/erp/ledger/internal/infrastructure/logger"
	"github.com/erp/ledger/internal/infrastructure/persistence"
	"github.com/erp/ledger/internal/infrastructure/scheduler"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// withDatabase opens the ledger database with the GORM zap logger
func (a *app) withDatabase(fn func(db *persistence.Database) error) error {
	cfg, err := a.config()
	if err != nil {
		return err
	}
	gormLog := logger.NewGormLogger(a.logger(), logger.MapGormLogLevel(a.logLevel))
	db, err := persistence.NewDatabaseWithCustomLogger(&cfg.Database, cfg.Storage, gormLog)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			a.logger().Warn("close database", zap.Error(err))
		}
	}()
	return fn(db)
}

func newIdempotencyCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "idempotency",
		Short: "Maintain idempotency records",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "purge",
		Short: "Delete idempotency records past their retention",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withDatabase(func(db *persistence.Database) error {
				cfg, _ := a.config()
				guard := idempotency.NewGuard(db.Scope(), db.IdempotencyStore(), idempotency.Config{
					PollInterval: cfg.Idempotency.PollInterval,
					WaitTimeout:  cfg.Idempotency.WaitTimeout,
					Retention:    cfg.Idempotency.Retention,
				}, a.logger())
				return runJob(cmd.Context(), a, scheduler.Job{
					Name: scheduler.JobIdempotencyPurge,
					Run:  scheduler.IdempotencyPurge(guard, a.logger()),
				})
			})
		},
	})
	return cmd
}

func newReceivablesCmd(a *app) *cobra.Command {
	var tenant string

	cmd := &cobra.Command{
		Use:   "receivables",
		Short: "Maintain receivables",
	}
	refresh := &cobra.Command{
		Use:   "refresh-aging",
		Short: "Recompute aging buckets of open receivables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tenantID := uuid.Nil
			if tenant != "" {
				id, err := uuid.Parse(tenant)
				if err != nil {
					return fmt.Errorf("invalid tenant id %q", tenant)
				}
				tenantID = id
			}
			return a.withDatabase(func(db *persistence.Database) error {
				receivables := appfinance.NewReceivableService(db.Scope(), nil, a.logger())
				n, err := receivables.RefreshAging(cmd.Context(), tenantID)
				if err != nil {
					return err
				}
				fmt.Fprintf(a.out, "refreshed %d receivables\n", n)
				return nil
			})
		},
	}
	refresh.Flags().StringVar(&tenant, "tenant", "", "limit to one tenant (default: all tenants)")
	cmd.AddCommand(refresh)
	return cmd
}

// runJob runs a maintenance job once through the scheduler so it gets the
// same timeout and panic handling as the server loop
func runJob(ctx context.Context, a *app, job scheduler.Job) error {
	if ctx == nil {
		ctx = context.Background()
	}
	s := scheduler.NewScheduler(scheduler.DefaultSchedulerConfig(), a.logger())
	job.Interval = 1
	if err := s.Register(job); err != nil {
		return err
	}
	if err := s.RunNow(ctx, job.Name); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s completed\n", job.Name)
	return nil
}
