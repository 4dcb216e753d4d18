package main

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/erp/ledger/internal/infrastructure/migration"
	_ "github.com/lib/pq"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const defaultMigrationsPath = "migrations"

func newMigrateCmd(a *app) *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the ledger database schema",
		Example: `  ledgerctl migrate up
  ledgerctl migrate steps -1
  ledgerctl migrate create add_cost_centers "Cost center dimension"`,
	}
	cmd.PersistentFlags().StringVar(&path, "path", "", "migrations directory (default: ./migrations)")

	// withMigrator opens the configured database and runs fn on a migrator
	withMigrator := func(fn func(m *migration.Migrator) error) error {
		cfg, err := a.config()
		if err != nil {
			return err
		}
		dir, err := resolveMigrationsPath(path)
		if err != nil {
			return err
		}
		db, err := sql.Open("postgres", cfg.Database.DSN())
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		if err := db.Ping(); err != nil {
			_ = db.Close()
			return fmt.Errorf("ping database: %w", err)
		}
		m, err := migration.New(db, migration.Config{
			MigrationsPath: dir,
			SchemaName:     cfg.Storage.Schema,
		}, a.logger())
		if err != nil {
			_ = db.Close()
			return err
		}
		defer func() {
			if err := m.Close(); err != nil {
				a.logger().Warn("close migrator", zap.Error(err))
			}
		}()
		return fn(m)
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			Args:  cobra.NoArgs,
			RunE: func(*cobra.Command, []string) error {
				return withMigrator(func(m *migration.Migrator) error { return m.Up() })
			},
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back all migrations",
			Args:  cobra.NoArgs,
			RunE: func(*cobra.Command, []string) error {
				return withMigrator(func(m *migration.Migrator) error { return m.Down() })
			},
		},
		&cobra.Command{
			Use:   "steps <n>",
			Short: "Apply n migrations (negative rolls back)",
			Args:  cobra.ExactArgs(1),
			RunE: func(_ *cobra.Command, args []string) error {
				n, err := strconv.Atoi(args[0])
				if err != nil {
					return fmt.Errorf("invalid step count %q", args[0])
				}
				return withMigrator(func(m *migration.Migrator) error { return m.Steps(n) })
			},
		},
		&cobra.Command{
			Use:   "goto <version>",
			Short: "Migrate up or down to a version",
			Args:  cobra.ExactArgs(1),
			RunE: func(_ *cobra.Command, args []string) error {
				v, err := strconv.ParseUint(args[0], 10, 64)
				if err != nil {
					return fmt.Errorf("invalid version %q", args[0])
				}
				return withMigrator(func(m *migration.Migrator) error { return m.GoTo(uint(v)) })
			},
		},
		&cobra.Command{
			Use:   "force <version>",
			Short: "Set the schema version without running migrations",
			Args:  cobra.ExactArgs(1),
			RunE: func(_ *cobra.Command, args []string) error {
				v, err := strconv.Atoi(args[0])
				if err != nil {
					return fmt.Errorf("invalid version %q", args[0])
				}
				a.logger().Warn("forcing migration version", zap.Int("version", v))
				return withMigrator(func(m *migration.Migrator) error { return m.Force(v) })
			},
		},
		&cobra.Command{
			Use:   "version",
			Short: "Show the applied schema version",
			Args:  cobra.NoArgs,
			RunE: func(*cobra.Command, []string) error {
				return withMigrator(func(m *migration.Migrator) error {
					v, dirty, err := m.Version()
					if err != nil {
						return err
					}
					fmt.Fprintf(a.out, "version: %d dirty: %t\n", v, dirty)
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "status",
			Short: "List applied and pending migrations",
			Args:  cobra.NoArgs,
			RunE: func(*cobra.Command, []string) error {
				return withMigrator(func(m *migration.Migrator) error {
					st, err := m.Status()
					if err != nil {
						return err
					}
					fmt.Fprintf(a.out, "version: %d dirty: %t\n", st.Version, st.Dirty)
					for _, f := range st.Applied {
						fmt.Fprintf(a.out, "  [x] %s\n", f.BaseName())
					}
					for _, f := range st.Pending {
						fmt.Fprintf(a.out, "  [ ] %s\n", f.BaseName())
					}
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "create <name> [description]",
			Short: "Write an empty up/down migration pair",
			Args:  cobra.RangeArgs(1, 2),
			RunE: func(_ *cobra.Command, args []string) error {
				dir, err := resolveMigrationsPath(path)
				if err != nil {
					return err
				}
				desc := ""
				if len(args) == 2 {
					desc = args[1]
				}
				info, err := migration.CreateMigration(dir, args[0], desc)
				if err != nil {
					return err
				}
				fmt.Fprintln(a.out, info.UpPath)
				fmt.Fprintln(a.out, info.DownPath)
				return nil
			},
		},
		&cobra.Command{
			Use:   "list",
			Short: "List migration files on disk",
			Args:  cobra.NoArgs,
			RunE: func(*cobra.Command, []string) error {
				dir, err := resolveMigrationsPath(path)
				if err != nil {
					return err
				}
				files, err := migration.ListMigrations(dir)
				if err != nil {
					return err
				}
				for _, f := range files {
					fmt.Fprintln(a.out, f.BaseName())
				}
				return nil
			},
		},
	)
	return cmd
}

// resolveMigrationsPath returns an absolute migrations directory. Without
// an explicit path it tries ./migrations and then the directory two levels
// above the executable.
func resolveMigrationsPath(path string) (string, error) {
	if path == "" {
		path = defaultMigrationsPath
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			if exe, err := os.Executable(); err == nil {
				candidate := filepath.Join(filepath.Dir(exe), "..", "..", defaultMigrationsPath)
				if _, err := os.Stat(candidate); err == nil {
					path = candidate
				}
			}
		}
	}
	return filepath.Abs(path)
}
