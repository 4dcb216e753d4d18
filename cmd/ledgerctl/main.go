// Command ledgerctl is the operator CLI of the ledger service: schema
// migrations, maintenance jobs and development tokens.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/erp/ledger/internal/infrastructure/config"
	"github.com/erp/ledger/internal/infrastructure/logger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var version = "dev"

// app holds the state shared by every subcommand. Config and logger are
// created on first use so file-only commands run without a database.
type app struct {
	cfgFile  string
	logLevel string

	cfg *config.Config
	log *zap.Logger
	out io.Writer
}

func (a *app) config() (*config.Config, error) {
	if a.cfg != nil {
		return a.cfg, nil
	}
	var (
		cfg *config.Config
		err error
	)
	if a.cfgFile != "" {
		cfg, err = config.LoadFile(a.cfgFile)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}
	a.cfg = cfg
	return cfg, nil
}

func (a *app) logger() *zap.Logger {
	if a.log != nil {
		return a.log
	}
	l, err := logger.New(&logger.Config{
		Level:      a.logLevel,
		Format:     "console",
		Output:     "stderr",
		TimeFormat: "2006-01-02 15:04:05",
	})
	if err != nil {
		l = zap.NewNop()
	}
	a.log = l
	return l
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "ledgerctl",
		Short:         "Operate the ledger service",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			a.out = cmd.OutOrStdout()
		},
	}
	root.PersistentFlags().StringVar(&a.cfgFile, "config", "", "config file (default: ./config.yaml and LEDGER_* env)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "info", "log level: debug, info, warn, error")

	root.AddCommand(
		newMigrateCmd(a),
		newIdempotencyCmd(a),
		newReceivablesCmd(a),
		newTokenCmd(a),
	)
	return root
}

func main() {
	a := &app{}
	err := newRootCmd(a).Execute()
	if a.log != nil {
		_ = a.log.Sync()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
