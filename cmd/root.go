package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"propertyregistry/internal/config"
	"propertyregistry/internal/database"
	"propertyregistry/internal/ledger"
	"propertyregistry/internal/registry"
	"propertyregistry/internal/telemetry"
	"propertyregistry/internal/types"
)

// app is the state shared by every command of one invocation.
type app struct {
	v       *viper.Viper
	cfgFile string
	cfg     config.Config

	stdin  *os.File
	stderr io.Writer

	logger   *slog.Logger
	store    ledger.Store
	svc      *registry.Service
	shutdown func(context.Context) error
}

func newApp(stdin *os.File, stderr io.Writer) *app {
	return &app{v: viper.New(), stdin: stdin, stderr: stderr}
}

// rootCmd builds the command tree. Each app has its own viper instance so tests can run
// invocations side by side.
func (a *app) rootCmd(stdout io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:   "registry",
		Short: "Property registry ledger",
		Long: `A ledger of property records: registration by admins, owner-controlled listings,
atomic purchases with payment routing, and admin-only splits.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			return a.teardown(cmd.Context())
		},
	}
	root.SetIn(a.stdin)
	root.SetOut(stdout)
	root.SetErr(a.stderr)

	flags := root.PersistentFlags()
	flags.StringVarP(&a.cfgFile, "config", "c", "", "config file (default: ./registry.yaml or ~/.config/propertyregistry/config.yaml)")
	flags.String("as", "", "caller identity (0x followed by 40 hex digits)")
	flags.String("store", "", "ledger store driver: sqlite, oracle or memory")
	flags.String("db", "", "SQLite ledger file")
	flags.String("log-level", "", "log level: debug, info, warn or error")
	_ = a.v.BindPFlag("caller", flags.Lookup("as"))
	_ = a.v.BindPFlag("store.driver", flags.Lookup("store"))
	_ = a.v.BindPFlag("store.path", flags.Lookup("db"))
	_ = a.v.BindPFlag("log.level", flags.Lookup("log-level"))

	root.AddCommand(
		a.initCmd(),
		a.registerCmd(),
		a.showCmd(),
		a.listCmd(),
		a.browseCmd(),
		a.sellCmd(),
		a.buyCmd(),
		a.splitCmd(),
		a.adminsCmd(),
		a.updateAdminsCmd(),
		a.balanceCmd(),
		a.historyCmd(),
		a.importCmd(),
	)
	return root
}

// setup loads configuration and opens the store before any subcommand runs.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(a.v, a.cfgFile)
	if err != nil {
		return err
	}
	a.cfg = cfg

	a.logger, err = cfg.Log.NewLogger(a.stderr)
	if err != nil {
		return err
	}

	a.shutdown, err = telemetry.Setup(cmd.Context(), telemetry.Options{
		Exporter: cfg.Tracing.Exporter,
		Endpoint: cfg.Tracing.Endpoint,
		Writer:   a.stderr,
	})
	if err != nil {
		return fmt.Errorf("set up tracing: %w", err)
	}

	a.store, err = a.openStore()
	if err != nil {
		return err
	}
	a.svc = registry.New(a.store, registry.WithLogger(a.logger))
	return nil
}

func (a *app) openStore() (ledger.Store, error) {
	switch a.cfg.Store.Driver {
	case config.DriverMemory:
		a.logger.Warn("using the in-memory ledger; nothing will be kept after exit")
		return ledger.NewMemory(), nil
	case config.DriverOracle:
		dbCfg := a.cfg.Oracle
		if dbCfg.Password == "" {
			pw, err := promptPassword(a.stdin, a.stderr, fmt.Sprintf("Oracle password for %s: ", dbCfg.Username))
			if err != nil {
				return nil, err
			}
			dbCfg.Password = pw
		}
		return database.OpenOracle(dbCfg, a.logger)
	default:
		return database.OpenSQLite(a.cfg.Store.Path, a.logger)
	}
}

// teardown closes the store and flushes traces. It is safe to call more than once; cobra
// skips PersistentPostRunE when a command fails.
func (a *app) teardown(ctx context.Context) error {
	var firstErr error
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			firstErr = fmt.Errorf("close store: %w", err)
		}
		a.store = nil
	}
	if a.shutdown != nil {
		if err := a.shutdown(ctx); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("flush traces: %w", err)
		}
		a.shutdown = nil
	}
	return firstErr
}

// caller returns the identity the command acts as.
func (a *app) caller() (types.Account, error) {
	if a.cfg.Caller == "" {
		return "", ledger.Errorf(ledger.InvalidInput, "caller", "no caller identity: pass --as or set caller in the config file")
	}
	return types.Account(a.cfg.Caller), nil
}
