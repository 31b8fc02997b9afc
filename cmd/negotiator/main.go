// negotiator is the command-line front end of the negotiation coach.
//
// Environment variables (override the config file):
//
//	NEGOTIATOR_DB                 SQLite database path (default: negotiation.db)
//	NEGOTIATOR_REDIS_ADDR         Redis address for the redis snapshot backend
//	NEGOTIATOR_GRPC_ADDR          gRPC listen/dial address
//	NEGOTIATOR_RULES              YAML rule overlay
//	NEGOTIATOR_LOG_LEVEL          debug | info | warn | error
//	NEGOTIATOR_SNAPSHOT_BACKEND   memory | sqlite | redis
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/danielpatrickdp/negotiation-coach/internal/coach"
	"github.com/danielpatrickdp/negotiation-coach/internal/config"
	"github.com/danielpatrickdp/negotiation-coach/internal/engine"
	"github.com/danielpatrickdp/negotiation-coach/internal/logging"
	"github.com/danielpatrickdp/negotiation-coach/internal/rules"
	"github.com/danielpatrickdp/negotiation-coach/internal/sessionstore"
	"github.com/danielpatrickdp/negotiation-coach/internal/state"
)

// #region app

// app carries what every subcommand shares once flags are parsed.
type app struct {
	cfgPath  string
	logLevel string

	cfg config.Config
	log *zap.Logger
}

// exitError carries a non-zero exit status without printing usage.
type exitError struct {
	code int
	msg  string
}

func (e exitError) Error() string { return e.msg }

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "negotiator",
		Short: "Negotiation coach: signal detection, scoring and adaptive replies",
		Long: `negotiator scores negotiation practice conversations turn by turn,
tracks the negotiation phase, gives feedback, and generates the simulated
counterpart's next reply.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.log != nil {
				_ = a.log.Sync()
			}
		},
	}
	root.PersistentFlags().StringVarP(&a.cfgPath, "config", "c", "", "YAML config file")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level (overrides config)")

	root.AddCommand(newServeCmd(a))
	root.AddCommand(newAssessCmd(a))
	root.AddCommand(newReplayCmd(a))
	root.AddCommand(newInspectCmd(a))
	root.AddCommand(newExportCmd(a))
	root.AddCommand(newMCPCmd(a))
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		var ee exitError
		if errors.As(err, &ee) {
			os.Exit(ee.code)
		}
		os.Exit(1)
	}
}

// #endregion app

// #region wiring

func (a *app) setup(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(a.cfgPath)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.LogLevel = a.logLevel
	}
	log, err := logging.NewLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	a.cfg, a.log = cfg, log
	return nil
}

// engine builds an engine from the configured rule table.
func (a *app) engine() (*engine.Engine, error) {
	cfg := engine.DefaultConfig()
	cfg.Logger = a.log
	if a.cfg.RulesPath != "" {
		tbl, err := rules.Load(a.cfg.RulesPath)
		if err != nil {
			return nil, err
		}
		cfg.Rules = tbl
	}
	return engine.New(cfg), nil
}

// service wires a coach.Service for the configured snapshot backend. The
// returned func closes whatever was opened.
func (a *app) service(ctx context.Context) (*coach.Service, func(), error) {
	eng, err := a.engine()
	if err != nil {
		return nil, nil, err
	}
	opts := coach.Options{Logger: a.log}
	var closers []func() error
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	switch a.cfg.SnapshotBackend {
	case config.BackendSQLite:
		store, err := state.NewStore(a.cfg.DBPath)
		if err != nil {
			return nil, nil, err
		}
		closers = append(closers, store.Close)
		opts.Snapshots, opts.Store = store, store
	case config.BackendRedis:
		snaps, err := sessionstore.Dial(ctx, a.cfg.RedisAddr, sessionstore.Config{})
		if err != nil {
			return nil, nil, err
		}
		closers = append(closers, snaps.Close)
		opts.Snapshots, opts.Locker = snaps, snaps
		// Logs and reports still go to SQLite when a path is configured.
		if a.cfg.DBPath != "" {
			store, err := state.NewStore(a.cfg.DBPath)
			if err != nil {
				closeAll()
				return nil, nil, err
			}
			closers = append(closers, store.Close)
			opts.Store = store
		}
	}
	a.log.Info("coach ready",
		zap.String("backend", a.cfg.SnapshotBackend),
		zap.String("db", a.cfg.DBPath))
	return coach.New(eng, opts), closeAll, nil
}

// #endregion wiring
