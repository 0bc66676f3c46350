package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"minder/internal/config"
	"minder/internal/history"
	"minder/internal/logging"
	"minder/internal/materialize"
	"minder/internal/rpcproxy"
	"minder/internal/settings"
	"minder/internal/sidecar"
	"minder/internal/supervisor"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Materialize the node configuration and supervise bitcoind",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return runSupervisor(cmd.Context(), cfg)
		},
	}
}

// runSupervisor is the appliance entrypoint: configuration materialization,
// daemon spawn, telemetry, and finally the exit-code mapping. It returns an
// *exitCodeError when the daemon finishes non-zero so main can propagate the
// code verbatim.
func runSupervisor(ctx context.Context, cfg *config.Config) error {
	logger, err := logging.New(logging.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	logger = logger.With(logging.String(logging.FieldRunID, uuid.NewString()))

	// The relay must exist before anything slow so an early termination
	// request exits cleanly instead of orphaning the startup.
	handle := &supervisor.Handle{}
	supervisor.RelaySignals(handle, logger)

	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	lock, err := supervisor.AcquireLock(cfg.Paths.LockPath)
	if err != nil {
		return err
	}
	defer func() { _ = lock.Release() }()

	env, err := materialize.EnvFromOS()
	if err != nil {
		return err
	}

	logger.Info("waiting for settings document",
		logging.String("path", cfg.Paths.SettingsPath))
	doc, err := settings.Wait(ctx, cfg.Paths.SettingsPath,
		time.Duration(cfg.Telemetry.SettingsPollInterval)*time.Second)
	if err != nil {
		return err
	}

	daemonArgs, err := materialize.Materialize(cfg, doc, env)
	if err != nil {
		return err
	}

	sup := supervisor.New(cfg.Bitcoind.Binary, daemonArgs, handle, logger)
	if err := sup.Start(); err != nil {
		return err
	}

	startProxy(ctx, cfg, doc, env.HostIP, logger)

	side := sidecar.New(cfg, doc, env.RPCTorAddress, openRecorder(ctx, cfg, logger), logger)
	if err := side.Start(ctx); err != nil {
		logger.Error("start telemetry sidecar", logging.Error(err))
	}

	code := sup.Wait()
	if code != 0 {
		return &exitCodeError{code: code}
	}
	return nil
}

// startProxy launches the RPC proxy when the settings call for a pruned
// node. It runs on its own goroutine; supervisor shutdown never waits on it,
// and a proxy failure never stops the daemon.
func startProxy(ctx context.Context, cfg *config.Config, doc *settings.Document, hostIP string, logger *slog.Logger) {
	proxyCfg, ok := rpcproxy.FromSettings(cfg, doc, hostIP)
	if !ok {
		return
	}
	svc, err := rpcproxy.NewService(proxyCfg, logger)
	if err != nil {
		logger.Error("configure rpc proxy", logging.Error(err))
		return
	}
	go func() {
		if err := svc.ListenAndServe(ctx); err != nil {
			logger.Error("rpc proxy stopped", logging.Error(err))
		}
	}()
}

// openRecorder opens the telemetry history store. History is best-effort:
// a store that cannot be opened downgrades to no recording, never to a
// startup failure.
func openRecorder(ctx context.Context, cfg *config.Config, logger *slog.Logger) sidecar.Recorder {
	if !cfg.History.Enabled {
		return nil
	}
	store, err := history.Open(cfg.Paths.HistoryDB)
	if err != nil {
		logger.Warn("open history store", logging.Error(err))
		return nil
	}
	if cfg.History.RetentionDays > 0 {
		retention := time.Duration(cfg.History.RetentionDays) * 24 * time.Hour
		if err := store.Prune(ctx, retention); err != nil {
			logger.Warn("prune history store", logging.Error(err))
		}
	}
	return store
}
