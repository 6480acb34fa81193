package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/debutade/debutade-hub/internal/config"
	"github.com/debutade/debutade-hub/internal/orchestrator"
	"github.com/debutade/debutade-hub/internal/ui"
	"github.com/debutade/debutade-hub/internal/watchdog"
)

var watchdogCmd = &cobra.Command{
	Use:   "watchdog [-- serve flags]",
	Short: "Run the hub and restart it when it stops",
	Long: `The watchdog command starts 'debutade serve' as a child process, restarts
it with increasing delays when it exits and replaces it when /healthz stops
answering. Arguments after -- are passed on to serve.

The watchdog logs to watchdog.log next to the hub's log file.`,
	RunE: runWatchdog,
}

func init() {
	watchdogCmd.Flags().Duration("check-interval", 5*time.Second, "Time between health checks")
	watchdogCmd.Flags().Int("failures", 3, "Failed health checks in a row before the hub is replaced")
}

func runWatchdog(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	logCfg := cfg.Log
	if logCfg.File != "" {
		logCfg.File = filepath.Join(filepath.Dir(logCfg.File), "watchdog.log")
	}
	logger, closer, err := config.NewLogger(logCfg, os.Stderr)
	if err != nil {
		return err
	}
	defer closer.Close()
	slog.SetDefault(logger)

	self, err := os.Executable()
	if err != nil {
		return fmt.Errorf("locate debutade binary: %w", err)
	}

	serveArgs := []string{"serve"}
	for _, name := range []string{"config", "base-dir", "apps", "host", "port", "subapp-port", "python"} {
		if f := cmd.Flags().Lookup(name); f != nil && f.Changed {
			serveArgs = append(serveArgs, "--"+name+"="+f.Value.String())
		}
	}
	serveArgs = append(serveArgs, args...)

	interval, _ := cmd.Flags().GetDuration("check-interval")
	failures, _ := cmd.Flags().GetInt("failures")

	w, err := watchdog.New(watchdog.Config{
		Path:             self,
		Args:             serveArgs,
		Dir:              cfg.BaseDir,
		Env:              os.Environ(),
		HealthChecker:    watchdog.NewHTTPHealthChecker(cfg.HubURL()+"/healthz", 5*time.Second),
		CheckInterval:    interval,
		FailureThreshold: failures,
		Spawner:          &orchestrator.ExecSpawner{Output: os.Stderr},
		Logger:           logger,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ui.PrintSuccess("Watching hub at " + cfg.HubURL())
	return w.Run(ctx)
}
