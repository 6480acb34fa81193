package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/debutade/debutade-hub/internal/config"
	"github.com/debutade/debutade-hub/internal/hub"
	"github.com/debutade/debutade-hub/internal/metrics"
	"github.com/debutade/debutade-hub/internal/orchestrator"
	"github.com/debutade/debutade-hub/internal/procscan"
	"github.com/debutade/debutade-hub/internal/ui"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the hub",
	Long: `The serve command starts the hub's web server. Opening an app from the
start page launches it on the shared port, stopping any other app that
holds the port, and redirects the browser once the app accepts connections.

Settings come from flags, DEBUTADE_* environment variables (MAIN_APP_PORT,
SUBAPP_PORT and SUBAPP_START_TIMEOUT are honoured too) and ` + config.FileName + `.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().Int("start-timeout", 60, "Seconds an app gets to open its port")
	serveCmd.Flags().String("log-level", "info", "Log level (debug, info, warning, error)")
	serveCmd.Flags().String("log-format", "text", "Log format (text, json)")
	serveCmd.Flags().String("log-file", "debutade.log", "Log file; empty logs to stderr")
	serveCmd.Flags().Bool("metrics", true, "Expose Prometheus metrics on /metrics")
	serveCmd.Flags().Bool("keep-apps", false, "Leave running apps alone when the hub exits")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	logger, logSink, err := config.NewLogger(cfg.Log, os.Stderr)
	if err != nil {
		return err
	}
	defer logSink.Close()
	slog.SetDefault(logger)

	reg, err := loadRegistry(cfg)
	if err != nil {
		return err
	}

	var (
		recorder       metrics.Recorder = metrics.Nop{}
		metricsHandler http.Handler
	)
	if cfg.Metrics.Enabled {
		prom := metrics.NewPrometheus(cfg.Metrics.Namespace)
		recorder = prom
		metricsHandler = prom.Handler()
	}

	orch, err := orchestrator.New(reg, orchestrator.Options{
		HubURL:              cfg.HubURL(),
		ConfigPath:          cfg.SharedConfig,
		FallbackInterpreter: cfg.Launch.Python,
		ReadyTimeout:        cfg.ReadyTimeout(),
		PollInterval:        cfg.Launch.PollInterval,
		SettleDelay:         cfg.Launch.SettleDelay,
		GracePeriod:         cfg.Launch.GracePeriod,
		KillGracePeriod:     cfg.Launch.KillGracePeriod,
		KeepOnTimeout:       !cfg.Launch.KillOnTimeout,
		Spawner:             &orchestrator.ExecSpawner{Output: logSink},
		Resolver:            procscan.New(logger),
		Logger:              logger,
		Metrics:             recorder,
	})
	if err != nil {
		return err
	}

	srv, err := hub.New(hub.Config{
		Addr:     cfg.ListenAddr(),
		HubURL:   cfg.HubURL(),
		Registry: reg,
		Apps:     orch,
		Metrics:  metricsHandler,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("hub starting",
		"addr", cfg.ListenAddr(),
		"apps", reg.Len(),
		"subapp_port", cfg.Subapp.Port,
		"config", cfg.File)
	ui.PrintSuccess(fmt.Sprintf("Hub running at %s (%d apps, port %d)", cfg.HubURL(), reg.Len(), cfg.Subapp.Port))
	if cfg.Log.File != "" {
		ui.PrintInfo("Logging to " + cfg.Log.File)
	}

	serveErr := srv.ListenAndServe(ctx)

	if keep, _ := cmd.Flags().GetBool("keep-apps"); !keep {
		stopCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if n := orch.StopAll(stopCtx); n > 0 {
			logger.Info("stopped apps on exit", "count", n)
		}
	}

	if serveErr != nil {
		return fmt.Errorf("hub: %w", serveErr)
	}
	logger.Info("hub stopped")
	return nil
}
