// Package watchdog keeps the hub running: it starts it as a child, restarts
// it with exponential backoff when it exits, and replaces it when its health
// endpoint stops answering.
package watchdog

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"time"

	"github.com/debutade/debutade-hub/internal/orchestrator"
	"github.com/debutade/debutade-hub/internal/ports"
)

const (
	defaultCheckInterval         = 5 * time.Second
	defaultFailureThreshold      = 3
	defaultStartupGrace          = 10 * time.Second
	defaultStableAfter           = time.Minute
	defaultStopTimeout           = 5 * time.Second
	defaultRestartBackoffInitial = 1 * time.Second
	defaultRestartBackoffMax     = 30 * time.Second
)

// Config describes the supervised command and how it is watched.
type Config struct {
	Path string
	Args []string
	Dir  string
	Env  []string

	HealthChecker    HealthChecker // Optional, nil only watches for exits
	CheckInterval    time.Duration // Optional, defaults to 5s
	FailureThreshold int           // Optional, failed checks in a row before a restart, defaults to 3
	// StartupGrace is how long health failures are ignored after a start.
	StartupGrace time.Duration // Optional, defaults to 10s
	// StableAfter resets the backoff once a child has run this long.
	StableAfter           time.Duration // Optional, defaults to 1m
	StopTimeout           time.Duration // Optional, defaults to 5s
	RestartBackoffInitial time.Duration // Optional, defaults to 1s
	RestartBackoffMax     time.Duration // Optional, defaults to 30s

	Spawner orchestrator.Spawner // Optional, defaults to ExecSpawner writing to stderr
	Clock   ports.Clock          // Optional, defaults to the wall clock
	Logger  *slog.Logger
}

// Watchdog supervises one child process.
type Watchdog struct {
	cfg    Config
	logger *slog.Logger

	restarts int
}

type exitReason int

const (
	reasonCancelled exitReason = iota
	reasonExited
	reasonUnhealthy
)

// New validates cfg and fills in defaults.
func New(cfg Config) (*Watchdog, error) {
	if cfg.Path == "" {
		return nil, errors.New("watchdog needs a command")
	}
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = defaultCheckInterval
	}
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = defaultFailureThreshold
	}
	if cfg.StartupGrace < 0 {
		cfg.StartupGrace = 0
	} else if cfg.StartupGrace == 0 {
		cfg.StartupGrace = defaultStartupGrace
	}
	if cfg.StableAfter <= 0 {
		cfg.StableAfter = defaultStableAfter
	}
	if cfg.StopTimeout <= 0 {
		cfg.StopTimeout = defaultStopTimeout
	}
	if cfg.RestartBackoffInitial <= 0 {
		cfg.RestartBackoffInitial = defaultRestartBackoffInitial
	}
	if cfg.RestartBackoffMax <= 0 {
		cfg.RestartBackoffMax = defaultRestartBackoffMax
	}
	if cfg.Spawner == nil {
		cfg.Spawner = &orchestrator.ExecSpawner{Output: os.Stderr}
	}
	if cfg.Clock == nil {
		cfg.Clock = ports.SystemClock{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Watchdog{
		cfg:    cfg,
		logger: cfg.Logger.With("component", "watchdog"),
	}, nil
}

// Restarts returns the current restart count. It drops back to zero after a
// child has run for StableAfter.
func (w *Watchdog) Restarts() int {
	return w.restarts
}

// Run supervises the child until ctx is cancelled, then stops it.
func (w *Watchdog) Run(ctx context.Context) error {
	w.logger.Info("watchdog started", "command", w.cfg.Path, "args", w.cfg.Args)

	for {
		proc, err := w.cfg.Spawner.Spawn(orchestrator.SpawnSpec{
			AppID: "hub",
			Path:  w.cfg.Path,
			Args:  w.cfg.Args,
			Dir:   w.cfg.Dir,
			Env:   w.cfg.Env,
		})
		if err != nil {
			w.logger.Error("start failed", "error", err)
		} else {
			started := w.cfg.Clock.Now()
			w.logger.Info("child started", "pid", proc.PID())

			reason := w.supervise(ctx, proc, started)
			switch reason {
			case reasonCancelled:
				w.stopChild(proc)
				w.logger.Info("watchdog stopped")
				return nil
			case reasonExited:
				w.logger.Warn("child exited", "pid", proc.PID(), "exit_code", proc.ExitCode())
			case reasonUnhealthy:
				w.logger.Warn("child unhealthy, replacing it", "pid", proc.PID())
				w.stopChild(proc)
			}

			if w.cfg.Clock.Now().Sub(started) >= w.cfg.StableAfter {
				w.restarts = 0
			}
		}

		w.restarts++
		backoff := calculateBackoff(w.restarts, w.cfg.RestartBackoffInitial, w.cfg.RestartBackoffMax)
		w.logger.Info("restarting", "in", backoff, "restart_count", w.restarts)

		select {
		case <-ctx.Done():
			w.logger.Info("watchdog stopped")
			return nil
		case <-w.cfg.Clock.After(backoff):
		}
	}
}

// supervise returns once the child exits, fails too many health checks in a
// row, or ctx is cancelled.
func (w *Watchdog) supervise(ctx context.Context, proc orchestrator.Process, started time.Time) exitReason {
	failures := 0
	for {
		select {
		case <-ctx.Done():
			return reasonCancelled
		case <-proc.Done():
			return reasonExited
		case <-w.cfg.Clock.After(w.cfg.CheckInterval):
		}

		if w.cfg.HealthChecker == nil || w.cfg.Clock.Now().Sub(started) < w.cfg.StartupGrace {
			continue
		}
		// The child may have exited while we slept.
		select {
		case <-proc.Done():
			return reasonExited
		default:
		}

		if err := w.cfg.HealthChecker.Check(ctx); err != nil {
			if ctx.Err() != nil {
				return reasonCancelled
			}
			failures++
			w.logger.Warn("health check failed", "pid", proc.PID(), "failures", failures, "error", err)
			if failures >= w.cfg.FailureThreshold {
				return reasonUnhealthy
			}
			continue
		}
		failures = 0
	}
}

// stopChild terminates the child and kills it if it outlives StopTimeout.
func (w *Watchdog) stopChild(proc orchestrator.Process) {
	if err := proc.Terminate(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		w.logger.Warn("terminate failed", "pid", proc.PID(), "error", err)
	}
	select {
	case <-proc.Done():
		return
	case <-w.cfg.Clock.After(w.cfg.StopTimeout):
	}

	w.logger.Warn("child ignored terminate, killing it", "pid", proc.PID())
	if err := proc.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		w.logger.Error("kill failed", "pid", proc.PID(), "error", err)
		return
	}
	<-proc.Done()
}

// calculateBackoff computes the restart delay: initialDelay * 2^(restartCount-1),
// capped at maxDelay.
func calculateBackoff(restartCount int, initialDelay, maxDelay time.Duration) time.Duration {
	if restartCount <= 1 {
		return initialDelay
	}
	backoff := initialDelay
	for i := 1; i < restartCount; i++ {
		backoff *= 2
		if backoff >= maxDelay {
			return maxDelay
		}
	}
	return backoff
}
