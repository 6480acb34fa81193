package orchestrator

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/debutade/debutade-hub/internal/ports"
	"github.com/debutade/debutade-hub/internal/registry"
)

// EnsureRunning brings appID to a reachable state and returns its URL.
//
// If the shared port already answers and the app is known to own it, the
// call has no side effects. Otherwise siblings are evicted, the entry script
// is spawned with the resolved interpreter, and the port is polled until it
// opens, the child exits, or the readiness timeout passes. A child that misses
// the deadline is stopped unless Options.KeepOnTimeout is set.
func (o *Orchestrator) EnsureRunning(ctx context.Context, appID string) (url string, err error) {
	app, ok := o.registry.Get(appID)
	if !ok {
		return "", newError(KindUnknownApp, appID, "unknown app %q", appID)
	}

	started := time.Now()
	defer func() {
		o.metrics.LaunchFinished(appID, launchResult(err), time.Since(started))
	}()

	o.launchMu.Lock()
	defer o.launchMu.Unlock()
	lock := o.appLocks[appID]
	lock.Lock()
	defer lock.Unlock()

	logger := o.logger.With("app", appID)

	if o.portOpen(app.Port) {
		if o.trackedAlive(appID) || len(o.resolver.FindMatching(ctx, app)) > 0 {
			o.setState(appID, StateRunning)
			return app.URL(), nil
		}

		logger.Info("port in use by something else, stopping other apps", "port", app.Port)
		o.StopOthers(ctx, appID)
		o.sleep(ctx, o.opts.SettleDelay)

		if o.portOpen(app.Port) {
			o.setState(appID, StateFailed)
			return "", o.portConflict(ctx, app)
		}
	} else {
		o.evictTrackedSiblings(ctx, appID)
		o.stopStale(ctx, appID)
	}

	script := app.ScriptPath()
	if _, err := os.Stat(script); err != nil {
		o.setState(appID, StateFailed)
		return "", newError(KindScriptNotFound, appID, "script not found: %s", script)
	}

	interpreter, source := ResolveInterpreter(app, o.opts.FallbackInterpreter)
	if interpreter == "" {
		o.setState(appID, StateFailed)
		return "", newError(KindSpawnFailure, appID, "no python interpreter found for %s", app.Name)
	}
	if source == SourceFallback {
		logger.Warn("no interpreter configured for app, using fallback", "interpreter", interpreter)
	}

	o.setState(appID, StateStarting)
	proc, err := o.spawner.Spawn(SpawnSpec{
		AppID: appID,
		Path:  interpreter,
		Args:  []string{script},
		Dir:   app.Dir,
		Env:   childEnv(os.Environ(), o.opts.HubURL, o.opts.ConfigPath, app.Port),
	})
	if err != nil {
		o.setState(appID, StateFailed)
		logger.Error("spawn failed", "interpreter", interpreter, "error", err)
		e := newError(KindSpawnFailure, appID, "failed to start %s", app.Name)
		e.Cause = err
		return "", e
	}

	handle := &RuntimeHandle{
		AppID:     appID,
		PID:       proc.PID(),
		StartedAt: o.clock.Now(),
		Process:   proc,
	}
	o.track(handle)
	logger.Info("app started", "pid", handle.PID, "interpreter", interpreter, "source", source)

	if o.waiter.WaitUntilOpen(ctx, app.Port, o.opts.ReadyTimeout, proc.Done()) {
		o.setState(appID, StateRunning)
		logger.Info("app ready", "pid", handle.PID, "url", app.URL())
		return app.URL(), nil
	}

	select {
	case <-proc.Done():
		o.untrack(handle)
		o.setState(appID, StateFailed)
		code := proc.ExitCode()
		logger.Warn("app exited before it was ready", "pid", handle.PID, "exit_code", code)
		e := newError(KindCrashedBeforeReady, appID, "%s exited immediately (exit code %d)", app.Name, code)
		e.ExitCode = code
		return "", e
	default:
	}

	logger.Warn("app not ready before deadline", "pid", handle.PID, "timeout", o.opts.ReadyTimeout)
	if !o.opts.KeepOnTimeout {
		// The caller may have gone away; the child still has to be reaped.
		stopCtx := context.WithoutCancel(ctx)
		o.stopProcess(stopCtx, appID, trackedVictim(handle))
		if !handle.Alive() {
			o.untrack(handle)
		}
	}
	o.setState(appID, StateFailed)
	e := newError(KindReadinessTimeout, appID, "%s did not start within %s", app.Name, o.opts.ReadyTimeout)
	e.Cause = ctx.Err()
	return "", e
}

// evictTrackedSiblings stops siblings this orchestrator started that are
// still alive even though the port is closed, e.g. one still booting after a
// kept readiness timeout.
func (o *Orchestrator) evictTrackedSiblings(ctx context.Context, appID string) {
	for _, id := range o.registry.IDs() {
		if id == appID || !o.trackedAlive(id) {
			continue
		}
		o.logger.Info("evicting sibling app", "app", appID, "sibling", id)
		if _, err := o.StopApp(ctx, id); err != nil {
			o.logger.Warn("evicting sibling failed", "sibling", id, "error", err)
		}
	}
}

// stopStale stops this app's own previous child when it is alive but not
// listening; respawning next to it would double up.
func (o *Orchestrator) stopStale(ctx context.Context, appID string) {
	h := o.tracked(appID)
	if h == nil {
		return
	}
	if h.Alive() {
		o.logger.Info("stopping stale process before respawn", "app", appID, "pid", h.PID)
		o.stopProcess(ctx, appID, trackedVictim(h))
	}
	if !h.Alive() {
		o.untrack(h)
	}
}

func (o *Orchestrator) portConflict(ctx context.Context, app registry.AppDescriptor) *Error {
	e := newError(KindPortConflict, app.ID, "port %d is already in use by another program", app.Port)
	if pid, ok := ports.Occupant(ctx, app.Port); ok {
		e.PID = int(pid)
		e.Message = fmt.Sprintf("%s (pid %d)", e.Message, pid)
	}
	return e
}

func launchResult(err error) string {
	if err == nil {
		return "ok"
	}
	if kind := KindOf(err); kind != "" {
		return string(kind)
	}
	return "error"
}
