package orchestrator

import (
	"context"
	"errors"
	"os"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/debutade/debutade-hub/internal/procscan"
)

// victim is a process to be stopped, either one we spawned or one found in
// the process table.
type victim struct {
	pid       int
	terminate func() error
	kill      func() error
	gone      func() bool
	// done is closed on exit for processes we spawned, nil otherwise.
	done <-chan struct{}
}

func trackedVictim(h *RuntimeHandle) victim {
	return victim{
		pid:       h.PID,
		terminate: h.Process.Terminate,
		kill:      h.Process.Kill,
		gone:      func() bool { return !h.Alive() },
		done:      h.Process.Done(),
	}
}

func (o *Orchestrator) externalVictim(ctx context.Context, ref procscan.ProcessRef) victim {
	return victim{
		pid:       int(ref.PID),
		terminate: func() error { return o.controller.Terminate(ctx, ref.PID) },
		kill:      func() error { return o.controller.Kill(ctx, ref.PID) },
		gone:      func() bool { return !o.controller.Alive(ctx, ref.PID) },
	}
}

// stopProcess runs the graceful and forced phases against v and reports
// whether it is gone afterwards.
func (o *Orchestrator) stopProcess(ctx context.Context, appID string, v victim) bool {
	phases := []struct {
		phase  stopPhase
		signal func() error
		wait   time.Duration
	}{
		{phaseGraceful, v.terminate, o.opts.GracePeriod},
		{phaseForced, v.kill, o.opts.KillGracePeriod},
	}

	logger := o.logger.With("app", appID, "pid", v.pid)
	for _, p := range phases {
		if v.gone() {
			return true
		}
		if err := p.signal(); err != nil {
			if errors.Is(err, os.ErrProcessDone) {
				return true
			}
			logger.Debug("signal failed", "phase", p.phase, "error", err)
		}
		if o.waitGone(ctx, v, p.wait) {
			logger.Info("process stopped", "phase", p.phase)
			o.metrics.ProcessStopped(appID, p.phase.String())
			return true
		}
	}

	logger.Warn("process survived forced stop")
	o.metrics.StopFailed(appID)
	return false
}

// waitGone waits up to d for v to disappear.
func (o *Orchestrator) waitGone(ctx context.Context, v victim, d time.Duration) bool {
	if v.done != nil {
		select {
		case <-v.done:
			return true
		case <-ctx.Done():
			return v.gone()
		case <-o.clock.After(d):
			return v.gone()
		}
	}

	deadline := o.clock.Now().Add(d)
	for {
		if v.gone() {
			return true
		}
		if !o.clock.Now().Before(deadline) {
			return false
		}
		select {
		case <-ctx.Done():
			return v.gone()
		case <-o.clock.After(o.opts.PollInterval):
		}
	}
}

// StopApp stops appID: first the process this orchestrator spawned, then any
// other process the resolver attributes to the app. It returns how many
// processes were stopped. When some survive the forced phase, the count is
// returned together with a StopFailure error.
func (o *Orchestrator) StopApp(ctx context.Context, appID string) (int, error) {
	app, ok := o.registry.Get(appID)
	if !ok {
		return 0, newError(KindUnknownApp, appID, "unknown app %q", appID)
	}

	lock := o.appLocks[appID]
	lock.Lock()
	defer lock.Unlock()

	stopped, failed := 0, 0
	covered := map[int]bool{}

	if h := o.tracked(appID); h != nil {
		covered[h.PID] = true
		if h.Alive() {
			o.setState(appID, StateStopping)
			if o.stopProcess(ctx, appID, trackedVictim(h)) {
				stopped++
			} else {
				failed++
			}
		}
		if !h.Alive() {
			o.untrack(h)
		}
	}

	for _, ref := range o.resolver.FindMatching(ctx, app) {
		if covered[int(ref.PID)] {
			continue
		}
		covered[int(ref.PID)] = true
		o.setState(appID, StateStopping)
		if o.stopProcess(ctx, appID, o.externalVictim(ctx, ref)) {
			stopped++
		} else {
			failed++
		}
	}

	if failed > 0 {
		o.setState(appID, StateFailed)
		return stopped, newError(KindStopFailure, appID, "%d of %d processes of %s could not be stopped", failed, stopped+failed, app.Name)
	}
	if stopped > 0 || o.State(appID) == StateRunning {
		o.setState(appID, StateIdle)
	}
	return stopped, nil
}

// StopOthers stops every registered app except currentID concurrently and
// returns the total number of processes stopped. Failures are logged.
func (o *Orchestrator) StopOthers(ctx context.Context, currentID string) int {
	var (
		g     errgroup.Group
		total atomic.Int64
	)
	for _, id := range o.registry.IDs() {
		if id == currentID {
			continue
		}
		g.Go(func() error {
			n, err := o.StopApp(ctx, id)
			total.Add(int64(n))
			if err != nil {
				o.logger.Warn("stopping app failed", "app", id, "error", err)
			}
			return nil
		})
	}
	g.Wait()
	return int(total.Load())
}

// StopAll stops every registered app.
func (o *Orchestrator) StopAll(ctx context.Context) int {
	return o.StopOthers(ctx, "")
}
