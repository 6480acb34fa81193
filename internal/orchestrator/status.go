package orchestrator

import (
	"context"
)

// Status is the observable state of one app.
type Status struct {
	Running bool   `json:"running"`
	Port    int    `json:"port"`
	PID     *int   `json:"pid"`
	State   string `json:"state"`
}

// AppStatus is a Status labelled with its app.
type AppStatus struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Status
}

// StatusOf reports whether appID is running and which process serves it.
// A live tracked process wins over resolver matches. Dead handles are pruned.
func (o *Orchestrator) StatusOf(ctx context.Context, appID string) (Status, error) {
	app, ok := o.registry.Get(appID)
	if !ok {
		return Status{}, newError(KindUnknownApp, appID, "unknown app %q", appID)
	}

	var pid *int
	if h := o.tracked(appID); h != nil {
		if h.Alive() {
			p := h.PID
			pid = &p
		} else {
			o.untrack(h)
			o.compareAndSetState(appID, StateRunning, StateIdle)
		}
	}
	if pid == nil {
		if matches := o.resolver.FindMatching(ctx, app); len(matches) > 0 {
			p := int(matches[0].PID)
			pid = &p
		}
	}

	running := pid != nil
	state := o.State(appID)
	switch {
	case running && (state == StateIdle || state == StateFailed):
		// Started outside this hub, or survived a failed stop.
		state = StateRunning
	case !running && state == StateRunning:
		state = StateIdle
	}

	return Status{
		Running: running,
		Port:    app.Port,
		PID:     pid,
		State:   state.String(),
	}, nil
}

// Statuses reports every app in registry order.
func (o *Orchestrator) Statuses(ctx context.Context) []AppStatus {
	out := make([]AppStatus, 0, o.registry.Len())
	for _, app := range o.registry.List() {
		st, err := o.StatusOf(ctx, app.ID)
		if err != nil {
			continue
		}
		out = append(out, AppStatus{ID: app.ID, Name: app.Name, Status: st})
	}
	return out
}

func (o *Orchestrator) compareAndSetState(appID string, from, to AppState) {
	o.mu.Lock()
	swapped := o.states[appID] == from
	if swapped {
		o.states[appID] = to
	}
	o.mu.Unlock()

	if swapped {
		o.metrics.StateChanged(appID, from.String(), to.String())
	}
}
