// Package orchestrator manages the lifecycle of the hub's subapps: it decides
// whether an app is already usable, evicts siblings from the shared port,
// spawns children, waits for them to listen and tears them down.
//
// The orchestrator's own bookkeeping (RuntimeHandle) is ephemeral and may
// disagree with the OS, so every decision also consults the port probe and
// the process resolver.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/debutade/debutade-hub/internal/metrics"
	"github.com/debutade/debutade-hub/internal/ports"
	"github.com/debutade/debutade-hub/internal/procscan"
	"github.com/debutade/debutade-hub/internal/registry"
)

const (
	DefaultReadyTimeout    = 60 * time.Second
	DefaultGracePeriod     = 4 * time.Second
	DefaultKillGracePeriod = 2 * time.Second
	DefaultSettleDelay     = 600 * time.Millisecond
)

// probeHost is where subapps are reached; they bind to loopback.
const probeHost = "127.0.0.1"

// Options configures an Orchestrator. Zero values select the defaults.
type Options struct {
	HubURL     string // injected as MAIN_APP_URL
	ConfigPath string // injected as DEBUTADE_CONFIG
	// FallbackInterpreter is used when an app has no interpreter of its own.
	FallbackInterpreter string

	ReadyTimeout    time.Duration
	PollInterval    time.Duration
	SettleDelay     time.Duration
	GracePeriod     time.Duration
	KillGracePeriod time.Duration
	// KeepOnTimeout leaves a child running when it misses the readiness
	// deadline. By default it is stopped.
	KeepOnTimeout bool

	Spawner    Spawner             // Optional, defaults to ExecSpawner writing to stderr
	Resolver   procscan.Resolver   // Optional, defaults to procscan.Disabled
	Controller procscan.Controller // Optional, defaults to procscan.Signals
	Clock      ports.Clock         // Optional, defaults to the wall clock
	Probe      func(host string, port int, timeout time.Duration) bool
	Logger     *slog.Logger
	Metrics    metrics.Recorder
}

// Orchestrator owns the runtime handles of the subapps it started.
type Orchestrator struct {
	registry *registry.Registry
	opts     Options

	spawner    Spawner
	resolver   procscan.Resolver
	controller procscan.Controller
	clock      ports.Clock
	probe      func(host string, port int, timeout time.Duration) bool
	waiter     *ports.Waiter
	logger     *slog.Logger
	metrics    metrics.Recorder

	// launchMu serialises launches: with one shared port, two concurrent
	// launches can only evict each other.
	launchMu sync.Mutex
	// appLocks serialise launch and stop of the same app. Lock order is
	// launchMu, then the launched app, then a sibling.
	appLocks map[string]*sync.Mutex

	mu      sync.RWMutex
	handles map[string]*RuntimeHandle
	states  map[string]AppState
}

// New creates an orchestrator for the apps in reg.
func New(reg *registry.Registry, opts Options) (*Orchestrator, error) {
	if reg == nil {
		return nil, fmt.Errorf("registry is required")
	}

	if opts.ReadyTimeout <= 0 {
		opts.ReadyTimeout = DefaultReadyTimeout
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = ports.DefaultPollInterval
	}
	if opts.SettleDelay < 0 {
		opts.SettleDelay = 0
	} else if opts.SettleDelay == 0 {
		opts.SettleDelay = DefaultSettleDelay
	}
	if opts.GracePeriod <= 0 {
		opts.GracePeriod = DefaultGracePeriod
	}
	if opts.KillGracePeriod <= 0 {
		opts.KillGracePeriod = DefaultKillGracePeriod
	}

	o := &Orchestrator{
		registry:   reg,
		opts:       opts,
		spawner:    opts.Spawner,
		resolver:   opts.Resolver,
		controller: opts.Controller,
		clock:      opts.Clock,
		probe:      opts.Probe,
		logger:     opts.Logger,
		metrics:    opts.Metrics,
		appLocks:   make(map[string]*sync.Mutex, reg.Len()),
		handles:    make(map[string]*RuntimeHandle),
		states:     make(map[string]AppState, reg.Len()),
	}
	if o.spawner == nil {
		o.spawner = &ExecSpawner{Output: os.Stderr}
	}
	if o.resolver == nil {
		o.resolver = procscan.Disabled{}
	}
	if o.controller == nil {
		o.controller = procscan.Signals{}
	}
	if o.clock == nil {
		o.clock = ports.SystemClock{}
	}
	if o.probe == nil {
		o.probe = ports.IsOpen
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	o.logger = o.logger.With("component", "orchestrator")
	if o.metrics == nil {
		o.metrics = metrics.Nop{}
	}
	o.waiter = &ports.Waiter{
		Host:        probeHost,
		Interval:    opts.PollInterval,
		DialTimeout: ports.DefaultDialTimeout,
		Clock:       o.clock,
		Probe:       o.probe,
	}

	for _, id := range reg.IDs() {
		o.appLocks[id] = &sync.Mutex{}
		o.states[id] = StateIdle
	}
	return o, nil
}

// Registry returns the app catalog the orchestrator serves.
func (o *Orchestrator) Registry() *registry.Registry {
	return o.registry
}

// State returns the lifecycle state recorded for appID.
func (o *Orchestrator) State(appID string) AppState {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.states[appID]
}

func (o *Orchestrator) setState(appID string, to AppState) {
	o.mu.Lock()
	from := o.states[appID]
	o.states[appID] = to
	o.mu.Unlock()

	if from != to {
		o.logger.Debug("state change", "app", appID, "from", from, "to", to)
		o.metrics.StateChanged(appID, from.String(), to.String())
	}
}

func (o *Orchestrator) tracked(appID string) *RuntimeHandle {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.handles[appID]
}

func (o *Orchestrator) track(h *RuntimeHandle) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.handles[h.AppID] = h
}

// untrack removes h unless it has already been replaced by a newer handle.
func (o *Orchestrator) untrack(h *RuntimeHandle) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.handles[h.AppID] == h {
		delete(o.handles, h.AppID)
	}
}

func (o *Orchestrator) trackedAlive(appID string) bool {
	h := o.tracked(appID)
	return h != nil && h.Alive()
}

func (o *Orchestrator) portOpen(port int) bool {
	return o.probe(probeHost, port, ports.DefaultDialTimeout)
}

// sleep waits d on the orchestrator clock, returning early when ctx is done.
func (o *Orchestrator) sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	select {
	case <-ctx.Done():
	case <-o.clock.After(d):
	}
}
