package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder receives orchestrator events. A nil Recorder is never passed
// around; use Nop when metrics are disabled.
type Recorder interface {
	StateChanged(appID, from, to string)
	LaunchFinished(appID, result string, d time.Duration)
	ProcessStopped(appID, phase string)
	StopFailed(appID string)
}

// Nop discards all events.
type Nop struct{}

func (Nop) StateChanged(string, string, string)           {}
func (Nop) LaunchFinished(string, string, time.Duration) {}
func (Nop) ProcessStopped(string, string)                {}
func (Nop) StopFailed(string)                            {}

// Prometheus implements Recorder on a private registry.
type Prometheus struct {
	transitions    *prometheus.CounterVec
	launches       *prometheus.CounterVec
	launchDuration *prometheus.HistogramVec
	stopped        *prometheus.CounterVec
	stopFailures   *prometheus.CounterVec

	registry *prometheus.Registry
}

// NewPrometheus creates a collector whose metrics are prefixed with namespace.
func NewPrometheus(namespace string) *Prometheus {
	if namespace == "" {
		namespace = "debutade"
	}

	p := &Prometheus{registry: prometheus.NewRegistry()}

	p.transitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "app_state_transitions_total",
			Help:      "Total number of subapp state transitions",
		},
		[]string{"app", "from_state", "to_state"},
	)

	p.launches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "app_launches_total",
			Help:      "Launch requests by outcome",
		},
		[]string{"app", "result"},
	)

	// Readiness waits go up to a minute by default.
	p.launchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "app_launch_duration_seconds",
			Help:      "Time from launch request to a usable URL or failure",
			Buckets:   []float64{0.05, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"app", "result"},
	)

	p.stopped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "app_processes_stopped_total",
			Help:      "Processes stopped, by the stop phase that ended them",
		},
		[]string{"app", "phase"},
	)

	p.stopFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "app_stop_failures_total",
			Help:      "Processes that survived both stop phases",
		},
		[]string{"app"},
	)

	p.registry.MustRegister(
		p.transitions,
		p.launches,
		p.launchDuration,
		p.stopped,
		p.stopFailures,
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)

	return p
}

func (p *Prometheus) StateChanged(appID, from, to string) {
	p.transitions.WithLabelValues(appID, from, to).Inc()
}

func (p *Prometheus) LaunchFinished(appID, result string, d time.Duration) {
	p.launches.WithLabelValues(appID, result).Inc()
	p.launchDuration.WithLabelValues(appID, result).Observe(d.Seconds())
}

func (p *Prometheus) ProcessStopped(appID, phase string) {
	p.stopped.WithLabelValues(appID, phase).Inc()
}

func (p *Prometheus) StopFailed(appID string) {
	p.stopFailures.WithLabelValues(appID).Inc()
}

// Registry exposes the underlying registry, mainly for tests.
func (p *Prometheus) Registry() *prometheus.Registry {
	return p.registry
}

// Handler serves the collected metrics in the Prometheus text format.
func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}
