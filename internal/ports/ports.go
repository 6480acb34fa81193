package ports

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	psnet "github.com/shirou/gopsutil/v3/net"
)

// DefaultPollInterval is how often WaitUntilOpen re-probes a port.
const DefaultPollInterval = 400 * time.Millisecond

// DefaultDialTimeout bounds a single connect attempt.
const DefaultDialTimeout = 400 * time.Millisecond

// IsOpen reports whether a TCP connection to host:port succeeds within timeout.
func IsOpen(host string, port int, timeout time.Duration) bool {
	conn, err := net.DialTimeout("tcp", net.JoinHostPort(host, strconv.Itoa(port)), timeout)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

// IsPortAvailable checks if a port is available for binding
func IsPortAvailable(port int) bool {
	addr := fmt.Sprintf(":%d", port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return false
	}
	listener.Close()
	return true
}

// Occupant returns the PID of the process listening on port.
// The lookup is best-effort: ok is false when nothing is found, the platform
// does not expose socket owners, or the caller lacks permission.
func Occupant(ctx context.Context, port int) (pid int32, ok bool) {
	conns, err := psnet.ConnectionsWithContext(ctx, "tcp")
	if err != nil {
		return 0, false
	}
	for _, c := range conns {
		if c.Status == "LISTEN" && int(c.Laddr.Port) == port && c.Pid > 0 {
			return c.Pid, true
		}
	}
	return 0, false
}

// Clock is the time source used for polling. Tests substitute a fake to
// drive timeouts without sleeping.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

// SystemClock is the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time                         { return time.Now() }
func (SystemClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// Waiter polls a port until it opens.
type Waiter struct {
	Host        string
	Interval    time.Duration
	DialTimeout time.Duration
	Clock       Clock
	// Probe defaults to IsOpen.
	Probe func(host string, port int, timeout time.Duration) bool
}

// NewWaiter returns a Waiter probing host with the default interval and the
// wall clock.
func NewWaiter(host string) *Waiter {
	return &Waiter{
		Host:        host,
		Interval:    DefaultPollInterval,
		DialTimeout: DefaultDialTimeout,
		Clock:       SystemClock{},
		Probe:       IsOpen,
	}
}

// WaitUntilOpen polls port until it accepts connections, returning true.
// It returns false when exited is closed first, when timeout elapses, or when
// ctx is done. exited may be nil when there is no process to watch.
//
// Exit is checked before and after every probe: once the watched process is
// gone a later open port belongs to someone else.
func (w *Waiter) WaitUntilOpen(ctx context.Context, port int, timeout time.Duration, exited <-chan struct{}) bool {
	clock := w.Clock
	if clock == nil {
		clock = SystemClock{}
	}
	probe := w.Probe
	if probe == nil {
		probe = IsOpen
	}
	interval := w.Interval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	dial := w.DialTimeout
	if dial <= 0 {
		dial = DefaultDialTimeout
	}

	deadline := clock.Now().Add(timeout)
	for {
		if closed(exited) {
			return false
		}
		if probe(w.Host, port, dial) {
			return !closed(exited)
		}
		if !clock.Now().Before(deadline) {
			return false
		}

		select {
		case <-ctx.Done():
			return false
		case <-exited:
			return false
		case <-clock.After(interval):
		}
	}
}

func closed(ch <-chan struct{}) bool {
	if ch == nil {
		return false
	}
	select {
	case <-ch:
		return true
	default:
		return false
	}
}
