// Package procscan finds subapp processes in the OS process table, independent
// of whatever the orchestrator itself has spawned.
package procscan

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/shirou/gopsutil/v3/process"

	"github.com/debutade/debutade-hub/internal/registry"
)

// ProcessRef identifies a process discovered in the process table.
type ProcessRef struct {
	PID     int32
	Name    string
	Cmdline string
	Cwd     string // empty when the working directory could not be read
}

// Resolver finds processes belonging to an app.
type Resolver interface {
	FindMatching(ctx context.Context, app registry.AppDescriptor) []ProcessRef
}

// Controller signals processes the orchestrator did not spawn itself.
type Controller interface {
	Terminate(ctx context.Context, pid int32) error
	Kill(ctx context.Context, pid int32) error
	Alive(ctx context.Context, pid int32) bool
}

// New returns a process-table resolver when the platform supports process
// enumeration, and a Disabled resolver otherwise.
func New(logger *slog.Logger) Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	if _, err := process.Pids(); err != nil {
		logger.Warn("process introspection unavailable, external subapp processes will not be discovered", "error", err)
		return Disabled{}
	}
	return &Table{self: int32(os.Getpid()), logger: logger.With("component", "procscan")}
}

// Disabled is a Resolver that never finds anything.
type Disabled struct{}

func (Disabled) FindMatching(context.Context, registry.AppDescriptor) []ProcessRef { return nil }

// Table resolves apps against the live process table.
type Table struct {
	self   int32
	logger *slog.Logger
}

// FindMatching returns Python processes whose command line names the app's
// entry script and, when the working directory is readable, that run inside
// the app's directory. Processes that vanish or deny access are skipped.
func (t *Table) FindMatching(ctx context.Context, app registry.AppDescriptor) []ProcessRef {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		t.logger.Debug("listing processes failed", "error", err)
		return nil
	}

	var matches []ProcessRef
	for _, p := range procs {
		if p.Pid == t.self {
			continue
		}
		cmdline, err := p.CmdlineWithContext(ctx)
		if err != nil || cmdline == "" {
			continue
		}
		ref := ProcessRef{PID: p.Pid, Cmdline: cmdline}
		ref.Name, _ = p.NameWithContext(ctx)
		ref.Cwd, _ = p.CwdWithContext(ctx)
		if Matches(app, ref) {
			matches = append(matches, ref)
		}
	}
	return matches
}

// Matches applies the interpreter, script and directory rules to a single
// process. The script must appear as a whole command line word or as the last
// element of a path, so webapp.py does not match voegbontoe_webapp.py.
func Matches(app registry.AppDescriptor, ref ProcessRef) bool {
	if !isPython(ref) || !mentionsScript(ref.Cmdline, app.Script) {
		return false
	}
	if ref.Cwd == "" || app.Dir == "" {
		return true
	}
	return withinDir(ref.Cwd, app.Dir)
}

// isPython reports whether the process name or its argv[0] is a Python
// interpreter, including versioned binaries and the Windows py launcher.
func isPython(ref ProcessRef) bool {
	candidates := []string{ref.Name}
	if fields := strings.Fields(ref.Cmdline); len(fields) > 0 {
		candidates = append(candidates, fields[0])
	}
	for _, c := range candidates {
		base := strings.ToLower(filepath.Base(strings.ReplaceAll(strings.Trim(c, `"'`), `\`, "/")))
		base = strings.TrimSuffix(base, ".exe")
		if strings.Contains(base, "python") || base == "py" || base == "pyw" {
			return true
		}
	}
	return false
}

func mentionsScript(cmdline, script string) bool {
	script = strings.ToLower(script)
	if script == "" {
		return false
	}
	cmdline = strings.ToLower(cmdline)
	for from := 0; ; {
		i := strings.Index(cmdline[from:], script)
		if i < 0 {
			return false
		}
		start := from + i
		end := start + len(script)
		if (start == 0 || isBoundary(cmdline[start-1])) && (end == len(cmdline) || isBoundary(cmdline[end])) {
			return true
		}
		from = start + 1
	}
}

func isBoundary(c byte) bool {
	switch c {
	case ' ', '\t', '/', '\\', '"', '\'', '=':
		return true
	}
	return false
}

func withinDir(cwd, dir string) bool {
	cwd = normalize(cwd)
	dir = normalize(dir)
	if cwd == dir {
		return true
	}
	return strings.HasPrefix(cwd, dir+string(filepath.Separator))
}

func normalize(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	path = filepath.Clean(path)
	if runtime.GOOS == "windows" || runtime.GOOS == "darwin" {
		path = strings.ToLower(path)
	}
	return path
}

// Signals controls arbitrary processes through gopsutil.
type Signals struct{}

func (Signals) Terminate(ctx context.Context, pid int32) error {
	p, err := process.NewProcessWithContext(ctx, pid)
	if err != nil {
		return err
	}
	return p.TerminateWithContext(ctx)
}

func (Signals) Kill(ctx context.Context, pid int32) error {
	p, err := process.NewProcessWithContext(ctx, pid)
	if err != nil {
		return err
	}
	return p.KillWithContext(ctx)
}

// Alive reports whether pid exists and is not a zombie.
func (Signals) Alive(ctx context.Context, pid int32) bool {
	p, err := process.NewProcessWithContext(ctx, pid)
	if err != nil {
		return false
	}
	running, err := p.IsRunningWithContext(ctx)
	if err != nil || !running {
		return false
	}
	status, err := p.StatusWithContext(ctx)
	if err != nil {
		return true
	}
	for _, s := range status {
		if s == process.Zombie {
			return false
		}
	}
	return true
}
