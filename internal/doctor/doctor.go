package doctor

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/debutade/debutade-hub/internal/orchestrator"
	"github.com/debutade/debutade-hub/internal/ports"
	"github.com/debutade/debutade-hub/internal/registry"
)

// RuntimeStatus represents the interpreter an app would be started with
type RuntimeStatus struct {
	Name      string
	Installed bool
	Version   string
	Path      string
	Source    orchestrator.InterpreterSource
}

// DependencyStatus represents the status of an app's Python packages
type DependencyStatus struct {
	Manager         string   // pip
	ConfigFile      string   // requirements.txt
	Installed       bool     // Are all requirements importable?
	MissingPackages []string // Requirements pip does not know about
	InstallCommand  string   // Command to install dependencies
}

// PortStatus describes the shared subapp port
type PortStatus struct {
	Port        int
	Open        bool
	OccupantPID int32 // 0 when unknown
}

// Diagnosis contains the full health check results for one app
type Diagnosis struct {
	AppID        string
	Name         string
	Dir          string
	Script       string
	ScriptFound  bool
	Runtime      RuntimeStatus
	Dependencies DependencyStatus
	Port         PortStatus
	Healthy      bool
	Issues       []string
}

// Options tune Diagnose.
type Options struct {
	FallbackInterpreter string
	// SkipPackages skips asking pip about requirements, which is slow.
	SkipPackages bool
}

// commandTimeout bounds every interpreter invocation.
const commandTimeout = 30 * time.Second

// runCommand runs a command and returns its combined output.
var runCommand = func(ctx context.Context, dir, name string, args ...string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	return cmd.CombinedOutput()
}

// Diagnose checks whether app can be launched
func Diagnose(ctx context.Context, app registry.AppDescriptor, opts Options) Diagnosis {
	diagnosis := Diagnosis{
		AppID:   app.ID,
		Name:    app.Name,
		Dir:     app.Dir,
		Script:  app.ScriptPath(),
		Healthy: true,
		Issues:  []string{},
	}

	if info, err := os.Stat(app.Dir); err != nil || !info.IsDir() {
		diagnosis.Issues = append(diagnosis.Issues, "app directory does not exist: "+app.Dir)
	}
	if _, err := os.Stat(diagnosis.Script); err == nil {
		diagnosis.ScriptFound = true
	} else {
		diagnosis.Issues = append(diagnosis.Issues, "entry script not found: "+diagnosis.Script)
	}

	diagnosis.Runtime = checkRuntime(ctx, app, opts.FallbackInterpreter)
	if !diagnosis.Runtime.Installed {
		diagnosis.Issues = append(diagnosis.Issues, "no usable Python interpreter")
	} else if diagnosis.Runtime.Source == orchestrator.SourceFallback {
		diagnosis.Issues = append(diagnosis.Issues, "no virtualenv in app directory, falling back to "+diagnosis.Runtime.Path)
	}

	diagnosis.Dependencies = checkDependencies(ctx, app.Dir, diagnosis.Runtime, opts.SkipPackages)
	if diagnosis.Runtime.Installed && !diagnosis.Dependencies.Installed {
		diagnosis.Issues = append(diagnosis.Issues,
			"missing packages: "+strings.Join(diagnosis.Dependencies.MissingPackages, ", "))
	}

	diagnosis.Port = CheckPort(ctx, app.Port)

	// A fallback interpreter is worth mentioning but still launches.
	for _, issue := range diagnosis.Issues {
		if !strings.HasPrefix(issue, "no virtualenv") {
			diagnosis.Healthy = false
		}
	}
	return diagnosis
}

// CheckPort reports whether something listens on port and, if possible, who.
func CheckPort(ctx context.Context, port int) PortStatus {
	status := PortStatus{Port: port, Open: ports.IsOpen("127.0.0.1", port, ports.DefaultDialTimeout)}
	if status.Open {
		if pid, ok := ports.Occupant(ctx, port); ok {
			status.OccupantPID = pid
		}
	}
	return status
}

// HubPortFree reports whether the hub can bind its own port.
func HubPortFree(port int) bool {
	return ports.IsPortAvailable(port)
}

// checkRuntime resolves the interpreter the orchestrator would use and asks
// it for its version
func checkRuntime(ctx context.Context, app registry.AppDescriptor, fallback string) RuntimeStatus {
	status := RuntimeStatus{Name: "Python"}

	path, source := orchestrator.ResolveInterpreter(app, fallback)
	if path == "" {
		return status
	}
	status.Path = path
	status.Source = source

	output, err := runCommand(ctx, app.Dir, path, "--version")
	if err == nil {
		status.Installed = true
		status.Version = strings.TrimSpace(string(output))
	}
	return status
}

// checkDependencies checks requirements.txt against what pip reports as
// installed for the app's interpreter
func checkDependencies(ctx context.Context, dir string, runtime RuntimeStatus, skip bool) DependencyStatus {
	status := DependencyStatus{Manager: "pip"}

	reqPath := filepath.Join(dir, "requirements.txt")
	if _, err := os.Stat(reqPath); err != nil {
		status.Installed = true
		return status
	}
	status.ConfigFile = "requirements.txt"
	status.InstallCommand = "python -m pip install -r requirements.txt"

	if skip || !runtime.Installed {
		// Nothing to ask; assume the best rather than report noise.
		status.Installed = runtime.Installed
		return status
	}

	required := parseRequirements(reqPath)
	if len(required) > 0 {
		status.MissingPackages = missingPackages(ctx, dir, runtime.Path, required)
	}
	status.Installed = len(status.MissingPackages) == 0
	return status
}

// parseRequirements returns the package names listed in a requirements file.
func parseRequirements(reqPath string) []string {
	data, err := os.ReadFile(reqPath)
	if err != nil {
		return nil
	}

	var names []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		// Skip comments, empty lines and pip options
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "-") {
			continue
		}
		if idx := strings.IndexAny(line, " ;#"); idx > 0 {
			line = line[:idx]
		}

		// Extract package name (before ==, >=, <=, etc.)
		pkgName := line
		for _, sep := range []string{"==", ">=", "<=", "~=", "!=", ">", "<", "["} {
			if idx := strings.Index(pkgName, sep); idx > 0 {
				pkgName = pkgName[:idx]
			}
		}
		if pkgName = strings.TrimSpace(pkgName); pkgName != "" {
			names = append(names, pkgName)
		}
	}
	return names
}

// missingPackages asks pip about all requirements at once. pip show prints
// a block per installed package and warns about the rest.
func missingPackages(ctx context.Context, dir, interpreter string, required []string) []string {
	args := append([]string{"-m", "pip", "show"}, required...)
	output, _ := runCommand(ctx, dir, interpreter, args...)

	found := map[string]bool{}
	for _, line := range strings.Split(string(output), "\n") {
		if name, ok := strings.CutPrefix(strings.TrimSpace(line), "Name:"); ok {
			found[normalizePackage(name)] = true
		}
	}

	var missing []string
	for _, pkg := range required {
		if !found[normalizePackage(pkg)] {
			missing = append(missing, pkg)
		}
	}
	return missing
}

func normalizePackage(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	return strings.NewReplacer("_", "-", ".", "-").Replace(name)
}

// InstallDependencies runs pip for the app's requirements with the given
// interpreter, streaming output to out
func InstallDependencies(ctx context.Context, app registry.AppDescriptor, interpreter string, out io.Writer) error {
	if interpreter == "" {
		return fmt.Errorf("no interpreter for %s", app.ID)
	}
	cmd := exec.CommandContext(ctx, interpreter, "-m", "pip", "install", "-r", "requirements.txt")
	cmd.Dir = app.Dir
	cmd.Stdout = out
	cmd.Stderr = out
	return cmd.Run()
}
