package orchestrator

import (
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/debutade/debutade-hub/internal/registry"
)

// Environment variables injected into every subapp.
const (
	EnvHubURL     = "MAIN_APP_URL"
	EnvConfigPath = "DEBUTADE_CONFIG"
	EnvAppPort    = "DEBUTADE_APP_PORT"
)

// InterpreterSource tells which rule picked an interpreter.
type InterpreterSource string

const (
	SourceDescriptor InterpreterSource = "descriptor"
	SourceVenv       InterpreterSource = "venv"
	SourceFallback   InterpreterSource = "fallback"
)

// venvDirs are the virtualenv directory names tried inside an app directory,
// in order.
var venvDirs = []string{".venv", "venv", ".venv312"}

func venvLayouts() []string {
	windows := filepath.Join("Scripts", "python.exe")
	posix := filepath.Join("bin", "python")
	if runtime.GOOS == "windows" {
		return []string{windows, posix}
	}
	return []string{posix, windows}
}

// ResolveInterpreter picks the interpreter for app: the descriptor's own
// interpreter, then a virtualenv inside the app directory, then fallback
// (a path or a command looked up on PATH; python3 and python when empty).
// The returned path is empty when nothing could be found.
func ResolveInterpreter(app registry.AppDescriptor, fallback string) (string, InterpreterSource) {
	if app.Interpreter != "" {
		path := app.Interpreter
		if !filepath.IsAbs(path) {
			path = filepath.Join(app.Dir, path)
		}
		if fileExists(path) {
			return path, SourceDescriptor
		}
	}

	for _, dir := range venvDirs {
		for _, layout := range venvLayouts() {
			path := filepath.Join(app.Dir, dir, layout)
			if fileExists(path) {
				return path, SourceVenv
			}
		}
	}

	return fallbackInterpreter(fallback), SourceFallback
}

func fallbackInterpreter(configured string) string {
	if configured != "" {
		if path, err := exec.LookPath(configured); err == nil {
			return path
		}
		return ""
	}
	for _, name := range []string{"python3", "python"} {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}
	return ""
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// childEnv returns base with the hub variables set, replacing any inherited
// values of the same name.
func childEnv(base []string, hubURL, configPath string, port int) []string {
	injected := map[string]string{
		EnvHubURL:     hubURL,
		EnvConfigPath: configPath,
		EnvAppPort:    strconv.Itoa(port),
	}

	env := make([]string, 0, len(base)+len(injected))
	for _, kv := range base {
		key, _, _ := strings.Cut(kv, "=")
		if _, ok := injected[envKey(key)]; ok {
			continue
		}
		env = append(env, kv)
	}
	for _, key := range []string{EnvHubURL, EnvConfigPath, EnvAppPort} {
		env = append(env, key+"="+injected[key])
	}
	return env
}

func envKey(key string) string {
	if runtime.GOOS == "windows" {
		return strings.ToUpper(key)
	}
	return key
}
