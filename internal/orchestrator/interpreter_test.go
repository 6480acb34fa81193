package orchestrator

import (
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"testing"

	"github.com/debutade/debutade-hub/internal/registry"
)

func touch(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, nil, 0o755); err != nil {
		t.Fatal(err)
	}
}

func TestResolveInterpreterPrecedence(t *testing.T) {
	posix := filepath.Join("bin", "python")
	windows := filepath.Join("Scripts", "python.exe")

	tests := []struct {
		name        string
		files       []string
		interpreter string
		want        string
		source      InterpreterSource
	}{
		{
			name:        "descriptor interpreter wins over venv",
			files:       []string{filepath.Join("py", "python3"), filepath.Join(".venv", posix)},
			interpreter: filepath.Join("py", "python3"),
			want:        filepath.Join("py", "python3"),
			source:      SourceDescriptor,
		},
		{
			name:        "missing descriptor interpreter falls through",
			files:       []string{filepath.Join("venv", posix)},
			interpreter: filepath.Join(".venv", windows),
			want:        filepath.Join("venv", posix),
			source:      SourceVenv,
		},
		{
			name:   ".venv before venv",
			files:  []string{filepath.Join("venv", posix), filepath.Join(".venv", posix)},
			want:   filepath.Join(".venv", posix),
			source: SourceVenv,
		},
		{
			name:   "venv before .venv312",
			files:  []string{filepath.Join(".venv312", posix), filepath.Join("venv", posix)},
			want:   filepath.Join("venv", posix),
			source: SourceVenv,
		},
		{
			name:   "foreign layout is still found",
			files:  []string{filepath.Join(".venv312", windows)},
			want:   filepath.Join(".venv312", windows),
			source: SourceVenv,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			for _, f := range tt.files {
				touch(t, filepath.Join(dir, f))
			}
			app := registry.AppDescriptor{ID: "kasboek", Dir: dir, Script: "kasboek.py", Interpreter: tt.interpreter}

			got, source := ResolveInterpreter(app, "")
			if want := filepath.Join(dir, tt.want); got != want {
				t.Errorf("ResolveInterpreter() = %q, want %q", got, want)
			}
			if source != tt.source {
				t.Errorf("source = %q, want %q", source, tt.source)
			}
		})
	}
}

func TestResolveInterpreterNativeLayoutFirst(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, ".venv", "bin", "python"))
	touch(t, filepath.Join(dir, ".venv", "Scripts", "python.exe"))

	got, _ := ResolveInterpreter(registry.AppDescriptor{Dir: dir}, "")

	want := filepath.Join(dir, ".venv", "bin", "python")
	if runtime.GOOS == "windows" {
		want = filepath.Join(dir, ".venv", "Scripts", "python.exe")
	}
	if got != want {
		t.Errorf("ResolveInterpreter() = %q, want %q", got, want)
	}
}

func TestResolveInterpreterFallback(t *testing.T) {
	dir := t.TempDir()
	fallback := filepath.Join(dir, "python-fallback")
	touch(t, fallback)

	got, source := ResolveInterpreter(registry.AppDescriptor{Dir: t.TempDir()}, fallback)
	if source != SourceFallback {
		t.Errorf("source = %q, want %q", source, SourceFallback)
	}
	if runtime.GOOS != "windows" && got != fallback {
		t.Errorf("ResolveInterpreter() = %q, want %q", got, fallback)
	}

	got, _ = ResolveInterpreter(registry.AppDescriptor{Dir: t.TempDir()}, filepath.Join(dir, "missing"))
	if got != "" {
		t.Errorf("expected no interpreter for a missing fallback, got %q", got)
	}
}

func TestChildEnv(t *testing.T) {
	base := []string{
		"PATH=/usr/bin",
		"MAIN_APP_URL=http://stale:1",
		"DEBUTADE_APP_PORT=1",
		"HOME=/home/penningmeester",
	}

	env := childEnv(base, "http://127.0.0.1:5003", "/srv/debutade.yaml", 5004)

	for _, want := range []string{
		"PATH=/usr/bin",
		"HOME=/home/penningmeester",
		"MAIN_APP_URL=http://127.0.0.1:5003",
		"DEBUTADE_CONFIG=/srv/debutade.yaml",
		"DEBUTADE_APP_PORT=5004",
	} {
		if !slices.Contains(env, want) {
			t.Errorf("expected %q in child environment %v", want, env)
		}
	}
	for _, stale := range []string{"MAIN_APP_URL=http://stale:1", "DEBUTADE_APP_PORT=1"} {
		if slices.Contains(env, stale) {
			t.Errorf("inherited %q should have been replaced", stale)
		}
	}
	if len(env) != 5 {
		t.Errorf("expected 5 variables, got %d: %v", len(env), env)
	}
}
