package procscan

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/debutade/debutade-hub/internal/registry"
)

func TestMatches(t *testing.T) {
	app := registry.AppDescriptor{
		ID:     "kasboek",
		Dir:    filepath.Join(string(filepath.Separator), "srv", "project-debutade-kasboek"),
		Script: "webapp.py",
	}

	tests := []struct {
		name string
		ref  ProcessRef
		want bool
	}{
		{
			name: "script and directory match",
			ref:  ProcessRef{Cmdline: "python webapp.py", Cwd: app.Dir},
			want: true,
		},
		{
			name: "script match is case-insensitive",
			ref:  ProcessRef{Cmdline: "python WebApp.PY", Cwd: app.Dir},
			want: true,
		},
		{
			name: "subdirectory of the app counts",
			ref:  ProcessRef{Cmdline: "python ../webapp.py", Cwd: filepath.Join(app.Dir, "static")},
			want: true,
		},
		{
			name: "unreadable cwd falls back to script match",
			ref:  ProcessRef{Cmdline: "python webapp.py"},
			want: true,
		},
		{
			name: "same script in a sibling app directory",
			ref:  ProcessRef{Cmdline: "python webapp.py", Cwd: filepath.Join(string(filepath.Separator), "srv", "project-debutade-showreport")},
			want: false,
		},
		{
			name: "directory prefix without separator",
			ref:  ProcessRef{Cmdline: "python webapp.py", Cwd: app.Dir + "-old"},
			want: false,
		},
		{
			name: "sibling script sharing a suffix",
			ref:  ProcessRef{Cmdline: "python voegbontoe_webapp.py", Cwd: app.Dir},
			want: false,
		},
		{
			name: "sibling script sharing a suffix with unreadable cwd",
			ref:  ProcessRef{Cmdline: "python voegbontoe_webapp.py"},
			want: false,
		},
		{
			name: "script given as a path",
			ref:  ProcessRef{Cmdline: "/srv/venv/bin/python3 /srv/project-debutade-kasboek/webapp.py", Cwd: app.Dir},
			want: true,
		},
		{
			name: "windows launcher and path",
			ref:  ProcessRef{Name: "py.exe", Cmdline: `py.exe C:\srv\project-debutade-kasboek\webapp.py`},
			want: true,
		},
		{
			name: "interpreter known only by process name",
			ref:  ProcessRef{Name: "python3.11", Cmdline: "/srv/venv/bin/app-runner webapp.py", Cwd: app.Dir},
			want: true,
		},
		{
			name: "editor with the script open",
			ref:  ProcessRef{Name: "vim", Cmdline: "vim webapp.py", Cwd: app.Dir},
			want: false,
		},
		{
			name: "tail on the script",
			ref:  ProcessRef{Name: "tail", Cmdline: "tail -f webapp.py", Cwd: app.Dir},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Matches(app, tt.ref))
		})
	}
}

// Without a readable cwd only the script name is left, so apps that share a
// script name cannot be told apart. The directory rule separates them.
func TestMatchesSameScriptAcrossApps(t *testing.T) {
	kasboek := registry.AppDescriptor{ID: "kasboek", Dir: filepath.Join(string(filepath.Separator), "srv", "project-debutade-kasboek"), Script: "webapp.py"}
	bankrekening := registry.AppDescriptor{ID: "bankrekening", Dir: filepath.Join(string(filepath.Separator), "srv", "project-debutade-bankrekening"), Script: "webapp.py"}
	bontoevoegen := registry.AppDescriptor{ID: "bontoevoegen", Dir: filepath.Join(string(filepath.Separator), "srv", "project-debutade-bontoevoegen"), Script: "voegbontoe_webapp.py"}

	bank := ProcessRef{Name: "python", Cmdline: "python webapp.py"}
	assert.True(t, Matches(kasboek, bank))
	assert.True(t, Matches(bankrekening, bank))

	bank.Cwd = bankrekening.Dir
	assert.False(t, Matches(kasboek, bank))
	assert.True(t, Matches(bankrekening, bank))

	bon := ProcessRef{Name: "python", Cmdline: "python voegbontoe_webapp.py"}
	assert.False(t, Matches(kasboek, bon))
	assert.True(t, Matches(bontoevoegen, bon))
	bon.Cwd = bontoevoegen.Dir
	assert.False(t, Matches(kasboek, bon))
	assert.True(t, Matches(bontoevoegen, bon))
}

func TestDisabledFindsNothing(t *testing.T) {
	got := Disabled{}.FindMatching(context.Background(), registry.AppDescriptor{Script: "webapp.py"})
	assert.Empty(t, got)
}

func TestTableFindsAndStopsExternalProcess(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses a POSIX shell")
	}

	dir, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	script := "procscan_marker_webapp.py"

	sh, err := exec.LookPath("sh")
	require.NoError(t, err)
	// Only interpreters match, so run the shell under a python name.
	interp := filepath.Join(dir, "python3-marker")
	require.NoError(t, os.Symlink(sh, interp))

	// The trailing command keeps sh from exec'ing sleep, so the marker stays
	// in the command line.
	cmd := exec.Command(interp, "-c", "sleep 30; true", script)
	cmd.Dir = dir
	require.NoError(t, cmd.Start())
	done := make(chan struct{})
	go func() {
		cmd.Wait()
		close(done)
	}()
	t.Cleanup(func() {
		cmd.Process.Kill()
		<-done
	})

	resolver := New(nil)
	app := registry.AppDescriptor{ID: "marker", Dir: dir, Script: script}

	ctx := context.Background()
	pid := int32(cmd.Process.Pid)
	require.Eventually(t, func() bool {
		for _, ref := range resolver.FindMatching(ctx, app) {
			if ref.PID == pid {
				return true
			}
		}
		return false
	}, 5*time.Second, 50*time.Millisecond)

	signals := Signals{}
	assert.True(t, signals.Alive(ctx, pid))
	require.NoError(t, signals.Kill(ctx, pid))

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("process survived kill")
	}
	assert.False(t, signals.Alive(ctx, pid))
}
