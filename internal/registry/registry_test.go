package registry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPreservesOrderAndInheritsPort(t *testing.T) {
	reg, err := New(5004,
		AppDescriptor{ID: "kasboek", Dir: "/apps/kas", Script: "webapp.py"},
		AppDescriptor{ID: "bontoevoegen", Dir: "/apps/bon", Script: "voegbontoe_webapp.py", Port: 5004},
	)
	require.NoError(t, err)

	assert.Equal(t, []string{"kasboek", "bontoevoegen"}, reg.IDs())
	app, ok := reg.Get("kasboek")
	require.True(t, ok)
	assert.Equal(t, 5004, app.Port)
	assert.Equal(t, "kasboek", app.Name, "name defaults to id")
	assert.Equal(t, "http://127.0.0.1:5004", app.URL())
	assert.Equal(t, filepath.Join("/apps/kas", "webapp.py"), app.ScriptPath())
}

func TestScriptPathFollowsDir(t *testing.T) {
	rel := AppDescriptor{Dir: "project-debutade-kasboek", Script: "webapp.py"}
	assert.Equal(t, filepath.Join("project-debutade-kasboek", "webapp.py"), rel.ScriptPath())
	assert.False(t, filepath.IsAbs(rel.ScriptPath()))

	base := t.TempDir()
	path := filepath.Join(base, "apps.yaml")
	require.NoError(t, os.WriteFile(path, []byte("apps:\n  - id: kasboek\n    dir: project-debutade-kasboek\n    script: webapp.py\n"), 0o644))
	reg, err := Load(path, base, 5004)
	require.NoError(t, err)
	app, ok := reg.Get("kasboek")
	require.True(t, ok)
	assert.True(t, filepath.IsAbs(app.ScriptPath()))
	assert.Equal(t, filepath.Join(base, "project-debutade-kasboek", "webapp.py"), app.ScriptPath())
}

func TestNewRejectsInvalidCatalogs(t *testing.T) {
	tests := []struct {
		name string
		apps []AppDescriptor
		want error
	}{
		{
			name: "empty id",
			apps: []AppDescriptor{{Script: "webapp.py"}},
			want: ErrEmptyID,
		},
		{
			name: "duplicate id",
			apps: []AppDescriptor{{ID: "kasboek"}, {ID: "kasboek"}},
			want: ErrDuplicateID,
		},
		{
			name: "port differs from shared port",
			apps: []AppDescriptor{{ID: "kasboek", Port: 5005}},
			want: ErrMixedPorts,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(5004, tt.apps...)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestLoadFallsBackToDefaultCatalog(t *testing.T) {
	base := t.TempDir()

	reg, err := Load(filepath.Join(base, "apps.yaml"), base, 5004)
	require.NoError(t, err)

	assert.Equal(t, []string{"bankrekening", "kasboek", "bontoevoegen", "showreport", "contributie"}, reg.IDs())
	bon, _ := reg.Get("bontoevoegen")
	assert.Equal(t, filepath.Join(base, "project-debutade-bontoevoegen"), bon.Dir)
	assert.Equal(t, "voegbontoe_webapp.py", bon.Script)
}

func TestLoadResolvesRelativeDirs(t *testing.T) {
	base := t.TempDir()
	path := filepath.Join(base, "apps.yaml")
	content := `apps:
  - id: kasboek
    name: Kasboek beheer
    dir: project-debutade-kasboek
    script: webapp.py
  - id: extern
    dir: /srv/extern
    script: main.py
    python: /usr/bin/python3
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	reg, err := Load(path, base, 6000)
	require.NoError(t, err)

	kas, _ := reg.Get("kasboek")
	assert.Equal(t, filepath.Join(base, "project-debutade-kasboek"), kas.Dir)
	assert.Equal(t, 6000, kas.Port)

	ext, _ := reg.Get("extern")
	assert.Equal(t, "/srv/extern", ext.Dir)
	assert.Equal(t, "/usr/bin/python3", ext.Interpreter)
}

func TestLoadRejectsEmptyCatalog(t *testing.T) {
	base := t.TempDir()
	path := filepath.Join(base, "apps.yaml")
	require.NoError(t, os.WriteFile(path, []byte("apps: []\n"), 0o644))

	_, err := Load(path, base, 5004)
	assert.Error(t, err)
}

func TestWriteRoundTripsThroughLoad(t *testing.T) {
	base := t.TempDir()
	reg, err := Default(base, 5004)
	require.NoError(t, err)

	path := filepath.Join(base, "apps.yaml")
	require.NoError(t, Write(path, reg))

	loaded, err := Load(path, base, 5004)
	require.NoError(t, err)
	assert.Equal(t, reg.List(), loaded.List())
}
