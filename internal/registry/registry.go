package registry

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

// DefaultPort is the port every subapp binds to unless configured otherwise.
const DefaultPort = 5004

var (
	ErrEmptyID     = errors.New("app descriptor without id")
	ErrDuplicateID = errors.New("duplicate app id")
	ErrMixedPorts  = errors.New("app port differs from the shared subapp port")
)

// AppDescriptor describes one launchable application.
type AppDescriptor struct {
	ID          string `yaml:"id"`
	Name        string `yaml:"name"`
	Description string `yaml:"description,omitempty"`
	Dir         string `yaml:"dir"`
	Script      string `yaml:"script"`
	Interpreter string `yaml:"python,omitempty"`
	Port        int    `yaml:"port,omitempty"`
}

// ScriptPath joins the app directory and the entry script. It is absolute
// only when Dir is; Load makes relative directories absolute when baseDir is.
func (d AppDescriptor) ScriptPath() string {
	return filepath.Join(d.Dir, d.Script)
}

// URL returns the address a browser should be sent to once the app is ready.
func (d AppDescriptor) URL() string {
	return "http://" + net.JoinHostPort("127.0.0.1", strconv.Itoa(d.Port))
}

// Registry is an immutable, ordered catalog of app descriptors.
type Registry struct {
	order []string
	apps  map[string]AppDescriptor
	port  int
}

// New builds a registry in which every app shares port. Descriptors with a
// zero port inherit it.
func New(port int, apps ...AppDescriptor) (*Registry, error) {
	r := &Registry{
		apps: make(map[string]AppDescriptor, len(apps)),
		port: port,
	}
	for _, app := range apps {
		if app.ID == "" {
			return nil, ErrEmptyID
		}
		if _, exists := r.apps[app.ID]; exists {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateID, app.ID)
		}
		if app.Port == 0 {
			app.Port = port
		}
		if app.Port != port {
			return nil, fmt.Errorf("%w: %s uses %d, expected %d", ErrMixedPorts, app.ID, app.Port, port)
		}
		if app.Name == "" {
			app.Name = app.ID
		}
		r.order = append(r.order, app.ID)
		r.apps[app.ID] = app
	}
	return r, nil
}

// Get looks up a descriptor by id.
func (r *Registry) Get(id string) (AppDescriptor, bool) {
	app, ok := r.apps[id]
	return app, ok
}

// IDs returns the app ids in catalog order.
func (r *Registry) IDs() []string {
	ids := make([]string, len(r.order))
	copy(ids, r.order)
	return ids
}

// List returns the descriptors in catalog order.
func (r *Registry) List() []AppDescriptor {
	apps := make([]AppDescriptor, 0, len(r.order))
	for _, id := range r.order {
		apps = append(apps, r.apps[id])
	}
	return apps
}

// Len reports the number of registered apps.
func (r *Registry) Len() int {
	return len(r.order)
}

// Port returns the shared subapp port.
func (r *Registry) Port() int {
	return r.port
}

// catalogFile is the on-disk layout of the apps file.
type catalogFile struct {
	Apps []AppDescriptor `yaml:"apps"`
}

// Load reads the apps file at path. Relative app directories are resolved
// against baseDir. A missing file yields the built-in catalog.
func Load(path, baseDir string, port int) (*Registry, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return Default(baseDir, port)
	}
	if err != nil {
		return nil, err
	}

	var cf catalogFile
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if len(cf.Apps) == 0 {
		return nil, fmt.Errorf("invalid catalog %s: no apps defined", path)
	}

	for i := range cf.Apps {
		cf.Apps[i].Dir = resolveDir(baseDir, cf.Apps[i].Dir)
	}
	return New(port, cf.Apps...)
}

// Write stores the registry as an apps file, e.g. to seed an editable copy of
// the built-in catalog.
func Write(path string, r *Registry) error {
	data, err := yaml.Marshal(&catalogFile{Apps: r.List()})
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func resolveDir(baseDir, dir string) string {
	if dir == "" || filepath.IsAbs(dir) {
		return dir
	}
	return filepath.Join(baseDir, dir)
}
