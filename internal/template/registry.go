package template

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// ErrUnknownForm is returned when a form type has no registered template.
type ErrUnknownForm struct {
	FormType string
}

func (e *ErrUnknownForm) Error() string {
	return fmt.Sprintf("unknown form type: %s", e.FormType)
}

// Registry holds the known form templates keyed by name.
type Registry struct {
	mu        sync.RWMutex
	templates map[string]*Template
}

// NewRegistry creates a registry pre-populated with the built-in templates.
func NewRegistry() *Registry {
	r := &Registry{templates: make(map[string]*Template)}
	r.templates[StandardFourChoice] = standardFourChoice()
	return r
}

// Get returns the template for the given form type.
func (r *Registry) Get(formType string) (*Template, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.templates[formType]
	if !ok {
		return nil, &ErrUnknownForm{FormType: formType}
	}
	return t, nil
}

// Register validates and adds a template, replacing any previous version
// with the same name only if the new version is not older.
func (r *Registry) Register(t *Template) error {
	if err := t.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if prev, ok := r.templates[t.Name]; ok && prev.Version > t.Version {
		return fmt.Errorf("template %s: version %d already registered, refusing downgrade to %d",
			t.Name, prev.Version, t.Version)
	}
	r.templates[t.Name] = t
	return nil
}

// Names returns the registered form types in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.templates))
	for n := range r.templates {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// LoadDir loads all *.yaml/*.yml template files from dir into the registry.
// A missing directory is not an error; the built-ins remain available.
func (r *Registry) LoadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading template dir: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		path := filepath.Join(dir, e.Name())
		data, err := os.ReadFile(path) //nolint:gosec // G304: template files come from the configured dir
		if err != nil {
			return fmt.Errorf("reading template %s: %w", path, err)
		}
		var t Template
		if err := yaml.Unmarshal(data, &t); err != nil {
			return fmt.Errorf("parsing template %s: %w", path, err)
		}
		if err := r.Register(&t); err != nil {
			return fmt.Errorf("registering template %s: %w", path, err)
		}
	}
	return nil
}
