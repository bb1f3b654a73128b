package validators

import (
	"sort"
	"sync"

	"github.com/pkg/errors"
)

// ErrModuleNotFound is returned for an unknown module name.
var ErrModuleNotFound = errors.New("validation module not found")

// Registry maps module names to the modules served by this process.
type Registry struct {
	mu      sync.RWMutex
	modules map[string]IValidationModule
}

func NewRegistry(modules ...IValidationModule) (*Registry, error) {
	r := &Registry{modules: make(map[string]IValidationModule)}
	for _, m := range modules {
		if err := r.Register(m); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Registry) Register(m IValidationModule) error {
	name := m.Metadata().Name
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.modules[name]; exists {
		return errors.Errorf("module %q already registered", name)
	}
	r.modules[name] = m
	return nil
}

func (r *Registry) Get(name string) (IValidationModule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.modules[name]
	if !ok {
		return nil, errors.Wrapf(ErrModuleNotFound, "%q", name)
	}
	return m, nil
}

// List returns the registered modules sorted by name.
func (r *Registry) List() []IValidationModule {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.modules))
	for name := range r.modules {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]IValidationModule, 0, len(names))
	for _, name := range names {
		out = append(out, r.modules[name])
	}
	return out
}
