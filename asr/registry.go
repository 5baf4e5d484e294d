package asr

import (
	"sort"
	"sync"

	"github.com/skillsenselab/asrkit/errors"
)

// Registration describes a registered engine: how to build it and what it
// can do. Immutable once registered.
type Registration struct {
	// Factory constructs engine instances.
	Factory Factory
	// Capabilities declares the engine's supported input modes.
	Capabilities Capability
	// Defaults is the engine's default configuration, merged under explicit
	// config at Create time.
	Defaults map[string]any
}

// Registry maps engine names to registrations and caches built instances.
// It is initialized once at process start and read-only afterwards in normal
// operation; tests may Reset it.
type Registry struct {
	mu            sync.RWMutex
	registrations map[string]Registration
	instances     map[string]Engine
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		registrations: make(map[string]Registration),
		instances:     make(map[string]Engine),
	}
}

// Register adds a named engine registration. Registering a name twice fails
// with an ENGINE_EXISTS error.
func (r *Registry) Register(name string, reg Registration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.registrations[name]; exists {
		return errors.DuplicateEngine(name)
	}
	r.registrations[name] = reg
	return nil
}

// Resolve returns the registration for a name, or an ENGINE_NOT_FOUND error
// listing the available engines.
func (r *Registry) Resolve(name string) (Registration, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reg, ok := r.registrations[name]
	if !ok {
		return Registration{}, errors.UnknownEngine(name, r.listLocked())
	}
	return reg, nil
}

// Create builds a new engine instance using the named factory. Registered
// defaults fill in keys the explicit config leaves unset.
func (r *Registry) Create(name string, cfg map[string]any) (Engine, error) {
	reg, err := r.Resolve(name)
	if err != nil {
		return nil, err
	}

	return reg.Factory(mergeConfig(reg.Defaults, cfg))
}

// mergeConfig overlays explicit config on registered defaults.
func mergeConfig(defaults, cfg map[string]any) map[string]any {
	merged := make(map[string]any, len(defaults)+len(cfg))
	for k, v := range defaults {
		merged[k] = v
	}
	for k, v := range cfg {
		merged[k] = v
	}
	return merged
}

// Get returns a cached engine instance by name.
func (r *Registry) Get(name string) (Engine, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	inst, ok := r.instances[name]
	return inst, ok
}

// Set caches an engine instance by name.
func (r *Registry) Set(name string, engine Engine) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.instances[name] = engine
}

// Engine returns the cached instance for a name, building and caching one
// from the registered defaults when absent. The build runs under the write
// lock so concurrent first requests share one instance; an engine that loads
// a model on construction is only built once.
func (r *Registry) Engine(name string) (Engine, error) {
	if inst, ok := r.Get(name); ok {
		return inst, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if inst, ok := r.instances[name]; ok {
		return inst, nil
	}
	reg, ok := r.registrations[name]
	if !ok {
		return nil, errors.UnknownEngine(name, r.listLocked())
	}
	inst, err := reg.Factory(mergeConfig(reg.Defaults, nil))
	if err != nil {
		return nil, err
	}
	r.instances[name] = inst
	return inst, nil
}

// List returns the sorted names of all registered engines.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.listLocked()
}

func (r *Registry) listLocked() []string {
	names := make([]string, 0, len(r.registrations))
	for name := range r.registrations {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Reset removes all registrations and cached instances. Intended for tests.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.registrations = make(map[string]Registration)
	r.instances = make(map[string]Engine)
}

// defaultRegistry is the process-wide registry used by the package-level
// helpers.
var defaultRegistry = NewRegistry()

// DefaultRegistry returns the process-wide registry.
func DefaultRegistry() *Registry { return defaultRegistry }

// Register adds a registration to the default registry.
func Register(name string, reg Registration) error {
	return defaultRegistry.Register(name, reg)
}

// Resolve looks up a registration in the default registry.
func Resolve(name string) (Registration, error) {
	return defaultRegistry.Resolve(name)
}

// Create builds an engine from the default registry.
func Create(name string, cfg map[string]any) (Engine, error) {
	return defaultRegistry.Create(name, cfg)
}

// ResetRegistry clears the default registry. Intended for tests.
func ResetRegistry() { defaultRegistry.Reset() }
