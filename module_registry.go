package hotmod

import (
	"sort"
	"sync"
	"time"
)

// ModuleRegistry is the authoritative mapping from module name to the
// metadata of its active instance. A name is present if and only if the
// module's routes are live.
//
// The registry performs no I/O and enforces no lifecycle ordering; the
// Kernel serializes mutations per module name. The internal lock only keeps
// the map consistent for readers while different names are mutated in
// parallel.
type ModuleRegistry struct {
	mu      sync.RWMutex
	modules map[string]*ModuleMetadata
	now     func() time.Time
}

// NewModuleRegistry creates an empty registry.
func NewModuleRegistry() *ModuleRegistry {
	return &ModuleRegistry{
		modules: make(map[string]*ModuleMetadata),
		now:     time.Now,
	}
}

// Register inserts or overwrites the entry for module.Name().
func (r *ModuleRegistry) Register(module RuntimeModule, routeIDs []string, path string) *ModuleMetadata {
	md := &ModuleMetadata{
		Module:           module,
		Version:          module.Version(),
		RegisteredRoutes: append([]string(nil), routeIDs...),
		LoadedAt:         r.now(),
		Path:             path,
	}
	r.mu.Lock()
	r.modules[module.Name()] = md
	r.mu.Unlock()
	return md.clone()
}

// Unregister removes name and returns the metadata it held, or nil.
func (r *ModuleRegistry) Unregister(name string) *ModuleMetadata {
	r.mu.Lock()
	defer r.mu.Unlock()
	md, ok := r.modules[name]
	if !ok {
		return nil
	}
	delete(r.modules, name)
	return md
}

// Get returns a copy of the metadata for name, or nil.
func (r *ModuleRegistry) Get(name string) *ModuleMetadata {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.modules[name].clone()
}

// Has reports whether name is active.
func (r *ModuleRegistry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.modules[name]
	return ok
}

// List returns copies of all entries ordered by module name.
func (r *ModuleRegistry) List() []*ModuleMetadata {
	r.mu.RLock()
	out := make([]*ModuleMetadata, 0, len(r.modules))
	for _, md := range r.modules {
		out = append(out, md.clone())
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// Len returns the number of active modules.
func (r *ModuleRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.modules)
}
