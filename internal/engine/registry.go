package engine

import (
	"fmt"
	"slices"
	"sort"
	"sync"
)

// Factory creates an engine instance.
type Factory func() (Engine, error)

// Registry maps short names to engine factories and holds the single
// instance created for each name.
type Registry struct {
	mu        sync.Mutex
	factories map[string]Factory
	instances map[string]Engine
}

// NewRegistry creates an empty engine registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
		instances: make(map[string]Engine),
	}
}

// Register adds a factory under name. Registering a name again replaces the
// factory and forgets any instance created by the previous one.
func (r *Registry) Register(name string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = f
	delete(r.instances, name)
}

// Get returns the instance registered under name, creating it on first use.
func (r *Registry) Get(name string) (Engine, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.instances[name]; ok {
		return e, nil
	}
	f, ok := r.factories[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEngine, name)
	}
	e, err := f()
	if err != nil {
		return nil, fmt.Errorf("create engine %q: %w", name, err)
	}
	r.instances[name] = e
	return e, nil
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// List returns information about all registered engines, sorted by name
// for a stable API response. Engines that were never requested are listed
// without instance details.
func (r *Registry) List() []Info {
	r.mu.Lock()
	defer r.mu.Unlock()

	infos := make([]Info, 0, len(r.factories))
	for name := range r.factories {
		info := Info{Name: name}
		if e, ok := r.instances[name]; ok {
			info.Instantiated = true
			info.Hash = e.Hash()
			info.MaxTasks = e.MaxTasks()
			info.AcceptingTasks = e.AcceptingTasks()
		}
		infos = append(infos, info)
	}
	sort.Slice(infos, func(i, j int) bool {
		return infos[i].Name < infos[j].Name
	})
	return infos
}
