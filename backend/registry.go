package backend

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
)

// ErrBackendExists is returned when registering a duplicate backend.
var ErrBackendExists = errors.New("backend already registered")

// Registry manages backend instances in registration order.
type Registry struct {
	mu       sync.RWMutex
	backends []Backend
}

// NewRegistry creates a new backend registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds a backend to the registry.
func (r *Registry) Register(b Backend) error {
	if b == nil {
		return fmt.Errorf("backend is nil")
	}
	name := b.Name()
	if name == "" {
		return fmt.Errorf("backend name is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.indexLocked(name) >= 0 {
		return fmt.Errorf("%w: %s", ErrBackendExists, name)
	}
	r.backends = append(r.backends, b)
	return nil
}

// Unregister stops and removes a backend.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if i := r.indexLocked(name); i >= 0 {
		_ = r.backends[i].Stop()
		r.backends = slices.Delete(r.backends, i, i+1)
	}
}

func (r *Registry) indexLocked(name string) int {
	return slices.IndexFunc(r.backends, func(b Backend) bool { return b.Name() == name })
}

// Get retrieves a backend by name.
func (r *Registry) Get(name string) (Backend, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if i := r.indexLocked(name); i >= 0 {
		return r.backends[i], true
	}
	return nil, false
}

// List returns all backends in registration order.
func (r *Registry) List() []Backend {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.backends)
}

// ListEnabled returns enabled backends only.
func (r *Registry) ListEnabled() []Backend {
	all := r.List()
	out := make([]Backend, 0, len(all))
	for _, b := range all {
		if b.Enabled() {
			out = append(out, b)
		}
	}
	return out
}

// Names returns backend names sorted for deterministic output.
func (r *Registry) Names() []string {
	all := r.List()
	out := make([]string, 0, len(all))
	for _, b := range all {
		out = append(out, b.Name())
	}
	slices.Sort(out)
	return out
}

// Infos reports every backend with its tool count. A backend whose tool
// listing fails reports zero tools.
func (r *Registry) Infos(ctx context.Context) []Info {
	all := r.List()
	out := make([]Info, 0, len(all))
	for _, b := range all {
		info := Info{Kind: b.Kind(), Name: b.Name(), Enabled: b.Enabled()}
		if tools, err := b.ListTools(ctx); err == nil {
			info.Tools = len(tools)
		}
		out = append(out, info)
	}
	return out
}

// StartAll starts all enabled backends, stopping at the first error.
func (r *Registry) StartAll(ctx context.Context) error {
	for _, b := range r.ListEnabled() {
		if err := b.Start(ctx); err != nil {
			return fmt.Errorf("start backend %s: %w", b.Name(), err)
		}
	}
	return nil
}

// StopAll stops all backends and returns their errors joined.
func (r *Registry) StopAll() error {
	var errs []error
	for _, b := range r.List() {
		if err := b.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("stop backend %s: %w", b.Name(), err))
		}
	}
	return errors.Join(errs...)
}
