// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package render

import (
	"errors"
	"sort"
	"sync"
)

// Factory opens a new Device.
type Factory func() (Device, error)

// Backend is a registered device backend.
type Backend struct {
	// Name is the unique identifier for this backend.
	Name string

	// Priority determines selection order (higher = preferred).
	//   - 100: GPU backends (Vulkan, Metal, D3D12)
	//   - 50: GL
	//   - 10: software
	Priority int

	Factory Factory

	// Available reports if the backend can be opened on this system.
	Available func() bool
}

var globalRegistry = &Registry{}

// Registry manages device backends.
//
// GPU backends register themselves from their package init:
//
//	func init() {
//	    render.Register("vulkan", 100, openVulkan, vulkanAvailable)
//	}
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*Backend
}

// NewRegistry creates an empty registry.
// Most code should use the global registry via Register and OpenBest.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*Backend)}
}

// Register adds a backend to the global registry.
// A nil available means always available. Registering an existing name
// replaces the previous entry.
func Register(name string, priority int, factory Factory, available func() bool) {
	globalRegistry.Register(name, priority, factory, available)
}

// Unregister removes a backend from the global registry.
func Unregister(name string) { globalRegistry.Unregister(name) }

// List returns all registered backend names, highest priority first.
func List() []string { return globalRegistry.List() }

// Available returns the names of available backends, highest priority first.
func Available() []string { return globalRegistry.Available() }

// Get returns a copy of the named backend entry.
func Get(name string) (*Backend, bool) { return globalRegistry.Get(name) }

// Open opens the named backend from the global registry.
func Open(name string) (Device, error) { return globalRegistry.Open(name) }

// OpenBest opens the best available backend from the global registry.
func OpenBest() (Device, error) { return globalRegistry.OpenBest() }

// Register adds a backend to this registry.
func (r *Registry) Register(name string, priority int, factory Factory, available func() bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.entries == nil {
		r.entries = make(map[string]*Backend)
	}
	if available == nil {
		available = func() bool { return true }
	}
	r.entries[name] = &Backend{
		Name:      name,
		Priority:  priority,
		Factory:   factory,
		Available: available,
	}
}

// Unregister removes a backend from this registry.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, name)
}

// List returns all registered backend names sorted by priority.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sortedNames(false)
}

// Available returns names of all available backends sorted by priority.
func (r *Registry) Available() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sortedNames(true)
}

// Get returns a copy of the named backend entry.
func (r *Registry) Get(name string) (*Backend, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.entries[name]
	if !ok {
		return nil, false
	}
	entryCopy := *entry
	return &entryCopy, true
}

// Open opens the named backend.
func (r *Registry) Open(name string) (Device, error) {
	r.mu.RLock()
	entry, ok := r.entries[name]
	r.mu.RUnlock()

	if !ok {
		return nil, &BackendNotFoundError{Name: name}
	}
	if !entry.Available() {
		return nil, &BackendUnavailableError{Name: name}
	}
	return entry.Factory()
}

// OpenBest tries each available backend in priority order and returns the
// first that opens.
func (r *Registry) OpenBest() (Device, error) {
	r.mu.RLock()
	available := r.sortedNames(true)
	r.mu.RUnlock()

	if len(available) == 0 {
		return nil, ErrNoBackend
	}

	var lastErr error
	for _, name := range available {
		dev, err := r.Open(name)
		if err == nil {
			return dev, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

// sortedNames returns backend names by descending priority, ties by name.
// Must be called with the lock held.
func (r *Registry) sortedNames(onlyAvailable bool) []string {
	entries := make([]*Backend, 0, len(r.entries))
	for _, e := range r.entries {
		if onlyAvailable && !e.Available() {
			continue
		}
		entries = append(entries, e)
	}
	if len(entries) == 0 {
		return nil
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Priority != entries[j].Priority {
			return entries[i].Priority > entries[j].Priority
		}
		return entries[i].Name < entries[j].Name
	})

	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name
	}
	return names
}

// ErrNoBackend is returned when no device backend is registered or available.
var ErrNoBackend = errors.New("render: no backend available")

// BackendNotFoundError indicates a named backend is not registered.
type BackendNotFoundError struct {
	Name string
}

func (e *BackendNotFoundError) Error() string {
	return "render: backend not found: " + e.Name
}

// BackendUnavailableError indicates a backend exists but cannot be opened here.
type BackendUnavailableError struct {
	Name string
}

func (e *BackendUnavailableError) Error() string {
	return "render: backend unavailable: " + e.Name
}

func init() {
	Register("software", 10, func() (Device, error) {
		return NewSoftwareDevice(), nil
	}, nil)
}
