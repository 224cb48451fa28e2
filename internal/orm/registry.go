package orm

import (
	"fmt"
	"sort"
)

// Registry resolves managers by name.
type Registry interface {
	// Manager returns the named manager. The empty name selects the default.
	Manager(name string) (Manager, error)
	// ManagerNames lists registered managers in sorted order.
	ManagerNames() []string
}

// MapRegistry is a Registry over a fixed set of managers.
type MapRegistry struct {
	managers    map[string]Manager
	defaultName string
}

// NewRegistry builds a registry from managers. The first manager is the
// default unless another is chosen with SetDefault.
func NewRegistry(managers ...Manager) *MapRegistry {
	r := &MapRegistry{managers: make(map[string]Manager, len(managers))}
	for _, m := range managers {
		r.managers[m.Name()] = m
		if r.defaultName == "" {
			r.defaultName = m.Name()
		}
	}
	return r
}

// SetDefault selects the manager returned for the empty name.
func (r *MapRegistry) SetDefault(name string) error {
	if _, ok := r.managers[name]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownManager, name)
	}
	r.defaultName = name
	return nil
}

// Manager implements Registry.
func (r *MapRegistry) Manager(name string) (Manager, error) {
	if name == "" {
		name = r.defaultName
	}
	m, ok := r.managers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownManager, name)
	}
	return m, nil
}

// ManagerNames implements Registry.
func (r *MapRegistry) ManagerNames() []string {
	names := make([]string, 0, len(r.managers))
	for name := range r.managers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Close closes every manager and returns the first error.
func (r *MapRegistry) Close() error {
	var first error
	for _, name := range r.ManagerNames() {
		if err := r.managers[name].Close(); err != nil && first == nil {
			first = fmt.Errorf("close manager %s: %w", name, err)
		}
	}
	return first
}
