// Package container holds the application harness contract: a kernel booted
// for a named environment, and the service/parameter container it exposes.
package container

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

var (
	// ErrServiceNotFound is returned by Get for unknown service ids.
	ErrServiceNotFound = errors.New("container: service not found")
	// ErrParameterNotFound is returned for unknown parameters.
	ErrParameterNotFound = errors.New("container: parameter not found")
	// ErrParameterType is returned when a parameter has an unexpected type.
	ErrParameterType = errors.New("container: parameter has wrong type")
)

// Container is a registry of services and configuration parameters.
// Parameter names are flat dotted keys such as "kernel.cache_dir".
type Container struct {
	mu       sync.RWMutex
	services map[string]any
	params   map[string]any
}

// New returns an empty container.
func New() *Container {
	return &Container{
		services: make(map[string]any),
		params:   make(map[string]any),
	}
}

// Set registers a service under id, replacing any previous one.
func (c *Container) Set(id string, service any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.services[id] = service
}

// Get returns the service registered under id.
func (c *Container) Get(id string) (any, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.services[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrServiceNotFound, id)
	}
	return s, nil
}

// Has reports whether a service is registered under id.
func (c *Container) Has(id string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.services[id]
	return ok
}

// ServiceIDs lists registered service ids in sorted order.
func (c *Container) ServiceIDs() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ids := make([]string, 0, len(c.services))
	for id := range c.services {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// SetParameter sets a configuration parameter.
func (c *Container) SetParameter(name string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.params[name] = value
}

// Parameter returns the named parameter.
func (c *Container) Parameter(name string) (any, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.params[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrParameterNotFound, name)
	}
	return v, nil
}

// HasParameter reports whether the named parameter is set.
func (c *Container) HasParameter(name string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.params[name]
	return ok
}

// String returns a string parameter. Missing parameters and empty strings
// both report ok=false.
func (c *Container) String(name string) (string, bool) {
	v, err := c.Parameter(name)
	if err != nil {
		return "", false
	}
	s, ok := v.(string)
	return s, ok && s != ""
}

// Bool returns a boolean parameter, false when missing or not a bool.
func (c *Container) Bool(name string) bool {
	v, err := c.Parameter(name)
	if err != nil {
		return false
	}
	b, _ := v.(bool)
	return b
}

// StringMap returns a map parameter with string values.
func (c *Container) StringMap(name string) (map[string]string, error) {
	v, err := c.Parameter(name)
	if err != nil {
		return nil, err
	}
	switch m := v.(type) {
	case map[string]string:
		return m, nil
	case map[string]any:
		out := make(map[string]string, len(m))
		for k, raw := range m {
			s, ok := raw.(string)
			if !ok {
				return nil, fmt.Errorf("%w: %s.%s is %T", ErrParameterType, name, k, raw)
			}
			out[k] = s
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: %s is %T", ErrParameterType, name, v)
	}
}

// Lookup returns the service registered under id as a T.
func Lookup[T any](c *Container, id string) (T, error) {
	var zero T
	s, err := c.Get(id)
	if err != nil {
		return zero, err
	}
	t, ok := s.(T)
	if !ok {
		return zero, fmt.Errorf("container: service %q is %T, not %T", id, s, zero)
	}
	return t, nil
}
