package fixture

import (
	"github.com/roach88/webtest/internal/container"
)

// Loader collects fixtures for an Executor. Fixtures are kept in insertion
// order, except that a DependentFixture's missing dependencies are inserted
// before it.
type Loader struct {
	registry  *Registry
	container *container.Container

	ids      map[string]bool
	fixtures []Fixture
}

// NewLoader returns a loader resolving ids through registry. c may be nil;
// otherwise ContainerAware fixtures receive it as they are added.
func NewLoader(registry *Registry, c *container.Container) *Loader {
	return &Loader{
		registry:  registry,
		container: c,
		ids:       make(map[string]bool),
	}
}

// AddFixture resolves id and adds it with its dependencies. Adding an id
// that is already present is a no-op.
func (l *Loader) AddFixture(id string) error {
	return l.add(id, nil)
}

func (l *Loader) add(id string, path []string) error {
	if l.ids[id] {
		return nil
	}
	for _, p := range path {
		if p == id {
			return resolutionError(KindCycle, id, "dependency cycle", nil)
		}
	}
	f, err := l.registry.New(id)
	if err != nil {
		return err
	}
	if df, ok := f.(DependentFixture); ok {
		next := append(append([]string(nil), path...), id)
		for _, dep := range df.Dependencies() {
			if err := l.add(dep, next); err != nil {
				return err
			}
		}
	}
	if ca, ok := f.(ContainerAware); ok && l.container != nil {
		ca.SetContainer(l.container)
	}
	l.ids[id] = true
	l.fixtures = append(l.fixtures, f)
	return nil
}

// Fixtures returns the collected fixtures in execution order.
func (l *Loader) Fixtures() []Fixture {
	return append([]Fixture(nil), l.fixtures...)
}

// Resolve builds the fixtures for ids without a container, for validation
// before any store is touched.
func Resolve(registry *Registry, ids []string) ([]Fixture, error) {
	l := NewLoader(registry, nil)
	for _, id := range ids {
		if err := l.AddFixture(id); err != nil {
			return nil, err
		}
	}
	return l.Fixtures(), nil
}
