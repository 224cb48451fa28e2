package fixture

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/roach88/webtest/internal/container"
	"github.com/roach88/webtest/internal/orm"
)

// Fixture loads a fixed data set through a manager.
type Fixture interface {
	Load(ctx context.Context, m orm.Manager, refs *References) error
}

// DependentFixture is a fixture that must run after others.
type DependentFixture interface {
	Fixture
	// Dependencies returns ids of fixtures to load first.
	Dependencies() []string
}

// ContainerAware fixtures receive the kernel container before they load.
type ContainerAware interface {
	SetContainer(c *container.Container)
}

// FamilyFixture declares the store family a fixture writes to. Fixtures that
// do not implement it are accepted by any family.
type FamilyFixture interface {
	Family() orm.Family
}

// Func adapts a function to Fixture.
type Func func(ctx context.Context, m orm.Manager, refs *References) error

// Load implements Fixture.
func (f Func) Load(ctx context.Context, m orm.Manager, refs *References) error {
	return f(ctx, m, refs)
}

// Constructor builds a fresh fixture instance.
type Constructor func() Fixture

// Registry maps fixture ids to constructors.
type Registry struct {
	mu           sync.RWMutex
	constructors map[string]Constructor
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{constructors: make(map[string]Constructor)}
}

// Register adds a constructor under id. Registering an id twice is an error.
func (r *Registry) Register(id string, ctor Constructor) error {
	if id == "" {
		return fmt.Errorf("fixture: empty id")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.constructors[id]; ok {
		return fmt.Errorf("fixture: %q already registered", id)
	}
	r.constructors[id] = ctor
	return nil
}

// MustRegister is Register that panics on error. Intended for package init.
func (r *Registry) MustRegister(id string, ctor Constructor) {
	if err := r.Register(id, ctor); err != nil {
		panic(err)
	}
}

// New builds the fixture registered under id.
func (r *Registry) New(id string) (Fixture, error) {
	r.mu.RLock()
	ctor, ok := r.constructors[id]
	r.mu.RUnlock()
	if !ok {
		return nil, resolutionError(KindFixture, id, "not registered", nil)
	}
	return ctor(), nil
}

// IDs lists registered fixture ids in sorted order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.constructors))
	for id := range r.constructors {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// CheckFamily rejects fixtures declaring a family other than family.
func CheckFamily(fixtures []Fixture, family orm.Family) error {
	for _, f := range fixtures {
		ff, ok := f.(FamilyFixture)
		if !ok {
			continue
		}
		if got := ff.Family(); got != family {
			return resolutionError(KindFamily, fmt.Sprintf("%T", f),
				fmt.Sprintf("fixture targets %s store, manager is %s", got, family), nil)
		}
	}
	return nil
}
