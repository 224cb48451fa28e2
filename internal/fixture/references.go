package fixture

import (
	"fmt"
	"sort"

	"github.com/roach88/webtest/internal/orm"
)

// References lets fixtures share the rows they created, so a later fixture
// can point at an earlier one's primary keys.
type References struct {
	refs map[string]orm.Row
}

// NewReferences returns an empty reference set.
func NewReferences() *References {
	return &References{refs: make(map[string]orm.Row)}
}

// Add stores row under name. Adding an existing name is an error.
func (r *References) Add(name string, row orm.Row) error {
	if _, ok := r.refs[name]; ok {
		return fmt.Errorf("reference %q already exists", name)
	}
	r.refs[name] = row
	return nil
}

// Set stores row under name, replacing any previous reference.
func (r *References) Set(name string, row orm.Row) {
	r.refs[name] = row
}

// Get returns the row stored under name.
func (r *References) Get(name string) (orm.Row, error) {
	row, ok := r.refs[name]
	if !ok {
		return nil, fmt.Errorf("reference %q does not exist", name)
	}
	return row, nil
}

// Has reports whether name is set.
func (r *References) Has(name string) bool {
	_, ok := r.refs[name]
	return ok
}

// Names lists reference names in sorted order.
func (r *References) Names() []string {
	names := make([]string, 0, len(r.refs))
	for n := range r.refs {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
