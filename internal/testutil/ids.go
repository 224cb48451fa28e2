package testutil

import (
	"fmt"
	"sync"
)

// SequenceIDs generates ids of the form "<prefix>-0001", "<prefix>-0002", ...
//
// Thread-safety: safe for concurrent use.
type SequenceIDs struct {
	prefix string
	mu     sync.Mutex
	n      int
}

// NewSequenceIDs creates a generator. If prefix is empty, "test" is used.
func NewSequenceIDs(prefix string) *SequenceIDs {
	if prefix == "" {
		prefix = "test"
	}
	return &SequenceIDs{prefix: prefix}
}

// NewID returns the next id.
func (g *SequenceIDs) NewID() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%04d", g.prefix, g.n)
}
