// Package session implements the server-side session store a kernel uses
// to remember authenticated users, and the firewall-scoped tokens kept in it.
package session

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// SecurityKeyPrefix prefixes the session key holding a firewall's token.
const SecurityKeyPrefix = "_security_"

// SecurityKey returns the session key for firewall's token.
func SecurityKey(firewall string) string {
	return SecurityKeyPrefix + firewall
}

// User is an authenticated principal.
type User interface {
	Username() string
	Roles() []string
}

// BasicUser is a User with fixed fields.
type BasicUser struct {
	Name      string
	RoleNames []string
}

// Username implements User.
func (u BasicUser) Username() string { return u.Name }

// Roles implements User.
func (u BasicUser) Roles() []string { return u.RoleNames }

// Session is a keyed bag of serialized values. Safe for concurrent use.
type Session struct {
	id      string
	created time.Time

	mu   sync.RWMutex
	data map[string]string
}

// ID returns the session id, which is also the session cookie value.
func (s *Session) ID() string { return s.id }

// Created returns the creation time.
func (s *Session) Created() time.Time { return s.created }

// Set stores value under key.
func (s *Session) Set(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
}

// Get returns the value stored under key.
func (s *Session) Get(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[key]
	return v, ok
}

// Remove deletes key.
func (s *Session) Remove(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
}

// Keys lists keys in sorted order.
func (s *Session) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Store creates and finds sessions.
type Store interface {
	Create() *Session
	Lookup(id string) (*Session, bool)
}

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

// IDGenerator supplies session and token ids.
type IDGenerator interface {
	NewID() string
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

type uuidGenerator struct{}

func (uuidGenerator) NewID() string { return uuid.NewString() }

// Option configures a MemoryStore.
type Option func(*MemoryStore)

// WithClock sets the clock used for session creation times.
func WithClock(c Clock) Option {
	return func(s *MemoryStore) { s.clock = c }
}

// WithIDGenerator sets the session id source. The default is random UUIDs.
func WithIDGenerator(g IDGenerator) Option {
	return func(s *MemoryStore) { s.ids = g }
}

// MemoryStore keeps sessions in memory. Safe for concurrent use, since
// request handlers may run on other goroutines than the test.
type MemoryStore struct {
	clock Clock
	ids   IDGenerator

	mu       sync.Mutex
	sessions map[string]*Session
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore returns an empty store.
func NewMemoryStore(opts ...Option) *MemoryStore {
	s := &MemoryStore{
		clock:    systemClock{},
		ids:      uuidGenerator{},
		sessions: make(map[string]*Session),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create implements Store.
func (s *MemoryStore) Create() *Session {
	sess := &Session{
		id:      s.ids.NewID(),
		created: s.clock.Now(),
		data:    make(map[string]string),
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.id] = sess
	return sess
}

// Lookup implements Store.
func (s *MemoryStore) Lookup(id string) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	return sess, ok
}

// Len reports the number of sessions.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
