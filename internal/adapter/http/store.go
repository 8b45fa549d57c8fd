package http

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/couchcryptid/flood-risk-dashboard/internal/dashboard"
	"github.com/couchcryptid/flood-risk-dashboard/internal/observability"
)

// Session is one live dashboard. Its context bounds every backend request
// the session starts and is cancelled when the session is dropped.
type Session struct {
	*dashboard.ViewState
	ctx    context.Context
	cancel context.CancelFunc
}

// Context returns the session-scoped context.
func (s *Session) Context() context.Context { return s.ctx }

// SessionStore is a thread-safe LRU of dashboard sessions. Past maxEntries the
// least recently used session is evicted and its requests cancelled.
type SessionStore struct {
	base       context.Context
	deps       dashboard.Deps
	metrics    *observability.Metrics
	maxEntries int

	mu      sync.Mutex
	entries map[string]*entry
	head    *entry // most recently used
	tail    *entry // least recently used
}

type entry struct {
	key   string
	value *Session
	prev  *entry
	next  *entry
}

// NewSessionStore creates a store whose sessions derive their context from base.
func NewSessionStore(base context.Context, maxEntries int, deps dashboard.Deps) *SessionStore {
	return &SessionStore{
		base:       base,
		deps:       deps,
		metrics:    deps.Metrics,
		maxEntries: maxEntries,
		entries:    make(map[string]*entry),
	}
}

// Create starts a new session and returns it.
func (c *SessionStore) Create() *Session {
	id := uuid.NewString()
	ctx, cancel := context.WithCancel(c.base)
	s := &Session{ViewState: dashboard.NewViewState(id, c.deps), ctx: ctx, cancel: cancel}
	s.Start(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	e := &entry{key: id, value: s}
	c.entries[id] = e
	c.addToFront(e)
	if len(c.entries) > c.maxEntries {
		c.evictTail()
	}
	c.metrics.ActiveSessions.Set(float64(len(c.entries)))
	return s
}

// Get returns a session and marks it most recently used.
func (c *SessionStore) Get(id string) (*Session, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[id]
	if !ok {
		return nil, false
	}
	c.moveToFront(e)
	return e.value, true
}

// Delete drops a session, cancelling its in-flight requests.
func (c *SessionStore) Delete(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[id]
	if !ok {
		return false
	}
	c.drop(e)
	c.metrics.ActiveSessions.Set(float64(len(c.entries)))
	return true
}

// Len returns the number of live sessions.
func (c *SessionStore) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *SessionStore) moveToFront(e *entry) {
	if e == c.head {
		return
	}
	c.remove(e)
	c.addToFront(e)
}

func (c *SessionStore) addToFront(e *entry) {
	e.next = c.head
	e.prev = nil
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
}

func (c *SessionStore) remove(e *entry) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		c.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		c.tail = e.prev
	}
}

func (c *SessionStore) drop(e *entry) {
	delete(c.entries, e.key)
	c.remove(e)
	e.value.cancel()
}

func (c *SessionStore) evictTail() {
	if c.tail == nil {
		return
	}
	c.drop(c.tail)
}
