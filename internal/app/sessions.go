package app

import (
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

const DefaultSessionTTL = 24 * time.Hour

type session struct {
	mu    sync.Mutex
	state MapState
}

// SessionStore keeps one MapState per browser session. Entries expire after
// ttl without use. Updates to the same session are serialized.
type SessionStore struct {
	mu sync.Mutex
	c  *ttlcache.Cache[string, *session]
}

func NewSessionStore(ttl time.Duration) *SessionStore {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &SessionStore{c: ttlcache.New(ttlcache.WithTTL[string, *session](ttl))}
}

// Start runs the expiry janitor until Stop is called.
func (s *SessionStore) Start() { go s.c.Start() }

func (s *SessionStore) Stop() { s.c.Stop() }

func (s *SessionStore) entry(id string) *session {
	s.mu.Lock()
	defer s.mu.Unlock()
	if it := s.c.Get(id); it != nil && !it.IsExpired() {
		return it.Value()
	}
	e := &session{state: NewMapState()}
	s.c.Set(id, e, ttlcache.DefaultTTL)
	return e
}

// Get returns the session's state, or a fresh one for an unknown id.
func (s *SessionStore) Get(id string) MapState {
	e := s.entry(id)
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Update applies fn to the session's state and stores whatever it returns,
// also when fn reports an error.
func (s *SessionStore) Update(id string, fn func(MapState) (MapState, error)) (MapState, error) {
	e := s.entry(id)
	e.mu.Lock()
	defer e.mu.Unlock()
	next, err := fn(e.state)
	e.state = next
	return next, err
}
