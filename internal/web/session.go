package web

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"testwise/internal/parse"
	"testwise/internal/rootcause"
	"testwise/internal/summarize"
)

// Session holds one uploaded run and its derived results for the lifetime of
// an interactive session. Nothing is persisted.
type Session struct {
	ID        string
	Source    string
	CreatedAt time.Time
	Run       *parse.TestRun

	mu        sync.Mutex
	summary   *summarize.Result
	rootCause *rootcause.Result
}

// Summary returns the cached summary, computing it with fn on first use.
// The narrative is requested once per session; later views reuse it.
func (s *Session) Summary(fn func() *summarize.Result) *summarize.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.summary == nil {
		s.summary = fn()
	}
	return s.summary
}

// RootCause returns the cached analysis, or nil if none was requested yet.
func (s *Session) RootCause() *rootcause.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rootCause
}

// SetRootCause stores an analysis result.
func (s *Session) SetRootCause(r *rootcause.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rootCause = r
}

// Store is an in-memory session store with TTL eviction. Expired sessions are
// dropped lazily on access.
type Store struct {
	mu       sync.Mutex
	ttl      time.Duration
	sessions map[string]*Session
	now      func() time.Time
}

// NewStore creates a store; sessions expire ttl after creation.
func NewStore(ttl time.Duration) *Store {
	return &Store{
		ttl:      ttl,
		sessions: make(map[string]*Session),
		now:      time.Now,
	}
}

// Put registers a freshly parsed run and returns its session.
func (s *Store) Put(source string, run *parse.TestRun) *Session {
	sess := &Session{
		ID:        uuid.NewString(),
		Source:    source,
		CreatedAt: s.now(),
		Run:       run,
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.evictLocked()
	s.sessions[sess.ID] = sess
	return sess
}

// Get looks up a session by ID.
func (s *Store) Get(id string) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.evictLocked()
	sess, ok := s.sessions[id]
	return sess, ok
}

// Len reports the number of live sessions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.evictLocked()
	return len(s.sessions)
}

func (s *Store) evictLocked() {
	if s.ttl <= 0 {
		return
	}
	cutoff := s.now().Add(-s.ttl)
	for id, sess := range s.sessions {
		if sess.CreatedAt.Before(cutoff) {
			delete(s.sessions, id)
		}
	}
}
