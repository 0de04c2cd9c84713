package memory

import (
	"context"
	"sync"
	"time"

	"github.com/go-faster/errors"

	"github.com/xenking/storefront/internal/domain/session"
)

// ErrSessionNotFound is returned for an unknown session hash.
var ErrSessionNotFound = errors.New("session not found")

var _ session.Store = (*SessionStore)(nil)

// SessionStore keeps sessions in a map keyed by token hash.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]session.Session
}

// NewSessionStore returns an empty SessionStore.
func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: make(map[string]session.Session)}
}

func (s *SessionStore) Put(_ context.Context, hash string, sess session.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[hash] = sess
	return nil
}

// Get returns a copy of the session stored under hash.
func (s *SessionStore) Get(_ context.Context, hash string) (*session.Session, error) {
	s.mu.RLock()
	sess, ok := s.sessions[hash]
	s.mu.RUnlock()

	if !ok {
		return nil, ErrSessionNotFound
	}
	return &sess, nil
}

func (s *SessionStore) Delete(_ context.Context, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, hash)
	return nil
}

// Len returns the number of stored sessions.
func (s *SessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Sweep drops the sessions expired at now and returns how many were dropped.
func (s *SessionStore) Sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int
	for hash, sess := range s.sessions {
		if sess.Expired(now) {
			delete(s.sessions, hash)
			n++
		}
	}
	return n
}

// StartSweeper sweeps expired sessions every interval until ctx is done.
func (s *SessionStore) StartSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			s.Sweep(now)
		}
	}
}
