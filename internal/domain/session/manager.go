package session

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
)

// Manager issues and resolves opaque session tokens. Only the HMAC-SHA256 of
// a token is ever handed to the Store.
type Manager struct {
	store  Store
	pepper []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewManager creates a Manager. A zero ttl means sessions never expire.
func NewManager(store Store, pepper []byte, ttl time.Duration) *Manager {
	return &Manager{
		store:  store,
		pepper: pepper,
		ttl:    ttl,
		now:    time.Now,
	}
}

// Login validates s, stores it and returns the token identifying it.
func (m *Manager) Login(ctx context.Context, s Session) (string, error) {
	if err := s.Validate(); err != nil {
		return "", err
	}

	now := m.now()
	s.CreatedAt = now
	if m.ttl > 0 {
		s.ExpiresAt = now.Add(m.ttl)
	}

	token := uuid.New().String()
	if err := m.store.Put(ctx, m.hash(token), s); err != nil {
		return "", errors.Wrap(err, "store session")
	}
	return token, nil
}

// Resolve returns the session for token. Unknown or expired tokens yield
// ErrUnauthorized.
func (m *Manager) Resolve(ctx context.Context, token string) (*Session, error) {
	if token == "" {
		return nil, ErrUnauthorized
	}
	hash := m.hash(token)

	s, err := m.store.Get(ctx, hash)
	if err != nil {
		return nil, ErrUnauthorized
	}
	if s.Expired(m.now()) {
		// Best effort: an expired entry is unusable either way.
		_ = m.store.Delete(ctx, hash)
		return nil, ErrUnauthorized
	}
	return s, nil
}

// Logout removes the session for token.
func (m *Manager) Logout(ctx context.Context, token string) error {
	if token == "" {
		return ErrUnauthorized
	}
	if err := m.store.Delete(ctx, m.hash(token)); err != nil {
		return errors.Wrap(err, "delete session")
	}
	return nil
}

func (m *Manager) hash(token string) string {
	mac := hmac.New(sha256.New, m.pepper)
	mac.Write([]byte(token))
	return hex.EncodeToString(mac.Sum(nil))
}
