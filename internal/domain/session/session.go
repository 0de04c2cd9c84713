// Package session carries the caller identity that the cart engine and the
// order desk act on. A session is established at login and removed at logout.
package session

import (
	"context"
	"time"

	"github.com/go-faster/errors"
)

// Role is the kind of user a session belongs to.
type Role string

const (
	RoleCustomer   Role = "customer"
	RoleShopkeeper Role = "shopkeeper"
	RoleAdmin      Role = "admin"
)

var (
	// ErrUnauthorized is returned for unknown, expired or malformed tokens.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden is returned when the session role may not perform an action.
	ErrForbidden = errors.New("forbidden")
)

// InvalidError reports a session that is missing identity for its role.
type InvalidError struct {
	Reason string
}

func (e *InvalidError) Error() string {
	return "invalid session: " + e.Reason
}

// Session is the identity of a logged-in user.
type Session struct {
	UserEmail string
	ShopID    string
	ShopName  string
	Role      Role
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Validate checks that the session carries the identity its role needs.
func (s Session) Validate() error {
	switch s.Role {
	case RoleCustomer, RoleAdmin:
		if s.UserEmail == "" {
			return &InvalidError{Reason: "email is required"}
		}
	case RoleShopkeeper:
		if s.ShopID == "" || s.ShopName == "" {
			return &InvalidError{Reason: "shop id and shop name are required"}
		}
	default:
		return &InvalidError{Reason: "unknown role " + string(s.Role)}
	}
	return nil
}

// Expired reports whether the session is no longer valid at now.
func (s Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// Store persists sessions keyed by the hash of their token.
type Store interface {
	Put(ctx context.Context, hash string, s Session) error
	Get(ctx context.Context, hash string) (*Session, error)
	Delete(ctx context.Context, hash string) error
}

type ctxKey struct{}

// With returns a copy of ctx carrying s.
func With(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, ctxKey{}, s)
}

// From extracts the session stored by With.
func From(ctx context.Context) (Session, bool) {
	s, ok := ctx.Value(ctxKey{}).(Session)
	return s, ok
}
