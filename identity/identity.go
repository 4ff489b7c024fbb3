// Package identity defines the durable user record that the gateway
// provisions on first successful verification, and the Store contract that
// backends implement.
package identity

import (
	"context"
	"errors"
	"strings"
	"time"
)

// Identity is a durable user record keyed by email. This module never
// deletes one.
type Identity struct {
	ID string
	// Login is the user's handle; provisioned identities use their email.
	Login     string
	Email     string
	Role      string
	CreatedAt time.Time
}

var (
	// ErrDuplicateEmail is returned by Create when another identity already
	// owns the email. Concurrent first logins rely on it.
	ErrDuplicateEmail = errors.New("identity: email already registered")
	// ErrNotFound is returned by SetRole for an identity the store does not know.
	ErrNotFound = errors.New("identity: not found")
)

// Store persists identities. Implementations must be safe for concurrent use
// and must enforce email uniqueness.
type Store interface {
	// FindByEmail returns the identity owning email, or nil with a nil error
	// when there is none.
	FindByEmail(ctx context.Context, email string) (*Identity, error)
	// Create stores a new identity whose login and email are both email. The
	// credential is opaque and must only be persisted in unrecoverable form.
	// New identities receive the store's default role.
	Create(ctx context.Context, email, credential string) (*Identity, error)
	// SetRole replaces the identity's role and updates id in place.
	SetRole(ctx context.Context, id *Identity, role string) error
}

// NormalizeEmail is the lookup key form of an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
