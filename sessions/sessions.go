package sessions

import (
	"context"
	"time"

	"github.com/ggoodman/headerauth-go/identity"
)

// Record is the persisted form of an authenticated session.
type Record struct {
	ID         string    `json:"id"`
	IdentityID string    `json:"identity_id"`
	Login      string    `json:"login,omitempty"`
	Email      string    `json:"email"`
	Role       string    `json:"role,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// IsExpired reports whether the record is no longer valid at now.
func (r *Record) IsExpired(now time.Time) bool {
	return !r.ExpiresAt.IsZero() && !now.Before(r.ExpiresAt)
}

// Identity rebuilds the identity snapshot captured when the session was
// established.
func (r *Record) Identity() *identity.Identity {
	return &identity.Identity{
		ID:    r.IdentityID,
		Login: r.Login,
		Email: r.Email,
		Role:  r.Role,
	}
}

// Store persists session records. Implementations must be safe for
// concurrent use.
type Store interface {
	// Put stores rec, replacing any record with the same id. The record
	// becomes unreadable after ttl.
	Put(ctx context.Context, rec *Record, ttl time.Duration) error
	// Get returns the record for id, or (nil, nil) when it is absent or
	// expired.
	Get(ctx context.Context, id string) (*Record, error)
	// Delete removes the record for id. Deleting an unknown id is not an error.
	Delete(ctx context.Context, id string) error
	Close() error
}
