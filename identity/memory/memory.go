// Package memory provides an in-memory identity.Store for development and
// tests. Contents are lost on restart.
package memory

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ggoodman/headerauth-go/identity"
	"github.com/google/uuid"
)

type record struct {
	identity       identity.Identity
	credentialHash string
}

// Store implements identity.Store with a map keyed by normalized email.
type Store struct {
	mu          sync.RWMutex
	byEmail     map[string]*record
	byID        map[string]*record
	defaultRole string
}

// Option configures a Store.
type Option func(*Store)

// WithDefaultRole sets the role assigned to new identities.
func WithDefaultRole(role string) Option {
	return func(s *Store) { s.defaultRole = role }
}

// New creates an empty Store.
func New(opts ...Option) *Store {
	s := &Store{
		byEmail:     make(map[string]*record),
		byID:        make(map[string]*record),
		defaultRole: identity.DefaultRole,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) FindByEmail(ctx context.Context, email string) (*identity.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.byEmail[identity.NormalizeEmail(email)]
	if !ok {
		return nil, nil
	}
	out := rec.identity
	return &out, nil
}

func (s *Store) Create(ctx context.Context, email, credential string) (*identity.Identity, error) {
	key := identity.NormalizeEmail(email)
	if key == "" {
		return nil, errors.New("identity: email required")
	}
	hash, err := identity.HashCredential(credential)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byEmail[key]; exists {
		return nil, identity.ErrDuplicateEmail
	}
	rec := &record{
		identity: identity.Identity{
			ID:        uuid.NewString(),
			Login:     key,
			Email:     key,
			Role:      s.defaultRole,
			CreatedAt: time.Now().UTC(),
		},
		credentialHash: hash,
	}
	s.byEmail[key] = rec
	s.byID[rec.identity.ID] = rec
	out := rec.identity
	return &out, nil
}

func (s *Store) SetRole(ctx context.Context, id *identity.Identity, role string) error {
	if id == nil {
		return identity.ErrNotFound
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.byID[id.ID]
	if !ok {
		return identity.ErrNotFound
	}
	rec.identity.Role = role
	id.Role = role
	return nil
}

// CredentialHash exposes the stored hash for tests.
func (s *Store) CredentialHash(email string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.byEmail[identity.NormalizeEmail(email)]
	if !ok {
		return "", false
	}
	return rec.credentialHash, true
}

// Len returns the number of stored identities.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}

var _ identity.Store = (*Store)(nil)
