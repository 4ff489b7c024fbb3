// Package postgres implements identity.Store on PostgreSQL using pgx. Email
// uniqueness is enforced by a unique constraint, which is what keeps
// concurrent first logins from creating duplicate identities.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ggoodman/headerauth-go/identity"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// uniqueViolation is the SQLSTATE for unique_violation.
const uniqueViolation = "23505"

// Store implements identity.Store on a pgx connection pool.
type Store struct {
	pool        *pgxpool.Pool
	table       string
	defaultRole string
	ownsPool    bool
}

// Option configures a Store.
type Option func(*Store)

// WithTable overrides the table name. Default: "identities".
func WithTable(name string) Option {
	return func(s *Store) { s.table = name }
}

// WithDefaultRole sets the role assigned to new identities.
func WithDefaultRole(role string) Option {
	return func(s *Store) { s.defaultRole = role }
}

// New connects to databaseURL and returns a Store owning the pool.
func New(ctx context.Context, databaseURL string, opts ...Option) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("postgres connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	s := NewFromPool(pool, opts...)
	s.ownsPool = true
	return s, nil
}

// NewFromPool wraps an existing pool. Close does not close a borrowed pool.
func NewFromPool(pool *pgxpool.Pool, opts ...Option) *Store {
	s := &Store{pool: pool, table: "identities", defaultRole: identity.DefaultRole}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Close releases the pool if the Store created it.
func (s *Store) Close() {
	if s.ownsPool && s.pool != nil {
		s.pool.Close()
	}
}

func (s *Store) ident() string { return pgx.Identifier{s.table}.Sanitize() }

// EnsureSchema creates the identities table when it does not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, fmt.Sprintf(`
		create table if not exists %s (
			id              text primary key,
			login           text not null,
			email           text not null unique,
			credential_hash text not null,
			role            text not null,
			created_at      timestamptz not null default now()
		)
	`, s.ident()))
	if err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// DropSchema removes the table. Intended for tests.
func (s *Store) DropSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, fmt.Sprintf(`drop table if exists %s`, s.ident()))
	return err
}

func (s *Store) FindByEmail(ctx context.Context, email string) (*identity.Identity, error) {
	row := s.pool.QueryRow(ctx, fmt.Sprintf(`
		select id, login, email, role, created_at
		from %s
		where email = $1
	`, s.ident()), identity.NormalizeEmail(email))
	var id identity.Identity
	if err := row.Scan(&id.ID, &id.Login, &id.Email, &id.Role, &id.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find identity: %w", err)
	}
	return &id, nil
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

	id := identity.Identity{ID: uuid.NewString(), Login: key, Email: key, Role: s.defaultRole}
	row := s.pool.QueryRow(ctx, fmt.Sprintf(`
		insert into %s (id, login, email, credential_hash, role)
		values ($1, $2, $3, $4, $5)
		returning created_at
	`, s.ident()), id.ID, id.Login, id.Email, hash, id.Role)
	var created time.Time
	if err := row.Scan(&created); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, identity.ErrDuplicateEmail
		}
		return nil, fmt.Errorf("create identity: %w", err)
	}
	id.CreatedAt = created
	return &id, nil
}

func (s *Store) SetRole(ctx context.Context, id *identity.Identity, role string) error {
	if id == nil {
		return identity.ErrNotFound
	}
	tag, err := s.pool.Exec(ctx, fmt.Sprintf(`update %s set role = $2 where id = $1`, s.ident()), id.ID, role)
	if err != nil {
		return fmt.Errorf("set role: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return identity.ErrNotFound
	}
	id.Role = role
	return nil
}

var _ identity.Store = (*Store)(nil)
