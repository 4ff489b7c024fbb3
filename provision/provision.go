package provision

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ggoodman/headerauth-go/auth"
	"github.com/ggoodman/headerauth-go/identity"
)

// Outcome is the result of EstablishSession.
type Outcome int

const (
	// OutcomeAlreadyAuthenticated means a session already existed; nothing
	// was changed.
	OutcomeAlreadyAuthenticated Outcome = iota + 1
	// OutcomeEstablished means a new session was created.
	OutcomeEstablished
)

func (o Outcome) String() string {
	switch o {
	case OutcomeAlreadyAuthenticated:
		return "already_authenticated"
	case OutcomeEstablished:
		return "established"
	default:
		return "unknown"
	}
}

// Session is the per-request session mechanism. *sessions.Session satisfies it.
type Session interface {
	CurrentIdentity(ctx context.Context) (*identity.Identity, error)
	Clear(ctx context.Context) error
	Establish(ctx context.Context, id *identity.Identity) error
}

// Target describes where the caller asked to go after login.
type Target struct {
	// RedirectTo is the caller supplied redirect_to value, possibly empty.
	RedirectTo string
	// Host is the request host used to accept absolute same-origin URLs.
	Host string
}

// Result describes a successful EstablishSession call.
type Result struct {
	Outcome  Outcome
	Identity *identity.Identity
	// Created is true when the identity was created by this call.
	Created bool
	// RedirectTo is the validated redirect target. Empty for
	// OutcomeAlreadyAuthenticated.
	RedirectTo string
}

// Provisioner implements session establishment against an identity store.
type Provisioner struct {
	store           identity.Store
	roles           identity.RoleSet
	observers       []LoginObserver
	log             *slog.Logger
	defaultRedirect string
	newCredential   func() (string, error)
	now             func() time.Time
}

// Option configures a Provisioner.
type Option func(*Provisioner)

// WithRoles replaces the role allow-list.
func WithRoles(roles ...string) Option {
	return func(p *Provisioner) { p.roles = identity.NewRoleSet(roles...) }
}

// WithObserver registers an observer notified after each new session.
func WithObserver(o LoginObserver) Option {
	return func(p *Provisioner) { p.observers = append(p.observers, o) }
}

func WithLogger(l *slog.Logger) Option { return func(p *Provisioner) { p.log = l } }

// WithDefaultRedirect sets the landing location used when no safe
// redirect_to was supplied. Default "/".
func WithDefaultRedirect(path string) Option {
	return func(p *Provisioner) { p.defaultRedirect = path }
}

// New returns a Provisioner backed by store.
func New(store identity.Store, opts ...Option) (*Provisioner, error) {
	if store == nil {
		return nil, errors.New("provision: identity store is required")
	}
	p := &Provisioner{
		store:           store,
		roles:           identity.NewRoleSet(identity.DefaultRoles...),
		defaultRedirect: "/",
		newCredential:   identity.NewCredential,
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.log == nil {
		p.log = slog.Default()
	}
	return p, nil
}

// EstablishSession logs the holder of claims in on sess. Errors are internal
// failures of the identity store or session mechanism; on error the session
// may have been cleared but is never established.
func (p *Provisioner) EstablishSession(ctx context.Context, claims *auth.Claims, sess Session, target Target) (*Result, error) {
	if claims == nil || claims.Email == "" {
		return nil, errors.New("provision: claims without email")
	}

	cur, err := sess.CurrentIdentity(ctx)
	if err != nil {
		return nil, fmt.Errorf("provision: current identity: %w", err)
	}
	if cur != nil {
		return &Result{Outcome: OutcomeAlreadyAuthenticated, Identity: cur}, nil
	}

	id, created, err := p.findOrCreate(ctx, claims.Email)
	if err != nil {
		return nil, err
	}

	if claims.Role != "" {
		if err := p.applyRole(ctx, id, claims.Role); err != nil {
			return nil, err
		}
	}

	if err := sess.Clear(ctx); err != nil {
		return nil, fmt.Errorf("provision: clear session: %w", err)
	}
	if err := sess.Establish(ctx, id); err != nil {
		return nil, fmt.Errorf("provision: establish session: %w", err)
	}

	ev := LoginEvent{Identity: id, Created: created, At: p.now()}
	for _, o := range p.observers {
		o.OnLogin(ctx, ev)
	}

	return &Result{
		Outcome:    OutcomeEstablished,
		Identity:   id,
		Created:    created,
		RedirectTo: SafeRedirect(target.RedirectTo, target.Host, p.defaultRedirect),
	}, nil
}

func (p *Provisioner) findOrCreate(ctx context.Context, email string) (*identity.Identity, bool, error) {
	id, err := p.store.FindByEmail(ctx, email)
	if err != nil {
		return nil, false, fmt.Errorf("provision: find identity: %w", err)
	}
	if id != nil {
		return id, false, nil
	}

	cred, err := p.newCredential()
	if err != nil {
		return nil, false, fmt.Errorf("provision: credential: %w", err)
	}
	id, err = p.store.Create(ctx, email, cred)
	switch {
	case err == nil:
		p.log.InfoContext(ctx, "provision.identity.create", slog.String("identity_id", id.ID))
		return id, true, nil
	case errors.Is(err, identity.ErrDuplicateEmail):
		// Lost a race with a concurrent first login.
		id, err = p.store.FindByEmail(ctx, email)
		if err != nil {
			return nil, false, fmt.Errorf("provision: find identity after conflict: %w", err)
		}
		if id == nil {
			return nil, false, fmt.Errorf("provision: identity vanished after conflict")
		}
		return id, false, nil
	default:
		return nil, false, fmt.Errorf("provision: create identity: %w", err)
	}
}

func (p *Provisioner) applyRole(ctx context.Context, id *identity.Identity, role string) error {
	if !p.roles.Allows(role) {
		p.log.WarnContext(ctx, "provision.role.rejected",
			slog.String("identity_id", id.ID),
			slog.String("role", role),
		)
		return nil
	}
	if id.Role == role {
		return nil
	}
	if err := p.store.SetRole(ctx, id, role); err != nil {
		return fmt.Errorf("provision: set role: %w", err)
	}
	return nil
}
