package sessions

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/ggoodman/headerauth-go/identity"
	"github.com/ggoodman/headerauth-go/internal/cookiejws"
	"github.com/google/uuid"
)

const (
	DefaultCookieName = "headerauth_session"
	DefaultTTL        = 12 * time.Hour
)

// Signer signs and verifies the session handle stored in the cookie.
type Signer interface {
	Sign(payload []byte) (string, error)
	Verify(token string) ([]byte, error)
}

// Manager issues and resolves session cookies.
type Manager struct {
	store    Store
	signer   Signer
	log      *slog.Logger
	name     string
	path     string
	domain   string
	ttl      time.Duration
	secure   bool
	sameSite http.SameSite
	now      func() time.Time
}

// Option configures a Manager.
type Option func(*Manager)

func WithCookieName(name string) Option { return func(m *Manager) { m.name = name } }

func WithCookiePath(path string) Option { return func(m *Manager) { m.path = path } }

func WithCookieDomain(domain string) Option { return func(m *Manager) { m.domain = domain } }

// WithTTL sets how long an established session lasts.
func WithTTL(ttl time.Duration) Option { return func(m *Manager) { m.ttl = ttl } }

// WithSecureCookies marks the cookie Secure. Enable it behind TLS.
func WithSecureCookies(secure bool) Option { return func(m *Manager) { m.secure = secure } }

// WithSigner sets the cookie signer. Without it the Manager generates a
// process-local key.
func WithSigner(s Signer) Option { return func(m *Manager) { m.signer = s } }

func WithLogger(l *slog.Logger) Option { return func(m *Manager) { m.log = l } }

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option { return func(m *Manager) { m.now = now } }

// NewManager returns a Manager persisting sessions in store.
func NewManager(store Store, opts ...Option) (*Manager, error) {
	if store == nil {
		return nil, errors.New("sessions: store is required")
	}
	m := &Manager{
		store:    store,
		name:     DefaultCookieName,
		path:     "/",
		ttl:      DefaultTTL,
		sameSite: http.SameSiteLaxMode,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.log == nil {
		m.log = slog.Default()
	}
	if m.ttl <= 0 {
		return nil, fmt.Errorf("sessions: invalid ttl %s", m.ttl)
	}
	if m.signer == nil {
		s, err := cookiejws.Generate()
		if err != nil {
			return nil, fmt.Errorf("sessions: signer: %w", err)
		}
		m.signer = s
	}
	return m, nil
}

// CookieName returns the name of the session cookie.
func (m *Manager) CookieName() string { return m.name }

// ForRequest returns the session view for one request. Cookies written by
// Clear and Establish go to w.
func (m *Manager) ForRequest(w http.ResponseWriter, r *http.Request) *Session {
	return &Session{m: m, w: w, r: r}
}

// Session is the per-request view of the browser's session. It is not safe
// for concurrent use.
type Session struct {
	m *Manager
	w http.ResponseWriter
	r *http.Request

	loaded  bool
	current *Record
}

// CurrentIdentity returns the identity of the current session, or nil when
// there is none.
func (s *Session) CurrentIdentity(ctx context.Context) (*identity.Identity, error) {
	rec, err := s.load(ctx)
	if err != nil || rec == nil {
		return nil, err
	}
	return rec.Identity(), nil
}

// Record returns the current session record, or nil.
func (s *Session) Record(ctx context.Context) (*Record, error) {
	return s.load(ctx)
}

func (s *Session) load(ctx context.Context) (*Record, error) {
	if s.loaded {
		return s.current, nil
	}
	s.loaded = true

	c, err := s.r.Cookie(s.m.name)
	if err != nil || c.Value == "" {
		return nil, nil
	}
	payload, err := s.m.signer.Verify(c.Value)
	if err != nil {
		s.m.log.DebugContext(ctx, "session.cookie.invalid", slog.String("err", err.Error()))
		return nil, nil
	}
	rec, err := s.m.store.Get(ctx, string(payload))
	if err != nil {
		s.loaded = false
		return nil, fmt.Errorf("sessions: load: %w", err)
	}
	if rec == nil || rec.IsExpired(s.m.now()) {
		return nil, nil
	}
	s.current = rec
	return rec, nil
}

// Clear ends the current session, if any, and expires the cookie.
func (s *Session) Clear(ctx context.Context) error {
	rec, err := s.load(ctx)
	if err != nil {
		return err
	}
	if rec != nil {
		if err := s.m.store.Delete(ctx, rec.ID); err != nil {
			return fmt.Errorf("sessions: delete: %w", err)
		}
		s.m.log.InfoContext(ctx, "session.clear.ok", slog.String("session_id", rec.ID))
	}
	s.current = nil
	s.loaded = true
	http.SetCookie(s.w, s.cookie("", -1, time.Unix(0, 0)))
	return nil
}

// Establish starts a new session for id and sets the cookie. Any previous
// session on this request is replaced but not deleted; call Clear first to
// end it. A session cookie already queued on the response, such as the
// expiry written by Clear, is replaced so that exactly one is sent.
func (s *Session) Establish(ctx context.Context, id *identity.Identity) error {
	if id == nil {
		return errors.New("sessions: identity is required")
	}
	now := s.m.now()
	rec := &Record{
		ID:         uuid.NewString(),
		IdentityID: id.ID,
		Login:      id.Login,
		Email:      id.Email,
		Role:       id.Role,
		CreatedAt:  now,
		ExpiresAt:  now.Add(s.m.ttl),
	}
	if err := s.m.store.Put(ctx, rec, s.m.ttl); err != nil {
		return fmt.Errorf("sessions: put: %w", err)
	}
	token, err := s.m.signer.Sign([]byte(rec.ID))
	if err != nil {
		return fmt.Errorf("sessions: sign: %w", err)
	}
	s.dropQueuedCookie()
	http.SetCookie(s.w, s.cookie(token, int(s.m.ttl/time.Second), rec.ExpiresAt))

	s.current = rec
	s.loaded = true
	s.m.log.InfoContext(ctx, "session.establish.ok",
		slog.String("session_id", rec.ID),
		slog.String("identity_id", rec.IdentityID),
	)
	return nil
}

func (s *Session) dropQueuedCookie() {
	h := s.w.Header()
	queued := h.Values("Set-Cookie")
	if len(queued) == 0 {
		return
	}
	h.Del("Set-Cookie")
	for _, line := range queued {
		if c, err := http.ParseSetCookie(line); err == nil && c.Name == s.m.name {
			continue
		}
		h.Add("Set-Cookie", line)
	}
}

func (s *Session) cookie(value string, maxAge int, expires time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     s.m.name,
		Value:    value,
		Path:     s.m.path,
		Domain:   s.m.domain,
		Expires:  expires,
		MaxAge:   maxAge,
		Secure:   s.m.secure,
		HttpOnly: true,
		SameSite: s.m.sameSite,
	}
}
