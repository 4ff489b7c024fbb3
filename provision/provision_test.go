package provision

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/ggoodman/headerauth-go/auth"
	"github.com/ggoodman/headerauth-go/identity"
	"github.com/ggoodman/headerauth-go/identity/memory"
)

type fakeSession struct {
	current      *identity.Identity
	calls        []string
	establishErr error
}

func (s *fakeSession) CurrentIdentity(context.Context) (*identity.Identity, error) {
	s.calls = append(s.calls, "current")
	return s.current, nil
}

func (s *fakeSession) Clear(context.Context) error {
	s.calls = append(s.calls, "clear")
	s.current = nil
	return nil
}

func (s *fakeSession) Establish(_ context.Context, id *identity.Identity) error {
	s.calls = append(s.calls, "establish")
	if s.establishErr != nil {
		return s.establishErr
	}
	s.current = id
	return nil
}

func newProvisioner(t *testing.T, store identity.Store, opts ...Option) *Provisioner {
	t.Helper()
	p, err := New(store, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return p
}

func TestEstablishCreatesIdentity(t *testing.T) {
	store := memory.New()
	var events []LoginEvent
	p := newProvisioner(t, store, WithObserver(LoginObserverFunc(func(_ context.Context, ev LoginEvent) {
		events = append(events, ev)
	})))
	sess := &fakeSession{}

	res, err := p.EstablishSession(context.Background(), &auth.Claims{Email: "new@x.com"}, sess, Target{})
	if err != nil {
		t.Fatalf("EstablishSession: %v", err)
	}
	if res.Outcome != OutcomeEstablished || !res.Created || res.RedirectTo != "/" {
		t.Fatalf("unexpected result: %+v", res)
	}
	if res.Identity.Email != "new@x.com" || res.Identity.Login != "new@x.com" || res.Identity.Role != identity.DefaultRole {
		t.Fatalf("unexpected identity: %+v", res.Identity)
	}
	if store.Len() != 1 {
		t.Fatalf("want 1 identity, got %d", store.Len())
	}
	if got := strings.Join(sess.calls, ","); got != "current,clear,establish" {
		t.Fatalf("want clear before establish, got %s", got)
	}
	if len(events) != 1 || !events[0].Created || events[0].Identity.ID != res.Identity.ID {
		t.Fatalf("observer not notified correctly: %+v", events)
	}
	hash, ok := store.CredentialHash("new@x.com")
	if !ok || hash == "" {
		t.Fatalf("credential not stored")
	}
}

func TestEstablishIsIdempotent(t *testing.T) {
	store := memory.New()
	p := newProvisioner(t, store)
	sess := &fakeSession{}
	claims := &auth.Claims{Email: "a@x.com", Role: "editor"}

	first, err := p.EstablishSession(context.Background(), claims, sess, Target{})
	if err != nil || first.Outcome != OutcomeEstablished {
		t.Fatalf("first: %+v %v", first, err)
	}
	sess.calls = nil
	second, err := p.EstablishSession(context.Background(), claims, sess, Target{})
	if err != nil {
		t.Fatalf("second: %v", err)
	}
	if second.Outcome != OutcomeAlreadyAuthenticated || second.RedirectTo != "" {
		t.Fatalf("want AlreadyAuthenticated, got %+v", second)
	}
	if got := strings.Join(sess.calls, ","); got != "current" {
		t.Fatalf("second call must not touch the session: %s", got)
	}
	if store.Len() != 1 {
		t.Fatalf("identity duplicated")
	}
}

func TestExistingIdentityIsReused(t *testing.T) {
	store := memory.New()
	existing, err := store.Create(context.Background(), "a@x.com", "cred")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	p := newProvisioner(t, store)

	res, err := p.EstablishSession(context.Background(), &auth.Claims{Email: "A@X.com"}, &fakeSession{}, Target{})
	if err != nil {
		t.Fatalf("EstablishSession: %v", err)
	}
	if res.Created || res.Identity.ID != existing.ID {
		t.Fatalf("want existing identity reused, got %+v", res)
	}
}

func TestRoleHandling(t *testing.T) {
	tests := []struct {
		name     string
		role     string
		opts     []Option
		wantRole string
		wantWarn bool
	}{
		{"no role keeps default", "", nil, identity.DefaultRole, false},
		{"allowed role applied", "editor", nil, "editor", false},
		{"unknown role skipped", "superuser", nil, identity.DefaultRole, true},
		{"custom allow-list", "auditor", []Option{WithRoles("auditor")}, "auditor", false},
		{"custom allow-list rejects default names", "editor", []Option{WithRoles("auditor")}, identity.DefaultRole, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var buf bytes.Buffer
			store := memory.New()
			opts := append([]Option{WithLogger(slog.New(slog.NewTextHandler(&buf, nil)))}, tc.opts...)
			p := newProvisioner(t, store, opts...)

			res, err := p.EstablishSession(context.Background(), &auth.Claims{Email: "a@x.com", Role: tc.role}, &fakeSession{}, Target{})
			if err != nil {
				t.Fatalf("EstablishSession: %v", err)
			}
			if res.Outcome != OutcomeEstablished {
				t.Fatalf("login must proceed, got %s", res.Outcome)
			}
			stored, _ := store.FindByEmail(context.Background(), "a@x.com")
			if stored.Role != tc.wantRole || res.Identity.Role != tc.wantRole {
				t.Fatalf("want role %q, stored %q returned %q", tc.wantRole, stored.Role, res.Identity.Role)
			}
			if warned := strings.Contains(buf.String(), "provision.role.rejected"); warned != tc.wantWarn {
				t.Fatalf("warn logged = %v, want %v: %s", warned, tc.wantWarn, buf.String())
			}
		})
	}
}

// racingStore simulates a concurrent first login winning the insert.
type racingStore struct {
	*memory.Store
}

func (s racingStore) Create(ctx context.Context, email, credential string) (*identity.Identity, error) {
	if _, err := s.Store.Create(ctx, email, "other-request"); err != nil {
		return nil, err
	}
	return nil, identity.ErrDuplicateEmail
}

func TestDuplicateCreateRefinds(t *testing.T) {
	store := racingStore{memory.New()}
	p := newProvisioner(t, store)

	res, err := p.EstablishSession(context.Background(), &auth.Claims{Email: "a@x.com"}, &fakeSession{}, Target{})
	if err != nil {
		t.Fatalf("EstablishSession: %v", err)
	}
	if res.Created || res.Identity == nil || res.Identity.Email != "a@x.com" {
		t.Fatalf("want identity from the winning request, got %+v", res)
	}
}

type failingStore struct{ identity.Store }

func (failingStore) FindByEmail(context.Context, string) (*identity.Identity, error) {
	return nil, errors.New("db down")
}

func TestStoreFailureEstablishesNothing(t *testing.T) {
	p := newProvisioner(t, failingStore{memory.New()})
	sess := &fakeSession{}
	if _, err := p.EstablishSession(context.Background(), &auth.Claims{Email: "a@x.com"}, sess, Target{}); err == nil {
		t.Fatalf("expected error")
	}
	for _, c := range sess.calls {
		if c == "establish" || c == "clear" {
			t.Fatalf("session touched on store failure: %v", sess.calls)
		}
	}
}

func TestEstablishFailureSkipsObservers(t *testing.T) {
	called := false
	p := newProvisioner(t, memory.New(), WithObserver(LoginObserverFunc(func(context.Context, LoginEvent) { called = true })))
	sess := &fakeSession{establishErr: errors.New("cookie jar full")}
	if _, err := p.EstablishSession(context.Background(), &auth.Claims{Email: "a@x.com"}, sess, Target{}); err == nil {
		t.Fatalf("expected error")
	}
	if called {
		t.Fatalf("observer ran without a session")
	}
}

func TestRedirectTarget(t *testing.T) {
	p := newProvisioner(t, memory.New(), WithDefaultRedirect("/home"))
	res, err := p.EstablishSession(context.Background(), &auth.Claims{Email: "a@x.com"}, &fakeSession{},
		Target{RedirectTo: "https://evil.example/", Host: "app.example"})
	if err != nil {
		t.Fatalf("EstablishSession: %v", err)
	}
	if res.RedirectTo != "/home" {
		t.Fatalf("want fallback, got %q", res.RedirectTo)
	}
}

func TestLogObserver(t *testing.T) {
	var buf bytes.Buffer
	o := LogObserver(slog.New(slog.NewJSONHandler(&buf, nil)))
	o.OnLogin(context.Background(), LoginEvent{Identity: &identity.Identity{ID: "u1", Email: "a@x.com"}, Created: true})
	for _, want := range []string{`"msg":"provision.login"`, `"identity_id":"u1"`, `"created":true`} {
		if !strings.Contains(buf.String(), want) {
			t.Fatalf("missing %s in %s", want, buf.String())
		}
	}
}

func TestNewRequiresStore(t *testing.T) {
	if _, err := New(nil); err == nil {
		t.Fatalf("nil store accepted")
	}
}
