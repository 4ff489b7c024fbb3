package gateway

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/ggoodman/headerauth-go/auth"
	"github.com/ggoodman/headerauth-go/identity"
	"github.com/ggoodman/headerauth-go/internal/logctx"
	"github.com/ggoodman/headerauth-go/notify"
	"github.com/ggoodman/headerauth-go/provision"
	"github.com/ggoodman/headerauth-go/sessions"
	"github.com/google/uuid"
)

const (
	DefaultLoginPath = "/login"
	DefaultLogoutURL = "/ab-logout"
	RequestIDHeader  = "X-Request-Id"
)

// Gateway is the authentication middleware. Create one with New.
type Gateway struct {
	authn    auth.Authenticator
	prov     *provision.Provisioner
	sessions *sessions.Manager

	log            *slog.Logger
	loginPath      string
	logoutURL      string
	surfaceInvalid bool
	trustRequestID bool
}

// Option configures a Gateway.
type Option func(*Gateway)

func WithLogger(l *slog.Logger) Option { return func(g *Gateway) { g.log = l } }

// WithLoginPath sets the login surface path that hosts logout interception.
func WithLoginPath(p string) Option { return func(g *Gateway) { g.loginPath = p } }

// WithLogoutURL sets the proxy logout endpoint users are sent to after a
// local logout.
func WithLogoutURL(u string) Option { return func(g *Gateway) { g.logoutURL = u } }

// WithSurfaceInvalidToken makes generic token failures visible with a
// generic notice.
func WithSurfaceInvalidToken(on bool) Option { return func(g *Gateway) { g.surfaceInvalid = on } }

// WithTrustedRequestID reuses an inbound X-Request-Id instead of minting one.
func WithTrustedRequestID(on bool) Option { return func(g *Gateway) { g.trustRequestID = on } }

// New returns a Gateway.
func New(authn auth.Authenticator, prov *provision.Provisioner, mgr *sessions.Manager, opts ...Option) (*Gateway, error) {
	if authn == nil {
		return nil, errors.New("gateway: authenticator is required")
	}
	if prov == nil {
		return nil, errors.New("gateway: provisioner is required")
	}
	if mgr == nil {
		return nil, errors.New("gateway: session manager is required")
	}
	g := &Gateway{
		authn:     authn,
		prov:      prov,
		sessions:  mgr,
		loginPath: DefaultLoginPath,
		logoutURL: DefaultLogoutURL,
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.log == nil {
		g.log = slog.Default()
	}
	return g, nil
}

// Middleware wraps next with the authentication flow.
func (g *Gateway) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r, done := g.Handle(w, r)
		if done {
			return
		}
		next.ServeHTTP(w, r)
	})
}

// prepare attaches the request id, log data and a fresh notice sink.
func (g *Gateway) prepare(w http.ResponseWriter, r *http.Request) *http.Request {
	ctx := r.Context()
	if notify.FromContext(ctx) != nil {
		return r
	}
	reqID := ""
	if g.trustRequestID {
		reqID = r.Header.Get(RequestIDHeader)
	}
	if reqID == "" {
		reqID = uuid.NewString()
	}
	w.Header().Set(RequestIDHeader, reqID)

	ctx = logctx.WithRequestData(ctx, &logctx.RequestData{
		RequestID:  reqID,
		Method:     r.Method,
		Path:       r.URL.Path,
		RemoteAddr: r.RemoteAddr,
		UserAgent:  r.UserAgent(),
	})
	ctx = notify.WithSink(ctx, notify.NewSink(
		notify.SurfaceInvalidToken(g.surfaceInvalid),
		notify.WithLogger(g.log),
	))
	return r.WithContext(ctx)
}

// Handle runs the flow for one request. When done is true a response was
// written; otherwise the caller continues with the returned request, whose
// context carries the notice sink and, when there is a session, the
// identity. Middleware is the usual entry point; Handle exists for adapters
// that own the handler chain.
func (g *Gateway) Handle(w http.ResponseWriter, r *http.Request) (_ *http.Request, done bool) {
	r = g.prepare(w, r)
	ad := &logctx.AuthData{}
	ctx := logctx.WithAuthData(r.Context(), ad)
	r = r.WithContext(ctx)
	sess := g.sessions.ForRequest(w, r)

	claims, cfg, verr := auth.VerifyRequest(ctx, g.authn, r)
	ad.Header = cfg.HeaderName

	if g.isLogout(r) {
		if verr == nil {
			g.logout(ctx, w, r, sess)
			return r, true
		}
		g.log.DebugContext(ctx, "auth.logout.passthrough", slog.String("kind", auth.KindOf(verr).String()))
	}

	if verr != nil {
		ad.Outcome = auth.KindOf(verr).String()
		notify.FromContext(ctx).Record(ctx, verr)
		g.log.InfoContext(ctx, "auth.check.fail", slog.String("err", verr.Error()))
		return r.WithContext(g.withCurrent(ctx, sess)), false
	}

	res, err := g.prov.EstablishSession(ctx, claims, sess, provision.Target{
		RedirectTo: r.URL.Query().Get("redirect_to"),
		Host:       r.Host,
	})
	if err != nil {
		ad.Outcome = "provision_error"
		g.log.ErrorContext(ctx, "auth.provision.fail", slog.String("err", err.Error()))
		return r.WithContext(g.withCurrent(ctx, sess)), false
	}
	ad.Outcome = res.Outcome.String()
	ad.IdentityID = res.Identity.ID

	if res.Outcome == provision.OutcomeAlreadyAuthenticated {
		return r.WithContext(withIdentity(ctx, res.Identity)), false
	}

	g.log.InfoContext(ctx, "auth.login.ok", slog.Bool("created", res.Created))
	http.Redirect(w, r, res.RedirectTo, http.StatusFound)
	return r, true
}

func (g *Gateway) isLogout(r *http.Request) bool {
	return r.URL.Path == g.loginPath && r.URL.Query().Get("action") == "logout"
}

func (g *Gateway) logout(ctx context.Context, w http.ResponseWriter, r *http.Request, sess *sessions.Session) {
	if err := sess.Clear(ctx); err != nil {
		g.log.ErrorContext(ctx, "auth.logout.fail", slog.String("err", err.Error()))
	} else {
		g.log.InfoContext(ctx, "auth.logout.ok")
	}
	http.Redirect(w, r, g.logoutURL, http.StatusFound)
}

// withCurrent keeps an existing session usable downstream when this
// request's token did not lead to a login.
func (g *Gateway) withCurrent(ctx context.Context, sess *sessions.Session) context.Context {
	id, err := sess.CurrentIdentity(ctx)
	if err != nil {
		g.log.ErrorContext(ctx, "session.load.fail", slog.String("err", err.Error()))
	}
	if id == nil {
		return ctx
	}
	return withIdentity(ctx, id)
}

type identityKey struct{}

func withIdentity(ctx context.Context, id *identity.Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFromContext returns the identity of the request's session, or nil.
func IdentityFromContext(ctx context.Context) *identity.Identity {
	id, _ := ctx.Value(identityKey{}).(*identity.Identity)
	return id
}
