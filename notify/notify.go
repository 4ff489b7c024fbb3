// Package notify holds the human readable outcome of a failed token login
// for the rest of the request and renders it for operators and users.
//
// A Sink is request scoped: it keeps at most one Notice, the latest one
// recorded, and reading it does not clear it. Message text is fixed per
// failure kind and never includes key material or the token itself.
package notify

import (
	"context"
	"log/slog"
	"sync"

	"github.com/ggoodman/headerauth-go/auth"
)

const (
	MsgMissingToken      = "Proxy Auth is enabled, but it does not receive the expected JWT. Please double check your reverse proxy configuration"
	MsgKeyResolution     = "Proxy Auth cannot load the key set used to verify the JWT. Please double check the JWKS URL configuration"
	MsgSignatureInvalid  = "Proxy Auth cannot verify the JWT. Please double check if your JWT's private secret is configured correctly"
	MsgMissingEmailClaim = "Proxy Auth expects email attribute to identify user, but it does not exist in the JWT. Please check your reverse proxy configuration"
	MsgTokenInvalidOptIn = "Proxy Auth rejected the JWT. Please sign in again"
)

// Notice is a displayable authentication failure.
type Notice struct {
	Kind    auth.Kind `json:"kind"`
	Message string    `json:"message"`
}

// Message returns the template for kind. TokenInvalid has no message unless
// surfaceInvalid is set.
func Message(kind auth.Kind, surfaceInvalid bool) (string, bool) {
	switch kind {
	case auth.KindMissingToken:
		return MsgMissingToken, true
	case auth.KindKeyResolution:
		return MsgKeyResolution, true
	case auth.KindSignatureInvalid:
		return MsgSignatureInvalid, true
	case auth.KindMissingEmailClaim:
		return MsgMissingEmailClaim, true
	case auth.KindTokenInvalid:
		if surfaceInvalid {
			return MsgTokenInvalidOptIn, true
		}
	}
	return "", false
}

// Sink retains the latest Notice of one request.
type Sink struct {
	mu             sync.Mutex
	pending        *Notice
	surfaceInvalid bool
	log            *slog.Logger
}

type SinkOption func(*Sink)

// SurfaceInvalidToken makes TokenInvalid failures visible with a generic
// message instead of passing silently.
func SurfaceInvalidToken(on bool) SinkOption { return func(s *Sink) { s.surfaceInvalid = on } }

// WithLogger sets the logger receiving the operator warning for each
// recorded notice.
func WithLogger(l *slog.Logger) SinkOption { return func(s *Sink) { s.log = l } }

func NewSink(opts ...SinkOption) *Sink {
	s := &Sink{}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	return s
}

// Record classifies err and stores its notice, replacing any earlier one.
// It reports whether a notice was stored; silent kinds and nil are ignored.
func (s *Sink) Record(ctx context.Context, err error) bool {
	if err == nil {
		return false
	}
	kind := auth.KindOf(err)
	msg, ok := Message(kind, s.surfaceInvalid)
	if !ok {
		s.log.DebugContext(ctx, "auth.notice.silent", slog.String("kind", kind.String()))
		return false
	}
	s.mu.Lock()
	s.pending = &Notice{Kind: kind, Message: msg}
	s.mu.Unlock()
	s.log.WarnContext(ctx, "auth.notice", slog.String("kind", kind.String()), slog.String("message", msg))
	return true
}

// Consume returns the pending notice without clearing it.
func (s *Sink) Consume() (Notice, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending == nil {
		return Notice{}, false
	}
	return *s.pending, true
}

type sinkKey struct{}

// WithSink returns a context carrying s.
func WithSink(ctx context.Context, s *Sink) context.Context {
	return context.WithValue(ctx, sinkKey{}, s)
}

// FromContext returns the request's Sink, or nil.
func FromContext(ctx context.Context) *Sink {
	s, _ := ctx.Value(sinkKey{}).(*Sink)
	return s
}

// Pending is a shorthand for FromContext(ctx).Consume().
func Pending(ctx context.Context) (Notice, bool) {
	s := FromContext(ctx)
	if s == nil {
		return Notice{}, false
	}
	return s.Consume()
}
