// Package logctx decorates slog records with request scoped attributes
// carried in the context.
package logctx

import (
	"context"
	"log/slog"
)

// Handler wraps another slog.Handler and appends "req" and "auth" groups
// when the record's context carries them.
type Handler struct {
	slog.Handler
}

// New wraps h.
func New(h slog.Handler) Handler { return Handler{Handler: h} }

func (h Handler) Handle(ctx context.Context, r slog.Record) error {
	if rd, ok := ctx.Value(requestDataKey{}).(*RequestData); ok {
		r.AddAttrs(slog.Group("req",
			slog.String("id", rd.RequestID),
			slog.String("method", rd.Method),
			slog.String("path", rd.Path),
			slog.String("remote_addr", rd.RemoteAddr),
			slog.String("user_agent", rd.UserAgent),
		))
	}

	if ad, ok := ctx.Value(authDataKey{}).(*AuthData); ok {
		attrs := []any{slog.String("header", ad.Header)}
		if ad.IdentityID != "" {
			attrs = append(attrs, slog.String("identity_id", ad.IdentityID))
		}
		if ad.Outcome != "" {
			attrs = append(attrs, slog.String("outcome", ad.Outcome))
		}
		r.AddAttrs(slog.Group("auth", attrs...))
	}

	return h.Handler.Handle(ctx, r)
}

func (h Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return Handler{Handler: h.Handler.WithAttrs(attrs)}
}

func (h Handler) WithGroup(name string) slog.Handler {
	return Handler{Handler: h.Handler.WithGroup(name)}
}

type requestDataKey struct{}

type RequestData struct {
	RequestID  string
	Method     string
	Path       string
	RemoteAddr string
	UserAgent  string
}

func WithRequestData(ctx context.Context, data *RequestData) context.Context {
	return context.WithValue(ctx, requestDataKey{}, data)
}

// RequestDataFrom returns the request data attached to ctx, or nil.
func RequestDataFrom(ctx context.Context) *RequestData {
	rd, _ := ctx.Value(requestDataKey{}).(*RequestData)
	return rd
}

type authDataKey struct{}

// AuthData describes the authentication attempt of the current request.
// Fields are filled in as the attempt progresses.
type AuthData struct {
	Header     string
	IdentityID string
	Outcome    string
}

func WithAuthData(ctx context.Context, data *AuthData) context.Context {
	return context.WithValue(ctx, authDataKey{}, data)
}
