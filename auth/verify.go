package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/ggoodman/headerauth-go/internal/jwtauth"
)

// ConfigSource yields the configuration to verify against. It is consulted
// on every verification so that changes in the backing store take effect
// without a restart.
type ConfigSource interface {
	AuthConfig(ctx context.Context) (Config, error)
}

// ConfigSourceFunc adapts a function to ConfigSource.
type ConfigSourceFunc func(ctx context.Context) (Config, error)

func (f ConfigSourceFunc) AuthConfig(ctx context.Context) (Config, error) { return f(ctx) }

// StaticConfig returns a ConfigSource that always yields cfg.
func StaticConfig(cfg Config) ConfigSource {
	return ConfigSourceFunc(func(context.Context) (Config, error) { return cfg, nil })
}

// Option configures Verify and New.
type Option func(*options)

type options struct {
	client *http.Client
}

// WithHTTPClient sets the client used for JWKS and discovery requests.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.client = c }
}

// Verify decodes headerValue using cfg and returns its identity claims.
//
// cfg is normalized and validated first; an unusable configuration is
// reported as ErrKeyResolution since no key can be derived from it. Verify
// has no side effects other than remote key resolution.
func Verify(ctx context.Context, headerValue string, cfg Config, opts ...Option) (*Claims, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, errors.Join(ErrKeyResolution, err)
	}

	ic := cfg.internal()
	ic.HTTPClient = o.client
	c, err := jwtauth.Verify(ctx, ic, headerValue)
	if err != nil {
		return nil, mapError(err)
	}
	return &Claims{Email: c.Email, Role: c.Role, decode: c.Decode}, nil
}

// mapError maps internal sentinel errors to the public ones.
func mapError(err error) error {
	switch {
	case errors.Is(err, jwtauth.ErrMissingToken):
		return errors.Join(ErrMissingToken, err)
	case errors.Is(err, jwtauth.ErrKeyResolution):
		return errors.Join(ErrKeyResolution, err)
	case errors.Is(err, jwtauth.ErrSignatureInvalid):
		return errors.Join(ErrSignatureInvalid, err)
	case errors.Is(err, jwtauth.ErrMissingEmail):
		return errors.Join(ErrMissingEmailClaim, err)
	default:
		return errors.Join(ErrTokenInvalid, err)
	}
}

// New returns an Authenticator that reads its configuration from src on
// every call.
func New(src ConfigSource, opts ...Option) (Authenticator, error) {
	if src == nil {
		return nil, errors.New("config source is required")
	}
	return &authenticator{src: src, opts: opts}, nil
}

type authenticator struct {
	src  ConfigSource
	opts []Option
}

func (a *authenticator) Config(ctx context.Context) (Config, error) {
	cfg, err := a.src.AuthConfig(ctx)
	if err != nil {
		return Config{}, fmt.Errorf("%w: load config: %w", ErrKeyResolution, err)
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return Config{}, errors.Join(ErrKeyResolution, err)
	}
	return cfg, nil
}

func (a *authenticator) Verify(ctx context.Context, headerValue string) (*Claims, error) {
	cfg, err := a.Config(ctx)
	if err != nil {
		return nil, err
	}
	return Verify(ctx, headerValue, cfg, a.opts...)
}

func (a *authenticator) VerifyRequest(ctx context.Context, r *http.Request) (*Claims, Config, error) {
	cfg, err := a.Config(ctx)
	if err != nil {
		return nil, Config{}, err
	}
	c, err := Verify(ctx, r.Header.Get(cfg.HeaderName), cfg, a.opts...)
	return c, cfg, err
}

// RequestVerifier is implemented by Authenticators that can verify a request
// against a single configuration snapshot.
type RequestVerifier interface {
	VerifyRequest(ctx context.Context, r *http.Request) (*Claims, Config, error)
}

// VerifyRequest reads the configured header from r and verifies it. The
// returned Config is the one the header name was taken from. An absent
// header is ErrMissingToken.
func VerifyRequest(ctx context.Context, a Authenticator, r *http.Request) (*Claims, Config, error) {
	if rv, ok := a.(RequestVerifier); ok {
		return rv.VerifyRequest(ctx, r)
	}
	cfg, err := a.Config(ctx)
	if err != nil {
		return nil, Config{}, err
	}
	c, err := a.Verify(ctx, r.Header.Get(cfg.HeaderName))
	return c, cfg, err
}

var _ Authenticator = (*authenticator)(nil)
