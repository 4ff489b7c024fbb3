// Package authtest provides Authenticator doubles for tests of code that
// consumes package auth.
package authtest

import (
	"context"
	"sync/atomic"

	"github.com/ggoodman/headerauth-go/auth"
)

// Static is an Authenticator that ignores key material and maps header
// values to fixed results. Values not present in Tokens verify to
// auth.ErrTokenInvalid; an empty value is auth.ErrMissingToken.
type Static struct {
	Cfg    auth.Config
	Tokens map[string]Result

	calls atomic.Int64
}

// Result is the outcome Static returns for one header value.
type Result struct {
	Claims *auth.Claims
	Err    error
}

// NewStatic creates a Static authenticator reading the given header.
func NewStatic(header string) *Static {
	cfg := auth.Config{Mode: auth.ModeSharedSecret, Secret: "authtest", HeaderName: header}
	cfg.Normalize()
	return &Static{Cfg: cfg, Tokens: map[string]Result{}}
}

// Accept registers tok as verifying to the given identity.
func (s *Static) Accept(tok, email, role string) *Static {
	s.Tokens[tok] = Result{Claims: &auth.Claims{Email: email, Role: role}}
	return s
}

// Reject registers tok as failing with err.
func (s *Static) Reject(tok string, err error) *Static {
	s.Tokens[tok] = Result{Err: err}
	return s
}

// Calls reports how many times Verify ran.
func (s *Static) Calls() int64 { return s.calls.Load() }

func (s *Static) Config(context.Context) (auth.Config, error) { return s.Cfg, nil }

func (s *Static) Verify(_ context.Context, headerValue string) (*auth.Claims, error) {
	s.calls.Add(1)
	if headerValue == "" {
		return nil, auth.ErrMissingToken
	}
	res, ok := s.Tokens[headerValue]
	if !ok {
		return nil, auth.ErrTokenInvalid
	}
	if res.Err != nil {
		return nil, res.Err
	}
	c := *res.Claims
	return &c, nil
}

var _ auth.Authenticator = (*Static)(nil)
