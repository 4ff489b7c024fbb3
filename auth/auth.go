package auth

import (
	"context"
	"errors"
	"fmt"
)

// Sentinel errors for each rejection cause. Errors returned by Verify and by
// Authenticator implementations wrap exactly one of these.
var (
	// ErrMissingToken indicates the configured header carried no token.
	ErrMissingToken = errors.New("missing token")
	// ErrKeyResolution indicates the verification key could not be resolved
	// (JWKS fetch/parse failure, discovery failure, unusable configuration).
	ErrKeyResolution = errors.New("key resolution failed")
	// ErrSignatureInvalid indicates the token signature or algorithm was rejected.
	ErrSignatureInvalid = errors.New("signature invalid")
	// ErrTokenInvalid covers any other decode failure (malformed, expired, ...).
	ErrTokenInvalid = errors.New("token invalid")
	// ErrMissingEmailClaim indicates a verified token without an email claim.
	ErrMissingEmailClaim = errors.New("missing email claim")
)

// ErrNoClaimSet is returned by Claims.Decode when the claims did not come from
// a verified token.
var ErrNoClaimSet = errors.New("auth: no claim set to decode")

// Kind classifies an authentication failure.
type Kind int

const (
	KindNone Kind = iota
	KindMissingToken
	KindKeyResolution
	KindSignatureInvalid
	KindTokenInvalid
	KindMissingEmailClaim
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindMissingToken:
		return "missing_token"
	case KindKeyResolution:
		return "key_resolution_error"
	case KindSignatureInvalid:
		return "signature_invalid"
	case KindTokenInvalid:
		return "token_invalid"
	case KindMissingEmailClaim:
		return "missing_email_claim"
	default:
		return "unknown"
	}
}

// MarshalText encodes k as its String form.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText decodes the String form produced by MarshalText.
func (k *Kind) UnmarshalText(b []byte) error {
	for c := KindNone; c <= KindMissingEmailClaim; c++ {
		if c.String() == string(b) {
			*k = c
			return nil
		}
	}
	return fmt.Errorf("auth: unknown kind %q", b)
}

// KindOf maps err to its Kind. Errors that wrap none of the sentinels are
// reported as KindTokenInvalid; a nil error is KindNone.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrMissingToken):
		return KindMissingToken
	case errors.Is(err, ErrKeyResolution):
		return KindKeyResolution
	case errors.Is(err, ErrSignatureInvalid):
		return KindSignatureInvalid
	case errors.Is(err, ErrMissingEmailClaim):
		return KindMissingEmailClaim
	default:
		return KindTokenInvalid
	}
}

// Claims carries the identity asserted by a verified token. It exists only
// for the duration of one request.
type Claims struct {
	Email string
	// Role is lower-cased, or empty when the token has no role claim.
	Role string

	decode func(ref any) error
}

// Decode unmarshals the token's full claim set into ref. Claims built outside
// Verify carry no claim set and return ErrNoClaimSet.
func (c *Claims) Decode(ref any) error {
	if c == nil || c.decode == nil {
		return ErrNoClaimSet
	}
	return c.decode(ref)
}

// Authenticator verifies the value of the trusted identity header.
type Authenticator interface {
	// Verify returns the claims carried by headerValue or an error wrapping
	// one of the sentinel errors above.
	Verify(ctx context.Context, headerValue string) (*Claims, error)
	// Config returns the configuration the next Verify call would use.
	Config(ctx context.Context) (Config, error)
}
