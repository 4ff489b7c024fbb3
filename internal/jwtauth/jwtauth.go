package jwtauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Mode selects where the verification key comes from.
type Mode string

const (
	ModeSharedSecret  Mode = "shared-secret"
	ModeJWKSURL       Mode = "jwks-url"
	ModeOIDCDiscovery Mode = "oidc-discovery"
)

// Config controls how a single token is verified. Exactly one key source is
// consulted, selected by Mode. Algorithm is the only accepted JWS algorithm.
type Config struct {
	Mode      Mode
	Secret    string
	JWKSURL   string
	IssuerURL string
	Algorithm string
	Leeway    time.Duration
	// KeyTimeout bounds the whole remote key resolution (discovery + JWKS
	// fetch). Zero means DefaultKeyTimeout.
	KeyTimeout time.Duration
	// HTTPClient is used for remote key resolution. Nil means a client with
	// no timeout of its own; KeyTimeout still applies via the context.
	HTTPClient *http.Client
}

const (
	DefaultAlgorithm  = "HS256"
	DefaultKeyTimeout = 5 * time.Second
)

var (
	// ErrMissingToken indicates no token value was supplied.
	ErrMissingToken = errors.New("jwtauth: missing token")
	// ErrKeyResolution indicates the verification key could not be obtained.
	ErrKeyResolution = errors.New("jwtauth: key resolution failed")
	// ErrSignatureInvalid indicates the signature (or its algorithm) was rejected.
	ErrSignatureInvalid = errors.New("jwtauth: signature invalid")
	// ErrTokenInvalid covers every other decode failure: malformed, expired, not yet valid.
	ErrTokenInvalid = errors.New("jwtauth: token invalid")
	// ErrMissingEmail indicates a verified token without a usable email claim.
	ErrMissingEmail = errors.New("jwtauth: missing email claim")
)

// Claims is the identity extracted from a verified token.
type Claims struct {
	Email string
	// Role is lower-cased; empty when the token carries no role.
	Role string
	raw  map[string]any
}

// Decode unmarshals the full claim set into ref.
func (c *Claims) Decode(ref any) error {
	b, err := json.Marshal(c.raw)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, ref)
}

// Verify resolves the key for cfg, decodes tok and extracts identity claims.
// It performs no side effects beyond the remote key fetch of the JWKS and
// discovery modes.
func Verify(ctx context.Context, cfg *Config, tok string) (*Claims, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	tok = strings.TrimSpace(tok)
	if tok == "" {
		return nil, ErrMissingToken
	}

	alg := cfg.Algorithm
	if alg == "" {
		alg = DefaultAlgorithm
	}

	kf, err := resolveKeyfunc(ctx, cfg)
	if err != nil {
		return nil, err
	}

	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{alg})}
	if cfg.Leeway > 0 {
		opts = append(opts, jwt.WithLeeway(cfg.Leeway))
	}
	parser := jwt.NewParser(opts...)

	claims := jwt.MapClaims{}
	_, err = parser.ParseWithClaims(tok, claims, func(t *jwt.Token) (any, error) {
		// The parser already enforces WithValidMethods; keep the check local to
		// the key lookup too so a keyfunc is never consulted for another alg.
		if got := t.Method.Alg(); got != alg {
			return nil, fmt.Errorf("disallowed alg: %s", got)
		}
		return kf(t)
	})
	if err != nil {
		return nil, classify(err)
	}

	email, _ := claims["email"].(string)
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, ErrMissingEmail
	}

	out := &Claims{Email: email, raw: claims}
	if role, ok := claims["role"].(string); ok {
		out.Role = strings.ToLower(strings.TrimSpace(role))
	}
	return out, nil
}

func classify(err error) error {
	if errors.Is(err, jwt.ErrTokenSignatureInvalid) {
		return fmt.Errorf("%w: %v", ErrSignatureInvalid, err)
	}
	return fmt.Errorf("%w: %v", ErrTokenInvalid, err)
}

// SupportedAlgorithms lists the algorithms a Config may name.
var SupportedAlgorithms = []string{
	"HS256", "HS384", "HS512",
	"RS256", "RS384", "RS512",
	"PS256", "PS384", "PS512",
	"ES256", "ES384", "ES512",
	"EdDSA",
}

// IsSymmetric reports whether alg is an HMAC algorithm.
func IsSymmetric(alg string) bool {
	return strings.HasPrefix(alg, "HS")
}

// IsSupported reports whether alg is one of SupportedAlgorithms.
func IsSupported(alg string) bool {
	for _, a := range SupportedAlgorithms {
		if a == alg {
			return true
		}
	}
	return false
}
