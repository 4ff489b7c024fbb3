package auth

import (
	"errors"
	"fmt"
	"log/slog"
	"net/textproto"
	"strings"
	"time"

	"github.com/ggoodman/headerauth-go/internal/jwtauth"
)

// SigningMode selects where the verification key comes from. Exactly one
// mode is active for a Config.
type SigningMode string

const (
	// ModeSharedSecret verifies with the configured secret string.
	ModeSharedSecret SigningMode = SigningMode(jwtauth.ModeSharedSecret)
	// ModeJWKSURL fetches a JSON Web Key Set from JWKSURL on every verification.
	ModeJWKSURL SigningMode = SigningMode(jwtauth.ModeJWKSURL)
	// ModeOIDCDiscovery discovers the key set URL from IssuerURL's OpenID
	// configuration document on every verification.
	ModeOIDCDiscovery SigningMode = SigningMode(jwtauth.ModeOIDCDiscovery)
)

// Config describes how the identity header is located and verified.
//
// A zero value is invalid; populate the fields, call Normalize, then Validate.
type Config struct {
	Mode SigningMode
	// Secret is the HMAC key, used byte for byte.
	Secret    string
	JWKSURL   string
	IssuerURL string

	// HeaderName is the request header carrying the compact token. Normalize
	// canonicalizes it (see CanonicalHeaderName).
	HeaderName string

	// Algorithm is the single accepted JWS algorithm. Default HS256.
	Algorithm string
	// Leeway is the clock skew tolerance for exp/nbf/iat. Default 0.
	Leeway time.Duration
	// KeyTimeout bounds remote key resolution. Default 5s.
	KeyTimeout time.Duration
}

// Normalize fills defaults and canonicalizes the header name. Secret is key
// material and is left as configured.
func (c *Config) Normalize() {
	c.Mode = SigningMode(strings.ToLower(strings.TrimSpace(string(c.Mode))))
	if c.Mode == "" {
		c.Mode = InferMode(c.JWKSURL)
	}
	c.JWKSURL = strings.TrimSpace(c.JWKSURL)
	c.IssuerURL = strings.TrimSpace(c.IssuerURL)
	c.HeaderName = CanonicalHeaderName(c.HeaderName)
	c.Algorithm = strings.TrimSpace(c.Algorithm)
	if c.Algorithm == "" {
		c.Algorithm = jwtauth.DefaultAlgorithm
	}
	if c.KeyTimeout <= 0 {
		c.KeyTimeout = jwtauth.DefaultKeyTimeout
	}
}

// InferMode picks the signing mode when none is configured: a non-empty key
// set URL selects ModeJWKSURL, anything else ModeSharedSecret.
func InferMode(jwksURL string) SigningMode {
	if strings.TrimSpace(jwksURL) != "" {
		return ModeJWKSURL
	}
	return ModeSharedSecret
}

// Validate returns an error if required invariants are not met.
func (c Config) Validate() error {
	if c.HeaderName == "" {
		return errors.New("auth: header name required")
	}
	if !jwtauth.IsSupported(c.Algorithm) {
		return fmt.Errorf("auth: unsupported algorithm %q", c.Algorithm)
	}
	switch c.Mode {
	case ModeSharedSecret:
		if c.Secret == "" {
			return errors.New("auth: shared secret required")
		}
		if !jwtauth.IsSymmetric(c.Algorithm) {
			return fmt.Errorf("auth: algorithm %s cannot be used with a shared secret", c.Algorithm)
		}
	case ModeJWKSURL:
		if c.JWKSURL == "" {
			return errors.New("auth: jwks url required")
		}
	case ModeOIDCDiscovery:
		if c.IssuerURL == "" {
			return errors.New("auth: issuer url required")
		}
	default:
		return fmt.Errorf("auth: unknown signing mode %q", c.Mode)
	}
	if c.Leeway < 0 {
		return errors.New("auth: negative leeway")
	}
	return nil
}

// LogValue keeps key material out of logs.
func (c Config) LogValue() slog.Value {
	secret := ""
	if c.Secret != "" {
		secret = "[redacted]"
	}
	return slog.GroupValue(
		slog.String("mode", string(c.Mode)),
		slog.String("header", c.HeaderName),
		slog.String("alg", c.Algorithm),
		slog.String("jwks_url", c.JWKSURL),
		slog.String("issuer_url", c.IssuerURL),
		slog.String("secret", secret),
	)
}

// CanonicalHeaderName converts a configured header name into the canonical
// HTTP field name. CGI-style names are accepted: "HTTP_X_USER_JWT",
// "x_user_jwt" and "X-User-JWT" all yield "X-User-Jwt".
func CanonicalHeaderName(name string) string {
	name = strings.TrimSpace(name)
	if len(name) > 5 && strings.EqualFold(name[:5], "HTTP_") {
		name = name[5:]
	}
	name = strings.ReplaceAll(name, "_", "-")
	if name == "" {
		return ""
	}
	return textproto.CanonicalMIMEHeaderKey(name)
}

func (c Config) internal() *jwtauth.Config {
	return &jwtauth.Config{
		Mode:       jwtauth.Mode(c.Mode),
		Secret:     c.Secret,
		JWKSURL:    c.JWKSURL,
		IssuerURL:  c.IssuerURL,
		Algorithm:  c.Algorithm,
		Leeway:     c.Leeway,
		KeyTimeout: c.KeyTimeout,
	}
}
