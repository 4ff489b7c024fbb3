// Package envstore serves configstore keys from environment variables named
// HEADERAUTH_<KEY>, with dashes replaced by underscores (for example
// HEADERAUTH_JWKS_URL).
package envstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/ggoodman/headerauth-go/configstore"
	"github.com/joeshaw/envdecode"
)

// Values mirrors the supported variables.
type Values struct {
	Mode       string `env:"HEADERAUTH_SIGNING_MODE"`
	Secret     string `env:"HEADERAUTH_PRIVATE_SECRET"`
	JWKSURL    string `env:"HEADERAUTH_JWKS_URL"`
	IssuerURL  string `env:"HEADERAUTH_ISSUER_URL"`
	Header     string `env:"HEADERAUTH_JWT_HEADER"`
	Algorithm  string `env:"HEADERAUTH_ALGORITHM"`
	Leeway     string `env:"HEADERAUTH_LEEWAY"`
	KeyTimeout string `env:"HEADERAUTH_KEY_TIMEOUT"`
}

func (v *Values) get(key string) string {
	switch key {
	case configstore.KeyMode:
		return v.Mode
	case configstore.KeySecret:
		return v.Secret
	case configstore.KeyJWKSURL:
		return v.JWKSURL
	case configstore.KeyIssuerURL:
		return v.IssuerURL
	case configstore.KeyHeader:
		return v.Header
	case configstore.KeyAlgorithm:
		return v.Algorithm
	case configstore.KeyLeeway:
		return v.Leeway
	case configstore.KeyKeyTimeout:
		return v.KeyTimeout
	}
	return ""
}

// Store reads the environment on every lookup.
type Store struct{}

var _ configstore.Store = Store{}

func New() Store { return Store{} }

// Decode returns the current values.
func Decode() (*Values, error) {
	var v Values
	if err := envdecode.Decode(&v); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return nil, fmt.Errorf("envstore: %w", err)
	}
	return &v, nil
}

func (Store) Lookup(_ context.Context, key string) (string, bool, error) {
	v, err := Decode()
	if err != nil {
		return "", false, err
	}
	val := v.get(key)
	return val, val != "", nil
}
