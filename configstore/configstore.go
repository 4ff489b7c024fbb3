// Package configstore reads the authentication settings from a key/value
// store. The store is consulted on every verification so operators can
// rotate secrets or switch signing modes without a restart.
package configstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ggoodman/headerauth-go/auth"
)

// Keys understood by Loader.
const (
	KeyMode       = "signing-mode"
	KeySecret     = "private-secret"
	KeyJWKSURL    = "jwks-url"
	KeyIssuerURL  = "issuer-url"
	KeyHeader     = "jwt-header"
	KeyAlgorithm  = "algorithm"
	KeyLeeway     = "leeway"
	KeyKeyTimeout = "key-timeout"
)

// Keys lists every key Loader reads.
var Keys = []string{KeyMode, KeySecret, KeyJWKSURL, KeyIssuerURL, KeyHeader, KeyAlgorithm, KeyLeeway, KeyKeyTimeout}

// ErrInvalidValue is wrapped by Loader when a stored value cannot be parsed.
var ErrInvalidValue = errors.New("configstore: invalid value")

// Store is a read-only key lookup. A missing key is ("", false, nil).
type Store interface {
	Lookup(ctx context.Context, key string) (string, bool, error)
}

// StoreFunc adapts a function to Store.
type StoreFunc func(ctx context.Context, key string) (string, bool, error)

func (f StoreFunc) Lookup(ctx context.Context, key string) (string, bool, error) { return f(ctx, key) }

// Static is an in-memory Store.
type Static map[string]string

func (s Static) Lookup(_ context.Context, key string) (string, bool, error) {
	v, ok := s[key]
	return v, ok, nil
}

// Chain consults each store in order and returns the first hit.
type Chain []Store

func (c Chain) Lookup(ctx context.Context, key string) (string, bool, error) {
	for _, s := range c {
		v, ok, err := s.Lookup(ctx, key)
		if err != nil {
			return "", false, err
		}
		if ok {
			return v, true, nil
		}
	}
	return "", false, nil
}

// Loader builds auth.Config values from a Store. It implements
// auth.ConfigSource.
type Loader struct {
	store    Store
	defaults auth.Config
}

var _ auth.ConfigSource = (*Loader)(nil)

type Option func(*Loader)

// WithDefaults supplies values for keys the store does not have.
func WithDefaults(cfg auth.Config) Option { return func(l *Loader) { l.defaults = cfg } }

func NewLoader(store Store, opts ...Option) *Loader {
	l := &Loader{store: store}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// AuthConfig reads every key and returns the normalized configuration. When
// no signing mode is stored, a non-empty JWKS URL selects jwks-url mode and
// anything else shared-secret.
func (l *Loader) AuthConfig(ctx context.Context) (auth.Config, error) {
	cfg := l.defaults

	str := func(key string, dst *string) error {
		v, ok, err := l.store.Lookup(ctx, key)
		if err != nil {
			return fmt.Errorf("configstore: lookup %s: %w", key, err)
		}
		if ok && strings.TrimSpace(v) != "" {
			*dst = v
		}
		return nil
	}
	dur := func(key string, dst *time.Duration) error {
		var raw string
		if err := str(key, &raw); err != nil || raw == "" {
			return err
		}
		d, err := ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidValue, key, err)
		}
		*dst = d
		return nil
	}

	var mode string
	if err := str(KeyMode, &mode); err != nil {
		return auth.Config{}, err
	}
	if mode != "" {
		cfg.Mode = auth.SigningMode(mode)
	}
	for key, dst := range map[string]*string{
		KeySecret:    &cfg.Secret,
		KeyJWKSURL:   &cfg.JWKSURL,
		KeyIssuerURL: &cfg.IssuerURL,
		KeyHeader:    &cfg.HeaderName,
		KeyAlgorithm: &cfg.Algorithm,
	} {
		if err := str(key, dst); err != nil {
			return auth.Config{}, err
		}
	}
	if err := dur(KeyLeeway, &cfg.Leeway); err != nil {
		return auth.Config{}, err
	}
	if err := dur(KeyKeyTimeout, &cfg.KeyTimeout); err != nil {
		return auth.Config{}, err
	}

	cfg.Normalize()
	return cfg, nil
}

// ParseDuration accepts Go duration syntax or a bare number of seconds.
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		if n < 0 {
			return 0, fmt.Errorf("negative duration %d", n)
		}
		return time.Duration(n) * time.Second, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("negative duration %s", d)
	}
	return d, nil
}
