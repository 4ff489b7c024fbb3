package envstore

import (
	"context"
	"testing"
	"time"

	"github.com/ggoodman/headerauth-go/auth"
	"github.com/ggoodman/headerauth-go/configstore"
)

func TestLookup(t *testing.T) {
	t.Setenv("HEADERAUTH_JWKS_URL", "https://idp.example/keys")
	t.Setenv("HEADERAUTH_JWT_HEADER", "x_user_jwt")

	s := New()
	v, ok, err := s.Lookup(context.Background(), configstore.KeyJWKSURL)
	if err != nil || !ok || v != "https://idp.example/keys" {
		t.Fatalf("Lookup = %q %v %v", v, ok, err)
	}
	if _, ok, _ := s.Lookup(context.Background(), configstore.KeySecret); ok {
		t.Fatalf("unset variable reported present")
	}
	if _, ok, _ := s.Lookup(context.Background(), "unknown"); ok {
		t.Fatalf("unknown key reported present")
	}
}

func TestLoaderFromEnvironment(t *testing.T) {
	t.Setenv("HEADERAUTH_PRIVATE_SECRET", "s3cret")
	t.Setenv("HEADERAUTH_JWT_HEADER", "HTTP_X_USER_JWT")
	t.Setenv("HEADERAUTH_LEEWAY", "30")

	l := configstore.NewLoader(New())
	cfg, err := l.AuthConfig(context.Background())
	if err != nil {
		t.Fatalf("AuthConfig: %v", err)
	}
	if cfg.Mode != auth.ModeSharedSecret || cfg.Secret != "s3cret" || cfg.HeaderName != "X-User-Jwt" || cfg.Leeway != 30*time.Second {
		t.Fatalf("unexpected config: %+v", cfg)
	}

	// Values are read per call.
	t.Setenv("HEADERAUTH_JWKS_URL", "https://idp.example/keys")
	cfg, _ = l.AuthConfig(context.Background())
	if cfg.Mode != auth.ModeJWKSURL {
		t.Fatalf("want jwks-url mode after env change, got %s", cfg.Mode)
	}
}
