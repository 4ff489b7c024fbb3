package filestore

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ggoodman/headerauth-go/auth"
	"github.com/ggoodman/headerauth-go/configstore"
)

func writeFile(t *testing.T, dir, name, val string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(val), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func TestLoadDirectory(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, configstore.KeySecret, "s3cret\n")
	writeFile(t, dir, configstore.KeyHeader, "X-User-Jwt")
	writeFile(t, dir, ".hidden", "ignored")
	if err := os.Mkdir(filepath.Join(dir, "sub"), 0o700); err != nil {
		t.Fatal(err)
	}

	s, err := New(dir)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer s.Close()

	if v, ok, _ := s.Lookup(context.Background(), configstore.KeySecret); !ok || v != "s3cret" {
		t.Fatalf("secret = %q %v", v, ok)
	}
	for _, k := range []string{".hidden", "sub", configstore.KeyJWKSURL} {
		if _, ok, _ := s.Lookup(context.Background(), k); ok {
			t.Fatalf("%s reported present", k)
		}
	}

	cfg, err := configstore.NewLoader(s).AuthConfig(context.Background())
	if err != nil {
		t.Fatalf("AuthConfig: %v", err)
	}
	if cfg.Mode != auth.ModeSharedSecret || cfg.Secret != "s3cret" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
}

func TestLoadKeepsInnerWhitespace(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, configstore.KeySecret, " padded secret \r\n")

	s, err := New(dir)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer s.Close()

	if v, _, _ := s.Lookup(context.Background(), configstore.KeySecret); v != " padded secret " {
		t.Fatalf("secret = %q", v)
	}
}

func TestMissingDirectory(t *testing.T) {
	if _, err := New(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Fatalf("missing directory accepted")
	}
}

func TestWatchReloads(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, configstore.KeySecret, "old")

	reloaded := make(chan struct{}, 16)
	s, err := New(dir, WithOnReload(func() {
		select {
		case reloaded <- struct{}{}:
		default:
		}
	}))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer s.Close()
	<-reloaded

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := s.Watch(ctx); err != nil {
		t.Fatalf("Watch: %v", err)
	}
	if err := s.Watch(ctx); err != nil {
		t.Fatalf("second Watch: %v", err)
	}

	writeFile(t, dir, configstore.KeySecret, "new")
	writeFile(t, dir, configstore.KeyJWKSURL, "https://idp/keys")

	deadline := time.After(5 * time.Second)
	for {
		v, _, _ := s.Lookup(ctx, configstore.KeySecret)
		u, _, _ := s.Lookup(ctx, configstore.KeyJWKSURL)
		if v == "new" && u != "" {
			break
		}
		select {
		case <-reloaded:
		case <-time.After(50 * time.Millisecond):
		case <-deadline:
			t.Fatalf("change not observed: secret=%q jwks=%q", v, u)
		}
	}

	if err := os.Remove(filepath.Join(dir, configstore.KeyJWKSURL)); err != nil {
		t.Fatal(err)
	}
	deadline = time.After(5 * time.Second)
	for {
		if _, ok, _ := s.Lookup(ctx, configstore.KeyJWKSURL); !ok {
			break
		}
		select {
		case <-reloaded:
		case <-time.After(50 * time.Millisecond):
		case <-deadline:
			t.Fatalf("removal not observed")
		}
	}
}
