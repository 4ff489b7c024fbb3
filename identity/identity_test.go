package identity

import (
	"strings"
	"testing"
)

func TestNewCredential(t *testing.T) {
	a, err := NewCredential()
	if err != nil {
		t.Fatalf("NewCredential: %v", err)
	}
	b, err := NewCredential()
	if err != nil {
		t.Fatalf("NewCredential: %v", err)
	}
	if len(a) != 64 {
		t.Fatalf("want 64 chars, got %d", len(a))
	}
	if a == b {
		t.Fatalf("credentials must differ")
	}
	for _, r := range a {
		if !strings.ContainsRune(credentialAlphabet, r) {
			t.Fatalf("unexpected character %q", r)
		}
	}
}

func TestHashCredential(t *testing.T) {
	cred, _ := NewCredential()
	h, err := HashCredential(cred)
	if err != nil {
		t.Fatalf("HashCredential: %v", err)
	}
	if strings.Contains(h, cred) {
		t.Fatalf("hash contains the credential")
	}
	if !CheckCredential(h, cred) {
		t.Fatalf("hash does not match its credential")
	}
	if CheckCredential(h, cred+"x") {
		t.Fatalf("hash matches a different credential")
	}
}

func TestRoleSet(t *testing.T) {
	s := NewRoleSet(DefaultRoles...)
	for _, r := range []string{"editor", "Editor", " administrator "} {
		if !s.Allows(r) {
			t.Fatalf("want %q allowed", r)
		}
	}
	for _, r := range []string{"", "root", "super-admin"} {
		if s.Allows(r) {
			t.Fatalf("want %q rejected", r)
		}
	}
	if len(NewRoleSet("", " ")) != 0 {
		t.Fatalf("empty names must be skipped")
	}
}

func TestNormalizeEmail(t *testing.T) {
	if got := NormalizeEmail("  A@X.Com "); got != "a@x.com" {
		t.Fatalf("got %q", got)
	}
}
