package cookiejws

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"strings"
	"testing"
)

func TestSignVerify(t *testing.T) {
	s, err := Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	tok, err := s.Sign([]byte("session-123"))
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	got, err := s.Verify(tok)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !bytes.Equal(got, []byte("session-123")) {
		t.Fatalf("payload mismatch: %q", got)
	}
}

func TestVerifyRejectsForeignAndTampered(t *testing.T) {
	a, _ := Generate()
	b, _ := Generate()
	tok, err := a.Sign([]byte("sid"))
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if _, err := b.Verify(tok); err == nil {
		t.Fatalf("token from another signer verified")
	}

	parts := strings.Split(tok, ".")
	parts[1] = "c2lkMg" // "sid2"
	if _, err := a.Verify(strings.Join(parts, ".")); err == nil {
		t.Fatalf("tampered payload verified")
	}
	if _, err := a.Verify("garbage"); err == nil {
		t.Fatalf("garbage verified")
	}
}

func TestFromSeedIsDeterministic(t *testing.T) {
	seed := make([]byte, ed25519.SeedSize)
	if _, err := rand.Read(seed); err != nil {
		t.Fatalf("rand: %v", err)
	}
	one, err := FromSeed("k1", seed)
	if err != nil {
		t.Fatalf("FromSeed: %v", err)
	}
	two, err := FromSeed("k1", seed)
	if err != nil {
		t.Fatalf("FromSeed: %v", err)
	}
	tok, _ := one.Sign([]byte("shared"))
	if _, err := two.Verify(tok); err != nil {
		t.Fatalf("instances sharing a seed must verify each other: %v", err)
	}
	if _, err := FromSeed("k1", seed[:10]); err == nil {
		t.Fatalf("short seed accepted")
	}
	if _, err := FromSeed("", seed); err == nil {
		t.Fatalf("empty kid accepted")
	}
}

func TestRotationKeepsOldKeys(t *testing.T) {
	s := New()
	_, k1, _ := ed25519.GenerateKey(rand.Reader)
	_, k2, _ := ed25519.GenerateKey(rand.Reader)
	s.AddKey("k1", k1)
	if err := s.SetActive("k1"); err != nil {
		t.Fatalf("SetActive: %v", err)
	}
	old, _ := s.Sign([]byte("old"))

	s.AddKey("k2", k2)
	if err := s.SetActive("k2"); err != nil {
		t.Fatalf("SetActive: %v", err)
	}
	if _, err := s.Verify(old); err != nil {
		t.Fatalf("old cookie must still verify: %v", err)
	}
	if err := s.SetActive("missing"); err == nil {
		t.Fatalf("unknown kid activated")
	}
}
