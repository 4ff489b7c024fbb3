// Package cookiejws signs opaque session handles so that a cookie value can
// only name a session this deployment issued.
package cookiejws

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"fmt"
	"sync"

	jose "github.com/go-jose/go-jose/v4"
	"github.com/google/uuid"
)

// Signer holds Ed25519 keys by kid with one active key for signing. Older
// keys stay registered so cookies issued before a rotation still verify.
type Signer struct {
	mu        sync.RWMutex
	activeKid string
	privKeys  map[string]ed25519.PrivateKey
	pubKeys   map[string]ed25519.PublicKey
}

// New returns a Signer with no keys.
func New() *Signer {
	return &Signer{
		privKeys: make(map[string]ed25519.PrivateKey),
		pubKeys:  make(map[string]ed25519.PublicKey),
	}
}

// Generate returns a Signer with one random active key. Cookies it signs do
// not survive a restart and are not shared between instances.
func Generate() (*Signer, error) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	s := New()
	kid := uuid.NewString()
	s.AddKey(kid, priv)
	return s, s.SetActive(kid)
}

// FromSeed returns a Signer whose active key is derived from a 32 byte seed,
// letting several instances share cookies.
func FromSeed(kid string, seed []byte) (*Signer, error) {
	if kid == "" {
		return nil, errors.New("kid required")
	}
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("seed must be %d bytes, got %d", ed25519.SeedSize, len(seed))
	}
	s := New()
	s.AddKey(kid, ed25519.NewKeyFromSeed(seed))
	return s, s.SetActive(kid)
}

// AddKey registers a key under kid. The active key is unchanged.
func (s *Signer) AddKey(kid string, priv ed25519.PrivateKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.privKeys[kid] = priv
	s.pubKeys[kid] = priv.Public().(ed25519.PublicKey)
}

// SetActive selects the key used for signing.
func (s *Signer) SetActive(kid string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.privKeys[kid]; !ok {
		return fmt.Errorf("unknown kid: %s", kid)
	}
	s.activeKid = kid
	return nil
}

// Sign returns a compact JWS over payload.
func (s *Signer) Sign(payload []byte) (string, error) {
	s.mu.RLock()
	kid := s.activeKid
	priv, ok := s.privKeys[kid]
	s.mu.RUnlock()
	if kid == "" || !ok {
		return "", errors.New("no active signing key")
	}

	opts := (&jose.SignerOptions{}).WithHeader("kid", kid)
	signer, err := jose.NewSigner(jose.SigningKey{Algorithm: jose.EdDSA, Key: priv}, opts)
	if err != nil {
		return "", fmt.Errorf("create signer: %w", err)
	}
	jws, err := signer.Sign(payload)
	if err != nil {
		return "", fmt.Errorf("sign: %w", err)
	}
	return jws.CompactSerialize()
}

// Verify checks a compact JWS and returns its payload. Only EdDSA is accepted.
func (s *Signer) Verify(token string) ([]byte, error) {
	jws, err := jose.ParseSigned(token, []jose.SignatureAlgorithm{jose.EdDSA})
	if err != nil {
		return nil, fmt.Errorf("parse jws: %w", err)
	}
	if len(jws.Signatures) != 1 {
		return nil, fmt.Errorf("unexpected signatures: %d", len(jws.Signatures))
	}
	kid := jws.Signatures[0].Protected.KeyID

	s.mu.RLock()
	pub, ok := s.pubKeys[kid]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown kid: %s", kid)
	}
	payload, err := jws.Verify(pub)
	if err != nil {
		return nil, fmt.Errorf("verify: %w", err)
	}
	return payload, nil
}
