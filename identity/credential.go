package identity

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"golang.org/x/crypto/bcrypt"
)

const (
	credentialLength   = 64
	credentialAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// NewCredential returns a random alphanumeric credential. Provisioned
// identities never log in with it; authentication is delegated to the proxy.
func NewCredential() (string, error) {
	out := make([]byte, credentialLength)
	max := big.NewInt(int64(len(credentialAlphabet)))
	for i := range out {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("generate credential: %w", err)
		}
		out[i] = credentialAlphabet[n.Int64()]
	}
	return string(out), nil
}

// HashCredential returns the bcrypt hash stores persist instead of the credential.
func HashCredential(credential string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(credential), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash credential: %w", err)
	}
	return string(h), nil
}

// CheckCredential reports whether credential matches hash.
func CheckCredential(hash, credential string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(credential)) == nil
}
