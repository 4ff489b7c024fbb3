package jwtauth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/MicahParks/jwkset"
	keyfunc "github.com/MicahParks/keyfunc/v3"
	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/golang-jwt/jwt/v5"
)

// maxJWKSBytes caps the size of a fetched key set document.
const maxJWKSBytes = 1 << 20

// resolveKeyfunc returns the key lookup for cfg.Mode. Remote modes fetch on
// every call; nothing is cached, so a failed fetch always rejects.
func resolveKeyfunc(ctx context.Context, cfg *Config) (jwt.Keyfunc, error) {
	switch cfg.Mode {
	case ModeSharedSecret, "":
		if cfg.Secret == "" {
			return nil, fmt.Errorf("%w: empty shared secret", ErrKeyResolution)
		}
		secret := []byte(cfg.Secret)
		return func(*jwt.Token) (any, error) { return secret, nil }, nil
	case ModeJWKSURL:
		ctx, cancel := withKeyTimeout(ctx, cfg)
		defer cancel()
		return fetchJWKS(ctx, httpClient(cfg), cfg.JWKSURL)
	case ModeOIDCDiscovery:
		ctx, cancel := withKeyTimeout(ctx, cfg)
		defer cancel()
		jwksURI, err := discoverJWKSURI(ctx, httpClient(cfg), cfg.IssuerURL)
		if err != nil {
			return nil, err
		}
		return fetchJWKS(ctx, httpClient(cfg), jwksURI)
	default:
		return nil, fmt.Errorf("%w: unknown mode %q", ErrKeyResolution, cfg.Mode)
	}
}

func withKeyTimeout(ctx context.Context, cfg *Config) (context.Context, context.CancelFunc) {
	d := cfg.KeyTimeout
	if d <= 0 {
		d = DefaultKeyTimeout
	}
	return context.WithTimeout(ctx, d)
}

func httpClient(cfg *Config) *http.Client {
	if cfg.HTTPClient != nil {
		return cfg.HTTPClient
	}
	return http.DefaultClient
}

// fetchJWKS downloads and parses the key set at url. Network errors,
// non-200 responses, malformed JSON and empty sets are all ErrKeyResolution.
func fetchJWKS(ctx context.Context, client *http.Client, url string) (jwt.Keyfunc, error) {
	if url == "" {
		return nil, fmt.Errorf("%w: empty jwks url", ErrKeyResolution)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build jwks request: %v", ErrKeyResolution, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch jwks: %v", ErrKeyResolution, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: fetch jwks: status %d", ErrKeyResolution, resp.StatusCode)
	}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxJWKSBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read jwks: %v", ErrKeyResolution, err)
	}

	var set jwkset.JWKSMarshal
	if err := json.Unmarshal(raw, &set); err != nil {
		return nil, fmt.Errorf("%w: parse jwks: %v", ErrKeyResolution, err)
	}
	if len(set.Keys) == 0 {
		return nil, fmt.Errorf("%w: empty key set", ErrKeyResolution)
	}

	kf, err := keyfunc.NewJWKSetJSON(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: load jwks: %v", ErrKeyResolution, err)
	}
	return kf.Keyfunc, nil
}

// discoverJWKSURI performs OIDC discovery against issuer and returns its jwks_uri.
func discoverJWKSURI(ctx context.Context, client *http.Client, issuer string) (string, error) {
	if issuer == "" {
		return "", fmt.Errorf("%w: empty issuer url", ErrKeyResolution)
	}
	provider, err := oidc.NewProvider(oidc.ClientContext(ctx, client), issuer)
	if err != nil {
		return "", fmt.Errorf("%w: oidc discovery: %v", ErrKeyResolution, err)
	}
	var meta struct {
		JwksURI string `json:"jwks_uri"`
	}
	if err := provider.Claims(&meta); err != nil {
		return "", fmt.Errorf("%w: invalid discovery metadata: %v", ErrKeyResolution, err)
	}
	if meta.JwksURI == "" {
		return "", fmt.Errorf("%w: discovery incomplete: missing jwks_uri", ErrKeyResolution)
	}
	return meta.JwksURI, nil
}
