// Package auth verifies the signed token that a trusted reverse proxy places
// in a request header after authenticating the end user out-of-band.
//
// The public surface is small: Verify decodes a header value against a
// Config and returns Claims (email plus optional lower-cased role) or an
// error wrapping one of the sentinel errors. Authenticator binds Verify to a
// ConfigSource so configuration is re-read on every request.
//
// # Signing modes
//
// ModeSharedSecret verifies with a configured secret. ModeJWKSURL fetches a
// JSON Web Key Set on every call; ModeOIDCDiscovery first discovers the key
// set URL from an issuer's OpenID configuration. Remote resolution is bounded
// by Config.KeyTimeout and nothing is cached, so a failed fetch always
// rejects with ErrKeyResolution.
//
// # Algorithms
//
// Exactly one algorithm is accepted (Config.Algorithm, default HS256). The
// allow-list is enforced by the parser before any key lookup, never derived
// from the token header, so "none" and mismatched algorithms are rejected
// with ErrSignatureInvalid.
//
// Example:
//
//	authn, _ := auth.New(auth.StaticConfig(auth.Config{
//	    Mode:       auth.ModeSharedSecret,
//	    Secret:     os.Getenv("PROXY_JWT_SECRET"),
//	    HeaderName: "x-user-jwt",
//	}))
//	claims, err := authn.Verify(r.Context(), r.Header.Get("X-User-Jwt"))
//	switch auth.KindOf(err) {
//	case auth.KindNone:
//	    // claims.Email, claims.Role
//	case auth.KindSignatureInvalid:
//	    // surface to operator
//	}
package auth
