// Package sessions holds the authenticated session established after a
// successful token login.
//
// A session is a Record persisted in a Store and named by an opaque id. The
// id travels to the browser inside a signed cookie; a cookie whose signature
// does not verify, or whose record is missing or expired, simply means there
// is no current identity.
//
//	Manager  -> cookie policy, signer and Store shared by all requests
//	Session  -> per-request view: CurrentIdentity, Clear, Establish
//	Store    -> persistence (memorystore, redisstore)
//
// Store implementations return (nil, nil) from Get for absent or expired
// records and treat Delete of an unknown id as success.
package sessions
