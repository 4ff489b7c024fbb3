// Package gateway wires token verification, session provisioning and
// failure notices into an HTTP request pipeline.
//
// Middleware runs on every request. A verified token without a session
// logs the user in and redirects; a request that already has a session
// passes through with its identity in the context; a failed verification
// passes through with a notice in the request's notify.Sink. Request
// handling is never aborted because of an authentication failure.
//
// Visiting the login path with action=logout while presenting a valid token
// clears the local session and redirects to the proxy's logout endpoint so
// the two sessions do not diverge.
package gateway
