// Package provision turns verified token claims into a local identity and a
// fresh session.
//
// EstablishSession is a no-op when the request already carries a session,
// so presenting the same token on every request logs the user in once.
// Otherwise the identity is looked up by email, created on first sight with
// an unrecoverable credential, its role updated when the token carries an
// allow-listed one, and a new session established after clearing any
// previous state. Registered LoginObservers run after the session exists.
package provision
