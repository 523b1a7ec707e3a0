// Package tor provides Tor network connectivity for onionleak.
//
// The package has three parts:
//   - Client: a SOCKS5 dialer and the HTTP clients built on it
//   - CircuitSession: the verified, identity-rotatable session the fetch
//     engine uses (probe endpoint check and NEWNYM over the control port)
//   - EmbeddedTor: a tornago-managed Tor daemon for users without one
//
// The package is designed to be used with dependency injection - create a
// Client and a CircuitSession once and pass them to components that need
// Tor connectivity rather than using global state.
package tor
