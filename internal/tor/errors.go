package tor

import (
	"errors"
	"fmt"
)

// Tor connectivity errors.
// These errors are returned when there are problems connecting to or through Tor.
//
// Design decision: We define specific error types rather than wrapping all errors
// generically. This allows callers to handle different failure modes appropriately
// (e.g., abort a crawl when routing is not verified, but keep going when a
// rotation fails).
var (
	// ErrProxyNotTor is returned when the configured proxy address responds
	// but is not a Tor SOCKS5 proxy.
	ErrProxyNotTor = errors.New("proxy is not a Tor SOCKS5 proxy")

	// ErrProxyCannotConnect is returned when we cannot establish a TCP connection
	// to the proxy address. This usually means Tor is not running or the address
	// is incorrect.
	ErrProxyCannotConnect = errors.New("cannot connect to Tor proxy")

	// ErrProxyTimeout is returned when the connection to the proxy times out.
	ErrProxyTimeout = errors.New("timeout connecting to Tor proxy")

	// ErrInvalidProxyAddress is returned when the proxy address format is invalid.
	// Expected format is "host:port".
	ErrInvalidProxyAddress = errors.New("invalid proxy address format: expected host:port")

	// ErrNotRouted is returned when the probe endpoint answers but reports
	// that the request did not arrive through Tor.
	ErrNotRouted = errors.New("probe reports traffic is not routed through Tor")

	// ErrMalformedProbe is returned when the probe body is not a JSON object
	// with a boolean IsTor field.
	ErrMalformedProbe = errors.New("probe response has no boolean IsTor field")

	// ErrNoControlPort is returned by RotateIdentity when no control port
	// address was configured.
	ErrNoControlPort = errors.New("no Tor control port configured")
)

// ConnectivityError means anonymized routing could not be verified.
// A crawl must not start after this error.
type ConnectivityError struct {
	// ProbeURL is the endpoint that was queried.
	ProbeURL string

	// Reason is a short description of which check failed.
	Reason string

	// Err is the underlying cause.
	Err error
}

// Error implements the error interface.
func (e *ConnectivityError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("tor connectivity check via %s failed: %s: %v", e.ProbeURL, e.Reason, e.Err)
	}
	return fmt.Sprintf("tor connectivity check via %s failed: %s", e.ProbeURL, e.Reason)
}

// Unwrap returns the underlying cause.
func (e *ConnectivityError) Unwrap() error {
	return e.Err
}

// RotationError means a new circuit could not be requested.
// It is recoverable: callers log it and continue on the current circuit.
type RotationError struct {
	// Op is the step that failed: "wait", "connect", "authenticate",
	// "signal" or "settle".
	Op string

	// Err is the underlying cause.
	Err error
}

// Error implements the error interface.
func (e *RotationError) Error() string {
	return fmt.Sprintf("tor identity rotation failed at %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying cause.
func (e *RotationError) Unwrap() error {
	return e.Err
}

// ProxyStatus represents the result of checking the Tor proxy connection.
type ProxyStatus int

const (
	// ProxyStatusOK indicates the proxy is a working Tor SOCKS5 proxy.
	ProxyStatusOK ProxyStatus = iota

	// ProxyStatusWrongType indicates the proxy is not a Tor proxy.
	ProxyStatusWrongType

	// ProxyStatusCannotConnect indicates we could not establish a connection.
	ProxyStatusCannotConnect

	// ProxyStatusTimeout indicates the connection attempt timed out.
	ProxyStatusTimeout
)

// String returns a human-readable description of the proxy status.
func (s ProxyStatus) String() string {
	switch s {
	case ProxyStatusOK:
		return "OK"
	case ProxyStatusWrongType:
		return "wrong type (not Tor)"
	case ProxyStatusCannotConnect:
		return "cannot connect"
	case ProxyStatusTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// Error returns the appropriate error for this status, or nil if OK.
func (s ProxyStatus) Error() error {
	switch s {
	case ProxyStatusOK:
		return nil
	case ProxyStatusWrongType:
		return ErrProxyNotTor
	case ProxyStatusCannotConnect:
		return ErrProxyCannotConnect
	case ProxyStatusTimeout:
		return ErrProxyTimeout
	default:
		return errors.New("unknown proxy status")
	}
}
