package tor

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/nao1215/tornago"
)

// defaultControlTimeout bounds one control-port exchange when the caller's
// context has no deadline.
const defaultControlTimeout = 10 * time.Second

// cookieLength is the size of Tor's control_auth_cookie file.
const cookieLength = 32

// ControlConfig describes how to reach and authenticate to a Tor control port.
// With neither Password nor CookiePath set, null authentication is used,
// which only works when the daemon has no control auth configured.
type ControlConfig struct {
	// Address is the control port in "host:port" format, e.g. "127.0.0.1:9051".
	Address string

	// Password is the plain-text HashedControlPassword secret.
	Password string

	// CookiePath is the path of the control_auth_cookie file.
	CookiePath string

	// Timeout bounds one exchange. Zero means defaultControlTimeout.
	Timeout time.Duration
}

// identityRequester asks Tor for fresh circuits.
// Implementations return *RotationError on failure.
type identityRequester interface {
	NewIdentity(ctx context.Context) error
}

// controlPort rotates circuits through a Tor control port using tornago's
// ControlClient. Each rotation opens a short-lived connection, so a control
// port restarted between rotations is picked up again.
type controlPort struct {
	cfg ControlConfig
}

// newControlPort validates cfg and returns a control-port requester.
func newControlPort(cfg ControlConfig) (*controlPort, error) {
	if !isValidProxyAddress(cfg.Address) {
		return nil, fmt.Errorf("control address %q: %w", cfg.Address, ErrInvalidProxyAddress)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultControlTimeout
	}
	return &controlPort{cfg: cfg}, nil
}

// NewIdentity implements identityRequester.
func (p *controlPort) NewIdentity(ctx context.Context) error {
	auth, err := p.auth()
	if err != nil {
		return &RotationError{Op: "authenticate", Err: err}
	}
	if err := ctx.Err(); err != nil {
		return &RotationError{Op: "connect", Err: err}
	}

	ctrl, err := tornago.NewControlClient(p.cfg.Address, auth, p.cfg.Timeout)
	if err != nil {
		return &RotationError{Op: "connect", Err: err}
	}
	defer ctrl.Close()

	if err := ctrl.Authenticate(); err != nil {
		return &RotationError{Op: "authenticate", Err: err}
	}
	if err := ctrl.NewIdentity(ctx); err != nil {
		return &RotationError{Op: "signal", Err: err}
	}
	return nil
}

// auth builds the tornago credentials for the configured control port.
// A password takes precedence over a cookie file. The cookie is read here
// so a truncated file is reported before any connection is made.
func (p *controlPort) auth() (tornago.ControlAuth, error) {
	switch {
	case p.cfg.Password != "":
		return tornago.ControlAuthFromPassword(p.cfg.Password), nil
	case p.cfg.CookiePath != "":
		cookie, err := os.ReadFile(p.cfg.CookiePath)
		if err != nil {
			return tornago.ControlAuth{}, fmt.Errorf("failed to read control cookie: %w", err)
		}
		if len(cookie) != cookieLength {
			return tornago.ControlAuth{}, fmt.Errorf("control cookie %s has %d bytes, want %d", p.cfg.CookiePath, len(cookie), cookieLength)
		}
		return tornago.ControlAuthFromCookieBytes(cookie), nil
	default:
		return tornago.ControlAuth{}, nil
	}
}
