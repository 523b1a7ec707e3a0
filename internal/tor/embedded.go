package tor

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/nao1215/tornago"
)

// ErrEmbeddedNotRunning is returned when the embedded daemon is used before
// Start or after Stop.
var ErrEmbeddedNotRunning = errors.New("embedded Tor daemon is not running")

// EmbeddedTor runs a private Tor daemon through tornago for users who do
// not have one. Both the SOCKS and control ports are bound to random local
// ports, and the control port uses cookie authentication.
//
// Bootstrapping takes one to three minutes while Tor fetches directory
// information and builds its first circuits.
type EmbeddedTor struct {
	process        *tornago.TorProcess
	socksAddr      string
	controlAddr    string
	dataDir        string
	startupTimeout time.Duration
}

// EmbeddedTorOption configures an EmbeddedTor instance.
type EmbeddedTorOption func(*EmbeddedTor)

// WithStartupTimeout sets the maximum time to wait for Tor to bootstrap.
func WithStartupTimeout(timeout time.Duration) EmbeddedTorOption {
	return func(e *EmbeddedTor) {
		if timeout > 0 {
			e.startupTimeout = timeout
		}
	}
}

// NewEmbeddedTor creates an embedded Tor manager. Call Start to launch it.
func NewEmbeddedTor(opts ...EmbeddedTorOption) *EmbeddedTor {
	e := &EmbeddedTor{
		startupTimeout: 3 * time.Minute,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Start launches the daemon and blocks until it has bootstrapped.
// If ctx is cancelled while Tor starts, the process is stopped again.
func (e *EmbeddedTor) Start(ctx context.Context) error {
	launchCfg, err := tornago.NewTorLaunchConfig(
		tornago.WithTorSocksAddr(":0"),
		tornago.WithTorControlAddr(":0"),
		tornago.WithTorStartupTimeout(e.startupTimeout),
	)
	if err != nil {
		return fmt.Errorf("failed to create Tor launch config: %w", err)
	}

	process, err := tornago.StartTorDaemon(launchCfg)
	if err != nil {
		return fmt.Errorf("failed to start embedded Tor daemon: %w", err)
	}

	if err := ctx.Err(); err != nil {
		_ = process.Stop() //nolint:errcheck // best effort cleanup
		return err
	}

	e.process = process
	e.socksAddr = process.SocksAddr()
	e.controlAddr = process.ControlAddr()
	e.dataDir = process.DataDir()
	return nil
}

// Stop shuts the daemon down. It is safe to call more than once.
func (e *EmbeddedTor) Stop() error {
	if e.process == nil {
		return nil
	}
	err := e.process.Stop()
	e.process = nil
	e.socksAddr = ""
	e.controlAddr = ""
	return err
}

// SocksAddr returns the SOCKS5 address, or "" when not running.
func (e *EmbeddedTor) SocksAddr() string {
	return e.socksAddr
}

// ControlAddr returns the control port address, or "" when not running.
func (e *EmbeddedTor) ControlAddr() string {
	return e.controlAddr
}

// ControlCookiePath returns the control_auth_cookie path inside the
// daemon's data directory, or "" when not running.
func (e *EmbeddedTor) ControlCookiePath() string {
	if e.dataDir == "" || e.process == nil {
		return ""
	}
	return filepath.Join(e.dataDir, "control_auth_cookie")
}

// ControlConfig returns the settings a CircuitSession needs to rotate
// identities on the embedded daemon.
func (e *EmbeddedTor) ControlConfig() (ControlConfig, error) {
	if !e.IsRunning() {
		return ControlConfig{}, ErrEmbeddedNotRunning
	}
	return ControlConfig{
		Address:    e.controlAddr,
		CookiePath: e.ControlCookiePath(),
	}, nil
}

// IsRunning reports whether the daemon has been started and not stopped.
func (e *EmbeddedTor) IsRunning() bool {
	return e.process != nil
}

// NewClient returns a Client for the embedded daemon's SOCKS port.
func (e *EmbeddedTor) NewClient(timeout time.Duration) (*Client, error) {
	if !e.IsRunning() {
		return nil, ErrEmbeddedNotRunning
	}
	return NewClient(e.socksAddr, timeout)
}
