package tor

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Circuit session defaults.
const (
	// DefaultProbeURL answers with {"IsTor": bool, "IP": string} for the
	// address the request arrived from.
	DefaultProbeURL = "https://check.torproject.org/api/ip"

	// DefaultSettleDelay is how long RotateIdentity waits after NEWNYM so
	// that new requests are built on fresh circuits.
	DefaultSettleDelay = 5 * time.Second

	// DefaultRotationInterval matches Tor's own NEWNYM rate limit. Signals
	// sent faster than this are accepted but silently coalesced.
	DefaultRotationInterval = 10 * time.Second

	// maxProbeBody caps how much of the probe response is read.
	maxProbeBody = 64 * 1024
)

// CircuitSession is an anonymized HTTP session: every request goes through
// the Tor SOCKS proxy, routing can be verified against a probe endpoint,
// and a fresh exit identity can be requested over the control port.
//
// A CircuitSession is safe for concurrent use. Rotations are serialized.
type CircuitSession struct {
	client      *http.Client
	probeURL    string
	identity    identityRequester
	controlErr  error
	settleDelay time.Duration
	limiter     *rate.Limiter
	logger      *slog.Logger

	// rotateMu serializes RotateIdentity so the settle delay of one
	// rotation is not overlapped by the next.
	rotateMu sync.Mutex
}

// CircuitOption configures a CircuitSession.
type CircuitOption func(*CircuitSession)

// WithProbeURL sets the connectivity probe endpoint.
func WithProbeURL(u string) CircuitOption {
	return func(s *CircuitSession) {
		if u != "" {
			s.probeURL = u
		}
	}
}

// WithControl enables RotateIdentity through the given control port.
// An invalid address is reported by RotateIdentity, not here.
func WithControl(cfg ControlConfig) CircuitOption {
	return func(s *CircuitSession) {
		p, err := newControlPort(cfg)
		if err != nil {
			s.controlErr = err
			return
		}
		s.identity = p
		s.controlErr = nil
	}
}

// WithSettleDelay overrides the post-NEWNYM wait. Negative values are
// treated as zero.
func WithSettleDelay(d time.Duration) CircuitOption {
	return func(s *CircuitSession) {
		s.settleDelay = max(d, 0)
	}
}

// WithRotationInterval sets the minimum spacing between NEWNYM signals.
// Zero or a negative value disables spacing.
func WithRotationInterval(d time.Duration) CircuitOption {
	return func(s *CircuitSession) {
		if d <= 0 {
			s.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		s.limiter = rate.NewLimiter(rate.Every(d), 1)
	}
}

// WithSessionLogger sets the logger used for connectivity and rotation events.
func WithSessionLogger(l *slog.Logger) CircuitOption {
	return func(s *CircuitSession) {
		if l != nil {
			s.logger = l
		}
	}
}

// withIdentityRequester replaces the control port, for tests.
func withIdentityRequester(r identityRequester) CircuitOption {
	return func(s *CircuitSession) {
		s.identity = r
		s.controlErr = nil
	}
}

// NewCircuitSession wraps an HTTP client that already dials through Tor
// (see Client.NewHTTPClient). It performs no network activity.
func NewCircuitSession(client *http.Client, opts ...CircuitOption) *CircuitSession {
	s := &CircuitSession{
		client:      client,
		probeURL:    DefaultProbeURL,
		settleDelay: DefaultSettleDelay,
		limiter:     rate.NewLimiter(rate.Every(DefaultRotationInterval), 1),
		logger:      slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// HTTPClient returns the anonymized client. All fetches must use it.
func (s *CircuitSession) HTTPClient() *http.Client {
	return s.client
}

// ProbeURL returns the configured probe endpoint.
func (s *CircuitSession) ProbeURL() string {
	return s.probeURL
}

// probeResponse is the subset of the probe body we rely on.
type probeResponse struct {
	IsTor *bool  `json:"IsTor"`
	IP    string `json:"IP"`
}

// Verify queries the probe endpoint through the session and succeeds only
// when the endpoint reports IsTor=true. Every failure, including transport
// errors, non-200 replies and malformed bodies, is a *ConnectivityError.
func (s *CircuitSession) Verify(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.probeURL, nil)
	if err != nil {
		return &ConnectivityError{ProbeURL: s.probeURL, Reason: "invalid probe request", Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return &ConnectivityError{ProbeURL: s.probeURL, Reason: "probe request failed", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &ConnectivityError{
			ProbeURL: s.probeURL,
			Reason:   "unexpected probe status",
			Err:      fmt.Errorf("HTTP %d", resp.StatusCode),
		}
	}

	var body probeResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxProbeBody)).Decode(&body); err != nil {
		return &ConnectivityError{ProbeURL: s.probeURL, Reason: "malformed probe body", Err: fmt.Errorf("%w: %w", ErrMalformedProbe, err)}
	}
	if body.IsTor == nil {
		return &ConnectivityError{ProbeURL: s.probeURL, Reason: "malformed probe body", Err: ErrMalformedProbe}
	}
	if !*body.IsTor {
		return &ConnectivityError{ProbeURL: s.probeURL, Reason: "not routed", Err: ErrNotRouted}
	}

	s.logger.Debug("tor routing verified", "probe", s.probeURL)
	return nil
}

// VerifyConnectivity is the boolean form of Verify. Failures are logged.
func (s *CircuitSession) VerifyConnectivity(ctx context.Context) bool {
	if err := s.Verify(ctx); err != nil {
		s.logger.Error("tor connectivity check failed", "error", err)
		return false
	}
	return true
}

// RotateIdentity signals NEWNYM on the control port and then waits the
// settle delay. Calls are spaced by the rotation interval. Every failure is
// a *RotationError; callers log it and keep using the current circuit.
func (s *CircuitSession) RotateIdentity(ctx context.Context) error {
	if s.identity == nil {
		err := s.controlErr
		if err == nil {
			err = ErrNoControlPort
		}
		return &RotationError{Op: "connect", Err: err}
	}

	s.rotateMu.Lock()
	defer s.rotateMu.Unlock()

	if err := s.limiter.Wait(ctx); err != nil {
		return &RotationError{Op: "wait", Err: err}
	}

	if err := s.identity.NewIdentity(ctx); err != nil {
		s.logger.Warn("tor identity rotation failed", "error", err)
		return err
	}
	s.logger.Info("requested new tor identity", "settle", s.settleDelay)

	if s.settleDelay == 0 {
		return nil
	}
	timer := time.NewTimer(s.settleDelay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return &RotationError{Op: "settle", Err: ctx.Err()}
	}
}
