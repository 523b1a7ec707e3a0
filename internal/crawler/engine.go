package crawler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/nao1215/onionleak/internal/model"
	"github.com/nao1215/onionleak/internal/tor"
)

// Engine defaults.
const (
	// DefaultDelay is the pause after every successful fetch.
	DefaultDelay = 2 * time.Second

	// DefaultTimeout bounds one request including the body read.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxBodySize caps how much of a response body is read.
	DefaultMaxBodySize int64 = 10 * 1024 * 1024

	// DefaultUserAgent matches the Tor Browser so requests blend in.
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; rv:128.0) Gecko/20100101 Firefox/128.0"
)

// Session is the anonymized transport the engine fetches through.
// *tor.CircuitSession implements it.
type Session interface {
	// HTTPClient returns the client all requests are issued on.
	HTTPClient() *http.Client

	// RotateIdentity requests a fresh exit identity.
	RotateIdentity(ctx context.Context) error
}

// SiteLookup returns the cookie and extra headers to send to host.
// Either may be empty.
type SiteLookup func(host string) (cookie string, headers map[string]string)

// Engine fetches addresses one at a time through a Session.
//
// Each address is fetched successfully at most once per Engine: a second
// FetchOne for an address that already succeeded returns a skipped result
// without touching the network. Failed addresses are not remembered, so a
// caller may retry them.
//
// An Engine is meant to be driven by one goroutine. VisitedSet itself is
// safe for concurrent use.
type Engine struct {
	session     Session
	visited     *VisitedSet
	observer    Observer
	logger      *slog.Logger
	delay       time.Duration
	timeout     time.Duration
	userAgent   string
	maxBodySize int64
	rotateEvery int
	sites       SiteLookup
	validate    func(string) error

	// successes counts successful fetches for scheduled rotation.
	successes int
}

// Option configures an Engine.
type Option func(*Engine)

// WithDelay sets the pause after each successful fetch.
func WithDelay(d time.Duration) Option {
	return func(e *Engine) {
		e.delay = max(d, 0)
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(e *Engine) {
		if ua != "" {
			e.userAgent = ua
		}
	}
}

// WithMaxBodySize sets the maximum number of body bytes read per page.
func WithMaxBodySize(n int64) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxBodySize = n
		}
	}
}

// WithRotateEvery rotates the Tor identity after every n successful
// fetches. Zero disables scheduled rotation.
func WithRotateEvery(n int) Option {
	return func(e *Engine) {
		e.rotateEvery = max(n, 0)
	}
}

// WithObserver sets the event observer.
func WithObserver(o Observer) Option {
	return func(e *Engine) {
		if o != nil {
			e.observer = o
		}
	}
}

// WithLogger sets the engine logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithSiteLookup sets the per-host cookie and header source.
func WithSiteLookup(f SiteLookup) Option {
	return func(e *Engine) {
		e.sites = f
	}
}

// WithTargetValidator replaces the address check FetchAll runs before any
// request. The default accepts absolute http(s) URLs whose .onion hosts
// are valid v3 addresses.
func WithTargetValidator(f func(string) error) Option {
	return func(e *Engine) {
		if f != nil {
			e.validate = f
		}
	}
}

// NewEngine creates an engine that fetches through session.
func NewEngine(session Session, opts ...Option) *Engine {
	e := &Engine{
		session:     session,
		visited:     NewVisitedSet(),
		observer:    nopObserver{},
		logger:      slog.New(slog.DiscardHandler),
		delay:       DefaultDelay,
		timeout:     DefaultTimeout,
		userAgent:   DefaultUserAgent,
		maxBodySize: DefaultMaxBodySize,
		validate:    tor.ValidateTarget,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Visited returns the engine's visited set.
func (e *Engine) Visited() *VisitedSet {
	return e.visited
}

// FetchAll validates every address, then fetches them in order. A failed
// address does not stop the run; its outcome is in the returned results.
//
// An empty list or an invalid address fails before any request is made.
// If ctx is cancelled between fetches, the results gathered so far are
// returned together with ctx.Err().
func (e *Engine) FetchAll(ctx context.Context, addresses []string) ([]model.FetchResult, error) {
	if len(addresses) == 0 {
		return nil, ErrNoTargets
	}
	for i, a := range addresses {
		if err := e.validate(a); err != nil {
			return nil, fmt.Errorf("%w: entry %d %q: %w", ErrInvalidTarget, i+1, a, err)
		}
	}

	e.logger.Debug("starting fetch run", "targets", len(addresses), "delay", e.delay, "timeout", e.timeout)

	results := make([]model.FetchResult, 0, len(addresses))
	for _, a := range addresses {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		results = append(results, e.FetchOne(ctx, a))
	}
	return results, nil
}

// FetchOne fetches a single address. It never returns an error: every
// outcome is described by the result's Status.
func (e *Engine) FetchOne(ctx context.Context, address string) model.FetchResult {
	addr := model.NewAddress(address)

	if e.visited.Contains(address) {
		return e.finish(model.FetchResult{Address: addr, Status: model.StatusSkipped, FetchedAt: time.Now()})
	}

	e.observer.Observe(Event{Kind: EventFetchStarted, Address: addr, Time: time.Now()})

	result := e.fetch(ctx, addr)
	if result.Status != model.StatusSuccess {
		return e.finish(result)
	}

	if !e.visited.Add(address) {
		return e.finish(model.FetchResult{Address: addr, Status: model.StatusSkipped, FetchedAt: result.FetchedAt})
	}

	for _, link := range result.Links {
		e.observer.Observe(Event{Kind: EventLinkFound, Address: addr, Link: link, Time: time.Now()})
	}
	result = e.finish(result)

	e.successes++
	if e.rotateEvery > 0 && e.successes%e.rotateEvery == 0 {
		e.rotate(ctx)
	}
	e.pace(ctx)

	return result
}

// fetch performs the request and classifies the outcome.
func (e *Engine) fetch(ctx context.Context, addr model.Address) model.FetchResult {
	start := time.Now()
	result := model.FetchResult{Address: addr, FetchedAt: start}

	fail := func(status model.FetchStatus, code int, err error) model.FetchResult {
		fe := &FetchError{Address: addr.String(), Status: status, StatusCode: code, Err: err}
		result.Status = status
		result.StatusCode = code
		result.Err = fe
		result.ErrorMessage = fe.Error()
		result.Elapsed = time.Since(start)
		return result
	}

	reqCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, strings.TrimSpace(addr.String()), nil)
	if err != nil {
		return fail(model.StatusNetworkError, 0, err)
	}
	e.setHeaders(req)

	resp, err := e.session.HTTPClient().Do(req)
	if err != nil {
		return fail(model.StatusNetworkError, 0, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// Drain a little so the connection can be reused.
		_, _ = io.CopyN(io.Discard, resp.Body, 4096) //nolint:errcheck // best effort
		return fail(model.StatusHTTPError, resp.StatusCode, nil)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, e.maxBodySize))
	if err != nil {
		return fail(model.StatusNetworkError, resp.StatusCode, err)
	}

	body := DecodeBody(raw, resp.Header.Get("Content-Type"))
	result.Status = model.StatusSuccess
	result.StatusCode = resp.StatusCode
	result.Body = body
	result.Title, result.Links = ExtractLinks(body)
	result.Text = CleanText(body)
	result.Elapsed = time.Since(start)
	return result
}

// setHeaders applies browser-like defaults and any per-site overrides.
func (e *Engine) setHeaders(req *http.Request) {
	req.Header.Set("User-Agent", e.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	if e.sites == nil {
		return
	}
	cookie, headers := e.sites(strings.ToLower(req.URL.Hostname()))
	if cookie != "" {
		req.Header.Set("Cookie", cookie)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
}

// rotate requests a new identity. Failure is reported and otherwise ignored.
func (e *Engine) rotate(ctx context.Context) {
	err := e.session.RotateIdentity(ctx)
	if err != nil && errors.Is(err, context.Canceled) {
		e.logger.Debug("identity rotation interrupted", "error", err)
		return
	}
	e.observer.Observe(Event{Kind: EventIdentityRotated, Err: err, Time: time.Now()})
}

// pace waits the politeness delay, returning early if ctx is done.
func (e *Engine) pace(ctx context.Context) {
	if e.delay <= 0 {
		return
	}
	timer := time.NewTimer(e.delay)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}

// finish publishes result to the observer and returns it.
func (e *Engine) finish(result model.FetchResult) model.FetchResult {
	r := result
	e.observer.Observe(Event{Kind: EventFetchFinished, Address: result.Address, Result: &r, Time: time.Now()})
	return result
}
