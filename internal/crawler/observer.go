package crawler

import (
	"log/slog"
	"time"

	"github.com/nao1215/onionleak/internal/model"
)

// EventKind identifies an engine event.
type EventKind int

const (
	// EventFetchStarted is sent before the request for an address is issued.
	EventFetchStarted EventKind = iota + 1

	// EventLinkFound is sent once per anchor on a successfully fetched page.
	EventLinkFound

	// EventFetchFinished is sent with every FetchResult, including skips.
	EventFetchFinished

	// EventIdentityRotated is sent after a scheduled rotation attempt.
	// Err is non-nil when the rotation failed.
	EventIdentityRotated
)

// String returns the event name used in logs.
func (k EventKind) String() string {
	switch k {
	case EventFetchStarted:
		return "fetch_started"
	case EventLinkFound:
		return "link_found"
	case EventFetchFinished:
		return "fetch_finished"
	case EventIdentityRotated:
		return "identity_rotated"
	default:
		return "unknown"
	}
}

// Event is a single progress notification from the engine.
type Event struct {
	Kind    EventKind
	Address model.Address

	// Result is set for EventFetchFinished.
	Result *model.FetchResult

	// Link is set for EventLinkFound.
	Link model.Link

	// Err is set for a failed EventIdentityRotated.
	Err error

	Time time.Time
}

// Observer receives engine events. Observe is called synchronously from the
// fetching goroutine, so implementations should return quickly.
type Observer interface {
	Observe(Event)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(Event)

// Observe implements Observer.
func (f ObserverFunc) Observe(e Event) {
	f(e)
}

// MultiObserver fans events out to several observers in order.
func MultiObserver(observers ...Observer) Observer {
	return ObserverFunc(func(e Event) {
		for _, o := range observers {
			if o != nil {
				o.Observe(e)
			}
		}
	})
}

// NewLogObserver returns an observer that logs crawl progress: each
// request, page title, discovered link and failure.
func NewLogObserver(logger *slog.Logger) Observer {
	return ObserverFunc(func(e Event) {
		switch e.Kind {
		case EventFetchStarted:
			logger.Info("crawling", "address", e.Address.String())
		case EventLinkFound:
			if e.Link.Class == model.ClassOverlay {
				logger.Info("found onion link", "page", e.Address.String(), "href", e.Link.Address.String())
			} else {
				logger.Debug("found regular link", "page", e.Address.String(), "href", e.Link.Address.String())
			}
		case EventFetchFinished:
			logResult(logger, e.Result)
		case EventIdentityRotated:
			if e.Err != nil {
				logger.Warn("identity rotation failed, continuing on current circuit", "error", e.Err)
			} else {
				logger.Info("identity rotated")
			}
		}
	})
}

func logResult(logger *slog.Logger, r *model.FetchResult) {
	if r == nil {
		return
	}
	switch r.Status {
	case model.StatusSuccess:
		logger.Info("page fetched",
			"address", r.Address.String(),
			"title", r.Title,
			"onion_links", len(r.OverlayLinks()),
			"clearnet_links", len(r.ClearnetLinks()),
			"elapsed", r.Elapsed)
	case model.StatusHTTPError:
		logger.Warn("failed to access page", "address", r.Address.String(), "status_code", r.StatusCode)
	case model.StatusNetworkError:
		logger.Error("error crawling page", "address", r.Address.String(), "error", r.Err)
	case model.StatusSkipped:
		logger.Debug("already visited", "address", r.Address.String())
	}
}

// nopObserver discards events.
type nopObserver struct{}

func (nopObserver) Observe(Event) {}
