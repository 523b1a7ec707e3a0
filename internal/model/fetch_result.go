package model

import "time"

// NoTitle is the title recorded for pages without a <title> element.
const NoTitle = "No title"

// FetchStatus is the outcome of one fetch attempt.
type FetchStatus int

const (
	// StatusSuccess means the server answered 200 and the page was parsed.
	StatusSuccess FetchStatus = iota

	// StatusHTTPError means the server answered with a status other than 200.
	StatusHTTPError

	// StatusNetworkError means the request failed below HTTP
	// (proxy refused, circuit timeout, TLS failure, truncated body).
	StatusNetworkError

	// StatusSkipped means the address was already fetched in this session
	// and no request was made.
	StatusSkipped
)

// String returns the status name.
func (s FetchStatus) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusHTTPError:
		return "http_error"
	case StatusNetworkError:
		return "network_error"
	case StatusSkipped:
		return "skipped"
	default:
		return unknownStr
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s FetchStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// FetchResult records a single fetch attempt. It is created once by the
// fetch engine and is not modified afterwards; consumers (logger, corpus,
// database) only read it.
type FetchResult struct {
	// Address is the target as supplied by the operator.
	Address Address `json:"address"`

	// Status is the outcome classification.
	Status FetchStatus `json:"status"`

	// StatusCode is the HTTP status code, zero unless a response was received.
	StatusCode int `json:"status_code,omitempty"`

	// Title is the page title, NoTitle when the page has none.
	// Empty unless Status is StatusSuccess.
	Title string `json:"title,omitempty"`

	// Links are the anchors found on the page in document order.
	Links []Link `json:"links,omitempty"`

	// Body is the decoded response body. Empty unless Status is StatusSuccess.
	Body string `json:"-"`

	// Text is Body with markup removed, one block element per line.
	Text string `json:"-"`

	// Err is the cause for StatusHTTPError and StatusNetworkError.
	Err error `json:"-"`

	// ErrorMessage mirrors Err for serialization.
	ErrorMessage string `json:"error,omitempty"`

	// FetchedAt is when the request was issued.
	FetchedAt time.Time `json:"fetched_at"`

	// Elapsed is the round-trip time including body read.
	Elapsed time.Duration `json:"elapsed"`
}

// Succeeded reports whether the page was retrieved.
func (r FetchResult) Succeeded() bool {
	return r.Status == StatusSuccess
}

// OverlayLinks returns the links classified as hidden-service addresses.
func (r FetchResult) OverlayLinks() []Link {
	return r.linksOf(ClassOverlay)
}

// ClearnetLinks returns the links that are not hidden-service addresses.
func (r FetchResult) ClearnetLinks() []Link {
	return r.linksOf(ClassClearnet)
}

func (r FetchResult) linksOf(class Classification) []Link {
	out := make([]Link, 0, len(r.Links))
	for _, l := range r.Links {
		if l.Class == class {
			out = append(out, l)
		}
	}
	return out
}
