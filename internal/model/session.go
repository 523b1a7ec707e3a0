package model

import (
	"time"

	"github.com/google/uuid"
)

// Session is the state threaded through one run of the pipeline.
// A crawl run fills Targets and Results; a match run fills Report.
//
// Design decision: We use a single struct for both run kinds so the
// pipeline, the history database and the CLI summaries deal with one type.
type Session struct {
	// ID uniquely identifies the run. It is stored with every database row
	// the run produces.
	ID string `json:"id"`

	// Kind is "crawl" or "match".
	Kind string `json:"kind"`

	// StartedAt is when the run began.
	StartedAt time.Time `json:"started_at"`

	// FinishedAt is set by the last pipeline step.
	FinishedAt time.Time `json:"finished_at,omitempty"`

	// Targets are the addresses to fetch, in operator order.
	Targets []string `json:"targets,omitempty"`

	// Connected records the outcome of the connectivity check.
	Connected bool `json:"connected"`

	// Results holds one FetchResult per target in target order.
	Results []FetchResult `json:"results,omitempty"`

	// Report is the match report of a match run.
	Report *MatchReport `json:"report,omitempty"`

	// Cancelled is true when the run stopped on context cancellation.
	Cancelled bool `json:"cancelled"`

	// PerformedSteps lists the pipeline steps that ran.
	PerformedSteps []string `json:"performed_steps,omitempty"`

	// Error is the error that stopped the run, if any.
	Error error `json:"-"`

	// ErrorMessage mirrors Error for serialization.
	ErrorMessage string `json:"error,omitempty"`
}

// Session kinds.
const (
	SessionCrawl = "crawl"
	SessionMatch = "match"
)

// NewSession creates a session with a fresh ID.
func NewSession(kind string) *Session {
	return &Session{
		ID:        uuid.NewString(),
		Kind:      kind,
		StartedAt: time.Now(),
	}
}

// CountByStatus returns how many results have the given status.
func (s *Session) CountByStatus(status FetchStatus) int {
	n := 0
	for _, r := range s.Results {
		if r.Status == status {
			n++
		}
	}
	return n
}
