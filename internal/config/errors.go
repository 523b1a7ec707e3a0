package config

import "errors"

// Configuration validation errors.
// These errors are returned by Config.Validate() and provide specific
// information about what is wrong with the configuration.
//
// Design decision: We use package-level sentinel errors rather than
// creating new error instances in Validate(). This allows callers to use
// errors.Is() for programmatic error handling while still providing
// human-readable messages.
var (
	// ErrNoTarget is returned when no target address or list file is specified.
	ErrNoTarget = errors.New("no target specified: provide a URL or use --list")

	// ErrInvalidTimeout is returned when the timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidCrawlDelay is returned when the crawl delay is negative.
	// A negative delay is invalid; use 0 for no delay between requests.
	ErrInvalidCrawlDelay = errors.New("invalid crawl delay: must be non-negative")

	// ErrInvalidMaxBodySize is returned when the max body size is negative.
	// A negative body size is invalid; use 0 to use the default limit.
	ErrInvalidMaxBodySize = errors.New("invalid max body size: must be non-negative")

	// ErrInvalidRotateEvery is returned when the rotation period is negative.
	// Use 0 to disable scheduled rotation.
	ErrInvalidRotateEvery = errors.New("invalid rotation period: must be non-negative")

	// ErrNoCorpus is returned when no corpus file path is configured.
	ErrNoCorpus = errors.New("no corpus file specified")

	// ErrConflictingCredentials is returned when both a control password and
	// a control cookie file are given.
	ErrConflictingCredentials = errors.New("conflicting control credentials: --control-password and --control-cookie cannot be used together")

	// ErrConflictingReportFormats is returned when both --json and --markdown
	// are specified. Only one output format can be used at a time.
	ErrConflictingReportFormats = errors.New("conflicting report formats: --json and --markdown cannot be used together")

	// ErrNoReferences is returned when no reference file is configured.
	ErrNoReferences = errors.New("no reference file specified: use --references")
)
