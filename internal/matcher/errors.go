package matcher

import (
	"errors"
	"fmt"
)

var (
	// ErrNoReferences is returned when no reference list is supplied.
	ErrNoReferences = errors.New("reference list is missing")

	// ErrNoCorpus is returned when no corpus is supplied.
	ErrNoCorpus = errors.New("corpus is missing")
)

// ConfigurationError means a match run could not start because an input
// is missing or unreadable. No scanning has happened.
type ConfigurationError struct {
	// Input is "references" or "corpus".
	Input string

	// Path is the file involved, if any.
	Path string

	Err error
}

// Error implements the error interface.
func (e *ConfigurationError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s %s: %v", e.Input, e.Path, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Input, e.Err)
}

// Unwrap returns the underlying cause.
func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// CorpusReadError means the corpus could not be read to the end, either
// because of an I/O failure or invalid UTF-8. No report is produced, since
// a partial scan could hide a leak.
type CorpusReadError struct {
	// Line is the 1-based line number at which reading failed.
	Line int

	Err error
}

// Error implements the error interface.
func (e *CorpusReadError) Error() string {
	return fmt.Sprintf("corpus read failed at line %d: %v", e.Line, e.Err)
}

// Unwrap returns the underlying cause.
func (e *CorpusReadError) Unwrap() error {
	return e.Err
}
