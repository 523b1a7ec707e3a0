package crawler

import (
	"errors"
	"fmt"

	"github.com/nao1215/onionleak/internal/model"
)

var (
	// ErrNoTargets is returned by FetchAll for an empty address list.
	ErrNoTargets = errors.New("no target addresses given")

	// ErrInvalidTarget is returned by FetchAll when an address fails
	// validation. No address is fetched in that case.
	ErrInvalidTarget = errors.New("invalid target address")
)

// FetchError describes why one address could not be fetched.
// It is recorded in the FetchResult and never returned by the engine.
type FetchError struct {
	// Address is the address that was requested.
	Address string

	// Status is either model.StatusHTTPError or model.StatusNetworkError.
	Status model.FetchStatus

	// StatusCode is the HTTP status for model.StatusHTTPError.
	StatusCode int

	// Err is the transport error for model.StatusNetworkError.
	Err error
}

// Error implements the error interface.
func (e *FetchError) Error() string {
	if e.Status == model.StatusHTTPError {
		return fmt.Sprintf("fetch %s: HTTP %d", e.Address, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %v", e.Address, e.Err)
}

// Unwrap returns the underlying transport error, if any.
func (e *FetchError) Unwrap() error {
	return e.Err
}
