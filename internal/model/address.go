package model

import (
	"errors"
	"strings"
)

const (
	// OverlaySuffix is the host suffix of Tor hidden services.
	OverlaySuffix = ".onion"

	// unknownStr is the string representation for unknown enum values.
	unknownStr = "unknown"
)

// Address errors.
var (
	// ErrEmptyAddress is returned when an address is empty or whitespace only.
	ErrEmptyAddress = errors.New("address cannot be empty")
)

// Classification tells whether an address points into the overlay network
// or out to the clearnet.
type Classification int

const (
	// ClassClearnet is any address that does not end with the overlay suffix.
	ClassClearnet Classification = iota

	// ClassOverlay is an address ending with ".onion".
	ClassOverlay
)

// String returns the lowercase name used in logs and reports.
func (c Classification) String() string {
	switch c {
	case ClassOverlay:
		return "onion"
	case ClassClearnet:
		return "clearnet"
	default:
		return unknownStr
	}
}

// MarshalText implements encoding.TextMarshaler so JSON reports carry the name.
func (c Classification) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// Address is an immutable network locator as it was supplied or discovered.
// The raw string is kept verbatim; only the classification is derived.
//
// Design decision: classification is a plain suffix test on the raw string,
// not on a parsed host. Links discovered on pages are stored exactly as they
// appear in the href attribute and relative references are never resolved,
// so a relative link is always clearnet.
type Address struct {
	raw   string
	class Classification
}

// NewAddress wraps a raw locator and classifies it.
func NewAddress(raw string) Address {
	return Address{raw: raw, class: Classify(raw)}
}

// Classify returns ClassOverlay when s ends with the overlay suffix.
// The comparison is case-sensitive, so "HTTP://EXAMPLE.ONION" is clearnet.
func Classify(s string) Classification {
	if strings.HasSuffix(s, OverlaySuffix) {
		return ClassOverlay
	}
	return ClassClearnet
}

// String returns the raw locator.
func (a Address) String() string {
	return a.raw
}

// Class returns the address classification.
func (a Address) Class() Classification {
	return a.class
}

// IsOverlay reports whether the address points to a hidden service.
func (a Address) IsOverlay() bool {
	return a.class == ClassOverlay
}

// IsZero reports whether the address is the zero value.
func (a Address) IsZero() bool {
	return a.raw == ""
}

// MarshalText implements encoding.TextMarshaler.
func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.raw), nil
}

// Link is an outbound reference found on a page.
type Link struct {
	// Address is the href value as written in the markup.
	Address Address `json:"address"`

	// Class is the overlay/clearnet classification of Address.
	Class Classification `json:"class"`
}

// NewLink creates a Link from a raw href value.
func NewLink(href string) Link {
	addr := NewAddress(href)
	return Link{Address: addr, Class: addr.Class()}
}
