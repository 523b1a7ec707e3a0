package tor

import (
	"encoding/base32"
	"errors"
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/crypto/sha3"
)

// Onion address layout. A v3 host label is the base32 encoding of
// pubkey (32 bytes) || checksum (2 bytes) || version (1 byte).
const (
	onionV3Version   = 0x03
	onionV3Decoded   = 35
	onionPubkeySize  = 32
	onionSuffix      = ".onion"
	onionChecksumLen = 2
)

var (
	onionV3Pattern = regexp.MustCompile(`^[a-z2-7]{56}\.onion$`)
	onionV2Pattern = regexp.MustCompile(`^[a-z2-7]{16}\.onion$`)
	checksumPrefix = []byte(".onion checksum")
)

// Target validation errors.
var (
	// ErrInvalidOnionAddress is returned for a .onion host that is not a
	// well-formed v3 address with a correct checksum.
	ErrInvalidOnionAddress = errors.New("invalid onion address")

	// ErrV2AddressDeprecated is returned for a 16-character v2 host.
	// The Tor network stopped serving v2 services in October 2021.
	ErrV2AddressDeprecated = errors.New("v2 onion addresses are deprecated and no longer functional")

	// ErrUnsupportedTarget is returned for a target that is not an absolute
	// http or https URL.
	ErrUnsupportedTarget = errors.New("target must be an absolute http or https URL")
)

// IsValidV3Address reports whether host is a v3 onion host name with a valid
// version byte and checksum. Case is ignored.
func IsValidV3Address(host string) bool {
	host = strings.ToLower(host)
	if !onionV3Pattern.MatchString(host) {
		return false
	}

	decoded, err := base32.StdEncoding.DecodeString(strings.ToUpper(strings.TrimSuffix(host, onionSuffix)))
	if err != nil || len(decoded) != onionV3Decoded {
		return false
	}

	pubkey := decoded[:onionPubkeySize]
	checksum := decoded[onionPubkeySize : onionPubkeySize+onionChecksumLen]
	if decoded[onionV3Decoded-1] != onionV3Version {
		return false
	}

	want := computeV3Checksum(pubkey)
	return checksum[0] == want[0] && checksum[1] == want[1]
}

// computeV3Checksum returns SHA3-256(".onion checksum" || pubkey || version)[:2].
func computeV3Checksum(pubkey []byte) []byte {
	data := make([]byte, 0, len(checksumPrefix)+len(pubkey)+1)
	data = append(data, checksumPrefix...)
	data = append(data, pubkey...)
	data = append(data, onionV3Version)
	sum := sha3.Sum256(data)
	return sum[:onionChecksumLen]
}

// IsV2Address reports whether host has the shape of a v2 onion host.
func IsV2Address(host string) bool {
	return onionV2Pattern.MatchString(strings.ToLower(host))
}

// ValidateTarget checks that raw is an absolute http(s) URL and, when its
// host ends in .onion, that the host is a valid v3 address. Clearnet hosts
// pass without further checks; they are still fetched through Tor.
func ValidateTarget(raw string) error {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return ErrUnsupportedTarget
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ErrUnsupportedTarget
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return ErrUnsupportedTarget
	}
	if !strings.HasSuffix(host, onionSuffix) {
		return nil
	}

	// Subdomains of an onion service are routed to the service itself.
	labels := strings.Split(strings.TrimSuffix(host, onionSuffix), ".")
	service := labels[len(labels)-1] + onionSuffix
	if IsValidV3Address(service) {
		return nil
	}
	if IsV2Address(service) {
		return ErrV2AddressDeprecated
	}
	return ErrInvalidOnionAddress
}
