package deanon

import "regexp"

// cryptoPattern detects one address format.
type cryptoPattern struct {
	kind  string
	regex *regexp.Regexp
}

// CryptoDetector finds cryptocurrency addresses. Transparent blockchains
// let anyone follow payments, so an address can link otherwise separate
// identities.
//
// Design decision: Patterns are kept in a slice, not a map, so a line
// with several addresses yields them in a stable order.
type CryptoDetector struct {
	patterns []cryptoPattern
}

// NewCryptoDetector creates a new CryptoDetector.
func NewCryptoDetector() *CryptoDetector {
	return &CryptoDetector{
		patterns: []cryptoPattern{
			// Bitcoin addresses: legacy 1... or 3..., Bech32 bc1...
			{"bitcoin", regexp.MustCompile(`\b[13][a-km-zA-HJ-NP-Z1-9]{25,34}\b`)},
			{"bitcoin", regexp.MustCompile(`\bbc1[a-z0-9]{39,59}\b`)},

			// Ethereum addresses (0x followed by 40 hex chars)
			{"ethereum", regexp.MustCompile(`\b0x[a-fA-F0-9]{40}\b`)},

			// Monero addresses (95 chars starting with 4, subaddresses with 8)
			{"monero", regexp.MustCompile(`\b[48][0-9AB][1-9A-HJ-NP-Za-km-z]{93}\b`)},

			// Litecoin Bech32
			{"litecoin", regexp.MustCompile(`\bltc1[a-z0-9]{39,59}\b`)},

			// Bitcoin Cash with prefix
			{"bitcoin_cash", regexp.MustCompile(`\bbitcoincash:[qp][a-z0-9]{41}\b`)},

			// Zcash transparent addresses
			{"zcash", regexp.MustCompile(`\bt1[a-zA-Z0-9]{33}\b`)},
		},
	}
}

// Name implements Detector.
func (d *CryptoDetector) Name() string {
	return "cryptocurrency"
}

// Detect implements Detector. Addresses are case-sensitive and kept as
// found.
func (d *CryptoDetector) Detect(line string) []Identifier {
	var ids []Identifier
	for _, p := range d.patterns {
		for _, m := range p.regex.FindAllString(line, -1) {
			ids = append(ids, Identifier{Kind: p.kind, Value: m})
		}
	}
	return ids
}
