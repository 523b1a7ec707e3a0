// Package model defines the core data structures used throughout onionleak.
//
// This package contains the following main types:
//   - Address: An immutable locator classified as onion or clearnet
//   - FetchResult: The outcome of fetching one address
//   - MatchReport: Per-reference lines found in the crawled corpus
//   - Session: The state of one crawl or match run
//
// Design decision: We separate models into their own package to avoid circular
// dependencies. The crawler, matcher, report and database packages all need
// these types, so centralizing them prevents import cycles.
//
// The models are designed to be serializable to JSON for report output and
// database storage.
package model
