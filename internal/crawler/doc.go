// Package crawler fetches operator-supplied addresses through a Tor
// session and turns each page into a FetchResult.
//
// # Components
//
//   - Engine: sequential fetcher with visited tracking, pacing, per-request
//     timeouts and optional identity rotation
//   - VisitedSet: addresses fetched successfully in one engine's lifetime
//   - ExtractLinks: title and classified anchors from raw markup
//   - CleanText: plain text with one line per block-level element
//   - Observer: receives progress events from the engine
//
// Links are reported but never queued. Only the addresses passed to
// FetchAll are fetched.
//
// # Politeness
//
// After every successful fetch the engine waits the pacing delay (2s by
// default) before it returns, so two fetches never run back to back.
//
// # Usage
//
//	engine := crawler.NewEngine(session, crawler.WithObserver(obs))
//	results, err := engine.FetchAll(ctx, addresses)
package crawler
