// Package pipeline runs onionleak sessions as a sequence of steps.
//
// A crawl session verifies Tor connectivity, fetches every target while a
// consumer goroutine writes page text to the corpus, and records the run.
// A match session scans a corpus for reference values and writes the
// report. Each stage is a Step that receives the session and fills in its
// part.
//
// Design decision: We use a pipeline pattern instead of direct function calls
// because:
// 1. It gives every command the same error handling and logging
// 2. A failed connectivity check stops the run before any fetch is attempted
// 3. Final steps (recording history) run even when an earlier step fails
// 4. It supports cancellation via context between steps
//
// Several corpora can be matched concurrently with a BatchProcessor, which
// bounds parallelism using errgroup.
package pipeline
