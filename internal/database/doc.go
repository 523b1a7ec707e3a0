// Package database provides SQLite-based run history for onionleak.
//
// This package implements the Store, which keeps:
//   - One row per crawl or match session
//   - One row per fetch attempt of a crawl session
//   - The complete match report of a match session
//
// Design decision: We use SQLite (via modernc.org/sqlite) because:
// 1. No external dependencies - the database is a single file
// 2. CGO-free implementation allows easy cross-compilation
// 3. WAL mode lets the history command read while a crawl writes
//
// Page text is deliberately not stored here. It lives only in the corpus
// file, which the operator controls and can delete.
package database
