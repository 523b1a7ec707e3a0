// Package report writes match reports in the supported output formats.
//
// This package contains writers for different output formats:
//   - TextWriter: the plain "Data:" listing that accompanies a corpus
//   - MarkdownWriter: a shareable document with summary tables
//   - JSONWriter: structured output for tool integration
//
// Design decision: Report data lives in the model package and every writer
// renders the same *model.MatchReport. The in-memory report always carries
// an entry per reference; each writer decides whether to show references
// that never matched. The text and Markdown writers hide them unless asked,
// the JSON writer always keeps them.
package report
