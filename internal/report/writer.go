package report

import (
	"io"

	"github.com/nao1215/onionleak/internal/model"
)

// Writer defines the interface for report output.
//
// Design decision: We use an interface so the match command can write the
// same report to a file and to stdout, in several formats, with one call.
type Writer interface {
	// Write outputs the report to the configured destination.
	// Returns the number of bytes written and any error encountered.
	Write(report *model.MatchReport) (int, error)
}

// MultiWriter writes to multiple Writers in order.
//
// Design decision: io.MultiWriter does not fit because our Writer interface
// writes reports, not raw bytes, and each destination may use its own format.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer that writes to all provided Writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// Write outputs the report to all configured Writers.
// Returns the total bytes written across all writers.
// Stops on first error encountered.
func (m *MultiWriter) Write(report *model.MatchReport) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.Write(report)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// baseWriter provides common functionality for report writers.
type baseWriter struct {
	output io.Writer

	// showEmpty includes references without matches.
	showEmpty bool
}

// newBaseWriter creates a baseWriter with the given output destination.
func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

// visibleEntries returns the entries this writer should render.
func (b baseWriter) visibleEntries(report *model.MatchReport) []model.MatchEntry {
	if b.showEmpty {
		return report.Entries
	}
	return report.Matched()
}
