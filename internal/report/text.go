package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/nao1215/onionleak/internal/model"
)

// TextWriter outputs the plain text report:
//
//	Data: <reference>
//	  - <matching line>
//
// One block per reference, in the order the references were supplied.
type TextWriter struct {
	baseWriter

	// header controls the leading summary block.
	header bool
}

// TextWriterOption configures a TextWriter.
type TextWriterOption func(*TextWriter)

// WithShowEmpty configures the writer to list references that never matched.
func WithShowEmpty(show bool) TextWriterOption {
	return func(w *TextWriter) {
		w.showEmpty = show
	}
}

// WithHeader toggles the summary header. It is on by default.
func WithHeader(header bool) TextWriterOption {
	return func(w *TextWriter) {
		w.header = header
	}
}

// NewTextWriter creates a TextWriter that outputs to the given writer.
func NewTextWriter(output io.Writer, opts ...TextWriterOption) *TextWriter {
	w := &TextWriter{
		baseWriter: newBaseWriter(output),
		header:     true,
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Write outputs the report in text form.
func (w *TextWriter) Write(report *model.MatchReport) (int, error) {
	var sb strings.Builder

	if w.header {
		w.writeHeader(&sb, report)
	}

	for _, entry := range w.visibleEntries(report) {
		fmt.Fprintf(&sb, "Data: %s\n", entry.Reference)
		for _, line := range entry.Lines {
			fmt.Fprintf(&sb, "  - %s\n", line)
		}
	}

	return io.WriteString(w.output, sb.String())
}

// writeHeader writes the run summary.
func (w *TextWriter) writeHeader(sb *strings.Builder, report *model.MatchReport) {
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("                        ONIONLEAK MATCH REPORT\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n\n")

	fmt.Fprintf(sb, "Generated:       %s\n", report.GeneratedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(sb, "Lines Scanned:   %d\n", report.LinesScanned)
	fmt.Fprintf(sb, "References:      %d\n", len(report.Entries))
	fmt.Fprintf(sb, "Matched:         %d\n", report.MatchedCount())
	fmt.Fprintf(sb, "Matching Lines:  %d\n", report.TotalLines())
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")
}
