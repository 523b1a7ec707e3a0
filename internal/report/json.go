package report

import (
	"encoding/json"
	"io"

	"github.com/nao1215/onionleak/internal/model"
)

// JSONWriter outputs reports in JSON format.
// This format is designed for tool integration and programmatic processing.
//
// Every reference is present in the output, including those that never
// matched, so consumers can tell "not found" from "not searched".
type JSONWriter struct {
	baseWriter

	// indent enables pretty-printed JSON output.
	// When false, output is compact (no extra whitespace).
	indent bool

	// indentPrefix is the prefix for each line in indented output.
	indentPrefix string

	// indentString is the indentation string (typically "  " or "\t").
	indentString string

	// version is recorded in the wrapper when set.
	version string
}

// JSONWriterOption configures a JSONWriter.
type JSONWriterOption func(*JSONWriter)

// WithIndent enables pretty-printed JSON output.
// The prefix is prepended to each line, and indent is used for each level.
func WithIndent(prefix, indent string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.indent = true
		w.indentPrefix = prefix
		w.indentString = indent
	}
}

// WithPrettyPrint enables pretty-printed JSON with default indentation.
// This is a convenience wrapper for WithIndent("", "  ").
func WithPrettyPrint() JSONWriterOption {
	return WithIndent("", "  ")
}

// WithVersion records the generating tool version in the output.
func WithVersion(version string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.version = version
	}
}

// NewJSONWriter creates a JSONWriter that outputs to the given writer.
func NewJSONWriter(output io.Writer, opts ...JSONWriterOption) *JSONWriter {
	w := &JSONWriter{
		baseWriter: newBaseWriter(output),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// JSONReport is the document written by JSONWriter.
//
// Design decision: We wrap the report rather than adding fields to
// model.MatchReport because summary counts and the tool version are
// output concerns, not part of the match result.
type JSONReport struct {
	// Version is the onionleak version that generated this report.
	Version string `json:"version,omitempty"`

	// Matched is the number of references found at least once.
	Matched int `json:"matched"`

	// TotalLines is the number of matching lines over all references.
	TotalLines int `json:"total_lines"`

	// Report is the complete match report.
	Report *model.MatchReport `json:"report"`
}

// Write outputs the full report in JSON format.
func (w *JSONWriter) Write(report *model.MatchReport) (int, error) {
	return w.writeJSON(&JSONReport{
		Version:    w.version,
		Matched:    report.MatchedCount(),
		TotalLines: report.TotalLines(),
		Report:     report,
	})
}

// writeJSON marshals the given value to JSON and writes it to the output.
func (w *JSONWriter) writeJSON(v any) (int, error) {
	var data []byte
	var err error

	if w.indent {
		data, err = json.MarshalIndent(v, w.indentPrefix, w.indentString)
	} else {
		data, err = json.Marshal(v)
	}

	if err != nil {
		return 0, err
	}

	// Add trailing newline for better terminal output
	data = append(data, '\n')

	return w.output.Write(data)
}
