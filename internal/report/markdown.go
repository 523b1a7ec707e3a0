package report

import (
	"io"
	"strconv"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/nao1215/onionleak/internal/model"
)

// maxCellLength caps how much of a corpus line is shown in a table cell.
const maxCellLength = 120

// MarkdownWriter outputs reports in Markdown format.
// This format is designed for documentation and sharing.
//
// Design decision: We use the nao1215/markdown library for fluent markdown
// generation which provides:
// 1. Type-safe markdown generation
// 2. Support for tables, lists, and code blocks
// 3. GitHub-flavored markdown alerts
type MarkdownWriter struct {
	baseWriter
}

// MarkdownWriterOption configures a MarkdownWriter.
type MarkdownWriterOption func(*MarkdownWriter)

// WithMarkdownShowEmpty configures the writer to list references that
// never matched.
func WithMarkdownShowEmpty(show bool) MarkdownWriterOption {
	return func(w *MarkdownWriter) {
		w.showEmpty = show
	}
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer, opts ...MarkdownWriterOption) *MarkdownWriter {
	w := &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write outputs the report in Markdown format.
func (w *MarkdownWriter) Write(report *model.MatchReport) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, report)
	w.writeSummary(md, report)
	w.writeMatches(md, report)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// writeHeader writes the report header with run information.
func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, report *model.MatchReport) {
	md.H1("OnionLeak Match Report")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Generated", report.GeneratedAt.Format("2006-01-02 15:04:05 MST")},
			{"Lines Scanned", strconv.Itoa(report.LinesScanned)},
			{"References", strconv.Itoa(len(report.Entries))},
			{"Elapsed", report.Elapsed.String()},
		},
	})
	md.PlainText("")
}

// writeSummary writes the per-reference counts, a chart, and an alert.
func (w *MarkdownWriter) writeSummary(md *markdown.Markdown, report *model.MatchReport) {
	md.H2("Summary")
	md.PlainText("")

	matched := report.MatchedCount()
	md.Table(markdown.TableSet{
		Header: []string{"Result", "Count"},
		Rows: [][]string{
			{"References found", strconv.Itoa(matched)},
			{"References not found", strconv.Itoa(len(report.Entries) - matched)},
			{"**Matching lines**", "**" + strconv.Itoa(report.TotalLines()) + "**"},
		},
	})
	md.PlainText("")

	if matched > 0 {
		w.writePieChart(md, report)
	}
	w.writeAlert(md, report)
}

// writePieChart writes a mermaid pie chart of matching lines per reference.
func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, report *model.MatchReport) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Matching Lines per Reference"),
		piechart.WithShowData(true),
	)

	for _, e := range report.Matched() {
		chart.LabelAndIntValue(e.Reference, uint64(len(e.Lines)))
	}

	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

// writeAlert writes an alert that reflects whether anything leaked.
func (w *MarkdownWriter) writeAlert(md *markdown.Markdown, report *model.MatchReport) {
	switch matched := report.MatchedCount(); {
	case matched > 0:
		md.Cautionf(
			"%d of %d reference value(s) appear in the crawled content.",
			matched, len(report.Entries),
		)
	case report.LinesScanned == 0:
		md.Note("The corpus was empty. Nothing was scanned.")
	default:
		md.Tip("None of the reference values appear in the crawled content.")
	}
	md.PlainText("")
}

// writeMatches writes one section per visible reference.
func (w *MarkdownWriter) writeMatches(md *markdown.Markdown, report *model.MatchReport) {
	md.H2("Matches")
	md.PlainText("")

	entries := w.visibleEntries(report)
	if len(entries) == 0 {
		md.PlainText("No reference values were found.")
		md.PlainText("")
		return
	}

	for _, e := range entries {
		md.H3("`" + e.Reference + "`")
		md.PlainText("")
		if !e.Matched() {
			md.PlainText("Not found.")
			md.PlainText("")
			continue
		}

		rows := make([][]string, len(e.Lines))
		for i, line := range e.Lines {
			rows[i] = []string{strconv.Itoa(i + 1), truncateString(line, maxCellLength)}
		}
		md.Table(markdown.TableSet{
			Header: []string{"#", "Line"},
			Rows:   rows,
		})
		md.PlainText("")
	}
}

// writeFooter writes the report footer.
func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [onionleak](https://github.com/nao1215/onionleak)*")
}

// truncateString truncates a string to maxLen runes with ellipsis.
func truncateString(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}
