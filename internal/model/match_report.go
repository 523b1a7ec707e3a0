package model

import "time"

// MatchEntry holds every corpus line that contained one reference value.
type MatchEntry struct {
	// Reference is the operator-supplied value exactly as given.
	Reference string `json:"reference"`

	// Lines are the matching corpus lines in corpus order, trimmed but
	// otherwise unmodified. A line that appears twice in the corpus appears
	// twice here.
	Lines []string `json:"lines"`
}

// Matched reports whether at least one line matched.
func (e MatchEntry) Matched() bool {
	return len(e.Lines) > 0
}

// MatchReport is the result of one matching run.
//
// Entries holds exactly one entry per supplied reference, in the order the
// references were supplied, including references that never matched. Writers
// that want the compact view use Matched() instead.
type MatchReport struct {
	// Entries is the complete per-reference result.
	Entries []MatchEntry `json:"entries"`

	// LinesScanned is the number of non-empty corpus lines examined.
	LinesScanned int `json:"lines_scanned"`

	// GeneratedAt is when the scan finished.
	GeneratedAt time.Time `json:"generated_at"`

	// Elapsed is the scan duration.
	Elapsed time.Duration `json:"elapsed"`
}

// NewMatchReport builds a report from entries that are already complete.
// The slice is copied so later changes by the caller do not leak in.
func NewMatchReport(entries []MatchEntry, linesScanned int, elapsed time.Duration) *MatchReport {
	copied := make([]MatchEntry, len(entries))
	for i, e := range entries {
		lines := make([]string, len(e.Lines))
		copy(lines, e.Lines)
		copied[i] = MatchEntry{Reference: e.Reference, Lines: lines}
	}
	return &MatchReport{
		Entries:      copied,
		LinesScanned: linesScanned,
		GeneratedAt:  time.Now(),
		Elapsed:      elapsed,
	}
}

// Lines returns the matched lines for a reference, or nil and false when the
// reference was not part of the run.
func (r *MatchReport) Lines(reference string) ([]string, bool) {
	for _, e := range r.Entries {
		if e.Reference == reference {
			return e.Lines, true
		}
	}
	return nil, false
}

// References returns the references in supply order.
func (r *MatchReport) References() []string {
	refs := make([]string, len(r.Entries))
	for i, e := range r.Entries {
		refs[i] = e.Reference
	}
	return refs
}

// Matched returns only the entries with at least one matching line.
func (r *MatchReport) Matched() []MatchEntry {
	out := make([]MatchEntry, 0, len(r.Entries))
	for _, e := range r.Entries {
		if e.Matched() {
			out = append(out, e)
		}
	}
	return out
}

// MatchedCount returns the number of references with at least one match.
func (r *MatchReport) MatchedCount() int {
	n := 0
	for _, e := range r.Entries {
		if e.Matched() {
			n++
		}
	}
	return n
}

// TotalLines returns the number of matched lines over all references.
func (r *MatchReport) TotalLines() int {
	n := 0
	for _, e := range r.Entries {
		n += len(e.Lines)
	}
	return n
}

// HasLeaks reports whether any reference was found.
func (r *MatchReport) HasLeaks() bool {
	return r.MatchedCount() > 0
}
