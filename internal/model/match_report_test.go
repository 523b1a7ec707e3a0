package model

import (
	"testing"
	"time"
)

func TestMatchReport(t *testing.T) {
	t.Parallel()

	entries := []MatchEntry{
		{Reference: "alice@mail.com", Lines: []string{"Alice@Mail.com called."}},
		{Reference: "unused", Lines: nil},
		{Reference: "555-1234", Lines: []string{"Call 555-1234 today.", "Call 555-1234 today."}},
	}

	report := NewMatchReport(entries, 3, time.Millisecond)

	t.Run("keeps every reference in order", func(t *testing.T) {
		t.Parallel()

		refs := report.References()
		want := []string{"alice@mail.com", "unused", "555-1234"}
		if len(refs) != len(want) {
			t.Fatalf("expected %d references, got %d", len(want), len(refs))
		}
		for i := range want {
			if refs[i] != want[i] {
				t.Errorf("reference %d = %q, want %q", i, refs[i], want[i])
			}
		}
	})

	t.Run("zero match reference is present", func(t *testing.T) {
		t.Parallel()

		lines, ok := report.Lines("unused")
		if !ok {
			t.Fatal("expected entry for unused reference")
		}
		if len(lines) != 0 {
			t.Errorf("expected no lines, got %v", lines)
		}
	})

	t.Run("unknown reference", func(t *testing.T) {
		t.Parallel()

		if _, ok := report.Lines("nobody"); ok {
			t.Error("expected no entry for unknown reference")
		}
	})

	t.Run("counts", func(t *testing.T) {
		t.Parallel()

		if report.MatchedCount() != 2 {
			t.Errorf("MatchedCount() = %d, want 2", report.MatchedCount())
		}
		if report.TotalLines() != 3 {
			t.Errorf("TotalLines() = %d, want 3", report.TotalLines())
		}
		if !report.HasLeaks() {
			t.Error("expected HasLeaks() to be true")
		}
		if len(report.Matched()) != 2 {
			t.Errorf("Matched() returned %d entries, want 2", len(report.Matched()))
		}
		if report.LinesScanned != 3 {
			t.Errorf("LinesScanned = %d, want 3", report.LinesScanned)
		}
	})

	t.Run("input slice is copied", func(t *testing.T) {
		t.Parallel()

		src := []MatchEntry{{Reference: "x", Lines: []string{"a x"}}}
		r := NewMatchReport(src, 1, 0)
		src[0].Lines[0] = "changed"
		src[0].Reference = "y"

		lines, ok := r.Lines("x")
		if !ok || lines[0] != "a x" {
			t.Errorf("report changed after caller mutation: %v", r.Entries)
		}
	})
}

func TestMatchReportEmpty(t *testing.T) {
	t.Parallel()

	report := NewMatchReport([]MatchEntry{{Reference: "a"}}, 0, 0)
	if report.HasLeaks() {
		t.Error("expected no leaks")
	}
	if report.MatchedCount() != 0 {
		t.Errorf("MatchedCount() = %d, want 0", report.MatchedCount())
	}
}

func TestSession(t *testing.T) {
	t.Parallel()

	s := NewSession(SessionCrawl)
	if s.ID == "" {
		t.Fatal("expected session ID")
	}
	if other := NewSession(SessionCrawl); other.ID == s.ID {
		t.Error("expected unique session IDs")
	}

	s.Results = []FetchResult{
		{Status: StatusSuccess},
		{Status: StatusHTTPError, StatusCode: 404},
		{Status: StatusSuccess},
	}

	if n := s.CountByStatus(StatusSuccess); n != 2 {
		t.Errorf("CountByStatus(success) = %d, want 2", n)
	}
	if n := s.CountByStatus(StatusSkipped); n != 0 {
		t.Errorf("CountByStatus(skipped) = %d, want 0", n)
	}
}
