package database

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nao1215/onionleak/internal/model"
)

// setupTestDB creates a temporary database for testing.
func setupTestDB(t *testing.T) *Store {
	t.Helper()

	db, err := Open(t.TempDir(), DefaultOptions())
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	return db
}

// TestOpen tests database opening and creation.
func TestOpen(t *testing.T) {
	t.Parallel()

	t.Run("creates database in new directory", func(t *testing.T) {
		t.Parallel()

		dbDir := filepath.Join(t.TempDir(), "newdir", "subdir")
		db, err := Open(dbDir, DefaultOptions())
		if err != nil {
			t.Fatalf("failed to open database: %v", err)
		}
		defer db.Close()

		if _, err := os.Stat(filepath.Join(dbDir, FileName)); os.IsNotExist(err) {
			t.Error("database file was not created")
		}
		if db.Path() != filepath.Join(dbDir, FileName) {
			t.Errorf("Path() = %q", db.Path())
		}
	})

	t.Run("CreateIfNotExists=false returns error when database does not exist", func(t *testing.T) {
		t.Parallel()

		dbDir := filepath.Join(t.TempDir(), "nonexistent-db")
		_, err := Open(dbDir, Options{CreateIfNotExists: false, EnableWAL: true})
		if err == nil {
			t.Fatal("expected error when database does not exist")
		}
		if !strings.Contains(err.Error(), "database not found") {
			t.Errorf("expected informative error, got %q", err.Error())
		}
		if _, statErr := os.Stat(dbDir); !os.IsNotExist(statErr) {
			t.Error("database directory should not have been created")
		}
	})

	t.Run("CreateIfNotExists=false opens existing database", func(t *testing.T) {
		t.Parallel()

		dbDir := filepath.Join(t.TempDir(), "existing-db")
		db1, err := Open(dbDir, DefaultOptions())
		if err != nil {
			t.Fatalf("failed to create database: %v", err)
		}
		_ = db1.Close()

		db2, err := Open(dbDir, Options{CreateIfNotExists: false, EnableWAL: true})
		if err != nil {
			t.Fatalf("failed to open existing database: %v", err)
		}
		_ = db2.Close()
	})
}

func TestDefaultOptions(t *testing.T) {
	t.Parallel()

	opts := DefaultOptions()
	if !opts.CreateIfNotExists || !opts.EnableWAL {
		t.Errorf("DefaultOptions() = %+v", opts)
	}
}

func newCrawlSession() *model.Session {
	s := model.NewSession(model.SessionCrawl)
	s.Targets = []string{"http://a.onion", "http://b.onion"}
	s.Connected = true
	s.Results = append(s.Results, model.FetchResult{
		Address:    model.NewAddress("http://a.onion"),
		Status:     model.StatusSuccess,
		StatusCode: 200,
		Title:      "Market",
		Links:      []model.Link{model.NewLink("http://c.onion"), model.NewLink("https://example.com")},
		FetchedAt:  time.Now(),
		Elapsed:    1500 * time.Millisecond,
	})
	s.Results = append(s.Results, model.FetchResult{
		Address:      model.NewAddress("http://b.onion"),
		Status:       model.StatusNetworkError,
		ErrorMessage: "connection refused",
		FetchedAt:    time.Now(),
	})
	s.FinishedAt = time.Now()
	return s
}

func TestSessionsAndFetches(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db := setupTestDB(t)
	session := newCrawlSession()

	if err := db.RecordSession(ctx, session, ""); err != nil {
		t.Fatalf("RecordSession() error = %v", err)
	}

	t.Run("fetches are listed in order", func(t *testing.T) {
		records, err := db.ListFetches(ctx, session.ID)
		if err != nil {
			t.Fatalf("ListFetches() error = %v", err)
		}
		if len(records) != 2 {
			t.Fatalf("expected 2 records, got %d", len(records))
		}

		first := records[0]
		if first.Address != "http://a.onion" || first.Status != "success" || first.StatusCode != 200 {
			t.Errorf("unexpected first record: %+v", first)
		}
		if first.Title != "Market" || first.LinkCount != 2 || first.OverlayLinks != 1 {
			t.Errorf("unexpected page data: %+v", first)
		}
		if first.Elapsed != 1500*time.Millisecond {
			t.Errorf("Elapsed = %v", first.Elapsed)
		}
		if first.FetchedAt.IsZero() {
			t.Error("FetchedAt not restored")
		}
		if records[1].Error != "connection refused" {
			t.Errorf("Error = %q", records[1].Error)
		}
	})

	t.Run("session is upserted", func(t *testing.T) {
		session.Cancelled = true
		session.ErrorMessage = "interrupted"
		if err := db.RecordSession(ctx, session, ""); err != nil {
			t.Fatalf("RecordSession() error = %v", err)
		}

		records, err := db.ListFetches(ctx, session.ID)
		if err != nil {
			t.Fatalf("ListFetches() error = %v", err)
		}
		if len(records) != 2 {
			t.Errorf("re-recording duplicated fetches: got %d records", len(records))
		}

		sessions, err := db.ListSessions(ctx, 0)
		if err != nil {
			t.Fatalf("ListSessions() error = %v", err)
		}
		if len(sessions) != 1 {
			t.Fatalf("expected 1 session, got %d", len(sessions))
		}
		got := sessions[0]
		if got.ID != session.ID || got.Kind != model.SessionCrawl {
			t.Errorf("unexpected session: %+v", got)
		}
		if got.Targets != 2 || got.Succeeded != 1 || !got.Connected || !got.Cancelled {
			t.Errorf("unexpected counters: %+v", got)
		}
		if got.Error != "interrupted" {
			t.Errorf("Error = %q", got.Error)
		}
	})

	t.Run("recent fetch lookup", func(t *testing.T) {
		recent, err := db.HasRecentFetch(ctx, "http://a.onion", time.Hour)
		if err != nil {
			t.Fatalf("HasRecentFetch() error = %v", err)
		}
		if !recent {
			t.Error("expected successful fetch to be recent")
		}

		recent, err = db.HasRecentFetch(ctx, "http://b.onion", time.Hour)
		if err != nil {
			t.Fatalf("HasRecentFetch() error = %v", err)
		}
		if recent {
			t.Error("failed fetch should not count as recent")
		}
	})
}

func TestMatchReports(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db := setupTestDB(t)

	session := model.NewSession(model.SessionMatch)
	report := model.NewMatchReport([]model.MatchEntry{
		{Reference: "alice@mail.com", Lines: []string{"Alice@Mail.com called."}},
		{Reference: "555-1234"},
	}, 3, time.Second)
	session.Report = report
	session.FinishedAt = time.Now()

	if err := db.RecordSession(ctx, session, "corpus.txt"); err != nil {
		t.Fatalf("RecordSession() error = %v", err)
	}

	t.Run("report round trip keeps empty entries", func(t *testing.T) {
		got, err := db.GetMatchReport(ctx, session.ID)
		if err != nil {
			t.Fatalf("GetMatchReport() error = %v", err)
		}
		if got == nil {
			t.Fatal("expected report, got nil")
		}
		if len(got.Entries) != 2 || got.MatchedCount() != 1 {
			t.Errorf("unexpected report: %+v", got)
		}
		if got.LinesScanned != 3 {
			t.Errorf("LinesScanned = %d", got.LinesScanned)
		}
	})

	t.Run("missing report returns nil", func(t *testing.T) {
		got, err := db.GetMatchReport(ctx, "no-such-session")
		if err != nil || got != nil {
			t.Errorf("GetMatchReport() = %v, %v, expected nil, nil", got, err)
		}
	})

	t.Run("summary carries matched count", func(t *testing.T) {
		sessions, err := db.ListSessions(ctx, 10)
		if err != nil {
			t.Fatalf("ListSessions() error = %v", err)
		}
		if len(sessions) != 1 || sessions[0].Matched != 1 {
			t.Errorf("unexpected sessions: %+v", sessions)
		}
	})
}

func TestListSessionsOrderAndLimit(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db := setupTestDB(t)

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	ids := make([]string, 3)
	for i := range ids {
		s := model.NewSession(model.SessionCrawl)
		s.StartedAt = base.Add(time.Duration(i) * time.Hour)
		ids[i] = s.ID
		if err := db.RecordSession(ctx, s, ""); err != nil {
			t.Fatal(err)
		}
	}

	sessions, err := db.ListSessions(ctx, 2)
	if err != nil {
		t.Fatalf("ListSessions() error = %v", err)
	}
	if len(sessions) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(sessions))
	}
	if sessions[0].ID != ids[2] || sessions[1].ID != ids[1] {
		t.Error("sessions not ordered newest first")
	}
	if !sessions[0].StartedAt.Equal(base.Add(2 * time.Hour)) {
		t.Errorf("StartedAt = %v", sessions[0].StartedAt)
	}
	if !sessions[0].FinishedAt.IsZero() {
		t.Error("unfinished session should have zero FinishedAt")
	}
}

func TestRecordSessionIsAtomic(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db := setupTestDB(t)

	// The report insert fails after the session and fetch rows are written.
	trigger := `CREATE TRIGGER reject_reports BEFORE INSERT ON match_reports
	BEGIN SELECT RAISE(ABORT, 'reports disabled'); END`
	if _, err := db.db.ExecContext(ctx, trigger); err != nil {
		t.Fatalf("failed to create trigger: %v", err)
	}

	session := newCrawlSession()
	session.Report = model.NewMatchReport([]model.MatchEntry{{Reference: "x"}}, 0, 0)

	if err := db.RecordSession(ctx, session, "corpus.txt"); err == nil {
		t.Fatal("expected error when the report cannot be stored")
	}

	sessions, err := db.ListSessions(ctx, 0)
	if err != nil {
		t.Fatalf("ListSessions() error = %v", err)
	}
	if len(sessions) != 0 {
		t.Errorf("session row survived a failed record: %+v", sessions)
	}
	records, err := db.ListFetches(ctx, session.ID)
	if err != nil {
		t.Fatalf("ListFetches() error = %v", err)
	}
	if len(records) != 0 {
		t.Errorf("fetch rows survived a failed record: %+v", records)
	}
}

func TestClosedStore(t *testing.T) {
	t.Parallel()

	db, err := Open(t.TempDir(), DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	_ = db.Close()

	err = db.RecordSession(context.Background(), model.NewSession(model.SessionCrawl), "")
	if err == nil {
		t.Fatal("expected error on closed store")
	}
	if errors.Unwrap(err) == nil {
		t.Error("expected wrapped error")
	}
}

func TestParseTimestamp(t *testing.T) {
	t.Parallel()

	want := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
	tests := []struct {
		name  string
		input string
		zero  bool
	}{
		{"stored layout", formatTimestamp(want), false},
		{"sqlite default", "2026-03-04 05:06:07", false},
		{"rfc3339", "2026-03-04T05:06:07Z", false},
		{"empty", "", true},
		{"garbage", "yesterday", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := parseTimestamp(tt.input)
			if tt.zero {
				if !got.IsZero() {
					t.Errorf("expected zero time, got %v", got)
				}
				return
			}
			if !got.Equal(want) {
				t.Errorf("parseTimestamp(%q) = %v, expected %v", tt.input, got, want)
			}
		})
	}
}
