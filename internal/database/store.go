package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/onionleak/internal/model"
)

// FileName is the database file created inside the data directory.
const FileName = "onionleak.db"

// Store provides SQLite-based storage for sessions, fetch records, and
// match reports.
type Store struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string
}

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Options configures Store behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging for better concurrent performance.
	// This is recommended for most use cases.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates a Store in dbDir.
// If CreateIfNotExists is false and the database doesn't exist, an error is returned.
func Open(dbDir string, opts Options) (*Store, error) {
	dbPath := filepath.Join(dbDir, FileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s (use CreateIfNotExists option to create)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else {
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// modernc.org/sqlite: mode=rw refuses to create a missing file.
	dsn := dbPath + "?mode=rw"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	s := &Store{
		db:     db,
		dbPath: dbPath,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := s.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return s, nil
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.dbPath
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// createTables creates the database schema if it doesn't exist.
func (s *Store) createTables() error {
	schema := `
	-- Sessions record every crawl or match run
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		started_at TEXT NOT NULL,
		finished_at TEXT,
		targets INTEGER DEFAULT 0,
		succeeded INTEGER DEFAULT 0,
		connected INTEGER DEFAULT 0,
		cancelled INTEGER DEFAULT 0,
		error TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_sessions_started ON sessions(started_at);

	-- Fetches store one row per fetch attempt
	CREATE TABLE IF NOT EXISTS fetches (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		address TEXT NOT NULL,
		status TEXT NOT NULL,
		status_code INTEGER,
		title TEXT,
		link_count INTEGER DEFAULT 0,
		overlay_links INTEGER DEFAULT 0,
		error TEXT,
		fetched_at TEXT NOT NULL,
		elapsed_ms INTEGER DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_fetches_session ON fetches(session_id);
	CREATE INDEX IF NOT EXISTS idx_fetches_address ON fetches(address);

	-- Match reports store complete reports as JSON
	CREATE TABLE IF NOT EXISTS match_reports (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		corpus TEXT,
		references_count INTEGER DEFAULT 0,
		matched INTEGER DEFAULT 0,
		created_at TEXT NOT NULL,
		report_json TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_reports_session ON match_reports(session_id);
	`

	_, err := s.db.ExecContext(context.Background(), schema)
	return err
}

// RecordSession writes the session row, its fetch records, and its match
// report in one transaction, so a failed write leaves no partial run in the
// history. Recording a session again replaces what was stored for it.
// corpus is stored with the report and ignored when there is none.
func (s *Store) RecordSession(ctx context.Context, session *model.Session, corpus string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("could not begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after Commit

	if err := saveSession(ctx, tx, session); err != nil {
		return err
	}
	for _, table := range []string{"fetches", "match_reports"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE session_id = ?", session.ID); err != nil { //nolint:gosec // fixed table names
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}
	for i := range session.Results {
		if _, err := insertFetchResult(ctx, tx, session.ID, &session.Results[i]); err != nil {
			return err
		}
	}
	if session.Report != nil {
		if err := saveMatchReport(ctx, tx, session.ID, corpus, session.Report); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit session %s: %w", session.ID, err)
	}
	return nil
}

// saveSession inserts or updates the session row.
func saveSession(ctx context.Context, ex execer, session *model.Session) error {
	query := `
	INSERT INTO sessions (id, kind, started_at, finished_at, targets, succeeded, connected, cancelled, error)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		finished_at = excluded.finished_at,
		targets = excluded.targets,
		succeeded = excluded.succeeded,
		connected = excluded.connected,
		cancelled = excluded.cancelled,
		error = excluded.error
	`

	_, err := ex.ExecContext(ctx, query,
		session.ID,
		session.Kind,
		formatTimestamp(session.StartedAt),
		formatTimestamp(session.FinishedAt),
		len(session.Targets),
		session.CountByStatus(model.StatusSuccess),
		session.Connected,
		session.Cancelled,
		session.ErrorMessage,
	)
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// FetchRecord represents a stored fetch attempt.
type FetchRecord struct {
	ID           int64
	SessionID    string
	Address      string
	Status       string
	StatusCode   int
	Title        string
	LinkCount    int
	OverlayLinks int
	Error        string
	FetchedAt    time.Time
	Elapsed      time.Duration
}

// insertFetchResult stores one fetch attempt of a session.
func insertFetchResult(ctx context.Context, ex execer, sessionID string, result *model.FetchResult) (int64, error) {
	query := `
	INSERT INTO fetches (session_id, address, status, status_code, title, link_count, overlay_links, error, fetched_at, elapsed_ms)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	res, err := ex.ExecContext(ctx, query,
		sessionID,
		result.Address.String(),
		result.Status.String(),
		result.StatusCode,
		result.Title,
		len(result.Links),
		len(result.OverlayLinks()),
		result.ErrorMessage,
		formatTimestamp(result.FetchedAt),
		result.Elapsed.Milliseconds(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert fetch record: %w", err)
	}

	return res.LastInsertId()
}

// ListFetches returns the fetch records of a session in insertion order.
func (s *Store) ListFetches(ctx context.Context, sessionID string) ([]FetchRecord, error) {
	query := `
	SELECT id, session_id, address, status, status_code, title, link_count, overlay_links, error, fetched_at, elapsed_ms
	FROM fetches
	WHERE session_id = ?
	ORDER BY id
	`

	rows, err := s.db.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query fetches: %w", err)
	}
	defer rows.Close()

	var records []FetchRecord
	for rows.Next() {
		var r FetchRecord
		var title, errMsg sql.NullString
		var fetchedAt string
		var elapsedMS int64

		if err := rows.Scan(
			&r.ID,
			&r.SessionID,
			&r.Address,
			&r.Status,
			&r.StatusCode,
			&title,
			&r.LinkCount,
			&r.OverlayLinks,
			&errMsg,
			&fetchedAt,
			&elapsedMS,
		); err != nil {
			return nil, fmt.Errorf("failed to scan fetch record: %w", err)
		}

		r.Title = title.String
		r.Error = errMsg.String
		r.FetchedAt = parseTimestamp(fetchedAt)
		r.Elapsed = time.Duration(elapsedMS) * time.Millisecond
		records = append(records, r)
	}

	return records, rows.Err()
}

// saveMatchReport stores a match report for a session.
// corpus is the path of the scanned file, recorded for display only.
func saveMatchReport(ctx context.Context, ex execer, sessionID, corpus string, report *model.MatchReport) error {
	reportJSON, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to serialize report: %w", err)
	}

	query := `
	INSERT INTO match_reports (session_id, corpus, references_count, matched, created_at, report_json)
	VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err = ex.ExecContext(ctx, query,
		sessionID,
		corpus,
		len(report.Entries),
		report.MatchedCount(),
		formatTimestamp(report.GeneratedAt),
		string(reportJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to save match report: %w", err)
	}

	return nil
}

// GetMatchReport returns the latest match report of a session, or nil when
// the session has none.
func (s *Store) GetMatchReport(ctx context.Context, sessionID string) (*model.MatchReport, error) {
	query := `
	SELECT report_json FROM match_reports
	WHERE session_id = ?
	ORDER BY id DESC
	LIMIT 1
	`

	var reportJSON string
	err := s.db.QueryRowContext(ctx, query, sessionID).Scan(&reportJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get match report: %w", err)
	}

	var report model.MatchReport
	if err := json.Unmarshal([]byte(reportJSON), &report); err != nil {
		return nil, fmt.Errorf("failed to parse report: %w", err)
	}

	return &report, nil
}

// SessionSummary contains summary information about a session.
// This is used for displaying history without loading full reports.
type SessionSummary struct {
	ID         string
	Kind       string
	StartedAt  time.Time
	FinishedAt time.Time
	Targets    int
	Succeeded  int
	Connected  bool
	Cancelled  bool
	Error      string

	// Matched is the number of references found by a match session.
	Matched int
}

// ListSessions returns the most recent sessions, newest first.
// A non-positive limit returns every session.
func (s *Store) ListSessions(ctx context.Context, limit int) ([]SessionSummary, error) {
	query := `
	SELECT s.id, s.kind, s.started_at, s.finished_at, s.targets, s.succeeded,
		s.connected, s.cancelled, s.error,
		COALESCE((SELECT m.matched FROM match_reports m WHERE m.session_id = s.id ORDER BY m.id DESC LIMIT 1), 0)
	FROM sessions s
	ORDER BY s.started_at DESC
	`
	args := make([]any, 0, 1)
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var results []SessionSummary
	for rows.Next() {
		var sum SessionSummary
		var startedAt string
		var finishedAt, errMsg sql.NullString

		if err := rows.Scan(
			&sum.ID,
			&sum.Kind,
			&startedAt,
			&finishedAt,
			&sum.Targets,
			&sum.Succeeded,
			&sum.Connected,
			&sum.Cancelled,
			&errMsg,
			&sum.Matched,
		); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}

		sum.StartedAt = parseTimestamp(startedAt)
		sum.FinishedAt = parseTimestamp(finishedAt.String)
		sum.Error = errMsg.String
		results = append(results, sum)
	}

	return results, rows.Err()
}

// HasRecentFetch reports whether address was fetched successfully within
// the given duration.
func (s *Store) HasRecentFetch(ctx context.Context, address string, within time.Duration) (bool, error) {
	query := `
	SELECT COUNT(*) FROM fetches
	WHERE address = ? AND status = ? AND fetched_at > ?
	`

	cutoff := formatTimestamp(time.Now().Add(-within))

	var count int
	err := s.db.QueryRowContext(ctx, query, address, model.StatusSuccess.String(), cutoff).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check recent fetch: %w", err)
	}

	return count > 0, nil
}

// timestampLayout sorts lexically in time order, which the ORDER BY and
// cutoff comparisons rely on.
const timestampLayout = "2006-01-02T15:04:05.000000000Z"

// formatTimestamp renders t in UTC. The zero time is stored as "".
func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timestampLayout)
}

// timestampFormats contains the timestamp formats that may be stored.
// The order matters: more specific formats should come first.
var timestampFormats = []string{
	timestampLayout,
	"2006-01-02 15:04:05",  // SQLite default datetime format
	"2006-01-02T15:04:05Z", // ISO 8601 with Z suffix
	time.RFC3339Nano,
}

// parseTimestamp attempts to parse a timestamp string using multiple formats.
// If parsing fails with all formats, returns zero time.
func parseTimestamp(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
