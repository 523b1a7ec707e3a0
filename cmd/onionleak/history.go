package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/onionleak/internal/database"
	"github.com/nao1215/onionleak/internal/model"
	"github.com/nao1215/onionleak/internal/report"
)

// NewHistoryCmd creates the history command.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent crawl and match runs",
		Long: `History lists the runs recorded in the history database, newest first.

Examples:
  # Show the last 20 runs
  onionleak history

  # Show the fetches or the match report of one run
  onionleak history --session 7d0c5b8e-...`,
		Args: cobra.NoArgs,
		RunE: runHistoryCmd,
	}

	cmd.Flags().IntP("limit", "n", 20, "Maximum number of runs to list")
	cmd.Flags().StringP("session", "s", "", "Show the fetch records and match report of this run")

	return cmd
}

// runHistoryCmd executes the history command.
func runHistoryCmd(cmd *cobra.Command, _ []string) error {
	dir, err := dataDir(cmd)
	if err != nil {
		return err
	}
	limit, err := cmd.Flags().GetInt("limit")
	if err != nil {
		return err
	}
	sessionID, err := cmd.Flags().GetString("session")
	if err != nil {
		return err
	}

	if _, err := os.Stat(filepath.Join(dir, database.FileName)); errors.Is(err, os.ErrNotExist) {
		fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded yet.")
		return nil
	}

	opts := database.DefaultOptions()
	opts.CreateIfNotExists = false
	store, err := database.Open(dir, opts)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer store.Close()

	if sessionID != "" {
		return printRun(cmd.Context(), cmd.OutOrStdout(), store, sessionID)
	}

	sessions, err := store.ListSessions(cmd.Context(), limit)
	if err != nil {
		return err
	}
	return printSessions(cmd.OutOrStdout(), sessions)
}

// printSessions prints a session table.
func printSessions(out io.Writer, sessions []database.SessionSummary) error {
	if len(sessions) == 0 {
		fmt.Fprintln(out, "No runs recorded yet.")
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tKIND\tSTARTED\tTARGETS\tRESULT\tSTATUS")
	for _, s := range sessions {
		var result string
		if s.Kind == model.SessionMatch {
			result = fmt.Sprintf("%d matched", s.Matched)
		} else {
			result = fmt.Sprintf("%d/%d fetched", s.Succeeded, s.Targets)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\n",
			s.ID, s.Kind, s.StartedAt.Local().Format(time.DateTime), s.Targets, result, sessionStatus(s))
	}
	return tw.Flush()
}

// sessionStatus summarizes how a run ended.
func sessionStatus(s database.SessionSummary) string {
	switch {
	case s.Cancelled:
		return "cancelled"
	case s.Error != "":
		return "failed: " + s.Error
	case s.Kind == model.SessionCrawl && !s.Connected:
		return "not connected"
	default:
		return "ok"
	}
}

// printRun prints what was stored for one run: its fetch records for a
// crawl, its match report for a match.
func printRun(ctx context.Context, out io.Writer, store *database.Store, sessionID string) error {
	records, err := store.ListFetches(ctx, sessionID)
	if err != nil {
		return err
	}
	stored, err := store.GetMatchReport(ctx, sessionID)
	if err != nil {
		return err
	}

	if len(records) == 0 && stored == nil {
		fmt.Fprintln(out, "Nothing recorded for this run.")
		return nil
	}
	if len(records) > 0 {
		if err := printFetches(out, records); err != nil {
			return err
		}
	}
	if stored != nil {
		if _, err := report.NewTextWriter(out).Write(stored); err != nil {
			return err
		}
		if !stored.HasLeaks() {
			fmt.Fprintln(out, "None of the references were found.")
		}
	}
	return nil
}

// printFetches prints the fetch records of one run.
func printFetches(out io.Writer, records []database.FetchRecord) error {

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ADDRESS\tSTATUS\tCODE\tTITLE\tLINKS\tONION LINKS")
	for _, r := range records {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%d\t%d\n",
			r.Address, r.Status, r.StatusCode, r.Title, r.LinkCount, r.OverlayLinks)
	}
	return tw.Flush()
}
