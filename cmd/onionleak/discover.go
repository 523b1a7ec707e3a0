package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/nao1215/onionleak/internal/config"
	"github.com/nao1215/onionleak/internal/deanon"
	"github.com/nao1215/onionleak/internal/matcher"
)

// NewDiscoverCmd creates the discover command.
func NewDiscoverCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "discover",
		Short: "List identifying values found in the corpus",
		Long: `Discover scans the corpus for values that identify people or link
identities: e-mail addresses, cryptocurrency addresses and social media
profiles. Use it to build or extend the reference list for match.

Examples:
  # List identifiers in text.txt
  onionleak discover

  # Add every e-mail address and handle found to user_data.txt
  onionleak discover --append-references user_data.txt`,
		Args: cobra.NoArgs,
		RunE: runDiscoverCmd,
	}

	cmd.Flags().String("corpus", config.DefaultCorpusFile, "Corpus file to scan")
	cmd.Flags().String("append-references", "",
		"Append identifiers not yet listed to this reference file")
	cmd.Flags().BoolP("json", "j", false, "Output identifiers as JSON")

	return cmd
}

// runDiscoverCmd executes the discover command.
func runDiscoverCmd(cmd *cobra.Command, _ []string) error {
	corpus, err := cmd.Flags().GetString("corpus")
	if err != nil {
		return err
	}
	refsPath, err := cmd.Flags().GetString("append-references")
	if err != nil {
		return err
	}
	asJSON, err := cmd.Flags().GetBool("json")
	if err != nil {
		return err
	}

	logger, closer, err := newLogger(cmd)
	if err != nil {
		return err
	}
	defer closer.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ids, err := deanon.NewScanner(deanon.WithLogger(logger)).ScanFile(ctx, corpus)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(ids); err != nil {
			return err
		}
	} else if err := printIdentifiers(out, ids); err != nil {
		return err
	}

	if refsPath == "" {
		return nil
	}
	added, err := appendReferences(refsPath, deanon.Values(ids))
	if err != nil {
		return err
	}
	if !asJSON {
		fmt.Fprintf(out, "%d new references appended to %s\n", added, refsPath)
	}
	return nil
}

// printIdentifiers prints an identifier table.
func printIdentifiers(out io.Writer, ids []deanon.Identifier) error {
	if len(ids) == 0 {
		fmt.Fprintln(out, "No identifiers found.")
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "KIND\tVALUE\tCOUNT\tFIRST LINE")
	for _, id := range ids {
		label := deanon.KindLabel(id.Kind)
		if id.Kind == deanon.KindEmail && deanon.FreeProvider(id.Value) {
			label += " (free provider)"
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\n", label, id.Value, id.Count, id.FirstLine)
	}
	return tw.Flush()
}

// appendReferences appends values missing from the reference file and
// returns how many were added. A missing file is created.
func appendReferences(path string, values []string) (int, error) {
	existing, err := matcher.LoadReferences(path)
	if err != nil && !isMissingReferences(err) {
		return 0, err
	}

	known := make(map[string]struct{}, len(existing))
	for _, r := range existing {
		known[r] = struct{}{}
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600) //nolint:gosec // operator-supplied path
	if err != nil {
		return 0, fmt.Errorf("failed to open reference file: %w", err)
	}
	defer f.Close()

	added := 0
	for _, v := range values {
		if _, ok := known[v]; ok {
			continue
		}
		known[v] = struct{}{}
		if _, err := fmt.Fprintln(f, v); err != nil {
			return added, fmt.Errorf("failed to write reference file: %w", err)
		}
		added++
	}
	return added, f.Close()
}

// isMissingReferences reports whether err means the reference file does
// not exist yet.
func isMissingReferences(err error) bool {
	return errors.Is(err, matcher.ErrNoReferences)
}
