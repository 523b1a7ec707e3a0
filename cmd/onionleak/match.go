package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nao1215/onionleak/internal/config"
	"github.com/nao1215/onionleak/internal/database"
	"github.com/nao1215/onionleak/internal/log"
	"github.com/nao1215/onionleak/internal/matcher"
	"github.com/nao1215/onionleak/internal/model"
	"github.com/nao1215/onionleak/internal/pipeline"
	"github.com/nao1215/onionleak/internal/report"
)

// stdoutPath selects standard output for --output.
const stdoutPath = "-"

// NewMatchCmd creates the match command.
func NewMatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "match",
		Short: "Search the corpus for reference values",
		Long: `Match reads reference values (one per line) and reports every corpus line in
which each value appears, ignoring case. References without a match are left
out of the text and Markdown reports unless --show-empty is given.

Reference values are masked in log output.

Examples:
  # Search text.txt for the values in user_data.txt and write results.txt
  onionleak match

  # Search two corpora concurrently and print a JSON report
  onionleak match -r emails.txt --corpus a.txt --corpus b.txt --json -o -

  # Write a Markdown report
  onionleak match --markdown -o report.md`,
		Args: cobra.NoArgs,
		RunE: runMatchCmd,
	}

	cmd.Flags().StringP("references", "r", config.DefaultReferencesFile,
		"File with one reference value per line")
	cmd.Flags().StringSlice("corpus", []string{config.DefaultCorpusFile},
		"Corpus file to search (repeat to search several concurrently)")
	cmd.Flags().StringP("output", "o", config.DefaultResultsFile,
		"Write report to specified file path, or - for standard output")
	cmd.Flags().BoolP("json", "j", false,
		"Output JSON report (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown report (mutually exclusive with --json)")
	cmd.Flags().Bool("show-empty", false,
		"List references without matches in text and Markdown reports")
	cmd.Flags().BoolP("quiet", "q", false,
		"Do not echo the text report to standard output")
	cmd.Flags().Int("concurrency", 4, "Maximum number of corpora searched at once")
	cmd.Flags().Bool("no-db", false, "Do not record the run in the history database")

	return cmd
}

// matchOptions are the match command settings that Config does not carry.
type matchOptions struct {
	corpora     []string
	quiet       bool
	concurrency int
}

// runMatchCmd executes the match command.
func runMatchCmd(cmd *cobra.Command, _ []string) error {
	cfg, opts, err := buildMatchConfig(cmd)
	if err != nil {
		return err
	}

	if err := cfg.ValidateMatch(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger, closer, err := newLogger(cmd)
	if err != nil {
		return err
	}
	defer closer.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return runMatch(ctx, cfg, opts, cmd.OutOrStdout(), logger)
}

// buildMatchConfig creates a Config from cobra command flags.
func buildMatchConfig(cmd *cobra.Command) (*config.Config, matchOptions, error) {
	cfg := config.NewConfig()
	flags := cmd.Flags()
	var opts matchOptions

	var err error
	if cfg.ReferencesPath, err = flags.GetString("references"); err != nil {
		return nil, opts, err
	}
	if opts.corpora, err = flags.GetStringSlice("corpus"); err != nil {
		return nil, opts, err
	}
	if cfg.ReportFile, err = flags.GetString("output"); err != nil {
		return nil, opts, err
	}
	if cfg.JSONReport, err = flags.GetBool("json"); err != nil {
		return nil, opts, err
	}
	if cfg.MarkdownReport, err = flags.GetBool("markdown"); err != nil {
		return nil, opts, err
	}
	if cfg.ShowEmpty, err = flags.GetBool("show-empty"); err != nil {
		return nil, opts, err
	}
	if opts.quiet, err = flags.GetBool("quiet"); err != nil {
		return nil, opts, err
	}
	if opts.concurrency, err = flags.GetInt("concurrency"); err != nil {
		return nil, opts, err
	}
	if cfg.DBDir, err = dataDir(cmd); err != nil {
		return nil, opts, err
	}

	noDB, err := flags.GetBool("no-db")
	if err != nil {
		return nil, opts, err
	}
	cfg.SaveToDB = !noDB

	cfg.CorpusPath = ""
	if len(opts.corpora) > 0 {
		cfg.CorpusPath = opts.corpora[0]
	}

	return cfg, opts, nil
}

// runMatch searches every corpus and writes the reports.
func runMatch(ctx context.Context, cfg *config.Config, opts matchOptions, stdout io.Writer, logger *slog.Logger) error {
	var store *database.Store
	if cfg.SaveToDB {
		var err error
		store, err = database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer store.Close()
	}

	output, closeOutput, err := openReportOutput(cfg.ReportFile, stdout)
	if err != nil {
		return err
	}
	defer closeOutput()

	w := newReportWriter(cfg, output)
	if !opts.quiet && cfg.ReportFile != stdoutPath && !cfg.JSONReport && !cfg.MarkdownReport {
		w = report.NewMultiWriter(w, report.NewTextWriter(stdout, report.WithShowEmpty(cfg.ShowEmpty)))
	}

	engine := matcher.NewEngine(matcher.WithLogger(logger))
	hook := pipeline.WithReferenceHook(func(refs ...string) {
		if r := log.RedactorOf(logger); r != nil {
			r.Add(refs...)
		}
	})

	newPipeline := func(corpus string) *pipeline.Pipeline {
		p := pipeline.New(pipeline.WithLogger(logger))
		p.AddStep(pipeline.NewMatchStep(engine, cfg.ReferencesPath, corpus, hook))
		if store != nil {
			p.AddFinalStep(pipeline.NewPersistStep(store))
		}
		return p
	}

	if len(opts.corpora) == 1 {
		p := newPipeline(opts.corpora[0])
		p.AddStep(pipeline.NewReportStep(w))

		session := model.NewSession(model.SessionMatch)
		if err := p.Execute(ctx, session); err != nil {
			return err
		}
		printMatchSummary(stdout, cfg, session)
		return nil
	}

	bp := pipeline.NewBatchProcessor(newPipeline,
		pipeline.WithConcurrency(opts.concurrency),
		pipeline.WithBatchLogger(logger),
	)
	sessions, err := bp.ProcessBatch(ctx, opts.corpora)
	if err != nil {
		return err
	}

	// Reports are written after the batch so they appear in corpus order.
	var failed int
	for _, s := range sessions {
		if s.Error != nil {
			failed++
			fmt.Fprintf(os.Stderr, "Match error: %v\n", s.Error)
			continue
		}
		if !cfg.JSONReport {
			fmt.Fprintf(output, "Corpus: %s\n", s.Targets[0])
		}
		if _, err := w.Write(s.Report); err != nil {
			return fmt.Errorf("failed to write report: %w", err)
		}
		printMatchSummary(stdout, cfg, s)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d corpora could not be searched", failed, len(sessions))
	}
	return nil
}

// newReportWriter creates the writer for the requested format.
func newReportWriter(cfg *config.Config, output io.Writer) report.Writer {
	switch {
	case cfg.JSONReport:
		return report.NewJSONWriter(output, report.WithPrettyPrint(), report.WithVersion(getVersion()))
	case cfg.MarkdownReport:
		return report.NewMarkdownWriter(output, report.WithMarkdownShowEmpty(cfg.ShowEmpty))
	default:
		return report.NewTextWriter(output, report.WithShowEmpty(cfg.ShowEmpty))
	}
}

// openReportOutput opens the report destination.
// Reports may contain leaked personal data, so files are created 0600.
func openReportOutput(path string, stdout io.Writer) (io.Writer, func(), error) {
	if path == "" || path == stdoutPath {
		return stdout, func() {}, nil
	}

	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600) //nolint:gosec // operator-supplied path
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return f, func() { _ = f.Close() }, nil //nolint:errcheck // close after write
}

// printMatchSummary prints a one-line outcome to standard output.
func printMatchSummary(out io.Writer, cfg *config.Config, session *model.Session) {
	if cfg.ReportFile == stdoutPath || session.Report == nil {
		return
	}
	fmt.Fprintf(out, "%s: %d of %d references found in %d lines",
		session.Targets[0],
		session.Report.MatchedCount(),
		len(session.Report.Entries),
		session.Report.LinesScanned,
	)
	if cfg.ReportFile != "" {
		fmt.Fprintf(out, " (report: %s)", cfg.ReportFile)
	}
	fmt.Fprintln(out)
}
