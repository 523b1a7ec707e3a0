package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/onionleak/internal/config"
	"github.com/nao1215/onionleak/internal/crawler"
	"github.com/nao1215/onionleak/internal/database"
	"github.com/nao1215/onionleak/internal/model"
	"github.com/nao1215/onionleak/internal/pipeline"
	"github.com/nao1215/onionleak/internal/sink"
	"github.com/nao1215/onionleak/internal/tor"
)

// NewCrawlCmd creates the crawl command.
func NewCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl [url...]",
		Short: "Fetch pages through Tor and append their text to the corpus",
		Long: `Crawl fetches every URL through Tor, one at a time, and appends the visible
text of each page to the corpus file. Links found on the pages are logged but
not followed.

The run stops before the first request if traffic is not routed through Tor.

Examples:
  # Fetch the URLs listed in urls.txt
  onionleak crawl --list urls.txt

  # Fetch two pages and write their text to leaks.txt
  onionleak crawl --corpus leaks.txt http://example.onion http://example.com

  # Use an external Tor proxy and request a new identity every 5 pages
  onionleak crawl --external-tor 127.0.0.1:9050 --control 127.0.0.1:9051 \
    --control-cookie /var/lib/tor/control_auth_cookie --rotate-every 5 -l urls.txt

Configuration file (.onionleak) example:
  defaults:
    headers:
      Accept-Language: "en-US"
  sites:
    exampleonion.onion:
      cookie: "session_id=abc123"`,
		Args: cobra.ArbitraryArgs,
		RunE: runCrawlCmd,
	}

	// Target flags
	cmd.Flags().StringP("list", "l", "",
		"File with one URL per line (blank lines and # comments are skipped)")
	cmd.Flags().String("corpus", config.DefaultCorpusFile,
		"Corpus file the page text is appended to")
	cmd.Flags().Duration("skip-recent", 0,
		"Skip URLs fetched successfully within this duration (needs the history database)")

	// Tor connection flags
	cmd.Flags().StringP("external-tor", "e", "",
		"Use external Tor proxy at specified address (e.g., 127.0.0.1:9050)")
	cmd.Flags().DurationP("tor-timeout", "T", config.DefaultTorStartupTimeout,
		"Timeout for embedded Tor startup")
	cmd.Flags().String("control", "",
		"Tor control port address (default: the embedded daemon's, or "+config.DefaultControlAddress+" with --external-tor)")
	cmd.Flags().String("control-password", "",
		"Control port password (mutually exclusive with --control-cookie)")
	cmd.Flags().String("control-cookie", "",
		"Path to the control_auth_cookie file")
	cmd.Flags().String("probe-url", config.DefaultProbeURL,
		"URL answering {\"IsTor\": bool} used to verify routing")

	// Pacing flags
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout,
		"Timeout for each request")
	cmd.Flags().DurationP("delay", "d", config.DefaultCrawlDelay,
		"Pause after each successful fetch")
	cmd.Flags().Int("rotate-every", config.DefaultRotateEvery,
		"Request a new Tor identity after this many successful fetches (0 disables)")
	cmd.Flags().Duration("settle-delay", config.DefaultSettleDelay,
		"Wait after a new identity before the next request")
	cmd.Flags().String("user-agent", "", "User-Agent header sent with every request")

	// Configuration and storage
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .onionleak in current or home directory)")
	cmd.Flags().Bool("no-db", false, "Do not record the run in the history database")

	return cmd
}

// runCrawlCmd executes the crawl command.
func runCrawlCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildCrawlConfig(cmd, args)
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger, closer, err := newLogger(cmd)
	if err != nil {
		return err
	}
	defer closer.Close()

	skipRecent, err := cmd.Flags().GetDuration("skip-recent")
	if err != nil {
		return err
	}

	// Set up context with signal handling for graceful shutdown
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return runCrawl(ctx, cfg, skipRecent, cmd.OutOrStdout(), logger)
}

// buildCrawlConfig creates a Config from cobra command flags.
func buildCrawlConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()
	flags := cmd.Flags()

	var err error

	externalTor, err := flags.GetString("external-tor")
	if err != nil {
		return nil, err
	}
	if externalTor != "" {
		cfg.UseExternalTor = true
		cfg.TorProxyAddress = externalTor
	}

	if cfg.TorStartupTimeout, err = flags.GetDuration("tor-timeout"); err != nil {
		return nil, err
	}
	if cfg.ControlAddress, err = flags.GetString("control"); err != nil {
		return nil, err
	}
	if cfg.ControlPassword, err = flags.GetString("control-password"); err != nil {
		return nil, err
	}
	if cfg.ControlCookiePath, err = flags.GetString("control-cookie"); err != nil {
		return nil, err
	}
	if cfg.ProbeURL, err = flags.GetString("probe-url"); err != nil {
		return nil, err
	}
	if cfg.Timeout, err = flags.GetDuration("timeout"); err != nil {
		return nil, err
	}
	if cfg.CrawlDelay, err = flags.GetDuration("delay"); err != nil {
		return nil, err
	}
	if cfg.RotateEvery, err = flags.GetInt("rotate-every"); err != nil {
		return nil, err
	}
	if cfg.SettleDelay, err = flags.GetDuration("settle-delay"); err != nil {
		return nil, err
	}
	if cfg.UserAgent, err = flags.GetString("user-agent"); err != nil {
		return nil, err
	}
	if cfg.CorpusPath, err = flags.GetString("corpus"); err != nil {
		return nil, err
	}
	if cfg.ConfigFilePath, err = flags.GetString("config"); err != nil {
		return nil, err
	}
	if cfg.DBDir, err = dataDir(cmd); err != nil {
		return nil, err
	}

	noDB, err := flags.GetBool("no-db")
	if err != nil {
		return nil, err
	}
	cfg.SaveToDB = !noDB

	if cfg.SiteConfigs, err = loadSiteConfigs(cfg.ConfigFilePath); err != nil {
		return nil, err
	}

	cfg.Targets = append(cfg.Targets, args...)

	listPath, err := flags.GetString("list")
	if err != nil {
		return nil, err
	}
	if listPath != "" {
		listed, err := readTargetList(listPath)
		if err != nil {
			return nil, err
		}
		cfg.Targets = append(cfg.Targets, listed...)
	}

	return cfg, nil
}

// loadSiteConfigs loads the site configuration file.
// If the user explicitly specified a path, a missing file is an error.
// Otherwise an empty configuration is used when no file is found.
func loadSiteConfigs(explicitPath string) (*config.File, error) {
	configPath := config.FindConfigFile(explicitPath)
	if configPath == "" {
		if explicitPath != "" {
			return nil, fmt.Errorf("configuration file not found: %s", explicitPath)
		}
		return &config.File{Sites: make(map[string]config.SiteConfig)}, nil
	}

	sites, err := config.LoadConfigFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
	}
	return sites, nil
}

// readTargetList reads one URL per line. Surrounding whitespace is
// trimmed; blank lines and lines starting with # are skipped.
func readTargetList(path string) ([]string, error) {
	f, err := os.Open(path) //nolint:gosec // operator-supplied path
	if err != nil {
		return nil, fmt.Errorf("failed to open URL list: %w", err)
	}
	defer f.Close()

	var targets []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		targets = append(targets, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read URL list %s: %w", path, err)
	}
	return targets, nil
}

// runCrawl connects to Tor and runs the crawl pipeline.
func runCrawl(ctx context.Context, cfg *config.Config, skipRecent time.Duration, out io.Writer, logger *slog.Logger) error {
	var store *database.Store
	if cfg.SaveToDB {
		var err error
		store, err = database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer store.Close()
		logger.Info("database opened", "dir", cfg.DBDir)

		if skipRecent > 0 {
			cfg.Targets, err = dropRecentTargets(ctx, store, cfg.Targets, skipRecent, out)
			if err != nil {
				return err
			}
			if len(cfg.Targets) == 0 {
				fmt.Fprintln(out, "Every URL was fetched recently; nothing to do.")
				return nil
			}
		}
	}

	logger.Info("starting crawl",
		"targets", len(cfg.Targets),
		"useExternalTor", cfg.UseExternalTor,
		"corpus", cfg.CorpusPath,
		"saveToDB", cfg.SaveToDB,
	)

	var client *tor.Client
	control := tor.ControlConfig{
		Address:    cfg.ControlAddress,
		Password:   cfg.ControlPassword,
		CookiePath: cfg.ControlCookiePath,
	}

	if cfg.UseExternalTor {
		var err error
		client, err = tor.NewClient(cfg.TorProxyAddress, cfg.Timeout)
		if err != nil {
			return fmt.Errorf("failed to create Tor client: %w", err)
		}

		if status := client.CheckConnection(ctx); status != tor.ProxyStatusOK {
			return fmt.Errorf("tor proxy check failed (make sure Tor is running at %s): %w",
				cfg.TorProxyAddress, status.Error())
		}
		logger.Info("Tor proxy connection verified", "address", cfg.TorProxyAddress)

		if control.Address == "" {
			control.Address = config.DefaultControlAddress
		}
	} else {
		var embedded *tor.EmbeddedTor
		var err error
		client, embedded, err = startEmbeddedTor(ctx, cfg, out, logger)
		if err != nil {
			return err
		}
		defer func() {
			logger.Info("stopping embedded Tor daemon...")
			if err := embedded.Stop(); err != nil {
				logger.Error("failed to stop embedded Tor", "error", err)
			}
		}()

		if control.Address == "" {
			if control, err = embedded.ControlConfig(); err != nil {
				return err
			}
		}
	}

	circuit := tor.NewCircuitSession(client.NewHTTPClient(),
		tor.WithProbeURL(cfg.ProbeURL),
		tor.WithControl(control),
		tor.WithSettleDelay(cfg.SettleDelay),
		tor.WithSessionLogger(logger),
	)

	corpus, err := sink.OpenCorpus(cfg.CorpusPath)
	if err != nil {
		return err
	}
	defer corpus.Close()

	p := pipeline.New(pipeline.WithLogger(logger))
	p.AddStep(pipeline.NewVerifyStep(circuit, logger))
	p.AddStep(pipeline.NewCrawlStep(circuit, corpus,
		pipeline.WithEngineOptions(
			crawler.WithDelay(cfg.CrawlDelay),
			crawler.WithTimeout(cfg.Timeout),
			crawler.WithUserAgent(cfg.UserAgent),
			crawler.WithMaxBodySize(cfg.MaxBodySize),
			crawler.WithRotateEvery(cfg.RotateEvery),
			crawler.WithSiteLookup(cfg.SiteConfigs.Lookup),
		),
		pipeline.WithCrawlLogger(logger),
		pipeline.WithProgress(crawler.MultiObserver(
			crawler.NewLogObserver(logger),
			newProgressPrinter(out, len(cfg.Targets)),
		)),
	))
	if store != nil {
		p.AddFinalStep(pipeline.NewPersistStep(store))
	}

	session := model.NewSession(model.SessionCrawl)
	session.Targets = cfg.Targets

	start := time.Now()
	runErr := p.Execute(ctx, session)

	printCrawlSummary(out, session, corpus, time.Since(start))

	if runErr != nil {
		if session.Cancelled {
			fmt.Fprintln(out, "Crawl interrupted; results gathered so far were kept.")
		}
		return runErr
	}
	return nil
}

// dropRecentTargets removes targets already fetched within the window.
func dropRecentTargets(ctx context.Context, store *database.Store, targets []string, within time.Duration, out io.Writer) ([]string, error) {
	kept := make([]string, 0, len(targets))
	for _, t := range targets {
		recent, err := store.HasRecentFetch(ctx, t, within)
		if err != nil {
			return nil, err
		}
		if recent {
			fmt.Fprintf(out, "Skipping %s (fetched within %s)\n", t, within)
			continue
		}
		kept = append(kept, t)
	}
	return kept, nil
}

// newProgressPrinter prints one line per finished fetch.
func newProgressPrinter(out io.Writer, total int) crawler.Observer {
	done := 0
	return crawler.ObserverFunc(func(e crawler.Event) {
		if e.Kind != crawler.EventFetchFinished || e.Result == nil {
			return
		}
		done++
		r := e.Result
		switch r.Status {
		case model.StatusSuccess:
			fmt.Fprintf(out, "[%d/%d] %s: %q (%d links)\n", done, total, r.Address, r.Title, len(r.Links))
		case model.StatusHTTPError:
			fmt.Fprintf(out, "[%d/%d] %s: HTTP %d\n", done, total, r.Address, r.StatusCode)
		case model.StatusNetworkError:
			fmt.Fprintf(out, "[%d/%d] %s: %v\n", done, total, r.Address, r.Err)
		case model.StatusSkipped:
			fmt.Fprintf(out, "[%d/%d] %s: already fetched\n", done, total, r.Address)
		}
	})
}

// printCrawlSummary prints the outcome counts of a crawl session.
func printCrawlSummary(out io.Writer, session *model.Session, corpus *sink.Corpus, elapsed time.Duration) {
	if !session.Connected {
		return
	}
	fmt.Fprintf(out, "\nCrawl finished in %s: %d fetched, %d failed, %d skipped\n",
		elapsed.Round(time.Millisecond),
		session.CountByStatus(model.StatusSuccess),
		session.CountByStatus(model.StatusHTTPError)+session.CountByStatus(model.StatusNetworkError),
		session.CountByStatus(model.StatusSkipped),
	)
	fmt.Fprintf(out, "%d pages appended to %s\n", corpus.Pages(), corpus.Path())
}

// startEmbeddedTor starts an embedded Tor daemon using tornago.
// Returns the Tor client and embedded Tor manager on success.
func startEmbeddedTor(ctx context.Context, cfg *config.Config, out io.Writer, logger *slog.Logger) (*tor.Client, *tor.EmbeddedTor, error) {
	fmt.Fprintln(out, "Starting embedded Tor daemon...")
	fmt.Fprintf(out, "This may take 1-3 minutes while Tor bootstraps and connects to the network.\n\n")

	embeddedTor := tor.NewEmbeddedTor(
		tor.WithStartupTimeout(cfg.TorStartupTimeout),
	)

	if err := embeddedTor.Start(ctx); err != nil {
		return nil, nil, fmt.Errorf("failed to start embedded Tor: %w", err)
	}

	logger.Info("embedded Tor daemon started",
		"socksAddr", embeddedTor.SocksAddr(),
		"controlAddr", embeddedTor.ControlAddr(),
	)
	fmt.Fprintf(out, "Embedded Tor daemon started (SOCKS proxy: %s)\n\n", embeddedTor.SocksAddr())

	client, err := embeddedTor.NewClient(cfg.Timeout)
	if err != nil {
		_ = embeddedTor.Stop() //nolint:errcheck // Best effort cleanup
		return nil, nil, fmt.Errorf("failed to create Tor client: %w", err)
	}

	if status := client.CheckConnection(ctx); status != tor.ProxyStatusOK {
		_ = embeddedTor.Stop() //nolint:errcheck // Best effort cleanup
		return nil, nil, fmt.Errorf("embedded Tor proxy check failed: %w", status.Error())
	}

	return client, embeddedTor, nil
}
