package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/nao1215/onionleak/internal/config"
	"github.com/nao1215/onionleak/internal/log"
)

// NewRootCmd creates the root command for onionleak.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "onionleak",
		Short: "Fetch pages through Tor and search them for leaked data",
		Long: `onionleak fetches web pages, including .onion hidden services, through Tor
and stores their visible text in a corpus file. It then searches that corpus
for reference values (e-mail addresses, phone numbers, user names) and
reports every line in which each value appears.

By default, onionleak starts an embedded Tor daemon automatically.
Use --external-tor to use an existing Tor proxy instead.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().String("log-file", "",
		"Also write logs to this file (rotated by size)")
	cmd.PersistentFlags().Bool("log-json", false, "Write logs as JSON")
	cmd.PersistentFlags().String("data-dir", config.XDGDataDir(),
		"Directory holding the history database")

	cmd.AddCommand(NewCrawlCmd())
	cmd.AddCommand(NewMatchCmd())
	cmd.AddCommand(NewDiscoverCmd())
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// newLogger builds the secure logger from the global flags.
// The returned Closer flushes the log file, if any.
func newLogger(cmd *cobra.Command) (*slog.Logger, io.Closer, error) {
	flags := cmd.Flags()

	verbose, err := flags.GetBool("verbose")
	if err != nil {
		return nil, nil, err
	}
	file, err := flags.GetString("log-file")
	if err != nil {
		return nil, nil, err
	}
	jsonLogs, err := flags.GetBool("log-json")
	if err != nil {
		return nil, nil, err
	}

	return log.New(log.Options{
		Verbose: verbose,
		JSON:    jsonLogs,
		Console: cmd.ErrOrStderr(),
		File:    file,
	})
}

// dataDir returns the database directory from the global flags.
func dataDir(cmd *cobra.Command) (string, error) {
	return cmd.Flags().GetString("data-dir")
}
