package config

import (
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values.
const (
	// DefaultTorProxyAddress is the standard Tor SOCKS5 proxy address.
	// We use 127.0.0.1 instead of localhost to avoid DNS resolution overhead
	// and potential issues with IPv6 resolution on some systems.
	DefaultTorProxyAddress = "127.0.0.1:9050"

	// DefaultControlAddress is the standard Tor control port.
	DefaultControlAddress = "127.0.0.1:9051"

	// DefaultTimeout bounds a single fetch including the body read.
	DefaultTimeout = 30 * time.Second

	// DefaultCrawlDelay is the pause after every fetch.
	DefaultCrawlDelay = 2 * time.Second

	// DefaultRotateEvery is how many successful fetches pass between
	// identity rotations. Zero disables scheduled rotation.
	DefaultRotateEvery = 0

	// DefaultSettleDelay is how long to wait after a new identity is
	// requested before the next fetch.
	DefaultSettleDelay = 5 * time.Second

	// DefaultMaxBodySize limits the response body read per page.
	DefaultMaxBodySize = 10 * 1024 * 1024 // 10MB

	// DefaultTorStartupTimeout is the maximum time to wait for the embedded
	// Tor daemon to bootstrap. 3 minutes is typically sufficient for most
	// network conditions, but may need to be increased for slow connections.
	DefaultTorStartupTimeout = 3 * time.Minute

	// DefaultProbeURL answers whether the request arrived over Tor.
	DefaultProbeURL = "https://check.torproject.org/api/ip"

	// DefaultCorpusFile receives the cleaned text of every fetched page.
	DefaultCorpusFile = "text.txt"

	// DefaultReferencesFile holds the values to search for, one per line.
	DefaultReferencesFile = "user_data.txt"

	// DefaultResultsFile receives the text match report.
	DefaultResultsFile = "results.txt"

	// AppName is the application name used for XDG directory paths.
	AppName = "onionleak"
)

// Config holds all configuration options for onionleak.
// This struct is populated from CLI flags and passed through the
// application via dependency injection rather than global state.
//
// Design decision: We use a single flat struct for both the crawl and the
// match commands. Each command validates only the fields it uses.
type Config struct {
	// TorProxyAddress is the address of the Tor SOCKS5 proxy in "host:port" format.
	TorProxyAddress string

	// UseExternalTor disables the embedded Tor daemon and uses an external proxy.
	// When false (default), onionleak starts an embedded Tor daemon.
	UseExternalTor bool

	// TorStartupTimeout is the maximum time to wait for the embedded Tor daemon
	// to start and bootstrap. Only used when UseExternalTor is false.
	TorStartupTimeout time.Duration

	// ControlAddress is the Tor control port used for identity rotation.
	// Empty disables rotation unless the embedded daemon provides one.
	ControlAddress string

	// ControlPassword authenticates with HashedControlPassword.
	ControlPassword string

	// ControlCookiePath authenticates with the cookie file Tor writes.
	ControlCookiePath string

	// ProbeURL is the connectivity check endpoint.
	ProbeURL string

	// Timeout is the per-request timeout for each fetch.
	Timeout time.Duration

	// CrawlDelay is the delay after every fetch.
	CrawlDelay time.Duration

	// RotateEvery requests a new identity after this many successful
	// fetches. Zero disables scheduled rotation.
	RotateEvery int

	// SettleDelay is the wait after a new identity is requested.
	SettleDelay time.Duration

	// UserAgent is the User-Agent header sent with HTTP requests.
	// Empty uses the crawler default.
	UserAgent string

	// MaxBodySize is the maximum response body size in bytes to read.
	// Set to 0 to use the default.
	MaxBodySize int64

	// Targets is the list of addresses to fetch, in operator order.
	Targets []string

	// CorpusPath is the file cleaned page text is appended to.
	CorpusPath string

	// ReferencesPath is the reference value file used by the match command.
	ReferencesPath string

	// ReportFile is the output file path for the match report.
	// Empty writes to stdout only.
	ReportFile string

	// JSONReport writes the match report as JSON.
	JSONReport bool

	// MarkdownReport writes the match report as Markdown.
	MarkdownReport bool

	// ShowEmpty lists references without matches in text and Markdown output.
	ShowEmpty bool

	// Verbose enables detailed log output using slog.LevelDebug.
	Verbose bool

	// LogFile, when set, also writes logs to a rotating file.
	LogFile string

	// ConfigFilePath is the path to the configuration file.
	// If empty, the tool searches for .onionleak in the current directory
	// and then in the user's home directory.
	ConfigFilePath string

	// SiteConfigs holds site-specific configurations loaded from the config file.
	SiteConfigs *File

	// DBDir is the directory path for storing the SQLite database.
	// Defaults to XDG data directory (~/.local/share/onionleak on Linux).
	DBDir string

	// SaveToDB records sessions in the database.
	SaveToDB bool
}

// NewConfig creates a new Config with default values.
//
// Design decision: We use a constructor function instead of relying on
// zero values because many defaults are non-zero (e.g., timeout, delays).
// This also serves as documentation of what the defaults are.
func NewConfig() *Config {
	return &Config{
		TorProxyAddress:   DefaultTorProxyAddress,
		TorStartupTimeout: DefaultTorStartupTimeout,
		ProbeURL:          DefaultProbeURL,
		Timeout:           DefaultTimeout,
		CrawlDelay:        DefaultCrawlDelay,
		RotateEvery:       DefaultRotateEvery,
		SettleDelay:       DefaultSettleDelay,
		MaxBodySize:       DefaultMaxBodySize,
		CorpusPath:        DefaultCorpusFile,
		ReferencesPath:    DefaultReferencesFile,
		DBDir:             XDGDataDir(),
		SaveToDB:          true,
	}
}

// XDGDataDir returns the XDG data directory for onionleak.
// On Linux: ~/.local/share/onionleak
// On macOS: ~/Library/Application Support/onionleak
// On Windows: %LOCALAPPDATA%\onionleak
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for onionleak.
// On Linux: ~/.config/onionleak
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// XDGStateDir returns the XDG state directory, where logs go by default.
// On Linux: ~/.local/state/onionleak
func XDGStateDir() string {
	return filepath.Join(xdg.StateHome, AppName)
}

// Validate checks the options used by the crawl command.
// It returns the first problem found.
func (c *Config) Validate() error {
	if len(c.Targets) == 0 {
		return ErrNoTarget
	}

	// Timeout must be positive; zero timeout would cause immediate failures
	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}

	if c.CrawlDelay < 0 {
		return ErrInvalidCrawlDelay
	}

	if c.MaxBodySize < 0 {
		return ErrInvalidMaxBodySize
	}

	if c.RotateEvery < 0 {
		return ErrInvalidRotateEvery
	}

	if c.CorpusPath == "" {
		return ErrNoCorpus
	}

	if c.ControlPassword != "" && c.ControlCookiePath != "" {
		return ErrConflictingCredentials
	}

	return nil
}

// ValidateMatch checks the options used by the match command.
func (c *Config) ValidateMatch() error {
	if c.ReferencesPath == "" {
		return ErrNoReferences
	}

	if c.CorpusPath == "" {
		return ErrNoCorpus
	}

	if c.JSONReport && c.MarkdownReport {
		return ErrConflictingReportFormats
	}

	return nil
}
