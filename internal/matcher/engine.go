package matcher

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/cloudflare/ahocorasick"
	"golang.org/x/text/encoding"
	"golang.org/x/text/transform"

	"github.com/nao1215/onionleak/internal/model"
)

// cancelCheckInterval is how many lines are scanned between context checks.
const cancelCheckInterval = 1024

// Engine matches references against a corpus.
// It holds no per-run state and is safe for concurrent use.
type Engine struct {
	logger *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger used for run statistics.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewEngine creates a match engine.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{logger: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// dictionary is the compiled form of a reference list.
type dictionary struct {
	// refs are the unique references in supply order.
	refs []string

	// matcher is nil when every reference is empty.
	matcher *ahocorasick.Matcher

	// owners maps a matcher pattern index to the references it stands for.
	// Different references can share a lowercased pattern.
	owners [][]int

	// always holds references that match every line (the empty string).
	always []int
}

func compile(refs []string) *dictionary {
	d := &dictionary{refs: uniqueReferences(refs, false)}

	patternIndex := make(map[string]int)
	var patterns []string
	for i, ref := range d.refs {
		lowered := strings.ToLower(ref)
		if lowered == "" {
			d.always = append(d.always, i)
			continue
		}
		idx, ok := patternIndex[lowered]
		if !ok {
			idx = len(patterns)
			patternIndex[lowered] = idx
			patterns = append(patterns, lowered)
			d.owners = append(d.owners, nil)
		}
		d.owners[idx] = append(d.owners[idx], i)
	}
	if len(patterns) > 0 {
		d.matcher = ahocorasick.NewStringMatcher(patterns)
	}
	return d
}

// matches returns the indices of the references found in line.
func (d *dictionary) matches(line string) []int {
	hits := append([]int(nil), d.always...)
	if d.matcher == nil {
		return hits
	}
	for _, p := range d.matcher.MatchThreadSafe([]byte(strings.ToLower(line))) {
		hits = append(hits, d.owners[p]...)
	}
	return hits
}

// Parse scans corpus line by line and returns a report with one entry per
// unique reference, in supply order. Matched lines are trimmed, kept in
// corpus order, and repeated when the corpus repeats them.
//
// A nil reference list or nil corpus is a *ConfigurationError. A read or
// UTF-8 decoding failure is a *CorpusReadError. On any error no report is
// returned.
func (e *Engine) Parse(ctx context.Context, references []string, corpus io.Reader) (*model.MatchReport, error) {
	if references == nil {
		return nil, &ConfigurationError{Input: "references", Err: ErrNoReferences}
	}
	if corpus == nil {
		return nil, &ConfigurationError{Input: "corpus", Err: ErrNoCorpus}
	}

	start := time.Now()
	dict := compile(references)
	lines := make([][]string, len(dict.refs))

	r := bufio.NewReader(transform.NewReader(corpus, encoding.UTF8Validator))
	lineNo, scanned := 0, 0
	for {
		raw, readErr := r.ReadString('\n')
		if readErr != nil && !errors.Is(readErr, io.EOF) {
			return nil, &CorpusReadError{Line: lineNo + 1, Err: readErr}
		}
		if raw != "" {
			lineNo++
			if lineNo%cancelCheckInterval == 0 {
				if err := ctx.Err(); err != nil {
					return nil, err
				}
			}
			if line := strings.TrimSpace(raw); line != "" {
				scanned++
				for _, ref := range dict.matches(line) {
					lines[ref] = append(lines[ref], line)
				}
			}
		}
		if readErr != nil {
			break
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries := make([]model.MatchEntry, len(dict.refs))
	for i, ref := range dict.refs {
		entries[i] = model.MatchEntry{Reference: ref, Lines: lines[i]}
	}
	report := model.NewMatchReport(entries, scanned, time.Since(start))

	e.logger.Info("parsing completed",
		"references", len(dict.refs),
		"matched", report.MatchedCount(),
		"lines", scanned,
		"elapsed", report.Elapsed)

	return report, nil
}

// ParseFiles loads references from referencesPath and scans the corpus file
// at corpusPath. Missing files are a *ConfigurationError.
func (e *Engine) ParseFiles(ctx context.Context, referencesPath, corpusPath string) (*model.MatchReport, error) {
	refs, err := LoadReferences(referencesPath)
	if err != nil {
		return nil, err
	}
	return e.ParseFile(ctx, refs, corpusPath)
}

// ParseFile scans the corpus file at corpusPath for references.
func (e *Engine) ParseFile(ctx context.Context, references []string, corpusPath string) (*model.MatchReport, error) {
	f, err := os.Open(corpusPath) //nolint:gosec // operator-supplied path
	if err != nil {
		cause := err
		if errors.Is(err, fs.ErrNotExist) {
			cause = ErrNoCorpus
		}
		return nil, &ConfigurationError{Input: "corpus", Path: corpusPath, Err: cause}
	}
	defer f.Close()

	report, err := e.Parse(ctx, references, f)
	if err != nil {
		return nil, fmt.Errorf("failed to match %s: %w", corpusPath, err)
	}
	return report, nil
}
