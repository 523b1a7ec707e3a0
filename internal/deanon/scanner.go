package deanon

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// cancelCheckInterval is how many lines are scanned between context checks.
const cancelCheckInterval = 1024

// Identifier is a value found in the corpus.
type Identifier struct {
	// Kind names what the value is, e.g. "email" or "bitcoin".
	Kind string `json:"kind"`

	// Value is the normalized value.
	Value string `json:"value"`

	// Count is how many times the value occurs.
	Count int `json:"count"`

	// FirstLine is the 1-based corpus line of the first occurrence.
	FirstLine int `json:"first_line"`
}

// Detector finds one family of identifiers in a line of text.
//
// Design decision: We use an interface rather than a table of regular
// expressions because some detectors normalize what they find (e-mail
// addresses are lowercased, profile URLs are reduced to the handle).
type Detector interface {
	// Name returns the detector's name for logging.
	Name() string

	// Detect returns the identifiers found in line, in line order.
	// Count and FirstLine are filled in by the Scanner.
	Detect(line string) []Identifier
}

// Scanner runs detectors over a corpus.
type Scanner struct {
	detectors []Detector
	logger    *slog.Logger
}

// Option configures a Scanner.
type Option func(*Scanner)

// WithLogger sets the logger used for run statistics.
func WithLogger(l *slog.Logger) Option {
	return func(s *Scanner) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithDetectors replaces the built-in detectors.
func WithDetectors(detectors ...Detector) Option {
	return func(s *Scanner) {
		s.detectors = detectors
	}
}

// NewScanner creates a Scanner with the e-mail, cryptocurrency and social
// profile detectors registered.
func NewScanner(opts ...Option) *Scanner {
	s := &Scanner{
		detectors: []Detector{
			NewEmailDetector(),
			NewCryptoDetector(),
			NewSocialDetector(),
		},
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register adds a detector.
func (s *Scanner) Register(d Detector) {
	s.detectors = append(s.detectors, d)
}

// Detectors returns the names of the registered detectors.
func (s *Scanner) Detectors() []string {
	names := make([]string, 0, len(s.detectors))
	for _, d := range s.detectors {
		names = append(names, d.Name())
	}
	return names
}

// Scan reads r line by line and returns every distinct identifier in
// order of first occurrence. The same value found by two detectors is
// reported once per kind.
func (s *Scanner) Scan(ctx context.Context, r io.Reader) ([]Identifier, error) {
	// Lines are unbounded: one block element of a page becomes one line.
	br := bufio.NewReader(r)

	index := make(map[string]int)
	var found []Identifier

	lineNo := 0
	for {
		raw, readErr := br.ReadString('\n')
		if readErr != nil && !errors.Is(readErr, io.EOF) {
			return nil, fmt.Errorf("failed to read corpus at line %d: %w", lineNo+1, readErr)
		}
		if raw != "" {
			lineNo++
			if lineNo%cancelCheckInterval == 0 {
				if err := ctx.Err(); err != nil {
					return nil, err
				}
			}
			if line := strings.TrimSpace(raw); line != "" {
				for _, d := range s.detectors {
					for _, id := range d.Detect(line) {
						key := id.Kind + "\x00" + id.Value
						if i, ok := index[key]; ok {
							found[i].Count++
							continue
						}
						id.Count = 1
						id.FirstLine = lineNo
						index[key] = len(found)
						found = append(found, id)
					}
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

	s.logger.Info("identifier scan completed", "lines", lineNo, "identifiers", len(found))
	return found, nil
}

// ScanFile scans the corpus file at path.
func (s *Scanner) ScanFile(ctx context.Context, path string) ([]Identifier, error) {
	f, err := os.Open(path) //nolint:gosec // operator-supplied path
	if err != nil {
		return nil, fmt.Errorf("failed to open corpus: %w", err)
	}
	defer f.Close()

	return s.Scan(ctx, f)
}

// Values returns the identifier values, e.g. to extend a reference list.
func Values(ids []Identifier) []string {
	values := make([]string, 0, len(ids))
	for _, id := range ids {
		values = append(values, id.Value)
	}
	return values
}
