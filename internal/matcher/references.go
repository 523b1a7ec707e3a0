package matcher

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"
)

// maxReferenceLine is the longest reference line accepted.
const maxReferenceLine = 64 * 1024

// LoadReferences reads a reference file: one value per line, surrounding
// whitespace trimmed, blank lines skipped, later duplicates dropped.
// A missing or unreadable file is a *ConfigurationError.
func LoadReferences(path string) ([]string, error) {
	f, err := os.Open(path) //nolint:gosec // operator-supplied path
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &ConfigurationError{Input: "references", Path: path, Err: ErrNoReferences}
		}
		return nil, &ConfigurationError{Input: "references", Path: path, Err: err}
	}
	defer f.Close()

	refs, err := ReadReferences(f)
	if err != nil {
		return nil, &ConfigurationError{Input: "references", Path: path, Err: err}
	}
	return refs, nil
}

// ReadReferences parses references from r with the same rules as
// LoadReferences. The result is never nil.
func ReadReferences(r io.Reader) ([]string, error) {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, 4096), maxReferenceLine)

	refs := make([]string, 0)
	for s.Scan() {
		refs = append(refs, strings.TrimSpace(s.Text()))
	}
	if err := s.Err(); err != nil {
		return nil, fmt.Errorf("failed to read references: %w", err)
	}
	return uniqueReferences(refs, true), nil
}

// uniqueReferences keeps the first occurrence of every value in order.
// With skipEmpty, empty strings are dropped.
func uniqueReferences(refs []string, skipEmpty bool) []string {
	seen := make(map[string]struct{}, len(refs))
	out := make([]string, 0, len(refs))
	for _, r := range refs {
		if skipEmpty && r == "" {
			continue
		}
		if _, ok := seen[r]; ok {
			continue
		}
		seen[r] = struct{}{}
		out = append(out, r)
	}
	return out
}
