package log

import (
	"regexp"
	"slices"
	"strings"
	"sync"
)

// minRedactLength is the shortest value the redactor accepts. Shorter
// values would mask common words and numbers all over the log.
const minRedactLength = 3

// Redactor masks registered values inside arbitrary strings, ignoring case.
// It is safe for concurrent use.
type Redactor struct {
	mu      sync.RWMutex
	values  []string
	pattern *regexp.Regexp
}

// NewRedactor creates a redactor with the given initial values.
func NewRedactor(values ...string) *Redactor {
	r := &Redactor{}
	r.Add(values...)
	return r
}

// Add registers more values. Blank and very short values are ignored.
func (r *Redactor) Add(values ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	changed := false
	for _, v := range values {
		v = strings.TrimSpace(v)
		if len([]rune(v)) < minRedactLength {
			continue
		}
		lowered := strings.ToLower(v)
		if slices.Contains(r.values, lowered) {
			continue
		}
		r.values = append(r.values, lowered)
		changed = true
	}
	if !changed {
		return
	}

	// Longest first so a value is not half-masked by one of its substrings.
	sorted := slices.Clone(r.values)
	slices.SortFunc(sorted, func(a, b string) int { return len(b) - len(a) })
	quoted := make([]string, len(sorted))
	for i, v := range sorted {
		quoted[i] = regexp.QuoteMeta(v)
	}
	r.pattern = regexp.MustCompile(`(?i)(?:` + strings.Join(quoted, "|") + `)`)
}

// Len returns the number of registered values.
func (r *Redactor) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.values)
}

// Redact replaces every occurrence of a registered value in s with MaskValue.
func (r *Redactor) Redact(s string) string {
	r.mu.RLock()
	pattern := r.pattern
	r.mu.RUnlock()

	if pattern == nil || s == "" {
		return s
	}
	return pattern.ReplaceAllLiteralString(s, MaskValue)
}
