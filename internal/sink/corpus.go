package sink

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/nao1215/onionleak/internal/model"
)

// ErrClosed is returned when writing to a closed corpus.
var ErrClosed = errors.New("corpus is closed")

// Corpus appends cleaned page text to a file. Each page is followed by a
// blank line so pages stay separated. Existing content is never truncated.
//
// Corpus is safe for concurrent use.
type Corpus struct {
	mu    sync.Mutex
	path  string
	file  *os.File
	pages int
}

// OpenCorpus opens path for appending, creating it and its parent
// directory if needed.
func OpenCorpus(path string) (*Corpus, error) {
	if path == "" {
		return nil, errors.New("corpus path is empty")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create corpus directory: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600) //nolint:gosec // operator-supplied path
	if err != nil {
		return nil, fmt.Errorf("failed to open corpus: %w", err)
	}
	return &Corpus{path: path, file: f}, nil
}

// Path returns the corpus file path.
func (c *Corpus) Path() string {
	return c.path
}

// Append writes text followed by a blank line. Blank text is ignored.
func (c *Corpus) Append(text string) error {
	text = strings.TrimRight(text, "\r\n\t ")
	if strings.TrimSpace(text) == "" {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.file == nil {
		return ErrClosed
	}
	if _, err := c.file.WriteString(text + "\n\n"); err != nil {
		return fmt.Errorf("failed to append to corpus %s: %w", c.path, err)
	}
	c.pages++
	return nil
}

// AppendResult appends the text of a successful fetch.
// Results with any other status are ignored.
func (c *Corpus) AppendResult(result *model.FetchResult) error {
	if result == nil || !result.Succeeded() {
		return nil
	}
	return c.Append(result.Text)
}

// Pages returns how many pages were appended since the corpus was opened.
func (c *Corpus) Pages() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pages
}

// Close flushes and closes the file. Closing twice is a no-op.
func (c *Corpus) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.file == nil {
		return nil
	}
	err := c.file.Close()
	c.file = nil
	return err
}
