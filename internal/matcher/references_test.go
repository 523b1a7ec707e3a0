package matcher

import (
	"errors"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func TestReadReferences(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"empty", "", []string{}},
		{"trims and skips blanks", "  a@b.c \n\n\t\n555\n", []string{"a@b.c", "555"}},
		{"first occurrence wins", "x\ny\nx\n y \n", []string{"x", "y"}},
		{"crlf", "one\r\ntwo\r\n", []string{"one", "two"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := ReadReferences(strings.NewReader(tt.input))
			if err != nil {
				t.Fatalf("ReadReferences() error = %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ReadReferences() = %#v, expected %#v", got, tt.want)
			}
		})
	}
}

func TestLoadReferencesMissing(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "missing.txt")
	_, err := LoadReferences(path)

	var cfgErr *ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}
	if cfgErr.Path != path {
		t.Errorf("Path = %q, expected %q", cfgErr.Path, path)
	}
	if !errors.Is(err, ErrNoReferences) {
		t.Errorf("expected ErrNoReferences, got %v", err)
	}
}
