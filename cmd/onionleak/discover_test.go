package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nao1215/onionleak/internal/deanon"
)

func TestDiscoverCommand(t *testing.T) {
	t.Parallel()

	writeCorpus := func(t *testing.T) (string, string) {
		t.Helper()
		dir := t.TempDir()
		corpus := filepath.Join(dir, "text.txt")
		content := "Write to alice@mail.com\n\nor boss@corp.example\nhttps://github.com/alice\nalice@mail.com again\n"
		if err := os.WriteFile(corpus, []byte(content), 0o600); err != nil {
			t.Fatal(err)
		}
		return dir, corpus
	}

	t.Run("prints a table", func(t *testing.T) {
		t.Parallel()

		_, corpus := writeCorpus(t)
		stdout, _, err := runRoot(t, "discover", "--corpus", corpus)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		for _, want := range []string{"Email (free provider)", "alice@mail.com", "boss@corp.example", "Github"} {
			if !strings.Contains(stdout, want) {
				t.Errorf("output missing %q:\n%s", want, stdout)
			}
		}
	})

	t.Run("json output", func(t *testing.T) {
		t.Parallel()

		_, corpus := writeCorpus(t)
		stdout, _, err := runRoot(t, "discover", "--corpus", corpus, "--json")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		var ids []deanon.Identifier
		if err := json.Unmarshal([]byte(stdout), &ids); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if len(ids) != 3 || ids[0].Count != 2 {
			t.Errorf("identifiers = %+v", ids)
		}
	})

	t.Run("appends new references only", func(t *testing.T) {
		t.Parallel()

		dir, corpus := writeCorpus(t)
		refs := filepath.Join(dir, "user_data.txt")
		if err := os.WriteFile(refs, []byte("alice@mail.com\n"), 0o600); err != nil {
			t.Fatal(err)
		}

		stdout, _, err := runRoot(t, "discover", "--corpus", corpus, "--append-references", refs)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(stdout, "2 new references appended") {
			t.Errorf("unexpected summary:\n%s", stdout)
		}

		data, err := os.ReadFile(refs)
		if err != nil {
			t.Fatal(err)
		}
		if string(data) != "alice@mail.com\nboss@corp.example\nalice\n" {
			t.Errorf("reference file = %q", data)
		}
	})

	t.Run("creates a missing reference file", func(t *testing.T) {
		t.Parallel()

		dir, corpus := writeCorpus(t)
		refs := filepath.Join(dir, "new.txt")
		if _, _, err := runRoot(t, "discover", "--corpus", corpus, "--append-references", refs); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, err := os.Stat(refs); err != nil {
			t.Errorf("reference file not created: %v", err)
		}
	})
}
