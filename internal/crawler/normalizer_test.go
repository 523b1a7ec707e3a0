package crawler

import (
	"strings"
	"testing"
)

func TestCleanText(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "paragraphs become lines",
			input: `<html><body><p>First   line</p><p>Second line</p></body></html>`,
			want:  "First line\nSecond line",
		},
		{
			name:  "inline elements stay on the line",
			input: `<p>Contact <b>alice@mail.com</b> or <a href="#">Bob</a>.</p>`,
			want:  "Contact alice@mail.com or Bob.",
		},
		{
			name:  "adjacent inline text is not split",
			input: `<p>555-<span>1234</span></p>`,
			want:  "555-1234",
		},
		{
			name:  "script style and noscript are dropped",
			input: `<head><style>p{color:red}</style><script>var leak="x@y.z";</script></head><body><noscript>enable js</noscript><div>visible</div></body>`,
			want:  "visible",
		},
		{
			name:  "title is its own line",
			input: `<html><head><title>Market</title></head><body><div>Listing</div></body></html>`,
			want:  "Market\nListing",
		},
		{
			name:  "br breaks lines",
			input: `<div>one<br>two<br/>three</div>`,
			want:  "one\ntwo\nthree",
		},
		{
			name:  "table cells are spaced and rows are lines",
			input: `<table><tr><td>name</td><td>alice</td></tr><tr><td>phone</td><td>555-1234</td></tr></table>`,
			want:  "name alice\nphone 555-1234",
		},
		{
			name:  "preformatted text keeps its lines",
			input: "<pre>user: alice\npass:   hunter2\n</pre>",
			want:  "user: alice\npass: hunter2",
		},
		{
			name:  "nested blocks produce no empty lines",
			input: `<div><div><p>a</p></div></div><div></div><ul><li>b</li><li>c</li></ul>`,
			want:  "a\nb\nc",
		},
		{
			name:  "comments are dropped",
			input: `<p>kept<!-- secret --></p>`,
			want:  "kept",
		},
		{
			name:  "plain text passes through",
			input: "just some text",
			want:  "just some text",
		},
		{
			name:  "empty input",
			input: "",
			want:  "",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			if got := CleanText(tc.input); got != tc.want {
				t.Errorf("CleanText() = %q, expected %q", got, tc.want)
			}
		})
	}
}

func TestCleanTextLinesAreTrimmed(t *testing.T) {
	t.Parallel()

	got := CleanText("<div>\n   padded   \n</div><p>\tx\t</p>")
	for _, line := range strings.Split(got, "\n") {
		if line != strings.TrimSpace(line) || line == "" {
			t.Errorf("line %q is empty or has surrounding whitespace", line)
		}
	}
}

func TestDecodeBody(t *testing.T) {
	t.Parallel()

	t.Run("utf-8 passes through", func(t *testing.T) {
		t.Parallel()

		if got := DecodeBody([]byte("héllo"), "text/html; charset=utf-8"); got != "héllo" {
			t.Errorf("got %q", got)
		}
	})

	t.Run("latin-1 from content type", func(t *testing.T) {
		t.Parallel()

		// "café" in ISO-8859-1.
		body := []byte{'c', 'a', 'f', 0xe9}
		if got := DecodeBody(body, "text/html; charset=iso-8859-1"); got != "café" {
			t.Errorf("got %q, expected %q", got, "café")
		}
	})

	t.Run("charset from meta tag", func(t *testing.T) {
		t.Parallel()

		body := append([]byte(`<meta charset="windows-1252"><p>`), 0x80)
		if got := DecodeBody(body, "text/html"); !strings.Contains(got, "€") {
			t.Errorf("got %q, expected euro sign", got)
		}
	})
}
