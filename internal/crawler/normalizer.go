package crawler

import (
	"bytes"
	"io"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
	"golang.org/x/net/html/charset"
)

// skippedElements never contribute text.
var skippedElements = map[atom.Atom]bool{
	atom.Script:   true,
	atom.Style:    true,
	atom.Noscript: true,
	atom.Template: true,
	atom.Iframe:   true,
	atom.Object:   true,
	atom.Svg:      true,
}

// blockElements start and end a line of output.
var blockElements = map[atom.Atom]bool{
	atom.Address: true, atom.Article: true, atom.Aside: true,
	atom.Blockquote: true, atom.Body: true, atom.Caption: true,
	atom.Dd: true, atom.Details: true, atom.Dialog: true, atom.Div: true,
	atom.Dl: true, atom.Dt: true, atom.Fieldset: true, atom.Figcaption: true,
	atom.Figure: true, atom.Footer: true, atom.Form: true, atom.H1: true,
	atom.H2: true, atom.H3: true, atom.H4: true, atom.H5: true, atom.H6: true,
	atom.Head: true, atom.Header: true, atom.Hr: true, atom.Html: true,
	atom.Li: true, atom.Main: true, atom.Nav: true, atom.Ol: true,
	atom.Option: true, atom.P: true, atom.Pre: true, atom.Section: true,
	atom.Summary: true, atom.Table: true, atom.Tbody: true, atom.Tfoot: true,
	atom.Thead: true, atom.Title: true, atom.Tr: true, atom.Ul: true,
}

// cellElements are separated by a space within their row.
var cellElements = map[atom.Atom]bool{
	atom.Td: true,
	atom.Th: true,
}

// CleanText strips markup from rawHTML and returns plain text with one line
// per block-level element. Runs of whitespace inside a line collapse to a
// single space and no line is empty. If the markup cannot be parsed, rawHTML
// is returned unchanged.
func CleanText(rawHTML string) string {
	doc, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return rawHTML
	}

	w := &textWriter{}
	w.walk(doc)
	return w.String()
}

// textWriter accumulates normalized text while walking a parse tree.
type textWriter struct {
	b            strings.Builder
	lineHasText  bool
	pendingSpace bool
	pendingBreak bool
	preDepth     int
}

func (w *textWriter) String() string {
	return w.b.String()
}

func (w *textWriter) walk(n *html.Node) {
	switch n.Type {
	case html.TextNode:
		if w.preDepth > 0 {
			w.writePre(n.Data)
		} else {
			w.writeText(n.Data)
		}
		return
	case html.ElementNode:
		if skippedElements[n.DataAtom] {
			return
		}
		switch {
		case n.DataAtom == atom.Br:
			w.breakLine()
			return
		case blockElements[n.DataAtom]:
			w.breakLine()
			defer w.breakLine()
		case cellElements[n.DataAtom]:
			w.space()
			defer w.space()
		}
		if n.DataAtom == atom.Pre {
			w.preDepth++
			defer func() { w.preDepth-- }()
		}
	case html.CommentNode, html.DoctypeNode:
		return
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		w.walk(c)
	}
}

// writeText appends s with its whitespace collapsed.
func (w *textWriter) writeText(s string) {
	words := strings.Fields(s)
	if len(words) == 0 {
		if s != "" {
			w.space()
		}
		return
	}
	if startsWithSpace(s) {
		w.space()
	}
	w.emit(strings.Join(words, " "))
	if endsWithSpace(s) {
		w.space()
	}
}

// writePre appends preformatted text, keeping its line structure.
func (w *textWriter) writePre(s string) {
	for i, line := range strings.Split(s, "\n") {
		if i > 0 {
			w.breakLine()
		}
		w.writeText(line)
	}
}

// emit writes a non-empty run of text, flushing any pending separator.
func (w *textWriter) emit(s string) {
	switch {
	case w.pendingBreak:
		w.b.WriteByte('\n')
	case w.pendingSpace && w.lineHasText:
		w.b.WriteByte(' ')
	}
	w.pendingBreak = false
	w.pendingSpace = false
	w.b.WriteString(s)
	w.lineHasText = true
}

func (w *textWriter) space() {
	if w.lineHasText {
		w.pendingSpace = true
	}
}

func (w *textWriter) breakLine() {
	if w.lineHasText {
		w.pendingBreak = true
		w.lineHasText = false
		w.pendingSpace = false
	}
}

func startsWithSpace(s string) bool {
	return len(s) > 0 && strings.TrimLeft(s[:1], " \t\r\n\f") == ""
}

func endsWithSpace(s string) bool {
	return len(s) > 0 && strings.TrimRight(s[len(s)-1:], " \t\r\n\f") == ""
}

// DecodeBody converts a response body to UTF-8 using the charset from
// contentType, a <meta> declaration, or content sniffing, in that order.
// Bodies that cannot be decoded are returned as-is.
func DecodeBody(body []byte, contentType string) string {
	r, err := charset.NewReader(bytes.NewReader(body), contentType)
	if err != nil {
		return string(body)
	}
	out, err := io.ReadAll(r)
	if err != nil {
		return string(body)
	}
	return string(out)
}
