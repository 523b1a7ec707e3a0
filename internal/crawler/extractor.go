package crawler

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/nao1215/onionleak/internal/model"
)

// ExtractLinks returns the text of the first <title> element and every
// <a href> in document order.
//
// A missing or blank title yields model.NoTitle. Hrefs are kept exactly as
// written and classified by suffix only; relative links are not resolved.
// Malformed markup is parsed best-effort and never produces an error.
func ExtractLinks(rawHTML string) (string, []model.Link) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return model.NoTitle, nil
	}

	title := strings.TrimSpace(doc.Find("title").First().Text())
	if title == "" {
		title = model.NoTitle
	}

	anchors := doc.Find("a[href]")
	links := make([]model.Link, 0, anchors.Length())
	anchors.Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		links = append(links, model.NewLink(href))
	})

	return title, links
}
