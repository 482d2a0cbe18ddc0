package segment

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var whitespaceRun = regexp.MustCompile(`\s+`)

// PlainText strips markup from an HTML body and collapses whitespace.
// Used to derive excerpts for republished items. Falls back to the raw
// input (minus whitespace runs) when the markup does not parse.
func PlainText(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return collapseWhitespace(html)
	}
	doc.Find("script, style, noscript").Remove()
	return collapseWhitespace(doc.Text())
}

// Excerpt returns the first limit runes of the plain text of html, cut at a
// word boundary with an ellipsis when truncated.
func Excerpt(html string, limit int) string {
	text := PlainText(html)
	runes := []rune(text)
	if limit <= 0 || len(runes) <= limit {
		return text
	}

	cut := string(runes[:limit])
	if idx := strings.LastIndexByte(cut, ' '); idx > 0 {
		cut = cut[:idx]
	}
	return strings.TrimRight(cut, " .,;:") + "…"
}

func collapseWhitespace(s string) string {
	return strings.TrimSpace(whitespaceRun.ReplaceAllString(s, " "))
}
