package source

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// MaxHTMLChars bounds the markup of one page sent for extraction
const MaxHTMLChars = 100000

// CleanHTML strips scripts, styles, comments and other non-form markup from
// a page and returns the body, cut to limit bytes on a rune boundary.
func CleanHTML(markup string, limit int) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return "", fmt.Errorf("failed to parse HTML: %w", err)
	}

	doc.Find("script, style, noscript, svg, canvas, template, link, meta").Remove()
	removeComments(doc.Selection)
	doc.Find("*").Each(func(_ int, s *goquery.Selection) {
		s.RemoveAttr("style")
		s.RemoveAttr("class")
	})

	body := doc.Find("body")
	if body.Length() == 0 {
		body = doc.Selection
	}
	out, err := body.Html()
	if err != nil {
		return "", fmt.Errorf("failed to render HTML: %w", err)
	}
	out = collapseBlankLines(out)
	return truncateBytes(out, limit), nil
}

func removeComments(s *goquery.Selection) {
	for _, n := range s.Nodes {
		var walk func(*html.Node)
		walk = func(n *html.Node) {
			for c := n.FirstChild; c != nil; {
				next := c.NextSibling
				if c.Type == html.CommentNode {
					n.RemoveChild(c)
				} else {
					walk(c)
				}
				c = next
			}
		}
		walk(n)
	}
}

func collapseBlankLines(s string) string {
	lines := strings.Split(s, "\n")
	out := lines[:0]
	for _, l := range lines {
		if strings.TrimSpace(l) != "" {
			out = append(out, strings.TrimRight(l, " \t"))
		}
	}
	return strings.Join(out, "\n")
}

func truncateBytes(s string, limit int) string {
	if limit <= 0 || len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
