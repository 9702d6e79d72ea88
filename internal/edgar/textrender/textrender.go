// Package textrender renders an HTML or XML filing document to plain
// text, with an XBRL-aware extraction path for documents that embed
// inline XBRL fact tags instead of plain narrative markup.
package textrender

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// xbrlFieldTag matches the element-name families the reference renderer
// pulls text out of when a document is XBRL-tagged: anything named with
// "text" or "description" (case-insensitive), which covers the common
// "TextBlock" and "*Description" inline-XBRL element families.
var xbrlFieldTag = regexp.MustCompile(`(?i)text|description`)

// Render converts doc to plain text. Documents containing an <xbrl>
// element are rendered through the field-extraction path; everything
// else is rendered by concatenating every text node, one per line.
func Render(doc string) string {
	parsed, err := goquery.NewDocumentFromReader(strings.NewReader(doc))
	if err != nil {
		return ""
	}
	if parsed.Find("xbrl").Length() > 0 {
		return renderXBRL(parsed)
	}
	return renderPlain(parsed)
}

func renderPlain(doc *goquery.Document) string {
	var sb strings.Builder
	for _, n := range doc.Selection.Nodes {
		walkText(n, &sb)
	}
	return sb.String()
}

func walkText(n *html.Node, sb *strings.Builder) {
	if n.Type == html.TextNode {
		if text := strings.TrimSpace(n.Data); text != "" {
			sb.WriteString(text)
			sb.WriteByte('\n')
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walkText(c, sb)
	}
}

func renderXBRL(doc *goquery.Document) string {
	var sb strings.Builder
	doc.Find("*").Each(func(_ int, s *goquery.Selection) {
		if !xbrlFieldTag.MatchString(goquery.NodeName(s)) {
			return
		}
		inner := strings.TrimSpace(s.Text())
		if inner == "" {
			return
		}
		sb.WriteString(inner)
		sb.WriteByte('\n')
	})
	return sb.String()
}
