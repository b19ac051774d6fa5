package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/sells-group/address-scraper/internal/model"
)

// extractMarkup collects <address> elements first, then any element whose
// class or id mentions "addr" or that carries itemprop="address". An
// element nested inside another match is skipped: its text is already
// part of the outer candidate.
func extractMarkup(c *collector, doc *goquery.Document) {
	add := func(s *goquery.Selection) {
		if insideAddress(s) {
			return
		}
		if text := spacedText(s); len(text) > minMarkupLen {
			c.add(text, ConfidenceMarkup, model.LayerMarkup)
		}
	}

	doc.Find("address").Each(func(_ int, s *goquery.Selection) { add(s) })

	doc.Find("*").Each(func(_ int, s *goquery.Selection) {
		if isAddressElement(s) {
			add(s)
		}
	})
}

// insideAddress reports whether any ancestor of s is itself an address
// element.
func insideAddress(s *goquery.Selection) bool {
	return s.Parents().FilterFunction(func(_ int, p *goquery.Selection) bool {
		return goquery.NodeName(p) == "address" || isAddressElement(p)
	}).Length() > 0
}

func isAddressElement(s *goquery.Selection) bool {
	if goquery.NodeName(s) == "address" {
		return false
	}
	cls := strings.ToLower(s.AttrOr("class", ""))
	id := strings.ToLower(s.AttrOr("id", ""))
	itemprop := strings.ToLower(strings.TrimSpace(s.AttrOr("itemprop", "")))
	// "address" contains "addr", so one check covers both keywords.
	return strings.Contains(cls, "addr") || strings.Contains(id, "addr") || itemprop == "address"
}

// spacedText returns the element's text with a space between text nodes,
// so "<span>1 Main St</span><span>Springfield</span>" does not run together.
func spacedText(s *goquery.Selection) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			b.WriteString(n.Data)
			b.WriteByte(' ')
		case html.ElementNode:
			if n.Data == "script" || n.Data == "style" {
				return
			}
		}
		for ch := n.FirstChild; ch != nil; ch = ch.NextSibling {
			walk(ch)
		}
	}
	for _, n := range s.Nodes {
		walk(n)
	}
	return collapseSpace(b.String())
}

// blockElements end a line of visible text.
var blockElements = map[string]bool{
	"address": true, "article": true, "br": true, "dd": true, "div": true,
	"dt": true, "footer": true, "h1": true, "h2": true, "h3": true,
	"h4": true, "h5": true, "h6": true, "header": true, "li": true,
	"p": true, "section": true, "td": true, "th": true, "tr": true,
}

// textLines splits the visible body text into lines at block boundaries.
func textLines(doc *goquery.Document) []string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			b.WriteString(n.Data)
		case html.ElementNode:
			switch n.Data {
			case "script", "style", "noscript", "head":
				return
			}
		}
		block := n.Type == html.ElementNode && blockElements[n.Data]
		if block {
			b.WriteByte('\n')
		}
		for ch := n.FirstChild; ch != nil; ch = ch.NextSibling {
			walk(ch)
		}
		if block {
			b.WriteByte('\n')
		}
	}
	for _, n := range doc.Nodes {
		walk(n)
	}

	var lines []string
	for _, raw := range strings.Split(b.String(), "\n") {
		if line := collapseSpace(raw); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}
