// Package extract harvests address-like text spans from scrape results.
//
// Three layers run in order of trust: structured data (JSON payloads and
// JSON-LD), address markup, and a free-text pattern fallback that only
// runs when the first two found nothing. Output is deterministic for a
// given input.
package extract

import (
	"bytes"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/sells-group/address-scraper/internal/model"
)

// Confidence assigned per layer.
const (
	ConfidenceStructured = 0.9
	ConfidenceMarkup     = 0.7
	ConfidencePattern    = 0.4
)

// minMarkupLen is the shortest markup text kept as a candidate.
const minMarkupLen = 10

// Extractor turns scrape results into address candidates. The zero value
// is ready to use.
type Extractor struct{}

// New returns an Extractor.
func New() *Extractor {
	return &Extractor{}
}

// Extract returns the candidates found in r. Failed results and empty
// content yield nil.
func (e *Extractor) Extract(r model.ScrapeResult) []model.AddressCandidate {
	if !r.OK() {
		return nil
	}
	content := bytes.TrimSpace(r.Content)
	if len(content) == 0 {
		return nil
	}

	c := newCollector(r.SourceID)
	if looksLikeJSON(content) {
		e.extractJSON(c, content)
	} else {
		e.extractHTML(c, content)
	}
	return c.out
}

func (e *Extractor) extractJSON(c *collector, content []byte) {
	w := &jsonWalker{emit: c.addStructured}
	if !w.walkBytes(content) {
		// Not JSON after all.
		e.extractHTML(c, content)
		return
	}
	if len(c.out) > 0 {
		return
	}
	for _, line := range w.strings {
		for _, cand := range matchPatterns(line) {
			c.add(cand, ConfidencePattern, model.LayerPattern)
		}
	}
}

func (e *Extractor) extractHTML(c *collector, content []byte) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(content))
	if err != nil {
		return
	}

	extractJSONLD(c, doc)
	extractMarkup(c, doc)
	if len(c.out) > 0 {
		return
	}
	for _, line := range textLines(doc) {
		for _, cand := range matchPatterns(line) {
			c.add(cand, ConfidencePattern, model.LayerPattern)
		}
	}
}

// collector accumulates candidates for one source, dropping repeated text.
type collector struct {
	sourceID string
	seen     map[string]bool
	out      []model.AddressCandidate
}

func newCollector(sourceID string) *collector {
	return &collector{sourceID: sourceID, seen: make(map[string]bool)}
}

func (c *collector) add(text string, confidence float64, layer string) {
	c.addListed(text, confidence, layer, nil)
}

func (c *collector) addStructured(text string, l *model.Listing) {
	c.addListed(text, ConfidenceStructured, model.LayerStructured, l)
}

func (c *collector) addListed(text string, confidence float64, layer string, l *model.Listing) {
	text = collapseSpace(text)
	text = strings.Trim(text, " ,;|")
	if text == "" || c.seen[text] {
		return
	}
	c.seen[text] = true
	c.out = append(c.out, model.AddressCandidate{
		SourceID:   c.sourceID,
		Text:       text,
		Confidence: confidence,
		Layer:      layer,
		Listing:    l,
	})
}

func looksLikeJSON(b []byte) bool {
	return b[0] == '{' || b[0] == '['
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
