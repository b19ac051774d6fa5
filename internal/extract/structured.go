package extract

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/sells-group/address-scraper/internal/model"
)

// addressStringFields hold a complete address as a single string.
var addressStringFields = []string{"formatted_address", "full_address", "address"}

// postalKeys mark an object as a schema.org PostalAddress-like value.
var postalKeys = []string{"streetAddress", "addressLocality", "addressRegion", "postalCode"}

// Listing fields read from the object that holds an address.
var (
	nameFields    = []string{"title", "name"}
	phoneFields   = []string{"phone", "phone_number", "telephone"}
	websiteFields = []string{"website", "website_url", "url"}
)

// jsonWalker visits decoded JSON in a fixed order (arrays by index,
// object keys sorted) and emits address strings together with the
// listing metadata of the nearest enclosing record.
type jsonWalker struct {
	emit func(text string, l *model.Listing)
	// strings holds every string leaf in visit order, used by the pattern
	// fallback when no field matched.
	strings []string
}

func (w *jsonWalker) walkBytes(b []byte) bool {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return false
	}
	w.visit(v, nil)
	return true
}

func (w *jsonWalker) visit(v any, parent *model.Listing) {
	switch t := v.(type) {
	case []any:
		for _, e := range t {
			w.visit(e, parent)
		}
	case map[string]any:
		w.visitObject(t, parent)
	case string:
		w.strings = append(w.strings, t)
	}
}

func (w *jsonWalker) visitObject(obj map[string]any, parent *model.Listing) {
	l := listingOf(obj)
	if l == nil {
		l = parent
	}

	if isPostalAddress(obj) {
		if s := composePostal(obj); s != "" {
			w.emit(s, l)
		}
		return
	}

	for _, k := range addressStringFields {
		if s, ok := obj[k].(string); ok {
			w.emit(s, l)
		}
	}

	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		w.visit(obj[k], l)
	}
}

// listingOf reads business metadata off obj, or nil when it has none.
func listingOf(obj map[string]any) *model.Listing {
	l := &model.Listing{
		Name:  firstString(obj, nameFields...),
		Phone: firstString(obj, phoneFields...),
	}
	for _, k := range websiteFields {
		if s := firstString(obj, k); isWebURL(s) {
			l.Website = s
			break
		}
	}
	if l.Empty() {
		return nil
	}
	return l
}

func isWebURL(s string) bool {
	lower := strings.ToLower(s)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

func isPostalAddress(obj map[string]any) bool {
	if t, ok := obj["@type"].(string); ok && strings.EqualFold(t, "PostalAddress") {
		return true
	}
	for _, k := range postalKeys {
		if _, ok := obj[k]; ok {
			return true
		}
	}
	return false
}

// composePostal joins the parts of a PostalAddress object in postal order.
func composePostal(obj map[string]any) string {
	parts := []string{
		firstString(obj, "streetAddress"),
		firstString(obj, "addressLocality", "locality"),
		firstString(obj, "addressRegion", "region"),
		firstString(obj, "postalCode"),
		countryName(obj["addressCountry"]),
	}
	var kept []string
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, ", ")
}

func firstString(obj map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := obj[k].(string); ok {
			if s = strings.TrimSpace(s); s != "" {
				return s
			}
		}
	}
	return ""
}

// countryName accepts either a plain string or a schema.org Country object.
func countryName(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case map[string]any:
		return firstString(t, "name")
	}
	return ""
}

// extractJSONLD reads every ld+json script block. Malformed blocks are
// skipped.
func extractJSONLD(c *collector, doc *goquery.Document) {
	w := &jsonWalker{emit: c.addStructured}
	doc.Find("script").Each(func(_ int, s *goquery.Selection) {
		typ, _ := s.Attr("type")
		if !strings.Contains(strings.ToLower(typ), "ld+json") {
			return
		}
		w.walkBytes([]byte(s.Text()))
	})
}
