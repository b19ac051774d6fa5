// Package normalize turns address candidates into labeled components and
// a canonical string using an external parser and expander.
package normalize

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/sells-group/address-scraper/internal/model"
	"github.com/sells-group/address-scraper/pkg/postal"
)

// Policy picks one expansion variant as the canonical string.
type Policy string

const (
	// PolicyShortest picks the shortest variant, then the lexicographically
	// smallest among equals.
	PolicyShortest Policy = "shortest"
	// PolicyFirst picks the first variant the expander returns.
	PolicyFirst Policy = "first"
)

// ValidPolicy reports whether p names a known policy.
func ValidPolicy(p string) bool {
	return Policy(p) == PolicyShortest || Policy(p) == PolicyFirst
}

// ParseFailure means the parser could not resolve a candidate to any
// components. It is a data-quality outcome, not a transient error.
type ParseFailure struct {
	SourceID string
	Text     string
	Err      error
}

func (e *ParseFailure) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("normalize: parse failure for %q: %v", e.Text, e.Err)
	}
	return fmt.Sprintf("normalize: parse failure for %q: no components", e.Text)
}

func (e *ParseFailure) Unwrap() error { return e.Err }

// labelRank orders components when building the canonical string, so
// that "Baker St 221B" and "221B Baker Street" share a key.
var labelRank = func() map[string]int {
	order := []string{
		"house", "category", "near", "house_number", "road", "unit", "level",
		"staircase", "entrance", "po_box", "suburb", "city_district", "city",
		"island", "state_district", "state", "postcode", "country_region",
		"country", "world_region",
	}
	m := make(map[string]int, len(order))
	for i, l := range order {
		m[l] = i
	}
	return m
}()

// Option configures a Normalizer.
type Option func(*Normalizer)

// WithPolicy sets the canonical variant policy. Unknown values are ignored.
func WithPolicy(p Policy) Option {
	return func(n *Normalizer) {
		if ValidPolicy(string(p)) {
			n.policy = p
		}
	}
}

// Normalizer wraps a parser and an expander. It holds no per-call state
// and is safe for concurrent use.
type Normalizer struct {
	parser   postal.Parser
	expander postal.Expander
	policy   Policy
}

// New creates a Normalizer.
func New(parser postal.Parser, expander postal.Expander, opts ...Option) *Normalizer {
	n := &Normalizer{
		parser:   parser,
		expander: expander,
		policy:   PolicyShortest,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Normalize parses and canonicalizes one candidate. It returns a
// *ParseFailure when the parser yields nothing usable.
func (n *Normalizer) Normalize(ctx context.Context, c model.AddressCandidate) (model.NormalizedAddress, error) {
	parsed, err := n.parser.Parse(ctx, c.Text)
	if err != nil {
		return model.NormalizedAddress{}, &ParseFailure{SourceID: c.SourceID, Text: c.Text, Err: eris.Wrap(err, "parse")}
	}

	components := make([]model.Component, 0, len(parsed))
	for _, p := range parsed {
		v := strings.TrimSpace(p.Value)
		if v == "" || p.Label == "" {
			continue
		}
		components = append(components, model.Component{Label: p.Label, Value: v})
	}
	if len(components) == 0 {
		return model.NormalizedAddress{}, &ParseFailure{SourceID: c.SourceID, Text: c.Text}
	}

	return model.NormalizedAddress{
		Components: components,
		Canonical:  n.canonical(ctx, components),
		Sources:    []string{c.SourceID},
		Confidence: c.Confidence,
		Listing:    c.Listing,
	}, nil
}

func (n *Normalizer) canonical(ctx context.Context, components []model.Component) string {
	ordered := orderedText(components)

	variants, err := n.expander.Expand(ctx, ordered)
	if err != nil {
		return clean(ordered)
	}
	if chosen := Choose(variants, n.policy); chosen != "" {
		return clean(chosen)
	}
	return clean(ordered)
}

// orderedText joins component values in taxonomy order. Unknown labels
// keep their parser order after all known ones.
func orderedText(components []model.Component) string {
	sorted := make([]model.Component, len(components))
	copy(sorted, components)
	sort.SliceStable(sorted, func(i, j int) bool {
		return rank(sorted[i].Label) < rank(sorted[j].Label)
	})
	parts := make([]string, len(sorted))
	for i, c := range sorted {
		parts[i] = c.Value
	}
	return strings.Join(parts, " ")
}

func rank(label string) int {
	if r, ok := labelRank[label]; ok {
		return r
	}
	return len(labelRank)
}

// Choose applies policy to a variant list, skipping blank entries. It
// returns "" when nothing is left.
func Choose(variants []string, policy Policy) string {
	best := ""
	for _, v := range variants {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if best == "" {
			best = v
			if policy == PolicyFirst {
				return best
			}
			continue
		}
		if len(v) < len(best) || (len(v) == len(best) && v < best) {
			best = v
		}
	}
	return best
}

// clean applies NFKC, case folding and whitespace collapsing.
func clean(s string) string {
	// cases.Caser is stateful; a fresh one per call keeps Normalize reentrant.
	s = cases.Fold().String(norm.NFKC.String(s))
	return strings.Join(strings.Fields(s), " ")
}
