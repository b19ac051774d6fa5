package pipeline

import (
	"context"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/sells-group/address-scraper/internal/extract"
	"github.com/sells-group/address-scraper/internal/fetch"
	"github.com/sells-group/address-scraper/internal/model"
	"github.com/sells-group/address-scraper/pkg/scrapingdog"
)

// minKeywordLen is the shortest title word used as a relevance keyword.
const minKeywordLen = 3

// follow fetches the websites of the businesses found by maps results.
// A listing's own website is fetched directly. A listing without one is
// searched by title and the first relevant organic link is fetched in a
// second round. Site and search requests of the first round together are
// capped at MaxWebsites, so the second round never exceeds it either.
func (p *Pipeline) follow(ctx context.Context, q model.Query, results []model.ScrapeResult) []model.ScrapeResult {
	f := newFollower(q, p.cfg.MaxWebsites)
	for _, r := range results {
		for _, l := range extract.Listings(r) {
			f.add(l)
		}
	}

	first := f.take()
	if len(first) == 0 {
		return nil
	}
	zap.L().Info("pipeline: following websites",
		zap.Int("sites", f.sites), zap.Int("searches", f.searches))
	out := p.fetcher.FetchAll(ctx, first)

	f.fromSearches(out)
	if second := f.take(); len(second) > 0 {
		zap.L().Info("pipeline: following search results", zap.Int("sites", len(second)))
		out = append(out, p.fetcher.FetchAll(ctx, second)...)
	}
	return out
}

// follower numbers and deduplicates follow-up requests across rounds.
type follower struct {
	limit    int
	keywords []string
	seen     map[string]bool
	searched map[string]bool
	titles   map[string]string
	sites    int
	searches int
	pending  []model.ScrapeRequest
}

func newFollower(q model.Query, limit int) *follower {
	f := &follower{
		limit:    limit,
		seen:     make(map[string]bool),
		searched: make(map[string]bool),
		titles:   make(map[string]string),
	}
	for _, k := range q.Keywords {
		if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
			f.keywords = append(f.keywords, k)
		}
	}
	queried, _ := fetch.DedupeURLs(q.URLs)
	for _, u := range queried {
		f.seen[u.Key] = true
	}
	return f
}

func (f *follower) full() bool {
	return f.limit > 0 && f.sites+f.searches >= f.limit
}

func (f *follower) add(l model.Listing) {
	if f.full() {
		return
	}
	if l.Website != "" {
		f.site(l.Website)
		return
	}
	title := strings.TrimSpace(l.Name)
	key := strings.ToLower(title)
	if title == "" || f.searched[key] {
		return
	}
	f.searched[key] = true
	f.searches++
	id := fmt.Sprintf("search-%d", f.searches)
	f.titles[id] = title
	f.pending = append(f.pending, model.ScrapeRequest{
		ID:     id,
		Kind:   model.RequestKindSearch,
		Target: title,
	})
}

// site queues a page request for raw unless its key was already seen. It
// reports whether raw is a usable URL.
func (f *follower) site(raw string) bool {
	u, err := fetch.ParsePageURL(raw)
	if err != nil {
		return false
	}
	if f.seen[u.Key] {
		return true
	}
	f.seen[u.Key] = true
	f.sites++
	f.pending = append(f.pending, model.ScrapeRequest{
		ID:     fmt.Sprintf("site-%d", f.sites),
		Kind:   model.RequestKindPage,
		Target: u.Raw,
	})
	return true
}

// fromSearches queues the first relevant organic link of every successful
// search result.
func (f *follower) fromSearches(results []model.ScrapeResult) {
	for _, r := range results {
		title, ok := f.titles[r.SourceID]
		if !ok || !r.OK() {
			continue
		}
		organic, err := scrapingdog.DecodeOrganic(r.Content)
		if err != nil {
			zap.L().Debug("pipeline: undecodable search payload",
				zap.String("source", r.SourceID), zap.Error(err))
			continue
		}
		keywords := f.keywords
		if len(keywords) == 0 {
			keywords = titleKeywords(title)
		}
		for _, o := range organic {
			if relevant(o, keywords) && f.site(o.Link) {
				break
			}
		}
	}
}

func (f *follower) take() []model.ScrapeRequest {
	out := f.pending
	f.pending = nil
	return out
}

// relevant reports whether any keyword appears in the result's title or
// snippet. No keywords means every result is relevant.
func relevant(o scrapingdog.OrganicResult, keywords []string) bool {
	if len(keywords) == 0 {
		return true
	}
	text := strings.ToLower(o.Title + " " + o.Snippet)
	for _, k := range keywords {
		if strings.Contains(text, k) {
			return true
		}
	}
	return false
}

// titleKeywords splits a listing title into lower-case words long enough
// to identify it.
func titleKeywords(title string) []string {
	words := strings.FieldsFunc(strings.ToLower(title), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	var out []string
	for _, w := range words {
		if utf8.RuneCountInString(w) >= minKeywordLen {
			out = append(out, w)
		}
	}
	return out
}
