package extract

import (
	"strings"

	"github.com/sells-group/address-scraper/internal/model"
	"github.com/sells-group/address-scraper/pkg/scrapingdog"
)

// Listings returns the businesses named by a successful maps result, in
// payload order. Website is kept only when it is an http(s) URL; places
// without a name or website are dropped since nothing can be followed.
func Listings(r model.ScrapeResult) []model.Listing {
	if !r.OK() || r.Kind != model.RequestKindMaps {
		return nil
	}
	places, err := scrapingdog.DecodePlaces(r.Content)
	if err != nil {
		return nil
	}

	var out []model.Listing
	for _, p := range places {
		l := model.Listing{
			Name:  strings.TrimSpace(p.Title),
			Phone: strings.TrimSpace(p.Phone),
		}
		if l.Name == "" {
			l.Name = strings.TrimSpace(p.Name)
		}
		if site := strings.TrimSpace(p.Site()); isWebURL(site) {
			l.Website = site
		}
		if l.Name == "" && l.Website == "" {
			continue
		}
		out = append(out, l)
	}
	return out
}
