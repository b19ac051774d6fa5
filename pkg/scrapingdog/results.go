package scrapingdog

import (
	"encoding/json"

	"github.com/rotisserie/eris"
)

// Place is one Google Maps result.
type Place struct {
	Title            string `json:"title"`
	Name             string `json:"name"`
	Address          string `json:"address"`
	FormattedAddress string `json:"formatted_address"`
	Website          string `json:"website"`
	WebsiteURL       string `json:"website_url"`
	Phone            string `json:"phone"`
	GPS              struct {
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
	} `json:"gps_coordinates"`
}

// Site returns the first non-empty website field.
func (p Place) Site() string {
	if p.Website != "" {
		return p.Website
	}
	return p.WebsiteURL
}

// OrganicResult is one Google organic search result.
type OrganicResult struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	Snippet string `json:"snippet"`
}

// DecodePlaces reads a Maps payload. The endpoint answers with a bare list,
// an object holding search_results, or a single place object.
func DecodePlaces(body []byte) ([]Place, error) {
	var list []Place
	if err := json.Unmarshal(body, &list); err == nil {
		return list, nil
	}

	var wrapped struct {
		SearchResults []Place `json:"search_results"`
	}
	if err := json.Unmarshal(body, &wrapped); err != nil {
		return nil, eris.Wrap(err, "scrapingdog: decode maps payload")
	}
	if len(wrapped.SearchResults) > 0 {
		return wrapped.SearchResults, nil
	}

	var single Place
	if err := json.Unmarshal(body, &single); err != nil {
		return nil, eris.Wrap(err, "scrapingdog: decode maps place")
	}
	if single.Name != "" || single.Title != "" || single.FormattedAddress != "" || single.Address != "" {
		return []Place{single}, nil
	}
	return nil, nil
}

// DecodeOrganic reads a Google search payload.
func DecodeOrganic(body []byte) ([]OrganicResult, error) {
	var payload struct {
		OrganicResults []OrganicResult `json:"organic_results"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, eris.Wrap(err, "scrapingdog: decode search payload")
	}
	return payload.OrganicResults, nil
}
