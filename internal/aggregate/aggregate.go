// Package aggregate merges normalized addresses across sources into a
// single report.
package aggregate

import (
	"slices"

	"github.com/sells-group/address-scraper/internal/model"
)

// noAddressDetail explains a ParseFailure for a source that yielded no
// candidates at all.
const noAddressDetail = "no address found in content"

// Outcome is the normalization result of one candidate: either Address
// or Err is set.
type Outcome struct {
	SourceID string
	Text     string
	Address  *model.NormalizedAddress
	Err      error
}

// Aggregate builds the report for one run. results must hold every
// request's result; outcomes must be in source-then-candidate order.
//
// Addresses are merged by canonical string in first-seen order, unioning
// their sources. Every source lands in exactly one of two places: the
// source set of some address, or the failure manifest. A successful
// source that contributed nothing is recorded as ParseFailure. Parse
// failures of sources that did contribute go to Rejected instead.
func Aggregate(outcomes []Outcome, results []model.ScrapeResult) model.PipelineReport {
	ok := make(map[string]bool, len(results))
	sources := make([]string, 0, len(results))
	for _, r := range results {
		sources = append(sources, r.SourceID)
		if r.OK() {
			ok[r.SourceID] = true
		}
	}

	addresses := make([]model.NormalizedAddress, 0)
	byCanonical := make(map[string]int)
	contributed := make(map[string]bool)
	firstErr := make(map[string]string)
	var candidates int
	for _, o := range outcomes {
		if !ok[o.SourceID] {
			continue
		}
		candidates++
		if o.Address == nil {
			if _, seen := firstErr[o.SourceID]; !seen {
				firstErr[o.SourceID] = errDetail(o.Err)
			}
			continue
		}

		contributed[o.SourceID] = true
		if i, seen := byCanonical[o.Address.Canonical]; seen {
			merge(&addresses[i], *o.Address, o.SourceID)
			continue
		}
		a := *o.Address
		a.Sources = []string{o.SourceID}
		byCanonical[a.Canonical] = len(addresses)
		addresses = append(addresses, a)
	}

	failures := make([]model.Failure, 0)
	for _, r := range results {
		switch {
		case !r.OK():
			failures = append(failures, model.Failure{SourceID: r.SourceID, Kind: r.ErrKind, Detail: r.Err})
		case !contributed[r.SourceID]:
			detail, seen := firstErr[r.SourceID]
			if !seen {
				detail = noAddressDetail
			}
			failures = append(failures, model.Failure{SourceID: r.SourceID, Kind: model.ErrParseFailure, Detail: detail})
		}
	}

	var rejected []model.Rejection
	for _, o := range outcomes {
		if o.Address == nil && contributed[o.SourceID] {
			rejected = append(rejected, model.Rejection{SourceID: o.SourceID, Text: o.Text, Detail: errDetail(o.Err)})
		}
	}

	succeeded := len(ok)
	return model.PipelineReport{
		Addresses: addresses,
		Failures:  failures,
		Rejected:  rejected,
		Sources:   sources,
		Counts: model.ReportCounts{
			Requested:  len(results),
			Succeeded:  succeeded,
			Failed:     len(failures),
			Candidates: candidates,
			Addresses:  len(addresses),
			Rejected:   len(rejected),
		},
	}
}

func merge(dst *model.NormalizedAddress, src model.NormalizedAddress, sourceID string) {
	if !slices.Contains(dst.Sources, sourceID) {
		dst.Sources = append(dst.Sources, sourceID)
	}
	if src.Confidence > dst.Confidence {
		dst.Confidence = src.Confidence
	}
	if dst.Coordinates == nil && src.Coordinates != nil {
		c := *src.Coordinates
		dst.Coordinates = &c
	}
	dst.Listing = mergeListing(dst.Listing, src.Listing)
}

// mergeListing fills fields missing from dst with those of src. dst is
// copied before it is changed since candidates of one record share it.
func mergeListing(dst, src *model.Listing) *model.Listing {
	if src.Empty() {
		return dst
	}
	if dst == nil {
		l := *src
		return &l
	}
	out := *dst
	if out.Name == "" {
		out.Name = src.Name
	}
	if out.Phone == "" {
		out.Phone = src.Phone
	}
	if out.Website == "" {
		out.Website = src.Website
	}
	return &out
}

func errDetail(err error) string {
	if err == nil {
		return "unparseable candidate"
	}
	return err.Error()
}
