package model

import "strings"

// Failure records a source that produced no address.
type Failure struct {
	SourceID string    `json:"source_id"`
	Kind     ErrorKind `json:"kind"`
	Detail   string    `json:"detail,omitempty"`
}

// Rejection records a candidate the parser could not use, from a source
// that still contributed at least one address.
type Rejection struct {
	SourceID string `json:"source_id"`
	Text     string `json:"text"`
	Detail   string `json:"detail,omitempty"`
}

// Warning records a non-fatal enrichment problem for one address.
type Warning struct {
	Canonical string    `json:"canonical"`
	Kind      ErrorKind `json:"kind"`
	Detail    string    `json:"detail,omitempty"`
}

// ReportCounts summarizes a pipeline run.
type ReportCounts struct {
	Requested  int `json:"requested"`
	Succeeded  int `json:"succeeded"`
	Failed     int `json:"failed"`
	Candidates int `json:"candidates"`
	Addresses  int `json:"addresses"`
	Rejected   int `json:"rejected"`
	Geocoded   int `json:"geocoded"`
}

// PipelineReport is the response of one pipeline run.
type PipelineReport struct {
	RunID     string              `json:"run_id,omitempty"`
	Query     Query               `json:"query"`
	Addresses []NormalizedAddress `json:"addresses"`
	Failures  []Failure           `json:"failures"`
	Rejected  []Rejection         `json:"rejected,omitempty"`
	Warnings  []Warning           `json:"warnings,omitempty"`
	Sources   []string            `json:"sources"`
	Counts    ReportCounts        `json:"counts"`
}

// FailedSources returns the set of source IDs in the failure manifest.
func (r *PipelineReport) FailedSources() map[string]ErrorKind {
	out := make(map[string]ErrorKind, len(r.Failures))
	for _, f := range r.Failures {
		out[f.SourceID] = f.Kind
	}
	return out
}

// Query is what a caller asks the pipeline for.
type Query struct {
	Term           string   `json:"term,omitempty" yaml:"term,omitempty"`
	URLs           []string `json:"urls,omitempty" yaml:"urls,omitempty"`
	Pages          int      `json:"pages,omitempty" yaml:"pages,omitempty"`
	FollowWebsites bool     `json:"follow_websites,omitempty" yaml:"follow_websites,omitempty"`
	Location       string   `json:"location,omitempty" yaml:"location,omitempty"`
	// Keywords filter organic results when searching for a listing's
	// website. Empty means the listing title's own words.
	Keywords []string `json:"keywords,omitempty" yaml:"keywords,omitempty"`
}

// Empty reports whether the query names nothing to fetch.
func (q Query) Empty() bool {
	if strings.TrimSpace(q.Term) != "" {
		return false
	}
	for _, u := range q.URLs {
		if strings.TrimSpace(u) != "" {
			return false
		}
	}
	return true
}
