package model

import (
	"net/http"
	"time"
)

// ErrorKind classifies why a source or candidate did not produce an address.
type ErrorKind string

const (
	// ErrInvalidRequest is a non-retryable client error (malformed query, 4xx).
	ErrInvalidRequest ErrorKind = "InvalidRequest"
	// ErrRateLimited means the scrape API kept answering 429 until retries ran out.
	ErrRateLimited ErrorKind = "RateLimited"
	// ErrUnreachable covers transport failures, timeouts and deadline expiry.
	ErrUnreachable ErrorKind = "Unreachable"
	// ErrParseFailure means the parser could not resolve the text to an address.
	ErrParseFailure ErrorKind = "ParseFailure"
	// ErrGeocodeUnavailable is a non-fatal enrichment failure.
	ErrGeocodeUnavailable ErrorKind = "GeocodeUnavailable"
)

// RequestKind selects which scrape API endpoint serves a request.
type RequestKind string

const (
	RequestKindPage   RequestKind = "page"   // rendered HTML of a URL
	RequestKindMaps   RequestKind = "maps"   // Google Maps results for a term
	RequestKindSearch RequestKind = "search" // Google organic results for a term
)

// ScrapeRequest is one fetch to issue. It is not modified after the
// orchestrator receives it. A nil MaxRetries uses the orchestrator default;
// a pointer to 0 asks for a single attempt.
type ScrapeRequest struct {
	ID         string            `json:"id"`
	Kind       RequestKind       `json:"kind"`
	Target     string            `json:"target"`
	Params     map[string]string `json:"params,omitempty"`
	MaxRetries *int              `json:"max_retries,omitempty"`
	Timeout    time.Duration     `json:"timeout,omitempty"`
}

// ScrapeResult is the outcome of one ScrapeRequest.
type ScrapeResult struct {
	SourceID   string        `json:"source_id"`
	Kind       RequestKind   `json:"kind"`
	StatusCode int           `json:"status_code"`
	Content    []byte        `json:"-"`
	Header     http.Header   `json:"-"`
	ErrKind    ErrorKind     `json:"error_kind,omitempty"`
	Err        string        `json:"error,omitempty"`
	Attempts   int           `json:"attempts"`
	Duration   time.Duration `json:"duration"`
}

// OK reports whether the fetch succeeded.
func (r ScrapeResult) OK() bool {
	return r.ErrKind == ""
}
