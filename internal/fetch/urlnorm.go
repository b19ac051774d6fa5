package fetch

import (
	"net/url"
	"strings"

	"github.com/rotisserie/eris"
)

// trackingParams are dropped from URLs before deduplication.
var trackingParams = map[string]bool{
	"gclid":  true,
	"fbclid": true,
	"mc_cid": true,
	"mc_eid": true,
}

// NormalizeURL canonicalizes a page URL for deduplication: lower-case host
// without "www.", no fragment, no tracking parameters, sorted query, and no
// trailing slash except on the root path. A missing scheme defaults to https.
func NormalizeURL(raw string) (string, error) {
	if strings.TrimSpace(raw) == "" {
		return "", eris.New("fetch: empty url")
	}
	raw = withScheme(raw)

	u, err := url.Parse(raw)
	if err != nil {
		return "", eris.Wrapf(err, "fetch: parse url %q", raw)
	}
	if u.Host == "" {
		return "", eris.Errorf("fetch: url %q has no host", raw)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.TrimPrefix(strings.ToLower(u.Host), "www.")
	u.Fragment = ""
	u.RawFragment = ""
	u.User = nil

	if u.Path == "" {
		u.Path = "/"
	}
	if u.Path != "/" {
		u.Path = strings.TrimRight(u.Path, "/")
		if u.Path == "" {
			u.Path = "/"
		}
	}
	u.RawPath = ""

	q := u.Query()
	for k := range q {
		if trackingParams[k] || strings.HasPrefix(k, "utm_") {
			q.Del(k)
		}
	}
	// Encode sorts by key.
	u.RawQuery = q.Encode()

	return u.String(), nil
}

// PageURL pairs the URL to fetch with its deduplication key. Raw is the
// caller's text, trimmed and given a scheme when it had none; Key is the
// NormalizeURL form and is only ever compared, never fetched.
type PageURL struct {
	Raw string
	Key string
}

// ParsePageURL normalizes raw into a PageURL.
func ParsePageURL(raw string) (PageURL, error) {
	key, err := NormalizeURL(raw)
	if err != nil {
		return PageURL{}, err
	}
	return PageURL{Raw: withScheme(raw), Key: key}, nil
}

// DedupeURLs drops urls whose normalized key was already seen, keeping the
// first-seen original in order. Invalid entries are returned separately
// with their original text.
func DedupeURLs(urls []string) (kept []PageURL, invalid []string) {
	seen := make(map[string]bool, len(urls))
	for _, raw := range urls {
		u, err := ParsePageURL(raw)
		if err != nil {
			if strings.TrimSpace(raw) != "" {
				invalid = append(invalid, raw)
			}
			continue
		}
		if seen[u.Key] {
			continue
		}
		seen[u.Key] = true
		kept = append(kept, u)
	}
	return kept, invalid
}

func withScheme(raw string) string {
	raw = strings.TrimSpace(raw)
	if !strings.Contains(raw, "://") {
		return "https://" + raw
	}
	return raw
}
