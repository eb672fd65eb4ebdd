package domain

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

type PostKind string

const (
	PostKindPost PostKind = "p"
	PostKindReel PostKind = "reel"
)

// PostReference is a parsed, normalized link to a published post.
type PostReference struct {
	URL       string   `json:"url"`
	Shortcode string   `json:"shortcode"`
	Kind      PostKind `json:"kind"`
}

var postPathPattern = regexp.MustCompile(`^/(?:[A-Za-z0-9._]+/)?(p|reel|reels)/([A-Za-z0-9_-]+)/?$`)

// ParsePostReference accepts links of the form https://instagram.com/p/<code>/
// or /reel/<code>/. Any other shape is ErrMalformedReference.
func ParsePostReference(raw string) (PostReference, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return PostReference{}, ErrMalformedReference
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return PostReference{}, ErrMalformedReference
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	if host != "instagram.com" && host != "instagr.am" && host != "m.instagram.com" {
		return PostReference{}, fmt.Errorf("%w: unsupported host %q", ErrMalformedReference, u.Hostname())
	}
	m := postPathPattern.FindStringSubmatch(u.Path)
	if m == nil {
		return PostReference{}, ErrMalformedReference
	}
	kind := PostKindPost
	if m[1] != "p" {
		kind = PostKindReel
	}
	code := m[2]
	return PostReference{
		URL:       fmt.Sprintf("https://www.instagram.com/%s/%s/", kind, code),
		Shortcode: code,
		Kind:      kind,
	}, nil
}
