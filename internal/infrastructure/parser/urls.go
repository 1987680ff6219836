package parser

import (
	"net/url"
	"strings"
)

// urlSet collects absolute URLs in first-seen order.
type urlSet struct {
	seen map[string]struct{}
	list []string
}

func newURLSet() *urlSet {
	return &urlSet{seen: map[string]struct{}{}}
}

func (s *urlSet) add(u string) bool {
	if _, ok := s.seen[u]; ok {
		return false
	}
	s.seen[u] = struct{}{}
	s.list = append(s.list, u)
	return true
}

// resolve makes raw absolute against base and keeps only http(s) results.
func resolve(base *url.URL, raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}
	ref, err := url.Parse(raw)
	if err != nil {
		return "", false
	}
	abs := ref
	if base != nil {
		abs = base.ResolveReference(ref)
	}
	if abs.Scheme != "http" && abs.Scheme != "https" {
		return "", false
	}
	if abs.Host == "" {
		return "", false
	}
	return abs.String(), true
}

func origin(u *url.URL) string {
	return strings.ToLower(u.Scheme) + "://" + strings.ToLower(u.Host)
}
