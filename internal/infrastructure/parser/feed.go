package parser

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/mmcdole/gofeed"
)

// IsFeed reports whether content looks like RSS 2.0, Atom or RSS 1.0 (RDF).
func IsFeed(content string) bool {
	trimmed := strings.TrimSpace(content)
	return strings.HasPrefix(trimmed, "<?xml") ||
		strings.HasPrefix(trimmed, "<rss") ||
		strings.HasPrefix(trimmed, "<feed") ||
		strings.HasPrefix(trimmed, "<rdf:RDF") ||
		strings.Contains(trimmed, "<rdf:RDF")
}

// FeedURLs returns one absolute URL per feed item, in document order.
// The item link wins; the GUID (or Atom id) is used when the link is missing.
func FeedURLs(content, sourceURL string) ([]string, error) {
	base, err := url.Parse(sourceURL)
	if err != nil {
		return nil, fmt.Errorf("parse source url: %w", err)
	}

	feed, err := gofeed.NewParser().ParseString(content)
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}

	out := newURLSet()
	for _, item := range feed.Items {
		if item == nil {
			continue
		}
		if abs, ok := itemURL(base, item); ok {
			out.add(abs)
		}
	}
	return out.list, nil
}

func itemURL(base *url.URL, item *gofeed.Item) (string, bool) {
	links := append([]string{item.Link}, item.Links...)
	for _, link := range links {
		if abs, ok := resolve(base, link); ok {
			return abs, true
		}
	}
	// GUIDs are often opaque identifiers, so only absolute ones count.
	guid := strings.TrimSpace(item.GUID)
	if strings.HasPrefix(guid, "http://") || strings.HasPrefix(guid, "https://") {
		return resolve(nil, guid)
	}
	return "", false
}
