package parser

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"ArticleWatch/internal/domain"
)

const rssFixture = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Journal feed</title>
    <item><title>First</title><link>https://journal.example.org/articles/a1</link></item>
    <item><title>Second</title><link>/articles/b2</link></item>
    <item><title>Third</title><guid>https://journal.example.org/articles/c3</guid></item>
    <item><title>First again</title><link>https://journal.example.org/articles/a1</link></item>
    <item><title>Opaque</title><guid isPermaLink="false">12345</guid></item>
  </channel>
</rss>`

func TestIsFeed(t *testing.T) {
	t.Parallel()

	cases := []struct {
		content string
		want    bool
	}{
		{content: rssFixture, want: true},
		{content: `  <feed xmlns="http://www.w3.org/2005/Atom"></feed>`, want: true},
		{content: `<!-- x --><rdf:RDF></rdf:RDF>`, want: true},
		{content: `<!doctype html><html></html>`, want: false},
	}
	for _, tc := range cases {
		if got := IsFeed(tc.content); got != tc.want {
			t.Fatalf("IsFeed(%.20q) = %v, want %v", tc.content, got, tc.want)
		}
	}
}

func TestFeedURLsRSS(t *testing.T) {
	t.Parallel()

	urls, err := FeedURLs(rssFixture, "https://journal.example.org/rss")
	if err != nil {
		t.Fatalf("FeedURLs returned error: %v", err)
	}

	want := []string{
		"https://journal.example.org/articles/a1",
		"https://journal.example.org/articles/b2",
		"https://journal.example.org/articles/c3",
	}
	if !reflect.DeepEqual(urls, want) {
		t.Fatalf("unexpected urls: %v", urls)
	}
}

func TestFeedURLsAtom(t *testing.T) {
	t.Parallel()

	atom := `<?xml version="1.0" encoding="utf-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>Preprints</title>
  <entry><title>One</title><link href="https://papers.example.com/paper/1"/><id>tag:papers,1</id></entry>
  <entry><title>Two</title><id>https://papers.example.com/paper/2</id></entry>
</feed>`

	urls, err := FeedURLs(atom, "https://papers.example.com/atom.xml")
	if err != nil {
		t.Fatalf("FeedURLs returned error: %v", err)
	}
	if len(urls) != 2 || urls[0] != "https://papers.example.com/paper/1" || urls[1] != "https://papers.example.com/paper/2" {
		t.Fatalf("unexpected urls: %v", urls)
	}
}

func TestHTMLURLsAnchors(t *testing.T) {
	t.Parallel()

	html := `<html><body>
	  <a href="#top">top</a>
	  <a href="javascript:void(0)">js</a>
	  <a href="mailto:editor@example.org">mail</a>
	  <a href="/articles/x1">x1</a>
	  <a href="https://pubs.example.org/articles/x1">x1 again</a>
	  <a href="toc?page=2">next</a>
	</body></html>`

	urls, err := HTMLURLs(html, "https://pubs.example.org/journal/")
	if err != nil {
		t.Fatalf("HTMLURLs returned error: %v", err)
	}

	want := []string{
		"https://pubs.example.org/articles/x1",
		"https://pubs.example.org/journal/toc?page=2",
	}
	if !reflect.DeepEqual(urls, want) {
		t.Fatalf("unexpected urls: %v", urls)
	}
}

func TestHTMLURLsScriptFallback(t *testing.T) {
	t.Parallel()

	html := `<html><head><script>
	  window.__DATA__ = {"items":[{"href":"/articles/s41556-025-01830-7"},{"href":"/articles/s41556-025-01830-7"}],
	    "escaped":"{\"url\":\"/articles/s41586-024-00001-2\"}",
	    "abs":"https://www.nature.com/articles/s41467-025-11111-1",
	    "other":"https://cdn.example.net/articles/not-ours",
	    "asset":"https://www.nature.com/static/app.js"};
	</script></head><body><div id="root"></div></body></html>`

	urls, err := HTMLURLs(html, "https://www.nature.com/ncb/research-articles")
	if err != nil {
		t.Fatalf("HTMLURLs returned error: %v", err)
	}

	want := map[string]bool{
		"https://www.nature.com/articles/s41556-025-01830-7": true,
		"https://www.nature.com/articles/s41586-024-00001-2": true,
		"https://www.nature.com/articles/s41467-025-11111-1": true,
	}
	if len(urls) != len(want) {
		t.Fatalf("expected %d urls, got %v", len(want), urls)
	}
	for _, u := range urls {
		if !want[u] {
			t.Fatalf("unexpected url %s", u)
		}
	}
}

func TestLikelyBotChallenge(t *testing.T) {
	t.Parallel()

	if !LikelyBotChallenge("<html></html>", "https://example.org") {
		t.Fatal("tiny pages should be flagged")
	}

	challenge := "<html><head><title>Just a moment...</title></head><body>" + strings.Repeat("x", 600) + "</body></html>"
	if !LikelyBotChallenge(challenge, "https://example.org") {
		t.Fatal("challenge title should be flagged")
	}

	shell := "<html><head><title>Nature Cell Biology</title></head><body>" + strings.Repeat("y", 2000) + "</body></html>"
	if !LikelyBotChallenge(shell, "https://www.nature.com/ncb") {
		t.Fatal("short JS-heavy shell without article markup should be flagged")
	}

	contents := "<html><head><title>Contents</title></head><body>" + strings.Repeat(`<a href="/articles/abc-1">paper</a>`, 30) + "</body></html>"
	if LikelyBotChallenge(contents, "https://www.nature.com/ncb") {
		t.Fatal("page with article markup should not be flagged")
	}
}

type fakeFetcher struct {
	pages map[string]string
}

func (f fakeFetcher) Fetch(_ context.Context, rawURL string) (string, error) {
	body, ok := f.pages[rawURL]
	if !ok {
		return "", errors.New("HTTP 503")
	}
	return body, nil
}

func TestStrategySourceCollect(t *testing.T) {
	t.Parallel()

	fetcher := fakeFetcher{pages: map[string]string{
		"https://journal.example.org/rss": rssFixture,
		"https://site.example.com/toc":    `<html><body><a href="/paper/42">p</a></body></html>`,
	}}
	source := NewStrategySource(NewRegistry(nil), fetcher, 2, nil)

	got := source.Collect(context.Background(), []domain.Source{
		{ID: "down", URL: "https://down.example.com", FetchStrategy: domain.FetchAuto},
		{ID: "feed", URL: "https://journal.example.org/rss", FetchStrategy: domain.FetchFeed},
		{ID: "page", URL: "https://site.example.com/toc", FetchStrategy: domain.FetchHTML},
	})

	want := []domain.Candidate{
		{SourceID: "feed", URL: "https://journal.example.org/articles/a1"},
		{SourceID: "feed", URL: "https://journal.example.org/articles/b2"},
		{SourceID: "feed", URL: "https://journal.example.org/articles/c3"},
		{SourceID: "page", URL: "https://site.example.com/paper/42"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected candidates: %v", got)
	}
}
