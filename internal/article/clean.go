package article

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const (
	maxTitleLen     = 500
	maxExcerptLen   = 2000
	maxBylineLen    = 500
	maxDateLen      = 100
	maxCleanTextLen = 30000
	minMainTextLen  = 100
	minCleanTextLen = 50
)

// mainSelectors are tried in order; the first one holding enough text wins.
var mainSelectors = []string{
	"article",
	"main",
	"[role='main']",
	".article-content",
	".article-body",
	".post-content",
	".entry-content",
	".content article",
	".main-content",
	"#content",
}

var (
	spaceExpr = regexp.MustCompile(`\s+`)
	doiExpr   = regexp.MustCompile(`(?i)^(?:doi:\s*|https?://(?:dx\.)?doi\.org/)?(10\.\d{4,9}/\S+)$`)
)

// Cleaned is the main-content text of a page plus the metadata it declares.
type Cleaned struct {
	Title         string
	Text          string
	Excerpt       string
	Byline        string
	PublishedTime string
	DOI           string
}

// Clean isolates the main text of an article page. It reports false when the
// page carries too little text to be an article.
func Clean(html string) (Cleaned, bool) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return Cleaned{}, false
	}

	out := Cleaned{
		Title: truncate(firstNonEmpty(
			metaContent(doc, "meta[property='og:title']"),
			doc.Find("title").First().Text(),
		), maxTitleLen),
		Excerpt: truncate(firstNonEmpty(
			metaContent(doc, "meta[name='description']"),
			metaContent(doc, "meta[property='og:description']"),
		), maxExcerptLen),
		Byline: truncate(firstNonEmpty(
			doc.Find(".byline").First().Text(),
			doc.Find(".author").First().Text(),
			doc.Find("[rel='author']").First().Text(),
			metaContent(doc, "meta[name='author']"),
		), maxBylineLen),
		PublishedTime: truncate(firstNonEmpty(
			metaContent(doc, "meta[property='article:published_time']"),
			doc.Find(".date").First().Text(),
			doc.Find(".published").First().Text(),
			metaContent(doc, "meta[name='date']"),
		), maxDateLen),
		DOI: normalizeDOI(firstNonEmpty(
			metaContent(doc, "meta[name='citation_doi']"),
			metaContent(doc, "meta[name='prism.doi']"),
			metaContent(doc, "meta[name='dc.identifier']"),
			metaContent(doc, "meta[name='DC.identifier']"),
		)),
	}
	out.Byline = collapse(out.Byline)
	out.PublishedTime = collapse(out.PublishedTime)

	doc.Find("script, style, nav, footer, aside, form, iframe, noscript").Remove()

	var root *goquery.Selection
	for _, sel := range mainSelectors {
		el := doc.Find(sel).First()
		if el.Length() > 0 && len(collapse(el.Text())) >= minMainTextLen {
			root = el
			break
		}
	}
	if root == nil {
		root = doc.Find("body").First()
	}
	if root.Length() == 0 {
		return out, false
	}

	out.Text = truncate(collapse(root.Text()), maxCleanTextLen)
	if len(out.Text) < minCleanTextLen {
		return out, false
	}
	return out, true
}

func metaContent(doc *goquery.Document, selector string) string {
	return doc.Find(selector).First().AttrOr("content", "")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func collapse(s string) string {
	return strings.TrimSpace(spaceExpr.ReplaceAllString(s, " "))
}

// normalizeDOI returns the bare 10.x/y form, or "" when value is not a DOI.
func normalizeDOI(value string) string {
	m := doiExpr.FindStringSubmatch(strings.TrimSpace(value))
	if m == nil {
		return ""
	}
	return m[1]
}

// truncate cuts s to at most n runes.
func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return strings.TrimSpace(string(runes[:n]))
}
