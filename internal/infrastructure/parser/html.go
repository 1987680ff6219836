package parser

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var (
	rawURLExpr      = regexp.MustCompile(`https?://[^\s"'<>\\]+`)
	rawTrailingExpr = regexp.MustCompile(`[)"'>\],]+$`)

	// Same-origin absolute URLs found in scripts must look like an article page.
	rawArticlePathExpr = regexp.MustCompile(`(?i)^/(?:articles?|content/article|content/articlelanding|articlelanding)[/?]`)

	relativeArticleExprs = []*regexp.Regexp{
		regexp.MustCompile(`\\?["'](/articles/[A-Za-z0-9-]+)\\?["']`),
		regexp.MustCompile(`\\?["'](/content/articlelanding/[^"'\\]+)\\?["']`),
		regexp.MustCompile(`(?i)href\s*=\s*\\?["']([^"'\\]*/articles/[A-Za-z0-9-]+)\\?["']`),
		regexp.MustCompile(`(?i)href\s*=\s*\\?["']([^"'\\]*/content/articlelanding/[^"'\\]+)\\?["']`),
	}
	relativeTrailingExpr = regexp.MustCompile(`[)"'>\].]+$`)
)

// HTMLURLs collects anchor targets of an HTML page, resolved against sourceURL.
// When the page has no usable anchor (a JS-rendered shell), it falls back to
// article-shaped URLs embedded in the raw markup, restricted to the same origin.
func HTMLURLs(content, sourceURL string) ([]string, error) {
	base, err := url.Parse(sourceURL)
	if err != nil {
		return nil, fmt.Errorf("parse source url: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}

	out := newURLSet()
	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href := strings.TrimSpace(a.AttrOr("href", ""))
		if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(strings.ToLower(href), "javascript:") {
			return
		}
		if abs, ok := resolve(base, href); ok {
			out.add(abs)
		}
	})
	if len(out.list) > 0 {
		return out.list, nil
	}

	sameOrigin := origin(base)
	for _, candidate := range append(rawArticleURLs(content, base), relativeArticleURLs(content, base)...) {
		parsed, err := url.Parse(candidate)
		if err != nil || origin(parsed) != sameOrigin {
			continue
		}
		out.add(candidate)
	}
	return out.list, nil
}

// rawArticleURLs scans text for absolute same-origin URLs with an article-shaped path.
func rawArticleURLs(content string, base *url.URL) []string {
	out := newURLSet()
	sameOrigin := origin(base)
	for _, match := range rawURLExpr.FindAllString(content, -1) {
		raw := strings.TrimSpace(rawTrailingExpr.ReplaceAllString(match, ""))
		parsed, err := url.Parse(raw)
		if err != nil || origin(parsed) != sameOrigin {
			continue
		}
		if !rawArticlePathExpr.MatchString(parsed.RequestURI()) {
			continue
		}
		if abs, ok := resolve(nil, raw); ok {
			out.add(abs)
		}
	}
	return out.list
}

// relativeArticleURLs scans inline scripts and JSON for quoted article paths.
func relativeArticleURLs(content string, base *url.URL) []string {
	out := newURLSet()
	for _, expr := range relativeArticleExprs {
		for _, m := range expr.FindAllStringSubmatch(content, -1) {
			path := strings.TrimSpace(relativeTrailingExpr.ReplaceAllString(m[1], ""))
			if abs, ok := resolve(base, path); ok {
				out.add(abs)
			}
		}
	}
	return out.list
}
