package filter

import (
	"net/url"
	"regexp"
	"strings"
)

var (
	assetExtensionExpr    = regexp.MustCompile(`(?i)\.(png|svg|css|js|ico|webmanifest|woff2?|ttf|eot|map|json)(\?|$)`)
	nonContentSegmentExpr = regexp.MustCompile(`(?i)(/assets/|/_fs-ch-|/cdn/|/static/|rsc-cdn\.org|googletagmanager|google-analytics|doubleclick\.net|facebook\.com|twitter\.com|analytics)`)

	articlePathExpr = regexp.MustCompile(`(?i)(/content/articlelanding/|/articles/|/en/article/|/content/[^/]+/article/|/full/|/paper/)`)

	obviousArticleExprs = []*regexp.Regexp{
		regexp.MustCompile(`(?i)/content/articlelanding/`),
		regexp.MustCompile(`(?i)/articles/[a-z0-9-]+`),
		regexp.MustCompile(`(?i)/article/`),
		regexp.MustCompile(`(?i)/paper/`),
		regexp.MustCompile(`(?i)/full/`),
	}

	nonArticlePageExprs = []*regexp.Regexp{
		regexp.MustCompile(`^/(\?.*)?$`),
		regexp.MustCompile(`(?i)/journals\?`),
		regexp.MustCompile(`(?i)/content/cookies`),
		regexp.MustCompile(`(?i)/book-authors`),
		regexp.MustCompile(`(?i)/open-access`),
		regexp.MustCompile(`(?i)manuscriptcentral`),
		regexp.MustCompile(`(?i)/account/|logon|login`),
		regexp.MustCompile(`(?i)/en/journals$`),
		regexp.MustCompile(`(?i)/search\?`),
	}
)

// IsAssetOrTracker reports whether a URL is a static asset, CDN, analytics or social-widget link.
// Unparseable URLs count as non-content.
func IsAssetOrTracker(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return true
	}
	return assetExtensionExpr.MatchString(u.Path) || nonContentSegmentExpr.MatchString(rawURL)
}

// HasArticlePath reports whether a URL has the shape of an article landing page.
// Used to sort candidates, never to drop them.
func HasArticlePath(rawURL string) bool {
	return articlePathExpr.MatchString(rawURL)
}

// IsObviousArticle reports whether a URL is article-shaped enough to skip LLM classification.
func IsObviousArticle(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	target := pathAndQuery(u.Path, u.RawQuery)
	for _, expr := range obviousArticleExprs {
		if expr.MatchString(target) {
			return true
		}
	}
	return false
}

// IsNonArticlePage reports whether a URL is a known non-article page: site root,
// journal listing, cookie notice, login, search or book-author page.
func IsNonArticlePage(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return true
	}
	path := strings.TrimSuffix(u.Path, "/")
	if path == "" {
		path = "/"
	}
	target := pathAndQuery(path, u.RawQuery)
	for _, expr := range nonArticlePageExprs {
		if expr.MatchString(target) || expr.MatchString(u.Host) {
			return true
		}
	}
	return false
}

func pathAndQuery(path, rawQuery string) string {
	if rawQuery == "" {
		return path
	}
	return path + "?" + rawQuery
}

// stripQuery drops everything from the first '?'.
func stripQuery(rawURL string) string {
	if i := strings.IndexByte(rawURL, '?'); i >= 0 {
		return rawURL[:i]
	}
	return rawURL
}
