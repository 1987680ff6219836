package parser

import (
	"regexp"
	"strings"
)

const (
	minPlausibleBytes   = 500
	suspiciousPageBytes = 15000
	challengeScanBytes  = 4000
)

// challengeMarkers are lower-case fragments typical of anti-bot interstitials.
var challengeMarkers = []string{
	"client challenge",
	"just a moment",
	"checking your browser",
	"please enable cookies",
	"ddos protection",
	"access denied",
	"blocked",
	"captcha",
	"challenge",
	"perimeterx",
	"cloudflare",
	"ray id",
}

var (
	titleExpr         = regexp.MustCompile(`<title[^>]*>([^<]+)</title>`)
	articleMarkupExpr = regexp.MustCompile(`(?i)/articles/[a-z0-9-]+|/content/articlelanding/|c-card__title|data-test="article`)
	jsHeavyHintExpr   = regexp.MustCompile(`(?i)nature\.com|perimeter|_fs-ch-|challenge`)
)

// HasChallengeMarker reports whether text contains a known bot-challenge phrase.
func HasChallengeMarker(text string) bool {
	lower := strings.ToLower(text)
	for _, marker := range challengeMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// LikelyBotChallenge guesses whether a page is an anti-bot interstitial rather than content.
// It is a diagnostic only and never filters anything.
func LikelyBotChallenge(content, sourceURL string) bool {
	if len(content) < minPlausibleBytes {
		return true
	}

	lower := strings.ToLower(content)
	title := ""
	if m := titleExpr.FindStringSubmatch(lower); m != nil {
		title = m[1]
	}
	head := lower
	if len(head) > challengeScanBytes {
		head = head[:challengeScanBytes]
	}
	snippet := title + " " + head
	if HasChallengeMarker(snippet) {
		return true
	}

	if len(content) < suspiciousPageBytes && !articleMarkupExpr.MatchString(content) {
		if jsHeavyHintExpr.MatchString(snippet) || jsHeavyHintExpr.MatchString(sourceURL) {
			return true
		}
	}
	return false
}
