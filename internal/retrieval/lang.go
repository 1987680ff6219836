package retrieval

import (
	"regexp"
	"strings"

	"ArticleWatch/internal/domain"
)

var (
	frenchAccents = regexp.MustCompile(`(?i)[àâäéèêëïîôùûüçœæ]`)
	frenchWords   = regexp.MustCompile(`(?i)\b(le|la|les|des|une?|et|est|sont|dans|pour|que|qui|pas|sur|avec|aux|du|de|en|au|ce|cette|ces|mes|tes|ses|nos|vos|mon|ton|son|ma|ta|sa|notre|votre|leur)\b`)
	englishWords  = regexp.MustCompile(`(?i)\b(the|and|is|are|in|to|of|for|on|with|as|at|be|by|this|that|it|its|have|has|was|were)\b`)
)

// DetectLanguage guesses whether a query is French or English from accents
// and function words. Ties go to French; an empty query is English.
func DetectLanguage(query string) domain.Language {
	query = strings.TrimSpace(query)
	if query == "" {
		return domain.LangEnglish
	}

	var fr, en int
	if frenchAccents.MatchString(query) {
		fr += 2
	}
	fr += len(frenchWords.FindAllStringIndex(query, -1))
	en += len(englishWords.FindAllStringIndex(query, -1))

	if fr >= en {
		return domain.LangFrench
	}
	return domain.LangEnglish
}
