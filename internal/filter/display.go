package filter

import (
	"strings"

	"ArticleWatch/internal/domain"
)

// nonArticleTitles are lower-case fragments of publisher chrome pages that
// sometimes slip through discovery.
var nonArticleTitles = []string{
	"rsc journals home",
	"journals home",
	"rsc publishing home",
	"publishing home",
	"cookies",
	"cookie policy",
	"publish a book",
	"propose your book",
	"open access with the royal",
	"manuscript central",
	"user login",
	"advanced search",
	"databases",
	"the royal society of chemistry",
}

// IsNonArticleTitle reports whether a title belongs to a known institutional page.
func IsNonArticleTitle(title string) bool {
	lower := strings.ToLower(strings.TrimSpace(title))
	if lower == "" {
		return false
	}
	for _, fragment := range nonArticleTitles {
		if strings.Contains(lower, fragment) {
			return true
		}
	}
	return false
}

// Displayable reports whether an item carries content worth listing: a title,
// abstract or DOI, and a title that is not an institutional page.
func Displayable(item domain.Item) bool {
	hasContent := strings.TrimSpace(item.Title) != "" ||
		strings.TrimSpace(item.Abstract) != "" ||
		strings.TrimSpace(item.DOI) != ""
	return hasContent && !IsNonArticleTitle(item.Title)
}

// VisibleItems keeps the displayable items in order.
func VisibleItems(items []domain.ItemView) []domain.ItemView {
	out := items[:0:0]
	for _, item := range items {
		if Displayable(item.Item) {
			out = append(out, item)
		}
	}
	return out
}
