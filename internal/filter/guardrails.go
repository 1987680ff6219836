package filter

import (
	"sort"

	"ArticleWatch/internal/domain"
)

// Prefilter drops static assets, CDN and tracking URLs.
func Prefilter(candidates []domain.Candidate) []domain.Candidate {
	out := make([]domain.Candidate, 0, len(candidates))
	for _, c := range candidates {
		if IsAssetOrTracker(c.URL) {
			continue
		}
		out = append(out, c)
	}
	return out
}

// RemoveExisting drops URLs already persisted as items. It also drops repeats within the batch.
func RemoveExisting(candidates []domain.Candidate, existing map[string]struct{}) []domain.Candidate {
	out := make([]domain.Candidate, 0, len(candidates))
	seen := make(map[string]struct{}, len(candidates))
	for _, c := range candidates {
		if _, ok := existing[c.URL]; ok {
			continue
		}
		if _, ok := seen[c.URL]; ok {
			continue
		}
		seen[c.URL] = struct{}{}
		out = append(out, c)
	}
	return out
}

// SortArticleFirst moves article-shaped URLs to the front, keeping relative order otherwise.
func SortArticleFirst(candidates []domain.Candidate) []domain.Candidate {
	out := make([]domain.Candidate, len(candidates))
	copy(out, candidates)
	sort.SliceStable(out, func(i, j int) bool {
		return HasArticlePath(out[i].URL) && !HasArticlePath(out[j].URL)
	})
	return out
}
