package retrieval

import "ArticleWatch/internal/domain"

const excerptLen = 200

// Citations collapses chunks to one source per document, keeping the most
// similar chunk of each, numbered from 1 in order of first appearance.
func Citations(chunks []domain.ChunkMatch) []domain.Citation {
	var order []string
	best := map[string]domain.ChunkMatch{}
	for _, c := range chunks {
		current, ok := best[c.DocumentID]
		if !ok {
			order = append(order, c.DocumentID)
		}
		if !ok || c.Similarity > current.Similarity {
			best[c.DocumentID] = c
		}
	}

	out := make([]domain.Citation, 0, len(order))
	for i, docID := range order {
		c := best[docID]
		out = append(out, domain.Citation{
			Index:        i + 1,
			Title:        c.DocTitle,
			DOI:          c.DocDOI,
			StoragePath:  c.DocStoragePath,
			SectionTitle: c.SectionTitle,
			Page:         c.Page,
			Excerpt:      excerpt(c.Content),
			Similarity:   c.Similarity,
		})
	}
	return out
}

func excerpt(content string) string {
	runes := []rune(content)
	if len(runes) <= excerptLen {
		return content
	}
	return string(runes[:excerptLen]) + "…"
}
