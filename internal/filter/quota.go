package filter

import "ArticleWatch/internal/domain"

const (
	DefaultMaxURLsPerRun    = 30
	DefaultMaxURLsPerSource = 10

	minPerRun    = 1
	maxPerRun    = 100
	minPerSource = 1
	maxPerSource = 50
)

// Quotas caps how many candidates one run extracts.
type Quotas struct {
	MaxPerRun    int
	MaxPerSource int
}

// NewQuotas clamps both caps to their allowed ranges.
func NewQuotas(perRun, perSource int) Quotas {
	return Quotas{
		MaxPerRun:    clamp(perRun, minPerRun, maxPerRun),
		MaxPerSource: clamp(perSource, minPerSource, maxPerSource),
	}
}

// Apply keeps at most MaxPerSource candidates per source, then walks sources in
// order of first appearance until MaxPerRun candidates are taken.
func (q Quotas) Apply(candidates []domain.Candidate) []domain.Candidate {
	var order []string
	bySource := map[string][]domain.Candidate{}
	for _, c := range candidates {
		list, seen := bySource[c.SourceID]
		if !seen {
			order = append(order, c.SourceID)
		}
		if len(list) < q.MaxPerSource {
			list = append(list, c)
		}
		bySource[c.SourceID] = list
	}

	out := make([]domain.Candidate, 0, min(len(candidates), q.MaxPerRun))
	for _, sourceID := range order {
		for _, c := range bySource[sourceID] {
			if len(out) >= q.MaxPerRun {
				return out
			}
			out = append(out, c)
		}
	}
	return out
}

func clamp(v, lo, hi int) int {
	return max(lo, min(hi, v))
}
