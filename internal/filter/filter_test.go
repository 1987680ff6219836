package filter

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ArticleWatch/internal/domain"
	"ArticleWatch/internal/ports"
)

type fakeCompleter struct {
	answer string
	err    error
	calls  int
	last   ports.CompletionRequest
}

func (f *fakeCompleter) Complete(_ context.Context, req ports.CompletionRequest) (string, error) {
	f.calls++
	f.last = req
	return f.answer, f.err
}

func (f *fakeCompleter) Stream(context.Context, ports.CompletionRequest, func(string) error) error {
	return errors.New("not used")
}

func cands(sourceID string, urls ...string) []domain.Candidate {
	out := make([]domain.Candidate, 0, len(urls))
	for _, u := range urls {
		out = append(out, domain.Candidate{SourceID: sourceID, URL: u})
	}
	return out
}

func urlsOf(cs []domain.Candidate) []string {
	out := make([]string, 0, len(cs))
	for _, c := range cs {
		out = append(out, c.URL)
	}
	return out
}

func TestPredicates(t *testing.T) {
	t.Parallel()

	assert.True(t, IsAssetOrTracker("https://pubs.example.org/static/app.js"))
	assert.True(t, IsAssetOrTracker("https://pubs.example.org/logo.svg?v=2"))
	assert.True(t, IsAssetOrTracker("https://www.googletagmanager.com/gtm.js"))
	assert.False(t, IsAssetOrTracker("https://pubs.example.org/articles/abc"))

	assert.True(t, IsObviousArticle("https://pubs.rsc.org/en/content/articlelanding/2025/sc/d5sc0001"))
	assert.True(t, IsObviousArticle("https://www.nature.com/articles/s41586-025-1"))
	assert.True(t, IsObviousArticle("https://journal.example.org/doi/full/10.1/x"))
	assert.False(t, IsObviousArticle("https://journal.example.org/toc/current"))

	assert.True(t, IsNonArticlePage("https://pubs.rsc.org/"))
	assert.True(t, IsNonArticlePage("https://pubs.rsc.org/?lang=en"))
	assert.True(t, IsNonArticlePage("https://pubs.rsc.org/en/journals/"))
	assert.True(t, IsNonArticlePage("https://pubs.rsc.org/en/journals?key=title"))
	assert.True(t, IsNonArticlePage("https://mc.manuscriptcentral.com/sc"))
	assert.True(t, IsNonArticlePage("https://pubs.example.org/search?q=ion"))
	assert.False(t, IsNonArticlePage("https://pubs.example.org/toc/issue-4"))
}

func TestSortArticleFirstIsStable(t *testing.T) {
	t.Parallel()

	in := cands("s",
		"https://x.example/about",
		"https://x.example/articles/1",
		"https://x.example/news",
		"https://x.example/paper/2",
	)
	got := urlsOf(SortArticleFirst(in))
	assert.Equal(t, []string{
		"https://x.example/articles/1",
		"https://x.example/paper/2",
		"https://x.example/about",
		"https://x.example/news",
	}, got)
}

func TestClassifierBypassesObviousArticles(t *testing.T) {
	t.Parallel()

	llm := &fakeCompleter{}
	c := NewLLMClassifier(llm, nil)

	in := cands("s", "https://x.example/articles/a-1", "https://x.example/paper/2")
	out, err := c.Classify(context.Background(), in)
	require.NoError(t, err)

	assert.Equal(t, in, out)
	assert.Zero(t, llm.calls)
}

func TestClassifierKeepsSelectedAndDenylists(t *testing.T) {
	t.Parallel()

	llm := &fakeCompleter{answer: "```json\n[\"https://x.example/doi/10.1/abc\", \"https://x.example/login\", \"https://x.example/toc\", \"ignored\", 7]\n```"}
	c := NewLLMClassifier(llm, nil)

	in := cands("s",
		"https://x.example/articles/a-1",
		"https://x.example/doi/10.1/abc?utm=rss",
		"https://x.example/login",
		"https://x.example/cookies",
		"https://x.example/toc",
	)
	out, err := c.Classify(context.Background(), in)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"https://x.example/articles/a-1",
		"https://x.example/doi/10.1/abc?utm=rss",
		"https://x.example/toc",
	}, urlsOf(out))
	assert.Equal(t, 1, llm.calls)
	require.Len(t, llm.last.Messages, 2)
	assert.NotContains(t, llm.last.Messages[1].Content, "/articles/a-1")
	assert.Contains(t, llm.last.Messages[1].Content, "https://x.example/cookies")
	assert.InDelta(t, 0.2, llm.last.Temperature, 1e-9)
	assert.Equal(t, 4096, llm.last.MaxTokens)
}

func TestClassifierFailures(t *testing.T) {
	t.Parallel()

	in := cands("s", "https://x.example/toc")

	_, err := NewLLMClassifier(&fakeCompleter{err: errors.New("rate limited")}, nil).Classify(context.Background(), in)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limited")

	_, err = NewLLMClassifier(&fakeCompleter{answer: "  "}, nil).Classify(context.Background(), in)
	assert.ErrorIs(t, err, ErrClassifierResponse)

	_, err = NewLLMClassifier(&fakeCompleter{answer: "Sure! Here are the URLs: [https://x"}, nil).Classify(context.Background(), in)
	assert.ErrorIs(t, err, ErrClassifierResponse)

	out, err := NewLLMClassifier(&fakeCompleter{answer: `{"urls": []}`}, nil).Classify(context.Background(), in)
	require.NoError(t, err)
	assert.Empty(t, out)

	out, err = NewLLMClassifier(&fakeCompleter{answer: `[]`}, nil).Classify(context.Background(), in)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestQuotasClamp(t *testing.T) {
	t.Parallel()

	assert.Equal(t, Quotas{MaxPerRun: 1, MaxPerSource: 1}, NewQuotas(0, -4))
	assert.Equal(t, Quotas{MaxPerRun: 100, MaxPerSource: 50}, NewQuotas(500, 70))
	assert.Equal(t, Quotas{MaxPerRun: 30, MaxPerSource: 10}, NewQuotas(DefaultMaxURLsPerRun, DefaultMaxURLsPerSource))
}

func TestQuotasApply(t *testing.T) {
	t.Parallel()

	var in []domain.Candidate
	for i := 0; i < 6; i++ {
		in = append(in, domain.Candidate{SourceID: "a", URL: fmt.Sprintf("https://a.example/%d", i)})
	}
	for i := 0; i < 6; i++ {
		in = append(in, domain.Candidate{SourceID: "b", URL: fmt.Sprintf("https://b.example/%d", i)})
	}

	out := Quotas{MaxPerRun: 7, MaxPerSource: 4}.Apply(in)
	require.Len(t, out, 7)

	perSource := map[string]int{}
	for _, c := range out {
		perSource[c.SourceID]++
	}
	assert.Equal(t, 4, perSource["a"])
	assert.Equal(t, 3, perSource["b"])
	assert.Equal(t, "https://a.example/0", out[0].URL)
	assert.Equal(t, "https://b.example/2", out[6].URL)
}

func TestChainPrefersArticlePathsUnderQuota(t *testing.T) {
	t.Parallel()

	llm := &fakeCompleter{answer: `["https://j.example/issue/1", "https://j.example/issue/2"]`}
	chain := NewChain(NewLLMClassifier(llm, nil), Quotas{MaxPerRun: 10, MaxPerSource: 2}, nil)

	in := cands("j",
		"https://j.example/issue/1",
		"https://j.example/issue/2",
		"https://j.example/main.css",
		"https://j.example/articles/x-1",
		"https://j.example/articles/x-2",
	)
	out, err := chain.Run(context.Background(), in, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"https://j.example/articles/x-1", "https://j.example/articles/x-2"}, urlsOf(out))
}

func TestChainKeepsHeuristicArticlesAheadOfModelPicks(t *testing.T) {
	t.Parallel()

	llm := &fakeCompleter{answer: `["https://j.example/toc/1", "https://j.example/toc/2"]`}
	chain := NewChain(NewLLMClassifier(llm, nil), Quotas{MaxPerRun: 10, MaxPerSource: 2}, nil)

	in := cands("j",
		"https://j.example/toc/1",
		"https://j.example/toc/2",
		"https://j.example/article/123",
	)
	out, err := chain.Run(context.Background(), in, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"https://j.example/article/123", "https://j.example/toc/1"}, urlsOf(out))
}

func TestChainSkipsClassifierWhenEverythingIsKnown(t *testing.T) {
	t.Parallel()

	llm := &fakeCompleter{answer: `[]`}
	chain := NewChain(NewLLMClassifier(llm, nil), NewQuotas(30, 10), nil)

	in := cands("j", "https://j.example/issue/1", "https://j.example/issue/2")
	existing := map[string]struct{}{
		"https://j.example/issue/1": {},
		"https://j.example/issue/2": {},
	}
	out, err := chain.Run(context.Background(), in, existing)
	require.NoError(t, err)

	assert.Empty(t, out)
	assert.Zero(t, llm.calls)
}

func TestChainPropagatesClassifierError(t *testing.T) {
	t.Parallel()

	chain := NewChain(NewLLMClassifier(&fakeCompleter{err: errors.New("boom")}, nil), NewQuotas(30, 10), nil)
	_, err := chain.Run(context.Background(), cands("j", "https://j.example/issue/1"), nil)
	assert.Error(t, err)
}

func TestDisplayFilter(t *testing.T) {
	t.Parallel()

	assert.True(t, IsNonArticleTitle("RSC Journals Home"))
	assert.True(t, IsNonArticleTitle("Our Cookie Policy"))
	assert.False(t, IsNonArticleTitle("Cooking perovskites at low temperature"))
	assert.False(t, IsNonArticleTitle(""))

	items := []domain.ItemView{
		{Item: domain.Item{ID: "1", Title: "Ion transport"}},
		{Item: domain.Item{ID: "2"}},
		{Item: domain.Item{ID: "3", DOI: "10.1/x"}},
		{Item: domain.Item{ID: "4", Title: "Advanced search", DOI: "10.1/y"}},
		{Item: domain.Item{ID: "5", Abstract: "An abstract only"}},
	}
	visible := VisibleItems(items)

	ids := make([]string, 0, len(visible))
	for _, v := range visible {
		ids = append(ids, v.ID)
	}
	assert.Equal(t, []string{"1", "3", "5"}, ids)
	assert.Equal(t, "2", items[1].ID)
}
