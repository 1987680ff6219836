package scanner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ArticleWatch/internal/domain"
)

type namedExtractor string

func (n namedExtractor) Name() string { return string(n) }
func (n namedExtractor) Extract(Page) []string { return []string{string(n)} }

func TestRegistryResolve(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	reg.Register(domain.FetchAuto, namedExtractor("auto"))
	reg.Register(domain.FetchFeed, namedExtractor("rss"))

	got, err := reg.Resolve("")
	require.NoError(t, err)
	assert.Equal(t, "auto", got.Name())

	got, err = reg.Resolve(domain.FetchFeed)
	require.NoError(t, err)
	assert.Equal(t, "rss", got.Name())

	_, err = reg.Resolve(domain.FetchHTML)
	assert.Error(t, err)
}
