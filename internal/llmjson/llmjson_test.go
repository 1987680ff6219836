package llmjson

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStripFence(t *testing.T) {
	t.Parallel()

	assert.Equal(t, `["a"]`, StripFence("```json\n[\"a\"]\n```"))
	assert.Equal(t, `{"x":1}`, StripFence("Here you go:\n```\n{\"x\":1}\n```\nthanks"))
	assert.Equal(t, `[1]`, StripFence("  [1] \n"))
}

func TestDecode(t *testing.T) {
	t.Parallel()

	var urls []string
	require.NoError(t, Decode("```json\n[\"https://a.example\"]\n```", &urls))
	assert.Equal(t, []string{"https://a.example"}, urls)

	var obj struct {
		Title *string `json:"title"`
	}
	assert.Error(t, Decode(`{"title": 42}`, &obj))
	assert.Error(t, Decode(`not json`, &obj))
	assert.True(t, errors.Is(Decode("```\n```", &obj), ErrEmpty))
}
