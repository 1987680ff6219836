package ml

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"

	"ArticleWatch/internal/ports"
)

const defaultHashingDimension = 384

// HashingEmbedder is an offline embedder: lower-cased word tokens are hashed
// into buckets and the vector is L2-normalized. Cosine similarity between two
// vectors grows with the words their texts share.
type HashingEmbedder struct {
	dimension int
}

var _ ports.Embedder = (*HashingEmbedder)(nil)

// NewHashingEmbedder builds an embedder producing vectors of the given dimension.
func NewHashingEmbedder(dimension int) *HashingEmbedder {
	if dimension <= 0 {
		dimension = defaultHashingDimension
	}
	return &HashingEmbedder{dimension: dimension}
}

// Embed never fails. Empty text yields the zero vector.
func (h *HashingEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	vector := make([]float32, h.dimension)
	for _, token := range Tokenize(text) {
		hasher := fnv.New32a()
		_, _ = hasher.Write([]byte(token))
		vector[int(hasher.Sum32()%uint32(h.dimension))]++
	}

	var norm float64
	for _, v := range vector {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return vector, nil
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range vector {
		vector[i] *= scale
	}
	return vector, nil
}

// Tokenize splits text into lower-cased letter and digit runs.
func Tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
