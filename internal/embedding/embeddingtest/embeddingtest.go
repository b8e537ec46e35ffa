// Package embeddingtest provides a deterministic in-process embedder for tests.
package embeddingtest

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

const DefaultDimension = 64

// BagOfWords hashes lowercase word tokens into a fixed number of buckets.
// The last component is a constant bias so no text maps to the zero vector.
type BagOfWords struct {
	Dimension int
	ID        string

	// Err, when set, is returned by every call.
	Err error
	// QueryDimension overrides the dimension of EmbedQuery vectors.
	QueryDimension int

	DocumentCalls int
	QueryCalls    int
}

func New() *BagOfWords {
	return &BagOfWords{Dimension: DefaultDimension, ID: "test:bag-of-words"}
}

func (b *BagOfWords) Name() string { return b.ID }

func (b *BagOfWords) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	b.DocumentCalls++
	if b.Err != nil {
		return nil, b.Err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = Vector(t, b.Dimension)
	}
	return out, nil
}

func (b *BagOfWords) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	b.QueryCalls++
	if b.Err != nil {
		return nil, b.Err
	}
	dim := b.Dimension
	if b.QueryDimension > 0 {
		dim = b.QueryDimension
	}
	return Vector(text, dim), nil
}

// Vector returns the normalized bag-of-words vector of text.
func Vector(text string, dim int) []float32 {
	v := make([]float32, dim)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		h := fnv.New32a()
		_, _ = h.Write([]byte(w))
		v[int(h.Sum32()%uint32(dim-1))]++
	}
	v[dim-1] = 0.1

	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	norm = math.Sqrt(norm)
	for i := range v {
		v[i] = float32(float64(v[i]) / norm)
	}
	return v
}
