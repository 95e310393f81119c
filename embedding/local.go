package embedding

import (
	"context"
	"hash/fnv"
	"regexp"
	"strings"
)

// LocalEmbedder is a deterministic hashed term-frequency embedder for mock
// mode and tests. It needs no corpus preparation and no network, and the
// same text always maps to the same vector.
type LocalEmbedder struct {
	dimension    int
	tokenPattern *regexp.Regexp
	stopwords    map[string]struct{}
}

// NewLocalEmbedder creates an embedder producing vectors of the given
// dimension (default 256 when non-positive).
func NewLocalEmbedder(dimension int) *LocalEmbedder {
	if dimension <= 0 {
		dimension = 256
	}
	return &LocalEmbedder{
		dimension:    dimension,
		tokenPattern: regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*|\d+`),
		stopwords:    defaultStopwords(),
	}
}

// Dimension returns the dimensionality of the produced embedding vectors.
func (e *LocalEmbedder) Dimension() int { return e.dimension }

// Embed computes the L2-normalized hashed term-frequency vector for the text.
func (e *LocalEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	vec := make([]float64, e.dimension)
	total := 0
	for _, tok := range e.tokenize(text) {
		if _, isStop := e.stopwords[tok]; isStop {
			continue
		}
		vec[e.bucket(tok)]++
		total++
	}
	if total == 0 {
		return vec, nil
	}
	for i := range vec {
		vec[i] /= float64(total)
	}
	normalize(vec)
	return vec, nil
}

func (e *LocalEmbedder) tokenize(text string) []string {
	return e.tokenPattern.FindAllString(strings.ToLower(text), -1)
}

func (e *LocalEmbedder) bucket(term string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(term))
	return int(h.Sum32() % uint32(e.dimension))
}

func defaultStopwords() map[string]struct{} {
	words := []string{
		"a", "an", "and", "are", "as", "at", "be", "by", "for", "from",
		"has", "in", "is", "it", "its", "of", "on", "or", "that", "the",
		"to", "was", "were", "will", "with",
	}
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}
