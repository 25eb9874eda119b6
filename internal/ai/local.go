package ai

import (
	"context"
	"hash/fnv"
	"strings"
)

// LocalEmbedder is a deterministic hashed bag-of-words embedder. It exists
// for development and tests: no network, no model download, same text always
// maps to the same unit vector. Token and character-trigram buckets give
// paraphrases with shared vocabulary a meaningfully high cosine similarity.
type LocalEmbedder struct {
	dimension int
}

func NewLocalEmbedder(dimension int) *LocalEmbedder {
	if dimension <= 0 {
		dimension = 256
	}
	return &LocalEmbedder{dimension: dimension}
}

func (l *LocalEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, l.dimension)

	for _, token := range strings.Fields(text) {
		vec[l.bucket(token)] += 2
		runes := []rune(token)
		for i := 0; i+3 <= len(runes); i++ {
			vec[l.bucket(string(runes[i:i+3]))]++
		}
	}

	return l2Normalize(vec), nil
}

func (l *LocalEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := l.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		vectors[i] = vec
	}
	return vectors, nil
}

func (l *LocalEmbedder) Dimension() int  { return l.dimension }
func (l *LocalEmbedder) Version() string { return "local/hashed-bow-v1" }

func (l *LocalEmbedder) bucket(s string) int {
	h := fnv.New32a()
	h.Write([]byte(s))
	return int(h.Sum32() % uint32(l.dimension))
}
