package ai

import (
	"context"
	"math"
	"testing"
)

func TestLocalEmbedderDeterministic(t *testing.T) {
	emb := NewLocalEmbedder(256)
	a, err := emb.Embed(context.Background(), "what are the pillars of islam")
	if err != nil {
		t.Fatalf("embed error: %v", err)
	}
	b, _ := emb.Embed(context.Background(), "what are the pillars of islam")
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("vectors differ at %d: %v vs %v", i, a[i], b[i])
		}
	}
}

func TestLocalEmbedderUnitLength(t *testing.T) {
	emb := NewLocalEmbedder(128)
	vec, err := emb.Embed(context.Background(), "ruling on fasting while travelling")
	if err != nil {
		t.Fatalf("embed error: %v", err)
	}
	var sum float64
	for _, x := range vec {
		sum += float64(x) * float64(x)
	}
	if math.Abs(sum-1.0) > 1e-4 {
		t.Errorf("vector norm^2 = %f, want 1.0", sum)
	}
}

func TestLocalEmbedderSimilarityOrdering(t *testing.T) {
	emb := NewLocalEmbedder(256)
	ctx := context.Background()
	query, _ := emb.Embed(ctx, "five pillars of islam")
	close1, _ := emb.Embed(ctx, "what are the pillars of islam")
	far, _ := emb.Embed(ctx, "how many daily prayers are there")

	if cosine(query, close1) <= cosine(query, far) {
		t.Errorf("paraphrase scored %f, unrelated scored %f; expected paraphrase higher",
			cosine(query, close1), cosine(query, far))
	}
}

func TestLocalEmbedderBatch(t *testing.T) {
	emb := NewLocalEmbedder(64)
	vecs, err := emb.EmbedBatch(context.Background(), []string{"a b c", "d e f"})
	if err != nil {
		t.Fatalf("batch error: %v", err)
	}
	if len(vecs) != 2 {
		t.Fatalf("expected 2 vectors, got %d", len(vecs))
	}
	for i, v := range vecs {
		if len(v) != 64 {
			t.Errorf("vector %d dimension = %d, want 64", i, len(v))
		}
	}
}

func cosine(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
