package openaiservice

import (
	"context"
	"math"
)

// EmbedWithRetry wraps Client.Embed in the retry policy.
func EmbedWithRetry(ctx context.Context, c Client, inputs []string) ([][]float32, error) {
	return WithRetry(ctx, "Embed", func(ctx context.Context) ([][]float32, error) {
		return c.Embed(ctx, inputs)
	})
}

// CosineSimilarity returns 0 for mismatched or zero-length vectors.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
