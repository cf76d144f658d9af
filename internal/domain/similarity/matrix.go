// Package similarity builds the pairwise similarity matrix of a batch.
package similarity

import (
	"context"
	"fmt"
	"math"

	"github.com/kailas-cloud/simcheck/internal/domain"
	"github.com/kailas-cloud/simcheck/internal/domain/analysis"
)

// Cosine computes the cosine similarity of two equal-length vectors in [-1, 1].
// A zero-norm vector has no direction and yields 0.
func Cosine(a, b []float32) float64 {
	var dot, normA, normB float64
	for i := range a {
		ai := float64(a[i])
		bi := float64(b[i])
		dot += ai * bi
		normA += ai * ai
		normB += bi * bi
	}

	denom := math.Sqrt(normA) * math.Sqrt(normB)
	if denom == 0 {
		return 0
	}
	return dot / denom
}

// Percent maps a cosine in [-1, 1] to [0, 100], rounded to 2 decimals.
func Percent(cos float64) float64 {
	p := (cos + 1) / 2 * 100
	p = math.Round(p*100) / 100
	return math.Max(0, math.Min(analysis.SelfSimilarity, p))
}

// Build computes the full similarity matrix for vectors.
func Build(vectors [][]float32) (analysis.Matrix, error) {
	return BuildContext(context.Background(), vectors)
}

// BuildContext computes the similarity matrix, checking ctx between rows.
// Only the upper triangle is computed; each value is mirrored so [i][j] and
// [j][i] are the same float. The diagonal is set without computing.
func BuildContext(ctx context.Context, vectors [][]float32) (analysis.Matrix, error) {
	if err := checkDimensions(vectors); err != nil {
		return nil, err
	}

	n := len(vectors)
	m := analysis.NewMatrix(n)
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("build matrix: %w", err)
		}
		m[i][i] = analysis.SelfSimilarity
		for j := i + 1; j < n; j++ {
			cos := Cosine(vectors[i], vectors[j])
			if math.IsNaN(cos) || math.IsInf(cos, 0) {
				return nil, fmt.Errorf("non-finite similarity for pair (%d, %d): %w", i, j, domain.ErrInvalidMatrix)
			}
			p := Percent(cos)
			m[i][j] = p
			m[j][i] = p
		}
	}
	return m, nil
}

func checkDimensions(vectors [][]float32) error {
	if len(vectors) == 0 {
		return nil
	}
	dim := len(vectors[0])
	for i, v := range vectors[1:] {
		if len(v) != dim {
			return fmt.Errorf("vector %d has %d dimensions, vector 0 has %d: %w",
				i+1, len(v), dim, domain.ErrDimensionMismatch)
		}
	}
	return nil
}
