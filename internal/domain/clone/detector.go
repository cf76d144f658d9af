// Package clone selects near-duplicate pairs from a similarity matrix.
package clone

import (
	"fmt"

	"github.com/kailas-cloud/simcheck/internal/domain"
	"github.com/kailas-cloud/simcheck/internal/domain/analysis"
)

// Detect returns every pair (i, j), i < j, with m[i][j] >= threshold,
// ordered by i then j. The output does not depend on how m was built.
func Detect(m analysis.Matrix, threshold float64) ([]analysis.ClonePair, error) {
	if err := Validate(m); err != nil {
		return nil, err
	}

	clones := []analysis.ClonePair{}
	for i := 0; i < len(m); i++ {
		for j := i + 1; j < len(m); j++ {
			if m[i][j] >= threshold {
				clones = append(clones, analysis.ClonePair{A: i, B: j})
			}
		}
	}
	return clones, nil
}

// Validate rejects matrices that are not square or not exactly symmetric.
func Validate(m analysis.Matrix) error {
	n := len(m)
	for i, row := range m {
		if len(row) != n {
			return fmt.Errorf("row %d has %d columns, want %d: %w", i, len(row), n, domain.ErrInvalidMatrix)
		}
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if m[i][j] != m[j][i] {
				return fmt.Errorf("asymmetric cells (%d, %d): %v != %v: %w",
					i, j, m[i][j], m[j][i], domain.ErrInvalidMatrix)
			}
		}
	}
	return nil
}
