// Package analysis holds the per-request value types of a similarity analysis.
package analysis

import (
	"encoding/json"
	"fmt"
)

// SelfSimilarity is the exact value of every diagonal cell.
const SelfSimilarity = 100.0

// Document is one submitted text at its position in the batch.
type Document struct {
	Index          int
	RawText        string
	NormalizedText string
}

// Embedding is the vector computed for a document.
type Embedding struct {
	DocumentIndex int
	Vector        []float32
}

// Matrix is a square K×K table of similarity percentages indexed [i][j].
type Matrix [][]float64

// NewMatrix allocates a size×size matrix backed by one contiguous slice.
func NewMatrix(size int) Matrix {
	cells := make([]float64, size*size)
	m := make(Matrix, size)
	for i := range m {
		m[i] = cells[i*size : (i+1)*size : (i+1)*size]
	}
	return m
}

// Size returns the number of rows.
func (m Matrix) Size() int { return len(m) }

// ClonePair is an unordered pair of near-duplicate documents stored with A < B.
type ClonePair struct {
	A int
	B int
}

// NewClonePair returns the canonical pair for i and j.
func NewClonePair(i, j int) ClonePair {
	if i > j {
		i, j = j, i
	}
	return ClonePair{A: i, B: j}
}

// MarshalJSON encodes the pair as [a, b].
func (p ClonePair) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]int{p.A, p.B}) //nolint:wrapcheck // plain encoding
}

// UnmarshalJSON decodes [a, b] and rejects non-canonical pairs.
func (p *ClonePair) UnmarshalJSON(data []byte) error {
	var v [2]int
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("clone pair: %w", err)
	}
	if v[0] >= v[1] {
		return fmt.Errorf("clone pair: want a < b, got [%d, %d]", v[0], v[1])
	}
	p.A, p.B = v[0], v[1]
	return nil
}

// Result is the outcome of analyzing one batch.
type Result struct {
	Matrix Matrix
	Clones []ClonePair
}
