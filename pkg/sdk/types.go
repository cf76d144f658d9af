package simcheck

import domanalysis "github.com/kailas-cloud/simcheck/internal/domain/analysis"

// Matrix is a square table of similarity percentages indexed [i][j].
type Matrix = domanalysis.Matrix

// ClonePair is a pair of near-duplicate texts with A < B. It encodes to JSON as [a, b].
type ClonePair = domanalysis.ClonePair

// Result is the outcome of analyzing one batch.
type Result struct {
	Matrix Matrix
	Clones []ClonePair
}
