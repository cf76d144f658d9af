// Package local provides a deterministic in-process embedder based on feature hashing.
package local

import (
	"context"
	"fmt"
	"hash"
	"math"
	"strings"
	"time"

	"github.com/minio/highwayhash"

	"github.com/kailas-cloud/simcheck/internal/domain"
	"github.com/kailas-cloud/simcheck/internal/metrics"
)

// hashKey is fixed so vectors are stable across processes and releases.
var hashKey = []byte("simcheck-local-feature-hashing!!")

const (
	unigramWeight = 1.0
	bigramWeight  = 0.5
)

// Embedder maps text to a signed bag of hashed word unigrams and bigrams,
// L2-normalized. Texts sharing no words produce orthogonal-ish vectors;
// identical texts produce identical vectors.
type Embedder struct {
	dimensions int
	model      string
}

// NewEmbedder creates a local embedder producing vectors of the given size.
func NewEmbedder(dimensions int) (*Embedder, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("local embedder needs positive dimensions, got %d", dimensions)
	}
	if _, err := highwayhash.New64(hashKey); err != nil {
		return nil, fmt.Errorf("highwayhash key: %w", err)
	}
	return &Embedder{dimensions: dimensions, model: fmt.Sprintf("hashing-%d", dimensions)}, nil
}

// Embed implements domain.Embedder.
func (e *Embedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	if err := ctx.Err(); err != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("local embed: %w", err)
	}

	start := time.Now()
	h, err := highwayhash.New64(hashKey)
	if err != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("local embed: %v: %w", err, domain.ErrEmbeddingUnavailable)
	}

	vec := e.vectorize(h, text)
	metrics.ObserveEmbeddingCall(domain.ProviderLocal, e.model, time.Since(start), 0, 0)

	return domain.EmbeddingResult{Embedding: vec}, nil
}

// BatchEmbed implements domain.BatchEmbedder.
func (e *Embedder) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	if len(texts) == 0 {
		return domain.BatchEmbeddingResult{}, nil
	}

	start := time.Now()
	h, err := highwayhash.New64(hashKey)
	if err != nil {
		return domain.BatchEmbeddingResult{}, fmt.Errorf("local batch embed: %v: %w", err, domain.ErrEmbeddingUnavailable)
	}

	out := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return domain.BatchEmbeddingResult{}, fmt.Errorf("local batch embed: %w", err)
		}
		out[i] = e.vectorize(h, text)
	}
	metrics.ObserveEmbeddingCall(domain.ProviderLocal, e.model, time.Since(start), 0, 0)

	return domain.BatchEmbeddingResult{Embeddings: out}, nil
}

// HealthCheck always succeeds; there is nothing remote to reach.
func (e *Embedder) HealthCheck(context.Context) error { return nil }

func (e *Embedder) vectorize(h hash.Hash64, text string) []float32 {
	acc := make([]float64, e.dimensions)
	words := strings.Fields(text)

	for i, w := range words {
		e.add(h, acc, w, unigramWeight)
		if i > 0 {
			e.add(h, acc, words[i-1]+" "+w, bigramWeight)
		}
	}

	var norm float64
	for _, v := range acc {
		norm += v * v
	}
	vec := make([]float32, e.dimensions)
	if norm == 0 {
		return vec
	}
	norm = math.Sqrt(norm)
	for i, v := range acc {
		vec[i] = float32(v / norm)
	}
	return vec
}

// add hashes one feature into a bucket; the top bit of the hash picks the sign.
func (e *Embedder) add(h hash.Hash64, acc []float64, feature string, weight float64) {
	h.Reset()
	_, _ = h.Write([]byte(feature))
	sum := h.Sum64()

	bucket := sum % uint64(e.dimensions)
	if sum>>63 == 1 {
		weight = -weight
	}
	acc[bucket] += weight
}
