package patterns

import (
	"context"
	"fmt"
	"math"
	"sort"

	"go.uber.org/zap"

	"github.com/selivandex/macro-sentinel/pkg/logger"
	"github.com/selivandex/macro-sentinel/pkg/models"
)

// PatternSource is the persistence surface the retriever needs.
type PatternSource interface {
	ListPatterns(ctx context.Context) ([]LibraryPattern, error)
}

// Embedder produces query vectors for similarity search.
type Embedder interface {
	Generate(ctx context.Context, text string) ([]float32, error)
}

// Retriever finds the library patterns closest to a news text. The coarse
// pattern IDs it returns are refined against live macro data downstream.
type Retriever struct {
	source   PatternSource
	embedder Embedder
}

// NewRetriever creates new pattern retriever
func NewRetriever(source PatternSource, embedder Embedder) *Retriever {
	return &Retriever{
		source:   source,
		embedder: embedder,
	}
}

// Retrieve returns the topK most similar patterns, best first.
func (r *Retriever) Retrieve(ctx context.Context, text string, topK int) ([]models.PatternCandidate, error) {
	queryEmbedding, err := r.embedder.Generate(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("failed to embed pattern query: %w", err)
	}

	library, err := r.source.ListPatterns(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load pattern library: %w", err)
	}

	candidates := make([]models.PatternCandidate, 0, len(library))
	for _, p := range library {
		candidates = append(candidates, models.PatternCandidate{
			PatternID:  p.PatternID,
			Title:      p.Title,
			Core:       p.Core,
			Similarity: cosineSimilarity(queryEmbedding, p.Embedding),
		})
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].Similarity > candidates[j].Similarity
	})

	if topK < len(candidates) {
		candidates = candidates[:topK]
	}

	if len(candidates) > 0 {
		logger.Debug("patterns retrieved",
			zap.String("best", candidates[0].PatternID),
			zap.Float64("similarity", candidates[0].Similarity),
			zap.Int("returned", len(candidates)),
		)
	}

	return candidates, nil
}

// cosineSimilarity calculates cosine similarity between two vectors
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0.0
	}

	dotProduct := float32(0.0)
	normA := float32(0.0)
	normB := float32(0.0)

	for i := 0; i < len(a); i++ {
		dotProduct += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	if normA == 0 || normB == 0 {
		return 0.0
	}

	return float64(dotProduct / (float32(math.Sqrt(float64(normA))) * float32(math.Sqrt(float64(normB)))))
}
