// Package retrieval ranks knowledge chunks against queries by combining
// semantic similarity with feedback-driven signal scores.
package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"

	"github.com/canokcuer/wellspring/internal/embedding"
	"github.com/canokcuer/wellspring/internal/knowledge"
	"github.com/canokcuer/wellspring/internal/models"
)

// Default search parameters.
const (
	// DefaultTopK is the result count used when callers pass no preference.
	DefaultTopK = 5
	// DefaultThreshold is the minimum cosine similarity for a chunk to be
	// considered relevant at all.
	DefaultThreshold = 0.3
)

// Result is a scored retrieval hit. FinalScore is Similarity multiplied by
// the chunk's signal score, so well-received chunks outrank equally similar
// ones that drew rejections.
type Result struct {
	Chunk      models.KnowledgeChunk
	Similarity float64
	FinalScore float64
}

// Engine performs corpus search: embed the query, score every chunk, filter
// by threshold and source, and return the top-k by final score.
type Engine struct {
	store    knowledge.Store
	embedder embedding.Embedder
}

// NewEngine creates a retrieval engine over the given store and embedder.
func NewEngine(store knowledge.Store, embedder embedding.Embedder) *Engine {
	return &Engine{store: store, embedder: embedder}
}

// Search returns up to topK chunks whose cosine similarity to the query meets
// the threshold, ranked by similarity times signal score. An empty
// sourceFilter matches every chunk; otherwise a chunk matches when its source
// equals the filter or lives under it as a path prefix ("wellness/centers"
// matches "wellness/centers/alpine" but not "wellness/centerstone").
//
// An empty result is a valid answer. Backend failures surface as
// models.ErrRetrievalUnavailable; contract violations as
// models.ErrInvalidArgument.
func (e *Engine) Search(ctx context.Context, query string, threshold float64, topK int, sourceFilter string) ([]Result, error) {
	if query == "" {
		return nil, fmt.Errorf("%w: query cannot be empty", models.ErrInvalidArgument)
	}
	if topK <= 0 {
		return nil, fmt.Errorf("%w: topK must be positive, got %d", models.ErrInvalidArgument, topK)
	}
	if threshold < 0 || threshold > 1 {
		return nil, fmt.Errorf("%w: threshold must be in [0, 1], got %v", models.ErrInvalidArgument, threshold)
	}

	queryVec, err := e.embedder.EncodeQuery(ctx, query)
	if err != nil {
		slog.Error("Engine Search query embedding failed", "error", err)
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	chunks, err := e.store.ListChunks(ctx)
	if err != nil {
		slog.Error("Engine Search corpus listing failed", "error", err)
		return nil, fmt.Errorf("%w: %v", models.ErrRetrievalUnavailable, err)
	}

	var results []Result
	for _, chunk := range chunks {
		if !sourceMatches(chunk.Source, sourceFilter) {
			continue
		}
		if len(chunk.Embedding) != len(queryVec) {
			slog.Warn("Engine Search skipping chunk with mismatched embedding dimension",
				"chunkID", chunk.ID, "chunkDim", len(chunk.Embedding), "queryDim", len(queryVec))
			continue
		}
		sim := cosineSimilarity(queryVec, chunk.Embedding)
		if sim < threshold {
			continue
		}
		results = append(results, Result{
			Chunk:      chunk,
			Similarity: sim,
			FinalScore: sim * chunk.SignalScore,
		})
	}

	// Rank by final score; ties by raw similarity, then by recency.
	sort.Slice(results, func(i, j int) bool {
		if results[i].FinalScore != results[j].FinalScore {
			return results[i].FinalScore > results[j].FinalScore
		}
		if results[i].Similarity != results[j].Similarity {
			return results[i].Similarity > results[j].Similarity
		}
		return results[i].Chunk.CreatedAt.After(results[j].Chunk.CreatedAt)
	})

	if len(results) > topK {
		results = results[:topK]
	}
	slog.Debug("Engine Search completed", "query_len", len(query), "results", len(results), "sourceFilter", sourceFilter)
	return results, nil
}

// sourceMatches reports whether a chunk source falls under the filter. The
// match is path-segment aware so a filter never matches a sibling source that
// merely shares a string prefix.
func sourceMatches(source, filter string) bool {
	if filter == "" {
		return true
	}
	if source == filter {
		return true
	}
	return strings.HasPrefix(source, filter+"/")
}

// cosineSimilarity computes the cosine of the angle between two vectors of
// equal length. Zero vectors yield zero similarity.
func cosineSimilarity(a, b []float32) float64 {
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
