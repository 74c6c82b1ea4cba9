// Package rag implements the retrieval and answering core: hybrid retrieval
// with reciprocal-rank fusion, the document ingestion pipeline, and the chat
// query flow.
package rag

import (
	"context"
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/letha11/backend-chatbot/internal/models"
	"github.com/letha11/backend-chatbot/internal/search"
)

// HybridRetriever fuses dense vector search and BM25 lexical search over the
// same index using reciprocal-rank scoring.
type HybridRetriever struct {
	index        search.Index
	vectorWeight float64
	bm25Weight   float64
	threshold    float64
	logger       *logrus.Logger
}

// NewHybridRetriever creates a retriever. Weights that do not sum to 1 are
// renormalized proportionally.
func NewHybridRetriever(index search.Index, vectorWeight, bm25Weight, threshold float64, logger *logrus.Logger) *HybridRetriever {
	if logger == nil {
		logger = logrus.New()
	}

	total := vectorWeight + bm25Weight
	if total <= 0 {
		vectorWeight, bm25Weight = 0.7, 0.3
		total = 1.0
	}
	if total != 1.0 {
		vectorWeight = vectorWeight / total
		bm25Weight = bm25Weight / total
		logger.WithFields(logrus.Fields{
			"vector_weight": vectorWeight,
			"bm25_weight":   bm25Weight,
		}).Info("Adjusted hybrid weights")
	}

	return &HybridRetriever{
		index:        index,
		vectorWeight: vectorWeight,
		bm25Weight:   bm25Weight,
		threshold:    threshold,
		logger:       logger,
	}
}

// Search runs both retrieval branches concurrently and fuses their rankings.
// A failure in one branch degrades it to an empty result set; the search
// errors only when both branches fail.
func (r *HybridRetriever) Search(ctx context.Context, query string, embedding []float32, divisionID string, topK int) ([]models.SimilarityResult, error) {
	branchK := topK * 2
	if branchK < 10 {
		branchK = 10
	}

	var (
		vectorHits []search.Hit
		bm25Hits   []search.Hit
		vectorErr  error
		bm25Err    error
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		hits, err := r.index.SearchVector(gctx, embedding, divisionID, branchK)
		if err != nil {
			r.logger.WithError(err).Error("Vector search branch failed")
			vectorErr = err
			return nil
		}
		vectorHits = hits
		return nil
	})
	g.Go(func() error {
		hits, err := r.index.SearchText(gctx, query, divisionID, branchK)
		if err != nil {
			r.logger.WithError(err).Error("BM25 search branch failed")
			bm25Err = err
			return nil
		}
		bm25Hits = hits
		return nil
	})
	_ = g.Wait()

	if vectorErr != nil && bm25Err != nil {
		return nil, fmt.Errorf("both search branches failed: vector: %v; bm25: %v", vectorErr, bm25Err)
	}

	results := r.fuse(vectorHits, bm25Hits, topK)
	r.logger.WithFields(logrus.Fields{
		"vector_hits": len(vectorHits),
		"bm25_hits":   len(bm25Hits),
		"fused":       len(results),
	}).Info("Hybrid search completed")
	return results, nil
}

// VectorOnly is the degraded retrieval path used when hybrid search fails.
func (r *HybridRetriever) VectorOnly(ctx context.Context, embedding []float32, divisionID string, topK int) ([]models.SimilarityResult, error) {
	hits, err := r.index.SearchVector(ctx, embedding, divisionID, topK)
	if err != nil {
		return nil, fmt.Errorf("vector-only search failed: %w", err)
	}

	results := make([]models.SimilarityResult, 0, len(hits))
	for _, hit := range hits {
		results = append(results, models.SimilarityResult{
			ChunkText:  hit.ChunkText,
			ChunkIndex: hit.ChunkIndex,
			Filename:   hit.Filename,
			Distance:   1.0 / (1.0 + hit.Score),
		})
	}
	return results, nil
}

type fusedHit struct {
	hit   search.Hit
	score float64
}

// fuse combines both rankings with reciprocal-rank scores. Chunk identity is
// document id plus chunk index, which both branches report consistently.
func (r *HybridRetriever) fuse(vectorHits, bm25Hits []search.Hit, topK int) []models.SimilarityResult {
	type entry struct {
		hit        search.Hit
		vectorRank int
		bm25Rank   int
	}

	chunkKey := func(h search.Hit) string {
		return fmt.Sprintf("%s_%d", h.DocumentID, h.ChunkIndex)
	}

	entries := make(map[string]*entry)
	order := make([]string, 0, len(vectorHits)+len(bm25Hits))

	for i, hit := range vectorHits {
		key := chunkKey(hit)
		entries[key] = &entry{hit: hit, vectorRank: i + 1}
		order = append(order, key)
	}
	for i, hit := range bm25Hits {
		key := chunkKey(hit)
		if e, ok := entries[key]; ok {
			e.bm25Rank = i + 1
			continue
		}
		entries[key] = &entry{hit: hit, bm25Rank: i + 1}
		order = append(order, key)
	}

	// Reciprocal rank: 1/rank, zero when absent from a branch.
	rankScore := func(rank int) float64 {
		if rank <= 0 {
			return 0
		}
		return 1.0 / float64(rank)
	}

	fused := make([]fusedHit, 0, len(entries))
	for _, key := range order {
		e := entries[key]
		score := r.vectorWeight*rankScore(e.vectorRank) + r.bm25Weight*rankScore(e.bm25Rank)
		if score < r.threshold {
			continue
		}
		fused = append(fused, fusedHit{hit: e.hit, score: score})
	}

	sort.SliceStable(fused, func(i, j int) bool {
		return fused[i].score > fused[j].score
	})
	if len(fused) > topK {
		fused = fused[:topK]
	}

	results := make([]models.SimilarityResult, 0, len(fused))
	for _, f := range fused {
		results = append(results, models.SimilarityResult{
			ChunkText:  f.hit.ChunkText,
			ChunkIndex: f.hit.ChunkIndex,
			Filename:   f.hit.Filename,
			Distance:   1.0 / (1.0 + f.score),
		})
	}
	return results
}
