// Package index provides the in-memory hybrid chunk index used in mock mode
// and tests. Reindexing a policy builds a fresh partition and swaps it in
// atomically, so a concurrent query sees either the fully-old or fully-new
// index for a policy, never a mix.
package index

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"

	"claimaudit-backend/models"
)

var tokenPattern = regexp.MustCompile(`[a-z0-9]+`)

// MemoryIndex stores embedded chunks per policy and serves weighted hybrid
// (semantic + lexical) search over them.
type MemoryIndex struct {
	mu            sync.RWMutex
	partitions    map[string]*partition
	vectorWeight  float64
	lexicalWeight float64
}

type partition struct {
	chunks  []models.Chunk
	vectors [][]float64
	terms   []map[string]bool
}

// NewMemoryIndex creates an empty index. Weights control how semantic and
// lexical scores are merged; non-positive weights fall back to 0.7/0.3.
func NewMemoryIndex(vectorWeight, lexicalWeight float64) *MemoryIndex {
	if vectorWeight <= 0 || lexicalWeight < 0 {
		vectorWeight, lexicalWeight = 0.7, 0.3
	}
	return &MemoryIndex{
		partitions:    make(map[string]*partition),
		vectorWeight:  vectorWeight,
		lexicalWeight: lexicalWeight,
	}
}

// Replace atomically replaces all indexed chunks for one policy. The new
// partition is fully built before the swap, so concurrent searches never
// observe a partial state.
func (m *MemoryIndex) Replace(ctx context.Context, policyID string, chunks []models.Chunk, vectors [][]float64) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("chunks and vectors length mismatch: %d vs %d", len(chunks), len(vectors))
	}
	p := &partition{
		chunks:  append([]models.Chunk(nil), chunks...),
		vectors: append([][]float64(nil), vectors...),
		terms:   make([]map[string]bool, len(chunks)),
	}
	for i, chunk := range p.chunks {
		if chunk.PolicyID != policyID {
			return fmt.Errorf("chunk %s belongs to policy %s, not %s", chunk.ID, chunk.PolicyID, policyID)
		}
		p.terms[i] = termSet(chunk.Text)
	}

	m.mu.Lock()
	m.partitions[policyID] = p
	m.mu.Unlock()
	return nil
}

// Delete removes a policy's chunks from the index.
func (m *MemoryIndex) Delete(ctx context.Context, policyID string) error {
	m.mu.Lock()
	delete(m.partitions, policyID)
	m.mu.Unlock()
	return nil
}

// Search returns the top-K chunks for the query, most relevant first. Only
// chunks owned by the query's allowed policies are considered; an empty
// result is valid.
func (m *MemoryIndex) Search(ctx context.Context, q models.SearchQuery) ([]models.ScoredChunk, error) {
	if q.K <= 0 {
		return nil, nil
	}
	queryTerms := termSet(q.Text)

	m.mu.RLock()
	defer m.mu.RUnlock()

	var hits []models.ScoredChunk
	for _, policyID := range q.PolicyIDs {
		p, ok := m.partitions[policyID]
		if !ok {
			continue
		}
		for i := range p.chunks {
			score := m.vectorWeight*dot(p.vectors[i], q.Vector) +
				m.lexicalWeight*overlap(queryTerms, p.terms[i])
			hits = append(hits, models.ScoredChunk{Chunk: p.chunks[i], Score: score})
		}
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].Chunk.ID < hits[j].Chunk.ID
	})
	if len(hits) > q.K {
		hits = hits[:q.K]
	}
	return hits, nil
}

func dot(a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	sum := 0.0
	for i := 0; i < n; i++ {
		sum += a[i] * b[i]
	}
	return sum
}

// overlap scores the fraction of distinct query terms present in the chunk.
func overlap(query, chunk map[string]bool) float64 {
	if len(query) == 0 {
		return 0
	}
	matched := 0
	for term := range query {
		if chunk[term] {
			matched++
		}
	}
	return float64(matched) / float64(len(query))
}

func termSet(text string) map[string]bool {
	terms := make(map[string]bool)
	for _, tok := range tokenPattern.FindAllString(strings.ToLower(text), -1) {
		terms[tok] = true
	}
	return terms
}
