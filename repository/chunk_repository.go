package repository

import (
	"context"
	"fmt"
	"strings"

	"claimaudit-backend/models"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ChunkRepository stores policy chunks with their embeddings in Postgres and
// serves the hybrid retrieval query. It backs the same interface as the
// in-memory index, so the two are interchangeable behind the retriever.
type ChunkRepository struct {
	db            *pgxpool.Pool
	dimension     int
	vectorWeight  float64
	lexicalWeight float64
}

// NewChunkRepository creates a new chunk repository. Weights blend vector
// similarity with full-text rank in the retrieval score.
func NewChunkRepository(db *pgxpool.Pool, dimension int, vectorWeight, lexicalWeight float64) *ChunkRepository {
	if dimension <= 0 {
		dimension = 768
	}
	if vectorWeight <= 0 && lexicalWeight <= 0 {
		vectorWeight, lexicalWeight = 0.7, 0.3
	}
	return &ChunkRepository{
		db:            db,
		dimension:     dimension,
		vectorWeight:  vectorWeight,
		lexicalWeight: lexicalWeight,
	}
}

// formatVector formats an embedding vector as a string for pgx
func formatVector(embedding []float64) string {
	if len(embedding) == 0 {
		return "[]"
	}
	var parts []string
	for _, v := range embedding {
		parts = append(parts, fmt.Sprintf("%.6f", v))
	}
	return "[" + strings.Join(parts, ",") + "]"
}

// Replace swaps all chunks of a policy inside one transaction, so concurrent
// searches see the old chunk set or the new one but never a mix.
func (r *ChunkRepository) Replace(ctx context.Context, policyID string, chunks []models.Chunk, vectors [][]float64) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("got %d chunks but %d vectors", len(chunks), len(vectors))
	}
	for i, chunk := range chunks {
		if chunk.PolicyID != policyID {
			return fmt.Errorf("chunk %s belongs to policy %s, not %s", chunk.ID, chunk.PolicyID, policyID)
		}
		if len(vectors[i]) != r.dimension {
			return fmt.Errorf("vector for chunk %s has %d dimensions, want %d", chunk.ID, len(vectors[i]), r.dimension)
		}
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM policy_chunks WHERE policy_id = $1`, policyID); err != nil {
		return fmt.Errorf("failed to clear chunks for policy %s: %w", policyID, err)
	}

	insert := `
		INSERT INTO policy_chunks (
			id, policy_id, policy_name, page, section_path, start_char, end_char, chunk_text, embedding
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9::vector
		)`
	for i, chunk := range chunks {
		_, err := tx.Exec(
			ctx, insert,
			chunk.ID,
			chunk.PolicyID,
			chunk.PolicyName,
			chunk.Page,
			chunk.SectionPath,
			chunk.StartChar,
			chunk.EndChar,
			chunk.Text,
			formatVector(vectors[i]),
		)
		if err != nil {
			return fmt.Errorf("failed to insert chunk %s: %w", chunk.ID, err)
		}
	}

	return tx.Commit(ctx)
}

// Delete removes all chunks of a policy
func (r *ChunkRepository) Delete(ctx context.Context, policyID string) error {
	_, err := r.db.Exec(ctx, `DELETE FROM policy_chunks WHERE policy_id = $1`, policyID)
	return err
}

// Search runs the hybrid query: cosine similarity on the embedding blended
// with full-text rank on the chunk text, restricted to the given policies.
func (r *ChunkRepository) Search(ctx context.Context, query models.SearchQuery) ([]models.ScoredChunk, error) {
	if len(query.PolicyIDs) == 0 {
		return nil, nil
	}
	if len(query.Vector) != r.dimension {
		return nil, fmt.Errorf("query vector has %d dimensions, want %d", len(query.Vector), r.dimension)
	}
	limit := query.K
	if limit <= 0 {
		limit = 6
	}

	sql := `
		SELECT
			id, policy_id, policy_name, page, section_path, start_char, end_char, chunk_text,
			(1 - (embedding <=> $1::vector)) * $4
				+ ts_rank_cd(to_tsvector('english', chunk_text), plainto_tsquery('english', $2)) * $5
				AS score
		FROM policy_chunks
		WHERE policy_id = ANY($3)
		ORDER BY score DESC, id
		LIMIT $6`

	rows, err := r.db.Query(ctx, sql,
		formatVector(query.Vector),
		query.Text,
		query.PolicyIDs,
		r.vectorWeight,
		r.lexicalWeight,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query policy chunks: %w", err)
	}
	defer rows.Close()

	var hits []models.ScoredChunk
	for rows.Next() {
		var hit models.ScoredChunk
		err := rows.Scan(
			&hit.Chunk.ID,
			&hit.Chunk.PolicyID,
			&hit.Chunk.PolicyName,
			&hit.Chunk.Page,
			&hit.Chunk.SectionPath,
			&hit.Chunk.StartChar,
			&hit.Chunk.EndChar,
			&hit.Chunk.Text,
			&hit.Score,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan policy chunk: %w", err)
		}
		hits = append(hits, hit)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating policy chunks: %w", err)
	}

	return hits, nil
}
