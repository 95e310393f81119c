package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"claimaudit-backend/chunker"
	"claimaudit-backend/models"
	"claimaudit-backend/storage"
)

// IngestionService turns policy documents into searchable chunks. Indexing
// replaces a policy's chunks atomically, so an audit running concurrently
// sees either the old version or the new one, never a mix.
type IngestionService struct {
	documents storage.DocumentStore
	policies  PolicyStore
	chunker   *chunker.Chunker
	embedder  Embedder
	index     ChunkIndex
}

// IngestionServiceOption is a functional option for IngestionService
type IngestionServiceOption func(*IngestionService)

// IngestionWithDocumentStore sets the raw document store
func IngestionWithDocumentStore(documents storage.DocumentStore) IngestionServiceOption {
	return func(s *IngestionService) { s.documents = documents }
}

// IngestionWithPolicyStore sets the policy metadata store
func IngestionWithPolicyStore(policies PolicyStore) IngestionServiceOption {
	return func(s *IngestionService) { s.policies = policies }
}

// IngestionWithChunker sets the chunker
func IngestionWithChunker(c *chunker.Chunker) IngestionServiceOption {
	return func(s *IngestionService) { s.chunker = c }
}

// IngestionWithEmbedder sets the embedder
func IngestionWithEmbedder(embedder Embedder) IngestionServiceOption {
	return func(s *IngestionService) { s.embedder = embedder }
}

// IngestionWithIndex sets the chunk index
func IngestionWithIndex(index ChunkIndex) IngestionServiceOption {
	return func(s *IngestionService) { s.index = index }
}

// NewIngestionService creates a new ingestion service
func NewIngestionService(opts ...IngestionServiceOption) *IngestionService {
	s := &IngestionService{
		chunker: chunker.New(chunker.DefaultTargetTokens, chunker.DefaultOverlapTokens),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// IngestPolicy stores the document, chunks it, embeds every chunk and swaps
// the result into the index. Returns the number of chunks indexed.
func (s *IngestionService) IngestPolicy(ctx context.Context, doc *models.PolicyDocument) (int, error) {
	if s.embedder == nil || s.index == nil {
		return 0, errors.New("ingestion service missing pipeline components")
	}
	if doc == nil || strings.TrimSpace(doc.ID) == "" {
		return 0, errors.New("policy document must have an id")
	}
	if strings.TrimSpace(doc.Text) == "" {
		return 0, fmt.Errorf("policy %s has no text to ingest", doc.ID)
	}

	if s.documents != nil {
		if err := s.documents.Save(ctx, doc); err != nil {
			return 0, fmt.Errorf("failed to store policy document %s: %w", doc.ID, err)
		}
	}
	if s.policies != nil {
		if err := s.policies.SavePolicy(ctx, doc); err != nil {
			return 0, fmt.Errorf("failed to store policy metadata %s: %w", doc.ID, err)
		}
	}

	return s.indexDocument(ctx, doc)
}

// ReindexPolicy rebuilds the index entries of an already stored policy, for
// example after chunker tuning changes.
func (s *IngestionService) ReindexPolicy(ctx context.Context, policyID string) (int, error) {
	if s.documents == nil {
		return 0, errors.New("document store not set")
	}
	doc, err := s.documents.Get(ctx, policyID)
	if err != nil {
		return 0, fmt.Errorf("failed to load policy %s: %w", policyID, err)
	}
	return s.indexDocument(ctx, doc)
}

// DeletePolicy removes a policy's chunks from the index and its stored
// document. Audit records that already cite the policy are untouched.
func (s *IngestionService) DeletePolicy(ctx context.Context, policyID string) error {
	if err := s.index.Delete(ctx, policyID); err != nil {
		return fmt.Errorf("failed to remove policy %s from index: %w", policyID, err)
	}
	if s.documents != nil {
		if err := s.documents.Delete(ctx, policyID); err != nil {
			log.Printf("Warning: failed to delete stored document for policy %s: %v", policyID, err)
		}
	}
	return nil
}

func (s *IngestionService) indexDocument(ctx context.Context, doc *models.PolicyDocument) (int, error) {
	chunks := s.chunker.Chunk(*doc)
	if len(chunks) == 0 {
		return 0, fmt.Errorf("policy %s produced no chunks", doc.ID)
	}

	vectors := make([][]float64, len(chunks))
	for i, chunk := range chunks {
		vector, err := s.embedder.Embed(ctx, chunk.Text)
		if err != nil {
			return 0, fmt.Errorf("failed to embed chunk %s: %w", chunk.ID, err)
		}
		vectors[i] = vector
	}

	if err := s.index.Replace(ctx, doc.ID, chunks, vectors); err != nil {
		return 0, fmt.Errorf("failed to index policy %s: %w", doc.ID, err)
	}
	return len(chunks), nil
}
