// Package embedding provides the embedding backends used to index policy
// chunks and embed retrieval queries.
package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"net/http"
	"time"
)

const (
	embeddingAPI = "https://generativelanguage.googleapis.com/v1beta/models/gemini-embedding-001:embedContent"

	// GeminiDimension is the output dimensionality requested from the
	// embedding model; the pgvector column is sized to match.
	GeminiDimension = 768

	embedAttempts       = 3
	embedInitialBackoff = time.Second
)

// EmbeddingRequest represents an embedding API request
type EmbeddingRequest struct {
	Model                string       `json:"model"`
	Content              ContentInput `json:"content"`
	TaskType             string       `json:"task_type,omitempty"`
	OutputDimensionality int          `json:"output_dimensionality,omitempty"`
}

// ContentInput represents content for embedding
type ContentInput struct {
	Parts []PartInput `json:"parts"`
}

// PartInput represents a part of content
type PartInput struct {
	Text string `json:"text"`
}

// EmbeddingResponse represents an embedding API response
type EmbeddingResponse struct {
	Embedding EmbeddingData `json:"embedding"`
}

// EmbeddingData contains the embedding values
type EmbeddingData struct {
	Values []float64 `json:"values"`
}

// GeminiEmbedder calls the Gemini embedding API over HTTP. Transient failures
// (network errors, 5xx, 429) are retried with a doubling backoff; client
// errors such as 400 and 401 fail immediately.
type GeminiEmbedder struct {
	apiKey   string
	taskType string
	client   *http.Client
	endpoint string
	backoff  time.Duration
}

// NewGeminiEmbedder creates an embedder for the given API key.
func NewGeminiEmbedder(apiKey string) *GeminiEmbedder {
	return &GeminiEmbedder{
		apiKey:   apiKey,
		taskType: "RETRIEVAL_DOCUMENT",
		client:   &http.Client{Timeout: 30 * time.Second},
		endpoint: embeddingAPI,
		backoff:  embedInitialBackoff,
	}
}

// Dimension returns the embedding dimensionality.
func (e *GeminiEmbedder) Dimension() int { return GeminiDimension }

// Embed returns the L2-normalized embedding of the text.
func (e *GeminiEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	if e.apiKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY not set")
	}

	reqBody := EmbeddingRequest{
		Model: "models/gemini-embedding-001",
		Content: ContentInput{
			Parts: []PartInput{{Text: text}},
		},
		TaskType:             e.taskType,
		OutputDimensionality: GeminiDimension,
	}
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	backoff := e.backoff
	var lastErr error
	for attempt := 1; attempt <= embedAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-time.After(backoff):
				backoff *= 2
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		embedding, retryable, err := e.embedOnce(ctx, jsonData)
		if err == nil {
			return embedding, nil
		}
		if !retryable || ctx.Err() != nil {
			return nil, err
		}
		lastErr = err
		log.Printf("Warning: embedding attempt %d failed, retrying: %v", attempt, err)
	}
	return nil, lastErr
}

// embedOnce performs a single API call. retryable reports whether the failure
// is worth another attempt: client errors other than 429 never are.
func (e *GeminiEmbedder) embedOnce(ctx context.Context, jsonData []byte) (embedding []float64, retryable bool, err error) {
	req, err := http.NewRequestWithContext(ctx, "POST", e.endpoint, bytes.NewReader(jsonData))
	if err != nil {
		return nil, false, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", e.apiKey)

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, true, fmt.Errorf("embedding request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		retryable = resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests
		return nil, retryable, fmt.Errorf("embedding API error: %d", resp.StatusCode)
	}

	var apiResp EmbeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, true, fmt.Errorf("failed to decode embedding response: %w", err)
	}

	embedding = apiResp.Embedding.Values
	if len(embedding) == 0 {
		return nil, false, fmt.Errorf("embedding API returned empty vector")
	}
	normalize(embedding)
	return embedding, false, nil
}

func normalize(vec []float64) {
	norm := 0.0
	for _, v := range vec {
		norm += v * v
	}
	norm = math.Sqrt(norm)
	if norm > 0 {
		for i := range vec {
			vec[i] /= norm
		}
	}
}
