package models

// Chunk is a contiguous, page/section-tagged segment of a policy document.
// StartChar/EndChar resolve to a substring of the parent document's text.
type Chunk struct {
	ID          string `json:"chunk_id"`
	PolicyID    string `json:"policy_id"`
	PolicyName  string `json:"policy_name"`
	Page        int    `json:"page"`
	SectionPath string `json:"section_path"`
	StartChar   int    `json:"start_char"`
	EndChar     int    `json:"end_char"`
	Text        string `json:"text"`
}

// SearchQuery describes one hybrid retrieval request against the chunk index.
type SearchQuery struct {
	// Vector is the embedded query for semantic similarity.
	Vector []float64
	// Text is the raw query for lexical matching.
	Text string
	// PolicyIDs restricts results to chunks owned by these policies.
	// An empty set matches nothing: the retriever always resolves the
	// applicable policies first.
	PolicyIDs []string
	// K caps the number of results.
	K int
}

// ScoredChunk is a retrieval hit, most relevant first when returned in a
// slice.
type ScoredChunk struct {
	Chunk Chunk   `json:"chunk"`
	Score float64 `json:"score"`
}
