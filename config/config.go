// Package config loads runtime configuration from the environment with
// sensible defaults, so the server and the CLI tools share one source of
// truth for pipeline tuning.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// BackendMode selects between deterministic built-in components and the
// external Gemini/Postgres integrations.
type BackendMode string

const (
	ModeMock BackendMode = "mock"
	ModeReal BackendMode = "real"
)

// Pipeline holds the tuning knobs of the adjudication pipeline.
type Pipeline struct {
	// TopK is the number of chunks retrieved per audit.
	TopK int
	// AuditTimeout bounds one end-to-end audit run.
	AuditTimeout time.Duration
	// RetryBackoff is the pause before the single retry of a failed
	// retrieval or extraction stage.
	RetryBackoff time.Duration

	// ApproveThreshold is the minimum confidence for an APPROVE.
	ApproveThreshold float64
	// ReviewFloor is the confidence below which even a clean evaluation is
	// routed to a human instead of auto-decided.
	ReviewFloor float64
	// ExtractionWeight and SatisfactionWeight blend rule-extraction
	// confidence with the satisfied fraction into the decision confidence.
	// They must sum to 1.
	ExtractionWeight   float64
	SatisfactionWeight float64
	// ExtractionFloor drops extracted rules the backend is unsure about.
	ExtractionFloor float64

	// VectorWeight and LexicalWeight blend the two retrieval signals.
	VectorWeight  float64
	LexicalWeight float64

	// EmbeddingDim is the dimensionality of chunk and query vectors.
	EmbeddingDim int

	// PromptVersion is stamped on every audit record so outputs can be
	// traced to the extraction prompt that produced them.
	PromptVersion string
}

// Config is the full runtime configuration.
type Config struct {
	Port        string
	DatabaseURL string

	Mode         BackendMode
	GeminiAPIKey string
	GeminiModel  string

	Pipeline Pipeline
}

// DefaultPipeline returns the pipeline defaults used when the environment
// does not override them.
func DefaultPipeline() Pipeline {
	return Pipeline{
		TopK:               6,
		AuditTimeout:       30 * time.Second,
		RetryBackoff:       500 * time.Millisecond,
		ApproveThreshold:   0.80,
		ReviewFloor:        0.45,
		ExtractionWeight:   0.6,
		SatisfactionWeight: 0.4,
		ExtractionFloor:    0.5,
		VectorWeight:       0.7,
		LexicalWeight:      0.3,
		EmbeddingDim:       768,
		PromptVersion:      "rules-v1",
	}
}

// Load reads configuration from the environment.
func Load() (*Config, error) {
	cfg := &Config{
		Port:         envOr("PORT", "8080"),
		DatabaseURL:  os.Getenv("DATABASE_URL"),
		Mode:         BackendMode(envOr("BACKEND_MODE", string(ModeMock))),
		GeminiAPIKey: os.Getenv("GEMINI_API_KEY"),
		GeminiModel:  envOr("GEMINI_MODEL", "gemini-2.0-flash"),
		Pipeline:     DefaultPipeline(),
	}

	switch cfg.Mode {
	case ModeMock, ModeReal:
	default:
		return nil, fmt.Errorf("BACKEND_MODE must be %q or %q, got %q", ModeMock, ModeReal, cfg.Mode)
	}
	if cfg.Mode == ModeReal && cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is required when BACKEND_MODE=real")
	}

	var err error
	if cfg.Pipeline.TopK, err = envInt("RETRIEVAL_TOP_K", cfg.Pipeline.TopK); err != nil {
		return nil, err
	}
	if seconds, err := envInt("AUDIT_TIMEOUT_SECONDS", int(cfg.Pipeline.AuditTimeout/time.Second)); err != nil {
		return nil, err
	} else {
		cfg.Pipeline.AuditTimeout = time.Duration(seconds) * time.Second
	}
	if cfg.Pipeline.ApproveThreshold, err = envFloat("APPROVE_THRESHOLD", cfg.Pipeline.ApproveThreshold); err != nil {
		return nil, err
	}
	if cfg.Pipeline.ReviewFloor, err = envFloat("REVIEW_FLOOR", cfg.Pipeline.ReviewFloor); err != nil {
		return nil, err
	}
	if cfg.Pipeline.ExtractionFloor, err = envFloat("EXTRACTION_CONFIDENCE_FLOOR", cfg.Pipeline.ExtractionFloor); err != nil {
		return nil, err
	}
	if cfg.Pipeline.EmbeddingDim, err = envInt("EMBEDDING_DIM", cfg.Pipeline.EmbeddingDim); err != nil {
		return nil, err
	}
	cfg.Pipeline.PromptVersion = envOr("PROMPT_VERSION", cfg.Pipeline.PromptVersion)

	if cfg.Pipeline.ApproveThreshold < cfg.Pipeline.ReviewFloor {
		return nil, fmt.Errorf("APPROVE_THRESHOLD %.2f must not be below REVIEW_FLOOR %.2f",
			cfg.Pipeline.ApproveThreshold, cfg.Pipeline.ReviewFloor)
	}

	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", key, v)
	}
	return n, nil
}

func envFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be a number, got %q", key, v)
	}
	return f, nil
}
