package extraction

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"

	"claimaudit-backend/models"
)

// DefaultConfidenceFloor drops candidates the backend itself is unsure
// about rather than guessing.
const DefaultConfidenceFloor = 0.5

// Extractor validates backend candidates and turns them into typed rules.
// Chunks are processed independently, so extraction fans out across them.
type Extractor struct {
	backend Backend
	floor   float64
	workers int
}

// NewExtractor creates an extractor over the given backend.
func NewExtractor(backend Backend, confidenceFloor float64, workers int) *Extractor {
	if confidenceFloor <= 0 {
		confidenceFloor = DefaultConfidenceFloor
	}
	if workers <= 0 {
		workers = 4
	}
	return &Extractor{backend: backend, floor: confidenceFloor, workers: workers}
}

// ExtractRules extracts rules from every chunk and returns them in chunk
// order. A backend failure on any chunk fails the whole call so the pipeline
// can apply its retry-then-degrade policy.
func (e *Extractor) ExtractRules(ctx context.Context, hits []models.ScoredChunk) ([]models.Rule, error) {
	if len(hits) == 0 {
		return nil, nil
	}

	perChunk := make([][]models.Rule, len(hits))
	errs := make([]error, len(hits))

	sem := make(chan struct{}, e.workers)
	var wg sync.WaitGroup
	for i := range hits {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			if err := ctx.Err(); err != nil {
				errs[i] = err
				return
			}
			candidates, err := e.backend.ExtractRules(ctx, hits[i].Chunk.Text)
			if err != nil {
				errs[i] = err
				return
			}
			perChunk[i] = e.validate(hits[i].Chunk, candidates)
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, fmt.Errorf("rule extraction failed: %w", err)
		}
	}

	var rules []models.Rule
	for _, chunkRules := range perChunk {
		rules = append(rules, chunkRules...)
	}
	return rules, nil
}

// validate keeps only candidates that quote their chunk literally, clear the
// confidence floor, and fit the closed predicate set. Everything else is
// dropped, never emitted as a vacuous rule.
func (e *Extractor) validate(chunk models.Chunk, candidates []CandidateRule) []models.Rule {
	var rules []models.Rule
	for i, cand := range candidates {
		excerpt := strings.TrimSpace(cand.Excerpt)
		if excerpt == "" {
			log.Printf("Warning: dropping rule without excerpt from chunk %s", chunk.ID)
			continue
		}
		pos := strings.Index(chunk.Text, excerpt)
		if pos < 0 {
			// The quote does not exist in the source chunk; treating
			// it as evidence would fabricate a citation.
			log.Printf("Warning: dropping rule with non-literal excerpt from chunk %s", chunk.ID)
			continue
		}
		if cand.Confidence < e.floor || cand.Confidence > 1 {
			continue
		}
		predicate := buildPredicate(cand)
		if err := predicate.Validate(); err != nil {
			log.Printf("Warning: dropping rule with invalid predicate from chunk %s: %v", chunk.ID, err)
			continue
		}

		ruleText := strings.TrimSpace(cand.RuleText)
		if ruleText == "" {
			ruleText = excerpt
		}
		rules = append(rules, models.Rule{
			ID:         fmt.Sprintf("%s#r%02d", chunk.ID, i),
			ChunkID:    chunk.ID,
			RuleText:   ruleText,
			Predicate:  predicate,
			Mandatory:  cand.Mandatory,
			Confidence: cand.Confidence,
			Citation: models.Citation{
				PolicyID:    chunk.PolicyID,
				PolicyName:  chunk.PolicyName,
				Page:        chunk.Page,
				SectionPath: chunk.SectionPath,
				ChunkID:     chunk.ID,
				TextExcerpt: excerpt,
				StartChar:   chunk.StartChar + pos,
				EndChar:     chunk.StartChar + pos + len(excerpt),
			},
		})
	}
	return rules
}

func buildPredicate(cand CandidateRule) models.Predicate {
	p := models.Predicate{
		Kind:       models.PredicateKind(cand.Kind),
		Metric:     cand.Metric,
		Op:         models.CompareOp(cand.Op),
		Value:      cand.Value,
		CodeSystem: cand.CodeSystem,
		Codes:      cand.Codes,
		Symptom:    cand.Symptom,
	}
	for _, op := range cand.Operands {
		p.Operands = append(p.Operands, buildPredicate(op))
	}
	return p
}
