package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"claimaudit-backend/config"
	"claimaudit-backend/models"

	"github.com/google/uuid"
)

var (
	ErrAuditNotFound = errors.New("audit not found")
	ErrClaimNotFound = errors.New("claim not found")
)

// PersistenceError reports that an audit was fully computed but could not be
// stored. The computed output is still returned to the caller alongside it.
type PersistenceError struct {
	AuditID string
	Err     error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("failed to persist audit %s: %v", e.AuditID, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// AuditService runs the full adjudication pipeline for one claim: normalize,
// retrieve, extract, adjudicate, record.
type AuditService struct {
	retriever *Retriever
	rules     RuleSource
	claims    ClaimStore
	audits    AuditStore
	pipeline  config.Pipeline

	now   func() time.Time
	newID func() string
}

// AuditServiceOption is a functional option for AuditService
type AuditServiceOption func(*AuditService)

// AuditWithRetriever sets the chunk retriever
func AuditWithRetriever(r *Retriever) AuditServiceOption {
	return func(s *AuditService) { s.retriever = r }
}

// AuditWithRuleSource sets the rule extraction source
func AuditWithRuleSource(rules RuleSource) AuditServiceOption {
	return func(s *AuditService) { s.rules = rules }
}

// AuditWithClaimStore sets the claim store
func AuditWithClaimStore(claims ClaimStore) AuditServiceOption {
	return func(s *AuditService) { s.claims = claims }
}

// AuditWithAuditStore sets the audit record store
func AuditWithAuditStore(audits AuditStore) AuditServiceOption {
	return func(s *AuditService) { s.audits = audits }
}

// AuditWithPipeline sets the pipeline tuning
func AuditWithPipeline(p config.Pipeline) AuditServiceOption {
	return func(s *AuditService) { s.pipeline = p }
}

// AuditWithClock overrides the wall clock, for tests
func AuditWithClock(now func() time.Time) AuditServiceOption {
	return func(s *AuditService) { s.now = now }
}

// AuditWithIDGenerator overrides audit id generation, for tests
func AuditWithIDGenerator(newID func() string) AuditServiceOption {
	return func(s *AuditService) { s.newID = newID }
}

// NewAuditService creates a new audit service
func NewAuditService(opts ...AuditServiceOption) *AuditService {
	s := &AuditService{
		pipeline: config.DefaultPipeline(),
		now:      time.Now,
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RunAudit adjudicates one claim end to end and persists the audit record.
//
// A *models.ValidationError means the input never entered the pipeline. A
// *PersistenceError is returned together with the computed output, so callers
// can still show the decision while flagging that it was not recorded.
// Cancellation of the caller's context aborts the run without persisting
// anything; an internal timeout instead degrades to a persisted NEEDS_HUMAN
// record naming the cause.
func (s *AuditService) RunAudit(ctx context.Context, input models.ClaimInput) (*models.AuditOutput, error) {
	if s.retriever == nil || s.rules == nil || s.audits == nil {
		return nil, errors.New("audit service missing pipeline components")
	}

	facts, err := input.Normalize(s.now().UTC())
	if err != nil {
		return nil, err
	}

	if s.claims != nil {
		if err := s.claims.SaveClaim(ctx, facts); err != nil {
			log.Printf("Warning: failed to save claim %s: %v", facts.ClaimID, err)
		}
	}

	runCtx, cancel := context.WithTimeout(ctx, s.pipeline.AuditTimeout)
	defer cancel()

	var hits []models.ScoredChunk
	err = s.withRetry(runCtx, "retrieval", func(stageCtx context.Context) error {
		var stageErr error
		hits, stageErr = s.retriever.Retrieve(stageCtx, facts)
		return stageErr
	})
	noApplicablePolicy := errors.Is(err, ErrNoApplicablePolicy)
	if err != nil && !noApplicablePolicy {
		return s.abortOrDegrade(ctx, facts, "policy retrieval failed", err)
	}

	var rules []models.Rule
	if len(hits) > 0 {
		err = s.withRetry(runCtx, "extraction", func(stageCtx context.Context) error {
			var stageErr error
			rules, stageErr = s.rules.ExtractRules(stageCtx, hits)
			return stageErr
		})
		if err != nil {
			return s.abortOrDegrade(ctx, facts, "rule extraction failed", err)
		}
	}

	out := Adjudicate(facts, rules, s.pipeline)
	if noApplicablePolicy {
		// No policy was active for this payer on the service date. That is
		// a reviewable gap, not an approval or a denial. An applicable but
		// unmatched policy instead keeps the adjudicator's own explanation.
		out.Explanation = fmt.Sprintf("no policy is applicable to payer %q on %s",
			facts.Payer, facts.ServiceDate.Format("2006-01-02"))
		out.MissingInfo = []string{fmt.Sprintf("an ingested policy covering payer %q on %s",
			facts.Payer, facts.ServiceDate.Format("2006-01-02"))}
	}

	return s.record(ctx, out)
}

// GetAudit returns a previously recorded audit.
func (s *AuditService) GetAudit(ctx context.Context, auditID string) (*models.AuditOutput, error) {
	if s.audits == nil {
		return nil, errors.New("audit store not set")
	}
	return s.audits.GetAudit(ctx, auditID)
}

// withRetry runs a pipeline stage, retrying once after a backoff. Decision
// signals pass through untouched; only transient failures are retried.
func (s *AuditService) withRetry(ctx context.Context, stage string, fn func(context.Context) error) error {
	err := fn(ctx)
	if err == nil || ctx.Err() != nil || errors.Is(err, ErrNoApplicablePolicy) {
		return err
	}
	log.Printf("Warning: %s failed, retrying once: %v", stage, err)

	select {
	case <-time.After(s.pipeline.RetryBackoff):
	case <-ctx.Done():
		return ctx.Err()
	}
	return fn(ctx)
}

// abortOrDegrade decides what a failed stage means. Caller cancellation
// aborts the run with nothing persisted; a timeout or backend failure is
// recorded as a NEEDS_HUMAN audit naming the cause, so the claim still ends
// up in front of a reviewer.
func (s *AuditService) abortOrDegrade(ctx context.Context, facts models.ClaimFacts, cause string, err error) (*models.AuditOutput, error) {
	if ctx.Err() != nil {
		return nil, fmt.Errorf("audit aborted: %w", ctx.Err())
	}

	reason := cause
	if errors.Is(err, context.DeadlineExceeded) {
		reason = fmt.Sprintf("%s: audit timed out after %s", cause, s.pipeline.AuditTimeout)
	} else {
		reason = fmt.Sprintf("%s: %v", cause, err)
	}
	log.Printf("Warning: degrading audit for claim %s to %s: %s", facts.ClaimID, models.DecisionNeedsHuman, reason)

	out := models.AuditOutput{
		ClaimID:     facts.ClaimID,
		Decision:    models.DecisionNeedsHuman,
		Explanation: reason,
	}
	return s.record(ctx, out)
}

// record stamps identity and provenance onto the output and persists it.
func (s *AuditService) record(ctx context.Context, out models.AuditOutput) (*models.AuditOutput, error) {
	out.AuditID = s.newID()
	out.CreatedAt = s.now().UTC()
	out.PromptVersion = s.pipeline.PromptVersion

	if err := out.Validate(); err != nil {
		// An output violating its own invariants must never reach the
		// record as a terminal decision.
		log.Printf("Warning: audit %s failed validation, routing to review: %v", out.AuditID, err)
		out.Decision = models.DecisionNeedsHuman
		out.Citations = nil
	}

	// Persist on a context that survives the pipeline deadline; losing the
	// record because the run was slow would defeat the audit trail.
	persistCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := s.audits.SaveAudit(persistCtx, &out); err != nil {
		return &out, &PersistenceError{AuditID: out.AuditID, Err: err}
	}
	return &out, nil
}
