package service

import (
	"fmt"
	"log"
	"strings"

	"claimaudit-backend/config"
	"claimaudit-backend/models"
)

// Adjudicate applies extracted rules to normalized claim facts and produces
// the decision. It is a pure function of its inputs: the same facts, rules
// and tuning always yield the same decision, confidence and explanation.
//
// The decision ladder, in order:
//  1. no evaluable rules -> NEEDS_HUMAN
//  2. a mandatory rule determined unsatisfied -> DENY
//  3. any rule undeterminable from the claim -> PEND_INFO naming what is missing
//  4. every rule satisfied and confidence clears the approve threshold -> APPROVE
//  5. anything else -> NEEDS_HUMAN
func Adjudicate(facts models.ClaimFacts, rules []models.Rule, cfg config.Pipeline) models.AuditOutput {
	out := models.AuditOutput{ClaimID: facts.ClaimID}

	cited := make([]models.Rule, 0, len(rules))
	var excluded []string
	for _, rule := range rules {
		if !rule.Citation.Valid() {
			// A rule that cannot point at real policy text is not evidence,
			// but its exclusion must stay visible in the audit record.
			log.Printf("Warning: excluding rule %s without a valid citation", rule.ID)
			excluded = append(excluded, fmt.Sprintf("rule %s excluded: no valid citation to ingested policy text", rule.ID))
			continue
		}
		cited = append(cited, rule)
	}

	if len(cited) == 0 {
		out.Decision = models.DecisionNeedsHuman
		if len(rules) > 0 {
			out.Explanation = "extracted rules lacked citations to ingested policy text, so no decision basis exists"
			out.MissingInfo = dedupe(excluded)
		} else {
			out.Explanation = "no evaluable coverage rules were found in the applicable policies"
		}
		return out
	}

	var (
		applied        []models.RuleApplied
		violated       []models.Rule
		undetermined   []models.Rule
		missing        []string
		satisfiedCount int
		confidenceSum  float64
	)
	for _, rule := range cited {
		eval := rule.Predicate.Evaluate(facts)
		citation := rule.Citation
		applied = append(applied, models.RuleApplied{
			RuleID:      rule.ID,
			RuleText:    rule.RuleText,
			Satisfied:   eval.Determined && eval.Satisfied,
			Citation:    &citation,
			Explanation: eval.Explanation,
		})
		confidenceSum += rule.Confidence

		switch {
		case !eval.Determined:
			undetermined = append(undetermined, rule)
			missing = append(missing, eval.Missing...)
		case eval.Satisfied:
			satisfiedCount++
		case rule.Mandatory:
			violated = append(violated, rule)
		}
	}

	out.RulesApplied = applied
	out.Confidence = blendConfidence(confidenceSum/float64(len(cited)), float64(satisfiedCount)/float64(len(cited)), cfg)

	switch {
	case len(violated) > 0:
		out.Decision = models.DecisionDeny
		out.Citations = citationsOf(violated)
		out.Explanation = denialExplanation(violated, facts)
	case len(undetermined) > 0:
		out.Decision = models.DecisionPendInfo
		out.Citations = citationsOf(cited)
		out.MissingInfo = dedupe(missing)
		out.Explanation = fmt.Sprintf("the claim cannot be adjudicated without: %s", strings.Join(out.MissingInfo, "; "))
	case satisfiedCount == len(cited) && out.Confidence >= cfg.ApproveThreshold:
		out.Decision = models.DecisionApprove
		out.Citations = citationsOf(cited)
		out.Explanation = approvalExplanation(cited)
	default:
		out.Decision = models.DecisionNeedsHuman
		out.Citations = citationsOf(cited)
		switch {
		case out.Confidence < cfg.ReviewFloor:
			out.Explanation = fmt.Sprintf("confidence %.2f is below the review floor %.2f, so the extracted evidence is too weak to act on without review",
				out.Confidence, cfg.ReviewFloor)
		case satisfiedCount == len(cited):
			out.Explanation = fmt.Sprintf("all %d policy rules are satisfied but confidence %.2f is below the auto-approve threshold %.2f",
				len(cited), out.Confidence, cfg.ApproveThreshold)
		default:
			out.Explanation = fmt.Sprintf("%d of %d policy rules are satisfied and the shortfall is not a mandatory requirement, so the claim needs review",
				satisfiedCount, len(cited))
		}
	}

	if len(excluded) > 0 {
		out.MissingInfo = dedupe(append(out.MissingInfo, excluded...))
	}
	return out
}

// blendConfidence combines how sure extraction was about the rules with how
// cleanly the claim satisfied them, clamped to [0,1].
func blendConfidence(avgExtraction, satisfiedFraction float64, cfg config.Pipeline) float64 {
	c := cfg.ExtractionWeight*avgExtraction + cfg.SatisfactionWeight*satisfiedFraction
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}

func denialExplanation(violated []models.Rule, facts models.ClaimFacts) string {
	parts := make([]string, 0, len(violated))
	for _, rule := range violated {
		eval := rule.Predicate.Evaluate(facts)
		parts = append(parts, fmt.Sprintf("%s (%s)", rule.RuleText, eval.Explanation))
	}
	return "mandatory coverage requirements are not met: " + strings.Join(parts, "; ")
}

func approvalExplanation(rules []models.Rule) string {
	parts := make([]string, 0, len(rules))
	for _, rule := range rules {
		parts = append(parts, rule.RuleText)
	}
	return fmt.Sprintf("all %d applicable policy requirements are satisfied: %s", len(rules), strings.Join(parts, "; "))
}

// citationsOf collects the citations of the given rules, deduplicated by
// chunk and excerpt, in rule order.
func citationsOf(rules []models.Rule) []models.Citation {
	seen := make(map[string]bool, len(rules))
	out := make([]models.Citation, 0, len(rules))
	for _, rule := range rules {
		key := rule.Citation.ChunkID + "\x00" + rule.Citation.TextExcerpt
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, rule.Citation)
	}
	return out
}

func dedupe(items []string) []string {
	seen := make(map[string]bool, len(items))
	out := make([]string, 0, len(items))
	for _, item := range items {
		if item == "" || seen[item] {
			continue
		}
		seen[item] = true
		out = append(out, item)
	}
	return out
}
