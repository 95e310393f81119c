package models

import (
	"fmt"
	"sort"
	"strings"
)

// PredicateKind enumerates the closed set of evaluable rule shapes. Anything
// outside this set is rejected at extraction time instead of being guessed at.
type PredicateKind string

const (
	PredicateThreshold PredicateKind = "threshold"
	PredicateCodeInSet PredicateKind = "code_in_set"
	PredicateSymptom   PredicateKind = "symptom"
	PredicateAllOf     PredicateKind = "all_of"
	PredicateAnyOf     PredicateKind = "any_of"
)

// CompareOp is the comparison operator of a threshold predicate
type CompareOp string

const (
	OpGTE CompareOp = "gte"
	OpGT  CompareOp = "gt"
	OpLTE CompareOp = "lte"
	OpLT  CompareOp = "lt"
	OpEQ  CompareOp = "eq"
)

// Predicate is a typed, evaluable coverage condition.
type Predicate struct {
	Kind PredicateKind `json:"kind"`

	// threshold operands
	Metric string    `json:"metric,omitempty"`
	Op     CompareOp `json:"op,omitempty"`
	Value  float64   `json:"value,omitempty"`

	// code membership operands
	CodeSystem string   `json:"code_system,omitempty"`
	Codes      []string `json:"codes,omitempty"`

	// symptom operand
	Symptom string `json:"symptom,omitempty"`

	// compound operands
	Operands []Predicate `json:"operands,omitempty"`
}

// Rule is a discrete coverage condition extracted from exactly one chunk.
// The citation anchor is mandatory: a rule without one is invalid.
type Rule struct {
	ID         string    `json:"rule_id"`
	ChunkID    string    `json:"chunk_id"`
	RuleText   string    `json:"rule_text"`
	Predicate  Predicate `json:"predicate"`
	Mandatory  bool      `json:"mandatory"`
	Confidence float64   `json:"confidence"`
	Citation   Citation  `json:"citation"`
}

// RuleEvaluation is the deterministic result of applying a predicate to
// normalized claim facts.
type RuleEvaluation struct {
	// Satisfied is meaningful only when Determined is true.
	Satisfied bool
	// Determined is false when the facts needed to evaluate the predicate
	// are absent from the claim (e.g. a threshold metric not documented).
	Determined bool
	// Missing names the absent fields when Determined is false.
	Missing []string
	// Explanation is a human-readable account of the outcome.
	Explanation string
}

// Validate rejects predicate shapes outside the closed set or with malformed
// operands.
func (p Predicate) Validate() error {
	switch p.Kind {
	case PredicateThreshold:
		if strings.TrimSpace(p.Metric) == "" {
			return fmt.Errorf("threshold predicate missing metric")
		}
		switch p.Op {
		case OpGTE, OpGT, OpLTE, OpLT, OpEQ:
		default:
			return fmt.Errorf("threshold predicate has unknown op %q", p.Op)
		}
	case PredicateCodeInSet:
		if len(p.Codes) == 0 {
			return fmt.Errorf("code_in_set predicate has empty code set")
		}
		switch strings.ToUpper(p.CodeSystem) {
		case "CPT", "HCPCS", "ICD", "ICD10", "ICD-10":
		default:
			return fmt.Errorf("code_in_set predicate has unknown code system %q", p.CodeSystem)
		}
	case PredicateSymptom:
		if strings.TrimSpace(p.Symptom) == "" {
			return fmt.Errorf("symptom predicate missing symptom term")
		}
	case PredicateAllOf, PredicateAnyOf:
		if len(p.Operands) == 0 {
			return fmt.Errorf("%s predicate has no operands", p.Kind)
		}
		for i, op := range p.Operands {
			if err := op.Validate(); err != nil {
				return fmt.Errorf("operand %d: %w", i, err)
			}
		}
	default:
		return fmt.Errorf("unknown predicate kind %q", p.Kind)
	}
	return nil
}

// Evaluate applies the predicate to the claim facts. The result depends only
// on the predicate and the facts, so re-evaluation is always reproducible.
func (p Predicate) Evaluate(f ClaimFacts) RuleEvaluation {
	switch p.Kind {
	case PredicateThreshold:
		return p.evaluateThreshold(f)
	case PredicateCodeInSet:
		return p.evaluateCodeInSet(f)
	case PredicateSymptom:
		return p.evaluateSymptom(f)
	case PredicateAllOf:
		return p.evaluateAllOf(f)
	case PredicateAnyOf:
		return p.evaluateAnyOf(f)
	default:
		return RuleEvaluation{
			Determined:  false,
			Missing:     []string{fmt.Sprintf("evaluable form of predicate kind %q", p.Kind)},
			Explanation: fmt.Sprintf("predicate kind %q is not evaluable", p.Kind),
		}
	}
}

func (p Predicate) evaluateThreshold(f ClaimFacts) RuleEvaluation {
	metric := strings.ToUpper(strings.TrimSpace(p.Metric))
	value, ok := f.Observations[metric]
	if !ok {
		return RuleEvaluation{
			Determined:  false,
			Missing:     []string{fmt.Sprintf("documented %s value", metric)},
			Explanation: fmt.Sprintf("%s is referenced by the policy but not documented in the claim", metric),
		}
	}
	var satisfied bool
	var opText string
	switch p.Op {
	case OpGTE:
		satisfied, opText = value >= p.Value, ">="
	case OpGT:
		satisfied, opText = value > p.Value, ">"
	case OpLTE:
		satisfied, opText = value <= p.Value, "<="
	case OpLT:
		satisfied, opText = value < p.Value, "<"
	case OpEQ:
		satisfied, opText = value == p.Value, "="
	}
	explanation := fmt.Sprintf("documented %s is %s, policy requires %s %s %s",
		metric, trimFloat(value), metric, opText, trimFloat(p.Value))
	if !satisfied {
		explanation = fmt.Sprintf("documented %s is %s but the policy requires %s %s %s",
			metric, trimFloat(value), metric, opText, trimFloat(p.Value))
	}
	return RuleEvaluation{Satisfied: satisfied, Determined: true, Explanation: explanation}
}

func (p Predicate) evaluateCodeInSet(f ClaimFacts) RuleEvaluation {
	satisfied := f.HasCode(p.CodeSystem, p.Codes)
	sorted := append([]string(nil), p.Codes...)
	sort.Strings(sorted)
	if satisfied {
		return RuleEvaluation{
			Satisfied:   true,
			Determined:  true,
			Explanation: fmt.Sprintf("claim carries a %s code from the covered set {%s}", strings.ToUpper(p.CodeSystem), strings.Join(sorted, ", ")),
		}
	}
	return RuleEvaluation{
		Determined:  true,
		Explanation: fmt.Sprintf("none of the claim's %s codes appear in the covered set {%s}", strings.ToUpper(p.CodeSystem), strings.Join(sorted, ", ")),
	}
}

func (p Predicate) evaluateSymptom(f ClaimFacts) RuleEvaluation {
	if f.NotesContain(p.Symptom) {
		return RuleEvaluation{
			Satisfied:   true,
			Determined:  true,
			Explanation: fmt.Sprintf("claim notes document %q", p.Symptom),
		}
	}
	return RuleEvaluation{
		Determined:  true,
		Explanation: fmt.Sprintf("claim notes do not document %q", p.Symptom),
	}
}

func (p Predicate) evaluateAllOf(f ClaimFacts) RuleEvaluation {
	out := RuleEvaluation{Satisfied: true, Determined: true}
	var parts []string
	for _, op := range p.Operands {
		r := op.Evaluate(f)
		parts = append(parts, r.Explanation)
		if r.Determined && !r.Satisfied {
			// One determined failure settles the conjunction.
			return RuleEvaluation{Determined: true, Explanation: r.Explanation}
		}
		if !r.Determined {
			out.Determined = false
			out.Satisfied = false
			out.Missing = append(out.Missing, r.Missing...)
		}
	}
	out.Explanation = strings.Join(parts, "; ")
	return out
}

func (p Predicate) evaluateAnyOf(f ClaimFacts) RuleEvaluation {
	allDetermined := true
	var missing []string
	var parts []string
	for _, op := range p.Operands {
		r := op.Evaluate(f)
		if r.Determined && r.Satisfied {
			return RuleEvaluation{Satisfied: true, Determined: true, Explanation: r.Explanation}
		}
		parts = append(parts, r.Explanation)
		if !r.Determined {
			allDetermined = false
			missing = append(missing, r.Missing...)
		}
	}
	if !allDetermined {
		return RuleEvaluation{
			Determined:  false,
			Missing:     missing,
			Explanation: "no alternative satisfied: " + strings.Join(parts, "; "),
		}
	}
	return RuleEvaluation{
		Determined:  true,
		Explanation: "no alternative satisfied: " + strings.Join(parts, "; "),
	}
}

func trimFloat(v float64) string {
	s := fmt.Sprintf("%.2f", v)
	s = strings.TrimRight(s, "0")
	return strings.TrimRight(s, ".")
}
