package models

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ClaimInput is the raw claim payload submitted by a caller. Field names match
// the wire contract used by the dashboard.
type ClaimInput struct {
	ClaimID      string   `json:"claim_id"`
	PatientID    string   `json:"patient_id"`
	CPTCodes     []string `json:"cpt_codes"`
	ICDCodes     []string `json:"icd_codes"`
	ServiceDate  string   `json:"service_date"` // YYYY-MM-DD
	Payer        string   `json:"payer"`
	ProviderNPI  string   `json:"provider_npi"`
	BilledAmount float64  `json:"billed_amount"`
	Notes        string   `json:"notes"`
	PolicyID     string   `json:"policy_id"` // optional explicit policy override
}

// ClaimFacts is the normalized, validated form of a claim that the pipeline
// operates on. Once built it is never mutated.
type ClaimFacts struct {
	ClaimID      string
	PatientID    string
	CPTCodes     []string // ordered, deduplicated, uppercased
	ICDCodes     []string
	ServiceDate  time.Time
	Payer        string
	ProviderNPI  string
	BilledAmount float64
	Notes        string
	PolicyID     string
	// Observations holds numeric clinical values parsed from the notes,
	// keyed by uppercased metric name (e.g. "AHI" -> 18).
	Observations map[string]float64
}

// ValidationError reports why a claim failed normalization. It is a caller
// error and must be surfaced before the pipeline starts.
type ValidationError struct {
	Issues []string
}

func (e *ValidationError) Error() string {
	return "invalid claim: " + strings.Join(e.Issues, "; ")
}

// observationPattern matches metric mentions like "AHI 18", "AHI=18",
// "AHI: 18.5" or "AHI of 18" in free-text notes.
var observationPattern = regexp.MustCompile(`\b([A-Z][A-Z0-9]{1,9})\b(?:\s*(?:=|:|of|is|was)\s*|\s+)(\d+(?:\.\d+)?)`)

// Normalize validates the input against the ClaimFacts invariants and returns
// the normalized facts. now anchors the not-in-the-future check so callers and
// tests control the clock.
func (c ClaimInput) Normalize(now time.Time) (ClaimFacts, error) {
	var issues []string

	cpt := canonicalizeCodes(c.CPTCodes)
	if len(cpt) == 0 {
		issues = append(issues, "at least one CPT/HCPCS code is required")
	}
	icd := canonicalizeCodes(c.ICDCodes)

	if c.BilledAmount < 0 {
		issues = append(issues, fmt.Sprintf("billed_amount must be non-negative, got %.2f", c.BilledAmount))
	}

	if strings.TrimSpace(c.Payer) == "" && strings.TrimSpace(c.PolicyID) == "" {
		issues = append(issues, "payer is required when no policy_id is given")
	}

	var serviceDate time.Time
	if strings.TrimSpace(c.ServiceDate) == "" {
		issues = append(issues, "service_date is required")
	} else {
		parsed, err := time.Parse("2006-01-02", c.ServiceDate)
		if err != nil {
			issues = append(issues, fmt.Sprintf("service_date %q is not a valid date (want YYYY-MM-DD)", c.ServiceDate))
		} else if parsed.After(now) {
			issues = append(issues, fmt.Sprintf("service_date %s is in the future", c.ServiceDate))
		} else {
			serviceDate = parsed
		}
	}

	if len(issues) > 0 {
		return ClaimFacts{}, &ValidationError{Issues: issues}
	}

	claimID := strings.TrimSpace(c.ClaimID)
	if claimID == "" {
		claimID = uuid.NewString()
	}

	return ClaimFacts{
		ClaimID:      claimID,
		PatientID:    strings.TrimSpace(c.PatientID),
		CPTCodes:     cpt,
		ICDCodes:     icd,
		ServiceDate:  serviceDate,
		Payer:        strings.TrimSpace(c.Payer),
		ProviderNPI:  strings.TrimSpace(c.ProviderNPI),
		BilledAmount: c.BilledAmount,
		Notes:        c.Notes,
		PolicyID:     strings.TrimSpace(c.PolicyID),
		Observations: parseObservations(c.Notes),
	}, nil
}

// HasCode reports whether any of the given codes appears in the claim's
// procedure or diagnosis codes for the named code system.
func (f ClaimFacts) HasCode(system string, codes []string) bool {
	var claimCodes []string
	switch strings.ToUpper(system) {
	case "CPT", "HCPCS":
		claimCodes = f.CPTCodes
	case "ICD", "ICD10", "ICD-10":
		claimCodes = f.ICDCodes
	default:
		return false
	}
	for _, want := range codes {
		want = strings.ToUpper(strings.TrimSpace(want))
		for _, have := range claimCodes {
			if have == want {
				return true
			}
		}
	}
	return false
}

// NotesContain reports a case-insensitive substring match against the claim
// notes.
func (f ClaimFacts) NotesContain(term string) bool {
	if strings.TrimSpace(term) == "" {
		return false
	}
	return strings.Contains(strings.ToLower(f.Notes), strings.ToLower(term))
}

func canonicalizeCodes(codes []string) []string {
	seen := make(map[string]bool, len(codes))
	out := make([]string, 0, len(codes))
	for _, code := range codes {
		code = strings.ToUpper(strings.TrimSpace(code))
		if code == "" || seen[code] {
			continue
		}
		seen[code] = true
		out = append(out, code)
	}
	return out
}

func parseObservations(notes string) map[string]float64 {
	obs := make(map[string]float64)
	for _, m := range observationPattern.FindAllStringSubmatch(notes, -1) {
		name := m[1]
		value, err := strconv.ParseFloat(m[2], 64)
		if err != nil {
			continue
		}
		// First mention wins so repeated references stay stable.
		if _, ok := obs[name]; !ok {
			obs[name] = value
		}
	}
	return obs
}
