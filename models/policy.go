package models

import (
	"time"
)

// PolicyStatus represents the lifecycle status of a policy document
type PolicyStatus string

const (
	PolicyStatusActive   PolicyStatus = "active"
	PolicyStatusArchived PolicyStatus = "archived"
	PolicyStatusDraft    PolicyStatus = "draft"
)

// PolicyDocument is an ingested coverage policy. The text is immutable once
// ingested; only the status transitions.
type PolicyDocument struct {
	ID             string       `json:"policy_id"`
	Name           string       `json:"name"`
	Payer          string       `json:"payer"`
	EffectiveDate  time.Time    `json:"effective_date"`
	ExpirationDate *time.Time   `json:"expiration_date,omitempty"`
	Status         PolicyStatus `json:"status"`
	CreatedAt      time.Time    `json:"created_at"`

	// Text is the raw page-addressable document text. Listing operations
	// return metadata only and leave it empty.
	Text string `json:"text,omitempty"`
	// PageOffsets holds the character offset at which each page starts,
	// in page order. Empty means the whole document is page 1.
	PageOffsets []int `json:"page_offsets,omitempty"`
}

// ActiveOn reports whether the policy may back decisions for a claim with the
// given service date. Draft and archived policies never qualify.
func (p PolicyDocument) ActiveOn(serviceDate time.Time) bool {
	if p.Status != PolicyStatusActive {
		return false
	}
	if serviceDate.Before(p.EffectiveDate) {
		return false
	}
	if p.ExpirationDate != nil && serviceDate.After(*p.ExpirationDate) {
		return false
	}
	return true
}

// PageAt returns the 1-based page number containing the given character
// offset into the document text.
func (p PolicyDocument) PageAt(offset int) int {
	page := 1
	for i, start := range p.PageOffsets {
		if offset >= start {
			page = i + 1
		} else {
			break
		}
	}
	return page
}
