package service

import (
	"context"
	"log"
	"time"

	"claimaudit-backend/models"
)

// DefaultPolicyID identifies the policy seeded on a fresh deployment.
const DefaultPolicyID = "medicare-ncd-240-4-cpap"

const defaultPolicyText = `National Coverage Determination (NCD)
Continuous Positive Airway Pressure (CPAP) Therapy For Obstructive Sleep Apnea (OSA) (240.4)

Publication Number: 100-3
Manual Section Title: Continuous Positive Airway Pressure (CPAP) Therapy For Obstructive Sleep Apnea (OSA)
Effective Date: 03/13/2008

Item/Service Description
Continuous Positive Airway Pressure (CPAP) is a non-invasive technique for providing single levels of air pressure from a flow generator. The apnea hypopnea index (AHI) is equal to the average number of episodes of apnea and hypopnea per hour.

Indications and Limitations of Coverage
1. The use of CPAP is covered under Medicare when used in adult patients with OSA. Coverage of CPAP is initially limited to a 12-week period.
2. The provider of CPAP must conduct education of the beneficiary prior to use.
3. A positive diagnosis of OSA for the coverage of CPAP must include a clinical evaluation and a positive: attended PSG, or unattended HST (Type II, III, or IV).
4. An initial 12-week period of CPAP is covered in adult patients with OSA if:
   a. AHI or RDI >= 15 events per hour, or
   b. AHI or RDI >= 5 and <= 14 events per hour with documented symptoms (excessive daytime sleepiness, impaired cognition, mood disorders, insomnia, hypertension, ischemic heart disease, or history of stroke).
`

// DefaultPolicy returns the Medicare CPAP coverage determination that ships
// with a fresh deployment, so audits work before any policy is ingested.
func DefaultPolicy(now time.Time) *models.PolicyDocument {
	return &models.PolicyDocument{
		ID:            DefaultPolicyID,
		Name:          "Medicare NCD 240.4 - CPAP for OSA",
		Payer:         "Medicare",
		EffectiveDate: time.Date(2008, 3, 13, 0, 0, 0, 0, time.UTC),
		Status:        models.PolicyStatusActive,
		CreatedAt:     now,
		Text:          defaultPolicyText,
	}
}

// SeedDefaultPolicy ingests the default policy. It is idempotent: re-running
// it replaces the policy's chunks with identical content.
func SeedDefaultPolicy(ctx context.Context, ingestion *IngestionService) error {
	doc := DefaultPolicy(time.Now().UTC())
	count, err := ingestion.IngestPolicy(ctx, doc)
	if err != nil {
		return err
	}
	log.Printf("Seeded default policy %s (%d chunks)", doc.ID, count)
	return nil
}
