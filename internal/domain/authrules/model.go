package authrules

import (
	"time"

	"github.com/google/uuid"
)

// Document kinds a payer may require in a prior auth package.
const (
	DocClinicalNotes    = "clinical_notes"
	DocImagingOrder     = "imaging_order"
	DocLabResults       = "lab_results"
	DocTreatmentHistory = "treatment_history"
	DocReferralLetter   = "referral_letter"
)

// Rule is the authorization policy one payer applies to one service code.
type Rule struct {
	ID                uuid.UUID `db:"id" json:"id"`
	PayerID           uuid.UUID `db:"payer_id" json:"payer_id"`
	ServiceCode       string    `db:"service_code" json:"service_code"`
	PARequired        bool      `db:"pa_required" json:"pa_required"`
	ReferralRequired  bool      `db:"referral_required" json:"referral_required"`
	RequiredDocs      []string  `db:"required_docs" json:"required_docs"`
	NecessityKeywords []string  `db:"necessity_keywords" json:"necessity_keywords"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time `db:"updated_at" json:"updated_at"`
}

// Requirement is the resolved policy handed to the rest of the engine. Known
// is false when no rule row exists for the payer and service; the engine
// fails open in that case and treats authorization as required so staff
// verify manually rather than risk a denial.
type Requirement struct {
	PayerID           uuid.UUID `json:"payer_id"`
	ServiceCode       string    `json:"service_code"`
	PARequired        bool      `json:"pa_required"`
	ReferralRequired  bool      `json:"referral_required"`
	RequiredDocs      []string  `json:"required_docs"`
	NecessityKeywords []string  `json:"necessity_keywords"`
	Known             bool      `json:"known"`
}
