package eligibility

import (
	"time"

	"github.com/google/uuid"
)

// Snapshot is one point-in-time coverage picture for a patient with a payer.
// Snapshots are append-only: a re-verification inserts a new row and prior
// rows are never touched, so the trail shows exactly what was known when.
type Snapshot struct {
	ID                 uuid.UUID         `db:"id" json:"id"`
	PatientID          uuid.UUID         `db:"patient_id" json:"patient_id"`
	PayerID            uuid.UUID         `db:"payer_id" json:"payer_id"`
	MemberID           string            `db:"member_id" json:"member_id"`
	PlanName           string            `db:"plan_name" json:"plan_name"`
	CoverageStatus     string            `db:"coverage_status" json:"coverage_status"`
	DeductibleTotal    float64           `db:"deductible_total" json:"deductible_total"`
	DeductibleMet      float64           `db:"deductible_met" json:"deductible_met"`
	CopayAmount        float64           `db:"copay_amount" json:"copay_amount"`
	CoinsurancePct     float64           `db:"coinsurance_pct" json:"coinsurance_pct"`
	ReferralRequired   bool              `db:"referral_required" json:"referral_required"`
	ServiceLimitations map[string]string `db:"service_limitations" json:"service_limitations,omitempty"`
	Method             string            `db:"method" json:"method"` // api, portal
	VerifiedAt         time.Time         `db:"verified_at" json:"verified_at"`
}

// DeductibleRemaining is the dollar amount left before the plan pays.
func (s *Snapshot) DeductibleRemaining() float64 {
	remaining := s.DeductibleTotal - s.DeductibleMet
	if remaining < 0 {
		return 0
	}
	return remaining
}

// FreshAt reports whether the snapshot is inside the freshness window at t.
func (s *Snapshot) FreshAt(t time.Time, window time.Duration) bool {
	return t.Sub(s.VerifiedAt) < window
}

// Verification log statuses.
const (
	LogSuccess = "success"
	LogFailed  = "failed"
)

// LogEntry records one verification attempt, success or failure. RawResponse
// keeps the payer's answer as received so auditors can see exactly what the
// plan reported.
type LogEntry struct {
	ID          uuid.UUID `db:"id" json:"id"`
	PatientID   uuid.UUID `db:"patient_id" json:"patient_id"`
	PayerID     uuid.UUID `db:"payer_id" json:"payer_id"`
	Status      string    `db:"status" json:"status"`
	Method      string    `db:"method" json:"method"`
	ErrorDetail *string   `db:"error_detail" json:"error_detail,omitempty"`
	RawResponse *string   `db:"raw_response" json:"raw_response,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// Result is what the verifier hands back. Stale is set when the payer was
// unreachable and the snapshot predates the freshness window.
type Result struct {
	Snapshot *Snapshot `json:"snapshot"`
	Stale    bool      `json:"stale"`
}
