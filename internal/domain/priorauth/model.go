package priorauth

import (
	"time"

	"github.com/google/uuid"
)

// Request statuses. Approved, denied, and withdrawn are terminal.
const (
	StatusInitiated        = "initiated"
	StatusSubmitted        = "submitted"
	StatusPendingReview    = "pending_review"
	StatusApproved         = "approved"
	StatusDenied           = "denied"
	StatusRequiresMoreInfo = "requires_more_info"
	StatusWithdrawn        = "withdrawn"
)

// allowedTransitions is the full state machine. Requires_more_info back to
// submitted is the only backward edge, and the service bounds how often it
// may be taken.
var allowedTransitions = map[string][]string{
	StatusInitiated:        {StatusSubmitted, StatusWithdrawn},
	StatusSubmitted:        {StatusPendingReview, StatusWithdrawn},
	StatusPendingReview:    {StatusApproved, StatusDenied, StatusRequiresMoreInfo, StatusWithdrawn},
	StatusRequiresMoreInfo: {StatusSubmitted, StatusDenied, StatusWithdrawn},
}

// CanTransition reports whether from -> to is a legal edge.
func CanTransition(from, to string) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the status admits no further transitions.
func IsTerminal(status string) bool {
	return len(allowedTransitions[status]) == 0 && status != ""
}

// Submission methods.
const (
	MethodAPI    = "api"
	MethodPortal = "portal"
	MethodFax    = "fax"
)

// Request is one prior authorization case.
type Request struct {
	ID                   uuid.UUID  `db:"id" json:"id"`
	PatientID            uuid.UUID  `db:"patient_id" json:"patient_id"`
	ProviderID           uuid.UUID  `db:"provider_id" json:"provider_id"`
	PayerID              uuid.UUID  `db:"payer_id" json:"payer_id"`
	ServiceCode          string     `db:"service_code" json:"service_code"`
	AppointmentRequestID *uuid.UUID `db:"appointment_request_id" json:"appointment_request_id,omitempty"`
	Status               string     `db:"status" json:"status"`
	SubmissionMethod     *string    `db:"submission_method" json:"submission_method,omitempty"`
	AuthNumber           *string    `db:"auth_number" json:"auth_number,omitempty"`
	DenialReason         *string    `db:"denial_reason" json:"denial_reason,omitempty"`
	InfoRequestCount     int        `db:"info_request_count" json:"info_request_count"`
	RiskLevel            *string    `db:"risk_level" json:"risk_level,omitempty"`
	CreatedAt            time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time  `db:"updated_at" json:"updated_at"`
}

// Transition is one append-only state machine step.
type Transition struct {
	ID         uuid.UUID `db:"id" json:"id"`
	RequestID  uuid.UUID `db:"request_id" json:"request_id"`
	FromStatus string    `db:"from_status" json:"from_status"`
	ToStatus   string    `db:"to_status" json:"to_status"`
	Reason     string    `db:"reason" json:"reason,omitempty"`
	Actor      string    `db:"actor" json:"actor,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// Documentation package statuses. The progression is strictly forward:
// draft -> ready_for_review -> submitted.
const (
	PackageDraft          = "draft"
	PackageReadyForReview = "ready_for_review"
	PackageSubmitted      = "submitted"
)

// Document is one attachment in a package. Present is false when a required
// document kind could not be pulled from the chart.
type Document struct {
	Kind    string `json:"kind"`
	Title   string `json:"title"`
	Content string `json:"content,omitempty"`
	Present bool   `json:"present"`
}

// Package is the documentation bundle assembled for one request.
type Package struct {
	ID                uuid.UUID  `db:"id" json:"id"`
	RequestID         uuid.UUID  `db:"request_id" json:"request_id"`
	Status            string     `db:"status" json:"status"`
	ClinicalRationale string     `db:"clinical_rationale" json:"clinical_rationale"`
	NecessityKeywords []string   `db:"necessity_keywords" json:"necessity_keywords,omitempty"`
	Documents         []Document `db:"documents" json:"documents"`
	ReviewRequired    bool       `db:"review_required" json:"review_required"`
	ReviewedBy        *string    `db:"reviewed_by" json:"reviewed_by,omitempty"`
	ReviewComment     *string    `db:"review_comment" json:"review_comment,omitempty"`
	CreatedAt         time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time  `db:"updated_at" json:"updated_at"`
}

// MissingDocs lists required kinds with no present document.
func (p *Package) MissingDocs() []string {
	var missing []string
	for _, d := range p.Documents {
		if !d.Present {
			missing = append(missing, d.Kind)
		}
	}
	return missing
}
