package alerts

import (
	"time"

	"github.com/google/uuid"
)

// Alert types, one per trigger the dispatcher watches for.
const (
	TypePADenied           = "pa_denied"
	TypeMaxInfoExceeded    = "max_info_exceeded"
	TypeMissingInfo        = "missing_info"
	TypeHighRisk           = "high_risk"
	TypeNetworkMismatch    = "network_mismatch"
	TypeEligibilityFailure = "eligibility_failure"
)

// Alert statuses.
const (
	StatusNew          = "new"
	StatusAcknowledged = "acknowledged"
	StatusResolved     = "resolved"
)

// Severities.
const (
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// StaffAlert is one actionable item on the staff work queue. DedupeKey
// collapses repeat dispatches of the same trigger for the same subject onto
// the open alert; once that alert is resolved the trigger may fire anew.
type StaffAlert struct {
	ID             uuid.UUID  `db:"id" json:"id"`
	Type           string     `db:"alert_type" json:"type"`
	Severity       string     `db:"severity" json:"severity"`
	Status         string     `db:"status" json:"status"`
	PatientID      uuid.UUID  `db:"patient_id" json:"patient_id"`
	PayerID        uuid.UUID  `db:"payer_id" json:"payer_id"`
	PARequestID    *uuid.UUID `db:"pa_request_id" json:"pa_request_id,omitempty"`
	AppointmentID  *uuid.UUID `db:"appointment_id" json:"appointment_id,omitempty"`
	ServiceCode    string     `db:"service_code" json:"service_code,omitempty"`
	Message        string     `db:"message" json:"message"`
	DedupeKey      string     `db:"dedupe_key" json:"-"`
	AcknowledgedBy *string    `db:"acknowledged_by" json:"acknowledged_by,omitempty"`
	AcknowledgedAt *time.Time `db:"acknowledged_at" json:"acknowledged_at,omitempty"`
	ResolvedBy     *string    `db:"resolved_by" json:"resolved_by,omitempty"`
	ResolvedAt     *time.Time `db:"resolved_at" json:"resolved_at,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`
}
