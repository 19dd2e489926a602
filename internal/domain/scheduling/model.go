package scheduling

import (
	"time"

	"github.com/google/uuid"
)

// Appointment request statuses.
const (
	RequestPending    = "pending"
	RequestScheduled  = "scheduled"
	RequestWaitlisted = "waitlisted"
	RequestWithdrawn  = "withdrawn"
)

// AppointmentRequest is a patient's ask for a visit, with optional provider
// preference and time window. UrgencyScore ranks waitlist priority; higher
// is more urgent.
type AppointmentRequest struct {
	ID                  uuid.UUID  `db:"id" json:"id"`
	PatientID           uuid.UUID  `db:"patient_id" json:"patient_id"`
	PayerID             uuid.UUID  `db:"payer_id" json:"payer_id"`
	ServiceCode         string     `db:"service_code" json:"service_code"`
	PreferredProviderID *uuid.UUID `db:"preferred_provider_id" json:"preferred_provider_id,omitempty"`
	EarliestStart       *time.Time `db:"earliest_start" json:"earliest_start,omitempty"`
	LatestStart         *time.Time `db:"latest_start" json:"latest_start,omitempty"`
	UrgencyScore        int        `db:"urgency_score" json:"urgency_score"`
	Status              string     `db:"status" json:"status"`
	CreatedAt           time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time  `db:"updated_at" json:"updated_at"`
}

// Slot statuses.
const (
	SlotOpen    = "open"
	SlotBooked  = "booked"
	SlotBlocked = "blocked"
)

// Slot is one bookable block on a provider's calendar.
type Slot struct {
	ID         uuid.UUID `db:"id" json:"id"`
	ProviderID uuid.UUID `db:"provider_id" json:"provider_id"`
	StartTime  time.Time `db:"start_time" json:"start_time"`
	EndTime    time.Time `db:"end_time" json:"end_time"`
	Status     string    `db:"status" json:"status"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// Candidate is an open slot joined with the provider facts the allocator
// ranks on.
type Candidate struct {
	Slot              Slot
	ProviderRating    float64
	ProviderSpecialty string
}

// Appointment statuses. An appointment is tentative while prior auth is
// outstanding and confirmed once it clears (or was never needed).
const (
	ApptTentative = "tentative"
	ApptConfirmed = "confirmed"
	ApptCompleted = "completed"
	ApptCancelled = "cancelled"
)

// Appointment binds a request to a booked slot.
type Appointment struct {
	ID           uuid.UUID `db:"id" json:"id"`
	RequestID    uuid.UUID `db:"request_id" json:"request_id"`
	PatientID    uuid.UUID `db:"patient_id" json:"patient_id"`
	ProviderID   uuid.UUID `db:"provider_id" json:"provider_id"`
	PayerID      uuid.UUID `db:"payer_id" json:"payer_id"`
	ServiceCode  string    `db:"service_code" json:"service_code"`
	SlotID       uuid.UUID `db:"slot_id" json:"slot_id"`
	Status       string    `db:"status" json:"status"`
	OutOfNetwork bool      `db:"out_of_network" json:"out_of_network"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// Waitlist entry statuses.
const (
	WaitlistActive    = "active"
	WaitlistFulfilled = "fulfilled"
	WaitlistCancelled = "cancelled"
)

// WaitlistEntry parks a request no open slot could satisfy. Entries are
// drained most urgent first, then oldest first.
type WaitlistEntry struct {
	ID           uuid.UUID `db:"id" json:"id"`
	RequestID    uuid.UUID `db:"request_id" json:"request_id"`
	UrgencyScore int       `db:"urgency_score" json:"urgency_score"`
	Status       string    `db:"status" json:"status"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// Outcome is the allocator's answer: either a booked appointment or a
// waitlist entry, never both.
type Outcome struct {
	Appointment *Appointment   `json:"appointment,omitempty"`
	Waitlisted  *WaitlistEntry `json:"waitlisted,omitempty"`
}

// SlotCriteria narrows the candidate search.
type SlotCriteria struct {
	ProviderID *uuid.UUID
	Specialty  string
	From       *time.Time
	To         *time.Time
}

// ServiceCatalog maps service codes to the specialty qualified to perform
// them. Codes not in the catalog match any specialty.
type ServiceCatalog map[string]string

func (c ServiceCatalog) Specialty(serviceCode string) string {
	return c[serviceCode]
}

// AllocationRules are the practice's slot placement preferences. Patients at
// or above ComplexityThreshold are not scheduled into slots starting at or
// after LateCutoffHour local time.
type AllocationRules struct {
	ComplexityThreshold float64
	LateCutoffHour      int
}

func DefaultAllocationRules() AllocationRules {
	return AllocationRules{ComplexityThreshold: 0.7, LateCutoffHour: 15}
}

// DefaultServiceCatalog covers the procedure codes the engine routes most
// often. Deployments with a larger catalog load it from configuration.
func DefaultServiceCatalog() ServiceCatalog {
	return ServiceCatalog{
		"70551": "radiology",
		"72148": "radiology",
		"74177": "radiology",
		"93306": "cardiology",
		"93458": "cardiology",
		"45378": "gastroenterology",
		"29881": "orthopedics",
		"63030": "neurosurgery",
	}
}
