package patient

import (
	"time"

	"github.com/google/uuid"
)

// Patient maps to the patient table. Patients are soft-deleted only; the
// engine never removes demographic history.
type Patient struct {
	ID              uuid.UUID  `db:"id" json:"id"`
	FirstName       string     `db:"first_name" json:"first_name"`
	LastName        string     `db:"last_name" json:"last_name"`
	DateOfBirth     time.Time  `db:"date_of_birth" json:"date_of_birth"`
	Phone           *string    `db:"phone" json:"phone,omitempty"`
	Email           *string    `db:"email" json:"email,omitempty"`
	PreferredContact *string   `db:"preferred_contact" json:"preferred_contact,omitempty"` // phone, email, sms
	ComplexityScore float64    `db:"complexity_score" json:"complexity_score"`
	NoShowRate      float64    `db:"no_show_rate" json:"no_show_rate"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updated_at"`
	DeletedAt       *time.Time `db:"deleted_at" json:"deleted_at,omitempty"`
}

// Coverage is a patient's enrollment with one payer: the member identity the
// eligibility verifier presents on the wire.
type Coverage struct {
	ID          uuid.UUID `db:"id" json:"id"`
	PatientID   uuid.UUID `db:"patient_id" json:"patient_id"`
	PayerID     uuid.UUID `db:"payer_id" json:"payer_id"`
	MemberID    string    `db:"member_id" json:"member_id"`
	GroupNumber *string   `db:"group_number" json:"group_number,omitempty"`
	Rank        string    `db:"rank" json:"rank"` // primary, secondary
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// Referral is a referral on file for a patient, scoped to a service code and
// bounded by effective dating.
type Referral struct {
	ID                   uuid.UUID  `db:"id" json:"id"`
	PatientID            uuid.UUID  `db:"patient_id" json:"patient_id"`
	ReferringProviderID  uuid.UUID  `db:"referring_provider_id" json:"referring_provider_id"`
	ReferredToProviderID uuid.UUID  `db:"referred_to_provider_id" json:"referred_to_provider_id"`
	ServiceCode          string     `db:"service_code" json:"service_code"`
	EffectiveDate        time.Time  `db:"effective_date" json:"effective_date"`
	ExpirationDate       *time.Time `db:"expiration_date" json:"expiration_date,omitempty"`
	Status               string     `db:"status" json:"status"` // active, expired, revoked
	CreatedAt            time.Time  `db:"created_at" json:"created_at"`
}

// ActiveOn reports whether the referral covers the given date.
func (r *Referral) ActiveOn(t time.Time) bool {
	if r.Status != "active" {
		return false
	}
	if t.Before(r.EffectiveDate) {
		return false
	}
	if r.ExpirationDate != nil && t.After(*r.ExpirationDate) {
		return false
	}
	return true
}
