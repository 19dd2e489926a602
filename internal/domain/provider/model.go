package provider

import (
	"time"

	"github.com/google/uuid"
)

// Provider maps to the provider table.
type Provider struct {
	ID        uuid.UUID `db:"id" json:"id"`
	NPI       string    `db:"npi" json:"npi"`
	FirstName string    `db:"first_name" json:"first_name"`
	LastName  string    `db:"last_name" json:"last_name"`
	Specialty string    `db:"specialty" json:"specialty"`
	Rating    float64   `db:"rating" json:"rating"`
	Active    bool      `db:"active" json:"active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Network participation status values.
const (
	NetworkIn  = "in-network"
	NetworkOut = "out-of-network"
)

// Participation records a provider's contract with one payer, bounded by
// effective dating. A provider with no row for a payer is out-of-network.
type Participation struct {
	ID              uuid.UUID  `db:"id" json:"id"`
	ProviderID      uuid.UUID  `db:"provider_id" json:"provider_id"`
	PayerID         uuid.UUID  `db:"payer_id" json:"payer_id"`
	EffectiveDate   time.Time  `db:"effective_date" json:"effective_date"`
	TerminationDate *time.Time `db:"termination_date" json:"termination_date,omitempty"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
}

// ActiveOn reports whether the contract covers the given date.
func (p *Participation) ActiveOn(t time.Time) bool {
	if t.Before(p.EffectiveDate) {
		return false
	}
	if p.TerminationDate != nil && t.After(*p.TerminationDate) {
		return false
	}
	return true
}
