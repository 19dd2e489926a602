package patient

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a patient, coverage, or referral row is absent.
var ErrNotFound = errors.New("not found")

type Repository interface {
	Create(ctx context.Context, p *Patient) error
	GetByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	Update(ctx context.Context, p *Patient) error
	SoftDelete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, limit, offset int) ([]*Patient, int, error)
}

type CoverageRepository interface {
	Create(ctx context.Context, c *Coverage) error
	GetByPatientAndPayer(ctx context.Context, patientID, payerID uuid.UUID) (*Coverage, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*Coverage, error)
}

type ReferralRepository interface {
	Create(ctx context.Context, r *Referral) error
	ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*Referral, error)
	// ActiveForService returns the newest referral covering the service code
	// on the given date, or ErrNotFound.
	ActiveForService(ctx context.Context, patientID uuid.UUID, serviceCode string, asOf time.Time) (*Referral, error)
}
