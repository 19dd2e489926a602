package patient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var validContactMethods = map[string]bool{
	"phone": true,
	"email": true,
	"sms":   true,
}

type Service struct {
	repo      Repository
	coverage  CoverageRepository
	referrals ReferralRepository
}

func NewService(repo Repository, coverage CoverageRepository, referrals ReferralRepository) *Service {
	return &Service{repo: repo, coverage: coverage, referrals: referrals}
}

func (s *Service) Create(ctx context.Context, p *Patient) error {
	if p.FirstName == "" || p.LastName == "" {
		return fmt.Errorf("first and last name are required")
	}
	if p.DateOfBirth.IsZero() {
		return fmt.Errorf("date of birth is required")
	}
	if p.DateOfBirth.After(time.Now()) {
		return fmt.Errorf("date of birth cannot be in the future")
	}
	if p.PreferredContact != nil && !validContactMethods[*p.PreferredContact] {
		return fmt.Errorf("invalid preferred contact method: %s", *p.PreferredContact)
	}
	if p.ComplexityScore < 0 || p.ComplexityScore > 1 {
		return fmt.Errorf("complexity score must be between 0 and 1")
	}
	if p.NoShowRate < 0 || p.NoShowRate > 1 {
		return fmt.Errorf("no-show rate must be between 0 and 1")
	}
	return s.repo.Create(ctx, p)
}

func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) Update(ctx context.Context, p *Patient) error {
	if p.ID == uuid.Nil {
		return fmt.Errorf("patient ID is required")
	}
	if p.PreferredContact != nil && !validContactMethods[*p.PreferredContact] {
		return fmt.Errorf("invalid preferred contact method: %s", *p.PreferredContact)
	}
	return s.repo.Update(ctx, p)
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	return s.repo.SoftDelete(ctx, id)
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]*Patient, int, error) {
	return s.repo.List(ctx, limit, offset)
}

// ComplexityScore returns the clinical complexity score on file for a patient.
func (s *Service) ComplexityScore(ctx context.Context, patientID uuid.UUID) (float64, error) {
	p, err := s.repo.GetByID(ctx, patientID)
	if err != nil {
		return 0, err
	}
	return p.ComplexityScore, nil
}

func (s *Service) AddCoverage(ctx context.Context, c *Coverage) error {
	if c.PatientID == uuid.Nil || c.PayerID == uuid.Nil {
		return fmt.Errorf("patient ID and payer ID are required")
	}
	if c.MemberID == "" {
		return fmt.Errorf("member ID is required")
	}
	if c.Rank == "" {
		c.Rank = "primary"
	}
	if c.Rank != "primary" && c.Rank != "secondary" {
		return fmt.Errorf("invalid coverage rank: %s", c.Rank)
	}
	return s.coverage.Create(ctx, c)
}

// MemberID resolves the member identity a patient holds with a payer.
func (s *Service) MemberID(ctx context.Context, patientID, payerID uuid.UUID) (string, error) {
	cov, err := s.coverage.GetByPatientAndPayer(ctx, patientID, payerID)
	if err != nil {
		return "", err
	}
	return cov.MemberID, nil
}

func (s *Service) ListCoverage(ctx context.Context, patientID uuid.UUID) ([]*Coverage, error) {
	return s.coverage.ListByPatient(ctx, patientID)
}

func (s *Service) AddReferral(ctx context.Context, r *Referral) error {
	if r.PatientID == uuid.Nil {
		return fmt.Errorf("patient ID is required")
	}
	if r.ServiceCode == "" {
		return fmt.Errorf("service code is required")
	}
	if r.EffectiveDate.IsZero() {
		return fmt.Errorf("effective date is required")
	}
	if r.ExpirationDate != nil && r.ExpirationDate.Before(r.EffectiveDate) {
		return fmt.Errorf("expiration date precedes effective date")
	}
	return s.referrals.Create(ctx, r)
}

func (s *Service) ListReferrals(ctx context.Context, patientID uuid.UUID) ([]*Referral, error) {
	return s.referrals.ListByPatient(ctx, patientID)
}

// HasActiveReferral reports whether a referral for the service is on file as
// of the given date.
func (s *Service) HasActiveReferral(ctx context.Context, patientID uuid.UUID, serviceCode string, asOf time.Time) (bool, error) {
	_, err := s.referrals.ActiveForService(ctx, patientID, serviceCode, asOf)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
