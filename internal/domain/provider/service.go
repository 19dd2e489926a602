package provider

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
)

var npiPattern = regexp.MustCompile(`^\d{10}$`)

type Service struct {
	repo          Repository
	participation ParticipationRepository
}

func NewService(repo Repository, participation ParticipationRepository) *Service {
	return &Service{repo: repo, participation: participation}
}

func (s *Service) Create(ctx context.Context, p *Provider) error {
	if !npiPattern.MatchString(p.NPI) {
		return fmt.Errorf("NPI must be 10 digits")
	}
	if p.FirstName == "" || p.LastName == "" {
		return fmt.Errorf("first and last name are required")
	}
	if p.Specialty == "" {
		return fmt.Errorf("specialty is required")
	}
	if p.Rating < 0 || p.Rating > 5 {
		return fmt.Errorf("rating must be between 0 and 5")
	}
	return s.repo.Create(ctx, p)
}

func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (*Provider, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) Update(ctx context.Context, p *Provider) error {
	if p.ID == uuid.Nil {
		return fmt.Errorf("provider ID is required")
	}
	if !npiPattern.MatchString(p.NPI) {
		return fmt.Errorf("NPI must be 10 digits")
	}
	return s.repo.Update(ctx, p)
}

func (s *Service) List(ctx context.Context, specialty string, limit, offset int) ([]*Provider, int, error) {
	return s.repo.List(ctx, specialty, limit, offset)
}

func (s *Service) AddParticipation(ctx context.Context, p *Participation) error {
	if p.ProviderID == uuid.Nil || p.PayerID == uuid.Nil {
		return fmt.Errorf("provider ID and payer ID are required")
	}
	if p.EffectiveDate.IsZero() {
		return fmt.Errorf("effective date is required")
	}
	if p.TerminationDate != nil && p.TerminationDate.Before(p.EffectiveDate) {
		return fmt.Errorf("termination date precedes effective date")
	}
	return s.participation.Create(ctx, p)
}

func (s *Service) ListParticipation(ctx context.Context, providerID uuid.UUID) ([]*Participation, error) {
	return s.participation.ListByProvider(ctx, providerID)
}

// NPI returns the provider's national provider identifier.
func (s *Service) NPI(ctx context.Context, providerID uuid.UUID) (string, error) {
	p, err := s.repo.GetByID(ctx, providerID)
	if err != nil {
		return "", err
	}
	return p.NPI, nil
}

// NetworkStatus reports whether the provider is contracted with the payer on
// the given date. A provider with no active contract is out-of-network.
func (s *Service) NetworkStatus(ctx context.Context, providerID, payerID uuid.UUID, asOf time.Time) (string, error) {
	_, err := s.participation.ActiveOn(ctx, providerID, payerID, asOf)
	if errors.Is(err, ErrNotFound) {
		return NetworkOut, nil
	}
	if err != nil {
		return "", err
	}
	return NetworkIn, nil
}
