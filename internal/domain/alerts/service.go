package alerts

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (*StaffAlert, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, status, alertType string, limit, offset int) ([]*StaffAlert, int, error) {
	return s.repo.List(ctx, status, alertType, limit, offset)
}

// Acknowledge moves a new alert into a staff member's hands. Acknowledging an
// already-acknowledged alert keeps the original owner.
func (s *Service) Acknowledge(ctx context.Context, id uuid.UUID, actor string) (*StaffAlert, error) {
	if actor == "" {
		return nil, fmt.Errorf("actor is required")
	}
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.Status != StatusNew {
		return a, nil
	}

	now := time.Now()
	a.Status = StatusAcknowledged
	a.AcknowledgedBy = &actor
	a.AcknowledgedAt = &now
	if err := s.repo.Update(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

func (s *Service) Resolve(ctx context.Context, id uuid.UUID, actor string) (*StaffAlert, error) {
	if actor == "" {
		return nil, fmt.Errorf("actor is required")
	}
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.Status == StatusResolved {
		return a, nil
	}

	now := time.Now()
	a.Status = StatusResolved
	a.ResolvedBy = &actor
	a.ResolvedAt = &now
	if err := s.repo.Update(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}
