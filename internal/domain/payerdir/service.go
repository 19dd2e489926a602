package payerdir

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/rcm/rcm/internal/platform/payer"
)

var validAccessMethods = map[string]bool{
	AccessAPI:    true,
	AccessPortal: true,
}

type Service struct {
	repo    Repository
	timeout time.Duration
}

func NewService(repo Repository, timeout time.Duration) *Service {
	return &Service{repo: repo, timeout: timeout}
}

func (s *Service) Create(ctx context.Context, p *Payer) error {
	if p.Name == "" {
		return fmt.Errorf("payer name is required")
	}
	if !validAccessMethods[p.AccessMethod] {
		return fmt.Errorf("invalid access method: %s", p.AccessMethod)
	}
	if p.AccessMethod == AccessAPI && (p.APIBaseURL == nil || *p.APIBaseURL == "") {
		return fmt.Errorf("API payers require an API base URL")
	}
	if p.AccessMethod == AccessPortal {
		if p.PortalURL == nil || *p.PortalURL == "" {
			return fmt.Errorf("portal payers require a portal URL")
		}
		if len(p.ElementMap) == 0 {
			return fmt.Errorf("portal payers require an element map")
		}
	}
	return s.repo.Create(ctx, p)
}

func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (*Payer, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) Update(ctx context.Context, p *Payer) error {
	if p.ID == uuid.Nil {
		return fmt.Errorf("payer ID is required")
	}
	if !validAccessMethods[p.AccessMethod] {
		return fmt.Errorf("invalid access method: %s", p.AccessMethod)
	}
	return s.repo.Update(ctx, p)
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]*Payer, int, error) {
	return s.repo.List(ctx, limit, offset)
}

// ConnectorFor builds the wire client matching the payer's access method.
func (s *Service) ConnectorFor(p *Payer) (payer.Connector, error) {
	switch p.AccessMethod {
	case AccessAPI:
		if p.APIBaseURL == nil {
			return nil, fmt.Errorf("payer %s has no API base URL", p.Name)
		}
		return payer.NewAPIClient(*p.APIBaseURL, p.ID.String(), s.timeout), nil
	case AccessPortal:
		if p.PortalURL == nil {
			return nil, fmt.Errorf("payer %s has no portal URL", p.Name)
		}
		return payer.NewPortalClient(*p.PortalURL, p.ID.String(), payer.ElementMap(p.ElementMap), s.timeout), nil
	default:
		return nil, fmt.Errorf("payer %s has unsupported access method %q", p.Name, p.AccessMethod)
	}
}

// Connector resolves the payer by ID and builds its wire client.
func (s *Service) Connector(ctx context.Context, payerID uuid.UUID) (payer.Connector, error) {
	p, err := s.repo.GetByID(ctx, payerID)
	if err != nil {
		return nil, err
	}
	return s.ConnectorFor(p)
}

// FaxNumber returns the payer's intake fax number, for the degraded
// submission path.
func (s *Service) FaxNumber(ctx context.Context, payerID uuid.UUID) (string, error) {
	p, err := s.repo.GetByID(ctx, payerID)
	if err != nil {
		return "", err
	}
	if p.Fax == nil || *p.Fax == "" {
		return "", fmt.Errorf("payer %s has no fax number on file", p.Name)
	}
	return *p.Fax, nil
}

// Channel resolves the payer and returns its wire client along with the
// access method, for callers that record which channel was used.
func (s *Service) Channel(ctx context.Context, payerID uuid.UUID) (payer.Connector, string, error) {
	p, err := s.repo.GetByID(ctx, payerID)
	if err != nil {
		return nil, "", err
	}
	conn, err := s.ConnectorFor(p)
	if err != nil {
		return nil, "", err
	}
	return conn, p.AccessMethod, nil
}
