package provider

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("not found")

type Repository interface {
	Create(ctx context.Context, p *Provider) error
	GetByID(ctx context.Context, id uuid.UUID) (*Provider, error)
	Update(ctx context.Context, p *Provider) error
	List(ctx context.Context, specialty string, limit, offset int) ([]*Provider, int, error)
}

type ParticipationRepository interface {
	Create(ctx context.Context, p *Participation) error
	ListByProvider(ctx context.Context, providerID uuid.UUID) ([]*Participation, error)
	// ActiveOn returns the participation row covering the date, or ErrNotFound.
	ActiveOn(ctx context.Context, providerID, payerID uuid.UUID, asOf time.Time) (*Participation, error)
}
