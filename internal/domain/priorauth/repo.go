package priorauth

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("not found")

type Repository interface {
	Create(ctx context.Context, r *Request) error
	GetByID(ctx context.Context, id uuid.UUID) (*Request, error)
	Update(ctx context.Context, r *Request) error
	FindByAppointmentRequest(ctx context.Context, appointmentRequestID uuid.UUID) (*Request, error)
	List(ctx context.Context, status string, limit, offset int) ([]*Request, int, error)
}

type TransitionRepository interface {
	Append(ctx context.Context, t *Transition) error
	ListByRequest(ctx context.Context, requestID uuid.UUID) ([]*Transition, error)
}

type PackageRepository interface {
	Create(ctx context.Context, p *Package) error
	GetByRequest(ctx context.Context, requestID uuid.UUID) (*Package, error)
	Update(ctx context.Context, p *Package) error
}
