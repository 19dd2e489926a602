package denialrisk

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("not found")

type Repository interface {
	Upsert(ctx context.Context, p *Pattern) error
	// ListByPayerService returns patterns ordered by frequency descending.
	ListByPayerService(ctx context.Context, payerID uuid.UUID, serviceCode string) ([]*Pattern, error)
}
