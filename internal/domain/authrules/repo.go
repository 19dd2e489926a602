package authrules

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("not found")

type Repository interface {
	Upsert(ctx context.Context, r *Rule) error
	Get(ctx context.Context, payerID uuid.UUID, serviceCode string) (*Rule, error)
	ListByPayer(ctx context.Context, payerID uuid.UUID) ([]*Rule, error)
}
