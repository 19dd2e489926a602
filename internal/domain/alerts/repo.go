package alerts

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("not found")

type Repository interface {
	// Insert stores the alert. When an unresolved alert with the same
	// dedupe key already exists, that alert's message and timestamp are
	// refreshed instead. It reports whether a new row was created.
	Insert(ctx context.Context, a *StaffAlert) (bool, error)
	GetByID(ctx context.Context, id uuid.UUID) (*StaffAlert, error)
	Update(ctx context.Context, a *StaffAlert) error
	List(ctx context.Context, status, alertType string, limit, offset int) ([]*StaffAlert, int, error)
}
