package auditevent

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("access record not found")

type Repository interface {
	Insert(ctx context.Context, rec *AccessRecord) error
	List(ctx context.Context, userID, resource string, limit, offset int) ([]*AccessRecord, int, error)
}
