package eligibility

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("not found")

// SnapshotRepository is append-only: there is no update or delete.
type SnapshotRepository interface {
	Insert(ctx context.Context, s *Snapshot) error
	// Latest returns the newest snapshot for the pair, or ErrNotFound.
	Latest(ctx context.Context, patientID, payerID uuid.UUID) (*Snapshot, error)
	History(ctx context.Context, patientID, payerID uuid.UUID, limit int) ([]*Snapshot, error)
}

type LogRepository interface {
	Append(ctx context.Context, e *LogEntry) error
	List(ctx context.Context, patientID, payerID uuid.UUID, limit int) ([]*LogEntry, error)
}
