package scheduling

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("not found")

type RequestRepository interface {
	Create(ctx context.Context, r *AppointmentRequest) error
	GetByID(ctx context.Context, id uuid.UUID) (*AppointmentRequest, error)
	Update(ctx context.Context, r *AppointmentRequest) error
	List(ctx context.Context, status string, limit, offset int) ([]*AppointmentRequest, int, error)
}

type SlotRepository interface {
	Create(ctx context.Context, s *Slot) error
	GetByID(ctx context.Context, id uuid.UUID) (*Slot, error)
	// OpenCandidates returns open slots matching the criteria, joined with
	// provider rating and specialty, ordered by start time.
	OpenCandidates(ctx context.Context, c SlotCriteria) ([]*Candidate, error)
	// Book atomically flips an open slot to booked. It returns false when
	// the slot was already taken; that is not an error.
	Book(ctx context.Context, slotID uuid.UUID) (bool, error)
	// Release flips a booked slot back to open.
	Release(ctx context.Context, slotID uuid.UUID) error
}

type AppointmentRepository interface {
	Create(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	Update(ctx context.Context, a *Appointment) error
	FindByRequest(ctx context.Context, requestID uuid.UUID) (*Appointment, error)
}

type WaitlistRepository interface {
	Create(ctx context.Context, e *WaitlistEntry) error
	Update(ctx context.Context, e *WaitlistEntry) error
	FindActiveByRequest(ctx context.Context, requestID uuid.UUID) (*WaitlistEntry, error)
	// ActiveEntries returns active entries most urgent first, oldest first
	// within the same urgency.
	ActiveEntries(ctx context.Context) ([]*WaitlistEntry, error)
}
