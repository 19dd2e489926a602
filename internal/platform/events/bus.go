// Package events provides the in-process transition bus the orchestration
// engine publishes workflow state changes on. Subscribers (notably the staff
// alert dispatcher) observe transitions without the publishing component
// knowing who is listening.
package events

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type Type string

const (
	TypeEligibilityVerified Type = "eligibility.verified"
	TypeEligibilityFailed   Type = "eligibility.failed"
	TypeRiskAssessed        Type = "risk.assessed"
	TypePATransition        Type = "pa.transition"
	TypePADenied            Type = "pa.denied"
	TypePAMaxInfoExceeded   Type = "pa.max_info_exceeded"
	TypePAApproved          Type = "pa.approved"
	TypeSlotFreed           Type = "slot.freed"
	TypeAppointmentBooked   Type = "appointment.booked"
	TypeRequestWithdrawn    Type = "request.withdrawn"
)

// Event is one observed workflow transition. Only the fields relevant to the
// publishing component are set; subscribers must tolerate zero values.
type Event struct {
	ID            uuid.UUID  `json:"id"`
	Type          Type       `json:"type"`
	PatientID     uuid.UUID  `json:"patient_id,omitempty"`
	PayerID       uuid.UUID  `json:"payer_id,omitempty"`
	ProviderID    uuid.UUID  `json:"provider_id,omitempty"`
	AppointmentID *uuid.UUID `json:"appointment_id,omitempty"`
	RequestID     *uuid.UUID `json:"request_id,omitempty"`
	PARequestID   *uuid.UUID `json:"pa_request_id,omitempty"`
	ServiceCode   string     `json:"service_code,omitempty"`
	RiskLevel     string     `json:"risk_level,omitempty"`
	Reason        string     `json:"reason,omitempty"`
	Code          string     `json:"code,omitempty"`
	Action        string     `json:"action,omitempty"`
	Timestamp     time.Time  `json:"timestamp"`
}

// Handler receives published events. Handlers run synchronously on the
// publisher's goroutine; they must not block on network calls.
type Handler func(ctx context.Context, evt Event)

// Bus is a thread-safe, in-process publish/subscribe dispatcher.
type Bus struct {
	mu     sync.RWMutex
	subs   map[Type][]Handler
	all    []Handler
	logger zerolog.Logger
}

func NewBus(logger zerolog.Logger) *Bus {
	return &Bus{
		subs:   make(map[Type][]Handler),
		logger: logger,
	}
}

// Subscribe registers a handler for one event type.
func (b *Bus) Subscribe(t Type, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[t] = append(b.subs[t], h)
}

// SubscribeAll registers a handler for every event type.
func (b *Bus) SubscribeAll(h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.all = append(b.all, h)
}

// Publish dispatches the event to all matching subscribers in registration
// order. A panicking subscriber is logged and skipped; it never takes down
// the publishing workflow.
func (b *Bus) Publish(ctx context.Context, evt Event) {
	if evt.ID == uuid.Nil {
		evt.ID = uuid.New()
	}
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now().UTC()
	}

	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.subs[evt.Type])+len(b.all))
	handlers = append(handlers, b.subs[evt.Type]...)
	handlers = append(handlers, b.all...)
	b.mu.RUnlock()

	for _, h := range handlers {
		b.dispatch(ctx, h, evt)
	}
}

func (b *Bus) dispatch(ctx context.Context, h Handler, evt Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error().
				Str("event_id", evt.ID.String()).
				Str("event_type", string(evt.Type)).
				Interface("panic", r).
				Msg("event subscriber panicked")
		}
	}()
	h(ctx, evt)
}
