package alerts

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/rcm/rcm/internal/platform/events"
	"github.com/rcm/rcm/internal/platform/payer"
)

// consecutive eligibility failures for the same patient and payer before
// staff get pulled in
const failureThreshold = 2

// Dispatcher turns workflow transitions into staff alerts. It keeps an
// in-memory consecutive-failure counter per patient and payer for the
// eligibility trigger; everything else maps one event to one alert, deduped
// by the repository.
type Dispatcher struct {
	repo   Repository
	logger zerolog.Logger

	mu       sync.Mutex
	failures map[string]int
}

func NewDispatcher(repo Repository, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		repo:     repo,
		logger:   logger,
		failures: make(map[string]int),
	}
}

// Register wires the dispatcher onto the bus.
func (d *Dispatcher) Register(bus *events.Bus) {
	bus.Subscribe(events.TypePADenied, d.onPADenied)
	bus.Subscribe(events.TypePAMaxInfoExceeded, d.onMaxInfoExceeded)
	bus.Subscribe(events.TypePATransition, d.onPATransition)
	bus.Subscribe(events.TypeRiskAssessed, d.onRiskAssessed)
	bus.Subscribe(events.TypeAppointmentBooked, d.onAppointmentBooked)
	bus.Subscribe(events.TypeEligibilityFailed, d.onEligibilityFailed)
	bus.Subscribe(events.TypeEligibilityVerified, d.onEligibilityVerified)
}

func (d *Dispatcher) onPADenied(ctx context.Context, evt events.Event) {
	msg := fmt.Sprintf("prior authorization denied: %s", evt.Reason)
	if evt.Action != "" {
		msg += fmt.Sprintf(" (recommended: %s)", evt.Action)
	}
	d.raise(ctx, evt, &StaffAlert{
		Type:     TypePADenied,
		Severity: SeverityCritical,
		Message:  msg,
	})
}

func (d *Dispatcher) onMaxInfoExceeded(ctx context.Context, evt events.Event) {
	d.raise(ctx, evt, &StaffAlert{
		Type:     TypeMaxInfoExceeded,
		Severity: SeverityCritical,
		Message:  "information request loop exhausted; case needs manual escalation with the payer",
	})
}

func (d *Dispatcher) onPATransition(ctx context.Context, evt events.Event) {
	if !strings.HasSuffix(evt.Reason, "-> requires_more_info") {
		return
	}
	d.raise(ctx, evt, &StaffAlert{
		Type:     TypeMissingInfo,
		Severity: SeverityWarning,
		Message:  "payer requested additional information; gather documents and resubmit",
	})
}

func (d *Dispatcher) onRiskAssessed(ctx context.Context, evt events.Event) {
	if evt.RiskLevel != "high" {
		return
	}
	msg := "high denial risk"
	if evt.Reason != "" {
		msg += fmt.Sprintf(": likely %q", evt.Reason)
	}
	if evt.Action != "" {
		msg += fmt.Sprintf(" (recommended: %s)", evt.Action)
	}
	d.raise(ctx, evt, &StaffAlert{
		Type:     TypeHighRisk,
		Severity: SeverityWarning,
		Message:  msg,
	})
}

func (d *Dispatcher) onAppointmentBooked(ctx context.Context, evt events.Event) {
	if evt.Reason == "" {
		return
	}
	d.raise(ctx, evt, &StaffAlert{
		Type:     TypeNetworkMismatch,
		Severity: SeverityWarning,
		Message:  fmt.Sprintf("booked with %s; confirm coverage before the visit", evt.Reason),
	})
}

func (d *Dispatcher) onEligibilityFailed(ctx context.Context, evt events.Event) {
	key := evt.PatientID.String() + ":" + evt.PayerID.String()

	d.mu.Lock()
	d.failures[key]++
	count := d.failures[key]
	d.mu.Unlock()

	if count < failureThreshold {
		return
	}
	// A member the payer cannot identify is a data problem for the front
	// desk, not a connectivity problem.
	if evt.Code == payer.CodeMissingMemberID || evt.Code == payer.CodeUnknownMember {
		d.raise(ctx, evt, &StaffAlert{
			Type:     TypeMissingInfo,
			Severity: SeverityWarning,
			Message:  fmt.Sprintf("member could not be identified %d times in a row: %s; collect updated insurance information", count, evt.Reason),
		})
		return
	}
	d.raise(ctx, evt, &StaffAlert{
		Type:     TypeEligibilityFailure,
		Severity: SeverityWarning,
		Message:  fmt.Sprintf("eligibility verification failed %d times in a row: %s", count, evt.Reason),
	})
}

func (d *Dispatcher) onEligibilityVerified(_ context.Context, evt events.Event) {
	key := evt.PatientID.String() + ":" + evt.PayerID.String()

	d.mu.Lock()
	delete(d.failures, key)
	d.mu.Unlock()
}

func (d *Dispatcher) raise(ctx context.Context, evt events.Event, a *StaffAlert) {
	a.Status = StatusNew
	a.PatientID = evt.PatientID
	a.PayerID = evt.PayerID
	a.PARequestID = evt.PARequestID
	a.AppointmentID = evt.AppointmentID
	a.ServiceCode = evt.ServiceCode
	a.DedupeKey = dedupeKey(a, evt)

	created, err := d.repo.Insert(ctx, a)
	if err != nil {
		d.logger.Error().Err(err).
			Str("alert_type", a.Type).
			Str("dedupe_key", a.DedupeKey).
			Msg("failed to store staff alert")
		return
	}
	if created {
		d.logger.Info().
			Str("alert_type", a.Type).
			Str("severity", a.Severity).
			Str("patient_id", a.PatientID.String()).
			Msg("staff alert raised")
	} else {
		d.logger.Debug().
			Str("alert_type", a.Type).
			Str("dedupe_key", a.DedupeKey).
			Msg("open staff alert refreshed")
	}
}

// dedupeKey identifies the subject of an alert: the PA request when there is
// one, the appointment for booking alerts, otherwise the patient/payer pair.
func dedupeKey(a *StaffAlert, evt events.Event) string {
	switch {
	case evt.PARequestID != nil:
		return fmt.Sprintf("%s:%s", a.Type, evt.PARequestID)
	case evt.AppointmentID != nil:
		return fmt.Sprintf("%s:%s", a.Type, evt.AppointmentID)
	default:
		return fmt.Sprintf("%s:%s:%s", a.Type, evt.PatientID, evt.PayerID)
	}
}
