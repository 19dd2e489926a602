package alerts

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/rcm/rcm/internal/platform/events"
	"github.com/rcm/rcm/internal/platform/payer"
)

type mockAlertRepo struct {
	items map[string]*StaffAlert // keyed by dedupe key
	order []*StaffAlert
}

func newMockAlertRepo() *mockAlertRepo {
	return &mockAlertRepo{items: make(map[string]*StaffAlert)}
}

func (m *mockAlertRepo) Insert(_ context.Context, a *StaffAlert) (bool, error) {
	// mirrors the partial-index upsert: an open alert absorbs the
	// re-trigger, a resolved one leaves room for a fresh row
	if existing, ok := m.items[a.DedupeKey]; ok && existing.Status != StatusResolved {
		existing.Message = a.Message
		existing.UpdatedAt = a.UpdatedAt
		a.ID = existing.ID
		return false, nil
	}
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	cp := *a
	m.items[a.DedupeKey] = &cp
	m.order = append(m.order, &cp)
	return true, nil
}

func (m *mockAlertRepo) GetByID(_ context.Context, id uuid.UUID) (*StaffAlert, error) {
	for _, a := range m.items {
		if a.ID == id {
			cp := *a
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *mockAlertRepo) Update(_ context.Context, a *StaffAlert) error {
	for _, x := range m.order {
		if x.ID == a.ID {
			*x = *a
			return nil
		}
	}
	return ErrNotFound
}

func (m *mockAlertRepo) List(_ context.Context, status, alertType string, limit, offset int) ([]*StaffAlert, int, error) {
	var out []*StaffAlert
	for _, a := range m.order {
		if status != "" && a.Status != status {
			continue
		}
		if alertType != "" && a.Type != alertType {
			continue
		}
		cp := *a
		out = append(out, &cp)
	}
	return out, len(out), nil
}

func newDispatcherFixture(t *testing.T) (*events.Bus, *mockAlertRepo) {
	t.Helper()
	logger := zerolog.New(os.Stderr).Level(zerolog.Disabled)
	bus := events.NewBus(logger)
	repo := newMockAlertRepo()
	NewDispatcher(repo, logger).Register(bus)
	return bus, repo
}

func (m *mockAlertRepo) byType(alertType string) []*StaffAlert {
	var out []*StaffAlert
	for _, a := range m.order {
		if a.Type == alertType {
			out = append(out, a)
		}
	}
	return out
}

func TestDispatcher_PADenied(t *testing.T) {
	bus, repo := newDispatcherFixture(t)
	paID := uuid.New()

	bus.Publish(context.Background(), events.Event{
		Type:        events.TypePADenied,
		PatientID:   uuid.New(),
		PayerID:     uuid.New(),
		PARequestID: &paID,
		Reason:      "medical necessity not established",
		Action:      "attach supporting clinical notes and appeal",
	})

	got := repo.byType(TypePADenied)
	if len(got) != 1 {
		t.Fatalf("alerts = %d, want 1", len(got))
	}
	if got[0].Severity != SeverityCritical {
		t.Errorf("severity = %s, want %s", got[0].Severity, SeverityCritical)
	}
	if got[0].Status != StatusNew {
		t.Errorf("status = %s, want %s", got[0].Status, StatusNew)
	}
	if got[0].PARequestID == nil || *got[0].PARequestID != paID {
		t.Error("alert must reference the denied request")
	}
}

func TestDispatcher_DuplicateEventRaisesOneAlert(t *testing.T) {
	bus, repo := newDispatcherFixture(t)
	paID := uuid.New()
	evt := events.Event{
		Type:        events.TypePADenied,
		PARequestID: &paID,
		Reason:      "not covered",
	}

	bus.Publish(context.Background(), evt)
	bus.Publish(context.Background(), evt)

	if got := repo.byType(TypePADenied); len(got) != 1 {
		t.Errorf("alerts = %d, want 1 (dedupe by subject)", len(got))
	}
}

func TestDispatcher_RetriggerRefreshesOpenAlert(t *testing.T) {
	bus, repo := newDispatcherFixture(t)
	paID := uuid.New()

	bus.Publish(context.Background(), events.Event{
		Type:        events.TypePADenied,
		PARequestID: &paID,
		Reason:      "not covered",
	})
	bus.Publish(context.Background(), events.Event{
		Type:        events.TypePADenied,
		PARequestID: &paID,
		Reason:      "medical necessity not established",
	})

	got := repo.byType(TypePADenied)
	if len(got) != 1 {
		t.Fatalf("alerts = %d, want 1 (re-trigger updates, never duplicates)", len(got))
	}
	if got[0].Message != "prior authorization denied: medical necessity not established" {
		t.Errorf("re-trigger must refresh the message, got %q", got[0].Message)
	}
}

func TestDispatcher_ResolvedAlertCanFireAgain(t *testing.T) {
	bus, repo := newDispatcherFixture(t)
	paID := uuid.New()
	evt := events.Event{
		Type:        events.TypePADenied,
		PARequestID: &paID,
		Reason:      "not covered",
	}

	bus.Publish(context.Background(), evt)
	first := repo.byType(TypePADenied)
	if len(first) != 1 {
		t.Fatalf("alerts = %d, want 1", len(first))
	}

	svc := NewService(repo)
	if _, err := svc.Resolve(context.Background(), first[0].ID, "staff-1"); err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	bus.Publish(context.Background(), evt)
	if got := repo.byType(TypePADenied); len(got) != 2 {
		t.Errorf("alerts = %d, want 2 (resolved alerts never swallow new triggers)", len(got))
	}
}

func TestDispatcher_MissingInfoOnlyForMoreInfoTransition(t *testing.T) {
	bus, repo := newDispatcherFixture(t)
	paID := uuid.New()

	bus.Publish(context.Background(), events.Event{
		Type:        events.TypePATransition,
		PARequestID: &paID,
		Reason:      "initiated -> submitted",
	})
	bus.Publish(context.Background(), events.Event{
		Type:        events.TypePATransition,
		PARequestID: &paID,
		Reason:      "pending_review -> requires_more_info",
	})

	if got := repo.byType(TypeMissingInfo); len(got) != 1 {
		t.Errorf("alerts = %d, want 1 (only the more-info transition)", len(got))
	}
}

func TestDispatcher_HighRiskOnly(t *testing.T) {
	bus, repo := newDispatcherFixture(t)
	low := uuid.New()
	high := uuid.New()

	bus.Publish(context.Background(), events.Event{
		Type: events.TypeRiskAssessed, PARequestID: &low, RiskLevel: "medium",
	})
	bus.Publish(context.Background(), events.Event{
		Type: events.TypeRiskAssessed, PARequestID: &high, RiskLevel: "high",
		Reason: "medical necessity not established",
	})

	got := repo.byType(TypeHighRisk)
	if len(got) != 1 {
		t.Fatalf("alerts = %d, want 1 (high only)", len(got))
	}
	if got[0].PARequestID == nil || *got[0].PARequestID != high {
		t.Error("alert must reference the high-risk request")
	}
}

func TestDispatcher_NetworkMismatch(t *testing.T) {
	bus, repo := newDispatcherFixture(t)
	apptID := uuid.New()

	bus.Publish(context.Background(), events.Event{
		Type:          events.TypeAppointmentBooked,
		AppointmentID: &apptID,
	})
	if got := repo.byType(TypeNetworkMismatch); len(got) != 0 {
		t.Errorf("in-network booking raised %d alerts, want 0", len(got))
	}

	bus.Publish(context.Background(), events.Event{
		Type:          events.TypeAppointmentBooked,
		AppointmentID: &apptID,
		Reason:        "out-of-network provider",
	})
	if got := repo.byType(TypeNetworkMismatch); len(got) != 1 {
		t.Errorf("alerts = %d, want 1", len(got))
	}
}

func TestDispatcher_EligibilityFailureThreshold(t *testing.T) {
	bus, repo := newDispatcherFixture(t)
	patientID, payerID := uuid.New(), uuid.New()
	fail := events.Event{
		Type:      events.TypeEligibilityFailed,
		PatientID: patientID,
		PayerID:   payerID,
		Reason:    "payer endpoint timeout",
	}

	bus.Publish(context.Background(), fail)
	if got := repo.byType(TypeEligibilityFailure); len(got) != 0 {
		t.Fatalf("single failure raised %d alerts, want 0", len(got))
	}

	bus.Publish(context.Background(), fail)
	if got := repo.byType(TypeEligibilityFailure); len(got) != 1 {
		t.Fatalf("second consecutive failure raised %d alerts, want 1", len(got))
	}
}

func TestDispatcher_RepeatedMissingMemberRaisesMissingInfo(t *testing.T) {
	bus, repo := newDispatcherFixture(t)
	patientID, payerID := uuid.New(), uuid.New()
	fail := events.Event{
		Type:      events.TypeEligibilityFailed,
		PatientID: patientID,
		PayerID:   payerID,
		Reason:    "no coverage on file for payer",
		Code:      payer.CodeMissingMemberID,
	}

	bus.Publish(context.Background(), fail)
	bus.Publish(context.Background(), fail)

	if got := repo.byType(TypeEligibilityFailure); len(got) != 0 {
		t.Errorf("missing member ID raised %d connectivity alerts, want 0", len(got))
	}
	got := repo.byType(TypeMissingInfo)
	if len(got) != 1 {
		t.Fatalf("alerts = %d, want 1 missing-info alert", len(got))
	}
	if got[0].PatientID != patientID {
		t.Error("alert must reference the patient with the bad member ID")
	}
}

func TestDispatcher_SuccessResetsFailureCounter(t *testing.T) {
	bus, repo := newDispatcherFixture(t)
	patientID, payerID := uuid.New(), uuid.New()
	fail := events.Event{
		Type:      events.TypeEligibilityFailed,
		PatientID: patientID,
		PayerID:   payerID,
	}
	ok := events.Event{
		Type:      events.TypeEligibilityVerified,
		PatientID: patientID,
		PayerID:   payerID,
	}

	bus.Publish(context.Background(), fail)
	bus.Publish(context.Background(), ok)
	bus.Publish(context.Background(), fail)

	if got := repo.byType(TypeEligibilityFailure); len(got) != 0 {
		t.Errorf("failures interleaved with a success raised %d alerts, want 0", len(got))
	}
}

func TestDispatcher_FailureCounterIsPerPair(t *testing.T) {
	bus, repo := newDispatcherFixture(t)
	payerID := uuid.New()

	bus.Publish(context.Background(), events.Event{
		Type: events.TypeEligibilityFailed, PatientID: uuid.New(), PayerID: payerID,
	})
	bus.Publish(context.Background(), events.Event{
		Type: events.TypeEligibilityFailed, PatientID: uuid.New(), PayerID: payerID,
	})

	if got := repo.byType(TypeEligibilityFailure); len(got) != 0 {
		t.Errorf("failures for different patients raised %d alerts, want 0", len(got))
	}
}

func TestService_AcknowledgeAndResolve(t *testing.T) {
	repo := newMockAlertRepo()
	svc := NewService(repo)
	ctx := context.Background()

	created, err := repo.Insert(ctx, &StaffAlert{
		Type:      TypePADenied,
		Severity:  SeverityCritical,
		Status:    StatusNew,
		DedupeKey: "pa_denied:x",
	})
	if err != nil || !created {
		t.Fatal("fixture insert failed")
	}
	id := repo.order[0].ID

	a, err := svc.Acknowledge(ctx, id, "staff-1")
	if err != nil {
		t.Fatalf("Acknowledge() error = %v", err)
	}
	if a.Status != StatusAcknowledged || a.AcknowledgedBy == nil || *a.AcknowledgedBy != "staff-1" {
		t.Errorf("acknowledge did not record the actor: %+v", a)
	}

	// second acknowledge keeps the first owner
	a, err = svc.Acknowledge(ctx, id, "staff-2")
	if err != nil {
		t.Fatalf("second Acknowledge() error = %v", err)
	}
	if *a.AcknowledgedBy != "staff-1" {
		t.Errorf("acknowledged_by = %s, want staff-1", *a.AcknowledgedBy)
	}

	a, err = svc.Resolve(ctx, id, "staff-2")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if a.Status != StatusResolved || a.ResolvedBy == nil || *a.ResolvedBy != "staff-2" {
		t.Errorf("resolve did not record the actor: %+v", a)
	}

	if _, err := svc.Acknowledge(ctx, id, ""); err == nil {
		t.Error("empty actor must be rejected")
	}
}
