// Package orchestrator drives the intake workflow end to end: verify
// coverage, place the appointment, and open the prior auth case with its
// documentation package. It also wires the cross-domain event reactions that
// keep scheduling and prior auth consistent without the two packages knowing
// about each other.
package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/rcm/rcm/internal/domain/denialrisk"
	"github.com/rcm/rcm/internal/domain/eligibility"
	"github.com/rcm/rcm/internal/domain/priorauth"
	"github.com/rcm/rcm/internal/domain/scheduling"
	"github.com/rcm/rcm/internal/platform/events"
)

type EligibilityVerifier interface {
	Verify(ctx context.Context, patientID, payerID uuid.UUID) (*eligibility.Result, error)
}

type Scheduler interface {
	CreateRequest(ctx context.Context, req *scheduling.AppointmentRequest) (*scheduling.Outcome, error)
	ConfirmByRequest(ctx context.Context, requestID uuid.UUID) error
	OnSlotFreed(ctx context.Context, evt events.Event)
}

type PACoordinator interface {
	Initiate(ctx context.Context, p priorauth.InitiateParams) (*priorauth.Request, *denialrisk.Assessment, error)
	GetByID(ctx context.Context, id uuid.UUID) (*priorauth.Request, error)
	WithdrawByAppointmentRequest(ctx context.Context, appointmentRequestID uuid.UUID, reason string) error
}

type PackageBuilder interface {
	Build(ctx context.Context, requestID uuid.UUID) (*priorauth.Package, error)
}

type Orchestrator struct {
	eligibility EligibilityVerifier
	scheduler   Scheduler
	pa          PACoordinator
	builder     PackageBuilder
	logger      zerolog.Logger
}

func New(eligibility EligibilityVerifier, scheduler Scheduler, pa PACoordinator, builder PackageBuilder, logger zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		eligibility: eligibility,
		scheduler:   scheduler,
		pa:          pa,
		builder:     builder,
		logger:      logger,
	}
}

// IntakeParams is everything the front desk captures for one visit request.
type IntakeParams struct {
	Request scheduling.AppointmentRequest `json:"request"`
}

// IntakeResult is the workflow's composite answer. PARequest and Package are
// nil when the payer does not require prior auth or when the request landed
// on the waitlist.
type IntakeResult struct {
	Eligibility *eligibility.Result   `json:"eligibility"`
	Scheduling  *scheduling.Outcome   `json:"scheduling"`
	PARequest   *priorauth.Request    `json:"pa_request,omitempty"`
	Assessment  *denialrisk.Assessment `json:"assessment,omitempty"`
	Package     *priorauth.Package    `json:"package,omitempty"`
}

// HandleAppointmentRequest runs intake: eligibility first (a stale answer
// proceeds with a warning, no answer at all stops the workflow), then slot
// allocation, then the prior auth case for booked visits.
func (o *Orchestrator) HandleAppointmentRequest(ctx context.Context, p IntakeParams) (*IntakeResult, error) {
	req := p.Request

	cov, err := o.eligibility.Verify(ctx, req.PatientID, req.PayerID)
	if err != nil {
		return nil, fmt.Errorf("verify eligibility: %w", err)
	}
	if cov.Stale {
		o.logger.Warn().
			Str("patient_id", req.PatientID.String()).
			Str("payer_id", req.PayerID.String()).
			Msg("proceeding on stale eligibility")
	}

	outcome, err := o.scheduler.CreateRequest(ctx, &req)
	if err != nil {
		return nil, err
	}

	result := &IntakeResult{Eligibility: cov, Scheduling: outcome}
	if outcome.Appointment == nil {
		return result, nil
	}

	paReq, assessment, err := o.pa.Initiate(ctx, priorauth.InitiateParams{
		PatientID:            req.PatientID,
		ProviderID:           outcome.Appointment.ProviderID,
		PayerID:              req.PayerID,
		ServiceCode:          req.ServiceCode,
		AppointmentRequestID: &req.ID,
	})
	if errors.Is(err, priorauth.ErrNotRequired) {
		return result, nil
	}
	if err != nil {
		return nil, fmt.Errorf("initiate prior auth: %w", err)
	}
	result.PARequest = paReq
	result.Assessment = assessment

	pkg, err := o.builder.Build(ctx, paReq.ID)
	if err != nil {
		// the case exists; staff can rebuild the package once the chart
		// catches up
		o.logger.Error().Err(err).
			Str("pa_request_id", paReq.ID.String()).
			Msg("documentation package build failed")
		return result, nil
	}
	result.Package = pkg
	return result, nil
}

// Wire connects the cross-domain event reactions:
//   - an approved prior auth confirms its tentative appointment
//   - a withdrawn appointment request withdraws its prior auth case
//   - freed capacity drains the waitlist
func (o *Orchestrator) Wire(bus *events.Bus) {
	bus.Subscribe(events.TypePAApproved, o.onPAApproved)
	bus.Subscribe(events.TypeRequestWithdrawn, o.onRequestWithdrawn)
	bus.Subscribe(events.TypeSlotFreed, o.scheduler.OnSlotFreed)
}

func (o *Orchestrator) onPAApproved(ctx context.Context, evt events.Event) {
	if evt.PARequestID == nil {
		return
	}
	req, err := o.pa.GetByID(ctx, *evt.PARequestID)
	if err != nil {
		o.logger.Error().Err(err).
			Str("pa_request_id", evt.PARequestID.String()).
			Msg("approved prior auth not found")
		return
	}
	if req.AppointmentRequestID == nil {
		return
	}
	if err := o.scheduler.ConfirmByRequest(ctx, *req.AppointmentRequestID); err != nil && !errors.Is(err, scheduling.ErrNotFound) {
		o.logger.Error().Err(err).
			Str("request_id", req.AppointmentRequestID.String()).
			Msg("failed to confirm appointment after approval")
	}
}

func (o *Orchestrator) onRequestWithdrawn(ctx context.Context, evt events.Event) {
	if evt.RequestID == nil {
		return
	}
	if err := o.pa.WithdrawByAppointmentRequest(ctx, *evt.RequestID, "appointment request withdrawn"); err != nil {
		o.logger.Error().Err(err).
			Str("request_id", evt.RequestID.String()).
			Msg("failed to withdraw prior auth for withdrawn request")
	}
}
