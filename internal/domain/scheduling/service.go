package scheduling

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/rcm/rcm/internal/domain/authrules"
	"github.com/rcm/rcm/internal/platform/events"
)

// ErrWithdrawn is returned when operating on a withdrawn request.
var ErrWithdrawn = errors.New("request is withdrawn")

type RulesResolver interface {
	Resolve(ctx context.Context, payerID uuid.UUID, serviceCode string) (*authrules.Requirement, error)
}

type NetworkChecker interface {
	NetworkStatus(ctx context.Context, providerID, payerID uuid.UUID, asOf time.Time) (string, error)
}

type ComplexitySource interface {
	ComplexityScore(ctx context.Context, patientID uuid.UUID) (float64, error)
}

// Service books appointment requests into provider slots. Booking is
// optimistic: the allocator ranks candidates, then claims its pick with an
// atomic status flip. A loser in a race simply moves to the next candidate.
type Service struct {
	requests     RequestRepository
	slots        SlotRepository
	appointments AppointmentRepository
	waitlist     WaitlistRepository
	rules        RulesResolver
	network      NetworkChecker
	complexity   ComplexitySource
	catalog      ServiceCatalog
	allocation   AllocationRules
	bus          *events.Bus
	logger       zerolog.Logger
}

type ServiceDeps struct {
	Requests     RequestRepository
	Slots        SlotRepository
	Appointments AppointmentRepository
	Waitlist     WaitlistRepository
	Rules        RulesResolver
	Network      NetworkChecker
	Complexity   ComplexitySource
	Catalog      ServiceCatalog
	Allocation   AllocationRules
	Bus          *events.Bus
	Logger       zerolog.Logger
}

func NewService(d ServiceDeps) *Service {
	if d.Allocation == (AllocationRules{}) {
		d.Allocation = DefaultAllocationRules()
	}
	return &Service{
		requests:     d.Requests,
		slots:        d.Slots,
		appointments: d.Appointments,
		waitlist:     d.Waitlist,
		rules:        d.Rules,
		network:      d.Network,
		complexity:   d.Complexity,
		catalog:      d.Catalog,
		allocation:   d.Allocation,
		bus:          d.Bus,
		logger:       d.Logger,
	}
}

// CreateRequest validates and persists a request, then tries to place it.
func (s *Service) CreateRequest(ctx context.Context, req *AppointmentRequest) (*Outcome, error) {
	if req.PatientID == uuid.Nil || req.PayerID == uuid.Nil {
		return nil, fmt.Errorf("patient ID and payer ID are required")
	}
	if req.ServiceCode == "" {
		return nil, fmt.Errorf("service code is required")
	}
	if req.UrgencyScore < 0 || req.UrgencyScore > 100 {
		return nil, fmt.Errorf("urgency score must be between 0 and 100")
	}
	if req.EarliestStart != nil && req.LatestStart != nil && req.LatestStart.Before(*req.EarliestStart) {
		return nil, fmt.Errorf("latest start precedes earliest start")
	}

	req.Status = RequestPending
	if err := s.requests.Create(ctx, req); err != nil {
		return nil, err
	}
	return s.Allocate(ctx, req)
}

// Allocate places a pending or waitlisted request into the best open slot,
// or parks it on the waitlist when nothing fits.
func (s *Service) Allocate(ctx context.Context, req *AppointmentRequest) (*Outcome, error) {
	if req.Status == RequestWithdrawn {
		return nil, ErrWithdrawn
	}

	requirement, err := s.rules.Resolve(ctx, req.PayerID, req.ServiceCode)
	if err != nil {
		return nil, err
	}

	candidates, err := s.slots.OpenCandidates(ctx, SlotCriteria{
		ProviderID: req.PreferredProviderID,
		Specialty:  s.catalog.Specialty(req.ServiceCode),
		From:       req.EarliestStart,
		To:         req.LatestStart,
	})
	if err != nil {
		return nil, err
	}

	candidates, err = s.applyAllocationRules(ctx, req.PatientID, candidates)
	if err != nil {
		return nil, err
	}
	sortCandidates(candidates)

	for _, cand := range candidates {
		booked, err := s.slots.Book(ctx, cand.Slot.ID)
		if err != nil {
			return nil, err
		}
		if !booked {
			// lost the race for this slot, try the next one
			continue
		}
		return s.finishBooking(ctx, req, requirement, cand)
	}
	return s.parkOnWaitlist(ctx, req)
}

func (s *Service) finishBooking(ctx context.Context, req *AppointmentRequest, requirement *authrules.Requirement, cand *Candidate) (*Outcome, error) {
	networkStatus, err := s.network.NetworkStatus(ctx, cand.Slot.ProviderID, req.PayerID, cand.Slot.StartTime)
	if err != nil {
		return nil, err
	}
	outOfNetwork := networkStatus != "in-network"

	status := ApptConfirmed
	if requirement.PARequired {
		status = ApptTentative
	}

	appt := &Appointment{
		RequestID:    req.ID,
		PatientID:    req.PatientID,
		ProviderID:   cand.Slot.ProviderID,
		PayerID:      req.PayerID,
		ServiceCode:  req.ServiceCode,
		SlotID:       cand.Slot.ID,
		Status:       status,
		OutOfNetwork: outOfNetwork,
	}
	if err := s.appointments.Create(ctx, appt); err != nil {
		return nil, err
	}

	req.Status = RequestScheduled
	if err := s.requests.Update(ctx, req); err != nil {
		return nil, err
	}

	// a waitlisted request that finally booked retires its entry
	if entry, err := s.waitlist.FindActiveByRequest(ctx, req.ID); err == nil {
		entry.Status = WaitlistFulfilled
		if err := s.waitlist.Update(ctx, entry); err != nil {
			return nil, err
		}
	}

	reason := ""
	if outOfNetwork && requirement.ReferralRequired {
		reason = "out-of-network provider for a referral-requiring payer"
	} else if outOfNetwork {
		reason = "out-of-network provider"
	}
	s.bus.Publish(ctx, events.Event{
		Type:          events.TypeAppointmentBooked,
		PatientID:     req.PatientID,
		PayerID:       req.PayerID,
		ProviderID:    cand.Slot.ProviderID,
		AppointmentID: &appt.ID,
		ServiceCode:   req.ServiceCode,
		Reason:        reason,
	})
	return &Outcome{Appointment: appt}, nil
}

func (s *Service) parkOnWaitlist(ctx context.Context, req *AppointmentRequest) (*Outcome, error) {
	if entry, err := s.waitlist.FindActiveByRequest(ctx, req.ID); err == nil {
		// already waiting, keep the original position
		return &Outcome{Waitlisted: entry}, nil
	}

	entry := &WaitlistEntry{
		RequestID:    req.ID,
		UrgencyScore: req.UrgencyScore,
		Status:       WaitlistActive,
	}
	if err := s.waitlist.Create(ctx, entry); err != nil {
		return nil, err
	}

	req.Status = RequestWaitlisted
	if err := s.requests.Update(ctx, req); err != nil {
		return nil, err
	}
	return &Outcome{Waitlisted: entry}, nil
}

// applyAllocationRules drops late-day slots for high-complexity patients.
func (s *Service) applyAllocationRules(ctx context.Context, patientID uuid.UUID, candidates []*Candidate) ([]*Candidate, error) {
	score, err := s.complexity.ComplexityScore(ctx, patientID)
	if err != nil {
		return nil, err
	}
	if score < s.allocation.ComplexityThreshold {
		return candidates, nil
	}

	kept := candidates[:0]
	for _, c := range candidates {
		if c.Slot.StartTime.Hour() < s.allocation.LateCutoffHour {
			kept = append(kept, c)
		}
	}
	return kept, nil
}

// sortCandidates orders by earliest start, breaking ties on provider rating.
func sortCandidates(candidates []*Candidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		if !candidates[i].Slot.StartTime.Equal(candidates[j].Slot.StartTime) {
			return candidates[i].Slot.StartTime.Before(candidates[j].Slot.StartTime)
		}
		return candidates[i].ProviderRating > candidates[j].ProviderRating
	})
}

// OnSlotFreed drains the waitlist when capacity opens up: most urgent first,
// oldest first within a tier, until one request books.
func (s *Service) OnSlotFreed(ctx context.Context, evt events.Event) {
	entries, err := s.waitlist.ActiveEntries(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to load waitlist")
		return
	}

	for _, entry := range entries {
		req, err := s.requests.GetByID(ctx, entry.RequestID)
		if err != nil {
			s.logger.Error().Err(err).Str("request_id", entry.RequestID.String()).Msg("waitlist entry points at missing request")
			continue
		}
		outcome, err := s.Allocate(ctx, req)
		if err != nil {
			s.logger.Error().Err(err).Str("request_id", req.ID.String()).Msg("waitlist re-allocation failed")
			continue
		}
		if outcome.Appointment != nil {
			return
		}
	}
}

// ConfirmByRequest flips a tentative appointment to confirmed once its prior
// auth clears.
func (s *Service) ConfirmByRequest(ctx context.Context, requestID uuid.UUID) error {
	appt, err := s.appointments.FindByRequest(ctx, requestID)
	if err != nil {
		return err
	}
	if appt.Status != ApptTentative {
		return nil
	}
	appt.Status = ApptConfirmed
	return s.appointments.Update(ctx, appt)
}

// Withdraw cancels a request wherever it is in the pipeline: the waitlist
// entry is retired, a booked slot is released back to the pool, and the
// withdrawal is announced so the prior auth case can be closed too.
func (s *Service) Withdraw(ctx context.Context, requestID uuid.UUID) (*AppointmentRequest, error) {
	req, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.Status == RequestWithdrawn {
		return req, nil
	}

	if entry, err := s.waitlist.FindActiveByRequest(ctx, requestID); err == nil {
		entry.Status = WaitlistCancelled
		if err := s.waitlist.Update(ctx, entry); err != nil {
			return nil, err
		}
	}

	if appt, err := s.appointments.FindByRequest(ctx, requestID); err == nil &&
		(appt.Status == ApptTentative || appt.Status == ApptConfirmed) {
		appt.Status = ApptCancelled
		if err := s.appointments.Update(ctx, appt); err != nil {
			return nil, err
		}
		if err := s.slots.Release(ctx, appt.SlotID); err != nil {
			return nil, err
		}
		s.bus.Publish(ctx, events.Event{
			Type:       events.TypeSlotFreed,
			ProviderID: appt.ProviderID,
		})
	}

	req.Status = RequestWithdrawn
	if err := s.requests.Update(ctx, req); err != nil {
		return nil, err
	}

	s.bus.Publish(ctx, events.Event{
		Type:        events.TypeRequestWithdrawn,
		PatientID:   req.PatientID,
		PayerID:     req.PayerID,
		RequestID:   &req.ID,
		ServiceCode: req.ServiceCode,
	})
	return req, nil
}

// CreateSlot adds capacity and lets the waitlist take a crack at it.
func (s *Service) CreateSlot(ctx context.Context, slot *Slot) error {
	if slot.ProviderID == uuid.Nil {
		return fmt.Errorf("provider ID is required")
	}
	if slot.StartTime.IsZero() || slot.EndTime.IsZero() {
		return fmt.Errorf("start and end times are required")
	}
	if !slot.EndTime.After(slot.StartTime) {
		return fmt.Errorf("end time must be after start time")
	}
	if err := s.slots.Create(ctx, slot); err != nil {
		return err
	}
	s.bus.Publish(ctx, events.Event{
		Type:       events.TypeSlotFreed,
		ProviderID: slot.ProviderID,
	})
	return nil
}

func (s *Service) GetRequest(ctx context.Context, id uuid.UUID) (*AppointmentRequest, error) {
	return s.requests.GetByID(ctx, id)
}

func (s *Service) ListRequests(ctx context.Context, status string, limit, offset int) ([]*AppointmentRequest, int, error) {
	return s.requests.List(ctx, status, limit, offset)
}

func (s *Service) GetAppointmentByRequest(ctx context.Context, requestID uuid.UUID) (*Appointment, error) {
	return s.appointments.FindByRequest(ctx, requestID)
}
