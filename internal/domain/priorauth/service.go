package priorauth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/rcm/rcm/internal/domain/authrules"
	"github.com/rcm/rcm/internal/domain/denialrisk"
	"github.com/rcm/rcm/internal/platform/events"
	"github.com/rcm/rcm/internal/platform/payer"
)

var (
	// ErrNotRequired is returned when the payer does not require prior auth
	// for the service, so there is nothing to initiate.
	ErrNotRequired = errors.New("prior authorization not required")
	// ErrInvalidTransition is returned for a state machine edge that does
	// not exist.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrPackageNotReady blocks submission until the documentation package
	// is complete and, when flagged, reviewed.
	ErrPackageNotReady = errors.New("documentation package not ready")
	// ErrTerminal is returned when operating on a closed request.
	ErrTerminal = errors.New("request is in a terminal status")
)

type RulesResolver interface {
	Resolve(ctx context.Context, payerID uuid.UUID, serviceCode string) (*authrules.Requirement, error)
}

type RiskScorer interface {
	Score(ctx context.Context, payerID uuid.UUID, serviceCode string, rctx denialrisk.Context) (*denialrisk.Assessment, error)
}

type MemberDirectory interface {
	MemberID(ctx context.Context, patientID, payerID uuid.UUID) (string, error)
}

type ReferralChecker interface {
	HasActiveReferral(ctx context.Context, patientID uuid.UUID, serviceCode string, asOf time.Time) (bool, error)
}

type NetworkChecker interface {
	NetworkStatus(ctx context.Context, providerID, payerID uuid.UUID, asOf time.Time) (string, error)
}

type NPIDirectory interface {
	NPI(ctx context.Context, providerID uuid.UUID) (string, error)
}

type ConnectorSource interface {
	Channel(ctx context.Context, payerID uuid.UUID) (payer.Connector, string, error)
}

type FaxSender interface {
	Send(ctx context.Context, faxNumber string, sub payer.PriorAuthSubmission) error
}

type FaxDirectory interface {
	FaxNumber(ctx context.Context, payerID uuid.UUID) (string, error)
}

// Service drives prior authorization cases through the state machine.
// All transitions on one request are serialized; callers never observe a
// half-applied transition.
type Service struct {
	repo        Repository
	transitions TransitionRepository
	packages    PackageRepository
	rules       RulesResolver
	risk        RiskScorer
	members     MemberDirectory
	referrals   ReferralChecker
	network     NetworkChecker
	npis        NPIDirectory
	payers      ConnectorSource
	fax         FaxSender
	faxDir      FaxDirectory
	bus         *events.Bus
	retry       payer.RetryPolicy
	maxInfo     int
	locks       *requestLocks
	logger      zerolog.Logger
}

type ServiceDeps struct {
	Repo        Repository
	Transitions TransitionRepository
	Packages    PackageRepository
	Rules       RulesResolver
	Risk        RiskScorer
	Members     MemberDirectory
	Referrals   ReferralChecker
	Network     NetworkChecker
	NPIs        NPIDirectory
	Payers      ConnectorSource
	Fax         FaxSender
	FaxDir      FaxDirectory
	Bus         *events.Bus
	Retry       payer.RetryPolicy
	MaxInfo     int
	Logger      zerolog.Logger
}

func NewService(d ServiceDeps) *Service {
	if d.MaxInfo <= 0 {
		d.MaxInfo = 2
	}
	return &Service{
		repo:        d.Repo,
		transitions: d.Transitions,
		packages:    d.Packages,
		rules:       d.Rules,
		risk:        d.Risk,
		members:     d.Members,
		referrals:   d.Referrals,
		network:     d.Network,
		npis:        d.NPIs,
		payers:      d.Payers,
		fax:         d.Fax,
		faxDir:      d.FaxDir,
		bus:         d.Bus,
		retry:       d.Retry,
		maxInfo:     d.MaxInfo,
		locks:       newRequestLocks(),
		logger:      d.Logger,
	}
}

type InitiateParams struct {
	PatientID            uuid.UUID  `json:"patient_id"`
	ProviderID           uuid.UUID  `json:"provider_id"`
	PayerID              uuid.UUID  `json:"payer_id"`
	ServiceCode          string     `json:"service_code"`
	AppointmentRequestID *uuid.UUID `json:"appointment_request_id,omitempty"`
}

// Initiate opens a case after confirming the payer actually requires prior
// auth for the service, and scores its denial risk up front.
func (s *Service) Initiate(ctx context.Context, p InitiateParams) (*Request, *denialrisk.Assessment, error) {
	if p.PatientID == uuid.Nil || p.ProviderID == uuid.Nil || p.PayerID == uuid.Nil {
		return nil, nil, fmt.Errorf("patient, provider, and payer IDs are required")
	}
	if p.ServiceCode == "" {
		return nil, nil, fmt.Errorf("service code is required")
	}

	requirement, err := s.rules.Resolve(ctx, p.PayerID, p.ServiceCode)
	if err != nil {
		return nil, nil, err
	}
	if !requirement.PARequired {
		return nil, nil, ErrNotRequired
	}

	assessment, err := s.assess(ctx, p.PatientID, p.ProviderID, p.PayerID, p.ServiceCode, requirement)
	if err != nil {
		return nil, nil, err
	}

	req := &Request{
		PatientID:            p.PatientID,
		ProviderID:           p.ProviderID,
		PayerID:              p.PayerID,
		ServiceCode:          p.ServiceCode,
		AppointmentRequestID: p.AppointmentRequestID,
		Status:               StatusInitiated,
		RiskLevel:            &assessment.Level,
	}
	if err := s.repo.Create(ctx, req); err != nil {
		return nil, nil, err
	}
	s.appendTransition(ctx, req.ID, "", StatusInitiated, "case opened", "system")

	s.bus.Publish(ctx, events.Event{
		Type:        events.TypeRiskAssessed,
		PatientID:   p.PatientID,
		PayerID:     p.PayerID,
		ProviderID:  p.ProviderID,
		PARequestID: &req.ID,
		ServiceCode: p.ServiceCode,
		RiskLevel:   assessment.Level,
		Reason:      assessment.PredictedReason,
		Action:      assessment.RecommendedAction,
	})
	return req, assessment, nil
}

func (s *Service) assess(ctx context.Context, patientID, providerID, payerID uuid.UUID, serviceCode string, requirement *authrules.Requirement) (*denialrisk.Assessment, error) {
	now := time.Now()

	referralOnFile := false
	if requirement.ReferralRequired {
		var err error
		referralOnFile, err = s.referrals.HasActiveReferral(ctx, patientID, serviceCode, now)
		if err != nil {
			return nil, err
		}
	}
	networkStatus, err := s.network.NetworkStatus(ctx, providerID, payerID, now)
	if err != nil {
		return nil, err
	}

	return s.risk.Score(ctx, payerID, serviceCode, denialrisk.Context{
		ReferralRequired: requirement.ReferralRequired,
		ReferralOnFile:   referralOnFile,
		OutOfNetwork:     networkStatus != "in-network",
	})
}

// Submit sends the case to the payer. The documentation package must be
// complete, and reviewed when review was required. Electronic submission is
// tried first with bounded retries; if the payer's channel stays down the
// packet goes out over the fax bridge instead.
func (s *Service) Submit(ctx context.Context, id uuid.UUID) (*Request, error) {
	s.locks.lock(id)
	defer s.locks.unlock(id)

	req, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Status != StatusInitiated && req.Status != StatusRequiresMoreInfo {
		if IsTerminal(req.Status) {
			return nil, ErrTerminal
		}
		return nil, fmt.Errorf("%w: cannot submit from %s", ErrInvalidTransition, req.Status)
	}

	pkg, err := s.packages.GetByRequest(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("%w: no documentation package", ErrPackageNotReady)
	}
	if err != nil {
		return nil, err
	}
	if pkg.Status == PackageDraft {
		return nil, fmt.Errorf("%w: missing documents: %v", ErrPackageNotReady, pkg.MissingDocs())
	}
	if missing := pkg.MissingDocs(); len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing documents: %v", ErrPackageNotReady, missing)
	}
	if pkg.ReviewRequired && pkg.ReviewedBy == nil {
		return nil, fmt.Errorf("%w: pending human review", ErrPackageNotReady)
	}

	memberID, err := s.members.MemberID(ctx, req.PatientID, req.PayerID)
	if err != nil {
		return nil, fmt.Errorf("resolve member ID: %w", err)
	}
	npi, err := s.npis.NPI(ctx, req.ProviderID)
	if err != nil {
		return nil, fmt.Errorf("resolve provider NPI: %w", err)
	}

	sub := payer.PriorAuthSubmission{
		PARequestID:       req.ID.String(),
		MemberID:          memberID,
		ServiceCode:       req.ServiceCode,
		ProviderNPI:       npi,
		ClinicalRationale: pkg.ClinicalRationale,
		NecessityKeywords: pkg.NecessityKeywords,
	}
	for _, d := range pkg.Documents {
		if d.Present {
			sub.Documents = append(sub.Documents, payer.Document{Kind: d.Kind, Title: d.Title, Content: d.Content})
		}
	}

	if err := s.transition(ctx, req, StatusSubmitted, "sent to payer", "system"); err != nil {
		return nil, err
	}
	if pkg.Status != PackageSubmitted {
		pkg.Status = PackageSubmitted
		if err := s.packages.Update(ctx, pkg); err != nil {
			return nil, err
		}
	}

	conn, method, err := s.payers.Channel(ctx, req.PayerID)
	if err != nil {
		return nil, err
	}

	var decision *payer.AuthDecision
	err = s.retry.Do(ctx, func(ctx context.Context) error {
		var subErr error
		decision, subErr = conn.SubmitPriorAuth(ctx, sub)
		return subErr
	})
	if err != nil {
		if !payer.IsTransient(err) {
			return nil, fmt.Errorf("submit prior auth: %w", err)
		}
		return s.submitByFax(ctx, req, sub, err)
	}

	req.SubmissionMethod = &method
	if err := s.applyDecision(ctx, req, decision, "payer"); err != nil {
		return nil, err
	}
	return req, nil
}

// submitByFax is the degraded path when the electronic channel stays down.
// The packet is queued for fax delivery and the case parks in pending_review
// until the payer responds out of band.
func (s *Service) submitByFax(ctx context.Context, req *Request, sub payer.PriorAuthSubmission, cause error) (*Request, error) {
	faxNumber, err := s.faxDir.FaxNumber(ctx, req.PayerID)
	if err != nil {
		return nil, fmt.Errorf("electronic submission failed (%v) and no fax fallback: %w", cause, err)
	}

	s.logger.Warn().
		Str("request_id", req.ID.String()).
		Err(cause).
		Msg("electronic submission failed, falling back to fax")

	if err := s.fax.Send(ctx, faxNumber, sub); err != nil {
		return nil, fmt.Errorf("fax fallback failed: %w", err)
	}

	method := MethodFax
	req.SubmissionMethod = &method
	if err := s.transition(ctx, req, StatusPendingReview, "submitted via fax fallback", "system"); err != nil {
		return nil, err
	}
	return req, nil
}

// Decide applies a payer's decision to a case. It accepts decisions for
// requests in submitted or pending_review.
func (s *Service) Decide(ctx context.Context, id uuid.UUID, outcome, authNumber, reason, actor string) (*Request, error) {
	s.locks.lock(id)
	defer s.locks.unlock(id)

	req, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Status != StatusSubmitted && req.Status != StatusPendingReview {
		if IsTerminal(req.Status) {
			return nil, ErrTerminal
		}
		return nil, fmt.Errorf("%w: cannot decide from %s", ErrInvalidTransition, req.Status)
	}

	decision := &payer.AuthDecision{Outcome: outcome, AuthNumber: authNumber, Reason: reason}
	if err := s.applyDecision(ctx, req, decision, actor); err != nil {
		return nil, err
	}
	return req, nil
}

func (s *Service) applyDecision(ctx context.Context, req *Request, decision *payer.AuthDecision, actor string) error {
	if req.Status == StatusSubmitted {
		if err := s.transition(ctx, req, StatusPendingReview, "payer acknowledged", actor); err != nil {
			return err
		}
	}

	switch decision.Outcome {
	case payer.OutcomePended:
		return nil

	case payer.OutcomeApproved:
		if decision.AuthNumber != "" {
			req.AuthNumber = &decision.AuthNumber
		}
		if err := s.transition(ctx, req, StatusApproved, decision.Reason, actor); err != nil {
			return err
		}
		s.bus.Publish(ctx, events.Event{
			Type:        events.TypePAApproved,
			PatientID:   req.PatientID,
			PayerID:     req.PayerID,
			PARequestID: &req.ID,
			ServiceCode: req.ServiceCode,
		})
		return nil

	case payer.OutcomeDenied:
		return s.deny(ctx, req, decision.Reason, actor)

	case payer.OutcomeMoreInfo:
		req.InfoRequestCount++
		if err := s.transition(ctx, req, StatusRequiresMoreInfo, decision.Reason, actor); err != nil {
			return err
		}
		if req.InfoRequestCount > s.maxInfo {
			s.bus.Publish(ctx, events.Event{
				Type:        events.TypePAMaxInfoExceeded,
				PatientID:   req.PatientID,
				PayerID:     req.PayerID,
				PARequestID: &req.ID,
				ServiceCode: req.ServiceCode,
				Reason:      fmt.Sprintf("payer requested more information %d times", req.InfoRequestCount),
			})
			return s.deny(ctx, req, "maximum information requests exceeded", "system")
		}
		return nil

	default:
		return fmt.Errorf("unknown payer outcome %q", decision.Outcome)
	}
}

func (s *Service) deny(ctx context.Context, req *Request, reason, actor string) error {
	if reason == "" {
		reason = "denied by payer"
	}
	req.DenialReason = &reason
	if err := s.transition(ctx, req, StatusDenied, reason, actor); err != nil {
		return err
	}

	action := ""
	if assessment, err := s.risk.Score(ctx, req.PayerID, req.ServiceCode, denialrisk.Context{}); err == nil {
		action = assessment.RecommendedAction
	}

	riskLevel := ""
	if req.RiskLevel != nil {
		riskLevel = *req.RiskLevel
	}
	s.bus.Publish(ctx, events.Event{
		Type:        events.TypePADenied,
		PatientID:   req.PatientID,
		PayerID:     req.PayerID,
		PARequestID: &req.ID,
		ServiceCode: req.ServiceCode,
		RiskLevel:   riskLevel,
		Reason:      reason,
		Action:      action,
	})
	return nil
}

// Resubmit sends a case back to the payer after more information was added.
func (s *Service) Resubmit(ctx context.Context, id uuid.UUID) (*Request, error) {
	req, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Status != StatusRequiresMoreInfo {
		return nil, fmt.Errorf("%w: can only resubmit from %s", ErrInvalidTransition, StatusRequiresMoreInfo)
	}
	return s.Submit(ctx, id)
}

// Withdraw closes a non-terminal case, typically because the underlying
// appointment request was cancelled.
func (s *Service) Withdraw(ctx context.Context, id uuid.UUID, reason string) (*Request, error) {
	s.locks.lock(id)
	defer s.locks.unlock(id)

	req, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if IsTerminal(req.Status) {
		return nil, ErrTerminal
	}
	if reason == "" {
		reason = "withdrawn"
	}
	if err := s.transition(ctx, req, StatusWithdrawn, reason, "system"); err != nil {
		return nil, err
	}
	return req, nil
}

// WithdrawByAppointmentRequest withdraws the case tied to an appointment
// request, if one exists and is still open.
func (s *Service) WithdrawByAppointmentRequest(ctx context.Context, appointmentRequestID uuid.UUID, reason string) error {
	req, err := s.repo.FindByAppointmentRequest(ctx, appointmentRequestID)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if IsTerminal(req.Status) {
		return nil
	}
	_, err = s.Withdraw(ctx, req.ID, reason)
	return err
}

func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (*Request, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, status string, limit, offset int) ([]*Request, int, error) {
	return s.repo.List(ctx, status, limit, offset)
}

func (s *Service) Transitions(ctx context.Context, id uuid.UUID) ([]*Transition, error) {
	return s.transitions.ListByRequest(ctx, id)
}

// transition validates the edge, persists the new status, records the step,
// and announces it on the bus.
func (s *Service) transition(ctx context.Context, req *Request, to, reason, actor string) error {
	if !CanTransition(req.Status, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, req.Status, to)
	}
	from := req.Status
	req.Status = to
	if err := s.repo.Update(ctx, req); err != nil {
		req.Status = from
		return err
	}
	s.appendTransition(ctx, req.ID, from, to, reason, actor)

	s.bus.Publish(ctx, events.Event{
		Type:        events.TypePATransition,
		PatientID:   req.PatientID,
		PayerID:     req.PayerID,
		PARequestID: &req.ID,
		ServiceCode: req.ServiceCode,
		Reason:      fmt.Sprintf("%s -> %s", from, to),
	})
	return nil
}

func (s *Service) appendTransition(ctx context.Context, requestID uuid.UUID, from, to, reason, actor string) {
	err := s.transitions.Append(ctx, &Transition{
		RequestID:  requestID,
		FromStatus: from,
		ToStatus:   to,
		Reason:     reason,
		Actor:      actor,
	})
	if err != nil {
		s.logger.Error().Err(err).Str("request_id", requestID.String()).Msg("failed to record transition")
	}
}
