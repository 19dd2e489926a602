package eligibility

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/rcm/rcm/internal/platform/events"
	"github.com/rcm/rcm/internal/platform/payer"
)

// ErrUnavailable is returned when the payer cannot be reached and no prior
// snapshot exists to fall back on.
var ErrUnavailable = errors.New("eligibility unavailable")

// MemberDirectory resolves the member ID a patient holds with a payer.
type MemberDirectory interface {
	MemberID(ctx context.Context, patientID, payerID uuid.UUID) (string, error)
}

// ConnectorSource builds the wire client for a payer and names the channel.
type ConnectorSource interface {
	Channel(ctx context.Context, payerID uuid.UUID) (payer.Connector, string, error)
}

// Verifier checks coverage with payers and maintains the snapshot trail.
type Verifier struct {
	snapshots SnapshotRepository
	log       LogRepository
	members   MemberDirectory
	payers    ConnectorSource
	bus       *events.Bus
	retry     payer.RetryPolicy
	freshness time.Duration
	logger    zerolog.Logger

	now func() time.Time
}

func NewVerifier(
	snapshots SnapshotRepository,
	log LogRepository,
	members MemberDirectory,
	payers ConnectorSource,
	bus *events.Bus,
	retry payer.RetryPolicy,
	freshness time.Duration,
	logger zerolog.Logger,
) *Verifier {
	return &Verifier{
		snapshots: snapshots,
		log:       log,
		members:   members,
		payers:    payers,
		bus:       bus,
		retry:     retry,
		freshness: freshness,
		logger:    logger,
		now:       time.Now,
	}
}

// Verify returns current coverage for the patient with the payer.
//
// A snapshot inside the freshness window is returned without touching the
// payer. Otherwise the payer is queried with bounded retries; on success a
// new snapshot is appended. If every attempt fails, the newest stale
// snapshot is returned with Stale set, and ErrUnavailable when none exists.
func (v *Verifier) Verify(ctx context.Context, patientID, payerID uuid.UUID) (*Result, error) {
	if patientID == uuid.Nil || payerID == uuid.Nil {
		return nil, fmt.Errorf("patient ID and payer ID are required")
	}

	prior, err := v.snapshots.Latest(ctx, patientID, payerID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	if prior != nil && prior.FreshAt(v.now(), v.freshness) {
		return &Result{Snapshot: prior}, nil
	}

	memberID, err := v.members.MemberID(ctx, patientID, payerID)
	if err != nil {
		detail := "no coverage on file for payer"
		v.appendLog(ctx, patientID, payerID, LogFailed, "", &detail, nil)
		v.publishFailure(ctx, patientID, payerID, detail, payer.CodeMissingMemberID)
		return nil, fmt.Errorf("resolve member ID: %w", err)
	}

	conn, method, err := v.payers.Channel(ctx, payerID)
	if err != nil {
		return nil, fmt.Errorf("resolve payer connector: %w", err)
	}

	var data *payer.CoverageData
	err = v.retry.Do(ctx, func(ctx context.Context) error {
		var checkErr error
		data, checkErr = conn.CheckEligibility(ctx, memberID)
		return checkErr
	})
	if err != nil {
		detail := err.Error()
		v.appendLog(ctx, patientID, payerID, LogFailed, method, &detail, nil)
		v.publishFailure(ctx, patientID, payerID, detail, failureCode(err))

		if prior != nil {
			v.logger.Warn().
				Str("patient_id", patientID.String()).
				Str("payer_id", payerID.String()).
				Time("verified_at", prior.VerifiedAt).
				Msg("payer unreachable, falling back to stale snapshot")
			return &Result{Snapshot: prior, Stale: true}, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	snapshot := &Snapshot{
		PatientID:          patientID,
		PayerID:            payerID,
		MemberID:           data.MemberID,
		PlanName:           data.PlanName,
		CoverageStatus:     data.CoverageStatus,
		DeductibleTotal:    data.DeductibleTotal,
		DeductibleMet:      data.DeductibleMet,
		CopayAmount:        data.CopayAmount,
		CoinsurancePct:     data.CoinsurancePct,
		ReferralRequired:   data.ReferralRequired,
		ServiceLimitations: data.ServiceLimitations,
		Method:             method,
		VerifiedAt:         v.now(),
	}
	if err := v.snapshots.Insert(ctx, snapshot); err != nil {
		return nil, err
	}
	raw, _ := json.Marshal(data)
	v.appendLog(ctx, patientID, payerID, LogSuccess, method, nil, raw)

	v.bus.Publish(ctx, events.Event{
		Type:      events.TypeEligibilityVerified,
		PatientID: patientID,
		PayerID:   payerID,
	})
	return &Result{Snapshot: snapshot}, nil
}

func (v *Verifier) History(ctx context.Context, patientID, payerID uuid.UUID, limit int) ([]*Snapshot, error) {
	return v.snapshots.History(ctx, patientID, payerID, limit)
}

func (v *Verifier) Logs(ctx context.Context, patientID, payerID uuid.UUID, limit int) ([]*LogEntry, error) {
	return v.log.List(ctx, patientID, payerID, limit)
}

func (v *Verifier) appendLog(ctx context.Context, patientID, payerID uuid.UUID, status, method string, detail *string, raw []byte) {
	entry := &LogEntry{
		PatientID:   patientID,
		PayerID:     payerID,
		Status:      status,
		Method:      method,
		ErrorDetail: detail,
		CreatedAt:   v.now(),
	}
	if len(raw) > 0 {
		s := string(raw)
		entry.RawResponse = &s
	}
	if err := v.log.Append(ctx, entry); err != nil {
		v.logger.Error().Err(err).Msg("failed to append eligibility log")
	}
}

func (v *Verifier) publishFailure(ctx context.Context, patientID, payerID uuid.UUID, reason, code string) {
	v.bus.Publish(ctx, events.Event{
		Type:      events.TypeEligibilityFailed,
		PatientID: patientID,
		PayerID:   payerID,
		Reason:    reason,
		Code:      code,
	})
}

// failureCode pulls the classified code off a connector error.
func failureCode(err error) string {
	var pe *payer.Error
	if errors.As(err, &pe) && pe.Code != "" {
		return pe.Code
	}
	return payer.CodeUnavailable
}
