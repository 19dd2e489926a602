package eligibility

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const snapshotColumns = `id, patient_id, payer_id, member_id, plan_name, coverage_status,
	deductible_total, deductible_met, copay_amount, coinsurance_pct, referral_required,
	service_limitations, method, verified_at`

const logColumns = `id, patient_id, payer_id, status, method, error_detail, raw_response, created_at`

type PgSnapshotRepository struct {
	pool *pgxpool.Pool
}

func NewPgSnapshotRepository(pool *pgxpool.Pool) *PgSnapshotRepository {
	return &PgSnapshotRepository{pool: pool}
}

func (r *PgSnapshotRepository) Insert(ctx context.Context, s *Snapshot) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	if s.VerifiedAt.IsZero() {
		s.VerifiedAt = time.Now()
	}

	var limitations []byte
	if s.ServiceLimitations != nil {
		b, err := json.Marshal(s.ServiceLimitations)
		if err != nil {
			return fmt.Errorf("marshal service limitations: %w", err)
		}
		limitations = b
	}

	_, err := r.pool.Exec(ctx, `
		INSERT INTO eligibility_snapshot (id, patient_id, payer_id, member_id, plan_name,
			coverage_status, deductible_total, deductible_met, copay_amount, coinsurance_pct,
			referral_required, service_limitations, method, verified_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		s.ID, s.PatientID, s.PayerID, s.MemberID, s.PlanName, s.CoverageStatus,
		s.DeductibleTotal, s.DeductibleMet, s.CopayAmount, s.CoinsurancePct,
		s.ReferralRequired, limitations, s.Method, s.VerifiedAt)
	if err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}
	return nil
}

func (r *PgSnapshotRepository) Latest(ctx context.Context, patientID, payerID uuid.UUID) (*Snapshot, error) {
	row := r.pool.QueryRow(ctx, fmt.Sprintf(`
		SELECT %s FROM eligibility_snapshot
		WHERE patient_id = $1 AND payer_id = $2
		ORDER BY verified_at DESC LIMIT 1`, snapshotColumns), patientID, payerID)

	s, err := scanSnapshot(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get latest snapshot: %w", err)
	}
	return s, nil
}

func (r *PgSnapshotRepository) History(ctx context.Context, patientID, payerID uuid.UUID, limit int) ([]*Snapshot, error) {
	rows, err := r.pool.Query(ctx, fmt.Sprintf(`
		SELECT %s FROM eligibility_snapshot
		WHERE patient_id = $1 AND payer_id = $2
		ORDER BY verified_at DESC LIMIT $3`, snapshotColumns), patientID, payerID, limit)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer rows.Close()

	var out []*Snapshot
	for rows.Next() {
		s, err := scanSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func scanSnapshot(row pgx.Row) (*Snapshot, error) {
	var s Snapshot
	var limitations []byte
	err := row.Scan(&s.ID, &s.PatientID, &s.PayerID, &s.MemberID, &s.PlanName, &s.CoverageStatus,
		&s.DeductibleTotal, &s.DeductibleMet, &s.CopayAmount, &s.CoinsurancePct,
		&s.ReferralRequired, &limitations, &s.Method, &s.VerifiedAt)
	if err != nil {
		return nil, err
	}
	if len(limitations) > 0 {
		if err := json.Unmarshal(limitations, &s.ServiceLimitations); err != nil {
			return nil, fmt.Errorf("unmarshal service limitations: %w", err)
		}
	}
	return &s, nil
}

type PgLogRepository struct {
	pool *pgxpool.Pool
}

func NewPgLogRepository(pool *pgxpool.Pool) *PgLogRepository {
	return &PgLogRepository{pool: pool}
}

func (r *PgLogRepository) Append(ctx context.Context, e *LogEntry) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}

	_, err := r.pool.Exec(ctx, `
		INSERT INTO eligibility_log (id, patient_id, payer_id, status, method, error_detail, raw_response, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		e.ID, e.PatientID, e.PayerID, e.Status, e.Method, e.ErrorDetail, e.RawResponse, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("append eligibility log: %w", err)
	}
	return nil
}

func (r *PgLogRepository) List(ctx context.Context, patientID, payerID uuid.UUID, limit int) ([]*LogEntry, error) {
	rows, err := r.pool.Query(ctx, fmt.Sprintf(`
		SELECT %s FROM eligibility_log
		WHERE patient_id = $1 AND payer_id = $2
		ORDER BY created_at DESC LIMIT $3`, logColumns), patientID, payerID, limit)
	if err != nil {
		return nil, fmt.Errorf("list eligibility log: %w", err)
	}
	defer rows.Close()

	var out []*LogEntry
	for rows.Next() {
		var e LogEntry
		if err := rows.Scan(&e.ID, &e.PatientID, &e.PayerID, &e.Status, &e.Method, &e.ErrorDetail, &e.RawResponse, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan eligibility log: %w", err)
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}
