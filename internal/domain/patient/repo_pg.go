package patient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const patientColumns = `id, first_name, last_name, date_of_birth, phone, email,
	preferred_contact, complexity_score, no_show_rate, created_at, updated_at, deleted_at`

const coverageColumns = `id, patient_id, payer_id, member_id, group_number, rank, created_at`

const referralColumns = `id, patient_id, referring_provider_id, referred_to_provider_id,
	service_code, effective_date, expiration_date, status, created_at`

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

func (r *PgRepository) Create(ctx context.Context, p *Patient) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	now := time.Now()
	p.CreatedAt = now
	p.UpdatedAt = now

	_, err := r.pool.Exec(ctx, `
		INSERT INTO patient (id, first_name, last_name, date_of_birth, phone, email,
			preferred_contact, complexity_score, no_show_rate, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		p.ID, p.FirstName, p.LastName, p.DateOfBirth, p.Phone, p.Email,
		p.PreferredContact, p.ComplexityScore, p.NoShowRate, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert patient: %w", err)
	}
	return nil
}

func (r *PgRepository) GetByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	row := r.pool.QueryRow(ctx,
		fmt.Sprintf(`SELECT %s FROM patient WHERE id = $1 AND deleted_at IS NULL`, patientColumns), id)

	p, err := scanPatient(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get patient: %w", err)
	}
	return p, nil
}

func (r *PgRepository) Update(ctx context.Context, p *Patient) error {
	p.UpdatedAt = time.Now()

	tag, err := r.pool.Exec(ctx, `
		UPDATE patient
		SET first_name = $2, last_name = $3, date_of_birth = $4, phone = $5, email = $6,
			preferred_contact = $7, complexity_score = $8, no_show_rate = $9, updated_at = $10
		WHERE id = $1 AND deleted_at IS NULL`,
		p.ID, p.FirstName, p.LastName, p.DateOfBirth, p.Phone, p.Email,
		p.PreferredContact, p.ComplexityScore, p.NoShowRate, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update patient: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PgRepository) SoftDelete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE patient SET deleted_at = $2 WHERE id = $1 AND deleted_at IS NULL`,
		id, time.Now())
	if err != nil {
		return fmt.Errorf("delete patient: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PgRepository) List(ctx context.Context, limit, offset int) ([]*Patient, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM patient WHERE deleted_at IS NULL`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count patients: %w", err)
	}

	rows, err := r.pool.Query(ctx, fmt.Sprintf(`
		SELECT %s FROM patient
		WHERE deleted_at IS NULL
		ORDER BY last_name, first_name
		LIMIT $1 OFFSET $2`, patientColumns), limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list patients: %w", err)
	}
	defer rows.Close()

	var patients []*Patient
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan patient: %w", err)
		}
		patients = append(patients, p)
	}
	return patients, total, rows.Err()
}

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(&p.ID, &p.FirstName, &p.LastName, &p.DateOfBirth, &p.Phone, &p.Email,
		&p.PreferredContact, &p.ComplexityScore, &p.NoShowRate, &p.CreatedAt, &p.UpdatedAt, &p.DeletedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

type PgCoverageRepository struct {
	pool *pgxpool.Pool
}

func NewPgCoverageRepository(pool *pgxpool.Pool) *PgCoverageRepository {
	return &PgCoverageRepository{pool: pool}
}

func (r *PgCoverageRepository) Create(ctx context.Context, c *Coverage) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	c.CreatedAt = time.Now()

	_, err := r.pool.Exec(ctx, `
		INSERT INTO patient_coverage (id, patient_id, payer_id, member_id, group_number, rank, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		c.ID, c.PatientID, c.PayerID, c.MemberID, c.GroupNumber, c.Rank, c.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert coverage: %w", err)
	}
	return nil
}

func (r *PgCoverageRepository) GetByPatientAndPayer(ctx context.Context, patientID, payerID uuid.UUID) (*Coverage, error) {
	row := r.pool.QueryRow(ctx, fmt.Sprintf(`
		SELECT %s FROM patient_coverage
		WHERE patient_id = $1 AND payer_id = $2
		ORDER BY rank LIMIT 1`, coverageColumns), patientID, payerID)

	c, err := scanCoverage(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get coverage: %w", err)
	}
	return c, nil
}

func (r *PgCoverageRepository) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*Coverage, error) {
	rows, err := r.pool.Query(ctx, fmt.Sprintf(`
		SELECT %s FROM patient_coverage WHERE patient_id = $1 ORDER BY rank`, coverageColumns), patientID)
	if err != nil {
		return nil, fmt.Errorf("list coverage: %w", err)
	}
	defer rows.Close()

	var out []*Coverage
	for rows.Next() {
		c, err := scanCoverage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan coverage: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func scanCoverage(row pgx.Row) (*Coverage, error) {
	var c Coverage
	err := row.Scan(&c.ID, &c.PatientID, &c.PayerID, &c.MemberID, &c.GroupNumber, &c.Rank, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

type PgReferralRepository struct {
	pool *pgxpool.Pool
}

func NewPgReferralRepository(pool *pgxpool.Pool) *PgReferralRepository {
	return &PgReferralRepository{pool: pool}
}

func (r *PgReferralRepository) Create(ctx context.Context, ref *Referral) error {
	if ref.ID == uuid.Nil {
		ref.ID = uuid.New()
	}
	if ref.Status == "" {
		ref.Status = "active"
	}
	ref.CreatedAt = time.Now()

	_, err := r.pool.Exec(ctx, `
		INSERT INTO referral (id, patient_id, referring_provider_id, referred_to_provider_id,
			service_code, effective_date, expiration_date, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		ref.ID, ref.PatientID, ref.ReferringProviderID, ref.ReferredToProviderID,
		ref.ServiceCode, ref.EffectiveDate, ref.ExpirationDate, ref.Status, ref.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert referral: %w", err)
	}
	return nil
}

func (r *PgReferralRepository) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*Referral, error) {
	rows, err := r.pool.Query(ctx, fmt.Sprintf(`
		SELECT %s FROM referral WHERE patient_id = $1 ORDER BY effective_date DESC`, referralColumns), patientID)
	if err != nil {
		return nil, fmt.Errorf("list referrals: %w", err)
	}
	defer rows.Close()

	var out []*Referral
	for rows.Next() {
		ref, err := scanReferral(rows)
		if err != nil {
			return nil, fmt.Errorf("scan referral: %w", err)
		}
		out = append(out, ref)
	}
	return out, rows.Err()
}

func (r *PgReferralRepository) ActiveForService(ctx context.Context, patientID uuid.UUID, serviceCode string, asOf time.Time) (*Referral, error) {
	row := r.pool.QueryRow(ctx, fmt.Sprintf(`
		SELECT %s FROM referral
		WHERE patient_id = $1 AND service_code = $2 AND status = 'active'
			AND effective_date <= $3
			AND (expiration_date IS NULL OR expiration_date >= $3)
		ORDER BY effective_date DESC LIMIT 1`, referralColumns),
		patientID, serviceCode, asOf)

	ref, err := scanReferral(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get active referral: %w", err)
	}
	return ref, nil
}

func scanReferral(row pgx.Row) (*Referral, error) {
	var ref Referral
	err := row.Scan(&ref.ID, &ref.PatientID, &ref.ReferringProviderID, &ref.ReferredToProviderID,
		&ref.ServiceCode, &ref.EffectiveDate, &ref.ExpirationDate, &ref.Status, &ref.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &ref, nil
}
