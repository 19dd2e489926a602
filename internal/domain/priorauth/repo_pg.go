package priorauth

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

const requestColumns = `id, patient_id, provider_id, payer_id, service_code, appointment_request_id,
	status, submission_method, auth_number, denial_reason, info_request_count, risk_level,
	created_at, updated_at`

const transitionColumns = `id, request_id, from_status, to_status, reason, actor, created_at`

const packageColumns = `id, request_id, status, clinical_rationale, necessity_keywords,
	documents, review_required, reviewed_by, review_comment, created_at, updated_at`

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

func (r *PgRepository) Create(ctx context.Context, req *Request) error {
	if req.ID == uuid.Nil {
		req.ID = uuid.New()
	}
	now := time.Now()
	req.CreatedAt = now
	req.UpdatedAt = now

	_, err := r.pool.Exec(ctx, `
		INSERT INTO pa_request (id, patient_id, provider_id, payer_id, service_code,
			appointment_request_id, status, submission_method, auth_number, denial_reason,
			info_request_count, risk_level, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		req.ID, req.PatientID, req.ProviderID, req.PayerID, req.ServiceCode,
		req.AppointmentRequestID, req.Status, req.SubmissionMethod, req.AuthNumber,
		req.DenialReason, req.InfoRequestCount, req.RiskLevel, req.CreatedAt, req.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert pa request: %w", err)
	}
	return nil
}

func (r *PgRepository) GetByID(ctx context.Context, id uuid.UUID) (*Request, error) {
	row := r.pool.QueryRow(ctx,
		fmt.Sprintf(`SELECT %s FROM pa_request WHERE id = $1`, requestColumns), id)

	req, err := scanRequest(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get pa request: %w", err)
	}
	return req, nil
}

func (r *PgRepository) Update(ctx context.Context, req *Request) error {
	req.UpdatedAt = time.Now()

	tag, err := r.pool.Exec(ctx, `
		UPDATE pa_request
		SET status = $2, submission_method = $3, auth_number = $4, denial_reason = $5,
			info_request_count = $6, risk_level = $7, updated_at = $8
		WHERE id = $1`,
		req.ID, req.Status, req.SubmissionMethod, req.AuthNumber, req.DenialReason,
		req.InfoRequestCount, req.RiskLevel, req.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update pa request: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PgRepository) FindByAppointmentRequest(ctx context.Context, appointmentRequestID uuid.UUID) (*Request, error) {
	row := r.pool.QueryRow(ctx, fmt.Sprintf(`
		SELECT %s FROM pa_request
		WHERE appointment_request_id = $1
		ORDER BY created_at DESC LIMIT 1`, requestColumns), appointmentRequestID)

	req, err := scanRequest(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find pa request: %w", err)
	}
	return req, nil
}

func (r *PgRepository) List(ctx context.Context, status string, limit, offset int) ([]*Request, int, error) {
	countQuery := `SELECT COUNT(*) FROM pa_request`
	where := ""
	args := []interface{}{limit, offset}
	var countArgs []interface{}
	if status != "" {
		countQuery += ` WHERE status = $1`
		countArgs = append(countArgs, status)
		where = "WHERE status = $3"
		args = append(args, status)
	}

	var total int
	if err := r.pool.QueryRow(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count pa requests: %w", err)
	}

	rows, err := r.pool.Query(ctx, fmt.Sprintf(`
		SELECT %s FROM pa_request %s
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2`, requestColumns, where), args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list pa requests: %w", err)
	}
	defer rows.Close()

	var out []*Request
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan pa request: %w", err)
		}
		out = append(out, req)
	}
	return out, total, rows.Err()
}

func scanRequest(row pgx.Row) (*Request, error) {
	var req Request
	err := row.Scan(&req.ID, &req.PatientID, &req.ProviderID, &req.PayerID, &req.ServiceCode,
		&req.AppointmentRequestID, &req.Status, &req.SubmissionMethod, &req.AuthNumber,
		&req.DenialReason, &req.InfoRequestCount, &req.RiskLevel, &req.CreatedAt, &req.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &req, nil
}

type PgTransitionRepository struct {
	pool *pgxpool.Pool
}

func NewPgTransitionRepository(pool *pgxpool.Pool) *PgTransitionRepository {
	return &PgTransitionRepository{pool: pool}
}

func (r *PgTransitionRepository) Append(ctx context.Context, t *Transition) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}

	_, err := r.pool.Exec(ctx, `
		INSERT INTO pa_transition (id, request_id, from_status, to_status, reason, actor, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		t.ID, t.RequestID, t.FromStatus, t.ToStatus, t.Reason, t.Actor, t.CreatedAt)
	if err != nil {
		return fmt.Errorf("append pa transition: %w", err)
	}
	return nil
}

func (r *PgTransitionRepository) ListByRequest(ctx context.Context, requestID uuid.UUID) ([]*Transition, error) {
	rows, err := r.pool.Query(ctx, fmt.Sprintf(`
		SELECT %s FROM pa_transition WHERE request_id = $1 ORDER BY created_at`, transitionColumns), requestID)
	if err != nil {
		return nil, fmt.Errorf("list pa transitions: %w", err)
	}
	defer rows.Close()

	var out []*Transition
	for rows.Next() {
		var t Transition
		if err := rows.Scan(&t.ID, &t.RequestID, &t.FromStatus, &t.ToStatus, &t.Reason, &t.Actor, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan pa transition: %w", err)
		}
		out = append(out, &t)
	}
	return out, rows.Err()
}

type PgPackageRepository struct {
	pool *pgxpool.Pool
}

func NewPgPackageRepository(pool *pgxpool.Pool) *PgPackageRepository {
	return &PgPackageRepository{pool: pool}
}

func (r *PgPackageRepository) Create(ctx context.Context, p *Package) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	now := time.Now()
	p.CreatedAt = now
	p.UpdatedAt = now

	docs, err := json.Marshal(p.Documents)
	if err != nil {
		return fmt.Errorf("marshal documents: %w", err)
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO pa_package (id, request_id, status, clinical_rationale, necessity_keywords,
			documents, review_required, reviewed_by, review_comment, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		p.ID, p.RequestID, p.Status, p.ClinicalRationale, p.NecessityKeywords,
		docs, p.ReviewRequired, p.ReviewedBy, p.ReviewComment, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert pa package: %w", err)
	}
	return nil
}

func (r *PgPackageRepository) GetByRequest(ctx context.Context, requestID uuid.UUID) (*Package, error) {
	row := r.pool.QueryRow(ctx, fmt.Sprintf(`
		SELECT %s FROM pa_package WHERE request_id = $1`, packageColumns), requestID)

	p, err := scanPackage(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get pa package: %w", err)
	}
	return p, nil
}

func (r *PgPackageRepository) Update(ctx context.Context, p *Package) error {
	p.UpdatedAt = time.Now()

	docs, err := json.Marshal(p.Documents)
	if err != nil {
		return fmt.Errorf("marshal documents: %w", err)
	}

	tag, err := r.pool.Exec(ctx, `
		UPDATE pa_package
		SET status = $2, clinical_rationale = $3, necessity_keywords = $4, documents = $5,
			review_required = $6, reviewed_by = $7, review_comment = $8, updated_at = $9
		WHERE id = $1`,
		p.ID, p.Status, p.ClinicalRationale, p.NecessityKeywords, docs,
		p.ReviewRequired, p.ReviewedBy, p.ReviewComment, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update pa package: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanPackage(row pgx.Row) (*Package, error) {
	var p Package
	var docs []byte
	err := row.Scan(&p.ID, &p.RequestID, &p.Status, &p.ClinicalRationale, &p.NecessityKeywords,
		&docs, &p.ReviewRequired, &p.ReviewedBy, &p.ReviewComment, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if len(docs) > 0 {
		if err := json.Unmarshal(docs, &p.Documents); err != nil {
			return nil, fmt.Errorf("unmarshal documents: %w", err)
		}
	}
	return &p, nil
}
