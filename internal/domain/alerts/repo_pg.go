package alerts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const alertColumns = `id, alert_type, severity, status, patient_id, payer_id, pa_request_id,
	appointment_id, service_code, message, dedupe_key, acknowledged_by, acknowledged_at,
	resolved_by, resolved_at, created_at, updated_at`

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

func (r *PgRepository) Insert(ctx context.Context, a *StaffAlert) (bool, error) {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	now := time.Now()
	a.CreatedAt = now
	a.UpdatedAt = now

	// A re-trigger while the alert is open refreshes the message and
	// timestamp on the existing row instead of creating a duplicate.
	// xmax = 0 distinguishes a fresh insert from a conflict update.
	row := r.pool.QueryRow(ctx, `
		INSERT INTO staff_alert (id, alert_type, severity, status, patient_id, payer_id,
			pa_request_id, appointment_id, service_code, message, dedupe_key, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (dedupe_key) WHERE status <> 'resolved'
		DO UPDATE SET message = EXCLUDED.message, updated_at = EXCLUDED.updated_at
		RETURNING id, (xmax = 0)`,
		a.ID, a.Type, a.Severity, a.Status, a.PatientID, a.PayerID,
		a.PARequestID, a.AppointmentID, a.ServiceCode, a.Message, a.DedupeKey, a.CreatedAt, a.UpdatedAt)

	var created bool
	if err := row.Scan(&a.ID, &created); err != nil {
		return false, fmt.Errorf("upsert staff alert: %w", err)
	}
	return created, nil
}

func (r *PgRepository) GetByID(ctx context.Context, id uuid.UUID) (*StaffAlert, error) {
	row := r.pool.QueryRow(ctx, fmt.Sprintf(`
		SELECT %s FROM staff_alert WHERE id = $1`, alertColumns), id)

	a, err := scanAlert(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get staff alert: %w", err)
	}
	return a, nil
}

func (r *PgRepository) Update(ctx context.Context, a *StaffAlert) error {
	a.UpdatedAt = time.Now()

	tag, err := r.pool.Exec(ctx, `
		UPDATE staff_alert
		SET status = $2, acknowledged_by = $3, acknowledged_at = $4,
			resolved_by = $5, resolved_at = $6, updated_at = $7
		WHERE id = $1`,
		a.ID, a.Status, a.AcknowledgedBy, a.AcknowledgedAt,
		a.ResolvedBy, a.ResolvedAt, a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update staff alert: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PgRepository) List(ctx context.Context, status, alertType string, limit, offset int) ([]*StaffAlert, int, error) {
	where := "WHERE 1=1"
	args := []any{}
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if status != "" {
		where += " AND status = " + arg(status)
	}
	if alertType != "" {
		where += " AND alert_type = " + arg(alertType)
	}

	var total int
	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM staff_alert %s`, where)
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count staff alerts: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT %s FROM staff_alert %s
		ORDER BY created_at DESC LIMIT %s OFFSET %s`,
		alertColumns, where, arg(limit), arg(offset))
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list staff alerts: %w", err)
	}
	defer rows.Close()

	var out []*StaffAlert
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan staff alert: %w", err)
		}
		out = append(out, a)
	}
	return out, total, rows.Err()
}

func scanAlert(row pgx.Row) (*StaffAlert, error) {
	var a StaffAlert
	err := row.Scan(&a.ID, &a.Type, &a.Severity, &a.Status, &a.PatientID, &a.PayerID,
		&a.PARequestID, &a.AppointmentID, &a.ServiceCode, &a.Message, &a.DedupeKey,
		&a.AcknowledgedBy, &a.AcknowledgedAt, &a.ResolvedBy, &a.ResolvedAt,
		&a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}
