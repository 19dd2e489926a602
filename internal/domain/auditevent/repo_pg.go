package auditevent

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const accessColumns = `id, user_id, user_roles, resource, action, method, path,
	ip_address, user_agent, request_id, status_code, occurred_at, created_at`

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

func (r *PgRepository) Insert(ctx context.Context, rec *AccessRecord) error {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	_, err := r.pool.Exec(ctx, `INSERT INTO access_record
		(id, user_id, user_roles, resource, action, method, path,
		 ip_address, user_agent, request_id, status_code, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		rec.ID, rec.UserID, rec.UserRoles, rec.Resource, rec.Action,
		rec.Method, rec.Path, rec.IPAddress, rec.UserAgent, rec.RequestID,
		rec.StatusCode, rec.OccurredAt)
	if err != nil {
		return fmt.Errorf("insert access record: %w", err)
	}
	return nil
}

func (r *PgRepository) List(ctx context.Context, userID, resource string, limit, offset int) ([]*AccessRecord, int, error) {
	where := ""
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if userID != "" {
		where += " AND user_id = " + arg(userID)
	}
	if resource != "" {
		where += " AND resource = " + arg(resource)
	}

	countQuery := "SELECT COUNT(*) FROM access_record WHERE 1=1" + where
	var total int
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count access records: %w", err)
	}

	query := fmt.Sprintf(`SELECT %s FROM access_record WHERE 1=1%s
		ORDER BY occurred_at DESC LIMIT %s OFFSET %s`,
		accessColumns, where, arg(limit), arg(offset))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list access records: %w", err)
	}
	defer rows.Close()

	var records []*AccessRecord
	for rows.Next() {
		rec, err := scanAccessRecord(rows)
		if err != nil {
			return nil, 0, err
		}
		records = append(records, rec)
	}
	return records, total, rows.Err()
}

func scanAccessRecord(row pgx.Row) (*AccessRecord, error) {
	var rec AccessRecord
	err := row.Scan(&rec.ID, &rec.UserID, &rec.UserRoles, &rec.Resource,
		&rec.Action, &rec.Method, &rec.Path, &rec.IPAddress, &rec.UserAgent,
		&rec.RequestID, &rec.StatusCode, &rec.OccurredAt, &rec.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("scan access record: %w", err)
	}
	return &rec, nil
}
