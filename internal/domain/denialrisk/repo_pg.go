package denialrisk

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const patternColumns = `id, payer_id, service_code, denial_reason, frequency, resolution_strategy, created_at, updated_at`

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

func (r *PgRepository) Upsert(ctx context.Context, p *Pattern) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	now := time.Now()
	p.CreatedAt = now
	p.UpdatedAt = now

	_, err := r.pool.Exec(ctx, `
		INSERT INTO denial_pattern (id, payer_id, service_code, denial_reason, frequency, resolution_strategy, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (payer_id, service_code, denial_reason) DO UPDATE
		SET frequency = EXCLUDED.frequency,
			resolution_strategy = EXCLUDED.resolution_strategy,
			updated_at = EXCLUDED.updated_at`,
		p.ID, p.PayerID, p.ServiceCode, p.DenialReason, p.Frequency, p.ResolutionStrategy, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert denial pattern: %w", err)
	}
	return nil
}

func (r *PgRepository) ListByPayerService(ctx context.Context, payerID uuid.UUID, serviceCode string) ([]*Pattern, error) {
	rows, err := r.pool.Query(ctx, fmt.Sprintf(`
		SELECT %s FROM denial_pattern
		WHERE payer_id = $1 AND service_code = $2
		ORDER BY frequency DESC`, patternColumns), payerID, serviceCode)
	if err != nil {
		return nil, fmt.Errorf("list denial patterns: %w", err)
	}
	defer rows.Close()

	var out []*Pattern
	for rows.Next() {
		p, err := scanPattern(rows)
		if err != nil {
			return nil, fmt.Errorf("scan denial pattern: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func scanPattern(row pgx.Row) (*Pattern, error) {
	var p Pattern
	err := row.Scan(&p.ID, &p.PayerID, &p.ServiceCode, &p.DenialReason, &p.Frequency,
		&p.ResolutionStrategy, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
