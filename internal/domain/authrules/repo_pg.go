package authrules

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const ruleColumns = `id, payer_id, service_code, pa_required, referral_required,
	required_docs, necessity_keywords, created_at, updated_at`

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

func (r *PgRepository) Upsert(ctx context.Context, rule *Rule) error {
	if rule.ID == uuid.Nil {
		rule.ID = uuid.New()
	}
	now := time.Now()
	rule.CreatedAt = now
	rule.UpdatedAt = now

	_, err := r.pool.Exec(ctx, `
		INSERT INTO auth_rule (id, payer_id, service_code, pa_required, referral_required,
			required_docs, necessity_keywords, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (payer_id, service_code) DO UPDATE
		SET pa_required = EXCLUDED.pa_required,
			referral_required = EXCLUDED.referral_required,
			required_docs = EXCLUDED.required_docs,
			necessity_keywords = EXCLUDED.necessity_keywords,
			updated_at = EXCLUDED.updated_at`,
		rule.ID, rule.PayerID, rule.ServiceCode, rule.PARequired, rule.ReferralRequired,
		rule.RequiredDocs, rule.NecessityKeywords, rule.CreatedAt, rule.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert auth rule: %w", err)
	}
	return nil
}

func (r *PgRepository) Get(ctx context.Context, payerID uuid.UUID, serviceCode string) (*Rule, error) {
	row := r.pool.QueryRow(ctx, fmt.Sprintf(`
		SELECT %s FROM auth_rule WHERE payer_id = $1 AND service_code = $2`, ruleColumns),
		payerID, serviceCode)

	rule, err := scanRule(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get auth rule: %w", err)
	}
	return rule, nil
}

func (r *PgRepository) ListByPayer(ctx context.Context, payerID uuid.UUID) ([]*Rule, error) {
	rows, err := r.pool.Query(ctx, fmt.Sprintf(`
		SELECT %s FROM auth_rule WHERE payer_id = $1 ORDER BY service_code`, ruleColumns), payerID)
	if err != nil {
		return nil, fmt.Errorf("list auth rules: %w", err)
	}
	defer rows.Close()

	var out []*Rule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("scan auth rule: %w", err)
		}
		out = append(out, rule)
	}
	return out, rows.Err()
}

func scanRule(row pgx.Row) (*Rule, error) {
	var rule Rule
	err := row.Scan(&rule.ID, &rule.PayerID, &rule.ServiceCode, &rule.PARequired, &rule.ReferralRequired,
		&rule.RequiredDocs, &rule.NecessityKeywords, &rule.CreatedAt, &rule.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &rule, nil
}
