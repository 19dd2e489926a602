package provider

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const providerColumns = `id, npi, first_name, last_name, specialty, rating, active, created_at, updated_at`

const participationColumns = `id, provider_id, payer_id, effective_date, termination_date, created_at`

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

func (r *PgRepository) Create(ctx context.Context, p *Provider) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	now := time.Now()
	p.CreatedAt = now
	p.UpdatedAt = now

	_, err := r.pool.Exec(ctx, `
		INSERT INTO provider (id, npi, first_name, last_name, specialty, rating, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		p.ID, p.NPI, p.FirstName, p.LastName, p.Specialty, p.Rating, p.Active, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert provider: %w", err)
	}
	return nil
}

func (r *PgRepository) GetByID(ctx context.Context, id uuid.UUID) (*Provider, error) {
	row := r.pool.QueryRow(ctx,
		fmt.Sprintf(`SELECT %s FROM provider WHERE id = $1`, providerColumns), id)

	p, err := scanProvider(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get provider: %w", err)
	}
	return p, nil
}

func (r *PgRepository) Update(ctx context.Context, p *Provider) error {
	p.UpdatedAt = time.Now()

	tag, err := r.pool.Exec(ctx, `
		UPDATE provider
		SET npi = $2, first_name = $3, last_name = $4, specialty = $5, rating = $6, active = $7, updated_at = $8
		WHERE id = $1`,
		p.ID, p.NPI, p.FirstName, p.LastName, p.Specialty, p.Rating, p.Active, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update provider: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PgRepository) List(ctx context.Context, specialty string, limit, offset int) ([]*Provider, int, error) {
	countQuery := `SELECT COUNT(*) FROM provider WHERE active`
	where := "WHERE active"
	args := []interface{}{limit, offset}
	var countArgs []interface{}
	if specialty != "" {
		countQuery += " AND specialty = $1"
		countArgs = append(countArgs, specialty)
		where += " AND specialty = $3"
		args = append(args, specialty)
	}

	var total int
	if err := r.pool.QueryRow(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count providers: %w", err)
	}

	rows, err := r.pool.Query(ctx, fmt.Sprintf(`
		SELECT %s FROM provider %s
		ORDER BY last_name, first_name
		LIMIT $1 OFFSET $2`, providerColumns, where), args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list providers: %w", err)
	}
	defer rows.Close()

	var providers []*Provider
	for rows.Next() {
		p, err := scanProvider(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan provider: %w", err)
		}
		providers = append(providers, p)
	}
	return providers, total, rows.Err()
}

func scanProvider(row pgx.Row) (*Provider, error) {
	var p Provider
	err := row.Scan(&p.ID, &p.NPI, &p.FirstName, &p.LastName, &p.Specialty,
		&p.Rating, &p.Active, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

type PgParticipationRepository struct {
	pool *pgxpool.Pool
}

func NewPgParticipationRepository(pool *pgxpool.Pool) *PgParticipationRepository {
	return &PgParticipationRepository{pool: pool}
}

func (r *PgParticipationRepository) Create(ctx context.Context, p *Participation) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	p.CreatedAt = time.Now()

	_, err := r.pool.Exec(ctx, `
		INSERT INTO provider_participation (id, provider_id, payer_id, effective_date, termination_date, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		p.ID, p.ProviderID, p.PayerID, p.EffectiveDate, p.TerminationDate, p.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert participation: %w", err)
	}
	return nil
}

func (r *PgParticipationRepository) ListByProvider(ctx context.Context, providerID uuid.UUID) ([]*Participation, error) {
	rows, err := r.pool.Query(ctx, fmt.Sprintf(`
		SELECT %s FROM provider_participation
		WHERE provider_id = $1 ORDER BY effective_date DESC`, participationColumns), providerID)
	if err != nil {
		return nil, fmt.Errorf("list participation: %w", err)
	}
	defer rows.Close()

	var out []*Participation
	for rows.Next() {
		p, err := scanParticipation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan participation: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *PgParticipationRepository) ActiveOn(ctx context.Context, providerID, payerID uuid.UUID, asOf time.Time) (*Participation, error) {
	row := r.pool.QueryRow(ctx, fmt.Sprintf(`
		SELECT %s FROM provider_participation
		WHERE provider_id = $1 AND payer_id = $2
			AND effective_date <= $3
			AND (termination_date IS NULL OR termination_date >= $3)
		ORDER BY effective_date DESC LIMIT 1`, participationColumns),
		providerID, payerID, asOf)

	p, err := scanParticipation(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get participation: %w", err)
	}
	return p, nil
}

func scanParticipation(row pgx.Row) (*Participation, error) {
	var p Participation
	err := row.Scan(&p.ID, &p.ProviderID, &p.PayerID, &p.EffectiveDate, &p.TerminationDate, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
