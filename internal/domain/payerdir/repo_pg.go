package payerdir

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

const payerColumns = `id, name, access_method, api_base_url, portal_url, element_map, phone, fax, created_at, updated_at`

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

func (r *PgRepository) Create(ctx context.Context, p *Payer) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	now := time.Now()
	p.CreatedAt = now
	p.UpdatedAt = now

	elements, err := marshalElementMap(p.ElementMap)
	if err != nil {
		return err
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO payer (id, name, access_method, api_base_url, portal_url, element_map, phone, fax, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		p.ID, p.Name, p.AccessMethod, p.APIBaseURL, p.PortalURL, elements, p.Phone, p.Fax, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert payer: %w", err)
	}
	return nil
}

func (r *PgRepository) GetByID(ctx context.Context, id uuid.UUID) (*Payer, error) {
	row := r.pool.QueryRow(ctx,
		fmt.Sprintf(`SELECT %s FROM payer WHERE id = $1`, payerColumns), id)

	p, err := scanPayer(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get payer: %w", err)
	}
	return p, nil
}

func (r *PgRepository) Update(ctx context.Context, p *Payer) error {
	p.UpdatedAt = time.Now()

	elements, err := marshalElementMap(p.ElementMap)
	if err != nil {
		return err
	}

	tag, err := r.pool.Exec(ctx, `
		UPDATE payer
		SET name = $2, access_method = $3, api_base_url = $4, portal_url = $5,
			element_map = $6, phone = $7, fax = $8, updated_at = $9
		WHERE id = $1`,
		p.ID, p.Name, p.AccessMethod, p.APIBaseURL, p.PortalURL, elements, p.Phone, p.Fax, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update payer: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PgRepository) List(ctx context.Context, limit, offset int) ([]*Payer, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM payer`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count payers: %w", err)
	}

	rows, err := r.pool.Query(ctx, fmt.Sprintf(`
		SELECT %s FROM payer ORDER BY name LIMIT $1 OFFSET $2`, payerColumns), limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list payers: %w", err)
	}
	defer rows.Close()

	var payers []*Payer
	for rows.Next() {
		p, err := scanPayer(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan payer: %w", err)
		}
		payers = append(payers, p)
	}
	return payers, total, rows.Err()
}

func marshalElementMap(m map[string]string) ([]byte, error) {
	if m == nil {
		return nil, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("marshal element map: %w", err)
	}
	return b, nil
}

func scanPayer(row pgx.Row) (*Payer, error) {
	var p Payer
	var elements []byte
	err := row.Scan(&p.ID, &p.Name, &p.AccessMethod, &p.APIBaseURL, &p.PortalURL,
		&elements, &p.Phone, &p.Fax, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if len(elements) > 0 {
		if err := json.Unmarshal(elements, &p.ElementMap); err != nil {
			return nil, fmt.Errorf("unmarshal element map: %w", err)
		}
	}
	return &p, nil
}
