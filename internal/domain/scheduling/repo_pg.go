package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const requestColumns = `id, patient_id, payer_id, service_code, preferred_provider_id,
	earliest_start, latest_start, urgency_score, status, created_at, updated_at`

const slotColumns = `id, provider_id, start_time, end_time, status, created_at`

const appointmentColumns = `id, request_id, patient_id, provider_id, payer_id, service_code,
	slot_id, status, out_of_network, created_at, updated_at`

const waitlistColumns = `id, request_id, urgency_score, status, created_at, updated_at`

type PgRequestRepository struct {
	pool *pgxpool.Pool
}

func NewPgRequestRepository(pool *pgxpool.Pool) *PgRequestRepository {
	return &PgRequestRepository{pool: pool}
}

func (r *PgRequestRepository) Create(ctx context.Context, req *AppointmentRequest) error {
	if req.ID == uuid.Nil {
		req.ID = uuid.New()
	}
	now := time.Now()
	req.CreatedAt = now
	req.UpdatedAt = now

	_, err := r.pool.Exec(ctx, `
		INSERT INTO appointment_request (id, patient_id, payer_id, service_code,
			preferred_provider_id, earliest_start, latest_start, urgency_score, status,
			created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		req.ID, req.PatientID, req.PayerID, req.ServiceCode, req.PreferredProviderID,
		req.EarliestStart, req.LatestStart, req.UrgencyScore, req.Status, req.CreatedAt, req.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert appointment request: %w", err)
	}
	return nil
}

func (r *PgRequestRepository) GetByID(ctx context.Context, id uuid.UUID) (*AppointmentRequest, error) {
	row := r.pool.QueryRow(ctx,
		fmt.Sprintf(`SELECT %s FROM appointment_request WHERE id = $1`, requestColumns), id)

	req, err := scanAppointmentRequest(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get appointment request: %w", err)
	}
	return req, nil
}

func (r *PgRequestRepository) Update(ctx context.Context, req *AppointmentRequest) error {
	req.UpdatedAt = time.Now()

	tag, err := r.pool.Exec(ctx, `
		UPDATE appointment_request
		SET status = $2, urgency_score = $3, updated_at = $4
		WHERE id = $1`,
		req.ID, req.Status, req.UrgencyScore, req.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update appointment request: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PgRequestRepository) List(ctx context.Context, status string, limit, offset int) ([]*AppointmentRequest, int, error) {
	countQuery := `SELECT COUNT(*) FROM appointment_request`
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
		return nil, 0, fmt.Errorf("count appointment requests: %w", err)
	}

	rows, err := r.pool.Query(ctx, fmt.Sprintf(`
		SELECT %s FROM appointment_request %s
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2`, requestColumns, where), args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list appointment requests: %w", err)
	}
	defer rows.Close()

	var out []*AppointmentRequest
	for rows.Next() {
		req, err := scanAppointmentRequest(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan appointment request: %w", err)
		}
		out = append(out, req)
	}
	return out, total, rows.Err()
}

func scanAppointmentRequest(row pgx.Row) (*AppointmentRequest, error) {
	var req AppointmentRequest
	err := row.Scan(&req.ID, &req.PatientID, &req.PayerID, &req.ServiceCode, &req.PreferredProviderID,
		&req.EarliestStart, &req.LatestStart, &req.UrgencyScore, &req.Status, &req.CreatedAt, &req.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &req, nil
}

type PgSlotRepository struct {
	pool *pgxpool.Pool
}

func NewPgSlotRepository(pool *pgxpool.Pool) *PgSlotRepository {
	return &PgSlotRepository{pool: pool}
}

func (r *PgSlotRepository) Create(ctx context.Context, s *Slot) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	if s.Status == "" {
		s.Status = SlotOpen
	}
	s.CreatedAt = time.Now()

	_, err := r.pool.Exec(ctx, `
		INSERT INTO provider_slot (id, provider_id, start_time, end_time, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		s.ID, s.ProviderID, s.StartTime, s.EndTime, s.Status, s.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert slot: %w", err)
	}
	return nil
}

func (r *PgSlotRepository) GetByID(ctx context.Context, id uuid.UUID) (*Slot, error) {
	row := r.pool.QueryRow(ctx,
		fmt.Sprintf(`SELECT %s FROM provider_slot WHERE id = $1`, slotColumns), id)

	var s Slot
	err := row.Scan(&s.ID, &s.ProviderID, &s.StartTime, &s.EndTime, &s.Status, &s.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get slot: %w", err)
	}
	return &s, nil
}

func (r *PgSlotRepository) OpenCandidates(ctx context.Context, c SlotCriteria) ([]*Candidate, error) {
	query := `
		SELECT s.id, s.provider_id, s.start_time, s.end_time, s.status, s.created_at,
			p.rating, p.specialty
		FROM provider_slot s
		JOIN provider p ON p.id = s.provider_id AND p.active
		WHERE s.status = 'open'`
	var args []interface{}
	n := 0
	arg := func(v interface{}) string {
		n++
		args = append(args, v)
		return fmt.Sprintf("$%d", n)
	}

	if c.ProviderID != nil {
		query += ` AND s.provider_id = ` + arg(*c.ProviderID)
	}
	if c.Specialty != "" {
		query += ` AND p.specialty = ` + arg(c.Specialty)
	}
	if c.From != nil {
		query += ` AND s.start_time >= ` + arg(*c.From)
	}
	if c.To != nil {
		query += ` AND s.start_time <= ` + arg(*c.To)
	}
	query += ` ORDER BY s.start_time, p.rating DESC`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list open slots: %w", err)
	}
	defer rows.Close()

	var out []*Candidate
	for rows.Next() {
		var cand Candidate
		err := rows.Scan(&cand.Slot.ID, &cand.Slot.ProviderID, &cand.Slot.StartTime, &cand.Slot.EndTime,
			&cand.Slot.Status, &cand.Slot.CreatedAt, &cand.ProviderRating, &cand.ProviderSpecialty)
		if err != nil {
			return nil, fmt.Errorf("scan slot candidate: %w", err)
		}
		out = append(out, &cand)
	}
	return out, rows.Err()
}

// Book relies on the conditional update touching exactly one row: when two
// bookings race, the second sees zero rows affected and reports the slot as
// taken.
func (r *PgSlotRepository) Book(ctx context.Context, slotID uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE provider_slot SET status = 'booked' WHERE id = $1 AND status = 'open'`, slotID)
	if err != nil {
		return false, fmt.Errorf("book slot: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *PgSlotRepository) Release(ctx context.Context, slotID uuid.UUID) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE provider_slot SET status = 'open' WHERE id = $1 AND status = 'booked'`, slotID)
	if err != nil {
		return fmt.Errorf("release slot: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

type PgAppointmentRepository struct {
	pool *pgxpool.Pool
}

func NewPgAppointmentRepository(pool *pgxpool.Pool) *PgAppointmentRepository {
	return &PgAppointmentRepository{pool: pool}
}

func (r *PgAppointmentRepository) Create(ctx context.Context, a *Appointment) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	now := time.Now()
	a.CreatedAt = now
	a.UpdatedAt = now

	_, err := r.pool.Exec(ctx, `
		INSERT INTO appointment (id, request_id, patient_id, provider_id, payer_id,
			service_code, slot_id, status, out_of_network, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		a.ID, a.RequestID, a.PatientID, a.ProviderID, a.PayerID,
		a.ServiceCode, a.SlotID, a.Status, a.OutOfNetwork, a.CreatedAt, a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert appointment: %w", err)
	}
	return nil
}

func (r *PgAppointmentRepository) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx,
		fmt.Sprintf(`SELECT %s FROM appointment WHERE id = $1`, appointmentColumns), id)

	a, err := scanAppointment(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get appointment: %w", err)
	}
	return a, nil
}

func (r *PgAppointmentRepository) Update(ctx context.Context, a *Appointment) error {
	a.UpdatedAt = time.Now()

	tag, err := r.pool.Exec(ctx,
		`UPDATE appointment SET status = $2, updated_at = $3 WHERE id = $1`,
		a.ID, a.Status, a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update appointment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PgAppointmentRepository) FindByRequest(ctx context.Context, requestID uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, fmt.Sprintf(`
		SELECT %s FROM appointment
		WHERE request_id = $1
		ORDER BY created_at DESC LIMIT 1`, appointmentColumns), requestID)

	a, err := scanAppointment(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find appointment: %w", err)
	}
	return a, nil
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	err := row.Scan(&a.ID, &a.RequestID, &a.PatientID, &a.ProviderID, &a.PayerID,
		&a.ServiceCode, &a.SlotID, &a.Status, &a.OutOfNetwork, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

type PgWaitlistRepository struct {
	pool *pgxpool.Pool
}

func NewPgWaitlistRepository(pool *pgxpool.Pool) *PgWaitlistRepository {
	return &PgWaitlistRepository{pool: pool}
}

func (r *PgWaitlistRepository) Create(ctx context.Context, e *WaitlistEntry) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.Status == "" {
		e.Status = WaitlistActive
	}
	now := time.Now()
	e.CreatedAt = now
	e.UpdatedAt = now

	_, err := r.pool.Exec(ctx, `
		INSERT INTO waitlist_entry (id, request_id, urgency_score, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		e.ID, e.RequestID, e.UrgencyScore, e.Status, e.CreatedAt, e.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert waitlist entry: %w", err)
	}
	return nil
}

func (r *PgWaitlistRepository) Update(ctx context.Context, e *WaitlistEntry) error {
	e.UpdatedAt = time.Now()

	tag, err := r.pool.Exec(ctx,
		`UPDATE waitlist_entry SET status = $2, updated_at = $3 WHERE id = $1`,
		e.ID, e.Status, e.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update waitlist entry: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PgWaitlistRepository) FindActiveByRequest(ctx context.Context, requestID uuid.UUID) (*WaitlistEntry, error) {
	row := r.pool.QueryRow(ctx, fmt.Sprintf(`
		SELECT %s FROM waitlist_entry
		WHERE request_id = $1 AND status = 'active' LIMIT 1`, waitlistColumns), requestID)

	e, err := scanWaitlistEntry(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find waitlist entry: %w", err)
	}
	return e, nil
}

func (r *PgWaitlistRepository) ActiveEntries(ctx context.Context) ([]*WaitlistEntry, error) {
	rows, err := r.pool.Query(ctx, fmt.Sprintf(`
		SELECT %s FROM waitlist_entry
		WHERE status = 'active'
		ORDER BY urgency_score DESC, created_at`, waitlistColumns))
	if err != nil {
		return nil, fmt.Errorf("list waitlist entries: %w", err)
	}
	defer rows.Close()

	var out []*WaitlistEntry
	for rows.Next() {
		e, err := scanWaitlistEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan waitlist entry: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func scanWaitlistEntry(row pgx.Row) (*WaitlistEntry, error) {
	var e WaitlistEntry
	err := row.Scan(&e.ID, &e.RequestID, &e.UrgencyScore, &e.Status, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &e, nil
}
