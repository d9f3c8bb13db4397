package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PgStore struct {
	pool *pgxpool.Pool
	q    pgQuerier
}

// pgQuerier routes queries either through the pool or, when the store
// was obtained via InTx, through the transaction. The same store
// methods therefore serve inside and outside a unit of work.
type pgQuerier struct {
	pool *pgxpool.Pool
	tx   pgx.Tx
}

func (q pgQuerier) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if q.tx != nil {
		return q.tx.Exec(ctx, sql, args...)
	}
	return q.pool.Exec(ctx, sql, args...)
}

func (q pgQuerier) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	if q.tx != nil {
		return q.tx.Query(ctx, sql, args...)
	}
	return q.pool.Query(ctx, sql, args...)
}

func (q pgQuerier) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if q.tx != nil {
		return q.tx.QueryRow(ctx, sql, args...)
	}
	return q.pool.QueryRow(ctx, sql, args...)
}

func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool, q: pgQuerier{pool: pool}}
}

// InTx runs fn against a tx-bound copy of the store. Rollback after a
// successful commit is a no-op, so the deferred call is safe.
func (s *PgStore) InTx(ctx context.Context, fn func(tx Store) error) error {
	if s.q.tx != nil {
		// Already inside a transaction; nest logically, not physically.
		return fn(s)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return transientf("begin tx: %v", err)
	}
	defer tx.Rollback(ctx)

	txStore := &PgStore{pool: s.pool, q: pgQuerier{pool: s.pool, tx: tx}}
	if err := fn(txStore); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return transientf("commit tx: %v", err)
	}
	return nil
}

// Slots

func scanSlot(row pgx.Row) (*Slot, error) {
	var sl Slot
	err := row.Scan(
		&sl.ID,
		&sl.ProviderID,
		&sl.StartTime,
		&sl.EndTime,
		&sl.Status,
		&sl.CreatedAt,
		&sl.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSlotNotFound
		}
		return nil, transientf("scan slot: %v", err)
	}
	return &sl, nil
}

func (s *PgStore) GetSlot(ctx context.Context, id uuid.UUID) (*Slot, error) {
	row := s.q.QueryRow(ctx, `
		SELECT id, provider_id, start_time, end_time, status, created_at, updated_at
		FROM slots
		WHERE id = $1
	`, id)
	return scanSlot(row)
}

func (s *PgStore) ReserveSlot(ctx context.Context, id uuid.UUID) error {
	tag, err := s.q.Exec(ctx, `
		UPDATE slots
		SET status = 'reserved',
		    updated_at = now()
		WHERE id = $1
		  AND status = 'available'
	`, id)
	if err != nil {
		return transientf("reserve slot: %v", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrSlotUnavailable
	}
	return nil
}

func (s *PgStore) ReleaseSlot(ctx context.Context, id uuid.UUID) error {
	// Blocked slots stay blocked; releasing an already-available slot
	// is a no-op. Only reserved→available is performed.
	_, err := s.q.Exec(ctx, `
		UPDATE slots
		SET status = 'available',
		    updated_at = now()
		WHERE id = $1
		  AND status = 'reserved'
	`, id)
	if err != nil {
		return transientf("release slot: %v", err)
	}
	return nil
}

// Appointments

const appointmentColumns = `id, slot_id, provider_id, patient_id, start_time, end_time, status, reason, notes, created_by, created_at, updated_at`

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	err := row.Scan(
		&a.ID,
		&a.SlotID,
		&a.ProviderID,
		&a.PatientID,
		&a.StartTime,
		&a.EndTime,
		&a.Status,
		&a.Reason,
		&a.Notes,
		&a.CreatedBy,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, transientf("scan appointment: %v", err)
	}
	return &a, nil
}

func (s *PgStore) GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := s.q.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (s *PgStore) CreateAppointment(ctx context.Context, appt *Appointment) (*Appointment, error) {
	id := appt.ID
	if id == uuid.Nil {
		id = uuid.New()
	}

	row := s.q.QueryRow(ctx, `
		INSERT INTO appointments (id, slot_id, provider_id, patient_id, start_time, end_time, status, reason, notes, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, now(), now())
		RETURNING `+appointmentColumns+`
	`, id, appt.SlotID, appt.ProviderID, appt.PatientID, appt.StartTime, appt.EndTime, appt.Status, appt.Reason, appt.Notes, appt.CreatedBy)

	created, err := scanAppointment(row)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, transientf("insert appointment returned no row")
		}
		return nil, err
	}
	return created, nil
}

func (s *PgStore) UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to AppointmentStatus, notes *string) (*Appointment, error) {
	row := s.q.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2,
		    notes = COALESCE($4, notes),
		    updated_at = now()
		WHERE id = $1
		  AND status = $3
		RETURNING `+appointmentColumns+`
	`, id, to, from, notes)
	return scanAppointment(row)
}

func (s *PgStore) MoveAppointment(ctx context.Context, id uuid.UUID, fromSlotID uuid.UUID, from AppointmentStatus, newSlot *Slot) (*Appointment, error) {
	row := s.q.QueryRow(ctx, `
		UPDATE appointments
		SET slot_id = $2,
		    start_time = $3,
		    end_time = $4,
		    status = 'confirmed',
		    updated_at = now()
		WHERE id = $1
		  AND slot_id = $5
		  AND status = $6
		RETURNING `+appointmentColumns+`
	`, id, newSlot.ID, newSlot.StartTime, newSlot.EndTime, fromSlotID, from)
	return scanAppointment(row)
}

func (s *PgStore) ActiveAppointmentForSlot(ctx context.Context, slotID uuid.UUID) (*Appointment, error) {
	row := s.q.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE slot_id = $1
		  AND status NOT IN ('cancelled', 'rejected')
	`, slotID)
	return scanAppointment(row)
}

func (s *PgStore) FindStalePending(ctx context.Context, cutoff time.Time) ([]Appointment, error) {
	rows, err := s.q.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE status = 'pending'
		  AND created_at < $1
	`, cutoff)
	if err != nil {
		return nil, transientf("find stale pending: %v", err)
	}
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, transientf("iterate stale pending: %v", err)
	}
	return result, nil
}

func (s *PgStore) ListAppointments(ctx context.Context, f Filter) ([]AppointmentDetail, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}

	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if f.ProviderID != nil {
		where = append(where, "a.provider_id = "+arg(*f.ProviderID))
	}
	if f.PatientID != nil {
		where = append(where, "a.patient_id = "+arg(*f.PatientID))
	}
	if f.Status != nil {
		where = append(where, "a.status = "+arg(*f.Status))
	}
	if f.From != nil {
		where = append(where, "a.start_time >= "+arg(*f.From))
	}
	if f.To != nil {
		where = append(where, "a.start_time < "+arg(*f.To))
	}
	if q := strings.TrimSpace(f.Query); q != "" {
		ph := arg("%" + q + "%")
		where = append(where, "(p.name ILIKE "+ph+" OR pr.name ILIKE "+ph+" OR a.reason ILIKE "+ph+")")
	}

	sql := `
		SELECT a.id, a.slot_id, a.provider_id, a.patient_id, a.start_time, a.end_time,
		       a.status, a.reason, a.notes, a.created_by, a.created_at, a.updated_at,
		       p.name, pr.name, pr.specialty
		FROM appointments a
		JOIN patients p ON p.id = a.patient_id
		JOIN providers pr ON pr.id = a.provider_id
	`
	if len(where) > 0 {
		sql += " WHERE " + strings.Join(where, " AND ")
	}
	sql += " ORDER BY a.start_time DESC LIMIT " + arg(limit) + " OFFSET " + arg(offset)

	rows, err := s.q.Query(ctx, sql, args...)
	if err != nil {
		return nil, transientf("list appointments: %v", err)
	}
	defer rows.Close()

	var result []AppointmentDetail
	for rows.Next() {
		var d AppointmentDetail
		err := rows.Scan(
			&d.ID,
			&d.SlotID,
			&d.ProviderID,
			&d.PatientID,
			&d.StartTime,
			&d.EndTime,
			&d.Status,
			&d.Reason,
			&d.Notes,
			&d.CreatedBy,
			&d.CreatedAt,
			&d.UpdatedAt,
			&d.PatientName,
			&d.ProviderName,
			&d.Specialty,
		)
		if err != nil {
			return nil, transientf("scan appointment detail: %v", err)
		}
		result = append(result, d)
	}
	if err := rows.Err(); err != nil {
		return nil, transientf("iterate appointments: %v", err)
	}
	return result, nil
}
