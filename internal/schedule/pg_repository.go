package schedule

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgRepository persists the schedule configuration and the booking ledger in
// Postgres. Clock times are stored as minutes since midnight; the partial
// unique index on slot_instances is the storage-level backstop for the
// one-instance-per-position invariant.
type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// Helpers

func scanRule(row pgx.Row) (*WorkingHourRule, error) {
	var r WorkingHourRule
	var start, end int

	err := row.Scan(
		&r.ID,
		&r.DoctorID,
		&r.DayOfWeek,
		&start,
		&end,
		&r.SlotDuration,
		&r.Active,
		&r.CreatedAt,
		&r.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRuleNotFound
		}
		return nil, err
	}

	r.StartTime = TimeOfDay(start)
	r.EndTime = TimeOfDay(end)
	return &r, nil
}

func scanOffDay(row pgx.Row) (*OffDay, error) {
	var o OffDay

	err := row.Scan(
		&o.ID,
		&o.DoctorID,
		&o.Date,
		&o.Reason,
		&o.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOffDayNotFound
		}
		return nil, err
	}

	o.Date = Day(o.Date)
	return &o, nil
}

func scanSlot(row pgx.Row) (*SlotInstance, error) {
	var s SlotInstance
	var start, end int

	err := row.Scan(
		&s.ID,
		&s.DoctorID,
		&s.Date,
		&start,
		&end,
		&s.Status,
		&s.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSlotNotFound
		}
		return nil, err
	}

	s.Date = Day(s.Date)
	s.StartTime = TimeOfDay(start)
	s.EndTime = TimeOfDay(end)
	return &s, nil
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var start, end int

	err := row.Scan(
		&a.ID,
		&a.SlotID,
		&a.DoctorID,
		&a.Date,
		&start,
		&end,
		&a.PatientName,
		&a.MobileNumber,
		&a.Gender,
		&a.Source,
		&a.Status,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	a.Date = Day(a.Date)
	a.StartTime = TimeOfDay(start)
	a.EndTime = TimeOfDay(end)
	return &a, nil
}

const ruleColumns = `id, doctor_id, day_of_week, start_minute, end_minute, slot_duration_minutes, is_active, created_at, updated_at`

// Working hour rules

func (r *PgRepository) ListRulesByDoctor(ctx context.Context, doctorID uuid.UUID) ([]WorkingHourRule, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+ruleColumns+`
		FROM working_hour_rules
		WHERE doctor_id = $1
		ORDER BY day_of_week, start_minute
	`, doctorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRules(rows)
}

func (r *PgRepository) ListActiveRulesByDoctor(ctx context.Context, doctorID uuid.UUID) ([]WorkingHourRule, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+ruleColumns+`
		FROM working_hour_rules
		WHERE doctor_id = $1 AND is_active
		ORDER BY day_of_week
	`, doctorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRules(rows)
}

func collectRules(rows pgx.Rows) ([]WorkingHourRule, error) {
	var result []WorkingHourRule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *rule)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PgRepository) GetRuleByID(ctx context.Context, id uuid.UUID) (*WorkingHourRule, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+ruleColumns+`
		FROM working_hour_rules
		WHERE id = $1
	`, id)
	return scanRule(row)
}

func (r *PgRepository) GetActiveRule(ctx context.Context, doctorID uuid.UUID, dayOfWeek int) (*WorkingHourRule, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+ruleColumns+`
		FROM working_hour_rules
		WHERE doctor_id = $1 AND day_of_week = $2 AND is_active
	`, doctorID, dayOfWeek)

	rule, err := scanRule(row)
	if errors.Is(err, ErrRuleNotFound) {
		return nil, nil
	}
	return rule, err
}

func (r *PgRepository) CreateRule(ctx context.Context, rule *WorkingHourRule) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO working_hour_rules (id, doctor_id, day_of_week, start_minute, end_minute, slot_duration_minutes, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, rule.ID, rule.DoctorID, rule.DayOfWeek, int(rule.StartTime), int(rule.EndTime), rule.SlotDuration, rule.Active, rule.CreatedAt, rule.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateRule
		}
		return fmt.Errorf("insert rule: %w", err)
	}
	return nil
}

func (r *PgRepository) UpdateRule(ctx context.Context, rule *WorkingHourRule) (*WorkingHourRule, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE working_hour_rules
		SET day_of_week = $2,
		    start_minute = $3,
		    end_minute = $4,
		    slot_duration_minutes = $5,
		    is_active = $6,
		    updated_at = $7
		WHERE id = $1
		RETURNING `+ruleColumns+`
	`, rule.ID, rule.DayOfWeek, int(rule.StartTime), int(rule.EndTime), rule.SlotDuration, rule.Active, rule.UpdatedAt)
	return scanRule(row)
}

func (r *PgRepository) DeactivateRule(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE working_hour_rules
		SET is_active = false,
		    updated_at = now()
		WHERE id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("deactivate rule: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrRuleNotFound
	}
	return nil
}

// Off days

func (r *PgRepository) ListOffDays(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]OffDay, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, doctor_id, date, reason, created_at
		FROM off_days
		WHERE doctor_id = $1 AND date BETWEEN $2 AND $3
		ORDER BY date
	`, doctorID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []OffDay
	for rows.Next() {
		od, err := scanOffDay(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *od)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PgRepository) GetOffDay(ctx context.Context, doctorID uuid.UUID, date time.Time) (*OffDay, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, doctor_id, date, reason, created_at
		FROM off_days
		WHERE doctor_id = $1 AND date = $2
	`, doctorID, date)

	od, err := scanOffDay(row)
	if errors.Is(err, ErrOffDayNotFound) {
		return nil, nil
	}
	return od, err
}

func (r *PgRepository) CreateOffDay(ctx context.Context, offDay *OffDay) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO off_days (id, doctor_id, date, reason, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, offDay.ID, offDay.DoctorID, offDay.Date, offDay.Reason, offDay.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateOffDay
		}
		return fmt.Errorf("insert off day: %w", err)
	}
	return nil
}

func (r *PgRepository) DeleteOffDay(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM off_days WHERE id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("delete off day: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrOffDayNotFound
	}
	return nil
}

// Booking ledger

const slotColumns = `id, doctor_id, date, start_minute, end_minute, status, created_at`

func (r *PgRepository) ListSlotsInRange(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]SlotInstance, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+slotColumns+`
		FROM slot_instances
		WHERE doctor_id = $1 AND date BETWEEN $2 AND $3
		ORDER BY date, start_minute
	`, doctorID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []SlotInstance
	for rows.Next() {
		s, err := scanSlot(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PgRepository) GetSlotAt(ctx context.Context, doctorID uuid.UUID, date time.Time, start TimeOfDay) (*SlotInstance, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+slotColumns+`
		FROM slot_instances
		WHERE doctor_id = $1 AND date = $2 AND start_minute = $3
	`, doctorID, date, int(start))

	slot, err := scanSlot(row)
	if errors.Is(err, ErrSlotNotFound) {
		return nil, nil
	}
	return slot, err
}

func (r *PgRepository) GetSlotByID(ctx context.Context, id uuid.UUID) (*SlotInstance, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+slotColumns+`
		FROM slot_instances
		WHERE id = $1
	`, id)
	return scanSlot(row)
}

func (r *PgRepository) CreateBlockedSlot(ctx context.Context, slot *SlotInstance) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO slot_instances (id, doctor_id, date, start_minute, end_minute, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, slot.ID, slot.DoctorID, slot.Date, int(slot.StartTime), int(slot.EndTime), slot.Status, slot.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrSlotTaken
		}
		return fmt.Errorf("insert blocked slot: %w", err)
	}
	return nil
}

func (r *PgRepository) CreateBooking(ctx context.Context, slot *SlotInstance, appt *Appointment) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin booking tx: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO slot_instances (id, doctor_id, date, start_minute, end_minute, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, slot.ID, slot.DoctorID, slot.Date, int(slot.StartTime), int(slot.EndTime), slot.Status, slot.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrSlotTaken
		}
		return fmt.Errorf("insert booked slot: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO appointments (id, slot_id, doctor_id, date, start_minute, end_minute, patient_name, mobile_number, gender, source, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`, appt.ID, appt.SlotID, appt.DoctorID, appt.Date, int(appt.StartTime), int(appt.EndTime),
		appt.PatientName, appt.MobileNumber, appt.Gender, appt.Source, appt.Status, appt.CreatedAt, appt.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert appointment: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit booking tx: %w", err)
	}
	return nil
}

func (r *PgRepository) DeleteSlot(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM slot_instances WHERE id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("delete slot: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrSlotNotFound
	}
	return nil
}

// Appointments

const appointmentColumns = `id, slot_id, doctor_id, date, start_minute, end_minute, patient_name, mobile_number, gender, source, status, created_at, updated_at`

func (r *PgRepository) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) ListAppointmentsByDoctorDate(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE doctor_id = $1 AND date = $2
		ORDER BY start_minute
	`, doctorID, date)
	if err != nil {
		return nil, err
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
		return nil, err
	}
	return result, nil
}

func (r *PgRepository) UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to AppointmentStatus, releaseSlot bool) (*Appointment, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin status tx: %w", err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2,
		    updated_at = now()
		WHERE id = $1
		  AND status = $3
		RETURNING `+appointmentColumns+`
	`, id, to, from)

	appt, err := scanAppointment(row)
	if err != nil {
		return nil, err
	}

	if releaseSlot {
		if _, err := tx.Exec(ctx, `
			DELETE FROM slot_instances WHERE id = $1
		`, appt.SlotID); err != nil {
			return nil, fmt.Errorf("release slot: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit status tx: %w", err)
	}
	return appt, nil
}
