package schedule

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// DefaultSlotDuration applies when a rule is created without an explicit
// slot duration.
const DefaultSlotDuration = 30

var (
	ErrInvalidTimeRange    = errors.New("start_time must be before end_time")
	ErrInvalidSlotDuration = errors.New("slot_duration_minutes must be positive")
	ErrInvalidDayOfWeek    = errors.New("day_of_week must be between 0 and 6")
	ErrInvalidWindow       = errors.New("requested window is not bookable")
	ErrMissingField        = errors.New("missing required field")
	ErrInvalidGender       = errors.New("invalid gender")

	// ErrSlotContended means the per-key lock was held by another writer.
	// Indistinguishable from a lost race as far as the caller is concerned.
	ErrSlotContended = errors.New("slot is currently being committed, pick again or retry")

	ErrSlotNotBlocked    = errors.New("slot is not blocked")
	ErrInvalidTransition = errors.New("invalid appointment status transition")
)

var validGenders = map[string]bool{
	"male": true, "female": true, "other": true,
}

type BookingRequest struct {
	DoctorID     uuid.UUID
	Date         time.Time
	StartTime    TimeOfDay
	PatientName  string
	MobileNumber string
	Gender       string
	Source       string
}

// Service is the write path of the engine: it owns every mutation of the
// booking ledger and the schedule configuration. Availability reads are
// delegated to the Calculator.
type Service struct {
	repo   Repository
	calc   *Calculator
	locker Locker
	log    zerolog.Logger
}

func NewService(repo Repository, locker Locker, log zerolog.Logger) *Service {
	return &Service{
		repo:   repo,
		calc:   NewCalculator(repo),
		locker: locker,
		log:    log,
	}
}

func (s *Service) Availability(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]DayAvailability, error) {
	return s.calc.ComputeAvailability(ctx, doctorID, from, to)
}

// Book commits one window for a patient. The availability the caller saw is
// advisory; the ledger is re-checked inside the per-key lock because another
// booking may have landed since.
func (s *Service) Book(ctx context.Context, req BookingRequest) (*Appointment, error) {
	if err := validateBookingRequest(&req); err != nil {
		return nil, err
	}

	date := Day(req.Date)
	window, err := s.calc.WindowAt(ctx, req.DoctorID, date, req.StartTime)
	if err != nil {
		return nil, err
	}

	var created *Appointment

	err = s.locker.WithLock(ctx, LockKey(req.DoctorID, date, req.StartTime), func(lockCtx context.Context) error {
		existing, err := s.repo.GetSlotAt(lockCtx, req.DoctorID, date, req.StartTime)
		if err != nil {
			return fmt.Errorf("check ledger: %w", err)
		}
		if existing != nil {
			return ErrSlotTaken
		}

		now := time.Now().UTC()
		slot := &SlotInstance{
			ID:        uuid.New(),
			DoctorID:  req.DoctorID,
			Date:      date,
			StartTime: window.StartTime,
			EndTime:   window.EndTime,
			Status:    SlotBooked,
			CreatedAt: now,
		}
		appt := &Appointment{
			ID:           uuid.New(),
			SlotID:       slot.ID,
			DoctorID:     req.DoctorID,
			Date:         date,
			StartTime:    window.StartTime,
			EndTime:      window.EndTime,
			PatientName:  req.PatientName,
			MobileNumber: req.MobileNumber,
			Gender:       req.Gender,
			Source:       req.Source,
			Status:       AppointmentScheduled,
			CreatedAt:    now,
			UpdatedAt:    now,
		}

		if err := s.repo.CreateBooking(lockCtx, slot, appt); err != nil {
			return fmt.Errorf("create booking: %w", err)
		}

		created = appt
		return nil
	})

	if err != nil {
		if errors.Is(err, ErrLockNotAcquired) {
			return nil, ErrSlotContended
		}
		if errors.Is(err, ErrSlotTaken) {
			s.log.Info().
				Str("doctor_id", req.DoctorID.String()).
				Str("date", FormatISODate(date)).
				Str("start_time", req.StartTime.String()).
				Msg("booking lost slot race")
			return nil, ErrSlotTaken
		}
		return nil, err
	}

	s.log.Info().
		Str("appointment_id", created.ID.String()).
		Str("doctor_id", req.DoctorID.String()).
		Str("date", FormatISODate(date)).
		Str("start_time", req.StartTime.String()).
		Msg("appointment booked")

	return created, nil
}

// Block places a manual staff hold on a window. Same race-checked insert as
// Book, no appointment created.
func (s *Service) Block(ctx context.Context, doctorID uuid.UUID, date time.Time, start TimeOfDay) (*SlotInstance, error) {
	date = Day(date)
	window, err := s.calc.WindowAt(ctx, doctorID, date, start)
	if err != nil {
		return nil, err
	}

	var created *SlotInstance

	err = s.locker.WithLock(ctx, LockKey(doctorID, date, start), func(lockCtx context.Context) error {
		existing, err := s.repo.GetSlotAt(lockCtx, doctorID, date, start)
		if err != nil {
			return fmt.Errorf("check ledger: %w", err)
		}
		if existing != nil {
			return ErrSlotTaken
		}

		slot := &SlotInstance{
			ID:        uuid.New(),
			DoctorID:  doctorID,
			Date:      date,
			StartTime: window.StartTime,
			EndTime:   window.EndTime,
			Status:    SlotBlocked,
			CreatedAt: time.Now().UTC(),
		}
		if err := s.repo.CreateBlockedSlot(lockCtx, slot); err != nil {
			return fmt.Errorf("create blocked slot: %w", err)
		}

		created = slot
		return nil
	})

	if err != nil {
		if errors.Is(err, ErrLockNotAcquired) {
			return nil, ErrSlotContended
		}
		return nil, err
	}

	s.log.Info().
		Str("slot_id", created.ID.String()).
		Str("doctor_id", doctorID.String()).
		Str("date", FormatISODate(date)).
		Str("start_time", start.String()).
		Msg("slot blocked")

	return created, nil
}

// Unblock removes a BLOCKED instance, returning its window to the available
// pool. BOOKED instances are never released this way; their lifecycle runs
// through the appointment status transitions.
func (s *Service) Unblock(ctx context.Context, slotID uuid.UUID) error {
	slot, err := s.repo.GetSlotByID(ctx, slotID)
	if err != nil {
		return fmt.Errorf("load slot: %w", err)
	}
	if slot.Status != SlotBlocked {
		return ErrSlotNotBlocked
	}
	if err := s.repo.DeleteSlot(ctx, slotID); err != nil {
		return fmt.Errorf("delete slot: %w", err)
	}

	s.log.Info().
		Str("slot_id", slotID.String()).
		Str("doctor_id", slot.DoctorID.String()).
		Msg("slot unblocked")

	return nil
}

// -- Working hour rules --

type RuleInput struct {
	DoctorID     uuid.UUID
	DayOfWeek    int
	StartTime    TimeOfDay
	EndTime      TimeOfDay
	SlotDuration int // 0 means DefaultSlotDuration
}

func (s *Service) CreateRule(ctx context.Context, in RuleInput) (*WorkingHourRule, error) {
	if in.SlotDuration == 0 {
		in.SlotDuration = DefaultSlotDuration
	}
	if err := validateRule(in.DayOfWeek, in.StartTime, in.EndTime, in.SlotDuration); err != nil {
		return nil, err
	}

	existing, err := s.repo.GetActiveRule(ctx, in.DoctorID, in.DayOfWeek)
	if err != nil {
		return nil, fmt.Errorf("check existing rule: %w", err)
	}
	if existing != nil {
		return nil, ErrDuplicateRule
	}

	now := time.Now().UTC()
	rule := &WorkingHourRule{
		ID:           uuid.New(),
		DoctorID:     in.DoctorID,
		DayOfWeek:    in.DayOfWeek,
		StartTime:    in.StartTime,
		EndTime:      in.EndTime,
		SlotDuration: in.SlotDuration,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.CreateRule(ctx, rule); err != nil {
		return nil, fmt.Errorf("create rule: %w", err)
	}
	return rule, nil
}

type RulePatch struct {
	DayOfWeek    *int
	StartTime    *TimeOfDay
	EndTime      *TimeOfDay
	SlotDuration *int
	Active       *bool
}

func (s *Service) UpdateRule(ctx context.Context, id uuid.UUID, patch RulePatch) (*WorkingHourRule, error) {
	rule, err := s.repo.GetRuleByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load rule: %w", err)
	}

	if patch.DayOfWeek != nil {
		rule.DayOfWeek = *patch.DayOfWeek
	}
	if patch.StartTime != nil {
		rule.StartTime = *patch.StartTime
	}
	if patch.EndTime != nil {
		rule.EndTime = *patch.EndTime
	}
	if patch.SlotDuration != nil {
		rule.SlotDuration = *patch.SlotDuration
	}
	if patch.Active != nil {
		rule.Active = *patch.Active
	}

	if err := validateRule(rule.DayOfWeek, rule.StartTime, rule.EndTime, rule.SlotDuration); err != nil {
		return nil, err
	}

	if rule.Active {
		other, err := s.repo.GetActiveRule(ctx, rule.DoctorID, rule.DayOfWeek)
		if err != nil {
			return nil, fmt.Errorf("check existing rule: %w", err)
		}
		if other != nil && other.ID != rule.ID {
			return nil, ErrDuplicateRule
		}
	}

	rule.UpdatedAt = time.Now().UTC()
	return s.repo.UpdateRule(ctx, rule)
}

// DeactivateRule is the delete operation for rules. Rules referenced by
// booking history must survive, so the row stays and only is_active flips.
func (s *Service) DeactivateRule(ctx context.Context, id uuid.UUID) error {
	return s.repo.DeactivateRule(ctx, id)
}

func (s *Service) ListRules(ctx context.Context, doctorID uuid.UUID) ([]WorkingHourRule, error) {
	return s.repo.ListRulesByDoctor(ctx, doctorID)
}

// -- Off days --

func (s *Service) CreateOffDay(ctx context.Context, doctorID uuid.UUID, date time.Time, reason string) (*OffDay, error) {
	date = Day(date)

	existing, err := s.repo.GetOffDay(ctx, doctorID, date)
	if err != nil {
		return nil, fmt.Errorf("check existing off day: %w", err)
	}
	if existing != nil {
		return nil, ErrDuplicateOffDay
	}

	offDay := &OffDay{
		ID:        uuid.New(),
		DoctorID:  doctorID,
		Date:      date,
		Reason:    reason,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.repo.CreateOffDay(ctx, offDay); err != nil {
		return nil, fmt.Errorf("create off day: %w", err)
	}
	return offDay, nil
}

func (s *Service) DeleteOffDay(ctx context.Context, id uuid.UUID) error {
	return s.repo.DeleteOffDay(ctx, id)
}

func (s *Service) ListOffDays(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]OffDay, error) {
	return s.repo.ListOffDays(ctx, doctorID, Day(from), Day(to))
}

// -- Appointments --

func (s *Service) GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.repo.GetAppointmentByID(ctx, id)
}

func (s *Service) ListAppointments(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]Appointment, error) {
	return s.repo.ListAppointmentsByDoctorDate(ctx, doctorID, Day(date))
}

// CancelAppointment moves a scheduled appointment to cancelled and releases
// the backing slot in the same transaction, so the window reappears in
// availability immediately.
func (s *Service) CancelAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load appointment: %w", err)
	}
	if appt.Status != AppointmentScheduled {
		return nil, ErrInvalidTransition
	}

	updated, err := s.repo.UpdateAppointmentStatus(ctx, id, AppointmentScheduled, AppointmentCancelled, true)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			// Status changed between the read and the compare-and-set.
			return nil, ErrInvalidTransition
		}
		return nil, fmt.Errorf("cancel appointment: %w", err)
	}

	s.log.Info().
		Str("appointment_id", id.String()).
		Str("doctor_id", appt.DoctorID.String()).
		Msg("appointment cancelled, slot released")

	return updated, nil
}

// CompleteAppointment marks a visit done. The slot stays consumed; the
// window belongs to the past either way.
func (s *Service) CompleteAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load appointment: %w", err)
	}
	if appt.Status != AppointmentScheduled {
		return nil, ErrInvalidTransition
	}

	updated, err := s.repo.UpdateAppointmentStatus(ctx, id, AppointmentScheduled, AppointmentCompleted, false)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, ErrInvalidTransition
		}
		return nil, fmt.Errorf("complete appointment: %w", err)
	}
	return updated, nil
}

func validateRule(dayOfWeek int, start, end TimeOfDay, duration int) error {
	if dayOfWeek < 0 || dayOfWeek > 6 {
		return ErrInvalidDayOfWeek
	}
	if start >= end {
		return ErrInvalidTimeRange
	}
	if duration <= 0 {
		return ErrInvalidSlotDuration
	}
	return nil
}

func validateBookingRequest(req *BookingRequest) error {
	req.PatientName = strings.TrimSpace(req.PatientName)
	req.MobileNumber = strings.TrimSpace(req.MobileNumber)
	req.Gender = strings.ToLower(strings.TrimSpace(req.Gender))

	if req.DoctorID == uuid.Nil {
		return fmt.Errorf("%w: doctor_id", ErrMissingField)
	}
	if req.PatientName == "" {
		return fmt.Errorf("%w: name", ErrMissingField)
	}
	if req.MobileNumber == "" {
		return fmt.Errorf("%w: mobile_number", ErrMissingField)
	}
	if req.Gender == "" {
		return fmt.Errorf("%w: gender", ErrMissingField)
	}
	if !validGenders[req.Gender] {
		return fmt.Errorf("%w: %s", ErrInvalidGender, req.Gender)
	}
	return nil
}
