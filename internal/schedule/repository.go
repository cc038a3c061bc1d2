package schedule

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrRuleNotFound        = errors.New("working hour rule not found")
	ErrOffDayNotFound      = errors.New("off day not found")
	ErrSlotNotFound        = errors.New("slot not found")
	ErrAppointmentNotFound = errors.New("appointment not found")

	// ErrSlotTaken is returned when a ledger insert loses the race for a
	// (doctor, date, start_time) position.
	ErrSlotTaken       = errors.New("slot already booked or blocked")
	ErrDuplicateRule   = errors.New("active rule already exists for this day of week")
	ErrDuplicateOffDay = errors.New("off day already exists for this date")
)

// Repository contains all store interactions needed by the engine: the
// working-hour rules, the off-day exceptions and the booking ledger. They
// share one interface because booking commits a ledger entry and an
// appointment in a single transaction.
type Repository interface {
	// Working hour rules
	ListRulesByDoctor(ctx context.Context, doctorID uuid.UUID) ([]WorkingHourRule, error)
	ListActiveRulesByDoctor(ctx context.Context, doctorID uuid.UUID) ([]WorkingHourRule, error)
	GetRuleByID(ctx context.Context, id uuid.UUID) (*WorkingHourRule, error)
	// GetActiveRule returns (nil, nil) when the doctor has no active rule
	// for that weekday; absence is a normal answer on the read path.
	GetActiveRule(ctx context.Context, doctorID uuid.UUID, dayOfWeek int) (*WorkingHourRule, error)
	CreateRule(ctx context.Context, rule *WorkingHourRule) error
	UpdateRule(ctx context.Context, rule *WorkingHourRule) (*WorkingHourRule, error)
	DeactivateRule(ctx context.Context, id uuid.UUID) error

	// Off days
	ListOffDays(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]OffDay, error)
	// GetOffDay returns (nil, nil) when the date is not an off day.
	GetOffDay(ctx context.Context, doctorID uuid.UUID, date time.Time) (*OffDay, error)
	CreateOffDay(ctx context.Context, offDay *OffDay) error
	DeleteOffDay(ctx context.Context, id uuid.UUID) error

	// Booking ledger
	ListSlotsInRange(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]SlotInstance, error)
	// GetSlotAt returns (nil, nil) when the position is free.
	GetSlotAt(ctx context.Context, doctorID uuid.UUID, date time.Time, start TimeOfDay) (*SlotInstance, error)
	GetSlotByID(ctx context.Context, id uuid.UUID) (*SlotInstance, error)
	// CreateBlockedSlot inserts a BLOCKED instance; ErrSlotTaken if the
	// position is occupied.
	CreateBlockedSlot(ctx context.Context, slot *SlotInstance) error
	// CreateBooking atomically inserts the BOOKED slot instance and its
	// appointment; both succeed or both fail. ErrSlotTaken if the position
	// is occupied.
	CreateBooking(ctx context.Context, slot *SlotInstance, appt *Appointment) error
	DeleteSlot(ctx context.Context, id uuid.UUID) error

	// Appointments
	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	ListAppointmentsByDoctorDate(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]Appointment, error)
	// UpdateAppointmentStatus performs a compare-and-set from one status to
	// another; ErrAppointmentNotFound if the appointment is missing or not
	// in the expected status. When releaseSlot is true the backing
	// SlotInstance is removed in the same transaction.
	UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to AppointmentStatus, releaseSlot bool) (*Appointment, error)
}
