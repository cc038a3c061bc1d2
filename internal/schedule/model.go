package schedule

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type SlotStatus string

const (
	SlotBooked  SlotStatus = "BOOKED"
	SlotBlocked SlotStatus = "BLOCKED"
)

type AppointmentStatus string

const (
	AppointmentScheduled AppointmentStatus = "SCHEDULED"
	AppointmentCancelled AppointmentStatus = "CANCELLED"
	AppointmentCompleted AppointmentStatus = "COMPLETED"
)

// TimeOfDay is a clock time expressed as minutes since midnight.
// It exists so slot arithmetic stays integer math instead of juggling
// time.Time values pinned to arbitrary dates.
type TimeOfDay int

// ParseTimeOfDay accepts "HH:MM" or "HH:MM:SS". Seconds are accepted on the
// wire but discarded; slot boundaries are minute-aligned.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	var h, m, sec int
	switch len(s) {
	case 5:
		if _, err := fmt.Sscanf(s, "%2d:%2d", &h, &m); err != nil {
			return 0, fmt.Errorf("invalid time %q", s)
		}
	case 8:
		if _, err := fmt.Sscanf(s, "%2d:%2d:%2d", &h, &m, &sec); err != nil {
			return 0, fmt.Errorf("invalid time %q", s)
		}
	default:
		return 0, fmt.Errorf("invalid time %q", s)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 || sec < 0 || sec > 59 {
		return 0, fmt.Errorf("invalid time %q", s)
	}
	return TimeOfDay(h*60 + m), nil
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", int(t)/60, int(t)%60)
}

func (t TimeOfDay) Add(minutes int) TimeOfDay {
	return t + TimeOfDay(minutes)
}

func (t TimeOfDay) MarshalJSON() ([]byte, error) {
	return []byte(`"` + t.String() + `"`), nil
}

func (t *TimeOfDay) UnmarshalJSON(b []byte) error {
	if len(b) < 2 || b[0] != '"' || b[len(b)-1] != '"' {
		return fmt.Errorf("invalid time %s", b)
	}
	parsed, err := ParseTimeOfDay(string(b[1 : len(b)-1]))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

const isoDateLayout = "2006-01-02"

// Day normalizes a timestamp to its UTC calendar date. All dates held by this
// package are Day-normalized so map keys and equality checks behave.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseISODate parses a YYYY-MM-DD calendar date.
func ParseISODate(s string) (time.Time, error) {
	t, err := time.Parse(isoDateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q", s)
	}
	return t, nil
}

func FormatISODate(t time.Time) string {
	return t.UTC().Format(isoDateLayout)
}

// WorkingHourRule is a doctor's recurring weekly availability for one weekday.
// At most one active rule may exist per (doctor, weekday). Rules are never
// physically deleted once created, only deactivated.
type WorkingHourRule struct {
	ID           uuid.UUID
	DoctorID     uuid.UUID
	DayOfWeek    int // 0=Sunday .. 6=Saturday, matching time.Weekday
	StartTime    TimeOfDay
	EndTime      TimeOfDay
	SlotDuration int // minutes
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// OffDay is a date-specific full-day exclusion overriding any rule.
type OffDay struct {
	ID        uuid.UUID
	DoctorID  uuid.UUID
	Date      time.Time
	Reason    string
	CreatedAt time.Time
}

// SlotInstance is one committed entry in the booking ledger. It is the
// conflict-detection surface: at most one instance may exist per
// (doctor, date, start_time).
type SlotInstance struct {
	ID        uuid.UUID
	DoctorID  uuid.UUID
	Date      time.Time
	StartTime TimeOfDay
	EndTime   TimeOfDay
	Status    SlotStatus
	CreatedAt time.Time
}

type Appointment struct {
	ID           uuid.UUID
	SlotID       uuid.UUID
	DoctorID     uuid.UUID
	Date         time.Time
	StartTime    TimeOfDay
	EndTime      TimeOfDay
	PatientName  string
	MobileNumber string
	Gender       string
	Source       string
	Status       AppointmentStatus
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// AvailableWindow is a derived bookable window. Never persisted; recomputed
// on every availability query.
type AvailableWindow struct {
	StartTime TimeOfDay
	EndTime   TimeOfDay
}

// DayAvailability is one day's worth of bookable windows.
type DayAvailability struct {
	Date      time.Time
	DayOfWeek int
	Slots     []AvailableWindow
}

// slotKey identifies a ledger position within one doctor's calendar.
func slotKey(date time.Time, start TimeOfDay) string {
	return FormatISODate(date) + "|" + start.String()
}

// LockKey is the serialization key guarding the check-then-insert write path
// for one (doctor, date, start_time) position.
func LockKey(doctorID uuid.UUID, date time.Time, start TimeOfDay) string {
	return fmt.Sprintf("lock:slot:%s:%s:%s", doctorID, FormatISODate(date), start)
}
