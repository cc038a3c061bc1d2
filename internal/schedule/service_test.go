package schedule

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) (*Service, *MemoryRepository) {
	t.Helper()
	repo := NewMemoryRepository()
	return NewService(repo, NewLocalLocker(), zerolog.Nop()), repo
}

func bookingReq(doctorID uuid.UUID, date time.Time, start string) BookingRequest {
	s, _ := ParseTimeOfDay(start)
	return BookingRequest{
		DoctorID:     doctorID,
		Date:         date,
		StartTime:    s,
		PatientName:  "Asha Verma",
		MobileNumber: "9876543210",
		Gender:       "female",
		Source:       "walk-in",
	}
}

// failingLocker always reports the key as held.
type failingLocker struct{}

func (failingLocker) WithLock(context.Context, string, func(ctx context.Context) error) error {
	return ErrLockNotAcquired
}

func TestBookRoundTrip(t *testing.T) {
	svc, repo := newTestService(t)
	doctorID := uuid.New()
	mustRule(t, repo, doctorID, 1, "09:00", "12:00", 30)
	ctx := context.Background()

	days, err := svc.Availability(ctx, doctorID, monday, monday)
	require.NoError(t, err)
	require.Len(t, days, 1)
	require.Len(t, days[0].Slots, 6)

	// Any window availability returns must book successfully.
	window := days[0].Slots[2]
	appt, err := svc.Book(ctx, bookingReq(doctorID, monday, window.StartTime.String()))
	require.NoError(t, err)
	assert.Equal(t, AppointmentScheduled, appt.Status)
	assert.Equal(t, window.StartTime, appt.StartTime)
	assert.Equal(t, window.EndTime, appt.EndTime)
	assert.NotEqual(t, uuid.Nil, appt.SlotID)

	// The booked window disappears from the next query.
	days, err = svc.Availability(ctx, doctorID, monday, monday)
	require.NoError(t, err)
	assert.Len(t, days[0].Slots, 5)
	assert.NotContains(t, slotStarts(days[0]), window.StartTime.String())

	// Re-booking the same window is a conflict.
	_, err = svc.Book(ctx, bookingReq(doctorID, monday, window.StartTime.String()))
	assert.ErrorIs(t, err, ErrSlotTaken)
}

func TestBookMutualExclusion(t *testing.T) {
	svc, repo := newTestService(t)
	doctorID := uuid.New()
	mustRule(t, repo, doctorID, 1, "09:00", "12:00", 30)

	const racers = 8
	results := make(chan error, racers)

	var wg sync.WaitGroup
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Book(context.Background(), bookingReq(doctorID, monday, "09:30"))
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var wins, conflicts int
	for err := range results {
		switch {
		case err == nil:
			wins++
		case assert.ErrorIs(t, err, ErrSlotTaken):
			conflicts++
		}
	}
	assert.Equal(t, 1, wins, "exactly one booking must commit")
	assert.Equal(t, racers-1, conflicts)
}

func TestBookValidation(t *testing.T) {
	svc, repo := newTestService(t)
	doctorID := uuid.New()
	mustRule(t, repo, doctorID, 1, "09:00", "12:00", 30)
	ctx := context.Background()

	req := bookingReq(doctorID, monday, "09:00")
	req.PatientName = "  "
	_, err := svc.Book(ctx, req)
	assert.ErrorIs(t, err, ErrMissingField)

	req = bookingReq(doctorID, monday, "09:00")
	req.MobileNumber = ""
	_, err = svc.Book(ctx, req)
	assert.ErrorIs(t, err, ErrMissingField)

	req = bookingReq(doctorID, monday, "09:00")
	req.Gender = "unknown"
	_, err = svc.Book(ctx, req)
	assert.ErrorIs(t, err, ErrInvalidGender)

	req = bookingReq(doctorID, monday, "09:00")
	req.Gender = " Female "
	_, err = svc.Book(ctx, req)
	assert.NoError(t, err, "gender comparison is case-insensitive")

	// Start that is not on the slot grid.
	_, err = svc.Book(ctx, bookingReq(doctorID, monday, "09:10"))
	assert.ErrorIs(t, err, ErrInvalidWindow)
}

func TestBookContendedLock(t *testing.T) {
	repo := NewMemoryRepository()
	svc := NewService(repo, failingLocker{}, zerolog.Nop())
	doctorID := uuid.New()
	mustRule(t, repo, doctorID, 1, "09:00", "12:00", 30)

	_, err := svc.Book(context.Background(), bookingReq(doctorID, monday, "09:00"))
	assert.ErrorIs(t, err, ErrSlotContended)
}

func TestBlockUnblockLifecycle(t *testing.T) {
	svc, repo := newTestService(t)
	doctorID := uuid.New()
	mustRule(t, repo, doctorID, 1, "09:00", "12:00", 30)
	ctx := context.Background()

	start, _ := ParseTimeOfDay("10:00")
	slot, err := svc.Block(ctx, doctorID, monday, start)
	require.NoError(t, err)
	assert.Equal(t, SlotBlocked, slot.Status)

	// Blocked windows are gone from availability and conflict on booking.
	days, err := svc.Availability(ctx, doctorID, monday, monday)
	require.NoError(t, err)
	assert.NotContains(t, slotStarts(days[0]), "10:00")

	_, err = svc.Book(ctx, bookingReq(doctorID, monday, "10:00"))
	assert.ErrorIs(t, err, ErrSlotTaken)

	_, err = svc.Block(ctx, doctorID, monday, start)
	assert.ErrorIs(t, err, ErrSlotTaken)

	// Unblocking restores the window.
	require.NoError(t, svc.Unblock(ctx, slot.ID))
	days, err = svc.Availability(ctx, doctorID, monday, monday)
	require.NoError(t, err)
	assert.Contains(t, slotStarts(days[0]), "10:00")

	err = svc.Unblock(ctx, slot.ID)
	assert.ErrorIs(t, err, ErrSlotNotFound)
}

func TestUnblockRefusesBookedSlot(t *testing.T) {
	svc, repo := newTestService(t)
	doctorID := uuid.New()
	mustRule(t, repo, doctorID, 1, "09:00", "12:00", 30)
	ctx := context.Background()

	appt, err := svc.Book(ctx, bookingReq(doctorID, monday, "09:00"))
	require.NoError(t, err)

	err = svc.Unblock(ctx, appt.SlotID)
	assert.ErrorIs(t, err, ErrSlotNotBlocked)
}

func TestCreateRuleValidation(t *testing.T) {
	svc, _ := newTestService(t)
	doctorID := uuid.New()
	ctx := context.Background()
	nine, _ := ParseTimeOfDay("09:00")
	noon, _ := ParseTimeOfDay("12:00")

	_, err := svc.CreateRule(ctx, RuleInput{DoctorID: doctorID, DayOfWeek: 7, StartTime: nine, EndTime: noon})
	assert.ErrorIs(t, err, ErrInvalidDayOfWeek)

	_, err = svc.CreateRule(ctx, RuleInput{DoctorID: doctorID, DayOfWeek: 1, StartTime: noon, EndTime: nine})
	assert.ErrorIs(t, err, ErrInvalidTimeRange)

	_, err = svc.CreateRule(ctx, RuleInput{DoctorID: doctorID, DayOfWeek: 1, StartTime: nine, EndTime: noon, SlotDuration: -5})
	assert.ErrorIs(t, err, ErrInvalidSlotDuration)

	rule, err := svc.CreateRule(ctx, RuleInput{DoctorID: doctorID, DayOfWeek: 1, StartTime: nine, EndTime: noon})
	require.NoError(t, err)
	assert.Equal(t, DefaultSlotDuration, rule.SlotDuration)
	assert.True(t, rule.Active)

	// Second active rule for the same weekday is rejected.
	_, err = svc.CreateRule(ctx, RuleInput{DoctorID: doctorID, DayOfWeek: 1, StartTime: nine, EndTime: noon})
	assert.ErrorIs(t, err, ErrDuplicateRule)

	// After deactivation a fresh rule may take the weekday.
	require.NoError(t, svc.DeactivateRule(ctx, rule.ID))
	_, err = svc.CreateRule(ctx, RuleInput{DoctorID: doctorID, DayOfWeek: 1, StartTime: nine, EndTime: noon})
	assert.NoError(t, err)

	rules, err := svc.ListRules(ctx, doctorID)
	require.NoError(t, err)
	assert.Len(t, rules, 2, "deactivated rules stay on record")
}

func TestUpdateRule(t *testing.T) {
	svc, _ := newTestService(t)
	doctorID := uuid.New()
	ctx := context.Background()
	nine, _ := ParseTimeOfDay("09:00")
	noon, _ := ParseTimeOfDay("12:00")
	five, _ := ParseTimeOfDay("17:00")

	rule, err := svc.CreateRule(ctx, RuleInput{DoctorID: doctorID, DayOfWeek: 1, StartTime: nine, EndTime: noon})
	require.NoError(t, err)

	updated, err := svc.UpdateRule(ctx, rule.ID, RulePatch{EndTime: &five})
	require.NoError(t, err)
	assert.Equal(t, five, updated.EndTime)
	assert.Equal(t, nine, updated.StartTime)

	_, err = svc.UpdateRule(ctx, rule.ID, RulePatch{StartTime: &five, EndTime: &noon})
	assert.ErrorIs(t, err, ErrInvalidTimeRange)

	// Moving to a weekday that already has an active rule is a conflict.
	other, err := svc.CreateRule(ctx, RuleInput{DoctorID: doctorID, DayOfWeek: 2, StartTime: nine, EndTime: noon})
	require.NoError(t, err)
	dow := 1
	_, err = svc.UpdateRule(ctx, other.ID, RulePatch{DayOfWeek: &dow})
	assert.ErrorIs(t, err, ErrDuplicateRule)

	_, err = svc.UpdateRule(ctx, uuid.New(), RulePatch{})
	assert.ErrorIs(t, err, ErrRuleNotFound)
}

func TestOffDays(t *testing.T) {
	svc, _ := newTestService(t)
	doctorID := uuid.New()
	ctx := context.Background()

	od, err := svc.CreateOffDay(ctx, doctorID, monday, "conference")
	require.NoError(t, err)

	_, err = svc.CreateOffDay(ctx, doctorID, monday, "again")
	assert.ErrorIs(t, err, ErrDuplicateOffDay)

	listed, err := svc.ListOffDays(ctx, doctorID, monday, monday.AddDate(0, 0, 7))
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, "conference", listed[0].Reason)

	require.NoError(t, svc.DeleteOffDay(ctx, od.ID))
	err = svc.DeleteOffDay(ctx, od.ID)
	assert.ErrorIs(t, err, ErrOffDayNotFound)
}

func TestCancelAppointmentFreesSlot(t *testing.T) {
	svc, repo := newTestService(t)
	doctorID := uuid.New()
	mustRule(t, repo, doctorID, 1, "09:00", "12:00", 30)
	ctx := context.Background()

	appt, err := svc.Book(ctx, bookingReq(doctorID, monday, "09:30"))
	require.NoError(t, err)

	cancelled, err := svc.CancelAppointment(ctx, appt.ID)
	require.NoError(t, err)
	assert.Equal(t, AppointmentCancelled, cancelled.Status)

	// The window is bookable again.
	days, err := svc.Availability(ctx, doctorID, monday, monday)
	require.NoError(t, err)
	assert.Contains(t, slotStarts(days[0]), "09:30")

	_, err = svc.Book(ctx, bookingReq(doctorID, monday, "09:30"))
	assert.NoError(t, err)

	// A cancelled appointment cannot be cancelled or completed again.
	_, err = svc.CancelAppointment(ctx, appt.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	_, err = svc.CompleteAppointment(ctx, appt.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestCompleteAppointmentKeepsSlot(t *testing.T) {
	svc, repo := newTestService(t)
	doctorID := uuid.New()
	mustRule(t, repo, doctorID, 1, "09:00", "12:00", 30)
	ctx := context.Background()

	appt, err := svc.Book(ctx, bookingReq(doctorID, monday, "11:00"))
	require.NoError(t, err)

	done, err := svc.CompleteAppointment(ctx, appt.ID)
	require.NoError(t, err)
	assert.Equal(t, AppointmentCompleted, done.Status)

	// Completion does not release the window.
	days, err := svc.Availability(ctx, doctorID, monday, monday)
	require.NoError(t, err)
	assert.NotContains(t, slotStarts(days[0]), "11:00")
}

func TestListAppointments(t *testing.T) {
	svc, repo := newTestService(t)
	doctorID := uuid.New()
	mustRule(t, repo, doctorID, 1, "09:00", "12:00", 30)
	ctx := context.Background()

	first, err := svc.Book(ctx, bookingReq(doctorID, monday, "10:00"))
	require.NoError(t, err)
	_, err = svc.Book(ctx, bookingReq(doctorID, monday, "09:00"))
	require.NoError(t, err)

	appts, err := svc.ListAppointments(ctx, doctorID, monday)
	require.NoError(t, err)
	require.Len(t, appts, 2)
	assert.Equal(t, "09:00", appts[0].StartTime.String(), "sorted by start time")

	got, err := svc.GetAppointment(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, got.ID)

	_, err = svc.GetAppointment(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrAppointmentNotFound)
}
