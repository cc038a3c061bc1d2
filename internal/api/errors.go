package api

import (
	"errors"
	"net/http"

	"github.com/clinicdesk/slot-scheduling/internal/schedule"
)

// Error codes on the wire. CONFLICT is load-bearing: the booking client
// re-prompts slot selection when it sees it, and treats everything else as a
// generic failure.
const (
	codeValidation   = "VALIDATION_ERROR"
	codeConflict     = "CONFLICT"
	codeNotFound     = "NOT_FOUND"
	codeInvalidState = "INVALID_STATE"
	codeInternal     = "INTERNAL"
)

func handleScheduleError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, schedule.ErrMissingField),
		errors.Is(err, schedule.ErrInvalidGender),
		errors.Is(err, schedule.ErrInvalidWindow),
		errors.Is(err, schedule.ErrInvalidTimeRange),
		errors.Is(err, schedule.ErrInvalidSlotDuration),
		errors.Is(err, schedule.ErrInvalidDayOfWeek):
		writeError(w, http.StatusBadRequest, codeValidation, err.Error())

	case errors.Is(err, schedule.ErrSlotTaken),
		errors.Is(err, schedule.ErrSlotContended),
		errors.Is(err, schedule.ErrLockNotAcquired),
		errors.Is(err, schedule.ErrDuplicateRule),
		errors.Is(err, schedule.ErrDuplicateOffDay):
		writeError(w, http.StatusConflict, codeConflict, err.Error())

	case errors.Is(err, schedule.ErrRuleNotFound),
		errors.Is(err, schedule.ErrOffDayNotFound),
		errors.Is(err, schedule.ErrSlotNotFound),
		errors.Is(err, schedule.ErrAppointmentNotFound):
		writeError(w, http.StatusNotFound, codeNotFound, err.Error())

	case errors.Is(err, schedule.ErrSlotNotBlocked),
		errors.Is(err, schedule.ErrInvalidTransition):
		writeError(w, http.StatusConflict, codeInvalidState, err.Error())

	default:
		writeError(w, http.StatusInternalServerError, codeInternal, err.Error())
	}
}
