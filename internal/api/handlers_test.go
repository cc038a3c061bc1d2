package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinicdesk/slot-scheduling/internal/schedule"
)

// 2025-06-02 is a Monday; on the wire that is 02-06-2025.
const (
	wireMonday  = "02-06-2025"
	wireTuesday = "03-06-2025"
)

func newTestServer(t *testing.T) (*httptest.Server, *schedule.MemoryRepository) {
	t.Helper()

	repo := schedule.NewMemoryRepository()
	svc := schedule.NewService(repo, schedule.NewLocalLocker(), zerolog.Nop())

	router := NewRouter(RouterConfig{
		Service:        svc,
		Logger:         zerolog.Nop(),
		Env:            "test",
		Version:        "test",
		AllowedOrigins: []string{"*"},
	})

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv, repo
}

func seedMondayRule(t *testing.T, repo *schedule.MemoryRepository, doctorID uuid.UUID) {
	t.Helper()

	start, err := schedule.ParseTimeOfDay("09:00")
	require.NoError(t, err)
	end, err := schedule.ParseTimeOfDay("12:00")
	require.NoError(t, err)

	require.NoError(t, repo.CreateRule(context.Background(), &schedule.WorkingHourRule{
		ID:           uuid.New(),
		DoctorID:     doctorID,
		DayOfWeek:    1,
		StartTime:    start,
		EndTime:      end,
		SlotDuration: 30,
		Active:       true,
		CreatedAt:    time.Now().UTC(),
		UpdatedAt:    time.Now().UTC(),
	}))
}

func doJSON(t *testing.T, method, url string, body any) (*http.Response, []byte) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	return resp, buf.Bytes()
}

func bookBody(doctorID uuid.UUID, date, start string) map[string]string {
	return map[string]string{
		"doctor_id":     doctorID.String(),
		"date":          date,
		"start_time":    start,
		"name":          "Asha Verma",
		"mobile_number": "9876543210",
		"gender":        "female",
		"source":        "web",
	}
}

func TestAvailabilityEndpoint(t *testing.T) {
	srv, repo := newTestServer(t)
	doctorID := uuid.New()
	seedMondayRule(t, repo, doctorID)

	resp, body := doJSON(t, http.MethodGet, fmt.Sprintf(
		"%s/slots/available?doctor_id=%s&start_date=%s&end_date=%s",
		srv.URL, doctorID, wireMonday, wireTuesday), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out AvailabilityResponse
	require.NoError(t, json.Unmarshal(body, &out))

	assert.Equal(t, doctorID, out.DoctorID)
	assert.Equal(t, wireMonday, out.StartDate)
	assert.Equal(t, wireTuesday, out.EndDate)
	require.Len(t, out.Days, 2)

	mon := out.Days[0]
	assert.Equal(t, wireMonday, mon.Date)
	assert.Equal(t, 1, mon.DayOfWeek)
	require.Len(t, mon.Slots, 6)
	assert.Equal(t, "09:00", mon.Slots[0].StartTime)
	assert.Equal(t, "09:30", mon.Slots[0].EndTime)
	assert.Equal(t, "AVAILABLE", mon.Slots[0].Status)

	// No rule on Tuesday: present but empty, never omitted.
	assert.Equal(t, wireTuesday, out.Days[1].Date)
	assert.Empty(t, out.Days[1].Slots)
}

func TestAvailabilityRejectsBadParams(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, body := doJSON(t, http.MethodGet,
		srv.URL+"/slots/available?doctor_id=nope&start_date="+wireMonday+"&end_date="+wireTuesday, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var errResp ErrorResponse
	require.NoError(t, json.Unmarshal(body, &errResp))
	assert.Equal(t, "VALIDATION_ERROR", errResp.Error)

	// ISO dates are not accepted on the wire.
	resp, _ = doJSON(t, http.MethodGet, fmt.Sprintf(
		"%s/slots/available?doctor_id=%s&start_date=2025-06-02&end_date=2025-06-03",
		srv.URL, uuid.New()), nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestBookEndpointConflict(t *testing.T) {
	srv, repo := newTestServer(t)
	doctorID := uuid.New()
	seedMondayRule(t, repo, doctorID)

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/slots/book", bookBody(doctorID, wireMonday, "09:30"))
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var appt AppointmentResponse
	require.NoError(t, json.Unmarshal(body, &appt))
	assert.Equal(t, "SCHEDULED", appt.Status)
	assert.Equal(t, wireMonday, appt.Date)
	assert.Equal(t, "09:30", appt.StartTime)
	assert.Equal(t, "10:00", appt.EndTime)

	// Same window again: 409 with the CONFLICT code the client keys on.
	resp, body = doJSON(t, http.MethodPost, srv.URL+"/slots/book", bookBody(doctorID, wireMonday, "09:30"))
	require.Equal(t, http.StatusConflict, resp.StatusCode)

	var errResp ErrorResponse
	require.NoError(t, json.Unmarshal(body, &errResp))
	assert.Equal(t, "CONFLICT", errResp.Error)
}

func TestBookEndpointValidation(t *testing.T) {
	srv, repo := newTestServer(t)
	doctorID := uuid.New()
	seedMondayRule(t, repo, doctorID)

	body := bookBody(doctorID, wireMonday, "09:30")
	body["name"] = ""
	resp, raw := doJSON(t, http.MethodPost, srv.URL+"/slots/book", body)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var errResp ErrorResponse
	require.NoError(t, json.Unmarshal(raw, &errResp))
	assert.Equal(t, "VALIDATION_ERROR", errResp.Error)

	// Tuesday has no rule, so no window can match.
	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/slots/book", bookBody(doctorID, wireTuesday, "09:30"))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestBlockUnblockEndpoints(t *testing.T) {
	srv, repo := newTestServer(t)
	doctorID := uuid.New()
	seedMondayRule(t, repo, doctorID)

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/slots/block", map[string]string{
		"doctor_id":  doctorID.String(),
		"date":       wireMonday,
		"start_time": "10:00",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var slot SlotInstanceResponse
	require.NoError(t, json.Unmarshal(body, &slot))
	assert.Equal(t, "BLOCKED", slot.Status)

	// Booking a blocked window conflicts.
	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/slots/book", bookBody(doctorID, wireMonday, "10:00"))
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodDelete, srv.URL+"/slots/block/"+slot.ID.String(), nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodDelete, srv.URL+"/slots/block/"+slot.ID.String(), nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestUnblockBookedSlotIsInvalidState(t *testing.T) {
	srv, repo := newTestServer(t)
	doctorID := uuid.New()
	seedMondayRule(t, repo, doctorID)

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/slots/book", bookBody(doctorID, wireMonday, "11:00"))
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var appt AppointmentResponse
	require.NoError(t, json.Unmarshal(body, &appt))

	resp, raw := doJSON(t, http.MethodDelete, srv.URL+"/slots/block/"+appt.SlotID.String(), nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	var errResp ErrorResponse
	require.NoError(t, json.Unmarshal(raw, &errResp))
	assert.Equal(t, "INVALID_STATE", errResp.Error)
}

func TestWorkingHoursEndpoints(t *testing.T) {
	srv, _ := newTestServer(t)
	doctorID := uuid.New()

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/doctor-schedule/working-hours", map[string]any{
		"doctor_id":   doctorID.String(),
		"day_of_week": 1,
		"start_time":  "09:00",
		"end_time":    "12:00",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var rule RuleResponse
	require.NoError(t, json.Unmarshal(body, &rule))
	assert.Equal(t, 30, rule.SlotDuration, "slot duration defaults")
	assert.True(t, rule.IsActive)

	// Duplicate weekday.
	resp, body = doJSON(t, http.MethodPost, srv.URL+"/doctor-schedule/working-hours", map[string]any{
		"doctor_id":   doctorID.String(),
		"day_of_week": 1,
		"start_time":  "10:00",
		"end_time":    "13:00",
	})
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	var errResp ErrorResponse
	require.NoError(t, json.Unmarshal(body, &errResp))
	assert.Equal(t, "CONFLICT", errResp.Error)

	// Partial update.
	resp, body = doJSON(t, http.MethodPut, srv.URL+"/doctor-schedule/working-hours/"+rule.ID.String(), map[string]any{
		"end_time": "17:00",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body, &rule))
	assert.Equal(t, "17:00", rule.EndTime)
	assert.Equal(t, "09:00", rule.StartTime)

	// Delete deactivates rather than removing.
	resp, _ = doJSON(t, http.MethodDelete, srv.URL+"/doctor-schedule/working-hours/"+rule.ID.String(), nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, body = doJSON(t, http.MethodGet, srv.URL+"/doctor-schedule/working-hours?doctor_id="+doctorID.String(), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var rules []RuleResponse
	require.NoError(t, json.Unmarshal(body, &rules))
	require.Len(t, rules, 1)
	assert.False(t, rules[0].IsActive)

	resp, _ = doJSON(t, http.MethodDelete, srv.URL+"/doctor-schedule/working-hours/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestOffDayEndpoints(t *testing.T) {
	srv, repo := newTestServer(t)
	doctorID := uuid.New()
	seedMondayRule(t, repo, doctorID)

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/doctor-schedule/off-days", map[string]string{
		"doctor_id": doctorID.String(),
		"date":      wireMonday,
		"reason":    "conference",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var offDay OffDayResponse
	require.NoError(t, json.Unmarshal(body, &offDay))
	assert.Equal(t, wireMonday, offDay.Date)

	// The off day empties the Monday.
	resp, body = doJSON(t, http.MethodGet, fmt.Sprintf(
		"%s/slots/available?doctor_id=%s&start_date=%s&end_date=%s",
		srv.URL, doctorID, wireMonday, wireMonday), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var avail AvailabilityResponse
	require.NoError(t, json.Unmarshal(body, &avail))
	require.Len(t, avail.Days, 1)
	assert.Empty(t, avail.Days[0].Slots)

	resp, body = doJSON(t, http.MethodGet, fmt.Sprintf(
		"%s/doctor-schedule/off-days?doctor_id=%s&start_date=%s&end_date=%s",
		srv.URL, doctorID, wireMonday, wireTuesday), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var listed []OffDayResponse
	require.NoError(t, json.Unmarshal(body, &listed))
	require.Len(t, listed, 1)

	resp, _ = doJSON(t, http.MethodDelete, srv.URL+"/doctor-schedule/off-days/"+offDay.ID.String(), nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	// And the slots come back.
	resp, body = doJSON(t, http.MethodGet, fmt.Sprintf(
		"%s/slots/available?doctor_id=%s&start_date=%s&end_date=%s",
		srv.URL, doctorID, wireMonday, wireMonday), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body, &avail))
	assert.Len(t, avail.Days[0].Slots, 6)
}

func TestAppointmentEndpoints(t *testing.T) {
	srv, repo := newTestServer(t)
	doctorID := uuid.New()
	seedMondayRule(t, repo, doctorID)

	_, body := doJSON(t, http.MethodPost, srv.URL+"/slots/book", bookBody(doctorID, wireMonday, "09:00"))
	var appt AppointmentResponse
	require.NoError(t, json.Unmarshal(body, &appt))

	resp, body := doJSON(t, http.MethodGet, fmt.Sprintf(
		"%s/appointments?doctor_id=%s&date=%s", srv.URL, doctorID, wireMonday), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var listed []AppointmentResponse
	require.NoError(t, json.Unmarshal(body, &listed))
	require.Len(t, listed, 1)

	resp, body = doJSON(t, http.MethodGet, srv.URL+"/appointments/"+appt.ID.String(), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = doJSON(t, http.MethodPost, srv.URL+"/appointments/"+appt.ID.String()+"/cancel", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var cancelled AppointmentResponse
	require.NoError(t, json.Unmarshal(body, &cancelled))
	assert.Equal(t, "CANCELLED", cancelled.Status)

	// Cancellation released the window.
	resp, body = doJSON(t, http.MethodGet, fmt.Sprintf(
		"%s/slots/available?doctor_id=%s&start_date=%s&end_date=%s",
		srv.URL, doctorID, wireMonday, wireMonday), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var avail AvailabilityResponse
	require.NoError(t, json.Unmarshal(body, &avail))
	assert.Len(t, avail.Days[0].Slots, 6)

	// Double cancel is an invalid state, unknown id a 404.
	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/appointments/"+appt.ID.String()+"/cancel", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	resp, _ = doJSON(t, http.MethodGet, srv.URL+"/appointments/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHealthAndRequestID(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, body := doJSON(t, http.MethodGet, srv.URL+"/health/live", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))

	var live LivenessResponse
	require.NoError(t, json.Unmarshal(body, &live))
	assert.Equal(t, "ok", live.Status)

	// No postgres or redis wired: readiness has nothing to report but is ok.
	resp, _ = doJSON(t, http.MethodGet, srv.URL+"/health/ready", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
