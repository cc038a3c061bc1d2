package api

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/clinicdesk/slot-scheduling/internal/schedule"
)

// Dates cross the wire as DD-MM-YYYY; everything internal is ISO.
const wireDateLayout = "02-01-2006"

func parseWireDate(s string) (time.Time, error) {
	t, err := time.Parse(wireDateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("date must be DD-MM-YYYY, got %q", s)
	}
	return schedule.Day(t), nil
}

func formatWireDate(t time.Time) string {
	return t.UTC().Format(wireDateLayout)
}

// -- Working hour rules --

type CreateRuleRequest struct {
	DoctorID     string `json:"doctor_id"`
	DayOfWeek    int    `json:"day_of_week"`
	StartTime    string `json:"start_time"`
	EndTime      string `json:"end_time"`
	SlotDuration int    `json:"slot_duration_minutes,omitempty"`
}

type UpdateRuleRequest struct {
	DayOfWeek    *int    `json:"day_of_week,omitempty"`
	StartTime    *string `json:"start_time,omitempty"`
	EndTime      *string `json:"end_time,omitempty"`
	SlotDuration *int    `json:"slot_duration_minutes,omitempty"`
	IsActive     *bool   `json:"is_active,omitempty"`
}

type RuleResponse struct {
	ID           uuid.UUID `json:"id"`
	DoctorID     uuid.UUID `json:"doctor_id"`
	DayOfWeek    int       `json:"day_of_week"`
	StartTime    string    `json:"start_time"`
	EndTime      string    `json:"end_time"`
	SlotDuration int       `json:"slot_duration_minutes"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func toRuleResponse(r *schedule.WorkingHourRule) RuleResponse {
	return RuleResponse{
		ID:           r.ID,
		DoctorID:     r.DoctorID,
		DayOfWeek:    r.DayOfWeek,
		StartTime:    r.StartTime.String(),
		EndTime:      r.EndTime.String(),
		SlotDuration: r.SlotDuration,
		IsActive:     r.Active,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

// -- Off days --

type CreateOffDayRequest struct {
	DoctorID string `json:"doctor_id"`
	Date     string `json:"date"`
	Reason   string `json:"reason,omitempty"`
}

type OffDayResponse struct {
	ID        uuid.UUID `json:"id"`
	DoctorID  uuid.UUID `json:"doctor_id"`
	Date      string    `json:"date"`
	Reason    string    `json:"reason,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func toOffDayResponse(o *schedule.OffDay) OffDayResponse {
	return OffDayResponse{
		ID:        o.ID,
		DoctorID:  o.DoctorID,
		Date:      formatWireDate(o.Date),
		Reason:    o.Reason,
		CreatedAt: o.CreatedAt,
	}
}

// -- Availability --

type AvailableSlotResponse struct {
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	Status    string `json:"status"`
}

type DayAvailabilityResponse struct {
	Date      string                  `json:"date"`
	DayOfWeek int                     `json:"day_of_week"`
	Slots     []AvailableSlotResponse `json:"slots"`
}

type AvailabilityResponse struct {
	DoctorID  uuid.UUID                 `json:"doctor_id"`
	StartDate string                    `json:"start_date"`
	EndDate   string                    `json:"end_date"`
	Days      []DayAvailabilityResponse `json:"days"`
}

func toAvailabilityResponse(doctorID uuid.UUID, from, to time.Time, days []schedule.DayAvailability) AvailabilityResponse {
	resp := AvailabilityResponse{
		DoctorID:  doctorID,
		StartDate: formatWireDate(from),
		EndDate:   formatWireDate(to),
		Days:      []DayAvailabilityResponse{},
	}
	for _, d := range days {
		day := DayAvailabilityResponse{
			Date:      formatWireDate(d.Date),
			DayOfWeek: d.DayOfWeek,
			Slots:     []AvailableSlotResponse{},
		}
		for _, s := range d.Slots {
			day.Slots = append(day.Slots, AvailableSlotResponse{
				StartTime: s.StartTime.String(),
				EndTime:   s.EndTime.String(),
				Status:    "AVAILABLE",
			})
		}
		resp.Days = append(resp.Days, day)
	}
	return resp
}

// -- Booking --

type BookSlotRequest struct {
	DoctorID     string `json:"doctor_id"`
	Date         string `json:"date"`
	StartTime    string `json:"start_time"`
	Name         string `json:"name"`
	MobileNumber string `json:"mobile_number"`
	Gender       string `json:"gender"`
	Source       string `json:"source,omitempty"`
}

type BlockSlotRequest struct {
	DoctorID  string `json:"doctor_id"`
	Date      string `json:"date"`
	StartTime string `json:"start_time"`
}

type SlotInstanceResponse struct {
	ID        uuid.UUID `json:"id"`
	DoctorID  uuid.UUID `json:"doctor_id"`
	Date      string    `json:"date"`
	StartTime string    `json:"start_time"`
	EndTime   string    `json:"end_time"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

func toSlotResponse(s *schedule.SlotInstance) SlotInstanceResponse {
	return SlotInstanceResponse{
		ID:        s.ID,
		DoctorID:  s.DoctorID,
		Date:      formatWireDate(s.Date),
		StartTime: s.StartTime.String(),
		EndTime:   s.EndTime.String(),
		Status:    string(s.Status),
		CreatedAt: s.CreatedAt,
	}
}

type AppointmentResponse struct {
	ID           uuid.UUID `json:"id"`
	SlotID       uuid.UUID `json:"slot_id"`
	DoctorID     uuid.UUID `json:"doctor_id"`
	Date         string    `json:"date"`
	StartTime    string    `json:"start_time"`
	EndTime      string    `json:"end_time"`
	Name         string    `json:"name"`
	MobileNumber string    `json:"mobile_number"`
	Gender       string    `json:"gender"`
	Source       string    `json:"source,omitempty"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func toAppointmentResponse(a *schedule.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:           a.ID,
		SlotID:       a.SlotID,
		DoctorID:     a.DoctorID,
		Date:         formatWireDate(a.Date),
		StartTime:    a.StartTime.String(),
		EndTime:      a.EndTime.String(),
		Name:         a.PatientName,
		MobileNumber: a.MobileNumber,
		Gender:       a.Gender,
		Source:       a.Source,
		Status:       string(a.Status),
		CreatedAt:    a.CreatedAt,
		UpdatedAt:    a.UpdatedAt,
	}
}
