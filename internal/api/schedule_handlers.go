package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/clinicdesk/slot-scheduling/internal/schedule"
)

// Staff-facing schedule configuration: working-hour rules and off-days.

func listRulesHandler(svc *schedule.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, err := uuid.Parse(r.URL.Query().Get("doctor_id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, codeValidation, "doctor_id must be a valid UUID")
			return
		}

		rules, err := svc.ListRules(r.Context(), doctorID)
		if err != nil {
			handleScheduleError(w, err)
			return
		}

		resp := make([]RuleResponse, 0, len(rules))
		for i := range rules {
			resp = append(resp, toRuleResponse(&rules[i]))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func createRuleHandler(svc *schedule.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateRuleRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, codeValidation, "could not parse JSON")
			return
		}

		doctorID, err := uuid.Parse(req.DoctorID)
		if err != nil {
			writeError(w, http.StatusBadRequest, codeValidation, "doctor_id must be a valid UUID")
			return
		}
		start, err := schedule.ParseTimeOfDay(req.StartTime)
		if err != nil {
			writeError(w, http.StatusBadRequest, codeValidation, err.Error())
			return
		}
		end, err := schedule.ParseTimeOfDay(req.EndTime)
		if err != nil {
			writeError(w, http.StatusBadRequest, codeValidation, err.Error())
			return
		}

		rule, err := svc.CreateRule(r.Context(), schedule.RuleInput{
			DoctorID:     doctorID,
			DayOfWeek:    req.DayOfWeek,
			StartTime:    start,
			EndTime:      end,
			SlotDuration: req.SlotDuration,
		})
		if err != nil {
			handleScheduleError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toRuleResponse(rule))
	}
}

func updateRuleHandler(svc *schedule.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, codeValidation, "id must be a valid UUID")
			return
		}

		var req UpdateRuleRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, codeValidation, "could not parse JSON")
			return
		}

		patch := schedule.RulePatch{
			DayOfWeek:    req.DayOfWeek,
			SlotDuration: req.SlotDuration,
			Active:       req.IsActive,
		}
		if req.StartTime != nil {
			start, err := schedule.ParseTimeOfDay(*req.StartTime)
			if err != nil {
				writeError(w, http.StatusBadRequest, codeValidation, err.Error())
				return
			}
			patch.StartTime = &start
		}
		if req.EndTime != nil {
			end, err := schedule.ParseTimeOfDay(*req.EndTime)
			if err != nil {
				writeError(w, http.StatusBadRequest, codeValidation, err.Error())
				return
			}
			patch.EndTime = &end
		}

		rule, err := svc.UpdateRule(r.Context(), id, patch)
		if err != nil {
			handleScheduleError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toRuleResponse(rule))
	}
}

func deleteRuleHandler(svc *schedule.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, codeValidation, "id must be a valid UUID")
			return
		}

		// Rules referenced by history survive deletes; this deactivates.
		if err := svc.DeactivateRule(r.Context(), id); err != nil {
			handleScheduleError(w, err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

func listOffDaysHandler(svc *schedule.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, err := uuid.Parse(r.URL.Query().Get("doctor_id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, codeValidation, "doctor_id must be a valid UUID")
			return
		}
		from, err := parseWireDate(r.URL.Query().Get("start_date"))
		if err != nil {
			writeError(w, http.StatusBadRequest, codeValidation, err.Error())
			return
		}
		to, err := parseWireDate(r.URL.Query().Get("end_date"))
		if err != nil {
			writeError(w, http.StatusBadRequest, codeValidation, err.Error())
			return
		}

		offDays, err := svc.ListOffDays(r.Context(), doctorID, from, to)
		if err != nil {
			handleScheduleError(w, err)
			return
		}

		resp := make([]OffDayResponse, 0, len(offDays))
		for i := range offDays {
			resp = append(resp, toOffDayResponse(&offDays[i]))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func createOffDayHandler(svc *schedule.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateOffDayRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, codeValidation, "could not parse JSON")
			return
		}

		doctorID, err := uuid.Parse(req.DoctorID)
		if err != nil {
			writeError(w, http.StatusBadRequest, codeValidation, "doctor_id must be a valid UUID")
			return
		}
		date, err := parseWireDate(req.Date)
		if err != nil {
			writeError(w, http.StatusBadRequest, codeValidation, err.Error())
			return
		}

		offDay, err := svc.CreateOffDay(r.Context(), doctorID, date, req.Reason)
		if err != nil {
			handleScheduleError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toOffDayResponse(offDay))
	}
}

func deleteOffDayHandler(svc *schedule.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, codeValidation, "id must be a valid UUID")
			return
		}

		if err := svc.DeleteOffDay(r.Context(), id); err != nil {
			handleScheduleError(w, err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}
