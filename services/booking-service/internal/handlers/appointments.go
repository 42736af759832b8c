package handlers

import (
	"net/http"

	"github.com/carbook/platform/services/booking-service/internal/availability"
	"github.com/carbook/platform/services/booking-service/internal/booking"
	"github.com/carbook/platform/services/booking-service/internal/model"
)

func (a *API) ListSlots(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("date")
	if date == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "date is required"})
		return
	}
	slots, err := a.svc.ListSlots(r.Context(), date)
	if err != nil {
		writeError(w, r, a.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, slots)
}

func (a *API) CreateAppointment(w http.ResponseWriter, r *http.Request) {
	var req booking.CreateAppointmentInput
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, a.logger, err)
		return
	}
	appt, err := a.svc.CreateAppointment(r.Context(), req)
	if err != nil {
		writeError(w, r, a.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, appt)
}

func (a *API) GetAppointment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, a.logger, err)
		return
	}
	appt, err := a.svc.GetAppointment(r.Context(), id)
	if err != nil {
		writeError(w, r, a.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, appt)
}

func (a *API) ListAppointments(w http.ResponseWriter, r *http.Request) {
	var f model.AppointmentFilter
	clientID, _, err := queryInt64(r, "client_id")
	if err != nil {
		writeError(w, r, a.logger, err)
		return
	}
	f.ClientID = clientID
	f.Status = model.Status(r.URL.Query().Get("status"))
	if raw := r.URL.Query().Get("date"); raw != "" {
		day, err := availability.ParseDate(raw)
		if err != nil {
			writeError(w, r, a.logger, err)
			return
		}
		f.Day = day.Time
	}

	appts, err := a.svc.ListAppointments(r.Context(), f)
	if err != nil {
		writeError(w, r, a.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, appts)
}

func (a *API) PatchAppointment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, a.logger, err)
		return
	}
	var patch model.AppointmentPatch
	if err := decodeJSON(r, &patch); err != nil {
		writeError(w, r, a.logger, err)
		return
	}
	appt, err := a.svc.PatchAppointment(r.Context(), id, patch)
	if err != nil {
		writeError(w, r, a.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, appt)
}

func (a *API) DeleteAppointment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, a.logger, err)
		return
	}
	if err := a.svc.DeleteAppointment(r.Context(), id); err != nil {
		writeError(w, r, a.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
