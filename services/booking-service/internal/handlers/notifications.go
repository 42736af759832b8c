package handlers

import (
	"net/http"
	"time"

	"github.com/carbook/platform/services/booking-service/internal/booking"
)

func (a *API) ScheduleNotification(w http.ResponseWriter, r *http.Request) {
	var req booking.ScheduleNotificationInput
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, a.logger, err)
		return
	}
	n, err := a.svc.ScheduleNotification(r.Context(), req)
	if err != nil {
		writeError(w, r, a.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, n)
}

type rescheduleRequest struct {
	ScheduledTime time.Time `json:"scheduled_time"`
}

func (a *API) RescheduleNotification(w http.ResponseWriter, r *http.Request) {
	var req rescheduleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, a.logger, err)
		return
	}
	n, err := a.svc.RescheduleNotification(r.Context(), r.PathValue("id"), req.ScheduledTime)
	if err != nil {
		writeError(w, r, a.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, n)
}

func (a *API) CancelNotification(w http.ResponseWriter, r *http.Request) {
	if err := a.svc.CancelNotification(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, r, a.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) ListNotifications(w http.ResponseWriter, r *http.Request) {
	clientID, _, err := queryInt64(r, "client_id")
	if err != nil {
		writeError(w, r, a.logger, err)
		return
	}
	list, err := a.svc.ListNotifications(r.Context(), clientID)
	if err != nil {
		writeError(w, r, a.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}
