package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/carbook/platform/libs/httpx"
	"github.com/carbook/platform/services/booking-service/internal/apperr"
	"github.com/carbook/platform/services/booking-service/internal/booking"
)

type API struct {
	svc    *booking.Service
	staff  *StaffHandler
	logger *slog.Logger
}

func NewAPI(svc *booking.Service, staff *StaffHandler, logger *slog.Logger) *API {
	return &API{svc: svc, staff: staff, logger: logger}
}

// Register mounts every route on mux.
func (a *API) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /working_periods/time_slots", a.ListSlots)
	mux.HandleFunc("GET /working_periods", a.ListWorkingPeriods)
	mux.HandleFunc("POST /working_periods", a.CreateWorkingPeriod)
	mux.HandleFunc("GET /working_periods/{id}", a.GetWorkingPeriod)
	mux.HandleFunc("PATCH /working_periods/{id}", a.UpdateWorkingPeriod)
	mux.HandleFunc("DELETE /working_periods/{id}", a.DeleteWorkingPeriod)

	mux.HandleFunc("GET /appointments", a.ListAppointments)
	mux.HandleFunc("POST /appointments", a.CreateAppointment)
	mux.HandleFunc("GET /appointments/{id}", a.GetAppointment)
	mux.HandleFunc("PATCH /appointments/{id}", a.PatchAppointment)
	mux.HandleFunc("DELETE /appointments/{id}", a.DeleteAppointment)

	mux.HandleFunc("GET /services", a.ListServices)
	mux.HandleFunc("POST /services", a.CreateService)
	mux.HandleFunc("GET /services/{id}", a.GetService)
	mux.HandleFunc("PATCH /services/{id}", a.UpdateService)
	mux.HandleFunc("DELETE /services/{id}", a.DeleteService)

	mux.HandleFunc("GET /clients", a.ListClients)
	mux.HandleFunc("POST /clients", a.CreateClient)
	mux.HandleFunc("GET /clients/search", a.FindClient)
	mux.HandleFunc("GET /clients/{id}", a.GetClient)
	mux.HandleFunc("PATCH /clients/{id}", a.UpdateClient)
	mux.HandleFunc("DELETE /clients/{id}", a.DeleteClient)

	mux.HandleFunc("POST /messages", a.CreateMessage)
	mux.HandleFunc("GET /messages", a.ListMessages)
	mux.HandleFunc("GET /messages/unread/{user_id}", a.UnreadCount)
	mux.HandleFunc("PUT /messages/read/{id}", a.MarkMessageRead)

	mux.HandleFunc("POST /notifications/schedule", a.ScheduleNotification)
	mux.HandleFunc("GET /notifications", a.ListNotifications)
	mux.HandleFunc("PATCH /notifications/{id}", a.RescheduleNotification)
	mux.HandleFunc("DELETE /notifications/{id}", a.CancelNotification)

	if a.staff != nil {
		mux.HandleFunc("POST /staff/sessions", a.staff.Login)
		mux.HandleFunc("PATCH /staff/sessions/{token}", a.staff.SetTimezone)
		mux.HandleFunc("DELETE /staff/sessions/{token}", a.staff.Logout)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		http.Error(w, "failed to build response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func writeError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	status := apperr.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		logger.Error("request failed",
			"request_id", httpx.RequestIDFromContext(r.Context()),
			"method", r.Method,
			"path", r.URL.Path,
			"err", err,
		)
	}
	writeJSON(w, status, map[string]string{"error": apperr.Message(err)})
}

func decodeJSON(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var appErr *apperr.Error
		if errors.As(err, &appErr) {
			return appErr
		}
		return apperr.InvalidArgument("invalid json body")
	}
	return nil
}

func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.InvalidArgument("invalid " + name)
	}
	return id, nil
}

func queryInt64(r *http.Request, name string) (int64, bool, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, false, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false, apperr.InvalidArgument("invalid " + name)
	}
	return n, true, nil
}
