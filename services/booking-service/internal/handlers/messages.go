package handlers

import (
	"net/http"
	"strconv"

	"github.com/carbook/platform/services/booking-service/internal/apperr"
	"github.com/carbook/platform/services/booking-service/internal/model"
)

func (a *API) CreateMessage(w http.ResponseWriter, r *http.Request) {
	var req model.Message
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, a.logger, err)
		return
	}
	m, err := a.svc.CreateMessage(r.Context(), req)
	if err != nil {
		writeError(w, r, a.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

func (a *API) ListMessages(w http.ResponseWriter, r *http.Request) {
	var f model.MessageFilter
	userID, ok, err := queryInt64(r, "user_id")
	if err != nil {
		writeError(w, r, a.logger, err)
		return
	}
	if ok {
		f.UserID = &userID
	}
	if raw := r.URL.Query().Get("is_read"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, r, a.logger, apperr.InvalidArgument("invalid is_read"))
			return
		}
		f.IsRead = &n
	}
	limit, _, err := queryInt64(r, "limit")
	if err != nil {
		writeError(w, r, a.logger, err)
		return
	}
	offset, _, err := queryInt64(r, "offset")
	if err != nil {
		writeError(w, r, a.logger, err)
		return
	}
	f.Limit, f.Offset = int(limit), int(offset)

	list, err := a.svc.ListMessages(r.Context(), f)
	if err != nil {
		writeError(w, r, a.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (a *API) UnreadCount(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "user_id")
	if err != nil {
		writeError(w, r, a.logger, err)
		return
	}
	n, err := a.svc.UnreadCount(r.Context(), userID)
	if err != nil {
		writeError(w, r, a.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"unread_count": n})
}

func (a *API) MarkMessageRead(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, a.logger, err)
		return
	}
	m, err := a.svc.MarkMessageRead(r.Context(), id)
	if err != nil {
		writeError(w, r, a.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}
