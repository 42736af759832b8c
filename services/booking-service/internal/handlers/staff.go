package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/carbook/platform/libs/sessions"
	"github.com/carbook/platform/services/booking-service/internal/apperr"
)

type SessionStore interface {
	Issue(ctx context.Context, chatID int64, timezone string) (sessions.Session, error)
	SetTimezone(ctx context.Context, token, timezone string) (sessions.Session, error)
	Revoke(ctx context.Context, token string) error
}

type PasswordVerifier interface {
	Verify(password string) error
}

// StaffHandler replaces the bot's in-process list of authorised administrators with
// Redis-backed sessions that the staff notification consumer reads.
type StaffHandler struct {
	sessions SessionStore
	password PasswordVerifier
	logger   *slog.Logger
}

func NewStaffHandler(store SessionStore, password PasswordVerifier, logger *slog.Logger) *StaffHandler {
	return &StaffHandler{sessions: store, password: password, logger: logger}
}

type loginRequest struct {
	ChatID   int64  `json:"chat_id"`
	Password string `json:"password"`
	Timezone string `json:"timezone"`
}

func sessionErr(err error) error {
	switch {
	case errors.Is(err, sessions.ErrNotFound):
		return apperr.NotFound("session not found")
	case errors.Is(err, sessions.ErrInvalidTimezone):
		return apperr.InvalidArgument(err.Error())
	}
	return apperr.Transient("session store unavailable", err)
}

func (h *StaffHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if req.ChatID == 0 {
		writeError(w, r, h.logger, apperr.InvalidArgument("chat_id is required"))
		return
	}
	if err := h.password.Verify(req.Password); err != nil {
		h.logger.Warn("staff login rejected", "chat_id", req.ChatID)
		writeError(w, r, h.logger, apperr.Unauthenticated("invalid credentials"))
		return
	}
	s, err := h.sessions.Issue(r.Context(), req.ChatID, req.Timezone)
	if err != nil {
		writeError(w, r, h.logger, sessionErr(err))
		return
	}
	h.logger.Info("staff session issued", "chat_id", s.ChatID)
	writeJSON(w, http.StatusCreated, s)
}

type timezoneRequest struct {
	Timezone string `json:"timezone"`
}

func (h *StaffHandler) SetTimezone(w http.ResponseWriter, r *http.Request) {
	var req timezoneRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	s, err := h.sessions.SetTimezone(r.Context(), r.PathValue("token"), req.Timezone)
	if err != nil {
		writeError(w, r, h.logger, sessionErr(err))
		return
	}
	writeJSON(w, http.StatusOK, s)
}

func (h *StaffHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Revoke(r.Context(), r.PathValue("token")); err != nil {
		writeError(w, r, h.logger, sessionErr(err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
