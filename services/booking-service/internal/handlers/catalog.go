package handlers

import (
	"net/http"

	"github.com/carbook/platform/services/booking-service/internal/apperr"
	"github.com/carbook/platform/services/booking-service/internal/model"
)

func (a *API) CreateService(w http.ResponseWriter, r *http.Request) {
	var req model.Service
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, a.logger, err)
		return
	}
	svc, err := a.svc.CreateService(r.Context(), req)
	if err != nil {
		writeError(w, r, a.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, svc)
}

func (a *API) GetService(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, a.logger, err)
		return
	}
	svc, err := a.svc.GetService(r.Context(), id)
	if err != nil {
		writeError(w, r, a.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, svc)
}

func (a *API) ListServices(w http.ResponseWriter, r *http.Request) {
	list, err := a.svc.ListServices(r.Context())
	if err != nil {
		writeError(w, r, a.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (a *API) UpdateService(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, a.logger, err)
		return
	}
	var patch model.ServicePatch
	if err := decodeJSON(r, &patch); err != nil {
		writeError(w, r, a.logger, err)
		return
	}
	svc, err := a.svc.UpdateService(r.Context(), id, patch)
	if err != nil {
		writeError(w, r, a.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, svc)
}

func (a *API) DeleteService(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, a.logger, err)
		return
	}
	if err := a.svc.DeleteService(r.Context(), id); err != nil {
		writeError(w, r, a.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) CreateClient(w http.ResponseWriter, r *http.Request) {
	var req model.Client
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, a.logger, err)
		return
	}
	c, err := a.svc.CreateClient(r.Context(), req)
	if err != nil {
		writeError(w, r, a.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (a *API) GetClient(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, a.logger, err)
		return
	}
	c, err := a.svc.GetClient(r.Context(), id)
	if err != nil {
		writeError(w, r, a.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// FindClient looks a client up by telegram_id or phone_number, in that order.
func (a *API) FindClient(w http.ResponseWriter, r *http.Request) {
	var q model.ClientLookup
	tg, ok, err := queryInt64(r, "telegram_id")
	if err != nil {
		writeError(w, r, a.logger, err)
		return
	}
	if ok {
		q.TelegramID = &tg
	}
	q.PhoneNumber = r.URL.Query().Get("phone_number")

	c, err := a.svc.FindClient(r.Context(), q)
	if err != nil {
		writeError(w, r, a.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (a *API) ListClients(w http.ResponseWriter, r *http.Request) {
	list, err := a.svc.ListClients(r.Context())
	if err != nil {
		writeError(w, r, a.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (a *API) UpdateClient(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, a.logger, err)
		return
	}
	var patch model.ClientPatch
	if err := decodeJSON(r, &patch); err != nil {
		writeError(w, r, a.logger, err)
		return
	}
	c, err := a.svc.UpdateClient(r.Context(), id, patch)
	if err != nil {
		writeError(w, r, a.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (a *API) DeleteClient(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, a.logger, err)
		return
	}
	if err := a.svc.DeleteClient(r.Context(), id); err != nil {
		writeError(w, r, a.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) CreateWorkingPeriod(w http.ResponseWriter, r *http.Request) {
	req := model.WorkingPeriod{Active: true}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, a.logger, err)
		return
	}
	p, err := a.svc.CreateWorkingPeriod(r.Context(), req)
	if err != nil {
		writeError(w, r, a.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (a *API) GetWorkingPeriod(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, a.logger, err)
		return
	}
	p, err := a.svc.GetWorkingPeriod(r.Context(), id)
	if err != nil {
		writeError(w, r, a.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (a *API) ListWorkingPeriods(w http.ResponseWriter, r *http.Request) {
	list, err := a.svc.ListWorkingPeriods(r.Context())
	if err != nil {
		writeError(w, r, a.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (a *API) UpdateWorkingPeriod(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, a.logger, err)
		return
	}
	var patch model.WorkingPeriodPatch
	if err := decodeJSON(r, &patch); err != nil {
		writeError(w, r, a.logger, err)
		return
	}
	if patch == (model.WorkingPeriodPatch{}) {
		writeError(w, r, a.logger, apperr.InvalidArgument("nothing to update"))
		return
	}
	p, err := a.svc.UpdateWorkingPeriod(r.Context(), id, patch)
	if err != nil {
		writeError(w, r, a.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (a *API) DeleteWorkingPeriod(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, a.logger, err)
		return
	}
	if err := a.svc.DeleteWorkingPeriod(r.Context(), id); err != nil {
		writeError(w, r, a.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
