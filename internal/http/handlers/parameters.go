package handlers

import (
	"net/http"

	"contentfabric/internal/domain"
)

func (a *App) ListParameters(w http.ResponseWriter, r *http.Request) {
	items, err := a.Svc.ListParameters(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, list(items))
}

func (a *App) CreateParameter(w http.ResponseWriter, r *http.Request) {
	var in domain.ParameterInput
	if !a.decode(w, r, &in) {
		return
	}
	p, err := a.Svc.CreateParameter(r.Context(), in)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusCreated, p)
}

func (a *App) GetParameter(w http.ResponseWriter, r *http.Request) {
	p, err := a.Svc.GetParameter(r.Context(), idParam(r))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, p)
}

func (a *App) UpdateParameter(w http.ResponseWriter, r *http.Request) {
	var patch domain.ParameterPatch
	if !a.decode(w, r, &patch) {
		return
	}
	p, err := a.Svc.UpdateParameter(r.Context(), idParam(r), patch)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, p)
}

func (a *App) DeleteParameter(w http.ResponseWriter, r *http.Request) {
	if err := a.Svc.DeleteParameter(r.Context(), idParam(r)); err != nil {
		a.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
