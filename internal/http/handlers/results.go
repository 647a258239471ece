package handlers

import (
	"net/http"
)

// ListResults pages through the results of the generation named by the
// generation_id query parameter.
func (a *App) ListResults(w http.ResponseWriter, r *http.Request) {
	generationID := r.URL.Query().Get("generation_id")
	if generationID == "" {
		a.error(w, http.StatusBadRequest, "validation_failed", "generation_id is required")
		return
	}
	page, err := a.Svc.ListResults(r.Context(), generationID, queryInt(r, "page"), queryInt(r, "limit"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, page)
}

func (a *App) GetResult(w http.ResponseWriter, r *http.Request) {
	res, err := a.Svc.GetResult(r.Context(), idParam(r))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, res)
}

func (a *App) DeleteResult(w http.ResponseWriter, r *http.Request) {
	if err := a.Svc.DeleteResult(r.Context(), idParam(r)); err != nil {
		a.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
