package handlers

import (
	"net/http"

	"contentfabric/internal/domain"
)

func (a *App) ListTemplates(w http.ResponseWriter, r *http.Request) {
	items, err := a.Svc.ListTemplates(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, list(items))
}

func (a *App) CreateTemplate(w http.ResponseWriter, r *http.Request) {
	var in domain.TemplateInput
	if !a.decode(w, r, &in) {
		return
	}
	t, err := a.Svc.CreateTemplate(r.Context(), in)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusCreated, t)
}

func (a *App) GetTemplate(w http.ResponseWriter, r *http.Request) {
	t, err := a.Svc.GetTemplate(r.Context(), idParam(r))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, t)
}

func (a *App) UpdateTemplate(w http.ResponseWriter, r *http.Request) {
	var patch domain.TemplatePatch
	if !a.decode(w, r, &patch) {
		return
	}
	t, err := a.Svc.UpdateTemplate(r.Context(), idParam(r), patch)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, t)
}

func (a *App) DeleteTemplate(w http.ResponseWriter, r *http.Request) {
	if err := a.Svc.DeleteTemplate(r.Context(), idParam(r)); err != nil {
		a.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ExpandTemplate expands a single template; equivalent to POST
// /generated-prompts/generate with one id.
func (a *App) ExpandTemplate(w http.ResponseWriter, r *http.Request) {
	res, err := a.Svc.Expand(r.Context(), []string{idParam(r)})
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, res)
}
