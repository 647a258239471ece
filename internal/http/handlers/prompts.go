package handlers

import (
	"net/http"
)

type generateRequest struct {
	TemplateIDs []string `json:"template_ids"`
}

// GeneratePrompts expands the requested templates into prompts.
func (a *App) GeneratePrompts(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if !a.decode(w, r, &req) {
		return
	}
	res, err := a.Svc.Expand(r.Context(), req.TemplateIDs)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, res)
}

func (a *App) ListPrompts(w http.ResponseWriter, r *http.Request) {
	items, err := a.Svc.ListPrompts(r.Context(), r.URL.Query().Get("template_id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, list(items))
}

func (a *App) GetPrompt(w http.ResponseWriter, r *http.Request) {
	p, err := a.Svc.GetPrompt(r.Context(), idParam(r))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, p)
}

func (a *App) DeletePrompt(w http.ResponseWriter, r *http.Request) {
	if err := a.Svc.DeletePrompt(r.Context(), idParam(r)); err != nil {
		a.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
