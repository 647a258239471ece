package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"contentfabric/internal/domain"
	"contentfabric/internal/infra"
	"contentfabric/internal/middleware"
	"contentfabric/internal/service"
	"contentfabric/internal/storage"
)

const maxBodyBytes = 1 << 20

// App carries the dependencies shared by every handler.
type App struct {
	Svc    *service.Service
	Files  *storage.FileStore
	Logger infra.Logger
}

func NewApp(svc *service.Service, files *storage.FileStore, logger infra.Logger) *App {
	return &App{Svc: svc, Files: files, Logger: logger}
}

type errorBody struct {
	Code    string   `json:"code"`
	Message string   `json:"message"`
	IDs     []string `json:"ids,omitempty"`
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, status int, code, message string, ids ...string) {
	a.json(w, status, map[string]errorBody{"error": {Code: code, Message: message, IDs: ids}})
}

// fail maps an error kind onto its HTTP status.
func (a *App) fail(w http.ResponseWriter, r *http.Request, err error) {
	ids := domain.IDsOf(err)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		a.error(w, http.StatusNotFound, "not_found", err.Error(), ids...)
	case errors.Is(err, domain.ErrValidation):
		a.error(w, http.StatusBadRequest, "validation_failed", err.Error(), ids...)
	case errors.Is(err, domain.ErrConflict):
		a.error(w, http.StatusConflict, "conflict", err.Error(), ids...)
	case errors.Is(err, domain.ErrProviderFailure):
		a.error(w, http.StatusBadGateway, "provider_failure", err.Error(), ids...)
	default:
		a.Logger.Error().Err(err).
			Str("request_id", middleware.RequestIDFromContext(r.Context())).
			Str("path", r.URL.Path).
			Msg("http: request failed")
		a.error(w, http.StatusInternalServerError, "internal", "internal server error")
	}
}

// decode reads a JSON body into v, answering 400 itself when it cannot.
func (a *App) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid JSON payload: "+err.Error())
		return false
	}
	return true
}

func queryInt(r *http.Request, key string) int {
	n, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil {
		return 0
	}
	return n
}

func idParam(r *http.Request) string {
	return chi.URLParam(r, "id")
}

type listResponse[T any] struct {
	Items []T `json:"items"`
}

func list[T any](items []T) listResponse[T] {
	if items == nil {
		items = []T{}
	}
	return listResponse[T]{Items: items}
}
