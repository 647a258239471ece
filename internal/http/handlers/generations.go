package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path"
	"strconv"

	"github.com/go-chi/chi/v5"

	"contentfabric/internal/domain"
	"contentfabric/internal/storage"
	"contentfabric/pkg/zip"
)

func (a *App) ListGenerations(w http.ResponseWriter, r *http.Request) {
	items, err := a.Svc.ListJobs(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, list(items))
}

func (a *App) CreateGeneration(w http.ResponseWriter, r *http.Request) {
	var in domain.CreateJobInput
	if !a.decode(w, r, &in) {
		return
	}
	g, err := a.Svc.CreateJob(r.Context(), in)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusCreated, g)
}

func (a *App) GetGeneration(w http.ResponseWriter, r *http.Request) {
	view, err := a.Svc.GetJob(r.Context(), idParam(r))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, view)
}

func (a *App) DeleteGeneration(w http.ResponseWriter, r *http.Request) {
	if err := a.Svc.DeleteJob(r.Context(), idParam(r)); err != nil {
		a.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *App) StartGeneration(w http.ResponseWriter, r *http.Request) {
	g, err := a.Svc.StartJob(r.Context(), idParam(r))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusAccepted, g)
}

func (a *App) GenerationProgress(w http.ResponseWriter, r *http.Request) {
	p, err := a.Svc.Progress(r.Context(), idParam(r))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, p)
}

type taskUpdateRequest struct {
	Status   domain.TaskStatus `json:"status"`
	ResultID string            `json:"result_id"`
	Error    string            `json:"error"`
}

// UpdateGenerationTask lets an external worker report task status.
func (a *App) UpdateGenerationTask(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		a.error(w, http.StatusBadRequest, "validation_failed", "task index must be an integer")
		return
	}
	var req taskUpdateRequest
	if !a.decode(w, r, &req) {
		return
	}
	g, err := a.Svc.UpdateTaskStatus(r.Context(), idParam(r), index, domain.TaskUpdate{
		Status:   req.Status,
		ResultID: req.ResultID,
		Error:    req.Error,
	})
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, g)
}

func (a *App) GenerationResults(w http.ResponseWriter, r *http.Request) {
	page, err := a.Svc.ListResults(r.Context(), idParam(r), queryInt(r, "page"), queryInt(r, "limit"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, page)
}

type manifestEntry struct {
	ResultID   string `json:"result_id"`
	PromptID   string `json:"prompt_id"`
	PromptText string `json:"prompt_text"`
	URL        string `json:"url"`
	File       string `json:"file,omitempty"`
}

// GenerationResultsZip bundles the stored artifacts of a job together with a
// manifest listing every result, including ones hosted elsewhere.
func (a *App) GenerationResultsZip(w http.ResponseWriter, r *http.Request) {
	id := idParam(r)
	results, err := a.Svc.AllResults(r.Context(), id)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	assets, manifest, err := a.collectAssets(r.Context(), results)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	raw, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		a.fail(w, r, err)
		return
	}
	assets = append(assets, zip.Asset{Filename: "manifest.json", Data: raw})
	archive, err := zip.ArchiveAssets(assets)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="generation-%s.zip"`, id))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(archive)
}

func (a *App) collectAssets(ctx context.Context, results []domain.GenerationResult) ([]zip.Asset, []manifestEntry, error) {
	assets := make([]zip.Asset, 0, len(results))
	manifest := make([]manifestEntry, 0, len(results))
	for i, res := range results {
		entry := manifestEntry{ResultID: res.ID, PromptID: res.PromptID, PromptText: res.PromptText, URL: res.URL}
		if a.Files != nil {
			if key, ok := a.Files.KeyFromURL(res.URL); ok {
				data, err := a.Files.Read(ctx, key)
				switch {
				case err == nil:
					entry.File = fmt.Sprintf("%03d-%s%s", i+1, res.ID, path.Ext(key))
					assets = append(assets, zip.Asset{Filename: entry.File, Data: data, Modified: res.CreatedAt})
				case !errors.Is(err, storage.ErrNotFound):
					return nil, nil, err
				}
			}
		}
		manifest = append(manifest, entry)
	}
	return assets, manifest, nil
}
