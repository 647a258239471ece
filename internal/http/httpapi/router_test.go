package httpapi

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"contentfabric/internal/adapter/memstore"
	"contentfabric/internal/http/handlers"
	"contentfabric/internal/providers"
	"contentfabric/internal/queue"
	"contentfabric/internal/service"
	"contentfabric/internal/storage"
	"contentfabric/internal/worker"
)

type testServer struct {
	t      *testing.T
	router http.Handler
	pool   *queue.Pool
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	q := queue.NewMemory(time.Minute)
	svc := service.New(memstore.New(), q, service.Options{
		Queue: queue.Options{Attempts: 2, Backoff: queue.Backoff{Type: queue.BackoffExponential}},
	}, zerolog.Nop())
	files, err := storage.NewFileStore(t.TempDir(), "http://example.test/static")
	require.NoError(t, err)
	proc := worker.NewProcessor(svc, providers.NewSynthetic(0, zerolog.Nop()), files, zerolog.Nop())
	app := handlers.NewApp(svc, files, zerolog.Nop())
	return &testServer{
		t:      t,
		router: NewRouter(app, Options{CORSOrigins: SplitOrigins("http://admin.local, "), RateLimitPerMin: 0}),
		pool:   queue.NewPool(q, proc.Handle, 1, time.Millisecond, zerolog.Nop()),
	}
}

func (s *testServer) do(method, path string, body any) *httptest.ResponseRecorder {
	s.t.Helper()
	var rdr io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(s.t, err)
		rdr = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, rdr)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	s.router.ServeHTTP(rr, req)
	return rr
}

func decodeInto[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out), rr.Body.String())
	return out
}

type errorEnvelope struct {
	Error struct {
		Code    string   `json:"code"`
		Message string   `json:"message"`
		IDs     []string `json:"ids"`
	} `json:"error"`
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	rr := s.do(http.MethodGet, "/api/health", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())
	assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))
}

func TestOpenAPIDocumentRevalidates(t *testing.T) {
	s := newTestServer(t)
	rr := s.do(http.MethodGet, "/api/openapi.json", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"openapi"`)
	etag := rr.Header().Get("ETag")
	require.NotEmpty(t, etag)

	req := httptest.NewRequest(http.MethodGet, "/api/openapi.json", nil)
	req.Header.Set("If-None-Match", etag)
	rr = httptest.NewRecorder()
	s.router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusNotModified, rr.Code)
	assert.Empty(t, rr.Body.Bytes())

	rr = s.do(http.MethodGet, "/api/docs", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "/api/openapi.json")
}

func TestGenerationFlowOverHTTP(t *testing.T) {
	s := newTestServer(t)

	rr := s.do(http.MethodPost, "/api/parameters", map[string]any{"name": "style", "values": []string{"orange", "black"}})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	param := decodeInto[map[string]any](t, rr)

	rr = s.do(http.MethodPost, "/api/prompt-templates", map[string]any{
		"name": "cats", "template": "A {{style}} cat", "parameter_ids": []any{param["id"]},
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	tpl := decodeInto[map[string]any](t, rr)

	rr = s.do(http.MethodPost, "/api/generated-prompts/generate", map[string]any{"template_ids": []any{tpl["id"]}})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	expanded := decodeInto[struct {
		Generated int `json:"generated"`
		Prompts   []struct {
			ID   string `json:"id"`
			Text string `json:"text"`
		} `json:"prompts"`
	}](t, rr)
	require.Equal(t, 2, expanded.Generated)

	rr = s.do(http.MethodPost, "/api/generations", map[string]any{
		"name": "cats", "model_id": "img-1", "provider": "synthetic",
		"prompt_ids": []string{expanded.Prompts[0].ID, expanded.Prompts[1].ID},
		"settings":   map[string]any{"aspect_ratio": "16:9"},
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	gen := decodeInto[map[string]any](t, rr)
	id := gen["id"].(string)
	assert.Equal(t, "draft", gen["status"])

	rr = s.do(http.MethodPost, "/api/generations/"+id+"/start", nil)
	require.Equal(t, http.StatusAccepted, rr.Code, rr.Body.String())

	rr = s.do(http.MethodPost, "/api/generations/"+id+"/start", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	_, err := s.pool.Drain(context.Background())
	require.NoError(t, err)

	rr = s.do(http.MethodGet, "/api/generations/"+id, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	view := decodeInto[struct {
		Status   string `json:"status"`
		Progress struct {
			Total      int `json:"total"`
			Completed  int `json:"completed"`
			Percentage int `json:"percentage"`
		} `json:"progress"`
	}](t, rr)
	assert.Equal(t, "completed", view.Status)
	assert.Equal(t, 2, view.Progress.Completed)
	assert.Equal(t, 100, view.Progress.Percentage)

	rr = s.do(http.MethodGet, "/api/generation-results?generation_id="+id+"&limit=1", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	page := decodeInto[struct {
		Items []map[string]any `json:"items"`
		Total int              `json:"total"`
		Limit int              `json:"limit"`
	}](t, rr)
	assert.Equal(t, 2, page.Total)
	assert.Equal(t, 1, page.Limit)
	assert.Len(t, page.Items, 1)

	rr = s.do(http.MethodGet, "/api/generations/"+id+"/results.zip", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/zip", rr.Header().Get("Content-Type"))
	zr, err := zip.NewReader(bytes.NewReader(rr.Body.Bytes()), int64(rr.Body.Len()))
	require.NoError(t, err)
	assert.Len(t, zr.File, 3, "two images and the manifest")

	rr = s.do(http.MethodDelete, "/api/generations/"+id, nil)
	assert.Equal(t, http.StatusNoContent, rr.Code)
	rr = s.do(http.MethodGet, "/api/generations/"+id+"/progress", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestErrorEnvelope(t *testing.T) {
	s := newTestServer(t)

	rr := s.do(http.MethodPost, "/api/generated-prompts/generate", map[string]any{"template_ids": []string{"t-1", "t-2"}})
	require.Equal(t, http.StatusNotFound, rr.Code)
	env := decodeInto[errorEnvelope](t, rr)
	assert.Equal(t, "not_found", env.Error.Code)
	assert.Equal(t, []string{"t-1", "t-2"}, env.Error.IDs)

	rr = s.do(http.MethodPost, "/api/parameters", map[string]any{"name": "dup", "values": []string{"a"}})
	require.Equal(t, http.StatusCreated, rr.Code)
	rr = s.do(http.MethodPost, "/api/parameters", map[string]any{"name": "dup", "values": []string{"b"}})
	require.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, "conflict", decodeInto[errorEnvelope](t, rr).Error.Code)

	rr = s.do(http.MethodPost, "/api/parameters", map[string]any{"name": "DUP", "values": []string{"b"}})
	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "validation_failed", decodeInto[errorEnvelope](t, rr).Error.Code)

	rr = s.do(http.MethodPost, "/api/parameters", map[string]any{"name": "1bad", "values": []string{"b"}})
	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "validation_failed", decodeInto[errorEnvelope](t, rr).Error.Code)

	rr = s.do(http.MethodPost, "/api/parameters", map[string]any{"name": "x", "values": []string{"b"}, "extra": true})
	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "bad_request", decodeInto[errorEnvelope](t, rr).Error.Code)

	rr = s.do(http.MethodPost, "/api/generations", map[string]any{
		"name": "x", "model_id": "m", "provider": "synthetic", "prompt_ids": []string{"ghost"},
	})
	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, []string{"ghost"}, decodeInto[errorEnvelope](t, rr).Error.IDs)

	rr = s.do(http.MethodPatch, "/api/generations/nope/tasks/abc", map[string]any{"status": "completed"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = s.do(http.MethodGet, "/api/generation-results", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestTaskUpdateEndpoint(t *testing.T) {
	s := newTestServer(t)
	rr := s.do(http.MethodPost, "/api/prompt-templates", map[string]any{"name": "plain", "template": "a plain prompt"})
	require.Equal(t, http.StatusCreated, rr.Code)
	tpl := decodeInto[map[string]any](t, rr)

	rr = s.do(http.MethodPost, "/api/prompt-templates/"+tpl["id"].(string)+"/expand", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	expanded := decodeInto[struct {
		Prompts []struct {
			ID string `json:"id"`
		} `json:"prompts"`
	}](t, rr)

	rr = s.do(http.MethodPost, "/api/generations", map[string]any{
		"name": "one", "model_id": "m", "provider": "synthetic", "prompt_ids": []string{expanded.Prompts[0].ID},
	})
	require.Equal(t, http.StatusCreated, rr.Code)
	id := decodeInto[map[string]any](t, rr)["id"].(string)
	require.Equal(t, http.StatusAccepted, s.do(http.MethodPost, "/api/generations/"+id+"/start", nil).Code)

	rr = s.do(http.MethodPatch, "/api/generations/"+id+"/tasks/0", map[string]any{"status": "failed", "error": "external worker gave up"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, "failed", decodeInto[map[string]any](t, rr)["status"])

	rr = s.do(http.MethodPatch, "/api/generations/"+id+"/tasks/5", map[string]any{"status": "failed"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}
