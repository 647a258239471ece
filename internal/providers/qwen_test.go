package providers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"contentfabric/internal/domain"
)

type qwenStub struct {
	*httptest.Server
	mu    sync.Mutex
	seen  []qwenRequest
	reply func(w http.ResponseWriter)
}

func newQwenStub(t *testing.T) *qwenStub {
	t.Helper()
	png, err := renderSyntheticImage(4, 4, "00112233445566778899aabbccddeeff")
	require.NoError(t, err)

	stub := &qwenStub{}
	mux := http.NewServeMux()
	mux.HandleFunc(qwenGeneratePath, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer qk-test" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		var body qwenRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		stub.mu.Lock()
		stub.seen = append(stub.seen, body)
		reply := stub.reply
		stub.mu.Unlock()
		if reply != nil {
			reply(w)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"request_id": "req-1",
			"output": map[string]any{"choices": []any{map[string]any{
				"message": map[string]any{"role": "assistant", "content": []any{map[string]any{"image": stub.URL + "/img/out.png"}}},
			}}},
		})
	})
	mux.HandleFunc("/img/out.png", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(png)
	})
	stub.Server = httptest.NewServer(mux)
	t.Cleanup(stub.Close)
	return stub
}

func (s *qwenStub) setReply(fn func(w http.ResponseWriter)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reply = fn
}

func TestQwenGenerate(t *testing.T) {
	stub := newQwenStub(t)
	q := NewQwen("qk-test", stub.URL, stub.Client())

	out, err := q.Generate(context.Background(), Request{
		PromptText: "a red fox",
		ModelID:    "qwen-image",
		Provider:   NameQwen,
		Settings:   &domain.GenerationSettings{AspectRatio: "16:9", NegativePrompt: "blur"},
		RequestID:  "g1:0",
	})
	require.NoError(t, err)
	assert.Equal(t, "image/png", out.MIME)
	assert.NotEmpty(t, out.Data)
	assert.True(t, strings.HasPrefix(out.Key, "qwen/qwen-image/"), out.Key)
	assert.True(t, strings.HasSuffix(out.Key, ".png"), out.Key)
	assert.Equal(t, stub.URL+"/img/out.png", out.URL)

	stub.mu.Lock()
	defer stub.mu.Unlock()
	require.Len(t, stub.seen, 1)
	sent := stub.seen[0]
	assert.Equal(t, "qwen-image", sent.Model)
	assert.Equal(t, "1664*928", sent.Parameters.Size)
	assert.Equal(t, "blur", sent.Parameters.NegativePrompt)
	require.Len(t, sent.Input.Messages, 1)
	assert.Equal(t, "a red fox", sent.Input.Messages[0].Content[0].Text)
}

func TestQwenReportsAPIErrors(t *testing.T) {
	stub := newQwenStub(t)
	q := NewQwen("qk-test", stub.URL, stub.Client())

	stub.setReply(func(w http.ResponseWriter) {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{"code": "InvalidParameter", "message": "size not supported"})
	})
	_, err := q.Generate(context.Background(), Request{PromptText: "x"})
	assert.ErrorContains(t, err, "size not supported (InvalidParameter)")

	stub.setReply(func(w http.ResponseWriter) {
		_ = json.NewEncoder(w).Encode(map[string]any{"output": map[string]any{"choices": []any{}}})
	})
	_, err = q.Generate(context.Background(), Request{PromptText: "x"})
	assert.ErrorContains(t, err, "empty image url")

	_, err = q.Generate(context.Background(), Request{PromptText: "  "})
	assert.ErrorContains(t, err, "prompt is required")
}

func TestQwenSize(t *testing.T) {
	assert.Equal(t, "1328*1328", qwenSize(""))
	assert.Equal(t, "928*1664", qwenSize("9:16"))
	assert.Equal(t, "1472*1140", qwenSize("4:3"))
}
