package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	defaultQwenBaseURL = "https://dashscope-intl.aliyuncs.com/api/v1"
	defaultQwenModel   = "qwen-image-plus"
	qwenGeneratePath   = "/services/aigc/multimodal-generation/generation"
	maxQwenImageBytes  = 32 << 20
)

// Qwen generates images with the DashScope multimodal generation API. The
// negative prompt is sent as a native parameter.
type Qwen struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

func NewQwen(apiKey, baseURL string, httpClient *http.Client) *Qwen {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = defaultQwenBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 90 * time.Second}
	}
	return &Qwen{apiKey: strings.TrimSpace(apiKey), baseURL: baseURL, http: httpClient}
}

func (q *Qwen) Name() string { return NameQwen }

type qwenRequest struct {
	Model string `json:"model"`
	Input struct {
		Messages []qwenMessage `json:"messages"`
	} `json:"input"`
	Parameters qwenParams `json:"parameters"`
}

type qwenMessage struct {
	Role    string        `json:"role"`
	Content []qwenContent `json:"content"`
}

type qwenContent struct {
	Text  string `json:"text,omitempty"`
	Image string `json:"image,omitempty"`
}

type qwenParams struct {
	NegativePrompt string `json:"negative_prompt,omitempty"`
	Size           string `json:"size"`
	Watermark      bool   `json:"watermark"`
}

type qwenResponse struct {
	Output struct {
		Choices []struct {
			Message qwenMessage `json:"message"`
		} `json:"choices"`
	} `json:"output"`
	RequestID string `json:"request_id"`
	Code      string `json:"code"`
	Message   string `json:"message"`
}

func (q *Qwen) Generate(ctx context.Context, req Request) (*Output, error) {
	prompt := strings.TrimSpace(req.PromptText)
	if prompt == "" {
		return nil, errors.New("qwen: prompt is required")
	}
	model := req.ModelID
	if model == "" {
		model = defaultQwenModel
	}
	var payload qwenRequest
	payload.Model = model
	payload.Input.Messages = []qwenMessage{{Role: "user", Content: []qwenContent{{Text: prompt}}}}
	payload.Parameters = qwenParams{
		NegativePrompt: negativePrompt(req.Settings),
		Size:           qwenSize(aspectRatio(req.Settings)),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("qwen: encode request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, q.baseURL+qwenGeneratePath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("qwen: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+q.apiKey)

	resp, err := q.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("qwen: http request: %w", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("qwen: read response: %w", err)
	}

	var decoded qwenResponse
	decodeErr := json.Unmarshal(raw, &decoded)
	if resp.StatusCode >= 300 {
		if decodeErr == nil && decoded.Message != "" {
			return nil, fmt.Errorf("qwen: %s (%s)", decoded.Message, decoded.Code)
		}
		return nil, fmt.Errorf("qwen: status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("qwen: decode response: %w", decodeErr)
	}
	if decoded.Code != "" {
		return nil, fmt.Errorf("qwen: %s (%s)", decoded.Message, decoded.Code)
	}
	imageURL := firstQwenImage(decoded)
	if imageURL == "" {
		return nil, errors.New("qwen: empty image url")
	}

	// Result links expire after a day, so the image is copied into storage.
	data, mime, err := q.download(ctx, imageURL)
	if err != nil {
		return nil, err
	}
	return &Output{
		URL:  imageURL,
		Data: data,
		MIME: mime,
		Key:  fmt.Sprintf("qwen/%s/%s%s", model, deterministicSeed(req.RequestID, prompt), extensionFor(mime)),
	}, nil
}

func (q *Qwen) download(ctx context.Context, imageURL string) ([]byte, string, error) {
	parsed, err := url.Parse(imageURL)
	if err != nil || parsed.Scheme == "" {
		return nil, "", fmt.Errorf("qwen: invalid image url %q", imageURL)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, parsed.String(), nil)
	if err != nil {
		return nil, "", fmt.Errorf("qwen: build download request: %w", err)
	}
	resp, err := q.http.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("qwen: download image: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, "", fmt.Errorf("qwen: download status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxQwenImageBytes))
	if err != nil {
		return nil, "", fmt.Errorf("qwen: read image: %w", err)
	}
	mime := resp.Header.Get("Content-Type")
	if mime == "" || !strings.HasPrefix(mime, "image/") {
		mime = http.DetectContentType(data)
	}
	return data, mime, nil
}

func firstQwenImage(resp qwenResponse) string {
	for _, choice := range resp.Output.Choices {
		for _, c := range choice.Message.Content {
			if u := strings.TrimSpace(c.Image); u != "" {
				return u
			}
		}
	}
	return ""
}

// qwenSize maps an aspect ratio to a size the qwen-image models accept.
func qwenSize(aspect string) string {
	switch aspect {
	case "16:9":
		return "1664*928"
	case "9:16":
		return "928*1664"
	case "4:3":
		return "1472*1140"
	case "3:4":
		return "1140*1472"
	default:
		return "1328*1328"
	}
}
