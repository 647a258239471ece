package providers

import (
	"context"
	"errors"
	"fmt"
	"mime"

	"google.golang.org/genai"
)

const defaultGeminiModel = "gemini-2.5-flash-image"

// Gemini generates content with the Gemini API. Inline image parts are
// returned as data; a text-only answer is stored as a text artifact.
type Gemini struct {
	client *genai.Client
}

func NewGemini(ctx context.Context, apiKey string) (*Gemini, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}
	return &Gemini{client: client}, nil
}

func (g *Gemini) Name() string { return NameGoogle }

func (g *Gemini) Generate(ctx context.Context, req Request) (*Output, error) {
	model := req.ModelID
	if model == "" {
		model = defaultGeminiModel
	}
	contents := []*genai.Content{{
		Role:  genai.RoleUser,
		Parts: []*genai.Part{genai.NewPartFromText(composePrompt(req))},
	}}
	resp, err := g.client.Models.GenerateContent(ctx, model, contents, &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(0.4)),
	})
	if err != nil {
		return nil, fmt.Errorf("gemini generate: %w", err)
	}
	if resp == nil || len(resp.Candidates) == 0 {
		return nil, errors.New("gemini generate: empty response")
	}
	seed := deterministicSeed(req.RequestID, model, req.PromptText)
	for _, cand := range resp.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if part == nil || part.InlineData == nil || len(part.InlineData.Data) == 0 {
				continue
			}
			return &Output{
				Data: part.InlineData.Data,
				MIME: part.InlineData.MIMEType,
				Key:  fmt.Sprintf("google/%s/%s%s", model, seed, extensionFor(part.InlineData.MIMEType)),
			}, nil
		}
	}
	text := resp.Text()
	if text == "" {
		return nil, errors.New("gemini generate: response has no inline data or text")
	}
	return &Output{
		Data: []byte(text),
		MIME: "text/plain; charset=utf-8",
		Key:  fmt.Sprintf("google/%s/%s.txt", model, seed),
	}, nil
}

func extensionFor(mimeType string) string {
	switch mimeType {
	case "image/png":
		return ".png"
	case "image/jpeg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	}
	if exts, err := mime.ExtensionsByType(mimeType); err == nil && len(exts) > 0 {
		return exts[0]
	}
	return ".bin"
}
