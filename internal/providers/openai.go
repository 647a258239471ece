package providers

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const defaultOpenAIImageModel = "gpt-image-1"

// OpenAIImages generates images with the OpenAI images endpoint.
type OpenAIImages struct {
	client openai.Client
}

func NewOpenAIImages(apiKey, baseURL string, extra ...option.RequestOption) *OpenAIImages {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if strings.TrimSpace(baseURL) != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	opts = append(opts, extra...)
	return &OpenAIImages{client: openai.NewClient(opts...)}
}

func (o *OpenAIImages) Name() string { return NameOpenAI }

func (o *OpenAIImages) Generate(ctx context.Context, req Request) (*Output, error) {
	model := req.ModelID
	if model == "" {
		model = defaultOpenAIImageModel
	}
	params := openai.ImageGenerateParams{
		Prompt: composePrompt(Request{PromptText: req.PromptText, Settings: negativeOnly(req.Settings)}),
		Model:  openai.ImageModel(model),
		N:      openai.Int(1),
		Size:   openai.ImageGenerateParamsSize(openAISize(aspectRatio(req.Settings))),
	}
	resp, err := o.client.Images.Generate(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai images: %w", err)
	}
	if resp == nil || len(resp.Data) == 0 {
		return nil, errors.New("openai images: empty response")
	}
	img := resp.Data[0]
	if img.B64JSON != "" {
		data, err := base64.StdEncoding.DecodeString(img.B64JSON)
		if err != nil {
			return nil, fmt.Errorf("openai images: decode payload: %w", err)
		}
		return &Output{
			Data: data,
			MIME: "image/png",
			Key:  fmt.Sprintf("openai/%s/%s.png", model, deterministicSeed(req.RequestID, req.PromptText)),
		}, nil
	}
	if img.URL == "" {
		return nil, errors.New("openai images: response carries neither url nor data")
	}
	return &Output{URL: img.URL}, nil
}

// openAISize picks the closest size the images endpoint accepts.
func openAISize(aspect string) string {
	w, h := aspectSize(aspect)
	switch {
	case w > h:
		return "1536x1024"
	case h > w:
		return "1024x1536"
	default:
		return "1024x1024"
	}
}
