package providers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const (
	defaultClaudeModel     = "claude-sonnet-4-5"
	defaultClaudeMaxTokens = 2048
)

// Claude generates text artifacts with the Anthropic messages API.
type Claude struct {
	client anthropic.Client
}

func NewClaude(apiKey string, extra ...option.RequestOption) *Claude {
	opts := append([]option.RequestOption{option.WithAPIKey(apiKey)}, extra...)
	return &Claude{client: anthropic.NewClient(opts...)}
}

func (c *Claude) Name() string { return NameAnthropic }

func (c *Claude) Generate(ctx context.Context, req Request) (*Output, error) {
	model := req.ModelID
	if model == "" {
		model = defaultClaudeModel
	}
	resp, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: defaultClaudeMaxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(composePrompt(req))),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("claude messages: %w", err)
	}
	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return nil, errors.New("claude messages: empty response")
	}
	return &Output{
		Data: []byte(text.String()),
		MIME: "text/plain; charset=utf-8",
		Key:  fmt.Sprintf("anthropic/%s/%s.txt", model, deterministicSeed(req.RequestID, model, req.PromptText)),
	}, nil
}
