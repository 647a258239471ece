// Package providers adapts external model APIs to a single Generator
// contract used by the task processor.
package providers

import (
	"context"
	"errors"

	"contentfabric/internal/domain"
)

// Provider names accepted on a generation.
const (
	NameOpenAI    = "openai"
	NameGoogle    = "google"
	NameAnthropic = "anthropic"
	NameQwen      = "qwen"
	NameSynthetic = "synthetic"
)

// ErrUnknownProvider is returned when a work item names a provider with no
// registered generator.
var ErrUnknownProvider = errors.New("providers: unknown provider")

// Request is everything a provider needs to render one prompt.
type Request struct {
	PromptText string
	ModelID    string
	Provider   string
	Settings   *domain.GenerationSettings
	RequestID  string
}

// Output is the artifact of one call. When Data is set the caller persists it
// under Key; otherwise URL already points at the hosted artifact.
type Output struct {
	URL  string
	Data []byte
	MIME string
	Key  string
}

// Generator renders a prompt with one provider.
type Generator interface {
	Name() string
	Generate(ctx context.Context, req Request) (*Output, error)
}

func aspectRatio(s *domain.GenerationSettings) string {
	if s == nil {
		return ""
	}
	return s.AspectRatio
}

func negativePrompt(s *domain.GenerationSettings) string {
	if s == nil {
		return ""
	}
	return s.NegativePrompt
}

// composePrompt folds the optional settings into the plain prompt text for
// providers without dedicated request fields.
func composePrompt(req Request) string {
	text := req.PromptText
	if ar := aspectRatio(req.Settings); ar != "" {
		text += "\nAspect ratio: " + ar
	}
	if neg := negativePrompt(req.Settings); neg != "" {
		text += "\nAvoid: " + neg
	}
	return text
}

// negativeOnly keeps only the negative prompt, for providers that take the
// aspect ratio as a native request field.
func negativeOnly(s *domain.GenerationSettings) *domain.GenerationSettings {
	if s == nil || s.NegativePrompt == "" {
		return nil
	}
	return &domain.GenerationSettings{NegativePrompt: s.NegativePrompt}
}
