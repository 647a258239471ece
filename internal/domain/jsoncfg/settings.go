package jsoncfg

import (
	"encoding/json"
	"fmt"
	"strings"

	"contentfabric/internal/domain"
)

// MaxNegativePromptLength caps the stored negative prompt.
const MaxNegativePromptLength = 1000

// NormalizeSettings trims free-form fields and returns nil when nothing is set,
// so empty settings are stored as SQL NULL rather than '{}'.
func NormalizeSettings(s *domain.GenerationSettings) *domain.GenerationSettings {
	if s == nil {
		return nil
	}
	out := domain.GenerationSettings{
		AspectRatio:    strings.TrimSpace(s.AspectRatio),
		NegativePrompt: strings.TrimSpace(s.NegativePrompt),
	}
	if len(out.NegativePrompt) > MaxNegativePromptLength {
		out.NegativePrompt = out.NegativePrompt[:MaxNegativePromptLength]
	}
	if out.AspectRatio == "" && out.NegativePrompt == "" {
		return nil
	}
	return &out
}

// MarshalSettings encodes settings for a jsonb column; nil stays nil.
func MarshalSettings(s *domain.GenerationSettings) ([]byte, error) {
	if s == nil {
		return nil, nil
	}
	return json.Marshal(s)
}

// UnmarshalSettings decodes a jsonb column; empty input yields nil.
func UnmarshalSettings(raw []byte) (*domain.GenerationSettings, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var s domain.GenerationSettings
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("decode settings: %w", err)
	}
	return &s, nil
}
