package domain

import "time"

// ParameterValue records which value of a named parameter produced a prompt.
type ParameterValue struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// GeneratedPrompt is one fully substituted template text. (TemplateID, Text)
// is unique.
type GeneratedPrompt struct {
	ID              string           `json:"id"`
	TemplateID      string           `json:"template_id" badgerhold:"index"`
	Text            string           `json:"text"`
	ParameterValues []ParameterValue `json:"parameter_values"`
	CreatedAt       time.Time        `json:"created_at"`
}

// ExpandResult summarises an expansion call across all requested templates.
type ExpandResult struct {
	Generated int               `json:"generated"`
	Skipped   int               `json:"skipped"`
	Prompts   []GeneratedPrompt `json:"prompts"`
}
