package domain

import "time"

// PromptTemplate is a template string with {{placeholder}} tokens plus the
// parameters (by id) that may fill them.
type PromptTemplate struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Template     string    `json:"template"`
	ParameterIDs []string  `json:"parameter_ids"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// HasParameter reports whether the template references parameterID.
func (t PromptTemplate) HasParameter(parameterID string) bool {
	for _, id := range t.ParameterIDs {
		if id == parameterID {
			return true
		}
	}
	return false
}

// EmbeddedParameter is a parameter declared inline while creating a template.
// It is upserted by name.
type EmbeddedParameter struct {
	Name   string   `json:"name" validate:"required,paramname"`
	Values []string `json:"values" validate:"required,min=1,dive,required"`
}

// TemplateInput is the payload accepted when creating a template.
type TemplateInput struct {
	Name               string              `json:"name" validate:"required,max=200"`
	Template           string              `json:"template" validate:"required"`
	ParameterIDs       []string            `json:"parameter_ids" validate:"omitempty,dive,required"`
	EmbeddedParameters []EmbeddedParameter `json:"embedded_parameters" validate:"omitempty,dive"`
}

// TemplatePatch carries optional template updates.
type TemplatePatch struct {
	Name         *string  `json:"name" validate:"omitempty,max=200"`
	Template     *string  `json:"template"`
	ParameterIDs []string `json:"parameter_ids" validate:"omitempty,dive,required"`
}
