package domain

import "time"

// Parameter is a named list of candidate values usable in template placeholders.
type Parameter struct {
	ID        string    `json:"id"`
	Name      string    `json:"name" badgerhold:"index"`
	Values    []string  `json:"values"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ParameterInput is the payload accepted when creating a parameter.
type ParameterInput struct {
	Name   string   `json:"name" validate:"required,paramname"`
	Values []string `json:"values" validate:"required,min=1,dive,required"`
}

// ParameterPatch carries optional updates; nil fields are left untouched.
type ParameterPatch struct {
	Name   *string  `json:"name" validate:"omitempty,paramname"`
	Values []string `json:"values" validate:"omitempty,min=1,dive,required"`
}
