package domain

import "time"

// GenerationResult is the append-only record of one successful task attempt.
type GenerationResult struct {
	ID           string    `json:"id"`
	GenerationID string    `json:"generation_id" badgerhold:"index"`
	PromptID     string    `json:"prompt_id"`
	PromptText   string    `json:"prompt_text"`
	URL          string    `json:"url"`
	CreatedAt    time.Time `json:"created_at"`
}

// ResultPage is one page of results for a generation.
type ResultPage struct {
	Items []GenerationResult `json:"items"`
	Total int                `json:"total"`
	Page  int                `json:"page"`
	Limit int                `json:"limit"`
}
