package domain

import (
	"context"
	"time"
)

// ParameterRepository persists parameters. Names are unique; Create and
// Update return a Conflict error on a duplicate name.
type ParameterRepository interface {
	Create(ctx context.Context, p *Parameter) error
	Update(ctx context.Context, p *Parameter) error
	GetByID(ctx context.Context, id string) (*Parameter, error)
	GetByName(ctx context.Context, name string) (*Parameter, error)
	ListByIDs(ctx context.Context, ids []string) ([]Parameter, error)
	List(ctx context.Context) ([]Parameter, error)
	Delete(ctx context.Context, id string) error
}

// TemplateRepository persists prompt templates.
type TemplateRepository interface {
	Create(ctx context.Context, t *PromptTemplate) error
	Update(ctx context.Context, t *PromptTemplate) error
	GetByID(ctx context.Context, id string) (*PromptTemplate, error)
	ListByIDs(ctx context.Context, ids []string) ([]PromptTemplate, error)
	List(ctx context.Context) ([]PromptTemplate, error)
	Delete(ctx context.Context, id string) error
	// RemoveParameter pulls parameterID from every template referencing it and
	// returns how many templates changed.
	RemoveParameter(ctx context.Context, parameterID string) (int, error)
}

// PromptRepository persists generated prompts. (TemplateID, Text) is unique;
// Create returns a Conflict error when the pair already exists.
type PromptRepository interface {
	Create(ctx context.Context, p *GeneratedPrompt) error
	GetByID(ctx context.Context, id string) (*GeneratedPrompt, error)
	FindByTemplateText(ctx context.Context, templateID, text string) (*GeneratedPrompt, error)
	ListByIDs(ctx context.Context, ids []string) ([]GeneratedPrompt, error)
	// List returns prompts newest first, filtered by template when templateID is set.
	List(ctx context.Context, templateID string) ([]GeneratedPrompt, error)
	Delete(ctx context.Context, id string) error
	DeleteByTemplate(ctx context.Context, templateID string) (int, error)
}

// GenerationRepository persists generation jobs. Task mutation happens only
// through UpdateTask, which touches exactly one task by index.
type GenerationRepository interface {
	Create(ctx context.Context, g *Generation) error
	GetByID(ctx context.Context, id string) (*Generation, error)
	List(ctx context.Context) ([]Generation, error)
	Delete(ctx context.Context, id string) error
	// TransitionStatus sets the job status to `to` only if it is currently
	// `from`, reporting whether the write happened.
	TransitionStatus(ctx context.Context, id string, from, to GenerationStatus) (bool, error)
	// UpdateTask applies u to the task at index. It reports false without error
	// when the job is missing, the index is out of range, or the update would
	// move a completed task backwards.
	UpdateTask(ctx context.Context, id string, index int, u TaskUpdate) (bool, error)
	// ListStale returns jobs in status whose last update is older than before.
	ListStale(ctx context.Context, status GenerationStatus, before time.Time) ([]Generation, error)
}

// ResultRepository persists generation results.
type ResultRepository interface {
	Create(ctx context.Context, r *GenerationResult) error
	GetByID(ctx context.Context, id string) (*GenerationResult, error)
	// ListByGeneration returns one page (1-based) newest first and the total count.
	ListByGeneration(ctx context.Context, generationID string, page, limit int) ([]GenerationResult, int, error)
	Delete(ctx context.Context, id string) error
	DeleteByGeneration(ctx context.Context, generationID string) (int, error)
}

// Store groups the repositories of one backend.
type Store struct {
	Parameters  ParameterRepository
	Templates   TemplateRepository
	Prompts     PromptRepository
	Generations GenerationRepository
	Results     ResultRepository
}
