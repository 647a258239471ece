package repo

import (
	"context"
	"encoding/json"
	"fmt"

	"contentfabric/internal/domain"
	"contentfabric/internal/infra"
	"contentfabric/internal/sqlinline"
)

// PromptRepositoryPG implements domain.PromptRepository.
type PromptRepositoryPG struct {
	sql infra.SQLExecutor
}

// NewPromptRepository creates a generated-prompt repository backed by PostgreSQL.
func NewPromptRepository(sql infra.SQLExecutor) *PromptRepositoryPG {
	return &PromptRepositoryPG{sql: sql}
}

// Create inserts a prompt; the (template_id, text) unique key turns a
// duplicate into a Conflict error.
func (r *PromptRepositoryPG) Create(ctx context.Context, p *domain.GeneratedPrompt) error {
	values := p.ParameterValues
	if values == nil {
		values = []domain.ParameterValue{}
	}
	raw, err := json.Marshal(values)
	if err != nil {
		return err
	}
	_, err = r.sql.Exec(ctx, sqlinline.QInsertPrompt, p.ID, p.TemplateID, p.Text, raw, p.CreatedAt)
	if infra.IsUniqueViolation(err) {
		return domain.Conflict("prompt already exists for template %s", p.TemplateID)
	}
	return err
}

func (r *PromptRepositoryPG) GetByID(ctx context.Context, id string) (*domain.GeneratedPrompt, error) {
	p, err := scanPrompt(r.sql.QueryRow(ctx, sqlinline.QSelectPromptByID, id))
	if err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.NotFound("prompt", id)
		}
		return nil, err
	}
	return &p, nil
}

func (r *PromptRepositoryPG) FindByTemplateText(ctx context.Context, templateID, text string) (*domain.GeneratedPrompt, error) {
	p, err := scanPrompt(r.sql.QueryRow(ctx, sqlinline.QSelectPromptByTemplateText, templateID, text))
	if err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.NotFound("prompt")
		}
		return nil, err
	}
	return &p, nil
}

func (r *PromptRepositoryPG) ListByIDs(ctx context.Context, ids []string) ([]domain.GeneratedPrompt, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.sql.Query(ctx, sqlinline.QSelectPromptsByIDs, ids)
	if err != nil {
		return nil, fmt.Errorf("list prompts by id: %w", err)
	}
	return collect(rows, scanPrompt)
}

func (r *PromptRepositoryPG) List(ctx context.Context, templateID string) ([]domain.GeneratedPrompt, error) {
	rows, err := r.sql.Query(ctx, sqlinline.QListPrompts, templateID)
	if err != nil {
		return nil, fmt.Errorf("list prompts: %w", err)
	}
	return collect(rows, scanPrompt)
}

func (r *PromptRepositoryPG) Delete(ctx context.Context, id string) error {
	tag, err := r.sql.Exec(ctx, sqlinline.QDeletePrompt, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.NotFound("prompt", id)
	}
	return nil
}

func (r *PromptRepositoryPG) DeleteByTemplate(ctx context.Context, templateID string) (int, error) {
	tag, err := r.sql.Exec(ctx, sqlinline.QDeletePromptsByTemplate, templateID)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func scanPrompt(row rowScanner) (domain.GeneratedPrompt, error) {
	var (
		p   domain.GeneratedPrompt
		raw []byte
	)
	if err := row.Scan(&p.ID, &p.TemplateID, &p.Text, &raw, &p.CreatedAt); err != nil {
		return p, err
	}
	err := decodeJSON(raw, &p.ParameterValues, "parameter values")
	return p, err
}
