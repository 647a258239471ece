package repo

import (
	"context"
	"fmt"

	"contentfabric/internal/domain"
	"contentfabric/internal/infra"
	"contentfabric/internal/sqlinline"
)

// TemplateRepositoryPG implements domain.TemplateRepository.
type TemplateRepositoryPG struct {
	sql infra.SQLExecutor
}

// NewTemplateRepository creates a template repository backed by PostgreSQL.
func NewTemplateRepository(sql infra.SQLExecutor) *TemplateRepositoryPG {
	return &TemplateRepositoryPG{sql: sql}
}

func (r *TemplateRepositoryPG) Create(ctx context.Context, t *domain.PromptTemplate) error {
	_, err := r.sql.Exec(ctx, sqlinline.QInsertTemplate, t.ID, t.Name, t.Template, nonNil(t.ParameterIDs), t.CreatedAt)
	return err
}

func (r *TemplateRepositoryPG) Update(ctx context.Context, t *domain.PromptTemplate) error {
	tag, err := r.sql.Exec(ctx, sqlinline.QUpdateTemplate, t.ID, t.Name, t.Template, nonNil(t.ParameterIDs), t.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.NotFound("template", t.ID)
	}
	return nil
}

func (r *TemplateRepositoryPG) GetByID(ctx context.Context, id string) (*domain.PromptTemplate, error) {
	t, err := scanTemplate(r.sql.QueryRow(ctx, sqlinline.QSelectTemplateByID, id))
	if err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.NotFound("template", id)
		}
		return nil, err
	}
	return &t, nil
}

func (r *TemplateRepositoryPG) ListByIDs(ctx context.Context, ids []string) ([]domain.PromptTemplate, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.sql.Query(ctx, sqlinline.QSelectTemplatesByIDs, ids)
	if err != nil {
		return nil, fmt.Errorf("list templates by id: %w", err)
	}
	return collect(rows, scanTemplate)
}

func (r *TemplateRepositoryPG) List(ctx context.Context) ([]domain.PromptTemplate, error) {
	rows, err := r.sql.Query(ctx, sqlinline.QListTemplates)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	return collect(rows, scanTemplate)
}

func (r *TemplateRepositoryPG) Delete(ctx context.Context, id string) error {
	tag, err := r.sql.Exec(ctx, sqlinline.QDeleteTemplate, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.NotFound("template", id)
	}
	return nil
}

func (r *TemplateRepositoryPG) RemoveParameter(ctx context.Context, parameterID string) (int, error) {
	tag, err := r.sql.Exec(ctx, sqlinline.QRemoveTemplateParameter, parameterID)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func scanTemplate(row rowScanner) (domain.PromptTemplate, error) {
	var t domain.PromptTemplate
	err := row.Scan(&t.ID, &t.Name, &t.Template, &t.ParameterIDs, &t.CreatedAt, &t.UpdatedAt)
	return t, err
}
