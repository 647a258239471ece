package repo

import (
	"context"
	"fmt"

	"contentfabric/internal/domain"
	"contentfabric/internal/infra"
	"contentfabric/internal/sqlinline"
)

// ParameterRepositoryPG implements domain.ParameterRepository.
type ParameterRepositoryPG struct {
	sql infra.SQLExecutor
}

// NewParameterRepository creates a parameter repository backed by PostgreSQL.
func NewParameterRepository(sql infra.SQLExecutor) *ParameterRepositoryPG {
	return &ParameterRepositoryPG{sql: sql}
}

// Create inserts a new parameter.
func (r *ParameterRepositoryPG) Create(ctx context.Context, p *domain.Parameter) error {
	_, err := r.sql.Exec(ctx, sqlinline.QInsertParameter, p.ID, p.Name, nonNil(p.Values), p.CreatedAt)
	if infra.IsUniqueViolation(err) {
		return domain.Conflict("parameter name %q already exists", p.Name)
	}
	return err
}

// Update rewrites name and values.
func (r *ParameterRepositoryPG) Update(ctx context.Context, p *domain.Parameter) error {
	tag, err := r.sql.Exec(ctx, sqlinline.QUpdateParameter, p.ID, p.Name, nonNil(p.Values), p.UpdatedAt)
	if infra.IsUniqueViolation(err) {
		return domain.Conflict("parameter name %q already exists", p.Name)
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.NotFound("parameter", p.ID)
	}
	return nil
}

func (r *ParameterRepositoryPG) GetByID(ctx context.Context, id string) (*domain.Parameter, error) {
	return r.getOne(ctx, sqlinline.QSelectParameterByID, id)
}

func (r *ParameterRepositoryPG) GetByName(ctx context.Context, name string) (*domain.Parameter, error) {
	return r.getOne(ctx, sqlinline.QSelectParameterByName, name)
}

func (r *ParameterRepositoryPG) getOne(ctx context.Context, query, key string) (*domain.Parameter, error) {
	p, err := scanParameter(r.sql.QueryRow(ctx, query, key))
	if err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.NotFound("parameter", key)
		}
		return nil, err
	}
	return &p, nil
}

func (r *ParameterRepositoryPG) ListByIDs(ctx context.Context, ids []string) ([]domain.Parameter, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.sql.Query(ctx, sqlinline.QSelectParametersByIDs, ids)
	if err != nil {
		return nil, fmt.Errorf("list parameters by id: %w", err)
	}
	return collect(rows, scanParameter)
}

func (r *ParameterRepositoryPG) List(ctx context.Context) ([]domain.Parameter, error) {
	rows, err := r.sql.Query(ctx, sqlinline.QListParameters)
	if err != nil {
		return nil, fmt.Errorf("list parameters: %w", err)
	}
	return collect(rows, scanParameter)
}

func (r *ParameterRepositoryPG) Delete(ctx context.Context, id string) error {
	tag, err := r.sql.Exec(ctx, sqlinline.QDeleteParameter, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.NotFound("parameter", id)
	}
	return nil
}

func scanParameter(row rowScanner) (domain.Parameter, error) {
	var p domain.Parameter
	err := row.Scan(&p.ID, &p.Name, &p.Values, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}
