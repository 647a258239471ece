package repo

import (
	"context"
	"fmt"

	"contentfabric/internal/domain"
	"contentfabric/internal/infra"
	"contentfabric/internal/sqlinline"
)

// ResultRepositoryPG implements domain.ResultRepository.
type ResultRepositoryPG struct {
	sql infra.SQLExecutor
}

// NewResultRepository creates a result repository backed by PostgreSQL.
func NewResultRepository(sql infra.SQLExecutor) *ResultRepositoryPG {
	return &ResultRepositoryPG{sql: sql}
}

func (r *ResultRepositoryPG) Create(ctx context.Context, res *domain.GenerationResult) error {
	_, err := r.sql.Exec(ctx, sqlinline.QInsertResult,
		res.ID,
		res.GenerationID,
		res.PromptID,
		res.PromptText,
		res.URL,
		res.CreatedAt,
	)
	return err
}

func (r *ResultRepositoryPG) GetByID(ctx context.Context, id string) (*domain.GenerationResult, error) {
	res, err := scanResult(r.sql.QueryRow(ctx, sqlinline.QSelectResultByID, id))
	if err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.NotFound("result", id)
		}
		return nil, err
	}
	return &res, nil
}

func (r *ResultRepositoryPG) ListByGeneration(ctx context.Context, generationID string, page, limit int) ([]domain.GenerationResult, int, error) {
	var total int
	if err := r.sql.QueryRow(ctx, sqlinline.QCountResultsByGeneration, generationID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count results: %w", err)
	}
	rows, err := r.sql.Query(ctx, sqlinline.QListResultsByGeneration, generationID, limit, (page-1)*limit)
	if err != nil {
		return nil, 0, fmt.Errorf("list results: %w", err)
	}
	items, err := collect(rows, scanResult)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (r *ResultRepositoryPG) Delete(ctx context.Context, id string) error {
	tag, err := r.sql.Exec(ctx, sqlinline.QDeleteResult, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.NotFound("result", id)
	}
	return nil
}

func (r *ResultRepositoryPG) DeleteByGeneration(ctx context.Context, generationID string) (int, error) {
	tag, err := r.sql.Exec(ctx, sqlinline.QDeleteResultsByGeneration, generationID)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func scanResult(row rowScanner) (domain.GenerationResult, error) {
	var res domain.GenerationResult
	err := row.Scan(&res.ID, &res.GenerationID, &res.PromptID, &res.PromptText, &res.URL, &res.CreatedAt)
	return res, err
}
