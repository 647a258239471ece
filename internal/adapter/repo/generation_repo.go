package repo

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"contentfabric/internal/domain"
	"contentfabric/internal/domain/jsoncfg"
	"contentfabric/internal/infra"
	"contentfabric/internal/sqlinline"
)

// GenerationRepositoryPG implements domain.GenerationRepository. Tasks live
// in a jsonb array and are patched one index at a time.
type GenerationRepositoryPG struct {
	sql infra.SQLExecutor
}

// NewGenerationRepository creates a generation repository backed by PostgreSQL.
func NewGenerationRepository(sql infra.SQLExecutor) *GenerationRepositoryPG {
	return &GenerationRepositoryPG{sql: sql}
}

func (r *GenerationRepositoryPG) Create(ctx context.Context, g *domain.Generation) error {
	settings, err := jsoncfg.MarshalSettings(g.Settings)
	if err != nil {
		return err
	}
	tasks := g.Tasks
	if tasks == nil {
		tasks = []domain.GenerationTask{}
	}
	rawTasks, err := json.Marshal(tasks)
	if err != nil {
		return err
	}
	_, err = r.sql.Exec(ctx, sqlinline.QInsertGeneration,
		g.ID,
		g.Name,
		g.ModelID,
		g.Provider,
		settings,
		string(g.Status),
		rawTasks,
		g.CreatedAt,
	)
	return err
}

func (r *GenerationRepositoryPG) GetByID(ctx context.Context, id string) (*domain.Generation, error) {
	g, err := scanGeneration(r.sql.QueryRow(ctx, sqlinline.QSelectGenerationByID, id))
	if err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.NotFound("generation", id)
		}
		return nil, err
	}
	return &g, nil
}

func (r *GenerationRepositoryPG) List(ctx context.Context) ([]domain.Generation, error) {
	rows, err := r.sql.Query(ctx, sqlinline.QListGenerations)
	if err != nil {
		return nil, fmt.Errorf("list generations: %w", err)
	}
	return collect(rows, scanGeneration)
}

func (r *GenerationRepositoryPG) ListStale(ctx context.Context, status domain.GenerationStatus, before time.Time) ([]domain.Generation, error) {
	rows, err := r.sql.Query(ctx, sqlinline.QListStaleGenerations, string(status), before)
	if err != nil {
		return nil, fmt.Errorf("list stale generations: %w", err)
	}
	return collect(rows, scanGeneration)
}

func (r *GenerationRepositoryPG) Delete(ctx context.Context, id string) error {
	tag, err := r.sql.Exec(ctx, sqlinline.QDeleteGeneration, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.NotFound("generation", id)
	}
	return nil
}

func (r *GenerationRepositoryPG) TransitionStatus(ctx context.Context, id string, from, to domain.GenerationStatus) (bool, error) {
	tag, err := r.sql.Exec(ctx, sqlinline.QTransitionGenerationStatus, id, string(from), string(to))
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// UpdateTask patches tasks[index] in place with jsonb_set; the WHERE clause
// carries the range check and keeps completed tasks completed.
func (r *GenerationRepositoryPG) UpdateTask(ctx context.Context, id string, index int, u domain.TaskUpdate) (bool, error) {
	n := u.Normalized()
	patch := map[string]string{"status": string(n.Status)}
	if n.ResultID != "" {
		patch["result_id"] = n.ResultID
	}
	if n.Error != "" {
		patch["error"] = n.Error
	}
	raw, err := json.Marshal(patch)
	if err != nil {
		return false, err
	}
	tag, err := r.sql.Exec(ctx, sqlinline.QUpdateGenerationTask, id, index, raw, string(n.Status))
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func scanGeneration(row rowScanner) (domain.Generation, error) {
	var (
		g           domain.Generation
		status      string
		rawSettings []byte
		rawTasks    []byte
	)
	if err := row.Scan(&g.ID, &g.Name, &g.ModelID, &g.Provider, &rawSettings, &status, &rawTasks, &g.CreatedAt, &g.UpdatedAt); err != nil {
		return g, err
	}
	g.Status = domain.GenerationStatus(status)
	settings, err := jsoncfg.UnmarshalSettings(rawSettings)
	if err != nil {
		return g, err
	}
	g.Settings = settings
	err = decodeJSON(rawTasks, &g.Tasks, "tasks")
	return g, err
}
