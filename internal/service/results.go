package service

import (
	"context"

	"contentfabric/internal/domain"
)

const (
	defaultResultPage  = 1
	defaultResultLimit = 20
	maxResultLimit     = 100
)

// RecordResult appends the result of one successful task attempt.
func (s *Service) RecordResult(ctx context.Context, generationID, promptID, promptText, url string) (*domain.GenerationResult, error) {
	r := &domain.GenerationResult{
		ID:           s.newID(),
		GenerationID: generationID,
		PromptID:     promptID,
		PromptText:   promptText,
		URL:          url,
		CreatedAt:    s.now(),
	}
	if err := s.store.Results.Create(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

// ListResults returns one page of a job's results, newest first. Page
// defaults to 1 and limit to 20.
func (s *Service) ListResults(ctx context.Context, generationID string, page, limit int) (*domain.ResultPage, error) {
	if page < 1 {
		page = defaultResultPage
	}
	if limit < 1 {
		limit = defaultResultLimit
	}
	limit = min(limit, maxResultLimit)
	if _, err := s.store.Generations.GetByID(ctx, generationID); err != nil {
		return nil, err
	}
	items, total, err := s.store.Results.ListByGeneration(ctx, generationID, page, limit)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []domain.GenerationResult{}
	}
	return &domain.ResultPage{Items: items, Total: total, Page: page, Limit: limit}, nil
}

// AllResults walks every page of a job's results.
func (s *Service) AllResults(ctx context.Context, generationID string) ([]domain.GenerationResult, error) {
	var out []domain.GenerationResult
	for page := 1; ; page++ {
		p, err := s.ListResults(ctx, generationID, page, maxResultLimit)
		if err != nil {
			return nil, err
		}
		out = append(out, p.Items...)
		if len(p.Items) < p.Limit || len(out) >= p.Total {
			return out, nil
		}
	}
}

func (s *Service) GetResult(ctx context.Context, id string) (*domain.GenerationResult, error) {
	return s.store.Results.GetByID(ctx, id)
}

func (s *Service) DeleteResult(ctx context.Context, id string) error {
	return s.store.Results.Delete(ctx, id)
}
