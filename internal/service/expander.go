package service

import (
	"context"
	"errors"
	"fmt"

	"contentfabric/internal/domain"
)

// expansionPlan is a validated template ready to be materialised.
type expansionPlan struct {
	template domain.PromptTemplate
	used     []domain.Parameter
}

// Expand materialises every substitution of the given templates as generated
// prompts. All templates are validated before the first prompt is written;
// prompts that already exist are returned and counted as skipped.
func (s *Service) Expand(ctx context.Context, templateIDs []string) (*domain.ExpandResult, error) {
	ids := cleanIDs(templateIDs)
	if len(ids) == 0 {
		return nil, domain.Validation("TemplateIDs must contain at least 1 item(s)")
	}
	plans, err := s.planExpansion(ctx, ids)
	if err != nil {
		return nil, err
	}

	res := &domain.ExpandResult{Prompts: []domain.GeneratedPrompt{}}
	for _, plan := range plans {
		for _, combo := range domain.Combinations(plan.used) {
			// The NFC form is what the (templateId, text) key stores, so values
			// written before normalization still dedupe against new prompts.
			text := domain.NormalizeText(domain.Substitute(plan.template.Template, combo))
			p, created, err := s.createPromptIfAbsent(ctx, plan.template.ID, text, combo)
			if err != nil {
				return nil, err
			}
			if created {
				res.Generated++
			} else {
				res.Skipped++
			}
			res.Prompts = append(res.Prompts, *p)
		}
	}
	s.logger.Info().
		Int("templates", len(plans)).
		Int("generated", res.Generated).
		Int("skipped", res.Skipped).
		Msg("service: templates expanded")
	return res, nil
}

func (s *Service) planExpansion(ctx context.Context, ids []string) ([]expansionPlan, error) {
	templates, err := s.store.Templates.ListByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]domain.PromptTemplate, len(templates))
	found := make(map[string]struct{}, len(templates))
	var paramIDs []string
	for _, t := range templates {
		byID[t.ID] = t
		found[t.ID] = struct{}{}
		paramIDs = append(paramIDs, t.ParameterIDs...)
	}
	if missing := missingIDs(ids, found); len(missing) > 0 {
		return nil, domain.NotFound("template", missing...)
	}

	params := map[string]domain.Parameter{}
	if paramIDs = domain.UniqueStrings(paramIDs); len(paramIDs) > 0 {
		list, err := s.store.Parameters.ListByIDs(ctx, paramIDs)
		if err != nil {
			return nil, err
		}
		for _, p := range list {
			params[p.ID] = p
		}
	}

	plans := make([]expansionPlan, 0, len(ids))
	for _, id := range ids {
		plan, err := planTemplate(byID[id], params)
		if err != nil {
			return nil, err
		}
		plans = append(plans, plan)
	}
	return plans, nil
}

// planTemplate picks the template's parameters whose names occur as
// placeholders, in parameterIds order, and rejects placeholders without one.
func planTemplate(t domain.PromptTemplate, params map[string]domain.Parameter) (expansionPlan, error) {
	placeholders := domain.ExtractPlaceholders(t.Template)
	wanted := make(map[string]struct{}, len(placeholders))
	for _, name := range placeholders {
		wanted[name] = struct{}{}
	}
	plan := expansionPlan{template: t}
	bound := make(map[string]struct{}, len(placeholders))
	for _, pid := range t.ParameterIDs {
		p, ok := params[pid]
		if !ok {
			continue
		}
		if _, ok := wanted[p.Name]; !ok {
			continue
		}
		if _, dup := bound[p.Name]; dup {
			continue
		}
		bound[p.Name] = struct{}{}
		plan.used = append(plan.used, p)
	}
	if missing := missingIDs(placeholders, bound); len(missing) > 0 {
		return expansionPlan{}, domain.ValidationIDs(
			fmt.Sprintf("template %s has placeholders without a parameter", t.ID), missing...)
	}
	return plan, nil
}

// createPromptIfAbsent inserts (templateID, text) unless it exists. Losing an
// insert race re-reads the winner and reports it as existing.
func (s *Service) createPromptIfAbsent(ctx context.Context, templateID, text string, values []domain.ParameterValue) (*domain.GeneratedPrompt, bool, error) {
	existing, err := s.store.Prompts.FindByTemplateText(ctx, templateID, text)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, false, err
	}
	if values == nil {
		values = []domain.ParameterValue{}
	}
	p := &domain.GeneratedPrompt{
		ID:              s.newID(),
		TemplateID:      templateID,
		Text:            text,
		ParameterValues: values,
		CreatedAt:       s.now(),
	}
	if err := s.store.Prompts.Create(ctx, p); err != nil {
		if !errors.Is(err, domain.ErrConflict) {
			return nil, false, err
		}
		winner, err := s.store.Prompts.FindByTemplateText(ctx, templateID, text)
		if err != nil {
			return nil, false, err
		}
		return winner, false, nil
	}
	return p, true, nil
}

func (s *Service) GetPrompt(ctx context.Context, id string) (*domain.GeneratedPrompt, error) {
	return s.store.Prompts.GetByID(ctx, id)
}

// ListPrompts returns prompts newest first, optionally for one template.
func (s *Service) ListPrompts(ctx context.Context, templateID string) ([]domain.GeneratedPrompt, error) {
	return s.store.Prompts.List(ctx, templateID)
}

func (s *Service) DeletePrompt(ctx context.Context, id string) error {
	return s.store.Prompts.Delete(ctx, id)
}
