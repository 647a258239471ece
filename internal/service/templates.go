package service

import (
	"context"

	"contentfabric/internal/domain"
)

// CreateTemplate stores a template. Embedded parameters are upserted by name
// and appended to the referenced parameter ids.
func (s *Service) CreateTemplate(ctx context.Context, in domain.TemplateInput) (*domain.PromptTemplate, error) {
	in.Template = domain.NormalizeText(in.Template)
	for i := range in.EmbeddedParameters {
		in.EmbeddedParameters[i].Name = domain.NormalizeName(in.EmbeddedParameters[i].Name)
		in.EmbeddedParameters[i].Values = domain.NormalizeValues(in.EmbeddedParameters[i].Values)
	}
	if err := domain.Validate(in); err != nil {
		return nil, err
	}
	ids := cleanIDs(in.ParameterIDs)
	if err := s.requireParameters(ctx, ids); err != nil {
		return nil, err
	}
	for _, ep := range in.EmbeddedParameters {
		id, err := s.upsertParameter(ctx, ep)
		if err != nil {
			return nil, err
		}
		ids = domain.UniqueStrings(append(ids, id))
	}
	now := s.now()
	t := &domain.PromptTemplate{
		ID:           s.newID(),
		Name:         in.Name,
		Template:     in.Template,
		ParameterIDs: ids,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.Templates.Create(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *Service) UpdateTemplate(ctx context.Context, id string, patch domain.TemplatePatch) (*domain.PromptTemplate, error) {
	if err := domain.Validate(patch); err != nil {
		return nil, err
	}
	t, err := s.store.Templates.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if patch.Name != nil {
		t.Name = *patch.Name
	}
	if patch.Template != nil {
		if *patch.Template == "" {
			return nil, domain.Validation("Template is required")
		}
		t.Template = domain.NormalizeText(*patch.Template)
	}
	if patch.ParameterIDs != nil {
		ids := cleanIDs(patch.ParameterIDs)
		if err := s.requireParameters(ctx, ids); err != nil {
			return nil, err
		}
		t.ParameterIDs = ids
	}
	t.UpdatedAt = s.now()
	if err := s.store.Templates.Update(ctx, t); err != nil {
		return nil, err
	}
	return s.withLiveParameters(ctx, t)
}

// GetTemplate returns the template with dangling parameter ids dropped.
func (s *Service) GetTemplate(ctx context.Context, id string) (*domain.PromptTemplate, error) {
	t, err := s.store.Templates.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.withLiveParameters(ctx, t)
}

func (s *Service) ListTemplates(ctx context.Context) ([]domain.PromptTemplate, error) {
	templates, err := s.store.Templates.List(ctx)
	if err != nil {
		return nil, err
	}
	params, err := s.store.Parameters.List(ctx)
	if err != nil {
		return nil, err
	}
	live := make(map[string]struct{}, len(params))
	for _, p := range params {
		live[p.ID] = struct{}{}
	}
	for i := range templates {
		templates[i].ParameterIDs = keepLive(templates[i].ParameterIDs, live)
	}
	return templates, nil
}

// DeleteTemplate removes the template together with its generated prompts.
func (s *Service) DeleteTemplate(ctx context.Context, id string) error {
	if _, err := s.store.Templates.GetByID(ctx, id); err != nil {
		return err
	}
	n, err := s.store.Prompts.DeleteByTemplate(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.Templates.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Debug().Str("template_id", id).Int("prompts", n).Msg("service: template deleted")
	return nil
}

func (s *Service) requireParameters(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	found, err := s.store.Parameters.ListByIDs(ctx, ids)
	if err != nil {
		return err
	}
	seen := make(map[string]struct{}, len(found))
	for _, p := range found {
		seen[p.ID] = struct{}{}
	}
	if missing := missingIDs(ids, seen); len(missing) > 0 {
		return domain.ValidationIDs("unknown parameter ids", missing...)
	}
	return nil
}

func (s *Service) withLiveParameters(ctx context.Context, t *domain.PromptTemplate) (*domain.PromptTemplate, error) {
	if len(t.ParameterIDs) == 0 {
		return t, nil
	}
	found, err := s.store.Parameters.ListByIDs(ctx, t.ParameterIDs)
	if err != nil {
		return nil, err
	}
	live := make(map[string]struct{}, len(found))
	for _, p := range found {
		live[p.ID] = struct{}{}
	}
	t.ParameterIDs = keepLive(t.ParameterIDs, live)
	return t, nil
}

func keepLive(ids []string, live map[string]struct{}) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := live[id]; ok {
			out = append(out, id)
		}
	}
	return out
}
