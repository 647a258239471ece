package service

import (
	"context"
	"errors"

	"contentfabric/internal/domain"
)

// CreateParameter stores a new parameter. The trimmed name must already be
// lowercase; a duplicate name is a Conflict.
func (s *Service) CreateParameter(ctx context.Context, in domain.ParameterInput) (*domain.Parameter, error) {
	in.Name = domain.NormalizeName(in.Name)
	in.Values = domain.NormalizeValues(in.Values)
	if err := domain.Validate(in); err != nil {
		return nil, err
	}
	now := s.now()
	p := &domain.Parameter{
		ID:        s.newID(),
		Name:      in.Name,
		Values:    in.Values,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.Parameters.Create(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// UpdateParameter renames and/or replaces the values of a parameter.
func (s *Service) UpdateParameter(ctx context.Context, id string, patch domain.ParameterPatch) (*domain.Parameter, error) {
	if patch.Name != nil {
		name := domain.NormalizeName(*patch.Name)
		patch.Name = &name
	}
	if patch.Values != nil {
		patch.Values = domain.NormalizeValues(patch.Values)
	}
	if err := domain.Validate(patch); err != nil {
		return nil, err
	}
	p, err := s.store.Parameters.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if patch.Name != nil {
		p.Name = *patch.Name
	}
	if patch.Values != nil {
		p.Values = patch.Values
	}
	p.UpdatedAt = s.now()
	if err := s.store.Parameters.Update(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) GetParameter(ctx context.Context, id string) (*domain.Parameter, error) {
	return s.store.Parameters.GetByID(ctx, id)
}

func (s *Service) ListParameters(ctx context.Context) ([]domain.Parameter, error) {
	return s.store.Parameters.List(ctx)
}

// DeleteParameter removes the parameter and pulls its id from every template
// that referenced it. The templates themselves are kept.
func (s *Service) DeleteParameter(ctx context.Context, id string) error {
	if err := s.store.Parameters.Delete(ctx, id); err != nil {
		return err
	}
	n, err := s.store.Templates.RemoveParameter(ctx, id)
	if err != nil {
		return err
	}
	s.logger.Debug().Str("parameter_id", id).Int("templates", n).Msg("service: parameter removed from templates")
	return nil
}

// upsertParameter creates the named parameter or replaces the values of the
// existing one, returning its id.
func (s *Service) upsertParameter(ctx context.Context, in domain.EmbeddedParameter) (string, error) {
	for attempt := 0; attempt < 2; attempt++ {
		existing, err := s.store.Parameters.GetByName(ctx, in.Name)
		switch {
		case err == nil:
			existing.Values = in.Values
			existing.UpdatedAt = s.now()
			if err := s.store.Parameters.Update(ctx, existing); err != nil {
				return "", err
			}
			return existing.ID, nil
		case !errors.Is(err, domain.ErrNotFound):
			return "", err
		}
		created, err := s.CreateParameter(ctx, domain.ParameterInput{Name: in.Name, Values: in.Values})
		if err == nil {
			return created.ID, nil
		}
		if !errors.Is(err, domain.ErrConflict) {
			return "", err
		}
	}
	return "", domain.Conflict("parameter name %q is being modified concurrently", in.Name)
}
