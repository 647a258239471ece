package badgerstore

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/timshannon/badgerhold/v4"

	"contentfabric/internal/domain"
)

type parameters struct {
	store *badgerhold.Store
}

func (r *parameters) Create(ctx context.Context, p *domain.Parameter) error {
	return update(r.store, func(tx *badger.Txn) error {
		ok, err := claimUnique(tx, parameterNameKey(p.Name), p.ID)
		if err != nil {
			return err
		}
		if !ok {
			return domain.Conflict("parameter name %q already exists", p.Name)
		}
		return r.store.TxInsert(tx, p.ID, p)
	})
}

func (r *parameters) Update(ctx context.Context, p *domain.Parameter) error {
	return update(r.store, func(tx *badger.Txn) error {
		var current domain.Parameter
		if err := r.store.TxGet(tx, p.ID, &current); err != nil {
			return notFound(err, "parameter", p.ID)
		}
		if current.Name != p.Name {
			ok, err := claimUnique(tx, parameterNameKey(p.Name), p.ID)
			if err != nil {
				return err
			}
			if !ok {
				return domain.Conflict("parameter name %q already exists", p.Name)
			}
			if err := releaseUnique(tx, parameterNameKey(current.Name)); err != nil {
				return err
			}
		}
		return r.store.TxUpdate(tx, p.ID, p)
	})
}

func (r *parameters) GetByID(ctx context.Context, id string) (*domain.Parameter, error) {
	var p domain.Parameter
	if err := r.store.Get(id, &p); err != nil {
		return nil, notFound(err, "parameter", id)
	}
	return &p, nil
}

func (r *parameters) GetByName(ctx context.Context, name string) (*domain.Parameter, error) {
	var found []domain.Parameter
	if err := r.store.Find(&found, badgerhold.Where("Name").Eq(name)); err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, domain.NotFound("parameter", name)
	}
	return &found[0], nil
}

func (r *parameters) ListByIDs(ctx context.Context, ids []string) ([]domain.Parameter, error) {
	var out []domain.Parameter
	for _, id := range domain.UniqueStrings(ids) {
		var p domain.Parameter
		err := r.store.Get(id, &p)
		if errors.Is(err, badgerhold.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func (r *parameters) List(ctx context.Context) ([]domain.Parameter, error) {
	var out []domain.Parameter
	if err := r.store.Find(&out, nil); err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *parameters) Delete(ctx context.Context, id string) error {
	return update(r.store, func(tx *badger.Txn) error {
		var current domain.Parameter
		if err := r.store.TxGet(tx, id, &current); err != nil {
			return notFound(err, "parameter", id)
		}
		if err := releaseUnique(tx, parameterNameKey(current.Name)); err != nil {
			return err
		}
		return r.store.TxDelete(tx, id, &domain.Parameter{})
	})
}

type templates struct {
	store *badgerhold.Store
}

func (r *templates) Create(ctx context.Context, t *domain.PromptTemplate) error {
	return update(r.store, func(tx *badger.Txn) error {
		return r.store.TxInsert(tx, t.ID, t)
	})
}

func (r *templates) Update(ctx context.Context, t *domain.PromptTemplate) error {
	return update(r.store, func(tx *badger.Txn) error {
		return notFound(r.store.TxUpdate(tx, t.ID, t), "template", t.ID)
	})
}

func (r *templates) GetByID(ctx context.Context, id string) (*domain.PromptTemplate, error) {
	var t domain.PromptTemplate
	if err := r.store.Get(id, &t); err != nil {
		return nil, notFound(err, "template", id)
	}
	return &t, nil
}

func (r *templates) ListByIDs(ctx context.Context, ids []string) ([]domain.PromptTemplate, error) {
	var out []domain.PromptTemplate
	for _, id := range domain.UniqueStrings(ids) {
		var t domain.PromptTemplate
		err := r.store.Get(id, &t)
		if errors.Is(err, badgerhold.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

func (r *templates) List(ctx context.Context) ([]domain.PromptTemplate, error) {
	var out []domain.PromptTemplate
	if err := r.store.Find(&out, nil); err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return newer(out[i].CreatedAt, out[j].CreatedAt, out[i].ID, out[j].ID) })
	return out, nil
}

func (r *templates) Delete(ctx context.Context, id string) error {
	return update(r.store, func(tx *badger.Txn) error {
		var current domain.PromptTemplate
		if err := r.store.TxGet(tx, id, &current); err != nil {
			return notFound(err, "template", id)
		}
		return r.store.TxDelete(tx, id, &domain.PromptTemplate{})
	})
}

func (r *templates) RemoveParameter(ctx context.Context, parameterID string) (int, error) {
	changed := 0
	err := update(r.store, func(tx *badger.Txn) error {
		changed = 0
		var all []domain.PromptTemplate
		if err := r.store.TxFind(tx, &all, nil); err != nil {
			return err
		}
		now := time.Now().UTC()
		for i := range all {
			t := &all[i]
			if !t.HasParameter(parameterID) {
				continue
			}
			kept := make([]string, 0, len(t.ParameterIDs))
			for _, id := range t.ParameterIDs {
				if id != parameterID {
					kept = append(kept, id)
				}
			}
			t.ParameterIDs = kept
			t.UpdatedAt = now
			if err := r.store.TxUpdate(tx, t.ID, t); err != nil {
				return err
			}
			changed++
		}
		return nil
	})
	return changed, err
}

type prompts struct {
	store *badgerhold.Store
}

func (r *prompts) Create(ctx context.Context, p *domain.GeneratedPrompt) error {
	return update(r.store, func(tx *badger.Txn) error {
		ok, err := claimUnique(tx, promptKey(p.TemplateID, p.Text), p.ID)
		if err != nil {
			return err
		}
		if !ok {
			return domain.Conflict("prompt already exists for template %s", p.TemplateID)
		}
		return r.store.TxInsert(tx, p.ID, p)
	})
}

func (r *prompts) GetByID(ctx context.Context, id string) (*domain.GeneratedPrompt, error) {
	var p domain.GeneratedPrompt
	if err := r.store.Get(id, &p); err != nil {
		return nil, notFound(err, "prompt", id)
	}
	return &p, nil
}

func (r *prompts) FindByTemplateText(ctx context.Context, templateID, text string) (*domain.GeneratedPrompt, error) {
	var found []domain.GeneratedPrompt
	query := badgerhold.Where("TemplateID").Eq(templateID).And("Text").Eq(text)
	if err := r.store.Find(&found, query); err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, domain.NotFound("prompt")
	}
	return &found[0], nil
}

func (r *prompts) ListByIDs(ctx context.Context, ids []string) ([]domain.GeneratedPrompt, error) {
	var out []domain.GeneratedPrompt
	for _, id := range domain.UniqueStrings(ids) {
		var p domain.GeneratedPrompt
		err := r.store.Get(id, &p)
		if errors.Is(err, badgerhold.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func (r *prompts) List(ctx context.Context, templateID string) ([]domain.GeneratedPrompt, error) {
	var (
		out   []domain.GeneratedPrompt
		query *badgerhold.Query
	)
	if templateID != "" {
		query = badgerhold.Where("TemplateID").Eq(templateID)
	}
	if err := r.store.Find(&out, query); err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return newer(out[i].CreatedAt, out[j].CreatedAt, out[i].ID, out[j].ID) })
	return out, nil
}

func (r *prompts) Delete(ctx context.Context, id string) error {
	return update(r.store, func(tx *badger.Txn) error {
		var current domain.GeneratedPrompt
		if err := r.store.TxGet(tx, id, &current); err != nil {
			return notFound(err, "prompt", id)
		}
		if err := releaseUnique(tx, promptKey(current.TemplateID, current.Text)); err != nil {
			return err
		}
		return r.store.TxDelete(tx, id, &domain.GeneratedPrompt{})
	})
}

func (r *prompts) DeleteByTemplate(ctx context.Context, templateID string) (int, error) {
	deleted := 0
	err := update(r.store, func(tx *badger.Txn) error {
		deleted = 0
		var found []domain.GeneratedPrompt
		if err := r.store.TxFind(tx, &found, badgerhold.Where("TemplateID").Eq(templateID)); err != nil {
			return err
		}
		for _, p := range found {
			if err := releaseUnique(tx, promptKey(p.TemplateID, p.Text)); err != nil {
				return err
			}
			if err := r.store.TxDelete(tx, p.ID, &domain.GeneratedPrompt{}); err != nil {
				return err
			}
			deleted++
		}
		return nil
	})
	return deleted, err
}

type generations struct {
	store *badgerhold.Store
}

func (r *generations) Create(ctx context.Context, g *domain.Generation) error {
	return update(r.store, func(tx *badger.Txn) error {
		return r.store.TxInsert(tx, g.ID, g)
	})
}

func (r *generations) GetByID(ctx context.Context, id string) (*domain.Generation, error) {
	var g domain.Generation
	if err := r.store.Get(id, &g); err != nil {
		return nil, notFound(err, "generation", id)
	}
	return &g, nil
}

func (r *generations) List(ctx context.Context) ([]domain.Generation, error) {
	var out []domain.Generation
	if err := r.store.Find(&out, nil); err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return newer(out[i].CreatedAt, out[j].CreatedAt, out[i].ID, out[j].ID) })
	return out, nil
}

func (r *generations) ListStale(ctx context.Context, status domain.GenerationStatus, before time.Time) ([]domain.Generation, error) {
	var found []domain.Generation
	if err := r.store.Find(&found, badgerhold.Where("Status").Eq(status)); err != nil {
		return nil, err
	}
	out := found[:0]
	for _, g := range found {
		if g.UpdatedAt.Before(before) {
			out = append(out, g)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.Before(out[j].UpdatedAt) })
	return out, nil
}

func (r *generations) Delete(ctx context.Context, id string) error {
	return update(r.store, func(tx *badger.Txn) error {
		var current domain.Generation
		if err := r.store.TxGet(tx, id, &current); err != nil {
			return notFound(err, "generation", id)
		}
		return r.store.TxDelete(tx, id, &domain.Generation{})
	})
}

func (r *generations) TransitionStatus(ctx context.Context, id string, from, to domain.GenerationStatus) (bool, error) {
	applied := false
	err := update(r.store, func(tx *badger.Txn) error {
		applied = false
		var g domain.Generation
		if err := r.store.TxGet(tx, id, &g); err != nil {
			if errors.Is(err, badgerhold.ErrNotFound) {
				return nil
			}
			return err
		}
		if g.Status != from {
			return nil
		}
		g.Status = to
		g.UpdatedAt = time.Now().UTC()
		if err := r.store.TxUpdate(tx, id, &g); err != nil {
			return err
		}
		applied = true
		return nil
	})
	return applied, err
}

// UpdateTask rewrites one task inside a transaction. Concurrent updates of
// the same job conflict at commit and are retried against the fresh record.
func (r *generations) UpdateTask(ctx context.Context, id string, index int, u domain.TaskUpdate) (bool, error) {
	applied := false
	err := update(r.store, func(tx *badger.Txn) error {
		applied = false
		var g domain.Generation
		if err := r.store.TxGet(tx, id, &g); err != nil {
			if errors.Is(err, badgerhold.ErrNotFound) {
				return nil
			}
			return err
		}
		if index < 0 || index >= len(g.Tasks) {
			return nil
		}
		task, ok := u.Apply(g.Tasks[index])
		if !ok {
			return nil
		}
		g.Tasks[index] = task
		g.UpdatedAt = time.Now().UTC()
		if err := r.store.TxUpdate(tx, id, &g); err != nil {
			return err
		}
		applied = true
		return nil
	})
	return applied, err
}

type results struct {
	store *badgerhold.Store
}

func (r *results) Create(ctx context.Context, res *domain.GenerationResult) error {
	return update(r.store, func(tx *badger.Txn) error {
		return r.store.TxInsert(tx, res.ID, res)
	})
}

func (r *results) GetByID(ctx context.Context, id string) (*domain.GenerationResult, error) {
	var res domain.GenerationResult
	if err := r.store.Get(id, &res); err != nil {
		return nil, notFound(err, "result", id)
	}
	return &res, nil
}

func (r *results) ListByGeneration(ctx context.Context, generationID string, page, limit int) ([]domain.GenerationResult, int, error) {
	var all []domain.GenerationResult
	if err := r.store.Find(&all, badgerhold.Where("GenerationID").Eq(generationID)); err != nil {
		return nil, 0, err
	}
	sort.Slice(all, func(i, j int) bool { return newer(all[i].CreatedAt, all[j].CreatedAt, all[i].ID, all[j].ID) })
	start := (page - 1) * limit
	if start < 0 || start >= len(all) {
		return []domain.GenerationResult{}, len(all), nil
	}
	end := min(start+limit, len(all))
	return all[start:end], len(all), nil
}

func (r *results) Delete(ctx context.Context, id string) error {
	return update(r.store, func(tx *badger.Txn) error {
		var current domain.GenerationResult
		if err := r.store.TxGet(tx, id, &current); err != nil {
			return notFound(err, "result", id)
		}
		return r.store.TxDelete(tx, id, &domain.GenerationResult{})
	})
}

func (r *results) DeleteByGeneration(ctx context.Context, generationID string) (int, error) {
	deleted := 0
	err := update(r.store, func(tx *badger.Txn) error {
		deleted = 0
		var found []domain.GenerationResult
		if err := r.store.TxFind(tx, &found, badgerhold.Where("GenerationID").Eq(generationID)); err != nil {
			return err
		}
		for _, res := range found {
			if err := r.store.TxDelete(tx, res.ID, &domain.GenerationResult{}); err != nil {
				return err
			}
			deleted++
		}
		return nil
	})
	return deleted, err
}

// newer orders by creation time descending with id as the tie breaker.
func newer(a, b time.Time, aID, bID string) bool {
	if !a.Equal(b) {
		return a.After(b)
	}
	return aID < bID
}
