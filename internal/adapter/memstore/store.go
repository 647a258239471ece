// Package memstore keeps every repository in process memory. It backs unit
// tests and single-process demos; one mutex guards all collections.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"contentfabric/internal/domain"
)

type record[T any] struct {
	seq  uint64
	item T
}

// DB holds the collections shared by the repositories returned from New.
type DB struct {
	mu          sync.Mutex
	seq         uint64
	parameters  map[string]record[domain.Parameter]
	templates   map[string]record[domain.PromptTemplate]
	prompts     map[string]record[domain.GeneratedPrompt]
	generations map[string]record[domain.Generation]
	results     map[string]record[domain.GenerationResult]
}

// New returns a Store whose repositories share one in-memory DB.
func New() domain.Store {
	db := &DB{
		parameters:  map[string]record[domain.Parameter]{},
		templates:   map[string]record[domain.PromptTemplate]{},
		prompts:     map[string]record[domain.GeneratedPrompt]{},
		generations: map[string]record[domain.Generation]{},
		results:     map[string]record[domain.GenerationResult]{},
	}
	return domain.Store{
		Parameters:  &parameters{db: db},
		Templates:   &templates{db: db},
		Prompts:     &prompts{db: db},
		Generations: &generations{db: db},
		Results:     &results{db: db},
	}
}

func (db *DB) next() uint64 {
	db.seq++
	return db.seq
}

// newestFirst orders records by creation time then insertion order, newest first.
func newestFirst[T any](recs []record[T], createdAt func(T) time.Time) []T {
	sort.SliceStable(recs, func(i, j int) bool {
		ti, tj := createdAt(recs[i].item), createdAt(recs[j].item)
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return recs[i].seq > recs[j].seq
	})
	out := make([]T, len(recs))
	for i, r := range recs {
		out[i] = r.item
	}
	return out
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	return append([]string(nil), in...)
}

type parameters struct{ db *DB }

func cloneParameter(p domain.Parameter) domain.Parameter {
	p.Values = cloneStrings(p.Values)
	return p
}

func (r *parameters) nameTaken(name, exceptID string) bool {
	for id, rec := range r.db.parameters {
		if id != exceptID && rec.item.Name == name {
			return true
		}
	}
	return false
}

func (r *parameters) Create(ctx context.Context, p *domain.Parameter) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if r.nameTaken(p.Name, "") {
		return domain.Conflict("parameter name %q already exists", p.Name)
	}
	r.db.parameters[p.ID] = record[domain.Parameter]{seq: r.db.next(), item: cloneParameter(*p)}
	return nil
}

func (r *parameters) Update(ctx context.Context, p *domain.Parameter) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	rec, ok := r.db.parameters[p.ID]
	if !ok {
		return domain.NotFound("parameter", p.ID)
	}
	if r.nameTaken(p.Name, p.ID) {
		return domain.Conflict("parameter name %q already exists", p.Name)
	}
	rec.item = cloneParameter(*p)
	r.db.parameters[p.ID] = rec
	return nil
}

func (r *parameters) GetByID(ctx context.Context, id string) (*domain.Parameter, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	rec, ok := r.db.parameters[id]
	if !ok {
		return nil, domain.NotFound("parameter", id)
	}
	p := cloneParameter(rec.item)
	return &p, nil
}

func (r *parameters) GetByName(ctx context.Context, name string) (*domain.Parameter, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, rec := range r.db.parameters {
		if rec.item.Name == name {
			p := cloneParameter(rec.item)
			return &p, nil
		}
	}
	return nil, domain.NotFound("parameter", name)
}

func (r *parameters) ListByIDs(ctx context.Context, ids []string) ([]domain.Parameter, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []domain.Parameter
	for _, id := range domain.UniqueStrings(ids) {
		if rec, ok := r.db.parameters[id]; ok {
			out = append(out, cloneParameter(rec.item))
		}
	}
	return out, nil
}

func (r *parameters) List(ctx context.Context) ([]domain.Parameter, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	out := make([]domain.Parameter, 0, len(r.db.parameters))
	for _, rec := range r.db.parameters {
		out = append(out, cloneParameter(rec.item))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *parameters) Delete(ctx context.Context, id string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.parameters[id]; !ok {
		return domain.NotFound("parameter", id)
	}
	delete(r.db.parameters, id)
	return nil
}

type templates struct{ db *DB }

func cloneTemplate(t domain.PromptTemplate) domain.PromptTemplate {
	t.ParameterIDs = cloneStrings(t.ParameterIDs)
	return t
}

func (r *templates) Create(ctx context.Context, t *domain.PromptTemplate) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	r.db.templates[t.ID] = record[domain.PromptTemplate]{seq: r.db.next(), item: cloneTemplate(*t)}
	return nil
}

func (r *templates) Update(ctx context.Context, t *domain.PromptTemplate) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	rec, ok := r.db.templates[t.ID]
	if !ok {
		return domain.NotFound("template", t.ID)
	}
	rec.item = cloneTemplate(*t)
	r.db.templates[t.ID] = rec
	return nil
}

func (r *templates) GetByID(ctx context.Context, id string) (*domain.PromptTemplate, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	rec, ok := r.db.templates[id]
	if !ok {
		return nil, domain.NotFound("template", id)
	}
	t := cloneTemplate(rec.item)
	return &t, nil
}

func (r *templates) ListByIDs(ctx context.Context, ids []string) ([]domain.PromptTemplate, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []domain.PromptTemplate
	for _, id := range domain.UniqueStrings(ids) {
		if rec, ok := r.db.templates[id]; ok {
			out = append(out, cloneTemplate(rec.item))
		}
	}
	return out, nil
}

func (r *templates) List(ctx context.Context) ([]domain.PromptTemplate, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	recs := make([]record[domain.PromptTemplate], 0, len(r.db.templates))
	for _, rec := range r.db.templates {
		rec.item = cloneTemplate(rec.item)
		recs = append(recs, rec)
	}
	return newestFirst(recs, func(t domain.PromptTemplate) time.Time { return t.CreatedAt }), nil
}

func (r *templates) Delete(ctx context.Context, id string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.templates[id]; !ok {
		return domain.NotFound("template", id)
	}
	delete(r.db.templates, id)
	return nil
}

func (r *templates) RemoveParameter(ctx context.Context, parameterID string) (int, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	changed := 0
	for id, rec := range r.db.templates {
		if !rec.item.HasParameter(parameterID) {
			continue
		}
		kept := make([]string, 0, len(rec.item.ParameterIDs))
		for _, pid := range rec.item.ParameterIDs {
			if pid != parameterID {
				kept = append(kept, pid)
			}
		}
		rec.item.ParameterIDs = kept
		rec.item.UpdatedAt = time.Now().UTC()
		r.db.templates[id] = rec
		changed++
	}
	return changed, nil
}

type prompts struct{ db *DB }

func clonePrompt(p domain.GeneratedPrompt) domain.GeneratedPrompt {
	if p.ParameterValues != nil {
		p.ParameterValues = append([]domain.ParameterValue(nil), p.ParameterValues...)
	}
	return p
}

func (r *prompts) Create(ctx context.Context, p *domain.GeneratedPrompt) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, rec := range r.db.prompts {
		if rec.item.TemplateID == p.TemplateID && rec.item.Text == p.Text {
			return domain.Conflict("prompt already exists for template %s", p.TemplateID)
		}
	}
	r.db.prompts[p.ID] = record[domain.GeneratedPrompt]{seq: r.db.next(), item: clonePrompt(*p)}
	return nil
}

func (r *prompts) GetByID(ctx context.Context, id string) (*domain.GeneratedPrompt, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	rec, ok := r.db.prompts[id]
	if !ok {
		return nil, domain.NotFound("prompt", id)
	}
	p := clonePrompt(rec.item)
	return &p, nil
}

func (r *prompts) FindByTemplateText(ctx context.Context, templateID, text string) (*domain.GeneratedPrompt, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, rec := range r.db.prompts {
		if rec.item.TemplateID == templateID && rec.item.Text == text {
			p := clonePrompt(rec.item)
			return &p, nil
		}
	}
	return nil, domain.NotFound("prompt")
}

func (r *prompts) ListByIDs(ctx context.Context, ids []string) ([]domain.GeneratedPrompt, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []domain.GeneratedPrompt
	for _, id := range domain.UniqueStrings(ids) {
		if rec, ok := r.db.prompts[id]; ok {
			out = append(out, clonePrompt(rec.item))
		}
	}
	return out, nil
}

func (r *prompts) List(ctx context.Context, templateID string) ([]domain.GeneratedPrompt, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var recs []record[domain.GeneratedPrompt]
	for _, rec := range r.db.prompts {
		if templateID != "" && rec.item.TemplateID != templateID {
			continue
		}
		rec.item = clonePrompt(rec.item)
		recs = append(recs, rec)
	}
	return newestFirst(recs, func(p domain.GeneratedPrompt) time.Time { return p.CreatedAt }), nil
}

func (r *prompts) Delete(ctx context.Context, id string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.prompts[id]; !ok {
		return domain.NotFound("prompt", id)
	}
	delete(r.db.prompts, id)
	return nil
}

func (r *prompts) DeleteByTemplate(ctx context.Context, templateID string) (int, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	n := 0
	for id, rec := range r.db.prompts {
		if rec.item.TemplateID == templateID {
			delete(r.db.prompts, id)
			n++
		}
	}
	return n, nil
}

type generations struct{ db *DB }

func (r *generations) Create(ctx context.Context, g *domain.Generation) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	r.db.generations[g.ID] = record[domain.Generation]{seq: r.db.next(), item: g.Clone()}
	return nil
}

func (r *generations) GetByID(ctx context.Context, id string) (*domain.Generation, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	rec, ok := r.db.generations[id]
	if !ok {
		return nil, domain.NotFound("generation", id)
	}
	g := rec.item.Clone()
	return &g, nil
}

func (r *generations) List(ctx context.Context) ([]domain.Generation, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	recs := make([]record[domain.Generation], 0, len(r.db.generations))
	for _, rec := range r.db.generations {
		rec.item = rec.item.Clone()
		recs = append(recs, rec)
	}
	return newestFirst(recs, func(g domain.Generation) time.Time { return g.CreatedAt }), nil
}

func (r *generations) ListStale(ctx context.Context, status domain.GenerationStatus, before time.Time) ([]domain.Generation, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []domain.Generation
	for _, rec := range r.db.generations {
		if rec.item.Status == status && rec.item.UpdatedAt.Before(before) {
			out = append(out, rec.item.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.Before(out[j].UpdatedAt) })
	return out, nil
}

func (r *generations) Delete(ctx context.Context, id string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.generations[id]; !ok {
		return domain.NotFound("generation", id)
	}
	delete(r.db.generations, id)
	return nil
}

func (r *generations) TransitionStatus(ctx context.Context, id string, from, to domain.GenerationStatus) (bool, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	rec, ok := r.db.generations[id]
	if !ok || rec.item.Status != from {
		return false, nil
	}
	rec.item.Status = to
	rec.item.UpdatedAt = time.Now().UTC()
	r.db.generations[id] = rec
	return true, nil
}

func (r *generations) UpdateTask(ctx context.Context, id string, index int, u domain.TaskUpdate) (bool, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	rec, ok := r.db.generations[id]
	if !ok || index < 0 || index >= len(rec.item.Tasks) {
		return false, nil
	}
	task, applied := u.Apply(rec.item.Tasks[index])
	if !applied {
		return false, nil
	}
	tasks := append([]domain.GenerationTask(nil), rec.item.Tasks...)
	tasks[index] = task
	rec.item.Tasks = tasks
	rec.item.UpdatedAt = time.Now().UTC()
	r.db.generations[id] = rec
	return true, nil
}

type results struct{ db *DB }

func (r *results) Create(ctx context.Context, res *domain.GenerationResult) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	r.db.results[res.ID] = record[domain.GenerationResult]{seq: r.db.next(), item: *res}
	return nil
}

func (r *results) GetByID(ctx context.Context, id string) (*domain.GenerationResult, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	rec, ok := r.db.results[id]
	if !ok {
		return nil, domain.NotFound("result", id)
	}
	res := rec.item
	return &res, nil
}

func (r *results) ListByGeneration(ctx context.Context, generationID string, page, limit int) ([]domain.GenerationResult, int, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var recs []record[domain.GenerationResult]
	for _, rec := range r.db.results {
		if rec.item.GenerationID == generationID {
			recs = append(recs, rec)
		}
	}
	all := newestFirst(recs, func(res domain.GenerationResult) time.Time { return res.CreatedAt })
	return paginate(all, page, limit), len(all), nil
}

func (r *results) Delete(ctx context.Context, id string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.results[id]; !ok {
		return domain.NotFound("result", id)
	}
	delete(r.db.results, id)
	return nil
}

func (r *results) DeleteByGeneration(ctx context.Context, generationID string) (int, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	n := 0
	for id, rec := range r.db.results {
		if rec.item.GenerationID == generationID {
			delete(r.db.results, id)
			n++
		}
	}
	return n, nil
}

func paginate[T any](items []T, page, limit int) []T {
	start := (page - 1) * limit
	if start < 0 || start >= len(items) {
		return []T{}
	}
	end := start + limit
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}
