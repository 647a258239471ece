// Package storetest holds the behaviour every domain.Store backend must share.
// Backends call Run from their own tests.
package storetest

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"contentfabric/internal/domain"
)

// Run exercises store against the repository contracts. newStore must return
// an empty store for each call.
func Run(t *testing.T, newStore func(t *testing.T) domain.Store) {
	t.Run("parameters", func(t *testing.T) { testParameters(t, newStore(t)) })
	t.Run("templates", func(t *testing.T) { testTemplates(t, newStore(t)) })
	t.Run("prompts", func(t *testing.T) { testPrompts(t, newStore(t)) })
	t.Run("generations", func(t *testing.T) { testGenerations(t, newStore(t)) })
	t.Run("concurrent task updates", func(t *testing.T) { testConcurrentTaskUpdates(t, newStore(t)) })
	t.Run("results", func(t *testing.T) { testResults(t, newStore(t)) })
}

var base = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

func at(minutes int) time.Time {
	return base.Add(time.Duration(minutes) * time.Minute)
}

func testParameters(t *testing.T, s domain.Store) {
	ctx := context.Background()
	style := &domain.Parameter{ID: uuid.NewString(), Name: "style", Values: []string{"oil", "ink"}, CreatedAt: at(0), UpdatedAt: at(0)}
	color := &domain.Parameter{ID: uuid.NewString(), Name: "color", Values: []string{"red"}, CreatedAt: at(1), UpdatedAt: at(1)}
	require.NoError(t, s.Parameters.Create(ctx, style))
	require.NoError(t, s.Parameters.Create(ctx, color))

	dup := &domain.Parameter{ID: uuid.NewString(), Name: "style", Values: []string{"x"}, CreatedAt: at(2), UpdatedAt: at(2)}
	assert.ErrorIs(t, s.Parameters.Create(ctx, dup), domain.ErrConflict)

	renamed := *color
	renamed.Name = "style"
	assert.ErrorIs(t, s.Parameters.Update(ctx, &renamed), domain.ErrConflict)

	byName, err := s.Parameters.GetByName(ctx, "style")
	require.NoError(t, err)
	assert.Equal(t, style.ID, byName.ID)
	assert.Equal(t, []string{"oil", "ink"}, byName.Values)

	found, err := s.Parameters.ListByIDs(ctx, []string{style.ID, "missing"})
	require.NoError(t, err)
	require.Len(t, found, 1)

	all, err := s.Parameters.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "color", all[0].Name)

	require.NoError(t, s.Parameters.Delete(ctx, color.ID))
	assert.ErrorIs(t, s.Parameters.Delete(ctx, color.ID), domain.ErrNotFound)
	_, err = s.Parameters.GetByID(ctx, color.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func testTemplates(t *testing.T, s domain.Store) {
	ctx := context.Background()
	a := &domain.PromptTemplate{ID: uuid.NewString(), Name: "a", Template: "{{x}} {{y}}", ParameterIDs: []string{"px", "py"}, CreatedAt: at(0), UpdatedAt: at(0)}
	b := &domain.PromptTemplate{ID: uuid.NewString(), Name: "b", Template: "{{x}}", ParameterIDs: []string{"px"}, CreatedAt: at(1), UpdatedAt: at(1)}
	c := &domain.PromptTemplate{ID: uuid.NewString(), Name: "c", Template: "plain", ParameterIDs: []string{}, CreatedAt: at(2), UpdatedAt: at(2)}
	for _, tpl := range []*domain.PromptTemplate{a, b, c} {
		require.NoError(t, s.Templates.Create(ctx, tpl))
	}

	list, err := s.Templates.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, c.ID, list[0].ID, "newest first")

	changed, err := s.Templates.RemoveParameter(ctx, "px")
	require.NoError(t, err)
	assert.Equal(t, 2, changed)

	got, err := s.Templates.GetByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"py"}, got.ParameterIDs)

	got.Name = "renamed"
	require.NoError(t, s.Templates.Update(ctx, got))
	again, err := s.Templates.GetByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "renamed", again.Name)

	require.NoError(t, s.Templates.Delete(ctx, b.ID))
	_, err = s.Templates.GetByID(ctx, b.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func testPrompts(t *testing.T, s domain.Store) {
	ctx := context.Background()
	tplA := &domain.PromptTemplate{ID: uuid.NewString(), Name: "a", Template: "{{x}}", CreatedAt: at(0), UpdatedAt: at(0)}
	tplB := &domain.PromptTemplate{ID: uuid.NewString(), Name: "b", Template: "{{x}}", CreatedAt: at(0), UpdatedAt: at(0)}
	require.NoError(t, s.Templates.Create(ctx, tplA))
	require.NoError(t, s.Templates.Create(ctx, tplB))

	var ids []string
	for i, text := range []string{"red", "green", "blue"} {
		p := &domain.GeneratedPrompt{
			ID:              uuid.NewString(),
			TemplateID:      tplA.ID,
			Text:            text,
			ParameterValues: []domain.ParameterValue{{Name: "x", Value: text}},
			CreatedAt:       at(i),
		}
		require.NoError(t, s.Prompts.Create(ctx, p))
		ids = append(ids, p.ID)
	}
	other := &domain.GeneratedPrompt{ID: uuid.NewString(), TemplateID: tplB.ID, Text: "red", CreatedAt: at(5)}
	require.NoError(t, s.Prompts.Create(ctx, other), "same text under another template is allowed")

	dup := &domain.GeneratedPrompt{ID: uuid.NewString(), TemplateID: tplA.ID, Text: "green", CreatedAt: at(6)}
	assert.ErrorIs(t, s.Prompts.Create(ctx, dup), domain.ErrConflict)

	existing, err := s.Prompts.FindByTemplateText(ctx, tplA.ID, "green")
	require.NoError(t, err)
	assert.Equal(t, ids[1], existing.ID)
	assert.Equal(t, []domain.ParameterValue{{Name: "x", Value: "green"}}, existing.ParameterValues)

	_, err = s.Prompts.FindByTemplateText(ctx, tplA.ID, "purple")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	listA, err := s.Prompts.List(ctx, tplA.ID)
	require.NoError(t, err)
	require.Len(t, listA, 3)
	assert.Equal(t, ids[2], listA[0].ID, "newest first")

	all, err := s.Prompts.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 4)

	byIDs, err := s.Prompts.ListByIDs(ctx, []string{ids[0], "missing", ids[0]})
	require.NoError(t, err)
	assert.Len(t, byIDs, 1)

	n, err := s.Prompts.DeleteByTemplate(ctx, tplA.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	_, err = s.Prompts.GetByID(ctx, ids[0])
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func newJob(n int, created time.Time) *domain.Generation {
	g := &domain.Generation{
		ID:        uuid.NewString(),
		Name:      "batch",
		ModelID:   "model",
		Provider:  "synthetic",
		Settings:  &domain.GenerationSettings{AspectRatio: "16:9"},
		Status:    domain.GenerationStatusDraft,
		CreatedAt: created,
		UpdatedAt: created,
	}
	for i := 0; i < n; i++ {
		g.Tasks = append(g.Tasks, domain.GenerationTask{PromptID: fmt.Sprintf("p%d", i), Status: domain.TaskStatusPending})
	}
	return g
}

func testGenerations(t *testing.T, s domain.Store) {
	ctx := context.Background()
	g := newJob(3, at(0))
	require.NoError(t, s.Generations.Create(ctx, g))

	got, err := s.Generations.GetByID(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, "16:9", got.Settings.AspectRatio)
	assert.Equal(t, []string{"p0", "p1", "p2"}, got.PromptIDs())

	stale, err := s.Generations.ListStale(ctx, domain.GenerationStatusDraft, at(30))
	require.NoError(t, err)
	require.Len(t, stale, 1)

	ok, err := s.Generations.TransitionStatus(ctx, g.ID, domain.GenerationStatusDraft, domain.GenerationStatusProcessing)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = s.Generations.TransitionStatus(ctx, g.ID, domain.GenerationStatusDraft, domain.GenerationStatusProcessing)
	require.NoError(t, err)
	assert.False(t, ok, "second start must lose")

	ok, err = s.Generations.UpdateTask(ctx, g.ID, 1, domain.TaskUpdate{Status: domain.TaskStatusCompleted, ResultID: "r1"})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Generations.UpdateTask(ctx, g.ID, 1, domain.TaskUpdate{Status: domain.TaskStatusProcessing})
	require.NoError(t, err)
	assert.False(t, ok, "completed task must stay completed")

	ok, err = s.Generations.UpdateTask(ctx, g.ID, 3, domain.TaskUpdate{Status: domain.TaskStatusFailed})
	require.NoError(t, err)
	assert.False(t, ok, "out of range")
	ok, err = s.Generations.UpdateTask(ctx, "missing", 0, domain.TaskUpdate{Status: domain.TaskStatusFailed})
	require.NoError(t, err)
	assert.False(t, ok, "missing job")

	ok, err = s.Generations.UpdateTask(ctx, g.ID, 0, domain.TaskUpdate{Status: domain.TaskStatusFailed, Error: "boom"})
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = s.Generations.UpdateTask(ctx, g.ID, 0, domain.TaskUpdate{Status: domain.TaskStatusProcessing})
	require.NoError(t, err)
	assert.True(t, ok, "failed tasks may be retried")

	got, err = s.Generations.GetByID(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.GenerationStatusProcessing, got.Status)
	assert.Equal(t, domain.GenerationTask{PromptID: "p0", Status: domain.TaskStatusProcessing}, got.Tasks[0])
	assert.Equal(t, domain.GenerationTask{PromptID: "p1", Status: domain.TaskStatusCompleted, ResultID: "r1"}, got.Tasks[1])
	assert.Equal(t, domain.GenerationTask{PromptID: "p2", Status: domain.TaskStatusPending}, got.Tasks[2])

	second := newJob(1, at(10))
	require.NoError(t, s.Generations.Create(ctx, second))
	list, err := s.Generations.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)

	require.NoError(t, s.Generations.Delete(ctx, second.ID))
	assert.ErrorIs(t, s.Generations.Delete(ctx, second.ID), domain.ErrNotFound)
}

func testConcurrentTaskUpdates(t *testing.T, s domain.Store) {
	ctx := context.Background()
	const n = 24
	g := newJob(n, at(0))
	require.NoError(t, s.Generations.Create(ctx, g))
	ok, err := s.Generations.TransitionStatus(ctx, g.ID, domain.GenerationStatusDraft, domain.GenerationStatusProcessing)
	require.NoError(t, err)
	require.True(t, ok)

	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			u := domain.TaskUpdate{Status: domain.TaskStatusCompleted, ResultID: fmt.Sprintf("r%d", i)}
			if i%5 == 0 {
				u = domain.TaskUpdate{Status: domain.TaskStatusFailed, Error: "provider down"}
			}
			if _, err := s.Generations.UpdateTask(ctx, g.ID, i, u); err != nil {
				errs <- err
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	got, err := s.Generations.GetByID(ctx, g.ID)
	require.NoError(t, err)
	for i, task := range got.Tasks {
		if i%5 == 0 {
			assert.Equal(t, domain.TaskStatusFailed, task.Status, "task %d", i)
		} else {
			assert.Equal(t, domain.TaskStatusCompleted, task.Status, "task %d", i)
			assert.Equal(t, fmt.Sprintf("r%d", i), task.ResultID)
		}
	}
	assert.Equal(t, domain.GenerationStatusFailed, domain.NextStatus(*got))
}

func testResults(t *testing.T, s domain.Store) {
	ctx := context.Background()
	g := newJob(1, at(0))
	require.NoError(t, s.Generations.Create(ctx, g))

	var ids []string
	for i := 0; i < 5; i++ {
		r := &domain.GenerationResult{
			ID:           uuid.NewString(),
			GenerationID: g.ID,
			PromptID:     "p0",
			PromptText:   "text",
			URL:          fmt.Sprintf("https://cdn.example.com/%d.png", i),
			CreatedAt:    at(i),
		}
		require.NoError(t, s.Results.Create(ctx, r))
		ids = append(ids, r.ID)
	}

	page, total, err := s.Results.ListByGeneration(ctx, g.ID, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	require.Len(t, page, 2)
	assert.Equal(t, ids[4], page[0].ID)
	assert.Equal(t, ids[3], page[1].ID)

	last, total, err := s.Results.ListByGeneration(ctx, g.ID, 3, 2)
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	require.Len(t, last, 1)
	assert.Equal(t, ids[0], last[0].ID)

	beyond, _, err := s.Results.ListByGeneration(ctx, g.ID, 4, 2)
	require.NoError(t, err)
	assert.Empty(t, beyond)

	got, err := s.Results.GetByID(ctx, ids[2])
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/2.png", got.URL)

	require.NoError(t, s.Results.Delete(ctx, ids[2]))
	n, err := s.Results.DeleteByGeneration(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
}
