package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"contentfabric/internal/adapter/memstore"
	"contentfabric/internal/domain"
	"contentfabric/internal/queue"
)

func newTestService(t *testing.T) (*Service, *queue.Memory) {
	t.Helper()
	q := queue.NewMemory(time.Minute)
	opts := Options{Queue: queue.Options{Attempts: 5, Backoff: queue.Backoff{Type: queue.BackoffExponential, Delay: 250 * time.Millisecond}}}
	return New(memstore.New(), q, opts, zerolog.Nop()), q
}

func mustParameter(t *testing.T, s *Service, name string, values ...string) *domain.Parameter {
	t.Helper()
	p, err := s.CreateParameter(context.Background(), domain.ParameterInput{Name: name, Values: values})
	require.NoError(t, err)
	return p
}

func mustTemplate(t *testing.T, s *Service, text string, params ...*domain.Parameter) *domain.PromptTemplate {
	t.Helper()
	ids := make([]string, len(params))
	for i, p := range params {
		ids[i] = p.ID
	}
	tpl, err := s.CreateTemplate(context.Background(), domain.TemplateInput{Name: "tpl " + text, Template: text, ParameterIDs: ids})
	require.NoError(t, err)
	return tpl
}

func promptTexts(prompts []domain.GeneratedPrompt) []string {
	out := make([]string, len(prompts))
	for i, p := range prompts {
		out[i] = p.Text
	}
	return out
}

func promptIDs(prompts []domain.GeneratedPrompt) []string {
	out := make([]string, len(prompts))
	for i, p := range prompts {
		out[i] = p.ID
	}
	return out
}

func TestExpandIsIdempotent(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()
	style := mustParameter(t, s, "style", "orange", "black")
	tpl := mustTemplate(t, s, "A {{style}} cat", style)

	first, err := s.Expand(ctx, []string{tpl.ID})
	require.NoError(t, err)
	assert.Equal(t, 2, first.Generated)
	assert.Equal(t, 0, first.Skipped)
	assert.Equal(t, []string{"A orange cat", "A black cat"}, promptTexts(first.Prompts))
	assert.Equal(t, []domain.ParameterValue{{Name: "style", Value: "orange"}}, first.Prompts[0].ParameterValues)

	second, err := s.Expand(ctx, []string{tpl.ID, tpl.ID})
	require.NoError(t, err)
	assert.Equal(t, 0, second.Generated)
	assert.Equal(t, 2, second.Skipped)
	assert.ElementsMatch(t, promptIDs(first.Prompts), promptIDs(second.Prompts))
}

func TestExpandCartesianProduct(t *testing.T) {
	s, _ := newTestService(t)
	a := mustParameter(t, s, "a", "a1", "a2")
	b := mustParameter(t, s, "b", "b1", "b2", "b3")
	unused := mustParameter(t, s, "c", "c1", "c2")
	tpl := mustTemplate(t, s, "{{a}}-{{b}}-{{a}}", a, b, unused)

	res, err := s.Expand(context.Background(), []string{tpl.ID})
	require.NoError(t, err)
	assert.Equal(t, 6, res.Generated)
	assert.Equal(t, []string{
		"a1-b1-a1", "a1-b2-a1", "a1-b3-a1",
		"a2-b1-a2", "a2-b2-a2", "a2-b3-a2",
	}, promptTexts(res.Prompts))
}

func TestExpandZeroPlaceholders(t *testing.T) {
	s, _ := newTestService(t)
	tpl := mustTemplate(t, s, "A plain sentence.")

	res, err := s.Expand(context.Background(), []string{tpl.ID})
	require.NoError(t, err)
	require.Len(t, res.Prompts, 1)
	assert.Equal(t, "A plain sentence.", res.Prompts[0].Text)
	assert.Empty(t, res.Prompts[0].ParameterValues)
}

func TestExpandRejectsMissingPlaceholdersBeforeWriting(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()
	y := mustParameter(t, s, "y", "1")
	good := mustTemplate(t, s, "ok {{y}}", y)
	bad := mustTemplate(t, s, "{{x}} {{y}} {{z}}", y)

	_, err := s.Expand(ctx, []string{good.ID, bad.ID})
	require.ErrorIs(t, err, domain.ErrValidation)
	assert.Equal(t, []string{"x", "z"}, domain.IDsOf(err))

	prompts, err := s.ListPrompts(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, prompts, "no template of a failed call may produce prompts")
}

func TestExpandReportsEveryMissingTemplate(t *testing.T) {
	s, _ := newTestService(t)
	tpl := mustTemplate(t, s, "x")

	_, err := s.Expand(context.Background(), []string{"nope-1", tpl.ID, "nope-2", "nope-1"})
	require.ErrorIs(t, err, domain.ErrNotFound)
	assert.Equal(t, []string{"nope-1", "nope-2"}, domain.IDsOf(err))

	_, err = s.Expand(context.Background(), nil)
	require.ErrorIs(t, err, domain.ErrValidation)
}

func TestParameterLifecycle(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()

	_, err := s.CreateParameter(ctx, domain.ParameterInput{Name: "Style", Values: []string{"red"}})
	require.ErrorIs(t, err, domain.ErrValidation, "uppercase names are rejected, not lowercased")

	p := mustParameter(t, s, "  style ", "red")
	assert.Equal(t, "style", p.Name)

	_, err = s.CreateParameter(ctx, domain.ParameterInput{Name: "style", Values: []string{"x"}})
	require.ErrorIs(t, err, domain.ErrConflict)

	_, err = s.CreateParameter(ctx, domain.ParameterInput{Name: "9lives", Values: []string{"x"}})
	require.ErrorIs(t, err, domain.ErrValidation)

	_, err = s.CreateParameter(ctx, domain.ParameterInput{Name: "empty"})
	require.ErrorIs(t, err, domain.ErrValidation)

	other := mustParameter(t, s, "mood", "calm")
	taken := "style"
	_, err = s.UpdateParameter(ctx, other.ID, domain.ParameterPatch{Name: &taken})
	require.ErrorIs(t, err, domain.ErrConflict)

	updated, err := s.UpdateParameter(ctx, p.ID, domain.ParameterPatch{Values: []string{"red", "blue"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"red", "blue"}, updated.Values)
}

func TestDeleteParameterCleansTemplates(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()
	style := mustParameter(t, s, "style", "a")
	mood := mustParameter(t, s, "mood", "b")
	t1 := mustTemplate(t, s, "{{style}} {{mood}}", style, mood)
	t2 := mustTemplate(t, s, "{{style}}", style)

	require.NoError(t, s.DeleteParameter(ctx, style.ID))

	got1, err := s.store.Templates.GetByID(ctx, t1.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{mood.ID}, got1.ParameterIDs)
	got2, err := s.store.Templates.GetByID(ctx, t2.ID)
	require.NoError(t, err)
	assert.Empty(t, got2.ParameterIDs)

	require.ErrorIs(t, s.DeleteParameter(ctx, style.ID), domain.ErrNotFound)
}

func TestCreateTemplateUpsertsEmbeddedParameters(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()
	existing := mustParameter(t, s, "color", "red")

	tpl, err := s.CreateTemplate(ctx, domain.TemplateInput{
		Name:         "embedded",
		Template:     "{{color}} {{size}}",
		ParameterIDs: []string{existing.ID},
		EmbeddedParameters: []domain.EmbeddedParameter{
			{Name: "color", Values: []string{"green", "blue"}},
			{Name: "size", Values: []string{"s", "m"}},
		},
	})
	require.NoError(t, err)
	require.Len(t, tpl.ParameterIDs, 2)
	assert.Equal(t, existing.ID, tpl.ParameterIDs[0])

	color, err := s.GetParameter(ctx, existing.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"green", "blue"}, color.Values)

	res, err := s.Expand(ctx, []string{tpl.ID})
	require.NoError(t, err)
	assert.Equal(t, 4, res.Generated)

	_, err = s.CreateTemplate(ctx, domain.TemplateInput{
		Name:               "upper",
		Template:           "{{Size}}",
		EmbeddedParameters: []domain.EmbeddedParameter{{Name: "Size", Values: []string{"s"}}},
	})
	require.ErrorIs(t, err, domain.ErrValidation)

	_, err = s.CreateTemplate(ctx, domain.TemplateInput{Name: "bad", Template: "x", ParameterIDs: []string{"ghost"}})
	require.ErrorIs(t, err, domain.ErrValidation)
	assert.Equal(t, []string{"ghost"}, domain.IDsOf(err))
}

func TestTemplateReadsDropDanglingParameters(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()
	a := mustParameter(t, s, "a", "1")
	b := mustParameter(t, s, "b", "2")
	tpl := mustTemplate(t, s, "{{a}}{{b}}", a, b)

	require.NoError(t, s.store.Parameters.Delete(ctx, b.ID))

	got, err := s.GetTemplate(ctx, tpl.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{a.ID}, got.ParameterIDs)

	all, err := s.ListTemplates(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, []string{a.ID}, all[0].ParameterIDs)
}

func TestDeleteTemplateRemovesPrompts(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()
	p := mustParameter(t, s, "p", "1", "2")
	keep := mustTemplate(t, s, "keep {{p}}", p)
	drop := mustTemplate(t, s, "drop {{p}}", p)
	_, err := s.Expand(ctx, []string{keep.ID, drop.ID})
	require.NoError(t, err)

	require.NoError(t, s.DeleteTemplate(ctx, drop.ID))

	left, err := s.ListPrompts(ctx, "")
	require.NoError(t, err)
	require.Len(t, left, 2)
	for _, pr := range left {
		assert.Equal(t, keep.ID, pr.TemplateID)
	}
	require.ErrorIs(t, s.DeleteTemplate(ctx, drop.ID), domain.ErrNotFound)
}

// expandScenario builds the two cat prompts and returns their ids.
func expandScenario(t *testing.T, s *Service) []string {
	t.Helper()
	style := mustParameter(t, s, "style", "orange", "black")
	tpl := mustTemplate(t, s, "A {{style}} cat", style)
	res, err := s.Expand(context.Background(), []string{tpl.ID})
	require.NoError(t, err)
	return promptIDs(res.Prompts)
}

func createJob(t *testing.T, s *Service, promptIDs []string) *domain.Generation {
	t.Helper()
	g, err := s.CreateJob(context.Background(), domain.CreateJobInput{
		Name:      "cats",
		PromptIDs: promptIDs,
		ModelID:   "img-1",
		Provider:  "synthetic",
		Settings:  &domain.GenerationSettings{AspectRatio: "1:1"},
	})
	require.NoError(t, err)
	return g
}

func TestCreateJobValidatesPrompts(t *testing.T) {
	s, q := newTestService(t)
	ctx := context.Background()
	ids := expandScenario(t, s)

	_, err := s.CreateJob(ctx, domain.CreateJobInput{Name: "x", PromptIDs: []string{ids[0], "ghost"}, ModelID: "m", Provider: "p"})
	require.ErrorIs(t, err, domain.ErrValidation)
	assert.Equal(t, []string{"ghost"}, domain.IDsOf(err))

	_, err = s.CreateJob(ctx, domain.CreateJobInput{Name: "x", ModelID: "m", Provider: "p"})
	require.ErrorIs(t, err, domain.ErrValidation)

	jobs, err := s.ListJobs(ctx)
	require.NoError(t, err)
	assert.Empty(t, jobs)

	g := createJob(t, s, []string{ids[1], ids[0]})
	assert.Equal(t, domain.GenerationStatusDraft, g.Status)
	assert.Equal(t, []string{ids[1], ids[0]}, g.PromptIDs())
	for _, task := range g.Tasks {
		assert.Equal(t, domain.TaskStatusPending, task.Status)
	}
	assert.Zero(t, q.Len(), "building a job must not enqueue")
}

func TestStartJobDispatchesOnce(t *testing.T) {
	s, q := newTestService(t)
	ctx := context.Background()
	ids := expandScenario(t, s)
	g := createJob(t, s, ids)

	started, err := s.StartJob(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.GenerationStatusProcessing, started.Status)

	items := q.Items()
	require.Len(t, items, 2)
	for i, item := range items {
		assert.Equal(t, g.ID, item.GenerationID)
		assert.Equal(t, i, item.TaskIndex)
		assert.Equal(t, ids[i], item.PromptID)
		assert.Equal(t, "img-1", item.ModelID)
		assert.Equal(t, "synthetic", item.Provider)
		assert.Equal(t, "1:1", item.Settings.AspectRatio)
	}
	assert.Equal(t, "A orange cat", items[0].PromptText)
	opts, ok := q.OptionsOf(items[0].DedupKey())
	require.True(t, ok)
	assert.Equal(t, 5, opts.Attempts)
	assert.Equal(t, queue.BackoffExponential, opts.Backoff.Type)

	_, err = s.StartJob(ctx, g.ID)
	require.ErrorIs(t, err, domain.ErrValidation)
	assert.Equal(t, 2, q.Len())

	_, err = s.StartJob(ctx, "missing")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestConcurrentStartDispatchesOnce(t *testing.T) {
	s, q := newTestService(t)
	g := createJob(t, s, expandScenario(t, s))

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.StartJob(context.Background(), g.ID); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
	assert.Equal(t, 2, q.Len())
}

func completeTask(t *testing.T, s *Service, id string, idx int) *domain.Generation {
	t.Helper()
	ctx := context.Background()
	r, err := s.RecordResult(ctx, id, "p", "text", "https://cdn.example/r.png")
	require.NoError(t, err)
	g, err := s.UpdateTaskStatus(ctx, id, idx, domain.TaskUpdate{Status: domain.TaskStatusCompleted, ResultID: r.ID})
	require.NoError(t, err)
	return g
}

func TestScenarioAllTasksComplete(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()
	g := createJob(t, s, expandScenario(t, s))
	_, err := s.StartJob(ctx, g.ID)
	require.NoError(t, err)

	snap := completeTask(t, s, g.ID, 0)
	assert.Equal(t, domain.GenerationStatusProcessing, snap.Status)
	snap = completeTask(t, s, g.ID, 1)
	assert.Equal(t, domain.GenerationStatusCompleted, snap.Status)

	view, err := s.GetJob(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.GenerationStatusCompleted, view.Status)
	assert.Equal(t, domain.Progress{Total: 2, Completed: 2, Percentage: 100}, view.Progress)
}

func TestScenarioOneTaskFails(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()
	g := createJob(t, s, expandScenario(t, s))
	_, err := s.StartJob(ctx, g.ID)
	require.NoError(t, err)

	completeTask(t, s, g.ID, 0)
	snap, err := s.UpdateTaskStatus(ctx, g.ID, 1, domain.TaskUpdate{Status: domain.TaskStatusFailed, Error: "provider timeout"})
	require.NoError(t, err)
	assert.Equal(t, domain.GenerationStatusFailed, snap.Status)
	assert.Equal(t, domain.TaskStatusCompleted, snap.Tasks[0].Status)
	assert.Equal(t, "provider timeout", snap.Tasks[1].Error)

	p, err := s.Progress(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.Progress{Total: 2, Completed: 1, Failed: 1, Percentage: 50}, p)
}

func TestRetryAfterFailureConverges(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()
	g := createJob(t, s, expandScenario(t, s))
	_, err := s.StartJob(ctx, g.ID)
	require.NoError(t, err)

	completeTask(t, s, g.ID, 0)
	snap, err := s.UpdateTaskStatus(ctx, g.ID, 1, domain.TaskUpdate{Status: domain.TaskStatusFailed, Error: "first attempt"})
	require.NoError(t, err)
	require.Equal(t, domain.GenerationStatusFailed, snap.Status)

	snap, err = s.UpdateTaskStatus(ctx, g.ID, 1, domain.TaskUpdate{Status: domain.TaskStatusProcessing})
	require.NoError(t, err)
	assert.Equal(t, domain.GenerationStatusFailed, snap.Status, "a terminal job does not go back to processing")
	assert.Equal(t, domain.TaskStatusProcessing, snap.Tasks[1].Status)
	assert.Empty(t, snap.Tasks[1].Error)

	view, err := s.GetJob(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.GenerationStatusFailed, view.Status)

	snap = completeTask(t, s, g.ID, 1)
	assert.Equal(t, domain.GenerationStatusCompleted, snap.Status)
}

func TestRetryFailingAgainKeepsJobFailed(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()
	g := createJob(t, s, expandScenario(t, s))
	_, err := s.StartJob(ctx, g.ID)
	require.NoError(t, err)

	completeTask(t, s, g.ID, 0)
	for _, u := range []domain.TaskUpdate{
		{Status: domain.TaskStatusFailed, Error: "first attempt"},
		{Status: domain.TaskStatusProcessing},
		{Status: domain.TaskStatusFailed, Error: "second attempt"},
	} {
		snap, err := s.UpdateTaskStatus(ctx, g.ID, 1, u)
		require.NoError(t, err)
		assert.Equal(t, domain.GenerationStatusFailed, snap.Status)
	}
}

func TestCompletedTaskIgnoresStaleRedelivery(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()
	g := createJob(t, s, expandScenario(t, s))
	_, err := s.StartJob(ctx, g.ID)
	require.NoError(t, err)

	completeTask(t, s, g.ID, 0)
	snap, err := s.UpdateTaskStatus(ctx, g.ID, 0, domain.TaskUpdate{Status: domain.TaskStatusProcessing})
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusCompleted, snap.Tasks[0].Status)
	assert.NotEmpty(t, snap.Tasks[0].ResultID)
}

func TestUpdateTaskStatusErrors(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()
	g := createJob(t, s, expandScenario(t, s))

	_, err := s.UpdateTaskStatus(ctx, g.ID, 2, domain.TaskUpdate{Status: domain.TaskStatusProcessing})
	require.ErrorIs(t, err, domain.ErrValidation)
	_, err = s.UpdateTaskStatus(ctx, g.ID, -1, domain.TaskUpdate{Status: domain.TaskStatusProcessing})
	require.ErrorIs(t, err, domain.ErrValidation)
	_, err = s.UpdateTaskStatus(ctx, "missing", 0, domain.TaskUpdate{Status: domain.TaskStatusProcessing})
	require.ErrorIs(t, err, domain.ErrNotFound)
	_, err = s.UpdateTaskStatus(ctx, g.ID, 0, domain.TaskUpdate{Status: "done"})
	require.ErrorIs(t, err, domain.ErrValidation)
}

func TestConcurrentTaskUpdatesConverge(t *testing.T) {
	for _, withFailure := range []bool{false, true} {
		t.Run(fmt.Sprintf("failure=%v", withFailure), func(t *testing.T) {
			s, _ := newTestService(t)
			ctx := context.Background()
			p := mustParameter(t, s, "n", "0", "1", "2", "3", "4", "5", "6", "7", "8", "9", "10", "11")
			tpl := mustTemplate(t, s, "item {{n}}", p)
			res, err := s.Expand(ctx, []string{tpl.ID})
			require.NoError(t, err)
			g := createJob(t, s, promptIDs(res.Prompts))
			_, err = s.StartJob(ctx, g.ID)
			require.NoError(t, err)

			var wg sync.WaitGroup
			for i := range g.Tasks {
				wg.Add(1)
				go func(idx int) {
					defer wg.Done()
					_, err := s.UpdateTaskStatus(ctx, g.ID, idx, domain.TaskUpdate{Status: domain.TaskStatusProcessing})
					assert.NoError(t, err)
					u := domain.TaskUpdate{Status: domain.TaskStatusCompleted, ResultID: fmt.Sprintf("r%d", idx)}
					if withFailure && idx == 7 {
						u = domain.TaskUpdate{Status: domain.TaskStatusFailed, Error: "boom"}
					}
					_, err = s.UpdateTaskStatus(ctx, g.ID, idx, u)
					assert.NoError(t, err)
				}(i)
			}
			wg.Wait()

			final, err := s.GetJob(ctx, g.ID)
			require.NoError(t, err)
			want := domain.GenerationStatusCompleted
			if withFailure {
				want = domain.GenerationStatusFailed
			}
			assert.Equal(t, want, final.Status)
			assert.Equal(t, len(g.Tasks), final.Progress.Completed+final.Progress.Failed)
		})
	}
}

func TestRequeuePendingSkipsQueuedAndFinishedTasks(t *testing.T) {
	s, q := newTestService(t)
	ctx := context.Background()
	g := createJob(t, s, expandScenario(t, s))
	started, err := s.StartJob(ctx, g.ID)
	require.NoError(t, err)

	n, err := s.RequeuePending(ctx, started)
	require.NoError(t, err)
	assert.Zero(t, n, "items still queued are not duplicated")

	for q.Len() > 0 {
		d, err := q.Receive(ctx)
		require.NoError(t, err)
		require.NoError(t, q.Ack(ctx, d))
	}
	completeTask(t, s, g.ID, 0)
	fresh, err := s.store.Generations.GetByID(ctx, g.ID)
	require.NoError(t, err)

	n, err = s.RequeuePending(ctx, fresh)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	items := q.Items()
	require.Len(t, items, 1)
	assert.Equal(t, 1, items[0].TaskIndex)
}

func TestStartJobFailsTasksWithDeletedPrompts(t *testing.T) {
	s, q := newTestService(t)
	ctx := context.Background()
	ids := expandScenario(t, s)
	g := createJob(t, s, ids)
	require.NoError(t, s.DeletePrompt(ctx, ids[1]))

	started, err := s.StartJob(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, q.Len())
	assert.Equal(t, domain.TaskStatusFailed, started.Tasks[1].Status)
}

func TestResultsPaginationAndJobDelete(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()
	g := createJob(t, s, expandScenario(t, s))
	for i := 0; i < 25; i++ {
		_, err := s.RecordResult(ctx, g.ID, "p", "text", fmt.Sprintf("u%d", i))
		require.NoError(t, err)
	}

	page, err := s.ListResults(ctx, g.ID, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, 20, page.Limit)
	assert.Equal(t, 25, page.Total)
	assert.Len(t, page.Items, 20)

	page, err = s.ListResults(ctx, g.ID, 2, 20)
	require.NoError(t, err)
	assert.Len(t, page.Items, 5)

	all, err := s.AllResults(ctx, g.ID)
	require.NoError(t, err)
	urls := make([]string, len(all))
	for i, r := range all {
		urls[i] = r.URL
	}
	sort.Strings(urls)
	assert.Len(t, urls, 25)

	_, err = s.ListResults(ctx, "missing", 1, 10)
	require.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, s.DeleteJob(ctx, g.ID))
	_, err = s.GetJob(ctx, g.ID)
	require.ErrorIs(t, err, domain.ErrNotFound)
	_, total, err := s.store.Results.ListByGeneration(ctx, g.ID, 1, 10)
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.True(t, errors.Is(s.DeleteJob(ctx, g.ID), domain.ErrNotFound))
}

func TestExpandStoresComposedText(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()
	p := mustParameter(t, s, "drink", "cafe\u0301")
	tpl, err := s.CreateTemplate(ctx, domain.TemplateInput{Name: "menu", Template: "A {{drink}} please", ParameterIDs: []string{p.ID}})
	require.NoError(t, err)

	res, err := s.Expand(ctx, []string{tpl.ID})
	require.NoError(t, err)
	require.Len(t, res.Prompts, 1)
	assert.Equal(t, "A caf\u00e9 please", res.Prompts[0].Text)

	again, err := s.Expand(ctx, []string{tpl.ID})
	require.NoError(t, err)
	assert.Equal(t, 0, again.Generated)
	assert.Equal(t, 1, again.Skipped)
	assert.Equal(t, res.Prompts[0].ID, again.Prompts[0].ID)
}
