package service

import (
	"context"
	"fmt"

	"contentfabric/internal/domain"
	"contentfabric/internal/domain/jsoncfg"
	"contentfabric/internal/queue"
)

// finalizeRetries bounds how often a lost status compare-and-set is retried.
const finalizeRetries = 8

// CreateJob builds a draft generation with one pending task per prompt id,
// in input order. Unknown prompt ids fail the whole call.
func (s *Service) CreateJob(ctx context.Context, in domain.CreateJobInput) (*domain.Generation, error) {
	in.Settings = jsoncfg.NormalizeSettings(in.Settings)
	if err := domain.Validate(in); err != nil {
		return nil, err
	}
	prompts, err := s.store.Prompts.ListByIDs(ctx, domain.UniqueStrings(in.PromptIDs))
	if err != nil {
		return nil, err
	}
	found := make(map[string]struct{}, len(prompts))
	for _, p := range prompts {
		found[p.ID] = struct{}{}
	}
	if missing := missingIDs(domain.UniqueStrings(in.PromptIDs), found); len(missing) > 0 {
		return nil, domain.ValidationIDs("unknown prompt ids", missing...)
	}

	tasks := make([]domain.GenerationTask, len(in.PromptIDs))
	for i, id := range in.PromptIDs {
		tasks[i] = domain.GenerationTask{PromptID: id, Status: domain.TaskStatusPending}
	}
	now := s.now()
	g := &domain.Generation{
		ID:        s.newID(),
		Name:      in.Name,
		ModelID:   in.ModelID,
		Provider:  in.Provider,
		Settings:  in.Settings,
		Status:    domain.GenerationStatusDraft,
		Tasks:     tasks,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.Generations.Create(ctx, g); err != nil {
		return nil, err
	}
	return g, nil
}

// StartJob moves a draft job to processing and enqueues one work item per
// task. The status is persisted before anything is enqueued.
func (s *Service) StartJob(ctx context.Context, id string) (*domain.Generation, error) {
	g, err := s.store.Generations.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if g.Status != domain.GenerationStatusDraft {
		return nil, domain.ValidationIDs(fmt.Sprintf("generation is %s, only a draft can be started", g.Status), id)
	}
	ok, err := s.store.Generations.TransitionStatus(ctx, id, domain.GenerationStatusDraft, domain.GenerationStatusProcessing)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domain.ValidationIDs("generation was started concurrently", id)
	}
	g.Status = domain.GenerationStatusProcessing

	all := make([]int, len(g.Tasks))
	for i := range all {
		all[i] = i
	}
	if _, err := s.enqueueTasks(ctx, g, all); err != nil {
		return nil, err
	}
	fresh, err := s.store.Generations.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return fresh, nil
}

// RequeuePending enqueues the pending tasks of a processing job again. Items
// still queued under the same dedup key are not duplicated.
func (s *Service) RequeuePending(ctx context.Context, g *domain.Generation) (int, error) {
	if g.Status != domain.GenerationStatusProcessing {
		return 0, nil
	}
	var pending []int
	for i, t := range g.Tasks {
		if t.Status == domain.TaskStatusPending {
			pending = append(pending, i)
		}
	}
	return s.enqueueTasks(ctx, g, pending)
}

func (s *Service) enqueueTasks(ctx context.Context, g *domain.Generation, indexes []int) (int, error) {
	if len(indexes) == 0 {
		return 0, nil
	}
	promptIDs := make([]string, len(indexes))
	for i, idx := range indexes {
		promptIDs[i] = g.Tasks[idx].PromptID
	}
	prompts, err := s.store.Prompts.ListByIDs(ctx, domain.UniqueStrings(promptIDs))
	if err != nil {
		return 0, err
	}
	text := make(map[string]string, len(prompts))
	for _, p := range prompts {
		text[p.ID] = p.Text
	}

	enqueued := 0
	for _, idx := range indexes {
		task := g.Tasks[idx]
		body, ok := text[task.PromptID]
		if !ok {
			// The prompt was deleted after the job was built; the task can never run.
			if _, err := s.UpdateTaskStatus(ctx, g.ID, idx, domain.TaskUpdate{
				Status: domain.TaskStatusFailed,
				Error:  "prompt " + task.PromptID + " no longer exists",
			}); err != nil {
				return enqueued, err
			}
			continue
		}
		item := queue.WorkItem{
			GenerationID: g.ID,
			TaskIndex:    idx,
			PromptID:     task.PromptID,
			PromptText:   body,
			ModelID:      g.ModelID,
			Provider:     g.Provider,
			Settings:     g.Settings,
		}
		added, err := s.queue.Enqueue(ctx, item, s.queueOpts)
		if err != nil {
			return enqueued, fmt.Errorf("enqueue %s: %w", item.DedupKey(), err)
		}
		if added {
			enqueued++
		}
	}
	s.logger.Info().
		Str("generation_id", g.ID).
		Int("tasks", len(indexes)).
		Int("enqueued", enqueued).
		Msg("service: tasks dispatched")
	return enqueued, nil
}

// UpdateTaskStatus applies u to one task by index, then re-reads the job and
// persists the derived job status when it changed. It returns the snapshot the
// status was derived from.
func (s *Service) UpdateTaskStatus(ctx context.Context, generationID string, taskIndex int, u domain.TaskUpdate) (*domain.Generation, error) {
	if !u.Status.Valid() {
		return nil, domain.Validation("unknown task status %q", u.Status)
	}
	if taskIndex < 0 {
		return nil, domain.Validation("task index %d out of range", taskIndex)
	}
	applied, err := s.store.Generations.UpdateTask(ctx, generationID, taskIndex, u)
	if err != nil {
		return nil, err
	}
	g, err := s.store.Generations.GetByID(ctx, generationID)
	if err != nil {
		return nil, err
	}
	if taskIndex >= len(g.Tasks) {
		return nil, domain.Validation("task index %d out of range for %d tasks", taskIndex, len(g.Tasks))
	}
	if !applied {
		s.logger.Debug().
			Str("generation_id", generationID).
			Int("task_index", taskIndex).
			Str("status", string(u.Status)).
			Msg("service: stale task update ignored")
	}
	return s.finalize(ctx, g)
}

// finalize persists NextStatus with a compare-and-set on the snapshot's
// status, re-reading whenever another writer got there first.
func (s *Service) finalize(ctx context.Context, g *domain.Generation) (*domain.Generation, error) {
	for i := 0; i < finalizeRetries; i++ {
		next := domain.NextStatus(*g)
		if next == g.Status {
			return g, nil
		}
		ok, err := s.store.Generations.TransitionStatus(ctx, g.ID, g.Status, next)
		if err != nil {
			return nil, err
		}
		if ok {
			s.logger.Info().
				Str("generation_id", g.ID).
				Str("from", string(g.Status)).
				Str("to", string(next)).
				Msg("service: generation status changed")
			g.Status = next
			return g, nil
		}
		if g, err = s.store.Generations.GetByID(ctx, g.ID); err != nil {
			return nil, err
		}
	}
	return nil, fmt.Errorf("generation %s: status kept changing under concurrent updates", g.ID)
}

// GenerationView is a job together with its progress snapshot.
type GenerationView struct {
	domain.Generation
	Progress domain.Progress `json:"progress"`
}

func (s *Service) GetJob(ctx context.Context, id string) (*GenerationView, error) {
	g, err := s.store.Generations.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return &GenerationView{Generation: *g, Progress: domain.ProgressOf(*g)}, nil
}

// Progress reports task counts for the job.
func (s *Service) Progress(ctx context.Context, id string) (domain.Progress, error) {
	g, err := s.store.Generations.GetByID(ctx, id)
	if err != nil {
		return domain.Progress{}, err
	}
	return domain.ProgressOf(*g), nil
}

// ListJobs returns jobs newest first.
func (s *Service) ListJobs(ctx context.Context) ([]domain.Generation, error) {
	return s.store.Generations.List(ctx)
}

// DeleteJob removes the job and its results.
func (s *Service) DeleteJob(ctx context.Context, id string) error {
	if _, err := s.store.Generations.GetByID(ctx, id); err != nil {
		return err
	}
	if _, err := s.store.Results.DeleteByGeneration(ctx, id); err != nil {
		return err
	}
	return s.store.Generations.Delete(ctx, id)
}
