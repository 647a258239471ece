// Package worker turns queued work items into provider calls, stored
// artifacts, result records and task status updates.
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"contentfabric/internal/domain"
	"contentfabric/internal/infra"
	"contentfabric/internal/providers"
	"contentfabric/internal/queue"
	"contentfabric/internal/service"
	"contentfabric/internal/storage"
)

// Generator is the provider surface the processor needs.
type Generator interface {
	Generate(ctx context.Context, req providers.Request) (*providers.Output, error)
}

// Processor handles one work item at a time; it is safe for concurrent use.
type Processor struct {
	svc    *service.Service
	gen    Generator
	files  *storage.FileStore
	logger infra.Logger
}

func NewProcessor(svc *service.Service, gen Generator, files *storage.FileStore, logger infra.Logger) *Processor {
	return &Processor{svc: svc, gen: gen, files: files, logger: logger}
}

// Handle adapts Process to queue.Handler.
func (p *Processor) Handle(ctx context.Context, d *queue.Delivery) error {
	return p.Process(ctx, d.Item)
}

// Process marks the task processing, calls the provider, and records the
// outcome. A provider failure marks the task failed and is returned so the
// queue can retry the item.
func (p *Processor) Process(ctx context.Context, item queue.WorkItem) error {
	log := p.logger.With().
		Str("generation_id", item.GenerationID).
		Int("task_index", item.TaskIndex).
		Str("provider", item.Provider).
		Logger()

	snap, err := p.svc.UpdateTaskStatus(ctx, item.GenerationID, item.TaskIndex, domain.TaskUpdate{Status: domain.TaskStatusProcessing})
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrValidation) {
			log.Warn().Err(err).Msg("worker: work item no longer matches a task, dropping")
			return nil
		}
		return fmt.Errorf("mark processing: %w", err)
	}
	if snap.Tasks[item.TaskIndex].Status == domain.TaskStatusCompleted {
		log.Debug().Msg("worker: task already completed, skipping redelivery")
		return nil
	}

	out, err := p.gen.Generate(ctx, providers.Request{
		PromptText: item.PromptText,
		ModelID:    item.ModelID,
		Provider:   item.Provider,
		Settings:   item.Settings,
		RequestID:  item.DedupKey(),
	})
	if err == nil {
		err = p.complete(ctx, item, out)
		if err == nil {
			log.Info().Msg("worker: task completed")
			return nil
		}
	}

	if _, uerr := p.svc.UpdateTaskStatus(ctx, item.GenerationID, item.TaskIndex, domain.TaskUpdate{
		Status: domain.TaskStatusFailed,
		Error:  err.Error(),
	}); uerr != nil {
		log.Error().Err(uerr).Msg("worker: failed to record task failure")
	}
	return err
}

func (p *Processor) complete(ctx context.Context, item queue.WorkItem, out *providers.Output) error {
	if out == nil {
		return domain.ProviderFailure(item.Provider, errors.New("empty output"))
	}
	url := out.URL
	if len(out.Data) > 0 {
		if p.files == nil {
			return errors.New("worker: provider returned data but no file store is configured")
		}
		key, err := p.files.Write(ctx, out.Key, out.Data)
		if err != nil {
			return err
		}
		url = p.files.URL(key)
	}
	if url == "" {
		return domain.ProviderFailure(item.Provider, errors.New("output has neither url nor data"))
	}
	res, err := p.svc.RecordResult(ctx, item.GenerationID, item.PromptID, item.PromptText, url)
	if err != nil {
		return fmt.Errorf("record result: %w", err)
	}
	if err := p.markCompleted(ctx, item, res.ID); err != nil {
		// The retry records a new result; drop this one so the job keeps
		// one result per completed task.
		if derr := p.svc.DeleteResult(ctx, res.ID); derr != nil && !errors.Is(derr, domain.ErrNotFound) {
			p.logger.Error().Err(derr).Str("result_id", res.ID).Msg("worker: failed to drop orphaned result")
		}
		return fmt.Errorf("mark completed: %w", err)
	}
	return nil
}

const (
	completeAttempts = 3
	completeBackoff  = 50 * time.Millisecond
)

// markCompleted retries the completed write so a transient store error does
// not throw away a generated artifact.
func (p *Processor) markCompleted(ctx context.Context, item queue.WorkItem, resultID string) error {
	var err error
	for i := 0; i < completeAttempts; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(completeBackoff * time.Duration(i)):
			}
		}
		_, err = p.svc.UpdateTaskStatus(ctx, item.GenerationID, item.TaskIndex, domain.TaskUpdate{
			Status:   domain.TaskStatusCompleted,
			ResultID: resultID,
		})
		if err == nil || errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrValidation) {
			return err
		}
	}
	return err
}

// Exhausted runs for an item the queue dropped after its last attempt. A task
// the processor already settled keeps its status and error; any other task is
// marked failed so its job converges.
func (p *Processor) Exhausted(ctx context.Context, d *queue.Delivery, cause error) {
	log := p.logger.With().
		Str("generation_id", d.Item.GenerationID).
		Int("task_index", d.Item.TaskIndex).
		Logger()

	view, err := p.svc.GetJob(ctx, d.Item.GenerationID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			log.Error().Err(err).Msg("worker: failed to load job of exhausted item")
		}
		return
	}
	if d.Item.TaskIndex < 0 || d.Item.TaskIndex >= len(view.Tasks) || view.Tasks[d.Item.TaskIndex].Status.IsTerminal() {
		return
	}

	msg := fmt.Sprintf("gave up after %d attempts", d.Options.Attempts)
	if cause != nil {
		msg += ": " + cause.Error()
	}
	if _, err := p.svc.UpdateTaskStatus(ctx, d.Item.GenerationID, d.Item.TaskIndex, domain.TaskUpdate{
		Status: domain.TaskStatusFailed,
		Error:  msg,
	}); err != nil {
		log.Error().Err(err).Msg("worker: failed to record exhausted task")
	}
}
