package domain

import (
	"math"
	"time"
)

// GenerationStatus enumerates job lifecycle states.
type GenerationStatus string

const (
	GenerationStatusDraft      GenerationStatus = "draft"
	GenerationStatusProcessing GenerationStatus = "processing"
	GenerationStatusCompleted  GenerationStatus = "completed"
	GenerationStatusFailed     GenerationStatus = "failed"
)

// IsTerminal reports whether no further automatic transition occurs.
func (s GenerationStatus) IsTerminal() bool {
	return s == GenerationStatusCompleted || s == GenerationStatusFailed
}

// TaskStatus enumerates per-task states.
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusProcessing TaskStatus = "processing"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"
)

// IsTerminal reports whether the task has completed or failed.
func (s TaskStatus) IsTerminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusFailed
}

// Valid reports whether s is a known task status.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusPending, TaskStatusProcessing, TaskStatusCompleted, TaskStatusFailed:
		return true
	}
	return false
}

// GenerationSettings are optional provider hints stored with the job.
type GenerationSettings struct {
	AspectRatio    string `json:"aspect_ratio,omitempty" validate:"omitempty,oneof=1:1 4:3 3:4 16:9 9:16"`
	NegativePrompt string `json:"negative_prompt,omitempty" validate:"max=1000"`
}

// GenerationTask is one unit of work inside a Generation, addressed by index.
// ResultID is set only when completed and Error only when failed.
type GenerationTask struct {
	PromptID string     `json:"prompt_id"`
	Status   TaskStatus `json:"status"`
	ResultID string     `json:"result_id,omitempty"`
	Error    string     `json:"error,omitempty"`
}

// Generation is a batch of prompts submitted together for external processing.
// Tasks are fixed in length and order once created.
type Generation struct {
	ID        string              `json:"id"`
	Name      string              `json:"name"`
	ModelID   string              `json:"model_id"`
	Provider  string              `json:"provider"`
	Settings  *GenerationSettings `json:"settings,omitempty"`
	Status    GenerationStatus    `json:"status"`
	Tasks     []GenerationTask    `json:"tasks"`
	CreatedAt time.Time           `json:"created_at"`
	UpdatedAt time.Time           `json:"updated_at"`
}

// CreateJobInput is the payload accepted by the job builder.
type CreateJobInput struct {
	Name      string              `json:"name" validate:"required,max=200"`
	PromptIDs []string            `json:"prompt_ids" validate:"required,min=1,dive,required"`
	ModelID   string              `json:"model_id" validate:"required"`
	Provider  string              `json:"provider" validate:"required"`
	Settings  *GenerationSettings `json:"settings"`
}

// TaskUpdate is the patch applied to a single task by the aggregator.
type TaskUpdate struct {
	Status   TaskStatus
	ResultID string
	Error    string
}

// Normalized drops fields that are not allowed for the target status so the
// resultId/error invariants hold after the update.
func (u TaskUpdate) Normalized() TaskUpdate {
	out := TaskUpdate{Status: u.Status}
	switch u.Status {
	case TaskStatusCompleted:
		out.ResultID = u.ResultID
	case TaskStatusFailed:
		out.Error = u.Error
	}
	return out
}

// Apply returns the task after the update. A completed task is never moved
// away from completed by a stale redelivery; ok is false in that case.
func (u TaskUpdate) Apply(task GenerationTask) (GenerationTask, bool) {
	n := u.Normalized()
	if task.Status == TaskStatusCompleted && n.Status != TaskStatusCompleted {
		return task, false
	}
	return GenerationTask{
		PromptID: task.PromptID,
		Status:   n.Status,
		ResultID: n.ResultID,
		Error:    n.Error,
	}, true
}

// NextStatus derives the job status from a snapshot. A draft job keeps its
// status. Otherwise the job is completed when every task completed, failed
// when every task is terminal and at least one failed, and processing while
// any task is pending or processing. A terminal job never goes back to
// processing: while a queue retry has a task open it keeps its status, and a
// failed job can only move on to completed once every task completed.
func NextStatus(g Generation) GenerationStatus {
	if g.Status == GenerationStatusDraft || len(g.Tasks) == 0 {
		return g.Status
	}
	allCompleted := true
	for _, t := range g.Tasks {
		if !t.Status.IsTerminal() {
			if g.Status.IsTerminal() {
				return g.Status
			}
			return GenerationStatusProcessing
		}
		if t.Status != TaskStatusCompleted {
			allCompleted = false
		}
	}
	if allCompleted {
		return GenerationStatusCompleted
	}
	return GenerationStatusFailed
}

// Progress is a read-only summary of a job's tasks. Pending counts both
// pending and processing tasks.
type Progress struct {
	Total      int `json:"total"`
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`
	Pending    int `json:"pending"`
	Percentage int `json:"percentage"`
}

// ProgressOf computes the progress snapshot of g.
func ProgressOf(g Generation) Progress {
	p := Progress{Total: len(g.Tasks)}
	for _, t := range g.Tasks {
		switch t.Status {
		case TaskStatusCompleted:
			p.Completed++
		case TaskStatusFailed:
			p.Failed++
		default:
			p.Pending++
		}
	}
	if p.Total > 0 {
		p.Percentage = int(math.Round(float64(p.Completed) / float64(p.Total) * 100))
	}
	return p
}

// PromptIDs returns the prompt id of every task in order.
func (g Generation) PromptIDs() []string {
	ids := make([]string, len(g.Tasks))
	for i, t := range g.Tasks {
		ids[i] = t.PromptID
	}
	return ids
}

// Clone returns a deep copy so callers never alias a store's task slice.
func (g Generation) Clone() Generation {
	out := g
	out.Tasks = append([]GenerationTask(nil), g.Tasks...)
	if g.Settings != nil {
		s := *g.Settings
		out.Settings = &s
	}
	return out
}
