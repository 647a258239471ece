// Package queue delivers generation work items to task processors with
// at-least-once semantics: a received item stays invisible for a visibility
// timeout and reappears unless it is acknowledged.
package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"contentfabric/internal/domain"
)

// ErrEmpty is returned by Receive when no item is currently visible.
var ErrEmpty = errors.New("queue: no message")

// WorkItem is the self-contained payload for one task of a generation.
type WorkItem struct {
	GenerationID string                     `json:"generation_id"`
	TaskIndex    int                        `json:"task_index"`
	PromptID     string                     `json:"prompt_id"`
	PromptText   string                     `json:"prompt_text"`
	ModelID      string                     `json:"model_id"`
	Provider     string                     `json:"provider"`
	Settings     *domain.GenerationSettings `json:"settings,omitempty"`
}

// DedupKey identifies the task slot; enqueueing a key that is still queued is
// a no-op.
func (w WorkItem) DedupKey() string {
	return fmt.Sprintf("%s:%d", w.GenerationID, w.TaskIndex)
}

type BackoffType string

const (
	BackoffExponential BackoffType = "exponential"
	BackoffFixed       BackoffType = "fixed"
)

type Backoff struct {
	Type  BackoffType   `json:"type"`
	Delay time.Duration `json:"delay"`
}

// Options control retries of one item.
type Options struct {
	Attempts int     `json:"attempts"`
	Backoff  Backoff `json:"backoff"`
}

// DefaultOptions are three attempts with exponential backoff from one second.
func DefaultOptions() Options {
	return Options{Attempts: 3, Backoff: Backoff{Type: BackoffExponential, Delay: time.Second}}
}

func (o Options) normalized() Options {
	if o.Attempts < 1 {
		o.Attempts = 1
	}
	if o.Backoff.Type == "" {
		o.Backoff.Type = BackoffExponential
	}
	if o.Backoff.Delay < 0 {
		o.Backoff.Delay = 0
	}
	return o
}

// RetryDelay returns the wait before the next attempt after attempt (1-based)
// failed: delay * 2^(attempt-1) for exponential backoff.
func (o Options) RetryDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if o.Backoff.Type == BackoffFixed {
		return o.Backoff.Delay
	}
	shift := attempt - 1
	if shift > 20 {
		shift = 20
	}
	return o.Backoff.Delay * time.Duration(1<<shift)
}

// Delivery is one received copy of an item. Attempt counts receives,
// including this one.
type Delivery struct {
	ID      string
	Item    WorkItem
	Attempt int
	Options Options
}

// Exhausted reports whether no retry remains after this delivery.
func (d *Delivery) Exhausted() bool {
	return d.Attempt >= d.Options.Attempts
}

// Queue is implemented by the Postgres, Badger and in-memory backends.
type Queue interface {
	// Enqueue adds item unless an item with the same dedup key is queued. It
	// reports whether a new item was stored.
	Enqueue(ctx context.Context, item WorkItem, opts Options) (bool, error)
	// Receive claims the next visible item or returns ErrEmpty.
	Receive(ctx context.Context) (*Delivery, error)
	// Ack removes a processed item.
	Ack(ctx context.Context, d *Delivery) error
	// Nack schedules a retry after the backoff, or drops the item when its
	// attempts are used up. It reports whether a retry was scheduled.
	Nack(ctx context.Context, d *Delivery, cause error) (bool, error)
}

// envelope is the persisted form of an item in the Badger and memory backends.
type envelope struct {
	ID        string    `json:"id"`
	Item      WorkItem  `json:"item"`
	Options   Options   `json:"options"`
	Attempts  int       `json:"attempts"`
	VisibleAt time.Time `json:"visible_at"`
	LastError string    `json:"last_error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func (e envelope) delivery() *Delivery {
	return &Delivery{ID: e.ID, Item: e.Item, Attempt: e.Attempts, Options: e.Options}
}
