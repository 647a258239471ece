package queue

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Memory is an in-process queue with the same delivery semantics as the
// persistent backends.
type Memory struct {
	mu         sync.Mutex
	visibility time.Duration
	now        func() time.Time
	items      map[string]*envelope
	dedup      map[string]string
}

// NewMemory creates an empty in-memory queue.
func NewMemory(visibility time.Duration) *Memory {
	if visibility <= 0 {
		visibility = 5 * time.Minute
	}
	return &Memory{
		visibility: visibility,
		now:        time.Now,
		items:      map[string]*envelope{},
		dedup:      map[string]string{},
	}
}

func (m *Memory) Enqueue(ctx context.Context, item WorkItem, opts Options) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := item.DedupKey()
	if _, ok := m.dedup[key]; ok {
		return false, nil
	}
	now := m.now()
	env := &envelope{ID: uuid.NewString(), Item: item, Options: opts.normalized(), VisibleAt: now, CreatedAt: now}
	m.items[env.ID] = env
	m.dedup[key] = env.ID
	return true, nil
}

func (m *Memory) Receive(ctx context.Context) (*Delivery, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	var ready []*envelope
	for _, env := range m.items {
		if !env.VisibleAt.After(now) {
			ready = append(ready, env)
		}
	}
	if len(ready) == 0 {
		return nil, ErrEmpty
	}
	sort.Slice(ready, func(i, j int) bool {
		if !ready[i].VisibleAt.Equal(ready[j].VisibleAt) {
			return ready[i].VisibleAt.Before(ready[j].VisibleAt)
		}
		return ready[i].CreatedAt.Before(ready[j].CreatedAt)
	})
	env := ready[0]
	env.Attempts++
	env.VisibleAt = now.Add(m.visibility)
	return env.delivery(), nil
}

func (m *Memory) Ack(ctx context.Context, d *Delivery) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.remove(d.ID)
	return nil
}

func (m *Memory) Nack(ctx context.Context, d *Delivery, cause error) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	env, ok := m.items[d.ID]
	if !ok {
		return false, nil
	}
	if d.Exhausted() {
		m.remove(d.ID)
		return false, nil
	}
	env.VisibleAt = m.now().Add(env.Options.RetryDelay(d.Attempt))
	if cause != nil {
		env.LastError = cause.Error()
	}
	return true, nil
}

// Len returns the number of queued items, visible or not.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}

// Items returns a snapshot of every queued work item.
func (m *Memory) Items() []WorkItem {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]WorkItem, 0, len(m.items))
	for _, env := range m.items {
		out = append(out, env.Item)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TaskIndex < out[j].TaskIndex })
	return out
}

// OptionsOf returns the options the item with dedupKey was enqueued with.
func (m *Memory) OptionsOf(dedupKey string) (Options, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.dedup[dedupKey]
	if !ok {
		return Options{}, false
	}
	return m.items[id].Options, true
}

func (m *Memory) remove(id string) {
	env, ok := m.items[id]
	if !ok {
		return
	}
	delete(m.items, id)
	if m.dedup[env.Item.DedupKey()] == id {
		delete(m.dedup, env.Item.DedupKey())
	}
}

var _ Queue = (*Memory)(nil)
