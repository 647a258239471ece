// Package service holds the orchestration core: parameter and template
// management, template expansion, job building and dispatch, and task status
// aggregation. It depends only on the domain repositories and the queue.
package service

import (
	"time"

	"github.com/google/uuid"

	"contentfabric/internal/domain"
	"contentfabric/internal/infra"
	"contentfabric/internal/queue"
)

// Options tune a Service. Zero values fall back to defaults.
type Options struct {
	Queue queue.Options
	Now   func() time.Time
	NewID func() string
}

// Service implements every core operation over one Store.
type Service struct {
	store     domain.Store
	queue     queue.Queue
	queueOpts queue.Options
	now       func() time.Time
	newID     func() string
	logger    infra.Logger
}

func New(store domain.Store, q queue.Queue, opts Options, logger infra.Logger) *Service {
	if opts.Queue.Attempts == 0 {
		opts.Queue = queue.DefaultOptions()
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}
	if opts.NewID == nil {
		opts.NewID = func() string { return uuid.NewString() }
	}
	return &Service{
		store:     store,
		queue:     q,
		queueOpts: opts.Queue,
		now:       opts.Now,
		newID:     opts.NewID,
		logger:    logger,
	}
}

// Store exposes the underlying repositories for read-only callers.
func (s *Service) Store() domain.Store {
	return s.store
}

func missingIDs(want []string, found map[string]struct{}) []string {
	var missing []string
	for _, id := range want {
		if _, ok := found[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing
}

func cleanIDs(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id != "" {
			out = append(out, id)
		}
	}
	return domain.UniqueStrings(out)
}
