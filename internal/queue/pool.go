package queue

import (
	"context"
	"errors"
	"sync"
	"time"

	"contentfabric/internal/infra"
)

// Handler processes one delivery. A returned error triggers a retry until the
// item's attempts are used up.
type Handler func(ctx context.Context, d *Delivery) error

// Pool runs concurrent consumers over a queue.
type Pool struct {
	queue       Queue
	handler     Handler
	concurrency int
	poll        time.Duration
	logger      infra.Logger
	onDead      DeadFunc
}

// DeadFunc is told about an item the queue dropped for good. cause is the
// handler's last error, or nil when the attempts were used up by deliveries
// whose consumer never answered.
type DeadFunc func(ctx context.Context, d *Delivery, cause error)

// NewPool creates a pool of concurrency consumers polling every poll when idle.
func NewPool(q Queue, handler Handler, concurrency int, poll time.Duration, logger infra.Logger) *Pool {
	if concurrency < 1 {
		concurrency = 1
	}
	if poll <= 0 {
		poll = 500 * time.Millisecond
	}
	return &Pool{queue: q, handler: handler, concurrency: concurrency, poll: poll, logger: logger}
}

// OnDead registers fn to run for every item dropped after its last attempt.
func (p *Pool) OnDead(fn DeadFunc) {
	p.onDead = fn
}

// Run blocks until ctx is cancelled and all consumers have returned.
func (p *Pool) Run(ctx context.Context) error {
	p.logger.Info().Int("concurrency", p.concurrency).Msg("worker pool: starting")
	var wg sync.WaitGroup
	for i := 0; i < p.concurrency; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			p.consume(ctx, workerID)
		}(i)
	}
	wg.Wait()
	p.logger.Info().Msg("worker pool: stopped")
	return ctx.Err()
}

func (p *Pool) consume(ctx context.Context, workerID int) {
	// Stagger starts across the poll interval.
	stagger := p.poll / time.Duration(p.concurrency) * time.Duration(workerID)
	if !sleep(ctx, stagger) {
		return
	}
	for {
		handled, err := p.ProcessNext(ctx)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			p.logger.Warn().Err(err).Int("worker_id", workerID).Msg("worker pool: queue error")
		}
		if handled {
			continue
		}
		if !sleep(ctx, p.poll) {
			return
		}
	}
}

// ProcessNext receives and handles at most one item. It reports whether an
// item was received.
func (p *Pool) ProcessNext(ctx context.Context) (bool, error) {
	d, err := p.queue.Receive(ctx)
	if errors.Is(err, ErrEmpty) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	log := p.logger.With().
		Str("generation_id", d.Item.GenerationID).
		Int("task_index", d.Item.TaskIndex).
		Str("provider", d.Item.Provider).
		Int("attempt", d.Attempt).
		Logger()

	if d.Attempt > d.Options.Attempts {
		// Attempts were consumed by deliveries whose consumer never answered.
		log.Error().Msg("worker pool: dropping item after exhausted attempts")
		p.dead(ctx, d, nil)
		return true, p.queue.Ack(ctx, d)
	}

	if herr := p.handler(ctx, d); herr != nil {
		retried, err := p.queue.Nack(ctx, d, herr)
		if err != nil {
			return true, err
		}
		if retried {
			log.Warn().Err(herr).Dur("retry_in", d.Options.RetryDelay(d.Attempt)).Msg("worker pool: task failed, retry scheduled")
		} else {
			log.Error().Err(herr).Msg("worker pool: task failed, attempts exhausted")
			p.dead(ctx, d, herr)
		}
		return true, nil
	}
	return true, p.queue.Ack(ctx, d)
}

func (p *Pool) dead(ctx context.Context, d *Delivery, cause error) {
	if p.onDead != nil {
		p.onDead(ctx, d, cause)
	}
}

// Drain handles items until none is visible. It is meant for tests and
// one-shot command line runs.
func (p *Pool) Drain(ctx context.Context) (int, error) {
	n := 0
	for {
		handled, err := p.ProcessNext(ctx)
		if err != nil {
			return n, err
		}
		if !handled {
			return n, nil
		}
		n++
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
