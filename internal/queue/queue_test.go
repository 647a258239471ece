package queue

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"contentfabric/internal/testutil"
)

type backend struct {
	name string
	new  func(t *testing.T, visibility time.Duration) Queue
}

func backends() []backend {
	list := []backend{
		{name: "memory", new: func(t *testing.T, visibility time.Duration) Queue { return NewMemory(visibility) }},
		{name: "badger", new: func(t *testing.T, visibility time.Duration) Queue {
			db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLogger(nil))
			require.NoError(t, err)
			t.Cleanup(func() { _ = db.Close() })
			q, err := NewBadger(db, "test", visibility)
			require.NoError(t, err)
			return q
		}},
	}
	if os.Getenv(testutil.IntegrationEnv) != "" {
		list = append(list, backend{name: "postgres", new: func(t *testing.T, visibility time.Duration) Queue {
			return NewPostgres(testutil.Postgres(t).Runner(), visibility)
		}})
	}
	return list
}

func item(gen string, idx int) WorkItem {
	return WorkItem{GenerationID: gen, TaskIndex: idx, PromptID: fmt.Sprintf("p%d", idx), PromptText: "text", ModelID: "m", Provider: "synthetic"}
}

func noDelay(attempts int) Options {
	return Options{Attempts: attempts, Backoff: Backoff{Type: BackoffExponential, Delay: 0}}
}

func TestRetryDelay(t *testing.T) {
	opts := DefaultOptions()
	assert.Equal(t, time.Second, opts.RetryDelay(1))
	assert.Equal(t, 2*time.Second, opts.RetryDelay(2))
	assert.Equal(t, 4*time.Second, opts.RetryDelay(3))

	fixed := Options{Attempts: 3, Backoff: Backoff{Type: BackoffFixed, Delay: time.Second}}
	assert.Equal(t, time.Second, fixed.RetryDelay(3))
}

func TestDedupKey(t *testing.T) {
	assert.Equal(t, "g1:4", item("g1", 4).DedupKey())
}

func TestQueueBackends(t *testing.T) {
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			t.Run("dedup and ack", func(t *testing.T) { testDedupAndAck(t, b.new(t, time.Minute)) })
			t.Run("visibility timeout", func(t *testing.T) { testVisibility(t, b.new(t, 40*time.Millisecond)) })
			t.Run("nack backoff", func(t *testing.T) { testNackBackoff(t, b.new(t, time.Minute)) })
			t.Run("nack exhausted", func(t *testing.T) { testNackExhausted(t, b.new(t, time.Minute)) })
			t.Run("pool retries", func(t *testing.T) { testPoolRetries(t, b.new(t, time.Minute)) })
			t.Run("pool concurrency", func(t *testing.T) { testPoolConcurrency(t, b.new(t, time.Minute)) })
		})
	}
}

func testDedupAndAck(t *testing.T, q Queue) {
	ctx := context.Background()
	ok, err := q.Enqueue(ctx, item("g", 0), DefaultOptions())
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = q.Enqueue(ctx, item("g", 0), DefaultOptions())
	require.NoError(t, err)
	assert.False(t, ok, "same dedup key must not be queued twice")

	d, err := q.Receive(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, d.Attempt)
	assert.Equal(t, item("g", 0), d.Item)
	assert.Equal(t, 3, d.Options.Attempts)

	_, err = q.Receive(ctx)
	assert.ErrorIs(t, err, ErrEmpty, "claimed item is invisible")

	require.NoError(t, q.Ack(ctx, d))
	ok, err = q.Enqueue(ctx, item("g", 0), DefaultOptions())
	require.NoError(t, err)
	assert.True(t, ok, "ack frees the dedup key")
}

func testVisibility(t *testing.T, q Queue) {
	ctx := context.Background()
	_, err := q.Enqueue(ctx, item("g", 1), DefaultOptions())
	require.NoError(t, err)

	first, err := q.Receive(ctx)
	require.NoError(t, err)
	time.Sleep(80 * time.Millisecond)

	second, err := q.Receive(ctx)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 2, second.Attempt)
}

func testNackBackoff(t *testing.T, q Queue) {
	ctx := context.Background()
	opts := Options{Attempts: 3, Backoff: Backoff{Type: BackoffExponential, Delay: 40 * time.Millisecond}}
	_, err := q.Enqueue(ctx, item("g", 2), opts)
	require.NoError(t, err)

	d, err := q.Receive(ctx)
	require.NoError(t, err)
	retried, err := q.Nack(ctx, d, errors.New("provider down"))
	require.NoError(t, err)
	assert.True(t, retried)

	_, err = q.Receive(ctx)
	assert.ErrorIs(t, err, ErrEmpty, "not visible before the backoff elapses")

	time.Sleep(90 * time.Millisecond)
	again, err := q.Receive(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, again.Attempt)
}

func testNackExhausted(t *testing.T, q Queue) {
	ctx := context.Background()
	_, err := q.Enqueue(ctx, item("g", 3), noDelay(1))
	require.NoError(t, err)

	d, err := q.Receive(ctx)
	require.NoError(t, err)
	assert.True(t, d.Exhausted())
	retried, err := q.Nack(ctx, d, errors.New("boom"))
	require.NoError(t, err)
	assert.False(t, retried)

	_, err = q.Receive(ctx)
	assert.ErrorIs(t, err, ErrEmpty)
	ok, err := q.Enqueue(ctx, item("g", 3), noDelay(1))
	require.NoError(t, err)
	assert.True(t, ok, "dropped item frees its dedup key")
}

func testPoolRetries(t *testing.T, q Queue) {
	ctx := context.Background()
	_, err := q.Enqueue(ctx, item("g", 0), noDelay(3))
	require.NoError(t, err)
	_, err = q.Enqueue(ctx, item("g", 1), noDelay(2))
	require.NoError(t, err)

	var mu sync.Mutex
	calls := map[int]int{}
	handler := func(ctx context.Context, d *Delivery) error {
		mu.Lock()
		defer mu.Unlock()
		calls[d.Item.TaskIndex]++
		if d.Item.TaskIndex == 0 && d.Attempt < 3 {
			return errors.New("transient")
		}
		if d.Item.TaskIndex == 1 {
			return errors.New("permanent")
		}
		return nil
	}
	pool := NewPool(q, handler, 1, time.Millisecond, zerolog.Nop())
	var dead []string
	pool.OnDead(func(_ context.Context, d *Delivery, cause error) {
		msg := "<nil>"
		if cause != nil {
			msg = cause.Error()
		}
		dead = append(dead, fmt.Sprintf("%s/%d", d.Item.DedupKey(), d.Attempt)+" "+msg)
	})
	n, err := pool.Drain(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, 3, calls[0], "task 0 succeeds on its third attempt")
	assert.Equal(t, 2, calls[1], "task 1 stops after its attempt budget")
	assert.Equal(t, []string{"g:1/2 permanent"}, dead, "only the item whose last attempt failed is dead")

	_, err = q.Receive(ctx)
	assert.ErrorIs(t, err, ErrEmpty)
}

func testPoolConcurrency(t *testing.T, q Queue) {
	const total = 20
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	for i := 0; i < total; i++ {
		_, err := q.Enqueue(ctx, item("g", i), DefaultOptions())
		require.NoError(t, err)
	}

	var (
		mu   sync.Mutex
		seen = map[int]int{}
		done atomic.Int32
	)
	handler := func(ctx context.Context, d *Delivery) error {
		mu.Lock()
		seen[d.Item.TaskIndex]++
		mu.Unlock()
		if done.Add(1) == total {
			cancel()
		}
		return nil
	}
	pool := NewPool(q, handler, 4, 5*time.Millisecond, zerolog.Nop())

	finished := make(chan struct{})
	go func() {
		_ = pool.Run(ctx)
		close(finished)
	}()
	select {
	case <-finished:
	case <-time.After(10 * time.Second):
		t.Fatal("pool did not finish")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Len(t, seen, total)
	for idx, n := range seen {
		assert.Equal(t, 1, n, "task %d handled more than once", idx)
	}
}
