package queue

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"contentfabric/internal/sqlinline"
)

type execCall struct {
	query string
	args  []any
}

type stubExecutor struct {
	calls []execCall
	row   pgx.Row
	tag   pgconn.CommandTag
}

func (s *stubExecutor) Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	s.calls = append(s.calls, execCall{query: query, args: args})
	return s.tag, nil
}

func (s *stubExecutor) QueryRow(ctx context.Context, query string, args ...any) pgx.Row {
	s.calls = append(s.calls, execCall{query: query, args: args})
	return s.row
}

func (s *stubExecutor) Query(ctx context.Context, query string, args ...any) (pgx.Rows, error) {
	return nil, errors.New("not implemented")
}

type claimRow struct {
	payload []byte
	attempt int
}

func (r claimRow) Scan(dest ...any) error {
	*dest[0].(*string) = "q1"
	*dest[1].(*string) = "g:0"
	*dest[2].(*[]byte) = r.payload
	*dest[3].(*int) = r.attempt
	*dest[4].(*int) = 3
	*dest[5].(*string) = "exponential"
	*dest[6].(*int64) = 1000
	return nil
}

type noRow struct{}

func (noRow) Scan(dest ...any) error { return pgx.ErrNoRows }

func TestPostgresEnqueueUsesDedupKey(t *testing.T) {
	exec := &stubExecutor{tag: pgconn.NewCommandTag("INSERT 0 0")}
	q := NewPostgres(exec, time.Minute)

	ok, err := q.Enqueue(context.Background(), item("g", 0), DefaultOptions())
	require.NoError(t, err)
	assert.False(t, ok, "conflicting dedup key inserts nothing")

	call := exec.calls[0]
	assert.Equal(t, sqlinline.QEnqueueWorkItem, call.query)
	assert.Equal(t, "g:0", call.args[1])
	assert.Equal(t, 3, call.args[3])
	assert.Equal(t, "exponential", call.args[4])
	assert.Equal(t, int64(1000), call.args[5])
}

func TestPostgresReceive(t *testing.T) {
	payload, err := json.Marshal(item("g", 0))
	require.NoError(t, err)
	exec := &stubExecutor{row: claimRow{payload: payload, attempt: 2}}
	q := NewPostgres(exec, 30*time.Second)

	d, err := q.Receive(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "q1", d.ID)
	assert.Equal(t, 2, d.Attempt)
	assert.Equal(t, item("g", 0), d.Item)
	assert.Equal(t, 2*time.Second, d.Options.RetryDelay(d.Attempt))
	assert.Equal(t, int64(30000), exec.calls[0].args[0])

	empty := NewPostgres(&stubExecutor{row: noRow{}}, time.Second)
	_, err = empty.Receive(context.Background())
	assert.ErrorIs(t, err, ErrEmpty)
}

func TestPostgresNack(t *testing.T) {
	exec := &stubExecutor{}
	q := NewPostgres(exec, time.Minute)
	opts := DefaultOptions()

	retried, err := q.Nack(context.Background(), &Delivery{ID: "q1", Attempt: 2, Options: opts}, errors.New("boom"))
	require.NoError(t, err)
	assert.True(t, retried)
	assert.Equal(t, sqlinline.QRescheduleWorkItem, exec.calls[0].query)
	assert.Equal(t, int64(2000), exec.calls[0].args[1])
	assert.Equal(t, "boom", exec.calls[0].args[2])

	retried, err = q.Nack(context.Background(), &Delivery{ID: "q1", Attempt: 3, Options: opts}, errors.New("boom"))
	require.NoError(t, err)
	assert.False(t, retried)
	assert.Equal(t, sqlinline.QDeleteWorkItem, exec.calls[1].query)
}
