package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"contentfabric/internal/infra"
	"contentfabric/internal/sqlinline"
)

// Postgres is a queue table shared by every API and worker process. Receive
// claims with "for update skip locked" so concurrent workers never take the
// same item.
type Postgres struct {
	sql        infra.SQLExecutor
	visibility time.Duration
}

// NewPostgres creates a queue over the generation_queue table.
func NewPostgres(sql infra.SQLExecutor, visibility time.Duration) *Postgres {
	if visibility <= 0 {
		visibility = 5 * time.Minute
	}
	return &Postgres{sql: sql, visibility: visibility}
}

func (q *Postgres) Enqueue(ctx context.Context, item WorkItem, opts Options) (bool, error) {
	opts = opts.normalized()
	payload, err := json.Marshal(item)
	if err != nil {
		return false, fmt.Errorf("marshal work item: %w", err)
	}
	tag, err := q.sql.Exec(ctx, sqlinline.QEnqueueWorkItem,
		uuid.NewString(),
		item.DedupKey(),
		payload,
		opts.Attempts,
		string(opts.Backoff.Type),
		opts.Backoff.Delay.Milliseconds(),
		int64(0),
	)
	if err != nil {
		return false, fmt.Errorf("enqueue %s: %w", item.DedupKey(), err)
	}
	return tag.RowsAffected() == 1, nil
}

func (q *Postgres) Receive(ctx context.Context) (*Delivery, error) {
	var (
		d           Delivery
		dedupKey    string
		payload     []byte
		backoffType string
		delayMS     int64
	)
	row := q.sql.QueryRow(ctx, sqlinline.QClaimWorkItem, q.visibility.Milliseconds())
	if err := row.Scan(&d.ID, &dedupKey, &payload, &d.Attempt, &d.Options.Attempts, &backoffType, &delayMS); err != nil {
		if infra.IsNoRows(err) {
			return nil, ErrEmpty
		}
		return nil, fmt.Errorf("claim work item: %w", err)
	}
	if err := json.Unmarshal(payload, &d.Item); err != nil {
		return nil, fmt.Errorf("decode work item %s: %w", dedupKey, err)
	}
	d.Options.Backoff = Backoff{Type: BackoffType(backoffType), Delay: time.Duration(delayMS) * time.Millisecond}
	return &d, nil
}

func (q *Postgres) Ack(ctx context.Context, d *Delivery) error {
	_, err := q.sql.Exec(ctx, sqlinline.QDeleteWorkItem, d.ID)
	return err
}

func (q *Postgres) Nack(ctx context.Context, d *Delivery, cause error) (bool, error) {
	if d.Exhausted() {
		return false, q.Ack(ctx, d)
	}
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	delay := d.Options.RetryDelay(d.Attempt)
	if _, err := q.sql.Exec(ctx, sqlinline.QRescheduleWorkItem, d.ID, delay.Milliseconds(), msg); err != nil {
		return false, err
	}
	return true, nil
}

var _ Queue = (*Postgres)(nil)
