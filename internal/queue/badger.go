package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

const badgerTxnRetries = 32

// Badger is a persistent queue on an embedded Badger database. Items live
// under a message key, and a visibility index ordered by timestamp lets
// Receive find the next ready item with a prefix scan.
type Badger struct {
	db         *badger.DB
	name       string
	visibility time.Duration
}

// NewBadger creates a queue named name inside db.
func NewBadger(db *badger.DB, name string, visibility time.Duration) (*Badger, error) {
	if db == nil {
		return nil, errors.New("badger db is required")
	}
	if name == "" {
		return nil, errors.New("queue name is required")
	}
	if visibility <= 0 {
		visibility = 5 * time.Minute
	}
	return &Badger{db: db, name: name, visibility: visibility}, nil
}

func (q *Badger) Enqueue(ctx context.Context, item WorkItem, opts Options) (bool, error) {
	now := time.Now()
	env := envelope{ID: uuid.NewString(), Item: item, Options: opts.normalized(), VisibleAt: now, CreatedAt: now}
	data, err := json.Marshal(env)
	if err != nil {
		return false, fmt.Errorf("marshal queue message: %w", err)
	}
	stored := false
	err = q.update(func(txn *badger.Txn) error {
		stored = false
		dedupKey := q.dedupKey(item.DedupKey())
		if _, err := txn.Get(dedupKey); err == nil {
			return nil
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		if err := txn.Set(q.msgKey(env.ID), data); err != nil {
			return err
		}
		if err := txn.Set(q.indexKey(env.VisibleAt, env.ID), []byte{}); err != nil {
			return err
		}
		if err := txn.Set(dedupKey, []byte(env.ID)); err != nil {
			return err
		}
		stored = true
		return nil
	})
	return stored, err
}

func (q *Badger) Receive(ctx context.Context) (*Delivery, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var claimed envelope
	err := q.update(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		prefix := q.indexPrefix()
		it := txn.NewIterator(opts)
		defer it.Close()

		now := time.Now()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			key := it.Item().KeyCopy(nil)
			ts, id, err := q.parseIndexKey(key)
			if err != nil {
				continue
			}
			if ts.After(now) {
				break
			}
			env, err := q.load(txn, id)
			if errors.Is(err, badger.ErrKeyNotFound) {
				if err := txn.Delete(key); err != nil {
					return err
				}
				continue
			}
			if err != nil {
				return err
			}
			if err := txn.Delete(key); err != nil {
				return err
			}
			env.Attempts++
			env.VisibleAt = now.Add(q.visibility)
			if err := q.store(txn, env); err != nil {
				return err
			}
			claimed = env
			return nil
		}
		return ErrEmpty
	})
	if err != nil {
		return nil, err
	}
	return claimed.delivery(), nil
}

func (q *Badger) Ack(ctx context.Context, d *Delivery) error {
	return q.update(func(txn *badger.Txn) error {
		return q.delete(txn, d.ID)
	})
}

func (q *Badger) Nack(ctx context.Context, d *Delivery, cause error) (bool, error) {
	retried := false
	err := q.update(func(txn *badger.Txn) error {
		retried = false
		env, err := q.load(txn, d.ID)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if d.Exhausted() {
			return q.delete(txn, d.ID)
		}
		if err := txn.Delete(q.indexKey(env.VisibleAt, env.ID)); err != nil {
			return err
		}
		env.VisibleAt = time.Now().Add(env.Options.RetryDelay(d.Attempt))
		if cause != nil {
			env.LastError = cause.Error()
		}
		if err := q.store(txn, env); err != nil {
			return err
		}
		retried = true
		return nil
	})
	return retried, err
}

// Len counts queued items.
func (q *Badger) Len() (int, error) {
	n := 0
	err := q.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		prefix := []byte(fmt.Sprintf("fabric:queue:%s:msg:", q.name))
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			n++
		}
		return nil
	})
	return n, err
}

func (q *Badger) update(fn func(txn *badger.Txn) error) error {
	var err error
	for attempt := 0; attempt < badgerTxnRetries; attempt++ {
		err = q.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
		time.Sleep(time.Duration(attempt+1) * time.Millisecond)
	}
	return err
}

func (q *Badger) load(txn *badger.Txn, id string) (envelope, error) {
	var env envelope
	item, err := txn.Get(q.msgKey(id))
	if err != nil {
		return env, err
	}
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &env)
	})
	return env, err
}

// store writes env and its visibility index entry.
func (q *Badger) store(txn *badger.Txn, env envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}
	if err := txn.Set(q.msgKey(env.ID), data); err != nil {
		return err
	}
	return txn.Set(q.indexKey(env.VisibleAt, env.ID), []byte{})
}

func (q *Badger) delete(txn *badger.Txn, id string) error {
	env, err := q.load(txn, id)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := txn.Delete(q.indexKey(env.VisibleAt, id)); err != nil {
		return err
	}
	dedupKey := q.dedupKey(env.Item.DedupKey())
	if item, err := txn.Get(dedupKey); err == nil {
		owner, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		if string(owner) == id {
			if err := txn.Delete(dedupKey); err != nil {
				return err
			}
		}
	} else if !errors.Is(err, badger.ErrKeyNotFound) {
		return err
	}
	return txn.Delete(q.msgKey(id))
}

func (q *Badger) msgKey(id string) []byte {
	return []byte(fmt.Sprintf("fabric:queue:%s:msg:%s", q.name, id))
}

func (q *Badger) dedupKey(key string) []byte {
	return []byte(fmt.Sprintf("fabric:queue:%s:dedup:%s", q.name, key))
}

func (q *Badger) indexPrefix() []byte {
	return []byte(fmt.Sprintf("fabric:queue:%s:index:", q.name))
}

func (q *Badger) indexKey(visibleAt time.Time, id string) []byte {
	// Zero padded so lexical order matches numeric order.
	return []byte(fmt.Sprintf("fabric:queue:%s:index:%020d:%s", q.name, visibleAt.UnixNano(), id))
}

func (q *Badger) parseIndexKey(key []byte) (time.Time, string, error) {
	prefix := q.indexPrefix()
	if len(key) <= len(prefix)+21 {
		return time.Time{}, "", errors.New("invalid index key")
	}
	suffix := string(key[len(prefix):])
	var ts int64
	if _, err := fmt.Sscanf(suffix[:20], "%d", &ts); err != nil {
		return time.Time{}, "", err
	}
	return time.Unix(0, ts), suffix[21:], nil
}

var _ Queue = (*Badger)(nil)
