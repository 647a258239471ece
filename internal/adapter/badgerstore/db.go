// Package badgerstore implements the repositories on an embedded Badger
// database through badgerhold. It backs the single-process deployment where
// the API and the workers share one data directory.
package badgerstore

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/timshannon/badgerhold/v4"

	"contentfabric/internal/domain"
)

const (
	uniqPrefix    = "fabric:uniq:"
	maxTxnRetries = 64
)

// Open opens (or creates) the badgerhold store at path.
func Open(path string) (*badgerhold.Store, error) {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("create badger directory: %w", err)
	}
	options := badgerhold.DefaultOptions
	options.Dir = path
	options.ValueDir = path
	options.Logger = nil

	store, err := badgerhold.Open(options)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}
	return store, nil
}

// New returns a Store whose repositories share the badgerhold store.
func New(store *badgerhold.Store) domain.Store {
	return domain.Store{
		Parameters:  &parameters{store: store},
		Templates:   &templates{store: store},
		Prompts:     &prompts{store: store},
		Generations: &generations{store: store},
		Results:     &results{store: store},
	}
}

// update runs fn in a read-write transaction, retrying when badger reports a
// write conflict with a concurrent transaction.
func update(store *badgerhold.Store, fn func(tx *badger.Txn) error) error {
	var err error
	for attempt := 0; attempt < maxTxnRetries; attempt++ {
		err = store.Badger().Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
		time.Sleep(time.Duration(attempt+1) * time.Millisecond)
	}
	return fmt.Errorf("transaction retries exhausted: %w", err)
}

// claimUnique reserves key for owner inside tx. Reading the key registers it
// in the transaction's read set, so a concurrent claim fails to commit.
func claimUnique(tx *badger.Txn, key, owner string) (bool, error) {
	item, err := tx.Get([]byte(key))
	switch {
	case errors.Is(err, badger.ErrKeyNotFound):
	case err != nil:
		return false, err
	default:
		var current string
		if err := item.Value(func(v []byte) error {
			current = string(v)
			return nil
		}); err != nil {
			return false, err
		}
		if current != owner {
			return false, nil
		}
	}
	return true, tx.Set([]byte(key), []byte(owner))
}

func releaseUnique(tx *badger.Txn, key string) error {
	return tx.Delete([]byte(key))
}

func parameterNameKey(name string) string {
	return uniqPrefix + "parameter:" + name
}

func promptKey(templateID, text string) string {
	sum := sha256.Sum256([]byte(text))
	return uniqPrefix + "prompt:" + templateID + ":" + hex.EncodeToString(sum[:])
}

func notFound(err error, entity, id string) error {
	if errors.Is(err, badgerhold.ErrNotFound) {
		return domain.NotFound(entity, id)
	}
	return err
}
