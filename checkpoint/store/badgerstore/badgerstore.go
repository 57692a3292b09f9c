// Package badgerstore provides a badger-backed checkpoint store. The
// whole crawl state is kept under a single key so saves replace the
// previous checkpoint atomically.
package badgerstore

import (
	"encoding/json"
	"errors"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/jamespreed/scholar-crawler/checkpoint"
)

// Static and compile-time check to ensure BadgerStore implements
// checkpoint.Store interface.
var _ checkpoint.Store = (*BadgerStore)(nil)

var stateKey = []byte("checkpoint/state")

// BadgerStore persists checkpoints in a badger database on disk.
type BadgerStore struct {
	db *badger.DB
}

// NewBadgerStore opens (or creates) a badger database in the provided
// directory. Callers must call Close when done with the store.
func NewBadgerStore(dir string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(dir)
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}

	return &BadgerStore{db: db}, nil
}

// Save persists the state, replacing any previous checkpoint.
func (s *BadgerStore) Save(state *checkpoint.State) error {
	data, err := json.Marshal(state)
	if err != nil {
		return err
	}

	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(stateKey, data)
	})
}

// Load returns the most recently saved state or
// checkpoint.ErrNoCheckpoint when none exists.
func (s *BadgerStore) Load() (*checkpoint.State, error) {
	var data []byte

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(stateKey)
		if err != nil {
			return err
		}

		data, err = item.ValueCopy(nil)

		return err
	})

	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, checkpoint.ErrNoCheckpoint
	}
	if err != nil {
		return nil, err
	}

	state := new(checkpoint.State)
	if err := json.Unmarshal(data, state); err != nil {
		return nil, err
	}

	return state, nil
}

// Close releases the underlying badger database.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}
