package storage

import (
	"encoding/json"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
	pkgerrors "github.com/pkg/errors"
)

// Store is the Pebble-backed persistence layer shared by the listing
// registry, the token ledgers, and the asset registry. All writers go
// through the owning component's mutex; the store itself only guarantees
// per-operation atomicity (and batch atomicity via NewBatch).
type Store struct {
	db *pebble.DB
}

// NewStore opens a Pebble database at the given path.
func NewStore(dbPath string) (*Store, error) {
	opts := &pebble.Options{
		Cache:                 pebble.NewCache(64 << 20), // 64MB cache
		MemTableSize:          32 << 20,                  // 32MB memtable
		L0CompactionThreshold: 2,
		L0StopWritesThreshold: 12,
		MaxOpenFiles:          1000,
		BytesPerSync:          512 << 10, // 512KB
	}

	db, err := pebble.Open(dbPath, opts)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to open pebble db at %s", dbPath)
	}

	return &Store{db: db}, nil
}

// NewMemStore opens a Store on an in-memory filesystem. Used in tests.
func NewMemStore() (*Store, error) {
	db, err := pebble.Open("", &pebble.Options{FS: vfs.NewMem()})
	if err != nil {
		return nil, pkgerrors.Wrap(err, "failed to open in-memory pebble db")
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// PutJSON marshals v and writes it under key with a durable sync.
func (s *Store) PutJSON(key []byte, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return pkgerrors.Wrap(err, "failed to marshal value")
	}
	if err := s.db.Set(key, data, pebble.Sync); err != nil {
		return pkgerrors.Wrapf(err, "failed to set %s", key)
	}
	return nil
}

// GetJSON loads the value under key into v. Returns (false, nil) if the key
// does not exist.
func (s *Store) GetJSON(key []byte, v any) (bool, error) {
	data, closer, err := s.db.Get(key)
	if err == pebble.ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, pkgerrors.Wrapf(err, "failed to get %s", key)
	}
	defer closer.Close()

	if err := json.Unmarshal(data, v); err != nil {
		return false, pkgerrors.Wrapf(err, "failed to unmarshal %s", key)
	}
	return true, nil
}

// Delete removes a key with a durable sync.
func (s *Store) Delete(key []byte) error {
	if err := s.db.Delete(key, pebble.Sync); err != nil {
		return pkgerrors.Wrapf(err, "failed to delete %s", key)
	}
	return nil
}

// ScanPrefix iterates all records under prefix in key order, invoking fn
// with each raw value. Iteration stops early if fn returns an error.
func (s *Store) ScanPrefix(prefix []byte, fn func(key, value []byte) error) error {
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return pkgerrors.Wrap(err, "failed to open iterator")
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		if err := fn(iter.Key(), iter.Value()); err != nil {
			return err
		}
	}
	return iter.Error()
}

// Batch provides atomic multi-key writes.
type Batch struct {
	batch *pebble.Batch
}

// NewBatch creates a new batch writer.
func (s *Store) NewBatch() *Batch {
	return &Batch{batch: s.db.NewBatch()}
}

// PutJSON adds a marshaled write to the batch.
func (b *Batch) PutJSON(key []byte, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return pkgerrors.Wrap(err, "failed to marshal value")
	}
	return b.batch.Set(key, data, nil)
}

// Commit writes the batch atomically with a durable sync.
func (b *Batch) Commit() error {
	return b.batch.Commit(pebble.Sync)
}

// Close discards the batch without committing.
func (b *Batch) Close() error {
	return b.batch.Close()
}
