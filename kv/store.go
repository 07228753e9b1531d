// ABOUTME: Badger-backed key/value store for derived state
// ABOUTME: Provides Get/Set/Delete and prefix scans over a local BadgerDB
package kv

import (
	"errors"
	"fmt"
	"os"

	"github.com/dgraph-io/badger/v3"
	"go.uber.org/zap"
)

// ErrNotFound is returned by Get when the key does not exist.
var ErrNotFound = errors.New("key not found")

// Store wraps a BadgerDB handle.
type Store struct {
	db *badger.DB
}

// Open opens (or creates) a store in dir.
func Open(dir string, logger *zap.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create kv directory: %w", err)
	}
	opts := badger.DefaultOptions(dir).WithLogger(newBadgerLogger(logger))
	return open(opts)
}

// OpenInMemory opens a store that lives only as long as the process. Used by tests.
func OpenInMemory(logger *zap.Logger) (*Store, error) {
	opts := badger.DefaultOptions("").
		WithInMemory(true).
		WithLogger(newBadgerLogger(logger))
	return open(opts)
}

func open(opts badger.Options) (*Store, error) {
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger: %w", err)
	}
	return &Store{db: db}, nil
}

// Get retrieves a value by key.
func (s *Store) Get(key []byte) ([]byte, error) {
	var result []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		result, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	return result, err
}

// Set stores a value, overwriting any previous one.
func (s *Store) Set(key, value []byte) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, value)
	})
}

// Delete removes a key. Deleting a missing key is not an error.
func (s *Store) Delete(key []byte) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key)
	})
}

// KeysWithPrefix returns all keys starting with prefix, in key order.
func (s *Store) KeysWithPrefix(prefix []byte) ([][]byte, error) {
	var keys [][]byte
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		return nil
	})
	return keys, err
}

// ScanPrefix calls fn for every key/value pair under prefix. Returning an
// error from fn stops the scan.
func (s *Store) ScanPrefix(prefix []byte, fn func(key, value []byte) error) error {
	return s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			value, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			if err := fn(item.KeyCopy(nil), value); err != nil {
				return err
			}
		}
		return nil
	})
}

// Reset drops every key.
func (s *Store) Reset() error {
	return s.db.DropAll()
}

// Close flushes and closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
