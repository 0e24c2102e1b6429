// Hivekeeper - Honeypot Sensor Telemetry Collector
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/hivekeeper

// Package kvstore wraps BadgerDB as the durable home of small control-plane
// state: the schema registration log and plugin lifecycle states.
//
// Keys are plain strings grouped by slash-separated prefixes. Values are
// raw bytes; PutJSON and GetJSON cover the common structured case.
package kvstore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"github.com/goccy/go-json"

	"github.com/tomtom215/hivekeeper/internal/logging"
)

var (
	// ErrNotFound is returned when a key does not exist.
	ErrNotFound = errors.New("kvstore: key not found")

	// ErrClosed is returned for any operation after Close.
	ErrClosed = errors.New("kvstore: store closed")
)

// Config controls how the Badger database is opened.
type Config struct {
	// Path is the Badger directory. Ignored when InMemory is set.
	Path string

	// InMemory keeps everything in RAM. Used by tests.
	InMemory bool

	// SyncWrites fsyncs every commit. State transitions are rare, so this defaults on.
	SyncWrites bool

	Compression bool

	// GCInterval is how often the value log is garbage collected. Zero disables it.
	GCInterval time.Duration

	// GCRatio is the discard ratio passed to RunValueLogGC.
	GCRatio float64
}

// DefaultConfig returns durable defaults rooted at path.
func DefaultConfig(path string) Config {
	return Config{
		Path:        path,
		SyncWrites:  true,
		Compression: true,
		GCInterval:  10 * time.Minute,
		GCRatio:     0.5,
	}
}

// Item is one key/value pair returned by List.
type Item struct {
	Key   string
	Value []byte
}

// Store is a Badger-backed key/value store safe for concurrent use.
type Store struct {
	db     *badger.DB
	config Config

	mu     sync.RWMutex
	closed bool
}

// Open opens (or creates) the store described by cfg.
func Open(cfg Config) (*Store, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("kvstore: path is required")
	}

	opts := badger.DefaultOptions(cfg.Path)
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts.SyncWrites = cfg.SyncWrites
	if cfg.Compression {
		opts.Compression = options.Snappy
	}
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open BadgerDB: %w", err)
	}

	logging.Info().
		Str("path", cfg.Path).
		Bool("in_memory", cfg.InMemory).
		Bool("sync_writes", cfg.SyncWrites).
		Msg("State store opened")

	return &Store{db: db, config: cfg}, nil
}

// OpenInMemory opens a throwaway in-memory store.
func OpenInMemory() (*Store, error) {
	return Open(Config{InMemory: true})
}

func (s *Store) checkOpen() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	return nil
}

// Put writes value under key, replacing any previous value.
func (s *Store) Put(key string, value []byte) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), value)
	})
	if err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}

// PutJSON marshals v and writes it under key.
func (s *Store) PutJSON(key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	return s.Put(key, data)
}

// Get returns a copy of the value stored under key.
func (s *Store) Get(key string) ([]byte, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	var out []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		out, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	return out, nil
}

// GetJSON reads key and unmarshals it into v.
func (s *Store) GetJSON(key string, v any) error {
	data, err := s.Get(key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("unmarshal %s: %w", key, err)
	}
	return nil
}

// Delete removes key. Deleting a missing key is not an error.
func (s *Store) Delete(key string) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
	if err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// DeletePrefix removes every key that starts with prefix in one transaction
// and returns how many keys were removed.
func (s *Store) DeletePrefix(prefix string) (int, error) {
	if err := s.checkOpen(); err != nil {
		return 0, err
	}
	var n int
	err := s.db.Update(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		var keys [][]byte
		p := []byte(prefix)
		for it.Seek(p); it.ValidForPrefix(p); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		it.Close()
		for _, k := range keys {
			if err := txn.Delete(k); err != nil {
				return err
			}
		}
		n = len(keys)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("delete prefix %s: %w", prefix, err)
	}
	return n, nil
}

// List returns every key/value pair under prefix in key order.
//
// Reads come from a single View transaction, so the result is a consistent
// snapshot even while writers are active.
func (s *Store) List(prefix string) ([]Item, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	var items []Item
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		p := []byte(prefix)
		for it.Seek(p); it.ValidForPrefix(p); it.Next() {
			item := it.Item()
			val, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			items = append(items, Item{Key: string(item.KeyCopy(nil)), Value: val})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", prefix, err)
	}
	return items, nil
}

// Close flushes and closes the database. Safe to call more than once.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close BadgerDB: %w", err)
	}
	logging.Info().Msg("State store closed")
	return nil
}

// Serve runs periodic value log garbage collection until ctx is done.
// It implements suture.Service.
func (s *Store) Serve(ctx context.Context) error {
	if s.config.InMemory || s.config.GCInterval <= 0 {
		<-ctx.Done()
		return ctx.Err()
	}
	ticker := time.NewTicker(s.config.GCInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.collectGarbage()
		}
	}
}

func (s *Store) collectGarbage() {
	if err := s.checkOpen(); err != nil {
		return
	}
	ratio := s.config.GCRatio
	if ratio <= 0 {
		ratio = 0.5
	}
	// RunValueLogGC reclaims at most one file per call.
	for {
		err := s.db.RunValueLogGC(ratio)
		if err != nil {
			if !errors.Is(err, badger.ErrNoRewrite) {
				logging.Warn().Err(err).Msg("State store GC failed")
			}
			return
		}
	}
}

// String implements fmt.Stringer for suture logging.
func (s *Store) String() string {
	return "kvstore-gc"
}
