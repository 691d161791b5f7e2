// Copyright (C) 2026 Plexus Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package badgerstore implements the persist.Persister extension point
// on BadgerDB, an embedded key-value store with low-latency access.
//
// Records are laid out one per key:
//
//	plexus/<store>/<kind>/<id>  ->  JSON entity payload
//
// so a store's full state replays with a single prefix scan. In-memory
// mode serves tests; persistent mode runs an optional background value
// log GC.
//
// License: BadgerDB is Apache 2.0 licensed (github.com/dgraph-io/badger).
package badgerstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/plexusdb/plexus/persist"
)

// keyPrefix namespaces every plexus record in the database.
const keyPrefix = "plexus"

// Config holds configuration for a badger-backed persister.
type Config struct {
	// Path is the directory for BadgerDB files. Required unless
	// InMemory is true.
	Path string

	// InMemory enables in-memory mode (no disk persistence). Useful
	// for testing.
	InMemory bool

	// SyncWrites enables synchronous writes for durability.
	SyncWrites bool

	// Logger receives BadgerDB's internal log output. If nil, internal
	// logging is disabled.
	Logger *slog.Logger

	// GCInterval is how often to run value log garbage collection.
	// Zero disables GC. Ignored in memory mode.
	GCInterval time.Duration

	// GCDiscardRatio is the minimum ratio of discardable data before
	// GC rewrites a value log file.
	GCDiscardRatio float64
}

// DefaultConfig returns production defaults: synchronous writes, GC
// every five minutes at a 50% discard ratio.
func DefaultConfig(path string) Config {
	return Config{
		Path:           path,
		SyncWrites:     true,
		GCInterval:     5 * time.Minute,
		GCDiscardRatio: 0.5,
	}
}

// InMemoryConfig returns a configuration for testing: no disk I/O, no
// sync, no GC.
func InMemoryConfig() Config {
	return Config{InMemory: true}
}

// badgerLogger adapts slog.Logger to BadgerDB's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// Store is a persist.Persister backed by an embedded BadgerDB.
//
// Thread Safety: safe for concurrent use; BadgerDB serializes its own
// transactions.
type Store struct {
	db     *badger.DB
	logger *slog.Logger

	gcStop chan struct{}
	gcDone chan struct{}
}

// Open creates and opens a badger-backed persister.
//
// Description:
//
//	Opens the database at the configured path (created if missing) or
//	in memory. Starts a background GC goroutine when GCInterval is
//	positive and the database is persistent.
//
// Outputs:
//
//	*Store - The opened persister. Caller must Close when done.
//	error - Non-nil if the path is invalid or the database cannot open.
func Open(cfg Config) (*Store, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("badgerstore: path is required for persistent database")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0750); err != nil {
			return nil, fmt.Errorf("badgerstore: create directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites)
	opts = opts.WithNumVersionsToKeep(1)
	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("badgerstore: open database: %w", err)
	}

	s := &Store{db: db, logger: cfg.Logger}
	if s.logger == nil {
		s.logger = slog.Default()
	}

	if cfg.GCInterval > 0 && !cfg.InMemory {
		s.gcStop = make(chan struct{})
		s.gcDone = make(chan struct{})
		go s.runGC(cfg.GCInterval, cfg.GCDiscardRatio)
	}
	return s, nil
}

// runGC triggers value log GC on a ticker until Close.
func (s *Store) runGC(interval time.Duration, ratio float64) {
	defer close(s.gcDone)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.gcStop:
			return
		case <-ticker.C:
			// ErrNoRewrite means nothing needed collecting.
			err := s.db.RunValueLogGC(ratio)
			switch {
			case err == nil:
				s.logger.Debug("badger value log GC completed")
			case !errors.Is(err, badger.ErrNoRewrite):
				s.logger.Warn("badger value log GC error", slog.String("error", err.Error()))
			}
		}
	}
}

// recordKey builds the canonical key for a record's coordinates.
func recordKey(storeName, kind, id string) []byte {
	return []byte(keyPrefix + "/" + storeName + "/" + kind + "/" + id)
}

// storePrefix is the scan prefix covering one store's records.
func storePrefix(storeName string) []byte {
	return []byte(keyPrefix + "/" + storeName + "/")
}

// Put writes or overwrites the record for (Store, Kind, ID).
func (s *Store) Put(ctx context.Context, rec persist.Record) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("badgerstore: put: %w", err)
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(recordKey(rec.Store, rec.Kind, rec.ID), rec.Payload)
	})
	if err != nil {
		return fmt.Errorf("badgerstore: put %s/%s/%s: %w", rec.Store, rec.Kind, rec.ID, err)
	}
	return nil
}

// Remove physically deletes the record. Deleting a missing key is not
// an error.
func (s *Store) Remove(ctx context.Context, storeName, kind, id string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("badgerstore: remove: %w", err)
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(recordKey(storeName, kind, id))
	})
	if err != nil {
		return fmt.Errorf("badgerstore: remove %s/%s/%s: %w", storeName, kind, id, err)
	}
	return nil
}

// Load streams every record of the named store to fn in key order.
//
// Errors:
//   - The context error when ctx is done mid-scan.
//   - The first non-nil error returned by fn, which stops the scan.
func (s *Store) Load(ctx context.Context, storeName string, fn func(persist.Record) error) error {
	prefix := storePrefix(storeName)
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := it.Item()
			kind, id, ok := splitKey(storeName, string(item.Key()))
			if !ok {
				continue
			}
			payload, err := item.ValueCopy(nil)
			if err != nil {
				return fmt.Errorf("read %s: %w", item.Key(), err)
			}
			rec := persist.Record{Store: storeName, Kind: kind, ID: id, Payload: payload}
			if err := fn(rec); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("badgerstore: load %s: %w", storeName, err)
	}
	return nil
}

// splitKey recovers (kind, id) from a full record key. Ids may contain
// slashes, so only the first separator after the kind splits.
func splitKey(storeName, key string) (kind, id string, ok bool) {
	rest, found := strings.CutPrefix(key, keyPrefix+"/"+storeName+"/")
	if !found {
		return "", "", false
	}
	kind, id, found = strings.Cut(rest, "/")
	if !found || kind == "" || id == "" {
		return "", "", false
	}
	return kind, id, true
}

// Close stops the GC goroutine and closes the database. Safe to call
// once.
func (s *Store) Close() error {
	if s.gcStop != nil {
		close(s.gcStop)
		<-s.gcDone
	}
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("badgerstore: close: %w", err)
	}
	return nil
}

// compile-time interface check
var _ persist.Persister = (*Store)(nil)
