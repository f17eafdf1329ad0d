// Copyright (c) 2025 QueryCraft
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package history keeps a log of answered questions in an embedded badger
// database. Entries are msgpack-encoded under keys that sort by creation time,
// so listing newest first is a reverse prefix scan.
package history

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/pterm/pterm"
	"github.com/vmihailenco/msgpack/v5"

	"querycraft/cli/internal/logging"
	"querycraft/cli/internal/pipeline"
)

// Entry is one recorded run.
type Entry = pipeline.Record

const (
	keyPrefix = "history:"

	DefaultListLimit = 50
	MaxListLimit     = 500
)

// ErrClosed is returned by operations on a closed Store.
var ErrClosed = errors.New("history store is closed")

// Store persists entries. It is safe for concurrent use and implements
// pipeline.Recorder.
type Store struct {
	db *badger.DB
}

// Open opens the store at path, creating it if needed. An empty path keeps
// the store in memory.
func Open(path string, logger *pterm.Logger) (*Store, error) {
	if logger == nil {
		logger = logging.Discard()
	}
	opts := badger.DefaultOptions(path).WithLogger(badgerLogger{logger})
	if path == "" {
		opts = opts.WithInMemory(true)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open history store: %w", err)
	}
	return &Store{db: db}, nil
}

// Close flushes and closes the store.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record stores e. A zero CreatedAt is set to now.
func (s *Store) Record(ctx context.Context, e Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.db.IsClosed() {
		return ErrClosed
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	data, err := msgpack.Marshal(&e)
	if err != nil {
		return fmt.Errorf("encode history entry: %w", err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(entryKey(e), data)
	})
}

// List returns up to limit entries, newest first. limit <= 0 selects
// DefaultListLimit; larger values are capped at MaxListLimit.
func (s *Store) List(limit int) ([]Entry, error) {
	if s.db.IsClosed() {
		return nil, ErrClosed
	}
	if limit <= 0 {
		limit = DefaultListLimit
	}
	limit = min(limit, MaxListLimit)

	entries := make([]Entry, 0, limit)
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(keyPrefix)
		opts.Reverse = true
		it := txn.NewIterator(opts)
		defer it.Close()

		// A reverse scan starts at the last key not greater than the seek key.
		for it.Seek([]byte(keyPrefix + "\xff")); it.Valid() && len(entries) < limit; it.Next() {
			var e Entry
			err := it.Item().Value(func(val []byte) error {
				return msgpack.Unmarshal(val, &e)
			})
			if err != nil {
				return fmt.Errorf("decode history entry %s: %w", it.Item().Key(), err)
			}
			entries = append(entries, e)
		}
		return nil
	})
	return entries, err
}

// entryKey orders by creation time; the id breaks ties.
func entryKey(e Entry) []byte {
	return fmt.Appendf(nil, "%s%020d:%s", keyPrefix, e.CreatedAt.UnixNano(), e.ID)
}

// badgerLogger routes badger's internal logging into the application logger.
// Badger is chatty at info level, so that is demoted to debug.
type badgerLogger struct {
	l *pterm.Logger
}

func (b badgerLogger) Errorf(format string, args ...any) {
	b.l.Error("badger: " + trimNewline(fmt.Sprintf(format, args...)))
}

func (b badgerLogger) Warningf(format string, args ...any) {
	b.l.Warn("badger: " + trimNewline(fmt.Sprintf(format, args...)))
}

func (b badgerLogger) Infof(format string, args ...any) {
	b.l.Debug("badger: " + trimNewline(fmt.Sprintf(format, args...)))
}

func (b badgerLogger) Debugf(format string, args ...any) {
	b.l.Trace("badger: " + trimNewline(fmt.Sprintf(format, args...)))
}

func trimNewline(s string) string {
	for len(s) > 0 && (s[len(s)-1] == '\n' || s[len(s)-1] == '\r') {
		s = s[:len(s)-1]
	}
	return s
}
