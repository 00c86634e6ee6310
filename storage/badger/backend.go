// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package badger stores documents in an embedded BadgerDB.
package badger

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"os"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"github.com/poiesic/docket/codec"
	"github.com/poiesic/docket/core"
	"github.com/poiesic/docket/storage"
)

// Backend wraps a BadgerDB instance.
type Backend struct {
	db     *badger.DB
	prefix string
	logger *slog.Logger
}

var _ storage.Backend = (*Backend)(nil)

// badgerLoggerAdapter adapts slog.Logger to badger.Logger interface.
type badgerLoggerAdapter struct {
	logger *slog.Logger
}

var _ badger.Logger = (*badgerLoggerAdapter)(nil)

func (bl *badgerLoggerAdapter) Errorf(msg string, items ...any) {
	bl.logger.Error(fmt.Sprintf(msg, items...))
}

func (bl *badgerLoggerAdapter) Warningf(msg string, items ...any) {
	bl.logger.Warn(fmt.Sprintf(msg, items...))
}

// Badger is chatty at info level; its progress messages go to debug.
func (bl *badgerLoggerAdapter) Infof(msg string, items ...any) {
	bl.logger.Debug(fmt.Sprintf(msg, items...))
}

func (bl *badgerLoggerAdapter) Debugf(msg string, items ...any) {
	bl.logger.Debug(fmt.Sprintf(msg, items...))
}

// Option configures a Backend.
type Option func(*Backend) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(b *Backend) error {
		if logger == nil {
			logger = slog.Default()
		}
		b.logger = logger
		return nil
	}
}

// Open opens a BadgerDB database at filePath, creating the directory if
// it doesn't exist. With inMemory set, filePath is ignored.
func Open(filePath string, inMemory bool, prefix string, opts ...Option) (*Backend, error) {
	if prefix == "" {
		return nil, fmt.Errorf("%w: badger: empty prefix", storage.ErrConfiguration)
	}
	b := &Backend{prefix: prefix, logger: slog.Default()}
	for _, opt := range opts {
		if err := opt(b); err != nil {
			return nil, err
		}
	}

	var bopts badger.Options
	if inMemory {
		bopts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if filePath == "" {
			return nil, fmt.Errorf("%w: badger: empty directory", storage.ErrConfiguration)
		}
		info, err := os.Stat(filePath)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("%w: badger: %w", storage.ErrIO, err)
			}
			if err := os.MkdirAll(filePath, 0o755); err != nil {
				return nil, fmt.Errorf("%w: badger: %w", storage.ErrIO, err)
			}
		} else if !info.IsDir() {
			return nil, fmt.Errorf("%w: badger: %s is not a directory", storage.ErrConfiguration, filePath)
		}
		bopts = badger.DefaultOptions(filePath)
	}

	bopts.Logger = &badgerLoggerAdapter{logger: b.logger}
	bopts.Compression = options.None

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("%w: badger: %w", storage.ErrIO, err)
	}
	b.db = db

	b.logger.Debug("badger backend opened", "path", filePath, "in_memory", inMemory, "prefix", prefix)
	return b, nil
}

// Close closes the BadgerDB database.
func (b *Backend) Close() error {
	if b.db.IsClosed() {
		return nil
	}
	return b.db.Close()
}

// IsClosed returns true if the database is closed.
func (b *Backend) IsClosed() bool {
	return b.db.IsClosed()
}

func (b *Backend) Read(ctx context.Context, col core.Collection, path core.Path) (codec.Tree, bool, error) {
	if err := b.check(ctx); err != nil {
		return nil, false, err
	}

	var data []byte
	err := b.db.View(func(tx *badger.Txn) error {
		item, err := tx.Get(makeDocKey(b.prefix, col, path))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, b.ioErr("read", col, err)
	}

	tree, err := storage.UnmarshalTree(data)
	if err != nil {
		return nil, false, fmt.Errorf("%s/%s: %w", col, path, err)
	}
	return tree, true, nil
}

func (b *Backend) Write(ctx context.Context, col core.Collection, path core.Path, tree codec.Tree) error {
	if err := b.check(ctx); err != nil {
		return err
	}
	data, err := storage.MarshalTree(tree)
	if err != nil {
		return fmt.Errorf("%s/%s: %w", col, path, err)
	}
	err = b.db.Update(func(tx *badger.Txn) error {
		return tx.Set(makeDocKey(b.prefix, col, path), data)
	})
	if err != nil {
		return b.ioErr("write", col, err)
	}
	return nil
}

func (b *Backend) Delete(ctx context.Context, col core.Collection, path core.Path) error {
	if err := b.check(ctx); err != nil {
		return err
	}
	err := b.db.Update(func(tx *badger.Txn) error {
		return tx.Delete(makeDocKey(b.prefix, col, path))
	})
	if err != nil {
		return b.ioErr("delete", col, err)
	}
	return nil
}

// ListUnder iterates keys in byte order inside one read transaction that
// stays open until iteration stops.
func (b *Backend) ListUnder(ctx context.Context, col core.Collection, prefix core.Path) iter.Seq2[core.Path, error] {
	return func(yield func(core.Path, error) bool) {
		if err := b.check(ctx); err != nil {
			yield(core.Path{}, err)
			return
		}

		colPrefix := makeCollectionPrefix(b.prefix, col)
		stopped := false
		err := b.db.View(func(tx *badger.Txn) error {
			opts := badger.DefaultIteratorOptions
			opts.PrefetchValues = false
			opts.Prefix = makeScanPrefix(b.prefix, col, prefix)
			it := tx.NewIterator(opts)
			defer it.Close()

			for it.Rewind(); it.Valid(); it.Next() {
				if err := ctx.Err(); err != nil {
					return err
				}
				key := string(it.Item().Key()[len(colPrefix):])
				p, err := storage.ParseKey(key)
				if !yield(p, err) || err != nil {
					stopped = true
					return nil
				}
			}
			return nil
		})
		if err != nil && !stopped {
			if ctx.Err() != nil {
				yield(core.Path{}, err)
				return
			}
			yield(core.Path{}, b.ioErr("list", col, err))
		}
	}
}

func (b *Backend) Ping(ctx context.Context) error {
	return b.check(ctx)
}

func (b *Backend) check(ctx context.Context) error {
	if b.db.IsClosed() {
		return storage.ErrClosed
	}
	return ctx.Err()
}

func (b *Backend) ioErr(op string, col core.Collection, err error) error {
	if errors.Is(err, badger.ErrDBClosed) {
		return storage.ErrClosed
	}
	return fmt.Errorf("%w: badger %s %s: %w", storage.ErrIO, op, col, err)
}
