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


// Package sqlstore is a storage.Backend over database/sql. Each
// (prefix, collection) pair maps to one key/value table created on first
// use.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/poiesic/docket/codec"
	"github.com/poiesic/docket/core"
	"github.com/poiesic/docket/storage"
)

const (
	defaultPoolSize        = 10
	defaultCheckoutTimeout = 5 * time.Second
)

// Backend stores documents in SQL tables.
type Backend struct {
	db              *sql.DB
	dialect         Dialect
	prefix          string
	user            string
	password        string
	poolSize        int
	checkoutTimeout time.Duration
	logger          *slog.Logger
	closed          atomic.Bool

	mu    sync.Mutex
	ready map[string]bool
}

var _ storage.Backend = (*Backend)(nil)

// Option configures a Backend.
type Option func(*Backend) error

// WithCredentials overrides the user and password given in the uri.
func WithCredentials(user, password string) Option {
	return func(b *Backend) error {
		b.user = user
		b.password = password
		return nil
	}
}

// WithPoolSize bounds the number of open connections.
// Default is 10.
func WithPoolSize(size int) Option {
	return func(b *Backend) error {
		if size < 1 {
			return fmt.Errorf("%w: pool size must be positive, got %d", storage.ErrConfiguration, size)
		}
		b.poolSize = size
		return nil
	}
}

// WithCheckoutTimeout bounds how long an operation waits for a pooled
// connection. Default is 5s.
func WithCheckoutTimeout(d time.Duration) Option {
	return func(b *Backend) error {
		if d <= 0 {
			return fmt.Errorf("%w: checkout timeout must be positive, got %s", storage.ErrConfiguration, d)
		}
		b.checkoutTimeout = d
		return nil
	}
}

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

// Open creates a pool for dialect. No connection is made until the first
// operation or Ping.
func Open(dialect Dialect, uri, prefix string, opts ...Option) (*Backend, error) {
	if dialect.Open == nil {
		return nil, fmt.Errorf("%w: sqlstore: incomplete dialect %q", storage.ErrConfiguration, dialect.Name)
	}
	if err := storage.CheckPrefix(prefix); err != nil {
		return nil, fmt.Errorf("sqlstore: %w", err)
	}

	b := &Backend{
		dialect:         dialect,
		prefix:          prefix,
		poolSize:        defaultPoolSize,
		checkoutTimeout: defaultCheckoutTimeout,
		logger:          slog.Default(),
		ready:           make(map[string]bool),
	}
	for _, opt := range opts {
		if err := opt(b); err != nil {
			return nil, err
		}
	}

	db, err := dialect.Open(Source{
		URI:         uri,
		User:        b.user,
		Password:    b.password,
		DialTimeout: b.checkoutTimeout,
	})
	if err != nil {
		if errors.Is(err, storage.ErrConfiguration) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s: %w", storage.ErrConfiguration, dialect.Name, err)
	}
	db.SetMaxOpenConns(b.poolSize)
	db.SetMaxIdleConns(b.poolSize)
	b.db = db

	b.logger.Debug("sql backend opened", "dialect", dialect.Name, "prefix", prefix, "pool_size", b.poolSize)
	return b, nil
}

// Table returns the table holding col.
func (b *Backend) Table(col core.Collection) string {
	return storage.Namespace(b.prefix, col)
}

// DB exposes the underlying pool.
func (b *Backend) DB() *sql.DB {
	return b.db
}

func (b *Backend) Read(ctx context.Context, col core.Collection, path core.Path) (codec.Tree, bool, error) {
	conn, table, err := b.checkout(ctx, col)
	if err != nil {
		return nil, false, err
	}
	defer conn.Close()

	query := "SELECT doc_value FROM " + b.dialect.Quote(table) + " WHERE doc_key = " + b.dialect.Placeholder(1)
	var value string
	err = conn.QueryRowContext(ctx, query, path.Join()).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, b.ioErr(ctx, "read", col, err)
	}
	tree, err := storage.UnmarshalTree([]byte(value))
	if err != nil {
		return nil, false, fmt.Errorf("%s/%s: %w", col, path, err)
	}
	return tree, true, nil
}

func (b *Backend) Write(ctx context.Context, col core.Collection, path core.Path, tree codec.Tree) error {
	data, err := storage.MarshalTree(tree)
	if err != nil {
		return fmt.Errorf("%s/%s: %w", col, path, err)
	}
	conn, table, err := b.checkout(ctx, col)
	if err != nil {
		return err
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, b.dialect.Upsert(table), path.Join(), string(data)); err != nil {
		return b.ioErr(ctx, "write", col, err)
	}
	return nil
}

func (b *Backend) Delete(ctx context.Context, col core.Collection, path core.Path) error {
	conn, table, err := b.checkout(ctx, col)
	if err != nil {
		return err
	}
	defer conn.Close()

	query := "DELETE FROM " + b.dialect.Quote(table) + " WHERE doc_key = " + b.dialect.Placeholder(1)
	if _, err := conn.ExecContext(ctx, query, path.Join()); err != nil {
		return b.ioErr(ctx, "delete", col, err)
	}
	return nil
}

// ListUnder holds one pooled connection until iteration stops.
func (b *Backend) ListUnder(ctx context.Context, col core.Collection, prefix core.Path) iter.Seq2[core.Path, error] {
	return func(yield func(core.Path, error) bool) {
		conn, table, err := b.checkout(ctx, col)
		if err != nil {
			yield(core.Path{}, err)
			return
		}
		defer conn.Close()

		query := "SELECT doc_key FROM " + b.dialect.Quote(table) +
			" WHERE doc_key LIKE " + b.dialect.Placeholder(1) + " ESCAPE '!'" +
			" ORDER BY " + b.dialect.OrderKey
		rows, err := conn.QueryContext(ctx, query, likePrefix(prefix.Join()))
		if err != nil {
			yield(core.Path{}, b.ioErr(ctx, "list", col, err))
			return
		}
		defer rows.Close()

		for rows.Next() {
			var key string
			if err := rows.Scan(&key); err != nil {
				yield(core.Path{}, b.ioErr(ctx, "list", col, err))
				return
			}
			p, err := storage.ParseKey(key)
			if !yield(p, err) || err != nil {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(core.Path{}, b.ioErr(ctx, "list", col, err))
		}
	}
}

func (b *Backend) Ping(ctx context.Context) error {
	conn, err := b.conn(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := conn.PingContext(ctx); err != nil {
		return b.ioErr(ctx, "ping", core.Collection{}, err)
	}
	return nil
}

// Close closes the pool.
func (b *Backend) Close() error {
	if b.closed.Swap(true) {
		return nil
	}
	return b.db.Close()
}

// checkout takes a connection from the pool and makes sure col's table
// exists.
func (b *Backend) checkout(ctx context.Context, col core.Collection) (*sql.Conn, string, error) {
	conn, err := b.conn(ctx)
	if err != nil {
		return nil, "", err
	}
	table := b.Table(col)
	if err := b.ensureTable(ctx, conn, col, table); err != nil {
		conn.Close()
		return nil, "", err
	}
	return conn, table, nil
}

func (b *Backend) conn(ctx context.Context) (*sql.Conn, error) {
	if b.closed.Load() {
		return nil, storage.ErrClosed
	}
	cctx, cancel := context.WithTimeout(ctx, b.checkoutTimeout)
	defer cancel()

	conn, err := b.db.Conn(cctx)
	if err == nil {
		return conn, nil
	}
	switch {
	case ctx.Err() != nil:
		return nil, ctx.Err()
	case errors.Is(err, context.DeadlineExceeded):
		return nil, fmt.Errorf("%w: %s: no connection within %s", storage.ErrConnectionExhausted, b.dialect.Name, b.checkoutTimeout)
	case b.closed.Load():
		return nil, storage.ErrClosed
	default:
		return nil, fmt.Errorf("%w: %s: connect: %w", storage.ErrIO, b.dialect.Name, err)
	}
}

func (b *Backend) ensureTable(ctx context.Context, conn *sql.Conn, col core.Collection, table string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.ready[table] {
		return nil
	}
	if _, err := conn.ExecContext(ctx, b.dialect.CreateTable(table)); err != nil {
		return b.ioErr(ctx, "create table", col, err)
	}
	b.ready[table] = true
	b.logger.Debug("table ready", "dialect", b.dialect.Name, "table", table)
	return nil
}

func (b *Backend) ioErr(ctx context.Context, op string, col core.Collection, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return fmt.Errorf("%w: %s %s %s: %w", storage.ErrIO, b.dialect.Name, op, col, err)
}
