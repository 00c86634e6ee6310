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


// Package redisstore stores documents as JSON strings in Redis under keys of
// the form prefix:collection:path.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"net"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	"github.com/poiesic/docket/codec"
	"github.com/poiesic/docket/core"
	"github.com/poiesic/docket/storage"
	"github.com/redis/go-redis/v9"
)

const (
	defaultPoolSize    = 10
	defaultPoolTimeout = 5 * time.Second
	scanBatch          = 256
)

// Backend is a Redis storage.Backend.
type Backend struct {
	client      *redis.Client
	prefix      string
	user        string
	password    string
	poolSize    int
	poolTimeout time.Duration
	logger      *slog.Logger
	closed      atomic.Bool
}

var _ storage.Backend = (*Backend)(nil)

// Option configures a Backend.
type Option func(*Backend) error

// WithCredentials overrides the credentials given in the uri.
func WithCredentials(user, password string) Option {
	return func(b *Backend) error {
		b.user = user
		b.password = password
		return nil
	}
}

// WithPoolSize bounds the number of pooled connections.
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

// WithPoolTimeout bounds how long an operation waits for a pooled
// connection. Default is 5s.
func WithPoolTimeout(d time.Duration) Option {
	return func(b *Backend) error {
		if d <= 0 {
			return fmt.Errorf("%w: pool timeout must be positive, got %s", storage.ErrConfiguration, d)
		}
		b.poolTimeout = d
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

// Open creates a client for uri ("redis://[user:pass@]host:port/db").
// No connection is made until the first operation or Ping.
func Open(uri, prefix string, opts ...Option) (*Backend, error) {
	if prefix == "" {
		return nil, fmt.Errorf("%w: redis: empty prefix", storage.ErrConfiguration)
	}
	b := &Backend{
		prefix:      prefix,
		poolSize:    defaultPoolSize,
		poolTimeout: defaultPoolTimeout,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(b); err != nil {
			return nil, err
		}
	}

	ropts, err := redis.ParseURL(uri)
	if err != nil {
		return nil, fmt.Errorf("%w: redis: %w", storage.ErrConfiguration, err)
	}
	if b.user != "" {
		ropts.Username = b.user
	}
	if b.password != "" {
		ropts.Password = b.password
	}
	ropts.PoolSize = b.poolSize
	ropts.PoolTimeout = b.poolTimeout
	ropts.DialTimeout = b.poolTimeout
	// the caller owns retries
	ropts.MaxRetries = -1

	b.client = redis.NewClient(ropts)
	b.logger.Debug("redis backend opened", "addr", ropts.Addr, "db", ropts.DB, "prefix", prefix)
	return b, nil
}

// Key returns the Redis key of a document.
func (b *Backend) Key(col core.Collection, path core.Path) string {
	return b.collectionPrefix(col) + path.Join()
}

func (b *Backend) collectionPrefix(col core.Collection) string {
	return b.prefix + core.PathSeparator + col.Name + core.PathSeparator
}

func (b *Backend) Read(ctx context.Context, col core.Collection, path core.Path) (codec.Tree, bool, error) {
	if err := b.check(ctx); err != nil {
		return nil, false, err
	}
	data, err := b.client.Get(ctx, b.Key(col, path)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, b.opErr(ctx, "read", col, err)
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
	if err := b.client.Set(ctx, b.Key(col, path), data, 0).Err(); err != nil {
		return b.opErr(ctx, "write", col, err)
	}
	return nil
}

func (b *Backend) Delete(ctx context.Context, col core.Collection, path core.Path) error {
	if err := b.check(ctx); err != nil {
		return err
	}
	if err := b.client.Del(ctx, b.Key(col, path)).Err(); err != nil {
		return b.opErr(ctx, "delete", col, err)
	}
	return nil
}

// ListUnder scans the whole match set before yielding, because SCAN may
// return a key more than once and gives no order.
func (b *Backend) ListUnder(ctx context.Context, col core.Collection, prefix core.Path) iter.Seq2[core.Path, error] {
	return func(yield func(core.Path, error) bool) {
		if err := b.check(ctx); err != nil {
			yield(core.Path{}, err)
			return
		}
		colPrefix := b.collectionPrefix(col)
		match := escapeGlob(colPrefix+prefix.Join()) + "*"

		seen := make(map[string]struct{})
		var cursor uint64
		for {
			keys, next, err := b.client.Scan(ctx, cursor, match, scanBatch).Result()
			if err != nil {
				yield(core.Path{}, b.opErr(ctx, "list", col, err))
				return
			}
			for _, k := range keys {
				seen[strings.TrimPrefix(k, colPrefix)] = struct{}{}
			}
			cursor = next
			if cursor == 0 {
				break
			}
		}

		keys := make([]string, 0, len(seen))
		for k := range seen {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		for _, k := range keys {
			p, err := storage.ParseKey(k)
			if !yield(p, err) || err != nil {
				return
			}
		}
	}
}

func (b *Backend) Ping(ctx context.Context) error {
	if err := b.check(ctx); err != nil {
		return err
	}
	if err := b.client.Ping(ctx).Err(); err != nil {
		return b.opErr(ctx, "ping", core.Collection{}, err)
	}
	return nil
}

// Close closes the client and its pool.
func (b *Backend) Close() error {
	if b.closed.Swap(true) {
		return nil
	}
	return b.client.Close()
}

func (b *Backend) check(ctx context.Context) error {
	if b.closed.Load() {
		return storage.ErrClosed
	}
	return ctx.Err()
}

func (b *Backend) opErr(ctx context.Context, op string, col core.Collection, err error) error {
	var netErr net.Error
	switch {
	case ctx.Err() != nil:
		return ctx.Err()
	case errors.Is(err, redis.ErrClosed):
		return storage.ErrClosed
	case isPoolTimeout(err), errors.As(err, &netErr) && netErr.Timeout():
		return fmt.Errorf("%w: redis %s %s: %w", storage.ErrConnectionExhausted, op, col, err)
	default:
		return fmt.Errorf("%w: redis %s %s: %w", storage.ErrIO, op, col, err)
	}
}

// isPoolTimeout matches go-redis's pool checkout timeout, which is not
// exported as a sentinel.
func isPoolTimeout(err error) bool {
	return strings.Contains(err.Error(), "connection pool timeout")
}

// escapeGlob quotes the characters SCAN MATCH treats specially.
func escapeGlob(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '\\', '^', '-':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
