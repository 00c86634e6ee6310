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


// Package mongostore stores documents in MongoDB. Each (prefix, collection)
// pair maps to one MongoDB collection whose documents look like
//
//	{_id: "<path>", value: "<json>"}
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"regexp"
	"sync/atomic"
	"time"

	"github.com/poiesic/docket/codec"
	"github.com/poiesic/docket/core"
	"github.com/poiesic/docket/storage"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
)

const (
	defaultPoolSize        = 10
	defaultSelectTimeout   = 5 * time.Second
	defaultDisconnectAfter = 5 * time.Second
)

type document struct {
	ID    string `bson:"_id"`
	Value string `bson:"value"`
}

// Backend is a MongoDB storage.Backend.
type Backend struct {
	client        *mongo.Client
	db            *mongo.Database
	prefix        string
	user          string
	password      string
	poolSize      uint64
	selectTimeout time.Duration
	logger        *slog.Logger
	closed        atomic.Bool
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

// WithPoolSize bounds the number of pooled connections per server.
// Default is 10.
func WithPoolSize(size int) Option {
	return func(b *Backend) error {
		if size < 1 {
			return fmt.Errorf("%w: pool size must be positive, got %d", storage.ErrConfiguration, size)
		}
		b.poolSize = uint64(size)
		return nil
	}
}

// WithSelectTimeout bounds how long an operation waits for a usable
// server connection. Default is 5s.
func WithSelectTimeout(d time.Duration) Option {
	return func(b *Backend) error {
		if d <= 0 {
			return fmt.Errorf("%w: select timeout must be positive, got %s", storage.ErrConfiguration, d)
		}
		b.selectTimeout = d
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

// Open creates a client for uri using database. The driver connects in
// the background; Ping forces a round trip.
func Open(uri, database, prefix string, opts ...Option) (*Backend, error) {
	if uri == "" || database == "" || prefix == "" {
		return nil, fmt.Errorf("%w: mongo: uri, database and prefix are required", storage.ErrConfiguration)
	}
	if err := storage.CheckPrefix(prefix); err != nil {
		return nil, fmt.Errorf("mongo: %w", err)
	}
	b := &Backend{
		prefix:        prefix,
		poolSize:      defaultPoolSize,
		selectTimeout: defaultSelectTimeout,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(b); err != nil {
			return nil, err
		}
	}

	clientOpts := options.Client().
		ApplyURI(uri).
		SetMaxPoolSize(b.poolSize).
		SetServerSelectionTimeout(b.selectTimeout).
		SetConnectTimeout(b.selectTimeout)
	if b.user != "" {
		clientOpts.SetAuth(options.Credential{Username: b.user, Password: b.password})
	}

	client, err := mongo.Connect(clientOpts)
	if err != nil {
		return nil, fmt.Errorf("%w: mongo: %w", storage.ErrConfiguration, err)
	}
	b.client = client
	b.db = client.Database(database)

	b.logger.Debug("mongo backend opened", "database", database, "prefix", prefix, "pool_size", b.poolSize)
	return b, nil
}

// CollectionName returns the MongoDB collection holding col.
func (b *Backend) CollectionName(col core.Collection) string {
	return storage.Namespace(b.prefix, col)
}

func (b *Backend) coll(col core.Collection) *mongo.Collection {
	return b.db.Collection(b.CollectionName(col))
}

func (b *Backend) Read(ctx context.Context, col core.Collection, path core.Path) (codec.Tree, bool, error) {
	if err := b.check(ctx); err != nil {
		return nil, false, err
	}
	var doc document
	err := b.coll(col).FindOne(ctx, bson.D{{Key: "_id", Value: path.Join()}}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, b.opErr(ctx, "read", col, err)
	}
	tree, err := storage.UnmarshalTree([]byte(doc.Value))
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
	doc := document{ID: path.Join(), Value: string(data)}
	_, err = b.coll(col).ReplaceOne(ctx,
		bson.D{{Key: "_id", Value: doc.ID}},
		doc,
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return b.opErr(ctx, "write", col, err)
	}
	return nil
}

func (b *Backend) Delete(ctx context.Context, col core.Collection, path core.Path) error {
	if err := b.check(ctx); err != nil {
		return err
	}
	if _, err := b.coll(col).DeleteOne(ctx, bson.D{{Key: "_id", Value: path.Join()}}); err != nil {
		return b.opErr(ctx, "delete", col, err)
	}
	return nil
}

// ListUnder streams ids through a server-side cursor sorted by _id.
func (b *Backend) ListUnder(ctx context.Context, col core.Collection, prefix core.Path) iter.Seq2[core.Path, error] {
	return func(yield func(core.Path, error) bool) {
		if err := b.check(ctx); err != nil {
			yield(core.Path{}, err)
			return
		}
		filter := bson.D{}
		if !prefix.IsRoot() {
			filter = bson.D{{Key: "_id", Value: bson.Regex{Pattern: prefixPattern(prefix.Join())}}}
		}
		cursor, err := b.coll(col).Find(ctx, filter,
			options.Find().
				SetSort(bson.D{{Key: "_id", Value: 1}}).
				SetProjection(bson.D{{Key: "_id", Value: 1}}),
		)
		if err != nil {
			yield(core.Path{}, b.opErr(ctx, "list", col, err))
			return
		}
		defer cursor.Close(context.WithoutCancel(ctx))

		for cursor.Next(ctx) {
			var doc document
			if err := cursor.Decode(&doc); err != nil {
				yield(core.Path{}, b.opErr(ctx, "list", col, err))
				return
			}
			p, err := storage.ParseKey(doc.ID)
			if !yield(p, err) || err != nil {
				return
			}
		}
		if err := cursor.Err(); err != nil {
			yield(core.Path{}, b.opErr(ctx, "list", col, err))
		}
	}
}

func (b *Backend) Ping(ctx context.Context) error {
	if err := b.check(ctx); err != nil {
		return err
	}
	if err := b.client.Ping(ctx, readpref.Primary()); err != nil {
		return b.opErr(ctx, "ping", core.Collection{}, err)
	}
	return nil
}

// Close disconnects the client.
func (b *Backend) Close() error {
	if b.closed.Swap(true) {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), defaultDisconnectAfter)
	defer cancel()
	return b.client.Disconnect(ctx)
}

func (b *Backend) check(ctx context.Context) error {
	if b.closed.Load() {
		return storage.ErrClosed
	}
	return ctx.Err()
}

func (b *Backend) opErr(ctx context.Context, op string, col core.Collection, err error) error {
	switch {
	case ctx.Err() != nil:
		return ctx.Err()
	case errors.Is(err, mongo.ErrClientDisconnected):
		return storage.ErrClosed
	case mongo.IsTimeout(err):
		return fmt.Errorf("%w: mongo %s %s: %w", storage.ErrConnectionExhausted, op, col, err)
	default:
		return fmt.Errorf("%w: mongo %s %s: %w", storage.ErrIO, op, col, err)
	}
}

// prefixPattern anchors a literal prefix for a regex match on _id.
func prefixPattern(prefix string) string {
	return "^" + regexp.QuoteMeta(prefix)
}
