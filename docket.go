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


// Package docket wires configured storage into a ready-to-use document
// store, user repository and balance service.
package docket

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/poiesic/docket/codec"
	"github.com/poiesic/docket/config"
	"github.com/poiesic/docket/core"
	"github.com/poiesic/docket/repository"
	"github.com/poiesic/docket/service"
	"github.com/poiesic/docket/storage"
	"github.com/poiesic/docket/storage/badger"
	"github.com/poiesic/docket/storage/flat"
	"github.com/poiesic/docket/storage/mongostore"
	"github.com/poiesic/docket/storage/redisstore"
	"github.com/poiesic/docket/storage/sqlstore"
)

// releaseTimeout bounds how long Close waits for queued work.
const releaseTimeout = 10 * time.Second

// Database owns every component opened from one storage configuration.
type Database struct {
	cfg      config.Storage
	store    *storage.DocumentStore
	users    *repository.Users
	executor *service.Executor
	service  *service.Users
	logger   *slog.Logger
}

// Option configures a Database.
type Option func(*options)

type options struct {
	logger       *slog.Logger
	workers      int
	retries      int
	retryBackoff time.Duration
}

// WithLogger sets the logger handed to every component.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithWorkers sets the executor size.
// Default is the configured pool size.
func WithWorkers(n int) Option {
	return func(o *options) {
		o.workers = n
	}
}

// WithRetry makes the balance service retry transient storage failures.
// Default is a single attempt.
func WithRetry(maxAttempts int, baseDelay time.Duration) Option {
	return func(o *options) {
		o.retries = maxAttempts
		o.retryBackoff = baseDelay
	}
}

func newOptions(opts []Option) *options {
	o := &options{logger: slog.Default(), retries: 1}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// OpenBackend validates cfg and opens the backend it selects. Server
// backends connect lazily, so an unreachable server surfaces on first use.
func OpenBackend(cfg *config.Storage, opts ...Option) (storage.Backend, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	o := newOptions(opts)

	switch cfg.Backend {
	case config.Flat:
		format, err := codec.FormatByName(cfg.Format)
		if err != nil {
			return nil, err
		}
		return backendOrNil(flat.Open(cfg.Directory, cfg.Prefix, format, flat.WithLogger(o.logger)))
	case config.MySQL:
		return openSQL(sqlstore.MariaDB, cfg, o)
	case config.Postgres:
		return openSQL(sqlstore.Postgres, cfg, o)
	case config.SQLite:
		return openSQL(sqlstore.SQLite, cfg, o)
	case config.Badger:
		return backendOrNil(badger.Open(filepath.Join(cfg.Directory, "badger"), false, cfg.Prefix, badger.WithLogger(o.logger)))
	case config.Mongo:
		return backendOrNil(mongostore.Open(cfg.URI, cfg.Database, cfg.Prefix,
			mongostore.WithCredentials(cfg.User, cfg.Password),
			mongostore.WithPoolSize(cfg.PoolSize),
			mongostore.WithSelectTimeout(cfg.CheckoutTimeout),
			mongostore.WithLogger(o.logger),
		))
	case config.Redis:
		return backendOrNil(redisstore.Open(cfg.URI, cfg.Prefix,
			redisstore.WithCredentials(cfg.User, cfg.Password),
			redisstore.WithPoolSize(cfg.PoolSize),
			redisstore.WithPoolTimeout(cfg.CheckoutTimeout),
			redisstore.WithLogger(o.logger),
		))
	}
	return nil, fmt.Errorf("%w: storage.backend: unknown kind %q", config.ErrInvalidConfig, cfg.Backend)
}

func openSQL(dialect sqlstore.Dialect, cfg *config.Storage, o *options) (storage.Backend, error) {
	return backendOrNil(sqlstore.Open(dialect, cfg.URI, cfg.Prefix,
		sqlstore.WithCredentials(cfg.User, cfg.Password),
		sqlstore.WithPoolSize(cfg.PoolSize),
		sqlstore.WithCheckoutTimeout(cfg.CheckoutTimeout),
		sqlstore.WithLogger(o.logger),
	))
}

// backendOrNil keeps a failed open from yielding a typed nil interface.
func backendOrNil[B storage.Backend](b B, err error) (storage.Backend, error) {
	if err != nil {
		return nil, err
	}
	return b, nil
}

// Open builds the full stack for cfg: backend, serializer over the domain
// registry, document store, user repository, executor and balance service.
func Open(cfg *config.Storage, opts ...Option) (*Database, error) {
	o := newOptions(opts)

	backend, err := OpenBackend(cfg, opts...)
	if err != nil {
		return nil, err
	}

	store, err := storage.NewDocumentStore(backend, codec.NewSerializer(core.NewRegistry()), storage.WithLogger(o.logger))
	if err != nil {
		backend.Close()
		return nil, err
	}

	users, err := repository.NewUsers(store, repository.WithLogger(o.logger))
	if err != nil {
		store.Close()
		return nil, err
	}

	workers := o.workers
	if workers < 1 {
		workers = cfg.PoolSize
	}
	executor, err := service.NewExecutor(workers, service.WithExecutorLogger(o.logger))
	if err != nil {
		store.Close()
		return nil, err
	}

	svcOpts := []service.Option{service.WithLogger(o.logger)}
	if o.retries > 1 {
		svcOpts = append(svcOpts, service.WithRetry(o.retries, o.retryBackoff))
	}
	svc, err := service.NewUsers(users, executor, svcOpts...)
	if err != nil {
		executor.Release(releaseTimeout)
		store.Close()
		return nil, err
	}

	o.logger.Info("storage opened", "storage", cfg)
	return &Database{
		cfg:      *cfg,
		store:    store,
		users:    users,
		executor: executor,
		service:  svc,
		logger:   o.logger,
	}, nil
}

// Close drains the executor, then closes the backend.
func (db *Database) Close() error {
	var errs []error
	if err := db.executor.Release(releaseTimeout); err != nil {
		db.logger.Error("error releasing executor", "err", err)
		errs = append(errs, err)
	}
	if err := db.store.Close(); err != nil {
		db.logger.Error("error closing backend storage", "err", err)
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Config returns the normalized settings the database was opened with.
func (db *Database) Config() config.Storage {
	return db.cfg
}

func (db *Database) Store() *storage.DocumentStore {
	return db.store
}

func (db *Database) Users() *repository.Users {
	return db.users
}

func (db *Database) Executor() *service.Executor {
	return db.executor
}

func (db *Database) Balances() *service.Users {
	return db.service
}
