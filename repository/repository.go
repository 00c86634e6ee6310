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


// Package repository provides a typed, cached view over one collection of
// a storage.DocumentStore.
//
// The cache holds encoded trees, not values: every caller decodes its own
// copy, so mutating a returned value is invisible to other callers until
// it is passed to Save. Writes reach the backend before the cache, and a
// failed write leaves the cache untouched.
//
// FindOrCreate persists a default document the first time a key is seen.
// Concurrent first lookups of the same key share one load and at most one
// write.
package repository

import (
	"context"
	"fmt"
	"hash/fnv"
	"iter"
	"log/slog"
	"sync"

	"github.com/poiesic/docket/codec"
	"github.com/poiesic/docket/core"
	"github.com/poiesic/docket/storage"
	"golang.org/x/sync/singleflight"
)

const stripeCount = 64

// Spec describes the documents a Repository manages.
type Spec[K comparable, V any] struct {
	Collection core.Collection
	Keys       KeyCodec[K]

	// New returns the default document for a key seen for the first time.
	New func(key K) V

	// Identity returns the key a document is stored under.
	Identity func(doc V) K

	// Bind, if set, restores key-derived fields after decoding.
	Bind func(key K, doc V)
}

func (s Spec[K, V]) validate() error {
	if err := s.Collection.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSpec, err)
	}
	switch {
	case s.Keys == nil:
		return fmt.Errorf("%w: %s: no key codec", ErrInvalidSpec, s.Collection)
	case s.New == nil:
		return fmt.Errorf("%w: %s: no default constructor", ErrInvalidSpec, s.Collection)
	case s.Identity == nil:
		return fmt.Errorf("%w: %s: no identity function", ErrInvalidSpec, s.Collection)
	}
	return nil
}

type options struct {
	logger *slog.Logger
}

// Option configures a Repository.
type Option func(*options) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) error {
		if logger == nil {
			logger = slog.Default()
		}
		o.logger = logger
		return nil
	}
}

// Repository is a cached key/document view over one collection.
// It is safe for concurrent use.
type Repository[K comparable, V any] struct {
	spec   Spec[K, V]
	store  *storage.DocumentStore
	logger *slog.Logger

	mu    sync.RWMutex
	cache map[K]codec.Tree

	// flights collapses concurrent misses on one key into a single load;
	// stripes order that load against Save and Delete on the same key.
	flights singleflight.Group
	stripes [stripeCount]sync.Mutex
}

// New creates a repository for spec over store.
func New[K comparable, V any](spec Spec[K, V], store *storage.DocumentStore, opts ...Option) (*Repository[K, V], error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	if err := spec.validate(); err != nil {
		return nil, err
	}
	o := options{logger: slog.Default()}
	for _, opt := range opts {
		if err := opt(&o); err != nil {
			return nil, err
		}
	}
	return &Repository[K, V]{
		spec:   spec,
		store:  store,
		logger: o.logger,
		cache:  make(map[K]codec.Tree),
	}, nil
}

// Collection returns the collection the repository manages.
func (r *Repository[K, V]) Collection() core.Collection {
	return r.spec.Collection
}

// FindOrCreate returns the document for key, loading it into the cache on
// first use. A key with no stored document gets spec.New(key), which is
// persisted before it is returned.
func (r *Repository[K, V]) FindOrCreate(ctx context.Context, key K) (V, error) {
	var zero V
	path, err := r.pathOf(key)
	if err != nil {
		return zero, err
	}
	if tree, ok := r.cached(key); ok {
		return r.decode(key, tree)
	}

	res, err, _ := r.flights.Do(path.Join(), func() (any, error) {
		return r.load(ctx, key, path, true)
	})
	if err != nil {
		return zero, err
	}
	return r.decode(key, res.(codec.Tree))
}

// Find returns the document for key without creating one. found is false
// when nothing is stored.
func (r *Repository[K, V]) Find(ctx context.Context, key K) (doc V, found bool, err error) {
	path, err := r.pathOf(key)
	if err != nil {
		return doc, false, err
	}
	if tree, ok := r.cached(key); ok {
		doc, err = r.decode(key, tree)
		return doc, err == nil, err
	}

	res, err, _ := r.flights.Do("find:"+path.Join(), func() (any, error) {
		return r.load(ctx, key, path, false)
	})
	if err != nil || res.(codec.Tree) == nil {
		return doc, false, err
	}
	doc, err = r.decode(key, res.(codec.Tree))
	return doc, err == nil, err
}

// load reads key under its stripe lock and caches the result. With create
// set, a missing document is replaced by the default one. It returns a
// nil tree when the document is missing and create is false.
func (r *Repository[K, V]) load(ctx context.Context, key K, path core.Path, create bool) (codec.Tree, error) {
	lock := r.stripe(path)
	lock.Lock()
	defer lock.Unlock()

	if tree, ok := r.cached(key); ok {
		return tree, nil
	}

	col := r.spec.Collection
	tree, found, err := r.store.Get(ctx, col, path)
	if err != nil {
		return nil, err
	}
	if found {
		// refuse to cache what cannot be decoded
		if _, err := r.decode(key, tree); err != nil {
			return nil, err
		}
	} else {
		if !create {
			return nil, nil
		}
		tree, err = r.store.Serializer().Encode(r.spec.New(key))
		if err != nil {
			return nil, fmt.Errorf("%s/%s: %w", col, path, err)
		}
		if err := r.store.PutTree(ctx, col, path, tree); err != nil {
			return nil, err
		}
		r.logger.Debug("default document created", "collection", col.Name, "path", path.Join())
	}

	r.mu.Lock()
	r.cache[key] = tree
	r.mu.Unlock()
	return tree, nil
}

// Save persists doc under its identity and then refreshes the cache.
func (r *Repository[K, V]) Save(ctx context.Context, doc V) error {
	key := r.spec.Identity(doc)
	path, err := r.pathOf(key)
	if err != nil {
		return err
	}
	tree, err := r.store.Serializer().Encode(doc)
	if err != nil {
		return fmt.Errorf("%s/%s: %w", r.spec.Collection, path, err)
	}

	lock := r.stripe(path)
	lock.Lock()
	defer lock.Unlock()

	if err := r.store.PutTree(ctx, r.spec.Collection, path, tree); err != nil {
		return err
	}
	r.mu.Lock()
	r.cache[key] = tree
	r.mu.Unlock()
	return nil
}

// Delete removes the document for key from the backend and the cache.
func (r *Repository[K, V]) Delete(ctx context.Context, key K) error {
	path, err := r.pathOf(key)
	if err != nil {
		return err
	}

	lock := r.stripe(path)
	lock.Lock()
	defer lock.Unlock()

	if err := r.store.Delete(ctx, r.spec.Collection, path); err != nil {
		return err
	}
	r.mu.Lock()
	delete(r.cache, key)
	r.mu.Unlock()
	return nil
}

// ListKeys yields the keys of every stored document under prefix. It
// reads the backend, never the cache, and creates nothing.
func (r *Repository[K, V]) ListKeys(ctx context.Context, prefix core.Path) iter.Seq2[K, error] {
	return func(yield func(K, error) bool) {
		var zero K
		for path, err := range r.store.ListUnder(ctx, r.spec.Collection, prefix) {
			if err != nil {
				yield(zero, err)
				return
			}
			key, err := r.spec.Keys.KeyOf(path)
			if !yield(key, err) || err != nil {
				return
			}
		}
	}
}

// Cached reports whether key is in the cache.
func (r *Repository[K, V]) Cached(key K) bool {
	_, ok := r.cached(key)
	return ok
}

// Evict drops key from the cache. The stored document is untouched.
func (r *Repository[K, V]) Evict(key K) {
	r.mu.Lock()
	delete(r.cache, key)
	r.mu.Unlock()
}

// Len returns the number of cached documents.
func (r *Repository[K, V]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.cache)
}

func (r *Repository[K, V]) cached(key K) (codec.Tree, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tree, ok := r.cache[key]
	return tree, ok
}

func (r *Repository[K, V]) decode(key K, tree codec.Tree) (V, error) {
	doc, err := codec.DecodeAs[V](r.store.Serializer(), tree)
	if err != nil {
		return doc, fmt.Errorf("%s: %w", r.spec.Collection, err)
	}
	if r.spec.Bind != nil {
		r.spec.Bind(key, doc)
	}
	return doc, nil
}

func (r *Repository[K, V]) pathOf(key K) (core.Path, error) {
	path, err := r.spec.Keys.PathOf(key)
	if err != nil {
		return core.Path{}, err
	}
	if err := r.spec.Collection.CheckKey(path); err != nil {
		return core.Path{}, err
	}
	return path, nil
}

func (r *Repository[K, V]) stripe(path core.Path) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(path.Join()))
	return &r.stripes[h.Sum32()%stripeCount]
}
