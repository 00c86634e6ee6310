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


package storage

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"

	"github.com/poiesic/docket/codec"
	"github.com/poiesic/docket/core"
)

var (
	// ErrBackendRequired is returned when NewDocumentStore gets a nil backend.
	ErrBackendRequired = errors.New("backend is required")

	// ErrSerializerRequired is returned when NewDocumentStore gets a nil serializer.
	ErrSerializerRequired = errors.New("serializer is required")
)

// DocumentStore pairs a Backend with a Serializer. It caches nothing:
// every call goes to the backend.
type DocumentStore struct {
	backend    Backend
	serializer *codec.Serializer
	logger     *slog.Logger
}

// Option configures a DocumentStore.
type Option func(*DocumentStore) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *DocumentStore) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// NewDocumentStore creates a document store over backend.
func NewDocumentStore(backend Backend, serializer *codec.Serializer, opts ...Option) (*DocumentStore, error) {
	if backend == nil {
		return nil, ErrBackendRequired
	}
	if serializer == nil {
		return nil, ErrSerializerRequired
	}
	s := &DocumentStore{
		backend:    backend,
		serializer: serializer,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Backend returns the underlying backend.
func (s *DocumentStore) Backend() Backend {
	return s.backend
}

// Serializer returns the serializer used for documents.
func (s *DocumentStore) Serializer() *codec.Serializer {
	return s.serializer
}

// Get returns the raw tree stored at path.
func (s *DocumentStore) Get(ctx context.Context, col core.Collection, path core.Path) (codec.Tree, bool, error) {
	if err := col.CheckKey(path); err != nil {
		return nil, false, err
	}
	return s.backend.Read(ctx, col, path)
}

// Load decodes the document at path into target. It returns false, with
// a nil error, when the document does not exist.
func (s *DocumentStore) Load(ctx context.Context, col core.Collection, path core.Path, target any) (bool, error) {
	tree, found, err := s.Get(ctx, col, path)
	if err != nil || !found {
		return false, err
	}
	if err := s.serializer.Decode(tree, target); err != nil {
		return false, fmt.Errorf("%s/%s: %w", col, path, err)
	}
	return true, nil
}

// MustLoad is like Load but reports a missing document as ErrNotFound.
func (s *DocumentStore) MustLoad(ctx context.Context, col core.Collection, path core.Path, target any) error {
	found, err := s.Load(ctx, col, path, target)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("%w: %s/%s", ErrNotFound, col, path)
	}
	return nil
}

// Put encodes v and writes it at path.
func (s *DocumentStore) Put(ctx context.Context, col core.Collection, path core.Path, v any) error {
	tree, err := s.serializer.Encode(v)
	if err != nil {
		return fmt.Errorf("%s/%s: %w", col, path, err)
	}
	return s.PutTree(ctx, col, path, tree)
}

// PutTree writes an already encoded tree at path.
func (s *DocumentStore) PutTree(ctx context.Context, col core.Collection, path core.Path, tree codec.Tree) error {
	if err := col.CheckKey(path); err != nil {
		return err
	}
	if err := s.backend.Write(ctx, col, path, tree); err != nil {
		return err
	}
	s.logger.Debug("document written", "collection", col.Name, "path", path.Join())
	return nil
}

// Delete removes the document at path. Absent documents are not an error.
func (s *DocumentStore) Delete(ctx context.Context, col core.Collection, path core.Path) error {
	if err := col.CheckKey(path); err != nil {
		return err
	}
	return s.backend.Delete(ctx, col, path)
}

// Exists reports whether a document is stored at path.
func (s *DocumentStore) Exists(ctx context.Context, col core.Collection, path core.Path) (bool, error) {
	_, found, err := s.Get(ctx, col, path)
	return found, err
}

// ListUnder yields the stored paths starting with prefix.
func (s *DocumentStore) ListUnder(ctx context.Context, col core.Collection, prefix core.Path) iter.Seq2[core.Path, error] {
	return s.backend.ListUnder(ctx, col, prefix)
}

// Ping verifies that the backend is reachable.
func (s *DocumentStore) Ping(ctx context.Context) error {
	return s.backend.Ping(ctx)
}

// Close closes the backend.
func (s *DocumentStore) Close() error {
	return s.backend.Close()
}
