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


// Package flat stores each document as one text file:
//
//	<dir>/<prefix>/<collection>/<path><ext>
//
// Files are replaced atomically, so a reader sees either the old or the
// new document, never a torn write.
package flat

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"iter"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync/atomic"

	"github.com/google/renameio/v2"
	"github.com/poiesic/docket/codec"
	"github.com/poiesic/docket/core"
	"github.com/poiesic/docket/storage"
)

// Backend is a filesystem storage.Backend.
type Backend struct {
	root   string
	format codec.Format
	logger *slog.Logger
	closed atomic.Bool
}

var _ storage.Backend = (*Backend)(nil)

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

// Open prepares a flat-file backend rooted at dir/prefix, creating the
// directory if needed.
func Open(dir, prefix string, format codec.Format, opts ...Option) (*Backend, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("%w: flat: empty directory", storage.ErrConfiguration)
	}
	if prefix == "" || prefix == "." || prefix == ".." || strings.ContainsAny(prefix, `/\`) {
		return nil, fmt.Errorf("%w: flat: invalid prefix %q", storage.ErrConfiguration, prefix)
	}
	if format == nil {
		return nil, fmt.Errorf("%w: flat: no format", storage.ErrConfiguration)
	}

	b := &Backend{
		root:   filepath.Join(dir, prefix),
		format: format,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(b); err != nil {
			return nil, err
		}
	}

	info, err := os.Stat(b.root)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: flat: %w", storage.ErrIO, err)
		}
		if err := os.MkdirAll(b.root, 0o755); err != nil {
			return nil, fmt.Errorf("%w: flat: %w", storage.ErrIO, err)
		}
	} else if !info.IsDir() {
		return nil, fmt.Errorf("%w: flat: %s is not a directory", storage.ErrConfiguration, b.root)
	}

	b.logger.Debug("flat backend opened", "root", b.root, "format", format.Name())
	return b, nil
}

// Root returns the directory holding the prefix's collections.
func (b *Backend) Root() string {
	return b.root
}

// FileFor returns the file a document is stored in.
func (b *Backend) FileFor(col core.Collection, path core.Path) string {
	return filepath.Join(b.root, col.Name, fileName(path)+b.format.Extension())
}

// fileName escapes a joined path into a single visible file name.
func fileName(path core.Path) string {
	name := url.PathEscape(path.Join())
	if strings.HasPrefix(name, ".") {
		name = "%2E" + name[1:]
	}
	return name
}

func (b *Backend) Read(ctx context.Context, col core.Collection, path core.Path) (codec.Tree, bool, error) {
	if err := b.check(ctx); err != nil {
		return nil, false, err
	}
	data, err := os.ReadFile(b.FileFor(col, path))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("%w: read %s/%s: %w", storage.ErrIO, col, path, err)
	}
	tree, err := b.format.Unmarshal(data)
	if err != nil {
		return nil, false, fmt.Errorf("%s/%s: %w", col, path, err)
	}
	return tree, true, nil
}

func (b *Backend) Write(ctx context.Context, col core.Collection, path core.Path, tree codec.Tree) error {
	if err := b.check(ctx); err != nil {
		return err
	}
	data, err := b.format.Marshal(tree)
	if err != nil {
		return fmt.Errorf("%s/%s: %w", col, path, err)
	}
	if err := os.MkdirAll(filepath.Join(b.root, col.Name), 0o755); err != nil {
		return fmt.Errorf("%w: write %s/%s: %w", storage.ErrIO, col, path, err)
	}
	if err := renameio.WriteFile(b.FileFor(col, path), data, 0o644); err != nil {
		return fmt.Errorf("%w: write %s/%s: %w", storage.ErrIO, col, path, err)
	}
	return nil
}

func (b *Backend) Delete(ctx context.Context, col core.Collection, path core.Path) error {
	if err := b.check(ctx); err != nil {
		return err
	}
	err := os.Remove(b.FileFor(col, path))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: delete %s/%s: %w", storage.ErrIO, col, path, err)
	}
	return nil
}

func (b *Backend) ListUnder(ctx context.Context, col core.Collection, prefix core.Path) iter.Seq2[core.Path, error] {
	return func(yield func(core.Path, error) bool) {
		if err := b.check(ctx); err != nil {
			yield(core.Path{}, err)
			return
		}
		entries, err := os.ReadDir(filepath.Join(b.root, col.Name))
		if err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				yield(core.Path{}, fmt.Errorf("%w: list %s: %w", storage.ErrIO, col, err))
			}
			return
		}

		ext := b.format.Extension()
		want := prefix.Join()
		var keys []string
		for _, entry := range entries {
			name := entry.Name()
			// renameio stages writes in hidden temp files
			if entry.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, ext) {
				continue
			}
			key, err := url.PathUnescape(strings.TrimSuffix(name, ext))
			if err != nil || !strings.HasPrefix(key, want) {
				continue
			}
			keys = append(keys, key)
		}
		slices.Sort(keys)

		for _, key := range keys {
			p, err := storage.ParseKey(key)
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
	if _, err := os.Stat(b.root); err != nil {
		return fmt.Errorf("%w: flat: %w", storage.ErrIO, err)
	}
	return nil
}

// Close marks the backend closed. Files need no cleanup.
func (b *Backend) Close() error {
	b.closed.Store(true)
	return nil
}

func (b *Backend) check(ctx context.Context) error {
	if b.closed.Load() {
		return storage.ErrClosed
	}
	return ctx.Err()
}
