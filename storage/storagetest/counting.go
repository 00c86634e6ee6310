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


package storagetest

import (
	"context"
	"iter"
	"sync/atomic"
	"time"

	"github.com/poiesic/docket/codec"
	"github.com/poiesic/docket/core"
	"github.com/poiesic/docket/storage"
)

// Counting wraps a backend, counting calls and optionally failing or
// slowing down writes.
type Counting struct {
	storage.Backend

	reads   atomic.Int64
	writes  atomic.Int64
	deletes atomic.Int64

	writeErr   atomic.Pointer[error]
	writeDelay atomic.Int64
}

var _ storage.Backend = (*Counting)(nil)

// NewCounting wraps backend.
func NewCounting(backend storage.Backend) *Counting {
	return &Counting{Backend: backend}
}

// Reads returns the number of Read calls.
func (c *Counting) Reads() int64 { return c.reads.Load() }

// Writes returns the number of Write calls, failed ones included.
func (c *Counting) Writes() int64 { return c.writes.Load() }

// Deletes returns the number of Delete calls.
func (c *Counting) Deletes() int64 { return c.deletes.Load() }

// FailWrites makes every following Write return err without reaching the
// wrapped backend. A nil err restores normal writes.
func (c *Counting) FailWrites(err error) {
	if err == nil {
		c.writeErr.Store(nil)
		return
	}
	c.writeErr.Store(&err)
}

// DelayWrites makes every following Write sleep for d first.
func (c *Counting) DelayWrites(d time.Duration) {
	c.writeDelay.Store(int64(d))
}

func (c *Counting) Read(ctx context.Context, col core.Collection, path core.Path) (codec.Tree, bool, error) {
	c.reads.Add(1)
	return c.Backend.Read(ctx, col, path)
}

func (c *Counting) Write(ctx context.Context, col core.Collection, path core.Path, tree codec.Tree) error {
	c.writes.Add(1)
	if d := time.Duration(c.writeDelay.Load()); d > 0 {
		select {
		case <-time.After(d):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if errp := c.writeErr.Load(); errp != nil {
		return *errp
	}
	return c.Backend.Write(ctx, col, path, tree)
}

func (c *Counting) Delete(ctx context.Context, col core.Collection, path core.Path) error {
	c.deletes.Add(1)
	return c.Backend.Delete(ctx, col, path)
}

func (c *Counting) ListUnder(ctx context.Context, col core.Collection, prefix core.Path) iter.Seq2[core.Path, error] {
	return c.Backend.ListUnder(ctx, col, prefix)
}
