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


// Package storagetest provides test doubles and a conformance suite for
// storage.Backend implementations.
package storagetest

import (
	"context"
	"iter"
	"slices"
	"strings"
	"sync"

	"github.com/poiesic/docket/codec"
	"github.com/poiesic/docket/core"
	"github.com/poiesic/docket/storage"
)

// Memory is a map-backed storage.Backend. Trees are stored as JSON bytes
// so readers get the same value shapes as from a real backend.
type Memory struct {
	mu     sync.RWMutex
	docs   map[string][]byte
	closed bool
}

var _ storage.Backend = (*Memory)(nil)

// NewMemory creates an empty in-memory backend.
func NewMemory() *Memory {
	return &Memory{docs: make(map[string][]byte)}
}

func memoryKey(col core.Collection, path core.Path) string {
	return col.Name + "/" + path.Join()
}

func (m *Memory) Read(_ context.Context, col core.Collection, path core.Path) (codec.Tree, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, false, storage.ErrClosed
	}
	data, ok := m.docs[memoryKey(col, path)]
	if !ok {
		return nil, false, nil
	}
	tree, err := storage.UnmarshalTree(data)
	if err != nil {
		return nil, false, err
	}
	return tree, true, nil
}

func (m *Memory) Write(_ context.Context, col core.Collection, path core.Path, tree codec.Tree) error {
	data, err := storage.MarshalTree(tree)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return storage.ErrClosed
	}
	m.docs[memoryKey(col, path)] = data
	return nil
}

func (m *Memory) Delete(_ context.Context, col core.Collection, path core.Path) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return storage.ErrClosed
	}
	delete(m.docs, memoryKey(col, path))
	return nil
}

func (m *Memory) ListUnder(_ context.Context, col core.Collection, prefix core.Path) iter.Seq2[core.Path, error] {
	return func(yield func(core.Path, error) bool) {
		m.mu.RLock()
		if m.closed {
			m.mu.RUnlock()
			yield(core.Path{}, storage.ErrClosed)
			return
		}
		scope := memoryKey(col, prefix)
		var keys []string
		for k := range m.docs {
			if strings.HasPrefix(k, scope) {
				keys = append(keys, strings.TrimPrefix(k, col.Name+"/"))
			}
		}
		m.mu.RUnlock()

		slices.Sort(keys)
		for _, k := range keys {
			p, err := storage.ParseKey(k)
			if !yield(p, err) || err != nil {
				return
			}
		}
	}
}

func (m *Memory) Ping(context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return storage.ErrClosed
	}
	return nil
}

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Len returns the number of stored documents across all collections.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.docs)
}
