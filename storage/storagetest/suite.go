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
	"fmt"
	"iter"
	"sync"
	"testing"

	"github.com/poiesic/docket/codec"
	"github.com/poiesic/docket/core"
	"github.com/poiesic/docket/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	docs  = core.Collection{Name: "docs"}
	other = core.Collection{Name: "other"}
)

// Factory opens a fresh, empty backend for one subtest. The factory is
// responsible for cleanup other than Close.
type Factory func(t *testing.T) storage.Backend

// RunBackendSuite exercises the storage.Backend contract against backends
// produced by open.
func RunBackendSuite(t *testing.T, open Factory) {
	t.Helper()

	t.Run("ReadMissing", func(t *testing.T) {
		b := openBackend(t, open)
		tree, found, err := b.Read(context.Background(), docs, core.MustOf("nope"))
		require.NoError(t, err)
		assert.False(t, found)
		assert.Nil(t, tree)
	})

	t.Run("WriteRead", func(t *testing.T) {
		b := openBackend(t, open)
		ctx := context.Background()
		path := core.MustOf("11111111-1111-1111-1111-111111111111")

		require.NoError(t, b.Write(ctx, docs, path, sampleTree("0")))

		tree, found, err := b.Read(ctx, docs, path)
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, sampleTree("0"), tree)
	})

	t.Run("Overwrite", func(t *testing.T) {
		b := openBackend(t, open)
		ctx := context.Background()
		path := core.MustOf("a", "b")

		require.NoError(t, b.Write(ctx, docs, path, sampleTree("1")))
		require.NoError(t, b.Write(ctx, docs, path, sampleTree("2")))

		tree, found, err := b.Read(ctx, docs, path)
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, "2", tree["balance"])
	})

	t.Run("Delete", func(t *testing.T) {
		b := openBackend(t, open)
		ctx := context.Background()
		path := core.MustOf("gone")

		require.NoError(t, b.Write(ctx, docs, path, sampleTree("1")))
		require.NoError(t, b.Delete(ctx, docs, path))

		_, found, err := b.Read(ctx, docs, path)
		require.NoError(t, err)
		assert.False(t, found)

		// deleting again is a no-op
		require.NoError(t, b.Delete(ctx, docs, path))
		require.NoError(t, b.Delete(ctx, other, path))
	})

	t.Run("CollectionsAreIsolated", func(t *testing.T) {
		b := openBackend(t, open)
		ctx := context.Background()
		path := core.MustOf("shared")

		require.NoError(t, b.Write(ctx, docs, path, sampleTree("1")))

		_, found, err := b.Read(ctx, other, path)
		require.NoError(t, err)
		assert.False(t, found)
		assert.Empty(t, Collect(t, b.ListUnder(ctx, other, core.Path{})))
	})

	t.Run("ListUnder", func(t *testing.T) {
		b := openBackend(t, open)
		ctx := context.Background()
		for _, p := range []core.Path{
			core.MustOf("b", "1"),
			core.MustOf("a", "2"),
			core.MustOf("a", "1"),
			core.MustOf("ab"),
			core.MustOf("c_d"),
			core.MustOf("c%d"),
		} {
			require.NoError(t, b.Write(ctx, docs, p, sampleTree("0")))
		}

		all := Collect(t, b.ListUnder(ctx, docs, core.Path{}))
		assert.Equal(t, []string{"a:1", "a:2", "ab", "b:1", "c%d", "c_d"}, all)

		assert.Equal(t, []string{"a:1", "a:2", "ab"}, Collect(t, b.ListUnder(ctx, docs, core.MustOf("a"))))
		assert.Equal(t, []string{"b:1"}, Collect(t, b.ListUnder(ctx, docs, core.MustOf("b", "1"))))
		assert.Empty(t, Collect(t, b.ListUnder(ctx, docs, core.MustOf("z"))))

		// wildcard characters in the prefix match literally
		assert.Equal(t, []string{"c_d"}, Collect(t, b.ListUnder(ctx, docs, core.MustOf("c_"))))
		assert.Equal(t, []string{"c%d"}, Collect(t, b.ListUnder(ctx, docs, core.MustOf("c%"))))
	})

	t.Run("ListUnderIsRestartable", func(t *testing.T) {
		b := openBackend(t, open)
		ctx := context.Background()
		require.NoError(t, b.Write(ctx, docs, core.MustOf("x"), sampleTree("0")))
		require.NoError(t, b.Write(ctx, docs, core.MustOf("y"), sampleTree("0")))

		seq := b.ListUnder(ctx, docs, core.Path{})
		first := Collect(t, seq)
		second := Collect(t, seq)
		assert.Equal(t, []string{"x", "y"}, first)
		assert.Equal(t, first, second)

		// stopping early is allowed
		for p, err := range seq {
			require.NoError(t, err)
			assert.Equal(t, "x", p.Join())
			break
		}
	})

	t.Run("ConcurrentWrites", func(t *testing.T) {
		b := openBackend(t, open)
		ctx := context.Background()

		const n = 16
		var wg sync.WaitGroup
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				assert.NoError(t, b.Write(ctx, docs, core.MustOf(fmt.Sprintf("k%02d", i)), sampleTree("0")))
			}(i)
		}
		wg.Wait()

		assert.Len(t, Collect(t, b.ListUnder(ctx, docs, core.Path{})), n)
	})

	t.Run("Ping", func(t *testing.T) {
		b := openBackend(t, open)
		assert.NoError(t, b.Ping(context.Background()))
	})

	t.Run("UseAfterClose", func(t *testing.T) {
		b := open(t)
		require.NoError(t, b.Close())

		_, _, err := b.Read(context.Background(), docs, core.MustOf("x"))
		assert.ErrorIs(t, err, storage.ErrClosed)
		err = b.Write(context.Background(), docs, core.MustOf("x"), sampleTree("0"))
		assert.ErrorIs(t, err, storage.ErrClosed)
	})
}

// Collect drains seq into joined paths, failing the test on an error.
func Collect(t *testing.T, seq iter.Seq2[core.Path, error]) []string {
	t.Helper()
	var out []string
	for p, err := range seq {
		require.NoError(t, err)
		out = append(out, p.Join())
	}
	return out
}

func openBackend(t *testing.T, open Factory) storage.Backend {
	t.Helper()
	b := open(t)
	t.Cleanup(func() { _ = b.Close() })
	return b
}

// sampleTree uses only strings, booleans, lists and maps so that every
// text format reproduces it exactly.
func sampleTree(balance string) codec.Tree {
	return codec.Tree{
		"balance": balance,
		"owner":   map[string]any{"name": "Rex", "active": true},
		"tags":    []any{"a", "b"},
	}
}
