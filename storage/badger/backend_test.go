package badger

import (
	"context"
	"testing"

	"github.com/poiesic/docket/codec"
	"github.com/poiesic/docket/core"
	"github.com/poiesic/docket/storage"
	"github.com/poiesic/docket/storage/storagetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackendSuite_InMemory(t *testing.T) {
	storagetest.RunBackendSuite(t, func(t *testing.T) storage.Backend {
		b, err := NewMemory("bukkit-example")
		require.NoError(t, err)
		return b
	})
}

func TestOpen_InMemory(t *testing.T) {
	backend, err := Open("", true, "p")
	require.NoError(t, err)
	require.NotNil(t, backend)
	defer backend.Close()

	assert.False(t, backend.IsClosed())
}

func TestOpen_FileSystem(t *testing.T) {
	tmpDir := t.TempDir()
	backend, err := Open(tmpDir, false, "p")
	require.NoError(t, err)
	require.NotNil(t, backend)
	defer backend.Close()

	assert.False(t, backend.IsClosed())
}

func TestOpen_InvalidSettings(t *testing.T) {
	_, err := Open("", false, "p")
	assert.ErrorIs(t, err, storage.ErrConfiguration)

	_, err = Open("", true, "")
	assert.ErrorIs(t, err, storage.ErrConfiguration)
}

func TestBackendClose(t *testing.T) {
	backend, err := NewMemory("p")
	require.NoError(t, err)

	assert.False(t, backend.IsClosed())
	require.NoError(t, backend.Close())
	assert.True(t, backend.IsClosed())

	// closing twice is harmless
	require.NoError(t, backend.Close())
}

func TestPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	path := core.MustOf("11111111-1111-1111-1111-111111111111")

	backend, err := Open(dir, false, "p")
	require.NoError(t, err)
	require.NoError(t, backend.Write(ctx, core.Users, path, codec.Tree{"balance": "5"}))
	require.NoError(t, backend.Close())

	backend, err = Open(dir, false, "p")
	require.NoError(t, err)
	defer backend.Close()

	tree, found, err := backend.Read(ctx, core.Users, path)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "5", tree["balance"])
}

func TestPrefixesAreIsolated(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	path := core.MustOf("k")

	a, err := Open(dir, false, "a")
	require.NoError(t, err)
	require.NoError(t, a.Write(ctx, core.Showcases, path, codec.Tree{"ok": true}))
	require.NoError(t, a.Close())

	b, err := Open(dir, false, "ab")
	require.NoError(t, err)
	defer b.Close()

	_, found, err := b.Read(ctx, core.Showcases, path)
	require.NoError(t, err)
	assert.False(t, found)
	assert.Empty(t, storagetest.Collect(t, b.ListUnder(ctx, core.Showcases, core.Path{})))
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "p:users:", string(makeCollectionPrefix("p", core.Users)))
	assert.Equal(t, "p:users:a:b", string(makeDocKey("p", core.Users, core.MustOf("a", "b"))))
	assert.Equal(t, "p:users:a", string(makeScanPrefix("p", core.Users, core.MustOf("a"))))
	assert.Equal(t, "p:users:", string(makeScanPrefix("p", core.Users, core.Path{})))
}
