package repository

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/poiesic/docket/codec"
	"github.com/poiesic/docket/core"
	"github.com/poiesic/docket/storage"
	"github.com/poiesic/docket/storage/flat"
	"github.com/poiesic/docket/storage/storagetest"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var steve = uuid.MustParse("11111111-1111-1111-1111-111111111111")

func newStore(t *testing.T, backend storage.Backend) *storage.DocumentStore {
	t.Helper()
	store, err := storage.NewDocumentStore(backend, codec.NewSerializer(core.NewRegistry()))
	require.NoError(t, err)
	return store
}

func newUsers(t *testing.T) (*Users, *storagetest.Counting) {
	t.Helper()
	backend := storagetest.NewCounting(storagetest.NewMemory())
	users, err := NewUsers(newStore(t, backend))
	require.NoError(t, err)
	return users, backend
}

func TestFindOrCreate_FlatFilesSurviveRestart(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	backend, err := flat.Open(dir, "bukkit-example", codec.YAML)
	require.NoError(t, err)
	users, err := NewUsers(newStore(t, backend))
	require.NoError(t, err)

	user, err := users.FindOrCreate(ctx, steve)
	require.NoError(t, err)
	assert.Equal(t, steve, user.UUID)
	assert.True(t, user.Balance.IsZero())

	_, err = os.Stat(filepath.Join(dir, "bukkit-example", "users", steve.String()+".yml"))
	require.NoError(t, err, "default document must be persisted")

	// a fresh process: new backend, empty cache
	reopened, err := flat.Open(dir, "bukkit-example", codec.YAML)
	require.NoError(t, err)
	counting := storagetest.NewCounting(reopened)
	users, err = NewUsers(newStore(t, counting))
	require.NoError(t, err)
	require.False(t, users.Cached(steve))

	user, err = users.FindOrCreate(ctx, steve)
	require.NoError(t, err)
	assert.Equal(t, steve, user.UUID)
	assert.True(t, user.Balance.IsZero())
	assert.Zero(t, counting.Writes(), "existing document must not be rewritten")
	assert.True(t, users.Cached(steve))
}

func TestFindOrCreate_ConcurrentMissWritesOnce(t *testing.T) {
	users, backend := newUsers(t)
	backend.DelayWrites(20 * time.Millisecond)
	ctx := context.Background()

	const callers = 32
	results := make([]*core.User, callers)
	errs := make([]error, callers)

	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			results[i], errs[i] = users.FindOrCreate(ctx, steve)
		}(i)
	}
	close(start)
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, steve, results[i].UUID)
		assert.True(t, results[i].Balance.IsZero())
	}
	assert.EqualValues(t, 1, backend.Writes())
	assert.Equal(t, 1, users.Len())
}

func TestFindOrCreate_ReturnsIndependentCopies(t *testing.T) {
	users, _ := newUsers(t)
	ctx := context.Background()

	first, err := users.FindOrCreate(ctx, steve)
	require.NoError(t, err)
	first.Balance = decimal.NewFromInt(500)

	second, err := users.FindOrCreate(ctx, steve)
	require.NoError(t, err)
	assert.True(t, second.Balance.IsZero(), "unsaved mutation leaked through the cache")

	require.NoError(t, users.Save(ctx, first))

	third, err := users.FindOrCreate(ctx, steve)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(500).Equal(third.Balance))
}

func TestSave_FailedWriteLeavesCache(t *testing.T) {
	users, backend := newUsers(t)
	ctx := context.Background()

	user, err := users.FindOrCreate(ctx, steve)
	require.NoError(t, err)

	boom := errors.New("disk full")
	backend.FailWrites(boom)
	user.Balance = decimal.NewFromInt(10)
	assert.ErrorIs(t, users.Save(ctx, user), boom)

	cached, err := users.FindOrCreate(ctx, steve)
	require.NoError(t, err)
	assert.True(t, cached.Balance.IsZero())

	// and the backend still holds the old document
	users.Evict(steve)
	reloaded, err := users.FindOrCreate(ctx, steve)
	require.NoError(t, err)
	assert.True(t, reloaded.Balance.IsZero())
}

func TestFindOrCreate_FailedCreateIsNotCached(t *testing.T) {
	users, backend := newUsers(t)
	boom := errors.New("read-only filesystem")
	backend.FailWrites(boom)

	_, err := users.FindOrCreate(context.Background(), steve)
	assert.ErrorIs(t, err, boom)
	assert.False(t, users.Cached(steve))
	assert.Zero(t, users.Len())

	backend.FailWrites(nil)
	user, err := users.FindOrCreate(context.Background(), steve)
	require.NoError(t, err)
	assert.Equal(t, steve, user.UUID)
}

func TestFind_DoesNotCreate(t *testing.T) {
	users, backend := newUsers(t)
	ctx := context.Background()

	_, found, err := users.Find(ctx, steve)
	require.NoError(t, err)
	assert.False(t, found)
	assert.Zero(t, backend.Writes())
	assert.False(t, users.Cached(steve))

	_, err = users.FindOrCreate(ctx, steve)
	require.NoError(t, err)
	users.Evict(steve)

	user, found, err := users.Find(ctx, steve)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, steve, user.UUID)
	assert.True(t, users.Cached(steve))
}

func TestDelete(t *testing.T) {
	users, backend := newUsers(t)
	ctx := context.Background()

	_, err := users.FindOrCreate(ctx, steve)
	require.NoError(t, err)
	require.NoError(t, users.Delete(ctx, steve))
	assert.False(t, users.Cached(steve))

	_, found, err := users.Find(ctx, steve)
	require.NoError(t, err)
	assert.False(t, found)

	// deleting twice is fine
	require.NoError(t, users.Delete(ctx, steve))

	_, err = users.FindOrCreate(ctx, steve)
	require.NoError(t, err)
	assert.EqualValues(t, 2, backend.Writes())
}

func TestListKeys(t *testing.T) {
	users, _ := newUsers(t)
	ctx := context.Background()
	ids := []uuid.UUID{
		uuid.MustParse("33333333-3333-3333-3333-333333333333"),
		uuid.MustParse("11111111-1111-1111-1111-111111111111"),
		uuid.MustParse("22222222-2222-2222-2222-222222222222"),
	}
	for _, id := range ids {
		require.NoError(t, users.Save(ctx, core.NewUser(id)))
	}
	for _, id := range ids {
		users.Evict(id)
	}

	var got []uuid.UUID
	for id, err := range users.ListKeys(ctx, core.Path{}) {
		require.NoError(t, err)
		got = append(got, id)
	}
	assert.Equal(t, []uuid.UUID{ids[1], ids[2], ids[0]}, got)
	assert.Zero(t, users.Len(), "listing must not fill the cache")
}

func TestListKeys_BadStoredKey(t *testing.T) {
	backend := storagetest.NewMemory()
	store := newStore(t, backend)
	users, err := NewUsers(store)
	require.NoError(t, err)

	// a key of the right length that is not a uuid
	bad := core.MustOf("zzzzzzzz-zzzz-zzzz-zzzz-zzzzzzzzzzzz")
	require.NoError(t, backend.Write(context.Background(), core.Users, bad, codec.Tree{"balance": "0"}))

	var errs []error
	for _, err := range users.ListKeys(context.Background(), core.Path{}) {
		errs = append(errs, err)
	}
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], core.ErrInvalidKey)
}

func TestListKeys_NonCanonicalUUID(t *testing.T) {
	backend := storagetest.NewCounting(storagetest.NewMemory())
	users, err := NewUsers(newStore(t, backend))
	require.NoError(t, err)
	ctx := context.Background()

	upper := core.MustOf("AAAAAAAA-1111-1111-1111-111111111111")
	require.NoError(t, backend.Write(ctx, core.Users, upper, codec.Tree{"balance": "5"}))
	_, err = users.FindOrCreate(ctx, steve)
	require.NoError(t, err)
	require.Equal(t, int64(2), backend.Writes())

	var keys []uuid.UUID
	var errs []error
	for key, err := range users.ListKeys(ctx, core.Path{}) {
		if err != nil {
			errs = append(errs, err)
			continue
		}
		keys = append(keys, key)
	}
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], core.ErrInvalidKey)
	assert.Equal(t, []uuid.UUID{steve}, keys)

	for _, key := range keys {
		_, err := users.FindOrCreate(ctx, key)
		require.NoError(t, err)
	}
	assert.Equal(t, int64(2), backend.Writes(), "listed keys never create duplicates")
}

// named is a document keyed by a free-form string.
type named struct {
	Name  string `doc:"-"`
	Count int    `doc:"count"`
}

func namedSpec() Spec[string, *named] {
	return Spec[string, *named]{
		Collection: core.Collection{Name: "named"},
		Keys:       StringKeys{},
		New:        func(k string) *named { return &named{Name: k} },
		Identity:   func(n *named) string { return n.Name },
		Bind:       func(k string, n *named) { n.Name = k },
	}
}

func TestStringKeys(t *testing.T) {
	backend := storagetest.NewCounting(storagetest.NewMemory())
	repo, err := New(namedSpec(), newStore(t, backend))
	require.NoError(t, err)
	ctx := context.Background()

	doc, err := repo.FindOrCreate(ctx, "guild:red")
	require.NoError(t, err)
	assert.Equal(t, "guild:red", doc.Name)

	doc.Count = 3
	require.NoError(t, repo.Save(ctx, doc))

	var keys []string
	for k, err := range repo.ListKeys(ctx, core.MustOf("guild")) {
		require.NoError(t, err)
		keys = append(keys, k)
	}
	assert.Equal(t, []string{"guild:red"}, keys)

	for _, bad := range []string{"", "a::b", ":x"} {
		_, err := repo.FindOrCreate(ctx, bad)
		assert.ErrorIs(t, err, core.ErrInvalidKey, "key %q", bad)
	}
	assert.EqualValues(t, 2, backend.Writes())
}

func TestFindOrCreate_UndecodableDocument(t *testing.T) {
	backend := storagetest.NewMemory()
	repo, err := New(namedSpec(), newStore(t, backend))
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, backend.Write(ctx, core.Collection{Name: "named"}, core.MustOf("bad"), codec.Tree{"count": "many"}))

	_, err = repo.FindOrCreate(ctx, "bad")
	assert.ErrorIs(t, err, codec.ErrDecode)
	assert.False(t, repo.Cached("bad"))
}

func TestNew_Validation(t *testing.T) {
	store := newStore(t, storagetest.NewMemory())

	_, err := New(namedSpec(), nil)
	assert.ErrorIs(t, err, ErrStoreRequired)

	spec := namedSpec()
	spec.Keys = nil
	_, err = New(spec, store)
	assert.ErrorIs(t, err, ErrInvalidSpec)

	spec = namedSpec()
	spec.New = nil
	_, err = New(spec, store)
	assert.ErrorIs(t, err, ErrInvalidSpec)

	spec = namedSpec()
	spec.Identity = nil
	_, err = New(spec, store)
	assert.ErrorIs(t, err, ErrInvalidSpec)

	spec = namedSpec()
	spec.Collection = core.Collection{Name: "Bad Name"}
	_, err = New(spec, store)
	assert.ErrorIs(t, err, ErrInvalidSpec)
	assert.ErrorIs(t, err, core.ErrInvalidCollection)
}

func TestConcurrentSaveAndFind(t *testing.T) {
	users, _ := newUsers(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			u := core.NewUser(steve)
			u.Balance = decimal.NewFromInt(int64(i))
			assert.NoError(t, users.Save(ctx, u))
		}(i)
		go func() {
			defer wg.Done()
			_, err := users.FindOrCreate(ctx, steve)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	// the cache agrees with the backend after the dust settles
	cached, err := users.FindOrCreate(ctx, steve)
	require.NoError(t, err)
	users.Evict(steve)
	stored, err := users.FindOrCreate(ctx, steve)
	require.NoError(t, err)
	assert.True(t, cached.Balance.Equal(stored.Balance))
}
