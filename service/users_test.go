package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/poiesic/docket/codec"
	"github.com/poiesic/docket/core"
	"github.com/poiesic/docket/repository"
	"github.com/poiesic/docket/storage"
	"github.com/poiesic/docket/storage/storagetest"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	steve = uuid.MustParse("11111111-1111-1111-1111-111111111111")
	alex  = uuid.MustParse("22222222-2222-2222-2222-222222222222")
)

func newService(t *testing.T, opts ...Option) (*Users, *storagetest.Counting) {
	t.Helper()
	backend := storagetest.NewCounting(storagetest.NewMemory())
	store, err := storage.NewDocumentStore(backend, codec.NewSerializer(core.NewRegistry()))
	require.NoError(t, err)
	repo, err := repository.NewUsers(store)
	require.NoError(t, err)

	users, err := NewUsers(repo, newExecutor(t, 4), opts...)
	require.NoError(t, err)
	return users, backend
}

func TestNewUsers_Validation(t *testing.T) {
	_, err := NewUsers(nil, &Executor{})
	assert.ErrorIs(t, err, ErrRepositoryRequired)

	_, err = NewUsers(&repository.Users{}, nil)
	assert.ErrorIs(t, err, ErrExecutorRequired)

	_, err = NewUsers(&repository.Users{}, &Executor{}, WithRetry(0, time.Millisecond))
	assert.ErrorIs(t, err, ErrInvalidMaxAttempts)
}

func TestUsers_GetCreatesZeroBalance(t *testing.T) {
	users, backend := newService(t)
	ctx := context.Background()

	user, err := users.Get(ctx, steve)
	require.NoError(t, err)
	assert.Equal(t, steve, user.UUID)
	assert.True(t, user.Balance.IsZero())
	assert.Equal(t, int64(1), backend.Writes())
}

func TestUsers_SetBalance(t *testing.T) {
	users, _ := newService(t)
	ctx := context.Background()

	user, err := users.SetBalance(ctx, steve, decimal.RequireFromString("42.50"))
	require.NoError(t, err)
	assert.Equal(t, "42.5", user.Balance.String())

	balance, err := users.Balance(ctx, steve)
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.RequireFromString("42.5")))
}

func TestUsers_SetBalanceRejectsNegative(t *testing.T) {
	users, backend := newService(t)

	_, err := users.SetBalance(context.Background(), steve, decimal.NewFromInt(-1))
	assert.ErrorIs(t, err, ErrNegativeBalance)
	assert.Zero(t, backend.Writes())
}

func TestUsers_Deposit(t *testing.T) {
	users, _ := newService(t)
	ctx := context.Background()

	_, err := users.Deposit(ctx, steve, decimal.NewFromInt(10))
	require.NoError(t, err)
	user, err := users.Deposit(ctx, steve, decimal.RequireFromString("-2.25"))
	require.NoError(t, err)
	assert.Equal(t, "7.75", user.Balance.String())

	_, err = users.Deposit(ctx, steve, decimal.NewFromInt(-8))
	assert.ErrorIs(t, err, ErrNegativeBalance)

	balance, err := users.Balance(ctx, steve)
	require.NoError(t, err)
	assert.Equal(t, "7.75", balance.String(), "failed withdrawal changes nothing")
}

func TestUsers_ConcurrentDepositsAreSerialized(t *testing.T) {
	users, _ := newService(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := users.Deposit(ctx, steve, decimal.NewFromInt(1))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	balance, err := users.Balance(ctx, steve)
	require.NoError(t, err)
	assert.Equal(t, "50", balance.String())
}

func TestUsers_SetBalanceAsync(t *testing.T) {
	users, _ := newService(t)
	ctx := context.Background()

	require.NoError(t, <-users.SetBalanceAsync(ctx, alex, decimal.NewFromInt(9)))
	assert.ErrorIs(t, <-users.SetBalanceAsync(ctx, alex, decimal.NewFromInt(-9)), ErrNegativeBalance)

	balance, err := users.Balance(ctx, alex)
	require.NoError(t, err)
	assert.Equal(t, "9", balance.String())
}

func TestUsers_Balances(t *testing.T) {
	users, _ := newService(t)
	ctx := context.Background()

	_, err := users.SetBalance(ctx, steve, decimal.NewFromInt(5))
	require.NoError(t, err)

	balances, err := users.Balances(ctx, []uuid.UUID{steve, alex})
	require.NoError(t, err)
	require.Len(t, balances, 2)
	assert.Equal(t, "5", balances[steve].String())
	assert.True(t, balances[alex].IsZero())
}

func TestUsers_BalancesReportsFailures(t *testing.T) {
	users, backend := newService(t)
	ctx := context.Background()

	_, err := users.SetBalance(ctx, steve, decimal.NewFromInt(5))
	require.NoError(t, err)
	backend.FailWrites(storage.ErrIO)

	balances, err := users.Balances(ctx, []uuid.UUID{steve, alex})
	require.Error(t, err)
	assert.ErrorIs(t, err, storage.ErrIO)
	assert.Contains(t, err.Error(), alex.String())
	require.Len(t, balances, 1)
	assert.Equal(t, "5", balances[steve].String())
}

func TestUsers_RetriesTransientFailures(t *testing.T) {
	users, backend := newService(t, WithRetry(3, time.Millisecond))
	ctx := context.Background()
	backend.FailWrites(storage.ErrConnectionExhausted)

	_, err := users.SetBalance(ctx, steve, decimal.NewFromInt(3))
	assert.ErrorIs(t, err, storage.ErrConnectionExhausted, "gives up after maxAttempts")

	backend.FailWrites(nil)
	_, err = users.SetBalance(ctx, steve, decimal.NewFromInt(3))
	require.NoError(t, err)
}

func TestUsers_DeleteAndList(t *testing.T) {
	users, _ := newService(t)
	ctx := context.Background()

	for _, id := range []uuid.UUID{steve, alex} {
		_, err := users.Get(ctx, id)
		require.NoError(t, err)
	}

	var listed []uuid.UUID
	for id, err := range users.List(ctx, "") {
		require.NoError(t, err)
		listed = append(listed, id)
	}
	assert.Equal(t, []uuid.UUID{steve, alex}, listed)

	listed = nil
	for id, err := range users.List(ctx, "2222") {
		require.NoError(t, err)
		listed = append(listed, id)
	}
	assert.Equal(t, []uuid.UUID{alex}, listed)

	require.NoError(t, users.Delete(ctx, steve))
	listed = nil
	for id, err := range users.List(ctx, "") {
		require.NoError(t, err)
		listed = append(listed, id)
	}
	assert.Equal(t, []uuid.UUID{alex}, listed)
}

func TestUsers_ListRejectsBadPrefix(t *testing.T) {
	users, _ := newService(t)

	for _, err := range users.List(context.Background(), "a::b") {
		assert.ErrorIs(t, err, core.ErrInvalidPath)
	}
}
