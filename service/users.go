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


package service

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/poiesic/docket/core"
	"github.com/poiesic/docket/repository"
	"github.com/shopspring/decimal"
)

const userStripes = 64

// Users exposes balance operations over the user repository.
// Read-modify-write updates to one player are serialized.
type Users struct {
	repo    *repository.Users
	exec    *Executor
	logger  *slog.Logger
	backoff Backoff
	locks   [userStripes]sync.Mutex
}

// Option configures Users.
type Option func(*Users) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(u *Users) error {
		if logger == nil {
			logger = slog.Default()
		}
		u.logger = logger
		return nil
	}
}

// WithRetry retries transient storage failures up to maxAttempts times,
// doubling baseDelay between attempts.
// Default is a single attempt.
func WithRetry(maxAttempts int, baseDelay time.Duration) Option {
	return func(u *Users) error {
		if maxAttempts <= 0 {
			return ErrInvalidMaxAttempts
		}
		u.backoff.Attempts = maxAttempts
		u.backoff.Base = baseDelay
		return nil
	}
}

// NewUsers creates the balance service.
func NewUsers(repo *repository.Users, exec *Executor, opts ...Option) (*Users, error) {
	if repo == nil {
		return nil, ErrRepositoryRequired
	}
	if exec == nil {
		return nil, ErrExecutorRequired
	}

	u := &Users{
		repo:    repo,
		exec:    exec,
		logger:  slog.Default(),
		backoff: Backoff{Attempts: 1, Retryable: Transient},
	}
	for _, opt := range opts {
		if err := opt(u); err != nil {
			return nil, err
		}
	}
	u.backoff.Logger = u.logger
	return u, nil
}

// Get returns the user document, creating a zero balance on first use.
func (u *Users) Get(ctx context.Context, id uuid.UUID) (*core.User, error) {
	var user *core.User
	err := u.retry(ctx, func() error {
		var err error
		user, err = u.repo.FindOrCreate(ctx, id)
		return err
	})
	return user, err
}

// Balance returns the player's balance.
func (u *Users) Balance(ctx context.Context, id uuid.UUID) (decimal.Decimal, error) {
	user, err := u.Get(ctx, id)
	if err != nil {
		return decimal.Zero, err
	}
	return user.Balance, nil
}

// SetBalance replaces the player's balance and persists it.
func (u *Users) SetBalance(ctx context.Context, id uuid.UUID, amount decimal.Decimal) (*core.User, error) {
	if amount.IsNegative() {
		return nil, fmt.Errorf("%w: %s", ErrNegativeBalance, amount)
	}
	return u.update(ctx, id, func(user *core.User) error {
		user.Balance = amount
		return nil
	})
}

// Deposit adds amount to the player's balance. A negative amount
// withdraws; a withdrawal that would overdraw fails with
// ErrNegativeBalance and changes nothing.
func (u *Users) Deposit(ctx context.Context, id uuid.UUID, amount decimal.Decimal) (*core.User, error) {
	return u.update(ctx, id, func(user *core.User) error {
		next := user.Balance.Add(amount)
		if next.IsNegative() {
			return fmt.Errorf("%w: %s + %s", ErrNegativeBalance, user.Balance, amount)
		}
		user.Balance = next
		return nil
	})
}

// SetBalanceAsync runs SetBalance on the executor.
func (u *Users) SetBalanceAsync(ctx context.Context, id uuid.UUID, amount decimal.Decimal) <-chan error {
	return u.exec.Submit(ctx, func(ctx context.Context) error {
		_, err := u.SetBalance(ctx, id, amount)
		return err
	})
}

// Balances loads every id concurrently on the executor. Failed loads are
// left out of the map and reported together in the error.
func (u *Users) Balances(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]decimal.Decimal, error) {
	var (
		mu       sync.Mutex
		balances = make(map[uuid.UUID]decimal.Decimal, len(ids))
		pending  = make([]<-chan error, len(ids))
	)
	for i, id := range ids {
		pending[i] = u.exec.Submit(ctx, func(ctx context.Context) error {
			balance, err := u.Balance(ctx, id)
			if err != nil {
				return fmt.Errorf("user %s: %w", id, err)
			}
			mu.Lock()
			balances[id] = balance
			mu.Unlock()
			return nil
		})
	}

	var errs []error
	for _, done := range pending {
		if err := <-done; err != nil {
			errs = append(errs, err)
		}
	}
	return balances, errors.Join(errs...)
}

// Delete removes the player's document.
func (u *Users) Delete(ctx context.Context, id uuid.UUID) error {
	lock := u.lock(id)
	lock.Lock()
	defer lock.Unlock()

	return u.retry(ctx, func() error {
		return u.repo.Delete(ctx, id)
	})
}

// List yields the stored player ids whose key starts with prefix.
func (u *Users) List(ctx context.Context, prefix string) iter.Seq2[uuid.UUID, error] {
	path, err := core.ParsePath(prefix)
	if err != nil {
		return func(yield func(uuid.UUID, error) bool) {
			yield(uuid.Nil, err)
		}
	}
	return u.repo.ListKeys(ctx, path)
}

func (u *Users) update(ctx context.Context, id uuid.UUID, mutate func(*core.User) error) (*core.User, error) {
	lock := u.lock(id)
	lock.Lock()
	defer lock.Unlock()

	user, err := u.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := mutate(user); err != nil {
		return nil, err
	}
	if err := u.retry(ctx, func() error { return u.repo.Save(ctx, user) }); err != nil {
		return nil, err
	}
	u.logger.Debug("balance updated", "user", id, "balance", user.Balance)
	return user, nil
}

func (u *Users) retry(ctx context.Context, op func() error) error {
	if u.backoff.Attempts <= 1 {
		return op()
	}
	return u.backoff.Do(ctx, op)
}

func (u *Users) lock(id uuid.UUID) *sync.Mutex {
	return &u.locks[int(id[len(id)-1])%userStripes]
}
