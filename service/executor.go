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
	"log/slog"
	"runtime"
	"time"

	"github.com/panjf2000/ants/v2"
)

// Executor runs persistence tasks on a bounded worker pool.
// Submit blocks while every worker is busy.
type Executor struct {
	pool   *ants.Pool
	logger *slog.Logger
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor) error

// WithExecutorLogger sets a custom logger.
// Default is slog.Default().
func WithExecutorLogger(logger *slog.Logger) ExecutorOption {
	return func(e *Executor) error {
		if logger == nil {
			logger = slog.Default()
		}
		e.logger = logger
		return nil
	}
}

// antsLoggerAdapter routes pool diagnostics to slog.
type antsLoggerAdapter struct {
	logger *slog.Logger
}

func (a *antsLoggerAdapter) Printf(format string, args ...any) {
	a.logger.Warn(fmt.Sprintf(format, args...))
}

// NewExecutor creates an executor with size workers.
// A size below 1 selects runtime.NumCPU().
func NewExecutor(size int, opts ...ExecutorOption) (*Executor, error) {
	if size < 1 {
		size = runtime.NumCPU()
	}

	e := &Executor{logger: slog.Default()}
	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, err
		}
	}

	pool, err := ants.NewPool(size, ants.WithLogger(&antsLoggerAdapter{logger: e.logger}))
	if err != nil {
		return nil, err
	}
	e.pool = pool
	return e, nil
}

// Submit schedules fn and returns a channel that receives its result
// exactly once. A task whose context is done before it starts is not run.
// Panics inside fn are reported as ErrTaskPanicked.
func (e *Executor) Submit(ctx context.Context, fn func(context.Context) error) <-chan error {
	result := make(chan error, 1)

	if err := ctx.Err(); err != nil {
		result <- err
		return result
	}

	err := e.pool.Submit(func() {
		defer func() {
			if r := recover(); r != nil {
				e.logger.Error("task panicked", "panic", r)
				result <- fmt.Errorf("%w: %v", ErrTaskPanicked, r)
			}
		}()
		if err := ctx.Err(); err != nil {
			result <- err
			return
		}
		result <- fn(ctx)
	})
	if err != nil {
		if errors.Is(err, ants.ErrPoolClosed) {
			err = ErrExecutorClosed
		}
		result <- err
	}
	return result
}

// Running returns the number of busy workers.
func (e *Executor) Running() int {
	return e.pool.Running()
}

// Cap returns the worker count.
func (e *Executor) Cap() int {
	return e.pool.Cap()
}

// Release waits up to timeout for running tasks and stops the pool.
// Tasks submitted afterwards fail with ErrExecutorClosed.
func (e *Executor) Release(timeout time.Duration) error {
	if e.pool.IsClosed() {
		return nil
	}
	return e.pool.ReleaseTimeout(timeout)
}
