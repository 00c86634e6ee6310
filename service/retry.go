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
	"log/slog"
	"time"

	"github.com/poiesic/docket/storage"
)

// Transient reports whether err is worth retrying: pool exhaustion or a
// backend I/O failure.
func Transient(err error) bool {
	return errors.Is(err, storage.ErrConnectionExhausted) || errors.Is(err, storage.ErrIO)
}

// Backoff runs an operation up to Attempts times, sleeping Base, 2*Base,
// 4*Base and so on between tries. Failures Retryable rejects end the run
// at once; a nil Retryable retries every failure.
type Backoff struct {
	Attempts  int
	Base      time.Duration
	Retryable func(error) bool
	Logger    *slog.Logger
}

// Do runs op until it succeeds, fails permanently, runs out of attempts
// or ctx ends. The last failure is returned.
func (b Backoff) Do(ctx context.Context, op func() error) error {
	if b.Attempts < 1 {
		return ErrInvalidMaxAttempts
	}
	logger := b.Logger
	if logger == nil {
		logger = slog.Default()
	}

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := op()
		switch {
		case err == nil:
			if attempt > 1 {
				logger.Debug("retry succeeded", "attempt", attempt)
			}
			return nil
		case b.Retryable != nil && !b.Retryable(err):
			return err
		case attempt == b.Attempts:
			logger.Debug("retries exhausted", "attempts", attempt, "error", err)
			return err
		}

		wait := b.wait(attempt)
		logger.Debug("retrying", "attempt", attempt, "wait", wait, "error", err)
		if err := sleep(ctx, wait); err != nil {
			return err
		}
	}
}

// wait is the pause after the given failed attempt.
func (b Backoff) wait(attempt int) time.Duration {
	return b.Base << (attempt - 1)
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
