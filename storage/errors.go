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


package storage

import "errors"

var (
	// ErrConfiguration indicates a backend that cannot be built from its settings.
	ErrConfiguration = errors.New("invalid backend configuration")

	// ErrConnectionExhausted indicates that no pooled connection became
	// available before the checkout timeout.
	ErrConnectionExhausted = errors.New("connection pool exhausted")

	// ErrIO indicates a failed read, write, delete or listing.
	ErrIO = errors.New("storage i/o failure")

	// ErrClosed indicates that the backend has been closed.
	ErrClosed = errors.New("storage is closed")

	// ErrNotFound indicates that no document exists at the requested path.
	ErrNotFound = errors.New("document not found")
)
