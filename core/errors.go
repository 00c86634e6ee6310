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


package core

import "errors"

// Key and path errors
var (
	// ErrInvalidPath indicates a path segment is empty or contains the separator.
	ErrInvalidPath = errors.New("invalid path")

	// ErrEmptySegment indicates a path segment is the empty string.
	ErrEmptySegment = errors.New("empty segment")

	// ErrInvalidKey indicates a path does not satisfy a collection's key format.
	ErrInvalidKey = errors.New("invalid key")

	// ErrInvalidCollection indicates a malformed collection definition.
	ErrInvalidCollection = errors.New("invalid collection")
)

// Domain errors
var (
	// ErrUnknownComponent is returned by PerformUpgrade for anything but "ram" and "storage".
	ErrUnknownComponent = errors.New("unknown component")

	// ErrInvalidUpgrade indicates a non-positive upgrade amount.
	ErrInvalidUpgrade = errors.New("upgrade amount must be positive")
)
