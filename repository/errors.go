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


package repository

import "errors"

var (
	// ErrInvalidSpec indicates a Spec missing a required part.
	ErrInvalidSpec = errors.New("invalid repository spec")

	// ErrStoreRequired is returned when New gets a nil document store.
	ErrStoreRequired = errors.New("document store is required")
)
