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

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/poiesic/docket/core"
)

// KeyCodec converts between repository keys and storage paths.
type KeyCodec[K comparable] interface {
	PathOf(key K) (core.Path, error)
	KeyOf(path core.Path) (K, error)
}

// UUIDKeys stores each key as a single 36-character segment.
type UUIDKeys struct{}

func (UUIDKeys) PathOf(id uuid.UUID) (core.Path, error) {
	return core.PathOfUUID(id), nil
}

func (UUIDKeys) KeyOf(path core.Path) (uuid.UUID, error) {
	return path.ToUUID()
}

// StringKeys treats a key as a joined path, so "a:b" has two segments.
type StringKeys struct{}

func (StringKeys) PathOf(key string) (core.Path, error) {
	p, err := core.ParsePath(key)
	if err != nil {
		return core.Path{}, fmt.Errorf("%w: %w", core.ErrInvalidKey, err)
	}
	return p, nil
}

func (StringKeys) KeyOf(path core.Path) (string, error) {
	return path.Join(), nil
}
