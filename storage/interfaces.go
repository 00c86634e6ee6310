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

import (
	"context"
	"iter"

	"github.com/poiesic/docket/codec"
	"github.com/poiesic/docket/core"
)

// Backend persists document trees addressed by collection and path.
// Implementations must be thread-safe and support concurrent access.
type Backend interface {
	// Read returns the tree stored at path. found is false, with a nil
	// error, when nothing is stored there.
	Read(ctx context.Context, col core.Collection, path core.Path) (tree codec.Tree, found bool, err error)

	// Write stores tree at path, replacing any previous document.
	Write(ctx context.Context, col core.Collection, path core.Path, tree codec.Tree) error

	// Delete removes the document at path. Deleting an absent document
	// is not an error.
	Delete(ctx context.Context, col core.Collection, path core.Path) error

	// ListUnder yields every stored path whose joined form starts with
	// the joined form of prefix. The sequence is finite and may be
	// iterated more than once; each iteration queries the backend again.
	// A failure is yielded once as the final element.
	ListUnder(ctx context.Context, col core.Collection, prefix core.Path) iter.Seq2[core.Path, error]

	// Ping verifies that the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases the backend's resources.
	Close() error
}
