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


// Package storage defines the persistence abstraction for docket.
//
// A Backend stores opaque document trees under a (collection, path) pair.
// The DocumentStore layers a codec.Serializer on top so callers work with
// Go values instead of trees. Concrete backends live in subpackages:
//
//   - flat: one text file per document under a root directory
//   - sqlstore: MariaDB/MySQL, PostgreSQL and SQLite through database/sql
//   - badger: embedded BadgerDB
//   - mongostore: MongoDB
//   - redisstore: Redis
//
// # Usage
//
//	backend, err := flat.Open(dir, "bukkit-example", codec.YAML)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	store := storage.NewDocumentStore(backend, codec.NewSerializer(core.NewRegistry()))
//	defer store.Close()
//
// # Thread Safety
//
// Backends and the DocumentStore are safe for concurrent use. Backends make
// no ordering promise between concurrent writes to the same path; the
// repository package serializes those.
//
// # Errors
//
// Backends never retry. Pool checkout timeouts surface as
// ErrConnectionExhausted, every other driver or filesystem failure as ErrIO,
// and stored bytes that cannot be parsed as codec.ErrDecode.
package storage
