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
	"fmt"
	"strings"

	"github.com/poiesic/docket/codec"
	"github.com/poiesic/docket/core"
)

// MarshalTree serializes a tree for backends that store bytes.
func MarshalTree(tree codec.Tree) ([]byte, error) {
	return codec.JSON.Marshal(tree)
}

// UnmarshalTree deserializes bytes written by MarshalTree.
func UnmarshalTree(data []byte) (codec.Tree, error) {
	return codec.JSON.Unmarshal(data)
}

// CheckPrefix reports whether prefix can namespace tables, collections
// and keys: lower-case letters, digits and '-', starting with a letter or
// digit.
func CheckPrefix(prefix string) error {
	if prefix == "" {
		return fmt.Errorf("%w: empty prefix", ErrConfiguration)
	}
	if prefix[0] == '-' || strings.IndexFunc(prefix, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '-')
	}) >= 0 {
		return fmt.Errorf("%w: prefix %q must be lower-case letters, digits and '-'", ErrConfiguration, prefix)
	}
	return nil
}

// Namespace returns the name a backend uses for a collection under
// prefix, e.g. a table or collection name. '-' in the prefix becomes '_'
// and the two parts are joined by '_'. Prefixes never contain '_' and
// collection names never contain '-' or '_', so distinct pairs always
// get distinct names.
func Namespace(prefix string, col core.Collection) string {
	return strings.ReplaceAll(prefix, "-", "_") + "_" + col.Name
}

// ParseKey converts a stored key back into a path, reporting corrupt keys
// as i/o failures.
func ParseKey(key string) (core.Path, error) {
	p, err := core.ParsePath(key)
	if err != nil {
		return core.Path{}, fmt.Errorf("%w: stored key %q: %w", ErrIO, key, err)
	}
	return p, nil
}
