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

import (
	"fmt"
	"strings"
)

// Collection is a named partition of the key space. KeyLength fixes the
// length of the joined key for every document in it; zero disables the
// check.
type Collection struct {
	Name      string
	KeyLength int
}

// Users holds one document per player, keyed by the 36-character UUID.
var Users = Collection{Name: "users", KeyLength: 36}

// Showcases holds the polymorphic sample documents.
var Showcases = Collection{Name: "showcases"}

// Validate checks the collection name. Names end up in table names,
// directory names and key prefixes, so they are restricted to lower-case
// letters and digits.
func (c Collection) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidCollection)
	}
	if strings.IndexFunc(c.Name, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	}) >= 0 {
		return fmt.Errorf("%w: %q", ErrInvalidCollection, c.Name)
	}
	if c.KeyLength < 0 {
		return fmt.Errorf("%w: negative key length", ErrInvalidCollection)
	}
	return nil
}

// CheckKey verifies that path satisfies the collection's key contract.
func (c Collection) CheckKey(path Path) error {
	if path.IsRoot() {
		return fmt.Errorf("%w: empty key in %s", ErrInvalidKey, c.Name)
	}
	if c.KeyLength > 0 && len(path.Join()) != c.KeyLength {
		return fmt.Errorf("%w: %s expects %d characters, got %q", ErrInvalidKey, c.Name, c.KeyLength, path.Join())
	}
	return nil
}

func (c Collection) String() string {
	return c.Name
}
