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
	"slices"
	"strings"

	"github.com/google/uuid"
)

// PathSeparator joins path segments into their flat string form.
const PathSeparator = ":"

// Path is an immutable hierarchical key identifying one document inside a
// collection. The zero value is the root path and matches every document
// when used as a listing prefix.
type Path struct {
	segments []string
}

// Of builds a Path from the given segments.
// Every segment must be non-empty and must not contain PathSeparator.
func Of(segments ...string) (Path, error) {
	for i, s := range segments {
		if err := validateSegment(s); err != nil {
			return Path{}, fmt.Errorf("%w: segment %d: %w", ErrInvalidPath, i, err)
		}
	}
	return Path{segments: slices.Clone(segments)}, nil
}

// MustOf is like Of but panics on invalid segments. Intended for
// package-level constants and tests.
func MustOf(segments ...string) Path {
	p, err := Of(segments...)
	if err != nil {
		panic(err)
	}
	return p
}

// ParsePath splits a joined path back into segments.
// The empty string parses to the root path.
func ParsePath(joined string) (Path, error) {
	if joined == "" {
		return Path{}, nil
	}
	return Of(strings.Split(joined, PathSeparator)...)
}

// Join returns the flat string form used for file names and key columns.
func (p Path) Join() string {
	return strings.Join(p.segments, PathSeparator)
}

// String implements fmt.Stringer.
func (p Path) String() string {
	return p.Join()
}

// Segments returns a copy of the path segments.
func (p Path) Segments() []string {
	return slices.Clone(p.segments)
}

// Len returns the number of segments.
func (p Path) Len() int {
	return len(p.segments)
}

// IsRoot reports whether the path has no segments.
func (p Path) IsRoot() bool {
	return len(p.segments) == 0
}

// Sub returns a child path with the given segments appended.
func (p Path) Sub(segments ...string) (Path, error) {
	child, err := Of(segments...)
	if err != nil {
		return Path{}, err
	}
	return p.Append(child), nil
}

// Append returns a new path made of p followed by other.
func (p Path) Append(other Path) Path {
	segs := make([]string, 0, len(p.segments)+len(other.segments))
	segs = append(segs, p.segments...)
	segs = append(segs, other.segments...)
	return Path{segments: segs}
}

// Equal reports whether both paths have identical segment sequences.
func (p Path) Equal(other Path) bool {
	return slices.Equal(p.segments, other.segments)
}

// HasPrefix reports whether the joined form of p starts with the joined
// form of prefix. Matching is on the flat string, so "ab" is under "a".
func (p Path) HasPrefix(prefix Path) bool {
	return strings.HasPrefix(p.Join(), prefix.Join())
}

// ToUUID interprets the joined path as a UUID. Only the canonical
// lower-case 36-character form is accepted, so the id maps back to the
// same path.
func (p Path) ToUUID() (uuid.UUID, error) {
	joined := p.Join()
	id, err := uuid.Parse(joined)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %q is not a uuid: %w", ErrInvalidKey, joined, err)
	}
	if id.String() != joined {
		return uuid.Nil, fmt.Errorf("%w: %q is not a canonical uuid", ErrInvalidKey, joined)
	}
	return id, nil
}

// PathOfUUID returns the single-segment path for a UUID key.
func PathOfUUID(id uuid.UUID) Path {
	return Path{segments: []string{id.String()}}
}

func validateSegment(s string) error {
	if s == "" {
		return ErrEmptySegment
	}
	if strings.Contains(s, PathSeparator) {
		return fmt.Errorf("%q contains %q", s, PathSeparator)
	}
	return nil
}
