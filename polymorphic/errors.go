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


package polymorphic

import (
	"errors"
	"fmt"
	"reflect"
)

var (
	// ErrFrozen is returned when registering into a frozen registry.
	ErrFrozen = errors.New("polymorphic: registry is frozen")

	// ErrNotInterface indicates a base type that is not an interface.
	ErrNotInterface = errors.New("polymorphic: base is not an interface")

	// ErrNotImplemented indicates a variant that does not implement its base.
	ErrNotImplemented = errors.New("polymorphic: variant does not implement base")

	// ErrDuplicateTag indicates a tag already registered for the same base.
	ErrDuplicateTag = errors.New("polymorphic: duplicate tag")

	// ErrDuplicateType indicates a variant type registered twice.
	ErrDuplicateType = errors.New("polymorphic: duplicate variant type")

	// ErrInvalidTag indicates an empty tag.
	ErrInvalidTag = errors.New("polymorphic: invalid tag")

	// ErrUnregisteredType is returned by TagFor for values whose runtime
	// type was never registered.
	ErrUnregisteredType = errors.New("polymorphic: unregistered variant type")

	// ErrUnknownVariant is returned when a discriminator has no registered
	// variant for the requested base.
	ErrUnknownVariant = errors.New("polymorphic: unknown variant")
)

// UnknownVariantError carries the base and tag of a failed lookup.
type UnknownVariantError struct {
	Base reflect.Type
	Tag  string
}

func (e *UnknownVariantError) Error() string {
	return fmt.Sprintf("polymorphic: unknown variant %q for %s", e.Tag, e.Base)
}

func (e *UnknownVariantError) Unwrap() error {
	return ErrUnknownVariant
}
