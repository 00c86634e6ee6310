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
	"fmt"
	"reflect"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
)

// Variant describes one concrete type registered under a base.
type Variant struct {
	Tag  string
	Base reflect.Type
	// Type is the concrete type stored in the base interface, e.g. *Laptop.
	Type reflect.Type
}

// New allocates a pointer to a zero instance of the variant's underlying
// type, suitable as a decode target.
func (v *Variant) New() reflect.Value {
	if v.Type.Kind() == reflect.Pointer {
		return reflect.New(v.Type.Elem())
	}
	return reflect.New(v.Type)
}

// Value converts a pointer returned by New into a value of Type.
func (v *Variant) Value(ptr reflect.Value) reflect.Value {
	if v.Type.Kind() == reflect.Pointer {
		return ptr
	}
	return ptr.Elem()
}

// Registry is a bidirectional tag <-> variant table.
type Registry struct {
	mu     sync.RWMutex
	frozen atomic.Bool
	byType map[reflect.Type]*Variant
	byBase map[reflect.Type]map[string]*Variant
}

// NewRegistry creates an empty, unfrozen registry.
func NewRegistry() *Registry {
	return &Registry{
		byType: make(map[reflect.Type]*Variant),
		byBase: make(map[reflect.Type]map[string]*Variant),
	}
}

// Register records V as the variant of base B tagged tag.
func Register[B, V any](r *Registry, tag string) error {
	return r.Register(tag, reflect.TypeFor[B](), reflect.TypeFor[V]())
}

// MustRegister is like Register but panics on error.
func MustRegister[B, V any](r *Registry, tag string) {
	if err := Register[B, V](r, tag); err != nil {
		panic(err)
	}
}

// Register records typ as the variant of base tagged tag.
func (r *Registry) Register(tag string, base, typ reflect.Type) error {
	if strings.TrimSpace(tag) == "" {
		return ErrInvalidTag
	}
	if base == nil || base.Kind() != reflect.Interface {
		return fmt.Errorf("%w: %v", ErrNotInterface, base)
	}
	if typ == nil || typ.Kind() == reflect.Interface || !typ.Implements(base) {
		return fmt.Errorf("%w: %v does not implement %v", ErrNotImplemented, typ, base)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.frozen.Load() {
		return ErrFrozen
	}
	if existing, ok := r.byType[typ]; ok {
		return fmt.Errorf("%w: %v already registered as %q", ErrDuplicateType, typ, existing.Tag)
	}
	tags := r.byBase[base]
	if tags == nil {
		tags = make(map[string]*Variant)
		r.byBase[base] = tags
	}
	if _, ok := tags[tag]; ok {
		return fmt.Errorf("%w: %q for %v", ErrDuplicateTag, tag, base)
	}

	v := &Variant{Tag: tag, Base: base, Type: typ}
	tags[tag] = v
	r.byType[typ] = v
	return nil
}

// Freeze closes the registry for registration.
func (r *Registry) Freeze() {
	r.mu.Lock()
	r.frozen.Store(true)
	r.mu.Unlock()
}

// Frozen reports whether Freeze has been called.
func (r *Registry) Frozen() bool {
	return r.frozen.Load()
}

// TagFor returns the discriminator of value's runtime type.
func (r *Registry) TagFor(value any) (string, error) {
	if value == nil {
		return "", fmt.Errorf("%w: nil value", ErrUnregisteredType)
	}
	v, ok := r.lookupType(reflect.TypeOf(value))
	if !ok {
		return "", fmt.Errorf("%w: %T", ErrUnregisteredType, value)
	}
	return v.Tag, nil
}

// VariantOf returns the variant registered for value's runtime type.
func (r *Registry) VariantOf(value any) (*Variant, error) {
	if value == nil {
		return nil, fmt.Errorf("%w: nil value", ErrUnregisteredType)
	}
	v, ok := r.lookupType(reflect.TypeOf(value))
	if !ok {
		return nil, fmt.Errorf("%w: %T", ErrUnregisteredType, value)
	}
	return v, nil
}

// VariantFor resolves a discriminator for the given base.
// A tag registered only under a different base is still unknown.
func (r *Registry) VariantFor(base reflect.Type, tag string) (*Variant, error) {
	if !r.frozen.Load() {
		r.mu.RLock()
		defer r.mu.RUnlock()
	}
	if v, ok := r.byBase[base][tag]; ok {
		return v, nil
	}
	return nil, &UnknownVariantError{Base: base, Tag: tag}
}

// IsBase reports whether t has at least one registered variant.
func (r *Registry) IsBase(t reflect.Type) bool {
	if !r.frozen.Load() {
		r.mu.RLock()
		defer r.mu.RUnlock()
	}
	return len(r.byBase[t]) > 0
}

// Variants lists the variants of base ordered by tag.
func (r *Registry) Variants(base reflect.Type) []*Variant {
	if !r.frozen.Load() {
		r.mu.RLock()
		defer r.mu.RUnlock()
	}
	out := make([]*Variant, 0, len(r.byBase[base]))
	for _, v := range r.byBase[base] {
		out = append(out, v)
	}
	slices.SortFunc(out, func(a, b *Variant) int { return strings.Compare(a.Tag, b.Tag) })
	return out
}

// Bases lists every interface with at least one variant, ordered by name.
func (r *Registry) Bases() []reflect.Type {
	if !r.frozen.Load() {
		r.mu.RLock()
		defer r.mu.RUnlock()
	}
	out := make([]reflect.Type, 0, len(r.byBase))
	for base := range r.byBase {
		out = append(out, base)
	}
	slices.SortFunc(out, func(a, b reflect.Type) int { return strings.Compare(a.String(), b.String()) })
	return out
}

func (r *Registry) lookupType(t reflect.Type) (*Variant, bool) {
	if !r.frozen.Load() {
		r.mu.RLock()
		defer r.mu.RUnlock()
	}
	v, ok := r.byType[t]
	return v, ok
}
