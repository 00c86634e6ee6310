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


package codec

import (
	"encoding"
	"fmt"
	"maps"
	"reflect"
	"strconv"
	"strings"
	"sync"

	"github.com/go-viper/mapstructure/v2"
	"github.com/poiesic/docket/polymorphic"
)

const (
	// TagName is the struct tag read by the serializer.
	TagName = "doc"
	// TypeKey holds the discriminator inside a polymorphic envelope.
	TypeKey = "type"
	// FieldsKey holds the variant's own tree inside a polymorphic envelope.
	FieldsKey = "fields"
)

var (
	textMarshalerType   = reflect.TypeFor[encoding.TextMarshaler]()
	textUnmarshalerType = reflect.TypeFor[encoding.TextUnmarshaler]()
)

// Serializer maps Go values onto trees. It is safe for concurrent use.
type Serializer struct {
	registry *polymorphic.Registry
	fields   sync.Map // reflect.Type -> []fieldInfo
}

// NewSerializer creates a serializer resolving polymorphic fields through
// registry. A nil registry disables envelope handling.
func NewSerializer(registry *polymorphic.Registry) *Serializer {
	return &Serializer{registry: registry}
}

// Registry returns the registry the serializer resolves variants with.
func (s *Serializer) Registry() *polymorphic.Registry {
	return s.registry
}

// Encode converts v, a struct, map or pointer to either, into a tree.
func (s *Serializer) Encode(v any) (Tree, error) {
	out, err := s.encode(reflect.ValueOf(v), "")
	if err != nil {
		return nil, err
	}
	tree, ok := out.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: %T does not encode to a tree", ErrEncode, v)
	}
	return tree, nil
}

// Decode replaces the value target points to with one built from tree.
// The value is assembled from scratch, so nothing already held in target
// survives, and target is left untouched when decoding fails.
func (s *Serializer) Decode(tree Tree, target any) error {
	rv := reflect.ValueOf(target)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return decodeErr("", fmt.Errorf("target must be a non-nil pointer, got %T", target))
	}
	if tree == nil {
		return decodeErr("", fmt.Errorf("nil tree"))
	}
	fresh := reflect.New(rv.Elem().Type())
	if err := s.decode(tree, fresh.Interface(), ""); err != nil {
		return err
	}
	rv.Elem().Set(fresh.Elem())
	return nil
}

// DecodeAs decodes tree into a fresh V. Pointer types get a newly
// allocated pointee.
func DecodeAs[V any](s *Serializer, tree Tree) (V, error) {
	var zero V
	t := reflect.TypeFor[V]()
	if t.Kind() == reflect.Pointer {
		ptr := reflect.New(t.Elem())
		if err := s.Decode(tree, ptr.Interface()); err != nil {
			return zero, err
		}
		return ptr.Interface().(V), nil
	}
	var out V
	if err := s.Decode(tree, &out); err != nil {
		return zero, err
	}
	return out, nil
}

// Clone returns a deep copy of v made by encoding and decoding it.
func Clone[V any](s *Serializer, v V) (V, error) {
	tree, err := s.Encode(v)
	if err != nil {
		var zero V
		return zero, err
	}
	return DecodeAs[V](s, tree)
}

// ──────────────────────────────────────────────────
// Encoding
// ──────────────────────────────────────────────────

func (s *Serializer) encode(v reflect.Value, path string) (any, error) {
	if !v.IsValid() {
		return nil, nil
	}
	switch v.Kind() {
	case reflect.Interface:
		if v.IsNil() {
			return nil, nil
		}
		if s.registry != nil && s.registry.IsBase(v.Type()) {
			return s.encodeVariant(v, path)
		}
		return s.encode(v.Elem(), path)
	case reflect.Pointer:
		if v.IsNil() {
			return nil, nil
		}
	}

	if text, ok, err := marshalText(v); ok {
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrEncode, displayPath(path), err)
		}
		return text, nil
	}

	switch v.Kind() {
	case reflect.Pointer:
		return s.encode(v.Elem(), path)
	case reflect.Struct:
		out := make(map[string]any)
		if err := s.encodeFields(v, path, out); err != nil {
			return nil, err
		}
		return out, nil
	case reflect.Map:
		if v.Type().Key().Kind() != reflect.String {
			return nil, fmt.Errorf("%w: %s: map key must be a string, got %s", ErrEncode, displayPath(path), v.Type().Key())
		}
		if v.IsNil() {
			return nil, nil
		}
		out := make(map[string]any, v.Len())
		iter := v.MapRange()
		for iter.Next() {
			key := iter.Key().String()
			val, err := s.encode(iter.Value(), joinPath(path, key))
			if err != nil {
				return nil, err
			}
			out[key] = val
		}
		return out, nil
	case reflect.Slice:
		if v.IsNil() {
			return nil, nil
		}
		return s.encodeList(v, path)
	case reflect.Array:
		return s.encodeList(v, path)
	case reflect.Bool:
		return v.Bool(), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int(), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return v.Uint(), nil
	case reflect.Float32, reflect.Float64:
		return v.Float(), nil
	case reflect.String:
		return v.String(), nil
	}
	return nil, fmt.Errorf("%w: %s: unsupported kind %s", ErrEncode, displayPath(path), v.Kind())
}

func (s *Serializer) encodeList(v reflect.Value, path string) (any, error) {
	out := make([]any, v.Len())
	for i := range out {
		item, err := s.encode(v.Index(i), fmt.Sprintf("%s[%d]", path, i))
		if err != nil {
			return nil, err
		}
		out[i] = item
	}
	return out, nil
}

func (s *Serializer) encodeFields(v reflect.Value, path string, out map[string]any) error {
	for _, f := range s.fieldsOf(v.Type()) {
		fv := v.Field(f.Index)
		if f.Squash {
			if fv.Kind() == reflect.Pointer {
				if fv.IsNil() {
					continue
				}
				fv = fv.Elem()
			}
			if err := s.encodeFields(fv, path, out); err != nil {
				return err
			}
			continue
		}
		val, err := s.encode(fv, joinPath(path, f.Name))
		if err != nil {
			return err
		}
		out[f.Name] = val
	}
	return nil
}

func (s *Serializer) encodeVariant(v reflect.Value, path string) (any, error) {
	variant, err := s.registry.VariantOf(v.Elem().Interface())
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrEncode, displayPath(path), err)
	}
	if variant.Base != v.Type() {
		return nil, fmt.Errorf("%w: %s: %w: %s is registered for %s, not %s",
			ErrEncode, displayPath(path), polymorphic.ErrUnregisteredType, variant.Type, variant.Base, v.Type())
	}
	fields, err := s.encode(v.Elem(), path)
	if err != nil {
		return nil, err
	}
	return map[string]any{TypeKey: variant.Tag, FieldsKey: fields}, nil
}

func marshalText(v reflect.Value) (string, bool, error) {
	if !v.CanInterface() {
		return "", false, nil
	}
	m, ok := v.Interface().(encoding.TextMarshaler)
	if !ok && v.CanAddr() && v.Addr().Type().Implements(textMarshalerType) {
		m, ok = v.Addr().Interface().(encoding.TextMarshaler)
	}
	if !ok {
		return "", false, nil
	}
	b, err := m.MarshalText()
	return string(b), true, err
}

// ──────────────────────────────────────────────────
// Decoding
// ──────────────────────────────────────────────────

func (s *Serializer) decode(data any, target any, path string) error {
	prepared, err := s.prepare(reflect.TypeOf(target), data, path)
	if err != nil {
		return err
	}

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			numberToTextHook,
			mapstructure.TextUnmarshallerHookFunc(),
		),
		TagName: TagName,
		Squash:  true,
		Result:  target,
	})
	if err != nil {
		return decodeErr(path, err)
	}
	if err := dec.Decode(prepared); err != nil {
		return decodeErr(path, err)
	}
	return nil
}

// prepare walks data alongside t, enforcing required fields and replacing
// every polymorphic envelope with its decoded variant, so the structural
// decoder only ever assigns concrete values to interface slots. data is
// copied where it changes, never modified.
func (s *Serializer) prepare(t reflect.Type, data any, path string) (any, error) {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if data == nil {
		return nil, nil
	}
	switch t.Kind() {
	case reflect.Interface:
		if s.registry == nil || !s.registry.IsBase(t) {
			return data, nil
		}
		return s.resolveVariant(t, data, path)
	case reflect.Struct:
		m, ok := data.(map[string]any)
		if !ok || isTextType(t) {
			// shape mismatches are reported by the decoder
			return data, nil
		}
		out := maps.Clone(m)
		if err := s.prepareFields(t, m, out, path); err != nil {
			return nil, err
		}
		return out, nil
	case reflect.Slice, reflect.Array:
		items, ok := data.([]any)
		if !ok {
			return data, nil
		}
		out := make([]any, len(items))
		for i, item := range items {
			v, err := s.prepare(t.Elem(), item, fmt.Sprintf("%s[%d]", path, i))
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	case reflect.Map:
		m, ok := data.(map[string]any)
		if !ok {
			return data, nil
		}
		out := make(map[string]any, len(m))
		for k, item := range m {
			v, err := s.prepare(t.Elem(), item, joinPath(path, k))
			if err != nil {
				return nil, err
			}
			out[k] = v
		}
		return out, nil
	}
	return data, nil
}

// prepareFields handles the fields of struct t read from in, writing the
// prepared values to out. Squashed structs share the same maps.
func (s *Serializer) prepareFields(t reflect.Type, in, out map[string]any, path string) error {
	for _, f := range s.fieldsOf(t) {
		ft := t.Field(f.Index).Type
		if f.Squash {
			for ft.Kind() == reflect.Pointer {
				ft = ft.Elem()
			}
			if err := s.prepareFields(ft, in, out, path); err != nil {
				return err
			}
			continue
		}
		key, val, ok := lookup(in, f.Name)
		if !ok {
			if f.Optional {
				continue
			}
			return decodeErr(joinPath(path, f.Name), ErrMissingField)
		}
		v, err := s.prepare(ft, val, joinPath(path, f.Name))
		if err != nil {
			return err
		}
		out[key] = v
	}
	return nil
}

func (s *Serializer) resolveVariant(base reflect.Type, in any, path string) (any, error) {
	env, ok := in.(map[string]any)
	if !ok {
		return nil, decodeErr(path, fmt.Errorf("%w: expected object, got %T", ErrMalformedEnvelope, in))
	}
	tag, ok := env[TypeKey].(string)
	if !ok || tag == "" {
		return nil, decodeErr(path, fmt.Errorf("%w: missing %q", ErrMalformedEnvelope, TypeKey))
	}
	variant, err := s.registry.VariantFor(base, tag)
	if err != nil {
		return nil, decodeErr(path, err)
	}
	fields, ok := env[FieldsKey]
	if !ok || fields == nil {
		fields = map[string]any{}
	}

	ptr := variant.New()
	if err := s.decode(fields, ptr.Interface(), path+"<"+tag+">"); err != nil {
		return nil, err
	}
	return variant.Value(ptr).Interface(), nil
}

// numberToTextHook renders numeric scalars as text for fields decoded
// through encoding.TextUnmarshaler, so a hand-written `balance: 100`
// reads like `balance: "100"`.
func numberToTextHook(_ reflect.Type, to reflect.Type, data any) (any, error) {
	if !to.Implements(textUnmarshalerType) && !reflect.PointerTo(to).Implements(textUnmarshalerType) {
		return data, nil
	}
	v := reflect.ValueOf(data)
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(v.Int(), 10), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(v.Uint(), 10), nil
	case reflect.Float32, reflect.Float64:
		return strconv.FormatFloat(v.Float(), 'f', -1, v.Type().Bits()), nil
	}
	return data, nil
}

// ──────────────────────────────────────────────────
// Field metadata
// ──────────────────────────────────────────────────

type fieldInfo struct {
	Index    int
	Name     string
	Optional bool
	// Squash marks an untagged embedded struct whose fields are inlined.
	Squash bool
}

func (s *Serializer) fieldsOf(t reflect.Type) []fieldInfo {
	if cached, ok := s.fields.Load(t); ok {
		return cached.([]fieldInfo)
	}
	var out []fieldInfo
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		tag := f.Tag.Get(TagName)
		if tag == "-" {
			continue
		}
		name, opts, _ := strings.Cut(tag, ",")
		if f.Anonymous && name == "" {
			et := f.Type
			if et.Kind() == reflect.Pointer {
				et = et.Elem()
			}
			if et.Kind() == reflect.Struct && !isTextType(et) {
				out = append(out, fieldInfo{Index: i, Squash: true})
				continue
			}
		}
		if !f.IsExported() {
			continue
		}
		if name == "" {
			name = lowerFirst(f.Name)
		}
		out = append(out, fieldInfo{Index: i, Name: name, Optional: hasOption(opts, "optional")})
	}
	s.fields.Store(t, out)
	return out
}

func isTextType(t reflect.Type) bool {
	return t.Implements(textUnmarshalerType) || reflect.PointerTo(t).Implements(textUnmarshalerType)
}

func hasOption(opts, want string) bool {
	for _, o := range strings.Split(opts, ",") {
		if strings.TrimSpace(o) == want {
			return true
		}
	}
	return false
}

// lookup finds name in m, falling back to a case-insensitive match, and
// returns the key actually present.
func lookup(m map[string]any, name string) (string, any, bool) {
	if v, ok := m[name]; ok {
		return name, v, true
	}
	for k, v := range m {
		if strings.EqualFold(k, name) {
			return k, v, true
		}
	}
	return "", nil, false
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}

func joinPath(path, name string) string {
	if path == "" {
		return name
	}
	return path + "." + name
}

func displayPath(path string) string {
	if path == "" {
		return "<root>"
	}
	return path
}
