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
	"errors"
	"fmt"
)

var (
	// ErrDecode is the root of every decoding failure.
	ErrDecode = errors.New("decode failed")

	// ErrEncode is the root of every encoding failure.
	ErrEncode = errors.New("encode failed")

	// ErrMissingField indicates a required field absent from the tree.
	ErrMissingField = errors.New("missing required field")

	// ErrMalformedEnvelope indicates a polymorphic value without a usable discriminator.
	ErrMalformedEnvelope = errors.New("malformed polymorphic envelope")

	// ErrUnknownFormat indicates an unsupported text format name.
	ErrUnknownFormat = errors.New("unknown format")
)

// DecodeError reports where in the tree decoding failed.
type DecodeError struct {
	// Path is the dotted field path, empty for the document root.
	Path string
	Err  error
}

func (e *DecodeError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("decode: %v", e.Err)
	}
	return fmt.Sprintf("decode %s: %v", e.Path, e.Err)
}

// Unwrap exposes both ErrDecode and the underlying cause to errors.Is.
func (e *DecodeError) Unwrap() []error {
	return []error{ErrDecode, e.Err}
}

func decodeErr(path string, err error) error {
	var de *DecodeError
	if errors.As(err, &de) {
		return err
	}
	return &DecodeError{Path: path, Err: err}
}
