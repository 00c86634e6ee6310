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
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Tree is the encoded form of a document.
type Tree = map[string]any

// Format turns trees into human-readable text and back.
type Format interface {
	// Name returns the format identifier used in configuration.
	Name() string
	// Extension returns the file extension including the dot.
	Extension() string
	Marshal(tree Tree) ([]byte, error)
	Unmarshal(data []byte) (Tree, error)
}

var (
	// JSON is compact JSON, used for key-value and relational backends.
	JSON Format = jsonFormat{}

	// PrettyJSON is indented JSON, used for flat files.
	PrettyJSON Format = jsonFormat{indent: true}

	// YAML is block-style YAML.
	YAML Format = yamlFormat{}
)

// FormatByName resolves "json" or "yaml" (also "yml"), case-insensitively.
// JSON resolves to the indented variant since names come from flat-file
// configuration.
func FormatByName(name string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "json":
		return PrettyJSON, nil
	case "yaml", "yml":
		return YAML, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, name)
	}
}

type jsonFormat struct {
	indent bool
}

func (jsonFormat) Name() string      { return "json" }
func (jsonFormat) Extension() string { return ".json" }

func (f jsonFormat) Marshal(tree Tree) ([]byte, error) {
	var (
		data []byte
		err  error
	)
	if f.indent {
		data, err = json.MarshalIndent(tree, "", "  ")
	} else {
		data, err = json.Marshal(tree)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: json: %w", ErrEncode, err)
	}
	return data, nil
}

func (jsonFormat) Unmarshal(data []byte) (Tree, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var tree Tree
	if err := dec.Decode(&tree); err != nil {
		return nil, decodeErr("", fmt.Errorf("json: %w", err))
	}
	if tree == nil {
		return nil, decodeErr("", fmt.Errorf("json: document is not an object"))
	}
	return tree, nil
}

type yamlFormat struct{}

func (yamlFormat) Name() string      { return "yaml" }
func (yamlFormat) Extension() string { return ".yml" }

func (yamlFormat) Marshal(tree Tree) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(tree); err != nil {
		return nil, fmt.Errorf("%w: yaml: %w", ErrEncode, err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("%w: yaml: %w", ErrEncode, err)
	}
	return buf.Bytes(), nil
}

func (yamlFormat) Unmarshal(data []byte) (Tree, error) {
	var tree Tree
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return nil, decodeErr("", fmt.Errorf("yaml: %w", err))
	}
	if tree == nil {
		return nil, decodeErr("", fmt.Errorf("yaml: empty document"))
	}
	return tree, nil
}
