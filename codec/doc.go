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


// Package codec converts aggregates to and from backend-neutral trees.
//
// A Tree is a map of scalars, []any and nested maps. Backends persist trees
// through a Format (JSON or YAML text); they never look inside them. The
// Serializer maps Go values onto trees field by field, using the `doc`
// struct tag:
//
//	type Specs struct {
//	    Brand string `doc:"brand"`
//	    Model string `doc:"model,optional"`
//	}
//
// Fields are required on decode unless tagged optional. Unknown keys in a
// tree are ignored. Interface-typed fields whose type is a registered
// polymorphic base are written as an envelope:
//
//	{"type": "Laptop", "fields": {"brand": "Apple", "ramGB": 16}}
//
// and resolved back to the concrete variant through the registry.
package codec
