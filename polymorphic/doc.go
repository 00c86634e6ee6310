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


// Package polymorphic maps discriminator tags to concrete variant types.
//
// A polymorphic base is a Go interface type; its variants are the concrete
// types registered against it under a tag. The registry is populated once
// at startup and then frozen:
//
//	reg := polymorphic.NewRegistry()
//	_ = polymorphic.Register[core.Computer, *core.Laptop](reg, "Laptop")
//	reg.Freeze()
//
// After Freeze the registry is immutable, so lookups from concurrent
// decoders need no locking and always see the same table.
package polymorphic
