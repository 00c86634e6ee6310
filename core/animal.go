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

// Animal is the polymorphic base for the animal variants.
type Animal interface {
	Name() string
	Speak() string
}

// Pet holds the fields shared by every animal.
type Pet struct {
	PetName string `doc:"name"`
}

func (p Pet) Name() string { return p.PetName }

// Dog is stored by value.
type Dog struct {
	Pet
	GoodBoy bool `doc:"goodBoy"`
}

func (Dog) Speak() string { return "Woof" }

// Cat is stored by value.
type Cat struct {
	Pet
	Indoor bool `doc:"indoor,optional"`
}

func (Cat) Speak() string { return "Meow" }

var (
	_ Animal = Dog{}
	_ Animal = Cat{}
)
