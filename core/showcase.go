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

import "github.com/poiesic/docket/polymorphic"

// Showcase is a document made only of polymorphic lists.
type Showcase struct {
	Animals   []Animal   `doc:"animals,optional"`
	Computers []Computer `doc:"computers,optional"`
}

// SampleShowcase returns the stock sample: a laptop, a server and a dog.
func SampleShowcase() *Showcase {
	return &Showcase{
		Animals: []Animal{
			Dog{Pet: Pet{PetName: "Rex"}, GoodBoy: true},
		},
		Computers: []Computer{
			&Laptop{
				Specs:          Specs{Brand: "Apple", Model: "MacBook Pro", Price: 2499.99, RAMGB: 16},
				WeightKg:       1.4,
				BatteryLifeHrs: 12,
				StorageGB:      512,
			},
			&Server{
				Specs:         Specs{Brand: "Dell", Model: "PowerEdge R750", Price: 4999.99, RAMGB: 64},
				CPUCores:      24,
				IsRackMounted: true,
			},
		},
	}
}

// RegisterVariants registers every polymorphic variant of the domain.
func RegisterVariants(r *polymorphic.Registry) error {
	registrations := []func() error{
		func() error { return polymorphic.Register[Computer, *Laptop](r, "Laptop") },
		func() error { return polymorphic.Register[Computer, *Desktop](r, "Desktop") },
		func() error { return polymorphic.Register[Computer, *Server](r, "Server") },
		func() error { return polymorphic.Register[Animal, Dog](r, "Dog") },
		func() error { return polymorphic.Register[Animal, Cat](r, "Cat") },
	}
	for _, register := range registrations {
		if err := register(); err != nil {
			return err
		}
	}
	return nil
}

// NewRegistry returns a frozen registry holding the domain variants.
func NewRegistry() *polymorphic.Registry {
	r := polymorphic.NewRegistry()
	if err := RegisterVariants(r); err != nil {
		// the variant table is static; failure is a programming error
		panic(err)
	}
	r.Freeze()
	return r
}
