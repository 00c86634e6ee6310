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
	"strings"
)

// Computer is the polymorphic base for the computer variants.
type Computer interface {
	Hardware() *Specs
	// Kind is the human readable category, e.g. "Desktop PC".
	Kind() string
	Boot() string
	PerformTask(task string) string
}

// Portable is implemented by computers that run on battery.
type Portable interface {
	Weight() float64
	BatteryLife() int
}

// Upgradeable is implemented by computers whose memory and storage can grow.
type Upgradeable interface {
	UpgradeRAM(additionalGB int) error
	UpgradeStorage(additionalGB int) error
}

// IsPortable reports whether p is light enough to carry around (under 5 kg).
func IsPortable(p Portable) bool {
	return p.Weight() < 5.0
}

// PerformUpgrade dispatches a named upgrade to u.
func PerformUpgrade(u Upgradeable, component string, amount int) error {
	switch strings.ToLower(component) {
	case "ram":
		return u.UpgradeRAM(amount)
	case "storage":
		return u.UpgradeStorage(amount)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownComponent, component)
	}
}

// Specs holds the fields shared by every computer.
type Specs struct {
	Brand string  `doc:"brand"`
	Model string  `doc:"model,optional"`
	Price float64 `doc:"price,optional"`
	RAMGB int     `doc:"ramGB"`
}

func (s *Specs) Hardware() *Specs { return s }

func (s *Specs) String() string {
	return fmt.Sprintf("Brand: %s, Model: %s, RAM: %dGB, Price: $%.2f", s.Brand, s.Model, s.RAMGB, s.Price)
}

func upgrade(field *int, amount int) error {
	if amount <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidUpgrade, amount)
	}
	*field += amount
	return nil
}

// Laptop is a portable, upgradeable computer.
type Laptop struct {
	Specs
	WeightKg       float64 `doc:"weightKg,optional"`
	BatteryLifeHrs int     `doc:"batteryLife,optional"`
	StorageGB      int     `doc:"storageGB,optional"`
}

var (
	_ Computer    = (*Laptop)(nil)
	_ Portable    = (*Laptop)(nil)
	_ Upgradeable = (*Laptop)(nil)
)

func (l *Laptop) Kind() string { return "Laptop" }

func (l *Laptop) Boot() string {
	return fmt.Sprintf("Laptop %s is booting with power management...", l.Model)
}

func (l *Laptop) PerformTask(task string) string {
	return fmt.Sprintf("%s is performing: %s (battery remaining: %d hours)", l.Kind(), task, l.BatteryLifeHrs)
}

func (l *Laptop) Weight() float64  { return l.WeightKg }
func (l *Laptop) BatteryLife() int { return l.BatteryLifeHrs }

func (l *Laptop) UpgradeRAM(additionalGB int) error     { return upgrade(&l.RAMGB, additionalGB) }
func (l *Laptop) UpgradeStorage(additionalGB int) error { return upgrade(&l.StorageGB, additionalGB) }

// Desktop is an upgradeable computer that stays on the desk.
type Desktop struct {
	Specs
	StorageGB      int  `doc:"storageGB,optional"`
	HasRGBLighting bool `doc:"hasRGBLighting,optional"`
}

var (
	_ Computer    = (*Desktop)(nil)
	_ Upgradeable = (*Desktop)(nil)
)

func (d *Desktop) Kind() string { return "Desktop PC" }

func (d *Desktop) Boot() string {
	msg := fmt.Sprintf("Desktop %s is booting with full power...", d.Model)
	if d.HasRGBLighting {
		msg += " RGB lighting activated!"
	}
	return msg
}

func (d *Desktop) PerformTask(task string) string {
	return fmt.Sprintf("%s is performing: %s (high performance mode)", d.Kind(), task)
}

func (d *Desktop) UpgradeRAM(additionalGB int) error     { return upgrade(&d.RAMGB, additionalGB) }
func (d *Desktop) UpgradeStorage(additionalGB int) error { return upgrade(&d.StorageGB, additionalGB) }

// Server is a rack computer serving many clients.
type Server struct {
	Specs
	CPUCores      int  `doc:"cpuCores,optional"`
	IsRackMounted bool `doc:"isRackMounted,optional"`
}

var _ Computer = (*Server)(nil)

func (s *Server) Kind() string { return "Enterprise Server" }

func (s *Server) Boot() string {
	return fmt.Sprintf("Server %s is initializing enterprise services (cores: %d, rack-mounted: %t)", s.Model, s.CPUCores, s.IsRackMounted)
}

func (s *Server) PerformTask(task string) string {
	return fmt.Sprintf("%s is performing: %s (utilizing %d cores)", s.Kind(), task, s.CPUCores)
}

// HandleClients describes the server's load for the given number of clients.
func (s *Server) HandleClients(count int) string {
	return fmt.Sprintf("Server handling %d concurrent clients", count)
}
