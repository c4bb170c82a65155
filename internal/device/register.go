// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package device

import (
	"fmt"
	"math"
)

// RegisterField names a RAPL model specific register read by the accessor
type RegisterField int

const (
	// PowerUnit is the unit-descriptor register holding the power, energy
	// and time scaling exponents
	PowerUnit RegisterField = iota
	// CoreEnergy is the per-core energy accumulator
	CoreEnergy
	// PackageEnergy is the package-wide energy accumulator
	PackageEnergy
)

func (f RegisterField) String() string {
	switch f {
	case PowerUnit:
		return "power-unit"
	case CoreEnergy:
		return "core-energy"
	case PackageEnergy:
		return "package-energy"
	default:
		return fmt.Sprintf("register(%d)", int(f))
	}
}

// UnitField describes where a scaling exponent lives inside the
// unit-descriptor register
type UnitField struct {
	Mask  uint64
	Shift uint
}

// Extract returns the exponent encoded in raw
func (u UnitField) Extract(raw uint64) uint64 {
	return (raw & u.Mask) >> u.Shift
}

// Multiplier returns 2^-exponent for the exponent encoded in raw
func (u UnitField) Multiplier(raw uint64) float64 {
	return math.Ldexp(1, -int(u.Extract(raw)))
}

// Layout binds every RegisterField to a register address and describes the
// bit layout of the unit-descriptor register. Supporting another vendor's
// register layout is a new Layout value, not a code change.
type Layout struct {
	Name      string
	Registers map[RegisterField]uint64

	EnergyUnit UnitField
	PowerUnit  UnitField
	TimeUnit   UnitField
}

// AMDLayout is the RAPL register layout of AMD family 17h and newer processors
var AMDLayout = Layout{
	Name: "amd",
	Registers: map[RegisterField]uint64{
		PowerUnit:     0xC0010299, // MSR_RAPL_PWR_UNIT
		CoreEnergy:    0xC001029A, // MSR_CORE_ENERGY_STAT
		PackageEnergy: 0xC001029B, // MSR_PKG_ENERGY_STAT
	},
	EnergyUnit: UnitField{Mask: 0x1F00, Shift: 8},   // bits 12:8
	PowerUnit:  UnitField{Mask: 0xF, Shift: 0},      // bits 3:0
	TimeUnit:   UnitField{Mask: 0xF0000, Shift: 16}, // bits 19:16
}

// Address returns the register address bound to field
func (l Layout) Address(field RegisterField) (uint64, bool) {
	addr, ok := l.Registers[field]
	return addr, ok
}

// Units holds the scaling factors decoded from a unit-descriptor register value
type Units struct {
	// Energy per accumulator count
	Energy Energy
	// Power per power-limit count; unused by sampling
	Power Power
	// Seconds per time-window count; unused by sampling
	Time float64
}

// DecodeUnits decodes a raw unit-descriptor register value using the layout
func (l Layout) DecodeUnits(raw uint64) Units {
	return Units{
		Energy: Energy(l.EnergyUnit.Multiplier(raw)),
		Power:  Power(l.PowerUnit.Multiplier(raw)),
		Time:   l.TimeUnit.Multiplier(raw),
	}
}

// Scale converts a raw energy accumulator value into energy
func (u Units) Scale(raw uint64) Energy {
	return Energy(float64(raw)) * u.Energy
}
