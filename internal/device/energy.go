// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package device

import (
	"fmt"
	"time"
)

// Energy represents energy as a float64 Joule count, as produced by scaling a
// raw RAPL accumulator with the energy unit of the power-unit register.
// Use functions Joules, MilliJoules and MicroJoules to get the energy
// value as Joule, MilliJoule or MicroJoule respectively
type Energy float64

const (
	MicroJoule Energy = 1e-6
	MilliJoule Energy = 1e-3
	Joule      Energy = 1
)

func (e Energy) Joules() float64 {
	return float64(e)
}

func (e Energy) MilliJoules() float64 {
	return float64(e) * 1e3
}

func (e Energy) MicroJoules() float64 {
	return float64(e) * 1e6
}

func (e Energy) String() string {
	return fmt.Sprintf("%.2fJ", e.Joules())
}

// Power represents power usage as a float64 Watt count.
// Use functions Watts, MilliWatts or MicroWatts to get the power value as
// Watts, MilliWatts or MicroWatts respectively
type Power float64

const (
	MicroWatt Power = 1e-6
	MilliWatt Power = 1e-3
	Watt      Power = 1
)

func (p Power) Watts() float64 {
	return float64(p)
}

func (p Power) MilliWatts() float64 {
	return float64(p) * 1e3
}

func (p Power) MicroWatts() float64 {
	return float64(p) * 1e6
}

func (p Power) String() string {
	return fmt.Sprintf("%.2fW", p.Watts())
}

// PowerOver returns the average power of an energy delta consumed over d.
// For the default 100ms sampling interval this is delta x 10.
// A negative delta (counter wraparound between the two reads) yields a
// negative power; it is not corrected.
func PowerOver(delta Energy, d time.Duration) Power {
	if d <= 0 {
		return 0
	}
	return Power(float64(delta) * float64(time.Second) / float64(d))
}
