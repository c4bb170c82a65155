// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package device

import (
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
)

// NOTE: the fake reader is for development and testing only

// FakeUnitRegister is a typical AMD unit register value:
// time exponent 10, energy exponent 16, power exponent 3
const FakeUnitRegister uint64 = 0x000A1003

const defaultFakeMaxRaw uint64 = 1 << 32

type fakeCounter struct {
	raw uint64
}

// fakeMSRReader implements RegisterAccessor with energy counters that grow on
// every read and wrap like the 32 bit hardware accumulators
type fakeMSRReader struct {
	logger *slog.Logger
	layout Layout

	mu           sync.Mutex
	counters     map[fakeKey]*fakeCounter
	unit         uint64
	maxRaw       uint64
	increment    map[RegisterField]uint64
	randomFactor float64
}

type fakeKey struct {
	cpu   int
	field RegisterField
}

var _ RegisterAccessor = (*fakeMSRReader)(nil)

// FakeOptFn is a functional option for configuring the fake reader
type FakeOptFn func(*fakeMSRReader)

// WithFakeLogger sets the logger of the fake reader
func WithFakeLogger(l *slog.Logger) FakeOptFn {
	return func(m *fakeMSRReader) {
		m.logger = l.With("service", m.Name())
	}
}

// WithFakeMaxRaw sets the raw value at which counters wrap around; 0 disables wrapping
func WithFakeMaxRaw(limit uint64) FakeOptFn {
	return func(m *fakeMSRReader) {
		m.maxRaw = limit
	}
}

// WithFakeUnit sets the raw value returned for the unit register
func WithFakeUnit(raw uint64) FakeOptFn {
	return func(m *fakeMSRReader) {
		m.unit = raw
	}
}

// WithFakeIncrements sets the fixed per-read growth of core and package counters
// and disables the random component
func WithFakeIncrements(core, pkg uint64) FakeOptFn {
	return func(m *fakeMSRReader) {
		m.increment[CoreEnergy] = core
		m.increment[PackageEnergy] = pkg
		m.randomFactor = 0
	}
}

// NewFakeMSRReader creates a RegisterAccessor that needs no hardware
func NewFakeMSRReader(opts ...FakeOptFn) *fakeMSRReader {
	m := &fakeMSRReader{
		logger:   slog.Default().With("service", "fake-msr-reader"),
		layout:   AMDLayout,
		counters: map[fakeKey]*fakeCounter{},
		unit:     FakeUnitRegister,
		maxRaw:   defaultFakeMaxRaw,
		increment: map[RegisterField]uint64{
			// ~1.5W core and ~8W package at the default 100ms interval and
			// a 2^-16 J energy unit
			CoreEnergy:    10_000,
			PackageEnergy: 52_000,
		},
		randomFactor: 0.5,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *fakeMSRReader) Name() string {
	return "fake-msr-reader"
}

func (m *fakeMSRReader) Layout() Layout {
	return m.layout
}

// Read returns the unit register unchanged and advances energy counters
func (m *fakeMSRReader) Read(cpu int, field RegisterField) (uint64, error) {
	if _, ok := m.layout.Address(field); !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownRegister, field)
	}
	if field == PowerUnit {
		return m.unit, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	k := fakeKey{cpu: cpu, field: field}
	c, ok := m.counters[k]
	if !ok {
		c = &fakeCounter{}
		m.counters[k] = c
	}

	inc := m.increment[field]
	if m.randomFactor > 0 {
		inc += uint64(rand.Float64() * float64(inc) * m.randomFactor)
	}
	c.raw += inc
	if m.maxRaw > 0 {
		c.raw %= m.maxRaw
	}

	m.logger.Debug("Fake register read", "cpu", cpu, "register", field.String(), "value", c.raw)
	return c.raw, nil
}
