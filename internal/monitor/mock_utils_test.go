// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package monitor

import (
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/procfs"
	"github.com/stretchr/testify/mock"
	"github.com/sustainable-computing-io/amd-rapl/internal/device"
	"github.com/sustainable-computing-io/amd-rapl/internal/topology"
	"github.com/sustainable-computing-io/amd-rapl/internal/topology/topotest"
	"k8s.io/utils/clock"
)

// energyExponent16 is a power unit register value with energy exponent 16
const energyExponent16 = uint64(16 << 8)

type regKey struct {
	cpu   int
	field device.RegisterField
}

type readCall struct {
	regKey
	at time.Time
}

// scriptedAccessor returns queued values per (cpu, register) and records
// every read together with the clock time it happened at
type scriptedAccessor struct {
	clock  clock.PassiveClock
	values map[regKey][]uint64
	errs   map[regKey]error
	calls  []readCall
}

func newScriptedAccessor(c clock.PassiveClock) *scriptedAccessor {
	return &scriptedAccessor{
		clock:  c,
		values: map[regKey][]uint64{},
		errs:   map[regKey]error{},
	}
}

// script queues values returned by successive reads of field on cpu
func (s *scriptedAccessor) script(cpu int, field device.RegisterField, values ...uint64) *scriptedAccessor {
	k := regKey{cpu, field}
	s.values[k] = append(s.values[k], values...)
	return s
}

// fail makes reads of field on cpu return err once its scripted values are used up
func (s *scriptedAccessor) fail(cpu int, field device.RegisterField, err error) *scriptedAccessor {
	s.errs[regKey{cpu, field}] = err
	return s
}

func (s *scriptedAccessor) Read(cpu int, field device.RegisterField) (uint64, error) {
	k := regKey{cpu, field}
	s.calls = append(s.calls, readCall{regKey: k, at: s.clock.Now()})

	queue := s.values[k]
	if len(queue) == 0 {
		if err, ok := s.errs[k]; ok {
			return 0, err
		}
		return 0, fmt.Errorf("no scripted value for CPU %d %s", cpu, field)
	}
	s.values[k] = queue[1:]
	return queue[0], nil
}

func (s *scriptedAccessor) Layout() device.Layout {
	return device.AMDLayout
}

func (s *scriptedAccessor) readsOf(field device.RegisterField) []readCall {
	var ret []readCall
	for _, c := range s.calls {
		if c.field == field {
			ret = append(ret, c)
		}
	}
	return ret
}

// MockAccessor mocks device.RegisterAccessor
type MockAccessor struct {
	mock.Mock
}

func (m *MockAccessor) Read(cpu int, field device.RegisterField) (uint64, error) {
	args := m.Called(cpu, field)
	return args.Get(0).(uint64), args.Error(1)
}

func (m *MockAccessor) Layout() device.Layout {
	return device.AMDLayout
}

func (m *MockAccessor) Available(cpu int) bool {
	args := m.Called(cpu)
	return args.Bool(0)
}

// MockDetector mocks TopologyDetector
type MockDetector struct {
	mock.Mock
}

func (m *MockDetector) Detect() (*topology.Context, error) {
	args := m.Called()
	if ctx := args.Get(0); ctx != nil {
		return ctx.(*topology.Context), args.Error(1)
	}
	return nil, args.Error(1)
}

type fakeProcFS struct {
	infos []procfs.CPUInfo
	err   error
}

func (f *fakeProcFS) CPUInfo() ([]procfs.CPUInfo, error) {
	return f.infos, f.err
}

// detectTopology builds a fake sysfs from package ids and runs the real detector on it
func detectTopology(t *testing.T, smt bool, packages ...int) *topology.Context {
	t.Helper()
	return topotest.Detect(t, smt, packages...)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
