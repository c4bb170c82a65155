// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package monitor

import (
	"log/slog"
	"time"

	"github.com/sustainable-computing-io/amd-rapl/internal/device"
	"github.com/sustainable-computing-io/amd-rapl/internal/topology"
	"k8s.io/utils/clock"
)

// DefaultInterval is the pause between the two energy snapshots of a package
const DefaultInterval = 100 * time.Millisecond

type Opts struct {
	logger     *slog.Logger
	interval   time.Duration
	clock      clock.Clock
	accessor   device.RegisterAccessor
	detector   TopologyDetector
	procfsPath string
	procFS     procFS
}

// DefaultOpts returns a new Opts with defaults set
func DefaultOpts() Opts {
	return Opts{
		logger:     slog.Default(),
		interval:   DefaultInterval,
		clock:      clock.RealClock{},
		accessor:   device.NewMSRReader(device.DefaultMSRDevicePath),
		detector:   topology.NewDetector("/sys"),
		procfsPath: "/proc",
	}
}

// OptionFn is a function sets one more more options in Opts struct
type OptionFn func(*Opts)

// WithLogger sets the logger for the PowerMonitor
func WithLogger(logger *slog.Logger) OptionFn {
	return func(o *Opts) {
		o.logger = logger
	}
}

// WithInterval sets the sampling interval of every package
func WithInterval(d time.Duration) OptionFn {
	return func(o *Opts) {
		o.interval = d
	}
}

// WithClock sets the clock used to pause between snapshots
func WithClock(c clock.Clock) OptionFn {
	return func(o *Opts) {
		o.clock = c
	}
}

// WithAccessor sets the register accessor
func WithAccessor(a device.RegisterAccessor) OptionFn {
	return func(o *Opts) {
		o.accessor = a
	}
}

// WithDetector sets the topology detector
func WithDetector(d TopologyDetector) OptionFn {
	return func(o *Opts) {
		o.detector = d
	}
}

// WithProcFSPath sets the procfs mount point used for the CPU vendor check
func WithProcFSPath(path string) OptionFn {
	return func(o *Opts) {
		o.procfsPath = path
	}
}

// withProcFS injects a procFS (for testing)
func withProcFS(fs procFS) OptionFn {
	return func(o *Opts) {
		o.procFS = fs
	}
}
