// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package monitor

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/procfs"
	"github.com/sustainable-computing-io/amd-rapl/internal/device"
	"github.com/sustainable-computing-io/amd-rapl/internal/service"
	"github.com/sustainable-computing-io/amd-rapl/internal/topology"
	"k8s.io/utils/clock"
)

var (
	// ErrNoCPUs is returned when topology detection found no logical CPU
	ErrNoCPUs = errors.New("no cpus detected")

	// ErrTopologyMismatch is returned when the per-package core counts do not
	// add up to the total core count, which would break the report invariants
	ErrTopologyMismatch = errors.New("per-package core counts do not match the total core count")
)

// supportedVendors lists the /proc/cpuinfo vendor ids using the AMD RAPL layout
var supportedVendors = map[string]bool{
	"AuthenticAMD": true,
	"HygonGenuine": true,
}

// TopologyDetector discovers the CPU topology
type TopologyDetector interface {
	Detect() (*topology.Context, error)
}

// availabilityChecker is implemented by accessors that can tell whether a CPU's
// register channel exists
type availabilityChecker interface {
	Available(cpu int) bool
}

// procFS is an interface for CPUInfo.
type procFS interface {
	CPUInfo() ([]procfs.CPUInfo, error)
}

type realProcFS struct {
	fs procfs.FS
}

func (r *realProcFS) CPUInfo() ([]procfs.CPUInfo, error) {
	return r.fs.CPUInfo()
}

// PowerMonitor measures per-core and per-package power once per Measure call.
// Packages are sampled one after the other; nothing runs concurrently.
type PowerMonitor struct {
	logger   *slog.Logger
	accessor device.RegisterAccessor
	detector TopologyDetector
	clock    clock.Clock
	interval time.Duration

	procfsPath string
	procFS     procFS
}

var (
	_ service.Initializer = (*PowerMonitor)(nil)
	_ Measurer            = (*PowerMonitor)(nil)
)

// Measurer produces a power Report
type Measurer interface {
	Measure() (*Report, error)
}

// NewPowerMonitor creates a new PowerMonitor instance
func NewPowerMonitor(applyOpts ...OptionFn) *PowerMonitor {
	opts := DefaultOpts()
	for _, apply := range applyOpts {
		apply(&opts)
	}

	return &PowerMonitor{
		logger:     opts.logger.With("service", "monitor"),
		accessor:   opts.accessor,
		detector:   opts.detector,
		clock:      opts.clock,
		interval:   opts.interval,
		procfsPath: opts.procfsPath,
		procFS:     opts.procFS,
	}
}

func (pm *PowerMonitor) Name() string {
	return "monitor"
}

// Init runs pre-flight checks: the CPU vendor is expected to use the AMD
// register layout and the register channel of CPU 0 must exist
func (pm *PowerMonitor) Init() error {
	if pm.interval <= 0 {
		return fmt.Errorf("invalid sampling interval %s", pm.interval)
	}

	pm.checkVendor()

	if checker, ok := pm.accessor.(availabilityChecker); ok && !checker.Available(0) {
		return fmt.Errorf("register access for CPU 0 not available; is the msr kernel module loaded?")
	}
	return nil
}

// checkVendor warns when the CPU vendor does not match the register layout.
// The check is advisory and never fails.
func (pm *PowerMonitor) checkVendor() {
	if pm.procFS == nil {
		fs, err := procfs.NewFS(pm.procfsPath)
		if err != nil {
			pm.logger.Warn("Skipping CPU vendor check", "error", err)
			return
		}
		pm.procFS = &realProcFS{fs: fs}
	}

	infos, err := pm.procFS.CPUInfo()
	if err != nil || len(infos) == 0 {
		pm.logger.Warn("Skipping CPU vendor check", "error", err)
		return
	}

	vendor := infos[0].VendorID
	layout := pm.accessor.Layout().Name
	if !supportedVendors[vendor] {
		pm.logger.Warn("CPU vendor does not match the register layout; readings may be invalid",
			"vendor", vendor, "layout", layout)
		return
	}
	pm.logger.Debug("CPU vendor check passed", "vendor", vendor, "model", infos[0].ModelName, "layout", layout)
}

// Measure detects the topology, samples every package and aggregates the
// results. Any failure aborts the whole run and no partial report is returned.
func (pm *PowerMonitor) Measure() (*Report, error) {
	started := pm.clock.Now()

	topo, err := pm.detector.Detect()
	if err != nil {
		return nil, fmt.Errorf("failed to detect topology: %w", err)
	}
	if topo.Threads() == 0 {
		return nil, ErrNoCPUs
	}
	if err := checkCoreCounts(topo); err != nil {
		return nil, err
	}

	// the unit register is read once, on CPU 0, for the whole run
	rawUnit, err := pm.accessor.Read(0, device.PowerUnit)
	if err != nil {
		return nil, fmt.Errorf("failed to read power unit: %w", err)
	}
	units := pm.accessor.Layout().DecodeUnits(rawUnit)
	pm.logger.Debug("Decoded power unit", "raw", fmt.Sprintf("0x%x", rawUnit), "energy_unit_j", float64(units.Energy))

	ids := topo.PackageMap().IDs()
	corePowers := make([][]device.Power, 0, len(ids))
	packagePowers := make([]device.Power, 0, len(ids))

	cpusSeen := 0
	for _, pkg := range ids {
		cores, _ := topo.PackageMap().Get(pkg)
		pm.logger.Info("Sampling package", "package", pkg, "cores", cores, "first_cpu", cpusSeen)
		if cpus := topo.CPUs(pkg).List(); len(cpus) > 0 && cpus[0] != cpusSeen {
			pm.logger.Warn("Package CPUs do not start at the sampled CPU; readings may belong to another package",
				"package", pkg, "first_package_cpu", cpus[0], "first_cpu", cpusSeen)
		}

		sample, err := pm.samplePackage(units, cores, cpusSeen)
		if err != nil {
			return nil, fmt.Errorf("failed to sample package %d: %w", pkg, err)
		}
		corePowers = append(corePowers, sample.cores)
		packagePowers = append(packagePowers, sample.pkg)

		if topo.SMT() {
			cpusSeen += cores * 2
		} else {
			cpusSeen += cores
		}
		pm.logger.Debug("CPUs seen", "count", cpusSeen)
	}

	report := BuildReport(topo, corePowers, packagePowers, pm.clock.Now())
	pm.logger.Info("Computed power",
		"core_sum", report.CorePowerSum().String(),
		"package_sum", report.PackagePowerSum().String(),
		"duration", pm.clock.Since(started))

	return report, nil
}

func checkCoreCounts(topo *topology.Context) error {
	total := 0
	for _, pkg := range topo.PackageMap().IDs() {
		cores, _ := topo.PackageMap().Get(pkg)
		total += cores
	}
	if total != topo.Cores() {
		return fmt.Errorf("%w: packages hold %d cores, topology reports %d", ErrTopologyMismatch, total, topo.Cores())
	}
	return nil
}
