// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package monitor

import (
	"github.com/sustainable-computing-io/amd-rapl/internal/device"
)

// packageSample holds the power of one package and of each of its cores
type packageSample struct {
	cores []Power
	pkg   Power
}

// samplePackage takes two energy snapshots of the CPUs [offset, offset+cores)
// separated by the sampling interval and converts the deltas into power.
//
// The package accumulator is package wide, so the value read on the last CPU
// of the range stands for the whole package.
//
// NOTE: energy accumulators are finite-width counters. A wraparound between
// the two snapshots produces a negative delta which is reported unchanged.
func (pm *PowerMonitor) samplePackage(units device.Units, cores, offset int) (*packageSample, error) {
	t0 := make([]Energy, cores)
	t1 := make([]Energy, cores)

	pkg0, err := pm.snapshot(units, offset, t0)
	if err != nil {
		return nil, err
	}

	pm.clock.Sleep(pm.interval)

	pkg1, err := pm.snapshot(units, offset, t1)
	if err != nil {
		return nil, err
	}

	sample := &packageSample{
		cores: make([]Power, cores),
		pkg:   device.PowerOver(pkg1-pkg0, pm.interval),
	}
	for i := range sample.cores {
		sample.cores[i] = device.PowerOver(t1[i]-t0[i], pm.interval)
		if sample.cores[i] < 0 {
			pm.logger.Debug("Negative core power; energy counter wrapped", "cpu", offset+i, "power", sample.cores[i].String())
		}
	}
	if sample.pkg < 0 {
		pm.logger.Debug("Negative package power; energy counter wrapped", "first_cpu", offset, "power", sample.pkg.String())
	}

	return sample, nil
}

// snapshot reads the core and package accumulators of every CPU in the range
// into energies and returns the last package reading
func (pm *PowerMonitor) snapshot(units device.Units, offset int, energies []Energy) (Energy, error) {
	var pkg Energy
	for i := range energies {
		cpu := offset + i

		core, err := pm.accessor.Read(cpu, device.CoreEnergy)
		if err != nil {
			return 0, err
		}
		pkgRaw, err := pm.accessor.Read(cpu, device.PackageEnergy)
		if err != nil {
			return 0, err
		}

		energies[i] = units.Scale(core)
		pkg = units.Scale(pkgRaw)
	}
	return pkg, nil
}
