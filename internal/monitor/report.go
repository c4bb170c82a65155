// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package monitor

import (
	"slices"
	"time"

	"github.com/sustainable-computing-io/amd-rapl/internal/topology"
)

// Report is the result of one measurement. It is immutable; slice accessors
// return copies.
type Report struct {
	timestamp time.Time

	smt      bool
	threads  int
	cores    int
	packages int

	packageIDs []int // ascending

	corePowerSum    Power
	corePowers      []Power // ascending logical CPU order
	packagePowerSum Power
	packagePowers   []Power // ascending package id
}

// BuildReport merges the per-package results with the topology counts.
// corePowers holds one slice per package, in ascending package id order,
// and is flattened preserving the core order within each package.
func BuildReport(topo *topology.Context, corePowers [][]Power, packagePowers []Power, ts time.Time) *Report {
	r := &Report{
		timestamp:     ts,
		smt:           topo.SMT(),
		threads:       topo.Threads(),
		cores:         topo.Cores(),
		packages:      topo.Packages(),
		corePowers:    slices.Concat(corePowers...),
		packagePowers: slices.Clone(packagePowers),
		packageIDs:    topo.PackageMap().IDs(),
	}
	if r.packageIDs == nil {
		r.packageIDs = []int{}
	}
	if r.corePowers == nil {
		r.corePowers = []Power{}
	}
	if r.packagePowers == nil {
		r.packagePowers = []Power{}
	}

	r.corePowerSum = sum(r.corePowers)
	r.packagePowerSum = sum(r.packagePowers)
	return r
}

func sum(powers []Power) Power {
	var total Power
	for _, p := range powers {
		total += p
	}
	return total
}

// Timestamp returns the time the report was built
func (r *Report) Timestamp() time.Time {
	return r.timestamp
}

// SMT reports whether simultaneous multithreading was active
func (r *Report) SMT() bool {
	return r.smt
}

// Threads returns the number of logical CPUs
func (r *Report) Threads() int {
	return r.threads
}

// Cores returns the number of physical cores
func (r *Report) Cores() int {
	return r.cores
}

// Packages returns the number of packages
func (r *Report) Packages() int {
	return r.packages
}

// PackageIDs returns the physical package ids matching PackagePowers
func (r *Report) PackageIDs() []int {
	return slices.Clone(r.packageIDs)
}

// CorePowerSum returns the summed power of all cores
func (r *Report) CorePowerSum() Power {
	return r.corePowerSum
}

// CorePowers returns the power of every physical core in ascending logical CPU order
func (r *Report) CorePowers() []Power {
	return slices.Clone(r.corePowers)
}

// PackagePowerSum returns the summed power of all packages
func (r *Report) PackagePowerSum() Power {
	return r.packagePowerSum
}

// PackagePowers returns the power of every package in ascending package id order
func (r *Report) PackagePowers() []Power {
	return slices.Clone(r.packagePowers)
}

type reportView struct {
	Timestamp       time.Time `yaml:"timestamp"`
	SMT             bool      `yaml:"smt"`
	Threads         int       `yaml:"threads"`
	Cores           int       `yaml:"cores"`
	Packages        int       `yaml:"packages"`
	PackageIDs      []int     `yaml:"packageIDs"`
	CorePowerSum    float64   `yaml:"corePowerSumWatts"`
	CorePowers      []float64 `yaml:"corePowersWatts"`
	PackagePowerSum float64   `yaml:"packagePowerSumWatts"`
	PackagePowers   []float64 `yaml:"packagePowersWatts"`
}

// MarshalYAML implements yaml.Marshaler
func (r *Report) MarshalYAML() (any, error) {
	return reportView{
		Timestamp:       r.timestamp,
		SMT:             r.smt,
		Threads:         r.threads,
		Cores:           r.cores,
		Packages:        r.packages,
		PackageIDs:      r.packageIDs,
		CorePowerSum:    r.corePowerSum.Watts(),
		CorePowers:      watts(r.corePowers),
		PackagePowerSum: r.packagePowerSum.Watts(),
		PackagePowers:   watts(r.packagePowers),
	}, nil
}

func watts(powers []Power) []float64 {
	ret := make([]float64, len(powers))
	for i, p := range powers {
		ret[i] = p.Watts()
	}
	return ret
}
