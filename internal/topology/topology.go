// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package topology

import (
	"fmt"
	"maps"
	"slices"

	"k8s.io/utils/cpuset"
)

// Context is the CPU topology of the running system. It is built once by
// Detector.Detect and never modified afterwards.
type Context struct {
	smt      bool
	threads  int
	cores    int
	packages *PackageMap
	cpus     map[int]cpuset.CPUSet // package id -> logical CPUs
}

// SMT reports whether simultaneous multithreading is active
func (c *Context) SMT() bool {
	return c.smt
}

// Threads returns the number of logical CPUs
func (c *Context) Threads() int {
	return c.threads
}

// Cores returns the number of physical cores
func (c *Context) Cores() int {
	return c.cores
}

// Packages returns the number of distinct packages
func (c *Context) Packages() int {
	return c.packages.Len()
}

// PackageMap returns the package id -> core count map
func (c *Context) PackageMap() *PackageMap {
	return c.packages
}

// CPUs returns the logical CPUs enumerated for package id
func (c *Context) CPUs(id int) cpuset.CPUSet {
	return c.cpus[id]
}

func (c *Context) String() string {
	return fmt.Sprintf("threads=%d cores=%d packages=%d smt=%t", c.threads, c.cores, c.Packages(), c.smt)
}

// PackageMap maps a package id to the number of physical cores found in it.
// It holds at most Cap() distinct packages.
type PackageMap struct {
	capacity int
	cores    map[int]int
}

func newPackageMap(capacity int) *PackageMap {
	return &PackageMap{
		capacity: capacity,
		cores:    make(map[int]int, capacity),
	}
}

// Len returns the number of populated packages
func (p *PackageMap) Len() int {
	return len(p.cores)
}

// Cap returns the maximum number of packages the map can hold
func (p *PackageMap) Cap() int {
	return p.capacity
}

// Has reports whether package id has been seen
func (p *PackageMap) Has(id int) bool {
	_, ok := p.cores[id]
	return ok
}

// Get returns the core count of package id
func (p *PackageMap) Get(id int) (int, bool) {
	cores, ok := p.cores[id]
	return cores, ok
}

// IDs returns the populated package ids in ascending order
func (p *PackageMap) IDs() []int {
	return slices.Sorted(maps.Keys(p.cores))
}

func (p *PackageMap) set(id, cores int) error {
	if !p.Has(id) && p.Len() >= p.capacity {
		return fmt.Errorf("%w: package %d exceeds the supported maximum of %d", ErrPackageCapacity, id, p.capacity)
	}
	p.cores[id] = cores
	return nil
}
