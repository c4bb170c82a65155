// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package topology

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"unicode/utf8"

	"k8s.io/utils/cpuset"
)

const (
	// DefaultMaxCPUs bounds CPU enumeration
	DefaultMaxCPUs = 1024
	// DefaultMaxPackages bounds the number of distinct packages
	DefaultMaxPackages = 16

	smtActivePath    = "devices/system/cpu/smt/active"
	packageIDPathFmt = "devices/system/cpu/cpu%d/topology/physical_package_id"
)

// Detector discovers the CPU topology from sysfs.
//
// Detection assumes the kernel enumerates all logical CPUs of a package
// contiguously, in ascending CPU id order, before any CPU of the next package.
// The per-package core counter is reset whenever a new package id shows up, so
// an interleaved enumeration (e.g. 0,1,0,1) yields wrong per-package core
// counts. Detect validates the assumption and fails with ErrNonContiguous
// unless interleaving is explicitly allowed.
type Detector struct {
	sysfsPath        string
	maxCPUs          int
	maxPackages      int
	allowInterleaved bool
	logger           *slog.Logger
}

// OptionFn is a function sets one more more options of the Detector
type OptionFn func(*Detector)

// WithLogger sets the logger for the Detector
func WithLogger(logger *slog.Logger) OptionFn {
	return func(d *Detector) {
		d.logger = logger.With("service", "topology")
	}
}

// WithMaxCPUs sets the upper bound of CPU ids probed
func WithMaxCPUs(n int) OptionFn {
	return func(d *Detector) {
		d.maxCPUs = n
	}
}

// WithMaxPackages sets the maximum number of distinct packages
func WithMaxPackages(n int) OptionFn {
	return func(d *Detector) {
		d.maxPackages = n
	}
}

// WithAllowInterleaved makes a non contiguous enumeration a warning instead of an error
func WithAllowInterleaved(allow bool) OptionFn {
	return func(d *Detector) {
		d.allowInterleaved = allow
	}
}

// NewDetector creates a Detector reading from the sysfs mounted at sysfsPath
func NewDetector(sysfsPath string, opts ...OptionFn) *Detector {
	d := &Detector{
		sysfsPath:   sysfsPath,
		maxCPUs:     DefaultMaxCPUs,
		maxPackages: DefaultMaxPackages,
		logger:      slog.Default().With("service", "topology"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Detect enumerates logical CPUs and builds the topology Context
func (d *Detector) Detect() (*Context, error) {
	smt, err := d.smtActive()
	if err != nil {
		return nil, err
	}

	ctx := &Context{
		smt:      smt,
		packages: newPackageMap(d.maxPackages),
	}
	members := map[int][]int{}

	coresThisPackage := 0
	for cpu := 0; cpu < d.maxCPUs; cpu++ {
		pkg, found, err := d.packageID(cpu)
		if err != nil {
			return nil, err
		}
		if !found {
			break
		}

		ctx.threads++
		d.logger.Debug("Detected CPU", "cpu", cpu, "package", pkg)

		if !ctx.packages.Has(pkg) {
			coresThisPackage = 0
		}
		coresThisPackage++

		cores := coresThisPackage
		if smt {
			cores /= 2
		}
		if err := ctx.packages.set(pkg, cores); err != nil {
			return nil, err
		}
		members[pkg] = append(members[pkg], cpu)
	}

	ctx.cpus = make(map[int]cpuset.CPUSet, len(members))
	for pkg, cpus := range members {
		ctx.cpus[pkg] = cpuset.New(cpus...)
	}

	if err := validateContiguous(ctx); err != nil {
		if !d.allowInterleaved {
			return nil, err
		}
		d.logger.Warn("CPU enumeration is not contiguous per package; per-package core counts are unreliable",
			"error", err)
	}

	if smt {
		ctx.cores = ctx.threads / 2
	} else {
		ctx.cores = ctx.threads
	}

	d.logger.Info("Detected topology",
		"threads", ctx.threads,
		"cores", ctx.cores,
		"packages", ctx.Packages(),
		"smt", smt)

	return ctx, nil
}

// smtActive reads the SMT status; the first byte '1' means SMT is active
func (d *Detector) smtActive() (bool, error) {
	path := filepath.Join(d.sysfsPath, smtActivePath)
	content, err := os.ReadFile(path)
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrSMTDetection, err)
	}
	if len(content) == 0 {
		return false, fmt.Errorf("%w: %s is empty", ErrSMTDetection, path)
	}
	return content[0] == '1', nil
}

// packageID reads the physical package id of cpu. found is false when the
// cpu does not exist, which ends enumeration.
func (d *Detector) packageID(cpu int) (id int, found bool, err error) {
	path := filepath.Join(d.sysfsPath, fmt.Sprintf(packageIDPathFmt, cpu))
	content, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to read package id of CPU %d: %w", cpu, err)
	}

	if !utf8.Valid(content) {
		return 0, false, fmt.Errorf("%w: package id of CPU %d in %s", ErrInvalidEncoding, cpu, path)
	}

	text := strings.TrimSpace(string(content))
	v, err := strconv.ParseUint(text, 10, 31)
	if err != nil {
		return 0, false, &ParseError{CPU: cpu, Path: path, Content: text, Err: err}
	}
	return int(v), true, nil
}

// validateContiguous checks that every package owns a contiguous CPU range and
// that packages appear in ascending id order, which is what core counting and
// the sampler's CPU offsets rely on.
func validateContiguous(ctx *Context) error {
	last := -1
	for _, pkg := range ctx.packages.IDs() {
		cpus := ctx.cpus[pkg].List()
		first, end := cpus[0], cpus[len(cpus)-1]
		if end-first+1 != len(cpus) {
			return fmt.Errorf("%w: package %d has CPUs %s", ErrNonContiguous, pkg, ctx.cpus[pkg].String())
		}
		if first <= last {
			return fmt.Errorf("%w: package %d starts at CPU %d before the previous package ends at CPU %d",
				ErrNonContiguous, pkg, first, last)
		}
		last = end
	}
	return nil
}
