// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package collector

import (
	"log/slog"
	"strconv"
	"sync"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/sustainable-computing-io/amd-rapl/internal/monitor"
)

// PowerCollector exposes the most recent power report
type PowerCollector struct {
	logger *slog.Logger

	mu     sync.RWMutex
	report *monitor.Report

	corePowerDesc       *prom.Desc
	packagePowerDesc    *prom.Desc
	corePowerSumDesc    *prom.Desc
	packagePowerSumDesc *prom.Desc

	threadsDesc  *prom.Desc
	coresDesc    *prom.Desc
	packagesDesc *prom.Desc
	smtDesc      *prom.Desc
	timeDesc     *prom.Desc
}

var _ prom.Collector = (*PowerCollector)(nil)

func wattsDesc(name, help string, labels []string) *prom.Desc {
	return prom.NewDesc(prom.BuildFQName(namespace, "", name+"_watts"), help, labels, nil)
}

func nodeDesc(name, help string) *prom.Desc {
	return prom.NewDesc(prom.BuildFQName(namespace, nodeSubsystem, name), help, nil, nil)
}

// NewPowerCollector creates a collector with no report; it emits nothing
// until Update is called
func NewPowerCollector(logger *slog.Logger) *PowerCollector {
	if logger == nil {
		logger = slog.Default()
	}
	return &PowerCollector{
		logger: logger.With("collector", "power"),

		corePowerDesc:       wattsDesc("core_power", "Average power of a physical core over the sampling interval", []string{"core"}),
		packagePowerDesc:    wattsDesc("package_power", "Average power of a package over the sampling interval", []string{"package"}),
		corePowerSumDesc:    wattsDesc("core_power_sum", "Sum of the power of all physical cores", nil),
		packagePowerSumDesc: wattsDesc("package_power_sum", "Sum of the power of all packages", nil),

		threadsDesc:  nodeDesc("threads", "Number of logical CPUs"),
		coresDesc:    nodeDesc("cores", "Number of physical cores"),
		packagesDesc: nodeDesc("packages", "Number of packages"),
		smtDesc:      nodeDesc("smt_active", "1 if simultaneous multithreading is active"),
		timeDesc:     nodeDesc("report_timestamp_seconds", "Unix time the power report was taken"),
	}
}

// Update replaces the report exposed by the collector
func (c *PowerCollector) Update(report *monitor.Report) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.report = report
}

func (c *PowerCollector) Describe(ch chan<- *prom.Desc) {
	ch <- c.corePowerDesc
	ch <- c.packagePowerDesc
	ch <- c.corePowerSumDesc
	ch <- c.packagePowerSumDesc
	ch <- c.threadsDesc
	ch <- c.coresDesc
	ch <- c.packagesDesc
	ch <- c.smtDesc
	ch <- c.timeDesc
}

func (c *PowerCollector) Collect(ch chan<- prom.Metric) {
	c.mu.RLock()
	r := c.report
	c.mu.RUnlock()

	if r == nil {
		c.logger.Debug("No report to collect")
		return
	}

	gauge := func(desc *prom.Desc, v float64, labels ...string) {
		ch <- prom.MustNewConstMetric(desc, prom.GaugeValue, v, labels...)
	}

	for i, p := range r.CorePowers() {
		gauge(c.corePowerDesc, p.Watts(), strconv.Itoa(i))
	}
	ids := r.PackageIDs()
	for i, p := range r.PackagePowers() {
		gauge(c.packagePowerDesc, p.Watts(), strconv.Itoa(ids[i]))
	}
	gauge(c.corePowerSumDesc, r.CorePowerSum().Watts())
	gauge(c.packagePowerSumDesc, r.PackagePowerSum().Watts())

	gauge(c.threadsDesc, float64(r.Threads()))
	gauge(c.coresDesc, float64(r.Cores()))
	gauge(c.packagesDesc, float64(r.Packages()))
	smt := 0.0
	if r.SMT() {
		smt = 1
	}
	gauge(c.smtDesc, smt)
	gauge(c.timeDesc, float64(r.Timestamp().UnixNano())/1e9)
}
