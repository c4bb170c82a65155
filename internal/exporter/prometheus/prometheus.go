// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package prometheus

import (
	"fmt"
	"log/slog"
	"maps"
	"slices"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/sustainable-computing-io/amd-rapl/internal/exporter/prometheus/collector"
	"github.com/sustainable-computing-io/amd-rapl/internal/monitor"
	"github.com/sustainable-computing-io/amd-rapl/internal/service"
)

type Opts struct {
	logger     *slog.Logger
	procfs     string
	collectors map[string]prom.Collector
}

// DefaultOpts() returns a new Opts with defaults set
func DefaultOpts() Opts {
	return Opts{
		logger: slog.Default(),
		procfs: "/proc",
	}
}

// OptionFn is a function sets one more more options in Opts struct
type OptionFn func(*Opts)

// WithLogger sets the logger for the Exporter
func WithLogger(logger *slog.Logger) OptionFn {
	return func(o *Opts) {
		o.logger = logger
	}
}

func WithProcFSPath(procfs string) OptionFn {
	return func(o *Opts) {
		o.procfs = procfs
	}
}

// WithCollectors replaces the default build_info and cpu_info collectors.
// The power collector is always registered.
func WithCollectors(c map[string]prom.Collector) OptionFn {
	return func(o *Opts) {
		o.collectors = c
	}
}

// TextfileExporter writes power reports in the Prometheus text format to a
// file, atomically, for the node-exporter textfile collector
type TextfileExporter struct {
	logger     *slog.Logger
	path       string
	procfs     string
	registry   *prom.Registry
	power      *collector.PowerCollector
	collectors map[string]prom.Collector
}

var _ service.Initializer = (*TextfileExporter)(nil)

// NewTextfileExporter creates an exporter writing to path
func NewTextfileExporter(path string, applyOpts ...OptionFn) *TextfileExporter {
	opts := DefaultOpts()
	for _, apply := range applyOpts {
		apply(&opts)
	}

	logger := opts.logger.With("service", "textfile")
	return &TextfileExporter{
		logger:     logger,
		path:       path,
		procfs:     opts.procfs,
		registry:   prom.NewRegistry(),
		power:      collector.NewPowerCollector(logger),
		collectors: opts.collectors,
	}
}

// CreateCollectors returns the informational collectors registered next to
// the power collector
func CreateCollectors(procfs string) (map[string]prom.Collector, error) {
	cpuInfo, err := collector.NewCPUInfoCollector(procfs)
	if err != nil {
		return nil, err
	}
	return map[string]prom.Collector{
		"build_info": collector.NewBuildInfoCollector(),
		"cpu_info":   cpuInfo,
	}, nil
}

// Name implements service.Name
func (e *TextfileExporter) Name() string {
	return "textfile"
}

func (e *TextfileExporter) Init() error {
	e.logger.Info("Initializing textfile exporter", "path", e.path)
	if e.path == "" {
		return fmt.Errorf("textfile path is empty")
	}

	if e.collectors == nil {
		c, err := CreateCollectors(e.procfs)
		if err != nil {
			return fmt.Errorf("failed to create collectors: %w", err)
		}
		e.collectors = c
	}

	if err := e.registry.Register(e.power); err != nil {
		return fmt.Errorf("failed to register power collector: %w", err)
	}
	for _, name := range slices.Sorted(maps.Keys(e.collectors)) {
		e.logger.Debug("Enabling collector", "collector", name)
		if err := e.registry.Register(e.collectors[name]); err != nil {
			return fmt.Errorf("failed to register collector %s: %w", name, err)
		}
	}
	return nil
}

// Export publishes the report through the power collector and writes all
// registered collectors to the textfile
func (e *TextfileExporter) Export(report *monitor.Report) error {
	e.power.Update(report)
	if err := prom.WriteToTextfile(e.path, e.registry); err != nil {
		return fmt.Errorf("failed to write textfile %s: %w", e.path, err)
	}
	e.logger.Info("Wrote textfile", "path", e.path)
	return nil
}
