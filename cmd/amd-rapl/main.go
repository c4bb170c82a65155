// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"syscall"

	"github.com/alecthomas/kingpin/v2"
	"github.com/sustainable-computing-io/amd-rapl/config"
	"github.com/sustainable-computing-io/amd-rapl/internal/device"
	"github.com/sustainable-computing-io/amd-rapl/internal/exporter"
	"github.com/sustainable-computing-io/amd-rapl/internal/exporter/prometheus"
	"github.com/sustainable-computing-io/amd-rapl/internal/exporter/stdout"
	"github.com/sustainable-computing-io/amd-rapl/internal/logger"
	"github.com/sustainable-computing-io/amd-rapl/internal/monitor"
	"github.com/sustainable-computing-io/amd-rapl/internal/service"
	"github.com/sustainable-computing-io/amd-rapl/internal/topology"
	"github.com/sustainable-computing-io/amd-rapl/internal/version"
	"golang.org/x/term"
	"k8s.io/utils/ptr"
)

const appName = "amd-rapl"

func main() {
	cfg, err := parseArgsAndConfig(os.Args[1:])
	if err != nil {
		os.Exit(1)
	}

	logger := logger.New(cfg.Log.Level, cfg.Log.Format, os.Stderr)
	logVersionInfo(logger)
	if term.IsTerminal(int(os.Stderr.Fd())) {
		printConfigInfo(os.Stderr, logger, cfg)
	}

	services := createServices(logger, cfg)
	if err := service.Init(logger, services); err != nil {
		logger.Error("Initialization failed", "error", err)
		os.Exit(1)
	}

	if err := service.Run(context.Background(), logger, services); err != nil {
		logger.Error("amd-rapl terminated with an error", "error", err)
		os.Exit(1)
	}
	logger.Info("Done")
}

func logVersionInfo(logger *slog.Logger) {
	logger.Info("amd-rapl version information", version.Info().LogAttrs()...)
}

// parseArgsAndConfig merges, in increasing precedence, defaults, config
// files and explicitly set flags
func parseArgsAndConfig(args []string) (*config.Config, error) {
	app := kingpin.New(appName, "Per-core and per-package power of AMD CPUs from RAPL MSRs.")
	app.Version(version.Info().Version)

	configFiles := app.Flag("config.file", "Path to YAML configuration file; repeat to merge several").Strings()
	updateConfig := config.RegisterFlags(app)
	if _, err := app.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "%s: error: %s\n", appName, err)
		return nil, err
	}

	logger := logger.New("info", "text", os.Stderr)
	if len(*configFiles) > 0 {
		logger.Info("Loading configuration files", "paths", *configFiles)
	}
	cfg, err := config.FromFiles(*configFiles...)
	if err != nil {
		logger.Error("Error loading config file", "error", err.Error())
		return nil, err
	}

	// command line flags override config file settings
	if err := updateConfig(cfg); err != nil {
		logger.Error("Error applying command line flags", "error", err.Error())
		return nil, err
	}
	return cfg, nil
}

func printConfigInfo(w io.Writer, logger *slog.Logger, cfg *config.Config) {
	if !logger.Enabled(context.Background(), slog.LevelInfo) || cfg.Log.Format == "json" {
		return
	}

	fmt.Fprintf(w, `
Configuration
━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━
%s
━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━
`, cfg)
}

// createServices wires the monitor and the enabled exporters. The reporter
// runs next to a signal handler; whichever returns first ends the run.
func createServices(logger *slog.Logger, cfg *config.Config) []service.Service {
	logger.Debug("Creating all services")

	detector := topology.NewDetector(cfg.Host.SysFS,
		topology.WithLogger(logger),
		topology.WithMaxCPUs(cfg.Topology.MaxCPUs),
		topology.WithMaxPackages(cfg.Topology.MaxPackages),
		topology.WithAllowInterleaved(ptr.Deref(cfg.Topology.AllowInterleaved, false)),
	)
	var reader device.RegisterAccessor
	if ptr.Deref(cfg.Dev.FakeMSR.Enabled, false) {
		logger.Warn("Using fake MSR reader; reported power is synthetic")
		reader = device.NewFakeMSRReader(device.WithFakeLogger(logger))
	} else {
		reader = device.NewMSRReader(cfg.MSR.DevicePath, device.WithMSRLogger(logger))
	}
	pm := monitor.NewPowerMonitor(
		monitor.WithLogger(logger),
		monitor.WithDetector(detector),
		monitor.WithAccessor(reader),
		monitor.WithInterval(cfg.Sampler.Interval),
		monitor.WithProcFSPath(cfg.Host.ProcFS),
	)

	services := []service.Service{pm}
	var exporters []exporter.Exporter

	if ptr.Deref(cfg.Exporter.Stdout.Enabled, false) {
		s := stdout.NewExporter(
			stdout.WithLogger(logger),
			stdout.WithFormat(cfg.Exporter.Stdout.Format),
		)
		services = append(services, s)
		exporters = append(exporters, s)
	}

	if ptr.Deref(cfg.Exporter.Textfile.Enabled, false) {
		tf := prometheus.NewTextfileExporter(cfg.Exporter.Textfile.Path,
			prometheus.WithLogger(logger),
			prometheus.WithProcFSPath(cfg.Host.ProcFS),
		)
		services = append(services, tf)
		exporters = append(exporters, tf)
	}

	if len(exporters) == 0 {
		logger.Warn("No exporter enabled; the report will only be logged")
	}

	return append(services,
		exporter.NewReporter(logger, pm, exporters...),
		service.NewSignalHandler(logger, os.Interrupt, syscall.SIGTERM),
	)
}
