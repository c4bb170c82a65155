// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/sustainable-computing-io/amd-rapl/internal/device"
	"github.com/sustainable-computing-io/amd-rapl/internal/exporter/stdout"
	"github.com/sustainable-computing-io/amd-rapl/internal/logger"
	"github.com/sustainable-computing-io/amd-rapl/internal/monitor"
	"github.com/sustainable-computing-io/amd-rapl/internal/topology"
	"gopkg.in/yaml.v3"
	"k8s.io/utils/ptr"
)

// Config represents the complete application configuration
type (
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	}
	Host struct {
		SysFS  string `yaml:"sysfs"`
		ProcFS string `yaml:"procfs"`
	}

	// MSR register channel settings
	MSR struct {
		// DevicePath is a template with a single %d replaced by the CPU index
		DevicePath string `yaml:"devicePath"`
	}

	Sampler struct {
		Interval time.Duration `yaml:"interval"` // pause between the two energy snapshots of a package
	}

	Topology struct {
		MaxCPUs     int `yaml:"maxCPUs"`
		MaxPackages int `yaml:"maxPackages"`

		// AllowInterleaved accepts packages whose CPUs are not a contiguous
		// ascending range. Per-core attribution is unreliable in that case.
		AllowInterleaved *bool `yaml:"allowInterleaved"`
	}

	StdoutExporter struct {
		Enabled *bool  `yaml:"enabled"`
		Format  string `yaml:"format"`
	}

	// TextfileExporter writes the report in the Prometheus text format,
	// for the node-exporter textfile collector
	TextfileExporter struct {
		Enabled *bool  `yaml:"enabled"`
		Path    string `yaml:"path"`
	}

	Exporter struct {
		Stdout   StdoutExporter   `yaml:"stdout"`
		Textfile TextfileExporter `yaml:"textfile"`
	}

	// Development mode settings; disabled by default
	Dev struct {
		// FakeMSR replaces the MSR device with synthetic counters
		FakeMSR struct {
			Enabled *bool `yaml:"enabled"`
		} `yaml:"fake-msr"`
	}

	Config struct {
		Log      Log      `yaml:"log"`
		Host     Host     `yaml:"host"`
		MSR      MSR      `yaml:"msr"`
		Sampler  Sampler  `yaml:"sampler"`
		Topology Topology `yaml:"topology"`
		Exporter Exporter `yaml:"exporter"`
		Dev      Dev      `yaml:"dev"` // WARN: do not expose dev settings as flags
	}
)

type SkipValidation int

const (
	SkipHostValidation SkipValidation = 1
)

const (
	// Flags
	LogLevelFlag  = "log.level"
	LogFormatFlag = "log.format"

	HostSysFSFlag  = "host.sysfs"
	HostProcFSFlag = "host.procfs"

	MSRDevicePathFlag = "msr.device-path"

	SamplerIntervalFlag = "sampler.interval"

	TopologyAllowInterleavedFlag = "topology.allow-interleaved"
	TopologyMaxCPUs              = "topology.max-cpus"     // not a flag
	TopologyMaxPackages          = "topology.max-packages" // not a flag

	// Exporters
	ExporterStdoutEnabledFlag = "exporter.stdout"
	ExporterStdoutFormatFlag  = "exporter.stdout.format"

	ExporterTextfileEnabledFlag = "exporter.textfile"
	ExporterTextfilePathFlag    = "exporter.textfile.path"

	DevFakeMSREnabled = "dev.fake-msr.enabled" // not a flag
)

// DefaultConfig returns a Config with default values
func DefaultConfig() *Config {
	cfg := &Config{
		Log: Log{
			Level:  "info",
			Format: "text",
		},
		Host: Host{
			SysFS:  "/sys",
			ProcFS: "/proc",
		},
		MSR: MSR{
			DevicePath: device.DefaultMSRDevicePath,
		},
		Sampler: Sampler{
			Interval: monitor.DefaultInterval,
		},
		Topology: Topology{
			MaxCPUs:          topology.DefaultMaxCPUs,
			MaxPackages:      topology.DefaultMaxPackages,
			AllowInterleaved: ptr.To(false),
		},
		Exporter: Exporter{
			Stdout: StdoutExporter{
				Enabled: ptr.To(true),
				Format:  stdout.FormatTable,
			},
			Textfile: TextfileExporter{
				Enabled: ptr.To(false),
			},
		},
	}

	cfg.Dev.FakeMSR.Enabled = ptr.To(false)
	return cfg
}

// Load loads configuration from an io.Reader
func Load(r io.Reader) (*Config, error) {
	cfg := DefaultConfig()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.sanitize()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromFile loads configuration from a file
func FromFile(filePath string) (cfg *Config, err error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer func() {
		if cerr := file.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	return Load(file)
}

type ConfigUpdaterFn func(*Config) error

// RegisterFlags registers command-line flags with kingpin app
// and returns ConfigUpdaterFn that updates the config from parsed flags
// as command line arguments override config file settings
func RegisterFlags(app *kingpin.Application) ConfigUpdaterFn {
	// track flags that were explicitly set
	flagsSet := map[string]bool{}

	app.PreAction(func(ctx *kingpin.ParseContext) error {
		flagsSet = map[string]bool{}
		for _, element := range ctx.Elements {
			if flag, ok := element.Clause.(*kingpin.FlagClause); ok && element.Value != nil {
				flagsSet[flag.Model().Name] = true
			}
		}
		return nil
	})

	// Logging
	logLevel := app.Flag(LogLevelFlag, "Logging level: debug, info, warn, error").Default("info").Enum(logger.Levels...)
	logFormat := app.Flag(LogFormatFlag, "Logging format: text or json").Default("text").Enum(logger.Formats...)

	// host
	hostSysFS := app.Flag(HostSysFSFlag, "Host sysfs path").Default("/sys").ExistingDir()
	hostProcFS := app.Flag(HostProcFSFlag, "Host procfs path").Default("/proc").ExistingDir()

	msrDevicePath := app.Flag(MSRDevicePathFlag,
		"MSR device path template; %d is replaced by the CPU index").Default(device.DefaultMSRDevicePath).String()

	samplerInterval := app.Flag(SamplerIntervalFlag,
		"Pause between the two energy snapshots of each package").Default(monitor.DefaultInterval.String()).Duration()

	allowInterleaved := app.Flag(TopologyAllowInterleavedFlag,
		"Accept packages whose CPUs are not numbered contiguously; per-package readings may then be labelled with the wrong package").Default("false").Bool()

	// exporters
	stdoutEnabled := app.Flag(ExporterStdoutEnabledFlag, "Print the report to stdout").Default("true").Bool()
	stdoutFormat := app.Flag(ExporterStdoutFormatFlag, "Stdout report format: table or yaml").
		Default(stdout.FormatTable).Enum(stdout.Formats...)

	textfileEnabled := app.Flag(ExporterTextfileEnabledFlag, "Write the report as a Prometheus textfile").Default("false").Bool()
	textfilePath := app.Flag(ExporterTextfilePathFlag, "Prometheus textfile output path").Default("").String()

	return func(cfg *Config) error {
		if flagsSet[LogLevelFlag] {
			cfg.Log.Level = *logLevel
		}
		if flagsSet[LogFormatFlag] {
			cfg.Log.Format = *logFormat
		}

		if flagsSet[HostSysFSFlag] {
			cfg.Host.SysFS = *hostSysFS
		}
		if flagsSet[HostProcFSFlag] {
			cfg.Host.ProcFS = *hostProcFS
		}

		if flagsSet[MSRDevicePathFlag] {
			cfg.MSR.DevicePath = *msrDevicePath
		}

		if flagsSet[SamplerIntervalFlag] {
			cfg.Sampler.Interval = *samplerInterval
		}

		if flagsSet[TopologyAllowInterleavedFlag] {
			cfg.Topology.AllowInterleaved = allowInterleaved
		}

		if flagsSet[ExporterStdoutEnabledFlag] {
			cfg.Exporter.Stdout.Enabled = stdoutEnabled
		}
		if flagsSet[ExporterStdoutFormatFlag] {
			cfg.Exporter.Stdout.Format = *stdoutFormat
		}

		if flagsSet[ExporterTextfileEnabledFlag] {
			cfg.Exporter.Textfile.Enabled = textfileEnabled
		}
		if flagsSet[ExporterTextfilePathFlag] {
			cfg.Exporter.Textfile.Path = *textfilePath
		}

		cfg.sanitize()
		return cfg.Validate()
	}
}

func (c *Config) sanitize() {
	c.Log.Level = strings.TrimSpace(c.Log.Level)
	c.Log.Format = strings.TrimSpace(c.Log.Format)
	c.Host.SysFS = strings.TrimSpace(c.Host.SysFS)
	c.Host.ProcFS = strings.TrimSpace(c.Host.ProcFS)
	c.MSR.DevicePath = strings.TrimSpace(c.MSR.DevicePath)
	c.Exporter.Stdout.Format = strings.ToLower(strings.TrimSpace(c.Exporter.Stdout.Format))
	c.Exporter.Textfile.Path = strings.TrimSpace(c.Exporter.Textfile.Path)
}

// Validate checks for configuration errors
func (c *Config) Validate(skips ...SkipValidation) error {
	validationSkipped := make(map[SkipValidation]bool, len(skips))
	for _, v := range skips {
		validationSkipped[v] = true
	}

	var errs []string
	{ // log
		if !slices.Contains(logger.Levels, c.Log.Level) {
			errs = append(errs, fmt.Sprintf("invalid log level: %s", c.Log.Level))
		}
		if !slices.Contains(logger.Formats, c.Log.Format) {
			errs = append(errs, fmt.Sprintf("invalid log format: %s", c.Log.Format))
		}
	}
	{ // host
		if !validationSkipped[SkipHostValidation] {
			if err := canReadDir(c.Host.SysFS); err != nil {
				errs = append(errs, fmt.Sprintf("invalid sysfs path: %s: %s", c.Host.SysFS, err.Error()))
			}
			if err := canReadDir(c.Host.ProcFS); err != nil {
				errs = append(errs, fmt.Sprintf("invalid procfs path: %s: %s", c.Host.ProcFS, err.Error()))
			}
		}
	}
	{ // msr
		if n := strings.Count(c.MSR.DevicePath, "%d"); n != 1 || strings.Count(c.MSR.DevicePath, "%") != 1 {
			errs = append(errs, fmt.Sprintf("invalid msr device path %q: must contain exactly one %%d", c.MSR.DevicePath))
		}
	}
	{ // sampler
		if c.Sampler.Interval <= 0 {
			errs = append(errs, fmt.Sprintf("invalid sampler interval: %s must be positive", c.Sampler.Interval))
		}
	}
	{ // topology
		if c.Topology.MaxCPUs <= 0 {
			errs = append(errs, fmt.Sprintf("invalid topology max cpus: %d must be positive", c.Topology.MaxCPUs))
		}
		if c.Topology.MaxPackages <= 0 {
			errs = append(errs, fmt.Sprintf("invalid topology max packages: %d must be positive", c.Topology.MaxPackages))
		}
	}
	{ // exporters
		if f := c.Exporter.Stdout.Format; !slices.Contains(stdout.Formats, f) {
			errs = append(errs, fmt.Sprintf("invalid stdout exporter format: %s", f))
		}
		if ptr.Deref(c.Exporter.Textfile.Enabled, false) && c.Exporter.Textfile.Path == "" {
			errs = append(errs, fmt.Sprintf("%s not supplied but %s set to true", ExporterTextfilePathFlag, ExporterTextfileEnabledFlag))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(errs, ", "))
	}
	return nil
}

func canReadDir(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer func() {
		// ignored on purpose
		_ = f.Close()
	}()

	_, err = f.ReadDir(1)
	return err
}

func (c *Config) String() string {
	bytes, err := yaml.Marshal(c)
	if err == nil {
		return string(bytes)
	}
	// NOTE: should not happen; fall back to building the string by hand
	return c.manualString()
}

func (c *Config) manualString() string {
	cfgs := []struct {
		Name  string
		Value string
	}{
		{LogLevelFlag, c.Log.Level},
		{LogFormatFlag, c.Log.Format},
		{HostSysFSFlag, c.Host.SysFS},
		{HostProcFSFlag, c.Host.ProcFS},
		{MSRDevicePathFlag, c.MSR.DevicePath},
		{SamplerIntervalFlag, c.Sampler.Interval.String()},
		{TopologyMaxCPUs, fmt.Sprintf("%d", c.Topology.MaxCPUs)},
		{TopologyMaxPackages, fmt.Sprintf("%d", c.Topology.MaxPackages)},
		{TopologyAllowInterleavedFlag, fmt.Sprintf("%v", ptr.Deref(c.Topology.AllowInterleaved, false))},
		{ExporterStdoutEnabledFlag, fmt.Sprintf("%v", ptr.Deref(c.Exporter.Stdout.Enabled, false))},
		{ExporterStdoutFormatFlag, c.Exporter.Stdout.Format},
		{ExporterTextfileEnabledFlag, fmt.Sprintf("%v", ptr.Deref(c.Exporter.Textfile.Enabled, false))},
		{ExporterTextfilePathFlag, c.Exporter.Textfile.Path},
		{DevFakeMSREnabled, fmt.Sprintf("%v", ptr.Deref(c.Dev.FakeMSR.Enabled, false))},
	}

	sb := strings.Builder{}
	for _, cfg := range cfgs {
		sb.WriteString(cfg.Name)
		sb.WriteString(": ")
		sb.WriteString(cfg.Value)
		sb.WriteString("\n")
	}
	return sb.String()
}
