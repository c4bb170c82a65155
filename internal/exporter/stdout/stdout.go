// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package stdout

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
	"github.com/sustainable-computing-io/amd-rapl/internal/monitor"
	"github.com/sustainable-computing-io/amd-rapl/internal/service"
	"gopkg.in/yaml.v3"
)

// Supported output formats
const (
	FormatTable = "table"
	FormatYAML  = "yaml"
)

// Formats lists the supported output formats
var Formats = []string{FormatTable, FormatYAML}

// Exporter prints a power report to stdout
type Exporter struct {
	logger *slog.Logger
	out    io.Writer
	format string
}

var _ service.Initializer = (*Exporter)(nil)

type Opts struct {
	logger *slog.Logger
	out    io.Writer
	format string
}

// DefaultOpts() returns a new Opts with defaults set
func DefaultOpts() Opts {
	return Opts{
		logger: slog.Default(),
		out:    os.Stdout,
		format: FormatTable,
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

func WithOutput(out io.Writer) OptionFn {
	return func(o *Opts) {
		o.out = out
	}
}

// WithFormat selects table or yaml output
func WithFormat(format string) OptionFn {
	return func(o *Opts) {
		o.format = format
	}
}

func NewExporter(applyOpts ...OptionFn) *Exporter {
	opts := DefaultOpts()
	for _, apply := range applyOpts {
		apply(&opts)
	}

	return &Exporter{
		logger: opts.logger.With("service", "stdout"),
		out:    opts.out,
		format: opts.format,
	}
}

// Name implements service.Name
func (e *Exporter) Name() string {
	return "stdout"
}

func (e *Exporter) Init() error {
	switch e.format {
	case FormatTable, FormatYAML:
		return nil
	default:
		return fmt.Errorf("unsupported stdout format %q", e.format)
	}
}

// Export writes the report in the configured format
func (e *Exporter) Export(report *monitor.Report) error {
	e.logger.Debug("Exporting report", "format", e.format)
	if e.format == FormatYAML {
		return writeYAML(e.out, report)
	}
	return writeTables(e.out, report)
}

func writeYAML(out io.Writer, report *monitor.Report) error {
	enc := yaml.NewEncoder(out)
	enc.SetIndent(2)
	if err := enc.Encode(report); err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	return enc.Close()
}

func writeTables(out io.Writer, report *monitor.Report) error {
	summary := [][]string{
		{"Threads", strconv.Itoa(report.Threads())},
		{"Cores", strconv.Itoa(report.Cores())},
		{"Packages", strconv.Itoa(report.Packages())},
		{"SMT", strconv.FormatBool(report.SMT())},
		{"Core Power(W)", watts(report.CorePowerSum())},
		{"Package Power(W)", watts(report.PackagePowerSum())},
	}
	if err := writeTable(out, []string{"Topology", "Value"}, summary); err != nil {
		return err
	}

	cores := report.CorePowers()
	coreRows := make([][]string, 0, len(cores))
	for i, p := range cores {
		coreRows = append(coreRows, []string{strconv.Itoa(i), watts(p)})
	}
	if err := writeTable(out, []string{"Core", "Power(W)"}, coreRows); err != nil {
		return err
	}

	ids := report.PackageIDs()
	pkgRows := make([][]string, 0, len(ids))
	for i, p := range report.PackagePowers() {
		pkgRows = append(pkgRows, []string{strconv.Itoa(ids[i]), watts(p)})
	}
	return writeTable(out, []string{"Package", "Power(W)"}, pkgRows)
}

func writeTable(out io.Writer, header []string, rows [][]string) error {
	table := tablewriter.NewWriter(out)
	table.Configure(func(cfg *tablewriter.Config) {
		cfg.Row.Formatting.Alignment = tw.AlignRight
	})
	table.Header(header)
	if err := table.Bulk(rows); err != nil {
		return fmt.Errorf("failed to write table: %w", err)
	}
	return table.Render()
}

func watts(p monitor.Power) string {
	return strconv.FormatFloat(p.Watts(), 'f', 2, 64)
}
