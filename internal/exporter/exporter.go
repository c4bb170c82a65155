// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package exporter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sustainable-computing-io/amd-rapl/internal/monitor"
	"github.com/sustainable-computing-io/amd-rapl/internal/service"
)

// Exporter publishes a power report
type Exporter interface {
	service.Service
	Export(report *monitor.Report) error
}

// Reporter is a one-shot Runner: it takes one measurement and hands the
// report to every exporter. A cancellation that arrives while measuring
// suppresses the export.
type Reporter struct {
	logger    *slog.Logger
	measurer  monitor.Measurer
	exporters []Exporter
}

var _ service.Runner = (*Reporter)(nil)

func NewReporter(logger *slog.Logger, m monitor.Measurer, exporters ...Exporter) *Reporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reporter{
		logger:    logger.With("service", "reporter"),
		measurer:  m,
		exporters: exporters,
	}
}

func (r *Reporter) Name() string {
	return "reporter"
}

// Run measures once and exports. Every exporter is tried; their errors are
// joined.
func (r *Reporter) Run(ctx context.Context) error {
	report, err := r.measurer.Measure()
	if err != nil {
		return fmt.Errorf("measurement failed: %w", err)
	}

	// measuring does not observe ctx; check it before publishing anything
	if err := ctx.Err(); err != nil {
		r.logger.Info("Interrupted during measurement; skipping export")
		return err
	}

	var errs error
	for _, e := range r.exporters {
		if err := e.Export(report); err != nil {
			r.logger.Error("Export failed", "exporter", e.Name(), "error", err)
			errs = errors.Join(errs, fmt.Errorf("%s: %w", e.Name(), err))
		}
	}
	return errs
}
