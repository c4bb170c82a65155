// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package service

import (
	"context"
	"log/slog"

	"github.com/oklog/run"
)

// Run runs every Runner in its own actor of a run.Group. The first actor to
// return interrupts the others; its error is returned. Services implementing
// Shutdowner are shut down as they are interrupted.
func Run(outer context.Context, logger *slog.Logger, services []Service) error {
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(outer)
	defer cancel()

	var g run.Group
	for _, s := range services {
		r, ok := s.(Runner)
		if !ok {
			logger.Debug("skipping service", "service", s.Name(), "reason", "not a runner")
			continue
		}

		g.Add(
			func() error {
				logger.Info("Running service", "service", r.Name())
				return r.Run(ctx)
			},
			func(err error) {
				cancel()
				if err != nil {
					logger.Debug("service interrupted", "service", r.Name(), "reason", err)
				}
				shutdown(logger, r)
			},
		)
	}

	logger.Info("Running all services")
	return g.Run()
}

func shutdown(logger *slog.Logger, s Service) {
	sd, ok := s.(Shutdowner)
	if !ok {
		return
	}
	logger.Info("shutting down", "service", s.Name())
	if err := sd.Shutdown(); err != nil {
		logger.Warn("service shutdown failed", "service", s.Name(), "error", err)
	}
}
