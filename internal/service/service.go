// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

// Package service drives the lifecycle of the components wired together by
// the amd-rapl command: initialize all, run until one finishes, shut down.
package service

import "context"

// Service is implemented by every component managed by Init and Run
type Service interface {
	// Name returns the name of the service
	Name() string
}

// Initializer is a service that must be prepared before anything runs
type Initializer interface {
	Service
	Init() error
}

// Runner is a service that does its work in Run. Run blocks until the work
// is done or ctx is cancelled.
type Runner interface {
	Service
	Run(ctx context.Context) error
}

// Shutdowner is a service that releases resources on shutdown
type Shutdowner interface {
	Service
	Shutdown() error
}
