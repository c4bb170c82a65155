// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package service

import (
	"context"
	"log/slog"
	"sync"
)

// events records lifecycle calls across services, in call order
type events struct {
	mu  sync.Mutex
	log []string
}

func (e *events) add(s string) {
	if e == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.log = append(e.log, s)
}

func (e *events) list() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.log...)
}

type mockService struct {
	name string
}

func (m *mockService) Name() string {
	return m.name
}

type mockInitializer struct {
	mockService
	initFn    func() error
	initCount int
}

func (m *mockInitializer) Init() error {
	m.initCount++
	if m.initFn != nil {
		return m.initFn()
	}
	return nil
}

type mockInitShutdownService struct {
	mockService
	events        *events
	initFn        func() error
	shutdownFn    func() error
	initCount     int
	shutdownCount int
}

func (m *mockInitShutdownService) Init() error {
	m.initCount++
	m.events.add("init:" + m.name)
	if m.initFn != nil {
		return m.initFn()
	}
	return nil
}

func (m *mockInitShutdownService) Shutdown() error {
	m.shutdownCount++
	m.events.add("shutdown:" + m.name)
	if m.shutdownFn != nil {
		return m.shutdownFn()
	}
	return nil
}

type mockRunner struct {
	mockService
	runFn    func(ctx context.Context) error
	runCount int
}

func (m *mockRunner) Run(ctx context.Context) error {
	m.runCount++
	if m.runFn != nil {
		return m.runFn(ctx)
	}
	return nil
}

type mockRunShutdownService struct {
	mockService
	runFn         func(ctx context.Context) error
	shutdownFn    func() error
	mu            sync.Mutex
	runCount      int
	shutdownCount int
}

func (m *mockRunShutdownService) Run(ctx context.Context) error {
	m.mu.Lock()
	m.runCount++
	m.mu.Unlock()
	if m.runFn != nil {
		return m.runFn(ctx)
	}
	return nil
}

func (m *mockRunShutdownService) Shutdown() error {
	m.mu.Lock()
	m.shutdownCount++
	m.mu.Unlock()
	if m.shutdownFn != nil {
		return m.shutdownFn()
	}
	return nil
}

func (m *mockRunShutdownService) shutdowns() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.shutdownCount
}

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
