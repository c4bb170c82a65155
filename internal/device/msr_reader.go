// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package device

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"golang.org/x/sys/unix"
)

// DefaultMSRDevicePath is the msr driver device path template
const DefaultMSRDevicePath = "/dev/cpu/%d/msr"

// msrRegisterSize is the width of every model specific register in bytes
const msrRegisterSize = 8

var (
	// ErrIO is matched by every register read failure
	ErrIO = errors.New("register i/o error")

	// ErrUnknownRegister is returned when a field has no address in the layout
	ErrUnknownRegister = errors.New("register not present in layout")
)

// ReadError describes a failed register read on a logical CPU
type ReadError struct {
	CPU     int
	Field   RegisterField
	Address uint64
	Path    string
	Err     error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("failed to read MSR %s (0x%x) on CPU %d from %s: %v",
		e.Field, e.Address, e.CPU, e.Path, e.Err)
}

func (e *ReadError) Unwrap() error {
	return e.Err
}

// Is makes every ReadError match ErrIO
func (e *ReadError) Is(target error) bool {
	return target == ErrIO
}

// RegisterAccessor reads a named hardware register of a logical CPU
type RegisterAccessor interface {
	// Read returns the 64-bit little-endian value of field on the given cpu
	Read(cpu int, field RegisterField) (uint64, error)

	// Layout returns the register layout used to resolve fields
	Layout() Layout
}

// msrReader implements RegisterAccessor using the Linux msr driver.
// A device handle is opened for every read and closed right after it; no
// handle is kept open between reads.
type msrReader struct {
	devicePath string // MSR device path template
	layout     Layout
	logger     *slog.Logger
}

var _ RegisterAccessor = (*msrReader)(nil)

// MSROptionFn configures an msrReader
type MSROptionFn func(*msrReader)

// WithLayout sets the register layout used to resolve register addresses
func WithLayout(l Layout) MSROptionFn {
	return func(m *msrReader) {
		m.layout = l
	}
}

// WithMSRLogger sets the logger for the msrReader
func WithMSRLogger(logger *slog.Logger) MSROptionFn {
	return func(m *msrReader) {
		m.logger = logger.With("service", "msr-reader")
	}
}

// NewMSRReader creates a new MSR reader using the specified device path template
func NewMSRReader(devicePath string, opts ...MSROptionFn) *msrReader {
	m := &msrReader{
		devicePath: devicePath,
		layout:     AMDLayout,
		logger:     slog.Default().With("service", "msr-reader"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Name returns the name of this register accessor implementation
func (m *msrReader) Name() string {
	return "msr"
}

// Layout returns the register layout
func (m *msrReader) Layout() Layout {
	return m.layout
}

// Path returns the device path of the given cpu
func (m *msrReader) Path(cpu int) string {
	return fmt.Sprintf(m.devicePath, cpu)
}

// Available reports whether an msr device exists for the given cpu
func (m *msrReader) Available(cpu int) bool {
	path := m.Path(cpu)
	if _, err := os.Stat(path); err != nil {
		m.logger.Debug("MSR device not available", "cpu", cpu, "path", path, "error", err)
		return false
	}
	return true
}

// Read performs a positioned 8 byte read at the register address of field
func (m *msrReader) Read(cpu int, field RegisterField) (uint64, error) {
	path := m.Path(cpu)
	addr, ok := m.layout.Address(field)
	if !ok {
		return 0, &ReadError{CPU: cpu, Field: field, Path: path, Err: ErrUnknownRegister}
	}

	fd, err := unix.Open(path, unix.O_RDONLY|unix.O_CLOEXEC, 0)
	if err != nil {
		return 0, &ReadError{CPU: cpu, Field: field, Address: addr, Path: path, Err: err}
	}
	defer func() {
		// ignored on purpose
		_ = unix.Close(fd)
	}()

	buf := make([]byte, msrRegisterSize)
	n, err := unix.Pread(fd, buf, int64(addr))
	if err != nil {
		return 0, &ReadError{CPU: cpu, Field: field, Address: addr, Path: path, Err: err}
	}
	if n != msrRegisterSize {
		return 0, &ReadError{CPU: cpu, Field: field, Address: addr, Path: path, Err: io.ErrUnexpectedEOF}
	}

	value := binary.LittleEndian.Uint64(buf)
	m.logger.Debug("Read MSR", "cpu", cpu, "msr", field.String(), "address", fmt.Sprintf("0x%x", addr), "value", value)
	return value, nil
}
